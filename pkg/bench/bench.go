// Package bench drives an estimator with a zipf-distributed key workload and measures
// single-threaded and contended throughput.
package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-estimator/pkg/config"
	"github.com/Borislavv/go-estimator/pkg/estimator"
	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics"
	"github.com/Borislavv/go-estimator/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	PhaseSingle = "single"
	PhaseGet    = "parallel_get"
	PhaseMixed  = "mixed"
)

// checkEvery is how many operations a worker runs between context checks.
const checkEvery = 1 << 10

var InvalidConfigError = errors.New("bench: invalid config")

type runner struct {
	ctx   context.Context
	est   *estimator.Estimator[uint64]
	cfg   *config.Bench
	meter metrics.Meter
	done  atomic.Int64 // operations finished in the running phase
}

// Run populates est with every key once and then runs the single, parallel_get and mixed phases.
// It stops early with the context error when ctx is done.
func Run(ctx context.Context, est *estimator.Estimator[uint64], cfg *config.Bench, meter metrics.Meter) (Report, error) {
	if cfg.Items < 1 || cfg.Iterations < 1 || cfg.Workers < 1 || cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		return Report{}, fmt.Errorf("%w: %+v", InvalidConfigError, *cfg)
	}

	r := &runner{ctx: ctx, est: est, cfg: cfg, meter: meter}
	report := Report{RunID: uuid.NewString(), Memory: est.Memory()}

	log.Info().
		Str("runID", report.RunID).
		Msgf("[bench] %d keys, %d iterations, %d workers, zipf s=%g, sketch %dx%d (%s)",
			cfg.Items, cfg.Iterations, cfg.Workers, cfg.ZipfS, est.Hashes(), est.Slots(),
			humanize.IBytes(uint64(est.Memory())))
	meter.SetSketchMemory("bench", est.Memory())

	for k := uint64(0); k < uint64(cfg.Items); k++ {
		est.Incr(k, 1)
	}

	phases := []struct {
		name    string
		workers int
		op      func(keys *rand.Zipf, n int) error
	}{
		{PhaseSingle, 1, r.incr},
		{PhaseGet, cfg.Workers, r.get},
		{PhaseMixed, cfg.Workers, r.mixed},
	}
	for _, ph := range phases {
		p, err := r.phase(ph.name, ph.workers, ph.op)
		if err != nil {
			return report, fmt.Errorf("bench: phase %s: %w", ph.name, err)
		}
		report.Phases = append(report.Phases, p)
	}

	report.log()

	return report, nil
}

func (r *runner) phase(name string, workers int, op func(keys *rand.Zipf, n int) error) (Phase, error) {
	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	r.done.Store(0)
	r.runLogger(ctx, name)

	g, gctx := errgroup.WithContext(ctx)
	from := time.Now()
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return op(r.keys(), r.cfg.Iterations)
		})
	}
	err := g.Wait()
	elapsed := time.Since(from)
	if err != nil {
		return Phase{}, err
	}

	p := Phase{
		Name:    name,
		Workers: workers,
		Ops:     int64(workers) * int64(r.cfg.Iterations),
		Elapsed: elapsed,
	}
	r.meter.ObservePhaseDuration(name, elapsed)

	return p, nil
}

// keys returns a fresh per-worker zipf source over [0, Items).
func (r *runner) keys() *rand.Zipf {
	rnd := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return rand.NewZipf(rnd, r.cfg.ZipfS, r.cfg.ZipfV, uint64(r.cfg.Items-1))
}

func (r *runner) incr(keys *rand.Zipf, n int) error {
	return r.loop(n, func(i int) {
		r.est.Incr(keys.Uint64(), 1)
	}, PhaseSingle, "incr")
}

func (r *runner) get(keys *rand.Zipf, n int) error {
	return r.loop(n, func(i int) {
		r.est.Get(keys.Uint64())
	}, PhaseGet, "get")
}

// mixed reads every key, then either bumps it or, every fourth operation, takes one back.
func (r *runner) mixed(keys *rand.Zipf, n int) error {
	return r.loop(n, func(i int) {
		key := keys.Uint64()
		r.est.Get(key)
		if i%4 == 3 {
			r.est.Decr(key, 1)
		} else {
			r.est.Incr(key, 1)
		}
	}, PhaseMixed, "mixed")
}

func (r *runner) loop(n int, op func(i int), phase, opName string) error {
	for i := 0; i < n; i++ {
		op(i)
		if (i+1)%checkEvery == 0 {
			r.done.Add(checkEvery)
			r.meter.AddBenchOps(phase, opName, checkEvery)
			if err := r.ctx.Err(); err != nil {
				return err
			}
		}
	}
	if tail := n % checkEvery; tail > 0 {
		r.done.Add(int64(tail))
		r.meter.AddBenchOps(phase, opName, tail)
	}
	return nil
}

// runLogger reports the progress of a phase every report interval until ctx is done.
func (r *runner) runLogger(ctx context.Context, phase string) {
	if r.cfg.ReportInterval <= 0 {
		return
	}
	go func() {
		ticker := utils.NewTicker(ctx, r.cfg.ReportInterval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker:
				log.Info().Msgf("[bench][%s] %s operations done", phase, humanize.Comma(r.done.Load()))
				runtime.Gosched()
			}
		}
	}()
}
