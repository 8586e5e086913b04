package bench

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// Phase is the outcome of one workload phase.
type Phase struct {
	Name    string
	Workers int
	Ops     int64 // Operations over all workers.
	Elapsed time.Duration
}

// AvgPerOp returns the wall time per operation of a single worker.
func (p Phase) AvgPerOp() time.Duration {
	perWorker := p.Ops / int64(max(p.Workers, 1))
	if perWorker == 0 {
		return 0
	}
	return p.Elapsed / time.Duration(perWorker)
}

// OpsPerSecond returns the throughput of all workers together.
func (p Phase) OpsPerSecond() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Ops) / p.Elapsed.Seconds()
}

// Report collects the phases of one run.
type Report struct {
	RunID  string
	Memory int64 // Counter table of the driven estimator, bytes.
	Phases []Phase
}

// Phase returns the phase with the given name.
func (r Report) Phase(name string) (Phase, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

func (r Report) log() {
	for _, p := range r.Phases {
		log.Info().
			Str("target", "bench").
			Str("runID", r.RunID).
			Str("phase", p.Name).
			Int("workers", p.Workers).
			Int64("ops", p.Ops).
			Dur("elapsed", p.Elapsed).
			Msgf("[bench] %s total %s, %s avg per operation, %s ops per second",
				p.Name, p.Elapsed, p.AvgPerOp(), humanize.Comma(int64(p.OpsPerSecond())))
	}
}
