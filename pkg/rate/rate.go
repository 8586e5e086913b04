// Package rate estimates per-key event rates over fixed intervals on top of two count-min
// estimators: one collects the running interval, the other holds the last complete one.
package rate

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-estimator/pkg/config"
	"github.com/Borislavv/go-estimator/pkg/estimator"
	"github.com/Borislavv/go-estimator/pkg/hash"
	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics"
	"github.com/rs/zerolog/log"
)

const component = "rate"

var IntervalError = errors.New("rate: interval must be positive")

// Rate is safe for concurrent use. Windows rotate lazily on Observe and Rate calls,
// there is no background goroutine.
type Rate[K hash.Key] struct {
	slots    [2]*estimator.Estimator[K]
	current  atomic.Uint32 // index of the collecting slot
	interval time.Duration
	start    time.Time
	rotated  atomic.Int64 // nanoseconds since start at the last rotation
	now      func() time.Time
	meter    metrics.Meter
}

// New creates a Rate with two estimators shaped by cfg.
func New[K hash.Key](cfg *config.Rate, meter metrics.Meter) (*Rate[K], error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w, got %s", IntervalError, cfg.Interval)
	}

	r := &Rate[K]{
		interval: cfg.Interval,
		now:      time.Now,
		meter:    meter,
	}
	for i := range r.slots {
		est, err := estimator.NewFromConfig[K](&cfg.Sketch)
		if err != nil {
			return nil, fmt.Errorf("rate: build slot %d: %w", i, err)
		}
		r.slots[i] = est
	}
	r.start = r.now()

	meter.SetSketchMemory(component, 2*r.slots[0].Memory())

	return r, nil
}

// Observe records events for key in the running interval and returns its estimate there.
func (r *Rate[K]) Observe(key K, events int64) int64 {
	r.maybeRotate()
	return r.slots[r.current.Load()].Incr(key, events)
}

// Rate returns the events per second of key over the last complete interval.
func (r *Rate[K]) Rate(key K) float64 {
	r.maybeRotate()
	return float64(r.slots[r.current.Load()^1].Get(key)) / r.interval.Seconds()
}

// Current returns the estimate of key in the running interval. It never rotates.
func (r *Rate[K]) Current(key K) int64 {
	return r.slots[r.current.Load()].Get(key)
}

// Interval returns the window length.
func (r *Rate[K]) Interval() time.Duration {
	return r.interval
}

// maybeRotate turns the running interval into the previous one once it is over.
// Only the caller winning the CAS on the rotation timestamp touches the slots.
// When more than one interval passed without rotation the previous window is stale and is cleared too.
func (r *Rate[K]) maybeRotate() bool {
	var (
		now  = int64(r.now().Sub(r.start))
		last = r.rotated.Load()
		past = now - last
	)
	if past < int64(r.interval) {
		return false
	}
	if !r.rotated.CompareAndSwap(last, now) {
		return false
	}

	cur := r.current.Load()
	r.slots[cur^1].Reset()
	r.current.Store(cur ^ 1)
	if past >= 2*int64(r.interval) {
		r.slots[cur].Reset()
	}

	r.meter.IncRotation(component)
	log.Debug().
		Dur("interval", r.interval).
		Bool("stale", past >= 2*int64(r.interval)).
		Msg("[rate] window rotated")

	return true
}
