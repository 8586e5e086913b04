// Package admission decides whether a new key deserves a place in a bounded cache
// by comparing its estimated frequency with the frequency of the key it would evict.
package admission

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-estimator/pkg/config"
	"github.com/Borislavv/go-estimator/pkg/estimator"
	"github.com/Borislavv/go-estimator/pkg/hash"
	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics"
	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics/keyword"
	"github.com/Borislavv/go-estimator/pkg/utils"
	"github.com/rs/zerolog/log"
)

const (
	component   = "admission"
	logInterval = 5 * time.Second
)

// TinyLFU is a frequency-based admission policy: a doorkeeper filters first sightings,
// repeated ones are counted by a count-min sketch, and both are cleared every sample window
// so old popularity fades out.
type TinyLFU[K hash.Key] struct {
	ctx        context.Context
	cfg        *config.Admission
	sketch     *estimator.Estimator[K]
	doorkeeper *doorkeeper[K]
	meter      metrics.Meter

	records  atomic.Int64
	agings   atomic.Int64
	admitted atomic.Int64
	rejected atomic.Int64
}

// NewTinyLFU builds the policy and starts its stats logger, which lives until ctx is done.
func NewTinyLFU[K hash.Key](ctx context.Context, cfg *config.Admission, meter metrics.Meter) (*TinyLFU[K], error) {
	if cfg.SampleSize < 1 {
		return nil, fmt.Errorf("admission: sample size must be >= 1, got %d", cfg.SampleSize)
	}
	if cfg.DoorkeeperBits < 64 {
		return nil, fmt.Errorf("admission: doorkeeper must have at least 64 bits, got %d", cfg.DoorkeeperBits)
	}

	sketch, err := estimator.NewFromConfig[K](&cfg.Sketch)
	if err != nil {
		return nil, fmt.Errorf("admission: %w", err)
	}
	dk, err := newDoorkeeper[K](cfg.DoorkeeperBits)
	if err != nil {
		return nil, fmt.Errorf("admission: %w", err)
	}

	t := &TinyLFU[K]{
		ctx:        ctx,
		cfg:        cfg,
		sketch:     sketch,
		doorkeeper: dk,
		meter:      meter,
	}
	meter.SetSketchMemory(component, sketch.Memory()+dk.Memory())

	t.runLogger()

	return t, nil
}

// Record registers one access of key.
func (t *TinyLFU[K]) Record(key K) {
	if t.doorkeeper.Insert(key) {
		t.sketch.Incr(key, 1)
	}
	if t.records.Add(1)%int64(t.cfg.SampleSize) == 0 {
		t.age()
	}
}

// Admit reports whether candidate should replace victim.
func (t *TinyLFU[K]) Admit(candidate, victim K) bool {
	if t.cfg.AdmitUnseen && !t.doorkeeper.Insert(candidate) {
		t.admitted.Add(1)
		t.meter.IncAdmission(keyword.Unseen)
		return true
	}

	if t.Estimate(candidate) >= t.Estimate(victim) {
		t.admitted.Add(1)
		t.meter.IncAdmission(keyword.Admitted)
		return true
	}

	t.rejected.Add(1)
	t.meter.IncAdmission(keyword.Rejected)
	return false
}

// Estimate returns the frequency of key in the current sample window.
func (t *TinyLFU[K]) Estimate(key K) int64 {
	freq := t.sketch.Get(key)
	if t.doorkeeper.Contains(key) {
		freq++
	}
	return freq
}

// age clears the window. Records racing with it may land on either side.
func (t *TinyLFU[K]) age() {
	t.doorkeeper.Reset()
	t.sketch.Reset()
	t.agings.Add(1)
	t.meter.IncAging(component)

	log.Debug().Int("sampleSize", t.cfg.SampleSize).Msg("[admission] sample window aged")
}

// runLogger emits admission stats every 5 seconds while there is traffic.
func (t *TinyLFU[K]) runLogger() {
	go func() {
		ticker := utils.NewTicker(t.ctx, logInterval)
		for {
			select {
			case <-t.ctx.Done():
				return
			case <-ticker:
				t.logAndReset()
				runtime.Gosched()
			}
		}
	}()
}

func (t *TinyLFU[K]) logAndReset() {
	var (
		admitted = t.admitted.Swap(0)
		rejected = t.rejected.Swap(0)
		agings   = t.agings.Swap(0)
	)
	if admitted == 0 && rejected == 0 && agings == 0 {
		return
	}

	log.Info().
		Str("target", component).
		Str("admitted", strconv.FormatInt(admitted, 10)).
		Str("rejected", strconv.FormatInt(rejected, 10)).
		Str("agings", strconv.FormatInt(agings, 10)).
		Msgf("[admission][5s] admitted %d, rejected %d, aged %d times", admitted, rejected, agings)
}
