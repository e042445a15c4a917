package l4filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
)

// OutlierConfig configures statistical outlier rejection.
type OutlierConfig struct {
	HistorySize int     // Values kept per metric (default: 20)
	StdDevs     float64 // Rejection distance in standard deviations (default: 3.0)
	MinSamples  int     // History needed before rejecting (default: 5)
	MinStdDev   float64 // Floor applied to the standard deviation (default: 0.001)

	// Metrics selects which metrics are filtered. faceToShoulderY is left
	// out by default.
	Metrics [l3metrics.NumMetrics]bool
}

// DefaultOutlierConfig returns the medium-preset rejector settings.
func DefaultOutlierConfig() OutlierConfig {
	cfg := OutlierConfig{
		HistorySize: 20,
		StdDevs:     3.0,
		MinSamples:  5,
		MinStdDev:   0.001,
	}
	for _, m := range l3metrics.All {
		cfg.Metrics[m] = m != l3metrics.FaceToShoulderY
	}
	return cfg
}

// Validate checks that the configuration can drive a rejector.
func (c OutlierConfig) Validate() error {
	if c.MinSamples < 2 {
		return fmt.Errorf("min samples must be >= 2, got %d", c.MinSamples)
	}
	if c.HistorySize < c.MinSamples {
		return fmt.Errorf("history size must be >= min samples (%d), got %d", c.MinSamples, c.HistorySize)
	}
	if c.StdDevs <= 0 {
		return fmt.Errorf("std devs must be positive, got %f", c.StdDevs)
	}
	if c.MinStdDev <= 0 {
		return fmt.Errorf("min std dev must be positive, got %f", c.MinStdDev)
	}
	return nil
}

// OutlierRejector replaces values far from recent history with the previous
// value. It is not safe for concurrent use.
type OutlierRejector struct {
	cfg     OutlierConfig
	history [l3metrics.NumMetrics]ring
	scratch []float64
}

// NewOutlierRejector returns a rejector with empty history.
func NewOutlierRejector(cfg OutlierConfig) (*OutlierRejector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &OutlierRejector{cfg: cfg, scratch: make([]float64, 0, cfg.HistorySize)}
	for i := range r.history {
		r.history[i] = newRing(cfg.HistorySize)
	}
	return r, nil
}

// Config returns the active configuration.
func (r *OutlierRejector) Config() OutlierConfig { return r.cfg }

// Filter pushes v into the history of m and returns the value to use, with
// true when v was rejected. Rejected values are still recorded so that a
// genuine step change is accepted once it dominates the window.
func (r *OutlierRejector) Filter(m l3metrics.Metric, v float64) (float64, bool) {
	h := &r.history[m]
	if h.Len() < r.cfg.MinSamples {
		h.Push(v)
		return v, false
	}

	r.scratch = h.AppendTo(r.scratch[:0])
	mean, std := stat.PopMeanStdDev(r.scratch, nil)
	std = math.Max(std, r.cfg.MinStdDev)
	outlier := math.Abs(v-mean) > r.cfg.StdDevs*std

	h.Push(v)
	if !outlier {
		return v, false
	}
	if h.Len() > 1 {
		return h.At(h.Len() - 2), true
	}
	return mean, true
}

// Apply filters every enabled metric in place and returns the rejected set.
func (r *OutlierRejector) Apply(v *l3metrics.Values) (rejected [l3metrics.NumMetrics]bool) {
	for _, m := range l3metrics.All {
		if !r.cfg.Metrics[m] {
			continue
		}
		v[m], rejected[m] = r.Filter(m, v[m])
	}
	return rejected
}

// SetLimits changes the window size and rejection distance without
// discarding history. Shrinking keeps the most recent values.
func (r *OutlierRejector) SetLimits(historySize int, stdDevs float64) error {
	next := r.cfg
	next.HistorySize = historySize
	next.StdDevs = stdDevs
	if err := next.Validate(); err != nil {
		return err
	}
	r.cfg = next
	for i := range r.history {
		r.history[i].Resize(historySize)
	}
	return nil
}

// Reset clears every history.
func (r *OutlierRejector) Reset() {
	for i := range r.history {
		r.history[i].Clear()
	}
}

// History returns a copy of the history of m, oldest first.
func (r *OutlierRejector) History(m l3metrics.Metric) []float64 {
	return r.history[m].AppendTo(nil)
}
