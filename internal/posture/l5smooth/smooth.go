// Package l5smooth owns Layer 5 (Smoothing) of the posture data model:
// scaling each filtered metric onto the common 0-500 sensitivity range and
// low-pass filtering it with an exponential moving average.
//
// Dependency rule: L5 may depend on L1-L4, but never on L6+.
package l5smooth

import (
	"fmt"

	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
)

const sensitivityRange = 500.0

// ScaleFactors map typical human range of motion for each metric onto
// 0-500. Head tilt is already in degrees and stays unscaled.
var ScaleFactors = [l3metrics.NumMetrics]float64{
	l3metrics.FaceToShoulderZ:   sensitivityRange / 0.0599,
	l3metrics.FaceToShoulderY:   sensitivityRange / 1.0,
	l3metrics.RelativeShoulderZ: sensitivityRange / 0.0599,
	l3metrics.RelativeShoulderY: sensitivityRange / 1.0,
	l3metrics.ShoulderAsymmetry: sensitivityRange / 0.1,
	l3metrics.HeadTilt:          1,
	l3metrics.NeckAngle:         sensitivityRange / 90.0,
	l3metrics.ShoulderForward:   sensitivityRange / 0.0599,
}

// DepthAxis reports whether m is smoothed with the depth factor.
func DepthAxis(m l3metrics.Metric) bool {
	switch m {
	case l3metrics.FaceToShoulderZ, l3metrics.RelativeShoulderZ, l3metrics.ShoulderForward:
		return true
	}
	return false
}

// Config holds the two smoothing factors.
type Config struct {
	Alpha  float64 // Factor for non-depth metrics (default: 0.25)
	AlphaZ float64 // Factor for depth metrics (default: 0.2)
}

// DefaultConfig returns the default smoothing factors.
func DefaultConfig() Config {
	return Config{Alpha: 0.25, AlphaZ: 0.2}
}

// Validate checks both factors lie in (0, 1].
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0, 1], got %f", c.Alpha)
	}
	if c.AlphaZ <= 0 || c.AlphaZ > 1 {
		return fmt.Errorf("alpha_z must be in (0, 1], got %f", c.AlphaZ)
	}
	return nil
}

// Smoother carries the smoothed state of every metric across frames.
type Smoother struct {
	cfg   Config
	state l3metrics.Values
}

// NewSmoother returns a smoother starting at zero.
func NewSmoother(cfg Config) (*Smoother, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Smoother{cfg: cfg}, nil
}

// Alpha returns the factor applied to m.
func (s *Smoother) Alpha(m l3metrics.Metric) float64 {
	if DepthAxis(m) {
		return s.cfg.AlphaZ
	}
	return s.cfg.Alpha
}

// Update folds one frame of filtered raw values into the state and returns
// the new smoothed values.
func (s *Smoother) Update(raw l3metrics.Values) l3metrics.Values {
	for _, m := range l3metrics.All {
		a := s.Alpha(m)
		s.state[m] = a*(raw[m]*ScaleFactors[m]) + (1-a)*s.state[m]
	}
	return s.state
}

// Values returns the current smoothed state.
func (s *Smoother) Values() l3metrics.Values { return s.state }

// Reset zeroes the state.
func (s *Smoother) Reset() { s.state = l3metrics.Values{} }
