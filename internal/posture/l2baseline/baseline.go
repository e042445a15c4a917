package l2baseline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
)

// ErrCalibrationFailed is returned when the frame lacks a required position.
// The previous baseline, if any, is kept.
var ErrCalibrationFailed = errors.New("calibration failed")

// Baseline is the reference posture every later frame is measured against.
type Baseline struct {
	FaceZ             float64   `json:"face_z"`
	FaceY             float64   `json:"face_y"`
	ShoulderZ         float64   `json:"shoulder_z"`
	ShoulderY         float64   `json:"shoulder_y"`
	ChestZ            float64   `json:"chest_z"`
	ShoulderAsymmetry float64   `json:"shoulder_asymmetry"`
	NeckAngle         float64   `json:"neck_angle"`
	CapturedAt        time.Time `json:"captured_at"`
}

// Calibration holds at most one baseline. The zero value is uncalibrated.
type Calibration struct {
	baseline *Baseline
}

// Calibrated reports whether a baseline has been captured.
func (c *Calibration) Calibrated() bool { return c.baseline != nil }

// Baseline returns a copy of the current baseline.
func (c *Calibration) Baseline() (Baseline, bool) {
	if c.baseline == nil {
		return Baseline{}, false
	}
	return *c.baseline, true
}

// Capture stabilizes f and replaces the baseline wholesale. The returned
// report is informational: poor quality never blocks calibration.
func (c *Calibration) Capture(f *l1landmarks.Frame, s *l1landmarks.Stabilizer, faceSet l1landmarks.FaceIndexSet, headYWeight float64) (Report, error) {
	pos, err := s.Stabilize(f)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrCalibrationFailed, err)
	}
	report := Assess(f, s.Gate(), faceSet)

	b := &Baseline{
		FaceZ:             pos.FaceZ,
		FaceY:             pos.FaceY,
		ShoulderZ:         pos.ShoulderZ,
		ShoulderY:         pos.ShoulderY,
		ChestZ:            pos.ChestZ,
		ShoulderAsymmetry: math.Abs(pos.LeftShoulder.Y - pos.RightShoulder.Y),
		NeckAngle:         l1landmarks.NeckAngleDegrees(pos.FaceY, pos.FaceZ, pos.ShoulderY, pos.ShoulderZ, headYWeight),
		CapturedAt:        f.Timestamp,
	}
	c.baseline = b
	return report, nil
}

// Restore installs a previously captured baseline.
func (c *Calibration) Restore(b Baseline) {
	c.baseline = &b
}

// Clear returns to the uncalibrated state.
func (c *Calibration) Clear() { c.baseline = nil }
