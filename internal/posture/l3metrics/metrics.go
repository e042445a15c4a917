package l3metrics

import (
	"fmt"
	"math"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
	"github.com/banshee-data/posture.report/internal/posture/l2baseline"
)

// Metric identifies one tracked posture quantity.
type Metric int

const (
	FaceToShoulderZ Metric = iota
	FaceToShoulderY
	RelativeShoulderZ
	RelativeShoulderY
	ShoulderAsymmetry
	HeadTilt
	NeckAngle
	ShoulderForward

	NumMetrics
)

var metricNames = [NumMetrics]string{
	FaceToShoulderZ:   "faceToShoulderZ",
	FaceToShoulderY:   "faceToShoulderY",
	RelativeShoulderZ: "relativeShoulderZ",
	RelativeShoulderY: "relativeShoulderY",
	ShoulderAsymmetry: "shoulderAsymmetry",
	HeadTilt:          "headTilt",
	NeckAngle:         "neckAngle",
	ShoulderForward:   "shoulderForward",
}

// All lists every metric in index order.
var All = func() []Metric {
	out := make([]Metric, NumMetrics)
	for i := range out {
		out[i] = Metric(i)
	}
	return out
}()

func (m Metric) String() string {
	if m >= 0 && m < NumMetrics {
		return metricNames[m]
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

func (m Metric) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseMetric is the inverse of String.
func ParseMetric(s string) (Metric, error) {
	for i, name := range metricNames {
		if name == s {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

// Values holds one scalar per metric.
type Values [NumMetrics]float64

// Map returns the values keyed by metric name.
func (v Values) Map() map[string]float64 {
	out := make(map[string]float64, NumMetrics)
	for i, x := range v {
		out[metricNames[i]] = x
	}
	return out
}

// Derive computes the raw metrics of one frame against baseline b. Signs are
// chosen so that the "bad" direction is positive, except faceToShoulderY where
// the head dropping is negative.
func Derive(p l1landmarks.Positions, b l2baseline.Baseline, headYWeight float64) Values {
	var v Values

	shoulderMoveZ := p.ShoulderZ - b.ShoulderZ
	shoulderMoveY := p.ShoulderY - b.ShoulderY

	v[RelativeShoulderZ] = b.ShoulderZ - p.ShoulderZ
	v[RelativeShoulderY] = b.ShoulderY - p.ShoulderY
	v[FaceToShoulderZ] = shoulderMoveZ - (p.FaceZ - b.FaceZ)
	v[FaceToShoulderY] = shoulderMoveY - (p.FaceY - b.FaceY)

	v[ShoulderAsymmetry] = math.Abs(p.LeftShoulder.Y-p.RightShoulder.Y) - b.ShoulderAsymmetry

	if p.HasTemples {
		v[HeadTilt] = l1landmarks.HeadTiltDegrees(p.LeftTemple, p.RightTemple)
	}

	v[NeckAngle] = l1landmarks.NeckAngleDegrees(p.FaceY, p.FaceZ, p.ShoulderY, p.ShoulderZ, headYWeight) - b.NeckAngle

	v[ShoulderForward] = (p.ChestZ - b.ChestZ) - shoulderMoveZ

	return v
}
