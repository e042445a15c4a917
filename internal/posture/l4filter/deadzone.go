package l4filter

import (
	"math"

	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
)

// DeadZoneMetrics are the depth metrics subject to the dead zone.
var DeadZoneMetrics = []l3metrics.Metric{
	l3metrics.FaceToShoulderZ,
	l3metrics.RelativeShoulderZ,
}

// DeadZone zeroes values whose magnitude is below Threshold.
type DeadZone struct {
	Threshold float64
}

// Clamp returns exactly 0 for |v| < Threshold, v otherwise.
func (d DeadZone) Clamp(v float64) float64 {
	if math.Abs(v) < d.Threshold {
		return 0
	}
	return v
}

// Apply clamps the dead-zone metrics of v in place.
func (d DeadZone) Apply(v *l3metrics.Values) {
	for _, m := range DeadZoneMetrics {
		v[m] = d.Clamp(v[m])
	}
}
