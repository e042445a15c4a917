package l4filter

import "github.com/banshee-data/posture.report/internal/posture/l3metrics"

// NoiseFilter runs the dead zone then the outlier rejector.
type NoiseFilter struct {
	DeadZone DeadZone
	Outliers *OutlierRejector
}

// Apply returns the filtered values and which metrics were rejected.
func (f *NoiseFilter) Apply(raw l3metrics.Values) (l3metrics.Values, [l3metrics.NumMetrics]bool) {
	v := raw
	f.DeadZone.Apply(&v)
	rejected := f.Outliers.Apply(&v)
	return v, rejected
}
