package l4filter_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/l4filter"
)

func newRejector(t *testing.T, size int, k float64) *l4filter.OutlierRejector {
	t.Helper()
	cfg := l4filter.DefaultOutlierConfig()
	cfg.HistorySize = size
	cfg.StdDevs = k
	r, err := l4filter.NewOutlierRejector(cfg)
	require.NoError(t, err)
	return r
}

func TestDeadZoneIsExact(t *testing.T) {
	t.Parallel()

	d := l4filter.DeadZone{Threshold: 0.0006}
	assert.Equal(t, 0.0, d.Clamp(0.00059))
	assert.Equal(t, 0.0, d.Clamp(-0.00059))
	assert.Equal(t, 0.0006, d.Clamp(0.0006))
	assert.Equal(t, -0.01, d.Clamp(-0.01))

	var v l3metrics.Values
	for i := range v {
		v[i] = 0.0001
	}
	d.Apply(&v)
	assert.Equal(t, 0.0, v[l3metrics.FaceToShoulderZ])
	assert.Equal(t, 0.0, v[l3metrics.RelativeShoulderZ])
	assert.Equal(t, 0.0001, v[l3metrics.ShoulderForward], "shoulderForward has no dead zone")
}

func TestOutlierWarmupPassesThrough(t *testing.T) {
	t.Parallel()

	r := newRejector(t, 10, 3)
	for _, v := range []float64{1, 100, -50, 3, 1e6} {
		got, rejected := r.Filter(l3metrics.HeadTilt, v)
		assert.Equal(t, v, got)
		assert.False(t, rejected)
	}
	assert.Len(t, r.History(l3metrics.HeadTilt), 5)
}

func TestOutlierFlatHistoryUsesStdDevFloor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    float64
		want     float64
		rejected bool
	}{
		{"within floor", 10.0029, 10.0029, false},
		{"beyond floor", 10.0031, 10, true},
		{"far below", 3, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRejector(t, 10, 3)
			for i := 0; i < 5; i++ {
				r.Filter(l3metrics.NeckAngle, 10)
			}
			got, rejected := r.Filter(l3metrics.NeckAngle, tt.value)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.Equal(t, tt.rejected, rejected)

			// The raw value is recorded either way.
			h := r.History(l3metrics.NeckAngle)
			assert.Equal(t, tt.value, h[len(h)-1])
		})
	}
}

func TestOutlierReturnsPreviousEntry(t *testing.T) {
	t.Parallel()

	r := newRejector(t, 10, 2.5)
	for _, v := range []float64{1, 2, 1, 2, 1, 2} {
		r.Filter(l3metrics.ShoulderForward, v)
	}
	got, rejected := r.Filter(l3metrics.ShoulderForward, 50)
	require.True(t, rejected)
	assert.Equal(t, 2.0, got)
}

func TestOutlierHistoryBounded(t *testing.T) {
	t.Parallel()

	r := newRejector(t, 6, 3)
	for i := 0; i < 20; i++ {
		r.Filter(l3metrics.RelativeShoulderY, float64(i))
	}
	if diff := cmp.Diff([]float64{14, 15, 16, 17, 18, 19}, r.History(l3metrics.RelativeShoulderY)); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestApplySkipsFaceToShoulderY(t *testing.T) {
	t.Parallel()

	r := newRejector(t, 10, 3)
	var v l3metrics.Values
	for i := 0; i < 8; i++ {
		r.Apply(&v)
	}
	spike := v
	for i := range spike {
		spike[i] = 99
	}
	rejected := r.Apply(&spike)

	assert.False(t, rejected[l3metrics.FaceToShoulderY])
	assert.Equal(t, 99.0, spike[l3metrics.FaceToShoulderY])
	assert.Empty(t, r.History(l3metrics.FaceToShoulderY))
	for _, m := range l3metrics.All {
		if m == l3metrics.FaceToShoulderY {
			continue
		}
		assert.True(t, rejected[m], m.String())
		assert.Equal(t, 0.0, spike[m], m.String())
	}
}

func TestSetLimitsKeepsRecentHistory(t *testing.T) {
	t.Parallel()

	r := newRejector(t, 20, 3)
	for i := 0; i < 15; i++ {
		r.Filter(l3metrics.HeadTilt, float64(i))
	}
	require.NoError(t, r.SetLimits(10, 2.5))
	assert.Equal(t, 10, r.Config().HistorySize)
	assert.Equal(t, 2.5, r.Config().StdDevs)
	assert.Equal(t, []float64{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, r.History(l3metrics.HeadTilt))

	assert.Error(t, r.SetLimits(3, 2.5))
	assert.Error(t, r.SetLimits(10, 0))
	assert.Equal(t, 10, r.Config().HistorySize)

	r.Reset()
	assert.Empty(t, r.History(l3metrics.HeadTilt))
}

func TestNoiseFilterOrder(t *testing.T) {
	t.Parallel()

	f := &l4filter.NoiseFilter{
		DeadZone: l4filter.DeadZone{Threshold: 0.0006},
		Outliers: newRejector(t, 10, 3),
	}
	var raw l3metrics.Values
	raw[l3metrics.RelativeShoulderZ] = 0.0003
	got, _ := f.Apply(raw)
	assert.Equal(t, 0.0, got[l3metrics.RelativeShoulderZ])
	assert.Equal(t, []float64{0}, f.Outliers.History(l3metrics.RelativeShoulderZ))
}

func TestOutlierConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := l4filter.DefaultOutlierConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.MinStdDev = 0
	assert.Error(t, bad.Validate())

	_, err := l4filter.NewOutlierRejector(bad)
	assert.Error(t, err)
}
