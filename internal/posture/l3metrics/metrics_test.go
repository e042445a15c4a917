package l3metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
	"github.com/banshee-data/posture.report/internal/posture/l2baseline"
	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/testutil"
)

func calibrated(t *testing.T, spec testutil.FrameSpec) (l2baseline.Baseline, *l1landmarks.Stabilizer) {
	t.Helper()
	s := l1landmarks.NewStabilizer(l1landmarks.DefaultGate(), l1landmarks.FaceIndexMedium)
	var c l2baseline.Calibration
	_, err := c.Capture(testutil.Frame(spec), s, l1landmarks.FaceIndexMedium, 0.8)
	require.NoError(t, err)
	b, _ := c.Baseline()
	return b, s
}

func derive(t *testing.T, s *l1landmarks.Stabilizer, b l2baseline.Baseline, spec testutil.FrameSpec) l3metrics.Values {
	t.Helper()
	p, err := s.Stabilize(testutil.Frame(spec))
	require.NoError(t, err)
	return l3metrics.Derive(p, b, 0.8)
}

func TestDeriveAtBaselineIsZero(t *testing.T) {
	t.Parallel()

	spec := testutil.Upright()
	spec.ShoulderTilt = 0.03
	b, s := calibrated(t, spec)
	v := derive(t, s, b, spec)
	for _, m := range l3metrics.All {
		assert.InDelta(t, 0, v[m], 1e-9, m.String())
	}
}

func TestDeriveForwardLean(t *testing.T) {
	t.Parallel()

	b, s := calibrated(t, testutil.Upright())

	cur := testutil.Upright()
	cur.ShoulderZ = 0.05
	cur.FaceZ = -0.12
	v := derive(t, s, b, cur)

	// Shoulders moved -0.05, face moved -0.07.
	assert.InDelta(t, 0.05, v[l3metrics.RelativeShoulderZ], 1e-12)
	assert.InDelta(t, -0.05+0.07, v[l3metrics.FaceToShoulderZ], 1e-12)
	// Chest moves half as far as the shoulders: -0.025 - (-0.05).
	assert.InDelta(t, 0.025, v[l3metrics.ShoulderForward], 1e-12)
	assert.InDelta(t, 0, v[l3metrics.RelativeShoulderY], 1e-12)
}

func TestDeriveVerticalAndAsymmetry(t *testing.T) {
	t.Parallel()

	b, s := calibrated(t, testutil.Upright())

	cur := testutil.Upright()
	cur.ShoulderY = 0.65
	cur.FaceY = 0.40
	cur.ShoulderTilt = -0.04
	cur.TempleDY = 0.1
	v := derive(t, s, b, cur)

	assert.InDelta(t, -0.05, v[l3metrics.RelativeShoulderY], 1e-12)
	assert.InDelta(t, 0.05-0.10, v[l3metrics.FaceToShoulderY], 1e-12)
	assert.InDelta(t, 0.04, v[l3metrics.ShoulderAsymmetry], 1e-12)
	assert.Greater(t, v[l3metrics.HeadTilt], 0.0)

	want := l1landmarks.NeckAngleDegrees(0.40, cur.FaceZ, 0.65, cur.ShoulderZ, 0.8) - b.NeckAngle
	assert.InDelta(t, want, v[l3metrics.NeckAngle], 1e-12)
}

func TestDeriveHeadTiltNeedsTemples(t *testing.T) {
	t.Parallel()

	b, s := calibrated(t, testutil.Upright())
	cur := testutil.Upright()
	cur.TempleDY = 0.2
	f := testutil.Frame(cur)
	f.Face = f.Face[:400]

	p, err := s.Stabilize(f)
	require.NoError(t, err)
	assert.False(t, p.HasTemples)
	assert.Equal(t, 0.0, l3metrics.Derive(p, b, 0.8)[l3metrics.HeadTilt])
}

func TestMetricNames(t *testing.T) {
	t.Parallel()

	assert.Len(t, l3metrics.All, int(l3metrics.NumMetrics))
	for _, m := range l3metrics.All {
		got, err := l3metrics.ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := l3metrics.ParseMetric("spine")
	assert.Error(t, err)

	var v l3metrics.Values
	v[l3metrics.NeckAngle] = 12
	assert.Equal(t, 12.0, v.Map()["neckAngle"])
}
