package l6classify_test

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
)

func values(kv map[l3metrics.Metric]float64) l3metrics.Values {
	var v l3metrics.Values
	for m, x := range kv {
		v[m] = x
	}
	return v
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cfg := l6classify.DefaultConfig()
	tests := []struct {
		name string
		in   map[l3metrics.Metric]float64
		want []l6classify.Issue
	}{
		{"upright", nil, nil},
		{"slouch by shoulder forward", map[l3metrics.Metric]float64{l3metrics.ShoulderForward: 401},
			[]l6classify.Issue{l6classify.Slouching, l6classify.ShouldersForward}},
		{"slouch by shoulder drop", map[l3metrics.Metric]float64{l3metrics.RelativeShoulderY: -401},
			[]l6classify.Issue{l6classify.Slouching}},
		{"shoulder rise is not a slouch", map[l3metrics.Metric]float64{l3metrics.RelativeShoulderY: 900}, nil},
		{"threshold is exclusive", map[l3metrics.Metric]float64{l3metrics.ShoulderAsymmetry: 150}, nil},
		{"uneven", map[l3metrics.Metric]float64{l3metrics.ShoulderAsymmetry: 151},
			[]l6classify.Issue{l6classify.UnevenShoulders}},
		{"tilt left", map[l3metrics.Metric]float64{l3metrics.HeadTilt: -10.5},
			[]l6classify.Issue{l6classify.HeadTilted}},
		{"neck and tilt in order", map[l3metrics.Metric]float64{l3metrics.NeckAngle: 31, l3metrics.HeadTilt: 11},
			[]l6classify.Issue{l6classify.HeadTilted, l6classify.NeckForward}},
		{"neck backward", map[l3metrics.Metric]float64{l3metrics.NeckAngle: -80}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l6classify.Classify(values(tt.in), cfg))
		})
	}
}

func TestDisabledIssueNeverAppears(t *testing.T) {
	t.Parallel()

	cfg := l6classify.DefaultConfig()
	cfg.Enabled[l6classify.Slouching] = false
	s := values(map[l3metrics.Metric]float64{l3metrics.ShoulderForward: 1e6, l3metrics.RelativeShoulderY: -1e6})

	assert.Equal(t, []l6classify.Issue{l6classify.ShouldersForward}, l6classify.Classify(s, cfg))
	assert.True(t, l6classify.Triggered(l6classify.Slouching, s, cfg))
	assert.False(t, l6classify.MetricTriggered(l3metrics.RelativeShoulderY, s, cfg))
	assert.True(t, l6classify.MetricTriggered(l3metrics.ShoulderForward, s, cfg))
}

func TestSharedSlouchThreshold(t *testing.T) {
	t.Parallel()

	cfg := l6classify.DefaultConfig()
	cfg.Thresholds[l6classify.ShouldersForward] = 1000
	s := values(map[l3metrics.Metric]float64{l3metrics.ShoulderForward: 500})

	assert.Equal(t, []l6classify.Issue{l6classify.Slouching}, l6classify.Classify(s, cfg))
}

func TestReadingsAgreeWithClassify(t *testing.T) {
	t.Parallel()

	cfg := l6classify.DefaultConfig()
	s := values(map[l3metrics.Metric]float64{
		l3metrics.RelativeShoulderY: -420,
		l3metrics.HeadTilt:          4,
		l3metrics.FaceToShoulderZ:   9999,
	})

	r := l6classify.Readings(s, cfg)
	assert.True(t, r[l3metrics.RelativeShoulderY].Triggered)
	assert.False(t, r[l3metrics.HeadTilt].Triggered)
	assert.False(t, r[l3metrics.FaceToShoulderZ].Triggered, "no threshold on faceToShoulderZ")
	assert.Equal(t, -420.0, r[l3metrics.RelativeShoulderY].Value)

	issues := l6classify.Classify(s, cfg)
	for _, ir := range l6classify.IssueReadings(s, cfg) {
		assert.Equal(t, slices.Contains(issues, ir.Issue), ir.Triggered, ir.Issue.String())
	}
}

func TestDisplayValue(t *testing.T) {
	t.Parallel()

	s := values(map[l3metrics.Metric]float64{l3metrics.ShoulderForward: 120, l3metrics.RelativeShoulderY: -300})
	assert.Equal(t, 300.0, l6classify.DisplayValue(l6classify.Slouching, s))

	s = values(map[l3metrics.Metric]float64{l3metrics.ShoulderForward: 120, l3metrics.RelativeShoulderY: 300})
	assert.Equal(t, 120.0, l6classify.DisplayValue(l6classify.Slouching, s))

	s = values(map[l3metrics.Metric]float64{l3metrics.ShoulderForward: -50})
	assert.Equal(t, 0.0, l6classify.DisplayValue(l6classify.Slouching, s))
}

func TestIssueLabels(t *testing.T) {
	t.Parallel()

	for _, i := range l6classify.AllIssues {
		got, err := l6classify.ParseIssue(i.String())
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	b, err := json.Marshal([]l6classify.Issue{l6classify.HeadTilted})
	require.NoError(t, err)
	assert.Equal(t, `["Head Tilted"]`, string(b))

	var back []l6classify.Issue
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []l6classify.Issue{l6classify.HeadTilted}, back)
}
