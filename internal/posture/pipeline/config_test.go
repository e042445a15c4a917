package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
)

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigFromTuning(t *testing.T) {
	t.Parallel()
	perfs := config.DefaultPerformancePresets().Presets
	metrics := config.DefaultMetricPresets().Presets

	alpha, dz, vis := 0.5, 0.001, 0.6
	cooldown := "1m"
	tuning := &config.TuningConfig{
		Alpha:         &alpha,
		DeadZoneZ:     &dz,
		MinVisibility: &vis,
		Notifications: &config.NotificationConfig{Cooldown: &cooldown},
	}

	cfg := ConfigFromTuning(tuning,
		PerformanceFromPreset("LOW", perfs["LOW"]),
		ThresholdsFromPreset("Sensitive", metrics["Sensitive"]))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.5, cfg.Smooth.Alpha)
	assert.Equal(t, 0.2, cfg.Smooth.AlphaZ)
	assert.Equal(t, 0.001, cfg.DeadZone)
	assert.Equal(t, 0.6, cfg.Gate.MinVisibility)
	assert.Equal(t, 0.7, cfg.Gate.MinPresence)
	assert.Equal(t, time.Minute, cfg.Alerts.Cooldown)
	assert.Equal(t, 5*time.Second, cfg.Alerts.MinDuration)

	assert.Equal(t, Performance{
		Name: "LOW", FrameSkip: 6, HistorySize: 10, StdDevs: 2.5, FaceIndexSet: l1landmarks.FaceIndexLow,
	}, cfg.Performance)
	assert.Equal(t, "Sensitive", cfg.Thresholds.Name)
	assert.Equal(t, 5.0, cfg.Thresholds.Config.Thresholds[l6classify.HeadTilted])
}

func TestThresholdsFromPresetEnableFlags(t *testing.T) {
	t.Parallel()
	off := false
	p := config.MetricPreset{Slouching: 1, EnableNeckForward: &off}
	th := ThresholdsFromPreset("custom", p)
	assert.False(t, th.Config.Enabled[l6classify.NeckForward])
	assert.True(t, th.Config.Enabled[l6classify.Slouching])
}

func TestPerformanceFromPresetFaceSets(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]l1landmarks.FaceIndexSet{
		"LOW":    l1landmarks.FaceIndexLow,
		"MEDIUM": l1landmarks.FaceIndexMedium,
		"HIGH":   l1landmarks.FaceIndexHigh,
	} {
		p := PerformanceFromPreset(name, config.DefaultPerformancePresets().Presets[name])
		assert.Equal(t, want, p.FaceIndexSet, name)
		assert.NoError(t, p.Validate(), name)
	}
}
