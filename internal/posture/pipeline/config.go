package pipeline

import (
	"errors"
	"fmt"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
	"github.com/banshee-data/posture.report/internal/posture/l4filter"
	"github.com/banshee-data/posture.report/internal/posture/l5smooth"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
)

// Performance is the part of a performance preset the engine acts on.
type Performance struct {
	Name         string
	FrameSkip    int // Process every Nth frame
	HistorySize  int
	StdDevs      float64
	FaceIndexSet l1landmarks.FaceIndexSet
}

// Validate rejects settings the engine cannot run with.
func (p Performance) Validate() error {
	if p.FrameSkip < 1 {
		return fmt.Errorf("frame skip must be >= 1, got %d", p.FrameSkip)
	}
	if p.HistorySize < 1 {
		return fmt.Errorf("history size must be >= 1, got %d", p.HistorySize)
	}
	if p.StdDevs <= 0 {
		return fmt.Errorf("std devs must be positive, got %f", p.StdDevs)
	}
	return nil
}

// Thresholds is a named classifier configuration.
type Thresholds struct {
	Name   string
	Config l6classify.Config
}

// Config holds everything needed to build an Engine.
type Config struct {
	Gate        l1landmarks.Gate
	HeadYWeight float64
	DeadZone    float64
	Outlier     l4filter.OutlierConfig
	Smooth      l5smooth.Config
	Alerts      l7alerts.Config

	Performance Performance
	Thresholds  Thresholds
}

// DefaultConfig returns the MEDIUM performance preset with the Default
// metric preset.
func DefaultConfig() Config {
	out := l4filter.DefaultOutlierConfig()
	return Config{
		Gate:        l1landmarks.DefaultGate(),
		HeadYWeight: 0.8,
		DeadZone:    0.0006,
		Outlier:     out,
		Smooth:      l5smooth.DefaultConfig(),
		Alerts:      l7alerts.DefaultConfig(),
		Performance: Performance{
			Name:         "MEDIUM",
			FrameSkip:    2,
			HistorySize:  out.HistorySize,
			StdDevs:      out.StdDevs,
			FaceIndexSet: l1landmarks.FaceIndexMedium,
		},
		Thresholds: Thresholds{Name: "Default", Config: l6classify.DefaultConfig()},
	}
}

// Validate checks every sub-configuration.
func (c Config) Validate() error {
	var errs []error
	if err := c.Smooth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("smoothing: %w", err))
	}
	if err := c.Alerts.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("alerts: %w", err))
	}
	if err := c.Performance.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("performance: %w", err))
	}
	out := c.Outlier
	out.HistorySize, out.StdDevs = c.Performance.HistorySize, c.Performance.StdDevs
	if err := out.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("outliers: %w", err))
	}
	if c.DeadZone < 0 {
		errs = append(errs, fmt.Errorf("dead zone must be non-negative, got %f", c.DeadZone))
	}
	return errors.Join(errs...)
}

// PerformanceFromPreset converts a stored performance preset.
func PerformanceFromPreset(name string, p config.PerformancePreset) Performance {
	return Performance{
		Name:         name,
		FrameSkip:    p.FrameSkipInterval,
		HistorySize:  p.HistorySize,
		StdDevs:      p.OutlierStdDeviations,
		FaceIndexSet: l1landmarks.FaceIndexSetForCount(p.FaceLandmarkCount),
	}
}

// ThresholdsFromPreset converts a stored metric preset.
func ThresholdsFromPreset(name string, p config.MetricPreset) Thresholds {
	return Thresholds{
		Name: name,
		Config: l6classify.Config{
			Thresholds: p.Thresholds(),
			Enabled:    p.Enabled(),
		},
	}
}

// AlertsFromSettings extracts the debounce timings.
func AlertsFromSettings(s config.NotificationSettings) l7alerts.Config {
	return l7alerts.Config{MinDuration: s.MinDuration, Cooldown: s.Cooldown}
}

// ConfigFromTuning builds an engine configuration from the tuning file and
// the selected presets.
func ConfigFromTuning(t *config.TuningConfig, perf Performance, thresholds Thresholds) Config {
	cfg := DefaultConfig()
	cfg.Gate = l1landmarks.Gate{MinVisibility: t.GetMinVisibility(), MinPresence: t.GetMinPresence()}
	cfg.HeadYWeight = t.GetHeadYWeight()
	cfg.DeadZone = t.GetDeadZoneZ()
	cfg.Outlier.MinStdDev = t.GetMinStdDev()
	cfg.Smooth = l5smooth.Config{Alpha: t.GetAlpha(), AlphaZ: t.GetAlphaZ()}
	cfg.Alerts = AlertsFromSettings(t.GetNotifications().Settings())
	cfg.Performance = perf
	cfg.Thresholds = thresholds
	return cfg
}
