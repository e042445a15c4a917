package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig is the root configuration for the posture pipeline. Every
// field is optional; Get* accessors supply the default for nil fields, so
// partial files are safe.
type TuningConfig struct {
	// Landmark gate
	MinVisibility *float64 `json:"min_visibility,omitempty"`
	MinPresence   *float64 `json:"min_presence,omitempty"`

	// Filtering and smoothing
	Alpha       *float64 `json:"alpha,omitempty"`
	AlphaZ      *float64 `json:"alpha_z,omitempty"`
	DeadZoneZ   *float64 `json:"dead_zone_z,omitempty"`
	HeadYWeight *float64 `json:"head_y_weight,omitempty"`
	MinStdDev   *float64 `json:"min_stddev,omitempty"`

	// Presets. An empty preset name selects the preset file's default.
	PerformancePreset      *string `json:"performance_preset,omitempty"`
	MetricPreset           *string `json:"metric_preset,omitempty"`
	PerformancePresetsFile *string `json:"performance_presets_file,omitempty"`
	MetricPresetsFile      *string `json:"metric_presets_file,omitempty"`

	// Runtime
	FrameQueueSize *int `json:"frame_queue_size,omitempty"`
	ChartSamples   *int `json:"chart_samples,omitempty"`

	Notifications *NotificationConfig `json:"notifications,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// default, suitable for writing out as a starting file.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		MinVisibility:          ptrFloat64(empty.GetMinVisibility()),
		MinPresence:            ptrFloat64(empty.GetMinPresence()),
		Alpha:                  ptrFloat64(empty.GetAlpha()),
		AlphaZ:                 ptrFloat64(empty.GetAlphaZ()),
		DeadZoneZ:              ptrFloat64(empty.GetDeadZoneZ()),
		HeadYWeight:            ptrFloat64(empty.GetHeadYWeight()),
		MinStdDev:              ptrFloat64(empty.GetMinStdDev()),
		PerformancePreset:      ptrString(""),
		MetricPreset:           ptrString(""),
		PerformancePresetsFile: ptrString(empty.GetPerformancePresetsFile()),
		MetricPresetsFile:      ptrString(empty.GetMetricPresetsFile()),
		FrameQueueSize:         ptrInt(empty.GetFrameQueueSize()),
		ChartSamples:           ptrInt(empty.GetChartSamples()),
		Notifications:          DefaultNotificationConfig(),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	unit := []struct {
		name string
		v    *float64
	}{
		{"min_visibility", c.MinVisibility},
		{"min_presence", c.MinPresence},
		{"head_y_weight", c.HeadYWeight},
	}
	for _, f := range unit {
		if f.v != nil && (*f.v < 0 || *f.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", f.name, *f.v)
		}
	}

	alphas := []struct {
		name string
		v    *float64
	}{
		{"alpha", c.Alpha},
		{"alpha_z", c.AlphaZ},
	}
	for _, f := range alphas {
		if f.v != nil && (*f.v <= 0 || *f.v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %f", f.name, *f.v)
		}
	}

	if c.DeadZoneZ != nil && *c.DeadZoneZ < 0 {
		return fmt.Errorf("dead_zone_z must be non-negative, got %f", *c.DeadZoneZ)
	}
	if c.MinStdDev != nil && *c.MinStdDev <= 0 {
		return fmt.Errorf("min_stddev must be positive, got %f", *c.MinStdDev)
	}
	if c.FrameQueueSize != nil && *c.FrameQueueSize < 1 {
		return fmt.Errorf("frame_queue_size must be >= 1, got %d", *c.FrameQueueSize)
	}
	if c.ChartSamples != nil && *c.ChartSamples < 1 {
		return fmt.Errorf("chart_samples must be >= 1, got %d", *c.ChartSamples)
	}

	if c.Notifications != nil {
		if err := c.Notifications.Validate(); err != nil {
			return fmt.Errorf("notifications: %w", err)
		}
	}
	return nil
}

// GetMinVisibility returns the min_visibility value or the default.
func (c *TuningConfig) GetMinVisibility() float64 {
	if c.MinVisibility == nil {
		return 0.7
	}
	return *c.MinVisibility
}

// GetMinPresence returns the min_presence value or the default.
func (c *TuningConfig) GetMinPresence() float64 {
	if c.MinPresence == nil {
		return 0.7
	}
	return *c.MinPresence
}

// GetAlpha returns the alpha value or the default.
func (c *TuningConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return 0.25
	}
	return *c.Alpha
}

// GetAlphaZ returns the alpha_z value or the default.
func (c *TuningConfig) GetAlphaZ() float64 {
	if c.AlphaZ == nil {
		return 0.2
	}
	return *c.AlphaZ
}

// GetDeadZoneZ returns the dead_zone_z value or the default.
func (c *TuningConfig) GetDeadZoneZ() float64 {
	if c.DeadZoneZ == nil {
		return 0.0006
	}
	return *c.DeadZoneZ
}

// GetHeadYWeight returns the head_y_weight value or the default.
func (c *TuningConfig) GetHeadYWeight() float64 {
	if c.HeadYWeight == nil {
		return 0.8
	}
	return *c.HeadYWeight
}

// GetMinStdDev returns the min_stddev value or the default.
func (c *TuningConfig) GetMinStdDev() float64 {
	if c.MinStdDev == nil {
		return 0.001
	}
	return *c.MinStdDev
}

func (c *TuningConfig) GetPerformancePreset() string {
	if c.PerformancePreset == nil {
		return ""
	}
	return *c.PerformancePreset
}

func (c *TuningConfig) GetMetricPreset() string {
	if c.MetricPreset == nil {
		return ""
	}
	return *c.MetricPreset
}

func (c *TuningConfig) GetPerformancePresetsFile() string {
	if c.PerformancePresetsFile == nil || *c.PerformancePresetsFile == "" {
		return filepath.Join("presets", "performance_presets.json")
	}
	return *c.PerformancePresetsFile
}

func (c *TuningConfig) GetMetricPresetsFile() string {
	if c.MetricPresetsFile == nil || *c.MetricPresetsFile == "" {
		return filepath.Join("presets", "metric_presets.json")
	}
	return *c.MetricPresetsFile
}

// GetFrameQueueSize returns the runner's inbound frame buffer size.
func (c *TuningConfig) GetFrameQueueSize() int {
	if c.FrameQueueSize == nil {
		return 64
	}
	return *c.FrameQueueSize
}

// GetChartSamples returns how many recent samples the debug chart keeps.
func (c *TuningConfig) GetChartSamples() int {
	if c.ChartSamples == nil {
		return 300
	}
	return *c.ChartSamples
}

// GetNotifications never returns nil.
func (c *TuningConfig) GetNotifications() *NotificationConfig {
	if c.Notifications == nil {
		return &NotificationConfig{}
	}
	return c.Notifications
}
