package config

import (
	"errors"
	"fmt"

	"github.com/banshee-data/posture.report/internal/fsutil"
)

// MetricPreset holds the five classifier thresholds and their enable
// flags. Thresholds are in the smoothed display scale (degrees for head
// tilt). A nil enable flag means enabled.
type MetricPreset struct {
	Slouching        float64 `json:"slouching"`
	UnevenShoulders  float64 `json:"uneven_shoulders"`
	HeadTilt         float64 `json:"head_tilt"`
	NeckForward      float64 `json:"neck_forward"`
	ShouldersForward float64 `json:"shoulders_forward"`

	EnableSlouching        *bool `json:"enable_slouching,omitempty"`
	EnableUnevenShoulders  *bool `json:"enable_uneven_shoulders,omitempty"`
	EnableHeadTilt         *bool `json:"enable_head_tilt,omitempty"`
	EnableNeckForward      *bool `json:"enable_neck_forward,omitempty"`
	EnableShouldersForward *bool `json:"enable_shoulders_forward,omitempty"`
}

// Thresholds returns the thresholds in issue order: slouching, uneven
// shoulders, head tilt, neck forward, shoulders forward.
func (p MetricPreset) Thresholds() [5]float64 {
	return [5]float64{p.Slouching, p.UnevenShoulders, p.HeadTilt, p.NeckForward, p.ShouldersForward}
}

// Enabled returns the enable flags in the same order as Thresholds.
func (p MetricPreset) Enabled() [5]bool {
	return [5]bool{
		boolOr(p.EnableSlouching, true),
		boolOr(p.EnableUnevenShoulders, true),
		boolOr(p.EnableHeadTilt, true),
		boolOr(p.EnableNeckForward, true),
		boolOr(p.EnableShouldersForward, true),
	}
}

// Validate rejects negative thresholds.
func (p MetricPreset) Validate() error {
	names := [5]string{"slouching", "uneven_shoulders", "head_tilt", "neck_forward", "shoulders_forward"}
	var errs []error
	for i, v := range p.Thresholds() {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative, got %f", names[i], v))
		}
	}
	return errors.Join(errs...)
}

// PerformancePreset trades responsiveness for CPU. Only the frame skip,
// history size, outlier width and face landmark count affect the
// pipeline; the remaining fields are carried for display clients.
type PerformancePreset struct {
	ProcessingFPS          int     `json:"processing_fps"`
	DisplayFPS             int     `json:"display_fps"`
	FrameSkipInterval      int     `json:"frame_skip_interval"`
	ModelComplexity        int     `json:"model_complexity"`
	HistorySize            int     `json:"history_size"`
	OutlierStdDeviations   float64 `json:"outlier_std_deviations"`
	ShowVisualGuides       bool    `json:"show_visual_guides"`
	FaceMeshDrawingEnabled bool    `json:"face_mesh_drawing_enabled"`
	FaceLandmarkCount      int     `json:"face_landmark_count"`
}

// Validate checks the fields the pipeline depends on.
func (p PerformancePreset) Validate() error {
	var errs []error
	if p.FrameSkipInterval < 1 {
		errs = append(errs, fmt.Errorf("frame_skip_interval must be at least 1, got %d", p.FrameSkipInterval))
	}
	if p.HistorySize < 5 || p.HistorySize > 1000 {
		errs = append(errs, fmt.Errorf("history_size must be between 5 and 1000, got %d", p.HistorySize))
	}
	if p.OutlierStdDeviations <= 0 {
		errs = append(errs, fmt.Errorf("outlier_std_deviations must be positive, got %f", p.OutlierStdDeviations))
	}
	if p.FaceLandmarkCount < 1 {
		errs = append(errs, fmt.Errorf("face_landmark_count must be positive, got %d", p.FaceLandmarkCount))
	}
	if p.ProcessingFPS < 0 || p.DisplayFPS < 0 {
		errs = append(errs, errors.New("fps values must be non-negative"))
	}
	return errors.Join(errs...)
}

// DefaultMetricPresets returns the built-in metric presets.
func DefaultMetricPresets() PresetFile[MetricPreset] {
	return PresetFile[MetricPreset]{
		Version:       PresetFileVersion,
		DefaultPreset: "Default",
		Presets: map[string]MetricPreset{
			"Default":   {Slouching: 400, UnevenShoulders: 150, HeadTilt: 10, NeckForward: 30, ShouldersForward: 400},
			"Sensitive": {Slouching: 300, UnevenShoulders: 100, HeadTilt: 5, NeckForward: 20, ShouldersForward: 300},
			"Relaxed":   {Slouching: 500, UnevenShoulders: 200, HeadTilt: 15, NeckForward: 40, ShouldersForward: 500},
		},
	}
}

// DefaultPerformancePresets returns the built-in performance presets.
func DefaultPerformancePresets() PresetFile[PerformancePreset] {
	return PresetFile[PerformancePreset]{
		Version:       PresetFileVersion,
		DefaultPreset: "MEDIUM",
		Presets: map[string]PerformancePreset{
			"LOW": {
				ProcessingFPS: 5, DisplayFPS: 5, FrameSkipInterval: 6, ModelComplexity: 0,
				HistorySize: 10, OutlierStdDeviations: 2.5,
				ShowVisualGuides: false, FaceMeshDrawingEnabled: true, FaceLandmarkCount: 5,
			},
			"MEDIUM": {
				ProcessingFPS: 15, DisplayFPS: 15, FrameSkipInterval: 2, ModelComplexity: 1,
				HistorySize: 20, OutlierStdDeviations: 3.0,
				ShowVisualGuides: true, FaceMeshDrawingEnabled: true, FaceLandmarkCount: 20,
			},
			"HIGH": {
				ProcessingFPS: 30, DisplayFPS: 30, FrameSkipInterval: 1, ModelComplexity: 2,
				HistorySize: 30, OutlierStdDeviations: 3.0,
				ShowVisualGuides: true, FaceMeshDrawingEnabled: true, FaceLandmarkCount: 40,
			},
		},
	}
}

// NewMetricPresetStore returns a store for metric presets at path.
func NewMetricPresetStore(fsys fsutil.FileSystem, path string) *PresetStore[MetricPreset] {
	return NewPresetStore(fsys, path, "metric", DefaultMetricPresets(), MetricPreset.Validate)
}

// NewPerformancePresetStore returns a store for performance presets at path.
func NewPerformancePresetStore(fsys fsutil.FileSystem, path string) *PresetStore[PerformancePreset] {
	return NewPresetStore(fsys, path, "performance", DefaultPerformancePresets(), PerformancePreset.Validate)
}
