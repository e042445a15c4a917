package pipeline

import (
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l2baseline"
	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
)

// Snapshot is an immutable view of the engine published after every frame
// and command. Readers never touch the Engine directly.
type Snapshot struct {
	UpdatedAt time.Time `json:"updated_at"`
	LastFrame time.Time `json:"last_frame"`
	Decision  Decision  `json:"decision"`
	FeedLive  bool      `json:"feed_live"`

	Calibrated  bool                 `json:"calibrated"`
	Baseline    *l2baseline.Baseline `json:"baseline,omitempty"`
	Calibration *l2baseline.Report   `json:"calibration,omitempty"`

	Issues        []l6classify.Issue                      `json:"issues"`
	Readings      [l3metrics.NumMetrics]l6classify.Reading `json:"readings"`
	IssueReadings []l6classify.IssueReading               `json:"issue_readings"`

	MetricPreset      string `json:"metric_preset"`
	PerformancePreset string `json:"performance_preset"`

	Stats   Stats  `json:"stats"`
	Dropped uint64 `json:"dropped_frames"`
}

func (e *Engine) snapshot(now time.Time, res FrameResult) *Snapshot {
	s := &Snapshot{
		UpdatedAt:         now,
		LastFrame:         res.At,
		Decision:          res.Decision,
		Calibrated:        e.Calibrated(),
		Issues:            res.Issues,
		MetricPreset:      e.cfg.Thresholds.Name,
		PerformancePreset: e.cfg.Performance.Name,
	}
	if b, ok := e.Baseline(); ok {
		s.Baseline = &b
	}
	if r, ok := e.CalibrationReport(); ok {
		s.Calibration = &r
	}

	smoothed := e.Smoothed()
	thresholds := e.cfg.Thresholds.Config
	if s.Calibrated {
		// Commands between frames (preset changes) re-classify here so the
		// published view matches the thresholds now in force.
		s.Issues = l6classify.Classify(smoothed, thresholds)
	}
	s.Readings = l6classify.Readings(smoothed, thresholds)
	s.IssueReadings = l6classify.IssueReadings(smoothed, thresholds)

	statsAt := res.At
	if statsAt.IsZero() {
		statsAt = now
	}
	s.Stats = e.Stats(statsAt)
	return s
}
