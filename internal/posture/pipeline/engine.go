package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
	"github.com/banshee-data/posture.report/internal/posture/l2baseline"
	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/l4filter"
	"github.com/banshee-data/posture.report/internal/posture/l5smooth"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
)

// Decision says how a frame was handled.
type Decision int

const (
	// DecisionUncalibrated: no baseline yet, nothing was computed.
	DecisionUncalibrated Decision = iota
	// DecisionProcessed: the frame ran through every layer.
	DecisionProcessed
	// DecisionCached: frame skip; the last computed result was reused.
	DecisionCached
	// DecisionUnavailable: the frame was due but its landmarks could not
	// be stabilized. Smoothed state is unchanged.
	DecisionUnavailable
)

func (d Decision) String() string {
	switch d {
	case DecisionUncalibrated:
		return "uncalibrated"
	case DecisionProcessed:
		return "processed"
	case DecisionCached:
		return "cached"
	case DecisionUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

func (d Decision) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// LastComputedResult is the output of the most recent full pipeline pass.
// Skipped frames reuse it unchanged.
type LastComputedResult struct {
	Valid    bool
	At       time.Time
	Raw      l3metrics.Values
	Filtered l3metrics.Values
	Rejected [l3metrics.NumMetrics]bool
	Smoothed l3metrics.Values
}

// FrameResult is returned for every frame handed to the engine.
type FrameResult struct {
	Decision Decision
	At       time.Time

	// Last is the cached pass, fresh when Decision is DecisionProcessed.
	Last LastComputedResult

	// Issues and Readings are classified from the current smoothed state
	// with the current thresholds.
	Issues   []l6classify.Issue
	Readings [l3metrics.NumMetrics]l6classify.Reading

	Outcome l7alerts.Outcome
}

// Counters tallies frame decisions since the engine was built.
type Counters struct {
	Frames      uint64 `json:"frames"`
	Processed   uint64 `json:"processed"`
	Cached      uint64 `json:"cached"`
	Unavailable uint64 `json:"unavailable"`
	Rejected    uint64 `json:"rejected_values"`
}

// Engine owns all cross-frame posture state: baseline, outlier history,
// smoothed values, notification tracker and the frame-skip counter. It is
// not safe for concurrent use.
type Engine struct {
	cfg Config

	stabilizer  *l1landmarks.Stabilizer
	calibration l2baseline.Calibration
	report      *l2baseline.Report
	filter      l4filter.NoiseFilter
	smoother    *l5smooth.Smoother
	tracker     *l7alerts.Tracker

	frameCount int
	last       LastComputedResult
	lastFrame  *l1landmarks.Frame
	counters   Counters
}

// NewEngine validates cfg and returns an uncalibrated engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	out := cfg.Outlier
	out.HistorySize, out.StdDevs = cfg.Performance.HistorySize, cfg.Performance.StdDevs
	rejector, err := l4filter.NewOutlierRejector(out)
	if err != nil {
		return nil, err
	}
	smoother, err := l5smooth.NewSmoother(cfg.Smooth)
	if err != nil {
		return nil, err
	}

	cfg.Outlier = out
	return &Engine{
		cfg:        cfg,
		stabilizer: l1landmarks.NewStabilizer(cfg.Gate, cfg.Performance.FaceIndexSet),
		filter: l4filter.NoiseFilter{
			DeadZone: l4filter.DeadZone{Threshold: cfg.DeadZone},
			Outliers: rejector,
		},
		smoother: smoother,
		tracker:  l7alerts.NewTracker(cfg.Alerts),
	}, nil
}

// Config returns the active configuration.
func (e *Engine) Config() Config { return e.cfg }

// ProcessFrame runs one frame. Only every FrameSkip-th frame runs the
// pipeline; the others reuse the cached result. The notification tracker is
// evaluated on every frame while calibrated, against the frame timestamp.
func (e *Engine) ProcessFrame(f *l1landmarks.Frame) FrameResult {
	e.counters.Frames++
	e.lastFrame = f
	e.frameCount++

	res := FrameResult{At: f.Timestamp}
	baseline, calibrated := e.calibration.Baseline()
	if !calibrated {
		res.Decision = DecisionUncalibrated
		return res
	}

	if e.frameCount%e.cfg.Performance.FrameSkip != 0 {
		res.Decision = DecisionCached
		e.counters.Cached++
	} else if pos, err := e.stabilizer.Stabilize(f); err != nil {
		res.Decision = DecisionUnavailable
		e.counters.Unavailable++
		tracef("frame %s: %v", f.Timestamp.Format(time.RFC3339Nano), err)
	} else {
		res.Decision = DecisionProcessed
		e.counters.Processed++
		e.compute(f.Timestamp, pos, baseline)
	}

	res.Last = e.last
	smoothed := e.smoother.Values()
	res.Issues = l6classify.Classify(smoothed, e.cfg.Thresholds.Config)
	res.Readings = l6classify.Readings(smoothed, e.cfg.Thresholds.Config)
	res.Outcome = e.tracker.Evaluate(res.Issues, f.Timestamp)
	if ev := res.Outcome.Event; ev != nil {
		diagf("%s at %s (issue %s, present %s)", ev.Kind, ev.At.Format(time.RFC3339), ev.Issue, ev.Present)
	}
	return res
}

func (e *Engine) compute(at time.Time, pos l1landmarks.Positions, b l2baseline.Baseline) {
	raw := l3metrics.Derive(pos, b, e.cfg.HeadYWeight)
	filtered, rejected := e.filter.Apply(raw)
	smoothed := e.smoother.Update(filtered)
	for _, r := range rejected {
		if r {
			e.counters.Rejected++
		}
	}
	e.last = LastComputedResult{
		Valid:    true,
		At:       at,
		Raw:      raw,
		Filtered: filtered,
		Rejected: rejected,
		Smoothed: smoothed,
	}
	tracef("processed %s: raw=%v smoothed=%v rejected=%v", at.Format(time.RFC3339Nano), raw, smoothed, rejected)
}

// Calibrate captures a baseline from f. On success smoothing and outlier
// history are cleared and the cached result is invalidated; on failure
// nothing changes.
func (e *Engine) Calibrate(f *l1landmarks.Frame) (l2baseline.Report, error) {
	report, err := e.calibration.Capture(f, e.stabilizer, e.cfg.Performance.FaceIndexSet, e.cfg.HeadYWeight)
	if err != nil {
		opsf("calibration failed: %v", err)
		return report, err
	}
	e.smoother.Reset()
	e.filter.Outliers.Reset()
	e.last = LastComputedResult{}
	e.report = &report

	switch report.Band {
	case l2baseline.QualityPoor:
		opsf("calibration quality poor (%.0f%%): %v", report.Score, report.Issues)
	default:
		diagf("calibration quality %s (%.0f%%)", report.Band, report.Score)
	}
	return report, nil
}

// CalibrateLatest calibrates from the most recent frame.
func (e *Engine) CalibrateLatest() (l2baseline.Report, error) {
	if e.lastFrame == nil {
		return l2baseline.Report{}, fmt.Errorf("%w: no frame received yet: %w", l2baseline.ErrCalibrationFailed, l1landmarks.ErrUnavailable)
	}
	return e.Calibrate(e.lastFrame)
}

// Calibrated reports whether a baseline is set.
func (e *Engine) Calibrated() bool { return e.calibration.Calibrated() }

// Baseline returns the current baseline, if any.
func (e *Engine) Baseline() (l2baseline.Baseline, bool) { return e.calibration.Baseline() }

// CalibrationReport returns the report of the last successful calibration.
func (e *Engine) CalibrationReport() (l2baseline.Report, bool) {
	if e.report == nil {
		return l2baseline.Report{}, false
	}
	return *e.report, true
}

// SetPerformance switches the performance preset. History and smoothed
// state are kept; only their bounds change. The next frame is processed.
func (e *Engine) SetPerformance(p Performance) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := e.filter.Outliers.SetLimits(p.HistorySize, p.StdDevs); err != nil {
		return err
	}
	e.stabilizer.SetFaceIndexSet(p.FaceIndexSet)
	e.cfg.Performance = p
	e.cfg.Outlier = e.filter.Outliers.Config()
	e.frameCount = p.FrameSkip - 1
	diagf("performance preset %q: skip=%d history=%d k=%.2f face=%s", p.Name, p.FrameSkip, p.HistorySize, p.StdDevs, p.FaceIndexSet)
	return nil
}

// SetThresholds switches the metric preset. It takes effect on the next
// frame, including skipped ones.
func (e *Engine) SetThresholds(t Thresholds) {
	e.cfg.Thresholds = t
	diagf("metric preset %q: thresholds=%v enabled=%v", t.Name, t.Config.Thresholds, t.Config.Enabled)
}

// SetAlerts changes the notification timings.
func (e *Engine) SetAlerts(c l7alerts.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	e.tracker.SetConfig(c)
	e.cfg.Alerts = c
	return nil
}

// MarkNotified starts the cooldown as if an alert had just fired.
func (e *Engine) MarkNotified(now time.Time) { e.tracker.MarkNotified(now) }

// Flush resolves every open issue episode, for shutdown.
func (e *Engine) Flush(now time.Time) []l7alerts.Episode { return e.tracker.Flush(now) }

// Last returns the cached result of the last full pass.
func (e *Engine) Last() LastComputedResult { return e.last }

// Smoothed returns the current smoothed values.
func (e *Engine) Smoothed() l3metrics.Values { return e.smoother.Values() }

// History returns the outlier history of m, oldest first.
func (e *Engine) History(m l3metrics.Metric) []float64 { return e.filter.Outliers.History(m) }

// Counters returns the frame tallies.
func (e *Engine) Counters() Counters { return e.counters }

// Stats returns per-issue bad-posture totals, including issues still
// present at now.
func (e *Engine) Stats(now time.Time) Stats {
	s := Stats{Counters: e.counters}
	totals := e.tracker.Totals()
	for _, i := range l6classify.AllIssues {
		d := totals[i]
		if since, ok := e.tracker.Since(i); ok && now.After(since) {
			d += now.Sub(since)
		}
		s.Issues = append(s.Issues, IssueStat{
			Issue:   i,
			Total:   d,
			Seconds: d.Seconds(),
			State:   e.tracker.State(i),
		})
	}
	return s
}

// IssueStat is the accumulated bad-posture time for one issue.
type IssueStat struct {
	Issue   l6classify.Issue `json:"issue"`
	Total   time.Duration    `json:"-"`
	Seconds float64          `json:"seconds"`
	State   l7alerts.State   `json:"state"`
}

// Stats summarises the session so far.
type Stats struct {
	Counters Counters    `json:"counters"`
	Issues   []IssueStat `json:"issues"`
}
