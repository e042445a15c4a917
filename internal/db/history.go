package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/posture.report/internal/posture/l2baseline"
	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// maxPendingSamples bounds the unflushed sample buffer; the oldest samples
// are dropped beyond it.
const maxPendingSamples = 4096

// Recorder writes the history of one session. It is a pipeline.HistorySink
// and a pipeline.SampleSink. Samples are downsampled and buffered in memory;
// Run or Flush writes them.
type Recorder struct {
	db        *DB
	sessionID string
	every     time.Duration

	mu      sync.Mutex
	pending []pipeline.Sample
	last    time.Time
	dropped uint64
}

// NewRecorder keeps at most one sample per sampleEvery.
func NewRecorder(db *DB, sessionID string, sampleEvery time.Duration) *Recorder {
	return &Recorder{db: db, sessionID: sessionID, every: sampleEvery}
}

// SessionID is the session this recorder writes to.
func (r *Recorder) SessionID() string { return r.sessionID }

func (r *Recorder) RecordCalibration(b l2baseline.Baseline, rep l2baseline.Report) error {
	_, err := r.db.Exec(`INSERT INTO calibrations (
			calibration_id, session_id, captured_at_ms, face_z, face_y, shoulder_z, shoulder_y,
			chest_z, shoulder_asymmetry, neck_angle, quality_score, quality_band, missing_landmarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), r.sessionID, toMillis(b.CapturedAt), b.FaceZ, b.FaceY, b.ShoulderZ, b.ShoulderY,
		b.ChestZ, b.ShoulderAsymmetry, b.NeckAngle, rep.Score, rep.Band.String(), joinLabels(rep.MissingLandmarks))
	if err != nil {
		return fmt.Errorf("insert calibration: %w", err)
	}
	return nil
}

func (r *Recorder) RecordEvent(ev l7alerts.Event) error {
	issue := ""
	if ev.Kind == l7alerts.EventAlert {
		issue = ev.Issue.String()
	}
	_, err := r.db.Exec(`INSERT INTO alerts (alert_id, session_id, at_ms, kind, issue, present_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), r.sessionID, toMillis(ev.At), ev.Kind.String(), issue, ev.Present.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *Recorder) RecordEpisodes(eps []l7alerts.Episode) error {
	if len(eps) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`INSERT INTO episodes (session_id, issue, start_ms, end_ms, alerted) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ep := range eps {
		if _, err := stmt.Exec(r.sessionID, ep.Issue.String(), toMillis(ep.Start), toMillis(ep.End), ep.Alerted); err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
	}
	return tx.Commit()
}

// AddSample buffers s unless one was kept less than sampleEvery ago.
func (r *Recorder) AddSample(s pipeline.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.last.IsZero() && s.At.Sub(r.last) < r.every {
		return
	}
	r.last = s.At
	if len(r.pending) >= maxPendingSamples {
		r.pending = r.pending[1:]
		r.dropped++
		if r.dropped == 1 || r.dropped%1000 == 0 {
			opsf("sample buffer full, %d samples dropped", r.dropped)
		}
	}
	r.pending = append(r.pending, s)
}

// Flush writes buffered samples in one transaction. A batch that fails to
// write goes back to the front of the buffer for the next attempt.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	if err := r.writeSamples(batch); err != nil {
		r.requeue(batch)
		return err
	}
	diagf("flushed %d samples", len(batch))
	return nil
}

// requeue puts batch ahead of anything buffered since it was taken,
// dropping the oldest samples beyond maxPendingSamples.
func (r *Recorder) requeue(batch []pipeline.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := make([]pipeline.Sample, 0, len(batch)+len(r.pending))
	merged = append(merged, batch...)
	merged = append(merged, r.pending...)
	if over := len(merged) - maxPendingSamples; over > 0 {
		merged = merged[over:]
		r.dropped += uint64(over)
		opsf("sample buffer full after failed flush, %d samples dropped", r.dropped)
	}
	r.pending = merged
}

func (r *Recorder) writeSamples(batch []pipeline.Sample) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO samples (
			session_id, at_ms, face_to_shoulder_z, face_to_shoulder_y, relative_shoulder_z, relative_shoulder_y,
			shoulder_asymmetry, head_tilt, neck_angle, shoulder_forward, issues
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range batch {
		v := s.Smoothed
		if _, err := stmt.Exec(r.sessionID, toMillis(s.At),
			v[l3metrics.FaceToShoulderZ], v[l3metrics.FaceToShoulderY],
			v[l3metrics.RelativeShoulderZ], v[l3metrics.RelativeShoulderY],
			v[l3metrics.ShoulderAsymmetry], v[l3metrics.HeadTilt],
			v[l3metrics.NeckAngle], v[l3metrics.ShoulderForward],
			joinIssues(s.Issues)); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// Run flushes samples every interval until ctx is done, then flushes once
// more.
func (r *Recorder) Run(ctx context.Context, clock timeutil.Clock, interval time.Duration) {
	t := clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil {
				opsf("final sample flush: %v", err)
			}
			return
		case <-t.C():
			if err := r.Flush(); err != nil {
				opsf("sample flush: %v", err)
			}
		}
	}
}

func joinLabels(labels []string) string { return strings.Join(labels, ",") }

func splitLabels(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinIssues(issues []l6classify.Issue) string {
	labels := make([]string, len(issues))
	for i, is := range issues {
		labels[i] = is.String()
	}
	return joinLabels(labels)
}

func parseIssues(s string) ([]l6classify.Issue, error) {
	var out []l6classify.Issue
	for _, label := range splitLabels(s) {
		is, err := l6classify.ParseIssue(label)
		if err != nil {
			return nil, err
		}
		out = append(out, is)
	}
	return out, nil
}

// CalibrationRecord is a stored calibration.
type CalibrationRecord struct {
	ID               string              `json:"id"`
	Baseline         l2baseline.Baseline `json:"baseline"`
	Score            float64             `json:"score"`
	Band             string              `json:"band"`
	MissingLandmarks []string            `json:"missing_landmarks,omitempty"`
}

// Calibrations lists a session's calibrations oldest first.
func (db *DB) Calibrations(sessionID string) ([]CalibrationRecord, error) {
	rows, err := db.Query(`SELECT calibration_id, captured_at_ms, face_z, face_y, shoulder_z, shoulder_y,
			chest_z, shoulder_asymmetry, neck_angle, quality_score, quality_band, missing_landmarks
		FROM calibrations WHERE session_id = ? ORDER BY captured_at_ms`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalibrationRecord
	for rows.Next() {
		var (
			c        CalibrationRecord
			captured int64
			missing  string
		)
		b := &c.Baseline
		if err := rows.Scan(&c.ID, &captured, &b.FaceZ, &b.FaceY, &b.ShoulderZ, &b.ShoulderY,
			&b.ChestZ, &b.ShoulderAsymmetry, &b.NeckAngle, &c.Score, &c.Band, &missing); err != nil {
			return nil, err
		}
		b.CapturedAt = fromMillis(captured)
		c.MissingLandmarks = splitLabels(missing)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AlertRecord is a stored notification event.
type AlertRecord struct {
	ID      string        `json:"id"`
	At      time.Time     `json:"at"`
	Kind    string        `json:"kind"`
	Issue   string        `json:"issue,omitempty"`
	Present time.Duration `json:"present_ns"`
}

// Alerts lists a session's events oldest first.
func (db *DB) Alerts(sessionID string) ([]AlertRecord, error) {
	rows, err := db.Query(`SELECT alert_id, at_ms, kind, issue, present_ms
		FROM alerts WHERE session_id = ? ORDER BY at_ms`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var (
			a       AlertRecord
			at      int64
			present int64
		)
		if err := rows.Scan(&a.ID, &at, &a.Kind, &a.Issue, &present); err != nil {
			return nil, err
		}
		a.At = fromMillis(at)
		a.Present = time.Duration(present) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}

// Episodes lists a session's resolved episodes by start time.
func (db *DB) Episodes(sessionID string) ([]l7alerts.Episode, error) {
	rows, err := db.Query(`SELECT issue, start_ms, end_ms, alerted
		FROM episodes WHERE session_id = ? ORDER BY start_ms, episode_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []l7alerts.Episode
	for rows.Next() {
		var (
			label      string
			start, end int64
			alerted    bool
		)
		if err := rows.Scan(&label, &start, &end, &alerted); err != nil {
			return nil, err
		}
		issue, err := l6classify.ParseIssue(label)
		if err != nil {
			return nil, err
		}
		out = append(out, l7alerts.Episode{Issue: issue, Start: fromMillis(start), End: fromMillis(end), Alerted: alerted})
	}
	return out, rows.Err()
}

// Samples lists a session's stored samples in time order.
func (db *DB) Samples(sessionID string) ([]pipeline.Sample, error) {
	rows, err := db.Query(`SELECT at_ms, face_to_shoulder_z, face_to_shoulder_y, relative_shoulder_z,
			relative_shoulder_y, shoulder_asymmetry, head_tilt, neck_angle, shoulder_forward, issues
		FROM samples WHERE session_id = ? ORDER BY at_ms`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pipeline.Sample
	for rows.Next() {
		var (
			s      pipeline.Sample
			at     int64
			issues string
		)
		v := &s.Smoothed
		if err := rows.Scan(&at,
			&v[l3metrics.FaceToShoulderZ], &v[l3metrics.FaceToShoulderY],
			&v[l3metrics.RelativeShoulderZ], &v[l3metrics.RelativeShoulderY],
			&v[l3metrics.ShoulderAsymmetry], &v[l3metrics.HeadTilt],
			&v[l3metrics.NeckAngle], &v[l3metrics.ShoulderForward], &issues); err != nil {
			return nil, err
		}
		s.At = fromMillis(at)
		if s.Issues, err = parseIssues(issues); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// IssueSummary aggregates one issue's episodes.
type IssueSummary struct {
	Issue          l6classify.Issue `json:"issue"`
	Episodes       int              `json:"episodes"`
	Alerted        int              `json:"alerted"`
	TotalSeconds   float64          `json:"total_seconds"`
	MeanSeconds    float64          `json:"mean_seconds"`
	StdDevSeconds  float64          `json:"stddev_seconds"`
	LongestSeconds float64          `json:"longest_seconds"`
}

// Summary aggregates a session's episodes per issue, in issue order. Issues
// without episodes are omitted.
func (db *DB) Summary(sessionID string) ([]IssueSummary, error) {
	eps, err := db.Episodes(sessionID)
	if err != nil {
		return nil, err
	}
	return Summarize(eps), nil
}

// Summarize aggregates episodes per issue. The standard deviation is the
// sample deviation and is zero for a single episode.
func Summarize(eps []l7alerts.Episode) []IssueSummary {
	durations := map[l6classify.Issue][]float64{}
	alerted := map[l6classify.Issue]int{}
	for _, ep := range eps {
		durations[ep.Issue] = append(durations[ep.Issue], ep.Duration().Seconds())
		if ep.Alerted {
			alerted[ep.Issue]++
		}
	}

	out := make([]IssueSummary, 0, len(durations))
	for issue, ds := range durations {
		s := IssueSummary{Issue: issue, Episodes: len(ds), Alerted: alerted[issue]}
		for _, d := range ds {
			s.TotalSeconds += d
			if d > s.LongestSeconds {
				s.LongestSeconds = d
			}
		}
		if len(ds) > 1 {
			s.MeanSeconds, s.StdDevSeconds = stat.MeanStdDev(ds, nil)
		} else {
			s.MeanSeconds = ds[0]
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Issue < out[j].Issue })
	return out
}
