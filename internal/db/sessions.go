package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the service.
type Session struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	MetricPreset      string     `json:"metric_preset"`
	PerformancePreset string     `json:"performance_preset"`
	Host              string     `json:"host,omitempty"`
}

// StartSession inserts a new open session.
func (db *DB) StartSession(at time.Time, metricPreset, performancePreset, host string) (*Session, error) {
	s := &Session{
		ID:                uuid.NewString(),
		StartedAt:         at.UTC().Truncate(time.Millisecond),
		MetricPreset:      metricPreset,
		PerformancePreset: performancePreset,
		Host:              host,
	}
	_, err := db.Exec(`INSERT INTO sessions (session_id, started_at_ms, metric_preset, performance_preset, host)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, toMillis(s.StartedAt), s.MetricPreset, s.PerformancePreset, s.Host)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	diagf("session %s started", s.ID)
	return s, nil
}

// EndSession closes an open session.
func (db *DB) EndSession(id string, at time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_at_ms = ? WHERE session_id = ? AND ended_at_ms IS NULL`,
		toMillis(at), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateSessionPresets records a preset change on an open session.
func (db *DB) UpdateSessionPresets(id, metricPreset, performancePreset string) error {
	_, err := db.Exec(`UPDATE sessions SET metric_preset = ?, performance_preset = ? WHERE session_id = ?`,
		metricPreset, performancePreset, id)
	return err
}

const sessionColumns = `session_id, started_at_ms, ended_at_ms, metric_preset, performance_preset, host`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&s.ID, &started, &ended, &s.MetricPreset, &s.PerformancePreset, &s.Host); err != nil {
		return nil, err
	}
	s.StartedAt = fromMillis(started)
	if ended.Valid {
		t := fromMillis(ended.Int64)
		s.EndedAt = &t
	}
	return &s, nil
}

// Session loads one session by ID.
func (db *DB) Session(id string) (*Session, error) {
	s, err := scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, err
}

// Sessions lists the most recent sessions first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
