// Command session-plot renders a recorded session's metric timeline and
// issue episodes to a PNG.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/report"
	"github.com/banshee-data/posture.report/internal/security"
)

// Config holds the command line.
type Config struct {
	DBPath    string
	SessionID string // Empty selects the most recent session
	Output    string // Empty writes session-<id>.png in the working directory
	Metrics   string // Comma-separated metric names; empty plots all
	Width     float64
	Height    float64
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.DBPath, "db", "posture.db", "Session database")
	flag.StringVar(&cfg.SessionID, "session", "", "Session ID (default: most recent)")
	flag.StringVar(&cfg.Output, "out", "", "Output PNG path")
	flag.StringVar(&cfg.Metrics, "metrics", "", "Comma-separated metrics to plot (default: all)")
	flag.Float64Var(&cfg.Width, "width", 14, "Image width in inches")
	flag.Float64Var(&cfg.Height, "height", 8, "Image height in inches")
	flag.Parse()

	out, err := run(cfg)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out)
}

func run(cfg Config) (string, error) {
	metrics, err := parseMetrics(cfg.Metrics)
	if err != nil {
		return "", err
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	defer database.Close()
	if err := database.CheckMigrations(db.MigrationsFS()); err != nil {
		return "", err
	}

	session, err := pickSession(database, cfg.SessionID)
	if err != nil {
		return "", err
	}

	out := cfg.Output
	if out == "" {
		out = security.SanitizeFilename("session-"+session.ID) + ".png"
	}
	if err := security.ValidateOutputPath(out); err != nil {
		return "", fmt.Errorf("output path: %w", err)
	}

	samples, err := database.Samples(session.ID)
	if err != nil {
		return "", err
	}
	episodes, err := database.Episodes(session.ID)
	if err != nil {
		return "", err
	}

	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	err = report.RenderPNG(f, samples, episodes, report.Options{
		Title:   fmt.Sprintf("Session %s (%s)", session.ID, session.StartedAt.Local().Format("2006-01-02 15:04")),
		Width:   vg.Length(cfg.Width) * vg.Inch,
		Height:  vg.Length(cfg.Height) * vg.Inch,
		Metrics: metrics,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return "", fmt.Errorf("render %s: %w", out, err)
	}
	return out, nil
}

func pickSession(database *db.DB, id string) (*db.Session, error) {
	if id != "" {
		s, err := database.Session(id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("session %q not found", id)
		}
		return s, err
	}
	sessions, err := database.Sessions(1)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, errors.New("database has no sessions")
	}
	return &sessions[0], nil
}

func parseMetrics(s string) ([]l3metrics.Metric, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []l3metrics.Metric
	for _, name := range strings.Split(s, ",") {
		m, err := l3metrics.ParseMetric(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
