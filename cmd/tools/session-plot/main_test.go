package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
)

func seedDB(t *testing.T, withSamples bool) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posture.db")
	d, err := db.NewDB(path)
	require.NoError(t, err)
	defer d.Close()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, err := d.StartSession(start, "Default", "MEDIUM", "desk")
	require.NoError(t, err)

	if withSamples {
		rec := db.NewRecorder(d, s.ID, 0)
		for i := 0; i < 60; i++ {
			var v l3metrics.Values
			for m := range v {
				v[m] = float64(i%10) + float64(m)
			}
			rec.AddSample(pipeline.Sample{At: start.Add(time.Duration(i) * time.Second), Smoothed: v})
		}
		require.NoError(t, rec.Flush())
		require.NoError(t, rec.RecordEpisodes([]l7alerts.Episode{
			{Issue: l6classify.Slouching, Start: start.Add(10 * time.Second), End: start.Add(30 * time.Second), Alerted: true},
		}))
	}
	return path, s.ID
}

func TestRun(t *testing.T) {
	path, id := seedDB(t, true)
	out := filepath.Join(t.TempDir(), "timeline.png")

	got, err := run(Config{DBPath: path, Output: out, Metrics: "headTilt, neckAngle", Width: 6, Height: 4})
	require.NoError(t, err)
	assert.Equal(t, out, got)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	t.Run("explicit session", func(t *testing.T) {
		_, err := run(Config{DBPath: path, SessionID: id, Output: out, Width: 6, Height: 4})
		assert.NoError(t, err)
	})
	t.Run("unknown session", func(t *testing.T) {
		_, err := run(Config{DBPath: path, SessionID: "nope", Output: out})
		assert.ErrorContains(t, err, `session "nope" not found`)
	})
	t.Run("bad metric", func(t *testing.T) {
		_, err := run(Config{DBPath: path, Output: out, Metrics: "posture"})
		assert.ErrorContains(t, err, "unknown metric")
	})
}

func TestRunWithoutSamples(t *testing.T) {
	path, _ := seedDB(t, false)
	out := filepath.Join(t.TempDir(), "empty.png")

	_, err := run(Config{DBPath: path, Output: out, Width: 6, Height: 4})
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestParseMetrics(t *testing.T) {
	t.Parallel()

	got, err := parseMetrics("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseMetrics("headTilt,shoulderForward")
	require.NoError(t, err)
	assert.Equal(t, []l3metrics.Metric{l3metrics.HeadTilt, l3metrics.ShoulderForward}, got)
}
