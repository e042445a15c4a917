// Package report renders stored posture sessions as PNG timelines: the
// smoothed metrics on top and resolved bad-posture episodes below.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
)

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("no samples to plot")

// Options controls the rendered image.
type Options struct {
	Title   string
	Width   vg.Length // Default: 14in
	Height  vg.Length // Default: 8in
	Metrics []l3metrics.Metric
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 14 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 8 * vg.Inch
	}
	if len(o.Metrics) == 0 {
		o.Metrics = l3metrics.All
	}
	if o.Title == "" {
		o.Title = "Posture timeline"
	}
	return o
}

// Timeline holds the two aligned plots of a session.
type Timeline struct {
	Metrics  *plot.Plot
	Episodes *plot.Plot
	opts     Options
}

func unix(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }

// NewTimeline builds the plots. Samples must be in time order.
func NewTimeline(samples []pipeline.Sample, episodes []l7alerts.Episode, opts Options) (*Timeline, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	opts = opts.withDefaults()
	start, end := unix(samples[0].At), unix(samples[len(samples)-1].At)
	ticks := plot.TimeTicks{Format: "15:04:05"}

	pm := plot.New()
	pm.Title.Text = opts.Title
	pm.X.Tick.Marker = ticks
	pm.Y.Label.Text = "Smoothed value"
	pm.Legend.Top = true
	pm.Legend.Left = false
	pm.Legend.XOffs = -10
	pm.Legend.YOffs = -10

	for i, m := range opts.Metrics {
		pts := make(plotter.XYs, len(samples))
		for j, s := range samples {
			pts[j] = plotter.XY{X: unix(s.At), Y: s.Smoothed[m]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", m, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		pm.Add(line)
		pm.Legend.Add(m.String(), line)
	}
	pm.Add(plotter.NewGrid())

	pe := plot.New()
	pe.X.Tick.Marker = ticks
	pe.X.Label.Text = "Time"
	labels := make([]string, len(l6classify.AllIssues))
	for i, is := range l6classify.AllIssues {
		labels[i] = is.String()
	}
	pe.NominalY(labels...)

	for _, ep := range episodes {
		a, b := unix(ep.Start), unix(ep.End)
		if b < start || a > end {
			continue
		}
		y := float64(ep.Issue)
		bar, err := plotter.NewLine(plotter.XYs{{X: a, Y: y}, {X: b, Y: y}})
		if err != nil {
			return nil, fmt.Errorf("episode %s: %w", ep.Issue, err)
		}
		bar.Width = vg.Points(6)
		bar.Color = plotutil.Color(int(ep.Issue))
		if !ep.Alerted {
			bar.Color = faded(bar.Color)
		}
		pe.Add(bar)
	}

	// Share the time range so the two panels line up.
	pm.X.Min, pm.X.Max = start, end
	pe.X.Min, pe.X.Max = start, end
	pe.Y.Min, pe.Y.Max = -0.5, float64(len(labels))-0.5

	return &Timeline{Metrics: pm, Episodes: pe, opts: opts}, nil
}

func faded(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 96}
}

// WritePNG renders the timeline. The metric panel takes two thirds of the
// height.
func (t *Timeline) WritePNG(w io.Writer) (int64, error) {
	img := vgimg.New(t.opts.Width, t.opts.Height)
	dc := draw.New(img)

	top, bottom := dc, dc
	split := dc.Min.Y + (dc.Max.Y-dc.Min.Y)/3
	top.Min.Y = split
	bottom.Max.Y = split

	t.Metrics.Draw(top)
	t.Episodes.Draw(bottom)

	return vgimg.PngCanvas{Canvas: img}.WriteTo(w)
}

// RenderPNG is NewTimeline followed by WritePNG.
func RenderPNG(w io.Writer, samples []pipeline.Sample, episodes []l7alerts.Episode, opts Options) error {
	tl, err := NewTimeline(samples, episodes, opts)
	if err != nil {
		return err
	}
	_, err = tl.WritePNG(w)
	return err
}
