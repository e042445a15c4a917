package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
)

// SampleBuffer keeps the most recent smoothed samples for live charts. It
// is a pipeline.SampleSink.
type SampleBuffer struct {
	mu   sync.Mutex
	buf  []pipeline.Sample
	next int
	full bool
}

// NewSampleBuffer holds up to n samples (default 600).
func NewSampleBuffer(n int) *SampleBuffer {
	if n <= 0 {
		n = 600
	}
	return &SampleBuffer{buf: make([]pipeline.Sample, n)}
}

func (b *SampleBuffer) AddSample(s pipeline.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf[b.next] = s
	b.next = (b.next + 1) % len(b.buf)
	if b.next == 0 {
		b.full = true
	}
}

// Samples returns the buffered samples oldest first.
func (b *SampleBuffer) Samples() []pipeline.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]pipeline.Sample(nil), b.buf[:b.next]...)
	}
	out := make([]pipeline.Sample, 0, len(b.buf))
	out = append(out, b.buf[b.next:]...)
	return append(out, b.buf[:b.next]...)
}

// AttachAdminRoutes adds the live charts to the /debug/ debugger.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("charts/metrics", "Live chart of smoothed posture metrics", http.HandlerFunc(s.handleMetricsChart))
}

// handleMetricsChart renders the buffered samples as an echarts line chart.
// Query params:
//   - metric (repeatable; default all eight)
//   - n (optional) to show only the last n samples
func (s *Server) handleMetricsChart(w http.ResponseWriter, r *http.Request) {
	if s.charts == nil {
		httputil.NotFound(w, "live charts are disabled")
		return
	}

	metrics := l3metrics.All
	if names := r.URL.Query()["metric"]; len(names) > 0 {
		metrics = nil
		for _, name := range names {
			m, err := l3metrics.ParseMetric(name)
			if err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
			metrics = append(metrics, m)
		}
	}

	samples := s.charts.Samples()
	if n := r.URL.Query().Get("n"); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil || v < 1 {
			httputil.BadRequest(w, "invalid 'n' parameter")
			return
		}
		if v < len(samples) {
			samples = samples[len(samples)-v:]
		}
	}

	x := make([]string, len(samples))
	for i, smp := range samples {
		x[i] = smp.At.Local().Format("15:04:05.000")
	}

	subtitle := "no samples yet"
	if len(samples) > 0 {
		subtitle = fmt.Sprintf("%d samples, last %s", len(samples), x[len(x)-1])
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Posture metrics", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Smoothed posture metrics", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x)
	for _, m := range metrics {
		data := make([]opts.LineData, len(samples))
		for i, smp := range samples {
			data[i] = opts.LineData{Value: smp.Smoothed[m]}
		}
		line.AddSeries(m.String(), data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
