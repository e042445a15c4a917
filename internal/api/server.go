// Package api serves the posture monitor over HTTP: status, calibration,
// session statistics, preset management, test notifications, stored
// session history and debug charts. A gRPC health service reports whether
// frames are arriving.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/notify"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Options wires the server to the running service. DB and Charts are
// optional; their routes answer 404 when absent.
type Options struct {
	Runner             *pipeline.Runner
	MetricPresets      *config.PresetStore[config.MetricPreset]
	PerformancePresets *config.PresetStore[config.PerformancePreset]
	Dispatcher         *notify.Dispatcher
	DB                 *db.DB
	SessionID          string
	Charts             *SampleBuffer
	Clock              timeutil.Clock
}

type Server struct {
	runner     *pipeline.Runner
	metric     *config.PresetStore[config.MetricPreset]
	perf       *config.PresetStore[config.PerformancePreset]
	dispatcher *notify.Dispatcher
	db         *db.DB
	sessionID  string
	charts     *SampleBuffer
	clock      timeutil.Clock
}

func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Server{
		runner:     opts.Runner,
		metric:     opts.MetricPresets,
		perf:       opts.PerformancePresets,
		dispatcher: opts.Dispatcher,
		db:         opts.DB,
		sessionID:  opts.SessionID,
		charts:     opts.Charts,
		clock:      opts.Clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration to the diag
// stream.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		diagf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes. Debug routes are added separately with
// AttachAdminRoutes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/calibrate", s.handleCalibrate)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/notify/test", s.handleNotifyTest)

	s.metricPresetRoutes().register(mux)
	s.performancePresetRoutes().register(mux)

	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSession)
	mux.HandleFunc("GET /api/sessions/{id}/plot.png", s.handleSessionPlot)
	return mux
}
