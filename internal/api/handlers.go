package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
	"github.com/banshee-data/posture.report/internal/posture/l2baseline"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
)

// commandTimeout bounds how long a handler waits on the runner.
const commandTimeout = 5 * time.Second

type statusResponse struct {
	pipeline.Snapshot
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, statusResponse{Snapshot: s.runner.Snapshot(), SessionID: s.sessionID})
}

type calibrateResponse struct {
	Report   l2baseline.Report    `json:"report"`
	Baseline *l2baseline.Baseline `json:"baseline,omitempty"`
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	report, err := s.runner.Calibrate(ctx)
	switch {
	case err == nil:
	case errors.Is(err, l1landmarks.ErrUnavailable), errors.Is(err, l2baseline.ErrCalibrationFailed):
		httputil.Conflict(w, err.Error())
		return
	default:
		writeRunnerError(w, err)
		return
	}
	httputil.WriteJSONOK(w, calibrateResponse{Report: report, Baseline: s.runner.Snapshot().Baseline})
}

type statsResponse struct {
	pipeline.Stats
	Episodes []db.IssueSummary `json:"episodes,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	resp := statsResponse{Stats: s.runner.Snapshot().Stats}
	if s.db != nil && s.sessionID != "" {
		sum, err := s.db.Summary(s.sessionID)
		if err != nil {
			opsf("session summary: %v", err)
		}
		resp.Episodes = sum
	}
	httputil.WriteJSONOK(w, resp)
}

type notifyTestRequest struct {
	Issue string `json:"issue"`
}

// handleNotifyTest delivers an alert straight away, bypassing debounce.
// It does not start the cooldown.
func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	if s.dispatcher == nil {
		httputil.NotFound(w, "notifications are not configured")
		return
	}
	var req notifyTestRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.BadRequest(w, err.Error())
		return
	}
	issue := l6classify.Slouching
	if req.Issue != "" {
		var err error
		if issue, err = l6classify.ParseIssue(req.Issue); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}

	ev := l7alerts.Event{Kind: l7alerts.EventAlert, At: s.clock.Now(), Issue: issue}
	if err := s.dispatcher.Deliver(r.Context(), ev); err != nil {
		opsf("test notification: %v", err)
		httputil.WriteJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	// Disabled notifications are suppressed rather than failed.
	httputil.WriteJSONOK(w, map[string]any{"delivered": s.dispatcher.Settings().Enabled, "issue": issue})
}

func writeRunnerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRunnerStopped):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, "pipeline busy")
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
