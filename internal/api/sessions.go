package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/report"
)

type sessionDetail struct {
	db.Session
	Current      bool                   `json:"current"`
	Calibrations []db.CalibrationRecord `json:"calibrations"`
	Alerts       []db.AlertRecord       `json:"alerts"`
	Summary      []db.IssueSummary      `json:"summary"`
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.NotFound(w, "session history is disabled")
		return false
	}
	return true
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = v
	}
	sessions, err := s.db.Sessions(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) loadSession(w http.ResponseWriter, id string) (*db.Session, bool) {
	sess, err := s.db.Session(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	sess, ok := s.loadSession(w, r.PathValue("id"))
	if !ok {
		return
	}
	out := sessionDetail{Session: *sess, Current: sess.ID == s.sessionID}
	var err error
	if out.Calibrations, err = s.db.Calibrations(sess.ID); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if out.Alerts, err = s.db.Alerts(sess.ID); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if out.Summary, err = s.db.Summary(sess.ID); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) handleSessionPlot(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	sess, ok := s.loadSession(w, r.PathValue("id"))
	if !ok {
		return
	}
	samples, err := s.db.Samples(sess.ID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	episodes, err := s.db.Episodes(sess.ID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	var buf bytes.Buffer
	title := "Session " + sess.StartedAt.Local().Format("2006-01-02 15:04")
	if err := report.RenderPNG(&buf, samples, episodes, report.Options{Title: title}); err != nil {
		if errors.Is(err, report.ErrNoSamples) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
