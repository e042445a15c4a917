package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
)

// presetRoutes serves one preset collection under /api/presets/<kind>.
type presetRoutes[T any] struct {
	kind   string
	store  *config.PresetStore[T]
	active func() string
	apply  func(ctx context.Context, name string, p T) error
	after  func()
}

type presetEntry[T any] struct {
	Name   string `json:"name"`
	System bool   `json:"system"`
	Preset T      `json:"preset"`
}

type presetList[T any] struct {
	Active  string           `json:"active"`
	Default string           `json:"default"`
	Presets []presetEntry[T] `json:"presets"`
}

type selectPresetRequest struct {
	Name string `json:"name"`
}

type savePresetRequest[T any] struct {
	Name   string `json:"name"`
	Preset T      `json:"preset"`
}

func (s *Server) metricPresetRoutes() presetRoutes[config.MetricPreset] {
	return presetRoutes[config.MetricPreset]{
		kind:   "metric",
		store:  s.metric,
		active: func() string { return s.runner.Snapshot().MetricPreset },
		apply: func(ctx context.Context, name string, p config.MetricPreset) error {
			t := pipeline.ThresholdsFromPreset(name, p)
			return s.runner.Do(ctx, func(e *pipeline.Engine) error {
				e.SetThresholds(t)
				return nil
			})
		},
		after: s.recordPresets,
	}
}

func (s *Server) performancePresetRoutes() presetRoutes[config.PerformancePreset] {
	return presetRoutes[config.PerformancePreset]{
		kind:   "performance",
		store:  s.perf,
		active: func() string { return s.runner.Snapshot().PerformancePreset },
		apply: func(ctx context.Context, name string, p config.PerformancePreset) error {
			perf := pipeline.PerformanceFromPreset(name, p)
			return s.runner.Do(ctx, func(e *pipeline.Engine) error { return e.SetPerformance(perf) })
		},
		after: s.recordPresets,
	}
}

// recordPresets writes the presets now in force onto the session row.
func (s *Server) recordPresets() {
	if s.db == nil || s.sessionID == "" {
		return
	}
	snap := s.runner.Snapshot()
	if err := s.db.UpdateSessionPresets(s.sessionID, snap.MetricPreset, snap.PerformancePreset); err != nil {
		opsf("record session presets: %v", err)
	}
}

func (p presetRoutes[T]) register(mux *http.ServeMux) {
	base := "/api/presets/" + p.kind
	mux.HandleFunc("GET "+base, p.list)
	mux.HandleFunc("POST "+base, p.save)
	mux.HandleFunc("PUT "+base+"/active", p.selectPreset)
	mux.HandleFunc("DELETE "+base+"/{name}", p.remove)
}

func (p presetRoutes[T]) list(w http.ResponseWriter, r *http.Request) {
	def, _ := p.store.Default()
	out := presetList[T]{Active: p.active(), Default: def}
	for _, name := range p.store.Names() {
		preset, err := p.store.Get(name)
		if err != nil {
			continue
		}
		out.Presets = append(out.Presets, presetEntry[T]{Name: name, System: p.store.IsSystem(name), Preset: preset})
	}
	httputil.WriteJSONOK(w, out)
}

// selectPreset applies the named preset to the running pipeline and makes
// it the stored default.
func (p presetRoutes[T]) selectPreset(w http.ResponseWriter, r *http.Request) {
	var req selectPresetRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	preset, err := p.store.Get(req.Name)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}

	if err := p.applyNow(r.Context(), req.Name, preset); err != nil {
		writeApplyError(w, err)
		return
	}
	if err := p.store.SetDefault(req.Name); err != nil {
		opsf("%s presets: persist selection %q: %v", p.kind, req.Name, err)
	}
	diagf("%s preset %q selected", p.kind, req.Name)
	p.after()
	httputil.WriteJSONOK(w, map[string]string{"active": req.Name})
}

func (p presetRoutes[T]) save(w http.ResponseWriter, r *http.Request) {
	var req savePresetRequest[T]
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := p.store.Save(req.Name, req.Preset); err != nil {
		writePresetError(w, err)
		return
	}
	diagf("%s preset %q saved", p.kind, req.Name)
	if req.Name == p.active() {
		if err := p.applyNow(r.Context(), req.Name, req.Preset); err != nil {
			writeApplyError(w, err)
			return
		}
		p.after()
	}
	httputil.WriteJSON(w, http.StatusCreated, presetEntry[T]{Name: req.Name, Preset: req.Preset})
}

func (p presetRoutes[T]) remove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	wasActive := name == p.active()
	if err := p.store.Delete(name); err != nil {
		writePresetError(w, err)
		return
	}
	diagf("%s preset %q deleted", p.kind, name)
	if wasActive {
		def, preset := p.store.Default()
		if err := p.applyNow(r.Context(), def, preset); err != nil {
			writeApplyError(w, err)
			return
		}
		diagf("%s preset %q was active, switched to %q", p.kind, name, def)
		p.after()
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyNow pushes a preset into the running pipeline.
func (p presetRoutes[T]) applyNow(parent context.Context, name string, preset T) error {
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()
	return p.apply(ctx, name, preset)
}

func writeApplyError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrRunnerStopped) || errors.Is(err, context.DeadlineExceeded) {
		writeRunnerError(w, err)
		return
	}
	httputil.BadRequest(w, err.Error())
}

func writePresetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrPresetNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, config.ErrSystemPreset):
		httputil.WriteJSONError(w, http.StatusForbidden, err.Error())
	default:
		httputil.BadRequest(w, err.Error())
	}
}
