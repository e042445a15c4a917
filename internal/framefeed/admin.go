package framefeed

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/posture.report/internal/httputil"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var tailTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/tail.html.tmpl"))

// AttachAdminRoutes adds the feed pages to the /debug/ debugger on mux.
func (f *Feed) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("feed", "live tail of raw detector lines", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := tailTemplate.Execute(buf, f.Stats()); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("feed-stats", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, f.Stats())
	})

	// Server-sent events, one per raw line.
	debug.HandleSilentFunc("feed-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, lines := f.mux.Subscribe()
		defer f.mux.Unsubscribe(id)

		io.WriteString(w, ": ping\n\n")
		flusher.Flush()

		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
