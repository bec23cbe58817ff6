// Package server serves a built site for local preview.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configure the preview router.
type Options struct {
	// Root is the output directory to serve.
	Root string
	// Events, if non-nil, is mounted at GET /api/events.
	Events http.Handler
	// Ready reports whether a build has completed. Nil means always ready.
	Ready func() bool
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter returns the preview router: health probes, the build event
// stream and the output directory as static files.
func NewRouter(opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			writeStatus(w, http.StatusServiceUnavailable, "building")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	if opts.Events != nil {
		r.Get("/api/events", opts.Events.ServeHTTP)
	}

	files := http.FileServer(http.Dir(opts.Root))
	r.With(middleware.NoCache).Get("/*", files.ServeHTTP)
	r.With(middleware.NoCache).Head("/*", files.ServeHTTP)

	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}
