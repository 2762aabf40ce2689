// Package web serves the URL tracker form, the entry list and the PDF export.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/capture"
	"github.com/pwnholic/urltrack/internal/clients"
	"github.com/pwnholic/urltrack/internal/exports"
	"github.com/pwnholic/urltrack/internal/tracker"
)

//go:embed templates/*.html
var templateFS embed.FS

type Options struct {
	Store    *tracker.Store
	Exporter *exports.DocumentExporter
	Preview  clients.Request
	Capturer capture.Capturer
	// MaxUploadBytes bounds one multipart submission.
	MaxUploadBytes int64
}

type Server struct {
	store     *tracker.Store
	exporter  *exports.DocumentExporter
	preview   clients.Request
	capturer  capture.Capturer
	maxUpload int64
	tmpl      *template.Template
}

func NewServer(opts Options) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:     opts.Store,
		exporter:  opts.Exporter,
		preview:   opts.Preview,
		capturer:  opts.Capturer,
		maxUpload: opts.MaxUploadBytes,
		tmpl:      tmpl,
	}
	if s.store == nil {
		s.store = tracker.NewStore()
	}
	if s.capturer == nil {
		s.capturer = capture.Disabled{}
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 64 << 20
	}
	return s, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Post("/entries", s.handleAdd)
	r.Post("/entries/{index}", s.handleUpdate)
	r.Post("/entries/{index}/delete", s.handleDelete)
	r.Get("/entries/{index}/screenshots/{n}", s.handleScreenshot)
	r.Get("/preview", s.handlePreview)
	r.Get("/api/preview", s.handlePreviewAPI)
	r.Get("/export.pdf", s.handleExport)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		internal.Debug("%s %s -> %d (%d bytes, %v)", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
