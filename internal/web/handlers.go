package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/capture"
	"github.com/pwnholic/urltrack/internal/clients"
	"github.com/pwnholic/urltrack/internal/exports"
	"github.com/pwnholic/urltrack/internal/tracker"
)

const (
	msgFillFields   = "Please fill in all fields."
	msgSelectImages = "Please select image files."
	msgNothing      = "Add at least one entry before exporting."
)

type shotView struct {
	Index int
	Name  string
}

type entryView struct {
	Index int
	URL   string
	Shots []shotView
}

type formView struct {
	Editing bool
	Index   int
	URL     string
	Shots   []shotView
}

type indexView struct {
	Entries        []entryView
	Form           formView
	Notice         string
	Error          string
	CaptureEnabled bool
}

func shotViews(shots []tracker.ImageBlob) []shotView {
	views := make([]shotView, len(shots))
	for i, s := range shots {
		views[i] = shotView{Index: i, Name: s.Name}
	}
	return views
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := indexView{
		Notice: q.Get("notice"),
		Error:  q.Get("error"),
	}
	_, disabled := s.capturer.(capture.Disabled)
	view.CaptureEnabled = !disabled

	for i, e := range s.store.Snapshot() {
		view.Entries = append(view.Entries, entryView{Index: i, URL: e.URL, Shots: shotViews(e.Screenshots)})
	}

	if raw := q.Get("edit"); raw != "" {
		i, err := strconv.Atoi(raw)
		entry, getErr := s.store.Get(i)
		if err != nil || getErr != nil {
			view.Error = "That entry no longer exists."
		} else {
			view.Form = formView{Editing: true, Index: i, URL: entry.URL, Shots: shotViews(entry.Screenshots)}
		}
	}

	s.render(w, http.StatusOK, "index.html", view)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	rawURL, shots, err := s.readForm(w, r)
	if err != nil {
		redirect(w, r, "", err.Error())
		return
	}

	if _, err := s.store.Add(tracker.Entry{URL: rawURL, Screenshots: shots}); err != nil {
		redirect(w, r, "", formError(err))
		return
	}
	internal.Info("Added %s with %d screenshots", rawURL, len(shots))
	redirect(w, r, strings.TrimSpace(rawURL)+" added successfully", "")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	index, ok := s.indexParam(w, r)
	if !ok {
		return
	}
	existing, err := s.store.Get(index)
	if err != nil {
		redirect(w, r, "", "That entry no longer exists.")
		return
	}

	rawURL, added, err := s.readForm(w, r)
	if err != nil {
		redirectEdit(w, r, index, err.Error())
		return
	}

	shots := existing.Screenshots
	if r.FormValue("clear") == "1" {
		shots = nil
	}
	shots = append(shots[:len(shots):len(shots)], added...)

	if err := s.store.Update(index, tracker.Entry{URL: rawURL, Screenshots: shots}); err != nil {
		redirectEdit(w, r, index, formError(err))
		return
	}
	internal.Info("Updated entry %d: %s", index+1, rawURL)
	redirect(w, r, strings.TrimSpace(rawURL)+" updated successfully", "")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	index, ok := s.indexParam(w, r)
	if !ok {
		return
	}
	if err := s.store.Remove(index); err != nil {
		redirect(w, r, "", "That entry no longer exists.")
		return
	}
	redirect(w, r, "Item deleted successfully", "")
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	index, ok := s.indexParam(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		http.Error(w, "invalid screenshot index", http.StatusBadRequest)
		return
	}
	entry, err := s.store.Get(index)
	if err != nil || n < 0 || n >= len(entry.Screenshots) {
		http.NotFound(w, r)
		return
	}

	shot := entry.Screenshots[n]
	w.Header().Set("Content-Type", shot.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(shot.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(shot.Data)
}

type previewView struct {
	Link    string
	Preview *clients.Preview
	Full    bool
	Error   string
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	view := previewView{Full: r.URL.Query().Get("full") == "1"}

	link, err := clients.NormalizeURL(r.URL.Query().Get("url"))
	if err != nil {
		view.Error = err.Error()
		s.render(w, http.StatusBadRequest, "preview.html", view)
		return
	}
	view.Link = link

	preview, err := s.preview.FetchPreview(r.Context(), link)
	if err != nil {
		internal.Warn("Preview for %s failed: %v", link, err)
		view.Error = err.Error()
	}
	view.Preview = preview
	s.render(w, http.StatusOK, "preview.html", view)
}

func (s *Server) handlePreviewAPI(w http.ResponseWriter, r *http.Request) {
	preview, err := s.preview.FetchPreview(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, clients.ErrInvalidURL) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entries := s.store.Snapshot()
	if len(entries) == 0 {
		redirect(w, r, "", msgNothing)
		return
	}

	var buf bytes.Buffer
	if _, err := s.exporter.ExportTo(r.Context(), entries, &buf); err != nil {
		internal.Error("Export failed: %v", err)
		if errors.Is(err, exports.ErrEmpty) {
			redirect(w, r, "", msgNothing)
			return
		}
		redirect(w, r, "", "PDF export failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.exporter.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
	internal.Success("PDF exported successfully (%d entries)", len(entries))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "entries": s.store.Len()})
}

// readForm returns the submitted URL and the image uploads, plus a captured
// screenshot when capture=1 was requested.
func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (string, []tracker.ImageBlob, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return "", nil, fmt.Errorf("failed to read form: %v", err)
	}

	rawURL := strings.TrimSpace(r.FormValue("url"))
	var uploads []tracker.ImageBlob
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["screenshots"] {
			blob, err := readUpload(fh)
			if err != nil {
				return "", nil, err
			}
			uploads = append(uploads, blob)
		}
	}

	shots, rejected := tracker.FilterImages(uploads)
	if rejected > 0 {
		internal.Warn("Rejected %d non-image uploads", rejected)
		if len(shots) == 0 {
			return "", nil, errors.New(msgSelectImages)
		}
	}

	if r.FormValue("capture") == "1" && rawURL != "" {
		link, err := clients.NormalizeURL(rawURL)
		if err != nil {
			return "", nil, err
		}
		blob, err := s.capturer.Capture(r.Context(), link)
		if err != nil {
			return "", nil, err
		}
		shots = append(shots, blob)
	}
	return rawURL, shots, nil
}

func readUpload(fh *multipart.FileHeader) (tracker.ImageBlob, error) {
	f, err := fh.Open()
	if err != nil {
		return tracker.ImageBlob{}, fmt.Errorf("failed to open upload %q: %v", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return tracker.ImageBlob{}, fmt.Errorf("failed to read upload %q: %v", fh.Filename, err)
	}
	// The browser's Content-Type comes from the file extension; trust the bytes instead.
	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return tracker.ImageBlob{Name: fh.Filename, MIMEType: mimeType, Data: data}, nil
}

func formError(err error) string {
	switch {
	case errors.Is(err, tracker.ErrEmptyURL), errors.Is(err, tracker.ErrNoScreenshots):
		return msgFillFields
	case errors.Is(err, tracker.ErrNotImage):
		return msgSelectImages
	}
	return err.Error()
}

func (s *Server) indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid entry index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

// render executes the template into a buffer first, so a template error can
// still become a 500 before any header is written.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		internal.Error("Failed to render %s: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func redirect(w http.ResponseWriter, r *http.Request, notice, errMsg string) {
	q := url.Values{}
	if notice != "" {
		q.Set("notice", notice)
	}
	if errMsg != "" {
		q.Set("error", errMsg)
	}
	target := "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func redirectEdit(w http.ResponseWriter, r *http.Request, index int, errMsg string) {
	q := url.Values{"edit": {strconv.Itoa(index)}, "error": {errMsg}}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}
