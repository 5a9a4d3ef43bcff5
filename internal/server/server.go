// Package server exposes character editing sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/setanarut/portrait"
	"github.com/setanarut/portrait/catalog"
	"github.com/setanarut/portrait/utils"
)

// WarningsHeader lists the sources that failed to load for the returned
// frame, comma separated.
const WarningsHeader = "X-Portrait-Warnings"

const maxThumbnail = 1024

var errSessionNotFound = errors.New("session not found")

type Server struct {
	catalog  catalog.Catalog
	loader   portrait.Loader
	opts     portrait.Options
	sessions *cache.Cache
}

// New builds a Server. Sessions idle longer than sessionTTL are dropped.
func New(cat catalog.Catalog, loader portrait.Loader, opts portrait.Options, sessionTTL time.Duration) *Server {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &Server{
		catalog:  cat,
		loader:   loader,
		opts:     opts,
		sessions: cache.New(sessionTTL, 2*sessionTTL),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /catalog", s.handleCatalog)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.withSession(s.handleGetSession))
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PUT /sessions/{id}/body", s.withSession(s.handleSelectBody))
	mux.HandleFunc("PUT /sessions/{id}/layers/{index}", s.withSession(s.handleSelectPart))
	mux.HandleFunc("DELETE /sessions/{id}/layers/{index}", s.withSession(s.handleClearPart))
	mux.HandleFunc("PUT /sessions/{id}/border", s.withSession(s.handleBorder))
	mux.HandleFunc("GET /sessions/{id}/image.png", s.withSession(s.handleImage))
	mux.HandleFunc("GET /sessions/{id}/export", s.withSession(s.handleExport))
	mux.HandleFunc("GET /sessions/{id}/outline.svg", s.withSession(s.handleOutlineSVG))
	return mux
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *portrait.Session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) session(id string) (*portrait.Session, error) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, errSessionNotFound
	}
	sess := v.(*portrait.Session)
	// Touch to extend the idle deadline.
	s.sessions.Set(id, sess, cache.DefaultExpiration)
	return sess, nil
}

type layerView struct {
	Index  int    `json:"index"`
	Key    string `json:"key"`
	Source string `json:"source"`
}

type sessionView struct {
	ID          string      `json:"id"`
	BodyType    string      `json:"bodyType"`
	BorderColor string      `json:"borderColor"`
	Layers      []layerView `json:"layers"`
	Generation  uint64      `json:"generation"`
	Warnings    []string    `json:"warnings,omitempty"`
}

func viewOf(sess *portrait.Session) sessionView {
	bt := sess.BodyType()
	v := sessionView{
		ID:          sess.ID,
		BodyType:    bt.Key,
		BorderColor: utils.FormatColor(sess.BorderColor()),
		Layers:      []layerView{},
	}
	for _, l := range sess.Layers() {
		lv := layerView{Index: l.Index, Source: l.Source}
		if il, ok := bt.LayerAt(l.Index); ok {
			lv.Key = il.Key
		}
		v.Layers = append(v.Layers, lv)
	}
	if f := sess.LastFrame(); f != nil {
		v.Generation = f.Generation
		v.Warnings = portrait.FailedSources(f.Errors)
	}
	return v
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog)
}

type bodyRequest struct {
	BodyType string `json:"bodyType"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req bodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bt, err := s.catalog.BodyType(req.BodyType)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	sess := portrait.NewSession(bt, s.loader, s.opts)
	s.sessions.Set(sess.ID, sess, cache.DefaultExpiration)
	s.render(r.Context(), w, sess)
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *portrait.Session) {
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectBody(w http.ResponseWriter, r *http.Request, sess *portrait.Session) {
	var req bodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bt, err := s.catalog.BodyType(req.BodyType)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	sess.SelectBodyType(bt)
	s.render(r.Context(), w, sess)
	writeJSON(w, http.StatusOK, viewOf(sess))
}

type partRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleSelectPart(w http.ResponseWriter, r *http.Request, sess *portrait.Session) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("layer index: %w", err))
		return
	}
	var req partRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.SelectPart(index, req.Source); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.render(r.Context(), w, sess)
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleClearPart(w http.ResponseWriter, r *http.Request, sess *portrait.Session) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("layer index: %w", err))
		return
	}
	if err := sess.ClearPart(index); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.render(r.Context(), w, sess)
	writeJSON(w, http.StatusOK, viewOf(sess))
}

type borderRequest struct {
	// A color accepted by utils.ParseColor, or "auto" to derive one from the
	// current composite.
	Color string `json:"color"`
}

func (s *Server) handleBorder(w http.ResponseWriter, r *http.Request, sess *portrait.Session) {
	var req borderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.EqualFold(strings.TrimSpace(req.Color), "auto") {
		f := s.frame(r.Context(), w, sess)
		if f == nil {
			return
		}
		sess.Recolor(utils.SuggestBorderColor(f.Composite, utils.PaletteMethodKMeans))
		writeJSON(w, http.StatusOK, viewOf(sess))
		return
	}
	c, err := utils.ParseColor(req.Color)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, ok := sess.Recolor(c); !ok {
		s.render(r.Context(), w, sess)
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, sess *portrait.Session) {
	f := s.frame(r.Context(), w, sess)
	if f == nil {
		return
	}
	var img image.Image = f.Outlined
	if raw := r.URL.Query().Get("thumb"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 || size > maxThumbnail {
			writeError(w, http.StatusBadRequest, fmt.Errorf("thumb must be between 1 and %d", maxThumbnail))
			return
		}
		img = utils.Thumbnail(img, size)
	}
	s.writePNG(w, img, "")
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *portrait.Session) {
	f := s.frame(r.Context(), w, sess)
	if f == nil {
		return
	}
	s.writePNG(w, f.Outlined, utils.ExportFileName)
}

// handleOutlineSVG exports the outlined silhouette as one path with a subpath
// per separate region.
func (s *Server) handleOutlineSVG(w http.ResponseWriter, r *http.Request, sess *portrait.Session) {
	f := s.frame(r.Context(), w, sess)
	if f == nil {
		return
	}
	polys := portrait.TraceContours(f.Outlined, 0)
	for i, p := range polys {
		polys[i] = portrait.SimplifyContour(p)
	}
	b := f.Outlined.Bounds()
	w.Header().Set("Content-Type", "image/svg+xml")
	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		b.Dx(), b.Dy(), b.Dx(), b.Dy())
	fmt.Fprintf(w, `<path d="%s" fill="%s"/></svg>`, portrait.ContoursSVGPath(polys), utils.FormatColor(f.Border))
}

// frame returns the session's last frame, rendering one first if needed. It
// writes an error response and returns nil when rendering fails.
func (s *Server) frame(ctx context.Context, w http.ResponseWriter, sess *portrait.Session) *portrait.Frame {
	if f := sess.LastFrame(); f != nil {
		setWarnings(w, f)
		return f
	}
	if !s.render(ctx, w, sess) {
		writeError(w, http.StatusBadGateway, errors.New("render failed"))
		return nil
	}
	return sess.LastFrame()
}

// render renders the session and reports whether a frame is available
// afterwards. Load failures degrade the frame instead of failing.
func (s *Server) render(ctx context.Context, w http.ResponseWriter, sess *portrait.Session) bool {
	f, err := sess.Render(ctx)
	switch {
	case errors.Is(err, portrait.ErrStaleGeneration):
		portrait.Logger().DebugContext(ctx, "render superseded", "session", sess.ID)
	case err != nil:
		portrait.Logger().ErrorContext(ctx, "render failed", "session", sess.ID, "error", err)
	default:
		setWarnings(w, f)
	}
	return sess.LastFrame() != nil
}

func setWarnings(w http.ResponseWriter, f *portrait.Frame) {
	if failed := portrait.FailedSources(f.Errors); len(failed) > 0 {
		w.Header().Set(WarningsHeader, strings.Join(failed, ","))
	}
}

func (s *Server) writePNG(w http.ResponseWriter, img image.Image, attachment string) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if attachment != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		portrait.Logger().Warn("write png", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, portrait.ErrUnknownLayer), errors.Is(err, portrait.ErrUnknownPart):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
