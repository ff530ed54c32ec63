package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/rhymebinder/internal/allocator"
	"github.com/local/rhymebinder/internal/limiter"
	"github.com/local/rhymebinder/internal/metrics"
	"github.com/local/rhymebinder/internal/renderer"
)

// BinderRenderer produces the printable PDF for one school+grade.
type BinderRenderer interface {
	Render(ctx context.Context, school string, grade allocator.Grade) ([]byte, string, error)
}

type Dependencies struct {
	Allocator *allocator.Allocator
	Renderer  BinderRenderer
	Limiter   *limiter.Render
}

type Server struct {
	deps Dependencies
}

func New(deps Dependencies) *Server {
	if deps.Limiter == nil {
		deps.Limiter = limiter.New(0)
	}
	return &Server{deps: deps}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("/rhymes/available/", s.handleAvailable)
	mux.HandleFunc("/rhymes/selected/other-grades/", s.handleOtherGrades)
	mux.HandleFunc("/rhymes/selected/", s.handleSelected)
	mux.HandleFunc("/rhymes/select", s.handleSelect)
	mux.HandleFunc("/rhymes/remove/", s.handleRemove)
	mux.HandleFunc("/rhymes/status/", s.handleStatus)
	mux.HandleFunc("/rhymes/binder/", s.handleBinder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// pathParts splits the remainder of the URL after prefix into non-empty segments.
func pathParts(r *http.Request, prefix string) []string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// GET /rhymes/available/{school}/{grade}?include_selected=true
func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r, "/rhymes/available/")
	if len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "expected /rhymes/available/{school}/{grade}")
		return
	}
	grade, err := allocator.ParseGrade(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeSelected := parseBoolParam(r.URL.Query().Get("include_selected"))
	buckets, err := s.deps.Allocator.ListAvailable(r.Context(), parts[0], grade, includeSelected)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list available failed")
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

// GET /rhymes/selected/{school} or /rhymes/selected/{school}/{grade}
func (s *Server) handleSelected(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r, "/rhymes/selected/")
	switch len(parts) {
	case 1:
		byGrade, err := s.deps.Allocator.ListBySchool(r.Context(), parts[0])
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list selected failed")
			return
		}
		writeJSON(w, http.StatusOK, byGrade)
	case 2:
		grade, err := allocator.ParseGrade(parts[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sels, err := s.deps.Allocator.ListSelected(r.Context(), parts[0], grade)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list selected failed")
			return
		}
		writeJSON(w, http.StatusOK, sels)
	default:
		writeError(w, http.StatusBadRequest, "expected /rhymes/selected/{school}[/{grade}]")
	}
}

// GET /rhymes/selected/other-grades/{school}/{grade}
func (s *Server) handleOtherGrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r, "/rhymes/selected/other-grades/")
	if len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "expected /rhymes/selected/other-grades/{school}/{grade}")
		return
	}
	grade, err := allocator.ParseGrade(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	buckets, err := s.deps.Allocator.ListReusable(r.Context(), parts[0], grade)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list reusable failed")
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

type selectReq struct {
	SchoolID  string `json:"school_id"`
	Grade     string `json:"grade"`
	PageIndex int    `json:"page_index"`
	RhymeCode string `json:"rhyme_code"`
	Position  string `json:"position"`
}

// POST /rhymes/select
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SchoolID == "" || req.RhymeCode == "" {
		writeError(w, http.StatusBadRequest, "missing school_id or rhyme_code")
		return
	}
	if req.PageIndex < 0 {
		writeError(w, http.StatusBadRequest, "page_index must be >= 0")
		return
	}
	grade, err := allocator.ParseGrade(req.Grade)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sel, err := s.deps.Allocator.Select(r.Context(), req.SchoolID, grade, req.PageIndex, req.RhymeCode, req.Position)
	if err != nil {
		if errors.Is(err, allocator.ErrNotFound) {
			metrics.IncSelectionOp("select", "not_found")
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		metrics.IncSelectionOp("select", "error")
		log.Error().Err(err).Str("school", req.SchoolID).Str("grade", string(grade)).Msg("select failed")
		writeError(w, http.StatusInternalServerError, "select failed")
		return
	}
	metrics.IncSelectionOp("select", "ok")
	writeJSON(w, http.StatusOK, sel)
}

// DELETE /rhymes/remove/{school}/{grade}/{page_index}/{position}
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r, "/rhymes/remove/")
	if len(parts) != 4 {
		writeError(w, http.StatusBadRequest, "expected /rhymes/remove/{school}/{grade}/{page_index}/{position}")
		return
	}
	grade, err := allocator.ParseGrade(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pageIndex, err := strconv.Atoi(parts[2])
	if err != nil || pageIndex < 0 {
		writeError(w, http.StatusBadRequest, "invalid page_index")
		return
	}
	pos, err := allocator.ParsePosition(parts[3])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Allocator.Remove(r.Context(), parts[0], grade, pageIndex, pos); err != nil {
		if errors.Is(err, allocator.ErrNotFound) {
			metrics.IncSelectionOp("remove", "not_found")
			writeError(w, http.StatusNotFound, "no matching selection")
			return
		}
		metrics.IncSelectionOp("remove", "error")
		log.Error().Err(err).Str("school", parts[0]).Msg("remove failed")
		writeError(w, http.StatusInternalServerError, "remove failed")
		return
	}
	metrics.IncSelectionOp("remove", "ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// GET /rhymes/status/{school}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r, "/rhymes/status/")
	if len(parts) != 1 {
		writeError(w, http.StatusBadRequest, "expected /rhymes/status/{school}")
		return
	}
	status, err := s.deps.Allocator.Status(r.Context(), parts[0])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status failed")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GET /rhymes/binder/{school}/{grade}
func (s *Server) handleBinder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r, "/rhymes/binder/")
	if len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "expected /rhymes/binder/{school}/{grade}")
		return
	}
	grade, err := allocator.ParseGrade(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, ok := s.deps.Limiter.Allow(parts[0], string(grade))
	if !ok {
		writeError(w, http.StatusTooManyRequests, "binder render already in progress, retry shortly")
		return
	}
	defer release()

	pdfBytes, filename, err := s.deps.Renderer.Render(r.Context(), parts[0], grade)
	if err != nil {
		switch {
		case errors.Is(err, renderer.ErrNoContent):
			writeError(w, http.StatusNotFound, "no rhymes selected for this grade")
		case errors.Is(err, renderer.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "binder rendering unavailable")
		default:
			log.Error().Err(err).Str("school", parts[0]).Str("grade", string(grade)).Msg("binder render failed")
			writeError(w, http.StatusInternalServerError, "binder render failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))
	_, _ = w.Write(pdfBytes)
}

func parseBoolParam(s string) bool {
	v := strings.ToLower(s)
	return v == "1" || v == "true" || v == "yes"
}
