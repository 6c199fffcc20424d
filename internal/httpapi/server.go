// Package httpapi exposes the assessment controller over HTTP: run control,
// progress, results, user assessments, export and a server-sent event stream.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/joelkehle/venture-assessment/internal/app"
	"github.com/joelkehle/venture-assessment/internal/pipeline"
	"github.com/joelkehle/venture-assessment/internal/report"
	"github.com/joelkehle/venture-assessment/internal/scoring"
	"github.com/joelkehle/venture-assessment/internal/store"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

const (
	maxBodyBytes      = 1 << 20
	eventBuffer       = 64
	keepAliveInterval = 15 * time.Second
)

// Controller is the application surface the server drives.
type Controller interface {
	Start(rawURL string) (string, error)
	Cancel() bool
	Reset()
	Snapshot() app.Snapshot
	Progress() pipeline.Progress
	Phases() []pipeline.Phase
	Results() *venture.Aggregate
	Subscribe(fn pipeline.Listener) func()
	Assessments() []scoring.UserAssessment
	UpdateAssessment(d venture.Domain, score int, justification string) (scoring.UserAssessment, error)
	SubmitAssessment(d venture.Domain) (scoring.UserAssessment, *scoring.Deviation, error)
	ExportReadiness() report.Readiness
	ExportPDF(ctx context.Context) ([]byte, string, error)
	Runs(ctx context.Context, limit int) ([]store.Run, error)
	Run(ctx context.Context, runID string) (store.Run, []scoring.UserAssessment, error)
}

type Server struct {
	ctrl      Controller
	webDir    string
	validate  *validator.Validate
	keepAlive time.Duration
}

type startRequest struct {
	URL string `json:"url" validate:"required"`
}

type assessmentRequest struct {
	Score         int    `json:"score" validate:"omitempty,min=1,max=9"`
	Justification string `json:"justification" validate:"max=2000"`
}

func NewServer(ctrl Controller, webDir string) http.Handler {
	s := &Server{
		ctrl:      ctrl,
		webDir:    webDir,
		validate:  validator.New(),
		keepAlive: keepAliveInterval,
	}
	return s.routes()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/analyses", s.handleStart)
	mux.HandleFunc("GET /api/analyses/current", s.handleCurrent)
	mux.HandleFunc("POST /api/analyses/cancel", s.handleCancel)
	mux.HandleFunc("POST /api/analyses/reset", s.handleReset)
	mux.HandleFunc("GET /api/progress", s.handleProgress)
	mux.HandleFunc("GET /api/results", s.handleResults)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/assessments", s.handleAssessments)
	mux.HandleFunc("PUT /api/assessments/{domain}", s.handleUpdateAssessment)
	mux.HandleFunc("POST /api/assessments/{domain}/submit", s.handleSubmitAssessment)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/export.pdf", s.handleExportPDF)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeFailure maps controller errors onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var ve *venture.ValidationError
	var notReady *app.ExportNotReadyError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notReady):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "export is not ready", "errors": notReady.Errors})
	case errors.Is(err, venture.ErrAlreadyRunning), errors.Is(err, scoring.ErrAlreadySubmitted), errors.Is(err, app.ErrNoResults):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("httpapi request failed err=%v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	blob, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag()))
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func scoredDomain(w http.ResponseWriter, r *http.Request) (venture.Domain, bool) {
	d, ok := venture.ParseDomain(r.PathValue("domain"))
	if !ok || d == venture.DomainCompany {
		writeError(w, http.StatusNotFound, "unknown assessment domain")
		return "", false
	}
	return d, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !s.decode(w, r, &req) {
		return
	}
	runID, err := s.ctrl.Start(req.URL)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID})
}

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"analysis": s.ctrl.Snapshot(),
		"phases":   s.ctrl.Phases(),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	if !s.ctrl.Cancel() {
		writeError(w, http.StatusConflict, "no analysis in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Reset()
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Progress())
}

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Results())
}

func (s *Server) handleAssessments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"assessments": s.ctrl.Assessments()})
}

func (s *Server) handleUpdateAssessment(w http.ResponseWriter, r *http.Request) {
	d, ok := scoredDomain(w, r)
	if !ok {
		return
	}
	var req assessmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.ctrl.UpdateAssessment(d, req.Score, req.Justification)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	d, ok := scoredDomain(w, r)
	if !ok {
		return
	}
	a, dev, err := s.ctrl.SubmitAssessment(d)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessment": a, "deviation": dev})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.ExportReadiness())
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	pdf, name, err := s.ctrl.ExportPDF(r.Context())
	var notReady *app.ExportNotReadyError
	switch {
	case errors.As(err, &notReady):
		writeFailure(w, err)
		return
	case err != nil:
		log.Printf("httpapi pdf export failed err=%v", err)
		writeError(w, http.StatusBadGateway, "failed to render pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.ctrl.Runs(r.Context(), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, assessments, err := s.ctrl.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "assessments": assessments})
}

// handleEvents streams scheduler events until the client disconnects.
// Events are dropped for a client that falls behind.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := make(chan pipeline.Event, eventBuffer)
	unsubscribe := s.ctrl.Subscribe(func(e pipeline.Event) {
		select {
		case events <- e:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	bw := bufio.NewWriter(w)
	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := bw.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
		case evt := <-events:
			blob, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(bw, "event: %s\ndata: %s\n\n", evt.Type, blob); err != nil {
				return
			}
		}
		if err := bw.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// Prevent stale frontend bundles from breaking the UI after deploys.
	w.Header().Set("Cache-Control", "no-store")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.URL.Path == "/" || r.URL.Path == "/index.html" {
		http.ServeFile(w, r, filepath.Join(s.webDir, "index.html"))
		return
	}
	rel := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
	if _, err := fs.Stat(os.DirFS(s.webDir), rel); err == nil {
		http.ServeFile(w, r, filepath.Join(s.webDir, rel))
		return
	}
	http.NotFound(w, r)
}
