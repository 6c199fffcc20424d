package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joelkehle/venture-assessment/internal/app"
	"github.com/joelkehle/venture-assessment/internal/pipeline"
	"github.com/joelkehle/venture-assessment/internal/report"
	"github.com/joelkehle/venture-assessment/internal/scoring"
	"github.com/joelkehle/venture-assessment/internal/store"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

type fakeController struct {
	mu        sync.Mutex
	startErr  error
	started   []string
	cancelled bool
	resets    int
	updates   []scoring.UserAssessment
	submitErr error
	exportErr error
	listeners []pipeline.Listener
}

func (f *fakeController) Start(rawURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, rawURL)
	return "run-1", nil
}

func (f *fakeController) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := !f.cancelled && len(f.started) > 0
	if was {
		f.cancelled = true
	}
	return was
}

func (f *fakeController) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeController) Snapshot() app.Snapshot { return app.Snapshot{State: app.StateIdle} }

func (f *fakeController) Progress() pipeline.Progress {
	return pipeline.Progress{Percentage: 42, ActivePhaseNames: []string{"Team Analysis"}}
}

func (f *fakeController) Phases() []pipeline.Phase {
	return []pipeline.Phase{{Key: venture.DomainCompany, Name: "Company Analysis", Status: pipeline.StatusCompleted}}
}

func (f *fakeController) Results() *venture.Aggregate {
	return &venture.Aggregate{RunID: "run-1", CompanyURL: "https://acme.example"}
}

func (f *fakeController) Subscribe(fn pipeline.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeController) emit(e pipeline.Event) {
	f.mu.Lock()
	ls := append([]pipeline.Listener(nil), f.listeners...)
	f.mu.Unlock()
	for _, fn := range ls {
		fn(e)
	}
}

func (f *fakeController) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeController) Assessments() []scoring.UserAssessment {
	return []scoring.UserAssessment{{Domain: venture.DomainTeam, Score: 5}}
}

func (f *fakeController) UpdateAssessment(d venture.Domain, score int, justification string) (scoring.UserAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := scoring.UserAssessment{Domain: d, Score: score, Justification: justification}
	f.updates = append(f.updates, a)
	return a, nil
}

func (f *fakeController) SubmitAssessment(d venture.Domain) (scoring.UserAssessment, *scoring.Deviation, error) {
	if f.submitErr != nil {
		return scoring.UserAssessment{}, nil, f.submitErr
	}
	dev := scoring.CheckDeviation(2, 8)
	return scoring.UserAssessment{Domain: d, Score: 8, Submitted: true}, &dev, nil
}

func (f *fakeController) ExportReadiness() report.Readiness {
	return report.Readiness{Valid: false, Errors: []string{"User team score is missing"}}
}

func (f *fakeController) ExportPDF(context.Context) ([]byte, string, error) {
	if f.exportErr != nil {
		return nil, "", f.exportErr
	}
	return []byte("%PDF-1.7"), "assessment_acme_2026-04-02.pdf", nil
}

func (f *fakeController) Runs(context.Context, int) ([]store.Run, error) {
	return []store.Run{{RunID: "run-1", Status: "completed"}}, nil
}

func (f *fakeController) Run(_ context.Context, id string) (store.Run, []scoring.UserAssessment, error) {
	if id != "run-1" {
		return store.Run{}, nil, store.ErrNotFound
	}
	return store.Run{RunID: id}, nil, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestStartAnalysis(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer(ctrl, t.TempDir())

	w := do(t, h, http.MethodPost, "/api/analyses", `{"url":"acme.example"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["run_id"] != "run-1" || ctrl.started[0] != "acme.example" {
		t.Fatalf("unexpected start: %s", w.Body.String())
	}

	if w := do(t, h, http.MethodPost, "/api/analyses", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing url status=%d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/analyses", `{`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", w.Code)
	}
}

func TestStartErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{venture.ErrAlreadyRunning, http.StatusConflict},
		{&venture.ValidationError{Field: "url", Reason: "Invalid domain name"}, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewServer(&fakeController{startErr: tt.err}, t.TempDir())
		w := do(t, h, http.MethodPost, "/api/analyses", `{"url":"acme.example"}`)
		if w.Code != tt.want {
			t.Fatalf("%v: status=%d want %d", tt.err, w.Code, tt.want)
		}
		if decodeBody(t, w)["error"] == "" {
			t.Fatal("error body expected")
		}
	}
}

func TestCancelAndReset(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer(ctrl, t.TempDir())

	if w := do(t, h, http.MethodPost, "/api/analyses/cancel", ""); w.Code != http.StatusConflict {
		t.Fatalf("cancel idle status=%d", w.Code)
	}
	do(t, h, http.MethodPost, "/api/analyses", `{"url":"acme.example"}`)
	if w := do(t, h, http.MethodPost, "/api/analyses/cancel", ""); w.Code != http.StatusOK {
		t.Fatalf("cancel status=%d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/analyses/cancel", ""); w.Code != http.StatusConflict {
		t.Fatalf("second cancel status=%d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/analyses/reset", ""); w.Code != http.StatusOK || ctrl.resets != 1 {
		t.Fatalf("reset status=%d resets=%d", w.Code, ctrl.resets)
	}
}

func TestReadEndpoints(t *testing.T) {
	h := NewServer(&fakeController{}, t.TempDir())

	w := do(t, h, http.MethodGet, "/api/progress", "")
	if w.Code != http.StatusOK || decodeBody(t, w)["percentage"] != 42.0 {
		t.Fatalf("progress: %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/results", "")
	if w.Code != http.StatusOK || decodeBody(t, w)["company_url"] != "https://acme.example" {
		t.Fatalf("results: %s", w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/analyses/current", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"state":"idle"`) {
		t.Fatalf("current: %s", w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/export", "")
	if w.Code != http.StatusOK || decodeBody(t, w)["valid"] != false {
		t.Fatalf("export: %s", w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/runs", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"run_id":"run-1"`) {
		t.Fatalf("runs: %s", w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/api/runs/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing run status=%d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/unknown", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown api status=%d", w.Code)
	}
}

func TestAssessmentEndpoints(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer(ctrl, t.TempDir())

	w := do(t, h, http.MethodPut, "/api/assessments/ip-risk", `{"score":8,"justification":"strong claims"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
	}
	if ctrl.updates[0].Domain != venture.DomainIPRisk || ctrl.updates[0].Score != 8 {
		t.Fatalf("unexpected update: %+v", ctrl.updates[0])
	}
	if w := do(t, h, http.MethodPut, "/api/assessments/team", `{"score":12}`); w.Code != http.StatusBadRequest {
		t.Fatalf("out of range status=%d", w.Code)
	}
	if w := do(t, h, http.MethodPut, "/api/assessments/company", `{"score":5}`); w.Code != http.StatusNotFound {
		t.Fatalf("company status=%d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/api/assessments/market/submit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("submit status=%d", w.Code)
	}
	dev := decodeBody(t, w)["deviation"].(map[string]any)
	if dev["hasDeviation"] != true || dev["deviation"] != 6.0 {
		t.Fatalf("unexpected deviation: %v", dev)
	}

	ctrl.submitErr = scoring.ErrAlreadySubmitted
	if w := do(t, h, http.MethodPost, "/api/assessments/market/submit", ""); w.Code != http.StatusConflict {
		t.Fatalf("resubmit status=%d", w.Code)
	}
	ctrl.submitErr = &venture.ValidationError{Field: "justification", Reason: "must be at least 20 characters"}
	if w := do(t, h, http.MethodPost, "/api/assessments/market/submit", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid submit status=%d", w.Code)
	}
}

func TestExportPDF(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer(ctrl, t.TempDir())

	w := do(t, h, http.MethodGet, "/api/export.pdf", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("status=%d type=%s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "assessment_acme_2026-04-02.pdf") {
		t.Fatalf("disposition=%s", w.Header().Get("Content-Disposition"))
	}

	ctrl.exportErr = &app.ExportNotReadyError{Errors: []string{"User team score is missing"}}
	w = do(t, h, http.MethodGet, "/api/export.pdf", "")
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "User team score is missing") {
		t.Fatalf("not ready: %d %s", w.Code, w.Body.String())
	}

	ctrl.exportErr = errors.New("chrome crashed")
	if w := do(t, h, http.MethodGet, "/api/export.pdf", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("render failure status=%d", w.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Venture</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := NewServer(&fakeController{}, dir)

	if w := do(t, h, http.MethodGet, "/", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Venture") {
		t.Fatalf("index: %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/app.js", ""); w.Code != http.StatusOK {
		t.Fatalf("asset: %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/missing.css", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", w.Code)
	}
}

func TestEventStream(t *testing.T) {
	ctrl := &fakeController{}
	srv := httptest.NewServer(NewServer(ctrl, t.TempDir()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type=%s", ct)
	}

	for ctrl.subscribers() == 0 {
		if ctx.Err() != nil {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ctrl.emit(pipeline.Event{Type: pipeline.EventPhaseStart, RunID: "run-1", Phase: venture.DomainTeam, Name: "Team Analysis"})

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if lines[0] != "event: phaseStart" {
		t.Fatalf("event line=%q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "data: ") || !strings.Contains(lines[1], `"phaseKey":"team"`) {
		t.Fatalf("data line=%q", lines[1])
	}
}
