// Package app ties the phase scheduler, the user assessment board, the run
// store and the report exporter into one controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/joelkehle/venture-assessment/internal/pipeline"
	"github.com/joelkehle/venture-assessment/internal/report"
	"github.com/joelkehle/venture-assessment/internal/scoring"
	"github.com/joelkehle/venture-assessment/internal/store"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

type State string

const (
	StateIdle      State = "idle"
	StateAnalyzing State = "analyzing"
	StateResults   State = "results"
	StateError     State = "error"
)

var ErrNoResults = errors.New("no completed analysis")

// ExportNotReadyError lists what blocks an export.
type ExportNotReadyError struct {
	Errors []string
}

func (e *ExportNotReadyError) Error() string {
	return "cannot export: " + strings.Join(e.Errors, ", ")
}

// Pipeline is the scheduler surface the controller drives.
type Pipeline interface {
	Run(ctx context.Context, rawURL string) (*venture.Aggregate, error)
	Cancel() bool
	Reset()
	Subscribe(fn pipeline.Listener) func()
	Progress() pipeline.Progress
	Phases() []pipeline.Phase
	Results() *venture.Aggregate
}

type Store interface {
	SaveRun(ctx context.Context, r store.Run) error
	GetRun(ctx context.Context, runID string) (store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	SaveAssessment(ctx context.Context, runID string, a scoring.UserAssessment) error
	ListAssessments(ctx context.Context, runID string) ([]scoring.UserAssessment, error)
}

// Snapshot is the controller state exposed to the UI.
type Snapshot struct {
	State State  `json:"state"`
	RunID string `json:"run_id,omitempty"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
	Phase string `json:"failed_phase,omitempty"`
}

type Controller struct {
	pipeline Pipeline
	store    Store
	pdf      report.PDFRenderer
	board    *scoring.Board
	ctx      context.Context
	now      func() time.Time

	mu        sync.Mutex
	state     State
	runID     string
	url       string
	errMsg    string
	failed    string
	startedAt time.Time
	started   chan string
}

// New wires the controller to p's events. Runs execute under ctx, which
// should outlive any single request.
func New(ctx context.Context, p Pipeline, s Store, pdf report.PDFRenderer) *Controller {
	c := &Controller{
		pipeline: p,
		store:    s,
		pdf:      pdf,
		board:    scoring.NewBoard(),
		ctx:      ctx,
		now:      time.Now,
		state:    StateIdle,
	}
	p.Subscribe(c.onEvent)
	return c
}

// Subscribe forwards scheduler events to fn.
func (c *Controller) Subscribe(fn pipeline.Listener) func() { return c.pipeline.Subscribe(fn) }

// Start validates rawURL and launches a run in the background. It returns
// once the run has started.
func (c *Controller) Start(rawURL string) (string, error) {
	companyURL, err := pipeline.ValidateURL(rawURL)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	if c.state == StateAnalyzing {
		c.mu.Unlock()
		return "", venture.ErrAlreadyRunning
	}
	prev := c.state
	c.state = StateAnalyzing
	c.errMsg, c.failed = "", ""
	started := make(chan string, 1)
	c.started = started
	c.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if _, err := c.pipeline.Run(c.ctx, companyURL); err != nil {
			errCh <- err
		}
	}()

	select {
	case id := <-started:
		return id, nil
	case err := <-errCh:
		select {
		case id := <-started:
			return id, nil
		default:
		}
		c.mu.Lock()
		if c.state == StateAnalyzing && c.started == started {
			c.state = prev
		}
		c.mu.Unlock()
		return "", err
	}
}

// Analyze runs one assessment synchronously.
func (c *Controller) Analyze(ctx context.Context, rawURL string) (*venture.Aggregate, error) {
	c.mu.Lock()
	if c.state == StateAnalyzing {
		c.mu.Unlock()
		return nil, venture.ErrAlreadyRunning
	}
	c.mu.Unlock()
	return c.pipeline.Run(ctx, rawURL)
}

func (c *Controller) Cancel() bool { return c.pipeline.Cancel() }

// Reset aborts any active run and clears results and assessments.
func (c *Controller) Reset() {
	c.pipeline.Reset()
	c.board.Load("", nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.runID, c.url, c.errMsg, c.failed = "", "", "", ""
	c.startedAt = time.Time{}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, RunID: c.runID, URL: c.url, Error: c.errMsg, Phase: c.failed}
}

func (c *Controller) Progress() pipeline.Progress { return c.pipeline.Progress() }

func (c *Controller) Phases() []pipeline.Phase { return c.pipeline.Phases() }

func (c *Controller) Results() *venture.Aggregate { return c.pipeline.Results() }

func (c *Controller) Assessments() []scoring.UserAssessment { return c.board.All() }

func (c *Controller) onEvent(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventStart:
		c.mu.Lock()
		c.state = StateAnalyzing
		c.runID, c.url = e.RunID, e.URL
		c.startedAt = c.now()
		started := c.started
		c.started = nil
		c.mu.Unlock()
		if started != nil {
			started <- e.RunID
		}
	case pipeline.EventComplete:
		c.board.Load(e.RunID, e.Aggregate)
		c.persistRun(e.RunID, string(pipeline.RunCompleted), e.Aggregate, "", "")
		for _, a := range c.board.All() {
			c.persistAssessment(e.RunID, a)
		}
		c.setState(StateResults, "", "")
	case pipeline.EventError:
		c.persistRun(e.RunID, string(pipeline.RunFailed), c.pipeline.Results(), e.Message, string(e.Phase))
		c.setState(StateError, e.Message, string(e.Phase))
	case pipeline.EventCancelled:
		c.persistRun(e.RunID, string(pipeline.RunCancelled), c.pipeline.Results(), venture.ErrCancelled.Error(), "")
		c.setState(StateIdle, "", "")
	}
}

func (c *Controller) setState(st State, errMsg, phase string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st
	c.errMsg, c.failed = errMsg, phase
}

func (c *Controller) persistRun(runID, status string, agg *venture.Aggregate, errMsg, phase string) {
	if c.store == nil || runID == "" {
		return
	}
	c.mu.Lock()
	run := store.Run{
		RunID:       runID,
		CompanyURL:  c.url,
		Status:      status,
		Results:     agg,
		Error:       errMsg,
		FailedPhase: phase,
		StartedAt:   c.startedAt,
		CompletedAt: c.now(),
	}
	c.mu.Unlock()
	if agg != nil {
		run.TechDescription = agg.TechDescription
	}
	if err := c.store.SaveRun(context.Background(), run); err != nil {
		log.Printf("app store save run failed run_id=%s err=%v", runID, err)
	}
}

func (c *Controller) persistAssessment(runID string, a scoring.UserAssessment) {
	if c.store == nil || runID == "" {
		return
	}
	if err := c.store.SaveAssessment(context.Background(), runID, a); err != nil {
		log.Printf("app store save assessment failed run_id=%s domain=%s err=%v", runID, a.Domain, err)
	}
}

func (c *Controller) requireResults() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateResults {
		return "", ErrNoResults
	}
	return c.runID, nil
}

// UpdateAssessment edits the user score and justification for d.
func (c *Controller) UpdateAssessment(d venture.Domain, score int, justification string) (scoring.UserAssessment, error) {
	runID, err := c.requireResults()
	if err != nil {
		return scoring.UserAssessment{}, err
	}
	a, err := c.board.Update(d, score, justification)
	if err != nil {
		return a, err
	}
	c.persistAssessment(runID, a)
	return a, nil
}

// SubmitAssessment locks the assessment for d and returns its deviation
// from the automated score.
func (c *Controller) SubmitAssessment(d venture.Domain) (scoring.UserAssessment, *scoring.Deviation, error) {
	runID, err := c.requireResults()
	if err != nil {
		return scoring.UserAssessment{}, nil, err
	}
	a, dev, err := c.board.Submit(d)
	if err != nil {
		return a, nil, err
	}
	c.persistAssessment(runID, a)
	return a, dev, nil
}

func (c *Controller) ExportReadiness() report.Readiness {
	return report.ValidateExport(c.pipeline.Results(), c.board)
}

// ExportMarkdown renders the report once every result and user score is in.
func (c *Controller) ExportMarkdown() (string, error) {
	if r := c.ExportReadiness(); !r.Valid {
		return "", &ExportNotReadyError{Errors: r.Errors}
	}
	return report.BuildMarkdown(c.pipeline.Results(), c.board.All(), c.now()), nil
}

// ExportPDF renders the report as PDF and suggests a file name for it.
func (c *Controller) ExportPDF(ctx context.Context) ([]byte, string, error) {
	md, err := c.ExportMarkdown()
	if err != nil {
		return nil, "", err
	}
	if c.pdf == nil {
		return nil, "", errors.New("pdf export is not configured")
	}
	pdf, err := c.pdf.Render(ctx, md)
	if err != nil {
		return nil, "", fmt.Errorf("export pdf: %w", err)
	}
	return pdf, exportFilename(c.pipeline.Results(), c.now()), nil
}

func (c *Controller) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	return c.store.ListRuns(ctx, limit)
}

// Run returns a stored run with its saved assessments.
func (c *Controller) Run(ctx context.Context, runID string) (store.Run, []scoring.UserAssessment, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return store.Run{}, nil, err
	}
	assessments, err := c.store.ListAssessments(ctx, runID)
	if err != nil {
		return store.Run{}, nil, err
	}
	return run, assessments, nil
}

var whitespace = regexp.MustCompile(`\s+`)

func exportFilename(agg *venture.Aggregate, now time.Time) string {
	name := "company"
	if res := agg.For(venture.DomainCompany); res != nil {
		if overview, ok := res.Primary["company_overview"].(map[string]any); ok {
			if s, ok := overview["name"].(string); ok && strings.TrimSpace(s) != "" {
				name = strings.TrimSpace(s)
			}
		}
	}
	name = whitespace.ReplaceAllString(strings.ToLower(name), "_")
	return fmt.Sprintf("assessment_%s_%s.pdf", name, now.UTC().Format("2006-01-02"))
}
