package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joelkehle/venture-assessment/internal/analysisclient"
	"github.com/joelkehle/venture-assessment/internal/normalize"
	"github.com/joelkehle/venture-assessment/internal/telemetry"
	"github.com/joelkehle/venture-assessment/internal/venture"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/joelkehle/venture-assessment/internal/pipeline"

var errStaleRun = errors.New("run was reset")

// memo is the shared outcome of one phase execution.
type memo struct {
	done chan struct{}
	res  *venture.Result
	err  error
}

type Option func(*Scheduler)

// WithClock replaces time.Now for timestamps and progress.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithPhases replaces the phase table. Keys must match DefaultPhases.
func WithPhases(specs []PhaseSpec) Option {
	return func(s *Scheduler) { s.specs = specs }
}

// WithNormalizers overrides the per-domain normalizers.
func WithNormalizers(n map[venture.Domain]normalize.Normalizer) Option {
	return func(s *Scheduler) {
		for d, v := range n {
			s.normalizers[d] = v
		}
	}
}

// Scheduler runs at most one assessment at a time.
type Scheduler struct {
	clients     analysisclient.Set
	normalizers map[venture.Domain]normalize.Normalizer
	specs       []PhaseSpec
	now         func() time.Time
	tracer      trace.Tracer
	events      broadcaster

	mu        sync.Mutex
	gen       uint64
	status    RunStatus
	runID     string
	url       string
	techDesc  string
	startedAt time.Time
	endedAt   time.Time
	cancel    context.CancelFunc
	cancelled bool
	phases    map[venture.Domain]*phaseState
	memos     map[venture.Domain]*memo
}

func New(clients analysisclient.Set, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		clients:     clients,
		normalizers: map[venture.Domain]normalize.Normalizer{},
		specs:       DefaultPhases,
		now:         time.Now,
		tracer:      otel.Tracer(tracerName),
		status:      RunIdle,
	}
	for _, spec := range DefaultPhases {
		n, err := normalize.For(spec.Key)
		if err != nil {
			return nil, err
		}
		s.normalizers[spec.Key] = n
	}
	for _, opt := range opts {
		opt(s)
	}
	s.memos = map[venture.Domain]*memo{}
	s.phases = make(map[venture.Domain]*phaseState, len(s.specs))
	for _, spec := range s.specs {
		s.phases[spec.Key] = &phaseState{spec: spec, status: StatusPending}
	}
	for _, spec := range DefaultPhases {
		if _, ok := s.phases[spec.Key]; !ok {
			return nil, fmt.Errorf("pipeline: phase %s is not defined", spec.Key)
		}
	}
	return s, nil
}

// Subscribe registers fn for every event and returns its unsubscribe func.
func (s *Scheduler) Subscribe(fn Listener) func() { return s.events.subscribe(fn) }

// Run executes one assessment for rawURL and returns the aggregate. It
// fails with venture.ErrAlreadyRunning while another run is active.
func (s *Scheduler) Run(ctx context.Context, rawURL string) (*venture.Aggregate, error) {
	companyURL, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.status == RunRunning {
		s.mu.Unlock()
		return nil, venture.ErrAlreadyRunning
	}
	s.gen++
	gen := s.gen
	runCtx, cancel := context.WithCancel(ctx)
	s.resetLocked()
	s.status = RunRunning
	s.runID = uuid.NewString()
	s.url = companyURL
	s.startedAt = s.now()
	s.cancel = cancel
	runID := s.runID
	s.mu.Unlock()
	defer cancel()

	// A cancelled caller context is handled like an explicit Cancel.
	stop := context.AfterFunc(ctx, func() { s.cancelRun(gen) })
	defer stop()

	runCtx, span := s.tracer.Start(runCtx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("company.url", companyURL),
	))
	defer span.End()

	log.Printf("pipeline run start run_id=%s url=%s", runID, companyURL)
	s.events.emit(Event{Type: EventStart, RunID: runID, URL: companyURL})

	err = s.execute(runCtx, gen, companyURL)
	if ctx.Err() != nil {
		s.cancelRun(gen)
	}
	agg, finalErr := s.finish(gen, err)
	if finalErr != nil {
		telemetry.SetError(span, finalErr)
	}
	return agg, finalErr
}

func (s *Scheduler) execute(ctx context.Context, gen uint64, companyURL string) error {
	company, err := s.executePhase(ctx, gen, venture.DomainCompany, func() (venture.Request, error) {
		return venture.Request{PrimaryInput: companyURL}, nil
	})
	if err != nil {
		return err
	}

	desc := BuildTechDescription(company)
	s.mu.Lock()
	if gen == s.gen && s.techDesc == "" {
		s.techDesc = desc
	}
	s.mu.Unlock()

	fromDescription := func() (venture.Request, error) {
		return venture.Request{PrimaryInput: desc}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.executePhase(gctx, gen, venture.DomainTeam, func() (venture.Request, error) {
			return venture.Request{PrimaryInput: companyURL}, nil
		})
		return err
	})
	g.Go(func() error {
		_, err := s.executePhase(gctx, gen, venture.DomainFunding, fromDescription)
		return err
	})
	g.Go(func() error {
		_, err := s.executePhase(gctx, gen, venture.DomainIPRisk, fromDescription)
		return err
	})
	g.Go(func() error {
		competitive, err := s.executePhase(gctx, gen, venture.DomainCompetitive, fromDescription)
		if err != nil {
			return err
		}
		// Market never starts once the run is being torn down.
		if gctx.Err() != nil {
			return &PhaseError{Phase: venture.DomainMarket, Err: venture.ErrCancelled}
		}
		_, err = s.executePhase(gctx, gen, venture.DomainMarket, func() (venture.Request, error) {
			if competitive == nil || competitive.Text == "" {
				return venture.Request{}, &venture.ValidationError{Field: "competitive", Reason: "competitive analysis not available"}
			}
			return venture.Request{PrimaryInput: desc, SecondaryInput: competitive.Text}, nil
		})
		return err
	})
	return g.Wait()
}

// executePhase runs key at most once per run. Concurrent and repeated calls
// share the first call's outcome.
func (s *Scheduler) executePhase(ctx context.Context, gen uint64, key venture.Domain, input func() (venture.Request, error)) (*venture.Result, error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, errStaleRun
	}
	if m, ok := s.memos[key]; ok {
		s.mu.Unlock()
		<-m.done
		return m.res, m.err
	}
	ph, ok := s.phases[key]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("unknown phase: %s", key)
	}
	m := &memo{done: make(chan struct{})}
	s.memos[key] = m
	runID := s.runID

	// Cancelled before start: fail without issuing the request.
	if ctx.Err() != nil {
		ph.status = StatusFailed
		ph.err = venture.ErrCancelled
		ph.endedAt = s.now()
		m.err = &PhaseError{Phase: key, Err: venture.ErrCancelled}
		close(m.done)
		s.mu.Unlock()
		s.events.emit(Event{Type: EventPhaseError, RunID: runID, Phase: key, Name: ph.spec.Name, Message: m.err.Error()})
		return nil, m.err
	}
	ph.status = StatusActive
	ph.startedAt = s.now()
	spec := ph.spec
	s.mu.Unlock()

	log.Printf("pipeline phase start run_id=%s phase=%s", runID, key)
	s.events.emit(Event{Type: EventPhaseStart, RunID: runID, Phase: key, Name: spec.Name, Estimated: spec.Estimated.Seconds()})

	res, err := s.invoke(ctx, runID, spec, input)
	if err != nil {
		err = &PhaseError{Phase: key, Err: err}
	}

	s.mu.Lock()
	end := s.now()
	duration := end.Sub(ph.startedAt).Seconds()
	if gen == s.gen {
		ph.endedAt = end
		if err != nil {
			ph.status = StatusFailed
			ph.err = err
		} else {
			ph.status = StatusCompleted
			ph.result = res
		}
	}
	m.res, m.err = res, err
	close(m.done)
	s.mu.Unlock()

	if err != nil {
		log.Printf("pipeline phase failed run_id=%s phase=%s aborted=%t err=%v", runID, key, venture.IsCancellation(err), err)
		s.events.emit(Event{Type: EventPhaseError, RunID: runID, Phase: key, Name: spec.Name, Message: err.Error()})
		return nil, err
	}
	log.Printf("pipeline phase complete run_id=%s phase=%s duration_s=%.1f", runID, key, duration)
	s.events.emit(Event{Type: EventPhaseComplete, RunID: runID, Phase: key, Name: spec.Name, Duration: duration, Result: res})
	return res, nil
}

func (s *Scheduler) invoke(ctx context.Context, runID string, spec PhaseSpec, input func() (venture.Request, error)) (*venture.Result, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.phase."+string(spec.Key), trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("phase", string(spec.Key)),
	))
	defer span.End()

	res, err := s.analyze(ctx, spec, input)
	if err != nil {
		telemetry.SetError(span, err)
		return nil, err
	}
	if res.Score != nil {
		span.SetAttributes(attribute.Int("phase.score", *res.Score))
	}
	return res, nil
}

func (s *Scheduler) analyze(ctx context.Context, spec PhaseSpec, input func() (venture.Request, error)) (*venture.Result, error) {
	req, err := input()
	if err != nil {
		return nil, err
	}
	if spec.MinInputChars > 0 && len([]rune(req.PrimaryInput)) < spec.MinInputChars {
		return nil, &venture.ValidationError{
			Field:  "tech_description",
			Reason: fmt.Sprintf("must be at least %d characters for %s", spec.MinInputChars, spec.Name),
		}
	}
	req.Identifier = string(spec.Key) + "_" + uuid.NewString()

	client, err := s.clients.For(spec.Key)
	if err != nil {
		return nil, err
	}
	env, err := client.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	n, ok := s.normalizers[spec.Key]
	if !ok {
		return nil, fmt.Errorf("no normalizer for %s", spec.Key)
	}
	res, err := n.Normalize(env)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		log.Printf("pipeline phase warning phase=%s warning=%q", spec.Key, w)
	}
	return res, nil
}

// finish settles the run state and emits the terminal event.
func (s *Scheduler) finish(gen uint64, err error) (*venture.Aggregate, error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, venture.ErrCancelled
	}
	s.endedAt = s.now()
	runID := s.runID
	cancelled := s.cancelled
	switch {
	case err == nil:
		s.status = RunCompleted
	case cancelled:
		s.status = RunCancelled
	default:
		s.status = RunFailed
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	agg := s.aggregateLocked()
	s.mu.Unlock()

	switch {
	case err == nil:
		log.Printf("pipeline run complete run_id=%s duration_s=%.1f", runID, agg.TotalDurationSeconds)
		s.events.emit(Event{Type: EventComplete, RunID: runID, Aggregate: agg})
		return agg, nil
	case cancelled:
		log.Printf("pipeline run cancelled run_id=%s", runID)
		return agg, fmt.Errorf("%w: %v", venture.ErrCancelled, err)
	default:
		log.Printf("pipeline run failed run_id=%s phase=%s err=%v", runID, PhaseFromError(err), err)
		s.events.emit(Event{Type: EventError, RunID: runID, Phase: venture.Domain(PhaseFromError(err)), Message: err.Error()})
		return agg, err
	}
}

// Cancel aborts the active run. It reports false when nothing is running.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	return s.cancelRun(gen)
}

func (s *Scheduler) cancelRun(gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen || s.status != RunRunning || s.cancelled {
		s.mu.Unlock()
		return false
	}
	s.cancelled = true
	var inFlight []venture.Domain
	for _, spec := range s.specs {
		if s.phases[spec.Key].status == StatusActive {
			inFlight = append(inFlight, spec.Key)
		}
	}
	runID := s.runID
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	ev := Event{Type: EventCancelled, RunID: runID, InFlight: inFlight}
	if len(inFlight) > 0 {
		ev.Phase = inFlight[0]
	}
	s.events.emit(ev)
	return true
}

// Reset aborts any active run and returns every phase to pending.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	cancel := s.cancel
	s.gen++
	s.resetLocked()
	s.status = RunIdle
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Scheduler) resetLocked() {
	for _, ph := range s.phases {
		ph.reset()
	}
	s.memos = map[venture.Domain]*memo{}
	s.runID = ""
	s.url = ""
	s.techDesc = ""
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
	s.cancel = nil
	s.cancelled = false
}

// Status returns the run-level state.
func (s *Scheduler) Status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// PhaseStatus returns the status of key, or "" when key is unknown.
func (s *Scheduler) PhaseStatus(key venture.Domain) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ph, ok := s.phases[key]; ok {
		return ph.status
	}
	return ""
}

// Phases returns a snapshot of every phase in table order.
func (s *Scheduler) Phases() []Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Phase, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, s.phases[spec.Key].snapshot())
	}
	return out
}

// Results returns the aggregate for the current or last run.
func (s *Scheduler) Results() *venture.Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregateLocked()
}

// IsComplete reports whether every phase completed.
func (s *Scheduler) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allCompletedLocked()
}

func (s *Scheduler) allCompletedLocked() bool {
	for _, ph := range s.phases {
		if ph.status != StatusCompleted {
			return false
		}
	}
	return true
}

func (s *Scheduler) aggregateLocked() *venture.Aggregate {
	agg := &venture.Aggregate{
		RunID:           s.runID,
		CompanyURL:      s.url,
		TechDescription: s.techDesc,
	}
	for key, ph := range s.phases {
		if ph.status == StatusCompleted {
			agg.Set(key, ph.result)
		}
	}
	if !s.startedAt.IsZero() {
		end := s.endedAt
		if end.IsZero() {
			end = s.now()
		}
		agg.TotalDurationSeconds = end.Sub(s.startedAt).Seconds()
	}
	return agg
}
