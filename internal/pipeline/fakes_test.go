package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joelkehle/venture-assessment/internal/analysisclient"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

// fakeAnalyzer returns a canned envelope. With a gate it blocks until the
// gate closes or ctx is cancelled.
type fakeAnalyzer struct {
	env     venture.Envelope
	err     error
	gate    chan struct{}
	started chan venture.Request
	onCall  func(venture.Request)

	calls atomic.Int32
	mu    sync.Mutex
	reqs  []venture.Request
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req venture.Request) (venture.Envelope, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(req)
	}
	if f.started != nil {
		f.started <- req
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return venture.Envelope{}, &analysisclient.CallError{Err: venture.ErrCancelled}
		}
	}
	return f.env, f.err
}

func (f *fakeAnalyzer) lastRequest(t *testing.T) venture.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		t.Fatal("analyzer was never called")
	}
	return f.reqs[len(f.reqs)-1]
}

func companyEnvelope() venture.Envelope {
	return venture.Envelope{Outputs: map[string]any{"out-6": map[string]any{
		"company_overview": map[string]any{"name": "Acme Robotics", "website": "https://acme.example", "mission_statement": "Automate specialty crop harvesting"},
		"technology": map[string]any{
			"core_technology":    "Vision-guided soft robotic harvesting arms",
			"technical_approach": "Hyperspectral ripeness detection with compliant grippers",
			"key_innovations":    []any{"soft gripper", "ripeness model", "fleet planner", "battery swap"},
		},
		"products_and_applications": map[string]any{"primary_application": "Strawberry picking", "target_industries": []any{"agriculture", "food"}},
		"market_context":            map[string]any{"problem_addressed": "Seasonal labor shortages", "value_proposition": "Lower cost per pick"},
	}}}
}

func happyClients() map[venture.Domain]*fakeAnalyzer {
	return map[venture.Domain]*fakeAnalyzer{
		venture.DomainCompany: {env: companyEnvelope()},
		venture.DomainTeam: {env: venture.Envelope{Outputs: map[string]any{
			"out-0": `{"team_members": [{"name": "Ada"}]}`,
			"out-1": `{"score": 6}`,
		}}},
		venture.DomainFunding: {env: venture.Envelope{Outputs: map[string]any{
			"out-0": `{"market_deals": []}`,
			"out-1": `{"funding_score": 5}`,
		}}},
		venture.DomainCompetitive: {env: venture.Envelope{Outputs: map[string]any{
			"out-3": `{"competitors": [{"company_name": "HarvestAI"}]}`,
			"out-4": `{"score": 4}`,
		}}},
		venture.DomainMarket: {env: venture.Envelope{Outputs: map[string]any{
			"out-2": `{"primary_market": {"tam_usd": 1000000000}}`,
			"out-3": `{"score": 7}`,
		}}},
		venture.DomainIPRisk: {env: venture.Envelope{Outputs: map[string]any{
			"out-1": `{"ipRiskSummary": {"overallIPRisk": {"riskLevel": "low"}}}`,
			"out-2": "",
		}}},
	}
}

func toSet(fakes map[venture.Domain]*fakeAnalyzer) analysisclient.Set {
	set := analysisclient.Set{}
	for d, f := range fakes {
		set[d] = f
	}
	return set
}

func newTestScheduler(t *testing.T, fakes map[venture.Domain]*fakeAnalyzer, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(toSet(fakes), opts...)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(tp EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == tp {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) index(tp EventType, phase venture.Domain) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.Type == tp && e.Phase == phase {
			return i
		}
	}
	return -1
}

func waitStarted(t *testing.T, ch chan venture.Request, what string) venture.Request {
	t.Helper()
	select {
	case req := <-ch:
		return req
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s to start", what)
	}
	return venture.Request{}
}

type runOutcome struct {
	agg *venture.Aggregate
	err error
}

func runAsync(s *Scheduler, ctx context.Context, url string) chan runOutcome {
	ch := make(chan runOutcome, 1)
	go func() {
		agg, err := s.Run(ctx, url)
		ch <- runOutcome{agg, err}
	}()
	return ch
}

func waitRun(t *testing.T, ch chan runOutcome) runOutcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	return runOutcome{}
}
