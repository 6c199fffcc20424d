// Package pipeline schedules the analysis phases of one venture assessment:
// company first, then team, funding, competitive and ip-risk concurrently,
// with market chained after competitive.
package pipeline

import (
	"time"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// PhaseSpec is the fixed definition of one phase.
type PhaseSpec struct {
	Key       venture.Domain
	Name      string
	Estimated time.Duration
	// MinInputChars rejects a tech description that is too short for the
	// upstream flow. Zero disables the check.
	MinInputChars int
}

// DefaultPhases is the phase table in display order.
var DefaultPhases = []PhaseSpec{
	{Key: venture.DomainCompany, Name: "Company Analysis", Estimated: 480 * time.Second},
	{Key: venture.DomainTeam, Name: "Team Analysis", Estimated: 300 * time.Second},
	{Key: venture.DomainFunding, Name: "Funding Analysis", Estimated: 300 * time.Second, MinInputChars: 40},
	{Key: venture.DomainCompetitive, Name: "Competitive Analysis", Estimated: 240 * time.Second, MinInputChars: 20},
	{Key: venture.DomainMarket, Name: "Market Analysis", Estimated: 480 * time.Second},
	{Key: venture.DomainIPRisk, Name: "IP Risk Analysis", Estimated: 300 * time.Second, MinInputChars: 40},
}

// Phase is a snapshot of one phase's state.
type Phase struct {
	Key       venture.Domain  `json:"key"`
	Name      string          `json:"name"`
	Estimated float64         `json:"estimatedDurationSeconds"`
	Status    Status          `json:"status"`
	StartedAt *time.Time      `json:"startedAt,omitempty"`
	EndedAt   *time.Time      `json:"endedAt,omitempty"`
	Result    *venture.Result `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type phaseState struct {
	spec      PhaseSpec
	status    Status
	startedAt time.Time
	endedAt   time.Time
	result    *venture.Result
	err       error
}

func (p *phaseState) reset() {
	p.status = StatusPending
	p.startedAt = time.Time{}
	p.endedAt = time.Time{}
	p.result = nil
	p.err = nil
}

func (p *phaseState) snapshot() Phase {
	out := Phase{
		Key:       p.spec.Key,
		Name:      p.spec.Name,
		Estimated: p.spec.Estimated.Seconds(),
		Status:    p.status,
		Result:    p.result,
	}
	if !p.startedAt.IsZero() {
		t := p.startedAt
		out.StartedAt = &t
	}
	if !p.endedAt.IsZero() {
		t := p.endedAt
		out.EndedAt = &t
	}
	if p.err != nil {
		out.Error = p.err.Error()
	}
	return out
}
