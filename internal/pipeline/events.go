package pipeline

import (
	"sync"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

type EventType string

const (
	EventStart         EventType = "start"
	EventPhaseStart    EventType = "phaseStart"
	EventPhaseComplete EventType = "phaseComplete"
	EventPhaseError    EventType = "phaseError"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
	EventCancelled     EventType = "cancelled"
)

// Event is one scheduler notification. Fields are set per type.
type Event struct {
	Type      EventType          `json:"type"`
	RunID     string             `json:"run_id"`
	URL       string             `json:"url,omitempty"`
	Phase     venture.Domain     `json:"phaseKey,omitempty"`
	Name      string             `json:"name,omitempty"`
	Estimated float64            `json:"estimatedDuration,omitempty"`
	Duration  float64            `json:"durationSeconds,omitempty"`
	Result    *venture.Result    `json:"result,omitempty"`
	Message   string             `json:"errorMessage,omitempty"`
	Aggregate *venture.Aggregate `json:"aggregateResult,omitempty"`
	// InFlight lists the phases that were active when the run was cancelled.
	InFlight []venture.Domain `json:"inFlight,omitempty"`
}

// Listener receives events synchronously on the goroutine that produced
// them. It must not block.
type Listener func(Event)

type broadcaster struct {
	mu   sync.RWMutex
	next int
	subs map[int]Listener
}

func (b *broadcaster) subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = map[int]Listener{}
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *broadcaster) emit(e Event) {
	b.mu.RLock()
	subs := make([]Listener, 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
