package scoring

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

const DefaultUserScore = 5

var ErrAlreadySubmitted = errors.New("assessment already submitted")

// UserAssessment is the human counter-score for one domain.
type UserAssessment struct {
	Domain        venture.Domain `json:"domain"`
	Score         int            `json:"score" validate:"min=1,max=9"`
	Justification string         `json:"justification" validate:"min=20,max=2000"`
	Submitted     bool           `json:"submitted"`
	AIScore       *int           `json:"ai_score,omitempty"`
}

var validate = validator.New()

// Validate checks the score range and the trimmed justification length.
func (a UserAssessment) Validate() error {
	trimmed := a
	trimmed.Justification = strings.TrimSpace(a.Justification)
	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	switch fe.Field() {
	case "Score":
		return &venture.ValidationError{Field: "score", Reason: "must be between 1 and 9"}
	case "Justification":
		if fe.Tag() == "max" {
			return &venture.ValidationError{Field: "justification", Reason: "must be less than 2000 characters"}
		}
		return &venture.ValidationError{Field: "justification", Reason: "must be at least 20 characters"}
	}
	return &venture.ValidationError{Field: strings.ToLower(fe.Field()), Reason: fe.Tag()}
}

// Board holds one UserAssessment per scored domain for the current run.
type Board struct {
	mu    sync.Mutex
	runID string
	items map[venture.Domain]*UserAssessment
}

func NewBoard() *Board {
	b := &Board{}
	b.Load("", nil)
	return b
}

// Load resets every assessment to its defaults for a freshly loaded run.
func (b *Board) Load(runID string, results *venture.Aggregate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runID = runID
	b.items = make(map[venture.Domain]*UserAssessment, len(venture.ScoredDomains))
	for _, d := range venture.ScoredDomains {
		a := &UserAssessment{Domain: d, Score: DefaultUserScore}
		if s, ok := results.For(d).ScoreValue(); ok {
			a.AIScore = &s
		}
		b.items[d] = a
	}
}

func (b *Board) RunID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runID
}

func (b *Board) Get(d venture.Domain) (UserAssessment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.items[d]
	if !ok {
		return UserAssessment{}, false
	}
	return *a, true
}

func (b *Board) All() []UserAssessment {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]UserAssessment, 0, len(b.items))
	for _, d := range venture.ScoredDomains {
		if a, ok := b.items[d]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// Update edits an unsubmitted assessment. A zero score leaves the score as is.
func (b *Board) Update(d venture.Domain, score int, justification string) (UserAssessment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.items[d]
	if !ok {
		return UserAssessment{}, fmt.Errorf("no assessment for domain %q", d)
	}
	if a.Submitted {
		return *a, ErrAlreadySubmitted
	}
	if score != 0 {
		if _, ok := inRange(score); !ok {
			return *a, &venture.ValidationError{Field: "score", Reason: "must be between 1 and 9"}
		}
		a.Score = score
	}
	a.Justification = justification
	return *a, nil
}

// Submit validates and locks the assessment. It returns the deviation from
// the automated score when one exists.
func (b *Board) Submit(d venture.Domain) (UserAssessment, *Deviation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.items[d]
	if !ok {
		return UserAssessment{}, nil, fmt.Errorf("no assessment for domain %q", d)
	}
	if a.Submitted {
		return *a, nil, ErrAlreadySubmitted
	}
	if err := a.Validate(); err != nil {
		return *a, nil, err
	}
	a.Justification = strings.TrimSpace(a.Justification)
	a.Submitted = true
	if a.AIScore == nil {
		return *a, nil, nil
	}
	dev := CheckDeviation(*a.AIScore, a.Score)
	return *a, &dev, nil
}
