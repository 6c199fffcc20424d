// Package store persists finished assessment runs and user assessments in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/venture-assessment/internal/scoring"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

var ErrNotFound = errors.New("run not found")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	company_url      TEXT NOT NULL,
	status           TEXT NOT NULL,
	tech_description TEXT NOT NULL DEFAULT '',
	results          TEXT NOT NULL DEFAULT '{}',
	error            TEXT NOT NULL DEFAULT '',
	failed_phase     TEXT NOT NULL DEFAULT '',
	started_at       TEXT NOT NULL,
	completed_at     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);

CREATE TABLE IF NOT EXISTS assessments (
	run_id        TEXT NOT NULL,
	domain        TEXT NOT NULL,
	score         INTEGER NOT NULL,
	justification TEXT NOT NULL DEFAULT '',
	submitted     INTEGER NOT NULL DEFAULT 0,
	ai_score      INTEGER,
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, domain)
);
`

// Run is one finished (completed, failed or cancelled) assessment run.
type Run struct {
	RunID           string             `json:"run_id"`
	CompanyURL      string             `json:"company_url"`
	Status          string             `json:"status"`
	TechDescription string             `json:"tech_description,omitempty"`
	Results         *venture.Aggregate `json:"results,omitempty"`
	Error           string             `json:"error,omitempty"`
	FailedPhase     string             `json:"failed_phase,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     time.Time          `json:"completed_at"`
}

type runRow struct {
	RunID           string `db:"run_id"`
	CompanyURL      string `db:"company_url"`
	Status          string `db:"status"`
	TechDescription string `db:"tech_description"`
	Results         string `db:"results"`
	Error           string `db:"error"`
	FailedPhase     string `db:"failed_phase"`
	StartedAt       string `db:"started_at"`
	CompletedAt     string `db:"completed_at"`
}

type assessmentRow struct {
	RunID         string        `db:"run_id"`
	Domain        string        `db:"domain"`
	Score         int           `db:"score"`
	Justification string        `db:"justification"`
	Submitted     bool          `db:"submitted"`
	AIScore       sql.NullInt64 `db:"ai_score"`
	UpdatedAt     string        `db:"updated_at"`
}

type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces a run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, r Run) error {
	if r.RunID == "" {
		return &venture.ValidationError{Field: "run_id", Reason: "is required"}
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, company_url, status, tech_description, results, error, failed_phase, started_at, completed_at)
		VALUES (:run_id, :company_url, :status, :tech_description, :results, :error, :failed_phase, :started_at, :completed_at)`,
		runRow{
			RunID:           r.RunID,
			CompanyURL:      r.CompanyURL,
			Status:          r.Status,
			TechDescription: r.TechDescription,
			Results:         marshalJSON(r.Results),
			Error:           r.Error,
			FailedPhase:     r.FailedPhase,
			StartedAt:       timeToString(r.StartedAt),
			CompletedAt:     timeToString(r.CompletedAt),
		})
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.RunID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE run_id = ?`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return row.run(true), nil
}

// ListRuns returns the most recent runs first, without their results.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]Run, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.run(false))
	}
	return out, nil
}

// SaveAssessment upserts the user assessment of one domain for runID.
func (s *SQLiteStore) SaveAssessment(ctx context.Context, runID string, a scoring.UserAssessment) error {
	row := assessmentRow{
		RunID:         runID,
		Domain:        string(a.Domain),
		Score:         a.Score,
		Justification: a.Justification,
		Submitted:     a.Submitted,
		UpdatedAt:     timeToString(s.now()),
	}
	if a.AIScore != nil {
		row.AIScore = sql.NullInt64{Int64: int64(*a.AIScore), Valid: true}
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO assessments
		(run_id, domain, score, justification, submitted, ai_score, updated_at)
		VALUES (:run_id, :domain, :score, :justification, :submitted, :ai_score, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("save assessment %s/%s: %w", runID, a.Domain, err)
	}
	return nil
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, runID string) ([]scoring.UserAssessment, error) {
	var rows []assessmentRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM assessments WHERE run_id = ? ORDER BY domain`, runID); err != nil {
		return nil, fmt.Errorf("list assessments %s: %w", runID, err)
	}
	out := make([]scoring.UserAssessment, 0, len(rows))
	for _, row := range rows {
		a := scoring.UserAssessment{
			Domain:        venture.Domain(row.Domain),
			Score:         row.Score,
			Justification: row.Justification,
			Submitted:     row.Submitted,
		}
		if row.AIScore.Valid {
			n := int(row.AIScore.Int64)
			a.AIScore = &n
		}
		out = append(out, a)
	}
	return out, nil
}

func (r runRow) run(withResults bool) Run {
	out := Run{
		RunID:           r.RunID,
		CompanyURL:      r.CompanyURL,
		Status:          r.Status,
		TechDescription: r.TechDescription,
		Error:           r.Error,
		FailedPhase:     r.FailedPhase,
	}
	out.StartedAt, _ = time.Parse(time.RFC3339Nano, r.StartedAt)
	out.CompletedAt, _ = time.Parse(time.RFC3339Nano, r.CompletedAt)
	if withResults && r.Results != "" && r.Results != "null" {
		var agg venture.Aggregate
		if json.Unmarshal([]byte(r.Results), &agg) == nil {
			out.Results = &agg
		}
	}
	return out
}

// timeLayout is fixed width so started_at orders correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timeToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
