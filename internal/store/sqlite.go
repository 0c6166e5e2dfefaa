package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/esgqa/internal/model"

	_ "modernc.org/sqlite"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id           TEXT PRIMARY KEY,
    question     TEXT NOT NULL,
    company      TEXT NOT NULL,
    status       TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    submitted_at DATETIME NOT NULL,
    completed_at DATETIME,
    answer       TEXT,
    confidence   REAL,
    answered_at  DATETIME,
    error        TEXT NOT NULL DEFAULT ''
)`

const selectJobColumns = `SELECT id, question, company, status, user_id, submitted_at,
	completed_at, answer, confidence, answered_at, error FROM jobs`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. With the default ":memory:" DSN
// the data lives only as long as the process.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dsn and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createJobsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new job record.
func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, question, company, status, user_id, submitted_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Question, j.Company, j.Status, j.UserID, j.SubmittedAt, j.Error,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, selectJobColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// TransitionJob reads, mutates and writes the job inside one transaction. The
// UPDATE is additionally guarded on the expected status.
func (s *SQLiteStore) TransitionJob(ctx context.Context, id, from, to string, apply func(*model.Job)) (*model.Job, error) {
	if !model.ValidTransition(from, to) {
		return nil, fmt.Errorf("%w: %s->%s", ErrInvalidTransition, from, to)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	j, err := scanJob(tx.QueryRowContext(ctx, selectJobColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if j.Status != from {
		return nil, fmt.Errorf("%w: %s is %s, want %s->%s", ErrInvalidTransition, id, j.Status, from, to)
	}

	j.Status = to
	if apply != nil {
		apply(j)
	}

	var answer sql.NullString
	var confidence sql.NullFloat64
	var answeredAt *time.Time
	if j.Result != nil {
		answer = sql.NullString{String: j.Result.Answer, Valid: true}
		confidence = sql.NullFloat64{Float64: j.Result.Confidence, Valid: true}
		answeredAt = &j.Result.Timestamp
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, answer = ?, confidence = ?,
			answered_at = ?, error = ?
		WHERE id = ? AND status = ?`,
		j.Status, j.CompletedAt, answer, confidence, answeredAt, j.Error, id, from,
	)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return j, nil
}

// GetJobStats returns job counts grouped by status.
func (s *SQLiteStore) GetJobStats(ctx context.Context) (*JobStats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	stats := &JobStats{CountByStatus: make(map[string]int)}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		stats.CountByStatus[status] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job counts: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	j := &model.Job{}
	var answer sql.NullString
	var confidence sql.NullFloat64
	var answeredAt *time.Time
	if err := row.Scan(
		&j.ID, &j.Question, &j.Company, &j.Status, &j.UserID, &j.SubmittedAt,
		&j.CompletedAt, &answer, &confidence, &answeredAt, &j.Error,
	); err != nil {
		return nil, err
	}
	if answer.Valid {
		j.Result = &model.AnswerRecord{
			Question:   j.Question,
			Company:    j.Company,
			Answer:     answer.String,
			Confidence: confidence.Float64,
		}
		if answeredAt != nil {
			j.Result.Timestamp = *answeredAt
		}
	}
	return j, nil
}
