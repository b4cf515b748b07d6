package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acme-analytics/genie-gateway/db/models"
)

// table names are interpolated into DDL/DML, so restrict them to plain
// identifiers.
var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// BenchmarkRepository appends benchmark run results to a single append-only
// table. Each run writes only its own rows, so no locking beyond the insert
// itself is needed.
type BenchmarkRepository struct {
	pool  *pgxpool.Pool
	table string
}

func NewBenchmarkRepository(pool *pgxpool.Pool, table string) (*BenchmarkRepository, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid benchmark table name %q", table)
	}

	return &BenchmarkRepository{pool: pool, table: table}, nil
}

// EnsureSchema creates the results table when it does not exist yet.
func (r *BenchmarkRepository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_timestamp          TEXT NOT NULL,
			question_id            TEXT NOT NULL,
			question               TEXT NOT NULL,
			category               TEXT NOT NULL DEFAULT '',
			status                 TEXT NOT NULL,
			generated_query        TEXT NOT NULL DEFAULT '',
			genie_text             TEXT NOT NULL DEFAULT '',
			has_results            BOOLEAN NOT NULL DEFAULT FALSE,
			response_time_seconds  DOUBLE PRECISION NOT NULL DEFAULT 0,
			completion_rate_pct    DOUBLE PRECISION NOT NULL DEFAULT 0,
			error                  TEXT NOT NULL DEFAULT ''
		)`, r.table)

	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure benchmark table: %w", err)
	}

	return nil
}

// AppendResults inserts one row per record in a single transaction. It never
// updates or deletes; re-running a benchmark produces a new run_timestamp.
func (r *BenchmarkRepository) AppendResults(ctx context.Context, records []models.BenchmarkRecord) error {
	if len(records) == 0 {
		return nil
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (
			run_timestamp, question_id, question, category, status,
			generated_query, genie_text, has_results,
			response_time_seconds, completion_rate_pct, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, r.table)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insert,
			rec.RunTimestamp,
			rec.QuestionID,
			rec.Question,
			rec.Category,
			rec.Status,
			rec.GeneratedQuery,
			rec.GenieText,
			rec.HasResults,
			rec.ResponseTimeSeconds,
			rec.CompletionRatePct,
			rec.Error,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append benchmark results: %w", err)
		}
	}

	return nil
}

// RunSummary aggregates a single run's rows for quality tracking.
func (r *BenchmarkRepository) RunSummary(ctx context.Context, runTimestamp string) (*models.BenchmarkSummary, error) {
	query := fmt.Sprintf(`
		SELECT
			run_timestamp,
			COUNT(*) AS total_questions,
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS completed,
			SUM(CASE WHEN status = 'completed' AND has_results THEN 1 ELSE 0 END) AS with_results,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed,
			SUM(CASE WHEN status = 'timeout' THEN 1 ELSE 0 END) AS timed_out,
			ROUND(AVG(response_time_seconds)::numeric, 2) AS avg_response_time_sec,
			ROUND((SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) * 100.0 / COUNT(*))::numeric, 2) AS completion_rate_pct
		FROM %s
		WHERE run_timestamp = $1
		GROUP BY run_timestamp`, r.table)

	var summary models.BenchmarkSummary
	if err := r.pool.QueryRow(ctx, query, runTimestamp).Scan(
		&summary.RunTimestamp,
		&summary.TotalQuestions,
		&summary.Completed,
		&summary.WithResults,
		&summary.Failed,
		&summary.TimedOut,
		&summary.AvgResponseTimeSec,
		&summary.CompletionRatePct,
	); err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}

	return &summary, nil
}
