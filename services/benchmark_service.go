package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/db/models"
)

// genie_text is truncated before persisting; long narrative answers are not
// useful for quality tracking.
const maxPersistedTextRunes = 1000

// BenchmarkSink is the persistence surface the benchmark run writes to.
type BenchmarkSink interface {
	AppendResults(ctx context.Context, records []models.BenchmarkRecord) error
}

// BenchmarkRun is the outcome of one scheduled benchmark execution.
type BenchmarkRun struct {
	RunTimestamp      string
	Records           []models.BenchmarkRecord
	CompletionRatePct float64
}

// BenchmarkService runs the configured question suite against the Genie
// space and appends one row per question to the results table. Re-running
// the whole job is the retry mechanism: failed questions are recorded as
// failed, never re-asked within a run.
type BenchmarkService struct {
	runner *BatchRunner
	sink   BenchmarkSink
	logger *zap.SugaredLogger

	now func() time.Time
}

func NewBenchmarkService(runner *BatchRunner, sink BenchmarkSink, logger *zap.SugaredLogger) *BenchmarkService {
	return &BenchmarkService{
		runner: runner,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes the suite and persists the results. Per-question failures are
// recorded and the run continues; a sink failure is fatal and surfaces as
// ErrPersistenceFailure so the scheduler's alerting fires.
func (s *BenchmarkService) Run(ctx context.Context, questions []Question) (*BenchmarkRun, error) {
	runTimestamp := s.now().UTC().Format(time.RFC3339)
	s.logger.Infow("benchmark run starting", "run_timestamp", runTimestamp, "questions", len(questions))

	responses := s.runner.Run(ctx, questions)
	completionRate := CompletionRate(responses)

	records := make([]models.BenchmarkRecord, 0, len(responses))
	for i, resp := range responses {
		question := questions[i]
		records = append(records, models.BenchmarkRecord{
			RunTimestamp:        runTimestamp,
			QuestionID:          question.ID,
			Question:            question.Text,
			Category:            question.Category,
			Status:              string(resp.Status),
			GeneratedQuery:      resp.GeneratedQuery,
			GenieText:           truncateRunes(resp.AnswerText, maxPersistedTextRunes),
			HasResults:          resp.HasResults(),
			ResponseTimeSeconds: resp.LatencySeconds,
			CompletionRatePct:   completionRate,
			Error:               resp.Error,
		})

		s.logger.Infow("benchmark question finished",
			"question_id", question.ID,
			"status", resp.Status,
			"latency_seconds", resp.LatencySeconds,
		)
	}

	if err := s.sink.AppendResults(ctx, records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.logger.Infow("benchmark run finished",
		"run_timestamp", runTimestamp,
		"completion_rate_pct", completionRate,
	)

	return &BenchmarkRun{
		RunTimestamp:      runTimestamp,
		Records:           records,
		CompletionRatePct: completionRate,
	}, nil
}

func truncateRunes(input string, max int) string {
	if max <= 0 || utf8.RuneCountInString(input) <= max {
		return input
	}

	runes := []rune(input)
	return string(runes[:max])
}
