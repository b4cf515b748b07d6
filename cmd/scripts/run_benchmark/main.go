// Runs the benchmark question suite against the Genie space and appends one
// row per question to the results table. Designed to run on a schedule
// (weekly) to track answer quality over time; a persistence failure exits
// non-zero so the scheduler's alerting fires.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/acme-analytics/genie-gateway/config"
	"github.com/acme-analytics/genie-gateway/db"
	"github.com/acme-analytics/genie-gateway/internal/utils"
	"github.com/acme-analytics/genie-gateway/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging).Sugar()
	defer logger.Sync()

	ctx := context.Background()

	questions, err := services.LoadQuestionsOrDefault(cfg.Benchmark.QuestionsPath, services.DefaultBenchmarkQuestions())
	if err != nil {
		logger.Fatalf("load benchmark questions: %v", err)
	}

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatalf("postgres: failed to connect: %v", err)
	}
	defer postgres.Close()

	repo, err := db.NewBenchmarkRepository(postgres.Pool, cfg.Benchmark.ResultsTable)
	if err != nil {
		logger.Fatalf("benchmark repository: %v", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatalf("benchmark repository: %v", err)
	}

	genie := services.NewGenieClient(cfg.Genie, logger)
	poller := services.NewPoller(genie, cfg.Genie.PollInterval, cfg.Genie.MaxWait, logger)
	runner := services.NewBatchRunner(genie, poller, services.FreshConversationPerQuestion, logger)
	benchmark := services.NewBenchmarkService(runner, repo, logger)

	logger.Infof("running %d benchmark questions against space %s", len(questions), cfg.Genie.SpaceID)

	run, err := benchmark.Run(ctx, questions)
	if err != nil {
		logger.Errorf("benchmark run failed: %v", err)
		os.Exit(1)
	}

	summary, err := repo.RunSummary(ctx, run.RunTimestamp)
	if err != nil {
		logger.Warnf("run summary unavailable: %v", err)
	} else {
		fmt.Printf("run %s: %d questions, %d completed, %d failed, avg %.2fs, completion %.2f%%\n",
			summary.RunTimestamp,
			summary.TotalQuestions,
			summary.Completed,
			summary.Failed,
			summary.AvgResponseTimeSec,
			summary.CompletionRatePct,
		)
	}

	logger.Infof("%d benchmark results written to %s", len(run.Records), cfg.Benchmark.ResultsTable)
}
