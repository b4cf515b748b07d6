// Asks the Genie space the configured report questions, renders the answers
// into one immutable HTML document, and writes it to the report output
// directory. Designed to run on a schedule for stakeholder distribution.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/acme-analytics/genie-gateway/config"
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

	questions, err := services.LoadQuestionsOrDefault(cfg.Report.QuestionsPath, services.DefaultReportQuestions())
	if err != nil {
		logger.Fatalf("load report questions: %v", err)
	}

	policy := services.FreshConversationPerQuestion
	if cfg.Report.ShareConversation {
		policy = services.SharedConversation
	}

	genie := services.NewGenieClient(cfg.Genie, logger)
	poller := services.NewPoller(genie, cfg.Genie.PollInterval, cfg.Genie.MaxWait, logger)
	runner := services.NewBatchRunner(genie, poller, policy, logger)
	report := services.NewReportService(runner, cfg.Report, logger)

	logger.Infof("generating report with %d sections from space %s", len(questions), cfg.Genie.SpaceID)

	path, err := report.Generate(context.Background(), questions)
	if err != nil {
		logger.Errorf("report run failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("report saved to %s\n", path)
}
