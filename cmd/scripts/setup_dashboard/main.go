// Creates and publishes the CPI dashboard from its version-controlled
// definition. Run once per workspace; re-running creates a new dashboard.
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

	if cfg.Dashboard.WarehouseID == "" {
		logger.Fatalf("WAREHOUSE_ID is required to provision the dashboard")
	}

	dashboards := services.NewDashboardService(cfg.Genie, cfg.Dashboard, logger)

	dashboardID, err := dashboards.Provision(context.Background())
	if err != nil {
		logger.Errorf("dashboard provisioning failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("dashboard created: %s\n", dashboards.DashboardURL(dashboardID))
}
