package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/config"
)

// DashboardSpec is the serialized dashboard definition accepted by the
// workspace's dashboard API. Keeping it in code means the dashboard can be
// version-controlled and replicated across workspaces.
type DashboardSpec struct {
	Pages    []DashboardPage    `json:"pages"`
	Datasets []DashboardDataset `json:"datasets"`
}

type DashboardPage struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Layout      []any  `json:"layout"`
}

type DashboardDataset struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Query       string `json:"query"`
}

// DashboardService provisions the CPI dashboard: builds the widget dataset
// queries over the aggregates table, creates the dashboard, and publishes it
// with embedded credentials. The queries themselves are executed by the
// external visualization surface, never by this service.
type DashboardService struct {
	host        string
	token       string
	name        string
	parentPath  string
	warehouseID string
	tableFQN    string
	client      httpDoer
	logger      *zap.SugaredLogger
}

func NewDashboardService(genie config.GenieConfig, cfg config.DashboardConfig, logger *zap.SugaredLogger) *DashboardService {
	return &DashboardService{
		host:        strings.TrimRight(genie.Host, "/"),
		token:       genie.Token,
		name:        cfg.Name,
		parentPath:  cfg.ParentPath,
		warehouseID: cfg.WarehouseID,
		tableFQN:    cfg.TableFQN,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// BuildSpec assembles the dashboard's dataset queries. All queries are
// read-only and parameterized only by the aggregates table name.
func (s *DashboardService) BuildSpec() DashboardSpec {
	fqn := s.tableFQN

	return DashboardSpec{
		Pages: []DashboardPage{
			{Name: "cpi_overview", DisplayName: "CPI Overview", Layout: []any{}},
		},
		Datasets: []DashboardDataset{
			{
				Name:        "latest_index_by_region",
				DisplayName: "Latest CPI Index by Region",
				Query: fmt.Sprintf(`SELECT country_code AS region, period, cpi_value AS cpi_index
FROM %[1]s
WHERE transformation_type = 'Index'
  AND period = (
      SELECT MAX(period) FROM %[1]s
      WHERE transformation_type = 'Index' AND cpi_value IS NOT NULL
  )
ORDER BY cpi_value DESC`, fqn),
			},
			{
				Name:        "world_index_trend",
				DisplayName: "World CPI Index Trend (Monthly)",
				Query: fmt.Sprintf(`SELECT period, year, month, cpi_value AS cpi_index
FROM %s
WHERE country_code = 'World'
  AND transformation_type = 'Index'
  AND cpi_value IS NOT NULL
ORDER BY period`, fqn),
			},
			{
				Name:        "yoy_inflation_by_region",
				DisplayName: "Year-over-Year Inflation by Region",
				Query: fmt.Sprintf(`SELECT country_code AS region, period, year, month, cpi_value AS yoy_pct_change
FROM %s
WHERE transformation_type = 'Period average, Year-over-year (YOY) percent change'
  AND cpi_value IS NOT NULL
  AND year >= 2018
ORDER BY period, country_code`, fqn),
			},
			{
				Name:        "top_regions_yoy",
				DisplayName: "Top Regions by YoY Inflation (Latest)",
				Query: fmt.Sprintf(`SELECT country_code AS region, cpi_value AS yoy_pct_change, period
FROM %[1]s
WHERE transformation_type = 'Period average, Year-over-year (YOY) percent change'
  AND period = (
      SELECT MAX(period) FROM %[1]s
      WHERE transformation_type = 'Period average, Year-over-year (YOY) percent change'
        AND cpi_value IS NOT NULL
  )
ORDER BY cpi_value DESC`, fqn),
			},
			{
				Name:        "g7_vs_emerging_index",
				DisplayName: "G7 vs Emerging Markets — CPI Index",
				Query: fmt.Sprintf(`SELECT country_code AS region, period, cpi_value AS cpi_index
FROM %s
WHERE transformation_type = 'Index'
  AND country_code IN ('G7', 'Emerging Market and Developing Economies', 'World')
  AND cpi_value IS NOT NULL
ORDER BY period, country_code`, fqn),
			},
			{
				Name:        "mom_change_world",
				DisplayName: "World Month-over-Month CPI Change",
				Query: fmt.Sprintf(`SELECT period, year, month, cpi_value AS mom_pct_change
FROM %s
WHERE country_code = 'World'
  AND transformation_type = 'Period average, Period-over-period percent change'
  AND cpi_value IS NOT NULL
  AND year >= 2020
ORDER BY period`, fqn),
			},
			{
				Name:        "data_coverage",
				DisplayName: "Data Coverage Summary",
				Query: fmt.Sprintf(`SELECT COUNT(DISTINCT country_code) AS num_regions,
       COUNT(DISTINCT transformation_type) AS num_metrics,
       MIN(period) AS earliest_period,
       MAX(period) AS latest_period,
       MIN(year) AS earliest_year,
       MAX(year) AS latest_year,
       COUNT(*) AS total_records
FROM %s
WHERE cpi_value IS NOT NULL`, fqn),
			},
		},
	}
}

// Provision creates and publishes the dashboard, returning its id.
func (s *DashboardService) Provision(ctx context.Context) (string, error) {
	// best effort; the folder usually already exists
	if err := s.mkdirs(ctx, s.parentPath); err != nil {
		s.logger.Warnw("workspace mkdirs failed", "path", s.parentPath, "error", err)
	}

	serialized, err := json.Marshal(s.BuildSpec())
	if err != nil {
		return "", fmt.Errorf("marshal dashboard spec: %w", err)
	}

	dashboardID, err := s.create(ctx, string(serialized))
	if err != nil {
		return "", err
	}

	if err := s.publish(ctx, dashboardID); err != nil {
		return "", err
	}

	s.logger.Infow("dashboard provisioned", "dashboard_id", dashboardID, "url", s.DashboardURL(dashboardID))
	return dashboardID, nil
}

// DashboardURL is the UI location of a provisioned dashboard.
func (s *DashboardService) DashboardURL(dashboardID string) string {
	return fmt.Sprintf("%s/sql/dashboardsv3/%s", s.host, dashboardID)
}

func (s *DashboardService) mkdirs(ctx context.Context, path string) error {
	return s.post(ctx, s.host+"/api/2.0/workspace/mkdirs", map[string]string{"path": path}, nil)
}

func (s *DashboardService) create(ctx context.Context, serialized string) (string, error) {
	payload := map[string]string{
		"display_name":         s.name,
		"parent_path":          s.parentPath,
		"warehouse_id":         s.warehouseID,
		"serialized_dashboard": serialized,
	}

	var resp struct {
		DashboardID string `json:"dashboard_id"`
	}
	if err := s.post(ctx, s.host+"/api/2.0/lakeview/dashboards", payload, &resp); err != nil {
		return "", fmt.Errorf("create dashboard: %w", err)
	}
	if resp.DashboardID == "" {
		return "", fmt.Errorf("%w: create dashboard returned no id", ErrMalformedResponse)
	}

	return resp.DashboardID, nil
}

func (s *DashboardService) publish(ctx context.Context, dashboardID string) error {
	url := fmt.Sprintf("%s/api/2.0/lakeview/dashboards/%s/published", s.host, dashboardID)
	payload := map[string]any{
		"warehouse_id":      s.warehouseID,
		"embed_credentials": true,
	}

	if err := s.post(ctx, url, payload, nil); err != nil {
		return fmt.Errorf("publish dashboard: %w", err)
	}
	return nil
}

func (s *DashboardService) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+s.token)
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrServiceUnavailable, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return buildGenieAPIError(response.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err)
		}
	}

	return nil
}
