package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/config"
)

func newTestDashboardService(host string) *DashboardService {
	return NewDashboardService(
		config.GenieConfig{Host: host, Token: "test-token"},
		config.DashboardConfig{
			Name:        "CPI World Regional Aggregates",
			ParentPath:  "/Shared/genie-dashboards",
			WarehouseID: "wh-1",
			TableFQN:    "acme_pilot.genie_ready.cpi_world_country_aggregates",
		},
		zap.NewNop().Sugar(),
	)
}

func TestBuildSpecDatasets(t *testing.T) {
	spec := newTestDashboardService("https://example.test").BuildSpec()

	require.Len(t, spec.Pages, 1)
	require.Len(t, spec.Datasets, 7)

	names := make(map[string]bool, len(spec.Datasets))
	for _, dataset := range spec.Datasets {
		require.NotEmpty(t, dataset.DisplayName)
		require.Contains(t, dataset.Query, "acme_pilot.genie_ready.cpi_world_country_aggregates")
		require.True(t, strings.HasPrefix(dataset.Query, "SELECT"))
		require.False(t, names[dataset.Name], "duplicate dataset %s", dataset.Name)
		names[dataset.Name] = true
	}

	require.True(t, names["latest_index_by_region"])
	require.True(t, names["world_index_trend"])
	require.True(t, names["data_coverage"])
}

func TestProvisionCreatesAndPublishes(t *testing.T) {
	var createBody map[string]string
	var publishPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/2.0/workspace/mkdirs":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/2.0/lakeview/dashboards":
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &createBody))
			w.Write([]byte(`{"dashboard_id":"dash-42"}`))
		case strings.HasSuffix(r.URL.Path, "/published"):
			publishPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer server.Close()

	service := newTestDashboardService(server.URL)

	dashboardID, err := service.Provision(context.Background())
	require.NoError(t, err)
	require.Equal(t, "dash-42", dashboardID)

	require.Equal(t, "CPI World Regional Aggregates", createBody["display_name"])
	require.Equal(t, "/Shared/genie-dashboards", createBody["parent_path"])
	require.Equal(t, "wh-1", createBody["warehouse_id"])

	var spec DashboardSpec
	require.NoError(t, json.Unmarshal([]byte(createBody["serialized_dashboard"]), &spec))
	require.Len(t, spec.Datasets, 7)

	require.Equal(t, "/api/2.0/lakeview/dashboards/dash-42/published", publishPath)
	require.Equal(t, server.URL+"/sql/dashboardsv3/dash-42", service.DashboardURL(dashboardID))
}

func TestProvisionSurvivesMkdirsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/2.0/workspace/mkdirs":
			w.WriteHeader(http.StatusForbidden)
		case "/api/2.0/lakeview/dashboards":
			w.Write([]byte(`{"dashboard_id":"dash-1"}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	_, err := newTestDashboardService(server.URL).Provision(context.Background())
	require.NoError(t, err)
}

func TestProvisionFailsWithoutDashboardID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/2.0/lakeview/dashboards" {
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := newTestDashboardService(server.URL).Provision(context.Background())
	require.ErrorIs(t, err, ErrMalformedResponse)
}
