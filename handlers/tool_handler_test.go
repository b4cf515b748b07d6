package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/acme-analytics/genie-gateway/services"
)

func newToolRouter(asker genieAsker) *gin.Engine {
	router := gin.New()
	NewToolHandler(asker, testLogger()).RegisterRoutes(router)
	return router
}

func TestHandleManifest(t *testing.T) {
	router := newToolRouter(&fakeAsker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tools", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Tools []struct {
			Name       string `json:"name"`
			Parameters struct {
				Required []string `json:"required"`
			} `json:"parameters"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Len(t, payload.Tools, 1)
	require.Equal(t, "cpi_data_analyst", payload.Tools[0].Name)
	require.Equal(t, []string{"question"}, payload.Tools[0].Parameters.Required)
}

func TestHandleInvoke(t *testing.T) {
	asker := &fakeAsker{resp: completedResponse()}
	router := newToolRouter(asker)

	body := `{"question":"Which country had the highest CPI in 2020?","conversation_id":"conv-9"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tools/genie/invoke", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "conv-9", asker.gotConversationID)

	var payload struct {
		Status         services.Status `json:"status"`
		Observation    string          `json:"observation"`
		GeneratedQuery string          `json:"generated_query"`
		Rows           [][]string      `json:"rows"`
		ConversationID string          `json:"conversation_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, services.StatusCompleted, payload.Status)
	require.Equal(t, "CPI rose 2.1% year over year.", payload.Observation)
	require.Equal(t, "SELECT year, value FROM cpi", payload.GeneratedQuery)
	require.Equal(t, [][]string{{"2024", "103.5"}}, payload.Rows)
	require.Equal(t, "conv-1", payload.ConversationID)
}

func TestHandleInvokeSurfacesFailureInBody(t *testing.T) {
	asker := &fakeAsker{resp: services.QueryResponse{Status: services.StatusFailed, Error: "could not generate SQL"}}
	router := newToolRouter(asker)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tools/genie/invoke", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// tool callers read the status field; transport stays 200
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"failed"`)
	require.Contains(t, w.Body.String(), "could not generate SQL")
}

func TestHandleInvokeRejectsBlankQuestion(t *testing.T) {
	asker := &fakeAsker{}
	router := newToolRouter(asker)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tools/genie/invoke", strings.NewReader(`{"question":" "}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, asker.calls)
}
