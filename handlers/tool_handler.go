package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/services"
)

// ToolHandler adapts the Genie space into an agent-framework tool: a
// manifest endpoint describing the tool and an invoke endpoint that runs one
// question and returns the observation.
type ToolHandler struct {
	asker  genieAsker
	logger *zap.SugaredLogger
}

func NewToolHandler(asker genieAsker, logger *zap.SugaredLogger) *ToolHandler {
	return &ToolHandler{asker: asker, logger: logger}
}

func (h *ToolHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/tools")
	group.GET("", h.HandleManifest)
	group.POST("/genie/invoke", h.HandleInvoke)
}

func (h *ToolHandler) HandleManifest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tools": []gin.H{
			{
				"name": "cpi_data_analyst",
				"description": "Specializes in analyzing Consumer Price Index (CPI) data across " +
					"world countries. Use this tool for questions about CPI values, trends, " +
					"comparisons between countries, year-over-year changes, rankings, and any " +
					"structured data query about inflation indicators.",
				"parameters": gin.H{
					"type": "object",
					"properties": gin.H{
						"question": gin.H{
							"type":        "string",
							"description": "Natural-language question about the CPI dataset.",
						},
						"conversation_id": gin.H{
							"type":        "string",
							"description": "Optional conversation id to keep follow-up context.",
						},
					},
					"required": []string{"question"},
				},
			},
		},
	})
}

type toolInvokeRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

func (h *ToolHandler) HandleInvoke(c *gin.Context) {
	var payload toolInvokeRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	question := strings.TrimSpace(payload.Question)
	if question == "" {
		writeError(c, http.StatusBadRequest, "question is required", nil)
		return
	}

	resp := h.asker.AskOnce(c.Request.Context(), strings.TrimSpace(payload.ConversationID), services.Question{Text: question})

	c.JSON(http.StatusOK, gin.H{
		"status":          resp.Status,
		"observation":     resp.AnswerText,
		"generated_query": resp.GeneratedQuery,
		"columns":         resp.Columns,
		"rows":            resp.ResultRows,
		"conversation_id": resp.ConversationID,
		"latency_seconds": resp.LatencySeconds,
		"error":           resp.Error,
	})
}
