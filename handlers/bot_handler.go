package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/config"
	"github.com/acme-analytics/genie-gateway/services"
)

const botTableRowLimit = 20

// BotHandler is the chat-platform webhook: it proxies message activities to
// the Genie space and keeps a per-thread conversation mapping so users can
// ask follow-up questions in context.
type BotHandler struct {
	cfg           config.BotConfig
	asker         genieAsker
	conversations conversationMap
	logger        *zap.SugaredLogger
}

func NewBotHandler(cfg config.BotConfig, asker genieAsker, conversations conversationMap, logger *zap.SugaredLogger) *BotHandler {
	return &BotHandler{cfg: cfg, asker: asker, conversations: conversations, logger: logger}
}

func (h *BotHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/messages", h.HandleActivity)
	router.GET("/health", h.HandleHealth)
}

type botActivity struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}

type botReply struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (h *BotHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "genie-gateway",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *BotHandler) HandleActivity(c *gin.Context) {
	if !h.authorize(c) {
		writeError(c, http.StatusUnauthorized, "invalid webhook credentials", nil)
		return
	}

	var activity botActivity
	if err := c.ShouldBindJSON(&activity); err != nil {
		writeError(c, http.StatusBadRequest, "invalid activity payload", err)
		return
	}

	if activity.Type != "message" {
		c.Status(http.StatusCreated)
		return
	}

	text := strings.TrimSpace(activity.Text)
	threadID := strings.TrimSpace(activity.Conversation.ID)
	if text == "" || threadID == "" {
		c.Status(http.StatusCreated)
		return
	}

	ctx := c.Request.Context()

	// reset commands drop the thread's Genie context
	switch strings.ToLower(text) {
	case "/reset", "/new", "new conversation":
		if err := h.conversations.Reset(ctx, threadID); err != nil {
			h.logger.Warnw("conversation reset failed", "thread_id", threadID, "error", err)
		}
		c.JSON(http.StatusOK, botReply{Type: "message", Text: "Started a new Genie conversation."})
		return
	}

	conversationID, err := h.conversations.Lookup(ctx, threadID)
	if err != nil {
		h.logger.Warnw("conversation lookup failed", "thread_id", threadID, "error", err)
		conversationID = ""
	}

	resp := h.asker.AskOnce(ctx, conversationID, services.Question{Text: text})

	if resp.ConversationID != "" {
		if err := h.conversations.Store(ctx, threadID, resp.ConversationID); err != nil {
			h.logger.Warnw("conversation store failed", "thread_id", threadID, "error", err)
		}
	}

	c.JSON(http.StatusOK, botReply{Type: "message", Text: formatBotReply(resp)})
}

// authorize verifies the inbound webhook JWT when a shared secret is
// configured. Without a secret the endpoint is open (local development).
func (h *BotHandler) authorize(c *gin.Context) bool {
	if h.cfg.WebhookSecret == "" {
		return true
	}

	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return false
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if h.cfg.AppID != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(h.cfg.AppID))
	}

	token, err := jwt.Parse(strings.TrimSpace(raw), func(t *jwt.Token) (any, error) {
		return []byte(h.cfg.WebhookSecret), nil
	}, parserOpts...)
	if err != nil || !token.Valid {
		h.logger.Warnw("webhook token rejected", "error", err)
		return false
	}

	return true
}

// formatBotReply renders a QueryResponse as chat-friendly markdown: the
// narrative answer, the generated SQL in a fenced block, and the first rows
// of tabular data as a markdown table.
func formatBotReply(resp services.QueryResponse) string {
	switch resp.Status {
	case services.StatusFailed:
		reason := resp.Error
		if reason == "" {
			reason = "Unknown error"
		}
		return "Genie could not answer: " + reason
	case services.StatusTimeout:
		return "The query is taking too long. Please try a simpler question."
	case services.StatusCancelled:
		return "The question was cancelled before Genie finished."
	}

	parts := make([]string, 0, 3)

	if resp.AnswerText != "" {
		parts = append(parts, resp.AnswerText)
	}

	if resp.GeneratedQuery != "" {
		parts = append(parts, "**Generated SQL:**\n```sql\n"+resp.GeneratedQuery+"\n```")
	}

	if len(resp.Columns) > 0 && len(resp.ResultRows) > 0 {
		parts = append(parts, formatMarkdownTable(resp.Columns, resp.ResultRows))
	}

	if len(parts) == 0 {
		return "Genie returned an empty response."
	}

	return strings.Join(parts, "\n\n")
}

func formatMarkdownTable(columns []string, rows [][]string) string {
	var builder strings.Builder

	builder.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	builder.WriteString("| " + strings.Join(repeat("---", len(columns)), " | ") + " |")

	limit := len(rows)
	if limit > botTableRowLimit {
		limit = botTableRowLimit
	}

	for _, row := range rows[:limit] {
		builder.WriteString("\n| " + strings.Join(row, " | ") + " |")
	}

	if len(rows) > botTableRowLimit {
		builder.WriteString(fmt.Sprintf("\n\n*Showing %d of %d rows.*", botTableRowLimit, len(rows)))
	}

	return builder.String()
}

func repeat(value string, count int) []string {
	result := make([]string, count)
	for i := range result {
		result[i] = value
	}
	return result
}
