package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/db/models"
	"github.com/acme-analytics/genie-gateway/services"
)

// AskHandler exposes the web app surface: one-shot questions with follow-up
// conversation support, a websocket variant that streams poll progress, and
// conversation history read-back.
type AskHandler struct {
	asker       genieAsker
	transcripts transcriptStore
	suggestions []string
	// heartbeatInterval paces websocket progress frames while the poller
	// waits on the external service.
	heartbeatInterval time.Duration
	logger            *zap.SugaredLogger
}

func NewAskHandler(asker genieAsker, transcripts transcriptStore, logger *zap.SugaredLogger) *AskHandler {
	return &AskHandler{
		asker:             asker,
		transcripts:       transcripts,
		suggestions:       services.DefaultSuggestions(),
		heartbeatInterval: 2 * time.Second,
		logger:            logger,
	}
}

func (h *AskHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/genie")
	group.POST("/ask", h.HandleAsk)
	group.GET("/ask/ws", h.HandleAskWebsocket)
	group.GET("/suggestions", h.HandleSuggestions)
	group.GET("/conversations/:id/history", h.HandleHistory)
}

type askRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

func (h *AskHandler) HandleAsk(c *gin.Context) {
	var payload askRequest
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
	h.recordTranscript(c, question, resp)

	c.JSON(http.StatusOK, resp)
}

func (h *AskHandler) HandleSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": h.suggestions})
}

func (h *AskHandler) HandleHistory(c *gin.Context) {
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		writeError(c, http.StatusBadRequest, "conversation id is required", nil)
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	entries, err := h.transcripts.History(c.Request.Context(), conversationID, limit)
	if err != nil {
		h.logger.Warnw("transcript history failed", "conversation_id", conversationID, "error", err)
		writeError(c, http.StatusInternalServerError, "failed to load history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"entries":         entries,
	})
}

var askUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type askProgressFrame struct {
	Type           string                  `json:"type"`
	ElapsedSeconds float64                 `json:"elapsed_seconds,omitempty"`
	Result         *services.QueryResponse `json:"result,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// HandleAskWebsocket accepts one question per connection and streams
// progress frames while the answer is pending, ending with the terminal
// result frame.
func (h *AskHandler) HandleAskWebsocket(c *gin.Context) {
	conn, err := askUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var payload askRequest
	if err := conn.ReadJSON(&payload); err != nil {
		_ = conn.WriteJSON(askProgressFrame{Type: "error", Error: "invalid request payload"})
		return
	}

	question := strings.TrimSpace(payload.Question)
	if question == "" {
		_ = conn.WriteJSON(askProgressFrame{Type: "error", Error: "question is required"})
		return
	}

	if err := conn.WriteJSON(askProgressFrame{Type: "submitted"}); err != nil {
		return
	}

	start := time.Now()
	done := make(chan services.QueryResponse, 1)

	go func() {
		done <- h.asker.AskOnce(c.Request.Context(), strings.TrimSpace(payload.ConversationID), services.Question{Text: question})
	}()

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case resp := <-done:
			h.recordTranscript(c, question, resp)
			_ = conn.WriteJSON(askProgressFrame{Type: "result", Result: &resp})
			return
		case <-ticker.C:
			frame := askProgressFrame{
				Type:           "polling",
				ElapsedSeconds: time.Since(start).Seconds(),
			}
			if err := conn.WriteJSON(frame); err != nil {
				// client went away; the ask goroutine still drains into the
				// buffered channel
				return
			}
		}
	}
}

func (h *AskHandler) recordTranscript(c *gin.Context, question string, resp services.QueryResponse) {
	if h.transcripts == nil || resp.ConversationID == "" {
		return
	}

	entry := models.TranscriptEntry{
		ConversationID: resp.ConversationID,
		Question:       question,
		AnswerText:     resp.AnswerText,
		GeneratedQuery: resp.GeneratedQuery,
		Status:         string(resp.Status),
		RowCount:       len(resp.ResultRows),
		LatencySeconds: resp.LatencySeconds,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.transcripts.Append(c.Request.Context(), entry); err != nil {
		h.logger.Warnw("transcript append failed", "conversation_id", resp.ConversationID, "error", err)
	}
}
