package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/acme-analytics/genie-gateway/db/models"
	"github.com/acme-analytics/genie-gateway/services"
)

// genieAsker is the slice of the batch runner the HTTP surfaces need;
// faked in tests.
type genieAsker interface {
	AskOnce(ctx context.Context, conversationID string, question services.Question) services.QueryResponse
}

// transcriptStore persists and reads back web app conversation exchanges.
type transcriptStore interface {
	Append(ctx context.Context, entry models.TranscriptEntry) error
	History(ctx context.Context, conversationID string, limit int64) ([]models.TranscriptEntry, error)
}

// conversationMap tracks chat-thread to Genie-conversation mappings.
type conversationMap interface {
	Lookup(ctx context.Context, threadID string) (string, error)
	Store(ctx context.Context, threadID, conversationID string) error
	Reset(ctx context.Context, threadID string) error
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, services.ErrServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrPersistenceFailure):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, message string, err error) {
	payload := gin.H{"error": message}
	if err != nil {
		payload["detail"] = err.Error()
	}
	c.JSON(status, payload)
}

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id for log correlation, honoring a
// caller-supplied header when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}
