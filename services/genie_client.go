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

const defaultGenieHTTPTimeout = 30 * time.Second

// Service-side message statuses as reported by the conversation API.
const (
	genieStatusCompleted = "COMPLETED"
	genieStatusFailed    = "FAILED"
	genieStatusCancelled = "CANCELLED"
)

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// GenieMessage is the raw message payload returned by the conversation API.
type GenieMessage struct {
	ID             string            `json:"id"`
	MessageID      string            `json:"message_id"`
	ConversationID string            `json:"conversation_id"`
	Status         string            `json:"status"`
	Error          *genieAPIError    `json:"error,omitempty"`
	Attachments    []GenieAttachment `json:"attachments,omitempty"`
}

// GenieAttachment carries one piece of a message: narrative text, a
// generated query, or a handle to fetch tabular results.
type GenieAttachment struct {
	AttachmentID string               `json:"attachment_id,omitempty"`
	Text         *GenieTextAttachment `json:"text,omitempty"`
	Query        *GenieQueryAttachment `json:"query,omitempty"`
}

type GenieTextAttachment struct {
	Content string `json:"content"`
}

type GenieQueryAttachment struct {
	Query       string `json:"query"`
	Description string `json:"description,omitempty"`
}

// QueryResult is the tabular payload behind a query attachment.
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

// ConversationAPI is the surface the poller and runner need from the
// external service. Implemented by GenieClient; faked in tests.
type ConversationAPI interface {
	StartConversation(ctx context.Context, question string) (PendingMessage, error)
	Ask(ctx context.Context, conversationID, question string) (PendingMessage, error)
	GetMessage(ctx context.Context, conversationID, messageID string) (*GenieMessage, error)
	GetQueryResult(ctx context.Context, conversationID, messageID, attachmentID string) (*QueryResult, error)
}

// GenieClient is a thin client around the Genie conversation API (v2.0).
// It keeps no local state beyond identifiers returned by the service, and
// never retries: transient failures surface as ErrServiceUnavailable for the
// caller to record.
type GenieClient struct {
	host    string
	token   string
	spaceID string
	client  httpDoer
	logger  *zap.SugaredLogger
}

// NewGenieClient constructs a GenieClient from cfg.
func NewGenieClient(cfg config.GenieConfig, logger *zap.SugaredLogger) *GenieClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultGenieHTTPTimeout
	}

	return &GenieClient{
		host:    strings.TrimRight(cfg.Host, "/"),
		token:   cfg.Token,
		spaceID: cfg.SpaceID,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *GenieClient) spaceURL(parts ...string) string {
	segments := append([]string{c.host, "api/2.0/genie/spaces", c.spaceID}, parts...)
	return strings.Join(segments, "/")
}

// StartConversation opens a fresh conversation with the initial question.
func (c *GenieClient) StartConversation(ctx context.Context, question string) (PendingMessage, error) {
	if strings.TrimSpace(question) == "" {
		return PendingMessage{}, fmt.Errorf("question text cannot be empty")
	}

	var resp struct {
		ConversationID string `json:"conversation_id"`
		MessageID      string `json:"message_id"`
		ID             string `json:"id"`
	}

	url := c.spaceURL("start-conversation")
	if err := c.postJSON(ctx, url, map[string]string{"content": question}, &resp); err != nil {
		return PendingMessage{}, err
	}

	messageID := resp.MessageID
	if messageID == "" {
		messageID = resp.ID
	}

	return PendingMessage{ConversationID: resp.ConversationID, MessageID: messageID}, nil
}

// Ask sends a follow-up question within an existing conversation.
func (c *GenieClient) Ask(ctx context.Context, conversationID, question string) (PendingMessage, error) {
	if strings.TrimSpace(question) == "" {
		return PendingMessage{}, fmt.Errorf("question text cannot be empty")
	}
	if strings.TrimSpace(conversationID) == "" {
		return PendingMessage{}, fmt.Errorf("conversation id cannot be empty")
	}

	var resp struct {
		MessageID string `json:"message_id"`
		ID        string `json:"id"`
	}

	url := c.spaceURL("conversations", conversationID, "messages")
	if err := c.postJSON(ctx, url, map[string]string{"content": question}, &resp); err != nil {
		return PendingMessage{}, err
	}

	messageID := resp.MessageID
	if messageID == "" {
		messageID = resp.ID
	}

	return PendingMessage{ConversationID: conversationID, MessageID: messageID}, nil
}

// GetMessage fetches the current state of one submitted question.
func (c *GenieClient) GetMessage(ctx context.Context, conversationID, messageID string) (*GenieMessage, error) {
	url := c.spaceURL("conversations", conversationID, "messages", messageID)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var msg GenieMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: decode message: %v", ErrMalformedResponse, err)
	}

	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	if msg.MessageID == "" {
		if msg.ID != "" {
			msg.MessageID = msg.ID
		} else {
			msg.MessageID = messageID
		}
	}

	return &msg, nil
}

// GetQueryResult fetches the tabular result behind a query attachment.
func (c *GenieClient) GetQueryResult(ctx context.Context, conversationID, messageID, attachmentID string) (*QueryResult, error) {
	url := c.spaceURL("conversations", conversationID, "messages", messageID, "attachments", attachmentID, "query-result")

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var payload struct {
		StatementResponse *statementResponse `json:"statement_response"`
		// Older service versions returned the flattened shape.
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
		Rows [][]string `json:"rows"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode query result: %v", ErrMalformedResponse, err)
	}

	if sr := payload.StatementResponse; sr != nil {
		return sr.toQueryResult(), nil
	}

	result := &QueryResult{Rows: payload.Rows}
	for _, col := range payload.Columns {
		result.Columns = append(result.Columns, col.Name)
	}
	return result, nil
}

// statementResponse mirrors the nested result shape introduced by newer
// service versions.
type statementResponse struct {
	Manifest *struct {
		Schema *struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
		} `json:"schema"`
	} `json:"manifest"`
	Result *struct {
		DataArray [][]string `json:"data_array"`
	} `json:"result"`
}

func (sr *statementResponse) toQueryResult() *QueryResult {
	result := &QueryResult{}
	if sr.Manifest != nil && sr.Manifest.Schema != nil {
		for _, col := range sr.Manifest.Schema.Columns {
			result.Columns = append(result.Columns, col.Name)
		}
	}
	if sr.Result != nil {
		result.Rows = sr.Result.DataArray
	}
	return result
}

func (c *GenieClient) postJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal genie payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create genie request: %w", err)
	}
	c.setHeaders(request)

	respBody, err := c.do(request)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err)
	}

	return nil
}

func (c *GenieClient) get(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create genie request: %w", err)
	}
	c.setHeaders(request)

	return c.do(request)
}

func (c *GenieClient) setHeaders(request *http.Request) {
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Content-Type", "application/json")
}

func (c *GenieClient) do(request *http.Request) ([]byte, error) {
	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrServiceUnavailable, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, buildGenieAPIError(response.StatusCode, body)
	}

	return body, nil
}

type genieAPIError struct {
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (e *genieAPIError) String() string {
	if e == nil {
		return ""
	}
	if e.ErrorCode != "" && e.Message != "" {
		return e.ErrorCode + ": " + e.Message
	}
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorCode
}

func decodeGenieError(body []byte) *genieAPIError {
	if len(body) == 0 {
		return nil
	}

	var apiErr genieAPIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return nil
	}

	apiErr.Message = strings.TrimSpace(apiErr.Message)
	if apiErr.ErrorCode == "" && apiErr.Message == "" {
		return nil
	}
	return &apiErr
}

func buildGenieAPIError(statusCode int, body []byte) error {
	if apiErr := decodeGenieError(body); apiErr != nil {
		return fmt.Errorf("%w: genie api error (%d): %s", ErrServiceUnavailable, statusCode, apiErr.String())
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	return fmt.Errorf("%w: genie api error (%d): %s", ErrServiceUnavailable, statusCode, snippet)
}
