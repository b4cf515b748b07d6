package services

import "strings"

// Extract converts a terminal raw message (plus the optionally fetched
// tabular result) into a finalized QueryResponse. It is a pure function:
// calling it twice on the same inputs yields identical values.
//
// Partial payloads are legal. A completed message may carry a generated
// query without rows, narrative text without a query, or neither; only a
// FAILED service status marks the response as failed.
func Extract(msg *GenieMessage, result *QueryResult) QueryResponse {
	if msg == nil {
		return QueryResponse{
			Status: StatusFailed,
			Error:  ErrMalformedResponse.Error(),
		}
	}

	resp := QueryResponse{
		ConversationID: msg.ConversationID,
		MessageID:      msg.MessageID,
	}

	switch msg.Status {
	case genieStatusCompleted:
		resp.Status = StatusCompleted
	case genieStatusFailed:
		// A submitted question can flip straight to FAILED with no row
		// data attached; that is a failed answer, not an extraction error.
		resp.Status = StatusFailed
	case genieStatusCancelled:
		resp.Status = StatusCancelled
	default:
		resp.Status = StatusFailed
		resp.Error = ErrMalformedResponse.Error() + ": unexpected status " + strings.TrimSpace(msg.Status)
		return resp
	}

	if msg.Error != nil {
		resp.Error = msg.Error.String()
	}

	for _, att := range msg.Attachments {
		if att.Text != nil && att.Text.Content != "" {
			resp.AnswerText = att.Text.Content
		}
		if att.Query != nil && att.Query.Query != "" {
			resp.GeneratedQuery = att.Query.Query
		}
	}

	if resp.Status == StatusCompleted && result != nil {
		resp.Columns = result.Columns
		resp.ResultRows = result.Rows
	}

	return resp
}

// queryAttachmentID returns the attachment handle whose tabular result
// should be fetched, or "" when the message carries none.
func queryAttachmentID(msg *GenieMessage) string {
	for _, att := range msg.Attachments {
		if att.AttachmentID != "" && att.Query != nil {
			return att.AttachmentID
		}
	}
	return ""
}
