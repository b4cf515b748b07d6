package services

// Status is the terminal (or in-flight) state of one question submitted to
// the Genie space.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a status is final. Terminal responses are never
// mutated or re-polled.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// Question is one natural-language question from a configured suite.
type Question struct {
	ID       string `yaml:"id" json:"id"`
	Text     string `yaml:"question" json:"question"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
	// Section is the report heading this question belongs to; unused by the
	// benchmark suite.
	Section string `yaml:"section,omitempty" json:"section,omitempty"`
}

// QueryResponse is the finalized outcome of one question. Exactly one is
// produced per submitted question; absence of a field is not an error unless
// Status is failed.
type QueryResponse struct {
	QuestionID     string     `json:"question_id,omitempty"`
	Status         Status     `json:"status"`
	GeneratedQuery string     `json:"generated_query,omitempty"`
	Columns        []string   `json:"columns,omitempty"`
	ResultRows     [][]string `json:"result_rows,omitempty"`
	AnswerText     string     `json:"answer_text,omitempty"`
	Error          string     `json:"error,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
	MessageID      string     `json:"message_id,omitempty"`
	LatencySeconds float64    `json:"latency_seconds"`
}

// HasResults reports whether the response carries tabular data.
func (r QueryResponse) HasResults() bool {
	return len(r.ResultRows) > 0
}

// PendingMessage identifies a question that has been submitted but not yet
// answered.
type PendingMessage struct {
	ConversationID string
	MessageID      string
}
