package models

import "time"

// TranscriptEntry is one question/answer exchange persisted for a web app
// conversation.
type TranscriptEntry struct {
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Question       string    `bson:"question" json:"question"`
	AnswerText     string    `bson:"answer_text,omitempty" json:"answer_text,omitempty"`
	GeneratedQuery string    `bson:"generated_query,omitempty" json:"generated_query,omitempty"`
	Status         string    `bson:"status" json:"status"`
	RowCount       int       `bson:"row_count" json:"row_count"`
	LatencySeconds float64   `bson:"latency_seconds" json:"latency_seconds"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}
