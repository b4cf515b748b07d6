package services

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// ConversationPolicy controls how a batch maps questions onto Genie
// conversations.
type ConversationPolicy int

const (
	// FreshConversationPerQuestion isolates each question in its own
	// conversation, so one answer cannot leak context into the next. Used by
	// the benchmark suite.
	FreshConversationPerQuestion ConversationPolicy = iota
	// SharedConversation threads every question through one conversation so
	// follow-ups keep context. Used by the report suite.
	SharedConversation
)

// BatchRunner drives Ask → Poll → Extract for an ordered list of questions.
// Questions run strictly sequentially: a follow-up's context depends on the
// prior question having completed. Independent runners carry no shared
// mutable state, so separate batches may run concurrently.
type BatchRunner struct {
	api    ConversationAPI
	poller *Poller
	policy ConversationPolicy
	logger *zap.SugaredLogger
}

// NewBatchRunner builds a runner over the given conversation API and poller.
func NewBatchRunner(api ConversationAPI, poller *Poller, policy ConversationPolicy, logger *zap.SugaredLogger) *BatchRunner {
	return &BatchRunner{api: api, poller: poller, policy: policy, logger: logger}
}

// AskOnce submits a single question and waits for its terminal response.
// When conversationID is empty a fresh conversation is started; otherwise
// the question is a follow-up within that conversation. Submission failures
// finalize the question as failed instead of returning an error, so every
// question yields exactly one terminal QueryResponse.
func (r *BatchRunner) AskOnce(ctx context.Context, conversationID string, question Question) QueryResponse {
	var (
		pending PendingMessage
		err     error
	)

	if conversationID == "" {
		pending, err = r.api.StartConversation(ctx, question.Text)
	} else {
		pending, err = r.api.Ask(ctx, conversationID, question.Text)
	}
	if err != nil {
		r.logger.Warnw("question submission failed", "question_id", question.ID, "error", err)
		return QueryResponse{
			QuestionID:     question.ID,
			Status:         StatusFailed,
			Error:          err.Error(),
			ConversationID: conversationID,
		}
	}

	resp := r.poller.AwaitResult(ctx, pending)
	resp.QuestionID = question.ID
	return resp
}

// Run executes the batch in order and returns one terminal QueryResponse per
// question: no drops, no duplicates. Per-question failures are isolated and
// the batch continues; once ctx is cancelled the remaining questions are
// finalized as cancelled without touching the service.
func (r *BatchRunner) Run(ctx context.Context, questions []Question) []QueryResponse {
	responses := make([]QueryResponse, 0, len(questions))
	conversationID := ""

	for _, question := range questions {
		if ctx.Err() != nil {
			responses = append(responses, QueryResponse{
				QuestionID: question.ID,
				Status:     StatusCancelled,
				Error:      ctx.Err().Error(),
			})
			continue
		}

		resp := r.AskOnce(ctx, conversationID, question)
		responses = append(responses, resp)

		if r.policy == SharedConversation && resp.ConversationID != "" {
			conversationID = resp.ConversationID
		}
	}

	return responses
}

// CompletionRate is the percentage of completed responses across a batch,
// rounded to two decimals. An empty batch rates as 0.
func CompletionRate(responses []QueryResponse) float64 {
	if len(responses) == 0 {
		return 0
	}

	completed := 0
	for _, resp := range responses {
		if resp.Status == StatusCompleted {
			completed++
		}
	}

	return roundTwo(float64(completed) * 100.0 / float64(len(responses)))
}

func roundTwo(v float64) float64 {
	return math.Round(v*100) / 100
}
