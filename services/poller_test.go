package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock drives the poller without real time passing. Sleep advances the
// clock and optionally cancels the context after a set number of polls.
type fakeClock struct {
	now         time.Time
	sleeps      int
	cancelAfter int
	cancel      context.CancelFunc
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.sleeps++
	c.now = c.now.Add(d)
	if c.cancel != nil && c.sleeps >= c.cancelAfter {
		c.cancel()
	}
	return nil
}

type fakeConversationAPI struct {
	startErr  error
	askErr    error
	messages  []*GenieMessage
	msgErr    error
	result    *QueryResult
	resultErr error

	startCalls  int
	askCalls    int
	getCalls    int
	resultCalls int
}

func (f *fakeConversationAPI) StartConversation(_ context.Context, question string) (PendingMessage, error) {
	f.startCalls++
	if f.startErr != nil {
		return PendingMessage{}, f.startErr
	}
	return PendingMessage{ConversationID: "conv-1", MessageID: "msg-1"}, nil
}

func (f *fakeConversationAPI) Ask(_ context.Context, conversationID, question string) (PendingMessage, error) {
	f.askCalls++
	if f.askErr != nil {
		return PendingMessage{}, f.askErr
	}
	return PendingMessage{ConversationID: conversationID, MessageID: "msg-next"}, nil
}

func (f *fakeConversationAPI) GetMessage(_ context.Context, conversationID, messageID string) (*GenieMessage, error) {
	f.getCalls++
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	idx := f.getCalls - 1
	if idx >= len(f.messages) {
		idx = len(f.messages) - 1
	}
	msg := f.messages[idx]
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	if msg.MessageID == "" {
		msg.MessageID = messageID
	}
	return msg, nil
}

func (f *fakeConversationAPI) GetQueryResult(_ context.Context, _, _, _ string) (*QueryResult, error) {
	f.resultCalls++
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	return f.result, nil
}

func runningMessage() *GenieMessage {
	return &GenieMessage{Status: "EXECUTING_QUERY"}
}

func newTestPoller(api ConversationAPI, clock *fakeClock, interval, maxWait time.Duration) *Poller {
	poller := NewPoller(api, interval, maxWait, zap.NewNop().Sugar())
	poller.now = clock.Now
	poller.sleep = clock.Sleep
	return poller
}

func TestPollerReturnsCompletedResult(t *testing.T) {
	api := &fakeConversationAPI{
		messages: []*GenieMessage{
			runningMessage(),
			runningMessage(),
			{
				Status: "COMPLETED",
				Attachments: []GenieAttachment{
					{
						AttachmentID: "att-1",
						Text:         &GenieTextAttachment{Content: "CPI rose 2.1%"},
						Query:        &GenieQueryAttachment{Query: "SELECT 1"},
					},
				},
			},
		},
		result: &QueryResult{Columns: []string{"value"}, Rows: [][]string{{"2.1"}}},
	}
	clock := newFakeClock()
	poller := newTestPoller(api, clock, 2*time.Second, time.Minute)

	resp := poller.AwaitResult(context.Background(), PendingMessage{ConversationID: "conv-1", MessageID: "msg-1"})

	require.Equal(t, StatusCompleted, resp.Status)
	require.Equal(t, "CPI rose 2.1%", resp.AnswerText)
	require.Equal(t, "SELECT 1", resp.GeneratedQuery)
	require.Equal(t, [][]string{{"2.1"}}, resp.ResultRows)
	require.Equal(t, "conv-1", resp.ConversationID)
	require.InDelta(t, 4.0, resp.LatencySeconds, 0.01)
}

func TestPollerTimesOutWhenNeverTerminal(t *testing.T) {
	api := &fakeConversationAPI{messages: []*GenieMessage{runningMessage()}}
	clock := newFakeClock()
	poller := newTestPoller(api, clock, 2*time.Second, 10*time.Second)

	resp := poller.AwaitResult(context.Background(), PendingMessage{ConversationID: "conv-1", MessageID: "msg-1"})

	require.Equal(t, StatusTimeout, resp.Status)
	require.NotEmpty(t, resp.Error)
	// the loop observed the deadline instead of spinning forever
	require.LessOrEqual(t, api.getCalls, 7)
}

func TestPollerReturnsCancelledWithinOneInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeConversationAPI{messages: []*GenieMessage{runningMessage()}}
	clock := newFakeClock()
	clock.cancel = cancel
	clock.cancelAfter = 2

	poller := newTestPoller(api, clock, 2*time.Second, time.Hour)

	resp := poller.AwaitResult(ctx, PendingMessage{ConversationID: "conv-1", MessageID: "msg-1"})

	require.Equal(t, StatusCancelled, resp.Status)
	// cancellation was observed on the next loop entry, not at max_wait
	require.LessOrEqual(t, api.getCalls, 3)
}

func TestPollerDirectFailureHasNoRows(t *testing.T) {
	api := &fakeConversationAPI{
		messages: []*GenieMessage{
			{Status: "FAILED", Error: &genieAPIError{Message: "could not generate SQL"}},
		},
	}
	clock := newFakeClock()
	poller := newTestPoller(api, clock, time.Second, time.Minute)

	resp := poller.AwaitResult(context.Background(), PendingMessage{ConversationID: "conv-1", MessageID: "msg-1"})

	require.Equal(t, StatusFailed, resp.Status)
	require.Empty(t, resp.ResultRows)
	require.Contains(t, resp.Error, "could not generate SQL")
	require.Zero(t, api.resultCalls)
}

func TestPollerCompletedWithoutRowsIsNotFailure(t *testing.T) {
	api := &fakeConversationAPI{
		messages: []*GenieMessage{
			{
				Status: "COMPLETED",
				Attachments: []GenieAttachment{
					{Text: &GenieTextAttachment{Content: "The dataset covers 190 countries."}},
				},
			},
		},
	}
	clock := newFakeClock()
	poller := newTestPoller(api, clock, time.Second, time.Minute)

	resp := poller.AwaitResult(context.Background(), PendingMessage{ConversationID: "conv-1", MessageID: "msg-1"})

	require.Equal(t, StatusCompleted, resp.Status)
	require.Empty(t, resp.ResultRows)
	require.Equal(t, "The dataset covers 190 countries.", resp.AnswerText)
}

func TestPollerStatusCheckFailureFinalizesAsFailed(t *testing.T) {
	api := &fakeConversationAPI{msgErr: errors.New("connection refused")}
	clock := newFakeClock()
	poller := newTestPoller(api, clock, time.Second, time.Minute)

	resp := poller.AwaitResult(context.Background(), PendingMessage{ConversationID: "conv-1", MessageID: "msg-1"})

	require.Equal(t, StatusFailed, resp.Status)
	require.Contains(t, resp.Error, "connection refused")
}

func TestPollerQueryResultFetchFailureDegrades(t *testing.T) {
	api := &fakeConversationAPI{
		messages: []*GenieMessage{
			{
				Status: "COMPLETED",
				Attachments: []GenieAttachment{
					{
						AttachmentID: "att-1",
						Text:         &GenieTextAttachment{Content: "narrative"},
						Query:        &GenieQueryAttachment{Query: "SELECT 1"},
					},
				},
			},
		},
		resultErr: errors.New("result expired"),
	}
	clock := newFakeClock()
	poller := newTestPoller(api, clock, time.Second, time.Minute)

	resp := poller.AwaitResult(context.Background(), PendingMessage{ConversationID: "conv-1", MessageID: "msg-1"})

	require.Equal(t, StatusCompleted, resp.Status)
	require.Empty(t, resp.ResultRows)
	require.Equal(t, "narrative", resp.AnswerText)
}
