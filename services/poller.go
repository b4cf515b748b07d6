package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Poller waits for a submitted question to reach a terminal state. The wait
// is a fixed-interval loop: the external service call dominates latency, so
// backoff buys nothing here. Cancellation is cooperative; the loop observes
// ctx between polls and returns a cancelled response within one interval.
type Poller struct {
	api      ConversationAPI
	interval time.Duration
	maxWait  time.Duration
	logger   *zap.SugaredLogger

	// now and sleep are injectable so tests run without real time passing.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller builds a Poller with the given fixed interval and deadline.
func NewPoller(api ConversationAPI, interval, maxWait time.Duration, logger *zap.SugaredLogger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}

	return &Poller{
		api:      api,
		interval: interval,
		maxWait:  maxWait,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AwaitResult polls the pending question until it is terminal, the deadline
// passes, or ctx is cancelled. It always returns exactly one terminal
// QueryResponse; transport failures during the wait finalize the question as
// failed rather than aborting the caller's batch.
func (p *Poller) AwaitResult(ctx context.Context, pending PendingMessage) QueryResponse {
	start := p.now()

	finalize := func(resp QueryResponse) QueryResponse {
		resp.ConversationID = pending.ConversationID
		resp.MessageID = pending.MessageID
		resp.LatencySeconds = roundSeconds(p.now().Sub(start))
		return resp
	}

	for {
		if ctx.Err() != nil {
			return finalize(QueryResponse{Status: StatusCancelled, Error: ctx.Err().Error()})
		}

		msg, err := p.api.GetMessage(ctx, pending.ConversationID, pending.MessageID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return finalize(QueryResponse{Status: StatusCancelled, Error: err.Error()})
			}
			p.logger.Warnw("poll status check failed", "conversation_id", pending.ConversationID, "error", err)
			return finalize(QueryResponse{Status: StatusFailed, Error: err.Error()})
		}

		switch msg.Status {
		case genieStatusCompleted:
			return finalize(Extract(msg, p.fetchQueryResult(ctx, msg)))
		case genieStatusFailed, genieStatusCancelled:
			return finalize(Extract(msg, nil))
		}

		if p.now().Sub(start) >= p.maxWait {
			return finalize(QueryResponse{Status: StatusTimeout, Error: ErrTimeout.Error()})
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return finalize(QueryResponse{Status: StatusCancelled, Error: err.Error()})
		}
	}
}

// fetchQueryResult pulls the tabular payload behind a completed message's
// query attachment. A fetch failure degrades to a row-less completed
// response; the narrative answer is still worth returning.
func (p *Poller) fetchQueryResult(ctx context.Context, msg *GenieMessage) *QueryResult {
	attachmentID := queryAttachmentID(msg)
	if attachmentID == "" {
		return nil
	}

	result, err := p.api.GetQueryResult(ctx, msg.ConversationID, msg.MessageID, attachmentID)
	if err != nil {
		p.logger.Warnw("could not fetch query result",
			"conversation_id", msg.ConversationID,
			"attachment_id", attachmentID,
			"error", err,
		)
		return nil
	}

	return result
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000.0
}
