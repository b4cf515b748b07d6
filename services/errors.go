package services

import "errors"

// Failure taxonomy. Per-question failures (service unavailable, timeout,
// malformed payload) are recorded on the QueryResponse and never abort a
// batch; ErrPersistenceFailure is fatal to the run.
var (
	ErrServiceUnavailable = errors.New("genie service unavailable")
	ErrTimeout            = errors.New("genie did not respond within the timeout period")
	ErrMalformedResponse  = errors.New("malformed genie response")
	ErrPersistenceFailure = errors.New("failed to persist run output")
)
