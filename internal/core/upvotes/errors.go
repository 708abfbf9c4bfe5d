package upvotes

import "errors"

var (
	// ErrUnauthenticated indicates the toggle was attempted without a caller identity
	ErrUnauthenticated = errors.New("authentication required")

	// ErrResourceNotFound indicates the resource being voted on doesn't exist
	ErrResourceNotFound = errors.New("resource not found")

	// ErrMalformedOperation indicates a queued item could not be parsed
	ErrMalformedOperation = errors.New("malformed upvote operation")

	// ErrBacklogPending indicates reconciliation was skipped because the outbox is not drained
	ErrBacklogPending = errors.New("upvote outbox backlog pending")

	// ErrToggleContended indicates the vote flag kept flipping under concurrent toggles
	ErrToggleContended = errors.New("upvote toggle contended")

	// ErrCounterMiss is returned by CounterStore.GetCount when no counter is cached
	ErrCounterMiss = errors.New("upvote counter not cached")
)
