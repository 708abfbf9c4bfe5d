package upvotes

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the mutation a queued operation describes
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Valid reports whether a is one of the known actions
func (a Action) Valid() bool {
	return a == ActionAdd || a == ActionRemove
}

// Toggle outcomes reported to the client and on the live channel
const (
	ResultAdded   = "added"
	ResultRemoved = "removed"
)

// Key layout shared by the request path, the batch processor and the cache layer.
const (
	SchedulerLockKey = "upvote:batch:scheduled"
	EventsChannel    = "upvote:events"
	addQueueName     = "upvote:queue:add"
	removeQueueName  = "upvote:queue:remove"
	failedSuffix     = ":failed"
)

// CanonicalResourceID folds every spelling uuid.Parse accepts (upper case,
// braces, urn:uuid:) into the lower-case hyphenated form so one resource maps
// to one counter and one flag. Ids that are not UUIDs are returned unchanged
// and left to the existence check.
func CanonicalResourceID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}

// CounterKey is the fast counter for a resource
func CounterKey(resourceID string) string {
	return "upvote:count:" + resourceID
}

// CounterKeyPattern matches every counter key (used by the reconciler scan)
const CounterKeyPattern = "upvote:count:*"

// ResourceIDFromCounterKey is the inverse of CounterKey
func ResourceIDFromCounterKey(key string) string {
	const prefix = "upvote:count:"
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return ""
	}
	return key[len(prefix):]
}

// UserFlagKey marks that a user has voted on a resource
func UserFlagKey(userID, resourceID string) string {
	return fmt.Sprintf("upvote:user:%s:resource:%s", userID, resourceID)
}

// ResourceExistsKey caches a positive existence check for a resource
func ResourceExistsKey(resourceID string) string {
	return "resource:" + resourceID + ":exists"
}

// QueueName returns the outbox list name for an action
func QueueName(a Action) string {
	if a == ActionRemove {
		return removeQueueName
	}
	return addQueueName
}

// FailedQueueName returns the dead-letter list name for an action
func FailedQueueName(a Action) string {
	return QueueName(a) + failedSuffix
}

// Operation is one queued intent to mutate the durable vote log.
type Operation struct {
	UserID     string    `json:"userId"`
	ResourceID string    `json:"resourceId"`
	Action     Action    `json:"action"`
	Timestamp  time.Time `json:"-"`
}

type operationWire struct {
	UserID     string `json:"userId"`
	ResourceID string `json:"resourceId"`
	Action     Action `json:"action"`
	Timestamp  int64  `json:"timestamp"`
}

// NewOperation stamps an operation with the current time
func NewOperation(userID, resourceID string, action Action) Operation {
	return Operation{
		UserID:     userID,
		ResourceID: resourceID,
		Action:     action,
		Timestamp:  time.Now().UTC(),
	}
}

// MarshalJSON encodes the timestamp as unix milliseconds
func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationWire{
		UserID:     o.UserID,
		ResourceID: o.ResourceID,
		Action:     o.Action,
		Timestamp:  o.Timestamp.UnixMilli(),
	})
}

// ParseOperation decodes a queued item. Anything that is not a complete,
// well-typed operation is reported as ErrMalformedOperation so the consumer
// can dead-letter it verbatim.
func ParseOperation(raw []byte) (Operation, error) {
	var w operationWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Operation{}, fmt.Errorf("%w: %v", ErrMalformedOperation, err)
	}
	if w.UserID == "" || w.ResourceID == "" {
		return Operation{}, fmt.Errorf("%w: userId and resourceId are required", ErrMalformedOperation)
	}
	if !w.Action.Valid() {
		return Operation{}, fmt.Errorf("%w: unknown action %q", ErrMalformedOperation, w.Action)
	}
	return Operation{
		UserID:     w.UserID,
		ResourceID: CanonicalResourceID(w.ResourceID),
		Action:     w.Action,
		Timestamp:  time.UnixMilli(w.Timestamp).UTC(),
	}, nil
}

// ToggleResult is returned to the caller of a vote toggle
type ToggleResult struct {
	ResourceID string
	Action     string
	Count      int64
}

// Event is published on the live channel after every toggle.
// Consumers must treat Count as authoritative; deltas are not derivable
// because delivery order is not guaranteed, even per resource.
type Event struct {
	ResourceID string `json:"resourceId"`
	Count      int64  `json:"count"`
	Action     string `json:"action"`
	Timestamp  int64  `json:"timestamp"`
}

// BatchResult summarises one processor pass
type BatchResult struct {
	Processed  int   `json:"processed"`
	Failed     int   `json:"failed"`
	Duplicates int   `json:"duplicates"`
	Remaining  int64 `json:"remaining"`
	Rearmed    bool  `json:"rearmed"`
}
