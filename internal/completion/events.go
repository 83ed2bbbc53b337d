package completion

import "context"

// Event marks one observed false-to-true completion transition. CompletedAt
// is unix seconds; the evaluator normalizes it to a calendar day.
type Event struct {
	UserID      string `json:"userId"`
	TaskID      string `json:"taskId,omitempty"`
	CompletedAt int64  `json:"completedAt"`
}

// Publisher hands a completion event to whatever consumes it. The task-update
// path only publishes; it never calls the evaluators directly.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// HandlerFunc processes a delivered completion event. Delivery is
// at-least-once, so handlers must tolerate duplicates; the evaluators'
// same-day and ledger-membership guards make that safe.
type HandlerFunc func(ctx context.Context, ev Event) error
