package queue

import "context"

// Job consumes one message type off the queue. Workers route a dequeued
// message to the registered Job whose Type matches.
type Job interface {
	// Name identifies the job in logs and the dead-letter list.
	Name() string

	// Type is the message type this job consumes.
	Type() string

	// Handle processes one payload. A returned error triggers the retry
	// schedule until the retry limit is reached.
	Handle(ctx context.Context, payload interface{}) error
}
