package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Record is a domain event staged for publication. Repositories insert it
// in the same transaction as the state change it describes.
type Record struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Traceparent   string
}

// Event is a staged record as read back by the relay.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RetryCount    int
	LastError     *string
}
