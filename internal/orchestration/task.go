package orchestration

import (
	"time"

	"github.com/gosuda/agentfleet/internal/envelope"
)

const (
	defaultRetries         = 3
	retryBaseDelayMS int64 = 500
	retryMaxDelayMS  int64 = 30_000
)

// retryDelayMS is the per-attempt TTL for a retry queue: base_delay *
// 2^(attempt-1), capped at max_delay (spec.md §4.2).
func retryDelayMS(attempt int) int64 {
	delay := retryBaseDelayMS
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= retryMaxDelayMS {
			return retryMaxDelayMS
		}
	}
	if delay > retryMaxDelayMS {
		return retryMaxDelayMS
	}
	return delay
}

// Task mirrors the spec.md §3 Task entity as seen by the leader issuing it.
type Task struct {
	TaskID           string
	Title            string
	Description      string
	Priority         envelope.Priority
	Payload          map[string]any
	RetriesRemaining int
	CreatedAt        time.Time
	AssignedBy       string
	DeadlineMS       int64
	CorrelationID    string
}

// ErrorKind classifies a handler failure as transient (retry) or permanent
// (dead-letter immediately), per spec.md §4.2.
type ErrorKind int

const (
	ErrorTransient ErrorKind = iota
	ErrorPermanent
)

// HandlerResult is what a task handler returns: success, or a classified
// failure.
type HandlerResult struct {
	Err  error
	Kind ErrorKind
}

// Ok constructs a successful HandlerResult.
func Ok() HandlerResult { return HandlerResult{} }

// Failed constructs a failed HandlerResult of the given kind.
func Failed(kind ErrorKind, err error) HandlerResult { return HandlerResult{Err: err, Kind: kind} }

func (r HandlerResult) success() bool { return r.Err == nil }

// queueForPriority maps a priority to its topology queue name.
func queueForPriority(p envelope.Priority) string {
	switch p {
	case envelope.PriorityCritical:
		return QueueTasks + ".critical"
	case envelope.PriorityHigh:
		return QueueTasks + ".high"
	case envelope.PriorityLow:
		return QueueTasks + ".low"
	default:
		return QueueTasks + ".normal"
	}
}
