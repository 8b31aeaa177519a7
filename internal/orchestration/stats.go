package orchestration

import "sync/atomic"

// Stats is the counters snapshot returned by the Control-plane API's
// Stats() operation. Every field is updated atomically; no lock is ever
// held across a mutation, matching spec.md §5's "stats counters: monotonic,
// updated atomically; never cause contention."
type Stats struct {
	TasksDispatched   int64
	TasksCompleted    int64
	TasksFailed       int64
	TasksDeadLettered int64
	TasksRetried      int64

	BrainstormStarted   int64
	BrainstormClosed    int64
	BrainstormResponses int64

	VotingOpened    int64
	VotingClosed    int64
	BallotsAccepted int64
	BallotsRejected int64

	ReconnectAttempts int64
}

// counters holds the live atomic counters backing Stats snapshots.
type counters struct {
	tasksDispatched     atomic.Int64
	tasksCompleted      atomic.Int64
	tasksFailed         atomic.Int64
	tasksDeadLettered   atomic.Int64
	tasksRetried        atomic.Int64
	brainstormStarted   atomic.Int64
	brainstormClosed    atomic.Int64
	brainstormResponses atomic.Int64
	votingOpened        atomic.Int64
	votingClosed        atomic.Int64
	ballotsAccepted     atomic.Int64
	ballotsRejected     atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		TasksDispatched:     c.tasksDispatched.Load(),
		TasksCompleted:      c.tasksCompleted.Load(),
		TasksFailed:         c.tasksFailed.Load(),
		TasksDeadLettered:   c.tasksDeadLettered.Load(),
		TasksRetried:        c.tasksRetried.Load(),
		BrainstormStarted:   c.brainstormStarted.Load(),
		BrainstormClosed:    c.brainstormClosed.Load(),
		BrainstormResponses: c.brainstormResponses.Load(),
		VotingOpened:        c.votingOpened.Load(),
		VotingClosed:        c.votingClosed.Load(),
		BallotsAccepted:     c.ballotsAccepted.Load(),
		BallotsRejected:     c.ballotsRejected.Load(),
	}
}
