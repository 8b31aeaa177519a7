package orchestration

import (
	"fmt"

	"github.com/gosuda/agentfleet/internal/broker"
)

// Canonical topology names, per spec.md §4.2. They are fixed constants;
// Config has no option to override them.
const (
	QueueTasks     = "agent.tasks"
	QueueTasksDLX  = "agent.tasks.dlx"
	QueueTasksDead = "agent.tasks.dead"
	QueueResults   = "agent.results"

	ExchangeBrainstorm    = "agent.brainstorm"
	ExchangeStatus        = "agent.status"
	ExchangeVoting        = "agent.voting"
	ExchangeVotingResults = "agent.voting.results"

	RoutingKeyDead = "dead"
)

// priorityQueues lists the priority-tiered task queues, highest priority
// first. HandleTasks runs one independent consumer per entry; the list
// order does not make one queue's deliveries run before another's.
var priorityQueues = []string{
	QueueTasks + ".critical",
	QueueTasks + ".high",
	QueueTasks + ".normal",
	QueueTasks + ".low",
}

// retryQueueName returns the name of the delay queue for a given retry
// attempt's TTL tier. One retry queue per attempt count keeps each queue's
// TTL uniform, which AMQP requires for correct ordering (a queue with
// per-message differing TTLs still dead-letters in enqueue order, but using
// one queue per attempt avoids relying on that edge behavior).
func retryQueueName(attempt int) string {
	return fmt.Sprintf("%s.retry.%d", QueueTasks, attempt)
}

// assertTopology declares every queue and exchange the engine needs. It is
// idempotent via the broker client's own topology memo.
func assertTopology(c *broker.Client, maxRetries int) error {
	if err := c.AssertFanout(QueueTasksDLX); err != nil {
		return fmt.Errorf("assert dlx: %w", err)
	}
	if err := c.AssertTaskQueue(QueueTasksDead, broker.QueueOpts{Durable: true}); err != nil {
		return fmt.Errorf("assert dead queue: %w", err)
	}
	if err := c.Bind(QueueTasksDead, QueueTasksDLX, RoutingKeyDead); err != nil {
		return fmt.Errorf("bind dead queue: %w", err)
	}

	for _, q := range priorityQueues {
		opts := broker.QueueOpts{
			Durable:       true,
			MaxPriority:   10,
			DeadLetter:    QueueTasksDLX,
			DeadLetterKey: RoutingKeyDead,
			UseDeadLetter: true,
		}
		if err := c.AssertTaskQueue(q, opts); err != nil {
			return fmt.Errorf("assert priority queue %q: %w", q, err)
		}
	}

	if err := c.AssertTaskQueue(QueueResults, broker.QueueOpts{Durable: true}); err != nil {
		return fmt.Errorf("assert results queue: %w", err)
	}
	if err := c.AssertFanout(ExchangeBrainstorm); err != nil {
		return fmt.Errorf("assert brainstorm exchange: %w", err)
	}
	if err := c.AssertTopic(ExchangeStatus); err != nil {
		return fmt.Errorf("assert status exchange: %w", err)
	}
	if err := c.AssertFanout(ExchangeVoting); err != nil {
		return fmt.Errorf("assert voting exchange: %w", err)
	}
	if err := c.AssertDirect(ExchangeVotingResults); err != nil {
		return fmt.Errorf("assert voting results exchange: %w", err)
	}

	// Retry queues dead-letter straight back to agent.tasks via the default
	// exchange: DeadLetter is explicitly "" (the default exchange), and
	// UseDeadLetter must still be set so args() emits x-dead-letter-exchange
	// rather than omitting it (an absent argument disables dead-lettering on
	// TTL expiry entirely instead of routing via the default exchange).
	for attempt := 1; attempt <= maxRetries; attempt++ {
		name := retryQueueName(attempt)
		opts := broker.QueueOpts{
			Durable:       true,
			MessageTTLMS:  retryDelayMS(attempt),
			DeadLetterKey: QueueTasks,
			UseDeadLetter: true,
		}
		if err := c.AssertTaskQueue(name, opts); err != nil {
			return fmt.Errorf("assert retry queue %q: %w", name, err)
		}
	}
	return nil
}

// votingResultsQueue is the per-initiator private queue ballots are routed
// to, bound on a direct exchange keyed by initiator agent id.
func votingResultsQueue(initiatorAgentID string) string {
	return "voting.results." + initiatorAgentID
}

// statusRoutingKey builds a routing key of the form
// agent.status.<event>.<subkind>.
func statusRoutingKey(event, subkind string) string {
	return fmt.Sprintf("agent.status.%s.%s", event, subkind)
}
