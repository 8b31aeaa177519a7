// Package orchestration implements the role-based orchestration engine
// (spec.md §4.2): task dispatch with retry/dead-letter semantics, fanout
// brainstorm sessions, and topic-routed status, all built on top of a
// broker.Client. The engine never touches broker primitives other than
// through that client, per spec.md §3's ownership rule.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/agentfleet/internal/audit"
	"github.com/gosuda/agentfleet/internal/broker"
	"github.com/gosuda/agentfleet/internal/envelope"
	"github.com/gosuda/agentfleet/internal/errs"
	"github.com/gosuda/agentfleet/internal/voting"
)

// Config configures an Engine.
type Config struct {
	AgentID    string
	Role       Role
	MaxRetries int
	Prefetch   int

	// HeartbeatInterval is how often the status protocol publishes a
	// heartbeat event; zero disables heartbeats.
	HeartbeatInterval time.Duration

	// HandlerDeadline ceils how long a task handler may run, absent a
	// smaller deadline carried on the message itself.
	HandlerDeadline time.Duration

	// AuditLog records every ballot this engine accepts as a voting
	// initiator. A caller-supplied log lets multiple engines in a process
	// share one audit trail; nil gets a private one.
	AuditLog *audit.Log
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultRetries
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 16
	}
	if c.HandlerDeadline <= 0 {
		c.HandlerDeadline = 5 * time.Minute
	}
	return c
}

// TaskHandler processes one dispatched task.
type TaskHandler func(ctx context.Context, task envelope.TaskPayload) HandlerResult

// Engine is the OrchestrationEngine component.
type Engine struct {
	cfg    Config
	broker *broker.Client
	stats  counters

	brainstorms *brainstormTable
	votes       *voting.System
	audit       *audit.Log
	voteInits   *voteInitiatorTable

	accepting    atomic.Bool
	shutdownOnce sync.Once
	consumerWG   sync.WaitGroup
	cancelAll    context.CancelFunc
	ctx          context.Context
}

// New constructs an Engine bound to an already-connected broker.Client.
// Topology is asserted immediately.
func New(c *broker.Client, cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if !ValidRole(cfg.Role) {
		return nil, errs.New(errs.KindConfig, "orchestration.New", fmt.Errorf("unknown role %q", cfg.Role))
	}

	if err := assertTopology(c, cfg.MaxRetries); err != nil {
		return nil, errs.New(errs.KindTopology, "orchestration.New", err)
	}

	auditLog := cfg.AuditLog
	if auditLog == nil {
		auditLog = audit.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:         cfg,
		broker:      c,
		brainstorms: newBrainstormTable(),
		votes:       voting.NewSystem(),
		audit:       auditLog,
		voteInits:   newVoteInitiatorTable(),
		ctx:         ctx,
		cancelAll:   cancel,
	}
	e.accepting.Store(true)
	return e, nil
}

// Stats returns a snapshot of the engine's counters, including the
// broker's cumulative reconnect attempt count.
func (e *Engine) Stats() Stats {
	s := e.stats.snapshot()
	s.ReconnectAttempts = e.broker.ReconnectAttempts()
	return s
}

// AssignTask dispatches task to the priority queue matching task.Priority.
// Leader-role only.
func (e *Engine) AssignTask(ctx context.Context, task Task) (string, error) {
	if err := Check(e.cfg.Role, CapAssignTask); err != nil {
		return "", errs.New(errs.KindConfig, "orchestration.Engine.AssignTask", err)
	}

	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.RetriesRemaining <= 0 {
		task.RetriesRemaining = e.cfg.MaxRetries
	}

	payload, err := envelope.EncodePayload(envelope.TaskPayload{
		Title:         task.Title,
		Description:   task.Description,
		Priority:      task.Priority,
		Context:       task.Payload,
		DeadlineMS:    task.DeadlineMS,
		CorrelationID: task.CorrelationID,
	})
	if err != nil {
		return "", err
	}

	retries := task.RetriesRemaining
	env := envelope.Envelope{
		ID:               task.TaskID,
		Type:             envelope.TypeTask,
		From:             e.cfg.AgentID,
		TS:               time.Now().UnixMilli(),
		Payload:          payload,
		RetriesRemaining: &retries,
	}
	wire, err := envelope.Marshal(env)
	if err != nil {
		return "", err
	}

	queue := queueForPriority(task.Priority)
	if err := e.broker.PublishToQueue(ctx, queue, wire); err != nil {
		return "", err
	}
	e.stats.tasksDispatched.Add(1)
	return task.TaskID, nil
}

// consumeRetryDelay is how long a priority queue's consumer waits before
// re-registering after its delivery channel closes out from under it
// (e.g. a broker reconnect in progress), rather than failing the whole
// HandleTasks call on the first connection blip.
const consumeRetryDelay = 500 * time.Millisecond

// HandleTasks starts consuming every priority queue concurrently, dispatching
// deliveries to handler. Worker-role only. Blocks until ctx is cancelled or
// Shutdown is called. Per spec.md §4.1's reconnect convergence requirement
// and testable property #7, a single queue's consumer dropping out because
// the broker connection closed is not fatal: it re-registers on its own
// once the supervisor reconnects and re-asserts topology, rather than
// tearing down every other priority queue's consumer. Only once the broker
// itself gives up (state settles to disconnected, e.g. reconnect attempts
// exhausted) does that queue's consumer return an error, which cancels the
// rest via errgroup. Each queue's consumer invokes handler for one delivery
// at a time, so at most one handler per priority queue runs at once, and
// deliveries from different queues are not ordered against each other.
func (e *Engine) HandleTasks(ctx context.Context, handler TaskHandler) error {
	if err := Check(e.cfg.Role, CapConsumeTasks); err != nil {
		return errs.New(errs.KindConfig, "orchestration.Engine.HandleTasks", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	g, gCtx := errgroup.WithContext(runCtx)
	for _, q := range priorityQueues {
		q := q
		e.consumerWG.Add(1)
		g.Go(func() error {
			defer e.consumerWG.Done()
			return e.consumeQueueUntilFatal(gCtx, q, func(dctx context.Context, d broker.Delivery) broker.Action {
				if !e.accepting.Load() {
					return broker.ActionNackRequeue
				}
				return e.dispatchDelivery(dctx, d, handler)
			})
		})
	}

	return g.Wait()
}

// consumeQueueUntilFatal re-registers Consume on queue whenever it returns
// early due to the broker's delivery channel closing, until ctx is
// cancelled or the broker's connection supervisor settles into a terminal
// disconnected state (reconnect attempts exhausted, or an explicit Close).
func (e *Engine) consumeQueueUntilFatal(ctx context.Context, queue string, handler broker.Handler) error {
	for {
		err := e.broker.Consume(ctx, queue, handler)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if e.broker.State() == broker.StateDisconnected {
			return err
		}

		log.Warn().Err(err).Str("queue", queue).
			Msg("orchestration.Engine: consumer interrupted, re-registering once the broker recovers")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(consumeRetryDelay):
		}
	}
}

// dispatchDelivery runs one task delivery through handler and returns the
// settlement action per spec.md §4.2's task lifecycle.
func (e *Engine) dispatchDelivery(ctx context.Context, d broker.Delivery, handler TaskHandler) broker.Action {
	env, err := envelope.Unmarshal(d.Body)
	if err != nil {
		log.Error().Err(err).Msg("orchestration.Engine: malformed task envelope, dead-lettering")
		return broker.ActionRejectNoRequeue
	}
	var task envelope.TaskPayload
	if err := envelope.DecodePayload(env, &task); err != nil {
		log.Error().Err(err).Msg("orchestration.Engine: malformed task payload, dead-lettering")
		return broker.ActionRejectNoRequeue
	}

	retriesRemaining := e.cfg.MaxRetries
	if env.RetriesRemaining != nil {
		retriesRemaining = *env.RetriesRemaining
	}

	hctx, cancel := context.WithTimeout(ctx, e.handlerDeadline(task))
	defer cancel()

	return e.settleHandlerResult(hctx, env, task, retriesRemaining, e.invokeHandler(hctx, task, handler))
}

func (e *Engine) handlerDeadline(task envelope.TaskPayload) time.Duration {
	if task.DeadlineMS > 0 {
		d := time.Duration(task.DeadlineMS) * time.Millisecond
		if d < e.cfg.HandlerDeadline {
			return d
		}
	}
	return e.cfg.HandlerDeadline
}

func (e *Engine) invokeHandler(ctx context.Context, task envelope.TaskPayload, handler TaskHandler) HandlerResult {
	handlerDone := make(chan HandlerResult, 1)
	go func() {
		handlerDone <- handler(ctx, task)
	}()

	select {
	case res := <-handlerDone:
		return res
	case <-ctx.Done():
		return Failed(ErrorTransient, ctx.Err())
	}
}

func (e *Engine) settleHandlerResult(ctx context.Context, env envelope.Envelope, task envelope.TaskPayload, retriesRemaining int, result HandlerResult) broker.Action {
	if !result.success() && errors.Is(ctx.Err(), context.Canceled) {
		// The handler was aborted by shutdown (or an ancestor cancellation),
		// not by its own failure or per-task deadline: requeue rather than
		// consuming a retry attempt.
		return broker.ActionNackRequeue
	}

	if result.success() {
		e.publishResult(ctx, env.ID, envelope.ResultPayload{
			TaskID:          env.ID,
			ProducerAgentID: e.cfg.AgentID,
			Status:          "completed",
			ProducedAt:      time.Now().UnixMilli(),
		})
		e.stats.tasksCompleted.Add(1)
		return broker.ActionAck
	}

	if result.Kind == ErrorTransient && retriesRemaining > 0 {
		if e.requeueWithBackoff(ctx, env, task, retriesRemaining) {
			e.stats.tasksRetried.Add(1)
			return broker.ActionAck
		}
		return broker.ActionNackRequeue
	}

	e.publishResult(ctx, env.ID, envelope.ResultPayload{
		TaskID:          env.ID,
		ProducerAgentID: e.cfg.AgentID,
		Status:          "failed",
		ProducedAt:      time.Now().UnixMilli(),
		FailureKind:     failureKindLabel(result.Kind),
	})
	e.publishStatusEvent(ctx, "task", "failed")
	e.stats.tasksFailed.Add(1)
	e.stats.tasksDeadLettered.Add(1)
	return broker.ActionRejectNoRequeue
}

func failureKindLabel(k ErrorKind) string {
	if k == ErrorPermanent {
		return "HandlerPermanentError"
	}
	return "HandlerTransientError"
}

// requeueWithBackoff publishes a retry copy to the delay queue matching the
// attempt number, with retries_remaining decremented. Returns true if the
// publish was confirmed (so the original delivery should be acked).
func (e *Engine) requeueWithBackoff(ctx context.Context, env envelope.Envelope, task envelope.TaskPayload, retriesRemaining int) bool {
	attempt := e.cfg.MaxRetries - retriesRemaining + 1
	remaining := retriesRemaining - 1

	payload, err := envelope.EncodePayload(task)
	if err != nil {
		return false
	}
	retryEnv := envelope.Envelope{
		ID:               env.ID,
		Type:             envelope.TypeTask,
		From:             env.From,
		TS:               time.Now().UnixMilli(),
		Payload:          payload,
		RetriesRemaining: &remaining,
	}
	wire, err := envelope.Marshal(retryEnv)
	if err != nil {
		return false
	}

	queue := retryQueueName(attempt)
	if err := e.broker.PublishToQueue(ctx, queue, wire); err != nil {
		log.Error().Err(err).Str("task_id", env.ID).Msg("orchestration.Engine: retry publish failed, nacking for redelivery")
		return false
	}
	return true
}

func (e *Engine) publishResult(ctx context.Context, taskID string, result envelope.ResultPayload) {
	payload, err := envelope.EncodePayload(result)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("orchestration.Engine: failed to encode result payload")
		return
	}
	env := envelope.Envelope{
		ID:      uuid.NewString(),
		Type:    envelope.TypeResult,
		From:    e.cfg.AgentID,
		TS:      time.Now().UnixMilli(),
		Payload: payload,
	}
	wire, err := envelope.Marshal(env)
	if err != nil {
		return
	}
	if err := e.broker.PublishToQueue(ctx, QueueResults, wire); err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("orchestration.Engine: failed to publish result")
	}
}
