package orchestration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gosuda/agentfleet/internal/broker"
	"github.com/gosuda/agentfleet/internal/envelope"
	"github.com/gosuda/agentfleet/internal/errs"
)

// StatusHandler processes one status event delivered to a subscription.
type StatusHandler func(ctx context.Context, routingKey string, payload envelope.StatusPayload)

// PublishStatus publishes a status event with routing key
// agent.status.<event>.<subkind>. Worker/collaborator only per role
// capability.
func (e *Engine) PublishStatus(ctx context.Context, event, subkind string, payload envelope.StatusPayload) error {
	if err := Check(e.cfg.Role, CapPublishStatus); err != nil {
		return errs.New(errs.KindConfig, "orchestration.Engine.PublishStatus", err)
	}
	return e.publishStatusPayload(ctx, event, subkind, payload)
}

func (e *Engine) publishStatusPayload(ctx context.Context, event, subkind string, payload envelope.StatusPayload) error {
	payload.TS = time.Now().UnixMilli()
	raw, err := envelope.EncodePayload(payload)
	if err != nil {
		return err
	}
	env := envelope.Envelope{
		ID:      uuid.NewString(),
		Type:    envelope.TypeStatus,
		From:    e.cfg.AgentID,
		TS:      payload.TS,
		Payload: raw,
	}
	wire, err := envelope.Marshal(env)
	if err != nil {
		return err
	}
	return e.broker.PublishToExchange(ctx, ExchangeStatus, statusRoutingKey(event, subkind), wire)
}

// publishStatusEvent is the internal shorthand used by the task lifecycle
// to emit agent.status.task.<subkind> events without exposing the full
// StatusPayload construction to callers.
func (e *Engine) publishStatusEvent(ctx context.Context, event, subkind string) {
	if err := e.publishStatusPayload(ctx, event, subkind, envelope.StatusPayload{State: subkind}); err != nil {
		log.Error().Err(err).Str("event", event).Str("subkind", subkind).Msg("orchestration.Engine: failed to publish status event")
	}
}

// SubscribeStatus binds an exclusive queue to ExchangeStatus with pattern
// and dispatches matching events to handler until ctx is cancelled.
// Leader/monitor only.
func (e *Engine) SubscribeStatus(ctx context.Context, pattern string, handler StatusHandler) error {
	if err := Check(e.cfg.Role, CapConsumeStatus); err != nil {
		return errs.New(errs.KindConfig, "orchestration.Engine.SubscribeStatus", err)
	}

	queue, err := e.broker.AssertExclusiveQueue()
	if err != nil {
		return err
	}
	if err := e.broker.Bind(queue, ExchangeStatus, pattern); err != nil {
		return err
	}

	return e.broker.Consume(ctx, queue, func(dctx context.Context, d broker.Delivery) broker.Action {
		env, err := envelope.Unmarshal(d.Body)
		if err != nil {
			return broker.ActionRejectNoRequeue
		}
		var payload envelope.StatusPayload
		if err := envelope.DecodePayload(env, &payload); err != nil {
			return broker.ActionRejectNoRequeue
		}
		handler(dctx, d.RoutingKey, payload)
		return broker.ActionAck
	})
}

// StartHeartbeat runs until ctx is cancelled, publishing a heartbeat status
// event at cfg.HeartbeatInterval. A zero interval makes this a no-op.
func (e *Engine) StartHeartbeat(ctx context.Context) {
	if e.cfg.HeartbeatInterval <= 0 {
		return
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

	limiter := rate.NewLimiter(rate.Every(e.cfg.HeartbeatInterval), 1)

	for {
		if err := limiter.Wait(runCtx); err != nil {
			return
		}

		stats := e.Stats()
		_ = e.publishStatusPayload(ctx, "heartbeat", e.cfg.AgentID, envelope.StatusPayload{
			State: "alive",
			Stats: map[string]any{
				"tasks_completed": stats.TasksCompleted,
				"tasks_failed":    stats.TasksFailed,
			},
		})
	}
}
