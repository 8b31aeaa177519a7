package agentfleet

import (
	"context"

	"github.com/gosuda/agentfleet/internal/envelope"
	"github.com/gosuda/agentfleet/internal/orchestration"
)

// StatusPayload is the payload of a status event.
type StatusPayload = envelope.StatusPayload

// StatusHandler processes one status event delivered to a subscription.
type StatusHandler = orchestration.StatusHandler

// PublishStatus publishes a status event with routing key
// agent.status.<event>.<subkind>. Worker/collaborator only.
func (a *Agent) PublishStatus(ctx context.Context, event, subkind string, payload StatusPayload) error {
	return a.engine.PublishStatus(ctx, event, subkind, payload)
}

// SubscribeStatus binds to status events matching pattern and dispatches
// them to handler until ctx is cancelled. Leader/monitor only.
func (a *Agent) SubscribeStatus(ctx context.Context, pattern string, handler StatusHandler) error {
	return a.engine.SubscribeStatus(ctx, pattern, handler)
}

// StartHeartbeat runs until ctx is cancelled, publishing a heartbeat status
// event at the fleet's configured interval. A zero interval is a no-op.
func (a *Agent) StartHeartbeat(ctx context.Context) {
	a.engine.StartHeartbeat(ctx)
}
