package agentfleet

import (
	"context"
	"time"

	"github.com/gosuda/agentfleet/internal/orchestration"
)

// BrainstormResponse is one ordered entry in a collected brainstorm session.
type BrainstormResponse = orchestration.BrainstormResponse

// StartBrainstorm publishes a brainstorm_start announcement and registers a
// local session to collect responses. Leader-role only.
func (a *Agent) StartBrainstorm(ctx context.Context, topic, question string, duration time.Duration) (string, error) {
	return a.engine.StartBrainstorm(ctx, topic, question, duration)
}

// CollectBrainstorm blocks until sessionID's deadline, then returns the
// ordered responses. Leader-role only.
func (a *Agent) CollectBrainstorm(ctx context.Context, sessionID string) ([]BrainstormResponse, error) {
	return a.engine.CollectBrainstorm(ctx, sessionID)
}

// ParticipateBrainstorm consumes brainstorm_start announcements, invoking
// respond for each; if respond returns ok, the suggestion is routed back to
// the initiator. Worker/collaborator only. Blocks until ctx is cancelled.
func (a *Agent) ParticipateBrainstorm(ctx context.Context, respond func(topic, question string) (string, bool)) error {
	return a.engine.ParticipateBrainstorm(ctx, respond)
}
