package agentfleet

import (
	"context"
	"time"
)

// Shutdown runs this agent's graceful shutdown sequence (spec.md §4.2):
// stop accepting new deliveries, wait up to drain for the engine's
// consumers to exit, cancel whatever is still running (aborted handlers'
// deliveries are nack-requeued), publish a final shutdown status event.
// In-flight handlers are not tracked on their own, so while HandleTasks is
// running the wait lasts the full drain. Idempotent. The underlying broker
// connection is shared by the Fleet and is not closed here; call Fleet.Close
// once every agent has shut down.
func (a *Agent) Shutdown(ctx context.Context, drain time.Duration) {
	if drain <= 0 {
		drain = a.fleet.cfg.shutdownDrain()
	}
	a.engine.Shutdown(ctx, drain)
}
