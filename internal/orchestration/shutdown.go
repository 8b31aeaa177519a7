package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/gosuda/agentfleet/internal/envelope"
)

// Shutdown runs the graceful shutdown sequence from spec.md §4.2: stop
// accepting new deliveries (any that still arrive are nack-requeued), wait
// up to drain for the engine's consumers and vote collectors to exit,
// cancel everything still running (an aborted handler's delivery is
// nack-requeued), publish a final shutdown status event, then return.
// In-flight handlers are not tracked on their own: a running HandleTasks
// consumer exits only once cancelled, so while one is active the wait
// lasts the full drain. The caller is responsible for closing the
// underlying broker.Client afterward. Idempotent.
func (e *Engine) Shutdown(ctx context.Context, drain time.Duration) {
	e.shutdownOnce.Do(func() {
		e.accepting.Store(false)

		if !waitWithTimeout(&e.consumerWG, drain) {
			e.cancelAll()
			waitWithTimeout(&e.consumerWG, 5*time.Second)
		} else {
			e.cancelAll()
		}

		_ = e.publishStatusPayload(ctx, "shutdown", e.cfg.AgentID, envelope.StatusPayload{State: "shutdown"})
	})
}

// waitWithTimeout waits for wg to finish, returning false if d elapses
// first.
func waitWithTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
