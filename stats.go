package agentfleet

import "github.com/gosuda/agentfleet/internal/orchestration"

// Stats is the counters snapshot returned by Stats(). Every field is
// monotonic and updated atomically, per spec.md §5.
type Stats = orchestration.Stats

// Stats returns a snapshot of this agent's counters, including the
// fleet-wide broker's cumulative reconnect attempt count.
func (a *Agent) Stats() Stats {
	return a.engine.Stats()
}
