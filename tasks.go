package agentfleet

import (
	"context"

	"github.com/gosuda/agentfleet/internal/orchestration"
)

// Role is one of the four agent roles, each a fixed capability set.
type Role = orchestration.Role

// The four supported roles.
const (
	RoleLeader       = orchestration.RoleLeader
	RoleWorker       = orchestration.RoleWorker
	RoleCollaborator = orchestration.RoleCollaborator
	RoleMonitor      = orchestration.RoleMonitor
)

// Agent is a handle to one registered agent: its role, identity, and the
// orchestration engine bound to the Fleet's shared broker connection.
type Agent struct {
	ID    string
	Role  Role
	Level int

	fleet  *Fleet
	engine *orchestration.Engine
}

// Task mirrors the spec.md §3 Task entity as seen by the agent assigning it.
type Task = orchestration.Task

// HandlerResult is what a TaskHandler returns: success, or a classified
// failure (transient triggers a retry, permanent dead-letters immediately).
type HandlerResult = orchestration.HandlerResult

// TaskHandler processes one dispatched task.
type TaskHandler = orchestration.TaskHandler

// Ok constructs a successful HandlerResult.
func Ok() HandlerResult { return orchestration.Ok() }

// Failed constructs a failed HandlerResult of the given kind.
func Failed(kind orchestration.ErrorKind, err error) HandlerResult {
	return orchestration.Failed(kind, err)
}

// ErrorTransient and ErrorPermanent classify a handler failure.
const (
	ErrorTransient = orchestration.ErrorTransient
	ErrorPermanent = orchestration.ErrorPermanent
)

// AssignTask dispatches task to the priority queue matching its priority.
// Leader-role only.
func (a *Agent) AssignTask(ctx context.Context, task Task) (string, error) {
	return a.engine.AssignTask(ctx, task)
}

// HandleTasks starts one concurrent consumer per priority queue,
// dispatching deliveries to handler. Deliveries from different priority
// queues are not ordered against each other: a higher-priority task is not
// guaranteed to run before a lower-priority one. Worker-role only. Blocks
// until ctx is cancelled or Shutdown is called on this agent.
func (a *Agent) HandleTasks(ctx context.Context, handler TaskHandler) error {
	return a.engine.HandleTasks(ctx, handler)
}
