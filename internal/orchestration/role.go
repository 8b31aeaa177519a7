package orchestration

import "fmt"

// Role is one of the four agent roles, each a fixed capability set
// (spec.md §4.2). Attempting an operation outside an agent's role is a
// programming error and fails fast with a classified ConfigError.
type Role string

const (
	RoleLeader       Role = "leader"
	RoleWorker       Role = "worker"
	RoleCollaborator Role = "collaborator"
	RoleMonitor      Role = "monitor"
)

// Capability names an operation gated by role.
type Capability string

const (
	CapAssignTask            Capability = "assign_task"
	CapInitiateBrainstorm    Capability = "initiate_brainstorm"
	CapInitiateVote          Capability = "initiate_vote"
	CapConsumeResults        Capability = "consume_results"
	CapConsumeStatus         Capability = "consume_status"
	CapConsumeTasks          Capability = "consume_tasks"
	CapPublishResult         Capability = "publish_result"
	CapParticipateBrainstorm Capability = "participate_brainstorm"
	CapParticipateVote       Capability = "participate_vote"
	CapPublishStatus         Capability = "publish_status"
	CapQueryStats            Capability = "query_stats"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleLeader: {
		CapAssignTask:         true,
		CapInitiateBrainstorm: true,
		CapInitiateVote:       true,
		CapConsumeResults:     true,
		CapConsumeStatus:      true,
	},
	RoleWorker: {
		CapConsumeTasks:          true,
		CapPublishResult:         true,
		CapParticipateBrainstorm: true,
		CapParticipateVote:       true,
		CapPublishStatus:         true,
	},
	RoleCollaborator: {
		CapParticipateBrainstorm: true,
		CapParticipateVote:       true,
		CapPublishStatus:         true,
	},
	RoleMonitor: {
		CapConsumeStatus: true,
		CapQueryStats:    true,
	},
}

// Allows reports whether role may perform cap.
func (r Role) Allows(cap Capability) bool {
	return roleCapabilities[r][cap]
}

// Check returns an error if role lacks cap. Callers should treat this as a
// programming error (fail fast), not a retryable condition.
func Check(role Role, cap Capability) error {
	if role.Allows(cap) {
		return nil
	}
	return fmt.Errorf("role %q does not have capability %q", role, cap)
}

// ValidRole reports whether r is one of the four known roles.
func ValidRole(r Role) bool {
	_, ok := roleCapabilities[r]
	return ok
}
