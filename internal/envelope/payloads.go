package envelope

// Priority is the task priority scale from spec.md §3, with its numeric
// dispatch weight.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Weight returns the numeric scheduling weight for p, defaulting to the
// weight of PriorityNormal for an unrecognized value.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 10
	case PriorityHigh:
		return 7
	case PriorityLow:
		return 2
	default:
		return 5
	}
}

// TaskPayload is the payload of a TypeTask envelope.
type TaskPayload struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Priority      Priority       `json:"priority"`
	Context       map[string]any `json:"context,omitempty"`
	DeadlineMS    int64          `json:"deadline_ms,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// ResultPayload is the payload of a TypeResult envelope.
type ResultPayload struct {
	TaskID          string `json:"task_id"`
	ProducerAgentID string `json:"producer_agent_id"`
	Status          string `json:"status"` // "completed" | "failed"
	Payload         any    `json:"payload,omitempty"`
	DurationMS      int64  `json:"duration_ms"`
	ProducedAt      int64  `json:"produced_at"`
	FailureKind     string `json:"failure_kind,omitempty"`
}

// BrainstormStartPayload is the payload of a TypeBrainstormStart envelope.
type BrainstormStartPayload struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	Question  string `json:"question"`
	Deadline  int64  `json:"deadline"`
}

// BrainstormResponsePayload is the payload of a TypeBrainstormReply envelope.
type BrainstormResponsePayload struct {
	SessionID  string `json:"session_id"`
	Suggestion string `json:"suggestion"`
}

// VotingStartPayload is the payload of a TypeVotingStart envelope.
type VotingStartPayload struct {
	SessionID string   `json:"session_id"`
	Topic     string   `json:"topic"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	Deadline  int64    `json:"deadline"`
}

// VotePayload is the union payload of a TypeVotingVote envelope. Which
// fields are populated depends on the session's algorithm: Choice+Confidence
// for simple_majority/confidence_weighted/consensus, Allocation for
// quadratic, Rankings for ranked_choice.
type VotePayload struct {
	SessionID  string         `json:"session_id"`
	Choice     string         `json:"choice,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Allocation map[string]int `json:"allocation,omitempty"`
	Rankings   []string       `json:"rankings,omitempty"`
	AgentLevel int            `json:"agent_level,omitempty"`
}

// StatusPayload is the payload of a TypeStatus envelope.
type StatusPayload struct {
	State       string         `json:"state"`
	ActiveTasks int            `json:"active_tasks"`
	Stats       map[string]any `json:"stats,omitempty"`
	TS          int64          `json:"ts"`
}
