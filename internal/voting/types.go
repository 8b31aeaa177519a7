// Package voting implements the voting/consensus subsystem (spec.md §4.3):
// session state machine, ballot ingestion and validation, five tally
// algorithms, quorum enforcement and deterministic tie-breaking. All tally
// computation here is synchronous and non-suspending, per spec.md §5.
package voting

import "time"

// Algorithm identifies a tally algorithm.
type Algorithm string

const (
	AlgorithmSimpleMajority     Algorithm = "simple_majority"
	AlgorithmConfidenceWeighted Algorithm = "confidence_weighted"
	AlgorithmQuadratic          Algorithm = "quadratic"
	AlgorithmConsensus          Algorithm = "consensus"
	AlgorithmRankedChoice       Algorithm = "ranked_choice"
)

// Status is a VotingSession state, per the state machine
// open -> {closed_success, closed_quorum_failed}.
type Status string

const (
	StatusOpen               Status = "open"
	StatusClosedSuccess      Status = "closed_success"
	StatusClosedQuorumFailed Status = "closed_quorum_failed"
)

// Quorum is the set of predicates all of which must hold for a session to
// produce a winner.
type Quorum struct {
	MinParticipation float64 // rate in [0,1]
	MinConfidence    float64
	MinExperts       int
	TotalAgents      int
}

// Config describes a session at creation time.
type Config struct {
	SessionID          string
	Topic              string
	Question           string
	Options            []string
	Algorithm          Algorithm
	Quorum             Quorum
	ConsensusThreshold float64 // only meaningful when Algorithm == AlgorithmConsensus
	TokensPerAgent     int     // only meaningful when Algorithm == AlgorithmQuadratic
	Deadline           time.Time
}

// Ballot is one agent's vote. Which fields are populated depends on the
// session's algorithm: Choice+Confidence for simple_majority /
// confidence_weighted / consensus, Allocation for quadratic, Rankings for
// ranked_choice.
type Ballot struct {
	AgentID    string
	AgentLevel int
	Timestamp  time.Time
	Choice     string
	Confidence float64
	Allocation map[string]int
	Rankings   []string
}

// isExpert reports whether b counts toward the quorum's expert predicate.
func (b Ballot) isExpert() bool { return b.AgentLevel >= 4 }

// expertiseWeight is the tie-break weight contributed by b: 2 for an
// expert ballot, 1 otherwise.
func (b Ballot) expertiseWeight() int {
	if b.isExpert() {
		return 2
	}
	return 1
}

// QuorumDetail reports the measured value of each quorum predicate,
// attached to results whenever quorum fails so callers can see why.
type QuorumDetail struct {
	Participation   float64
	ParticipationOK bool
	ConfidenceSum   float64
	ConfidenceOK    bool
	ExpertCount     int
	ExpertOK        bool
}

// RankedRound records one elimination round of an instant-runoff tally.
type RankedRound struct {
	Tally      map[string]int
	Eliminated string
}

// Results is the outcome of a closed session.
type Results struct {
	Status           Status
	Algorithm        Algorithm
	Winner           string
	WinnerPercentage float64
	Scores           map[string]float64
	ConsensusReached bool
	TieBreakMethod   string
	Rounds           []RankedRound
	QuorumDetail     *QuorumDetail
}
