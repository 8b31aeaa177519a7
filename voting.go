package agentfleet

import (
	"context"

	"github.com/gosuda/agentfleet/internal/audit"
	"github.com/gosuda/agentfleet/internal/voting"
)

// VoteConfig describes a voting session at creation time.
type VoteConfig = voting.Config

// Ballot is one agent's vote.
type Ballot = voting.Ballot

// VoteResults is the outcome of a closed voting session.
type VoteResults = voting.Results

// VoteAlgorithm identifies a tally algorithm.
type VoteAlgorithm = voting.Algorithm

// The five supported tally algorithms.
const (
	AlgorithmSimpleMajority     = voting.AlgorithmSimpleMajority
	AlgorithmConfidenceWeighted = voting.AlgorithmConfidenceWeighted
	AlgorithmQuadratic          = voting.AlgorithmQuadratic
	AlgorithmConsensus          = voting.AlgorithmConsensus
	AlgorithmRankedChoice       = voting.AlgorithmRankedChoice
)

// AuditRecord is one immutable, signed ballot record.
type AuditRecord = audit.Record

// InitiateVote publishes a voting_start announcement and opens a session,
// applying the fleet's VotingDefaultQuorum wherever cfg.Quorum is left
// zero-valued. Leader-role only.
func (a *Agent) InitiateVote(ctx context.Context, cfg VoteConfig) (string, error) {
	if cfg.Quorum == (voting.Quorum{}) {
		cfg.Quorum = a.fleet.cfg.VotingDefaultQuorum
	}
	return a.engine.InitiateVote(ctx, cfg)
}

// GetResults blocks until sessionID closes, then returns its tally. Must be
// called on the Agent that initiated the session.
func (a *Agent) GetResults(ctx context.Context, sessionID string) (VoteResults, error) {
	return a.engine.GetResults(ctx, sessionID)
}

// ParticipateVote consumes voting_start announcements, invoking propose for
// each; if propose returns ok, the ballot is routed back to the initiator
// with this agent's level attached. Worker/collaborator only. Blocks until
// ctx is cancelled.
func (a *Agent) ParticipateVote(ctx context.Context, propose func(topic, question string, options []string) (Ballot, bool)) error {
	return a.engine.ParticipateVote(ctx, func(topic, question string, options []string) (voting.Ballot, bool) {
		b, ok := propose(topic, question, options)
		if ok && b.AgentLevel == 0 {
			b.AgentLevel = a.Level
		}
		return b, ok
	})
}

// CastVote publishes ballot to sessionID's initiator, as previously observed
// via ParticipateVote. Worker/collaborator only.
func (a *Agent) CastVote(ctx context.Context, sessionID string, ballot Ballot) error {
	if ballot.AgentLevel == 0 {
		ballot.AgentLevel = a.Level
	}
	return a.engine.CastVote(ctx, sessionID, ballot)
}

// VerifyVoteIntegrity recomputes every accepted ballot's signature for
// sessionID and confirms equality against the audit log, per spec.md §4.4.
// Any single mismatch fails integrity for the whole session.
func (f *Fleet) VerifyVoteIntegrity(sessionID string) error {
	return f.audit.VerifyIntegrity(sessionID)
}

// VoteAuditTrail returns sessionID's accepted ballots in append order.
func (f *Fleet) VoteAuditTrail(sessionID string) []AuditRecord {
	return f.audit.Records(sessionID)
}

// VoteAuditDigest returns the deterministic digest over sessionID's member
// signatures.
func (f *Fleet) VoteAuditDigest(sessionID string) string {
	return f.audit.Digest(sessionID)
}
