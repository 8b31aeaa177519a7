package voting

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unlimitedQuorum(n int) Quorum {
	return Quorum{MinParticipation: 0, MinConfidence: 0, MinExperts: 0, TotalAgents: n}
}

// TestScenario_S3_ConfidenceWeightedVote matches spec.md §8 scenario S3.
func TestScenario_S3_ConfidenceWeightedVote(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID: "s3",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmConfidenceWeighted,
		Quorum:    unlimitedQuorum(3),
		Deadline:  time.Now().Add(time.Hour),
	}
	sess := NewSession(cfg)

	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", AgentLevel: 5, Choice: "A", Confidence: 0.95}))
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a2", AgentLevel: 2, Choice: "B", Confidence: 0.40}))
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a3", AgentLevel: 3, Choice: "A", Confidence: 0.70}))

	results, err := sess.Close()
	require.NoError(t, err)

	assert.Equal(t, StatusClosedSuccess, results.Status)
	assert.Equal(t, "A", results.Winner)
	assert.InDelta(t, 1.65, results.Scores["A"], 1e-9)
	assert.InDelta(t, 0.40, results.Scores["B"], 1e-9)
	assert.InDelta(t, 1.65/2.05, results.WinnerPercentage, 1e-9)
}

// TestScenario_S4_RankedChoiceElimination matches spec.md §8 scenario S4.
func TestScenario_S4_RankedChoiceElimination(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID: "s4",
		Options:   []string{"R", "V", "S", "A"},
		Algorithm: AlgorithmRankedChoice,
		Quorum:    unlimitedQuorum(5),
		Deadline:  time.Now().Add(time.Hour),
	}
	sess := NewSession(cfg)

	rankings := [][]string{
		{"R", "V", "S", "A"},
		{"V", "R", "S", "A"},
		{"R", "S", "V", "A"},
		{"S", "R", "V", "A"},
		{"R", "V", "S", "A"},
	}
	for i, r := range rankings {
		require.NoError(t, sess.CastVote(Ballot{AgentID: agentName(i), AgentLevel: 1, Rankings: r}))
	}

	results, err := sess.Close()
	require.NoError(t, err)

	assert.Equal(t, "R", results.Winner)
	assert.InDelta(t, 0.60, results.WinnerPercentage, 1e-9)
	assert.Len(t, results.Rounds, 1, "R should win outright in round 1 with no eliminations")
}

// TestScenario_S5_ConsensusThresholdFail matches spec.md §8 scenario S5,
// taking the participation-quorum-holds branch: consensus_reached=false.
func TestScenario_S5_ConsensusThresholdFail(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID:          "s5",
		Options:            []string{"Y", "N"},
		Algorithm:          AlgorithmConsensus,
		ConsensusThreshold: 0.75,
		Quorum:             unlimitedQuorum(4),
		Deadline:           time.Now().Add(time.Hour),
	}
	sess := NewSession(cfg)

	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Choice: "Y", Timestamp: time.Unix(1, 0)}))
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a2", Choice: "Y", Timestamp: time.Unix(2, 0)}))
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a3", Choice: "N", Timestamp: time.Unix(3, 0)}))
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a4", Choice: "N", Timestamp: time.Unix(4, 0)}))

	results, err := sess.Close()
	require.NoError(t, err)

	assert.Equal(t, StatusClosedSuccess, results.Status)
	assert.False(t, results.ConsensusReached)
	assert.Contains(t, []string{"Y", "N"}, results.Winner)
}

func TestQuadraticTally_SqrtOfTokens(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID:      "q1",
		Options:        []string{"A", "B"},
		Algorithm:      AlgorithmQuadratic,
		TokensPerAgent: 9,
		Quorum:         unlimitedQuorum(2),
		Deadline:       time.Now().Add(time.Hour),
	}
	sess := NewSession(cfg)
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Allocation: map[string]int{"A": 9}}))
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a2", Allocation: map[string]int{"B": 4}}))

	results, err := sess.Close()
	require.NoError(t, err)
	assert.Equal(t, "A", results.Winner)
	assert.InDelta(t, 3.0, results.Scores["A"], 1e-9)
	assert.InDelta(t, 2.0, results.Scores["B"], 1e-9)
}

func TestTieBreak_ConfidenceStageResolvesFirst(t *testing.T) {
	t.Parallel()

	// Two options tied 1-1 on simple_majority; A's ballot has higher confidence.
	cfg := Config{
		SessionID: "tie1",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmSimpleMajority,
		Quorum:    unlimitedQuorum(2),
		Deadline:  time.Now().Add(time.Hour),
	}
	sess := NewSession(cfg)
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Choice: "A", Confidence: 0.9}))
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a2", Choice: "B", Confidence: 0.2}))

	results, err := sess.Close()
	require.NoError(t, err)
	assert.Equal(t, "A", results.Winner)
	assert.Equal(t, "confidence", results.TieBreakMethod)
}

func TestTieBreak_FallsThroughToDeterministicHash(t *testing.T) {
	t.Parallel()

	// Every tie-break predicate is equal: same confidence, same expertise,
	// same timestamp. Resolution must fall to the hash stage and must be
	// stable across repeated computation.
	cfg := Config{
		SessionID: "tie-equal",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmSimpleMajority,
		Quorum:    unlimitedQuorum(2),
		Deadline:  time.Now().Add(time.Hour),
	}
	ts := time.Unix(100, 0)

	var winners []string
	for i := 0; i < 5; i++ {
		sess := NewSession(cfg)
		require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Choice: "A", Confidence: 0.5, Timestamp: ts}))
		require.NoError(t, sess.CastVote(Ballot{AgentID: "a2", Choice: "B", Confidence: 0.5, Timestamp: ts}))
		results, err := sess.Close()
		require.NoError(t, err)
		assert.Equal(t, "deterministic_random", results.TieBreakMethod)
		winners = append(winners, results.Winner)
	}
	for _, w := range winners[1:] {
		assert.Equal(t, winners[0], w, "same tie must resolve the same way every time")
	}
}

// TestOrderIndependence covers the order-independence-of-tally property
// from spec.md §8: feeding ballots in arbitrary permutations must produce
// identical results.
func TestOrderIndependence(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID: "order1",
		Options:   []string{"A", "B", "C"},
		Algorithm: AlgorithmConfidenceWeighted,
		Quorum:    unlimitedQuorum(6),
		Deadline:  time.Now().Add(time.Hour),
	}
	ballots := []Ballot{
		{AgentID: "a1", Choice: "A", Confidence: 0.9},
		{AgentID: "a2", Choice: "B", Confidence: 0.3},
		{AgentID: "a3", Choice: "A", Confidence: 0.4},
		{AgentID: "a4", Choice: "C", Confidence: 0.8},
		{AgentID: "a5", Choice: "B", Confidence: 0.2},
		{AgentID: "a6", Choice: "A", Confidence: 0.1},
	}

	rng := rand.New(rand.NewSource(42))
	var first Results
	for i := 0; i < 8; i++ {
		perm := append([]Ballot(nil), ballots...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		sess := NewSession(cfg)
		for _, b := range perm {
			require.NoError(t, sess.CastVote(b))
		}
		results, err := sess.Close()
		require.NoError(t, err)

		if i == 0 {
			first = results
			continue
		}
		assert.Equal(t, first.Winner, results.Winner)
		assert.Equal(t, first.Scores, results.Scores)
		assert.Equal(t, first.TieBreakMethod, results.TieBreakMethod)
	}
}

func TestDeadlineStrictness_LateBallotRejected(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID: "late1",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmSimpleMajority,
		Quorum:    unlimitedQuorum(2),
		Deadline:  time.Now().Add(-time.Minute),
	}
	sess := NewSession(cfg)

	err := sess.CastVote(Ballot{AgentID: "a1", Choice: "A"})
	require.Error(t, err)
}

func TestClose_IsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID: "close1",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmSimpleMajority,
		Quorum:    unlimitedQuorum(1),
		Deadline:  time.Now().Add(time.Hour),
	}
	sess := NewSession(cfg)
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Choice: "A"}))

	r1, err := sess.Close()
	require.NoError(t, err)
	r2, err := sess.Close()
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestQuorumFailure_NoWinnerDeclared(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID: "quorum1",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmSimpleMajority,
		Quorum:    Quorum{MinParticipation: 1.0, TotalAgents: 5},
		Deadline:  time.Now().Add(time.Hour),
	}
	sess := NewSession(cfg)
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Choice: "A"}))

	results, err := sess.Close()
	require.NoError(t, err)
	assert.Equal(t, StatusClosedQuorumFailed, results.Status)
	assert.Empty(t, results.Winner)
	require.NotNil(t, results.QuorumDetail)
	assert.False(t, results.QuorumDetail.ParticipationOK)
}

func TestCastVote_ReplacesPreviousBallot(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SessionID: "replace1",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmSimpleMajority,
		Quorum:    unlimitedQuorum(1),
		Deadline:  time.Now().Add(time.Hour),
	}
	sess := NewSession(cfg)
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Choice: "A"}))
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Choice: "B"}))

	assert.Equal(t, 1, sess.BallotCount())
	results, err := sess.Close()
	require.NoError(t, err)
	assert.Equal(t, "B", results.Winner)
}

func agentName(i int) string {
	names := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}
	return names[i]
}
