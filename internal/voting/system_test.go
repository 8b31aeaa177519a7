package voting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentfleet/internal/errs"
)

func TestSystem_GetUnknownSessionReturnsVoteNotFound(t *testing.T) {
	t.Parallel()
	sys := NewSystem()
	_, err := sys.Get("nope")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindVoteNotFound, kind)
}

func TestSystem_OpenCastCloseResults(t *testing.T) {
	t.Parallel()
	sys := NewSystem()
	sess := sys.Open(Config{
		SessionID: "sys1",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmSimpleMajority,
		Quorum:    unlimitedQuorum(2),
		Deadline:  time.Now().Add(time.Hour),
	})
	require.NotNil(t, sess)

	require.NoError(t, sys.CastVote("sys1", Ballot{AgentID: "a1", Choice: "A"}))
	require.NoError(t, sys.CastVote("sys1", Ballot{AgentID: "a2", Choice: "A"}))

	_, err := sys.Results("sys1")
	require.Error(t, err, "results should not be available before close")

	closed, err := sys.Close("sys1")
	require.NoError(t, err)
	assert.Equal(t, "A", closed.Winner)

	fetched, err := sys.Results("sys1")
	require.NoError(t, err)
	assert.Equal(t, closed, fetched)
}

func TestSystem_DeadlineTimerClosesSessionAutomatically(t *testing.T) {
	t.Parallel()
	sys := NewSystem()
	sess := sys.Open(Config{
		SessionID: "timer1",
		Options:   []string{"A", "B"},
		Algorithm: AlgorithmSimpleMajority,
		Quorum:    unlimitedQuorum(1),
		Deadline:  time.Now().Add(20 * time.Millisecond),
	})
	require.NoError(t, sess.CastVote(Ballot{AgentID: "a1", Choice: "A"}))

	assert.Eventually(t, func() bool {
		return sess.Status() != StatusOpen
	}, time.Second, 5*time.Millisecond)
}
