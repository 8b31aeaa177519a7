package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentfleet/internal/errs"
)

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")
	err := errs.New(errs.KindConnect, "broker.Client.Connect", cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "broker.Client.Connect")
	assert.Contains(t, err.Error(), "connect")
}

func TestError_Is_MatchesByKind(t *testing.T) {
	t.Parallel()

	a := errs.New(errs.KindVoteQuorumFailed, "voting.Session.Close", nil)
	b := errs.New(errs.KindVoteQuorumFailed, "voting.Session.Close", errors.New("different cause"))
	c := errs.New(errs.KindVoteDeadlinePassed, "voting.Session.CastVote", nil)

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

func TestWrap_InheritsKindOfClassifiedCause(t *testing.T) {
	t.Parallel()

	inner := errs.New(errs.KindHandlerTransient, "handler", errors.New("timeout"))
	outer := errs.Wrap(errs.KindHandlerPermanent, "orchestration.Engine.dispatch", inner)

	kind, ok := errs.KindOf(outer)
	require.True(t, ok)
	assert.Equal(t, errs.KindHandlerTransient, kind, "Wrap should inherit the cause's classification when already classified")
}

func TestWrap_DefaultsKindWhenCauseUnclassified(t *testing.T) {
	t.Parallel()

	outer := errs.Wrap(errs.KindPublish, "broker.Client.PublishToQueue", errors.New("confirm timeout"))

	kind, ok := errs.KindOf(outer)
	require.True(t, ok)
	assert.Equal(t, errs.KindPublish, kind)
}

func TestKindOf_NotClassified(t *testing.T) {
	t.Parallel()

	_, ok := errs.KindOf(errors.New("plain error"))
	assert.False(t, ok)
}
