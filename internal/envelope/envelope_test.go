package envelope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentfleet/internal/envelope"
)

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	t.Parallel()

	payload, err := envelope.EncodePayload(envelope.TaskPayload{
		Title:       "review PR",
		Description: "check the diff for correctness",
		Priority:    envelope.PriorityHigh,
		Context:     map[string]any{"repo": "agentfleet"},
	})
	require.NoError(t, err)

	want := envelope.Envelope{
		ID:      "11111111-1111-1111-1111-111111111111",
		Type:    envelope.TypeTask,
		From:    "leader-1",
		To:      "worker-3",
		TS:      1690000000,
		Payload: payload,
	}

	wire, err := envelope.Marshal(want)
	require.NoError(t, err)

	got, err := envelope.Unmarshal(wire)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.From, got.From)
	assert.Equal(t, want.To, got.To)
	assert.Equal(t, want.TS, got.TS)

	var gotPayload envelope.TaskPayload
	require.NoError(t, envelope.DecodePayload(got, &gotPayload))
	assert.Equal(t, "review PR", gotPayload.Title)
	assert.Equal(t, envelope.PriorityHigh, gotPayload.Priority)
	assert.Equal(t, "agentfleet", gotPayload.Context["repo"])
}

func TestUnmarshal_UnrecognizedType(t *testing.T) {
	t.Parallel()

	_, err := envelope.Unmarshal([]byte(`{"id":"x","type":"not_a_real_type","from":"a","ts":1}`))
	require.Error(t, err)
}

func TestUnmarshal_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := envelope.Unmarshal([]byte(`{not json`))
	require.Error(t, err)
}

func TestPriority_Weight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    envelope.Priority
		want int
	}{
		{"critical outranks high", envelope.PriorityCritical, 10},
		{"high outranks normal", envelope.PriorityHigh, 7},
		{"normal is the default weight", envelope.PriorityNormal, 5},
		{"low is lowest", envelope.PriorityLow, 2},
		{"unrecognized falls back to normal weight", envelope.Priority("bogus"), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.p.Weight())
		})
	}

	assert.Greater(t, envelope.PriorityCritical.Weight(), envelope.PriorityHigh.Weight())
	assert.Greater(t, envelope.PriorityHigh.Weight(), envelope.PriorityNormal.Weight())
	assert.Greater(t, envelope.PriorityNormal.Weight(), envelope.PriorityLow.Weight())
}

func TestEncodePayload_VotePayloadUnionVariants(t *testing.T) {
	t.Parallel()

	confidence := 0.8
	choiceVote := envelope.VotePayload{SessionID: "s1", Choice: "option-a", Confidence: &confidence, AgentLevel: 2}
	quadraticVote := envelope.VotePayload{SessionID: "s1", Allocation: map[string]int{"option-a": 4, "option-b": 1}}
	rankedVote := envelope.VotePayload{SessionID: "s1", Rankings: []string{"option-b", "option-a"}}

	for _, v := range []envelope.VotePayload{choiceVote, quadraticVote, rankedVote} {
		raw, err := envelope.EncodePayload(v)
		require.NoError(t, err)

		var decoded envelope.VotePayload
		require.NoError(t, envelope.DecodePayload(envelope.Envelope{Payload: raw}, &decoded))
		assert.Equal(t, "s1", decoded.SessionID)
	}
}
