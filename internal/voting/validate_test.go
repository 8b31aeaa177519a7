package voting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBallot_ChoiceMustBeAnOption(t *testing.T) {
	t.Parallel()
	cfg := Config{Options: []string{"A", "B"}, Algorithm: AlgorithmSimpleMajority}
	b := Ballot{Choice: "C"}
	require.Error(t, validateBallot(cfg, &b))
}

func TestValidateBallot_DefaultsConfidenceToOne(t *testing.T) {
	t.Parallel()
	cfg := Config{Options: []string{"A"}, Algorithm: AlgorithmSimpleMajority}
	b := Ballot{Choice: "A"}
	require.NoError(t, validateBallot(cfg, &b))
	assert.Equal(t, 1.0, b.Confidence)
}

func TestValidateBallot_ConfidenceOutOfRange(t *testing.T) {
	t.Parallel()
	cfg := Config{Options: []string{"A"}, Algorithm: AlgorithmConfidenceWeighted}
	b := Ballot{Choice: "A", Confidence: 1.5}
	require.Error(t, validateBallot(cfg, &b))
}

func TestValidateBallot_QuadraticAllocationSumExceedsTokens(t *testing.T) {
	t.Parallel()
	cfg := Config{Options: []string{"A", "B"}, Algorithm: AlgorithmQuadratic, TokensPerAgent: 5}
	b := Ballot{Allocation: map[string]int{"A": 3, "B": 3}}
	require.Error(t, validateBallot(cfg, &b))
}

func TestValidateBallot_QuadraticUnknownOption(t *testing.T) {
	t.Parallel()
	cfg := Config{Options: []string{"A"}, Algorithm: AlgorithmQuadratic, TokensPerAgent: 5}
	b := Ballot{Allocation: map[string]int{"Z": 2}}
	require.Error(t, validateBallot(cfg, &b))
}

func TestValidateBallot_RankedChoiceMustBePermutation(t *testing.T) {
	t.Parallel()
	cfg := Config{Options: []string{"A", "B", "C"}, Algorithm: AlgorithmRankedChoice}

	tests := []struct {
		name     string
		rankings []string
		wantErr  bool
	}{
		{"valid permutation", []string{"B", "A", "C"}, false},
		{"missing an option", []string{"A", "B"}, true},
		{"duplicate entry", []string{"A", "A", "C"}, true},
		{"unknown option", []string{"A", "B", "Z"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := Ballot{Rankings: tt.rankings}
			err := validateBallot(cfg, &b)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
