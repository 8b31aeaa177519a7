package voting

import (
	"fmt"
	"sort"

	"github.com/gosuda/agentfleet/internal/errs"
)

// validateBallot checks b against the session's algorithm and options,
// per spec.md §4.3's per-algorithm validation rules. A zero Confidence is
// treated as the default of 1.0.
func validateBallot(cfg Config, b *Ballot) error {
	switch cfg.Algorithm {
	case AlgorithmSimpleMajority, AlgorithmConfidenceWeighted, AlgorithmConsensus:
		if !containsOption(cfg.Options, b.Choice) {
			return errs.New(errs.KindVoteInvalidBallot, "voting.validateBallot",
				fmt.Errorf("choice %q is not one of the session's options", b.Choice))
		}
		if b.Confidence == 0 {
			b.Confidence = 1.0
		}
		if b.Confidence < 0 || b.Confidence > 1 {
			return errs.New(errs.KindVoteInvalidBallot, "voting.validateBallot",
				fmt.Errorf("confidence %v out of [0,1]", b.Confidence))
		}
		return nil

	case AlgorithmQuadratic:
		sum := 0
		for opt, tokens := range b.Allocation {
			if !containsOption(cfg.Options, opt) {
				return errs.New(errs.KindVoteInvalidBallot, "voting.validateBallot",
					fmt.Errorf("allocation option %q is not one of the session's options", opt))
			}
			if tokens < 0 {
				return errs.New(errs.KindVoteInvalidBallot, "voting.validateBallot",
					fmt.Errorf("negative allocation for %q", opt))
			}
			sum += tokens
		}
		if sum > cfg.TokensPerAgent {
			return errs.New(errs.KindVoteInvalidBallot, "voting.validateBallot",
				fmt.Errorf("allocation sum %d exceeds tokens_per_agent %d", sum, cfg.TokensPerAgent))
		}
		return nil

	case AlgorithmRankedChoice:
		if len(b.Rankings) != len(cfg.Options) {
			return errs.New(errs.KindVoteInvalidBallot, "voting.validateBallot",
				fmt.Errorf("rankings has %d entries, want %d", len(b.Rankings), len(cfg.Options)))
		}
		seen := make(map[string]bool, len(b.Rankings))
		for _, opt := range b.Rankings {
			if !containsOption(cfg.Options, opt) {
				return errs.New(errs.KindVoteInvalidBallot, "voting.validateBallot",
					fmt.Errorf("ranking %q is not one of the session's options", opt))
			}
			if seen[opt] {
				return errs.New(errs.KindVoteInvalidBallot, "voting.validateBallot",
					fmt.Errorf("ranking %q appears more than once", opt))
			}
			seen[opt] = true
		}
		return nil

	default:
		return errs.New(errs.KindConfig, "voting.validateBallot", fmt.Errorf("unknown algorithm %q", cfg.Algorithm))
	}
}

func containsOption(options []string, want string) bool {
	for _, o := range options {
		if o == want {
			return true
		}
	}
	return false
}

// sortedOptions returns cfg.Options sorted, used anywhere a deterministic
// iteration order over options is required.
func sortedOptions(options []string) []string {
	out := append([]string(nil), options...)
	sort.Strings(out)
	return out
}
