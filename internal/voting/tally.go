package voting

import (
	"hash/fnv"
	"math"
	"sort"
)

// tally computes Results for cfg against ballots, assuming quorum already
// passed. Ballots is iterated only through deterministic (sorted) views so
// the result never depends on map/slice ordering received from callers.
func tally(cfg Config, ballots map[string]Ballot) Results {
	switch cfg.Algorithm {
	case AlgorithmSimpleMajority:
		return tallySimpleMajority(cfg, ballots)
	case AlgorithmConfidenceWeighted:
		return tallyConfidenceWeighted(cfg, ballots)
	case AlgorithmQuadratic:
		return tallyQuadratic(cfg, ballots)
	case AlgorithmConsensus:
		return tallyConsensus(cfg, ballots)
	case AlgorithmRankedChoice:
		return tallyRankedChoice(cfg, ballots)
	default:
		return Results{Status: StatusClosedQuorumFailed, Algorithm: cfg.Algorithm}
	}
}

// sortedAgentIDs returns the ballots' agent IDs sorted, the canonical
// deterministic iteration order used by every tally function.
func sortedAgentIDs(ballots map[string]Ballot) []string {
	ids := make([]string, 0, len(ballots))
	for id := range ballots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func tallySimpleMajority(cfg Config, ballots map[string]Ballot) Results {
	scores := make(map[string]float64, len(cfg.Options))
	for _, opt := range cfg.Options {
		scores[opt] = 0
	}
	total := 0.0
	for _, id := range sortedAgentIDs(ballots) {
		scores[ballots[id].Choice]++
		total++
	}

	winner, tied := argmax(scores, cfg.Options)
	method := ""
	if len(tied) > 1 {
		winner, method = breakTie(cfg, ballots, tied)
	}

	pct := 0.0
	if total > 0 {
		pct = scores[winner] / total
	}
	return Results{
		Status:           StatusClosedSuccess,
		Algorithm:        cfg.Algorithm,
		Winner:           winner,
		WinnerPercentage: pct,
		Scores:           scores,
		TieBreakMethod:   method,
	}
}

func tallyConfidenceWeighted(cfg Config, ballots map[string]Ballot) Results {
	scores := make(map[string]float64, len(cfg.Options))
	for _, opt := range cfg.Options {
		scores[opt] = 0
	}
	totalConfidence := 0.0
	for _, id := range sortedAgentIDs(ballots) {
		b := ballots[id]
		scores[b.Choice] += b.Confidence
		totalConfidence += b.Confidence
	}

	winner, tied := argmax(scores, cfg.Options)
	method := ""
	if len(tied) > 1 {
		winner, method = breakTie(cfg, ballots, tied)
	}

	pct := 0.0
	if totalConfidence > 0 {
		pct = scores[winner] / totalConfidence
	}
	return Results{
		Status:           StatusClosedSuccess,
		Algorithm:        cfg.Algorithm,
		Winner:           winner,
		WinnerPercentage: pct,
		Scores:           scores,
		TieBreakMethod:   method,
	}
}

func tallyQuadratic(cfg Config, ballots map[string]Ballot) Results {
	scores := make(map[string]float64, len(cfg.Options))
	for _, opt := range cfg.Options {
		scores[opt] = 0
	}
	for _, id := range sortedAgentIDs(ballots) {
		b := ballots[id]
		for _, opt := range sortedOptions(cfg.Options) {
			tokens := b.Allocation[opt]
			if tokens > 0 {
				scores[opt] += math.Sqrt(float64(tokens))
			}
		}
	}

	winner, tied := argmax(scores, cfg.Options)
	method := ""
	if len(tied) > 1 {
		winner, method = breakTie(cfg, ballots, tied)
	}

	total := 0.0
	for _, v := range scores {
		total += v
	}
	pct := 0.0
	if total > 0 {
		pct = scores[winner] / total
	}
	return Results{
		Status:           StatusClosedSuccess,
		Algorithm:        cfg.Algorithm,
		Winner:           winner,
		WinnerPercentage: pct,
		Scores:           scores,
		TieBreakMethod:   method,
	}
}

func tallyConsensus(cfg Config, ballots map[string]Ballot) Results {
	r := tallySimpleMajority(cfg, ballots)
	r.Algorithm = AlgorithmConsensus
	r.ConsensusReached = r.WinnerPercentage >= cfg.ConsensusThreshold
	return r
}

// tallyRankedChoice runs instant-runoff elimination until the leading
// option (highest count; among equal counts, the smallest option string)
// holds at least half of the remaining total, or only one option is left.
func tallyRankedChoice(cfg Config, ballots map[string]Ballot) Results {
	remaining := make(map[string]bool, len(cfg.Options))
	for _, opt := range cfg.Options {
		remaining[opt] = true
	}

	var rounds []RankedRound
	for {
		counts := make(map[string]int)
		for opt := range remaining {
			counts[opt] = 0
		}
		activeTotal := 0
		for _, id := range sortedAgentIDs(ballots) {
			choice := firstRemainingChoice(ballots[id].Rankings, remaining)
			if choice == "" {
				continue
			}
			counts[choice]++
			activeTotal++
		}

		if len(remaining) == 1 {
			var winner string
			for opt := range remaining {
				winner = opt
			}
			rounds = append(rounds, RankedRound{Tally: counts})
			pct := 1.0
			if activeTotal > 0 {
				pct = float64(counts[winner]) / float64(activeTotal)
			}
			return Results{
				Status:           StatusClosedSuccess,
				Algorithm:        cfg.Algorithm,
				Winner:           winner,
				WinnerPercentage: pct,
				Scores:           toFloatScores(counts),
				Rounds:           rounds,
			}
		}

		leader, leaderCount := "", -1
		for _, opt := range sortedOptions(cfg.Options) {
			if remaining[opt] && counts[opt] > leaderCount {
				leader, leaderCount = opt, counts[opt]
			}
		}
		if activeTotal > 0 && float64(leaderCount) >= float64(activeTotal)/2 {
			rounds = append(rounds, RankedRound{Tally: counts})
			return Results{
				Status:           StatusClosedSuccess,
				Algorithm:        cfg.Algorithm,
				Winner:           leader,
				WinnerPercentage: float64(leaderCount) / float64(activeTotal),
				Scores:           toFloatScores(counts),
				Rounds:           rounds,
			}
		}

		eliminated := eliminateLowest(counts, remaining)
		rounds = append(rounds, RankedRound{Tally: counts, Eliminated: eliminated})
		delete(remaining, eliminated)
	}
}

func firstRemainingChoice(rankings []string, remaining map[string]bool) string {
	for _, opt := range rankings {
		if remaining[opt] {
			return opt
		}
	}
	return ""
}

// eliminateLowest returns the lowest-tallied remaining option, breaking
// ties among the lowest by the smallest option string (spec.md §4.3).
func eliminateLowest(counts map[string]int, remaining map[string]bool) string {
	lowest := math.MaxInt64
	for opt := range remaining {
		if counts[opt] < lowest {
			lowest = counts[opt]
		}
	}
	var candidates []string
	for opt := range remaining {
		if counts[opt] == lowest {
			candidates = append(candidates, opt)
		}
	}
	sort.Strings(candidates)
	return candidates[0]
}

func toFloatScores(counts map[string]int) map[string]float64 {
	out := make(map[string]float64, len(counts))
	for k, v := range counts {
		out[k] = float64(v)
	}
	return out
}

// argmax returns the option(s) in options with the highest score in
// scores. A single winner is returned directly; if more than one option
// ties for the maximum, all tied options are returned in tied for the
// caller to resolve via breakTie.
func argmax(scores map[string]float64, options []string) (winner string, tied []string) {
	best := math.Inf(-1)
	for _, opt := range sortedOptions(options) {
		if scores[opt] > best {
			best = scores[opt]
		}
	}
	for _, opt := range sortedOptions(options) {
		if scores[opt] == best {
			tied = append(tied, opt)
		}
	}
	if len(tied) == 1 {
		return tied[0], tied
	}
	return tied[0], tied
}

// breakTie applies the four-stage deterministic tie-break procedure from
// spec.md §4.3 over the tied options, returning the selected winner and the
// name of the stage that resolved it.
func breakTie(cfg Config, ballots map[string]Ballot, tied []string) (string, string) {
	candidates := append([]string(nil), tied...)
	sort.Strings(candidates)

	if w, ok := resolveBySum(candidates, ballots, func(b Ballot) float64 { return b.Confidence }); ok {
		return w, "confidence"
	}
	if w, ok := resolveBySum(candidates, ballots, func(b Ballot) float64 { return float64(b.expertiseWeight()) }); ok {
		return w, "expertise"
	}
	if w, ok := resolveByEarliestTimestamp(candidates, ballots); ok {
		return w, "earliest_timestamp"
	}
	return resolveByDeterministicRandom(cfg.SessionID, candidates), "deterministic_random"
}

// resolveBySum sums weight(b) over every ballot whose Choice is among
// candidates, grouped by that choice, and returns the sole argmax if one
// exists.
func resolveBySum(candidates []string, ballots map[string]Ballot, weight func(Ballot) float64) (string, bool) {
	sums := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		sums[c] = 0
	}
	for _, id := range sortedAgentIDs(ballots) {
		b := ballots[id]
		if _, isCandidate := sums[b.Choice]; isCandidate {
			sums[b.Choice] += weight(b)
		}
	}

	best := math.Inf(-1)
	for _, c := range candidates {
		if sums[c] > best {
			best = sums[c]
		}
	}
	var winners []string
	for _, c := range candidates {
		if sums[c] == best {
			winners = append(winners, c)
		}
	}
	if len(winners) == 1 {
		return winners[0], true
	}
	return "", false
}

func resolveByEarliestTimestamp(candidates []string, ballots map[string]Ballot) (string, bool) {
	earliest := make(map[string]int64, len(candidates))
	set := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		set[c] = true
	}
	for _, id := range sortedAgentIDs(ballots) {
		b := ballots[id]
		if !set[b.Choice] {
			continue
		}
		ts := b.Timestamp.UnixNano()
		if existing, ok := earliest[b.Choice]; !ok || ts < existing {
			earliest[b.Choice] = ts
		}
	}

	var best int64 = math.MaxInt64
	for _, c := range candidates {
		if ts, ok := earliest[c]; ok && ts < best {
			best = ts
		}
	}
	var winners []string
	for _, c := range candidates {
		if ts, ok := earliest[c]; ok && ts == best {
			winners = append(winners, c)
		}
	}
	if len(winners) == 1 {
		return winners[0], true
	}
	return "", false
}

// resolveByDeterministicRandom picks among candidates using an FNV-1a fold
// over sessionID and the sorted candidate set, reduced mod len(candidates),
// so the same tie always resolves the same way regardless of process or
// ballot arrival order.
func resolveByDeterministicRandom(sessionID string, candidates []string) string {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	for _, c := range candidates {
		h.Write([]byte{'|'})
		h.Write([]byte(c))
	}
	idx := int(h.Sum64() % uint64(len(candidates)))
	return candidates[idx]
}
