package voting

// checkQuorum evaluates the three quorum predicates from spec.md §4.3
// against ballots and returns the detail regardless of outcome, along with
// whether all three passed.
func checkQuorum(q Quorum, ballots map[string]Ballot) (QuorumDetail, bool) {
	total := q.TotalAgents
	if total <= 0 {
		total = 1
	}
	participation := float64(len(ballots)) / float64(total)

	confidenceSum := 0.0
	experts := 0
	for _, b := range ballots {
		confidenceSum += ballotConfidence(b)
		if b.isExpert() {
			experts++
		}
	}

	detail := QuorumDetail{
		Participation:   participation,
		ParticipationOK: participation >= q.MinParticipation,
		ConfidenceSum:   confidenceSum,
		ConfidenceOK:    confidenceSum >= q.MinConfidence,
		ExpertCount:     experts,
		ExpertOK:        experts >= q.MinExperts,
	}
	ok := detail.ParticipationOK && detail.ConfidenceOK && detail.ExpertOK
	return detail, ok
}

// ballotConfidence returns the confidence contributed by b toward the
// quorum's confidence-sum predicate. Algorithms without an explicit
// confidence field (quadratic, ranked_choice) contribute 1.0 per ballot.
func ballotConfidence(b Ballot) float64 {
	if b.Choice != "" {
		if b.Confidence == 0 {
			return 1.0
		}
		return b.Confidence
	}
	return 1.0
}
