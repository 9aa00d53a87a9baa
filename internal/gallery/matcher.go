package gallery

// Candidate is one gallery record returned by a top-k search, with the label
// of its record resolved.
type Candidate struct {
	ID            int64   `json:"id"`
	IdentityLabel string  `json:"identity_label"`
	Similarity    float64 `json:"similarity"`
}

// MatchResult is the identity decision for one query embedding. When no
// candidate clears the threshold Matched is false and IdentityLabel is
// empty, but the best similarity and candidate id are still reported for
// diagnostics. CandidateID is -1 when the gallery returned no candidates at
// all.
type MatchResult struct {
	Matched       bool    `json:"matched"`
	IdentityLabel string  `json:"identity_label,omitempty"`
	Similarity    float64 `json:"similarity"`
	CandidateID   int64   `json:"candidate_id"`
}

// Matcher turns a top-k candidate list into a match decision.
type Matcher struct {
	// CosineThreshold is the minimum similarity for a match. There is no
	// universal default; ~0.45 is a common operating point for "same
	// person" with 512-dim face embeddings, tuned per deployment.
	CosineThreshold float64
}

// Decide picks the single highest-similarity candidate and applies the
// threshold. Candidates are expected sorted by similarity descending (the
// index contract), so the decision never averages or votes across multiple
// records of the same identity: the best record wins outright.
func (m Matcher) Decide(candidates []Candidate) MatchResult {
	if len(candidates) == 0 {
		return MatchResult{CandidateID: -1}
	}

	best := candidates[0]
	result := MatchResult{
		Similarity:  best.Similarity,
		CandidateID: best.ID,
	}
	if best.Similarity >= m.CosineThreshold {
		result.Matched = true
		result.IdentityLabel = best.IdentityLabel
	}
	return result
}
