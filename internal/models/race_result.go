package models

// RaceResult is one participant's reported outcome
type RaceResult struct {
	FinishTimeMs   uint64          `json:"finish_time_ms"`  // lower is better
	CoinsCollected uint64          `json:"coins_collected"` // tie-break, higher is better
	InputHash      InputCommitment `json:"input_hash"`
}

// Beats reports whether r wins against other when r belongs to participant one.
// Strictly lower finish time wins; equal times fall back to coins, and an exact
// tie goes to participant one.
func (r RaceResult) Beats(other RaceResult) bool {
	if r.FinishTimeMs != other.FinishTimeMs {
		return r.FinishTimeMs < other.FinishTimeMs
	}
	return r.CoinsCollected >= other.CoinsCollected
}
