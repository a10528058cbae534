package domain

// RoundSummary is handed to the presentation collaborator when a round ends,
// either because the turn cap was reached or the user ended it.
type RoundSummary struct {
	SessionID      string     `json:"session_id"`
	Difficulty     Difficulty `json:"difficulty"`
	Score          int        `json:"score"`
	Accuracy       int        `json:"accuracy"`
	BestStreak     int        `json:"best_streak"`
	GeneratorTurns int        `json:"generator_turns"`
	Flagged        []Tactic   `json:"flagged_tactics"`
	Missed         []Tactic   `json:"missed_tactics"`
}
