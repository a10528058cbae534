package domain

import (
	"time"
)

// Difficulty selects the generation profile for a session.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps a raw value onto the enumeration. Unknown or missing
// input resolves to medium; it is an explicit default, not an error.
func ParseDifficulty(raw string) Difficulty {
	switch Difficulty(raw) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(raw)
	default:
		return DifficultyMedium
	}
}

// Aggregates is the session-scoped scoring state. All fields reset together
// on restart; a partial reset is an invariant violation.
type Aggregates struct {
	Score          int      `json:"score"`
	Streak         int      `json:"streak"`
	BestStreak     int      `json:"best_streak"`
	FlagsSubmitted int      `json:"flags_submitted"`
	FlagsCorrect   int      `json:"flags_correct"`
	Accuracy       int      `json:"accuracy"`
	Risk           int      `json:"risk"`
	Flagged        []Tactic `json:"flagged_tactics"`
}

// Session records one round's identity and persisted state. A session owns
// exactly one ordered conversation; a restart issues a wholly new session
// rather than mutating the old one.
type Session struct {
	SessionID  string     `json:"session_id"`
	UserID     string     `json:"user_id"`
	TabID      string     `json:"tab_id"`
	Difficulty Difficulty `json:"difficulty"`
	TurnCount  int        `json:"turn_count"`
	Terminal   bool       `json:"terminal"`
	Aggregates Aggregates `json:"aggregates"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// OwnerKey identifies the browser context a session belongs to. The current
// session id is resolved through this key so a dropped-and-restored transport
// resumes the same conversation instead of starting a duplicate.
func (s *Session) OwnerKey() string {
	return s.UserID + ":" + s.TabID
}
