package domain

import (
	"strings"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleGenerator Role = "generator"
	RoleUser      Role = "user"
)

// FlagOutcome is the mutable verdict attached to a generator turn after a
// flag submission. It is the only mutable field on a committed turn.
type FlagOutcome string

const (
	FlagOutcomeNone      FlagOutcome = ""
	FlagOutcomeCorrect   FlagOutcome = "correct"
	FlagOutcomeIncorrect FlagOutcome = "incorrect"
)

// BootstrapPrefix marks the sentinel first user turn that carries the chosen
// difficulty to the generator. Sentinel turns are filtered from every
// user-facing history view.
const BootstrapPrefix = "__GAME_START__:"

// Turn is one message in a session's ordered conversation. Everything except
// Outcome and Feedback is fixed at creation.
type Turn struct {
	Seq         int         `json:"seq"`
	Role        Role        `json:"role"`
	RawText     string      `json:"-"`
	DisplayText string      `json:"display_text"`
	Tactics     []Tactic    `json:"tactics,omitempty"`
	Outcome     FlagOutcome `json:"flag_outcome,omitempty"`
	Feedback    string      `json:"feedback,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsBootstrap reports whether the turn is the hidden game-start sentinel.
func (t *Turn) IsBootstrap() bool {
	return t.Role == RoleUser && strings.HasPrefix(t.RawText, BootstrapPrefix)
}

// HasTactic reports whether the turn's ground truth contains tac.
func (t *Turn) HasTactic(tac Tactic) bool {
	for _, g := range t.Tactics {
		if g == tac {
			return true
		}
	}
	return false
}
