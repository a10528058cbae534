// Package game implements the adaptive dialogue state machine, scoring
// engine, and risk estimator for one training round.
package game

import (
	"github.com/scamshield-labs/scamshield/internal/domain"
)

// HardTurnCap is the maximum number of generator turns per session. It is a
// single global safety ceiling against runaway generation, not a
// per-difficulty tunable.
const HardTurnCap = 20

// Profile is the generation guidance resolved from a difficulty level. The
// hints are consumed by the dialogue generator; the cap is enforced by the
// state machine.
type Profile struct {
	Difficulty        domain.Difficulty
	TacticDensityHint string
	ToneHint          string
	TurnCap           int
}

// ResolveProfile maps a difficulty to its generation profile. Unknown input
// resolves to medium.
func ResolveProfile(d domain.Difficulty) Profile {
	switch d {
	case domain.DifficultyEasy:
		return Profile{
			Difficulty:        domain.DifficultyEasy,
			TacticDensityHint: "1 tactic per message",
			ToneHint:          "polite, patient, non-threatening",
			TurnCap:           HardTurnCap,
		}
	case domain.DifficultyHard:
		return Profile{
			Difficulty:        domain.DifficultyHard,
			TacticDensityHint: "3-4 layered tactics per message",
			ToneHint:          "relentless, fast-paced, extreme urgency",
			TurnCap:           HardTurnCap,
		}
	default:
		return Profile{
			Difficulty:        domain.DifficultyMedium,
			TacticDensityHint: "2-3 tactics per message",
			ToneHint:          "conversational, moderately urgent",
			TurnCap:           HardTurnCap,
		}
	}
}
