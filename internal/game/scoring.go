package game

import (
	"fmt"
	"strings"

	"github.com/scamshield-labs/scamshield/internal/domain"
)

// pointsPerLabel is the score awarded for each correctly claimed label.
const pointsPerLabel = 100

// FlagResult is the outcome of a single flag submission.
type FlagResult struct {
	Outcome  domain.FlagOutcome `json:"outcome"`
	Matched  []domain.Tactic    `json:"matched,omitempty"`
	Feedback string             `json:"feedback"`
}

// Scoreboard owns all aggregate scoring state for one session. Fields are
// reset wholesale on restart; nothing outside this type mutates them.
type Scoreboard struct {
	score          int
	streak         int
	bestStreak     int
	flagsSubmitted int
	flagsCorrect   int
	flagged        map[domain.Tactic]bool
}

// NewScoreboard returns a zeroed scoreboard.
func NewScoreboard() *Scoreboard {
	return &Scoreboard{flagged: make(map[domain.Tactic]bool)}
}

// SubmitFlag applies one flag submission against a turn's ground truth and
// returns the outcome with its feedback text. Credit is counted per label,
// not per submission.
//
// Re-submission on an already flagged turn deliberately re-applies the same
// accounting, so a re-flag can raise totals and flip the displayed outcome.
// This method is the single choke point for that policy: making flags
// idempotent or rejected means changing only this function.
func (s *Scoreboard) SubmitFlag(claimed, groundTruth []domain.Tactic) FlagResult {
	var matched []domain.Tactic
	for _, c := range claimed {
		for _, g := range groundTruth {
			if c == g {
				matched = append(matched, c)
				break
			}
		}
	}

	s.flagsSubmitted += len(claimed)
	s.flagsCorrect += len(matched)

	if len(matched) == 0 {
		s.streak = 0
		return FlagResult{
			Outcome:  domain.FlagOutcomeIncorrect,
			Feedback: fmt.Sprintf("✗ Not quite. The tactics here were: %s", joinTactics(groundTruth)),
		}
	}

	s.score += len(matched) * pointsPerLabel
	s.streak++
	if s.streak > s.bestStreak {
		s.bestStreak = s.streak
	}
	for _, m := range matched {
		s.flagged[m] = true
	}

	return FlagResult{
		Outcome:  domain.FlagOutcomeCorrect,
		Matched:  matched,
		Feedback: fmt.Sprintf("✓ Correct! You identified: %s", joinTactics(matched)),
	}
}

// Score returns the current score.
func (s *Scoreboard) Score() int { return s.score }

// Streak returns the current streak.
func (s *Scoreboard) Streak() int { return s.streak }

// BestStreak returns the highest streak reached this round.
func (s *Scoreboard) BestStreak() int { return s.bestStreak }

// FlagsSubmitted returns the number of labels claimed across all submissions.
func (s *Scoreboard) FlagsSubmitted() int { return s.flagsSubmitted }

// FlagsCorrect returns the number of correctly claimed labels.
func (s *Scoreboard) FlagsCorrect() int { return s.flagsCorrect }

// Accuracy returns the live accuracy percentage. With no flags submitted yet
// it reports 100: absence of error counts as full marks in the in-round view.
// The end-of-round summary uses SummaryAccuracy instead.
func (s *Scoreboard) Accuracy() int {
	if s.flagsSubmitted == 0 {
		return 100
	}
	return roundPercent(s.flagsCorrect, s.flagsSubmitted)
}

// SummaryAccuracy returns the accuracy for the round summary, where no flags
// at all reads as 0.
func (s *Scoreboard) SummaryAccuracy() int {
	if s.flagsSubmitted == 0 {
		return 0
	}
	return roundPercent(s.flagsCorrect, s.flagsSubmitted)
}

// FlaggedTactics returns the tactics ever correctly flagged, in vocabulary
// order.
func (s *Scoreboard) FlaggedTactics() []domain.Tactic {
	var out []domain.Tactic
	for _, t := range domain.Vocabulary() {
		if s.flagged[t] {
			out = append(out, t)
		}
	}
	return out
}

// HasFlagged reports whether t was ever correctly flagged.
func (s *Scoreboard) HasFlagged(t domain.Tactic) bool {
	return s.flagged[t]
}

// Restore seeds the scoreboard from persisted aggregates when a round is
// rehydrated from the store.
func (s *Scoreboard) Restore(agg domain.Aggregates) {
	s.score = agg.Score
	s.streak = agg.Streak
	s.bestStreak = agg.BestStreak
	s.flagsSubmitted = agg.FlagsSubmitted
	s.flagsCorrect = agg.FlagsCorrect
	s.flagged = make(map[domain.Tactic]bool, len(agg.Flagged))
	for _, t := range agg.Flagged {
		s.flagged[t] = true
	}
}

func roundPercent(part, whole int) int {
	return int(float64(part)/float64(whole)*100 + 0.5)
}

func joinTactics(tactics []domain.Tactic) string {
	parts := make([]string, len(tactics))
	for i, t := range tactics {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
