package game

import (
	"reflect"
	"strings"
	"testing"

	"github.com/scamshield-labs/scamshield/internal/domain"
)

func TestSubmitFlagPartialCredit(t *testing.T) {
	t.Parallel()

	s := NewScoreboard()
	truth := []domain.Tactic{domain.TacticAuthority, domain.TacticFear}

	// One correct label plus one incorrect label: outcome is correct, credit
	// is per label.
	res := s.SubmitFlag([]domain.Tactic{domain.TacticAuthority, domain.TacticScarcity}, truth)
	if res.Outcome != domain.FlagOutcomeCorrect {
		t.Fatalf("expected correct outcome, got %q", res.Outcome)
	}
	if s.Score() != 100 {
		t.Fatalf("expected score 100, got %d", s.Score())
	}
	if s.Streak() != 1 {
		t.Fatalf("expected streak 1, got %d", s.Streak())
	}
	if s.FlagsSubmitted() != 2 || s.FlagsCorrect() != 1 {
		t.Fatalf("expected totals 2/1, got %d/%d", s.FlagsSubmitted(), s.FlagsCorrect())
	}
	if got := s.FlaggedTactics(); !reflect.DeepEqual(got, []domain.Tactic{domain.TacticAuthority}) {
		t.Fatalf("unexpected flagged set: %v", got)
	}
}

// Scenario from the reference behavior: turn 1 truth {Authority, Fear},
// flag {Authority}; turn 2 truth {Scarcity}, flag {Fear}.
func TestSubmitFlagReferenceScenario(t *testing.T) {
	t.Parallel()

	s := NewScoreboard()

	res := s.SubmitFlag([]domain.Tactic{domain.TacticAuthority}, []domain.Tactic{domain.TacticAuthority, domain.TacticFear})
	if res.Outcome != domain.FlagOutcomeCorrect || s.Score() != 100 || s.Streak() != 1 {
		t.Fatalf("turn 1: outcome=%q score=%d streak=%d", res.Outcome, s.Score(), s.Streak())
	}

	res = s.SubmitFlag([]domain.Tactic{domain.TacticFear}, []domain.Tactic{domain.TacticScarcity})
	if res.Outcome != domain.FlagOutcomeIncorrect {
		t.Fatalf("turn 2: expected incorrect outcome, got %q", res.Outcome)
	}
	if s.Score() != 100 {
		t.Fatalf("turn 2: score must stay at 100, got %d", s.Score())
	}
	if s.Streak() != 0 {
		t.Fatalf("turn 2: streak must reset to 0, got %d", s.Streak())
	}
	// Incorrect flags reveal the true label set.
	if !strings.Contains(res.Feedback, string(domain.TacticScarcity)) {
		t.Fatalf("feedback must reveal ground truth: %q", res.Feedback)
	}
	if got := s.FlaggedTactics(); !reflect.DeepEqual(got, []domain.Tactic{domain.TacticAuthority}) {
		t.Fatalf("flagged set must be unchanged: %v", got)
	}
}

func TestStreakIncrementsByOneRegardlessOfMatchCount(t *testing.T) {
	t.Parallel()

	s := NewScoreboard()
	truth := []domain.Tactic{domain.TacticFear, domain.TacticFalseUrgency, domain.TacticAuthority}

	s.SubmitFlag(truth, truth)
	if s.Streak() != 1 {
		t.Fatalf("three matched labels still increment streak by exactly 1, got %d", s.Streak())
	}
	if s.Score() != 300 {
		t.Fatalf("expected 100 per matched label, got %d", s.Score())
	}
}

func TestReFlagDoubleCounts(t *testing.T) {
	t.Parallel()

	s := NewScoreboard()
	truth := []domain.Tactic{domain.TacticFear}

	s.SubmitFlag([]domain.Tactic{domain.TacticFear}, truth)
	s.SubmitFlag([]domain.Tactic{domain.TacticFear}, truth)

	// Re-submission independently re-applies accounting (documented design
	// choice, isolated in SubmitFlag).
	if s.Score() != 200 {
		t.Fatalf("expected re-flag to double count score, got %d", s.Score())
	}
	if s.FlagsSubmitted() != 2 || s.FlagsCorrect() != 2 {
		t.Fatalf("expected totals 2/2, got %d/%d", s.FlagsSubmitted(), s.FlagsCorrect())
	}
	// The flagged set is a set: duplicates collapse.
	if got := s.FlaggedTactics(); !reflect.DeepEqual(got, []domain.Tactic{domain.TacticFear}) {
		t.Fatalf("unexpected flagged set: %v", got)
	}
}

func TestAccuracyDefaultsDiffer(t *testing.T) {
	t.Parallel()

	s := NewScoreboard()
	if s.Accuracy() != 100 {
		t.Fatalf("live accuracy with no flags must read 100, got %d", s.Accuracy())
	}
	if s.SummaryAccuracy() != 0 {
		t.Fatalf("summary accuracy with no flags must read 0, got %d", s.SummaryAccuracy())
	}

	s.SubmitFlag([]domain.Tactic{domain.TacticFear, domain.TacticScarcity}, []domain.Tactic{domain.TacticFear})
	if s.Accuracy() != 50 || s.SummaryAccuracy() != 50 {
		t.Fatalf("expected 50/50, got %d/%d", s.Accuracy(), s.SummaryAccuracy())
	}
}

func TestBestStreakSurvivesReset(t *testing.T) {
	t.Parallel()

	s := NewScoreboard()
	truth := []domain.Tactic{domain.TacticFear}

	s.SubmitFlag(truth, truth)
	s.SubmitFlag(truth, truth)
	s.SubmitFlag([]domain.Tactic{domain.TacticAuthority}, truth)

	if s.Streak() != 0 {
		t.Fatalf("streak must be 0 after a miss, got %d", s.Streak())
	}
	if s.BestStreak() != 2 {
		t.Fatalf("best streak must remember the peak, got %d", s.BestStreak())
	}
}

func TestScoreboardRestore(t *testing.T) {
	t.Parallel()

	s := NewScoreboard()
	s.Restore(domain.Aggregates{
		Score:          300,
		Streak:         1,
		BestStreak:     2,
		FlagsSubmitted: 5,
		FlagsCorrect:   3,
		Flagged:        []domain.Tactic{domain.TacticFear, domain.TacticAuthority},
	})

	if s.Score() != 300 || s.BestStreak() != 2 {
		t.Fatalf("restore lost state: score=%d best=%d", s.Score(), s.BestStreak())
	}
	if s.Accuracy() != 60 {
		t.Fatalf("expected accuracy 60, got %d", s.Accuracy())
	}
	want := []domain.Tactic{domain.TacticAuthority, domain.TacticFear}
	if got := s.FlaggedTactics(); !reflect.DeepEqual(got, want) {
		t.Fatalf("flagged set must come back in vocabulary order: %v", got)
	}
}
