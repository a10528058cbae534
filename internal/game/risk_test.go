package game

import (
	"testing"
)

func TestIncrementPolicySteps(t *testing.T) {
	t.Parallel()

	p := NewRiskPolicy(RiskPolicyIncrement)
	if p.Risk() != 0 {
		t.Fatalf("risk must start at 0, got %d", p.Risk())
	}

	// First turn has no previous turn to miss.
	p.TurnCommitted(false, RiskView{GeneratorTurns: 1})
	if p.Risk() != 0 {
		t.Fatalf("first turn must not raise risk, got %d", p.Risk())
	}

	p.TurnCommitted(true, RiskView{GeneratorTurns: 2})
	if p.Risk() != 15 {
		t.Fatalf("missed turn must raise risk by 15, got %d", p.Risk())
	}

	p.FlagScored(RiskView{GeneratorTurns: 2, FlaggedTurns: 1})
	if p.Risk() != 5 {
		t.Fatalf("correct flag must lower risk by 10, got %d", p.Risk())
	}

	// Floor at 0.
	p.FlagScored(RiskView{GeneratorTurns: 2, FlaggedTurns: 2})
	if p.Risk() != 0 {
		t.Fatalf("risk must floor at 0, got %d", p.Risk())
	}

	// Cap at 100.
	for i := 0; i < 10; i++ {
		p.TurnCommitted(true, RiskView{GeneratorTurns: 3 + i})
	}
	if p.Risk() != 100 {
		t.Fatalf("risk must cap at 100, got %d", p.Risk())
	}
}

func TestRatioPolicy(t *testing.T) {
	t.Parallel()

	p := NewRiskPolicy(RiskPolicyRatio)
	if p.Risk() != 0 {
		t.Fatalf("zero generator turns must read risk 0, got %d", p.Risk())
	}

	p.TurnCommitted(false, RiskView{GeneratorTurns: 1})
	if p.Risk() != 100 {
		t.Fatalf("one unflagged turn is 100%% unflagged, got %d", p.Risk())
	}

	p.TurnCommitted(true, RiskView{GeneratorTurns: 2})
	if p.Risk() != 100 {
		t.Fatalf("two unflagged turns, got %d", p.Risk())
	}

	p.FlagScored(RiskView{GeneratorTurns: 2, FlaggedTurns: 1})
	if p.Risk() != 50 {
		t.Fatalf("1 of 2 flagged must read 50, got %d", p.Risk())
	}

	p.TurnCommitted(false, RiskView{GeneratorTurns: 3, FlaggedTurns: 1})
	if p.Risk() != 67 {
		t.Fatalf("2 of 3 unflagged rounds to 67, got %d", p.Risk())
	}
}

// The public contract only requires [0,100], monotonic sensitivity to flags,
// and 0 at zero turns, for both policies.
func TestPoliciesStayInBounds(t *testing.T) {
	t.Parallel()

	for _, name := range []string{RiskPolicyIncrement, RiskPolicyRatio} {
		p := NewRiskPolicy(name)
		view := RiskView{}
		for i := 0; i < 40; i++ {
			view.GeneratorTurns++
			p.TurnCommitted(i%2 == 0, view)
			before := p.Risk()
			if i%3 == 0 {
				view.FlaggedTurns++
				p.FlagScored(view)
				if p.Risk() > before {
					t.Fatalf("%s: correct flag must not raise risk (%d -> %d)", name, before, p.Risk())
				}
			}
			if p.Risk() < 0 || p.Risk() > 100 {
				t.Fatalf("%s: risk out of bounds: %d", name, p.Risk())
			}
		}
	}
}

func TestUnknownPolicyNameFallsBackToIncrement(t *testing.T) {
	t.Parallel()

	p := NewRiskPolicy("bogus")
	if p.Name() != RiskPolicyIncrement {
		t.Fatalf("expected increment fallback, got %q", p.Name())
	}
}
