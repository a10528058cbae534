package game

// Risk policy names accepted in configuration.
const (
	RiskPolicyIncrement = "increment"
	RiskPolicyRatio     = "ratio"

	riskStepUp   = 15
	riskStepDown = 10
)

// RiskView is the flag state a policy derives risk from.
type RiskView struct {
	GeneratorTurns int // committed generator turns
	FlaggedTurns   int // generator turns carrying a correct flag
}

// RiskPolicy derives the [0,100] risk metric from the turn history and flag
// state. Two divergent formulas exist across deployments of this system;
// exactly one is active per deployment and the choice is configuration, not
// a merge of both.
type RiskPolicy interface {
	Name() string
	// TurnCommitted is invoked after each generator turn commits. prevMissed
	// reports that the previous generator turn finished without any flag.
	TurnCommitted(prevMissed bool, view RiskView)
	// FlagScored is invoked after each correct flag submission.
	FlagScored(view RiskView)
	Risk() int
	// Restore seeds the policy from a persisted risk value.
	Restore(risk int, view RiskView)
	Reset()
}

// NewRiskPolicy returns the policy for the configured name. Unknown names
// fall back to the increment policy, which matches the reference behavior.
func NewRiskPolicy(name string) RiskPolicy {
	if name == RiskPolicyRatio {
		return &ratioPolicy{}
	}
	return &incrementPolicy{}
}

// incrementPolicy raises risk by a fixed step each time a generator turn
// lands while the previous one went unflagged, and lowers it on each correct
// flag. Clamped to [0,100] at every step.
type incrementPolicy struct {
	risk int
}

func (p *incrementPolicy) Name() string { return RiskPolicyIncrement }

func (p *incrementPolicy) TurnCommitted(prevMissed bool, _ RiskView) {
	if !prevMissed {
		return
	}
	p.risk += riskStepUp
	if p.risk > 100 {
		p.risk = 100
	}
}

func (p *incrementPolicy) FlagScored(_ RiskView) {
	p.risk -= riskStepDown
	if p.risk < 0 {
		p.risk = 0
	}
}

func (p *incrementPolicy) Risk() int { return p.risk }

func (p *incrementPolicy) Restore(risk int, _ RiskView) {
	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}
	p.risk = risk
}

func (p *incrementPolicy) Reset() { p.risk = 0 }

// ratioPolicy reports the share of generator turns that never received a
// correct flag. Zero turns reads as zero risk.
type ratioPolicy struct {
	risk int
}

func (p *ratioPolicy) Name() string { return RiskPolicyRatio }

func (p *ratioPolicy) TurnCommitted(_ bool, view RiskView) { p.recompute(view) }

func (p *ratioPolicy) FlagScored(view RiskView) { p.recompute(view) }

func (p *ratioPolicy) recompute(view RiskView) {
	if view.GeneratorTurns == 0 {
		p.risk = 0
		return
	}
	unflagged := view.GeneratorTurns - view.FlaggedTurns
	p.risk = roundPercent(unflagged, view.GeneratorTurns)
}

func (p *ratioPolicy) Risk() int { return p.risk }

func (p *ratioPolicy) Restore(_ int, view RiskView) { p.recompute(view) }

func (p *ratioPolicy) Reset() { p.risk = 0 }
