// Package domain contains core domain types for the ScamShield engine.
package domain

// Tactic is a labeled manipulation technique from the closed vocabulary
// shared between the generator contract and the user-facing flag menu.
type Tactic string

const (
	TacticAuthority      Tactic = "Authority"
	TacticFalseUrgency   Tactic = "False Urgency"
	TacticFear           Tactic = "Fear"
	TacticSuspiciousLink Tactic = "Suspicious Link"
	TacticImpersonation  Tactic = "Impersonation"
	TacticScarcity       Tactic = "Scarcity"
	TacticRewardBait     Tactic = "Reward Bait"
)

// Vocabulary returns the closed tactic set in its canonical order.
func Vocabulary() []Tactic {
	return []Tactic{
		TacticAuthority,
		TacticFalseUrgency,
		TacticFear,
		TacticSuspiciousLink,
		TacticImpersonation,
		TacticScarcity,
		TacticRewardBait,
	}
}

// KnownTactic reports whether t belongs to the vocabulary. Labels outside
// the vocabulary are ignored by scoring rather than rejected.
func KnownTactic(t Tactic) bool {
	for _, v := range Vocabulary() {
		if v == t {
			return true
		}
	}
	return false
}

// FilterKnown returns the known subset of labels, preserving order and
// dropping duplicates.
func FilterKnown(labels []string) []Tactic {
	seen := make(map[Tactic]bool, len(labels))
	var out []Tactic
	for _, l := range labels {
		t := Tactic(l)
		if !KnownTactic(t) || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
