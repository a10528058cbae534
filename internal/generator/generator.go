// Package generator defines the dialogue generator collaborator: given the
// ordered turn history and a difficulty profile, it produces the next
// adversarial turn as a stream of text chunks whose accumulated text conforms
// to the tactic wire format.
package generator

import (
	"context"
	"iter"

	"github.com/scamshield-labs/scamshield/internal/domain"
	"github.com/scamshield-labs/scamshield/internal/game"
)

// Generator produces assistant turns. Implementations must keep yielding
// chunks until the turn is complete or an error occurs; the engine treats a
// yielded error as a failed turn and leaves state untouched.
type Generator interface {
	Stream(ctx context.Context, history []domain.Turn, profile game.Profile) iter.Seq2[string, error]
}

// chatRole maps an engine turn onto a chat role. The bootstrap sentinel stays
// in the history as a user turn: it is the generator's cue to open with the
// cold-call alert.
func chatRole(t *domain.Turn) string {
	if t.Role == domain.RoleGenerator {
		return "assistant"
	}
	return "user"
}
