package generator

import (
	"context"
	"iter"

	"github.com/scamshield-labs/scamshield/internal/domain"
	"github.com/scamshield-labs/scamshield/internal/game"
	"github.com/scamshield-labs/scamshield/internal/protocol"
)

// scriptedMessage is one canned generator turn with its ground truth.
type scriptedMessage struct {
	tactics []string
	body    string
}

// bankAlertScenario is the "Bank Account Alert" script used when no model
// backend is configured. It cycles once the script runs out; the hard cap
// bounds the round regardless.
var bankAlertScenario = []scriptedMessage{
	{
		tactics: []string{"Authority", "Fear"},
		body:    "⚠️ URGENT: This is the Security Department of National Trust Bank. We've detected unauthorized access to your account ending in **4829**.",
	},
	{
		tactics: []string{"False Urgency", "Fear"},
		body:    "Your account will be PERMANENTLY LOCKED within the next 15 minutes unless you verify your identity immediately. This is time-sensitive.",
	},
	{
		tactics: []string{"Suspicious Link", "Impersonation"},
		body:    "Please click this secure link to verify: https://national-trust-secure-verify.com/auth and enter your account credentials to prevent suspension.",
	},
	{
		tactics: []string{"Scarcity", "Reward Bait"},
		body:    "I understand your concern. Only 3 customers received this priority alert today. As a valued customer, we're offering a $50 security credit once verified.",
	},
	{
		tactics: []string{"Fear", "False Urgency", "Authority"},
		body:    "If you don't respond within the next 5 minutes, we'll have to report this as a compromised account to the federal authorities. Please act now.",
	},
}

// chunkSize splits scripted output so the codec's partial-prefix path gets
// exercised the same way a token stream would. The unit is runes: a chunk
// boundary must never cut a UTF-8 sequence in half.
const chunkSize = 16

// Scripted is the offline dialogue generator backend.
type Scripted struct {
	scenario []scriptedMessage
}

// NewScripted returns the bank-alert scripted backend.
func NewScripted() *Scripted {
	return &Scripted{scenario: bankAlertScenario}
}

// Stream emits the next scripted message in wire format, chunk by chunk. The
// message is picked by counting prior generator turns in the history.
func (s *Scripted) Stream(ctx context.Context, history []domain.Turn, _ game.Profile) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		index := 0
		for i := range history {
			if history[i].Role == domain.RoleGenerator {
				index++
			}
		}
		msg := s.scenario[index%len(s.scenario)]
		raw := []rune(protocol.Encode(msg.tactics, msg.body))

		for start := 0; start < len(raw); start += chunkSize {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			end := start + chunkSize
			if end > len(raw) {
				end = len(raw)
			}
			if !yield(string(raw[start:end]), nil) {
				return
			}
		}
	}
}
