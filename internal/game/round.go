package game

import (
	"errors"
	"sync"
	"time"

	"github.com/scamshield-labs/scamshield/internal/domain"
	"github.com/scamshield-labs/scamshield/internal/protocol"
)

// State is the dialogue state machine phase for a round.
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingFirstTurn State = "awaiting_first_turn"
	StateActive            State = "active"
	StateTerminal          State = "terminal"
)

var (
	// ErrAlreadyBootstrapped is returned when the bootstrap latch has fired.
	// The latch guards against repeated readiness events; it resets only on
	// session replacement.
	ErrAlreadyBootstrapped = errors.New("round already bootstrapped")
	// ErrGenerationInFlight is returned when a submission arrives while a
	// generator turn is being produced. Submissions are rejected, not queued.
	ErrGenerationInFlight = errors.New("generation in flight")
	// ErrRoundOver is returned for any turn submitted after the terminal
	// transition.
	ErrRoundOver = errors.New("round is over")
	// ErrNotActive is returned for user turns outside the Active state.
	ErrNotActive = errors.New("round not active")
	// ErrTurnCapReached is returned when the generator overproduces past the
	// hard cap; the overflow turn is dropped at the consumption boundary.
	ErrTurnCapReached = errors.New("generator turn cap reached")
	// ErrNoGeneration is returned when a completion arrives without a
	// matching BeginGeneration.
	ErrNoGeneration = errors.New("no generation in flight")
)

// Round is one session's conversation, scoring, and risk state. All methods
// are safe for concurrent use; from the caller's perspective the round
// behaves as a single-threaded cooperative scheduler with at most one
// outstanding generator request.
type Round struct {
	mu sync.Mutex

	sessionID  string
	userID     string
	tabID      string
	difficulty domain.Difficulty
	profile    Profile

	state        State
	bootstrapped bool
	generating   bool
	endedByUser  bool

	turns   []*domain.Turn
	nextSeq int

	score *Scoreboard
	risk  RiskPolicy

	createdAt time.Time
	touchedAt time.Time
}

// NewRound creates a fresh Idle round bound to the given session identity.
func NewRound(sessionID, userID, tabID string, d domain.Difficulty, risk RiskPolicy) *Round {
	now := time.Now()
	return &Round{
		sessionID:  sessionID,
		userID:     userID,
		tabID:      tabID,
		difficulty: d,
		profile:    ResolveProfile(d),
		state:      StateIdle,
		nextSeq:    1,
		score:      NewScoreboard(),
		risk:       risk,
		createdAt:  now,
		touchedAt:  now,
	}
}

// RestoreRound rebuilds a round from persisted session and turn state so a
// reconnecting client resumes the same conversation.
func RestoreRound(sess *domain.Session, turns []*domain.Turn, risk RiskPolicy) *Round {
	r := NewRound(sess.SessionID, sess.UserID, sess.TabID, sess.Difficulty, risk)
	r.createdAt = sess.CreatedAt

	maxSeq := 0
	generatorTurns := 0
	for _, t := range turns {
		r.turns = append(r.turns, t)
		if t.Seq > maxSeq {
			maxSeq = t.Seq
		}
		if t.Role == domain.RoleGenerator {
			generatorTurns++
		}
		if t.IsBootstrap() {
			r.bootstrapped = true
		}
	}
	r.nextSeq = maxSeq + 1

	r.score.Restore(sess.Aggregates)
	r.risk.Restore(sess.Aggregates.Risk, r.riskView())

	switch {
	case sess.Terminal || generatorTurns >= HardTurnCap:
		r.state = StateTerminal
	case generatorTurns > 0:
		r.state = StateActive
	case r.bootstrapped:
		r.state = StateAwaitingFirstTurn
	default:
		r.state = StateIdle
	}
	return r
}

// SessionID returns the round's session identifier.
func (r *Round) SessionID() string { return r.sessionID }

// Difficulty returns the round's difficulty level.
func (r *Round) Difficulty() domain.Difficulty { return r.difficulty }

// Profile returns the round's generation profile.
func (r *Round) Profile() Profile { return r.profile }

// State returns the current state machine phase.
func (r *Round) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// TouchedAt returns the time of the last state-changing operation, used by
// the TTL sweeper.
func (r *Round) TouchedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touchedAt
}

// Bootstrap fires the Idle → AwaitingFirstTurn transition and returns the
// sentinel turn that carries the difficulty to the generator. It fires at
// most once per session identifier, no matter how often transport readiness
// repeats; the latch resets only when the session is replaced.
func (r *Round) Bootstrap() (*domain.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateTerminal {
		return nil, ErrRoundOver
	}
	if r.bootstrapped {
		return nil, ErrAlreadyBootstrapped
	}

	sentinel := &domain.Turn{
		Seq:       r.nextSeq,
		Role:      domain.RoleUser,
		RawText:   domain.BootstrapPrefix + string(r.difficulty),
		CreatedAt: time.Now(),
	}
	r.nextSeq++
	r.turns = append(r.turns, sentinel)
	r.bootstrapped = true
	r.state = StateAwaitingFirstTurn
	r.touchedAt = time.Now()
	return sentinel, nil
}

// BeginUserTurn appends a user turn and reserves the generator slot for the
// reply. A submission while a generator turn is in flight is rejected, not
// queued; the caller disables input for that window.
func (r *Round) BeginUserTurn(text string) (*domain.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateTerminal {
		return nil, ErrRoundOver
	}
	if r.state != StateActive {
		return nil, ErrNotActive
	}
	if r.generating {
		return nil, ErrGenerationInFlight
	}
	if r.generatorTurnsLocked() >= HardTurnCap {
		return nil, ErrTurnCapReached
	}

	turn := &domain.Turn{
		Seq:         r.nextSeq,
		Role:        domain.RoleUser,
		RawText:     text,
		DisplayText: text,
		CreatedAt:   time.Now(),
	}
	r.nextSeq++
	r.turns = append(r.turns, turn)
	r.generating = true
	r.touchedAt = time.Now()
	return turn, nil
}

// BeginGeneration reserves the generator slot without a user turn. It is the
// path for the first turn, which follows the bootstrap sentinel.
func (r *Round) BeginGeneration() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateTerminal {
		return ErrRoundOver
	}
	if r.state == StateIdle {
		return ErrNotActive
	}
	if r.generating {
		return ErrGenerationInFlight
	}
	if r.generatorTurnsLocked() >= HardTurnCap {
		return ErrTurnCapReached
	}
	r.generating = true
	r.touchedAt = time.Now()
	return nil
}

// CompleteGeneration decodes the accumulated generator output and commits it
// as the next turn. The ground-truth tactic set is fixed here and never
// mutated afterwards; labels outside the vocabulary are dropped. Reaching the
// hard cap transitions the round to Terminal.
func (r *Round) CompleteGeneration(raw string) (*domain.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.generating {
		return nil, ErrNoGeneration
	}
	r.generating = false

	// Ending a round does not cancel an in-flight generation at the
	// transport level; the result is simply ignored here.
	if r.state == StateTerminal {
		return nil, ErrRoundOver
	}

	// Defensive net: the cap is enforced before generation starts, but a
	// generator that overproduces is still dropped here, invisibly.
	if r.generatorTurnsLocked() >= HardTurnCap {
		r.state = StateTerminal
		return nil, ErrTurnCapReached
	}

	msg := protocol.Decode(raw)
	prevMissed := false
	if prev := r.lastGeneratorTurnLocked(); prev != nil && prev.Outcome == domain.FlagOutcomeNone {
		prevMissed = true
	}

	turn := &domain.Turn{
		Seq:         r.nextSeq,
		Role:        domain.RoleGenerator,
		RawText:     raw,
		DisplayText: msg.Body,
		Tactics:     domain.FilterKnown(msg.Tactics),
		CreatedAt:   time.Now(),
	}
	r.nextSeq++
	r.turns = append(r.turns, turn)

	r.risk.TurnCommitted(prevMissed, r.riskView())

	if r.state == StateAwaitingFirstTurn {
		r.state = StateActive
	}
	if r.generatorTurnsLocked() >= HardTurnCap {
		r.state = StateTerminal
	}
	r.touchedAt = time.Now()
	return turn, nil
}

// FailGeneration releases the generator slot after a transport or generation
// failure. A failed turn leaves turn count and aggregates untouched.
func (r *Round) FailGeneration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generating = false
	r.touchedAt = time.Now()
}

// SubmitFlag evaluates a flag submission against the ground truth of the
// generator turn with the given sequence number. A seq that does not refer
// to a generator turn is a no-op reported as applied=false, never an error.
// The claimed set must be non-empty; callers block empty submissions.
func (r *Round) SubmitFlag(seq int, claimed []domain.Tactic) (FlagResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *domain.Turn
	for _, t := range r.turns {
		if t.Seq == seq && t.Role == domain.RoleGenerator {
			target = t
			break
		}
	}
	if target == nil {
		return FlagResult{}, false
	}

	result := r.score.SubmitFlag(claimed, target.Tactics)
	target.Outcome = result.Outcome
	target.Feedback = result.Feedback

	if result.Outcome == domain.FlagOutcomeCorrect {
		r.risk.FlagScored(r.riskView())
	}
	r.touchedAt = time.Now()
	return result, true
}

// End terminates the round on the user's request and returns the summary.
// Ending an already terminal round just recomputes the summary.
func (r *Round) End() *domain.RoundSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateTerminal {
		r.endedByUser = true
		r.state = StateTerminal
	}
	r.touchedAt = time.Now()
	return r.summaryLocked()
}

// Summary computes the round summary without changing state.
func (r *Round) Summary() *domain.RoundSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

// Aggregates returns the live aggregate view pushed to the presentation
// collaborator on every change.
func (r *Round) Aggregates() domain.Aggregates {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aggregatesLocked()
}

// VisibleTurns returns copies of the turns suitable for display: the
// bootstrap sentinel is filtered out and generator turns carry their decoded
// text, ground truth, and flag outcome.
func (r *Round) VisibleTurns() []domain.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Turn, 0, len(r.turns))
	for _, t := range r.turns {
		if t.IsBootstrap() {
			continue
		}
		out = append(out, *t)
	}
	return out
}

// PromptHistory returns copies of all turns, sentinel included, in order.
// This is the history handed to the dialogue generator.
func (r *Round) PromptHistory() []domain.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Turn, 0, len(r.turns))
	for _, t := range r.turns {
		out = append(out, *t)
	}
	return out
}

// GeneratorTurnCount returns the number of committed generator turns.
func (r *Round) GeneratorTurnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generatorTurnsLocked()
}

// Snapshot renders the round as a persistable session record.
func (r *Round) Snapshot() *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &domain.Session{
		SessionID:  r.sessionID,
		UserID:     r.userID,
		TabID:      r.tabID,
		Difficulty: r.difficulty,
		TurnCount:  r.generatorTurnsLocked(),
		Terminal:   r.state == StateTerminal,
		Aggregates: r.aggregatesLocked(),
		CreatedAt:  r.createdAt,
		UpdatedAt:  r.touchedAt,
	}
}

func (r *Round) aggregatesLocked() domain.Aggregates {
	return domain.Aggregates{
		Score:          r.score.Score(),
		Streak:         r.score.Streak(),
		BestStreak:     r.score.BestStreak(),
		FlagsSubmitted: r.score.FlagsSubmitted(),
		FlagsCorrect:   r.score.FlagsCorrect(),
		Accuracy:       r.score.Accuracy(),
		Risk:           r.risk.Risk(),
		Flagged:        r.score.FlaggedTactics(),
	}
}

func (r *Round) summaryLocked() *domain.RoundSummary {
	flagged := r.score.FlaggedTactics()

	// Missed = union of all ground truth ever presented, minus the flagged
	// set. The two sets are disjoint by construction.
	seen := make(map[domain.Tactic]bool)
	for _, t := range r.turns {
		if t.Role != domain.RoleGenerator {
			continue
		}
		for _, g := range t.Tactics {
			seen[g] = true
		}
	}
	var missed []domain.Tactic
	for _, t := range domain.Vocabulary() {
		if seen[t] && !r.score.HasFlagged(t) {
			missed = append(missed, t)
		}
	}

	return &domain.RoundSummary{
		SessionID:      r.sessionID,
		Difficulty:     r.difficulty,
		Score:          r.score.Score(),
		Accuracy:       r.score.SummaryAccuracy(),
		BestStreak:     r.score.BestStreak(),
		GeneratorTurns: r.generatorTurnsLocked(),
		Flagged:        flagged,
		Missed:         missed,
	}
}

func (r *Round) riskView() RiskView {
	view := RiskView{}
	for _, t := range r.turns {
		if t.Role != domain.RoleGenerator {
			continue
		}
		view.GeneratorTurns++
		if t.Outcome == domain.FlagOutcomeCorrect {
			view.FlaggedTurns++
		}
	}
	return view
}

func (r *Round) generatorTurnsLocked() int {
	n := 0
	for _, t := range r.turns {
		if t.Role == domain.RoleGenerator {
			n++
		}
	}
	return n
}

func (r *Round) lastGeneratorTurnLocked() *domain.Turn {
	for i := len(r.turns) - 1; i >= 0; i-- {
		if r.turns[i].Role == domain.RoleGenerator {
			return r.turns[i]
		}
	}
	return nil
}
