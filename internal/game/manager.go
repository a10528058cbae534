package game

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scamshield-labs/scamshield/internal/domain"
)

// Manager owns the live rounds, keyed by session id and by owner. Replacing
// a session atomically severs the old round: its id no longer resolves, so
// stale generator output arriving afterwards is discarded by id.
type Manager struct {
	mu      sync.RWMutex
	rounds  map[string]*Round // sessionID -> round
	byOwner map[string]string // ownerKey -> sessionID
	policy  string
}

// NewManager creates a round manager using the named risk policy for every
// round it creates.
func NewManager(riskPolicy string) *Manager {
	return &Manager{
		rounds:  make(map[string]*Round),
		byOwner: make(map[string]string),
		policy:  riskPolicy,
	}
}

// Create issues a fresh session id for the owner and replaces any existing
// round. Create and reset are the same operation: a restart never reuses or
// mutates the old identifier.
func (m *Manager) Create(userID, tabID string, d domain.Difficulty) *Round {
	sessionID := uuid.NewString()
	round := NewRound(sessionID, userID, tabID, d, NewRiskPolicy(m.policy))

	owner := userID + ":" + tabID
	m.mu.Lock()
	if oldID, ok := m.byOwner[owner]; ok {
		delete(m.rounds, oldID)
		slog.Info("Session replaced", "user_id", userID, "tab_id", tabID, "old_session_id", oldID, "session_id", sessionID)
	}
	m.byOwner[owner] = sessionID
	m.rounds[sessionID] = round
	m.mu.Unlock()

	return round
}

// Adopt registers a restored round for its owner, unless the owner already
// has a live round (the live one wins).
func (m *Manager) Adopt(round *Round) *Round {
	owner := round.userID + ":" + round.tabID
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byOwner[owner]; ok {
		if existing, live := m.rounds[existingID]; live {
			return existing
		}
	}
	m.byOwner[owner] = round.sessionID
	m.rounds[round.sessionID] = round
	return round
}

// Get resolves a round by session id.
func (m *Manager) Get(sessionID string) (*Round, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rounds[sessionID]
	return r, ok
}

// Current resolves the owner's active round.
func (m *Manager) Current(userID, tabID string) (*Round, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byOwner[userID+":"+tabID]
	if !ok {
		return nil, false
	}
	r, ok := m.rounds[id]
	return r, ok
}

// IsLive reports whether the given round is still the registered one for its
// session id. Completion paths check this before committing generator output
// so a restart mid-stream discards the stale result.
func (m *Manager) IsLive(round *Round) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rounds[round.sessionID] == round
}

// Sweep evicts rounds idle longer than maxIdle and returns how many were
// removed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, round := range m.rounds {
		if round.TouchedAt().After(cutoff) {
			continue
		}
		delete(m.rounds, id)
		owner := round.userID + ":" + round.tabID
		if m.byOwner[owner] == id {
			delete(m.byOwner, owner)
		}
		removed++
	}
	return removed
}
