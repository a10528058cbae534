package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/scamshield-labs/scamshield/internal/domain"
	"github.com/scamshield-labs/scamshield/internal/game"
	"github.com/scamshield-labs/scamshield/internal/identity"
	"github.com/scamshield-labs/scamshield/internal/protocol"
	"github.com/scamshield-labs/scamshield/internal/push"
	"github.com/scamshield-labs/scamshield/internal/transcript"
)

// quickResponses are suggestion chips the client renders below the input.
var quickResponses = []string{
	"Ask for verification",
	"Refuse",
	"Request official website",
}

type createSessionRequest struct {
	Difficulty string `json:"difficulty"`
}

type turnRequest struct {
	Message string `json:"message"`
}

type flagRequest struct {
	Seq     int      `json:"seq"`
	Tactics []string `json:"tactics"`
}

type stateResponse struct {
	Session        *domain.Session      `json:"session"`
	State          game.State           `json:"state"`
	Turns          []domain.Turn        `json:"turns"`
	QuickResponses []string             `json:"quick_responses"`
	TurnCap        int                  `json:"turn_cap"`
	Summary        *domain.RoundSummary `json:"summary,omitempty"`
}

// HandleCreateSession handles POST /api/game/session. Creating a session is
// also the reset path: any existing round for this user/tab is replaced and
// its id severed.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	tabID := identity.TabIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	difficulty := domain.ParseDifficulty(req.Difficulty)
	round := h.mgr.Create(userID, tabID, difficulty)

	sentinel, err := round.Bootstrap()
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	ctx := r.Context()
	if err := h.repo.UpsertSession(ctx, round.Snapshot()); err != nil {
		slog.Error("Failed to persist new session", "error", err, "session_id", round.SessionID())
		Error(w, http.StatusInternalServerError, "failed to persist session")
		return
	}
	if err := h.repo.InsertTurn(ctx, round.SessionID(), sentinel); err != nil {
		slog.Error("Failed to persist bootstrap turn", "error", err, "session_id", round.SessionID())
	}

	slog.Info("Game session created",
		"user_id", userID,
		"tab_id", tabID,
		"session_id", round.SessionID(),
		"difficulty", difficulty,
	)
	h.log.Log(transcript.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    userID,
		SessionID: round.SessionID(),
		TabID:     tabID,
		Channel:   "game_http",
		Direction: "inbound",
		EventType: "session_start",
		Meta: map[string]any{
			"difficulty": string(difficulty),
			"request_id": chiMiddleware.GetReqID(ctx),
		},
	})

	JSON(w, http.StatusCreated, stateResponse{
		Session:        round.Snapshot(),
		State:          round.State(),
		Turns:          round.VisibleTurns(),
		QuickResponses: quickResponses,
		TurnCap:        game.HardTurnCap,
	})
}

// HandleState handles GET /api/game/state. It resumes a persisted session if
// the in-memory round was lost to a restart.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	round, err := h.resolveRound(r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if round == nil {
		Error(w, http.StatusNotFound, "no active session")
		return
	}

	resp := stateResponse{
		Session:        round.Snapshot(),
		State:          round.State(),
		Turns:          round.VisibleTurns(),
		QuickResponses: quickResponses,
		TurnCap:        game.HardTurnCap,
	}
	if round.State() == game.StateTerminal {
		resp.Summary = round.Summary()
	}
	JSON(w, http.StatusOK, resp)
}

// HandleTurn handles POST /api/game/turn. An empty message requests the
// opening generator turn that follows the bootstrap sentinel and is rejected
// once that turn exists; a non-empty message is a user turn awaiting its
// reply. The response streams via SSE.
//
//nolint:gocyclo // Validation and streaming branches are kept inline to preserve request flow.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	tabID := identity.TabIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Rate-limit by userID only so clients cannot bypass throttling by
	// rotating tabs or sessions.
	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)

	round, err := h.resolveRound(r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if round == nil {
		Error(w, http.StatusNotFound, "no active session")
		return
	}

	ctx := r.Context()
	reqID := chiMiddleware.GetReqID(ctx)

	// Committed turns must survive a client disconnect: generation and
	// persistence run detached from the request context.
	commitCtx := context.WithoutCancel(ctx)

	var userTurn *domain.Turn
	if req.Message == "" {
		// The empty-message path only requests the opening turn. Retries
		// stay possible while the reply to the sentinel is outstanding.
		if round.State() != game.StateAwaitingFirstTurn {
			Error(w, http.StatusConflict, "opening turn already generated")
			return
		}
		err = round.BeginGeneration()
	} else {
		userTurn, err = round.BeginUserTurn(req.Message)
	}
	if err != nil {
		h.turnError(w, err)
		return
	}

	if userTurn != nil {
		if err := h.repo.InsertTurn(commitCtx, round.SessionID(), userTurn); err != nil {
			slog.Error("Failed to persist user turn", "error", err, "session_id", round.SessionID())
		}
		h.log.Log(transcript.Event{
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			UserID:     userID,
			SessionID:  round.SessionID(),
			TabID:      tabID,
			Channel:    "game_http",
			Direction:  "inbound",
			EventType:  "user_turn",
			ContentRaw: userTurn.RawText,
			Meta:       map[string]any{"seq": userTurn.Seq, "request_id": reqID},
		})
	}

	// Stream the generator turn via SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		round.FailGeneration()
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var raw strings.Builder
	streamChunks := 0
	clientGone := false
	for chunk, streamErr := range h.gen.Stream(commitCtx, round.PromptHistory(), round.Profile()) {
		if streamErr != nil {
			round.FailGeneration()
			slog.Error("Generator stream failed", "error", streamErr, "session_id", round.SessionID())
			if writeErr := writeSSE(w, "error", `{"error":"generation failed"}`); writeErr != nil {
				slog.Warn("failed to write SSE error event", "error", writeErr)
			}
			flusher.Flush()
			return
		}
		if chunk == "" {
			continue
		}
		streamChunks++
		raw.WriteString(chunk)
		if clientGone {
			continue
		}

		// Only the decoded body leaves the server; header fragments stay
		// hidden however the stream is sliced.
		data, err := json.Marshal(map[string]string{"body": protocol.DecodeBody(raw.String())})
		if err != nil {
			slog.Warn("failed to marshal chunk event", "error", err)
			continue
		}
		if err := writeSSE(w, "chunk", string(data)); err != nil {
			// Client went away. Keep draining so the full text accumulates;
			// the commit below must never see a truncated prefix.
			slog.Debug("SSE chunk write failed", "error", err, "session_id", round.SessionID())
			clientGone = true
			continue
		}
		flusher.Flush()
	}

	// A round replaced mid-stream discards the result entirely.
	if !h.mgr.IsLive(round) {
		slog.Info("Discarding generation for replaced session", "session_id", round.SessionID())
		if err := writeSSE(w, "error", `{"error":"session replaced"}`); err == nil {
			flusher.Flush()
		}
		return
	}

	turn, err := round.CompleteGeneration(raw.String())
	if err != nil {
		slog.Info("Generation discarded", "reason", err, "session_id", round.SessionID())
		if writeErr := writeSSE(w, "error", `{"error":"turn discarded"}`); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	if err := h.repo.InsertTurn(commitCtx, round.SessionID(), turn); err != nil {
		slog.Error("Failed to persist generator turn", "error", err, "session_id", round.SessionID())
	}
	h.persistSnapshot(commitCtx, round)

	h.log.Log(transcript.Event{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  round.SessionID(),
		TabID:      tabID,
		Channel:    "game_http",
		Direction:  "outbound",
		EventType:  "generator_turn",
		ContentRaw: turn.RawText,
		Content:    turn.DisplayText,
		Meta: map[string]any{
			"seq":           turn.Seq,
			"tactics":       turn.Tactics,
			"stream_chunks": streamChunks,
			"request_id":    reqID,
		},
	})

	aggregates := round.Aggregates()
	h.hub.Publish(userID, tabID, push.Event{Type: push.EventTurn, SessionID: round.SessionID(), Payload: turn})
	h.hub.Publish(userID, tabID, push.Event{Type: push.EventAggregates, SessionID: round.SessionID(), Payload: aggregates})

	final, err := json.Marshal(map[string]any{
		"turn":       turn,
		"aggregates": aggregates,
		"state":      round.State(),
	})
	if err != nil {
		slog.Warn("failed to marshal turn event", "error", err)
		return
	}
	if err := writeSSE(w, "turn", string(final)); err != nil {
		slog.Debug("SSE final write failed", "error", err, "session_id", round.SessionID())
		return
	}
	flusher.Flush()

	if round.State() == game.StateTerminal {
		h.publishSummary(w, flusher, userID, tabID, round)
	}
}

// HandleFlag handles POST /api/game/flag.
func (h *Handler) HandleFlag(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	tabID := identity.TabIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claimed := domain.FilterKnown(req.Tactics)
	if len(claimed) == 0 {
		Error(w, http.StatusBadRequest, "at least one known tactic is required")
		return
	}

	round, err := h.resolveRound(r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if round == nil {
		Error(w, http.StatusNotFound, "no active session")
		return
	}
	if round.State() == game.StateTerminal {
		Error(w, http.StatusConflict, "round is over")
		return
	}

	// A seq that does not name a generator turn is a no-effect result, not an
	// error; the client is responsible for not offering the action there.
	result, applied := round.SubmitFlag(req.Seq, claimed)
	if !applied {
		JSON(w, http.StatusOK, map[string]any{
			"applied":    false,
			"aggregates": round.Aggregates(),
		})
		return
	}

	// The scoreboard already moved; persistence must not be lost to a
	// disconnecting client.
	ctx := context.WithoutCancel(r.Context())
	if err := h.repo.UpdateTurnFlag(ctx, round.SessionID(), req.Seq, result.Outcome, result.Feedback); err != nil {
		slog.Error("Failed to persist flag outcome", "error", err, "session_id", round.SessionID())
	}
	h.persistSnapshot(ctx, round)

	h.log.Log(transcript.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    userID,
		SessionID: round.SessionID(),
		TabID:     tabID,
		Channel:   "game_http",
		Direction: "inbound",
		EventType: "flag_submission",
		Content:   result.Feedback,
		Meta: map[string]any{
			"seq":        req.Seq,
			"claimed":    claimed,
			"outcome":    string(result.Outcome),
			"request_id": chiMiddleware.GetReqID(ctx),
		},
	})

	aggregates := round.Aggregates()
	h.hub.Publish(userID, tabID, push.Event{Type: push.EventAggregates, SessionID: round.SessionID(), Payload: aggregates})

	JSON(w, http.StatusOK, map[string]any{
		"applied":    true,
		"result":     result,
		"aggregates": aggregates,
	})
}

// HandleEnd handles POST /api/game/end.
func (h *Handler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	tabID := identity.TabIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	round, err := h.resolveRound(r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if round == nil {
		Error(w, http.StatusNotFound, "no active session")
		return
	}

	summary := round.End()
	ctx := context.WithoutCancel(r.Context())
	h.persistSnapshot(ctx, round)

	slog.Info("Game session ended",
		"user_id", userID,
		"session_id", round.SessionID(),
		"score", summary.Score,
		"generator_turns", summary.GeneratorTurns,
	)
	h.log.Log(transcript.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    userID,
		SessionID: round.SessionID(),
		TabID:     tabID,
		Channel:   "game_http",
		Direction: "inbound",
		EventType: "session_end",
		Meta: map[string]any{
			"score":      summary.Score,
			"accuracy":   summary.Accuracy,
			"request_id": chiMiddleware.GetReqID(ctx),
		},
	})

	h.hub.Publish(userID, tabID, push.Event{Type: push.EventSummary, SessionID: round.SessionID(), Payload: summary})

	JSON(w, http.StatusOK, map[string]any{
		"summary":    summary,
		"aggregates": round.Aggregates(),
	})
}

// resolveRound finds the caller's live round, restoring it from persistence
// after a process restart. Returns (nil, nil) when the owner has no current
// session.
func (h *Handler) resolveRound(r *http.Request) (*game.Round, error) {
	userID := identity.UserIDFromContext(r.Context())
	tabID := identity.TabIDFromContext(r.Context())

	if round, ok := h.mgr.Current(userID, tabID); ok {
		return round, nil
	}

	sess, err := h.repo.GetCurrentSession(r.Context(), userID, tabID)
	if err != nil {
		return nil, fmt.Errorf("load current session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	turns, err := h.repo.ListTurns(r.Context(), sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session turns: %w", err)
	}

	restored := game.RestoreRound(sess, turns, game.NewRiskPolicy(h.cfg.RiskPolicy))
	slog.Info("Session restored from persistence", "session_id", sess.SessionID, "user_id", userID, "turns", len(turns))
	return h.mgr.Adopt(restored), nil
}

func (h *Handler) persistSnapshot(ctx context.Context, round *game.Round) {
	if err := h.repo.UpsertSession(ctx, round.Snapshot()); err != nil {
		slog.Error("Failed to persist session snapshot", "error", err, "session_id", round.SessionID())
	}
}

func (h *Handler) publishSummary(w http.ResponseWriter, flusher http.Flusher, userID, tabID string, round *game.Round) {
	summary := round.Summary()
	h.hub.Publish(userID, tabID, push.Event{Type: push.EventSummary, SessionID: round.SessionID(), Payload: summary})

	data, err := json.Marshal(summary)
	if err != nil {
		slog.Warn("failed to marshal summary event", "error", err)
		return
	}
	if err := writeSSE(w, "summary", string(data)); err == nil {
		flusher.Flush()
	}
}

func (h *Handler) turnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrGenerationInFlight):
		Error(w, http.StatusConflict, "a turn is already being generated")
	case errors.Is(err, game.ErrRoundOver), errors.Is(err, game.ErrTurnCapReached):
		Error(w, http.StatusConflict, "round is over")
	case errors.Is(err, game.ErrNotActive):
		Error(w, http.StatusConflict, "round is not active")
	default:
		Error(w, http.StatusInternalServerError, "failed to start turn")
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
