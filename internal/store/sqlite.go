package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/scamshield-labs/scamshield/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tab_id TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		turn_count INTEGER NOT NULL DEFAULT 0,
		terminal INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		streak INTEGER NOT NULL DEFAULT 0,
		best_streak INTEGER NOT NULL DEFAULT 0,
		flags_submitted INTEGER NOT NULL DEFAULT 0,
		flags_correct INTEGER NOT NULL DEFAULT 0,
		risk INTEGER NOT NULL DEFAULT 0,
		flagged_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(user_id, tab_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		display_text TEXT NOT NULL,
		tactics_json TEXT,
		flag_outcome TEXT NOT NULL DEFAULT '',
		feedback TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sessionColumns = `session_id, user_id, tab_id, difficulty, turn_count, terminal,
	       score, streak, best_streak, flags_submitted, flags_correct, risk,
	       flagged_json, created_at, updated_at`

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

// GetCurrentSession retrieves the newest non-terminal session for an owner.
func (s *SQLiteStore) GetCurrentSession(ctx context.Context, userID, tabID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? AND tab_id = ? AND terminal = 0
		 ORDER BY created_at DESC LIMIT 1`, userID, tabID)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var sess domain.Session
	var terminal int
	var flaggedJSON sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&sess.SessionID, &sess.UserID, &sess.TabID, &sess.Difficulty,
		&sess.TurnCount, &terminal,
		&sess.Aggregates.Score, &sess.Aggregates.Streak, &sess.Aggregates.BestStreak,
		&sess.Aggregates.FlagsSubmitted, &sess.Aggregates.FlagsCorrect, &sess.Aggregates.Risk,
		&flaggedJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Terminal = terminal != 0
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	if flaggedJSON.Valid && flaggedJSON.String != "" {
		if err := json.Unmarshal([]byte(flaggedJSON.String), &sess.Aggregates.Flagged); err != nil {
			return nil, fmt.Errorf("decode flagged tactics: %w", err)
		}
	}
	return &sess, nil
}

// UpsertSession creates or updates a session record.
func (s *SQLiteStore) UpsertSession(ctx context.Context, sess *domain.Session) error {
	flaggedJSON, err := json.Marshal(sess.Aggregates.Flagged)
	if err != nil {
		return fmt.Errorf("encode flagged tactics: %w", err)
	}

	terminal := 0
	if sess.Terminal {
		terminal = 1
	}

	query := `
	INSERT INTO sessions (session_id, user_id, tab_id, difficulty, turn_count, terminal,
		score, streak, best_streak, flags_submitted, flags_correct, risk,
		flagged_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		turn_count = excluded.turn_count,
		terminal = excluded.terminal,
		score = excluded.score,
		streak = excluded.streak,
		best_streak = excluded.best_streak,
		flags_submitted = excluded.flags_submitted,
		flags_correct = excluded.flags_correct,
		risk = excluded.risk,
		flagged_json = excluded.flagged_json,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		sess.SessionID, sess.UserID, sess.TabID, string(sess.Difficulty),
		sess.TurnCount, terminal,
		sess.Aggregates.Score, sess.Aggregates.Streak, sess.Aggregates.BestStreak,
		sess.Aggregates.FlagsSubmitted, sess.Aggregates.FlagsCorrect, sess.Aggregates.Risk,
		string(flaggedJSON), sess.CreatedAt.Unix(), sess.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// InsertTurn appends a committed turn.
func (s *SQLiteStore) InsertTurn(ctx context.Context, sessionID string, turn *domain.Turn) error {
	var tacticsJSON interface{}
	if len(turn.Tactics) > 0 {
		data, err := json.Marshal(turn.Tactics)
		if err != nil {
			return fmt.Errorf("encode tactics: %w", err)
		}
		tacticsJSON = string(data)
	}

	query := `
	INSERT INTO turns (session_id, seq, role, raw_text, display_text, tactics_json,
		flag_outcome, feedback, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		sessionID, turn.Seq, string(turn.Role), turn.RawText, turn.DisplayText,
		tacticsJSON, string(turn.Outcome), turn.Feedback, turn.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// UpdateTurnFlag records a flag outcome on an existing turn.
func (s *SQLiteStore) UpdateTurnFlag(ctx context.Context, sessionID string, seq int, outcome domain.FlagOutcome, feedback string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE turns SET flag_outcome = ?, feedback = ? WHERE session_id = ? AND seq = ?`,
		string(outcome), feedback, sessionID, seq,
	)
	if err != nil {
		return fmt.Errorf("update turn flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateTurnFlag affected 0 rows", "session_id", sessionID, "seq", seq)
	}
	return nil
}

// ListTurns returns a session's turns ordered by sequence number.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]*domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, role, raw_text, display_text, tactics_json, flag_outcome, feedback, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turns rows", "error", closeErr)
		}
	}()

	var turns []*domain.Turn
	for rows.Next() {
		var turn domain.Turn
		var tacticsJSON sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&turn.Seq, &turn.Role, &turn.RawText, &turn.DisplayText,
			&tacticsJSON, &turn.Outcome, &turn.Feedback, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}

		turn.CreatedAt = time.Unix(createdAt, 0)
		if tacticsJSON.Valid && tacticsJSON.String != "" {
			if err := json.Unmarshal([]byte(tacticsJSON.String), &turn.Tactics); err != nil {
				return nil, fmt.Errorf("decode turn tactics: %w", err)
			}
		}
		turns = append(turns, &turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

// CleanupExpiredSessions removes sessions idle longer than ttl.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id IN (SELECT session_id FROM sessions WHERE updated_at < ?)`,
		threshold,
	); err != nil {
		return 0, fmt.Errorf("delete expired turns: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return removed, nil
}
