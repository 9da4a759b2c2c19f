package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/domain/tool"
)

// Store implements the session store port on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Load returns the stored session with its full turn history, or a fresh
// session at the greeting stage with version 0 for an unseen id.
func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	var (
		sess      session.Session
		slotsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, current_stage, language, slots, version, created_at, last_updated
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.CurrentStage, &sess.Language, &slotsJSON,
		&sess.Version, &sess.CreatedAt, &sess.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.New(id, s.now().UTC()), nil
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	sess.Slots = make(map[string]string)
	if len(slotsJSON) > 0 {
		if err := json.Unmarshal(slotsJSON, &sess.Slots); err != nil {
			return nil, fmt.Errorf("load session %s: decode slots: %w", id, err)
		}
	}

	turns, err := s.loadTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Turns = turns

	return &sess, nil
}

func (s *Store) loadTurns(ctx context.Context, sessionID string) ([]session.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, input, stage_at_entry, stage_at_exit, confidence, gate_decision, reply, tool_calls, created_at
		 FROM turns WHERE session_id = $1 ORDER BY seq ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("load turns for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var result []session.Turn
	for rows.Next() {
		var (
			t         session.Turn
			callsJSON []byte
		)
		if err := rows.Scan(&t.ID, &t.Input, &t.StageAtEntry, &t.StageAtExit,
			&t.Confidence, &t.GateDecision, &t.Reply, &callsJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if len(callsJSON) > 0 {
			if err := json.Unmarshal(callsJSON, &t.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Save persists the session and any newly appended turns in one transaction,
// guarded by the optimistic version check. Returns domain.ErrConflict when
// the caller's base version is stale. On success the caller's Version is
// incremented in place.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	slotsJSON, err := json.Marshal(sess.Slots)
	if err != nil {
		return fmt.Errorf("save session %s: encode slots: %w", sess.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save session %s: begin: %w", sess.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if sess.Version == 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO sessions (id, current_stage, language, slots, version, created_at, last_updated)
			 VALUES ($1, $2, $3, $4, 1, $5, $6)`,
			sess.ID, sess.CurrentStage, sess.Language, slotsJSON, sess.CreatedAt, sess.LastUpdated)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("save session %s: %w", sess.ID, domain.ErrConflict)
			}
			return fmt.Errorf("save session %s: insert: %w", sess.ID, err)
		}
	} else {
		tag, err := tx.Exec(ctx,
			`UPDATE sessions
			 SET current_stage = $1, language = $2, slots = $3, version = version + 1, last_updated = $4
			 WHERE id = $5 AND version = $6`,
			sess.CurrentStage, sess.Language, slotsJSON, sess.LastUpdated, sess.ID, sess.Version)
		if err != nil {
			return fmt.Errorf("save session %s: update: %w", sess.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("save session %s: %w", sess.ID, domain.ErrConflict)
		}
	}

	if err := s.insertNewTurns(ctx, tx, sess); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save session %s: commit: %w", sess.ID, err)
	}

	sess.Version++
	return nil
}

// insertNewTurns appends turns beyond the count already stored. Turn history
// is append-only, so stored rows are never touched.
func (s *Store) insertNewTurns(ctx context.Context, tx pgx.Tx, sess *session.Session) error {
	var stored int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM turns WHERE session_id = $1`, sess.ID,
	).Scan(&stored)
	if err != nil {
		return fmt.Errorf("save session %s: count turns: %w", sess.ID, err)
	}

	for i := stored; i < len(sess.Turns); i++ {
		t := sess.Turns[i]
		callsJSON, err := marshalCalls(t.ToolCalls)
		if err != nil {
			return fmt.Errorf("save session %s: %w", sess.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO turns (id, session_id, seq, input, stage_at_entry, stage_at_exit,
			                    confidence, gate_decision, reply, tool_calls, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.ID, sess.ID, i, t.Input, t.StageAtEntry, t.StageAtExit,
			t.Confidence, t.GateDecision, t.Reply, callsJSON, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("save session %s: insert turn %d: %w", sess.ID, i, err)
		}
	}
	return nil
}

func marshalCalls(calls []tool.CallResult) ([]byte, error) {
	if calls == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("encode tool calls: %w", err)
	}
	return data, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
