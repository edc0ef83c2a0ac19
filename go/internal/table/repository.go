package table

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/tablestakes/go/internal/models"
)

// SessionRepository defines what the session app needs from the store.
// One record per session keyed by full id; short-id resolution is computed
// on demand by the registry, never stored.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	ListSessionIDs(ctx context.Context, statuses ...models.SessionStatus) ([]uuid.UUID, error)
}

// Repository is the Postgres-backed session store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Postgres session repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ SessionRepository = (*Repository)(nil)

func (r *Repository) CreateSession(ctx context.Context, session *models.Session) error {
	participants, err := json.Marshal(session.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	const q = `
		INSERT INTO sessions (
			id, name, host_id, participants, small_blind, big_blind,
			pot, current_bet, current_turn_index, status, state_version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, q,
		session.ID, session.Name, session.HostID, participants,
		session.SmallBlind, session.BigBlind, session.Pot, session.CurrentBet,
		session.CurrentTurnIndex, string(session.Status), session.StateVersion,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `
		SELECT id, name, host_id, participants, small_blind, big_blind,
		       pot, current_bet, current_turn_index, status, state_version,
		       created_at, updated_at
		FROM sessions WHERE id = $1`

	var (
		s            models.Session
		participants []byte
		status       string
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Name, &s.HostID, &participants, &s.SmallBlind, &s.BigBlind,
		&s.Pot, &s.CurrentBet, &s.CurrentTurnIndex, &status, &s.StateVersion,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := json.Unmarshal(participants, &s.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}
	s.Status = models.SessionStatus(status)
	return &s, nil
}

func (r *Repository) UpdateSession(ctx context.Context, session *models.Session) error {
	participants, err := json.Marshal(session.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	const q = `
		UPDATE sessions SET
			name = $2, participants = $3, pot = $4, current_bet = $5,
			current_turn_index = $6, status = $7, state_version = $8,
			updated_at = $9
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q,
		session.ID, session.Name, participants, session.Pot, session.CurrentBet,
		session.CurrentTurnIndex, string(session.Status), session.StateVersion,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", session.ID, ErrNotFound)
	}
	return nil
}

func (r *Repository) ListSessionIDs(ctx context.Context, statuses ...models.SessionStatus) ([]uuid.UUID, error) {
	q := `SELECT id FROM sessions`
	args := []any{}
	if len(statuses) > 0 {
		q += ` WHERE status = ANY($1)`
		ss := make([]string, len(statuses))
		for i, st := range statuses {
			ss[i] = string(st)
		}
		args = append(args, pq.Array(ss))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return ids, nil
}
