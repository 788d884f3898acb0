package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/travelblog/internal/model"
)

// SessionRepo implements SessionRepository on a shared client_sessions table, so several
// client processes on different hosts see the same session for an origin.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// Load selects the token pair of origin.
func (r *SessionRepo) Load(ctx context.Context, origin string) (model.Tokens, error) {
	const q = `
SELECT access_token, refresh_token
FROM client_sessions WHERE origin=$1`
	var t model.Tokens
	err := r.db.Pool.QueryRow(ctx, q, origin).Scan(&t.AccessToken, &t.RefreshToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Tokens{}, nil
	}
	if err != nil {
		return model.Tokens{}, fmt.Errorf("load session: %w", err)
	}
	return t, nil
}

// Save upserts both tokens in a single statement.
func (r *SessionRepo) Save(ctx context.Context, origin string, t model.Tokens) error {
	const q = `
INSERT INTO client_sessions (origin, access_token, refresh_token, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (origin) DO UPDATE
SET access_token=EXCLUDED.access_token, refresh_token=EXCLUDED.refresh_token, updated_at=now()`
	if _, err := r.db.Pool.Exec(ctx, q, origin, t.AccessToken, t.RefreshToken); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the row of origin.
func (r *SessionRepo) Delete(ctx context.Context, origin string) error {
	const q = `DELETE FROM client_sessions WHERE origin=$1`
	if _, err := r.db.Pool.Exec(ctx, q, origin); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
