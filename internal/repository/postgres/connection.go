package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// ConnectionRepo implements mail.ConnectionStore against PostgreSQL.
type ConnectionRepo struct{ db *sql.DB }

// NewConnectionRepo creates a Postgres-backed connection repository.
func NewConnectionRepo(db *sql.DB) *ConnectionRepo { return &ConnectionRepo{db: db} }

// GetConnection returns the user's mailbox connection, or nil when the
// user has none.
func (r *ConnectionRepo) GetConnection(ctx context.Context, userID string) (*domain.MailboxConnection, error) {
	c := &domain.MailboxConnection{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, access_token, refresh_token, expires_at, is_active, created_at, updated_at
		FROM crm_mailbox_connections
		WHERE user_id = $1
	`, userID).Scan(
		&c.UserID, &c.Email, &c.AccessToken, &c.RefreshToken,
		&c.ExpiresAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mailbox connection: %w", err)
	}
	return c, nil
}

// UpdateConnectionTokens persists a rotated token pair.
func (r *ConnectionRepo) UpdateConnectionTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE crm_mailbox_connections
		SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = NOW()
		WHERE user_id = $1
	`, userID, accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("update mailbox tokens: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mailbox connection for user %s not found", userID)
	}
	return nil
}
