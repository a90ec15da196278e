package domain

import "time"

// MailboxConnection holds a user's connected-mailbox OAuth tokens.
// The token-refresh routine rotates the token pair in place; the mail
// transport adapter reads the connection to decide which transport to
// use for a given send.
type MailboxConnection struct {
	UserID       string    `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ExpiresWithin reports whether the access token is expired or will
// expire inside the given safety window.
func (c *MailboxConnection) ExpiresWithin(window time.Duration) bool {
	return time.Now().Add(window).After(c.ExpiresAt)
}
