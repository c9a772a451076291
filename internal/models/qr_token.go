package models

import "time"

// QRToken is a single-window check-in credential for a session.
// Tokens are never deleted; expiring one sets ExpiresAt to the current
// time so history is preserved.
type QRToken struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	HashValue string    `db:"hash_value" json:"hash_value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the token is past its validity window at the
// given instant.
func (t QRToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
