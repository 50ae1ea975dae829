// Package auth is the server-side stand-in for the hosted auth
// provider: opaque bearer tokens resolved to a user ID or empty. The
// rest of the service never sees tokens, only user IDs.
package auth

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/database"
)

// DefaultSessionTTL is how long a session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionManager creates, resolves and revokes bearer-token sessions.
type SessionManager struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSessionManager creates a manager with the default TTL.
func NewSessionManager(db *gorm.DB) *SessionManager {
	return &SessionManager{db: db, ttl: DefaultSessionTTL}
}

// CreateSession issues a fresh token for the user.
func (m *SessionManager) CreateSession(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id must not be empty")
	}
	session := database.Session{
		Token:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.db.Create(&session).Error; err != nil {
		return "", err
	}
	return session.Token, nil
}

// Resolve returns the user ID for a token, or empty for a missing,
// unknown or expired token. Absence of a session is a common transient
// state, not an error.
func (m *SessionManager) Resolve(token string) string {
	if token == "" {
		return ""
	}
	var session database.Session
	err := m.db.First(&session, "token = ?", token).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Auth: session lookup failed: %v", err)
		}
		return ""
	}
	if time.Now().After(session.ExpiresAt) {
		return ""
	}
	return session.UserID
}

// Revoke deletes a session token. Revoking an unknown token is a no-op.
func (m *SessionManager) Revoke(token string) {
	if token == "" {
		return
	}
	if err := m.db.Delete(&database.Session{}, "token = ?", token).Error; err != nil {
		log.Printf("Auth: failed to revoke session: %v", err)
	}
}

// PurgeExpired removes expired session rows and returns how many were
// deleted.
func (m *SessionManager) PurgeExpired() int64 {
	result := m.db.Delete(&database.Session{}, "expires_at < ?", time.Now())
	if result.Error != nil {
		log.Printf("Auth: failed to purge expired sessions: %v", result.Error)
		return 0
	}
	return result.RowsAffected
}
