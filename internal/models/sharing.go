package models

import (
	"time"
)

// SharePermission controls what a collaborator can do with a group.
type SharePermission string

const (
	PermissionView SharePermission = "view"
	PermissionEdit SharePermission = "edit"
)

// SharedCollection is a tokenized, expiring read link to one group.
type SharedCollection struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ShareToken string    `json:"share_token" gorm:"not null;uniqueIndex"`
	UserID     string    `json:"user_id" gorm:"not null;index"`
	GroupName  string    `json:"group_name" gorm:"not null"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
	ViewCount  int64     `json:"view_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the share is past its expiry at the given time.
func (s *SharedCollection) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Active reports whether the share can still be resolved.
func (s *SharedCollection) Active(now time.Time) bool {
	return !s.Revoked && !s.Expired(now)
}

// CollectionComment is a comment left on a shared collection.
type CollectionComment struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ShareToken string    `json:"share_token" gorm:"not null;index"`
	UserID     string    `json:"user_id" gorm:"not null"`
	Author     string    `json:"author"`
	Content    string    `json:"content" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// CollectionCollaborator grants another user access to an owner's group.
type CollectionCollaborator struct {
	ID             uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID        string          `json:"owner_id" gorm:"not null;uniqueIndex:idx_owner_group_collab"`
	GroupName      string          `json:"group_name" gorm:"not null;uniqueIndex:idx_owner_group_collab"`
	CollaboratorID string          `json:"collaborator_id" gorm:"not null;uniqueIndex:idx_owner_group_collab"`
	Permission     SharePermission `json:"permission" gorm:"default:'view'"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AnalyticsCounter tracks view totals for one share token.
type AnalyticsCounter struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ShareToken   string    `json:"share_token" gorm:"not null;uniqueIndex"`
	Views        int64     `json:"views"`
	LastViewedAt time.Time `json:"last_viewed_at"`
}
