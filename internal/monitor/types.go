// Package monitor defines core types shared across subsystems.
package monitor

import "time"

// PostStatus is the outcome reported by the external status checker.
type PostStatus string

// Status values reported for a tracked post.
const (
	StatusActive   PostStatus = "active"
	StatusInactive PostStatus = "inactive"
)

// User is a registered account. Emails are stored lowercased and are the
// case-insensitive identity key.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// TrackedPost is a (user, URL) pair under periodic status surveillance.
type TrackedPost struct {
	UserID  string    `json:"user_id"`
	URL     string    `json:"url"`
	AddedAt time.Time `json:"added_at"`
}
