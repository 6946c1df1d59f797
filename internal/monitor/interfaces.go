package monitor

import (
	"context"
	"time"
)

// UserStore persists user accounts and their webhook configuration.
type UserStore interface {
	// CreateUser inserts a new user. Returns ErrDuplicateEmail when the
	// email (compared case-insensitively) is already registered.
	CreateUser(ctx context.Context, user User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)

	// SetWebhook upserts the single webhook URL for a user.
	SetWebhook(ctx context.Context, userID string, url string) error
	// Webhook returns the configured URL or ErrNotFound when unset.
	Webhook(ctx context.Context, userID string) (string, error)
}

// PostStore persists the per-user set of tracked post URLs.
type PostStore interface {
	// Add tracks a URL for a user. Returns false when the pair already
	// exists; that is not an error.
	Add(ctx context.Context, userID string, url string) (bool, error)
	// Remove deletes a tracked pair and reports whether a row was deleted.
	// It matches the exact URL first and then the trailing-slash-toggled
	// form. Add and ListForUser do not apply this normalization.
	Remove(ctx context.Context, userID string, url string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]string, error)
	// ListAll returns every tracked pair. Iteration order is unspecified;
	// only the scheduler uses this.
	ListAll(ctx context.Context) ([]TrackedPost, error)
}

// StatusChecker reports whether a post behind a URL is still live.
type StatusChecker interface {
	// CheckStatus returns ErrInvalidPostURL when the URL does not have the
	// provider's {owner}/posts/{post} shape. Transport failures surface as
	// ordinary errors.
	CheckStatus(ctx context.Context, url string) (PostStatus, error)
}

// Notifier delivers deactivation events to a user-configured webhook.
type Notifier interface {
	NotifyInactive(ctx context.Context, webhookURL string, postURL string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces user IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
