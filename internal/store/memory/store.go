// Package memory provides in-memory store implementations for development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/postwatch-io/postwatch/internal/monitor"
)

// Store implements monitor.UserStore and monitor.PostStore with
// mutex-guarded maps. Safe for concurrent use by request handlers and
// the scheduler.
type Store struct {
	mu       sync.RWMutex
	users    map[string]monitor.User
	byEmail  map[string]string
	posts    map[string]map[string]monitor.TrackedPost
	webhooks map[string]string
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]monitor.User),
		byEmail:  make(map[string]string),
		posts:    make(map[string]map[string]monitor.TrackedPost),
		webhooks: make(map[string]string),
	}
}

// CreateUser inserts a new user, enforcing case-insensitive email uniqueness.
func (s *Store) CreateUser(_ context.Context, user monitor.User) error {
	key := strings.ToLower(user.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[key]; exists {
		return monitor.ErrDuplicateEmail
	}
	user.Email = key
	s.users[user.ID] = user
	s.byEmail[key] = user.ID
	return nil
}

// UserByEmail looks a user up by their lowercased email.
func (s *Store) UserByEmail(_ context.Context, email string) (monitor.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return monitor.User{}, fmt.Errorf("user %q: %w", email, monitor.ErrNotFound)
	}
	return s.users[id], nil
}

// UserByID looks a user up by ID.
func (s *Store) UserByID(_ context.Context, id string) (monitor.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return monitor.User{}, fmt.Errorf("user %q: %w", id, monitor.ErrNotFound)
	}
	return user, nil
}

// SetWebhook upserts the webhook URL for a user.
func (s *Store) SetWebhook(_ context.Context, userID string, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[userID] = url
	return nil
}

// Webhook returns the configured webhook URL for a user.
func (s *Store) Webhook(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.webhooks[userID]
	if !ok {
		return "", fmt.Errorf("webhook for user %q: %w", userID, monitor.ErrNotFound)
	}
	return url, nil
}

// Add tracks a URL for a user; false means the pair was already present.
// The URL is stored exactly as given.
func (s *Store) Add(_ context.Context, userID string, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.posts[userID]
	if !ok {
		set = make(map[string]monitor.TrackedPost)
		s.posts[userID] = set
	}
	if _, exists := set[url]; exists {
		return false, nil
	}
	set[url] = monitor.TrackedPost{UserID: userID, URL: url}
	return true, nil
}

// Remove deletes a tracked pair, trying the exact URL first and then the
// trailing-slash-toggled form.
func (s *Store) Remove(_ context.Context, userID string, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.posts[userID]
	if !ok {
		return false, nil
	}
	for _, candidate := range []string{url, monitor.ToggleTrailingSlash(url)} {
		if _, exists := set[candidate]; exists {
			delete(set, candidate)
			return true, nil
		}
	}
	return false, nil
}

// ListForUser returns the user's tracked URLs sorted for stable output.
func (s *Store) ListForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.posts[userID]
	urls := make([]string, 0, len(set))
	for url := range set {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls, nil
}

// ListAll returns every tracked pair in unspecified order.
func (s *Store) ListAll(_ context.Context) ([]monitor.TrackedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []monitor.TrackedPost
	for _, set := range s.posts {
		for _, post := range set {
			all = append(all, post)
		}
	}
	return all, nil
}

// Close satisfies the provider contract; nothing to release.
func (s *Store) Close() {}
