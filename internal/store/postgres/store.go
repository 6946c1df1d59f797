// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postwatch-io/postwatch/internal/monitor"
)

const uniqueViolation = "23505"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements monitor.UserStore and monitor.PostStore on Postgres.
// Every operation is a single statement, so no explicit transactions are
// needed; the pool serializes nothing beyond what the database requires.
type Store struct {
	pool pool
}

// NewStore connects a pgx pool using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for testing).
func NewStoreWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateUser inserts a user row. The email is lowercased on the way in and
// a unique-violation on the email index maps to monitor.ErrDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, user monitor.User) error {
	const query = `
INSERT INTO users (id, email, password_hash, created_at)
VALUES ($1, lower($2), $3, $4)`
	_, err := s.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return monitor.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByEmail fetches a user by case-insensitive email.
func (s *Store) UserByEmail(ctx context.Context, email string) (monitor.User, error) {
	const query = `
SELECT id, email, password_hash, created_at FROM users WHERE email = lower($1)`
	return s.scanUser(s.pool.QueryRow(ctx, query, email), strings.ToLower(email))
}

// UserByID fetches a user by ID.
func (s *Store) UserByID(ctx context.Context, id string) (monitor.User, error) {
	const query = `
SELECT id, email, password_hash, created_at FROM users WHERE id = $1`
	return s.scanUser(s.pool.QueryRow(ctx, query, id), id)
}

func (s *Store) scanUser(row pgx.Row, key string) (monitor.User, error) {
	var user monitor.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return monitor.User{}, fmt.Errorf("user %q: %w", key, monitor.ErrNotFound)
		}
		return monitor.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// SetWebhook upserts the single webhook row for a user.
func (s *Store) SetWebhook(ctx context.Context, userID string, url string) error {
	const query = `
INSERT INTO webhooks (user_id, url) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET url = EXCLUDED.url`
	if _, err := s.pool.Exec(ctx, query, userID, url); err != nil {
		return fmt.Errorf("upsert webhook: %w", err)
	}
	return nil
}

// Webhook returns the configured webhook URL for a user.
func (s *Store) Webhook(ctx context.Context, userID string) (string, error) {
	const query = `SELECT url FROM webhooks WHERE user_id = $1`
	var url string
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&url); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("webhook for user %q: %w", userID, monitor.ErrNotFound)
		}
		return "", fmt.Errorf("select webhook: %w", err)
	}
	return url, nil
}

// Add tracks a URL for a user; ON CONFLICT DO NOTHING makes the insert
// idempotent and the row count distinguishes "newly added".
func (s *Store) Add(ctx context.Context, userID string, url string) (bool, error) {
	const query = `
INSERT INTO posts (user_id, url, added_at) VALUES ($1, $2, now())
ON CONFLICT (user_id, url) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, userID, url)
	if err != nil {
		return false, fmt.Errorf("insert post: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Remove deletes a tracked pair. The exact URL is tried first and then the
// trailing-slash-toggled form; Add and ListForUser never normalize.
func (s *Store) Remove(ctx context.Context, userID string, url string) (bool, error) {
	const query = `DELETE FROM posts WHERE user_id = $1 AND url = $2`
	for _, candidate := range []string{url, monitor.ToggleTrailingSlash(url)} {
		tag, err := s.pool.Exec(ctx, query, userID, candidate)
		if err != nil {
			return false, fmt.Errorf("delete post: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ListForUser returns the user's tracked URLs.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT url FROM posts WHERE user_id = $1 ORDER BY url`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan post url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return urls, nil
}

// ListAll returns every tracked pair for the scheduler sweep.
func (s *Store) ListAll(ctx context.Context) ([]monitor.TrackedPost, error) {
	const query = `SELECT user_id, url, added_at FROM posts`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select all posts: %w", err)
	}
	defer rows.Close()

	var all []monitor.TrackedPost
	for rows.Next() {
		var post monitor.TrackedPost
		if err := rows.Scan(&post.UserID, &post.URL, &post.AddedAt); err != nil {
			return nil, fmt.Errorf("scan tracked post: %w", err)
		}
		all = append(all, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate all posts: %w", err)
	}
	return all, nil
}
