// Package auth implements password hashing and stateless JWT issuance/verification.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/postwatch-io/postwatch/internal/monitor"
)

// Token kinds carried in the claim set. A refresh token presented where an
// access token is expected (or vice versa) fails verification.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims is the JWT claim set for both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Kind   string `json:"kind"`
}

// Config holds the signing secret, lifetimes, and bcrypt cost.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Manager hashes credentials and issues/verifies signed tokens. Tokens are
// self-contained; the trust boundary is signature plus expiry, so there is
// no revocation state to manage.
type Manager struct {
	users      monitor.UserStore
	clock      monitor.Clock
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
}

// New constructs a Manager. A BcryptCost below bcrypt.MinCost selects the
// library default.
func New(users monitor.UserStore, clock monitor.Clock, cfg Config) *Manager {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Manager{
		users:      users,
		clock:      clock,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		cost:       cost,
	}
}

// Authenticate looks a user up by email and verifies the password. Both
// failure modes collapse to monitor.ErrUnauthorized.
func (m *Manager) Authenticate(ctx context.Context, email, plain string) (monitor.User, error) {
	user, err := m.users.UserByEmail(ctx, email)
	if err != nil {
		return monitor.User{}, monitor.ErrUnauthorized
	}
	if !m.VerifyPassword(plain, user.PasswordHash) {
		return monitor.User{}, monitor.ErrUnauthorized
	}
	return user, nil
}

// IssueAccessToken mints a short-lived access token for the user.
func (m *Manager) IssueAccessToken(user monitor.User) (string, error) {
	return m.issue(user, KindAccess, m.accessTTL)
}

// IssueRefreshToken mints a long-lived refresh token for the user.
func (m *Manager) IssueRefreshToken(user monitor.User) (string, error) {
	return m.issue(user, KindRefresh, m.refreshTTL)
}

func (m *Manager) issue(user monitor.User, kind string, ttl time.Duration) (string, error) {
	now := m.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: user.ID,
		Kind:   kind,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		// An internal signing failure, not a credential problem.
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// VerifyAccessToken validates signature, expiry, kind, and subject, then
// resolves the user. Every failure mode returns the same
// monitor.ErrUnauthorized so callers cannot distinguish which check failed.
func (m *Manager) VerifyAccessToken(ctx context.Context, token string) (monitor.User, error) {
	claims, err := m.parse(token, KindAccess)
	if err != nil {
		return monitor.User{}, monitor.ErrUnauthorized
	}
	return m.resolveUser(ctx, claims)
}

// RefreshAccessToken validates a refresh token and mints a new access token.
// The refresh token itself is not rotated.
func (m *Manager) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := m.parse(refreshToken, KindRefresh)
	if err != nil {
		return "", monitor.ErrUnauthorized
	}
	user, err := m.resolveUser(ctx, claims)
	if err != nil {
		return "", monitor.ErrUnauthorized
	}
	return m.IssueAccessToken(user)
}

func (m *Manager) parse(token, kind string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return nil, monitor.ErrUnauthorized
	}
	if claims.Kind != kind || claims.Subject == "" {
		return nil, monitor.ErrUnauthorized
	}
	return claims, nil
}

func (m *Manager) resolveUser(ctx context.Context, claims *Claims) (monitor.User, error) {
	user, err := m.users.UserByEmail(ctx, claims.Subject)
	if err != nil || user.ID != claims.UserID {
		return monitor.User{}, monitor.ErrUnauthorized
	}
	return user, nil
}
