// Package auth issues and verifies the bearer tokens used by the HTTP and
// push boundaries, against a fixed set of seeded users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles.
const (
	RoleAnalyst = "Analyst"
	RoleAdmin   = "Admin"
)

var (
	// ErrInvalidCredentials is returned when no user matches an email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// User is a seeded account.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// DefaultUsers returns the built-in test accounts with fresh IDs.
func DefaultUsers() []User {
	return []User{
		{ID: uuid.NewString(), Email: "analyst@test.com", Password: "TestPass123!", Role: RoleAnalyst, Name: "Test Analyst"},
		{ID: uuid.NewString(), Email: "admin@test.com", Password: "AdminPass123!", Role: RoleAdmin, Name: "Test Admin"},
	}
}

// Claims is the JWT payload.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	users  []User
}

// NewManager creates a Manager for users.
func NewManager(secret string, ttl time.Duration, users []User) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, users: users}
}

// TTL returns the token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Login checks credentials and returns a signed token for the user.
func (m *Manager) Login(email, password string) (string, User, error) {
	for _, u := range m.users {
		if u.Email == email && u.Password == password {
			tok, err := m.Issue(u)
			if err != nil {
				return "", User{}, err
			}
			return tok, u, nil
		}
	}
	return "", User{}, ErrInvalidCredentials
}

// Issue signs a token for u.
func (m *Manager) Issue(u User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   u.ID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tok and returns its claims.
func (m *Manager) Verify(tok string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by WithClaims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
