/*
Package auth provides signup, login and token handling for the loan engine.

PURPOSE:
  Users authenticate with a generated username and a bcrypt-hashed
  password; successful logins receive an HS256 JWT carrying the user's
  customer id and roles. The API layer turns that token into the
  lending.Actor capability passed to every lifecycle operation.

SEE ALSO:
  - service.go: signup/login and token issuance
  - api/middleware.go: bearer-token extraction into an Actor
*/
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/warp/loan-engine/ledger"
)

// =============================================================================
// ROLES AND USERS
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole maps a string to a known role, defaulting to CUSTOMER for
// anything unrecognized.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

// User is an authentication principal. Each user owns exactly one customer
// record in the ledger.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Roles        []Role
	CustomerID   ledger.CustomerID
}

// IsAdmin reports whether the user holds the elevated role.
func (u *User) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// =============================================================================
// USER STORE
// =============================================================================

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when a signup collides with an existing
	// username.
	ErrUsernameTaken = errors.New("username already exists")
)

type UserStore interface {
	// GetUserByUsername fetches a user. Fails with ErrUserNotFound.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SaveUser inserts a new user. Fails with ErrUsernameTaken on collision.
	SaveUser(ctx context.Context, user *User) error

	// CountUsers reports how many users exist. Used to skip re-seeding.
	CountUsers(ctx context.Context) (int, error)
}

// =============================================================================
// MEMORY USER STORE - for tests and local development
// =============================================================================

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]User)}
}

func (m *MemoryUserStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := u
	return &copied, nil
}

func (m *MemoryUserStore) SaveUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return ErrUsernameTaken
	}
	m.users[user.Username] = *user
	return nil
}

func (m *MemoryUserStore) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}
