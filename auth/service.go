/*
service.go - Signup, login and JWT issuance

USERNAME RULE:
  The username is generated, not chosen: first letter of the name plus the
  surname, lowercased. "Jane Doe" signs in as "jdoe". Collisions are
  rejected; the user must change their name or contact support.

SIGNUP SIDE EFFECT:
  Signup creates the ledger Customer alongside the user, with the
  configured default credit limit. The two stores are separate; a crashed
  half-signup leaves an orphaned user who simply signs up again under a
  different name.

TOKEN SHAPE (HS256):
  sub:   username
  cid:   ledger customer id
  roles: role names
  exp:   now + configured TTL
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/loan-engine/ledger"
)

// ErrInvalidCredentials is returned for unknown users and bad passwords
// alike, so login failures don't leak which usernames exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned when a token fails signature or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Config carries the auth tunables.
type Config struct {
	// JWTSecret signs and verifies tokens.
	JWTSecret []byte

	// TokenTTL is how long issued tokens stay valid.
	TokenTTL time.Duration

	// DefaultCreditLimit is granted to every new customer at signup.
	DefaultCreditLimit decimal.Decimal
}

type Service struct {
	users     UserStore
	customers ledger.CustomerStore
	cfg       Config
	log       *logrus.Logger
}

func NewService(users UserStore, customers ledger.CustomerStore, cfg Config, log *logrus.Logger) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.DefaultCreditLimit.IsZero() {
		cfg.DefaultCreditLimit = decimal.NewFromInt(10000)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Service{users: users, customers: customers, cfg: cfg, log: log}
}

// =============================================================================
// SIGNUP
// =============================================================================

// SignupInput is a new user registration.
type SignupInput struct {
	Name     string
	Surname  string
	Password string
	Roles    []string
}

// Signup registers a user and creates the associated customer record.
// Returns the generated username.
func (s *Service) Signup(ctx context.Context, input SignupInput) (string, error) {
	if input.Name == "" || input.Surname == "" {
		return "", &ledger.ValidationError{Field: "name", Message: "name and surname are required"}
	}
	if input.Password == "" {
		return "", &ledger.ValidationError{Field: "password", Message: "password is required"}
	}

	username := strings.ToLower(input.Name[:1] + input.Surname)

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return "", fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	roles := make([]Role, 0, len(input.Roles))
	for _, r := range input.Roles {
		roles = append(roles, ParseRole(strings.ToUpper(r)))
	}
	if len(roles) == 0 {
		roles = []Role{RoleCustomer}
	}

	customer := &ledger.Customer{
		ID:              ledger.NewCustomerID(),
		Name:            input.Name,
		Surname:         input.Surname,
		CreditLimit:     s.cfg.DefaultCreditLimit,
		UsedCreditLimit: decimal.Zero,
	}
	if err := s.customers.SaveCustomer(ctx, customer); err != nil {
		return "", err
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Roles:        roles,
		CustomerID:   customer.ID,
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return "", err
	}

	s.log.WithField("username", username).Info("user signed up")
	return username, nil
}

// =============================================================================
// LOGIN AND TOKENS
// =============================================================================

// Claims is the token payload.
type Claims struct {
	CustomerID string   `json:"cid"`
	Roles      []string `json:"roles"`
	jwt.RegisteredClaims
}

// Login authenticates a user and returns a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	roles := make([]string, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = string(r)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		CustomerID: string(user.CustomerID),
		Roles:      roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	})
	signed, err := token.SignedString(s.cfg.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.log.WithField("username", username).Info("user logged in")
	return signed, nil
}

// ParseToken verifies a token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsAdmin reports whether the claims carry the admin role.
func (c *Claims) IsAdmin() bool {
	for _, r := range c.Roles {
		if Role(r) == RoleAdmin {
			return true
		}
	}
	return false
}
