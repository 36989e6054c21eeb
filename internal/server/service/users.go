package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"vidadmin/internal/server/auth"
	"vidadmin/internal/server/config"
	"vidadmin/internal/server/database"

	"golang.org/x/crypto/bcrypt"
)

const seedAdminName = "Admin User"

// UserInfo is the public part of a user record.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserInfo  `json:"user"`
}

// AuthService verifies credentials and issues sessions.
type AuthService struct {
	users  database.UserStore
	tokens *auth.TokenManager
	cfg    *config.Config
	cost   int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new auth service.
func NewAuthService(users database.UserStore, tokens *auth.TokenManager, cfg *config.Config) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		cost:   bcrypt.DefaultCost,
	}
}

// Login checks email and password against the credential store and issues
// a session token. Unknown email and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		loginAttemptsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// Spend the same bcrypt time as a real comparison.
			bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			loginAttemptsTotal.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCredentials
		}
		loginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, upstream("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		loginAttemptsTotal.WithLabelValues("invalid").Inc()
		slog.Warn("login rejected", "email", email)
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	loginAttemptsTotal.WithLabelValues("success").Inc()
	slog.Info("login succeeded", "user_id", user.ID, "email", email)

	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User: UserInfo{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	}, nil
}

// Authenticate resolves a session token to its claims.
func (s *AuthService) Authenticate(token string) (*auth.Claims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}

// SessionTTL is the lifetime of issued sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

// Seed creates the default administrator if it does not exist yet and
// reports whether it did. Returns ErrNotFound when seeding is disabled.
func (s *AuthService) Seed(ctx context.Context) (bool, error) {
	if !s.cfg.SeedEnabled {
		return false, ErrNotFound
	}

	email := normalizeEmail(s.cfg.SeedAdminEmail)
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return false, upstream("find user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.SeedAdminPassword), s.cost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		Name:         seedAdminName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         database.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent seed won the race on the unique email index.
		if errors.Is(err, database.ErrDuplicateEmail) {
			return false, nil
		}
		return false, upstream("create user", err)
	}

	slog.Info("admin user seeded", "user_id", user.ID, "email", email)
	return true, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), s.cost)
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
