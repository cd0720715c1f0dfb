// Package session owns the authentication lifecycle of the management
// view: login with email and password, refresh-token rotation, logout and
// resolving the current session from an access token.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
	"github.com/iliyamo/venue-occupancy-map/internal/utils"
)

var (
	// ErrInvalidCredentials covers unknown emails, wrong passwords and
	// disabled accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefresh is returned for unknown, expired or revoked
	// refresh tokens.
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

// UserStore is the subset of repository.UserRepo the manager needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore is the subset of repository.TokenRepo the manager needs.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Identity is the public part of a user.
type Identity struct {
	ID          uint64 `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Tokens is the result of a successful login or refresh.
type Tokens struct {
	User             Identity
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Session describes who, if anyone, is behind an access token.
type Session struct {
	Authenticated bool      `json:"authenticated"`
	UserID        uint64    `json:"user_id,omitempty"`
	DisplayName   string    `json:"display_name"`
	Role          string    `json:"role,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

// Config carries the token settings of a Manager.
type Config struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
}

// Manager issues and invalidates sessions.
type Manager struct {
	users  UserStore
	tokens TokenStore
	cfg    Config
}

// NewManager builds a Manager.
func NewManager(users UserStore, tokens TokenStore, cfg Config) *Manager {
	return &Manager{users: users, tokens: tokens, cfg: cfg}
}

// Login verifies the credentials and issues a fresh token pair.
func (m *Manager) Login(ctx context.Context, email, password string) (Tokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Tokens{}, ErrInvalidCredentials
	}
	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, err
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return Tokens{}, ErrInvalidCredentials
	}
	return m.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new pair is issued.  Reusing a rotated token fails.
func (m *Manager) Refresh(ctx context.Context, rawRefresh string) (Tokens, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(rawRefresh))
	userID, err := m.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return Tokens{}, ErrInvalidRefresh
		}
		return Tokens{}, err
	}
	if err := m.tokens.RevokeByHash(ctx, hash); err != nil {
		return Tokens{}, err
	}
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Tokens{}, ErrInvalidRefresh
		}
		return Tokens{}, err
	}
	if !u.IsActive {
		return Tokens{}, ErrInvalidRefresh
	}
	return m.issue(ctx, u)
}

// Logout ends a session.  With a refresh token only that token is
// revoked; with just an access token every refresh token of the user is.
// Access tokens stay valid until they expire.
func (m *Manager) Logout(ctx context.Context, rawAccess, rawRefresh string) error {
	if rawRefresh = strings.TrimSpace(rawRefresh); rawRefresh != "" {
		hash := utils.HashRefreshRaw(rawRefresh)
		if _, err := m.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrTokenInvalid) {
				return ErrInvalidRefresh
			}
			return err
		}
		return m.tokens.RevokeByHash(ctx, hash)
	}
	cur := m.Current(rawAccess)
	if !cur.Authenticated {
		return ErrInvalidCredentials
	}
	return m.tokens.RevokeAllForUser(ctx, cur.UserID)
}

// Current resolves an access token.  Missing or invalid tokens yield an
// unauthenticated Session, never an error.
func (m *Manager) Current(rawAccess string) Session {
	rawAccess = strings.TrimSpace(strings.TrimPrefix(rawAccess, "Bearer "))
	if rawAccess == "" {
		return Session{}
	}
	c, err := utils.ParseAccessToken(m.cfg.Secret, rawAccess)
	if err != nil {
		return Session{}
	}
	return Session{
		Authenticated: true,
		UserID:        c.UserID,
		DisplayName:   c.DisplayName,
		Role:          c.Role,
		ExpiresAt:     c.ExpiresAt,
	}
}

func (m *Manager) issue(ctx context.Context, u model.User) (Tokens, error) {
	name := u.DisplayName
	if name == "" {
		name = u.Email
	}
	access, err := utils.NewAccessToken(m.cfg.Secret, u.ID, u.Role, name, m.cfg.AccessTTLMin)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := utils.NewRefreshToken(m.cfg.RefreshTTLDays)
	if err != nil {
		return Tokens{}, err
	}
	if err := m.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Tokens{}, err
	}
	return Tokens{
		User:             Identity{ID: u.ID, Email: u.Email, DisplayName: name, Role: u.Role},
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}
