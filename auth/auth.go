// Package auth issues and verifies player credentials. Passwords are hashed
// with argon2id; credentials are HS256 JWTs carrying the player's stable id
// and display name, verifiable offline.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
)

var (
	ErrBadUsername        = errors.New("username must be 3-32 characters")
	ErrDuplicateUsername  = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid credential")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Identity is the stable id plus display name bound to a connection.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
}

type UserStore interface {
	// Create stores a new user, returning ErrDuplicateUsername on collision.
	Create(ctx context.Context, user User) error
	GetByUsername(ctx context.Context, username string) (User, error)
}

type Service struct {
	store  UserStore
	params *argon2id.Params
	tokens *TokenManager
}

func NewService(store UserStore, secret string, expiry time.Duration) *Service {
	return &Service{
		store:  store,
		params: argon2id.DefaultParams,
		tokens: NewTokenManager(secret, expiry),
	}
}

func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return "", ErrBadUsername
	}
	if len(password) < 8 {
		return "", ErrWeakPassword
	}

	hash, err := argon2id.CreateHash(password, s.params)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return "", err
	}

	return s.tokens.Generate(Identity{ID: user.ID, Name: user.Username})
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	match, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil || !match {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Generate(Identity{ID: user.ID, Name: user.Username})
}

func (s *Service) Verify(token string) (Identity, error) {
	return s.tokens.Verify(token)
}
