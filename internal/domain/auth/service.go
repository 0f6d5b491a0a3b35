package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service signs accounts in and resolves tokens.
type Service struct {
	repo     Repository
	newToken func() (string, error)
}

// NewService creates an auth Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, newToken: GenerateToken}
}

// Login checks the credentials and returns the account's token, issuing
// one on first login.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	acc, err := s.repo.FindAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			zctx.From(ctx).Info("Login rejected",
				zap.String("username", username),
				zap.String("reason", "unknown user"),
			)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		zctx.From(ctx).Info("Login rejected",
			zap.String("username", username),
			zap.String("reason", "password mismatch"),
		)
		return nil, ErrInvalidCredentials
	}

	candidate, err := s.newToken()
	if err != nil {
		return nil, errors.Wrap(err, "generate token")
	}
	key, err := s.repo.GetOrCreateToken(ctx, acc.ID, candidate)
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}

	return &Session{Token: key, Account: *acc}, nil
}

// Authenticate resolves a token key to its account.
func (s *Service) Authenticate(ctx context.Context, key string) (*Account, error) {
	if key == "" {
		return nil, ErrNoToken
	}
	tok, err := s.repo.FindToken(ctx, key)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "find token")
	}
	if subtle.ConstantTimeCompare([]byte(tok.Key), []byte(key)) != 1 {
		return nil, ErrInvalidToken
	}
	return &tok.Account, nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Account, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	acc := &Account{Username: username, Email: email, PasswordHash: hash}
	if err := s.repo.CreateAccount(ctx, acc); err != nil {
		return nil, errors.Wrapf(err, "create account %q", username)
	}
	return acc, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// GenerateToken returns a random key of TokenLength hex characters.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
