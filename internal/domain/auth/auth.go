package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// TokenLength is the length of an issued token in hex characters.
const TokenLength = 40

var (
	ErrMissingCredentials = errors.New("Username and password are required")
	ErrInvalidCredentials = errors.New("Invalid username or password")
	ErrNoToken            = errors.New("Authentication credentials were not provided.")
	ErrInvalidToken       = errors.New("Invalid token.")

	// ErrAccountNotFound and ErrTokenNotFound are returned by repositories.
	ErrAccountNotFound = errors.New("account not found")
	ErrTokenNotFound   = errors.New("token not found")
	// ErrAccountExists is returned when a username is already registered.
	ErrAccountExists = errors.New("account already exists")
)

// Account is a user that can sign in and own products.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Token binds an opaque key to an account.
type Token struct {
	Key       string
	Account   Account
	CreatedAt time.Time
}

// Session is the result of a successful login.
type Session struct {
	Token   string
	Account Account
}

// Repository stores accounts and their tokens.
type Repository interface {
	FindAccountByUsername(ctx context.Context, username string) (*Account, error)
	// FindToken returns the token with its account.
	FindToken(ctx context.Context, key string) (*Token, error)
	// GetOrCreateToken returns the account's token, storing key when the
	// account has none yet.
	GetOrCreateToken(ctx context.Context, accountID int64, key string) (string, error)
	// CreateAccount inserts a and sets its ID.
	CreateAccount(ctx context.Context, a *Account) error
}

type accountKey struct{}

// WithAccount returns a copy of ctx carrying the authenticated account.
func WithAccount(ctx context.Context, a *Account) context.Context {
	return context.WithValue(ctx, accountKey{}, a)
}

// AccountFromContext returns the account stored by WithAccount.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	a, ok := ctx.Value(accountKey{}).(*Account)
	return a, ok && a != nil
}
