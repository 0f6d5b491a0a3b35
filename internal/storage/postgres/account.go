package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/levels-catalog/internal/domain/auth"
)

const (
	getAccountByUsernameSQL = `SELECT id, username, email, password_hash, created_at
		FROM accounts WHERE username = $1`

	getTokenSQL = `SELECT t.key, t.created_at, a.id, a.username, a.email, a.password_hash, a.created_at
		FROM auth_tokens t JOIN accounts a ON a.id = t.account_id
		WHERE t.key = $1`

	// The no-op update makes RETURNING yield the existing key on conflict.
	upsertTokenSQL = `INSERT INTO auth_tokens (key, account_id) VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET account_id = EXCLUDED.account_id
		RETURNING key`

	insertAccountSQL = `INSERT INTO accounts (username, email, password_hash)
		VALUES ($1, $2, $3) RETURNING id, created_at`
)

const uniqueViolation = "23505"

var _ auth.Repository = (*AccountRepository)(nil)

// AccountRepository stores accounts and their tokens.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns an AccountRepository that uses the given pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) FindAccountByUsername(ctx context.Context, username string) (*auth.Account, error) {
	var a auth.Account
	err := r.pool.QueryRow(ctx, getAccountByUsernameSQL, username).
		Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, errors.Wrapf(err, "find account %q", username)
	}
	return &a, nil
}

func (r *AccountRepository) FindToken(ctx context.Context, key string) (*auth.Token, error) {
	var t auth.Token
	err := r.pool.QueryRow(ctx, getTokenSQL, key).Scan(
		&t.Key, &t.CreatedAt,
		&t.Account.ID, &t.Account.Username, &t.Account.Email, &t.Account.PasswordHash, &t.Account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, errors.Wrap(err, "find token")
	}
	return &t, nil
}

func (r *AccountRepository) GetOrCreateToken(ctx context.Context, accountID int64, key string) (string, error) {
	var stored string
	if err := r.pool.QueryRow(ctx, upsertTokenSQL, key, accountID).Scan(&stored); err != nil {
		return "", errors.Wrapf(err, "upsert token for account %d", accountID)
	}
	return stored, nil
}

func (r *AccountRepository) CreateAccount(ctx context.Context, a *auth.Account) error {
	err := r.pool.QueryRow(ctx, insertAccountSQL, a.Username, a.Email, a.PasswordHash).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.ErrAccountExists
		}
		return errors.Wrapf(err, "insert account %q", a.Username)
	}
	return nil
}
