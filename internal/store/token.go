package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/closetly/apiserver/types"
)

// TokenRepository handles persistence for opaque auth tokens.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetOrCreate returns the user's live token, creating one if absent. The
// upsert runs as a single statement against the unique constraint on
// user_id, so two concurrent logins for the same account observe the same
// token value.
func (r *TokenRepository) GetOrCreate(ctx context.Context, userID int) (types.AuthToken, error) {
	candidate, err := newTokenValue()
	if err != nil {
		return types.AuthToken{}, err
	}

	const query = `
		INSERT INTO auth_tokens (token, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET user_id = auth_tokens.user_id
		RETURNING token, user_id, created_at`
	var token types.AuthToken
	if err := r.db.QueryRowContext(ctx, query, candidate, userID, time.Now()).Scan(
		&token.Token,
		&token.UserID,
		&token.CreatedAt,
	); err != nil {
		return types.AuthToken{}, err
	}
	return token, nil
}

// GetUser resolves a token string to its owning user.
func (r *TokenRepository) GetUser(ctx context.Context, token string) (types.User, error) {
	const query = `
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.role, u.password_hash, u.created_at, u.updated_at
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = $1`
	var user types.User
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// Delete revokes a token.
func (r *TokenRepository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM auth_tokens WHERE token = $1`
	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func newTokenValue() (string, error) {
	var buf [20]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
