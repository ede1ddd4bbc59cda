package services

import (
	"context"
	"errors"
	"strings"

	"github.com/closetly/apiserver/internal/apperr"
	"github.com/closetly/apiserver/internal/authz"
	"github.com/closetly/apiserver/internal/store"
	"github.com/closetly/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const defaultUserRole = "user"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// TokenRepository defines persistence operations for opaque auth tokens.
type TokenRepository interface {
	GetOrCreate(ctx context.Context, userID int) (types.AuthToken, error)
	GetUser(ctx context.Context, token string) (types.User, error)
	Delete(ctx context.Context, token string) error
}

// AuthService handles registration, login, and token resolution.
type AuthService struct {
	users  UserRepository
	tokens TokenRepository
}

func NewAuthService(users UserRepository, tokens TokenRepository) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// RegisterInput is the registration payload after boundary decoding.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an account and issues its token. Duplicate username or
// email surfaces as a field-level validation error; no account is created in
// that case.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (types.User, types.AuthToken, error) {
	fields := map[string]string{}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Username == "" {
		fields["username"] = "this field is required"
	}
	if input.Email == "" {
		fields["email"] = "this field is required"
	}
	if input.Password == "" {
		fields["password"] = "this field is required"
	}
	if len(fields) > 0 {
		return types.User{}, types.AuthToken{}, apperr.FieldErrors(fields)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, types.AuthToken{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         defaultUserRole,
		PasswordHash: string(hashed),
	})
	if err != nil {
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			return types.User{}, types.AuthToken{}, apperr.FieldErrors(map[string]string{
				dup.Field: "already exists",
			})
		}
		return types.User{}, types.AuthToken{}, err
	}

	token, err := s.tokens.GetOrCreate(ctx, user.ID)
	if err != nil {
		return types.User{}, types.AuthToken{}, err
	}

	return user, token, nil
}

// Login verifies credentials and returns the account's live token,
// creating one on first login. Unknown user and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (types.User, types.AuthToken, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, types.AuthToken{}, apperr.Validation("missing credentials")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, types.AuthToken{}, apperr.Unauthorized("invalid credentials")
		}
		return types.User{}, types.AuthToken{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, types.AuthToken{}, apperr.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.GetOrCreate(ctx, user.ID)
	if err != nil {
		return types.User{}, types.AuthToken{}, err
	}

	return user, token, nil
}

// Authenticate resolves a bearer token to its account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return types.User{}, apperr.Unauthorized("unauthorized")
	}

	user, err := s.tokens.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Unauthorized("unauthorized")
		}
		return types.User{}, err
	}
	return user, nil
}

// ActorFor builds the policy actor for a resolved user.
func ActorFor(user types.User) authz.Actor {
	return authz.Actor{ID: user.ID, Role: user.Role, Authenticated: true}
}
