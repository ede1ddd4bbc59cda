package types

import "time"

// AuthToken is an opaque API token bound one-to-one to a user account.
// A user has at most one live token; login and registration reuse the
// existing token instead of issuing a second one.
type AuthToken struct {
	// Token is the opaque token string presented as a bearer credential.
	Token string `json:"token" db:"token"`

	// UserID is the account the token belongs to.
	UserID int `json:"user_id" db:"user_id"`

	// CreatedAt is the timestamp at which the token was issued.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
