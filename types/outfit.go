package types

import "time"

// Outfit is a user-owned combination of clothing items.
//
// Membership is a set: an item is either in the outfit or not, and every
// member item must belong to the outfit's owner. That invariant is
// enforced by the outfit service, not by the store.
type Outfit struct {
	// ID is the unique identifier of the outfit.
	ID int `json:"id" db:"id"`

	// UserID is the owning account. Set by the server at creation and
	// immutable afterwards.
	UserID int `json:"user_id" db:"user_id"`

	// Username is the owner's username, joined in for responses.
	Username string `json:"user_username" db:"user_username"`

	// Name is the human-readable name of the outfit.
	Name string `json:"name" db:"name"`

	// Description holds free-form text about the outfit. Optional.
	Description string `json:"description" db:"description"`

	// Items are the member clothing items, loaded with the outfit.
	Items []ClothingItem `json:"clothing_items_details" db:"-"`

	// CreatedAt is the timestamp at which the outfit was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent mutation.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
