package types

import "time"

// ClothingItem represents a single piece of clothing in a user's wardrobe.
type ClothingItem struct {
	// ID is the unique identifier of the item.
	ID int `json:"id" db:"id"`

	// UserID is the owning account. Set by the server at creation and
	// immutable afterwards.
	UserID int `json:"user_id" db:"user_id"`

	// Username is the owner's username, joined in for responses.
	Username string `json:"user_username" db:"user_username"`

	// Name is the human-readable name of the item.
	Name string `json:"name" db:"name"`

	// CategoryID references an optional shared category. Nulled (not
	// cascaded) when the category is deleted.
	CategoryID *int `json:"category" db:"category_id"`

	// Category is the joined category record when CategoryID is set.
	Category *Category `json:"category_detail" db:"-"`

	// Color is a free-form color description. Optional.
	Color string `json:"color" db:"color"`

	// Brand is the item's brand. Optional.
	Brand string `json:"brand" db:"brand"`

	// ImageKey is the object-storage key of the item's photo, empty when
	// no photo has been uploaded.
	ImageKey string `json:"image" db:"image_key"`

	// Notes holds free-form user notes.
	Notes string `json:"notes" db:"notes"`

	// DateAdded is the timestamp at which the item was created.
	DateAdded time.Time `json:"date_added" db:"date_added"`

	// LastModified is the timestamp of the most recent mutation.
	LastModified time.Time `json:"last_modified" db:"last_modified"`
}
