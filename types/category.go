package types

// Category is a shared clothing category (e.g., "Shirts", "Shoes").
// Categories are global reference data: they are owned by no user and
// any item may reference one.
type Category struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
