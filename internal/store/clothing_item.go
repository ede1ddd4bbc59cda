package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/closetly/apiserver/types"
)

// ClothingItemRepository handles persistence for clothing items.
//
// Every read that serves user requests is scoped to the owning account; the
// only unscoped lookup is GetAny, used when resolving outfit membership
// removals.
type ClothingItemRepository struct {
	db *sql.DB
}

func NewClothingItemRepository(db *sql.DB) *ClothingItemRepository {
	return &ClothingItemRepository{db: db}
}

const clothingItemColumns = `
	i.id, i.user_id, u.username, i.name, i.category_id, c.name,
	i.color, i.brand, i.image_key, i.notes, i.date_added, i.last_modified`

const clothingItemFrom = `
	FROM clothing_items i
	JOIN users u ON u.id = i.user_id
	LEFT JOIN clothing_categories c ON c.id = i.category_id`

func (r *ClothingItemRepository) List(ctx context.Context, ownerID, offset, limit int) ([]types.ClothingItem, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM clothing_items WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `SELECT` + clothingItemColumns + clothingItemFrom + `
		WHERE i.user_id = $1
		ORDER BY i.last_modified DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, ownerID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]types.ClothingItem, 0, limit)
	for rows.Next() {
		item, err := scanClothingItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Get fetches an item by id scoped to its owner. A non-owned id surfaces as
// ErrNotFound, indistinguishable from a missing record.
func (r *ClothingItemRepository) Get(ctx context.Context, id, ownerID int) (types.ClothingItem, error) {
	const query = `SELECT` + clothingItemColumns + clothingItemFrom + `
		WHERE i.id = $1 AND i.user_id = $2`
	return scanOneClothingItem(r.db.QueryRowContext(ctx, query, id, ownerID))
}

// GetAny fetches an item by id without ownership scoping.
func (r *ClothingItemRepository) GetAny(ctx context.Context, id int) (types.ClothingItem, error) {
	const query = `SELECT` + clothingItemColumns + clothingItemFrom + `
		WHERE i.id = $1`
	return scanOneClothingItem(r.db.QueryRowContext(ctx, query, id))
}

func (r *ClothingItemRepository) Create(ctx context.Context, item types.ClothingItem) (types.ClothingItem, error) {
	now := time.Now()
	item.DateAdded = now
	item.LastModified = now

	const query = `
		INSERT INTO clothing_items (user_id, category_id, name, color, brand, image_key, notes, date_added, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		item.UserID,
		item.CategoryID,
		item.Name,
		item.Color,
		item.Brand,
		item.ImageKey,
		item.Notes,
		item.DateAdded,
		item.LastModified,
	).Scan(&item.ID); err != nil {
		return types.ClothingItem{}, err
	}

	return r.Get(ctx, item.ID, item.UserID)
}

// Update rewrites the mutable fields of an item. The owner column is never
// part of the statement.
func (r *ClothingItemRepository) Update(ctx context.Context, item types.ClothingItem) (types.ClothingItem, error) {
	item.LastModified = time.Now()

	const query = `
		UPDATE clothing_items
		SET category_id = $1,
			name = $2,
			color = $3,
			brand = $4,
			image_key = $5,
			notes = $6,
			last_modified = $7
		WHERE id = $8 AND user_id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		item.CategoryID,
		item.Name,
		item.Color,
		item.Brand,
		item.ImageKey,
		item.Notes,
		item.LastModified,
		item.ID,
		item.UserID,
	)
	if err != nil {
		return types.ClothingItem{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.ClothingItem{}, err
	}
	if affected == 0 {
		return types.ClothingItem{}, ErrNotFound
	}

	return r.Get(ctx, item.ID, item.UserID)
}

func (r *ClothingItemRepository) Delete(ctx context.Context, id, ownerID int) error {
	const query = `DELETE FROM clothing_items WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClothingItem(row rowScanner) (types.ClothingItem, error) {
	var item types.ClothingItem
	var categoryID sql.NullInt64
	var categoryName sql.NullString
	if err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Username,
		&item.Name,
		&categoryID,
		&categoryName,
		&item.Color,
		&item.Brand,
		&item.ImageKey,
		&item.Notes,
		&item.DateAdded,
		&item.LastModified,
	); err != nil {
		return types.ClothingItem{}, err
	}
	if categoryID.Valid {
		id := int(categoryID.Int64)
		item.CategoryID = &id
		item.Category = &types.Category{ID: id, Name: categoryName.String}
	}
	return item, nil
}

func scanOneClothingItem(row *sql.Row) (types.ClothingItem, error) {
	item, err := scanClothingItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ClothingItem{}, ErrNotFound
		}
		return types.ClothingItem{}, err
	}
	return item, nil
}
