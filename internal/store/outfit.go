package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/closetly/apiserver/types"
	"github.com/lib/pq"
)

// OutfitRepository handles persistence for outfits and their membership
// relation to clothing items.
//
// Membership writes that accompany an outfit create/update run inside a
// single transaction, so a failure partway never leaves a partially
// replaced member set visible.
type OutfitRepository struct {
	db *sql.DB
}

func NewOutfitRepository(db *sql.DB) *OutfitRepository {
	return &OutfitRepository{db: db}
}

func (r *OutfitRepository) List(ctx context.Context, ownerID, offset, limit int) ([]types.Outfit, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM outfits WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT o.id, o.user_id, u.username, o.name, o.description, o.created_at, o.updated_at
		FROM outfits o
		JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1
		ORDER BY o.updated_at DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, ownerID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	outfits := make([]types.Outfit, 0, limit)
	for rows.Next() {
		var outfit types.Outfit
		if err := rows.Scan(
			&outfit.ID,
			&outfit.UserID,
			&outfit.Username,
			&outfit.Name,
			&outfit.Description,
			&outfit.CreatedAt,
			&outfit.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		outfits = append(outfits, outfit)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadItems(ctx, outfits); err != nil {
		return nil, 0, err
	}

	return outfits, total, nil
}

// Get fetches an outfit with its member items, scoped to its owner.
func (r *OutfitRepository) Get(ctx context.Context, id, ownerID int) (types.Outfit, error) {
	const query = `
		SELECT o.id, o.user_id, u.username, o.name, o.description, o.created_at, o.updated_at
		FROM outfits o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1 AND o.user_id = $2`
	var outfit types.Outfit
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&outfit.ID,
		&outfit.UserID,
		&outfit.Username,
		&outfit.Name,
		&outfit.Description,
		&outfit.CreatedAt,
		&outfit.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Outfit{}, ErrNotFound
		}
		return types.Outfit{}, err
	}

	outfits := []types.Outfit{outfit}
	if err := r.loadItems(ctx, outfits); err != nil {
		return types.Outfit{}, err
	}
	return outfits[0], nil
}

// Create inserts an outfit and its initial membership in one transaction.
// Candidate item ids not owned by the outfit's owner are silently dropped by
// the owner-scoped insert-select.
func (r *OutfitRepository) Create(ctx context.Context, outfit types.Outfit, itemIDs []int) (types.Outfit, error) {
	now := time.Now()
	outfit.CreatedAt = now
	outfit.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Outfit{}, err
	}
	defer tx.Rollback()

	const insertQuery = `
		INSERT INTO outfits (user_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertQuery,
		outfit.UserID,
		outfit.Name,
		outfit.Description,
		outfit.CreatedAt,
		outfit.UpdatedAt,
	).Scan(&outfit.ID); err != nil {
		return types.Outfit{}, err
	}

	if len(itemIDs) > 0 {
		if err := insertOwnedMembers(ctx, tx, outfit.ID, outfit.UserID, itemIDs); err != nil {
			return types.Outfit{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Outfit{}, err
	}

	return r.Get(ctx, outfit.ID, outfit.UserID)
}

// Update rewrites the outfit's fields and, when replaceItems is set,
// replaces the entire member set with the owned subset of itemIDs. Both run
// in one transaction.
func (r *OutfitRepository) Update(ctx context.Context, outfit types.Outfit, itemIDs []int, replaceItems bool) (types.Outfit, error) {
	outfit.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Outfit{}, err
	}
	defer tx.Rollback()

	const updateQuery = `
		UPDATE outfits
		SET name = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4 AND user_id = $5`
	result, err := tx.ExecContext(
		ctx,
		updateQuery,
		outfit.Name,
		outfit.Description,
		outfit.UpdatedAt,
		outfit.ID,
		outfit.UserID,
	)
	if err != nil {
		return types.Outfit{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Outfit{}, err
	}
	if affected == 0 {
		return types.Outfit{}, ErrNotFound
	}

	if replaceItems {
		const clearQuery = `DELETE FROM outfit_items WHERE outfit_id = $1`
		if _, err := tx.ExecContext(ctx, clearQuery, outfit.ID); err != nil {
			return types.Outfit{}, err
		}
		if len(itemIDs) > 0 {
			if err := insertOwnedMembers(ctx, tx, outfit.ID, outfit.UserID, itemIDs); err != nil {
				return types.Outfit{}, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Outfit{}, err
	}

	return r.Get(ctx, outfit.ID, outfit.UserID)
}

func (r *OutfitRepository) Delete(ctx context.Context, id, ownerID int) error {
	const query = `DELETE FROM outfits WHERE id = $1 AND user_id = $2`
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

// ContainsItem reports whether the item is currently a member of the outfit.
func (r *OutfitRepository) ContainsItem(ctx context.Context, outfitID, itemID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM outfit_items WHERE outfit_id = $1 AND item_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, outfitID, itemID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// AddItem inserts a single membership row and bumps the outfit's updated_at.
func (r *OutfitRepository) AddItem(ctx context.Context, outfitID, itemID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertQuery = `
		INSERT INTO outfit_items (outfit_id, item_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	if _, err := tx.ExecContext(ctx, insertQuery, outfitID, itemID); err != nil {
		return err
	}
	if err := touchOutfit(ctx, tx, outfitID); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveItem deletes a single membership row and bumps the outfit's updated_at.
func (r *OutfitRepository) RemoveItem(ctx context.Context, outfitID, itemID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const deleteQuery = `DELETE FROM outfit_items WHERE outfit_id = $1 AND item_id = $2`
	if _, err := tx.ExecContext(ctx, deleteQuery, outfitID, itemID); err != nil {
		return err
	}
	if err := touchOutfit(ctx, tx, outfitID); err != nil {
		return err
	}
	return tx.Commit()
}

// insertOwnedMembers adds the owner's subset of itemIDs to the outfit.
// Non-owned ids simply match no rows; duplicates collapse on the primary key.
func insertOwnedMembers(ctx context.Context, tx *sql.Tx, outfitID, ownerID int, itemIDs []int) error {
	const query = `
		INSERT INTO outfit_items (outfit_id, item_id)
		SELECT $1, i.id
		FROM clothing_items i
		WHERE i.id = ANY($2) AND i.user_id = $3
		ON CONFLICT DO NOTHING`
	_, err := tx.ExecContext(ctx, query, outfitID, pq.Array(itemIDs), ownerID)
	return err
}

func touchOutfit(ctx context.Context, tx *sql.Tx, outfitID int) error {
	const query = `UPDATE outfits SET updated_at = $1 WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, time.Now(), outfitID)
	return err
}

// loadItems attaches member items to each outfit in place.
func (r *OutfitRepository) loadItems(ctx context.Context, outfits []types.Outfit) error {
	if len(outfits) == 0 {
		return nil
	}

	ids := make([]int, 0, len(outfits))
	for i := range outfits {
		outfits[i].Items = []types.ClothingItem{}
		ids = append(ids, outfits[i].ID)
	}

	const query = `
		SELECT m.outfit_id,` + clothingItemColumns + clothingItemFrom + `
		JOIN outfit_items m ON m.item_id = i.id
		WHERE m.outfit_id = ANY($1)
		ORDER BY m.outfit_id, i.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := make(map[int]*types.Outfit, len(outfits))
	for i := range outfits {
		byID[outfits[i].ID] = &outfits[i]
	}

	for rows.Next() {
		var outfitID int
		var item types.ClothingItem
		var categoryID sql.NullInt64
		var categoryName sql.NullString
		if err := rows.Scan(
			&outfitID,
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
			return err
		}
		if categoryID.Valid {
			id := int(categoryID.Int64)
			item.CategoryID = &id
			item.Category = &types.Category{ID: id, Name: categoryName.String}
		}
		if outfit, ok := byID[outfitID]; ok {
			outfit.Items = append(outfit.Items, item)
		}
	}

	return rows.Err()
}
