package services

import (
	"context"
	"errors"
	"strings"

	"github.com/closetly/apiserver/internal/apperr"
	"github.com/closetly/apiserver/internal/authz"
	"github.com/closetly/apiserver/internal/store"
	"github.com/closetly/apiserver/types"
)

// OutfitRepository defines persistence operations for outfits and their
// membership relation.
type OutfitRepository interface {
	List(ctx context.Context, ownerID, offset, limit int) ([]types.Outfit, int, error)
	Get(ctx context.Context, id, ownerID int) (types.Outfit, error)
	Create(ctx context.Context, outfit types.Outfit, itemIDs []int) (types.Outfit, error)
	Update(ctx context.Context, outfit types.Outfit, itemIDs []int, replaceItems bool) (types.Outfit, error)
	Delete(ctx context.Context, id, ownerID int) error
	ContainsItem(ctx context.Context, outfitID, itemID int) (bool, error)
	AddItem(ctx context.Context, outfitID, itemID int) error
	RemoveItem(ctx context.Context, outfitID, itemID int) error
}

// OutfitInput carries the client-writable outfit fields. ItemIDs is the
// candidate member list; ids the actor does not own are dropped silently.
type OutfitInput struct {
	Name        string
	Description string
	ItemIDs     []int
	// SetItems distinguishes "replace membership with ItemIDs" from
	// "leave membership alone" on update.
	SetItems bool
}

// OutfitService encapsulates outfit use-cases, including the membership
// manager that keeps every member item owned by the outfit's owner.
type OutfitService struct {
	repo   OutfitRepository
	items  ClothingItemRepository
	events *EventPublisher
}

func NewOutfitService(repo OutfitRepository, items ClothingItemRepository, events *EventPublisher) *OutfitService {
	return &OutfitService{repo: repo, items: items, events: events}
}

func (s *OutfitService) List(ctx context.Context, actor authz.Actor, offset, limit int) ([]types.Outfit, int, error) {
	if !authz.CanAccess(actor, authz.ResourceOutfit, authz.ActionRead, actor.ID) {
		return nil, 0, apperr.Unauthorized("unauthorized")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, actor.ID, offset, limit)
}

func (s *OutfitService) Get(ctx context.Context, actor authz.Actor, id int) (types.Outfit, error) {
	if !authz.CanAccess(actor, authz.ResourceOutfit, authz.ActionRead, actor.ID) {
		return types.Outfit{}, apperr.Unauthorized("unauthorized")
	}
	outfit, err := s.repo.Get(ctx, id, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Outfit{}, apperr.NotFound("outfit not found")
		}
		return types.Outfit{}, err
	}
	return outfit, nil
}

// Create stores a new outfit owned by the actor. The initial membership is
// the owned subset of input.ItemIDs.
func (s *OutfitService) Create(ctx context.Context, actor authz.Actor, input OutfitInput) (types.Outfit, error) {
	if !authz.CanAccess(actor, authz.ResourceOutfit, authz.ActionCreate, actor.ID) {
		return types.Outfit{}, apperr.Unauthorized("unauthorized")
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return types.Outfit{}, apperr.FieldErrors(map[string]string{"name": "this field is required"})
	}

	outfit, err := s.repo.Create(ctx, types.Outfit{
		UserID:      actor.ID,
		Name:        input.Name,
		Description: input.Description,
	}, input.ItemIDs)
	if err != nil {
		return types.Outfit{}, err
	}

	s.events.publish(ctx, "created", "outfit", outfit.ID, actor.ID)
	return outfit, nil
}

// Update rewrites the outfit's fields and, when input.SetItems is set,
// replaces the full membership with the owned subset of input.ItemIDs. Field
// update and membership replace are atomic.
func (s *OutfitService) Update(ctx context.Context, actor authz.Actor, id int, input OutfitInput) (types.Outfit, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return types.Outfit{}, err
	}
	if !authz.CanAccess(actor, authz.ResourceOutfit, authz.ActionUpdate, current.UserID) {
		return types.Outfit{}, apperr.Forbidden("forbidden")
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return types.Outfit{}, apperr.FieldErrors(map[string]string{"name": "this field is required"})
	}

	outfit, err := s.repo.Update(ctx, types.Outfit{
		ID:          id,
		UserID:      current.UserID,
		Name:        input.Name,
		Description: input.Description,
	}, input.ItemIDs, input.SetItems)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Outfit{}, apperr.NotFound("outfit not found")
		}
		return types.Outfit{}, err
	}

	s.events.publish(ctx, "updated", "outfit", outfit.ID, actor.ID)
	return outfit, nil
}

func (s *OutfitService) Delete(ctx context.Context, actor authz.Actor, id int) error {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !authz.CanAccess(actor, authz.ResourceOutfit, authz.ActionDelete, current.UserID) {
		return apperr.Forbidden("forbidden")
	}

	if err := s.repo.Delete(ctx, id, actor.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("outfit not found")
		}
		return err
	}

	s.events.publish(ctx, "deleted", "outfit", id, actor.ID)
	return nil
}

// AddItem inserts a single item into the outfit. The item is resolved
// scoped to the actor, so an id the actor does not own reads as missing.
// Adding an existing member is idempotent and returns the unchanged outfit.
func (s *OutfitService) AddItem(ctx context.Context, actor authz.Actor, outfitID, itemID int) (types.Outfit, error) {
	outfit, err := s.Get(ctx, actor, outfitID)
	if err != nil {
		return types.Outfit{}, err
	}
	if !authz.CanAccess(actor, authz.ResourceOutfit, authz.ActionUpdate, outfit.UserID) {
		return types.Outfit{}, apperr.Forbidden("forbidden")
	}

	if _, err := s.items.Get(ctx, itemID, actor.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Outfit{}, apperr.NotFound("clothing item not found or does not belong to you")
		}
		return types.Outfit{}, err
	}

	member, err := s.repo.ContainsItem(ctx, outfitID, itemID)
	if err != nil {
		return types.Outfit{}, err
	}
	if member {
		return outfit, nil
	}

	if err := s.repo.AddItem(ctx, outfitID, itemID); err != nil {
		return types.Outfit{}, err
	}

	s.events.publish(ctx, "updated", "outfit", outfitID, actor.ID)
	return s.Get(ctx, actor, outfitID)
}

// RemoveItem removes a single item from the outfit. The item is resolved
// without ownership scoping: membership already implies it was
// owner-validated at insertion time. Removing a non-member is a validation
// error; an unknown id is not found.
func (s *OutfitService) RemoveItem(ctx context.Context, actor authz.Actor, outfitID, itemID int) (types.Outfit, error) {
	outfit, err := s.Get(ctx, actor, outfitID)
	if err != nil {
		return types.Outfit{}, err
	}
	if !authz.CanAccess(actor, authz.ResourceOutfit, authz.ActionUpdate, outfit.UserID) {
		return types.Outfit{}, apperr.Forbidden("forbidden")
	}

	if _, err := s.items.GetAny(ctx, itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Outfit{}, apperr.NotFound("clothing item not found")
		}
		return types.Outfit{}, err
	}

	member, err := s.repo.ContainsItem(ctx, outfitID, itemID)
	if err != nil {
		return types.Outfit{}, err
	}
	if !member {
		return types.Outfit{}, apperr.Validation("clothing item is not in this outfit")
	}

	if err := s.repo.RemoveItem(ctx, outfitID, itemID); err != nil {
		return types.Outfit{}, err
	}

	s.events.publish(ctx, "updated", "outfit", outfitID, actor.ID)
	return s.Get(ctx, actor, outfitID)
}
