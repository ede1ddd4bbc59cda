package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/closetly/apiserver/internal/apperr"
	"github.com/closetly/apiserver/internal/authz"
	"github.com/closetly/apiserver/internal/storage"
	"github.com/closetly/apiserver/internal/store"
	"github.com/closetly/apiserver/types"
)

const imageKeyPrefix = "clothing_images"

// ClothingItemRepository defines persistence operations for clothing items.
type ClothingItemRepository interface {
	List(ctx context.Context, ownerID, offset, limit int) ([]types.ClothingItem, int, error)
	Get(ctx context.Context, id, ownerID int) (types.ClothingItem, error)
	GetAny(ctx context.Context, id int) (types.ClothingItem, error)
	Create(ctx context.Context, item types.ClothingItem) (types.ClothingItem, error)
	Update(ctx context.Context, item types.ClothingItem) (types.ClothingItem, error)
	Delete(ctx context.Context, id, ownerID int) error
}

// ImageUpload is an uploaded item photo.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ClothingItemInput carries the client-writable item fields. The owner is
// never part of the input: it is always the acting user.
type ClothingItemInput struct {
	Name       string
	CategoryID *int
	Color      string
	Brand      string
	Notes      string
	Image      *ImageUpload
}

// ClothingItemService encapsulates clothing item use-cases. All reads and
// writes are scoped to the acting owner.
type ClothingItemService struct {
	repo       ClothingItemRepository
	categories CategoryRepository
	storage    *storage.Storage
	events     *EventPublisher
}

func NewClothingItemService(repo ClothingItemRepository, categories CategoryRepository, store *storage.Storage, events *EventPublisher) *ClothingItemService {
	return &ClothingItemService{
		repo:       repo,
		categories: categories,
		storage:    store,
		events:     events,
	}
}

func (s *ClothingItemService) List(ctx context.Context, actor authz.Actor, offset, limit int) ([]types.ClothingItem, int, error) {
	if !authz.CanAccess(actor, authz.ResourceClothingItem, authz.ActionRead, actor.ID) {
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

func (s *ClothingItemService) Get(ctx context.Context, actor authz.Actor, id int) (types.ClothingItem, error) {
	if !authz.CanAccess(actor, authz.ResourceClothingItem, authz.ActionRead, actor.ID) {
		return types.ClothingItem{}, apperr.Unauthorized("unauthorized")
	}
	item, err := s.repo.Get(ctx, id, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ClothingItem{}, apperr.NotFound("clothing item not found")
		}
		return types.ClothingItem{}, err
	}
	return item, nil
}

// Create stores a new item owned by the actor, uploading the photo first
// when one is attached.
func (s *ClothingItemService) Create(ctx context.Context, actor authz.Actor, input ClothingItemInput) (types.ClothingItem, error) {
	if !authz.CanAccess(actor, authz.ResourceClothingItem, authz.ActionCreate, actor.ID) {
		return types.ClothingItem{}, apperr.Unauthorized("unauthorized")
	}
	if err := s.validate(ctx, &input); err != nil {
		return types.ClothingItem{}, err
	}

	imageKey := ""
	if input.Image != nil {
		key, err := s.putImage(ctx, actor.ID, input.Image)
		if err != nil {
			return types.ClothingItem{}, err
		}
		imageKey = key
	}

	item, err := s.repo.Create(ctx, types.ClothingItem{
		UserID:     actor.ID,
		Name:       input.Name,
		CategoryID: input.CategoryID,
		Color:      input.Color,
		Brand:      input.Brand,
		ImageKey:   imageKey,
		Notes:      input.Notes,
	})
	if err != nil {
		return types.ClothingItem{}, err
	}

	s.events.publish(ctx, "created", "clothing_item", item.ID, actor.ID)
	return item, nil
}

// Update rewrites an item's client-writable fields. The owner is immutable;
// a replaced photo evicts the previous object.
func (s *ClothingItemService) Update(ctx context.Context, actor authz.Actor, id int, input ClothingItemInput) (types.ClothingItem, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return types.ClothingItem{}, err
	}
	if !authz.CanAccess(actor, authz.ResourceClothingItem, authz.ActionUpdate, current.UserID) {
		return types.ClothingItem{}, apperr.Forbidden("forbidden")
	}
	if err := s.validate(ctx, &input); err != nil {
		return types.ClothingItem{}, err
	}

	imageKey := current.ImageKey
	if input.Image != nil {
		key, err := s.putImage(ctx, actor.ID, input.Image)
		if err != nil {
			return types.ClothingItem{}, err
		}
		if current.ImageKey != "" {
			_ = s.storage.Delete(ctx, current.ImageKey)
		}
		imageKey = key
	}

	item, err := s.repo.Update(ctx, types.ClothingItem{
		ID:         id,
		UserID:     current.UserID,
		Name:       input.Name,
		CategoryID: input.CategoryID,
		Color:      input.Color,
		Brand:      input.Brand,
		ImageKey:   imageKey,
		Notes:      input.Notes,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ClothingItem{}, apperr.NotFound("clothing item not found")
		}
		return types.ClothingItem{}, err
	}

	s.events.publish(ctx, "updated", "clothing_item", item.ID, actor.ID)
	return item, nil
}

func (s *ClothingItemService) Delete(ctx context.Context, actor authz.Actor, id int) error {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !authz.CanAccess(actor, authz.ResourceClothingItem, authz.ActionDelete, current.UserID) {
		return apperr.Forbidden("forbidden")
	}

	if err := s.repo.Delete(ctx, id, actor.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("clothing item not found")
		}
		return err
	}

	if current.ImageKey != "" && s.storage != nil {
		_ = s.storage.Delete(ctx, current.ImageKey)
	}

	s.events.publish(ctx, "deleted", "clothing_item", id, actor.ID)
	return nil
}

func (s *ClothingItemService) validate(ctx context.Context, input *ClothingItemInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return apperr.FieldErrors(map[string]string{"name": "this field is required"})
	}

	if input.CategoryID != nil {
		if _, err := s.categories.Get(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.FieldErrors(map[string]string{"category": "invalid category"})
			}
			return err
		}
	}
	return nil
}

func (s *ClothingItemService) putImage(ctx context.Context, ownerID int, image *ImageUpload) (string, error) {
	if s.storage == nil {
		return "", errors.New("image storage is not configured")
	}
	if len(image.Data) == 0 {
		return "", apperr.FieldErrors(map[string]string{"image": "empty image upload"})
	}

	key, err := newImageKey(ownerID, image.Filename)
	if err != nil {
		return "", err
	}

	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reader := bytes.NewReader(image.Data)
	if err := s.storage.Put(ctx, key, reader, int64(len(image.Data)), contentType); err != nil {
		return "", err
	}
	return key, nil
}

func newImageKey(ownerID int, filename string) (string, error) {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	return fmt.Sprintf("%s/%d/%s%s", imageKeyPrefix, ownerID, hex.EncodeToString(buf[:]), ext), nil
}
