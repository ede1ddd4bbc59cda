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

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Category, int, error)
	Get(ctx context.Context, id int) (types.Category, error)
	Create(ctx context.Context, category types.Category) (types.Category, error)
	Update(ctx context.Context, category types.Category) (types.Category, error)
	Delete(ctx context.Context, id int) error
}

// CategoryService encapsulates category use-cases. Categories are shared
// reference data: reads are open to everyone, writes are admin-only.
type CategoryService struct {
	repo CategoryRepository
}

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context, actor authz.Actor, offset, limit int) ([]types.Category, int, error) {
	if !authz.CanAccess(actor, authz.ResourceCategory, authz.ActionRead, 0) {
		return nil, 0, apperr.Forbidden("forbidden")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *CategoryService) Get(ctx context.Context, actor authz.Actor, id int) (types.Category, error) {
	if !authz.CanAccess(actor, authz.ResourceCategory, authz.ActionRead, 0) {
		return types.Category{}, apperr.Forbidden("forbidden")
	}
	category, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Category{}, apperr.NotFound("category not found")
		}
		return types.Category{}, err
	}
	return category, nil
}

func (s *CategoryService) Create(ctx context.Context, actor authz.Actor, name string) (types.Category, error) {
	if !authz.CanAccess(actor, authz.ResourceCategory, authz.ActionCreate, 0) {
		return types.Category{}, apperr.Forbidden("admin access required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return types.Category{}, apperr.FieldErrors(map[string]string{"name": "this field is required"})
	}

	category, err := s.repo.Create(ctx, types.Category{Name: name})
	if err != nil {
		return types.Category{}, translateCategoryErr(err)
	}
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, actor authz.Actor, id int, name string) (types.Category, error) {
	if !authz.CanAccess(actor, authz.ResourceCategory, authz.ActionUpdate, 0) {
		return types.Category{}, apperr.Forbidden("admin access required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return types.Category{}, apperr.FieldErrors(map[string]string{"name": "this field is required"})
	}

	category, err := s.repo.Update(ctx, types.Category{ID: id, Name: name})
	if err != nil {
		return types.Category{}, translateCategoryErr(err)
	}
	return category, nil
}

// Delete removes a category. Items referencing it are kept; their category
// reference is cleared by the store relationship.
func (s *CategoryService) Delete(ctx context.Context, actor authz.Actor, id int) error {
	if !authz.CanAccess(actor, authz.ResourceCategory, authz.ActionDelete, 0) {
		return apperr.Forbidden("admin access required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("category not found")
		}
		return err
	}
	return nil
}

func translateCategoryErr(err error) error {
	var dup *store.DuplicateError
	if errors.As(err, &dup) {
		return apperr.FieldErrors(map[string]string{dup.Field: "already exists"})
	}
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("category not found")
	}
	return err
}
