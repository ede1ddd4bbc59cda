package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/closetly/apiserver/internal/store"
	"github.com/closetly/apiserver/types"
)

// memDB is the shared in-memory state behind the fake repositories. The
// fakes mirror the store contracts the services rely on: owner scoping on
// item and outfit lookups, owned-subset filtering on outfit membership
// writes, and duplicate detection on unique columns.
type memDB struct {
	mu     sync.Mutex
	nextID int

	users      map[int]types.User
	tokens     map[int]types.AuthToken
	categories map[int]types.Category
	items      map[int]types.ClothingItem
	outfits    map[int]types.Outfit
	members    map[int]map[int]bool
}

func newMemDB() *memDB {
	return &memDB{
		users:      map[int]types.User{},
		tokens:     map[int]types.AuthToken{},
		categories: map[int]types.Category{},
		items:      map[int]types.ClothingItem{},
		outfits:    map[int]types.Outfit{},
		members:    map[int]map[int]bool{},
	}
}

func (d *memDB) id() int {
	d.nextID++
	return d.nextID
}

func (d *memDB) addUser(username string) types.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	user := types.User{
		ID:       d.id(),
		Username: username,
		Email:    username + "@example.com",
		Role:     "user",
	}
	d.users[user.ID] = user
	return user
}

func (d *memDB) addItem(ownerID int, name string) types.ClothingItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	item := types.ClothingItem{
		ID:       d.id(),
		UserID:   ownerID,
		Username: d.users[ownerID].Username,
		Name:     name,
	}
	d.items[item.ID] = item
	return item
}

func (d *memDB) addCategory(name string) types.Category {
	d.mu.Lock()
	defer d.mu.Unlock()
	category := types.Category{ID: d.id(), Name: name}
	d.categories[category.ID] = category
	return category
}

type fakeUserRepo struct{ db *memDB }

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Username == user.Username {
			return types.User{}, &store.DuplicateError{Field: "username"}
		}
		if existing.Email == user.Email {
			return types.User{}, &store.DuplicateError{Field: "email"}
		}
	}
	user.ID = r.db.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.db.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.users, id)
	return nil
}

type fakeTokenRepo struct{ db *memDB }

func (r *fakeTokenRepo) GetOrCreate(_ context.Context, userID int) (types.AuthToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if token, ok := r.db.tokens[userID]; ok {
		return token, nil
	}
	token := types.AuthToken{
		Token:     fmt.Sprintf("tok-%d-%d", userID, r.db.id()),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	r.db.tokens[userID] = token
	return token, nil
}

func (r *fakeTokenRepo) GetUser(_ context.Context, token string) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for userID, stored := range r.db.tokens {
		if stored.Token == token {
			return r.db.users[userID], nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeTokenRepo) Delete(_ context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for userID, stored := range r.db.tokens {
		if stored.Token == token {
			delete(r.db.tokens, userID)
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeCategoryRepo struct{ db *memDB }

func (r *fakeCategoryRepo) List(_ context.Context, offset, limit int) ([]types.Category, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := make([]types.Category, 0, len(r.db.categories))
	for _, category := range r.db.categories {
		all = append(all, category)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, offset, limit), len(all), nil
}

func (r *fakeCategoryRepo) Get(_ context.Context, id int) (types.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	category, ok := r.db.categories[id]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	return category, nil
}

func (r *fakeCategoryRepo) Create(_ context.Context, category types.Category) (types.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.categories {
		if existing.Name == category.Name {
			return types.Category{}, &store.DuplicateError{Field: "name"}
		}
	}
	category.ID = r.db.id()
	r.db.categories[category.ID] = category
	return category, nil
}

func (r *fakeCategoryRepo) Update(_ context.Context, category types.Category) (types.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.categories[category.ID]; !ok {
		return types.Category{}, store.ErrNotFound
	}
	for _, existing := range r.db.categories {
		if existing.ID != category.ID && existing.Name == category.Name {
			return types.Category{}, &store.DuplicateError{Field: "name"}
		}
	}
	r.db.categories[category.ID] = category
	return category, nil
}

func (r *fakeCategoryRepo) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.categories, id)
	for itemID, item := range r.db.items {
		if item.CategoryID != nil && *item.CategoryID == id {
			item.CategoryID = nil
			item.Category = nil
			r.db.items[itemID] = item
		}
	}
	return nil
}

type fakeItemRepo struct{ db *memDB }

func (r *fakeItemRepo) List(_ context.Context, ownerID, offset, limit int) ([]types.ClothingItem, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	owned := make([]types.ClothingItem, 0)
	for _, item := range r.db.items {
		if item.UserID == ownerID {
			owned = append(owned, item)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID > owned[j].ID })
	return page(owned, offset, limit), len(owned), nil
}

func (r *fakeItemRepo) Get(_ context.Context, id, ownerID int) (types.ClothingItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	item, ok := r.db.items[id]
	if !ok || item.UserID != ownerID {
		return types.ClothingItem{}, store.ErrNotFound
	}
	return item, nil
}

func (r *fakeItemRepo) GetAny(_ context.Context, id int) (types.ClothingItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	item, ok := r.db.items[id]
	if !ok {
		return types.ClothingItem{}, store.ErrNotFound
	}
	return item, nil
}

func (r *fakeItemRepo) Create(_ context.Context, item types.ClothingItem) (types.ClothingItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	item.ID = r.db.id()
	item.Username = r.db.users[item.UserID].Username
	item.DateAdded = time.Now()
	item.LastModified = item.DateAdded
	if item.CategoryID != nil {
		category := r.db.categories[*item.CategoryID]
		item.Category = &category
	}
	r.db.items[item.ID] = item
	return item, nil
}

func (r *fakeItemRepo) Update(_ context.Context, item types.ClothingItem) (types.ClothingItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	current, ok := r.db.items[item.ID]
	if !ok || current.UserID != item.UserID {
		return types.ClothingItem{}, store.ErrNotFound
	}
	item.Username = current.Username
	item.DateAdded = current.DateAdded
	item.LastModified = time.Now()
	item.Category = nil
	if item.CategoryID != nil {
		category := r.db.categories[*item.CategoryID]
		item.Category = &category
	}
	r.db.items[item.ID] = item
	return item, nil
}

func (r *fakeItemRepo) Delete(_ context.Context, id, ownerID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	item, ok := r.db.items[id]
	if !ok || item.UserID != ownerID {
		return store.ErrNotFound
	}
	delete(r.db.items, id)
	for _, members := range r.db.members {
		delete(members, id)
	}
	return nil
}

type fakeOutfitRepo struct{ db *memDB }

func (r *fakeOutfitRepo) List(_ context.Context, ownerID, offset, limit int) ([]types.Outfit, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	owned := make([]types.Outfit, 0)
	for _, outfit := range r.db.outfits {
		if outfit.UserID == ownerID {
			owned = append(owned, r.withItems(outfit))
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID > owned[j].ID })
	return page(owned, offset, limit), len(owned), nil
}

func (r *fakeOutfitRepo) Get(_ context.Context, id, ownerID int) (types.Outfit, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	outfit, ok := r.db.outfits[id]
	if !ok || outfit.UserID != ownerID {
		return types.Outfit{}, store.ErrNotFound
	}
	return r.withItems(outfit), nil
}

func (r *fakeOutfitRepo) Create(_ context.Context, outfit types.Outfit, itemIDs []int) (types.Outfit, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	outfit.ID = r.db.id()
	outfit.Username = r.db.users[outfit.UserID].Username
	outfit.CreatedAt = time.Now()
	outfit.UpdatedAt = outfit.CreatedAt
	r.db.outfits[outfit.ID] = outfit
	r.db.members[outfit.ID] = r.ownedSet(outfit.UserID, itemIDs)
	return r.withItems(outfit), nil
}

func (r *fakeOutfitRepo) Update(_ context.Context, outfit types.Outfit, itemIDs []int, replaceItems bool) (types.Outfit, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	current, ok := r.db.outfits[outfit.ID]
	if !ok || current.UserID != outfit.UserID {
		return types.Outfit{}, store.ErrNotFound
	}
	outfit.Username = current.Username
	outfit.CreatedAt = current.CreatedAt
	outfit.UpdatedAt = time.Now()
	r.db.outfits[outfit.ID] = outfit
	if replaceItems {
		r.db.members[outfit.ID] = r.ownedSet(outfit.UserID, itemIDs)
	}
	return r.withItems(outfit), nil
}

func (r *fakeOutfitRepo) Delete(_ context.Context, id, ownerID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	outfit, ok := r.db.outfits[id]
	if !ok || outfit.UserID != ownerID {
		return store.ErrNotFound
	}
	delete(r.db.outfits, id)
	delete(r.db.members, id)
	return nil
}

func (r *fakeOutfitRepo) ContainsItem(_ context.Context, outfitID, itemID int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.members[outfitID][itemID], nil
}

func (r *fakeOutfitRepo) AddItem(_ context.Context, outfitID, itemID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.members[outfitID] == nil {
		r.db.members[outfitID] = map[int]bool{}
	}
	r.db.members[outfitID][itemID] = true
	return nil
}

func (r *fakeOutfitRepo) RemoveItem(_ context.Context, outfitID, itemID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.members[outfitID], itemID)
	return nil
}

// ownedSet keeps only the ids that resolve to items owned by ownerID,
// matching the owner-scoped membership insert in the SQL store.
func (r *fakeOutfitRepo) ownedSet(ownerID int, itemIDs []int) map[int]bool {
	set := map[int]bool{}
	for _, id := range itemIDs {
		item, ok := r.db.items[id]
		if ok && item.UserID == ownerID {
			set[id] = true
		}
	}
	return set
}

func (r *fakeOutfitRepo) withItems(outfit types.Outfit) types.Outfit {
	items := make([]types.ClothingItem, 0)
	for id := range r.db.members[outfit.ID] {
		if item, ok := r.db.items[id]; ok {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	outfit.Items = items
	return outfit
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
