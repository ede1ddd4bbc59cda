package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/closetly/apiserver/internal/services"
	"github.com/closetly/apiserver/internal/storage"
	"github.com/closetly/apiserver/internal/store"
	"github.com/closetly/apiserver/types"
)

// testEnv wires the full handler stack against in-memory repositories and
// object storage, mirroring the production route layout.
type testEnv struct {
	router  *chi.Mux
	users   map[int]types.User
	tokens  map[int]types.AuthToken
	cats    map[int]types.Category
	items   map[int]types.ClothingItem
	outfits map[int]types.Outfit
	members map[int]map[int]bool
	objects map[string][]byte
	nextID  int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:   map[int]types.User{},
		tokens:  map[int]types.AuthToken{},
		cats:    map[int]types.Category{},
		items:   map[int]types.ClothingItem{},
		outfits: map[int]types.Outfit{},
		members: map[int]map[int]bool{},
		objects: map[string][]byte{},
	}

	objectStorage := storage.NewStorage(&memObjectStorage{env: env})
	authService := services.NewAuthService(&envUserRepo{env}, &envTokenRepo{env})
	categoryService := services.NewCategoryService(&envCategoryRepo{env})
	itemService := services.NewClothingItemService(&envItemRepo{env}, &envCategoryRepo{env}, objectStorage, nil)
	outfitService := services.NewOutfitService(&envOutfitRepo{env}, &envItemRepo{env}, nil)

	authMiddleware := RequireAuth(authService)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authService)
	})
	router.Route("/categories", func(r chi.Router) {
		CategoryRouter(r, categoryService, authMiddleware)
	})
	router.Route("/clothing-items", func(r chi.Router) {
		ClothingItemRouter(r, itemService, authMiddleware)
	})
	router.Route("/outfits", func(r chi.Router) {
		OutfitRouter(r, outfitService, authMiddleware)
	})
	router.Route("/media", func(r chi.Router) {
		MediaRouter(r, objectStorage)
	})
	env.router = router
	return env
}

func (e *testEnv) id() int {
	e.nextID++
	return e.nextID
}

// register creates an account through the API and returns its bearer token.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"s3cret"}`, username, username)
	resp := e.do(t, http.MethodPost, "/auth/register", "", strings.NewReader(body), "application/json")
	if resp.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, resp.Code, resp.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &out)
	return out.Token
}

// promoteAdmin flips an account's role directly in the backing store.
func (e *testEnv) promoteAdmin(username string) {
	for id, user := range e.users {
		if user.Username == username {
			user.Role = "admin"
			e.users[id] = user
		}
	}
}

func (e *testEnv) addCategory(name string) types.Category {
	category := types.Category{ID: e.id(), Name: name}
	e.cats[category.ID] = category
	return category
}

func (e *testEnv) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return e.do(t, method, target, token, reader, "application/json")
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
}

// --- in-memory backends ---

type memObjectStorage struct {
	env *testEnv
}

func (s *memObjectStorage) EnsureBucket(context.Context) error { return nil }

func (s *memObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.env.objects[key] = data
	return nil
}

func (s *memObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.env.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStorage) Delete(_ context.Context, key string) error {
	delete(s.env.objects, key)
	return nil
}

func (s *memObjectStorage) Bucket() string { return "test" }

type envUserRepo struct{ env *testEnv }

func (r *envUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.env.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *envUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range r.env.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *envUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	for _, existing := range r.env.users {
		if existing.Username == user.Username {
			return types.User{}, &store.DuplicateError{Field: "username"}
		}
		if existing.Email == user.Email {
			return types.User{}, &store.DuplicateError{Field: "email"}
		}
	}
	user.ID = r.env.id()
	r.env.users[user.ID] = user
	return user, nil
}

func (r *envUserRepo) Delete(_ context.Context, id int) error {
	delete(r.env.users, id)
	return nil
}

type envTokenRepo struct{ env *testEnv }

func (r *envTokenRepo) GetOrCreate(_ context.Context, userID int) (types.AuthToken, error) {
	if token, ok := r.env.tokens[userID]; ok {
		return token, nil
	}
	token := types.AuthToken{
		Token:     fmt.Sprintf("tok-%d", userID),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	r.env.tokens[userID] = token
	return token, nil
}

func (r *envTokenRepo) GetUser(_ context.Context, token string) (types.User, error) {
	for userID, stored := range r.env.tokens {
		if stored.Token == token {
			return r.env.users[userID], nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *envTokenRepo) Delete(_ context.Context, token string) error {
	for userID, stored := range r.env.tokens {
		if stored.Token == token {
			delete(r.env.tokens, userID)
			return nil
		}
	}
	return store.ErrNotFound
}

type envCategoryRepo struct{ env *testEnv }

func (r *envCategoryRepo) List(_ context.Context, offset, limit int) ([]types.Category, int, error) {
	all := make([]types.Category, 0, len(r.env.cats))
	for _, category := range r.env.cats {
		all = append(all, category)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return slicePage(all, offset, limit), len(all), nil
}

func (r *envCategoryRepo) Get(_ context.Context, id int) (types.Category, error) {
	category, ok := r.env.cats[id]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	return category, nil
}

func (r *envCategoryRepo) Create(_ context.Context, category types.Category) (types.Category, error) {
	for _, existing := range r.env.cats {
		if existing.Name == category.Name {
			return types.Category{}, &store.DuplicateError{Field: "name"}
		}
	}
	category.ID = r.env.id()
	r.env.cats[category.ID] = category
	return category, nil
}

func (r *envCategoryRepo) Update(_ context.Context, category types.Category) (types.Category, error) {
	if _, ok := r.env.cats[category.ID]; !ok {
		return types.Category{}, store.ErrNotFound
	}
	r.env.cats[category.ID] = category
	return category, nil
}

func (r *envCategoryRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.env.cats[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.env.cats, id)
	return nil
}

type envItemRepo struct{ env *testEnv }

func (r *envItemRepo) List(_ context.Context, ownerID, offset, limit int) ([]types.ClothingItem, int, error) {
	owned := make([]types.ClothingItem, 0)
	for _, item := range r.env.items {
		if item.UserID == ownerID {
			owned = append(owned, item)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID > owned[j].ID })
	return slicePage(owned, offset, limit), len(owned), nil
}

func (r *envItemRepo) Get(_ context.Context, id, ownerID int) (types.ClothingItem, error) {
	item, ok := r.env.items[id]
	if !ok || item.UserID != ownerID {
		return types.ClothingItem{}, store.ErrNotFound
	}
	return item, nil
}

func (r *envItemRepo) GetAny(_ context.Context, id int) (types.ClothingItem, error) {
	item, ok := r.env.items[id]
	if !ok {
		return types.ClothingItem{}, store.ErrNotFound
	}
	return item, nil
}

func (r *envItemRepo) Create(_ context.Context, item types.ClothingItem) (types.ClothingItem, error) {
	item.ID = r.env.id()
	item.Username = r.env.users[item.UserID].Username
	item.DateAdded = time.Now()
	item.LastModified = item.DateAdded
	item.Category = nil
	if item.CategoryID != nil {
		category := r.env.cats[*item.CategoryID]
		item.Category = &category
	}
	r.env.items[item.ID] = item
	return item, nil
}

func (r *envItemRepo) Update(_ context.Context, item types.ClothingItem) (types.ClothingItem, error) {
	current, ok := r.env.items[item.ID]
	if !ok || current.UserID != item.UserID {
		return types.ClothingItem{}, store.ErrNotFound
	}
	item.Username = current.Username
	item.DateAdded = current.DateAdded
	item.LastModified = time.Now()
	item.Category = nil
	if item.CategoryID != nil {
		category := r.env.cats[*item.CategoryID]
		item.Category = &category
	}
	r.env.items[item.ID] = item
	return item, nil
}

func (r *envItemRepo) Delete(_ context.Context, id, ownerID int) error {
	item, ok := r.env.items[id]
	if !ok || item.UserID != ownerID {
		return store.ErrNotFound
	}
	delete(r.env.items, id)
	for _, members := range r.env.members {
		delete(members, id)
	}
	return nil
}

type envOutfitRepo struct{ env *testEnv }

func (r *envOutfitRepo) List(_ context.Context, ownerID, offset, limit int) ([]types.Outfit, int, error) {
	owned := make([]types.Outfit, 0)
	for _, outfit := range r.env.outfits {
		if outfit.UserID == ownerID {
			owned = append(owned, r.withItems(outfit))
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID > owned[j].ID })
	return slicePage(owned, offset, limit), len(owned), nil
}

func (r *envOutfitRepo) Get(_ context.Context, id, ownerID int) (types.Outfit, error) {
	outfit, ok := r.env.outfits[id]
	if !ok || outfit.UserID != ownerID {
		return types.Outfit{}, store.ErrNotFound
	}
	return r.withItems(outfit), nil
}

func (r *envOutfitRepo) Create(_ context.Context, outfit types.Outfit, itemIDs []int) (types.Outfit, error) {
	outfit.ID = r.env.id()
	outfit.Username = r.env.users[outfit.UserID].Username
	outfit.CreatedAt = time.Now()
	outfit.UpdatedAt = outfit.CreatedAt
	r.env.outfits[outfit.ID] = outfit
	r.env.members[outfit.ID] = r.ownedSet(outfit.UserID, itemIDs)
	return r.withItems(outfit), nil
}

func (r *envOutfitRepo) Update(_ context.Context, outfit types.Outfit, itemIDs []int, replaceItems bool) (types.Outfit, error) {
	current, ok := r.env.outfits[outfit.ID]
	if !ok || current.UserID != outfit.UserID {
		return types.Outfit{}, store.ErrNotFound
	}
	outfit.Username = current.Username
	outfit.CreatedAt = current.CreatedAt
	outfit.UpdatedAt = time.Now()
	r.env.outfits[outfit.ID] = outfit
	if replaceItems {
		r.env.members[outfit.ID] = r.ownedSet(outfit.UserID, itemIDs)
	}
	return r.withItems(outfit), nil
}

func (r *envOutfitRepo) Delete(_ context.Context, id, ownerID int) error {
	outfit, ok := r.env.outfits[id]
	if !ok || outfit.UserID != ownerID {
		return store.ErrNotFound
	}
	delete(r.env.outfits, id)
	delete(r.env.members, id)
	return nil
}

func (r *envOutfitRepo) ContainsItem(_ context.Context, outfitID, itemID int) (bool, error) {
	return r.env.members[outfitID][itemID], nil
}

func (r *envOutfitRepo) AddItem(_ context.Context, outfitID, itemID int) error {
	if r.env.members[outfitID] == nil {
		r.env.members[outfitID] = map[int]bool{}
	}
	r.env.members[outfitID][itemID] = true
	return nil
}

func (r *envOutfitRepo) RemoveItem(_ context.Context, outfitID, itemID int) error {
	delete(r.env.members[outfitID], itemID)
	return nil
}

func (r *envOutfitRepo) ownedSet(ownerID int, itemIDs []int) map[int]bool {
	set := map[int]bool{}
	for _, id := range itemIDs {
		item, ok := r.env.items[id]
		if ok && item.UserID == ownerID {
			set[id] = true
		}
	}
	return set
}

func (r *envOutfitRepo) withItems(outfit types.Outfit) types.Outfit {
	items := make([]types.ClothingItem, 0)
	for id := range r.env.members[outfit.ID] {
		if item, ok := r.env.items[id]; ok {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	outfit.Items = items
	return outfit
}

func slicePage[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
