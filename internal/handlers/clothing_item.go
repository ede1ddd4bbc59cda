package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/closetly/apiserver/internal/services"
	"github.com/closetly/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxImageBytes      = 10 << 20

	formFieldName     = "name"
	formFieldCategory = "category"
	formFieldColor    = "color"
	formFieldBrand    = "brand"
	formFieldNotes    = "notes"
	formFieldImage    = "image"
)

// ClothingItemHandler provides HTTP handlers for clothing items.
type ClothingItemHandler struct {
	itemService *services.ClothingItemService
}

// NewClothingItemHandler constructs a handler for clothing item routes.
func NewClothingItemHandler(itemService *services.ClothingItemService) *ClothingItemHandler {
	return &ClothingItemHandler{itemService: itemService}
}

// ClothingItemRouter registers clothing item routes. Every route requires
// authentication; all reads and writes are scoped to the requester.
func ClothingItemRouter(r chi.Router, itemService *services.ClothingItemService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewClothingItemHandler(itemService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListItems)
	r.Post("/", handler.CreateItem)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", handler.GetItem)
		r.Put("/", handler.UpdateItem)
		r.Patch("/", handler.PatchItem)
		r.Delete("/", handler.DeleteItem)
	})
}

// ClothingItemResponse is the item read shape. The write shape never
// includes owner or timestamps; those are server-assigned.
type ClothingItemResponse struct {
	ID              int             `json:"id"`
	UserUsername    string          `json:"user_username"`
	Name            string          `json:"name"`
	Category        *int            `json:"category"`
	CategoryName    *string         `json:"category_name"`
	CategoryDetail  *types.Category `json:"category_detail"`
	Color           string          `json:"color"`
	Brand           string          `json:"brand"`
	Image           string          `json:"image"`
	ImageDisplayURL *string         `json:"image_display_url"`
	Notes           string          `json:"notes"`
	DateAdded       time.Time       `json:"date_added"`
	LastModified    time.Time       `json:"last_modified"`
}

// ClothingItemRequest is the item write shape for JSON bodies.
type ClothingItemRequest struct {
	Name     string `json:"name"`
	Category *int   `json:"category"`
	Color    string `json:"color"`
	Brand    string `json:"brand"`
	Notes    string `json:"notes"`
}

func (h *ClothingItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.itemService.List(r.Context(), actorFromContext(r.Context()), offset, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}

	results := make([]ClothingItemResponse, 0, len(items))
	for _, item := range items {
		results = append(results, newClothingItemResponse(r, item))
	}
	writeJSON(w, http.StatusOK, listEnvelope(r, results, page, limit, total))
}

func (h *ClothingItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.itemService.Get(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newClothingItemResponse(r, item))
}

func (h *ClothingItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	input, err := parseItemPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.itemService.Create(r.Context(), actorFromContext(r.Context()), input)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newClothingItemResponse(r, item))
}

func (h *ClothingItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	input, err := parseItemPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.itemService.Update(r.Context(), actorFromContext(r.Context()), id, input)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newClothingItemResponse(r, item))
}

// PatchItem applies a partial update: only the fields present in the JSON
// body are changed.
func (h *ClothingItemHandler) PatchItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	actor := actorFromContext(r.Context())
	current, err := h.itemService.Get(r.Context(), actor, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	input, err := mergeItemPatch(r, current)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.itemService.Update(r.Context(), actor, id, input)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newClothingItemResponse(r, item))
}

func (h *ClothingItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.itemService.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseItemPayload accepts either a JSON body or a multipart form with an
// optional image file.
func parseItemPayload(r *http.Request) (services.ClothingItemInput, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return parseItemForm(r)
	}

	var req ClothingItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return services.ClothingItemInput{}, errors.New("invalid request")
	}
	return services.ClothingItemInput{
		Name:       req.Name,
		CategoryID: req.Category,
		Color:      req.Color,
		Brand:      req.Brand,
		Notes:      req.Notes,
	}, nil
}

func parseItemForm(r *http.Request) (services.ClothingItemInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.ClothingItemInput{}, errors.New("invalid multipart form")
	}

	input := services.ClothingItemInput{
		Name:  r.FormValue(formFieldName),
		Color: r.FormValue(formFieldColor),
		Brand: r.FormValue(formFieldBrand),
		Notes: r.FormValue(formFieldNotes),
	}

	if raw := strings.TrimSpace(r.FormValue(formFieldCategory)); raw != "" {
		categoryID, err := strconv.Atoi(raw)
		if err != nil {
			return services.ClothingItemInput{}, errors.New("invalid category")
		}
		input.CategoryID = &categoryID
	}

	image, err := parseImageFile(r.MultipartForm)
	if err != nil {
		return services.ClothingItemInput{}, err
	}
	input.Image = image

	return input, nil
}

func parseImageFile(form *multipart.Form) (*services.ImageUpload, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[formFieldImage]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one image file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &services.ImageUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

// mergeItemPatch overlays the fields present in the request body onto the
// current item.
func mergeItemPatch(r *http.Request, current types.ClothingItem) (services.ClothingItemInput, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return services.ClothingItemInput{}, errors.New("invalid request")
	}

	input := services.ClothingItemInput{
		Name:       current.Name,
		CategoryID: current.CategoryID,
		Color:      current.Color,
		Brand:      current.Brand,
		Notes:      current.Notes,
	}

	if err := patchString(raw, "name", &input.Name); err != nil {
		return services.ClothingItemInput{}, err
	}
	if err := patchString(raw, "color", &input.Color); err != nil {
		return services.ClothingItemInput{}, err
	}
	if err := patchString(raw, "brand", &input.Brand); err != nil {
		return services.ClothingItemInput{}, err
	}
	if err := patchString(raw, "notes", &input.Notes); err != nil {
		return services.ClothingItemInput{}, err
	}
	if value, ok := raw["category"]; ok {
		var categoryID *int
		if err := json.Unmarshal(value, &categoryID); err != nil {
			return services.ClothingItemInput{}, errors.New("invalid category")
		}
		input.CategoryID = categoryID
	}

	return input, nil
}

func patchString(raw map[string]json.RawMessage, key string, dst *string) error {
	value, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("invalid %s", key)
	}
	return nil
}

// newClothingItemResponse maps a stored item to its read shape, building the
// absolute image URL from the incoming request.
func newClothingItemResponse(r *http.Request, item types.ClothingItem) ClothingItemResponse {
	resp := ClothingItemResponse{
		ID:             item.ID,
		UserUsername:   item.Username,
		Name:           item.Name,
		Category:       item.CategoryID,
		CategoryDetail: item.Category,
		Color:          item.Color,
		Brand:          item.Brand,
		Image:          item.ImageKey,
		Notes:          item.Notes,
		DateAdded:      item.DateAdded,
		LastModified:   item.LastModified,
	}
	if item.Category != nil {
		resp.CategoryName = &item.Category.Name
	}
	if item.ImageKey != "" {
		url := fmt.Sprintf("%s://%s/media/%s", requestScheme(r), r.Host, item.ImageKey)
		resp.ImageDisplayURL = &url
	}
	return resp
}
