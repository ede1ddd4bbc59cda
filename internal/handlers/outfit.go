package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/closetly/apiserver/internal/services"
	"github.com/closetly/apiserver/types"
)

// OutfitHandler provides HTTP handlers for outfits.
type OutfitHandler struct {
	outfitService *services.OutfitService
}

// NewOutfitHandler constructs a handler for outfit routes.
func NewOutfitHandler(outfitService *services.OutfitService) *OutfitHandler {
	return &OutfitHandler{outfitService: outfitService}
}

// OutfitRouter registers outfit routes. Every route requires authentication;
// all reads and writes are scoped to the requester.
func OutfitRouter(r chi.Router, outfitService *services.OutfitService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewOutfitHandler(outfitService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListOutfits)
	r.Post("/", handler.CreateOutfit)
	r.Route("/{outfitID}", func(r chi.Router) {
		r.Get("/", handler.GetOutfit)
		r.Put("/", handler.UpdateOutfit)
		r.Patch("/", handler.PatchOutfit)
		r.Delete("/", handler.DeleteOutfit)
		r.Post("/add-item", handler.AddItem)
		r.Post("/remove-item", handler.RemoveItem)
	})
}

// OutfitRequest is the outfit write shape. ClothingItems carries candidate
// member ids; when nil the membership is left untouched on update.
type OutfitRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	ClothingItems *[]int `json:"clothing_items"`
}

// OutfitResponse is the outfit read shape with full member item details.
type OutfitResponse struct {
	ID                   int                    `json:"id"`
	UserUsername         string                 `json:"user_username"`
	Name                 string                 `json:"name"`
	Description          string                 `json:"description"`
	ClothingItemsDetails []ClothingItemResponse `json:"clothing_items_details"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// MembershipRequest is the body of the add-item and remove-item actions.
type MembershipRequest struct {
	ClothingItemID int `json:"clothing_item_id"`
}

func (h *OutfitHandler) ListOutfits(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outfits, total, err := h.outfitService.List(r.Context(), actorFromContext(r.Context()), offset, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}

	results := make([]OutfitResponse, 0, len(outfits))
	for _, outfit := range outfits {
		results = append(results, newOutfitResponse(r, outfit))
	}
	writeJSON(w, http.StatusOK, listEnvelope(r, results, page, limit, total))
}

func (h *OutfitHandler) GetOutfit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "outfitID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outfit id")
		return
	}

	outfit, err := h.outfitService.Get(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutfitResponse(r, outfit))
}

func (h *OutfitHandler) CreateOutfit(w http.ResponseWriter, r *http.Request) {
	var req OutfitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	input := services.OutfitInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.ClothingItems != nil {
		input.ItemIDs = *req.ClothingItems
		input.SetItems = true
	}

	outfit, err := h.outfitService.Create(r.Context(), actorFromContext(r.Context()), input)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOutfitResponse(r, outfit))
}

func (h *OutfitHandler) UpdateOutfit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "outfitID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outfit id")
		return
	}

	var req OutfitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	input := services.OutfitInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.ClothingItems != nil {
		input.ItemIDs = *req.ClothingItems
		input.SetItems = true
	}

	outfit, err := h.outfitService.Update(r.Context(), actorFromContext(r.Context()), id, input)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutfitResponse(r, outfit))
}

// PatchOutfit applies a partial update: only the fields present in the JSON
// body are changed. A present clothing_items field replaces the full
// membership.
func (h *OutfitHandler) PatchOutfit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "outfitID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outfit id")
		return
	}

	actor := actorFromContext(r.Context())
	current, err := h.outfitService.Get(r.Context(), actor, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	input, err := mergeOutfitPatch(r, current)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outfit, err := h.outfitService.Update(r.Context(), actor, id, input)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutfitResponse(r, outfit))
}

func (h *OutfitHandler) DeleteOutfit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "outfitID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outfit id")
		return
	}

	if err := h.outfitService.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds a single clothing item to the outfit. Adding an item that is
// already a member succeeds without changing anything.
func (h *OutfitHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "outfitID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outfit id")
		return
	}

	itemID, err := parseMembershipBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outfit, err := h.outfitService.AddItem(r.Context(), actorFromContext(r.Context()), id, itemID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutfitResponse(r, outfit))
}

// RemoveItem removes a single clothing item from the outfit.
func (h *OutfitHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, chi.URLParam(r, "outfitID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outfit id")
		return
	}

	itemID, err := parseMembershipBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outfit, err := h.outfitService.RemoveItem(r.Context(), actorFromContext(r.Context()), id, itemID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutfitResponse(r, outfit))
}

func parseMembershipBody(r *http.Request) (int, error) {
	var req MembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, errors.New("invalid request")
	}
	if req.ClothingItemID < 1 {
		return 0, errors.New("clothing_item_id is required")
	}
	return req.ClothingItemID, nil
}

func mergeOutfitPatch(r *http.Request, current types.Outfit) (services.OutfitInput, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return services.OutfitInput{}, errors.New("invalid request")
	}

	input := services.OutfitInput{
		Name:        current.Name,
		Description: current.Description,
	}

	if err := patchString(raw, "name", &input.Name); err != nil {
		return services.OutfitInput{}, err
	}
	if err := patchString(raw, "description", &input.Description); err != nil {
		return services.OutfitInput{}, err
	}
	if value, ok := raw["clothing_items"]; ok {
		var itemIDs []int
		if err := json.Unmarshal(value, &itemIDs); err != nil {
			return services.OutfitInput{}, errors.New("invalid clothing_items")
		}
		input.ItemIDs = itemIDs
		input.SetItems = true
	}

	return input, nil
}

func newOutfitResponse(r *http.Request, outfit types.Outfit) OutfitResponse {
	details := make([]ClothingItemResponse, 0, len(outfit.Items))
	for _, item := range outfit.Items {
		details = append(details, newClothingItemResponse(r, item))
	}
	return OutfitResponse{
		ID:                   outfit.ID,
		UserUsername:         outfit.Username,
		Name:                 outfit.Name,
		Description:          outfit.Description,
		ClothingItemsDetails: details,
		CreatedAt:            outfit.CreatedAt,
		UpdatedAt:            outfit.UpdatedAt,
	}
}
