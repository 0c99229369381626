package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/api/response"
	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/collection"
)

// UserHandler handles requests scoped to one user's collection.
type UserHandler struct {
	service CollectionService
	logger  *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service CollectionService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{service: service, logger: logger}
}

// QuantityRequest is the body of a quantity update.
type QuantityRequest struct {
	Quantity *int `json:"quantity"`
	Foil     bool `json:"foil"`
}

// ListSets returns a page of sets with the user's owned counts and completion.
func (h *UserHandler) ListSets(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	page, err := h.service.ListSets(r.Context(), listParams(r, user, collection.SetSortFields))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.Success(w, page)
}

// ListSetCards returns a page of a set's cards with the user's quantities.
func (h *UserHandler) ListSetCards(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	code, err := setCode(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	page, err := h.service.ListSetCards(r.Context(), code, listParams(r, user, collection.CardSortFields))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.Success(w, page)
}

// ListInventory returns a page of the user's owned lines.
func (h *UserHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	page, err := h.service.ListInventory(r.Context(), listParams(r, user, collection.InventorySortFields))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.Success(w, page)
}

// SetQuantity sets the owned quantity of one card in one finish.
// A quantity of zero removes the line.
func (h *UserHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	cardID, err := uuidParam(r, "cardID", "card id")
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	var req QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Quantity == nil {
		response.BadRequest(w, &catalog.ValidationError{Field: "quantity", Reason: "required"})
		return
	}

	item := catalog.InventoryItem{UserID: user, CardID: cardID, IsFoil: req.Foil, Quantity: *req.Quantity}
	if err := h.service.SetQuantity(r.Context(), item); err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.NoContent(w)
}

// Summary returns the user's collection totals.
func (h *UserHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), user)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.Success(w, summary)
}
