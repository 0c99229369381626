package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/api/response"
	"github.com/ramonehamilton/mtg-catalog/internal/collection"
	"github.com/ramonehamilton/mtg-catalog/internal/query"
)

// CatalogHandler handles set and card requests that need no user.
type CatalogHandler struct {
	service CollectionService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(service CollectionService, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{service: service, logger: logger}
}

// ListSets returns a page of sets with their prices.
func (h *CatalogHandler) ListSets(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListSets(r.Context(), listParams(r, "", collection.SetSortFields))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.Success(w, page)
}

// GetSet returns one set with its value aggregates.
func (h *CatalogHandler) GetSet(w http.ResponseWriter, r *http.Request) {
	code, err := setCode(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	opts := query.Parse(r.URL.Query(), nil)
	set, err := h.service.GetSet(r.Context(), code, includeFoil(r), opts.BaseOnly())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.Success(w, set)
}

// ListSetCards returns a page of a set's cards.
func (h *CatalogHandler) ListSetCards(w http.ResponseWriter, r *http.Request) {
	code, err := setCode(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	page, err := h.service.ListSetCards(r.Context(), code, listParams(r, "", collection.CardSortFields))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.Success(w, page)
}

// GetCard returns one card with its latest price and format matrix.
func (h *CatalogHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "cardID", "card id")
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	card, err := h.service.GetCard(r.Context(), id, includeFoil(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	response.Success(w, card)
}
