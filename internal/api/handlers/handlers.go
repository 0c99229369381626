// Package handlers serves the catalog and collection endpoints.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/api/response"
	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/collection"
	"github.com/ramonehamilton/mtg-catalog/internal/query"
)

// ParamIncludeFoil adds foil prices to values when true.
const ParamIncludeFoil = "includeFoil"

// CollectionService is the query surface the handlers depend on.
// *collection.Service implements it.
type CollectionService interface {
	ListSets(ctx context.Context, p collection.ListParams) (*collection.Page[collection.SetSummary], error)
	GetSet(ctx context.Context, code string, includeFoil, baseOnly bool) (*collection.SetDetail, error)
	ListSetCards(ctx context.Context, code string, p collection.ListParams) (*collection.Page[collection.CardListing], error)
	ListInventory(ctx context.Context, p collection.ListParams) (*collection.Page[collection.InventoryLine], error)
	GetCard(ctx context.Context, id string, includeFoil bool) (*collection.CardDetail, error)
	Summary(ctx context.Context, userID string) (*collection.Summary, error)
	SetQuantity(ctx context.Context, item catalog.InventoryItem) error
}

var _ CollectionService = (*collection.Service)(nil)

// fail writes err with its mapped status. Unexpected errors are logged since
// their text is not returned to the client.
func fail(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := response.StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	response.FromError(w, err)
}

// listParams reads the sanitized listing options of a request.
func listParams(r *http.Request, userID string, sortable []string) collection.ListParams {
	values := r.URL.Query()
	return collection.ListParams{
		UserID:      userID,
		Options:     query.Parse(values, sortable),
		IncludeFoil: includeFoil(r),
		BaseURL:     r.URL.Path,
	}
}

// includeFoil is false unless the parameter parses as true.
func includeFoil(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(ParamIncludeFoil))
	return err == nil && v
}

// userID reads and validates the {userID} path parameter.
func userID(r *http.Request) (string, error) {
	return uuidParam(r, "userID", "user id")
}

func uuidParam(r *http.Request, name, field string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return "", &catalog.ValidationError{Field: field, Reason: "required"}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &catalog.ValidationError{Field: field, Value: raw, Reason: "not a UUID"}
	}
	return id.String(), nil
}

func setCode(r *http.Request) (string, error) {
	code := catalog.NormalizeSetCode(chi.URLParam(r, "code"))
	if code == "" {
		return "", &catalog.ValidationError{Field: "set code", Reason: "required"}
	}
	return code, nil
}
