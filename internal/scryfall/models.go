package scryfall

import (
	"errors"
	"fmt"
)

// Card is the subset of a Scryfall card object the catalog ingests.
type Card struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	ReleasedAt      string            `json:"released_at"`
	SetCode         string            `json:"set"`
	CollectorNumber string            `json:"collector_number"`
	Rarity          string            `json:"rarity"`
	ManaCost        string            `json:"mana_cost,omitempty"`
	TypeLine        string            `json:"type_line"`
	ImageURIs       *ImageURIs        `json:"image_uris,omitempty"`
	CardFaces       []CardFace        `json:"card_faces,omitempty"`
	Legalities      map[string]string `json:"legalities"`
	Prices          Prices            `json:"prices"`
}

// CardFace is one face of a multi-faced card.
type CardFace struct {
	Name      string     `json:"name"`
	ManaCost  string     `json:"mana_cost,omitempty"`
	TypeLine  string     `json:"type_line"`
	ImageURIs *ImageURIs `json:"image_uris,omitempty"`
}

// ImageURIs contains URLs for card images in various sizes.
type ImageURIs struct {
	Small  string `json:"small"`
	Normal string `json:"normal"`
	Large  string `json:"large"`
}

// Prices holds a card's current market prices. Scryfall reports them as
// decimal strings, or null when unknown.
type Prices struct {
	USD     *string `json:"usd,omitempty"`
	USDFoil *string `json:"usd_foil,omitempty"`
}

// priceCard is the slice of a bulk card record the price stream decodes.
type priceCard struct {
	ID     string `json:"id"`
	Prices Prices `json:"prices"`
}

// Set is a Magic set from Scryfall.
type Set struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	SetType     string `json:"set_type"`
	ReleasedAt  string `json:"released_at,omitempty"`
	CardCount   int    `json:"card_count"`
	PrintedSize int    `json:"printed_size,omitempty"`
	Digital     bool   `json:"digital"`
	IconSVGURI  string `json:"icon_svg_uri"`
}

// SetList is the /sets response.
type SetList struct {
	Object   string `json:"object"`
	HasMore  bool   `json:"has_more"`
	NextPage string `json:"next_page,omitempty"`
	Data     []Set  `json:"data"`
}

// SearchResult is one page of /cards/search results.
type SearchResult struct {
	Object     string `json:"object"`
	TotalCards int    `json:"total_cards"`
	HasMore    bool   `json:"has_more"`
	NextPage   string `json:"next_page,omitempty"`
	Data       []Card `json:"data"`
}

// BulkDataList is the /bulk-data response.
type BulkDataList struct {
	Object string     `json:"object"`
	Data   []BulkData `json:"data"`
}

// BulkData describes one downloadable bulk file.
type BulkData struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	UpdatedAt       string `json:"updated_at"`
	Name            string `json:"name"`
	DownloadURI     string `json:"download_uri"`
	ContentType     string `json:"content_type"`
	ContentEncoding string `json:"content_encoding"`
}

// CardIdentifier selects one card in a /cards/collection request.
type CardIdentifier struct {
	ID string `json:"id,omitempty"`
}

// CollectionRequest is the request body for /cards/collection.
type CollectionRequest struct {
	Identifiers []CardIdentifier `json:"identifiers"`
}

// CollectionResponse is the response from /cards/collection.
type CollectionResponse struct {
	Object   string           `json:"object"`
	NotFound []CardIdentifier `json:"not_found"`
	Data     []Card           `json:"data"`
}

// APIError represents an error response from the Scryfall API.
type APIError struct {
	Object  string `json:"object"`
	Code    string `json:"code"`
	Status  int    `json:"status"`
	Details string `json:"details"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Details)
	}
	return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Code)
}

// NotFoundError represents a 404 from the API.
type NotFoundError struct {
	URL string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
