package collection

import (
	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/pricing"
	"github.com/ramonehamilton/mtg-catalog/internal/query"
)

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T                  `json:"items"`
	Total      int64                `json:"total"`
	Pagination query.PaginationView `json:"pagination"`
}

// ListParams carries the caller's listing input.
type ListParams struct {
	// UserID selects whose inventory owned counts come from. Empty means nobody's.
	UserID string

	Options     query.Options
	IncludeFoil bool

	// BaseURL is the path pagination links point at.
	BaseURL string
}

// SetSummary is one row of the set listing.
type SetSummary struct {
	Code           string          `json:"code" gorm:"column:code"`
	Name           string          `json:"name" gorm:"column:name"`
	SetType        string          `json:"set_type" gorm:"column:set_type"`
	ReleasedAt     string          `json:"released_at" gorm:"column:released_at"`
	BaseSize       int             `json:"base_size" gorm:"column:base_size"`
	TotalSize      int             `json:"total_size" gorm:"column:total_size"`
	IconSVGURI     string          `json:"icon_svg_uri" gorm:"column:icon_svg_uri"`
	Price          decimal.Decimal `json:"price" gorm:"column:price"`
	EffectivePrice decimal.Decimal `json:"effective_price" gorm:"column:effective_price"`
	Owned          int             `json:"owned" gorm:"column:owned"`

	// CompletionPercent is Owned over the base or total size, from 0 to 100.
	CompletionPercent float64 `json:"completion_percent" gorm:"-"`
}

// SetDetail is a set with its value aggregates.
type SetDetail struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	SetType        string          `json:"set_type"`
	ReleasedAt     string          `json:"released_at"`
	BaseSize       int             `json:"base_size"`
	TotalSize      int             `json:"total_size"`
	IconSVGURI     string          `json:"icon_svg_uri"`
	Price          decimal.Decimal `json:"price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	BasePrice      decimal.Decimal `json:"base_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	BasePriceAll   decimal.Decimal `json:"base_price_all"`
	TotalPriceAll  decimal.Decimal `json:"total_price_all"`
}

// CardListing is one row of a set's card listing.
type CardListing struct {
	Seq             int64               `json:"-" gorm:"column:seq"`
	ID              string              `json:"id" gorm:"column:id"`
	SetCode         string              `json:"set_code" gorm:"column:set_code"`
	Name            string              `json:"name" gorm:"column:name"`
	CollectorNumber string              `json:"collector_number" gorm:"column:collector_number"`
	Rarity          string              `json:"rarity" gorm:"column:rarity"`
	TypeLine        string              `json:"type_line" gorm:"column:type_line"`
	ManaCost        string              `json:"mana_cost" gorm:"column:mana_cost"`
	ImageURI        string              `json:"image_uri" gorm:"column:image_uri"`
	IsBase          bool                `json:"is_base" gorm:"column:is_base"`
	Normal          decimal.NullDecimal `json:"normal" gorm:"column:normal"`
	Foil            decimal.NullDecimal `json:"foil" gorm:"column:foil"`
	Value           decimal.Decimal     `json:"value" gorm:"column:value"`
	OwnedNormal     int                 `json:"owned_normal" gorm:"column:owned_normal"`
	OwnedFoil       int                 `json:"owned_foil" gorm:"column:owned_foil"`
}

// InventoryLine is one owned (card, finish) line with its value.
type InventoryLine struct {
	Seq             int64               `json:"-" gorm:"column:seq"`
	CardID          string              `json:"card_id" gorm:"column:card_id"`
	IsFoil          bool                `json:"is_foil" gorm:"column:is_foil"`
	Quantity        int                 `json:"quantity" gorm:"column:quantity"`
	Name            string              `json:"name" gorm:"column:name"`
	SetCode         string              `json:"set_code" gorm:"column:set_code"`
	CollectorNumber string              `json:"collector_number" gorm:"column:collector_number"`
	Rarity          string              `json:"rarity" gorm:"column:rarity"`
	ImageURI        string              `json:"image_uri" gorm:"column:image_uri"`
	Normal          decimal.NullDecimal `json:"normal" gorm:"column:normal"`
	Foil            decimal.NullDecimal `json:"foil" gorm:"column:foil"`
	UnitValue       decimal.Decimal     `json:"unit_value" gorm:"column:unit_value"`
	Value           decimal.Decimal     `json:"value" gorm:"column:value"`
}

// LegalityView is one cell of a card's format matrix.
type LegalityView struct {
	Format string `json:"format"`
	Status string `json:"status"`
}

// CardDetail is a card with its latest prices and full format matrix.
type CardDetail struct {
	ID              string              `json:"id"`
	SetCode         string              `json:"set_code"`
	Name            string              `json:"name"`
	CollectorNumber string              `json:"collector_number"`
	Rarity          string              `json:"rarity"`
	TypeLine        string              `json:"type_line"`
	ManaCost        string              `json:"mana_cost"`
	ImageURI        string              `json:"image_uri"`
	ReleasedAt      string              `json:"released_at"`
	IsBase          bool                `json:"is_base"`
	PriceDate       string              `json:"price_date,omitempty"`
	Normal          decimal.NullDecimal `json:"normal"`
	Foil            decimal.NullDecimal `json:"foil"`
	Value           decimal.Decimal     `json:"value"`
	Legalities      []LegalityView      `json:"legalities"`
}

// Summary totals a user's collection.
type Summary struct {
	UserID        string          `json:"user_id"`
	DistinctCards int             `json:"distinct_cards" gorm:"column:distinct_cards"`
	TotalCards    int             `json:"total_cards" gorm:"column:total_cards"`
	Sets          int             `json:"sets" gorm:"column:sets"`
	TotalValue    decimal.Decimal `json:"total_value" gorm:"column:total_value"`
}

func newCardDetail(card *catalog.Card, latest *catalog.Price, includeFoil bool) *CardDetail {
	filled := catalog.FillMissingFormats(card)

	d := &CardDetail{
		ID:              card.ID,
		SetCode:         card.SetCode,
		Name:            card.Name,
		CollectorNumber: card.CollectorNumber,
		Rarity:          string(card.Rarity),
		TypeLine:        card.TypeLine,
		ManaCost:        card.ManaCost,
		ImageURI:        card.ImageURI,
		ReleasedAt:      card.ReleasedAt,
		IsBase:          card.IsBase,
		Legalities:      make([]LegalityView, len(filled.Legalities)),
	}
	for i, l := range filled.Legalities {
		d.Legalities[i] = LegalityView{Format: string(l.Format), Status: string(l.Status)}
	}
	if latest != nil {
		d.PriceDate = latest.Date
		d.Normal = latest.Normal
		d.Foil = latest.Foil
	}
	d.Value = pricing.CalculateCardValue(d.Normal, d.Foil, includeFoil)
	return d
}
