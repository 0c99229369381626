// Package catalog holds the canonical catalog entities, the raw provider record
// shapes, the source contract and the normalizer that turns one into the other.
package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rarity is the printed rarity of a card.
type Rarity string

const (
	RarityCommon   Rarity = "common"
	RarityUncommon Rarity = "uncommon"
	RarityRare     Rarity = "rare"
	RarityMythic   Rarity = "mythic"
	RaritySpecial  Rarity = "special"
	RarityBonus    Rarity = "bonus"
)

// Rarities lists every accepted rarity.
var Rarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityMythic, RaritySpecial, RarityBonus}

// LegalityStatus is whether a card may be played in a format.
type LegalityStatus string

const (
	StatusLegal      LegalityStatus = "Legal"
	StatusNotLegal   LegalityStatus = "Not Legal"
	StatusRestricted LegalityStatus = "Restricted"
	StatusBanned     LegalityStatus = "Banned"
)

// Statuses lists every accepted legality status.
var Statuses = []LegalityStatus{StatusLegal, StatusNotLegal, StatusRestricted, StatusBanned}

// Format is a competitive play format.
type Format string

// Formats is the fixed format matrix every card is presented against, in display order.
var Formats = []Format{
	"standard",
	"future",
	"historic",
	"timeless",
	"gladiator",
	"pioneer",
	"explorer",
	"modern",
	"legacy",
	"pauper",
	"vintage",
	"penny",
	"commander",
	"oathbreaker",
	"standardbrawl",
	"brawl",
	"alchemy",
	"paupercommander",
	"duel",
	"oldschool",
	"premodern",
	"predh",
}

// IsKnownFormat reports whether f belongs to Formats.
func IsKnownFormat(f Format) bool {
	for _, known := range Formats {
		if known == f {
			return true
		}
	}
	return false
}

// Set is a Magic set. BaseSize is the size of the main print run; cards numbered
// above it are bonus or variant prints.
type Set struct {
	Code       string
	Name       string
	SetType    string
	ReleasedAt string
	BaseSize   int
	TotalSize  int
	IconSVGURI string
	UpdatedAt  time.Time
}

// Card is a single printing of a Magic card.
type Card struct {
	ID              string
	SetCode         string
	Name            string
	CollectorNumber string
	Rarity          Rarity
	TypeLine        string
	ManaCost        string
	ImageURI        string
	ReleasedAt      string
	IsBase          bool

	// Seq is assigned by storage on first insert and never changes afterwards.
	Seq int64

	Legalities []Legality
	UpdatedAt  time.Time
}

// Legality is the status of one card in one format.
type Legality struct {
	CardID string
	Format Format
	Status LegalityStatus
}

// Price is the price snapshot of one card on one day. Normal and Foil are
// independently nullable.
type Price struct {
	ID     int64
	CardID string
	Date   string
	Normal decimal.NullDecimal
	Foil   decimal.NullDecimal
}

// IsEmpty reports whether neither finish carries a price.
func (p *Price) IsEmpty() bool {
	return !p.Normal.Valid && !p.Foil.Valid
}

// SetPrices holds the precomputed value aggregates of a set.
type SetPrices struct {
	SetCode       string
	BasePrice     decimal.Decimal
	TotalPrice    decimal.Decimal
	BasePriceAll  decimal.Decimal
	TotalPriceAll decimal.Decimal
}

// InventoryItem is a user's owned quantity of one card in one finish.
type InventoryItem struct {
	UserID   string
	CardID   string
	IsFoil   bool
	Quantity int
}

// PriceDate formats t as the storage date key for price rows.
func PriceDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// NormalizeSetCode returns the canonical (upper-case, trimmed) form of a set code.
func NormalizeSetCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
