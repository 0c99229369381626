package catalog

import (
	"context"
	"iter"
)

// RawSet is set metadata as reported by the provider.
type RawSet struct {
	Code        string
	Name        string
	SetType     string
	ReleasedAt  string
	PrintedSize int
	CardCount   int
	IconSVGURI  string

	// Cards is only populated by Source.FetchSetByCode.
	Cards []RawCard
}

// RawCard is a card record as reported by the provider, before validation.
type RawCard struct {
	ID              string
	SetCode         string
	Name            string
	CollectorNumber string
	Rarity          string
	TypeLine        string
	ManaCost        string
	ImageURI        string
	ReleasedAt      string
	Legalities      map[string]string
}

// RawPrice is one record of a price snapshot. Nil means the provider had no price.
type RawPrice struct {
	CardID string
	Normal *string
	Foil   *string
}

// Source is the external catalog provider.
//
// The Fetch*Cards and Fetch*Prices sequences are lazy, finite and single-pass.
// A non-nil error yielded by a sequence means the stream itself failed; the
// consumer must stop iterating and treat the run as aborted.
type Source interface {
	// FetchAllSetsMeta returns metadata for every set, without cards.
	FetchAllSetsMeta(ctx context.Context) ([]RawSet, error)

	// FetchSetByCode returns one set with its cards, or nil when the provider
	// does not know the code.
	FetchSetByCode(ctx context.Context, code string) (*RawSet, error)

	// FetchSetCards streams the card records of one set.
	FetchSetCards(ctx context.Context, code string) iter.Seq2[RawCard, error]

	// FetchTodayPrices streams the provider's daily price snapshot for the whole catalog.
	FetchTodayPrices(ctx context.Context) iter.Seq2[RawPrice, error]

	// FetchCardPrices streams current prices for the given card ids only.
	FetchCardPrices(ctx context.Context, ids []string) iter.Seq2[RawPrice, error]
}
