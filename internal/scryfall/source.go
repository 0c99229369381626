package scryfall

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
)

// MaxBatchSize is the maximum number of cards per /cards/collection request.
const MaxBatchSize = 75

// PriceBulkType is the bulk file the daily price snapshot is read from.
const PriceBulkType = "default_cards"

var _ catalog.Source = (*Client)(nil)

// FetchAllSetsMeta returns metadata for every set.
func (c *Client) FetchAllSetsMeta(ctx context.Context) ([]catalog.RawSet, error) {
	sets, err := c.GetSets(ctx)
	if err != nil {
		return nil, err
	}

	raw := make([]catalog.RawSet, len(sets))
	for i, s := range sets {
		raw[i] = toRawSet(s)
	}
	return raw, nil
}

// FetchSetByCode returns a set with all of its cards, or nil when Scryfall
// does not know the code.
func (c *Client) FetchSetByCode(ctx context.Context, code string) (*catalog.RawSet, error) {
	set, err := c.GetSet(ctx, code)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw := toRawSet(*set)
	for card, err := range c.FetchSetCards(ctx, set.Code) {
		if err != nil {
			return nil, err
		}
		raw.Cards = append(raw.Cards, card)
	}
	return &raw, nil
}

// FetchSetCards pages through every print of a set, extras and variations
// included. Pages are fetched as the consumer advances.
func (c *Client) FetchSetCards(ctx context.Context, code string) iter.Seq2[catalog.RawCard, error] {
	query := "e:" + strings.ToLower(code)

	return func(yield func(catalog.RawCard, error) bool) {
		next := ""
		for {
			page, err := c.SearchPage(ctx, query, next)
			if IsNotFound(err) {
				// Scryfall answers an empty search with 404.
				return
			}
			if err != nil {
				yield(catalog.RawCard{}, err)
				return
			}

			for _, card := range page.Data {
				if !yield(toRawCard(card), nil) {
					return
				}
			}

			if !page.HasMore || page.NextPage == "" {
				return
			}
			next = page.NextPage
		}
	}
}

// FetchTodayPrices streams the default_cards bulk file. Only ids and prices
// are decoded, one card object at a time.
func (c *Client) FetchTodayPrices(ctx context.Context) iter.Seq2[catalog.RawPrice, error] {
	return func(yield func(catalog.RawPrice, error) bool) {
		list, err := c.GetBulkData(ctx)
		if err != nil {
			yield(catalog.RawPrice{}, err)
			return
		}

		var downloadURI string
		for _, b := range list.Data {
			if b.Type == PriceBulkType {
				downloadURI = b.DownloadURI
				break
			}
		}
		if downloadURI == "" {
			yield(catalog.RawPrice{}, fmt.Errorf("bulk data %q not offered", PriceBulkType))
			return
		}

		body, err := c.openBulkFile(ctx, downloadURI)
		if err != nil {
			yield(catalog.RawPrice{}, err)
			return
		}
		defer func() { _ = body.Close() }()

		c.logger.Info("streaming bulk prices", zap.String("uri", downloadURI))

		dec := json.NewDecoder(body)
		tok, err := dec.Token()
		if err != nil {
			yield(catalog.RawPrice{}, fmt.Errorf("failed to read bulk file: %w", err))
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			yield(catalog.RawPrice{}, fmt.Errorf("bulk file is not a JSON array"))
			return
		}

		for dec.More() {
			var card priceCard
			if err := dec.Decode(&card); err != nil {
				yield(catalog.RawPrice{}, fmt.Errorf("failed to decode bulk card: %w", err))
				return
			}
			if !yield(toRawPrice(card.ID, card.Prices), nil) {
				return
			}
		}
	}
}

// FetchCardPrices looks up current prices for ids through /cards/collection,
// MaxBatchSize ids per request. Ids Scryfall no longer knows are skipped.
func (c *Client) FetchCardPrices(ctx context.Context, ids []string) iter.Seq2[catalog.RawPrice, error] {
	return func(yield func(catalog.RawPrice, error) bool) {
		for start := 0; start < len(ids); start += MaxBatchSize {
			batch := ids[start:min(start+MaxBatchSize, len(ids))]

			resp, err := c.GetCollection(ctx, batch)
			if err != nil {
				yield(catalog.RawPrice{}, fmt.Errorf("failed to fetch batch %d-%d: %w", start, start+len(batch), err))
				return
			}
			if len(resp.NotFound) > 0 {
				c.logger.Warn("cards not found in collection lookup", zap.Int("count", len(resp.NotFound)))
			}

			for _, card := range resp.Data {
				if !yield(toRawPrice(card.ID, card.Prices), nil) {
					return
				}
			}
		}
	}
}

func searchParams(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("unique", "prints")
	v.Set("order", "set")
	v.Set("include_extras", "true")
	v.Set("include_variations", "true")
	return v.Encode()
}

func toRawSet(s Set) catalog.RawSet {
	return catalog.RawSet{
		Code:        s.Code,
		Name:        s.Name,
		SetType:     s.SetType,
		ReleasedAt:  s.ReleasedAt,
		PrintedSize: s.PrintedSize,
		CardCount:   s.CardCount,
		IconSVGURI:  s.IconSVGURI,
	}
}

func toRawCard(c Card) catalog.RawCard {
	raw := catalog.RawCard{
		ID:              c.ID,
		SetCode:         c.SetCode,
		Name:            c.Name,
		CollectorNumber: c.CollectorNumber,
		Rarity:          c.Rarity,
		TypeLine:        c.TypeLine,
		ManaCost:        c.ManaCost,
		ReleasedAt:      c.ReleasedAt,
		Legalities:      c.Legalities,
	}

	switch {
	case c.ImageURIs != nil:
		raw.ImageURI = c.ImageURIs.Normal
	case len(c.CardFaces) > 0 && c.CardFaces[0].ImageURIs != nil:
		raw.ImageURI = c.CardFaces[0].ImageURIs.Normal
	}
	if raw.ManaCost == "" && len(c.CardFaces) > 0 {
		raw.ManaCost = c.CardFaces[0].ManaCost
	}
	if raw.TypeLine == "" && len(c.CardFaces) > 0 {
		raw.TypeLine = c.CardFaces[0].TypeLine
	}
	return raw
}

func toRawPrice(id string, p Prices) catalog.RawPrice {
	return catalog.RawPrice{CardID: id, Normal: p.USD, Foil: p.USDFoil}
}
