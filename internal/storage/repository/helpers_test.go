package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
)

const (
	cardA = "00000000-0000-4000-8000-00000000000a"
	cardB = "00000000-0000-4000-8000-00000000000b"
	cardC = "00000000-0000-4000-8000-00000000000c"
)

type repos struct {
	sets      SetRepository
	cards     CardRepository
	prices    PriceRepository
	inventory InventoryRepository
}

func setupRepos(t *testing.T) repos {
	t.Helper()
	db := storage.NewTestDB(t)
	return repos{
		sets:      NewSetRepository(db.Conn()),
		cards:     NewCardRepository(db.Conn()),
		prices:    NewPriceRepository(db.Conn()),
		inventory: NewInventoryRepository(db.Conn()),
	}
}

func seedSet(t *testing.T, r repos, code string, baseSize int) {
	t.Helper()
	err := r.sets.Save(context.Background(), []*catalog.Set{{Code: code, Name: code + " set", BaseSize: baseSize, TotalSize: baseSize}})
	require.NoError(t, err)
}

func seedCard(t *testing.T, r repos, id, setCode string, isBase bool) *catalog.Card {
	t.Helper()
	c := &catalog.Card{ID: id, SetCode: setCode, Name: "Card " + id[len(id)-1:], Rarity: catalog.RarityCommon, IsBase: isBase}
	require.NoError(t, r.cards.Save(context.Background(), []*catalog.Card{c}))
	return c
}

func price(cardID, date string, normal, foil *float64) *catalog.Price {
	p := &catalog.Price{CardID: cardID, Date: date}
	if normal != nil {
		p.Normal = decimal.NewNullDecimal(decimal.NewFromFloat(*normal))
	}
	if foil != nil {
		p.Foil = decimal.NewNullDecimal(decimal.NewFromFloat(*foil))
	}
	return p
}

func f(v float64) *float64 { return &v }
