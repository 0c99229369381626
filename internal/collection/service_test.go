package collection

import (
	"context"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/query"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
	"github.com/ramonehamilton/mtg-catalog/internal/storage/repository"
)

const (
	cardA = "00000000-0000-4000-8000-00000000000a"
	cardB = "00000000-0000-4000-8000-00000000000b"
	cardC = "00000000-0000-4000-8000-00000000000c"
	cardD = "00000000-0000-4000-8000-00000000000d"

	user = "0b8f6b7e-1d7c-4f55-9d7c-0d0c3f8e2a11"
)

func nd(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// newSeededService builds a catalog of two sets:
//
//	KLD (base 2, total 3): A #1 1.25/2.50, B #2 -/0.50, C #3 10/- (not base)
//	AER (base 1, total 1): D #1 unpriced
//
// The user owns 2 normal and 1 foil A, and 1 normal C.
func newSeededService(t *testing.T, loader SetLoader) *Service {
	t.Helper()
	ctx := context.Background()
	db := storage.NewTestDB(t)

	sets := repository.NewSetRepository(db.Conn())
	cards := repository.NewCardRepository(db.Conn())
	prices := repository.NewPriceRepository(db.Conn())
	inventory := repository.NewInventoryRepository(db.Conn())

	require.NoError(t, sets.Save(ctx, []*catalog.Set{
		{Code: "KLD", Name: "Kaladesh", ReleasedAt: "2016-09-30", BaseSize: 2, TotalSize: 3},
		{Code: "AER", Name: "Aether Revolt", ReleasedAt: "2017-01-20", BaseSize: 1, TotalSize: 1},
	}))
	require.NoError(t, cards.Save(ctx, []*catalog.Card{
		{ID: cardA, SetCode: "KLD", Name: "Alpha Elf", CollectorNumber: "1", Rarity: catalog.RarityCommon, TypeLine: "Creature", IsBase: true,
			Legalities: []catalog.Legality{{CardID: cardA, Format: "standard", Status: catalog.StatusLegal}}},
		{ID: cardB, SetCode: "KLD", Name: "Beta Goblin", CollectorNumber: "2", Rarity: catalog.RarityRare, TypeLine: "Creature", IsBase: true},
		{ID: cardC, SetCode: "KLD", Name: "Gamma Elf", CollectorNumber: "3", Rarity: catalog.RarityMythic, TypeLine: "Creature"},
		{ID: cardD, SetCode: "AER", Name: "Delta", CollectorNumber: "1", Rarity: catalog.RarityCommon, TypeLine: "Artifact", IsBase: true},
	}))
	require.NoError(t, prices.Save(ctx, []*catalog.Price{
		{CardID: cardA, Date: "2024-06-01", Normal: nd("1.25"), Foil: nd("2.50")},
		{CardID: cardB, Date: "2024-06-01", Foil: nd("0.50")},
		{CardID: cardC, Date: "2024-06-01", Normal: nd("10")},
	}))
	require.NoError(t, prices.RefreshSetPrices(ctx, "2024-06-01"))

	for _, item := range []catalog.InventoryItem{
		{UserID: user, CardID: cardA, Quantity: 2},
		{UserID: user, CardID: cardA, IsFoil: true, Quantity: 1},
		{UserID: user, CardID: cardC, Quantity: 1},
	} {
		require.NoError(t, inventory.Save(ctx, item))
	}

	svc, err := NewService(Config{DB: db, Loader: loader})
	require.NoError(t, err)
	return svc
}

func params(values url.Values, sortable []string, includeFoil bool) ListParams {
	return ListParams{UserID: user, Options: query.Parse(values, sortable), IncludeFoil: includeFoil, BaseURL: "/test"}
}

func TestNewServiceRequiresDB(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}

func TestListSets(t *testing.T) {
	svc := newSeededService(t, nil)
	ctx := context.Background()

	page, err := svc.ListSets(ctx, params(url.Values{}, SetSortFields, false))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)

	assert.Equal(t, "AER", page.Items[0].Code, "newest set first by default")
	assertDecimal(t, "0", page.Items[0].Price)

	kld := page.Items[1]
	assert.Equal(t, "KLD", kld.Code)
	assertDecimal(t, "1.75", kld.Price)
	assertDecimal(t, "1.75", kld.EffectivePrice)
	assert.Equal(t, 1, kld.Owned)
	assert.InDelta(t, 50.0, kld.CompletionPercent, 1e-9)
}

func TestListSetsAllCardsWithFoil(t *testing.T) {
	svc := newSeededService(t, nil)

	page, err := svc.ListSets(context.Background(), params(url.Values{"baseOnly": {"false"}, "filter": {"kld"}}, SetSortFields, true))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	kld := page.Items[0]
	assertDecimal(t, "14.25", kld.Price)
	assert.Equal(t, 2, kld.Owned)
	assert.InDelta(t, 200.0/3.0, kld.CompletionPercent, 1e-9)
}

func TestListSetsSortByPrice(t *testing.T) {
	svc := newSeededService(t, nil)

	page, err := svc.ListSets(context.Background(), params(url.Values{"sort": {"price"}, "ascend": {"false"}}, SetSortFields, false))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "KLD", page.Items[0].Code)
}

func TestGetSet(t *testing.T) {
	svc := newSeededService(t, nil)
	ctx := context.Background()

	set, err := svc.GetSet(ctx, "kld", true, false)
	require.NoError(t, err)
	assertDecimal(t, "14.25", set.Price)
	assertDecimal(t, "1.75", set.EffectivePrice)
	assertDecimal(t, "4.25", set.TotalPrice)
	assertDecimal(t, "11.75", set.BasePriceAll)

	_, err = svc.GetSet(ctx, "zzz", false, true)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

type stubLoader struct {
	calls []string
	set   *catalog.Set
}

func (l *stubLoader) EnsureSet(ctx context.Context, code string) (*catalog.Set, error) {
	l.calls = append(l.calls, code)
	if l.set == nil {
		return nil, &catalog.NotFoundError{Kind: "set", Key: code}
	}
	return l.set, nil
}

func TestGetSetUsesLoader(t *testing.T) {
	loader := &stubLoader{set: &catalog.Set{Code: "KLD", Name: "Kaladesh", BaseSize: 2, TotalSize: 3}}
	svc := newSeededService(t, loader)

	set, err := svc.GetSet(context.Background(), "kld", false, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"kld"}, loader.calls)
	assertDecimal(t, "1.75", set.Price)
}

func TestListSetCards(t *testing.T) {
	svc := newSeededService(t, nil)

	page, err := svc.ListSetCards(context.Background(), "KLD", params(url.Values{}, CardSortFields, false))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total, "base cards only by default")
	require.Len(t, page.Items, 2)

	a, b := page.Items[0], page.Items[1]
	assert.Equal(t, cardA, a.ID)
	assertDecimal(t, "1.25", a.Value)
	assert.Equal(t, 2, a.OwnedNormal)
	assert.Equal(t, 1, a.OwnedFoil)

	assert.Equal(t, cardB, b.ID)
	assert.False(t, b.Normal.Valid)
	assertDecimal(t, "0.5", b.Value)
	assert.Zero(t, b.OwnedNormal)
}

func TestListSetCardsAllSortedByPrice(t *testing.T) {
	svc := newSeededService(t, nil)

	page, err := svc.ListSetCards(context.Background(), "kld",
		params(url.Values{"baseOnly": {"false"}, "sort": {"price"}, "ascend": {"false"}}, CardSortFields, true))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 3)

	assert.Equal(t, []string{cardC, cardA, cardB}, []string{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID})
	assertDecimal(t, "3.75", page.Items[1].Value)
}

func TestListSetCardsFilterAndPaging(t *testing.T) {
	svc := newSeededService(t, nil)

	page, err := svc.ListSetCards(context.Background(), "KLD",
		params(url.Values{"baseOnly": {"false"}, "filter": {"elf"}, "limit": {"1"}, "page": {"2"}}, CardSortFields, false))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, cardC, page.Items[0].ID)

	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Nil(t, page.Pagination.Next)
	require.NotNil(t, page.Pagination.Previous)
	assert.Contains(t, page.Pagination.Previous.URL, "filter=elf")
	require.NotNil(t, page.Pagination.ToggleBaseOnly)
	assert.Contains(t, page.Pagination.ToggleBaseOnly.URL, "baseOnly=true")
}

func TestListSetCardsUnknownSet(t *testing.T) {
	svc := newSeededService(t, nil)

	_, err := svc.ListSetCards(context.Background(), "ZZZ", params(url.Values{}, CardSortFields, false))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestListInventory(t *testing.T) {
	svc := newSeededService(t, nil)

	page, err := svc.ListInventory(context.Background(), params(url.Values{}, InventorySortFields, false))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 3)

	assert.Equal(t, cardC, page.Items[0].CardID)
	assertDecimal(t, "10", page.Items[0].Value)

	assert.Equal(t, cardA, page.Items[1].CardID)
	assert.False(t, page.Items[1].IsFoil)
	assertDecimal(t, "1.25", page.Items[1].UnitValue)
	assertDecimal(t, "2.5", page.Items[1].Value)

	assert.True(t, page.Items[2].IsFoil)
	assertDecimal(t, "2.5", page.Items[2].UnitValue)
}

func TestListInventoryOtherUserIsEmpty(t *testing.T) {
	svc := newSeededService(t, nil)

	p := params(url.Values{}, InventorySortFields, false)
	p.UserID = "someone-else"
	page, err := svc.ListInventory(context.Background(), p)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
}

func TestSummary(t *testing.T) {
	svc := newSeededService(t, nil)

	sum, err := svc.Summary(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, user, sum.UserID)
	assert.Equal(t, 2, sum.DistinctCards)
	assert.Equal(t, 4, sum.TotalCards)
	assert.Equal(t, 1, sum.Sets)
	assertDecimal(t, "15", sum.TotalValue)

	empty, err := svc.Summary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalCards)
	assertDecimal(t, "0", empty.TotalValue)
}

func TestGetCard(t *testing.T) {
	svc := newSeededService(t, nil)
	ctx := context.Background()

	card, err := svc.GetCard(ctx, cardA, true)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", card.PriceDate)
	assertDecimal(t, "3.75", card.Value)
	require.Len(t, card.Legalities, len(catalog.Formats))
	assert.Equal(t, LegalityView{Format: "standard", Status: "Legal"}, card.Legalities[0])
	assert.Equal(t, "Not Legal", card.Legalities[1].Status)

	unpriced, err := svc.GetCard(ctx, cardD, false)
	require.NoError(t, err)
	assert.Empty(t, unpriced.PriceDate)
	assertDecimal(t, "0", unpriced.Value)

	_, err = svc.GetCard(ctx, cardD[:len(cardD)-1]+"f", false)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSetQuantity(t *testing.T) {
	svc := newSeededService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.SetQuantity(ctx, catalog.InventoryItem{UserID: user, CardID: cardB, Quantity: 4}))
	line, err := svc.inventory.Get(ctx, user, cardB, false)
	require.NoError(t, err)
	assert.Equal(t, 4, line.Quantity)

	require.NoError(t, svc.SetQuantity(ctx, catalog.InventoryItem{UserID: user, CardID: cardB, Quantity: 0}))
	_, err = svc.inventory.Get(ctx, user, cardB, false)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	err = svc.SetQuantity(ctx, catalog.InventoryItem{UserID: user, CardID: "00000000-0000-4000-8000-0000000000ff", Quantity: 1})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	err = svc.SetQuantity(ctx, catalog.InventoryItem{UserID: " ", CardID: cardB, Quantity: 1})
	assert.True(t, catalog.IsValidation(err))

	err = svc.SetQuantity(ctx, catalog.InventoryItem{UserID: user, CardID: cardB, Quantity: -1})
	assert.True(t, catalog.IsValidation(err))
}

// newCentsService seeds prices whose float sums are inexact:
//
//	MH3 (base 2): E #1 0.10/0.20, F #2 0.20/-
//
// The user owns 3 normal and 1 foil E, and 1 normal F.
func newCentsService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	db := storage.NewTestDB(t)

	sets := repository.NewSetRepository(db.Conn())
	cards := repository.NewCardRepository(db.Conn())
	prices := repository.NewPriceRepository(db.Conn())
	inventory := repository.NewInventoryRepository(db.Conn())

	require.NoError(t, sets.Save(ctx, []*catalog.Set{{Code: "MH3", Name: "Modern Horizons 3", BaseSize: 2, TotalSize: 2}}))
	require.NoError(t, cards.Save(ctx, []*catalog.Card{
		{ID: cardA, SetCode: "MH3", Name: "Echo", CollectorNumber: "1", Rarity: catalog.RarityCommon, IsBase: true},
		{ID: cardB, SetCode: "MH3", Name: "Flare", CollectorNumber: "2", Rarity: catalog.RarityCommon, IsBase: true},
	}))
	require.NoError(t, prices.Save(ctx, []*catalog.Price{
		{CardID: cardA, Date: "2024-06-01", Normal: nd("0.10"), Foil: nd("0.20")},
		{CardID: cardB, Date: "2024-06-01", Normal: nd("0.20")},
	}))
	require.NoError(t, prices.RefreshSetPrices(ctx, "2024-06-01"))

	for _, item := range []catalog.InventoryItem{
		{UserID: user, CardID: cardA, Quantity: 3},
		{UserID: user, CardID: cardA, IsFoil: true, Quantity: 1},
		{UserID: user, CardID: cardB, Quantity: 1},
	} {
		require.NoError(t, inventory.Save(ctx, item))
	}

	svc, err := NewService(Config{DB: db})
	require.NoError(t, err)
	return svc
}

func TestMoneyValuesKeepCents(t *testing.T) {
	svc := newCentsService(t)
	ctx := context.Background()

	sets, err := svc.ListSets(ctx, params(url.Values{}, SetSortFields, false))
	require.NoError(t, err)
	require.Len(t, sets.Items, 1)
	assert.Equal(t, "0.3", sets.Items[0].Price.String())

	set, err := svc.GetSet(ctx, "MH3", true, true)
	require.NoError(t, err)
	assert.Equal(t, "0.5", set.Price.String())

	cards, err := svc.ListSetCards(ctx, "MH3", params(url.Values{}, CardSortFields, true))
	require.NoError(t, err)
	require.Len(t, cards.Items, 2)
	assert.Equal(t, "0.3", cards.Items[0].Value.String())

	inv, err := svc.ListInventory(ctx, params(url.Values{}, InventorySortFields, false))
	require.NoError(t, err)
	require.Len(t, inv.Items, 3)
	assert.Equal(t, cardA, inv.Items[0].CardID)
	assert.False(t, inv.Items[0].IsFoil)
	assert.Equal(t, "0.1", inv.Items[0].UnitValue.String())
	assert.Equal(t, "0.3", inv.Items[0].Value.String())

	sum, err := svc.Summary(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "0.7", sum.TotalValue.String())
}
