package ingest

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
	"github.com/ramonehamilton/mtg-catalog/internal/storage/repository"
)

const (
	cardA = "00000000-0000-4000-8000-00000000000a"
	cardB = "00000000-0000-4000-8000-00000000000b"
	cardC = "00000000-0000-4000-8000-00000000000c"
	cardD = "00000000-0000-4000-8000-00000000000d"
)

var (
	errStream = errors.New("connection reset")
	fixedNow  = time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
)

// fakeSource serves canned records and remembers what was asked of it.
type fakeSource struct {
	sets     []catalog.RawSet
	setsErr  error
	cards    map[string][]catalog.RawCard
	cardsErr error
	today    []catalog.RawPrice
	todayErr error
	byID     map[string]catalog.RawPrice

	setCalls     []string
	cardCalls    []string
	requestedIDs []string
}

func (f *fakeSource) FetchAllSetsMeta(ctx context.Context) ([]catalog.RawSet, error) {
	return f.sets, f.setsErr
}

func (f *fakeSource) FetchSetByCode(ctx context.Context, code string) (*catalog.RawSet, error) {
	f.setCalls = append(f.setCalls, code)
	for _, s := range f.sets {
		if catalog.NormalizeSetCode(s.Code) == catalog.NormalizeSetCode(code) {
			set := s
			set.Cards = f.cards[catalog.NormalizeSetCode(code)]
			return &set, nil
		}
	}
	return nil, nil
}

func (f *fakeSource) FetchSetCards(ctx context.Context, code string) iter.Seq2[catalog.RawCard, error] {
	f.cardCalls = append(f.cardCalls, code)
	return func(yield func(catalog.RawCard, error) bool) {
		for _, c := range f.cards[code] {
			if !yield(c, nil) {
				return
			}
		}
		if f.cardsErr != nil {
			yield(catalog.RawCard{}, f.cardsErr)
		}
	}
}

func (f *fakeSource) FetchTodayPrices(ctx context.Context) iter.Seq2[catalog.RawPrice, error] {
	return func(yield func(catalog.RawPrice, error) bool) {
		for _, p := range f.today {
			if !yield(p, nil) {
				return
			}
		}
		if f.todayErr != nil {
			yield(catalog.RawPrice{}, f.todayErr)
		}
	}
}

func (f *fakeSource) FetchCardPrices(ctx context.Context, ids []string) iter.Seq2[catalog.RawPrice, error] {
	f.requestedIDs = append(f.requestedIDs, ids...)
	return func(yield func(catalog.RawPrice, error) bool) {
		for _, id := range ids {
			p, ok := f.byID[id]
			if !ok {
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

type fixture struct {
	db     *storage.DB
	source *fakeSource
	sets   repository.SetRepository
	cards  repository.CardRepository
	prices repository.PriceRepository
	orch   *Orchestrator
}

func newFixture(t *testing.T, source *fakeSource, logger *zap.Logger, mutate ...func(*Config)) *fixture {
	t.Helper()

	db := storage.NewTestDB(t)
	f := &fixture{
		db:     db,
		source: source,
		sets:   repository.NewSetRepository(db.Conn()),
		cards:  repository.NewCardRepository(db.Conn()),
		prices: repository.NewPriceRepository(db.Conn()),
	}

	cfg := Config{
		Source: source,
		Sets:   f.sets,
		Cards:  f.cards,
		Prices: f.prices,
		Logger: logger,
		Now:    func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&cfg)
	}

	orch, err := NewOrchestrator(cfg)
	require.NoError(t, err)
	f.orch = orch
	return f
}

func rawSet(code string, size int) catalog.RawSet {
	return catalog.RawSet{Code: code, Name: code + " set", SetType: "expansion", ReleasedAt: "2016-09-30", PrintedSize: size, CardCount: size}
}

func rawCard(id, set, number, rarity string, legalities map[string]string) catalog.RawCard {
	return catalog.RawCard{
		ID:              id,
		SetCode:         set,
		Name:            "Card " + number,
		CollectorNumber: number,
		Rarity:          rarity,
		Legalities:      legalities,
	}
}

func str(s string) *string { return &s }

func seedCards(t *testing.T, f *fixture, code string, size int, cards ...catalog.RawCard) {
	t.Helper()
	ctx := context.Background()

	f.source.sets = append(f.source.sets, rawSet(code, size))
	if f.source.cards == nil {
		f.source.cards = map[string][]catalog.RawCard{}
	}
	f.source.cards[catalog.NormalizeSetCode(code)] = cards

	_, err := f.orch.IngestAllSetMeta(ctx)
	require.NoError(t, err)
	_, err = f.orch.IngestSetCards(ctx, code)
	require.NoError(t, err)
}
