// Package ingest keeps the local catalog in sync with the external catalog
// source: set metadata, per-set cards, the daily price snapshot and the
// missing-price backfill.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/metrics"
	"github.com/ramonehamilton/mtg-catalog/internal/storage/repository"
)

// DefaultBatchSize is the number of price records verified and written together.
const DefaultBatchSize = 500

// Operation names used in logs and metrics.
const (
	OpSetMeta     = "set_meta"
	OpSetCards    = "set_cards"
	OpAllCards    = "all_set_cards"
	OpTodayPrices = "today_prices"
	OpBackfill    = "backfill_prices"
	OpSet         = "set"
)

// Config configures an Orchestrator.
type Config struct {
	Source catalog.Source
	Sets   repository.SetRepository
	Cards  repository.CardRepository
	Prices repository.PriceRepository

	// Logger receives per-record skips and run summaries. Default: no-op
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *metrics.IngestMetrics

	// Now supplies the clock the price date is taken from. Default: time.Now
	Now func() time.Time

	// BatchSize bounds price batches. Default: DefaultBatchSize
	BatchSize int

	// BackfillUnpriced extends FillMissingPrices to cards that have no price row at all.
	BackfillUnpriced bool
}

// PriceResult summarizes a price run.
type PriceResult struct {
	Date     string
	Received int
	Saved    int
	Skipped  int
	Unknown  int
}

// Orchestrator coordinates ingestion runs. Runs are sequential and not
// guarded against each other; callers must not overlap them.
type Orchestrator struct {
	source           catalog.Source
	sets             repository.SetRepository
	cards            repository.CardRepository
	prices           repository.PriceRepository
	logger           *zap.Logger
	metrics          *metrics.IngestMetrics
	now              func() time.Time
	batchSize        int
	backfillUnpriced bool
}

// NewOrchestrator creates an orchestrator. Source and all repositories are required.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	if cfg.Sets == nil || cfg.Cards == nil || cfg.Prices == nil {
		return nil, fmt.Errorf("set, card and price repositories are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Orchestrator{
		source:           cfg.Source,
		sets:             cfg.Sets,
		cards:            cfg.Cards,
		prices:           cfg.Prices,
		logger:           cfg.Logger.With(zap.String("component", "ingest")),
		metrics:          cfg.Metrics,
		now:              cfg.Now,
		batchSize:        cfg.BatchSize,
		backfillUnpriced: cfg.BackfillUnpriced,
	}, nil
}

// IngestAllSetMeta fetches and upserts the metadata of every set, without cards.
// It returns the number of sets saved.
func (o *Orchestrator) IngestAllSetMeta(ctx context.Context) (n int, err error) {
	defer o.observe(OpSetMeta, time.Now(), &err)

	raws, err := o.source.FetchAllSetsMeta(ctx)
	if err != nil {
		return 0, &catalog.SourceUnavailableError{Op: "fetch set metadata", Err: err}
	}

	sets := make([]*catalog.Set, 0, len(raws))
	for _, raw := range raws {
		set, err := catalog.NormalizeSet(raw)
		if err != nil {
			o.logger.Warn("skipping set", zap.String("set_code", raw.Code), zap.Error(err))
			o.metrics.AddRecords(metrics.StreamSets, metrics.OutcomeSkipped, 1)
			continue
		}
		sets = append(sets, set)
	}

	if err := o.sets.Save(ctx, sets); err != nil {
		return 0, err
	}
	o.metrics.AddRecords(metrics.StreamSets, metrics.OutcomeSaved, len(sets))

	o.logger.Info("set metadata ingested", zap.Int("received", len(raws)), zap.Int("saved", len(sets)))
	return len(sets), nil
}

// IngestAllSetCards runs IngestSetCards for every known set, one after the
// other. A source failure aborts the remaining sets. It returns the number of
// cards saved.
func (o *Orchestrator) IngestAllSetCards(ctx context.Context) (total int, err error) {
	defer o.observe(OpAllCards, time.Now(), &err)

	codes, err := o.sets.Codes(ctx)
	if err != nil {
		return 0, err
	}

	for _, code := range codes {
		cards, err := o.IngestSetCards(ctx, code)
		if err != nil {
			return total, err
		}
		total += len(cards)
	}

	o.logger.Info("all set cards ingested", zap.Int("sets", len(codes)), zap.Int("cards", total))
	return total, nil
}

// IngestSetCards streams the cards of one known set and upserts them with their
// reported legalities. Legalities the source no longer reports are deleted.
//
// Records that fail normalization or persistence are logged and skipped. The
// returned cards are the saved ones, with every format filled in for display.
// An unknown set is a *catalog.NotFoundError.
func (o *Orchestrator) IngestSetCards(ctx context.Context, code string) (saved []*catalog.Card, err error) {
	defer o.observe(OpSetCards, time.Now(), &err)

	set, err := o.sets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	for raw, err := range o.source.FetchSetCards(ctx, set.Code) {
		if err != nil {
			return nil, &catalog.SourceUnavailableError{Op: "stream cards of set " + set.Code, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		card, ok := o.saveCard(ctx, set, raw)
		if ok {
			saved = append(saved, card)
		}
	}

	o.logger.Info("set cards ingested", zap.String("set_code", set.Code), zap.Int("saved", len(saved)))
	return saved, nil
}

// IngestSet fetches one set with all of its cards and upserts both. A code the
// source does not know is a *catalog.NotFoundError.
func (o *Orchestrator) IngestSet(ctx context.Context, code string) (saved []*catalog.Card, err error) {
	defer o.observe(OpSet, time.Now(), &err)

	code = catalog.NormalizeSetCode(code)
	raw, err := o.source.FetchSetByCode(ctx, code)
	if err != nil {
		return nil, &catalog.SourceUnavailableError{Op: "fetch set " + code, Err: err}
	}
	if raw == nil {
		return nil, &catalog.NotFoundError{Kind: "set", Key: code}
	}

	set, err := catalog.NormalizeSet(*raw)
	if err != nil {
		return nil, err
	}
	if err := o.sets.Save(ctx, []*catalog.Set{set}); err != nil {
		return nil, err
	}
	o.metrics.AddRecords(metrics.StreamSets, metrics.OutcomeSaved, 1)

	for _, rc := range raw.Cards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if card, ok := o.saveCard(ctx, set, rc); ok {
			saved = append(saved, card)
		}
	}

	o.logger.Info("set ingested", zap.String("set_code", set.Code), zap.Int("saved", len(saved)))
	return saved, nil
}

// EnsureSet returns a stored set, ingesting it from the source first when it
// is missing. The lookup is retried once after ingestion.
func (o *Orchestrator) EnsureSet(ctx context.Context, code string) (*catalog.Set, error) {
	set, err := o.sets.GetByCode(ctx, code)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}

	o.logger.Info("set missing locally, fetching", zap.String("set_code", catalog.NormalizeSetCode(code)))
	if _, err := o.IngestSet(ctx, code); err != nil {
		return nil, err
	}
	return o.sets.GetByCode(ctx, code)
}

// saveCard normalizes and persists one record. Failures are logged with the
// set code and card id and reported as !ok.
func (o *Orchestrator) saveCard(ctx context.Context, set *catalog.Set, raw catalog.RawCard) (*catalog.Card, bool) {
	skip := func(msg string, err error) (*catalog.Card, bool) {
		o.logger.Warn(msg, zap.String("set_code", set.Code), zap.String("card_id", raw.ID), zap.Error(err))
		o.metrics.AddRecords(metrics.StreamCards, metrics.OutcomeSkipped, 1)
		return nil, false
	}

	card, err := catalog.NormalizeCard(raw, set)
	if err != nil {
		return skip("skipping invalid card", err)
	}

	removed, err := o.cards.Replace(ctx, card)
	if err != nil {
		return skip("failed to save card", err)
	}
	for _, f := range removed {
		o.logger.Debug("dropped stale legality",
			zap.String("set_code", set.Code), zap.String("card_id", card.ID), zap.String("format", string(f)))
	}

	o.metrics.AddRecords(metrics.StreamCards, metrics.OutcomeSaved, 1)
	return catalog.FillMissingFormats(card), true
}

func (o *Orchestrator) observe(op string, start time.Time, err *error) {
	o.metrics.ObserveRun(op, start, *err)
	if *err != nil {
		o.logger.Error("ingestion run failed", zap.String("operation", op), zap.Error(*err))
	}
}
