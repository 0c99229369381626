package ingest

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/metrics"
)

// IngestTodayPrices streams the source's daily snapshot and upserts one price
// row per known card for today's UTC date. Records are verified against the
// card table one batch at a time; records for unknown cards are dropped. Set
// aggregates are refreshed once the stream is exhausted.
func (o *Orchestrator) IngestTodayPrices(ctx context.Context) (res *PriceResult, err error) {
	defer o.observe(OpTodayPrices, time.Now(), &err)

	res = &PriceResult{Date: catalog.PriceDate(o.now())}
	if err := o.consumePrices(ctx, o.source.FetchTodayPrices(ctx), res, metrics.StreamPrices, "stream today prices", nil); err != nil {
		return nil, err
	}
	if err := o.prices.RefreshSetPrices(ctx, res.Date); err != nil {
		return nil, err
	}

	o.logger.Info("today prices ingested",
		zap.String("date", res.Date),
		zap.Int("received", res.Received),
		zap.Int("saved", res.Saved),
		zap.Int("skipped", res.Skipped),
		zap.Int("unknown", res.Unknown))
	return res, nil
}

// FillMissingPrices re-requests prices for cards whose latest price row has
// neither a normal nor a foil price, and for cards that were never priced when
// BackfillUnpriced is set. Only those ids are fetched from the source.
func (o *Orchestrator) FillMissingPrices(ctx context.Context) (res *PriceResult, err error) {
	defer o.observe(OpBackfill, time.Now(), &err)

	res = &PriceResult{Date: catalog.PriceDate(o.now())}

	ids, err := o.prices.CardsMissingPrices(ctx, o.backfillUnpriced)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		o.logger.Info("no cards missing prices")
		return res, nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	if err := o.consumePrices(ctx, o.source.FetchCardPrices(ctx, ids), res, metrics.StreamBackfill, "backfill card prices", wanted); err != nil {
		return nil, err
	}
	if err := o.prices.RefreshSetPrices(ctx, res.Date); err != nil {
		return nil, err
	}

	o.logger.Info("missing prices backfilled",
		zap.Int("candidates", len(ids)),
		zap.Int("received", res.Received),
		zap.Int("saved", res.Saved),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// consumePrices drains a price stream into batches of o.batchSize. With a nil
// wanted set, each batch is checked against the card table; otherwise records
// outside wanted are dropped without a query.
func (o *Orchestrator) consumePrices(ctx context.Context, stream iter.Seq2[catalog.RawPrice, error], res *PriceResult, streamName, op string, wanted map[string]bool) error {
	batch := make([]*catalog.Price, 0, o.batchSize)

	for raw, err := range stream {
		if err != nil {
			return &catalog.SourceUnavailableError{Op: op, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Received++

		price, err := catalog.NormalizePrice(raw, res.Date)
		if err != nil {
			o.logger.Warn("skipping invalid price", zap.String("card_id", raw.CardID), zap.Error(err))
			o.metrics.AddRecords(streamName, metrics.OutcomeSkipped, 1)
			res.Skipped++
			continue
		}
		if wanted != nil && !wanted[price.CardID] {
			o.metrics.AddRecords(streamName, metrics.OutcomeUnknown, 1)
			res.Unknown++
			continue
		}

		batch = append(batch, price)
		if len(batch) >= o.batchSize {
			o.flushPrices(ctx, batch, res, streamName, wanted == nil)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		o.flushPrices(ctx, batch, res, streamName, wanted == nil)
	}
	return nil
}

// flushPrices writes one batch. A failed batch write is retried row by row so
// one bad row does not cost the whole batch.
func (o *Orchestrator) flushPrices(ctx context.Context, batch []*catalog.Price, res *PriceResult, streamName string, verify bool) {
	if verify {
		ids := make([]string, len(batch))
		for i, p := range batch {
			ids[i] = p.CardID
		}

		existing, err := o.cards.VerifyCardsExist(ctx, ids)
		if err != nil {
			o.logger.Error("failed to verify price batch, skipping it", zap.Int("size", len(batch)), zap.Error(err))
			o.metrics.AddRecords(streamName, metrics.OutcomeSkipped, len(batch))
			res.Skipped += len(batch)
			return
		}

		known := make(map[string]bool, len(existing))
		for _, id := range existing {
			known[id] = true
		}

		kept := batch[:0:0]
		for _, p := range batch {
			if known[p.CardID] {
				kept = append(kept, p)
				continue
			}
			o.logger.Debug("dropping price for unknown card", zap.String("card_id", p.CardID))
			res.Unknown++
		}
		o.metrics.AddRecords(streamName, metrics.OutcomeUnknown, len(batch)-len(kept))
		batch = kept
	}

	if len(batch) == 0 {
		return
	}

	err := o.prices.Save(ctx, batch)
	if err == nil {
		o.recordSaved(batch, res, streamName)
		return
	}
	o.logger.Warn("price batch failed, retrying row by row", zap.Int("size", len(batch)), zap.Error(err))

	for _, p := range batch {
		if err := o.prices.Save(ctx, []*catalog.Price{p}); err != nil {
			o.logger.Warn("failed to save price", zap.String("card_id", p.CardID), zap.String("date", p.Date), zap.Error(err))
			o.metrics.AddRecords(streamName, metrics.OutcomeSkipped, 1)
			res.Skipped++
			continue
		}
		o.recordSaved([]*catalog.Price{p}, res, streamName)
	}
}

func (o *Orchestrator) recordSaved(prices []*catalog.Price, res *PriceResult, streamName string) {
	empty := 0
	for _, p := range prices {
		if p.IsEmpty() {
			empty++
		}
	}
	res.Saved += len(prices)
	o.metrics.AddRecords(streamName, metrics.OutcomeSaved, len(prices)-empty)
	o.metrics.AddRecords(streamName, metrics.OutcomeEmpty, empty)
}
