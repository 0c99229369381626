package ingest

import (
	"context"
	"fmt"
)

// RunDaily refreshes set metadata, ingests today's price snapshot and then
// backfills cards still missing prices.
func (o *Orchestrator) RunDaily(ctx context.Context) error {
	if _, err := o.IngestAllSetMeta(ctx); err != nil {
		return fmt.Errorf("daily run: %w", err)
	}
	if _, err := o.IngestTodayPrices(ctx); err != nil {
		return fmt.Errorf("daily run: %w", err)
	}
	if _, err := o.FillMissingPrices(ctx); err != nil {
		return fmt.Errorf("daily run: %w", err)
	}
	return nil
}

// RunWeekly refreshes set metadata and re-ingests the cards of every set.
func (o *Orchestrator) RunWeekly(ctx context.Context) error {
	if _, err := o.IngestAllSetMeta(ctx); err != nil {
		return fmt.Errorf("weekly run: %w", err)
	}
	if _, err := o.IngestAllSetCards(ctx); err != nil {
		return fmt.Errorf("weekly run: %w", err)
	}
	return nil
}
