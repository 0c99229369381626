package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/pricing"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
)

// PriceRepository provides methods for managing daily card prices and the
// per-set aggregates derived from them.
type PriceRepository interface {
	// Save creates or updates prices by (card, date). ID is filled in.
	Save(ctx context.Context, prices []*catalog.Price) error

	// Delete removes one price row.
	Delete(ctx context.Context, id int64) error

	// Latest returns the most recent price row of a card.
	Latest(ctx context.Context, cardID string) (*catalog.Price, error)

	// CardsMissingPrices returns cards whose latest price row has neither a
	// normal nor a foil price. With includeUnpriced, cards without any price
	// row are included too.
	CardsMissingPrices(ctx context.Context, includeUnpriced bool) ([]string, error)

	// RefreshSetPrices recomputes every set's aggregates from latest prices.
	RefreshSetPrices(ctx context.Context, date string) error

	// SetPrices returns the stored aggregates of one set.
	SetPrices(ctx context.Context, setCode string) (*catalog.SetPrices, error)
}

type priceRepository struct {
	db *sql.DB
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(db *sql.DB) PriceRepository {
	return &priceRepository{db: db}
}

// Save upserts prices in one transaction.
func (r *priceRepository) Save(ctx context.Context, prices []*catalog.Price) error {
	if len(prices) == 0 {
		return nil
	}

	return storage.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO prices (card_id, date, normal, foil)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(card_id, date) DO UPDATE SET
				normal = excluded.normal,
				foil = excluded.foil
			RETURNING id
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare price upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if err := stmt.QueryRowContext(ctx, p.CardID, p.Date, p.Normal, p.Foil).Scan(&p.ID); err != nil {
				return fmt.Errorf("failed to save price for card %s on %s: %w", p.CardID, p.Date, err)
			}
		}
		return nil
	})
}

// Delete removes a price row by id.
func (r *priceRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM prices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete price %d: %w", id, err)
	}
	return nil
}

// Latest returns the newest price row of a card.
func (r *priceRepository) Latest(ctx context.Context, cardID string) (*catalog.Price, error) {
	p := &catalog.Price{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, card_id, date, normal, foil FROM latest_prices WHERE card_id = ?`, cardID,
	).Scan(&p.ID, &p.CardID, &p.Date, &p.Normal, &p.Foil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &catalog.NotFoundError{Kind: "price", Key: cardID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price for card %s: %w", cardID, err)
	}
	return p, nil
}

// CardsMissingPrices lists the backfill candidates.
func (r *priceRepository) CardsMissingPrices(ctx context.Context, includeUnpriced bool) ([]string, error) {
	query := `SELECT card_id FROM latest_prices WHERE normal IS NULL AND foil IS NULL`
	if includeUnpriced {
		query += `
			UNION
			SELECT c.id FROM cards c
			WHERE NOT EXISTS (SELECT 1 FROM prices p WHERE p.card_id = c.id)`
	}
	query += ` ORDER BY 1`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find cards missing prices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RefreshSetPrices rebuilds set_prices. Base columns sum base cards only; the
// _all columns sum every card of the set. Sums are rounded to cents.
func (r *priceRepository) RefreshSetPrices(ctx context.Context, date string) error {
	cols := pricing.Qualified("lp", "", "")
	normalValue := cols.CardValueExpression(false)
	foilValue := cols.CardValueExpression(true)

	query := fmt.Sprintf(`
		INSERT INTO set_prices (set_code, date, base_price, total_price, base_price_all, total_price_all, updated_at)
		SELECT
			s.code,
			?,
			COALESCE(%[1]s, 0),
			COALESCE(%[2]s, 0),
			COALESCE(%[3]s, 0),
			COALESCE(%[4]s, 0),
			CURRENT_TIMESTAMP
		FROM sets s
		LEFT JOIN cards c ON c.set_code = s.code
		LEFT JOIN latest_prices lp ON lp.card_id = c.id
		WHERE true
		GROUP BY s.code
		ON CONFLICT(set_code) DO UPDATE SET
			date = excluded.date,
			base_price = excluded.base_price,
			total_price = excluded.total_price,
			base_price_all = excluded.base_price_all,
			total_price_all = excluded.total_price_all,
			updated_at = excluded.updated_at
	`,
		pricing.Money("SUM(CASE WHEN c.is_base THEN "+normalValue+" END)"),
		pricing.Money("SUM(CASE WHEN c.is_base THEN "+foilValue+" END)"),
		pricing.Money("SUM(CASE WHEN c.id IS NOT NULL THEN "+normalValue+" END)"),
		pricing.Money("SUM(CASE WHEN c.id IS NOT NULL THEN "+foilValue+" END)"),
	)

	if _, err := r.db.ExecContext(ctx, query, date); err != nil {
		return fmt.Errorf("failed to refresh set prices: %w", err)
	}
	return nil
}

// SetPrices returns the aggregates of one set. A set never refreshed reports zeros.
func (r *priceRepository) SetPrices(ctx context.Context, setCode string) (*catalog.SetPrices, error) {
	code := catalog.NormalizeSetCode(setCode)
	sp := &catalog.SetPrices{SetCode: code}
	err := r.db.QueryRowContext(ctx, `
		SELECT base_price, total_price, base_price_all, total_price_all
		FROM set_prices WHERE set_code = ?
	`, code).Scan(&sp.BasePrice, &sp.TotalPrice, &sp.BasePriceAll, &sp.TotalPriceAll)
	if errors.Is(err, sql.ErrNoRows) {
		return sp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get set prices for %s: %w", code, err)
	}
	sp.BasePrice = pricing.RoundMoney(sp.BasePrice)
	sp.TotalPrice = pricing.RoundMoney(sp.TotalPrice)
	sp.BasePriceAll = pricing.RoundMoney(sp.BasePriceAll)
	sp.TotalPriceAll = pricing.RoundMoney(sp.TotalPriceAll)
	return sp, nil
}
