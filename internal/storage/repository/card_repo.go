package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
)

// verifyChunkSize bounds the IN list of one existence query.
const verifyChunkSize = 500

// CardRepository provides methods for managing cards and their legalities.
type CardRepository interface {
	// Save creates or updates cards by id together with their reported
	// legalities, in one transaction. Seq is filled in on each card.
	Save(ctx context.Context, cards []*catalog.Card) error

	// GetByID retrieves a card with its stored legalities.
	GetByID(ctx context.Context, id string) (*catalog.Card, error)

	// Legalities returns the stored legalities of a card in format order.
	Legalities(ctx context.Context, cardID string) ([]catalog.Legality, error)

	// Replace upserts one card and removes the stored legalities it no
	// longer reports, in one transaction. It returns the removed formats.
	Replace(ctx context.Context, card *catalog.Card) ([]catalog.Format, error)

	// VerifyCardsExist returns the subset of ids that exist.
	VerifyCardsExist(ctx context.Context, ids []string) ([]string, error)

	// DeleteLegality removes one stored legality.
	DeleteLegality(ctx context.Context, cardID string, format catalog.Format) error
}

type cardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *sql.DB) CardRepository {
	return &cardRepository{db: db}
}

const cardColumns = `seq, id, set_code, name, collector_number, rarity, type_line, mana_cost, image_uri, released_at, is_base, updated_at`

// Save upserts cards and legalities. The conflict target is the card id, so
// seq keeps the value of the first insert.
func (r *cardRepository) Save(ctx context.Context, cards []*catalog.Card) error {
	if len(cards) == 0 {
		return nil
	}

	return storage.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		return saveCards(ctx, tx, cards)
	})
}

// Replace saves card and deletes the stored legalities missing from
// card.Legalities.
func (r *cardRepository) Replace(ctx context.Context, card *catalog.Card) ([]catalog.Format, error) {
	var removed []catalog.Format

	err := storage.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		stored, err := storedFormats(ctx, tx, card.ID)
		if err != nil {
			return err
		}

		if err := saveCards(ctx, tx, []*catalog.Card{card}); err != nil {
			return err
		}

		reported := make(map[catalog.Format]bool, len(card.Legalities))
		for _, l := range card.Legalities {
			reported[l.Format] = true
		}
		for _, f := range stored {
			if reported[f] {
				continue
			}
			if err := deleteLegality(ctx, tx, card.ID, f); err != nil {
				return err
			}
			removed = append(removed, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// saveCards upserts cards and their reported legalities on tx.
func saveCards(ctx context.Context, tx *sql.Tx, cards []*catalog.Card) error {
	cardStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (id, set_code, name, collector_number, rarity, type_line, mana_cost, image_uri, released_at, is_base, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			set_code = excluded.set_code,
			name = excluded.name,
			collector_number = excluded.collector_number,
			rarity = excluded.rarity,
			type_line = excluded.type_line,
			mana_cost = excluded.mana_cost,
			image_uri = excluded.image_uri,
			released_at = excluded.released_at,
			is_base = excluded.is_base,
			updated_at = excluded.updated_at
		RETURNING seq
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card upsert: %w", err)
	}
	defer cardStmt.Close()

	legalityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO legalities (card_id, format, status)
		VALUES (?, ?, ?)
		ON CONFLICT(card_id, format) DO UPDATE SET status = excluded.status
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare legality upsert: %w", err)
	}
	defer legalityStmt.Close()

	now := time.Now().UTC()
	for _, c := range cards {
		err := cardStmt.QueryRowContext(ctx,
			c.ID,
			c.SetCode,
			c.Name,
			c.CollectorNumber,
			string(c.Rarity),
			c.TypeLine,
			c.ManaCost,
			c.ImageURI,
			c.ReleasedAt,
			c.IsBase,
			now,
		).Scan(&c.Seq)
		if err != nil {
			return fmt.Errorf("failed to save card %s: %w", c.ID, err)
		}
		c.UpdatedAt = now

		for _, l := range c.Legalities {
			if _, err := legalityStmt.ExecContext(ctx, c.ID, string(l.Format), string(l.Status)); err != nil {
				return fmt.Errorf("failed to save legality %s for card %s: %w", l.Format, c.ID, err)
			}
		}
	}
	return nil
}

func storedFormats(ctx context.Context, tx *sql.Tx, cardID string) ([]catalog.Format, error) {
	rows, err := tx.QueryContext(ctx, `SELECT format FROM legalities WHERE card_id = ?`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get legalities for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var formats []catalog.Format
	for rows.Next() {
		var f catalog.Format
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan legality: %w", err)
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

// GetByID retrieves a card by its id.
func (r *cardRepository) GetByID(ctx context.Context, id string) (*catalog.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)

	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &catalog.NotFoundError{Kind: "card", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}

	c.Legalities, err = r.Legalities(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Legalities returns the stored legalities of a card.
func (r *cardRepository) Legalities(ctx context.Context, cardID string) ([]catalog.Legality, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT card_id, format, status FROM legalities WHERE card_id = ?`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get legalities for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var legalities []catalog.Legality
	for rows.Next() {
		var l catalog.Legality
		if err := rows.Scan(&l.CardID, &l.Format, &l.Status); err != nil {
			return nil, fmt.Errorf("failed to scan legality: %w", err)
		}
		legalities = append(legalities, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stored order is arbitrary; present them the way FillMissingFormats does.
	ordered := make([]catalog.Legality, 0, len(legalities))
	for _, f := range catalog.Formats {
		for _, l := range legalities {
			if l.Format == f {
				ordered = append(ordered, l)
			}
		}
	}
	return ordered, nil
}

// VerifyCardsExist checks ids in chunks. An empty input returns an empty
// result without touching the database.
func (r *cardRepository) VerifyCardsExist(ctx context.Context, ids []string) ([]string, error) {
	existing := []string{}
	if len(ids) == 0 {
		return existing, nil
	}

	for start := 0; start < len(ids); start += verifyChunkSize {
		chunk := ids[start:min(start+verifyChunkSize, len(ids))]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := r.db.QueryContext(ctx, `SELECT id FROM cards WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to verify cards: %w", err)
		}

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan card id: %w", err)
			}
			existing = append(existing, id)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return existing, nil
}

// DeleteLegality removes a legality the provider no longer reports.
func (r *cardRepository) DeleteLegality(ctx context.Context, cardID string, format catalog.Format) error {
	return deleteLegality(ctx, r.db, cardID, format)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func deleteLegality(ctx context.Context, db execer, cardID string, format catalog.Format) error {
	_, err := db.ExecContext(ctx, `DELETE FROM legalities WHERE card_id = ? AND format = ?`, cardID, string(format))
	if err != nil {
		return fmt.Errorf("failed to delete legality %s for card %s: %w", format, cardID, err)
	}
	return nil
}

func scanCard(row rowScanner) (*catalog.Card, error) {
	c := &catalog.Card{}
	err := row.Scan(
		&c.Seq,
		&c.ID,
		&c.SetCode,
		&c.Name,
		&c.CollectorNumber,
		&c.Rarity,
		&c.TypeLine,
		&c.ManaCost,
		&c.ImageURI,
		&c.ReleasedAt,
		&c.IsBase,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
