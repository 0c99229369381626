package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
)

// InventoryRepository handles a user's owned card quantities.
type InventoryRepository interface {
	// Save sets the quantity of one (user, card, finish) line. Zero deletes
	// the line; negative quantities are rejected.
	Save(ctx context.Context, item catalog.InventoryItem) error

	// Get retrieves one line. A missing line is a *catalog.NotFoundError.
	Get(ctx context.Context, userID, cardID string, isFoil bool) (*catalog.InventoryItem, error)

	// Delete removes one line.
	Delete(ctx context.Context, userID, cardID string, isFoil bool) error
}

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository creates a new inventory repository.
func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

// Save upserts or deletes an inventory line.
func (r *inventoryRepository) Save(ctx context.Context, item catalog.InventoryItem) error {
	if item.Quantity < 0 {
		return &catalog.ValidationError{CardID: item.CardID, Field: "quantity", Value: fmt.Sprint(item.Quantity), Reason: "must not be negative"}
	}
	if item.Quantity == 0 {
		return r.Delete(ctx, item.UserID, item.CardID, item.IsFoil)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory (user_id, card_id, is_foil, quantity, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, card_id, is_foil) DO UPDATE SET
			quantity = excluded.quantity,
			updated_at = excluded.updated_at
	`, item.UserID, item.CardID, item.IsFoil, item.Quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save inventory for user %s card %s: %w", item.UserID, item.CardID, err)
	}
	return nil
}

// Get retrieves one inventory line.
func (r *inventoryRepository) Get(ctx context.Context, userID, cardID string, isFoil bool) (*catalog.InventoryItem, error) {
	item := &catalog.InventoryItem{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, card_id, is_foil, quantity
		FROM inventory
		WHERE user_id = ? AND card_id = ? AND is_foil = ?
	`, userID, cardID, isFoil).Scan(&item.UserID, &item.CardID, &item.IsFoil, &item.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &catalog.NotFoundError{Kind: "inventory item", Key: userID + "/" + cardID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return item, nil
}

// Delete removes one inventory line. Deleting a missing line is not an error.
func (r *inventoryRepository) Delete(ctx context.Context, userID, cardID string, isFoil bool) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM inventory WHERE user_id = ? AND card_id = ? AND is_foil = ?`,
		userID, cardID, isFoil,
	)
	if err != nil {
		return fmt.Errorf("failed to delete inventory for user %s card %s: %w", userID, cardID, err)
	}
	return nil
}
