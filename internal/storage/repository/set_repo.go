// Package repository implements idempotent persistence of catalog entities.
// Every Save is an upsert keyed by the entity's natural key.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
)

// SetRepository provides methods for managing set metadata.
type SetRepository interface {
	// Save creates or updates sets by code.
	Save(ctx context.Context, sets []*catalog.Set) error

	// GetByCode retrieves one set. A missing set is a *catalog.NotFoundError.
	GetByCode(ctx context.Context, code string) (*catalog.Set, error)

	// List returns every set, newest release first.
	List(ctx context.Context) ([]*catalog.Set, error)

	// Codes returns every set code, oldest release first.
	Codes(ctx context.Context) ([]string, error)
}

type setRepository struct {
	db *sql.DB
}

// NewSetRepository creates a new set repository.
func NewSetRepository(db *sql.DB) SetRepository {
	return &setRepository{db: db}
}

const setColumns = `code, name, set_type, released_at, base_size, total_size, icon_svg_uri, updated_at`

// Save creates or updates sets in one transaction.
func (r *setRepository) Save(ctx context.Context, sets []*catalog.Set) error {
	if len(sets) == 0 {
		return nil
	}

	return storage.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sets (`+setColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				name = excluded.name,
				set_type = excluded.set_type,
				released_at = excluded.released_at,
				base_size = excluded.base_size,
				total_size = excluded.total_size,
				icon_svg_uri = excluded.icon_svg_uri,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare set upsert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, s := range sets {
			_, err := stmt.ExecContext(ctx,
				catalog.NormalizeSetCode(s.Code),
				s.Name,
				s.SetType,
				s.ReleasedAt,
				s.BaseSize,
				s.TotalSize,
				s.IconSVGURI,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to save set %s: %w", s.Code, err)
			}
			s.UpdatedAt = now
		}
		return nil
	})
}

// GetByCode retrieves a set by its code.
func (r *setRepository) GetByCode(ctx context.Context, code string) (*catalog.Set, error) {
	code = catalog.NormalizeSetCode(code)
	row := r.db.QueryRowContext(ctx, `SELECT `+setColumns+` FROM sets WHERE code = ?`, code)

	s, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &catalog.NotFoundError{Kind: "set", Key: code}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get set %s: %w", code, err)
	}
	return s, nil
}

// List returns all sets.
func (r *setRepository) List(ctx context.Context) ([]*catalog.Set, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+setColumns+` FROM sets ORDER BY released_at DESC, code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}
	defer rows.Close()

	var sets []*catalog.Set
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan set: %w", err)
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// Codes returns all set codes.
func (r *setRepository) Codes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code FROM sets ORDER BY released_at, code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list set codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan set code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSet(row rowScanner) (*catalog.Set, error) {
	s := &catalog.Set{}
	err := row.Scan(
		&s.Code,
		&s.Name,
		&s.SetType,
		&s.ReleasedAt,
		&s.BaseSize,
		&s.TotalSize,
		&s.IconSVGURI,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
