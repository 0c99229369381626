package query

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// PriceSort orders by a price that may be missing in either finish: the
// primary column, falling back to the alternate, with missing values last.
type PriceSort struct {
	Primary   string
	Alternate string
}

// OrderFunc applies a custom ordering for one sort field.
type OrderFunc func(db *gorm.DB, ascend bool) *gorm.DB

// Builder applies sanitized Options to a GORM query. One Builder is configured
// per listing; its column names are trusted, never derived from input.
type Builder struct {
	// FilterColumns are matched with a case-insensitive LIKE per filter word.
	FilterColumns []string

	// SortColumns maps sort fields to plain column expressions.
	SortColumns map[string]string

	// PriceSorts maps sort fields to coalesced price orderings.
	PriceSorts map[string]PriceSort

	// Overrides bypass the generic ordering for computed or joined fields.
	Overrides map[string]OrderFunc

	// DefaultSort and DefaultAscend apply when no sort was requested.
	DefaultSort   string
	DefaultAscend bool

	// TieBreaker is always appended, ascending, for a stable order.
	TieBreaker string
}

// Sortable lists every sort field the builder understands, for Parse.
func (b Builder) Sortable() []string {
	fields := make([]string, 0, len(b.SortColumns)+len(b.PriceSorts)+len(b.Overrides))
	for f := range b.SortColumns {
		fields = append(fields, f)
	}
	for f := range b.PriceSorts {
		fields = append(fields, f)
	}
	for f := range b.Overrides {
		fields = append(fields, f)
	}
	return fields
}

// Filter requires every filter word to match at least one filter column.
func (b Builder) Filter(db *gorm.DB, opts Options) *gorm.DB {
	if len(b.FilterColumns) == 0 {
		return db
	}
	for _, fragment := range opts.FilterFragments() {
		like := "%" + strings.ToLower(fragment) + "%"
		conds := make([]string, len(b.FilterColumns))
		args := make([]any, len(b.FilterColumns))
		for i, col := range b.FilterColumns {
			conds[i] = fmt.Sprintf("LOWER(%s) LIKE ?", col)
			args[i] = like
		}
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	return db
}

// Paginate limits the query to the current page.
func (b Builder) Paginate(db *gorm.DB, opts Options) *gorm.DB {
	return db.Offset(opts.Offset()).Limit(opts.Limit())
}

// Order sorts by the requested field, or by DefaultSort in DefaultAscend
// direction when none was requested.
func (b Builder) Order(db *gorm.DB, opts Options) *gorm.DB {
	field, ascend := opts.Sort(), opts.Ascend()
	if field == "" {
		field, ascend = b.DefaultSort, b.DefaultAscend
	}

	dir := "DESC"
	if ascend {
		dir = "ASC"
	}

	if override, ok := b.Overrides[field]; ok {
		db = override(db, ascend)
	} else if ps, ok := b.PriceSorts[field]; ok {
		expr := fmt.Sprintf("COALESCE(%s, %s)", ps.Primary, ps.Alternate)
		db = db.Order(expr + " IS NULL").Order(expr + " " + dir)
	} else if col, ok := b.SortColumns[field]; ok {
		db = db.Order(col + " " + dir)
	}

	if b.TieBreaker != "" {
		db = db.Order(b.TieBreaker + " ASC")
	}
	return db
}

// Apply runs Filter, Paginate and Order in that order.
func (b Builder) Apply(db *gorm.DB, opts Options) *gorm.DB {
	return b.Order(b.Paginate(b.Filter(db, opts), opts), opts)
}
