// Package pricing is the single definition of how cards, inventory lines and
// sets are valued. Every rule exists twice: as a SQL fragment for the query
// layer and as a Go function for application code. Both must agree.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
)

// MoneyPlaces is the number of decimal places money values are kept to.
const MoneyPlaces = 2

// Precomputed set aggregate columns.
const (
	ColumnBasePrice     = "base_price"
	ColumnTotalPrice    = "total_price"
	ColumnBasePriceAll  = "base_price_all"
	ColumnTotalPriceAll = "total_price_all"
)

// Columns names the SQL column references the expressions are built over.
// Qualify them ("lp.normal") when the query joins several tables.
type Columns struct {
	Normal string
	Foil   string
	IsFoil string

	BasePrice     string
	TotalPrice    string
	BasePriceAll  string
	TotalPriceAll string
}

// DefaultColumns matches the unqualified storage column names.
var DefaultColumns = Columns{
	Normal:        "normal",
	Foil:          "foil",
	IsFoil:        "is_foil",
	BasePrice:     ColumnBasePrice,
	TotalPrice:    ColumnTotalPrice,
	BasePriceAll:  ColumnBasePriceAll,
	TotalPriceAll: ColumnTotalPriceAll,
}

// Qualified returns DefaultColumns with card price columns prefixed by priceAlias,
// the inventory flag by inventoryAlias and the set columns by setAlias. Empty
// aliases leave the column unqualified.
func Qualified(priceAlias, inventoryAlias, setAlias string) Columns {
	q := func(alias, col string) string {
		if alias == "" {
			return col
		}
		return alias + "." + col
	}
	return Columns{
		Normal:        q(priceAlias, "normal"),
		Foil:          q(priceAlias, "foil"),
		IsFoil:        q(inventoryAlias, "is_foil"),
		BasePrice:     q(setAlias, ColumnBasePrice),
		TotalPrice:    q(setAlias, ColumnTotalPrice),
		BasePriceAll:  q(setAlias, ColumnBasePriceAll),
		TotalPriceAll: q(setAlias, ColumnTotalPriceAll),
	}
}

// Money rounds a SQL money expression to MoneyPlaces. SQLite evaluates
// arithmetic over NUMERIC columns in binary floating point, so every sum or
// product of prices goes through it.
func Money(expr string) string {
	return fmt.Sprintf("ROUND(%s, %d)", expr, MoneyPlaces)
}

// RoundMoney rounds a value read back from SQL to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// CardValueExpression values a card. With includeFoil the value is normal plus
// foil, each missing price counting as zero. Otherwise it is the normal price,
// falling back to foil, then zero.
func (c Columns) CardValueExpression(includeFoil bool) string {
	if includeFoil {
		return Money(fmt.Sprintf("COALESCE(%s, 0) + COALESCE(%s, 0)", c.Normal, c.Foil))
	}
	return fmt.Sprintf("COALESCE(%s, %s, 0)", c.Normal, c.Foil)
}

// InventoryItemValueExpression values one owned line: the foil price for foil
// lines, the normal price otherwise. There is no cross-finish fallback.
func (c Columns) InventoryItemValueExpression() string {
	return fmt.Sprintf("(CASE WHEN %s THEN COALESCE(%s, 0) ELSE COALESCE(%s, 0) END)", c.IsFoil, c.Foil, c.Normal)
}

// SetPriceColumn returns the qualified aggregate column for the toggle pair.
func (c Columns) SetPriceColumn(includeFoil, baseOnly bool) string {
	switch {
	case !includeFoil && baseOnly:
		return c.BasePrice
	case includeFoil && baseOnly:
		return c.TotalPrice
	case !includeFoil && !baseOnly:
		return c.BasePriceAll
	default:
		return c.TotalPriceAll
	}
}

// EffectiveSetPriceExpression picks the first non-zero aggregate in the order
// base_price, base_price_all, total_price, total_price_all.
func (c Columns) EffectiveSetPriceExpression() string {
	return fmt.Sprintf("COALESCE(NULLIF(%s, 0), NULLIF(%s, 0), NULLIF(%s, 0), %s, 0)",
		c.BasePrice, c.BasePriceAll, c.TotalPrice, c.TotalPriceAll)
}

// CardValueExpression is DefaultColumns.CardValueExpression.
func CardValueExpression(includeFoil bool) string {
	return DefaultColumns.CardValueExpression(includeFoil)
}

// InventoryItemValueExpression is DefaultColumns.InventoryItemValueExpression.
func InventoryItemValueExpression() string {
	return DefaultColumns.InventoryItemValueExpression()
}

// SetPriceColumn maps (includeFoil, baseOnly) to one of the four aggregate columns.
func SetPriceColumn(includeFoil, baseOnly bool) string {
	return DefaultColumns.SetPriceColumn(includeFoil, baseOnly)
}

// EffectiveSetPriceExpression is DefaultColumns.EffectiveSetPriceExpression.
func EffectiveSetPriceExpression() string {
	return DefaultColumns.EffectiveSetPriceExpression()
}

// CalculateCardValue is the Go form of CardValueExpression. An explicit zero is
// a price, not a missing one.
func CalculateCardValue(normal, foil decimal.NullDecimal, includeFoil bool) decimal.Decimal {
	if includeFoil {
		return orZero(normal).Add(orZero(foil))
	}
	if normal.Valid {
		return normal.Decimal
	}
	return orZero(foil)
}

// InventoryItemValue is the Go form of InventoryItemValueExpression for a single copy.
func InventoryItemValue(normal, foil decimal.NullDecimal, isFoil bool) decimal.Decimal {
	if isFoil {
		return orZero(foil)
	}
	return orZero(normal)
}

// InventoryLineValue values quantity copies of one finish.
func InventoryLineValue(normal, foil decimal.NullDecimal, isFoil bool, quantity int) decimal.Decimal {
	return InventoryItemValue(normal, foil, isFoil).Mul(decimal.NewFromInt(int64(quantity)))
}

// SetPrice returns the aggregate SetPriceColumn selects.
func SetPrice(p catalog.SetPrices, includeFoil, baseOnly bool) decimal.Decimal {
	switch SetPriceColumn(includeFoil, baseOnly) {
	case ColumnBasePrice:
		return p.BasePrice
	case ColumnTotalPrice:
		return p.TotalPrice
	case ColumnBasePriceAll:
		return p.BasePriceAll
	default:
		return p.TotalPriceAll
	}
}

// EffectiveSetPrice is the Go form of EffectiveSetPriceExpression.
func EffectiveSetPrice(p catalog.SetPrices) decimal.Decimal {
	for _, v := range []decimal.Decimal{p.BasePrice, p.BasePriceAll, p.TotalPrice} {
		if !v.IsZero() {
			return v
		}
	}
	return p.TotalPriceAll
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if v.Valid {
		return v.Decimal
	}
	return decimal.Zero
}
