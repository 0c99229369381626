// Package collection answers the read-side questions of the catalog: what a
// set is worth, which of its cards a user owns, and what a user's inventory
// adds up to.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/pricing"
	"github.com/ramonehamilton/mtg-catalog/internal/query"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
	"github.com/ramonehamilton/mtg-catalog/internal/storage/repository"
)

// SetLoader resolves a set code, fetching the set from the catalog source when
// it is not stored yet. ingest.Orchestrator implements it.
type SetLoader interface {
	EnsureSet(ctx context.Context, code string) (*catalog.Set, error)
}

// Config configures a Service.
type Config struct {
	DB *storage.DB

	// Loader enables fetch-on-miss for set lookups. Optional.
	Loader SetLoader

	Logger *zap.Logger
}

// Service runs collection queries.
type Service struct {
	db        *gorm.DB
	sets      repository.SetRepository
	cards     repository.CardRepository
	prices    repository.PriceRepository
	inventory repository.InventoryRepository
	loader    SetLoader
	logger    *zap.Logger
}

// NewService creates a new collection service.
func NewService(cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	conn := cfg.DB.Conn()
	return &Service{
		db:        cfg.DB.Gorm(),
		sets:      repository.NewSetRepository(conn),
		cards:     repository.NewCardRepository(conn),
		prices:    repository.NewPriceRepository(conn),
		inventory: repository.NewInventoryRepository(conn),
		loader:    cfg.Loader,
		logger:    cfg.Logger.With(zap.String("component", "collection")),
	}, nil
}

var setBuilder = query.Builder{
	FilterColumns: []string{"s.name", "s.code"},
	SortColumns: map[string]string{
		"name":     "s.name",
		"code":     "s.code",
		"released": "s.released_at",
		"price":    "price",
		"owned":    "owned",
	},
	DefaultSort:   "released",
	DefaultAscend: false,
	TieBreaker:    "s.code",
}

var cardBuilder = query.Builder{
	FilterColumns: []string{"c.name", "c.type_line"},
	SortColumns: map[string]string{
		"name":   "c.name",
		"rarity": "c.rarity",
		"value":  "value",
	},
	PriceSorts: map[string]query.PriceSort{
		"price": {Primary: "lp.normal", Alternate: "lp.foil"},
		"foil":  {Primary: "lp.foil", Alternate: "lp.normal"},
	},
	Overrides: map[string]query.OrderFunc{
		"number": orderByCollectorNumber,
	},
	DefaultSort:   "number",
	DefaultAscend: true,
	TieBreaker:    "c.seq",
}

var inventoryBuilder = query.Builder{
	FilterColumns: []string{"c.name", "c.set_code"},
	SortColumns: map[string]string{
		"name":     "c.name",
		"set":      "c.set_code",
		"quantity": "i.quantity",
		"value":    "value",
	},
	PriceSorts: map[string]query.PriceSort{
		"price": {Primary: "lp.normal", Alternate: "lp.foil"},
	},
	DefaultSort:   "value",
	DefaultAscend: false,
	TieBreaker:    "c.seq, i.is_foil",
}

// Sortable fields per listing, for query.Parse.
var (
	SetSortFields       = setBuilder.Sortable()
	CardSortFields      = cardBuilder.Sortable()
	InventorySortFields = inventoryBuilder.Sortable()
)

// orderByCollectorNumber sorts numerically where the collector number is a
// number, then by its text ("12" < "12a" < "100").
func orderByCollectorNumber(db *gorm.DB, ascend bool) *gorm.DB {
	dir := "DESC"
	if ascend {
		dir = "ASC"
	}
	return db.Order("CAST(c.collector_number AS INTEGER) " + dir).Order("c.collector_number " + dir)
}

// setRow carries the completion denominator next to the summary.
type setRow struct {
	SetSummary
	CompletionSize int `gorm:"column:completion_size"`
}

// ListSets lists sets with the price column selected by IncludeFoil and
// baseOnly, the effective price and the user's owned count. With baseOnly,
// owned and completion count base cards only.
func (s *Service) ListSets(ctx context.Context, p ListParams) (*Page[SetSummary], error) {
	opts := p.Options
	cols := pricing.Qualified("", "", "sp")

	ownedFilter := ""
	size := "s.total_size"
	if opts.BaseOnly() {
		ownedFilter = " AND c.is_base = 1"
		size = "s.base_size"
	}

	table := func() *gorm.DB { return s.db.WithContext(ctx).Table("sets AS s") }

	var total int64
	if err := setBuilder.Filter(table(), opts).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count sets: %w", err)
	}

	q := table().
		Joins("LEFT JOIN set_prices sp ON sp.set_code = s.code").
		Select(`s.code, s.name, s.set_type, s.released_at, s.base_size, s.total_size, s.icon_svg_uri,
			COALESCE(`+cols.SetPriceColumn(p.IncludeFoil, opts.BaseOnly())+`, 0) AS price,
			`+cols.EffectiveSetPriceExpression()+` AS effective_price,
			(SELECT COUNT(DISTINCT i.card_id) FROM inventory i JOIN cards c ON c.id = i.card_id
			 WHERE c.set_code = s.code AND i.user_id = ?`+ownedFilter+`) AS owned,
			`+size+` AS completion_size`, p.UserID)

	var rows []setRow
	if err := setBuilder.Apply(q, opts).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}

	items := make([]SetSummary, len(rows))
	for i, r := range rows {
		items[i] = r.SetSummary
		items[i].Price = pricing.RoundMoney(r.Price)
		items[i].EffectivePrice = pricing.RoundMoney(r.EffectivePrice)
		if r.CompletionSize > 0 {
			items[i].CompletionPercent = 100 * float64(r.Owned) / float64(r.CompletionSize)
		}
	}

	return &Page[SetSummary]{
		Items:      items,
		Total:      total,
		Pagination: query.NewPaginationView(opts, total, p.BaseURL),
	}, nil
}

// GetSet returns a set with its aggregates. The selected Price follows
// includeFoil and baseOnly like ListSets.
func (s *Service) GetSet(ctx context.Context, code string, includeFoil, baseOnly bool) (*SetDetail, error) {
	set, err := s.lookupSet(ctx, code)
	if err != nil {
		return nil, err
	}

	agg, err := s.prices.SetPrices(ctx, set.Code)
	if err != nil {
		return nil, err
	}

	return &SetDetail{
		Code:           set.Code,
		Name:           set.Name,
		SetType:        set.SetType,
		ReleasedAt:     set.ReleasedAt,
		BaseSize:       set.BaseSize,
		TotalSize:      set.TotalSize,
		IconSVGURI:     set.IconSVGURI,
		Price:          pricing.SetPrice(*agg, includeFoil, baseOnly),
		EffectivePrice: pricing.EffectiveSetPrice(*agg),
		BasePrice:      agg.BasePrice,
		TotalPrice:     agg.TotalPrice,
		BasePriceAll:   agg.BasePriceAll,
		TotalPriceAll:  agg.TotalPriceAll,
	}, nil
}

// ListSetCards lists the cards of a set with their latest prices, value and the
// user's owned quantities. baseOnly restricts the listing to base cards.
func (s *Service) ListSetCards(ctx context.Context, code string, p ListParams) (*Page[CardListing], error) {
	set, err := s.lookupSet(ctx, code)
	if err != nil {
		return nil, err
	}

	opts := p.Options
	cols := pricing.Qualified("lp", "", "")

	table := func() *gorm.DB {
		db := s.db.WithContext(ctx).Table("cards AS c").Where("c.set_code = ?", set.Code)
		if opts.BaseOnly() {
			db = db.Where("c.is_base = 1")
		}
		return db
	}

	var total int64
	if err := cardBuilder.Filter(table(), opts).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count cards of set %s: %w", set.Code, err)
	}

	q := table().
		Joins("LEFT JOIN latest_prices lp ON lp.card_id = c.id").
		Select(`c.seq, c.id, c.set_code, c.name, c.collector_number, c.rarity, c.type_line, c.mana_cost, c.image_uri, c.is_base,
			lp.normal, lp.foil,
			`+cols.CardValueExpression(p.IncludeFoil)+` AS value,
			COALESCE((SELECT SUM(i.quantity) FROM inventory i WHERE i.card_id = c.id AND i.user_id = ? AND i.is_foil = 0), 0) AS owned_normal,
			COALESCE((SELECT SUM(i.quantity) FROM inventory i WHERE i.card_id = c.id AND i.user_id = ? AND i.is_foil = 1), 0) AS owned_foil`,
			p.UserID, p.UserID)

	items := make([]CardListing, 0, opts.Limit())
	if err := cardBuilder.Apply(q, opts).Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list cards of set %s: %w", set.Code, err)
	}
	for i := range items {
		items[i].Value = pricing.CalculateCardValue(items[i].Normal, items[i].Foil, p.IncludeFoil)
	}

	return &Page[CardListing]{
		Items:      items,
		Total:      total,
		Pagination: query.NewPaginationView(opts, total, p.BaseURL),
	}, nil
}

// ListInventory lists a user's owned lines. Each line is valued at the price
// of its own finish. The SQL value only orders the page; returned values are
// computed in decimal.
func (s *Service) ListInventory(ctx context.Context, p ListParams) (*Page[InventoryLine], error) {
	opts := p.Options
	cols := pricing.Qualified("lp", "i", "")
	unit := cols.InventoryItemValueExpression()

	table := func() *gorm.DB {
		return s.db.WithContext(ctx).
			Table("inventory AS i").
			Joins("JOIN cards c ON c.id = i.card_id").
			Where("i.user_id = ?", p.UserID)
	}

	var total int64
	if err := inventoryBuilder.Filter(table(), opts).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count inventory of user %s: %w", p.UserID, err)
	}

	q := table().
		Joins("LEFT JOIN latest_prices lp ON lp.card_id = i.card_id").
		Select(`c.seq, i.card_id, i.is_foil, i.quantity, c.name, c.set_code, c.collector_number, c.rarity, c.image_uri,
			lp.normal, lp.foil,
			` + unit + ` AS unit_value,
			` + pricing.Money(unit+" * i.quantity") + ` AS value`)

	items := make([]InventoryLine, 0, opts.Limit())
	if err := inventoryBuilder.Apply(q, opts).Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventory of user %s: %w", p.UserID, err)
	}
	for i := range items {
		line := &items[i]
		line.UnitValue = pricing.InventoryItemValue(line.Normal, line.Foil, line.IsFoil)
		line.Value = pricing.InventoryLineValue(line.Normal, line.Foil, line.IsFoil, line.Quantity)
	}

	return &Page[InventoryLine]{
		Items:      items,
		Total:      total,
		Pagination: query.NewPaginationView(opts, total, p.BaseURL),
	}, nil
}

// GetCard returns a card with its latest prices and every format filled in.
func (s *Service) GetCard(ctx context.Context, id string, includeFoil bool) (*CardDetail, error) {
	card, err := s.cards.GetByID(ctx, strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return nil, err
	}

	latest, err := s.prices.Latest(ctx, card.ID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}
	return newCardDetail(card, latest, includeFoil), nil
}

// Summary totals a user's inventory, each line valued at its own finish.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	cols := pricing.Qualified("lp", "i", "")

	sum := &Summary{}
	err := s.db.WithContext(ctx).
		Table("inventory AS i").
		Joins("JOIN cards c ON c.id = i.card_id").
		Joins("LEFT JOIN latest_prices lp ON lp.card_id = i.card_id").
		Where("i.user_id = ?", userID).
		Select(`COUNT(DISTINCT i.card_id) AS distinct_cards,
			COALESCE(SUM(i.quantity), 0) AS total_cards,
			COUNT(DISTINCT c.set_code) AS sets,
			COALESCE(` + pricing.Money("SUM("+cols.InventoryItemValueExpression()+" * i.quantity)") + `, 0) AS total_value`).
		Scan(sum).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize inventory of user %s: %w", userID, err)
	}

	sum.UserID = userID
	sum.TotalValue = pricing.RoundMoney(sum.TotalValue)
	return sum, nil
}

// SetQuantity sets how many copies of a card in one finish a user owns. Zero
// removes the line. An unknown card is a *catalog.NotFoundError.
func (s *Service) SetQuantity(ctx context.Context, item catalog.InventoryItem) error {
	if strings.TrimSpace(item.UserID) == "" {
		return &catalog.ValidationError{CardID: item.CardID, Field: "user id", Reason: "empty"}
	}
	item.CardID = strings.ToLower(strings.TrimSpace(item.CardID))

	existing, err := s.cards.VerifyCardsExist(ctx, []string{item.CardID})
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return &catalog.NotFoundError{Kind: "card", Key: item.CardID}
	}

	if err := s.inventory.Save(ctx, item); err != nil {
		return err
	}
	s.logger.Debug("inventory updated",
		zap.String("user_id", item.UserID),
		zap.String("card_id", item.CardID),
		zap.Bool("foil", item.IsFoil),
		zap.Int("quantity", item.Quantity))
	return nil
}

// lookupSet resolves a stored set, going through the loader when configured.
func (s *Service) lookupSet(ctx context.Context, code string) (*catalog.Set, error) {
	if s.loader != nil {
		return s.loader.EnsureSet(ctx, code)
	}
	return s.sets.GetByCode(ctx, code)
}
