package catalog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParseRarity matches v case-insensitively against Rarities.
func ParseRarity(v string) (Rarity, bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	for _, r := range Rarities {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// ParseStatus matches v case-insensitively against Statuses. The provider's
// snake_case spelling ("not_legal") is accepted.
func ParseStatus(v string) (LegalityStatus, bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	s = strings.ReplaceAll(s, "_", " ")
	for _, st := range Statuses {
		if strings.ToLower(string(st)) == s {
			return st, true
		}
	}
	return "", false
}

// NormalizeSet validates raw set metadata.
func NormalizeSet(raw RawSet) (*Set, error) {
	code := NormalizeSetCode(raw.Code)
	if code == "" {
		return nil, &ValidationError{Field: "set code", Reason: "empty"}
	}
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return nil, &ValidationError{SetCode: code, Field: "set name", Reason: "empty"}
	}

	baseSize := raw.PrintedSize
	if baseSize <= 0 {
		baseSize = raw.CardCount
	}
	if baseSize < 0 {
		return nil, &ValidationError{SetCode: code, Field: "base size", Value: strconv.Itoa(baseSize)}
	}

	return &Set{
		Code:       code,
		Name:       name,
		SetType:    raw.SetType,
		ReleasedAt: raw.ReleasedAt,
		BaseSize:   baseSize,
		TotalSize:  max(raw.CardCount, baseSize),
		IconSVGURI: raw.IconSVGURI,
	}, nil
}

// NormalizeCard validates a raw card record belonging to set.
//
// Rarity and legality statuses must belong to their closed enums; anything else
// fails the record. Legalities for formats outside Formats are ignored.
func NormalizeCard(raw RawCard, set *Set) (*Card, error) {
	setCode := NormalizeSetCode(raw.SetCode)
	if set != nil {
		if setCode == "" {
			setCode = set.Code
		}
		if setCode != set.Code {
			return nil, &ValidationError{SetCode: set.Code, CardID: raw.ID, Field: "set code", Value: raw.SetCode, Reason: "does not match ingested set"}
		}
	}

	id, err := uuid.Parse(strings.TrimSpace(raw.ID))
	if err != nil {
		return nil, &ValidationError{SetCode: setCode, CardID: raw.ID, Field: "id", Value: raw.ID, Reason: err.Error()}
	}
	cardID := id.String()

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return nil, &ValidationError{SetCode: setCode, CardID: cardID, Field: "name", Reason: "empty"}
	}

	rarity, ok := ParseRarity(raw.Rarity)
	if !ok {
		return nil, &ValidationError{SetCode: setCode, CardID: cardID, Field: "rarity", Value: raw.Rarity, Reason: "not a known rarity"}
	}

	legalities := make([]Legality, 0, len(raw.Legalities))
	for rawFormat, rawStatus := range raw.Legalities {
		format := Format(strings.ToLower(strings.TrimSpace(rawFormat)))
		if !IsKnownFormat(format) {
			continue
		}
		status, ok := ParseStatus(rawStatus)
		if !ok {
			return nil, &ValidationError{SetCode: setCode, CardID: cardID, Field: "legality status", Value: rawStatus, Reason: "format " + string(format)}
		}
		legalities = append(legalities, Legality{CardID: cardID, Format: format, Status: status})
	}
	sortLegalities(legalities)

	card := &Card{
		ID:              cardID,
		SetCode:         setCode,
		Name:            name,
		CollectorNumber: strings.TrimSpace(raw.CollectorNumber),
		Rarity:          rarity,
		TypeLine:        raw.TypeLine,
		ManaCost:        raw.ManaCost,
		ImageURI:        raw.ImageURI,
		ReleasedAt:      raw.ReleasedAt,
		Legalities:      legalities,
	}
	if set != nil {
		card.IsBase = isBaseNumber(card.CollectorNumber, set.BaseSize)
	}

	return card, nil
}

// NormalizePrice validates a raw price record for the given date key.
func NormalizePrice(raw RawPrice, date string) (*Price, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw.CardID))
	if err != nil {
		return nil, &ValidationError{CardID: raw.CardID, Field: "id", Value: raw.CardID, Reason: err.Error()}
	}
	cardID := id.String()

	normal, err := parsePrice(raw.Normal)
	if err != nil {
		return nil, &ValidationError{CardID: cardID, Field: "normal price", Value: *raw.Normal, Reason: err.Error()}
	}
	foil, err := parsePrice(raw.Foil)
	if err != nil {
		return nil, &ValidationError{CardID: cardID, Field: "foil price", Value: *raw.Foil, Reason: err.Error()}
	}

	return &Price{CardID: cardID, Date: date, Normal: normal, Foil: foil}, nil
}

// FillMissingFormats returns a copy of card whose legalities contain exactly one
// entry per known format, in Formats order. Formats the provider did not report
// are presented as Not Legal. The input card is not modified.
func FillMissingFormats(card *Card) *Card {
	if card == nil {
		return nil
	}

	reported := make(map[Format]LegalityStatus, len(card.Legalities))
	for _, l := range card.Legalities {
		reported[l.Format] = l.Status
	}

	filled := *card
	filled.Legalities = make([]Legality, 0, len(Formats))
	for _, f := range Formats {
		status, ok := reported[f]
		if !ok {
			status = StatusNotLegal
		}
		filled.Legalities = append(filled.Legalities, Legality{CardID: card.ID, Format: f, Status: status})
	}
	return &filled
}

func parsePrice(v *string) (decimal.NullDecimal, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*v))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, errNegativePrice
	}
	return decimal.NewNullDecimal(d), nil
}

type priceError string

func (e priceError) Error() string { return string(e) }

const errNegativePrice priceError = "negative price"

func isBaseNumber(collectorNumber string, baseSize int) bool {
	n, err := strconv.Atoi(collectorNumber)
	if err != nil {
		return false
	}
	return n >= 1 && n <= baseSize
}

func sortLegalities(ls []Legality) {
	order := make(map[Format]int, len(Formats))
	for i, f := range Formats {
		order[f] = i
	}
	sort.Slice(ls, func(i, j int) bool {
		return order[ls[i].Format] < order[ls[j].Format]
	})
}
