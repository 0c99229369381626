package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCardID = "5f8287b1-5bb6-5f4c-ad17-316a40d5bb0c"

func strPtr(s string) *string { return &s }

func testSet() *Set {
	return &Set{Code: "KLD", Name: "Kaladesh", BaseSize: 264}
}

func TestParseRarity(t *testing.T) {
	tests := []struct {
		in   string
		want Rarity
		ok   bool
	}{
		{"common", RarityCommon, true},
		{"MYTHIC", RarityMythic, true},
		{" Rare ", RarityRare, true},
		{"bonus", RarityBonus, true},
		{"legendary", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRarity(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseRarity(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseRarity(%q)", tt.in)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want LegalityStatus
		ok   bool
	}{
		{"legal", StatusLegal, true},
		{"Not Legal", StatusNotLegal, true},
		{"not_legal", StatusNotLegal, true},
		{"BANNED", StatusBanned, true},
		{"restricted", StatusRestricted, true},
		{"suspended", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseStatus(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseStatus(%q)", tt.in)
	}
}

func TestNormalizeCard(t *testing.T) {
	raw := RawCard{
		ID:              "5F8287B1-5BB6-5F4C-AD17-316A40D5BB0C",
		SetCode:         "kld",
		Name:            " Smuggler's Copter ",
		CollectorNumber: "235",
		Rarity:          "Rare",
		Legalities: map[string]string{
			"modern":    "legal",
			"standard":  "not_legal",
			"vintage":   "Restricted",
			"some_fmt":  "legal",
			"commander": "LEGAL",
		},
	}

	card, err := NormalizeCard(raw, testSet())
	require.NoError(t, err)

	assert.Equal(t, testCardID, card.ID)
	assert.Equal(t, "KLD", card.SetCode)
	assert.Equal(t, "Smuggler's Copter", card.Name)
	assert.Equal(t, RarityRare, card.Rarity)
	assert.True(t, card.IsBase)

	// Unknown formats are dropped; known ones come back in Formats order.
	require.Len(t, card.Legalities, 4)
	assert.Equal(t, Legality{CardID: testCardID, Format: "standard", Status: StatusNotLegal}, card.Legalities[0])
	assert.Equal(t, Format("modern"), card.Legalities[1].Format)
	assert.Equal(t, Format("vintage"), card.Legalities[2].Format)
	assert.Equal(t, StatusRestricted, card.Legalities[2].Status)
	assert.Equal(t, Format("commander"), card.Legalities[3].Format)
}

func TestNormalizeCard_BaseDetection(t *testing.T) {
	set := testSet()
	tests := []struct {
		number string
		want   bool
	}{
		{"1", true},
		{"264", true},
		{"265", false},
		{"12a", false},
		{"★5", false},
		{"", false},
	}

	for _, tt := range tests {
		card, err := NormalizeCard(RawCard{ID: testCardID, Name: "X", Rarity: "common", CollectorNumber: tt.number}, set)
		require.NoError(t, err)
		assert.Equal(t, tt.want, card.IsBase, "collector number %q", tt.number)
	}
}

func TestNormalizeCard_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		raw   RawCard
		field string
	}{
		{"bad rarity", RawCard{ID: testCardID, Name: "X", Rarity: "legendary"}, "rarity"},
		{"bad status", RawCard{ID: testCardID, Name: "X", Rarity: "common", Legalities: map[string]string{"modern": "maybe"}}, "legality status"},
		{"bad id", RawCard{ID: "not-a-uuid", Name: "X", Rarity: "common"}, "id"},
		{"no name", RawCard{ID: testCardID, Rarity: "common"}, "name"},
		{"other set", RawCard{ID: testCardID, SetCode: "AER", Name: "X", Rarity: "common"}, "set code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeCard(tt.raw, testSet())
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestFillMissingFormats(t *testing.T) {
	card := &Card{
		ID:         testCardID,
		Legalities: []Legality{{CardID: testCardID, Format: "modern", Status: StatusLegal}},
	}

	filled := FillMissingFormats(card)

	require.Len(t, filled.Legalities, len(Formats))
	seen := make(map[Format]int)
	for i, l := range filled.Legalities {
		assert.Equal(t, Formats[i], l.Format)
		seen[l.Format]++
		if l.Format == "modern" {
			assert.Equal(t, StatusLegal, l.Status)
		} else {
			assert.Equal(t, StatusNotLegal, l.Status, "format %s", l.Format)
		}
	}
	for _, f := range Formats {
		assert.Equal(t, 1, seen[f], "format %s", f)
	}

	// The stored shape is untouched.
	assert.Len(t, card.Legalities, 1)
	assert.Nil(t, FillMissingFormats(nil))
}

func TestNormalizePrice(t *testing.T) {
	p, err := NormalizePrice(RawPrice{CardID: testCardID, Normal: strPtr("1.25"), Foil: nil}, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", p.Date)
	assert.True(t, p.Normal.Valid)
	assert.Equal(t, "1.25", p.Normal.Decimal.String())
	assert.False(t, p.Foil.Valid)
	assert.False(t, p.IsEmpty())

	empty, err := NormalizePrice(RawPrice{CardID: testCardID, Normal: strPtr(""), Foil: nil}, "2026-10-19")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = NormalizePrice(RawPrice{CardID: testCardID, Foil: strPtr("abc")}, "2026-10-19")
	assert.True(t, IsValidation(err))

	_, err = NormalizePrice(RawPrice{CardID: testCardID, Normal: strPtr("-1")}, "2026-10-19")
	assert.True(t, IsValidation(err))
}

func TestNormalizeSet(t *testing.T) {
	set, err := NormalizeSet(RawSet{Code: "kld", Name: "Kaladesh", PrintedSize: 264, CardCount: 287})
	require.NoError(t, err)
	assert.Equal(t, "KLD", set.Code)
	assert.Equal(t, 264, set.BaseSize)
	assert.Equal(t, 287, set.TotalSize)

	set, err = NormalizeSet(RawSet{Code: "tkld", Name: "Kaladesh Tokens", CardCount: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, set.BaseSize)

	_, err = NormalizeSet(RawSet{Name: "Nameless"})
	assert.True(t, IsValidation(err))
}

func TestNotFoundErrorIs(t *testing.T) {
	err := &NotFoundError{Kind: "set", Key: "XYZ"}
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "set XYZ not found", err.Error())
}
