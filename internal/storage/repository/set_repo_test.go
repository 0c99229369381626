package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
)

func TestSetRepository_SaveAndGet(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	err := r.sets.Save(ctx, []*catalog.Set{
		{Code: "kld", Name: "Kaladesh", SetType: "expansion", ReleasedAt: "2016-09-30", BaseSize: 264, TotalSize: 287},
		{Code: "AER", Name: "Aether Revolt", ReleasedAt: "2017-01-20", BaseSize: 184, TotalSize: 194},
	})
	require.NoError(t, err)

	set, err := r.sets.GetByCode(ctx, "kld")
	require.NoError(t, err)
	assert.Equal(t, "KLD", set.Code)
	assert.Equal(t, "Kaladesh", set.Name)
	assert.Equal(t, 264, set.BaseSize)
	assert.Equal(t, 287, set.TotalSize)

	codes, err := r.sets.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"KLD", "AER"}, codes)

	sets, err := r.sets.List(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "AER", sets[0].Code)
}

func TestSetRepository_SaveIsIdempotent(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	require.NoError(t, r.sets.Save(ctx, []*catalog.Set{{Code: "KLD", Name: "Old name", BaseSize: 1}}))
	require.NoError(t, r.sets.Save(ctx, []*catalog.Set{{Code: "KLD", Name: "Kaladesh", BaseSize: 264}}))

	codes, err := r.sets.Codes(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, 1)

	set, err := r.sets.GetByCode(ctx, "KLD")
	require.NoError(t, err)
	assert.Equal(t, "Kaladesh", set.Name)
	assert.Equal(t, 264, set.BaseSize)
}

func TestSetRepository_GetMissing(t *testing.T) {
	r := setupRepos(t)

	_, err := r.sets.GetByCode(context.Background(), "XYZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}
