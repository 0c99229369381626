package query

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view(t *testing.T, page, limit int, total int64) PaginationView {
	t.Helper()
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	return NewPaginationView(Parse(values, nil).WithPage(page), total, "/sets")
}

func TestPaginationSinglePage(t *testing.T) {
	v := view(t, 1, 0, 10)

	assert.Equal(t, 1, v.TotalPages)
	assert.Nil(t, v.First)
	assert.Nil(t, v.Previous)
	assert.Nil(t, v.SkipBack)
	assert.Nil(t, v.Next)
	assert.Nil(t, v.Last)
	assert.Nil(t, v.SkipForward)
}

func TestPaginationEmpty(t *testing.T) {
	v := view(t, 1, 0, 0)
	assert.Zero(t, v.TotalPages)
	assert.Nil(t, v.Next)
	assert.Nil(t, v.Previous)
}

func TestPaginationLastPage(t *testing.T) {
	v := view(t, 4, 25, 100)

	assert.Equal(t, 4, v.TotalPages)
	assert.Nil(t, v.Next)
	assert.Nil(t, v.Last)
	assert.Nil(t, v.SkipForward)
	require.NotNil(t, v.First)
	require.NotNil(t, v.Previous)
	assert.Equal(t, 1, v.First.Page)
	assert.Equal(t, 3, v.Previous.Page)
}

func TestPaginationSkipLinks(t *testing.T) {
	// 30 pages: jump of 10.
	v := view(t, 15, 10, 300)

	require.NotNil(t, v.SkipBack)
	require.NotNil(t, v.SkipForward)
	assert.Equal(t, 5, v.SkipBack.Page)
	assert.Equal(t, 25, v.SkipForward.Page)

	v = view(t, 11, 10, 300)
	assert.Nil(t, v.SkipBack, "11-10 is not strictly greater than 1")
	require.NotNil(t, v.SkipForward)

	v = view(t, 20, 10, 300)
	assert.Nil(t, v.SkipForward, "20+10 is not strictly less than 30")
	require.NotNil(t, v.SkipBack)
	assert.Equal(t, 10, v.SkipBack.Page)
}

func TestPaginationSkipLinksWithFewPages(t *testing.T) {
	// Two pages give a jump of zero, which never produces a skip link.
	v := view(t, 2, 10, 20)
	assert.Nil(t, v.SkipBack)
	assert.Nil(t, v.SkipForward)
}

func TestPaginationLinksPreserveOptions(t *testing.T) {
	opts := Parse(url.Values{
		"page": {"2"}, "limit": {"10"}, "filter": {"elf"},
		"sort": {"price"}, "ascend": {"false"}, "baseOnly": {"false"},
	}, []string{"price"})

	v := NewPaginationView(opts, 45, "/api/v1/sets/KLD/cards")
	require.NotNil(t, v.Next)
	assert.Equal(t, 5, v.TotalPages)

	u, err := url.Parse(v.Next.URL)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/sets/KLD/cards", u.Path)

	q := u.Query()
	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "elf", q.Get("filter"))
	assert.Equal(t, "price", q.Get("sort"))
	assert.Equal(t, "false", q.Get("ascend"))
	assert.Equal(t, "false", q.Get("baseOnly"))
}

func TestPaginationToggleBaseOnly(t *testing.T) {
	opts := Parse(url.Values{"page": {"3"}, "limit": {"10"}, "filter": {"elf"}, "baseOnly": {"true"}}, nil)

	v := NewPaginationView(opts, 45, "/api/v1/sets/KLD/cards")
	require.NotNil(t, v.ToggleBaseOnly)
	assert.Equal(t, 1, v.ToggleBaseOnly.Page)

	u, err := url.Parse(v.ToggleBaseOnly.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "false", q.Get("baseOnly"))
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "elf", q.Get("filter"))

	// The current page's other links keep the active toggle.
	require.NotNil(t, v.Next)
	assert.Contains(t, v.Next.URL, "baseOnly=true")

	back := NewPaginationView(opts.WithBaseOnly(false), 45, "/x")
	assert.Contains(t, back.ToggleBaseOnly.URL, "baseOnly=true")
}
