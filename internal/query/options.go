// Package query turns untrusted listing parameters into safe options and
// applies them to GORM queries.
package query

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Default paging values.
const (
	DefaultPage  = 1
	DefaultLimit = 25
)

// Query-string parameter names.
const (
	ParamPage     = "page"
	ParamLimit    = "limit"
	ParamFilter   = "filter"
	ParamSort     = "sort"
	ParamAscend   = "ascend"
	ParamBaseOnly = "baseOnly"
)

// Options is a sanitized, immutable set of listing parameters. Build it with
// Parse; derive variants with the With* methods.
type Options struct {
	page     int
	limit    int
	filter   string
	sort     string
	ascend   bool
	baseOnly bool
}

// Parse sanitizes values. It never fails: every malformed parameter falls back
// to its default. Only sort fields listed in sortable are kept.
func Parse(values url.Values, sortable []string) Options {
	opts := Options{
		page:     positiveInt(values.Get(ParamPage), DefaultPage),
		limit:    positiveInt(values.Get(ParamLimit), DefaultLimit),
		filter:   sanitizeFilter(values.Get(ParamFilter)),
		ascend:   parseFlag(values.Get(ParamAscend)),
		baseOnly: parseFlag(values.Get(ParamBaseOnly)),
	}
	if s := strings.TrimSpace(values.Get(ParamSort)); s != "" && slices.Contains(sortable, s) {
		opts.sort = s
	}
	return opts
}

// Page is the 1-based page number.
func (o Options) Page() int {
	if o.page < 1 {
		return DefaultPage
	}
	return o.page
}

// Limit is the page size.
func (o Options) Limit() int {
	if o.limit < 1 {
		return DefaultLimit
	}
	return o.limit
}

// Filter is the whitelisted filter text, empty when no filter applies.
func (o Options) Filter() string { return o.filter }

// Sort is the requested sort field, empty when none was requested.
func (o Options) Sort() string { return o.sort }

// Ascend reports the requested sort direction.
func (o Options) Ascend() bool { return o.ascend }

// BaseOnly reports whether listings are restricted to a set's main print run.
func (o Options) BaseOnly() bool { return o.baseOnly }

// Offset is the number of rows before the current page.
func (o Options) Offset() int { return (o.Page() - 1) * o.Limit() }

// WithBaseOnly returns a copy with baseOnly replaced.
func (o Options) WithBaseOnly(baseOnly bool) Options {
	o.baseOnly = baseOnly
	return o
}

// WithPage returns a copy pointing at page. Non-positive pages become DefaultPage.
func (o Options) WithPage(page int) Options {
	if page < 1 {
		page = DefaultPage
	}
	o.page = page
	return o
}

// Values encodes the options back into query parameters. Empty filter and sort
// are omitted.
func (o Options) Values() url.Values {
	v := url.Values{}
	v.Set(ParamPage, strconv.Itoa(o.Page()))
	v.Set(ParamLimit, strconv.Itoa(o.Limit()))
	if o.filter != "" {
		v.Set(ParamFilter, o.filter)
	}
	if o.sort != "" {
		v.Set(ParamSort, o.sort)
	}
	v.Set(ParamAscend, strconv.FormatBool(o.ascend))
	v.Set(ParamBaseOnly, strconv.FormatBool(o.baseOnly))
	return v
}

// FilterFragments splits the filter into its whitespace-delimited words.
func (o Options) FilterFragments() []string {
	return strings.Fields(o.filter)
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// parseFlag is true unless raw is explicitly "false" or "0".
func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "false", "0":
		return false
	default:
		return true
	}
}

func sanitizeFilter(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
