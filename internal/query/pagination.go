package query

// Link is one navigation entry of a PaginationView.
type Link struct {
	Page int    `json:"page"`
	URL  string `json:"url"`
}

// PaginationView is the page-link window for one listing page. Absent links
// are nil.
type PaginationView struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	Limit       int   `json:"limit"`
	TotalItems  int64 `json:"total_items"`

	First       *Link `json:"first,omitempty"`
	Previous    *Link `json:"previous,omitempty"`
	SkipBack    *Link `json:"skip_back,omitempty"`
	SkipForward *Link `json:"skip_forward,omitempty"`
	Next        *Link `json:"next,omitempty"`
	Last        *Link `json:"last,omitempty"`

	// ToggleBaseOnly reloads the listing from its first page with baseOnly
	// flipped. The page count changes with the toggle, so it never keeps
	// the current page.
	ToggleBaseOnly *Link `json:"toggle_base_only"`
}

// NewPaginationView computes the links for opts' page out of totalItems. Every
// link keeps the other active options of opts.
func NewPaginationView(opts Options, totalItems int64, baseURL string) PaginationView {
	limit := int64(opts.Limit())
	totalPages := int((totalItems + limit - 1) / limit)
	current := opts.Page()

	linkTo := func(o Options, page int) *Link {
		return &Link{Page: page, URL: baseURL + "?" + o.WithPage(page).Values().Encode()}
	}
	link := func(page int) *Link { return linkTo(opts, page) }

	view := PaginationView{
		CurrentPage:    current,
		TotalPages:     totalPages,
		Limit:          opts.Limit(),
		TotalItems:     totalItems,
		ToggleBaseOnly: linkTo(opts.WithBaseOnly(!opts.BaseOnly()), 1),
	}

	if current > 1 {
		view.First = link(1)
		view.Previous = link(current - 1)
	}
	if current < totalPages {
		view.Next = link(current + 1)
		view.Last = link(totalPages)
	}

	jump := totalPages / 3
	if back := current - jump; back > 1 && back < current {
		view.SkipBack = link(back)
	}
	if forward := current + jump; forward > current && forward < totalPages {
		view.SkipForward = link(forward)
	}

	return view
}
