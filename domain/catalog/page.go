package catalog

// Page is one coerced page of a paginated product listing.
type Page struct {
	Data        []Product `json:"data"`
	CurrentPage int       `json:"current_page"`
	LastPage    int       `json:"last_page"`
	PerPage     int       `json:"per_page"`
	Total       int       `json:"total"`
	HasMore     bool      `json:"has_more"`
}

// RawPage is a paginated response as the backend actually sends it: every
// pagination field may be missing, zero or nonsensical, and has_more is only
// sometimes present.
type RawPage struct {
	Data        []Product `json:"data"`
	CurrentPage int       `json:"current_page"`
	LastPage    int       `json:"last_page"`
	PerPage     int       `json:"per_page"`
	Total       int       `json:"total"`
	HasMore     *bool     `json:"hasMore"`
}

// NormalizePage coerces a raw paginated response into a usable Page. Missing
// or invalid fields default to page 1 of 1 with a per-page of 10 and a total
// equal to the data length; has_more falls back to current_page < last_page.
func NormalizePage(raw RawPage) Page {
	page := Page{
		Data:        raw.Data,
		CurrentPage: max(1, raw.CurrentPage),
		LastPage:    max(1, raw.LastPage),
		PerPage:     raw.PerPage,
		Total:       raw.Total,
	}
	if page.Data == nil {
		page.Data = []Product{}
	}
	if page.PerPage <= 0 {
		page.PerPage = 10
	}
	if page.Total <= 0 {
		page.Total = len(page.Data)
	}
	if raw.HasMore != nil {
		page.HasMore = *raw.HasMore
	} else {
		page.HasMore = page.CurrentPage < page.LastPage
	}
	return page
}

// Cursor tracks where paging left off and which filters were in effect, so
// load-more can request the next page under the same filter set.
type Cursor struct {
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
	HasMore     bool    `json:"has_more"`
	Filters     Filters `json:"filters"`
}
