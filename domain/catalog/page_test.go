package catalog

import "testing"

func TestNormalizePage_Defaults(t *testing.T) {
	page := NormalizePage(RawPage{})

	if page.CurrentPage != 1 {
		t.Errorf("CurrentPage = %d, want 1", page.CurrentPage)
	}
	if page.LastPage != 1 {
		t.Errorf("LastPage = %d, want 1", page.LastPage)
	}
	if page.PerPage != 10 {
		t.Errorf("PerPage = %d, want 10", page.PerPage)
	}
	if page.Total != 0 {
		t.Errorf("Total = %d, want 0", page.Total)
	}
	if page.Data == nil {
		t.Error("Data should never be nil")
	}
	if page.HasMore {
		t.Error("HasMore should be false on page 1 of 1")
	}
}

func TestNormalizePage_TotalDefaultsToDataLength(t *testing.T) {
	raw := RawPage{
		Data: []Product{{ID: 1}, {ID: 2}, {ID: 3}},
	}
	page := NormalizePage(raw)

	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}
}

func TestNormalizePage_HasMoreFallback(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawPage
		hasMore bool
	}{
		{
			name:    "mid collection",
			raw:     RawPage{CurrentPage: 2, LastPage: 5},
			hasMore: true,
		},
		{
			name:    "last page",
			raw:     RawPage{CurrentPage: 5, LastPage: 5},
			hasMore: false,
		},
		{
			name:    "explicit flag wins over page math",
			raw:     RawPage{CurrentPage: 2, LastPage: 5, HasMore: boolPtr(false)},
			hasMore: false,
		},
		{
			name:    "explicit true on last page",
			raw:     RawPage{CurrentPage: 5, LastPage: 5, HasMore: boolPtr(true)},
			hasMore: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NormalizePage(tt.raw)
			if page.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.hasMore)
			}
		})
	}
}

func TestNormalizePage_NegativeValues(t *testing.T) {
	raw := RawPage{CurrentPage: -3, LastPage: 0, PerPage: -1, Total: -7}
	page := NormalizePage(raw)

	if page.CurrentPage != 1 || page.LastPage != 1 {
		t.Errorf("pages = %d/%d, want 1/1", page.CurrentPage, page.LastPage)
	}
	if page.PerPage != 10 {
		t.Errorf("PerPage = %d, want 10", page.PerPage)
	}
	if page.Total != 0 {
		t.Errorf("Total = %d, want 0", page.Total)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
