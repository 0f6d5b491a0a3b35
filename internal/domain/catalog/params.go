package catalog

import (
	"net/url"
	"strconv"
	"strings"
)

// Pagination bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Sort keys accepted by the list endpoints. A leading "-" means descending.
const (
	SortNameAsc   = "name"
	SortNameDesc  = "-name"
	SortDateAsc   = "date"
	SortDateDesc  = "-date"
	SortPriceAsc  = "price"
	SortPriceDesc = "-price"
)

// Params is a parsed list request.
type Params struct {
	Category string
	Search   string
	// Trending is nil when the filter is absent.
	Trending *bool
	Sort     string
	Limit    int
	Offset   int
}

// ParseParams reads list parameters from a query string. Invalid values
// never fail: they fall back to defaults.
func ParseParams(v url.Values) Params {
	p := Params{
		Category: strings.TrimSpace(v.Get("category")),
		Search:   strings.TrimSpace(v.Get("search")),
		Sort:     parseSort(v.Get("sort")),
		Limit:    parseLimit(v.Get("limit")),
		Offset:   parseOffset(v.Get("offset")),
	}
	if v.Has("trending") {
		t := Truthy(v.Get("trending"))
		p.Trending = &t
	}
	return p
}

// Truthy reports whether s is one of true, 1, yes, on, ignoring case.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func parseSort(s string) string {
	switch s = strings.TrimSpace(s); s {
	case SortNameAsc, SortNameDesc, SortDateAsc, SortDateDesc, SortPriceAsc, SortPriceDesc:
		return s
	default:
		return SortDateDesc
	}
}

func parseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > MaxLimit {
		return DefaultLimit
	}
	return n
}

func parseOffset(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
