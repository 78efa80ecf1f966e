package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/fisdash/fisdash/fis"
)

// KeySeparator delimits segments of the debug form of a cache key.
const KeySeparator = "::"

// Resource names one of the two cacheable query classes.
type Resource string

const (
	// ResourceList covers every paginated/filtered receipt list query.
	ResourceList Resource = "fisler"
	// ResourceStats is the singleton aggregate statistics query.
	ResourceStats Resource = "statistics"
)

// Params are the normalized parameters of a list query. The zero value
// of every optional field means "not set": empty strings and a zero
// amount are omitted during normalization, so the struct doubles as the
// canonical form used for structural key equality.
type Params struct {
	Page      int
	Limit     int
	SortBy    fis.SortField
	SortOrder fis.SortOrder
	Search    string
	DateFrom  string
	DateTo    string
	MinAmount float64
	MaxAmount float64
	RecordNo  string
}

// Key identifies a cacheable query. It is a plain comparable value:
// two keys built from the same normalized parameters are equal with ==,
// so cache lookup never depends on string concatenation of
// user-controlled input.
type Key struct {
	Resource Resource
	Params   Params
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// NewListKey builds the key for a list query, normalizing the
// parameters first. Missing page/limit/sort fields get their defaults,
// optional fields holding an empty trimmed string, a zero amount or a
// NaN are dropped, so {Search: ""} and {} yield the identical key.
func NewListKey(p Params) Key {
	return Key{Resource: ResourceList, Params: Normalize(p)}
}

// StatsKey returns the singleton statistics key.
func StatsKey() Key {
	return Key{Resource: ResourceStats}
}

// Normalize maps every equivalent spelling of a parameter set onto one
// canonical value.
func Normalize(p Params) Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if !p.SortBy.Valid() {
		p.SortBy = fis.SortByCreatedAt
	}
	if !p.SortOrder.Valid() {
		p.SortOrder = fis.SortDesc
	}

	p.Search = strings.TrimSpace(p.Search)
	p.DateFrom = strings.TrimSpace(p.DateFrom)
	p.DateTo = strings.TrimSpace(p.DateTo)
	p.RecordNo = strings.TrimSpace(p.RecordNo)

	p.MinAmount = normalizeAmount(p.MinAmount)
	p.MaxAmount = normalizeAmount(p.MaxAmount)

	return p
}

// normalizeAmount drops NaN and negative values. Zero means "not set",
// matching the upstream query contract where a zero bound is never sent.
func normalizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	return v
}

// KeysEqual reports structural equality of two keys.
func KeysEqual(a, b Key) bool {
	return a == b
}

// Matches reports whether the key belongs to the given resource class.
// The invalidation coordinator uses it to bulk-select all list variants
// regardless of their parameters.
func (k Key) Matches(r Resource) bool {
	return k.Resource == r
}

// Values renders the parameters as URL query values, the inverse of
// the HTTP layer's parsing. Pagination and sort are always emitted;
// optional filters only when set.
func (p Params) Values() url.Values {
	p = Normalize(p)

	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("sortBy", string(p.SortBy))
	v.Set("sortOrder", string(p.SortOrder))
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.DateFrom != "" {
		v.Set("dateFrom", p.DateFrom)
	}
	if p.DateTo != "" {
		v.Set("dateTo", p.DateTo)
	}
	if p.MinAmount != 0 {
		v.Set("minAmount", strconv.FormatFloat(p.MinAmount, 'f', -1, 64))
	}
	if p.MaxAmount != 0 {
		v.Set("maxAmount", strconv.FormatFloat(p.MaxAmount, 'f', -1, 64))
	}
	if p.RecordNo != "" {
		v.Set("fisNo", p.RecordNo)
	}
	return v
}

// String renders the key for logging and debugging. It is never used
// for cache lookup; equality is structural.
func (k Key) String() string {
	if k.Resource != ResourceList {
		return string(k.Resource)
	}

	p := k.Params
	parts := []string{
		string(k.Resource),
		"page=" + strconv.Itoa(p.Page),
		"limit=" + strconv.Itoa(p.Limit),
		"sort=" + string(p.SortBy) + ":" + string(p.SortOrder),
	}
	if p.Search != "" {
		parts = append(parts, "search="+p.Search)
	}
	if p.DateFrom != "" {
		parts = append(parts, "from="+p.DateFrom)
	}
	if p.DateTo != "" {
		parts = append(parts, "to="+p.DateTo)
	}
	if p.MinAmount != 0 {
		parts = append(parts, fmt.Sprintf("min=%g", p.MinAmount))
	}
	if p.MaxAmount != 0 {
		parts = append(parts, fmt.Sprintf("max=%g", p.MaxAmount))
	}
	if p.RecordNo != "" {
		parts = append(parts, "no="+p.RecordNo)
	}

	return strings.Join(parts, KeySeparator)
}
