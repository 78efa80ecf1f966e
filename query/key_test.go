package query

import (
	"math"
	"strings"
	"testing"

	"github.com/fisdash/fisdash/fis"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestNewListKey_Normalization(t *testing.T) {
	tests := []struct {
		name string
		a    Params
		b    Params
	}{
		{
			name: "empty search equals absent search",
			a:    Params{Page: 1, Limit: 20, Search: ""},
			b:    Params{Page: 1, Limit: 20},
		},
		{
			name: "whitespace search equals absent search",
			a:    Params{Page: 1, Limit: 20, Search: "   "},
			b:    Params{Page: 1, Limit: 20},
		},
		{
			name: "NaN amount equals absent amount",
			a:    Params{Page: 1, Limit: 20, MinAmount: math.NaN()},
			b:    Params{Page: 1, Limit: 20},
		},
		{
			name: "zero amount equals absent amount",
			a:    Params{Page: 1, Limit: 20, MaxAmount: 0},
			b:    Params{Page: 1, Limit: 20},
		},
		{
			name: "negative amount equals absent amount",
			a:    Params{Page: 1, Limit: 20, MinAmount: -7},
			b:    Params{Page: 1, Limit: 20},
		},
		{
			name: "zero page and limit get defaults",
			a:    Params{},
			b:    Params{Page: DefaultPage, Limit: DefaultLimit},
		},
		{
			name: "invalid sort falls back to created_at desc",
			a:    Params{Page: 2, Limit: 10, SortBy: "bogus", SortOrder: "sideways"},
			b:    Params{Page: 2, Limit: 10, SortBy: fis.SortByCreatedAt, SortOrder: fis.SortDesc},
		},
		{
			name: "surrounding whitespace on record number is stripped",
			a:    Params{Page: 1, Limit: 20, RecordNo: "  A-42  "},
			b:    Params{Page: 1, Limit: 20, RecordNo: "A-42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := NewListKey(tt.a)
			kb := NewListKey(tt.b)
			if !KeysEqual(ka, kb) {
				t.Errorf("expected equal keys but got %q and %q", ka, kb)
			}
		})
	}
}

func TestNewListKey_DistinctParams(t *testing.T) {
	base := Params{Page: 1, Limit: 20}

	tests := []struct {
		name  string
		other Params
	}{
		{"different page", Params{Page: 2, Limit: 20}},
		{"different limit", Params{Page: 1, Limit: 50}},
		{"search set", Params{Page: 1, Limit: 20, Search: "market"}},
		{"min amount set", Params{Page: 1, Limit: 20, MinAmount: 100}},
		{"date range set", Params{Page: 1, Limit: 20, DateFrom: "2026-01-01"}},
		{"ascending order", Params{Page: 1, Limit: 20, SortOrder: fis.SortAsc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if KeysEqual(NewListKey(base), NewListKey(tt.other)) {
				t.Errorf("expected distinct keys for %+v and %+v", base, tt.other)
			}
		})
	}
}

func TestKey_UsableAsMapKey(t *testing.T) {
	// Lookup is structural: a key rebuilt from equivalent params must hit
	// the same map slot as the original.
	seen := map[Key]int{}
	seen[NewListKey(Params{Page: 1, Limit: 20, Search: " a "})] = 1

	if _, ok := seen[NewListKey(Params{Page: 1, Limit: 20, Search: "a"})]; !ok {
		t.Error("expected normalized key to find existing map entry")
	}
	if _, ok := seen[NewListKey(Params{Page: 2, Limit: 20, Search: "a"})]; ok {
		t.Error("expected different page to miss")
	}
}

func TestStatsKey_Singleton(t *testing.T) {
	if !KeysEqual(StatsKey(), StatsKey()) {
		t.Error("expected stats keys to always be equal")
	}
	if StatsKey().Matches(ResourceList) {
		t.Error("stats key must not match the list resource")
	}
	if !StatsKey().Matches(ResourceStats) {
		t.Error("stats key must match the stats resource")
	}
}

func TestKey_Matches(t *testing.T) {
	keys := []Key{
		NewListKey(Params{Page: 1, Limit: 20}),
		NewListKey(Params{Page: 3, Limit: 50, Search: "market"}),
		NewListKey(Params{Page: 1, Limit: 20, MinAmount: 10, MaxAmount: 99}),
	}

	for _, k := range keys {
		if !k.Matches(ResourceList) {
			t.Errorf("expected %q to match the list resource", k)
		}
		if k.Matches(ResourceStats) {
			t.Errorf("expected %q not to match the stats resource", k)
		}
	}
}

func TestParams_Values(t *testing.T) {
	v := Params{Page: 2, Search: "market", MinAmount: 25.5}.Values()

	if got := v.Get("page"); got != "2" {
		t.Errorf("page = %q, want %q", got, "2")
	}
	if got := v.Get("limit"); got != "20" {
		t.Errorf("limit = %q, want default %q", got, "20")
	}
	if got := v.Get("search"); got != "market" {
		t.Errorf("search = %q, want %q", got, "market")
	}
	if got := v.Get("minAmount"); got != "25.5" {
		t.Errorf("minAmount = %q, want %q", got, "25.5")
	}
	if v.Has("maxAmount") || v.Has("dateFrom") {
		t.Error("unset filters must not be emitted")
	}
}

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "stats",
			key:  StatsKey(),
			want: "statistics",
		},
		{
			name: "defaults only",
			key:  NewListKey(Params{}),
			want: joinWithSeparator("fisler", "page=1", "limit=20", "sort=created_at:desc"),
		},
		{
			name: "full filter set",
			key: NewListKey(Params{
				Page: 2, Limit: 10,
				SortBy: fis.SortByTotal, SortOrder: fis.SortAsc,
				Search: "kasap", DateFrom: "2026-08-01", DateTo: "2026-08-31",
				MinAmount: 10.5, MaxAmount: 200, RecordNo: "F-1",
			}),
			want: joinWithSeparator("fisler", "page=2", "limit=10", "sort=total:asc",
				"search=kasap", "from=2026-08-01", "to=2026-08-31", "min=10.5", "max=200", "no=F-1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}
