package fis

import (
	"time"

	"github.com/uptrace/bun"
)

// SortField identifies a column the list query can be ordered by.
type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
	SortByEventTime SortField = "tarih_saat"
	SortByTotal     SortField = "total"
)

// Valid reports whether the field is one of the sortable columns.
func (f SortField) Valid() bool {
	switch f {
	case SortByCreatedAt, SortByUpdatedAt, SortByEventTime, SortByTotal:
		return true
	}
	return false
}

// SortOrder is the direction of a list query ordering.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether the order is asc or desc.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// Item is a single line item extracted from a receipt.
type Item struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	TaxRate   float64 `json:"taxRate"`
	LineTotal float64 `json:"lineTotal"`
}

// Fis is a single receipt record as stored in the fisler table.
// RecordNo, EventTime, Total and TotalTax are nullable because the
// extraction webhook does not always recognize them on the image.
type Fis struct {
	bun.BaseModel `bun:"table:fisler,alias:f"`

	ID        string     `json:"id" bun:"id,pk"`
	RecordNo  *string    `json:"fisNo" bun:"fis_no"`
	EventTime *time.Time `json:"tarihSaat" bun:"tarih_saat"`
	CreatedAt time.Time  `json:"createdAt" bun:"created_at,notnull"`
	UpdatedAt time.Time  `json:"updatedAt" bun:"updated_at,notnull"`
	Total     *float64   `json:"total" bun:"total"`
	TotalTax  *float64   `json:"totalTax" bun:"total_tax"`
	Items     []Item     `json:"items" bun:"items,type:jsonb,nullzero"`
}

// Statistics is the aggregate view over all receipts.
type Statistics struct {
	TotalRecords        int     `json:"totalRecords"`
	TotalAmount         float64 `json:"totalAmount"`
	TodayRecords        int     `json:"todayRecords"`
	AverageAmount       float64 `json:"averageAmount"`
	AverageDailyRecords float64 `json:"averageDailyRecords"`
}
