package dashboard

import (
	"github.com/fisdash/fisdash/fis"
)

// CardFormat tells the presentation layer how a stat card value was
// rendered.
type CardFormat string

const (
	FormatCount   CardFormat = "count"
	FormatAmount  CardFormat = "currency"
	FormatDecimal CardFormat = "decimal"
)

// StatCard is one dashboard tile: a stable key, a display label and the
// locale-formatted value.
type StatCard struct {
	Key    string     `json:"key"`
	Label  string     `json:"label"`
	Value  string     `json:"value"`
	Format CardFormat `json:"format"`
}

// StatCards projects the statistics into the ordered card list the
// dashboard header shows. The order is fixed.
func StatCards(s *fis.Statistics) []StatCard {
	if s == nil {
		return nil
	}
	return []StatCard{
		{Key: "totalRecords", Label: "Toplam Fiş", Value: FormatNumber(s.TotalRecords), Format: FormatCount},
		{Key: "totalAmount", Label: "Toplam Tutar", Value: FormatCurrency(s.TotalAmount), Format: FormatAmount},
		{Key: "averageDailyRecords", Label: "Günlük Ortalama", Value: turkish.Sprintf("%.1f", s.AverageDailyRecords), Format: FormatDecimal},
		{Key: "todayRecords", Label: "Bugünkü Fişler", Value: FormatNumber(s.TodayRecords), Format: FormatCount},
		{Key: "averageAmount", Label: "Ortalama Tutar", Value: FormatCurrency(s.AverageAmount), Format: FormatAmount},
	}
}

// Cards returns the formatted stat cards for the current state, or nil
// while no data has resolved yet.
func (c *StatsController) Cards() []StatCard {
	return StatCards(c.State().Data)
}
