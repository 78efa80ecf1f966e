package dashboard

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// turkish renders numbers with Turkish separators: a dot for thousands
// and a comma for decimals.
var turkish = message.NewPrinter(language.Turkish)

// FormatCurrency renders an amount in Turkish lira, e.g. 1234.5 becomes
// "₺1.234,50". Zero renders as "₺0,00".
func FormatCurrency(v float64) string {
	return turkish.Sprintf("₺%.2f", v)
}

// FormatNumber renders a count with Turkish thousands separators.
func FormatNumber(n int) string {
	return turkish.Sprintf("%d", n)
}

// FormatDateTime renders a timestamp the way the receipt views display
// it, day first.
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}
