package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "₺0,00"},
		{5, "₺5,00"},
		{1234.5, "₺1.234,50"},
		{1234567.89, "₺1.234.567,89"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.in))
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "42", FormatNumber(42))
	assert.Equal(t, "1.234", FormatNumber(1234))
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "15.03.2026 14:30", FormatDateTime(ts))
}
