package dashboard

import (
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/fisdash/fisdash/query"
)

// dateLayout is the wire format of the date filter inputs.
const dateLayout = "2006-01-02"

// Filters carries the raw filter form values as the view submits them.
// All fields are optional; an empty string means "not set". Validation
// happens locally before any fetch is issued, so a bad value never
// produces a cache key or a query.
type Filters struct {
	Search    string
	DateFrom  string
	DateTo    string
	MinAmount string
	MaxAmount string
	RecordNo  string
}

// Validate checks each field in isolation and then the cross-field
// constraints: min amount must not exceed max amount, and the from
// date must not be after the to date.
func (f Filters) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.DateFrom, validation.Date(dateLayout)),
		validation.Field(&f.DateTo, validation.Date(dateLayout)),
		validation.Field(&f.MinAmount, validation.By(checkAmount)),
		validation.Field(&f.MaxAmount, validation.By(checkAmount)),
	)
	if err != nil {
		return err
	}

	errs := validation.Errors{}

	min, max := f.amountBounds()
	if min > 0 && max > 0 && min > max {
		errs["minAmount"] = validation.NewError(
			"validation_amount_range", "minimum amount must not exceed maximum amount")
	}

	if f.DateFrom != "" && f.DateTo != "" {
		from, _ := time.Parse(dateLayout, strings.TrimSpace(f.DateFrom))
		to, _ := time.Parse(dateLayout, strings.TrimSpace(f.DateTo))
		if from.After(to) {
			errs["dateFrom"] = validation.NewError(
				"validation_date_range", "start date must not be after end date")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkAmount(value any) error {
	s, _ := value.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return validation.NewError("validation_amount", "must be a number")
	}
	if v < 0 {
		return validation.NewError("validation_amount", "must not be negative")
	}
	return nil
}

// amountBounds parses the numeric bounds, treating unparseable or unset
// values as zero. Callers validate first.
func (f Filters) amountBounds() (min, max float64) {
	min, _ = strconv.ParseFloat(strings.TrimSpace(f.MinAmount), 64)
	max, _ = strconv.ParseFloat(strings.TrimSpace(f.MaxAmount), 64)
	return min, max
}

// FiltersFromParams reconstructs the form values from normalized
// parameters, for prefilling the filter form after a reload.
func FiltersFromParams(p query.Params) Filters {
	f := Filters{
		Search:   p.Search,
		DateFrom: p.DateFrom,
		DateTo:   p.DateTo,
		RecordNo: p.RecordNo,
	}
	if p.MinAmount != 0 {
		f.MinAmount = strconv.FormatFloat(p.MinAmount, 'f', -1, 64)
	}
	if p.MaxAmount != 0 {
		f.MaxAmount = strconv.FormatFloat(p.MaxAmount, 'f', -1, 64)
	}
	return f
}

// Apply copies the filter values onto p, leaving pagination and sort
// untouched.
func (f Filters) Apply(p query.Params) query.Params {
	p.Search = strings.TrimSpace(f.Search)
	p.DateFrom = strings.TrimSpace(f.DateFrom)
	p.DateTo = strings.TrimSpace(f.DateTo)
	p.RecordNo = strings.TrimSpace(f.RecordNo)
	p.MinAmount, p.MaxAmount = f.amountBounds()
	return p
}
