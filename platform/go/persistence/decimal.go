package persistence

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary columns are NUMERIC; values cross the wire as text so amounts stay
// exact end to end. These helpers convert between the text form and
// decimal.Decimal at the scan/bind boundary.

func parseDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", raw, err)
	}
	return d, nil
}

func parseNullableDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := parseDecimal(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalArg(d decimal.Decimal) string {
	return d.String()
}

func nullableDecimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
