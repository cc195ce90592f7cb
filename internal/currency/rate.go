// Package currency converts native wallet amounts into the reporting currency.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateSource is the single authority for native -> reporting conversion.
type RateSource interface {
	Convert(native decimal.Decimal) decimal.Decimal
	Pair() (native, reporting string)
}

// StaticRate converts with a fixed, configured rate.
type StaticRate struct {
	native    string
	reporting string
	rate      decimal.Decimal
}

// NewStaticRate parses rate and rejects zero or negative values.
func NewStaticRate(native, reporting, rate string) (*StaticRate, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("parse conversion rate %q: %w", rate, err)
	}
	if !r.IsPositive() {
		return nil, fmt.Errorf("conversion rate must be positive, got %s", r)
	}
	return &StaticRate{native: native, reporting: reporting, rate: r}, nil
}

func (s *StaticRate) Convert(native decimal.Decimal) decimal.Decimal {
	return native.Mul(s.rate)
}

func (s *StaticRate) Pair() (string, string) {
	return s.native, s.reporting
}

// Rate returns the configured multiplier.
func (s *StaticRate) Rate() decimal.Decimal {
	return s.rate
}
