package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountKind enumerates the supported discount shapes.
type DiscountKind string

const (
	// DiscountPercent deducts Value percent of the amount it applies to.
	DiscountPercent DiscountKind = "percent"
	// DiscountFixed deducts Value currency units once.
	DiscountFixed DiscountKind = "fixed"
)

// ParseDiscountKind accepts the wire spelling of a kind, case-insensitively.
func ParseDiscountKind(value string) (DiscountKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DiscountPercent):
		return DiscountPercent, nil
	case string(DiscountFixed):
		return DiscountFixed, nil
	default:
		return "", fmt.Errorf("unknown discount kind %q: %w", value, ErrInvalidDiscount)
	}
}

// Discount is a percent or fixed deduction.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// Percent builds a percent discount.
func Percent(value decimal.Decimal) *Discount {
	return &Discount{Kind: DiscountPercent, Value: value}
}

// Fixed builds a fixed amount discount.
func Fixed(value decimal.Decimal) *Discount {
	return &Discount{Kind: DiscountFixed, Value: value}
}

// Validate reports whether the discount is within range. A nil discount is valid.
func (d *Discount) Validate() error {
	if d == nil {
		return nil
	}
	switch d.Kind {
	case DiscountPercent:
		if d.Value.IsNegative() || d.Value.GreaterThan(hundred) {
			return fmt.Errorf("percent discount must be within [0,100]: %w", ErrInvalidDiscount)
		}
	case DiscountFixed:
		if d.Value.IsNegative() {
			return fmt.Errorf("fixed discount must not be negative: %w", ErrInvalidDiscount)
		}
	default:
		return fmt.Errorf("unknown discount kind %q: %w", d.Kind, ErrInvalidDiscount)
	}
	return nil
}

// amount returns the deduction for base without clamping.
func (d *Discount) amount(base decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	if d.Kind == DiscountPercent {
		return base.Mul(d.Value).Div(hundred)
	}
	return d.Value
}
