package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidLineItem is returned when a line violates the caller contract.
	ErrInvalidLineItem = errors.New("invalid line item")
	// ErrInvalidDiscount is returned when the global discount is out of range.
	ErrInvalidDiscount = errors.New("invalid discount")
	// ErrUnknownVATMode is returned by ParseVATMode for unrecognised values.
	ErrUnknownVATMode = errors.New("unknown vat mode")
)

var hundred = decimal.NewFromInt(100)

// VATMode selects how VAT is derived once a global discount is applied.
type VATMode string

const (
	// VATFlat recomputes VAT as discounted subtotal times FlatVATRate.
	VATFlat VATMode = "flat"
	// VATProportional scales every rate group by the global discount ratio.
	VATProportional VATMode = "proportional"
)

// ParseVATMode maps a configuration value onto a VATMode. An empty value
// means VATFlat; anything else must name a mode.
func ParseVATMode(value string) (VATMode, error) {
	switch mode := VATMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "", VATFlat:
		return VATFlat, nil
	case VATProportional:
		return VATProportional, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVATMode, value)
	}
}

// LineItem is one product entry of a cart.
type LineItem struct {
	ProductID      string
	SKU            string
	Name           string
	Quantity       int
	UnitPrice      decimal.Decimal
	VATRatePercent decimal.Decimal
	Discount       *Discount
}

// Cart is the input of ComputeTotals.
type Cart struct {
	Lines          []LineItem
	GlobalDiscount *Discount
}

// LineResult carries the computed amounts of a single line.
type LineResult struct {
	ProductID      string
	VATRatePercent decimal.Decimal
	Gross          decimal.Decimal
	Discount       decimal.Decimal
	Net            decimal.Decimal
	VAT            decimal.Decimal
	Total          decimal.Decimal
}

// VATGroup aggregates lines sharing a VAT rate.
type VATGroup struct {
	RatePercent decimal.Decimal
	Base        decimal.Decimal
	VAT         decimal.Decimal
}

// Totals aggregates computed pricing components at full precision.
type Totals struct {
	Lines          []LineResult
	VATBreakdown   []VATGroup
	LinesNet       decimal.Decimal
	GlobalDiscount decimal.Decimal
	Subtotal       decimal.Decimal
	VATTotal       decimal.Decimal
	GrandTotal     decimal.Decimal
}

// Engine computes cart totals. The zero value uses VATFlat at 21%; a valid
// FlatVATRate, zero included, replaces the 21%.
type Engine struct {
	GlobalVATMode VATMode
	FlatVATRate   decimal.NullDecimal
}

// Mode returns the effective global-discount VAT mode.
func (e Engine) Mode() VATMode {
	if e.GlobalVATMode == VATProportional {
		return VATProportional
	}
	return VATFlat
}

func (e Engine) flatRate() decimal.Decimal {
	if !e.FlatVATRate.Valid {
		return decimal.NewFromInt(21)
	}
	return e.FlatVATRate.Decimal
}

// ComputeTotals calculates totals with the default engine.
func ComputeTotals(cart Cart) (Totals, error) {
	return Engine{}.ComputeTotals(cart)
}

// ComputeTotals calculates per-line amounts, the VAT breakdown and cart totals.
// Amounts are not rounded; use Totals.Display for presentation.
func (e Engine) ComputeTotals(cart Cart) (Totals, error) {
	if err := validate(cart); err != nil {
		return Totals{}, err
	}

	totals := Totals{Lines: make([]LineResult, 0, len(cart.Lines))}
	groups := map[string]*VATGroup{}
	subtotal := decimal.Zero
	vatTotal := decimal.Zero

	for _, line := range cart.Lines {
		gross := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		discount := line.Discount.amount(gross)
		net := decimal.Max(decimal.Zero, gross.Sub(discount))
		vat := net.Mul(line.VATRatePercent).Div(hundred)

		totals.Lines = append(totals.Lines, LineResult{
			ProductID:      line.ProductID,
			VATRatePercent: line.VATRatePercent,
			Gross:          gross,
			Discount:       gross.Sub(net),
			Net:            net,
			VAT:            vat,
			Total:          net.Add(vat),
		})

		key := line.VATRatePercent.String()
		group, ok := groups[key]
		if !ok {
			group = &VATGroup{RatePercent: line.VATRatePercent}
			groups[key] = group
		}
		group.Base = group.Base.Add(net)
		group.VAT = group.VAT.Add(vat)

		subtotal = subtotal.Add(net)
		vatTotal = vatTotal.Add(vat)
	}

	totals.VATBreakdown = make([]VATGroup, 0, len(groups))
	for _, group := range groups {
		totals.VATBreakdown = append(totals.VATBreakdown, *group)
	}
	sort.Slice(totals.VATBreakdown, func(i, j int) bool {
		return totals.VATBreakdown[i].RatePercent.LessThan(totals.VATBreakdown[j].RatePercent)
	})

	totals.LinesNet = subtotal
	if cart.GlobalDiscount != nil {
		discounted := decimal.Max(decimal.Zero, subtotal.Sub(cart.GlobalDiscount.amount(subtotal)))
		totals.GlobalDiscount = subtotal.Sub(discounted)
		switch e.Mode() {
		case VATProportional:
			vatTotal = e.scaleBreakdown(totals.VATBreakdown, subtotal, discounted)
		default:
			vatTotal = discounted.Mul(e.flatRate()).Div(hundred)
		}
		subtotal = discounted
	}

	totals.Subtotal = subtotal
	totals.VATTotal = decimal.Max(decimal.Zero, vatTotal)
	totals.GrandTotal = decimal.Max(decimal.Zero, subtotal.Add(totals.VATTotal))
	return totals, nil
}

// scaleBreakdown rescales every group by after/before and returns the new VAT sum.
func (e Engine) scaleBreakdown(groups []VATGroup, before, after decimal.Decimal) decimal.Decimal {
	vat := decimal.Zero
	if before.IsZero() {
		for i := range groups {
			groups[i].Base = decimal.Zero
			groups[i].VAT = decimal.Zero
		}
		return vat
	}
	ratio := after.Div(before)
	for i := range groups {
		groups[i].Base = groups[i].Base.Mul(ratio)
		groups[i].VAT = groups[i].Base.Mul(groups[i].RatePercent).Div(hundred)
		vat = vat.Add(groups[i].VAT)
	}
	return vat
}

func validate(cart Cart) error {
	seen := make(map[string]struct{}, len(cart.Lines))
	for i, line := range cart.Lines {
		if line.Quantity < 1 {
			return fmt.Errorf("line %d: quantity must be positive: %w", i, ErrInvalidLineItem)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d: unit price must not be negative: %w", i, ErrInvalidLineItem)
		}
		if line.VATRatePercent.IsNegative() {
			return fmt.Errorf("line %d: vat rate must not be negative: %w", i, ErrInvalidLineItem)
		}
		if err := line.Discount.Validate(); err != nil {
			return fmt.Errorf("line %d: %v: %w", i, err, ErrInvalidLineItem)
		}
		if line.ProductID != "" {
			if _, dup := seen[line.ProductID]; dup {
				return fmt.Errorf("line %d: duplicate product %s: %w", i, line.ProductID, ErrInvalidLineItem)
			}
			seen[line.ProductID] = struct{}{}
		}
	}
	if err := cart.GlobalDiscount.Validate(); err != nil {
		return fmt.Errorf("global discount: %w", err)
	}
	return nil
}
