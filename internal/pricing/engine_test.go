package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func line(id string, qty int, price, rate string) LineItem {
	return LineItem{ProductID: id, Quantity: qty, UnitPrice: dec(price), VATRatePercent: dec(rate)}
}

func TestComputeTotalsSingleLine(t *testing.T) {
	totals, err := ComputeTotals(Cart{Lines: []LineItem{line("p1", 2, "10.00", "21")}})
	require.NoError(t, err)

	view := totals.Display()
	require.Len(t, view.Lines, 1)
	require.Equal(t, "20.00", view.Lines[0].Net)
	require.Equal(t, "4.20", view.Lines[0].VAT)
	require.Equal(t, "24.20", view.Lines[0].Total)
	require.Equal(t, "20.00", view.Subtotal)
	require.Equal(t, "4.20", view.VATTotal)
	require.Equal(t, "24.20", view.GrandTotal)
}

func TestComputeTotalsGlobalPercentUsesFlatRate(t *testing.T) {
	cart := Cart{
		Lines:          []LineItem{line("p1", 2, "10.00", "21")},
		GlobalDiscount: Percent(dec("10")),
	}
	totals, err := ComputeTotals(cart)
	require.NoError(t, err)

	view := totals.Display()
	require.Equal(t, "2.00", view.GlobalDiscount)
	require.Equal(t, "18.00", view.Subtotal)
	require.Equal(t, "3.78", view.VATTotal)
	require.Equal(t, "21.78", view.GrandTotal)
}

func TestComputeTotalsFlatRateIgnoresLineRates(t *testing.T) {
	cart := Cart{
		Lines:          []LineItem{line("p1", 1, "100", "6")},
		GlobalDiscount: Fixed(dec("10")),
	}
	totals, err := ComputeTotals(cart)
	require.NoError(t, err)
	require.Equal(t, "90.00", totals.Display().Subtotal)
	require.Equal(t, "18.90", totals.Display().VATTotal)
}

func TestComputeTotalsProportionalMode(t *testing.T) {
	engine := Engine{GlobalVATMode: VATProportional}
	cart := Cart{
		Lines: []LineItem{
			line("a", 1, "100", "21"),
			line("b", 1, "100", "6"),
		},
		GlobalDiscount: Fixed(dec("20")),
	}
	totals, err := engine.ComputeTotals(cart)
	require.NoError(t, err)

	view := totals.Display()
	require.Equal(t, "180.00", view.Subtotal)
	require.Equal(t, "24.30", view.VATTotal)
	require.Equal(t, "204.30", view.GrandTotal)
	require.Equal(t, []DisplayVATGroup{
		{Rate: "6", Base: "90.00", VAT: "5.40"},
		{Rate: "21", Base: "90.00", VAT: "18.90"},
	}, view.VATBreakdown)

	sum := decimal.Zero
	for _, g := range totals.VATBreakdown {
		sum = sum.Add(g.VAT)
	}
	require.True(t, sum.Equal(totals.VATTotal))
}

func TestComputeTotalsCustomFlatRate(t *testing.T) {
	engine := Engine{FlatVATRate: decimal.NewNullDecimal(dec("6"))}
	totals, err := engine.ComputeTotals(Cart{
		Lines:          []LineItem{line("a", 1, "50", "21")},
		GlobalDiscount: Percent(dec("0")),
	})
	require.NoError(t, err)
	require.Equal(t, "3.00", totals.Display().VATTotal)

	exempt := Engine{FlatVATRate: decimal.NewNullDecimal(decimal.Zero)}
	totals, err = exempt.ComputeTotals(Cart{
		Lines:          []LineItem{line("a", 1, "50", "21")},
		GlobalDiscount: Fixed(dec("10")),
	})
	require.NoError(t, err)
	require.Equal(t, "0.00", totals.Display().VATTotal)
	require.Equal(t, "40.00", totals.Display().GrandTotal)
}

func TestComputeTotalsVATBreakdownSumsToTotal(t *testing.T) {
	cart := Cart{Lines: []LineItem{
		line("a", 3, "9.99", "21"),
		line("b", 7, "1.15", "6"),
		line("c", 1, "14.30", "21"),
		line("d", 2, "3.33", "0"),
	}}
	cart.Lines[0].Discount = Percent(dec("10"))
	totals, err := ComputeTotals(cart)
	require.NoError(t, err)

	require.Len(t, totals.VATBreakdown, 3)
	require.True(t, totals.VATBreakdown[0].RatePercent.Equal(dec("0")))
	require.True(t, totals.VATBreakdown[1].RatePercent.Equal(dec("6")))
	require.True(t, totals.VATBreakdown[2].RatePercent.Equal(dec("21")))

	vat := decimal.Zero
	base := decimal.Zero
	for _, g := range totals.VATBreakdown {
		vat = vat.Add(g.VAT)
		base = base.Add(g.Base)
	}
	require.True(t, vat.Equal(totals.VATTotal), "breakdown %s != total %s", vat, totals.VATTotal)
	require.True(t, base.Equal(totals.Subtotal))
}

func TestComputeTotalsLineDiscountRoundsOnlyForDisplay(t *testing.T) {
	cart := Cart{Lines: []LineItem{line("a", 3, "9.99", "21")}}
	cart.Lines[0].Discount = Percent(dec("10"))
	totals, err := ComputeTotals(cart)
	require.NoError(t, err)

	require.True(t, totals.Lines[0].Net.Equal(dec("26.973")))
	require.True(t, totals.Lines[0].VAT.Equal(dec("5.66433")))
	view := totals.Display()
	require.Equal(t, "26.97", view.Lines[0].Net)
	require.Equal(t, "5.66", view.Lines[0].VAT)
	require.Equal(t, "32.64", view.Lines[0].Total)
}

func TestComputeTotalsFixedLineDiscountClamps(t *testing.T) {
	cart := Cart{Lines: []LineItem{line("a", 1, "5.00", "21")}}
	cart.Lines[0].Discount = Fixed(dec("10"))
	totals, err := ComputeTotals(cart)
	require.NoError(t, err)

	require.True(t, totals.Lines[0].Net.IsZero())
	require.True(t, totals.Lines[0].VAT.IsZero())
	require.True(t, totals.Lines[0].Discount.Equal(dec("5")))
	require.True(t, totals.GrandTotal.IsZero())
}

func TestComputeTotalsFixedLineDiscountNotScaledByQuantity(t *testing.T) {
	cart := Cart{Lines: []LineItem{line("a", 4, "2.50", "0")}}
	cart.Lines[0].Discount = Fixed(dec("1"))
	totals, err := ComputeTotals(cart)
	require.NoError(t, err)
	require.Equal(t, "9.00", totals.Display().Subtotal)
}

func TestComputeTotalsGlobalFixedClampsToZero(t *testing.T) {
	totals, err := ComputeTotals(Cart{
		Lines:          []LineItem{line("a", 1, "5", "21")},
		GlobalDiscount: Fixed(dec("50")),
	})
	require.NoError(t, err)
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.VATTotal.IsZero())
	require.True(t, totals.GrandTotal.IsZero())
	require.True(t, totals.GlobalDiscount.Equal(dec("5")))
}

func TestComputeTotalsEmptyCart(t *testing.T) {
	totals, err := ComputeTotals(Cart{GlobalDiscount: Percent(dec("15"))})
	require.NoError(t, err)
	require.Equal(t, "0.00", totals.Display().GrandTotal)
	require.Empty(t, totals.VATBreakdown)
}

func TestComputeTotalsIdempotent(t *testing.T) {
	cart := Cart{
		Lines: []LineItem{
			line("a", 2, "12.40", "21"),
			line("b", 1, "3.10", "6"),
		},
		GlobalDiscount: Percent(dec("5")),
	}
	first, err := ComputeTotals(cart)
	require.NoError(t, err)
	second, err := ComputeTotals(cart)
	require.NoError(t, err)
	require.Equal(t, first.Display(), second.Display())
}

func TestComputeTotalsNonNegative(t *testing.T) {
	carts := []Cart{
		{Lines: []LineItem{line("a", 1, "0", "21")}},
		{Lines: []LineItem{line("a", 1, "1", "21")}, GlobalDiscount: Percent(dec("100"))},
		{Lines: []LineItem{line("a", 9, "0.01", "6")}, GlobalDiscount: Fixed(dec("1000"))},
	}
	for _, engine := range []Engine{{}, {GlobalVATMode: VATProportional}} {
		for _, cart := range carts {
			totals, err := engine.ComputeTotals(cart)
			require.NoError(t, err)
			require.False(t, totals.Subtotal.IsNegative())
			require.False(t, totals.VATTotal.IsNegative())
			require.False(t, totals.GrandTotal.IsNegative())
		}
	}
}

func TestComputeTotalsRejectsInvalidLines(t *testing.T) {
	cases := map[string]LineItem{
		"zero quantity":     line("a", 0, "1", "21"),
		"negative quantity": line("a", -2, "1", "21"),
		"negative price":    line("a", 1, "-1", "21"),
		"negative vat":      line("a", 1, "1", "-6"),
		"percent too large": {ProductID: "a", Quantity: 1, UnitPrice: dec("1"), Discount: Percent(dec("120"))},
		"negative fixed":    {ProductID: "a", Quantity: 1, UnitPrice: dec("1"), Discount: Fixed(dec("-1"))},
		"unknown kind":      {ProductID: "a", Quantity: 1, UnitPrice: dec("1"), Discount: &Discount{Kind: "bogo"}},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeTotals(Cart{Lines: []LineItem{item}})
			require.ErrorIs(t, err, ErrInvalidLineItem)
		})
	}
}

func TestComputeTotalsRejectsDuplicateProducts(t *testing.T) {
	_, err := ComputeTotals(Cart{Lines: []LineItem{line("a", 1, "1", "21"), line("a", 2, "1", "21")}})
	require.ErrorIs(t, err, ErrInvalidLineItem)
}

func TestComputeTotalsRejectsInvalidGlobalDiscount(t *testing.T) {
	_, err := ComputeTotals(Cart{
		Lines:          []LineItem{line("a", 1, "1", "21")},
		GlobalDiscount: Percent(dec("150")),
	})
	require.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestParseHelpers(t *testing.T) {
	kind, err := ParseDiscountKind(" Percent ")
	require.NoError(t, err)
	require.Equal(t, DiscountPercent, kind)
	_, err = ParseDiscountKind("coupon")
	require.ErrorIs(t, err, ErrInvalidDiscount)

	for in, want := range map[string]VATMode{"proportional": VATProportional, " Flat ": VATFlat, "": VATFlat} {
		mode, err := ParseVATMode(in)
		require.NoError(t, err)
		require.Equal(t, want, mode)
	}
	_, err = ParseVATMode("proportionl")
	require.ErrorIs(t, err, ErrUnknownVATMode)
}
