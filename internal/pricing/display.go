package pricing

import "github.com/shopspring/decimal"

// DisplayLine is a LineResult rounded for presentation.
type DisplayLine struct {
	ProductID string `json:"productId"`
	VATRate   string `json:"vatRate"`
	Gross     string `json:"gross"`
	Discount  string `json:"discount"`
	Net       string `json:"net"`
	VAT       string `json:"vat"`
	Total     string `json:"total"`
}

// DisplayVATGroup is a VATGroup rounded for presentation.
type DisplayVATGroup struct {
	Rate string `json:"rate"`
	Base string `json:"base"`
	VAT  string `json:"vat"`
}

// DisplayTotals is the presentation form of Totals with every amount fixed to two decimals.
type DisplayTotals struct {
	Lines          []DisplayLine     `json:"lines"`
	VATBreakdown   []DisplayVATGroup `json:"vatBreakdown"`
	GlobalDiscount string            `json:"globalDiscount"`
	Subtotal       string            `json:"subtotal"`
	VATTotal       string            `json:"vatTotal"`
	GrandTotal     string            `json:"grandTotal"`
}

// Round2 rounds half away from zero to two decimals.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Display rounds every monetary amount at the presentation boundary.
func (t Totals) Display() DisplayTotals {
	out := DisplayTotals{
		Lines:          make([]DisplayLine, 0, len(t.Lines)),
		VATBreakdown:   make([]DisplayVATGroup, 0, len(t.VATBreakdown)),
		GlobalDiscount: money(t.GlobalDiscount),
		Subtotal:       money(t.Subtotal),
		VATTotal:       money(t.VATTotal),
		GrandTotal:     money(t.GrandTotal),
	}
	for _, l := range t.Lines {
		out.Lines = append(out.Lines, DisplayLine{
			ProductID: l.ProductID,
			VATRate:   l.VATRatePercent.String(),
			Gross:     money(l.Gross),
			Discount:  money(l.Discount),
			Net:       money(l.Net),
			VAT:       money(l.VAT),
			Total:     money(l.Total),
		})
	}
	for _, g := range t.VATBreakdown {
		out.VATBreakdown = append(out.VATBreakdown, DisplayVATGroup{
			Rate: g.RatePercent.String(),
			Base: money(g.Base),
			VAT:  money(g.VAT),
		})
	}
	return out
}
