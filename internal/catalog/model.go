package catalog

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/barcode"
)

// ErrNotFound is returned by stores when a product or category does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Unit is the selling unit of a product.
type Unit string

const (
	UnitPiece        Unit = "piece"
	UnitMeter        Unit = "meter"
	UnitSquareMeters Unit = "m²"
	UnitBox          Unit = "box"
)

// PriceTier selects which list price applies to a sale.
type PriceTier string

const (
	TierRetail    PriceTier = "retail"
	TierWholesale PriceTier = "wholesale"
	TierLoyal     PriceTier = "loyal"
)

// ParsePriceTier defaults to retail for anything it does not recognise.
func ParsePriceTier(v string) PriceTier {
	switch tier := PriceTier(strings.ToLower(strings.TrimSpace(v))); tier {
	case TierWholesale, TierLoyal:
		return tier
	default:
		return TierRetail
	}
}

// Category groups products on the till.
type Category struct {
	ID     string `json:"id"`
	NameFR string `json:"name_fr"`
	NameNL string `json:"name_nl"`
}

// Product is a sellable catalog item.
type Product struct {
	ID             string              `json:"id"`
	SKU            string              `json:"sku"`
	NameFR         string              `json:"name_fr"`
	NameNL         string              `json:"name_nl"`
	CategoryID     string              `json:"category_id,omitempty"`
	Unit           Unit                `json:"unit"`
	PriceRetail    decimal.Decimal     `json:"price_retail"`
	PriceWholesale decimal.NullDecimal `json:"price_wholesale"`
	PriceLoyal     decimal.NullDecimal `json:"price_loyal"`
	VATRate        decimal.Decimal     `json:"vat_rate"`
	StockQty       int                 `json:"stock_qty"`
	Barcode        string              `json:"barcode,omitempty"`
	GTIN           string              `json:"gtin,omitempty"`
	ImageURL       string              `json:"image_url,omitempty"`
}

// PriceFor returns the unit price for tier, falling back to retail when the
// product has no price for that tier.
func (p Product) PriceFor(tier PriceTier) decimal.Decimal {
	switch {
	case tier == TierWholesale && p.PriceWholesale.Valid:
		return p.PriceWholesale.Decimal
	case tier == TierLoyal && p.PriceLoyal.Valid:
		return p.PriceLoyal.Decimal
	}
	return p.PriceRetail
}

// StockAlerts lists products at or below a stock threshold, lowest stock first.
type StockAlerts struct {
	Threshold int       `json:"threshold"`
	Items     []Product `json:"items"`
}

// Name returns the product name in lang ("fr" or "nl"), French by default.
func (p Product) Name(lang string) string {
	if strings.EqualFold(lang, "nl") && p.NameNL != "" {
		return p.NameNL
	}
	return p.NameFR
}

// IndexEntry projects the product onto the fields the barcode matcher reads.
func (p Product) IndexEntry() barcode.Entry {
	return barcode.Entry{ID: p.ID, SKU: p.SKU, Barcode: p.Barcode, GTIN: p.GTIN}
}

// ListParams filters product listings.
type ListParams struct {
	Query      string
	CategoryID string
	Limit      int
	Offset     int
}

// ListResult is one page of products plus the unpaged count.
type ListResult struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}
