package pos

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

var defaultVATRate = decimal.NewFromInt(21)

// ProductSource resolves catalog products for lines sent without a price.
type ProductSource interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// DiscountRequest is the wire form of a discount.
type DiscountRequest struct {
	Type  string          `json:"type" validate:"required,oneof=percent fixed"`
	Value decimal.Decimal `json:"value"`
}

// LineRequest is one cart line as sent by the till. UnitPrice and VATRate
// fall back to the catalog product when omitted.
type LineRequest struct {
	ProductID string           `json:"product_id" validate:"required,max=64"`
	SKU       string           `json:"sku" validate:"max=64"`
	Name      string           `json:"name" validate:"max=200"`
	Quantity  int              `json:"quantity" validate:"min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	VATRate   *decimal.Decimal `json:"vat_rate"`
	Discount  *DiscountRequest `json:"discount"`
}

// CartRequest is the wire form of a cart.
type CartRequest struct {
	Lines          []LineRequest    `json:"lines" validate:"max=500,dive"`
	GlobalDiscount *DiscountRequest `json:"global_discount"`
	PriceTier      string           `json:"price_tier" validate:"omitempty,oneof=retail wholesale loyal"`
	Language       string           `json:"language" validate:"omitempty,oneof=fr nl"`
}

func (d *DiscountRequest) toDiscount() (*pricing.Discount, error) {
	if d == nil {
		return nil, nil
	}
	kind, err := pricing.ParseDiscountKind(d.Type)
	if err != nil {
		return nil, err
	}
	return &pricing.Discount{Kind: kind, Value: d.Value}, nil
}

// Resolve turns the request into a pricing cart. Lines without a unit price
// or VAT rate take them from the catalog product, as do empty SKUs and names
// on those lines. Without a product source, unit_price is required and the VAT
// rate defaults to 21%.
func (c CartRequest) Resolve(ctx context.Context, products ProductSource) (pricing.Cart, error) {
	tier := catalog.ParsePriceTier(c.PriceTier)
	cart := pricing.Cart{Lines: make([]pricing.LineItem, 0, len(c.Lines))}
	for i, l := range c.Lines {
		item := pricing.LineItem{ProductID: l.ProductID, SKU: l.SKU, Name: l.Name, Quantity: l.Quantity, VATRatePercent: defaultVATRate}
		if l.UnitPrice == nil || l.VATRate == nil {
			if products == nil {
				if l.UnitPrice == nil {
					return pricing.Cart{}, common.ValidationError(fmt.Sprintf("line %d: unit_price is required", i), nil, nil)
				}
			} else {
				p, err := products.Get(ctx, l.ProductID)
				if err != nil {
					return pricing.Cart{}, err
				}
				item.UnitPrice = p.PriceFor(tier)
				item.VATRatePercent = p.VATRate
				if item.SKU == "" {
					item.SKU = p.SKU
				}
				if item.Name == "" {
					item.Name = p.Name(c.Language)
				}
			}
		}
		if l.UnitPrice != nil {
			item.UnitPrice = *l.UnitPrice
		}
		if l.VATRate != nil {
			item.VATRatePercent = *l.VATRate
		}
		discount, err := l.Discount.toDiscount()
		if err != nil {
			return pricing.Cart{}, invalidCart(fmt.Errorf("line %d: %w", i, err))
		}
		item.Discount = discount
		cart.Lines = append(cart.Lines, item)
	}
	global, err := c.GlobalDiscount.toDiscount()
	if err != nil {
		return pricing.Cart{}, invalidCart(fmt.Errorf("global discount: %w", err))
	}
	cart.GlobalDiscount = global
	return cart, nil
}

// ComputeError maps pricing validation failures to a 400 and passes anything else through.
func ComputeError(err error) error {
	if errors.Is(err, pricing.ErrInvalidLineItem) || errors.Is(err, pricing.ErrInvalidDiscount) {
		return invalidCart(err)
	}
	return err
}

func invalidCart(err error) *common.AppError {
	return common.ValidationError(err.Error(), err, nil)
}
