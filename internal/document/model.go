package document

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by stores when a document id is unknown.
	ErrNotFound = errors.New("document not found")
	// ErrSourceNotConvertible is returned when a conversion source was accepted concurrently.
	ErrSourceNotConvertible = errors.New("source document is no longer convertible")
)

// Type is the kind of commercial document.
type Type string

const (
	TypeReceipt      Type = "receipt"
	TypeQuote        Type = "quote"
	TypeInvoice      Type = "invoice"
	TypeProforma     Type = "proforma"
	TypeDeliveryNote Type = "delivery_note"
	TypeCreditNote   Type = "credit_note"
)

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	switch t {
	case TypeReceipt, TypeQuote, TypeInvoice, TypeProforma, TypeDeliveryNote, TypeCreditNote:
		return true
	}
	return false
}

// IsOffer reports whether documents of this type are offers that stay drafts
// until converted: they take no payments and leave stock alone.
func (t Type) IsOffer() bool {
	return t == TypeQuote || t == TypeProforma
}

// StockSign is -1 for types that ship goods, +1 for credit notes and 0 otherwise.
func (t Type) StockSign() int {
	switch t {
	case TypeReceipt, TypeInvoice, TypeDeliveryNote:
		return -1
	case TypeCreditNote:
		return 1
	}
	return 0
}

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusAccepted      Status = "accepted"
	StatusUnpaid        Status = "unpaid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
)

// PaymentStatus derives the settlement status from the amount paid.
func PaymentStatus(paid, total decimal.Decimal) Status {
	switch {
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusUnpaid
	}
}

// PaymentMethod is how a payment was tendered.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Item is one persisted document line.
type Item struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	VATRate       decimal.Decimal `json:"vat_rate"`
	DiscountType  string          `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// Payment is one tender recorded against a document.
type Payment struct {
	ID        string          `json:"id"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Document is a receipt, quote, invoice, proforma, delivery note or credit note.
// Monetary totals are stored rounded to cents.
type Document struct {
	ID                  string          `json:"id"`
	Number              string          `json:"number"`
	Type                Type            `json:"type"`
	Status              Status          `json:"status"`
	CustomerID          string          `json:"customer_id,omitempty"`
	CustomerName        string          `json:"customer_name,omitempty"`
	SourceID            string          `json:"source_id,omitempty"`
	Items               []Item          `json:"items"`
	Payments            []Payment       `json:"payments"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	VATTotal            decimal.Decimal `json:"vat_total"`
	Total               decimal.Decimal `json:"total"`
	PaidTotal           decimal.Decimal `json:"paid_total"`
	GlobalDiscountType  string          `json:"global_discount_type,omitempty"`
	GlobalDiscountValue decimal.Decimal `json:"global_discount_value"`
	CreatedAt           time.Time       `json:"created_at"`
}

// StockMove is a signed stock adjustment applied with a document.
type StockMove struct {
	ProductID string
	Delta     int
}

// CreateOptions carries side effects applied atomically with an insert.
type CreateOptions struct {
	// AcceptSourceID marks that document accepted. The insert fails with
	// ErrSourceNotConvertible unless it is still draft or sent.
	AcceptSourceID string
}

// ListFilter narrows a document listing. Empty fields do not filter.
type ListFilter struct {
	Status     Status
	Type       Type
	CustomerID string
	Limit      int
}
