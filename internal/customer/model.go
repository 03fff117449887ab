package customer

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by stores when a customer id is unknown.
var ErrNotFound = errors.New("customer not found")

// Type distinguishes private buyers from companies.
type Type string

const (
	TypeIndividual Type = "individual"
	TypeCompany    Type = "company"
)

// Customer is a buyer a document can be issued to.
type Customer struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Name        string          `json:"name"`
	VATNumber   string          `json:"vat_number,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListParams filters a customer search.
type ListParams struct {
	Query  string
	Limit  int
	Offset int
}

// ListResult carries one page of customers plus the unpaged total.
type ListResult struct {
	Items []Customer
	Total int64
}
