package document

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/customer"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pos"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// CustomerSource resolves the customer named on a document.
type CustomerSource interface {
	Get(ctx context.Context, id string) (customer.Customer, error)
}

// StockListener is told which products had their stock changed.
type StockListener interface {
	InvalidateProducts(ctx context.Context, ids ...string)
}

// Locker serialises work on one document across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

const convertLockTTL = 10 * time.Second

// PaymentRequest is the wire form of a tender.
type PaymentRequest struct {
	Method    PaymentMethod   `json:"method" validate:"required,oneof=cash card bank_transfer"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" validate:"max=100"`
}

// CreateRequest is the payload of a new document.
type CreateRequest struct {
	pos.CartRequest
	Type       Type             `json:"type" validate:"required,oneof=receipt quote invoice proforma delivery_note credit_note"`
	CustomerID string           `json:"customer_id" validate:"max=64"`
	Payments   []PaymentRequest `json:"payments" validate:"max=20,dive"`
}

// Service issues and settles documents.
type Service struct {
	store     Store
	numbers   Numberer
	engine    pricing.Engine
	products  pos.ProductSource
	customers CustomerSource
	stock     StockListener
	locks     Locker
	logger    zerolog.Logger
	now       func() time.Time
	maxLimit  int
}

// ServiceConfig groups Service dependencies. Products, Customers, Stock and
// Locks are optional.
type ServiceConfig struct {
	Store     Store
	Numbers   Numberer
	Engine    pricing.Engine
	Products  pos.ProductSource
	Customers CustomerSource
	Stock     StockListener
	Locks     Locker
	Logger    zerolog.Logger
	Now       func() time.Time
	MaxLimit  int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("document: store is required")
	}
	if cfg.Numbers == nil {
		return nil, errors.New("document: numberer is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 200
	}
	return &Service{
		store:     cfg.Store,
		numbers:   cfg.Numbers,
		engine:    cfg.Engine,
		products:  cfg.Products,
		customers: cfg.Customers,
		stock:     cfg.Stock,
		locks:     cfg.Locks,
		logger:    cfg.Logger,
		now:       now,
		maxLimit:  maxLimit,
	}, nil
}

// Create prices the cart, numbers the document, records payments and applies
// stock movements.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Document, error) {
	if !req.Type.Valid() {
		return Document{}, common.ValidationError("unknown document type", nil, map[string]any{"type": req.Type})
	}
	if len(req.Lines) == 0 {
		return Document{}, common.ValidationError("document needs at least one line", nil, nil)
	}
	if req.Type.IsOffer() && len(req.Payments) > 0 {
		return Document{}, paymentsNotAllowed(req.Type)
	}

	cart, err := req.Resolve(ctx, s.products)
	if err != nil {
		return Document{}, err
	}
	totals, err := s.engine.ComputeTotals(cart)
	obs.ObserveTotals(string(s.engine.Mode()), err)
	if err != nil {
		return Document{}, pos.ComputeError(err)
	}

	now := s.now().UTC()
	doc := Document{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Items:     itemsFrom(req.CartRequest, cart, totals),
		Payments:  []Payment{},
		Subtotal:  pricing.Round2(totals.Subtotal),
		VATTotal:  pricing.Round2(totals.VATTotal),
		Total:     pricing.Round2(totals.GrandTotal),
		CreatedAt: now,
	}
	if g := req.GlobalDiscount; g != nil {
		doc.GlobalDiscountType = g.Type
		doc.GlobalDiscountValue = g.Value
	}
	if err := s.attachCustomer(ctx, &doc, req.CustomerID); err != nil {
		return Document{}, err
	}
	for _, p := range req.Payments {
		payment, err := newPayment(p, now)
		if err != nil {
			return Document{}, err
		}
		doc.Payments = append(doc.Payments, payment)
		doc.PaidTotal = doc.PaidTotal.Add(payment.Amount)
	}
	doc.Status = initialStatus(doc)

	if err := s.insert(ctx, &doc, CreateOptions{}); err != nil {
		return Document{}, err
	}
	for _, p := range doc.Payments {
		obs.ObservePayment(string(p.Method))
	}
	return doc, nil
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	doc, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Document{}, notFound()
	}
	return doc, err
}

// List returns document headers newest first. Limit defaults to 50 and is capped.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, common.ValidationError("unknown document type", nil, map[string]any{"type": filter.Type})
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	if filter.Limit > s.maxLimit {
		filter.Limit = s.maxLimit
	}
	docs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// AddPayment appends a tender and re-derives the payment status. Paying a
// draft receipt, invoice, delivery note or credit note issues it, applying
// its stock effect in the same transaction.
func (s *Service) AddPayment(ctx context.Context, id string, req PaymentRequest) (Document, error) {
	payment, err := newPayment(req, s.now().UTC())
	if err != nil {
		return Document{}, err
	}
	doc, moves, err := s.update(ctx, id, func(d *Document) ([]StockMove, error) {
		if d.Type.IsOffer() {
			return nil, paymentsNotAllowed(d.Type)
		}
		issuing := d.Status == StatusDraft
		d.Payments = append(d.Payments, payment)
		d.PaidTotal = d.PaidTotal.Add(payment.Amount)
		d.Status = PaymentStatus(d.PaidTotal, d.Total)
		if issuing {
			return stockMoves(*d), nil
		}
		return nil, nil
	})
	if err != nil {
		return Document{}, err
	}
	obs.ObservePayment(string(payment.Method))
	s.afterStock(ctx, moves)
	return doc, nil
}

// Issue finalises a draft receipt, invoice, delivery note or credit note:
// the status is derived from its payments and its stock effect applied.
func (s *Service) Issue(ctx context.Context, id string) (Document, error) {
	doc, moves, err := s.update(ctx, id, func(d *Document) ([]StockMove, error) {
		if d.Type.IsOffer() || d.Status != StatusDraft {
			return nil, common.Conflict("INVALID_TRANSITION", fmt.Sprintf("%s in status %s cannot be issued", d.Type, d.Status), nil)
		}
		d.Status = PaymentStatus(d.PaidTotal, d.Total)
		return stockMoves(*d), nil
	})
	if err != nil {
		return Document{}, err
	}
	s.afterStock(ctx, moves)
	s.logger.Info().Str("document_id", doc.ID).Str("number", doc.Number).Str("status", string(doc.Status)).Msg("document_issued")
	return doc, nil
}

// Send marks a draft offer as sent to the customer.
func (s *Service) Send(ctx context.Context, id string) (Document, error) {
	doc, _, err := s.update(ctx, id, func(d *Document) ([]StockMove, error) {
		if !d.Type.IsOffer() || d.Status != StatusDraft {
			return nil, common.Conflict("INVALID_TRANSITION", fmt.Sprintf("%s in status %s cannot be sent", d.Type, d.Status), nil)
		}
		d.Status = StatusSent
		return nil, nil
	})
	return doc, err
}

// update runs fn through the store and reports the stock moves it applied.
func (s *Service) update(ctx context.Context, id string, fn UpdateFunc) (Document, []StockMove, error) {
	var moves []StockMove
	doc, err := s.store.Update(ctx, id, func(d *Document) ([]StockMove, error) {
		var err error
		moves, err = fn(d)
		return moves, err
	})
	if errors.Is(err, ErrNotFound) {
		return Document{}, nil, notFound()
	}
	if err != nil {
		return Document{}, nil, err
	}
	return doc, moves, nil
}

// Convert turns a quote or proforma into a document of type target, which must
// be invoice. The source is marked accepted in the same transaction. Concurrent
// converts of one source are serialised so the loser does not consume a number.
func (s *Service) Convert(ctx context.Context, id string, target Type) (Document, error) {
	if target == "" {
		target = TypeInvoice
	}
	if target != TypeInvoice {
		return Document{}, common.ValidationError("offers can only be converted to invoices", nil, map[string]any{"target": target})
	}
	if s.locks == nil {
		return s.convert(ctx, id, target)
	}
	var doc Document
	err := s.locks.WithLock(ctx, "document:"+id, convertLockTTL, func(ctx context.Context) error {
		var err error
		doc, err = s.convert(ctx, id, target)
		return err
	})
	if errors.Is(err, lock.ErrBusy) {
		return Document{}, common.Conflict("DOCUMENT_BUSY", "document is being converted by another request", nil)
	}
	return doc, err
}

func (s *Service) convert(ctx context.Context, id string, target Type) (Document, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !src.Type.IsOffer() || (src.Status != StatusDraft && src.Status != StatusSent) {
		return Document{}, notConvertible(src)
	}

	doc := s.copyOf(src, target)
	doc.SourceID = src.ID
	doc.Status = initialStatus(doc)
	err = s.insert(ctx, &doc, CreateOptions{AcceptSourceID: src.ID})
	if errors.Is(err, ErrSourceNotConvertible) {
		return Document{}, notConvertible(src)
	}
	if err != nil {
		return Document{}, err
	}
	s.logger.Info().Str("source_number", src.Number).Str("number", doc.Number).Msg("document_converted")
	return doc, nil
}

// Duplicate creates a draft copy of id with a fresh number. Drafts leave stock
// alone until they are issued or paid.
func (s *Service) Duplicate(ctx context.Context, id string) (Document, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	doc := s.copyOf(src, src.Type)
	doc.Status = StatusDraft
	if err := s.insert(ctx, &doc, CreateOptions{}); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *Service) copyOf(src Document, typ Type) Document {
	doc := src
	doc.ID = uuid.NewString()
	doc.Number = ""
	doc.Type = typ
	doc.SourceID = ""
	doc.Payments = []Payment{}
	doc.PaidTotal = decimal.Zero
	doc.CreatedAt = s.now().UTC()
	doc.Items = make([]Item, len(src.Items))
	for i, it := range src.Items {
		it.ID = uuid.NewString()
		doc.Items[i] = it
	}
	return doc
}

// insert numbers doc, derives stock moves from its type and status, and persists it.
func (s *Service) insert(ctx context.Context, doc *Document, opts CreateOptions) error {
	number, err := s.numbers.Next(ctx, doc.CreatedAt)
	if err != nil {
		return err
	}
	doc.Number = number

	moves := stockMoves(*doc)
	if err := s.store.Create(ctx, *doc, moves, opts); err != nil {
		return err
	}
	obs.ObserveDocumentCreated(string(doc.Type))
	s.afterStock(ctx, moves)
	s.logger.Info().Str("document_id", doc.ID).Str("number", doc.Number).Str("type", string(doc.Type)).
		Str("status", string(doc.Status)).Str("total", doc.Total.StringFixed(2)).Msg("document_created")
	return nil
}

// afterStock tells the stock listener which products moved.
func (s *Service) afterStock(ctx context.Context, moves []StockMove) {
	if s.stock == nil || len(moves) == 0 {
		return
	}
	ids := make([]string, 0, len(moves))
	for _, m := range moves {
		ids = append(ids, m.ProductID)
	}
	s.stock.InvalidateProducts(ctx, ids...)
}

func (s *Service) attachCustomer(ctx context.Context, doc *Document, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	doc.CustomerID = id
	if s.customers == nil {
		return nil
	}
	c, err := s.customers.Get(ctx, id)
	if err != nil {
		return err
	}
	doc.CustomerName = c.Name
	return nil
}

func initialStatus(doc Document) Status {
	if doc.Type.IsOffer() {
		return StatusDraft
	}
	return PaymentStatus(doc.PaidTotal, doc.Total)
}

func stockMoves(doc Document) []StockMove {
	sign := doc.Type.StockSign()
	if sign == 0 || doc.Status == StatusDraft {
		return nil
	}
	moves := make([]StockMove, 0, len(doc.Items))
	for _, it := range doc.Items {
		if it.ProductID == "" {
			continue
		}
		moves = append(moves, StockMove{ProductID: it.ProductID, Delta: sign * it.Quantity})
	}
	return moves
}

func itemsFrom(req pos.CartRequest, cart pricing.Cart, totals pricing.Totals) []Item {
	items := make([]Item, len(cart.Lines))
	for i, line := range cart.Lines {
		it := Item{
			ID:        uuid.NewString(),
			ProductID: line.ProductID,
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			VATRate:   line.VATRatePercent,
			LineTotal: pricing.Round2(totals.Lines[i].Total),
		}
		if d := req.Lines[i].Discount; d != nil {
			it.DiscountType = d.Type
			it.DiscountValue = d.Value
		}
		items[i] = it
	}
	return items
}

func newPayment(req PaymentRequest, at time.Time) (Payment, error) {
	switch req.Method {
	case MethodCash, MethodCard, MethodBankTransfer:
	default:
		return Payment{}, common.ValidationError("unknown payment method", nil, map[string]any{"method": req.Method})
	}
	if !req.Amount.IsPositive() {
		return Payment{}, common.ValidationError("payment amount must be positive", nil, map[string]any{"amount": req.Amount})
	}
	return Payment{
		ID:        uuid.NewString(),
		Method:    req.Method,
		Amount:    pricing.Round2(req.Amount),
		Reference: strings.TrimSpace(req.Reference),
		CreatedAt: at,
	}, nil
}

func notFound() *common.AppError {
	return common.NotFound("DOCUMENT_NOT_FOUND", "document not found")
}

func paymentsNotAllowed(t Type) *common.AppError {
	return common.NewAppError("PAYMENTS_NOT_ALLOWED", fmt.Sprintf("%s documents do not take payments", t), http.StatusUnprocessableEntity, nil)
}

func notConvertible(src Document) *common.AppError {
	return common.Conflict("NOT_CONVERTIBLE", fmt.Sprintf("%s %s in status %s cannot be converted", src.Type, src.Number, src.Status), nil)
}
