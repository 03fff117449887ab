package customer

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Service resolves customers for the till and for documents.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(store Store, logger zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("customer: store is required")
	}
	return &Service{store: store, logger: logger}, nil
}

// List returns one page of customers matching params.Query.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	params.Query = strings.TrimSpace(params.Query)
	return s.store.List(ctx, params)
}

// Get returns the customer with id or a CUSTOMER_NOT_FOUND error.
func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	c, err := s.store.Get(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return Customer{}, common.NotFound("CUSTOMER_NOT_FOUND", "customer not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("customer_id", id).Msg("customer_get_failed")
		return Customer{}, err
	}
	return c, nil
}
