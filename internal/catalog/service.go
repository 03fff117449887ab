package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/barcode"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/obs"
)

const (
	indexCacheKey      = "catalog:index:v1"
	categoriesCacheKey = "catalog:categories:v1"
	firstPageCacheKey  = "catalog:products:list:first"
	productKeyPrefix   = "catalog:products:detail:"
)

// Service orchestrates catalog queries, caching and barcode lookups.
type Service struct {
	store        Store
	cache        *Cache
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
	lowStock     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
	// StockAlertThreshold is the default low-stock level; 10 when unset.
	StockAlertThreshold int
}

// LookupResult is the outcome of resolving a scanned code.
type LookupResult struct {
	RawCode    string         `json:"raw_code"`
	Candidates []string       `json:"candidates"`
	Match      barcode.Result `json:"match"`
	Product    *Product       `json:"product,omitempty"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 500
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	lowStock := cfg.StockAlertThreshold
	if lowStock < 1 {
		lowStock = 10
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		defaultLimit: min(defaultLimit, maxLimit),
		maxLimit:     maxLimit,
		lowStock:     lowStock,
	}, nil
}

// ParseListParams normalises raw query values into list filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Query:      strings.TrimSpace(firstNonEmpty(values.Get("search"), values.Get("q"))),
		CategoryID: strings.TrimSpace(firstNonEmpty(values.Get("category_id"), values.Get("category"))),
		Limit:      s.defaultLimit,
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(l, s.maxLimit)
	}
	if v := strings.TrimSpace(values.Get("offset")); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil || o < 0 {
			return params, badRequest("offset", "offset must be a non-negative integer", err)
		}
		params.Offset = o
	}
	return params, nil
}

// Categories returns all categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, categoriesCacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if rows == nil {
		rows = []Category{}
	}
	s.cacheSet(ctx, categoriesCacheKey, rows)
	return rows, nil
}

// List returns a filtered product page. Only the unfiltered first page is cached.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Limit < 1 {
		params.Limit = s.defaultLimit
	}
	cacheable := params.Query == "" && params.CategoryID == "" && params.Offset == 0 && params.Limit == s.defaultLimit
	if cacheable {
		var cached ListResult
		if ok, err := s.cache.GetJSON(ctx, firstPageCacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}
	result, err := s.store.ListProducts(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	if result.Items == nil {
		result.Items = []Product{}
	}
	if cacheable {
		s.cacheSet(ctx, firstPageCacheKey, result)
	}
	return result, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, badRequest("id", "product id is required", nil)
	}
	key := productKeyPrefix + id
	var cached Product
	ok, err := s.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		obs.ObserveCatalogCache(ok)
	}
	if ok {
		return cached, nil
	}
	product, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Product{}, common.NotFound("PRODUCT_NOT_FOUND", "product not found")
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	s.cacheSet(ctx, key, product)
	return product, nil
}

// ParseStockThreshold reads ?threshold=, falling back to the configured level.
func (s *Service) ParseStockThreshold(values url.Values) (int, error) {
	v := strings.TrimSpace(values.Get("threshold"))
	if v == "" {
		return s.lowStock, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("threshold", "threshold must be a non-negative integer", err)
	}
	return n, nil
}

// StockAlerts lists products whose stock is at or below threshold. Stock
// moves with every sale so the result is never cached.
func (s *Service) StockAlerts(ctx context.Context, threshold int) (StockAlerts, error) {
	if threshold < 0 {
		return StockAlerts{}, badRequest("threshold", "threshold must be a non-negative integer", nil)
	}
	items, err := s.store.ListLowStock(ctx, threshold)
	if err != nil {
		return StockAlerts{}, fmt.Errorf("stock alerts: %w", err)
	}
	if items == nil {
		items = []Product{}
	}
	return StockAlerts{Threshold: threshold, Items: items}, nil
}

// Index returns the barcode index over every product.
func (s *Service) Index(ctx context.Context) (*barcode.Index, error) {
	var entries []barcode.Entry
	ok, err := s.cache.GetJSON(ctx, indexCacheKey, &entries)
	if err == nil {
		obs.ObserveCatalogCache(ok)
	}
	if !ok {
		entries, err = s.store.ListIndexEntries(ctx)
		if err != nil {
			return nil, fmt.Errorf("load barcode index: %w", err)
		}
		s.cacheSet(ctx, indexCacheKey, entries)
	}
	return barcode.NewIndex(entries), nil
}

// Lookup normalizes raw and resolves it against the index. A miss is not an
// error: the result carries Match.Matched == false.
func (s *Service) Lookup(ctx context.Context, raw string) (LookupResult, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return LookupResult{}, err
	}
	candidates := barcode.Candidates(raw)
	result := LookupResult{RawCode: raw, Candidates: candidates, Match: idx.Match(candidates)}
	obs.ObserveScanLookup(string(result.Match.Rule))
	if !result.Match.Matched {
		s.logger.Debug().Str("raw_code", raw).Strs("candidates", candidates).Msg("scan_no_match")
		return result, nil
	}
	product, err := s.Get(ctx, result.Match.Entry.ID)
	if err != nil {
		return LookupResult{}, err
	}
	result.Product = &product
	return result, nil
}

// InvalidateProducts drops cached copies of the given products and the first
// list page, whose stock figures are now stale.
func (s *Service) InvalidateProducts(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, productKeyPrefix+id)
	}
	keys = append(keys, firstPageCacheKey)
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Msg("catalog_cache_invalidate_failed")
	}
}

// InvalidateIndex drops the cached barcode index.
func (s *Service) InvalidateIndex(ctx context.Context) {
	if err := s.cache.Delete(ctx, indexCacheKey); err != nil {
		s.logger.Warn().Err(err).Msg("catalog_cache_invalidate_failed")
	}
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if err := s.cache.SetJSON(ctx, key, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func badRequest(field, message string, err error) *common.AppError {
	return common.ValidationError(message, err, map[string]any{"field": field})
}
