package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/barcode"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/resilience"
)

var testCategories = []catalog.Category{
	{ID: "cat-pipes", NameFR: "Tuyaux", NameNL: "Buizen"},
	{ID: "cat-tools", NameFR: "Outils", NameNL: "Gereedschap"},
}

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "p001", SKU: "GG10WP035020", NameFR: "Tuyau PVC 35mm", NameNL: "PVC Buis 35mm", CategoryID: "cat-pipes",
			Unit: catalog.UnitMeter, PriceRetail: decimal.RequireFromString("4.50"),
			PriceWholesale: decimal.NewNullDecimal(decimal.RequireFromString("3.80")),
			VATRate:        decimal.NewFromInt(21), StockQty: 250, GTIN: "5410000000001"},
		{ID: "p002", SKU: "GG10WP050020", NameFR: "Tuyau PVC 50mm", NameNL: "PVC Buis 50mm", CategoryID: "cat-pipes",
			Unit: catalog.UnitMeter, PriceRetail: decimal.RequireFromString("6.80"), VATRate: decimal.NewFromInt(21), StockQty: 180},
		{ID: "p039", SKU: "TL10MT005001", NameFR: "Mètre 5m", NameNL: "Meetlint 5m", CategoryID: "cat-tools",
			Unit: catalog.UnitPiece, PriceRetail: decimal.RequireFromString("9.90"),
			PriceLoyal: decimal.NewNullDecimal(decimal.RequireFromString("8.90")),
			VATRate:    decimal.NewFromInt(21), StockQty: 200, Barcode: "TL-5M"},
	}
}

// countingStore records how often the backing store is hit so cache behaviour is observable.
type countingStore struct {
	*catalog.MemoryStore
	indexLoads int
	gets       int
	fail       error
}

func (c *countingStore) ListIndexEntries(ctx context.Context) ([]barcode.Entry, error) {
	c.indexLoads++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.MemoryStore.ListIndexEntries(ctx)
}

func (c *countingStore) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	c.gets++
	return c.MemoryStore.GetProduct(ctx, id)
}

func newService(t *testing.T, withCache bool) (*catalog.Service, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	store := &countingStore{MemoryStore: catalog.NewMemoryStore(testCategories, testProducts())}
	cfg := catalog.ServiceConfig{Store: store, DefaultLimit: 2, MaxLimit: 10}
	var mr *miniredis.Miniredis
	if withCache {
		mr = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		cfg.Cache = catalog.NewCache(rdb, time.Minute)
	}
	svc, err := catalog.NewService(cfg)
	require.NoError(t, err)
	return svc, store, mr
}

func TestLookupMatchesZeroPaddedEAN(t *testing.T) {
	svc, _, _ := newService(t, false)
	res, err := svc.Lookup(context.Background(), "05410000000001")
	require.NoError(t, err)
	require.True(t, res.Match.Matched)
	require.Equal(t, barcode.RuleGTINExact, res.Match.Rule)
	require.NotNil(t, res.Product)
	require.Equal(t, "p001", res.Product.ID)
	require.Contains(t, res.Candidates, "5410000000001")
}

func TestLookupNoMatchIsNotAnError(t *testing.T) {
	svc, _, _ := newService(t, false)
	res, err := svc.Lookup(context.Background(), "9999999")
	require.NoError(t, err)
	require.False(t, res.Match.Matched)
	require.Nil(t, res.Product)
	require.Equal(t, "9999999", res.RawCode)
}

func TestLookupBarcodeAndSKU(t *testing.T) {
	svc, _, _ := newService(t, false)
	res, err := svc.Lookup(context.Background(), "tl-5m")
	require.NoError(t, err)
	require.Equal(t, barcode.RuleBarcodeExact, res.Match.Rule)

	res, err = svc.Lookup(context.Background(), "gg10wp050020")
	require.NoError(t, err)
	require.Equal(t, "p002", res.Product.ID)
	require.Equal(t, barcode.RuleSKUExact, res.Match.Rule)
}

func TestIndexIsCachedInRedis(t *testing.T) {
	svc, store, mr := newService(t, true)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "GG10WP035020")
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, "GG10WP035020")
	require.NoError(t, err)
	require.Equal(t, 1, store.indexLoads)
	require.Equal(t, 1, store.gets)
	require.True(t, mr.Exists("catalog:index:v1"))

	svc.InvalidateIndex(ctx)
	svc.InvalidateProducts(ctx, "p001")
	_, err = svc.Lookup(ctx, "GG10WP035020")
	require.NoError(t, err)
	require.Equal(t, 2, store.indexLoads)
	require.Equal(t, 2, store.gets)
}

func TestCacheBreakerSkipsDeadRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	breaker := resilience.NewBreaker(2, 0.5, time.Hour).WithTarget("catalog_cache")
	store := &countingStore{MemoryStore: catalog.NewMemoryStore(testCategories, testProducts())}
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: store, Cache: catalog.NewCache(rdb, time.Minute).WithBreaker(breaker)})
	require.NoError(t, err)
	ctx := context.Background()

	mr.Close()
	for i := 0; i < 3; i++ {
		res, err := svc.Lookup(ctx, "TL-5M")
		require.NoError(t, err)
		require.Equal(t, "p039", res.Product.ID)
	}
	require.Equal(t, resilience.Open, breaker.State())
	require.Equal(t, 3, store.indexLoads)
}

func TestIndexStoreFailure(t *testing.T) {
	svc, store, _ := newService(t, false)
	store.fail = errors.New("db down")
	_, err := svc.Lookup(context.Background(), "123")
	require.Error(t, err)
}

func TestGetUnknownProduct(t *testing.T) {
	svc, _, _ := newService(t, false)
	_, err := svc.Get(context.Background(), "nope")
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	require.Equal(t, "PRODUCT_NOT_FOUND", appErr.Code)
}

func TestParseListParams(t *testing.T) {
	svc, _, _ := newService(t, false)
	params, err := svc.ParseListParams(url.Values{"search": {"pvc"}, "limit": {"99"}, "offset": {"1"}})
	require.NoError(t, err)
	require.Equal(t, "pvc", params.Query)
	require.Equal(t, 10, params.Limit)
	require.Equal(t, 1, params.Offset)

	_, err = svc.ParseListParams(url.Values{"limit": {"zero"}})
	require.Error(t, err)
}

func TestPriceFor(t *testing.T) {
	products := testProducts()
	require.Equal(t, "3.8", products[0].PriceFor(catalog.TierWholesale).String())
	require.Equal(t, "6.8", products[1].PriceFor(catalog.ParsePriceTier("WHOLESALE")).String())
	require.Equal(t, catalog.TierLoyal, catalog.ParsePriceTier(" Loyal "))
	require.Equal(t, "8.9", products[2].PriceFor(catalog.TierLoyal).String())
	require.Equal(t, "4.5", products[0].PriceFor(catalog.TierLoyal).String())
	require.Equal(t, catalog.TierRetail, catalog.ParsePriceTier("vip"))
	require.Equal(t, "PVC Buis 35mm", products[0].Name("nl"))
	require.Equal(t, "Tuyau PVC 35mm", products[0].Name(""))
}

func TestStockAlerts(t *testing.T) {
	svc, _, _ := newService(t, true)
	ctx := context.Background()

	alerts, err := svc.StockAlerts(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, 200, alerts.Threshold)
	require.Len(t, alerts.Items, 2)
	require.Equal(t, "p002", alerts.Items[0].ID)
	require.Equal(t, "p039", alerts.Items[1].ID)

	alerts, err = svc.StockAlerts(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, alerts.Items)
	require.Empty(t, alerts.Items)

	_, err = svc.StockAlerts(ctx, -1)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)

	threshold, err := svc.ParseStockThreshold(url.Values{})
	require.NoError(t, err)
	require.Equal(t, 10, threshold)
	_, err = svc.ParseStockThreshold(url.Values{"threshold": {"lots"}})
	require.Error(t, err)
}

func TestCatalogHandlers(t *testing.T) {
	svc, _, _ := newService(t, true)
	r := chi.NewRouter()
	catalog.NewHandler(catalog.HandlerConfig{Service: svc}).Routes(r)

	t.Run("categories", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data []catalog.Category `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		require.Equal(t, "Outils", resp.Data[0].NameFR)
	})

	t.Run("products search", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?search=buis&limit=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-Total-Count"))
		var resp struct {
			Data       []catalog.Product `json:"data"`
			Pagination common.Pagination `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "p001", resp.Data[0].ID)
		require.True(t, resp.Data[0].PriceRetail.Equal(decimal.RequireFromString("4.5")))
		require.Equal(t, 2, resp.Pagination.TotalItems)
	})

	t.Run("category filter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?category_id=cat-tools", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	})

	t.Run("product detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/p039", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data catalog.Product `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, catalog.UnitPiece, resp.Data.Unit)
		require.False(t, resp.Data.PriceWholesale.Valid)
	})

	t.Run("stock alerts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock-alerts?threshold=190", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
		var resp struct {
			Data      []catalog.Product `json:"data"`
			Count     int               `json:"count"`
			Threshold int               `json:"threshold"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		require.Equal(t, 190, resp.Threshold)
		require.Equal(t, "p002", resp.Data[0].ID)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock-alerts?threshold=-5", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/missing", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "PRODUCT_NOT_FOUND")
	})
}
