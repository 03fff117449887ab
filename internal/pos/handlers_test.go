package pos_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pos"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/ratelimit"
)

func testCatalog(t *testing.T) *catalog.Service {
	t.Helper()
	products := []catalog.Product{
		{ID: "p001", SKU: "GG10WP035020", NameFR: "Tuyau PVC 35mm", NameNL: "PVC Buis 35mm", CategoryID: "cat-pipes",
			Unit: catalog.UnitMeter, PriceRetail: decimal.RequireFromString("4.50"),
			PriceWholesale: decimal.NewNullDecimal(decimal.RequireFromString("3.80")),
			PriceLoyal:     decimal.NewNullDecimal(decimal.RequireFromString("4.20")),
			VATRate:        decimal.NewFromInt(21), StockQty: 250, GTIN: "5410000000001"},
		{ID: "p020", SKU: "IS10LW050100", NameFR: "Laine de verre 50mm", NameNL: "Glaswol 50mm", CategoryID: "cat-insulation",
			Unit: catalog.UnitSquareMeters, PriceRetail: decimal.RequireFromString("10.00"), VATRate: decimal.NewFromInt(6), StockQty: 40},
	}
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: catalog.NewMemoryStore(nil, products)})
	require.NoError(t, err)
	return svc
}

func newRouter(t *testing.T, cfg pos.HandlerConfig) chi.Router {
	t.Helper()
	if cfg.Catalog == nil {
		cfg.Catalog = testCatalog(t)
	}
	cfg.Logger = zerolog.Nop()
	r := chi.NewRouter()
	pos.NewHandler(cfg).Routes(r)
	return r
}

func post(t *testing.T, r http.Handler, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type totalsResponse struct {
	Data pricing.DisplayTotals `json:"data"`
}

func decodeTotals(t *testing.T, rec *httptest.ResponseRecorder) pricing.DisplayTotals {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp totalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestTotalsFillsPricesFromCatalog(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	rec := post(t, r, "/pos/totals", map[string]any{
		"lines": []map[string]any{
			{"product_id": "p001", "quantity": 2},
			{"product_id": "p020", "quantity": 1},
		},
	})
	totals := decodeTotals(t, rec)
	require.Len(t, totals.Lines, 2)
	require.Equal(t, "9.00", totals.Lines[0].Gross)
	require.Equal(t, "1.89", totals.Lines[0].VAT)
	require.Equal(t, "19.00", totals.Subtotal)
	require.Equal(t, "2.49", totals.VATTotal)
	require.Equal(t, "21.49", totals.GrandTotal)
	require.Len(t, totals.VATBreakdown, 2)
	require.Equal(t, "6", totals.VATBreakdown[0].Rate)
}

func TestTotalsWholesaleTierAndExplicitPrice(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	rec := post(t, r, "/pos/totals", map[string]any{
		"price_tier": "wholesale",
		"lines": []map[string]any{
			{"product_id": "p001", "quantity": 10},
			{"product_id": "misc", "quantity": 1, "unit_price": "5.00", "vat_rate": "21"},
		},
	})
	totals := decodeTotals(t, rec)
	require.Equal(t, "38.00", totals.Lines[0].Gross)
	require.Equal(t, "43.00", totals.Subtotal)
}

func TestTotalsLoyalTier(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	rec := post(t, r, "/pos/totals", map[string]any{
		"price_tier": "loyal",
		"lines": []map[string]any{
			{"product_id": "p001", "quantity": 10},
			{"product_id": "p020", "quantity": 1},
		},
	})
	totals := decodeTotals(t, rec)
	require.Equal(t, "42.00", totals.Lines[0].Gross)
	require.Equal(t, "10.00", totals.Lines[1].Gross)
	require.Equal(t, "52.00", totals.Subtotal)

	rec = post(t, r, "/pos/totals", map[string]any{
		"price_tier": "vip",
		"lines":      []map[string]any{{"product_id": "p001", "quantity": 1}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTotalsGlobalDiscountModes(t *testing.T) {
	body := map[string]any{
		"global_discount": map[string]any{"type": "percent", "value": "10"},
		"lines": []map[string]any{
			{"product_id": "p001", "quantity": 2},
			{"product_id": "p020", "quantity": 1},
		},
	}

	flat := decodeTotals(t, post(t, newRouter(t, pos.HandlerConfig{}), "/pos/totals", body))
	require.Equal(t, "1.90", flat.GlobalDiscount)
	require.Equal(t, "17.10", flat.Subtotal)
	require.Equal(t, "3.59", flat.VATTotal)

	engine := pricing.Engine{GlobalVATMode: pricing.VATProportional}
	prop := decodeTotals(t, post(t, newRouter(t, pos.HandlerConfig{Engine: engine}), "/pos/totals", body))
	require.Equal(t, "17.10", prop.Subtotal)
	require.Equal(t, "2.24", prop.VATTotal)
	require.Equal(t, "19.34", prop.GrandTotal)
}

func TestTotalsRejectsInvalidCarts(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	cases := map[string]map[string]any{
		"zero quantity": {"lines": []map[string]any{{"product_id": "p001", "quantity": 0}}},
		"duplicate product": {"lines": []map[string]any{
			{"product_id": "p001", "quantity": 1},
			{"product_id": "p001", "quantity": 2},
		}},
		"percent over 100": {"lines": []map[string]any{
			{"product_id": "p001", "quantity": 1, "discount": map[string]any{"type": "percent", "value": "120"}},
		}},
		"unknown discount type": {"global_discount": map[string]any{"type": "coupon", "value": "5"}},
		"unknown field":         {"lines": []map[string]any{}, "till": "T1"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := post(t, r, "/pos/totals", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		})
	}
}

func TestTotalsUnknownProduct(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	rec := post(t, r, "/pos/totals", map[string]any{
		"lines": []map[string]any{{"product_id": "ghost", "quantity": 1}},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "PRODUCT_NOT_FOUND")
}

func TestTotalsEmptyCart(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	totals := decodeTotals(t, post(t, r, "/pos/totals", map[string]any{"lines": []any{}}))
	require.Equal(t, "0.00", totals.GrandTotal)
	require.Empty(t, totals.Lines)
}

func TestResolveWithoutCatalog(t *testing.T) {
	price := decimal.RequireFromString("2.50")
	req := pos.CartRequest{Lines: []pos.LineRequest{{ProductID: "x", Quantity: 4, UnitPrice: &price}}}
	cart, err := req.Resolve(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, cart.Lines[0].VATRatePercent.Equal(decimal.NewFromInt(21)))

	req.Lines[0].UnitPrice = nil
	_, err = req.Resolve(context.Background(), nil)
	require.True(t, common.IsAppError(err))
}

func TestScanMatch(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	rec := post(t, r, "/pos/scan", map[string]any{"code": "05410000000001", "price_tier": "wholesale"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data pos.ScanResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "p001", resp.Data.Product.ID)
	require.Equal(t, "5410000000001", resp.Data.Candidate)
	require.True(t, resp.Data.UnitPrice.Equal(decimal.RequireFromString("3.80")))

	rec = post(t, r, "/pos/scan", map[string]any{"code": "GG10WP035020", "price_tier": "loyal"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.UnitPrice.Equal(decimal.RequireFromString("4.20")))
}

func TestScanNoMatch(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	rec := post(t, r, "/pos/scan", map[string]any{"code": "0000123"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "NO_MATCH", resp.Error.Code)
	require.Equal(t, "0000123", resp.Error.Details["raw_code"])
}

func TestScanBlankCode(t *testing.T) {
	r := newRouter(t, pos.HandlerConfig{})
	rec := post(t, r, "/pos/scan", map[string]any{"code": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanRateLimitedPerTill(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Unix(1_700_000_000, 0)
	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: rdb, Prefix: "rl:", Now: func() time.Time { return now }},
		Config:  ratelimit.Config{Key: ratelimit.ByClient("scan", obs.TillHeader), Window: time.Minute, Max: 2},
	}
	r := newRouter(t, pos.HandlerConfig{ScanMiddleware: limiter.Middleware})

	for i := 0; i < 2; i++ {
		rec := post(t, r, "/pos/scan", map[string]any{"code": "GG10WP035020"}, obs.TillHeader, "T1")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := post(t, r, "/pos/scan", map[string]any{"code": "GG10WP035020"}, obs.TillHeader, "T1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = post(t, r, "/pos/scan", map[string]any{"code": "GG10WP035020"}, obs.TillHeader, "T2")
	require.Equal(t, http.StatusOK, rec.Code)
}
