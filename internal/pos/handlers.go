package pos

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/barcode"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Catalog is the slice of the catalog service the till endpoints need.
type Catalog interface {
	ProductSource
	Lookup(ctx context.Context, raw string) (catalog.LookupResult, error)
}

// Handler serves the till endpoints.
type Handler struct {
	catalog Catalog
	engine  pricing.Engine
	logger  zerolog.Logger
	scan    func(http.Handler) http.Handler
}

// HandlerConfig configures the Handler dependencies. ScanMiddleware wraps
// only the scan endpoint (rate limiting).
type HandlerConfig struct {
	Catalog        Catalog
	Engine         pricing.Engine
	Logger         zerolog.Logger
	ScanMiddleware func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{catalog: cfg.Catalog, engine: cfg.Engine, logger: cfg.Logger, scan: cfg.ScanMiddleware}
}

// Routes mounts the till endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/pos/totals", h.Totals)
	if h.scan != nil {
		r.With(h.scan).Post("/pos/scan", h.Scan)
	} else {
		r.Post("/pos/scan", h.Scan)
	}
}

func (h *Handler) products() ProductSource {
	if h.catalog == nil {
		return nil
	}
	return h.catalog
}

// Totals handles POST /api/v1/pos/totals.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	var req CartRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	cart, err := req.Resolve(r.Context(), h.products())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	totals, err := h.engine.ComputeTotals(cart)
	obs.ObserveTotals(string(h.engine.Mode()), err)
	if err != nil {
		common.WriteError(w, ComputeError(err))
		return
	}
	common.Data(w, http.StatusOK, totals.Display())
}

type scanRequest struct {
	Code      string `json:"code" validate:"required,max=128"`
	PriceTier string `json:"price_tier" validate:"omitempty,oneof=retail wholesale loyal"`
}

// ScanResponse is the body returned for a matched scan.
type ScanResponse struct {
	RawCode    string          `json:"raw_code"`
	Candidates []string        `json:"candidates"`
	Candidate  string          `json:"candidate"`
	Rule       barcode.Rule    `json:"rule"`
	Product    catalog.Product `json:"product"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Scan handles POST /api/v1/pos/scan. Unknown codes answer 404 NO_MATCH with
// the rejected code so the till can tell the cashier what was read.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	var req scanRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		common.WriteError(w, common.ValidationError("code is blank", nil, map[string]any{"field": "code"}))
		return
	}
	res, err := h.catalog.Lookup(r.Context(), req.Code)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if !res.Match.Matched || res.Product == nil {
		h.logger.Info().Str("raw_code", req.Code).Str("till_id", r.Header.Get(obs.TillHeader)).Msg("scan_no_match")
		common.JSONError(w, http.StatusNotFound, "NO_MATCH", "no product matches the scanned code", map[string]any{
			"raw_code":   res.RawCode,
			"candidates": res.Candidates,
		})
		return
	}
	common.Data(w, http.StatusOK, ScanResponse{
		RawCode:    res.RawCode,
		Candidates: res.Candidates,
		Candidate:  res.Match.Candidate,
		Rule:       res.Match.Rule,
		Product:    *res.Product,
		UnitPrice:  res.Product.PriceFor(catalog.ParsePriceTier(req.PriceTier)),
	})
}
