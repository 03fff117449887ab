package document

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes the document endpoints.
type Handler struct {
	service *Service
	write   func(http.Handler) http.Handler
}

// HandlerConfig configures the Handler. WriteMiddleware wraps every mutating
// endpoint (idempotency).
type HandlerConfig struct {
	Service         *Service
	WriteMiddleware func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, write: cfg.WriteMiddleware}
}

// Routes mounts /documents on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Group(func(r chi.Router) {
			if h.write != nil {
				r.Use(h.write)
			}
			r.Post("/", h.Create)
			r.Post("/{id}/payments", h.AddPayment)
			r.Post("/{id}/send", h.Send)
			r.Post("/{id}/issue", h.Issue)
			r.Post("/{id}/convert", h.Convert)
			r.Post("/{id}/duplicate", h.Duplicate)
		})
	})
}

// Create handles POST /api/v1/documents.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	doc, err := h.service.Create(r.Context(), req)
	respond(w, http.StatusCreated, doc, err)
}

// List handles GET /api/v1/documents?status=&type=&customer_id=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:     Status(q.Get("status")),
		Type:       Type(q.Get("type")),
		CustomerID: q.Get("customer_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			common.WriteError(w, common.ValidationError("limit must be a positive integer", err, map[string]any{"field": "limit"}))
			return
		}
		filter.Limit = limit
	}
	docs, err := h.service.List(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, docs)
}

// Get handles GET /api/v1/documents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	respond(w, http.StatusOK, doc, err)
}

// AddPayment handles POST /api/v1/documents/{id}/payments.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	doc, err := h.service.AddPayment(r.Context(), chi.URLParam(r, "id"), req)
	respond(w, http.StatusOK, doc, err)
}

// Send handles POST /api/v1/documents/{id}/send.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Send(r.Context(), chi.URLParam(r, "id"))
	respond(w, http.StatusOK, doc, err)
}

// Issue handles POST /api/v1/documents/{id}/issue.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Issue(r.Context(), chi.URLParam(r, "id"))
	respond(w, http.StatusOK, doc, err)
}

type convertRequest struct {
	Target Type `json:"target" validate:"omitempty,oneof=invoice"`
}

// Convert handles POST /api/v1/documents/{id}/convert. The body is optional.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	doc, err := h.service.Convert(r.Context(), chi.URLParam(r, "id"), req.Target)
	respond(w, http.StatusCreated, doc, err)
}

// Duplicate handles POST /api/v1/documents/{id}/duplicate.
func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Duplicate(r.Context(), chi.URLParam(r, "id"))
	respond(w, http.StatusCreated, doc, err)
}

func respond(w http.ResponseWriter, status int, doc Document, err error) {
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, status, doc)
}
