package customer

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/common"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler exposes the customer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the customer endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/customers", h.List)
	r.Get("/customers/{id}", h.Get)
}

// List handles GET /api/v1/customers?search=&limit=&offset=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := common.ParseLimitOffset(r, defaultLimit, maxLimit)
	query := r.URL.Query().Get("search")
	if query == "" {
		query = r.URL.Query().Get("q")
	}
	result, err := h.service.List(r.Context(), ListParams{Query: query, Limit: limit, Offset: offset})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if result.Items == nil {
		result.Items = []Customer{}
	}
	common.Page(w, result.Items, common.Pagination{Limit: limit, Offset: offset, TotalItems: int(result.Total)})
}

// Get handles GET /api/v1/customers/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, c)
}
