package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/noah-isme/backend-pos/internal/barcode"
)

// MemoryStore is an in-process Store over a fixed product list. It backs the
// scan replay tool and tests.
type MemoryStore struct {
	categories []Category
	products   []Product
}

// NewMemoryStore copies categories and products into a new store. Products
// keep their given order, which is also the index order.
func NewMemoryStore(categories []Category, products []Product) *MemoryStore {
	return &MemoryStore{
		categories: append([]Category(nil), categories...),
		products:   append([]Product(nil), products...),
	}
}

func (m *MemoryStore) ListCategories(context.Context) ([]Category, error) {
	out := append([]Category(nil), m.categories...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].NameFR < out[j].NameFR })
	return out, nil
}

func (m *MemoryStore) ListProducts(_ context.Context, params ListParams) (ListResult, error) {
	q := strings.ToLower(strings.TrimSpace(params.Query))
	var matched []Product
	for _, p := range m.products {
		if params.CategoryID != "" && p.CategoryID != params.CategoryID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.SKU), q) &&
			!strings.Contains(strings.ToLower(p.NameFR), q) &&
			!strings.Contains(strings.ToLower(p.NameNL), q) {
			continue
		}
		matched = append(matched, p)
	}
	total := int64(len(matched))
	start := min(params.Offset, len(matched))
	end := len(matched)
	if params.Limit > 0 {
		end = min(start+params.Limit, len(matched))
	}
	return ListResult{Items: matched[start:end], Total: total}, nil
}

func (m *MemoryStore) GetProduct(_ context.Context, id string) (Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (m *MemoryStore) ListIndexEntries(context.Context) ([]barcode.Entry, error) {
	out := make([]barcode.Entry, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p.IndexEntry())
	}
	return out, nil
}

func (m *MemoryStore) ListLowStock(_ context.Context, threshold int) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if p.StockQty <= threshold {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StockQty != out[j].StockQty {
			return out[i].StockQty < out[j].StockQty
		}
		return out[i].SKU < out[j].SKU
	})
	return out, nil
}
