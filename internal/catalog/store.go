package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/barcode"
)

// Store is the persistence contract the catalog service depends on.
type Store interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, params ListParams) (ListResult, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	ListIndexEntries(ctx context.Context) ([]barcode.Entry, error)
	ListLowStock(ctx context.Context, threshold int) ([]Product, error)
}

// PGStore reads the catalog from Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const productColumns = `id, sku, name_fr, name_nl, coalesce(category_id, ''), unit,
	price_retail, price_wholesale, price_loyal, vat_rate, stock_qty,
	coalesce(barcode, ''), coalesce(gtin, ''), coalesce(image_url, '')`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var unit string
	err := row.Scan(&p.ID, &p.SKU, &p.NameFR, &p.NameNL, &p.CategoryID, &unit,
		&p.PriceRetail, &p.PriceWholesale, &p.PriceLoyal, &p.VATRate, &p.StockQty,
		&p.Barcode, &p.GTIN, &p.ImageURL)
	p.Unit = Unit(unit)
	return p, err
}

// ListCategories returns every category ordered by French name.
func (s *PGStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name_fr, name_nl FROM categories ORDER BY name_fr`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.ID, &c.NameFR, &c.NameNL)
		return c, err
	})
}

// ListProducts filters on category and a case-insensitive search over sku and both names.
func (s *PGStore) ListProducts(ctx context.Context, params ListParams) (ListResult, error) {
	where, args := productFilter(params)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count products: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY sku LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list products: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("scan products: %w", err)
	}
	return ListResult{Items: items, Total: total}, nil
}

func productFilter(params ListParams) (string, []any) {
	var clauses []string
	var args []any
	if params.CategoryID != "" {
		args = append(args, params.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if q := strings.TrimSpace(params.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(sku ILIKE $%d OR name_fr ILIKE $%d OR name_nl ILIKE $%d)", n, n, n))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetProduct loads one product by id.
func (s *PGStore) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// ListIndexEntries returns the match targets of every product in a stable order.
func (s *PGStore) ListIndexEntries(ctx context.Context) ([]barcode.Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, sku, coalesce(barcode, ''), coalesce(gtin, '') FROM products ORDER BY sku, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (barcode.Entry, error) {
		var e barcode.Entry
		err := row.Scan(&e.ID, &e.SKU, &e.Barcode, &e.GTIN)
		return e, err
	})
}

// ListLowStock returns products whose stock is at or below threshold.
func (s *PGStore) ListLowStock(ctx context.Context, threshold int) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE stock_qty <= $1 ORDER BY stock_qty, sku`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
}
