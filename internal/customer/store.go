package customer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence contract of the customer service.
type Store interface {
	List(ctx context.Context, params ListParams) (ListResult, error)
	Get(ctx context.Context, id string) (Customer, error)
}

// PGStore reads customers from Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const columns = `id, type, name, coalesce(vat_number, ''), coalesce(phone, ''), coalesce(email, ''), credit_limit, created_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	var typ string
	err := row.Scan(&c.ID, &typ, &c.Name, &c.VATNumber, &c.Phone, &c.Email, &c.CreditLimit, &c.CreatedAt)
	c.Type = Type(typ)
	return c, err
}

// List searches name, phone and VAT number case-insensitively.
func (s *PGStore) List(ctx context.Context, params ListParams) (ListResult, error) {
	where := ""
	var args []any
	if q := strings.TrimSpace(params.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = " WHERE name ILIKE $1 OR phone ILIKE $1 OR vat_number ILIKE $1"
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count customers: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM customers%s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		columns, where, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list customers: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Customer, error) {
		return scanCustomer(row)
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("scan customers: %w", err)
	}
	return ListResult{Items: items, Total: total}, nil
}

// Get loads one customer by id.
func (s *PGStore) Get(ctx context.Context, id string) (Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// MemoryStore serves a fixed customer list.
type MemoryStore struct {
	customers []Customer
}

// NewMemoryStore copies customers into a new store.
func NewMemoryStore(customers []Customer) *MemoryStore {
	return &MemoryStore{customers: append([]Customer(nil), customers...)}
}

func (m *MemoryStore) List(_ context.Context, params ListParams) (ListResult, error) {
	q := strings.ToLower(strings.TrimSpace(params.Query))
	var matched []Customer
	for _, c := range m.customers {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Phone), q) ||
			strings.Contains(strings.ToLower(c.VATNumber), q) {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	start := min(params.Offset, len(matched))
	end := len(matched)
	if params.Limit > 0 {
		end = min(start+params.Limit, len(matched))
	}
	return ListResult{Items: matched[start:end], Total: int64(len(matched))}, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}
