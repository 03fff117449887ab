package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists documents together with their items, payments and stock effects.
type Store interface {
	Create(ctx context.Context, doc Document, moves []StockMove, opts CreateOptions) error
	Get(ctx context.Context, id string) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
	// Update loads id under a row lock, applies fn and persists the header,
	// any payments fn appended and the stock moves fn returned.
	Update(ctx context.Context, id string, fn UpdateFunc) (Document, error)
}

// UpdateFunc mutates a locked document and returns the stock moves the
// change causes, if any.
type UpdateFunc func(*Document) ([]StockMove, error)

// PGStore is the Postgres Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const headerColumns = `id, number, type, status, coalesce(customer_id, ''), coalesce(customer_name, ''),
	coalesce(source_id, ''), subtotal, vat_total, total, paid_total,
	coalesce(global_discount_type, ''), global_discount_value, created_at`

func scanHeader(row pgx.Row) (Document, error) {
	var d Document
	var typ, status string
	err := row.Scan(&d.ID, &d.Number, &typ, &status, &d.CustomerID, &d.CustomerName,
		&d.SourceID, &d.Subtotal, &d.VATTotal, &d.Total, &d.PaidTotal,
		&d.GlobalDiscountType, &d.GlobalDiscountValue, &d.CreatedAt)
	d.Type = Type(typ)
	d.Status = Status(status)
	return d, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts doc, applies moves to product stock and accepts the source
// document in one transaction.
func (s *PGStore) Create(ctx context.Context, doc Document, moves []StockMove, opts CreateOptions) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if opts.AcceptSourceID != "" {
			tag, err := tx.Exec(ctx, `UPDATE documents SET status = 'accepted'
				WHERE id = $1 AND status IN ('draft', 'sent')`, opts.AcceptSourceID)
			if err != nil {
				return fmt.Errorf("accept source: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrSourceNotConvertible
			}
		}

		_, err := tx.Exec(ctx, `INSERT INTO documents (id, number, type, status, customer_id, customer_name,
				source_id, subtotal, vat_total, total, paid_total, global_discount_type, global_discount_value, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			doc.ID, doc.Number, string(doc.Type), string(doc.Status), nullable(doc.CustomerID), nullable(doc.CustomerName),
			nullable(doc.SourceID), doc.Subtotal, doc.VATTotal, doc.Total, doc.PaidTotal,
			nullable(doc.GlobalDiscountType), doc.GlobalDiscountValue, doc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range doc.Items {
			batch.Queue(`INSERT INTO document_items (id, document_id, position, product_id, sku, name, quantity,
					unit_price, vat_rate, discount_type, discount_value, line_total)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				it.ID, doc.ID, i, it.ProductID, it.SKU, it.Name, it.Quantity,
				it.UnitPrice, it.VATRate, nullable(it.DiscountType), it.DiscountValue, it.LineTotal)
		}
		queuePayments(batch, doc.ID, doc.Payments)
		queueMoves(batch, moves)
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert document rows: %w", err)
		}
		return nil
	})
}

func queuePayments(batch *pgx.Batch, docID string, payments []Payment) {
	for _, p := range payments {
		batch.Queue(`INSERT INTO document_payments (id, document_id, method, amount, reference, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, docID, string(p.Method), p.Amount, nullable(p.Reference), p.CreatedAt)
	}
}

func queueMoves(batch *pgx.Batch, moves []StockMove) {
	for _, m := range moves {
		batch.Queue(`UPDATE products SET stock_qty = stock_qty + $2 WHERE id = $1`, m.ProductID, m.Delta)
	}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Get loads a document with its items and payments.
func (s *PGStore) Get(ctx context.Context, id string) (Document, error) {
	return load(ctx, s.pool, id, "")
}

func load(ctx context.Context, q querier, id, lock string) (Document, error) {
	doc, err := scanHeader(q.QueryRow(ctx, `SELECT `+headerColumns+` FROM documents WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("load document: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT id, product_id, sku, name, quantity, unit_price, vat_rate,
			coalesce(discount_type, ''), discount_value, line_total
		FROM document_items WHERE document_id = $1 ORDER BY position`, id)
	if err != nil {
		return Document{}, fmt.Errorf("load items: %w", err)
	}
	doc.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.ProductID, &it.SKU, &it.Name, &it.Quantity, &it.UnitPrice, &it.VATRate,
			&it.DiscountType, &it.DiscountValue, &it.LineTotal)
		return it, err
	})
	if err != nil {
		return Document{}, fmt.Errorf("scan items: %w", err)
	}

	rows, err = q.Query(ctx, `SELECT id, method, amount, coalesce(reference, ''), created_at
		FROM document_payments WHERE document_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return Document{}, fmt.Errorf("load payments: %w", err)
	}
	doc.Payments, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Payment, error) {
		var p Payment
		var method string
		err := row.Scan(&p.ID, &method, &p.Amount, &p.Reference, &p.CreatedAt)
		p.Method = PaymentMethod(method)
		return p, err
	})
	if err != nil {
		return Document{}, fmt.Errorf("scan payments: %w", err)
	}
	return doc, nil
}

// List returns headers only, newest first.
func (s *PGStore) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	var clauses []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("status", string(filter.Status))
	add("type", string(filter.Type))
	add("customer_id", filter.CustomerID)

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY created_at DESC, number DESC LIMIT $%d`,
		headerColumns, where, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Document, error) {
		return scanHeader(row)
	})
}

// Update applies fn to the locked document.
func (s *PGStore) Update(ctx context.Context, id string, fn UpdateFunc) (Document, error) {
	var out Document
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		doc, err := load(ctx, tx, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		known := len(doc.Payments)
		moves, err := fn(&doc)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE documents SET status = $2, paid_total = $3 WHERE id = $1`,
			doc.ID, string(doc.Status), doc.PaidTotal); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		batch := &pgx.Batch{}
		queuePayments(batch, doc.ID, doc.Payments[known:])
		queueMoves(batch, moves)
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("update document rows: %w", err)
			}
		}
		out = doc
		return nil
	})
	return out, err
}
