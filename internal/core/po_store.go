package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// POFilter narrows ListOpen results. Zero values mean "no constraint".
type POFilter struct {
	Status       POStatus
	Vendor       string
	Page         int // 1-based; ignored when All
	Limit        int
	All          bool
	IncludeLines bool
}

// POStore is the single owner of purchase order records.
type POStore interface {
	// ListAll returns every stored PO with its lines, in insertion order.
	ListAll(ctx context.Context) ([]PurchaseOrder, error)
	// ListOpen returns POs whose status is not complete, newest first,
	// with the total matching count for pagination.
	ListOpen(ctx context.Context, f POFilter) ([]PurchaseOrder, int, error)
	// GetByNumber returns one PO with its lines, or NotFoundError.
	GetByNumber(ctx context.Context, poNumber string) (*PurchaseOrder, error)
	// Upsert inserts or fully replaces a PO by its number, lines included.
	// Every column is written; callers must have copied forward any
	// locally-owned fields they intend to keep.
	Upsert(ctx context.Context, po PurchaseOrder) error
	// DeleteByNumbers removes the named POs, returning how many existed.
	DeleteByNumbers(ctx context.Context, poNumbers []string) (int, error)
	// UpdateETA sets (or clears, with nil) the operator expected-arrival date.
	UpdateETA(ctx context.Context, poNumber string, eta *string) error
	// UpdateStatus sets the folded status; refreshOnly touches only the
	// status_last_updated timestamp.
	UpdateStatus(ctx context.Context, poNumber string, status POStatus, refreshOnly bool) error
	// MarkComplete bulk-sets the named POs to complete.
	MarkComplete(ctx context.Context, poNumbers []string) (int, error)
}

type poStore struct {
	pool *pgxpool.Pool
}

// NewPOStore constructs a POStore backed by PostgreSQL.
func NewPOStore(pool *pgxpool.Pool) POStore {
	return &poStore{pool: pool}
}

const poColumns = `id, po_number, status, vendor_name, po_date, eta,
       delivery_method, supplier_po_number, source, status_last_updated,
       created_at, updated_at`

func scanPO(row pgx.Row) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := row.Scan(
		&po.ID, &po.PONumber, &po.Status, &po.VendorName, &po.PODate, &po.ETA,
		&po.DeliveryMethod, &po.SupplierPONumber, &po.Source, &po.StatusLastUpdated,
		&po.CreatedAt, &po.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return po, nil
}

func (s *poStore) ListAll(ctx context.Context) ([]PurchaseOrder, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+poColumns+" FROM purchase_orders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, *po)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *poStore) ListOpen(ctx context.Context, f POFilter) ([]PurchaseOrder, int, error) {
	where := "WHERE status <> 'complete'"
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = fmt.Sprintf("WHERE status = $%d", len(args))
	}
	if f.Vendor != "" {
		args = append(args, f.Vendor)
		where += fmt.Sprintf(" AND vendor_name = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM purchase_orders "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count purchase orders: %w", err)
	}

	query := "SELECT " + poColumns + " FROM purchase_orders " + where +
		" ORDER BY po_date DESC, id DESC"
	if !f.All {
		page := f.Page
		if page < 1 {
			page = 1
		}
		limit := f.Limit
		if limit < 1 {
			limit = 50
		}
		if limit > 200 {
			limit = 200
		}
		args = append(args, limit, (page-1)*limit)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list open purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, *po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list open purchase orders: %w", err)
	}
	if f.IncludeLines {
		if err := s.attachLines(ctx, orders); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (s *poStore) GetByNumber(ctx context.Context, poNumber string) (*PurchaseOrder, error) {
	po, err := scanPO(s.pool.QueryRow(ctx,
		"SELECT "+poColumns+" FROM purchase_orders WHERE po_number = $1", poNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "purchase order", Key: poNumber}
		}
		return nil, fmt.Errorf("get purchase order %s: %w", poNumber, err)
	}
	lines, err := s.fetchLines(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return po, nil
}

func (s *poStore) Upsert(ctx context.Context, po PurchaseOrder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	var poID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders
		            (po_number, status, vendor_name, po_date, eta,
		             delivery_method, supplier_po_number, source, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (po_number) DO UPDATE SET
			status             = EXCLUDED.status,
			vendor_name        = EXCLUDED.vendor_name,
			po_date            = EXCLUDED.po_date,
			eta                = EXCLUDED.eta,
			delivery_method    = EXCLUDED.delivery_method,
			supplier_po_number = EXCLUDED.supplier_po_number,
			source             = EXCLUDED.source,
			updated_at         = NOW()
		RETURNING id`,
		po.PONumber, po.Status, po.VendorName, po.PODate, po.ETA,
		po.DeliveryMethod, po.SupplierPONumber, po.Source,
	).Scan(&poID); err != nil {
		return fmt.Errorf("upsert purchase order %s: %w", po.PONumber, err)
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM purchase_order_lines WHERE po_id = $1", poID); err != nil {
		return fmt.Errorf("clear lines for PO %s: %w", po.PONumber, err)
	}
	for i, l := range po.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_order_lines
			            (po_id, position, line_id, sku, item_number, product_name, upc,
			             ordered, received, goflow_ordered, goflow_delivered,
			             fba_ordered, fba_delivered)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			poID, i+1, l.LineID, l.SKU, l.ItemNumber, l.ProductName, l.UPC,
			l.Ordered, l.Received, l.GoflowOrdered, l.GoflowDelivered,
			l.FBAOrdered, l.FBADelivered,
		); err != nil {
			return fmt.Errorf("insert line %d for PO %s: %w", i+1, po.PONumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert for PO %s: %w", po.PONumber, err)
	}
	return nil
}

func (s *poStore) DeleteByNumbers(ctx context.Context, poNumbers []string) (int, error) {
	if len(poNumbers) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM purchase_orders WHERE po_number = ANY($1)", poNumbers)
	if err != nil {
		return 0, fmt.Errorf("delete purchase orders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *poStore) UpdateETA(ctx context.Context, poNumber string, eta *string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE purchase_orders SET eta = $1, updated_at = NOW() WHERE po_number = $2",
		eta, poNumber)
	if err != nil {
		return fmt.Errorf("update ETA for PO %s: %w", poNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "purchase order", Key: poNumber}
	}
	return nil
}

func (s *poStore) UpdateStatus(ctx context.Context, poNumber string, status POStatus, refreshOnly bool) error {
	var tag pgconn.CommandTag
	var err error
	if refreshOnly {
		tag, err = s.pool.Exec(ctx,
			"UPDATE purchase_orders SET status_last_updated = NOW() WHERE po_number = $1",
			poNumber)
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE purchase_orders
			SET status = $1, status_last_updated = NOW(), updated_at = NOW()
			WHERE po_number = $2`,
			status, poNumber)
	}
	if err != nil {
		return fmt.Errorf("update status for PO %s: %w", poNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "purchase order", Key: poNumber}
	}
	return nil
}

func (s *poStore) MarkComplete(ctx context.Context, poNumbers []string) (int, error) {
	if len(poNumbers) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE purchase_orders
		SET status = $1, status_last_updated = NOW(), updated_at = NOW()
		WHERE po_number = ANY($2)`,
		POStatusComplete, poNumbers)
	if err != nil {
		return 0, fmt.Errorf("mark purchase orders complete: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// attachLines loads lines for every PO in one query and distributes them.
func (s *poStore) attachLines(ctx context.Context, orders []PurchaseOrder) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int, len(orders))
	byID := make(map[int]*PurchaseOrder, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	rows, err := s.pool.Query(ctx, `
		SELECT po_id, id, position, line_id, sku, item_number, product_name, upc,
		       ordered, received, goflow_ordered, goflow_delivered,
		       fba_ordered, fba_delivered
		FROM purchase_order_lines
		WHERE po_id = ANY($1)
		ORDER BY po_id, position`, ids)
	if err != nil {
		return fmt.Errorf("fetch purchase order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var poID int
		var l POLine
		if err := rows.Scan(
			&poID, &l.ID, &l.Position, &l.LineID, &l.SKU, &l.ItemNumber,
			&l.ProductName, &l.UPC, &l.Ordered, &l.Received,
			&l.GoflowOrdered, &l.GoflowDelivered, &l.FBAOrdered, &l.FBADelivered,
		); err != nil {
			return fmt.Errorf("scan purchase order line: %w", err)
		}
		if po, ok := byID[poID]; ok {
			po.Lines = append(po.Lines, l)
		}
	}
	return rows.Err()
}

func (s *poStore) fetchLines(ctx context.Context, poID int) ([]POLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, position, line_id, sku, item_number, product_name, upc,
		       ordered, received, goflow_ordered, goflow_delivered,
		       fba_ordered, fba_delivered
		FROM purchase_order_lines
		WHERE po_id = $1
		ORDER BY position`, poID)
	if err != nil {
		return nil, fmt.Errorf("fetch lines for PO %d: %w", poID, err)
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		var l POLine
		if err := rows.Scan(
			&l.ID, &l.Position, &l.LineID, &l.SKU, &l.ItemNumber,
			&l.ProductName, &l.UPC, &l.Ordered, &l.Received,
			&l.GoflowOrdered, &l.GoflowDelivered, &l.FBAOrdered, &l.FBADelivered,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
