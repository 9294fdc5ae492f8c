package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventorySnapshotStore holds the wholesale-replaced mirror of warehouse
// inventory counts.
type InventorySnapshotStore interface {
	// Replace swaps the entire snapshot for rows in one transaction.
	Replace(ctx context.Context, rows []InventoryRow) error
	// ByItemNumbers returns the snapshot rows for the given item numbers,
	// keyed by item number. Items without a row are absent from the map.
	ByItemNumbers(ctx context.Context, itemNumbers []string) (map[string]InventoryRow, error)
}

type inventorySnapshotStore struct {
	pool *pgxpool.Pool
}

// NewInventorySnapshotStore constructs an InventorySnapshotStore backed by
// PostgreSQL.
func NewInventorySnapshotStore(pool *pgxpool.Pool) InventorySnapshotStore {
	return &inventorySnapshotStore{pool: pool}
}

func (s *inventorySnapshotStore) Replace(ctx context.Context, rows []InventoryRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM inventory_snapshot"); err != nil {
		return fmt.Errorf("clear inventory snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO inventory_snapshot
				(product_id, product_item_number, warehouse_name, product_name,
				 on_hand, available, on_purchase_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ProductID, r.ProductItemNumber, r.WarehouseName, r.ProductName,
			r.OnHand, r.Available, r.OnPurchaseOrder)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert snapshot rows: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *inventorySnapshotStore) ByItemNumbers(ctx context.Context, itemNumbers []string) (map[string]InventoryRow, error) {
	if len(itemNumbers) == 0 {
		return map[string]InventoryRow{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, product_item_number, warehouse_name, product_name,
		       on_hand, available, on_purchase_order
		FROM inventory_snapshot
		WHERE product_item_number = ANY($1)`, itemNumbers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]InventoryRow{}
	for rows.Next() {
		var r InventoryRow
		if err := rows.Scan(&r.ProductID, &r.ProductItemNumber, &r.WarehouseName,
			&r.ProductName, &r.OnHand, &r.Available, &r.OnPurchaseOrder); err != nil {
			return nil, err
		}
		out[r.ProductItemNumber] = r
	}
	return out, rows.Err()
}

// DueByItemTotal is one aggregated item row of the orders-due-by view.
type DueByItemTotal struct {
	ItemNumber      string `json:"item_number"`
	UnitsDue        int64  `json:"units_due"`
	OrderCount      int    `json:"order_count"`
	OnHand          int64  `json:"on_hand"`
	OnPurchaseOrder int64  `json:"on_purchase_order"`
}

// DueByItemTotals aggregates open-order demand per item, due on or before
// cutoff, and enriches each item from the inventory snapshot. Rows come back
// sorted by units due, largest first.
func DueByItemTotals(ctx context.Context, orders []SalesOrder, cutoff time.Time,
	snapshot InventorySnapshotStore) ([]DueByItemTotal, error) {
	totals := map[string]*DueByItemTotal{}
	var itemOrder []string
	for _, o := range orders {
		if o.LatestShip == nil || o.LatestShip.After(cutoff) {
			continue
		}
		seen := map[string]bool{}
		for _, line := range o.Lines {
			if line.ItemNumber == "" {
				continue
			}
			t, ok := totals[line.ItemNumber]
			if !ok {
				t = &DueByItemTotal{ItemNumber: line.ItemNumber}
				totals[line.ItemNumber] = t
				itemOrder = append(itemOrder, line.ItemNumber)
			}
			t.UnitsDue += line.Quantity
			if !seen[line.ItemNumber] {
				t.OrderCount++
				seen[line.ItemNumber] = true
			}
		}
	}

	inv, err := snapshot.ByItemNumbers(ctx, itemOrder)
	if err != nil {
		return nil, fmt.Errorf("enrich due-by totals: %w", err)
	}

	out := make([]DueByItemTotal, 0, len(itemOrder))
	for _, item := range itemOrder {
		t := *totals[item]
		if row, ok := inv[item]; ok {
			t.OnHand = row.OnHand
			t.OnPurchaseOrder = row.OnPurchaseOrder
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UnitsDue > out[j].UnitsDue })
	return out, nil
}
