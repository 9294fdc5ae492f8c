package core_test

import (
	"context"
	"testing"
	"time"

	"warehouse-ops/internal/core"
)

type fakeSnapshotStore struct {
	rows map[string]core.InventoryRow
}

func (f *fakeSnapshotStore) Replace(ctx context.Context, rows []core.InventoryRow) error {
	f.rows = map[string]core.InventoryRow{}
	for _, r := range rows {
		f.rows[r.ProductItemNumber] = r
	}
	return nil
}

func (f *fakeSnapshotStore) ByItemNumbers(ctx context.Context, itemNumbers []string) (map[string]core.InventoryRow, error) {
	out := map[string]core.InventoryRow{}
	for _, n := range itemNumbers {
		if r, ok := f.rows[n]; ok {
			out[n] = r
		}
	}
	return out, nil
}

func TestDueByItemTotals(t *testing.T) {
	now := time.Date(2026, 8, 14, 12, 0, 0, 0, time.UTC)
	cutoff := core.BusinessDayCutoff(now, time.UTC)
	past := timePtr(now.Add(-time.Hour))
	future := timePtr(cutoff.Add(time.Hour))

	orders := []core.SalesOrder{
		{OrderNumber: "o1", LatestShip: past, Lines: []core.SalesOrderLine{
			{ItemNumber: "W-100", Quantity: 4},
			{ItemNumber: "W-200", Quantity: 1},
		}},
		{OrderNumber: "o2", LatestShip: past, Lines: []core.SalesOrderLine{
			{ItemNumber: "W-100", Quantity: 3},
		}},
		{OrderNumber: "o3", LatestShip: future, Lines: []core.SalesOrderLine{
			{ItemNumber: "W-300", Quantity: 99},
		}},
	}
	snapshot := &fakeSnapshotStore{rows: map[string]core.InventoryRow{
		"W-100": {ProductItemNumber: "W-100", OnHand: 12, OnPurchaseOrder: 6},
	}}

	totals, err := core.DueByItemTotals(context.Background(), orders, cutoff, snapshot)
	if err != nil {
		t.Fatalf("DueByItemTotals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("totals = %d rows, want 2 (future order excluded)", len(totals))
	}

	// Sorted largest demand first.
	if totals[0].ItemNumber != "W-100" {
		t.Fatalf("first row = %s, want W-100", totals[0].ItemNumber)
	}
	w100 := totals[0]
	if w100.UnitsDue != 7 || w100.OrderCount != 2 {
		t.Errorf("W-100 = %d units / %d orders, want 7/2", w100.UnitsDue, w100.OrderCount)
	}
	if w100.OnHand != 12 || w100.OnPurchaseOrder != 6 {
		t.Errorf("W-100 enrichment = %d/%d, want 12/6", w100.OnHand, w100.OnPurchaseOrder)
	}

	w200 := totals[1]
	if w200.UnitsDue != 1 || w200.OnHand != 0 {
		t.Errorf("W-200 = %d units / %d on hand, want 1/0 (no snapshot row)", w200.UnitsDue, w200.OnHand)
	}
}
