package core_test

import (
	"context"
	"testing"
	"time"

	"warehouse-ops/internal/core"
)

func TestReportStore_ReplaceKeepsOnlyNewest(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	store := core.NewReportStore(pool)
	ctx := context.Background()

	first := &core.LateOrderReport{
		ReportDate: time.Date(2026, 8, 13, 12, 0, 0, 0, time.UTC),
		CutoffDate: time.Date(2026, 8, 13, 23, 59, 59, 999_000_000, time.UTC),
		Items: []core.ItemAvailability{
			{ItemNumber: "W-100", ProductID: "p1", UnitsDue: 10, OnHand: 3,
				AwaitingGoflow: 4, AwaitingGoflowByPO: map[string]int64{"PO-1": 4}},
		},
		Summary: core.ReportSummary{TotalDueOrders: 1, TotalItemsDue: 1, TotalUnitsDue: 10,
			TotalAwaiting: 4, ItemsShort: 1, ItemsWithStock: 1},
	}
	if err := store.Replace(ctx, first); err != nil {
		t.Fatalf("first Replace: %v", err)
	}

	second := &core.LateOrderReport{
		ReportDate: time.Date(2026, 8, 14, 12, 0, 0, 0, time.UTC),
		CutoffDate: time.Date(2026, 8, 14, 23, 59, 59, 999_000_000, time.UTC),
		Items: []core.ItemAvailability{
			{ItemNumber: "W-200", ProductID: "p2", UnitsDue: 5},
		},
		Summary: core.ReportSummary{TotalDueOrders: 1, TotalItemsDue: 1, TotalUnitsDue: 5},
	}
	if err := store.Replace(ctx, second); err != nil {
		t.Fatalf("second Replace: %v", err)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.ReportDate.Equal(second.ReportDate) {
		t.Errorf("latest date = %v, want the second report", latest.ReportDate)
	}
	if len(latest.Items) != 1 || latest.Items[0].ItemNumber != "W-200" {
		t.Errorf("latest items = %+v, want only the second report's", latest.Items)
	}

	date, err := store.LatestDate(ctx)
	if err != nil {
		t.Fatalf("LatestDate: %v", err)
	}
	if !date.Equal(second.ReportDate) {
		t.Errorf("LatestDate = %v, want %v", date, second.ReportDate)
	}
}

func TestReportStore_ItemDetailRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	store := core.NewReportStore(pool)
	ctx := context.Background()

	report := &core.LateOrderReport{
		ReportDate: time.Now().UTC().Truncate(time.Millisecond),
		CutoffDate: time.Now().UTC().Truncate(time.Millisecond),
		Items: []core.ItemAvailability{
			{
				ItemNumber:         "W-100",
				ProductID:          "p1",
				UnitsDue:           30,
				OnHand:             2,
				AwaitingGoflow:     9,
				AwaitingFBA:        2,
				AwaitingGoflowByPO: map[string]int64{"N-1": 6, "L-2": 3},
				AwaitingFBAByPO:    map[string]int64{"L-2": 2},
			},
		},
	}
	if err := store.Replace(ctx, report); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	item := got.Items[0]
	if item.AwaitingGoflowByPO["N-1"] != 6 || item.AwaitingGoflowByPO["L-2"] != 3 {
		t.Errorf("goflow detail = %v", item.AwaitingGoflowByPO)
	}
	if item.AwaitingFBAByPO["L-2"] != 2 {
		t.Errorf("fba detail = %v", item.AwaitingFBAByPO)
	}
}

func TestOrderStore_UpsertAndList(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	store := core.NewOrderStore(pool)
	ctx := context.Background()

	orders := []core.ShippedOrder{
		{GoflowID: "101", OrderNumber: "ORD-101", Status: "shipped",
			ShippedAt: strPtr("2026-08-14 08:00:00"), TrackingNumber: strPtr("1Z111")},
		{GoflowID: "102", OrderNumber: "ORD-102", Status: "shipped",
			ShippedAt: strPtr("2026-08-14 09:00:00")},
	}
	if _, err := store.UpsertAll(ctx, orders); err != nil {
		t.Fatalf("UpsertAll: %v", err)
	}

	// Re-upserting the same id refreshes instead of duplicating.
	orders[0].TrackingNumber = strPtr("1Z222")
	if _, err := store.UpsertAll(ctx, orders[:1]); err != nil {
		t.Fatalf("second UpsertAll: %v", err)
	}

	all, total, err := store.List(ctx, core.OrderFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("total = %d/%d, want 2", total, len(all))
	}
	if all[0].GoflowID != "102" {
		t.Errorf("first listed = %s, want newest shipped first", all[0].GoflowID)
	}

	byTracking, _, err := store.List(ctx, core.OrderFilter{Search: "1z222"})
	if err != nil {
		t.Fatalf("List search: %v", err)
	}
	if len(byTracking) != 1 || byTracking[0].GoflowID != "101" {
		t.Errorf("search result = %+v, want the re-upserted order", byTracking)
	}
}

func TestSyncStateStore_RoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	store := core.NewSyncStateStore(pool)
	ctx := context.Background()

	empty, err := store.Get(ctx, "shipped_orders")
	if err != nil {
		t.Fatalf("Get empty: %v", err)
	}
	if empty.LastOrderID != "" || empty.LastOrderDate != "" {
		t.Errorf("empty watermark = %+v", empty)
	}

	mark := core.SyncWatermark{LastOrderDate: "2026-08-14 09:00:00", LastOrderID: "102"}
	if err := store.Set(ctx, "shipped_orders", mark); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mark.LastOrderID = "105"
	if err := store.Set(ctx, "shipped_orders", mark); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	got, err := store.Get(ctx, "shipped_orders")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != mark {
		t.Errorf("watermark = %+v, want %+v", got, mark)
	}
}

func TestInventorySnapshotStore_Replace(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	store := core.NewInventorySnapshotStore(pool)
	ctx := context.Background()

	if err := store.Replace(ctx, []core.InventoryRow{
		{ProductID: "p1", ProductItemNumber: "W-100", WarehouseName: "Main", OnHand: 12, OnPurchaseOrder: 6},
		{ProductID: "p2", ProductItemNumber: "W-200", WarehouseName: "Main", OnHand: 1},
	}); err != nil {
		t.Fatalf("first Replace: %v", err)
	}

	if err := store.Replace(ctx, []core.InventoryRow{
		{ProductID: "p1", ProductItemNumber: "W-100", WarehouseName: "Main", OnHand: 8, OnPurchaseOrder: 6},
	}); err != nil {
		t.Fatalf("second Replace: %v", err)
	}

	rows, err := store.ByItemNumbers(ctx, []string{"W-100", "W-200"})
	if err != nil {
		t.Fatalf("ByItemNumbers: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %v, want only the second snapshot's item", rows)
	}
	if rows["W-100"].OnHand != 8 {
		t.Errorf("W-100 on hand = %d, want the replaced value", rows["W-100"].OnHand)
	}
}

func TestRunLogStore_AppendAndRecent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	store := core.NewRunLogStore(pool)
	ctx := context.Background()

	if err := store.Append(ctx, "info", "purchase order sync completed",
		map[string]any{"upserted": 3}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, "error", "order sync failed", nil); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Message != "order sync failed" {
		t.Errorf("first entry = %q, want most recent first", entries[0].Message)
	}
	if entries[1].Meta["upserted"] != float64(3) {
		t.Errorf("meta = %v", entries[1].Meta)
	}
}
