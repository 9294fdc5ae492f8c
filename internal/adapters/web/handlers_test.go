package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"warehouse-ops/internal/adapters/web"
	"warehouse-ops/internal/core"
)

type stubPOStore struct {
	pos       map[string]*core.PurchaseOrder
	etaSet    map[string]*string
	deletions []string
}

func newStubPOStore() *stubPOStore {
	return &stubPOStore{pos: map[string]*core.PurchaseOrder{}, etaSet: map[string]*string{}}
}

func (s *stubPOStore) ListAll(ctx context.Context) ([]core.PurchaseOrder, error) {
	var out []core.PurchaseOrder
	for _, po := range s.pos {
		out = append(out, *po)
	}
	return out, nil
}

func (s *stubPOStore) ListOpen(ctx context.Context, f core.POFilter) ([]core.PurchaseOrder, int, error) {
	var out []core.PurchaseOrder
	for _, po := range s.pos {
		if po.Status == core.POStatusComplete {
			continue
		}
		if f.Vendor != "" && po.VendorName != f.Vendor {
			continue
		}
		out = append(out, *po)
	}
	return out, len(out), nil
}

func (s *stubPOStore) GetByNumber(ctx context.Context, n string) (*core.PurchaseOrder, error) {
	po, ok := s.pos[n]
	if !ok {
		return nil, &core.NotFoundError{Entity: "purchase order", Key: n}
	}
	copied := *po
	return &copied, nil
}

func (s *stubPOStore) Upsert(ctx context.Context, po core.PurchaseOrder) error {
	s.pos[po.PONumber] = &po
	return nil
}

func (s *stubPOStore) DeleteByNumbers(ctx context.Context, ns []string) (int, error) {
	deleted := 0
	for _, n := range ns {
		if _, ok := s.pos[n]; ok {
			delete(s.pos, n)
			s.deletions = append(s.deletions, n)
			deleted++
		}
	}
	return deleted, nil
}

func (s *stubPOStore) UpdateETA(ctx context.Context, n string, eta *string) error {
	po, ok := s.pos[n]
	if !ok {
		return &core.NotFoundError{Entity: "purchase order", Key: n}
	}
	po.ETA = eta
	s.etaSet[n] = eta
	return nil
}

func (s *stubPOStore) UpdateStatus(ctx context.Context, n string, status core.POStatus, refreshOnly bool) error {
	po, ok := s.pos[n]
	if !ok {
		return &core.NotFoundError{Entity: "purchase order", Key: n}
	}
	if !refreshOnly {
		po.Status = status
	}
	return nil
}

func (s *stubPOStore) MarkComplete(ctx context.Context, ns []string) (int, error) {
	matched := 0
	for _, n := range ns {
		if po, ok := s.pos[n]; ok {
			po.Status = core.POStatusComplete
			matched++
		}
	}
	return matched, nil
}

type stubDeliveries struct {
	setCalls     []string
	clearedCalls []string
	open         []core.Delivery
}

func (s *stubDeliveries) OnETASet(ctx context.Context, vendor, eta, poNumber string) error {
	s.setCalls = append(s.setCalls, vendor+"|"+eta+"|"+poNumber)
	return nil
}

func (s *stubDeliveries) OnETACleared(ctx context.Context, vendor, eta, poNumber string) error {
	s.clearedCalls = append(s.clearedCalls, vendor+"|"+eta+"|"+poNumber)
	return nil
}

func (s *stubDeliveries) MarkComplete(ctx context.Context, poNumbers []string) (int, error) {
	return len(poNumbers), nil
}

func (s *stubDeliveries) SetAmounts(ctx context.Context, vendor, eta, pallet, box string) error {
	return nil
}

func (s *stubDeliveries) ListOpen(ctx context.Context) ([]core.Delivery, error) {
	return s.open, nil
}

type stubReportStore struct {
	report *core.LateOrderReport
}

func (s *stubReportStore) Replace(ctx context.Context, r *core.LateOrderReport) error {
	s.report = r
	return nil
}

func (s *stubReportStore) Latest(ctx context.Context) (*core.LateOrderReport, error) {
	if s.report == nil {
		return nil, &core.NotFoundError{Entity: "late orders report", Key: "latest"}
	}
	return s.report, nil
}

func (s *stubReportStore) LatestDate(ctx context.Context) (time.Time, error) {
	if s.report == nil {
		return time.Time{}, nil
	}
	return s.report.ReportDate, nil
}

type stubOrderStore struct{ orders []core.ShippedOrder }

func (s *stubOrderStore) UpsertAll(ctx context.Context, orders []core.ShippedOrder) (int, error) {
	s.orders = append(s.orders, orders...)
	return len(orders), nil
}

func (s *stubOrderStore) List(ctx context.Context, f core.OrderFilter) ([]core.ShippedOrder, int, error) {
	return s.orders, len(s.orders), nil
}

type stubSnapshot struct{}

func (stubSnapshot) Replace(ctx context.Context, rows []core.InventoryRow) error { return nil }

func (stubSnapshot) ByItemNumbers(ctx context.Context, ns []string) (map[string]core.InventoryRow, error) {
	return map[string]core.InventoryRow{}, nil
}

type stubOrderFetcher struct{ orders []core.SalesOrder }

func (s *stubOrderFetcher) FetchOpenOrders(ctx context.Context) ([]core.SalesOrder, error) {
	return s.orders, nil
}

type stubGoflowPOs struct{ pos []core.PurchaseOrder }

func (s *stubGoflowPOs) FetchOpenPurchaseOrders(ctx context.Context) ([]core.PurchaseOrder, error) {
	return s.pos, nil
}

type stubMagentoPOs struct{}

func (stubMagentoPOs) FetchPurchaseOrders(ctx context.Context) ([]core.PurchaseOrder, map[string]bool, error) {
	return nil, nil, nil
}

type testEnv struct {
	handler    http.Handler
	pos        *stubPOStore
	deliveries *stubDeliveries
	reports    *stubReportStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	pos := newStubPOStore()
	deliveries := &stubDeliveries{}
	reports := &stubReportStore{}
	runner := core.NewJobRunner(
		&stubGoflowPOs{pos: []core.PurchaseOrder{{PONumber: "PO-1", Status: core.POStatusOpen}}},
		stubMagentoPOs{},
		core.NewMergeService(pos, log),
		nil, reports, nil,
		core.JobRunnerConfig{POSyncCooldown: 2 * time.Minute, ReportCooldown: time.Hour},
		log)

	h := web.NewHandler(web.Deps{
		POs:          pos,
		Deliveries:   deliveries,
		Reports:      reports,
		Orders:       &stubOrderStore{},
		Snapshot:     stubSnapshot{},
		OrderFetcher: &stubOrderFetcher{},
		Runner:       runner,
		Timezone:     time.UTC,
		Log:          log,
	})
	return &testEnv{handler: h, pos: pos, deliveries: deliveries, reports: reports}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRefreshPurchaseOrders_CooldownMapsTo409(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/refresh-purchase-orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first refresh status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodPost, "/api/refresh-purchase-orders", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second refresh status = %d, want 409", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header on cooldown rejection")
	}
}

func TestSetETA_DrivesDeliveryGrouping(t *testing.T) {
	env := newTestEnv(t)
	_ = env.pos.Upsert(context.Background(), core.PurchaseOrder{
		PONumber: "PO-7", VendorName: "Acme", Status: core.POStatusOpen,
	})

	rec := env.do(t, http.MethodPost, "/api/purchase-orders/PO-7/eta", `{"eta": "08-20-2026"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(env.deliveries.setCalls) != 1 || env.deliveries.setCalls[0] != "Acme|08-20-2026|PO-7" {
		t.Errorf("delivery set calls = %v", env.deliveries.setCalls)
	}

	// Moving the ETA clears the old grouping before joining the new one.
	rec = env.do(t, http.MethodPost, "/api/purchase-orders/PO-7/eta", `{"eta": "08-22-2026"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d", rec.Code)
	}
	if len(env.deliveries.clearedCalls) != 1 || env.deliveries.clearedCalls[0] != "Acme|08-20-2026|PO-7" {
		t.Errorf("delivery cleared calls = %v", env.deliveries.clearedCalls)
	}

	rec = env.do(t, http.MethodDelete, "/api/purchase-orders/PO-7/eta", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if len(env.deliveries.clearedCalls) != 2 {
		t.Errorf("cleared calls after delete = %v", env.deliveries.clearedCalls)
	}
}

func TestSetETA_UnknownPO(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/purchase-orders/NOPE/eta", `{"eta": "08-20-2026"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSetStatus_RejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	_ = env.pos.Upsert(context.Background(), core.PurchaseOrder{
		PONumber: "PO-7", Status: core.POStatusOpen,
	})
	rec := env.do(t, http.MethodPost, "/api/purchase-orders/PO-7/status", `{"status": "bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetLateOrdersReport_NoneStored(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/late-orders-report", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLateOrdersReportStatus(t *testing.T) {
	env := newTestEnv(t)
	env.reports.report = &core.LateOrderReport{
		ReportDate: time.Date(2026, 8, 14, 12, 0, 0, 0, time.UTC),
	}
	rec := env.do(t, http.MethodGet, "/api/late-orders-report/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Running        bool   `json:"running"`
		LastReportDate string `json:"last_report_date"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Running {
		t.Error("running = true, want false")
	}
	if body.LastReportDate != "2026-08-14T12:00:00Z" {
		t.Errorf("last_report_date = %q", body.LastReportDate)
	}
}

func TestListPurchaseOrders(t *testing.T) {
	env := newTestEnv(t)
	_ = env.pos.Upsert(context.Background(), core.PurchaseOrder{
		PONumber: "PO-1", VendorName: "Acme", Status: core.POStatusOpen,
	})
	_ = env.pos.Upsert(context.Background(), core.PurchaseOrder{
		PONumber: "PO-2", VendorName: "Other", Status: core.POStatusComplete,
	})

	rec := env.do(t, http.MethodGet, "/api/purchase-orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		PurchaseOrders []core.PurchaseOrder `json:"purchase_orders"`
		Total          int                  `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || len(body.PurchaseOrders) != 1 {
		t.Errorf("got %d/%d, want only the open PO", len(body.PurchaseOrders), body.Total)
	}
}

func TestCompleteDeliveries_RequiresPONumbers(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/deliveries/complete", `{"po_numbers": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
