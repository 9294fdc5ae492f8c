package magento

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"warehouse-ops/internal/core"
)

const sampleExport = `purchase_order_number,purchase_order_status,supplier_name,purchase_order_date,product_name,product_sku,upc,purchase_order_product_goflow_qty,purchase_order_product_delivered_goflow_qty,purchase_order_product_fba_qty,purchase_order_product_delivered_fba_qty
PO-2001,waiting_for_supplier,Acme Widgets,2026-07-15,Widget,W-100,012345,12.0000,4.0000,3.0000,0.0000
PO-2001,waiting_for_supplier,Acme Widgets,2026-07-15,Gadget,G-200,067890,5.0000,5.0000,0.0000,0.0000
PO-2002,complete,Acme Widgets,2026-07-01,Widget,W-100,012345,2.0000,2.0000,0.0000,0.0000
,waiting_for_supplier,No Number,2026-07-15,Orphan,O-1,,1.0000,0.0000,0.0000,0.0000
PO-2003,cancelled,Other Vendor,2026-07-20,Widget,W-100,012345,9.0000,0.0000,0.0000,0.0000
`

func TestParseExport(t *testing.T) {
	pos, complete, err := parseExport(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("parseExport: %v", err)
	}

	if len(pos) != 1 {
		t.Fatalf("got %d awaiting POs, want 1", len(pos))
	}
	po := pos[0]
	if po.PONumber != "PO-2001" || po.VendorName != "Acme Widgets" {
		t.Errorf("po header = %+v", po)
	}
	if po.Status != core.POStatusAwaitingSupplier || po.Source != core.SourceMagento {
		t.Errorf("status/source = %v/%v", po.Status, po.Source)
	}
	if po.PODate != "07-15-2026" {
		t.Errorf("PODate = %q, want MM-DD-YYYY", po.PODate)
	}
	if len(po.Lines) != 2 {
		t.Fatalf("got %d lines, want both waiting rows folded in", len(po.Lines))
	}
	l := po.Lines[0]
	if l.SKU != "W-100" || l.GoflowOrdered != 12 || l.GoflowDelivered != 4 || l.FBAOrdered != 3 {
		t.Errorf("line = %+v", l)
	}

	if !complete["PO-2002"] {
		t.Error("PO-2002 missing from completion set")
	}
	if len(complete) != 1 {
		t.Errorf("completion set = %v, want only PO-2002", complete)
	}
}

func TestParseExport_MalformedCSV(t *testing.T) {
	broken := "purchase_order_number,purchase_order_status\n\"PO-1,waiting_for_supplier\n"
	_, _, err := parseExport(strings.NewReader(broken))
	var pe *core.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ParseError", err)
	}
}

func TestFetchPurchaseOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "magento-key" {
			t.Errorf("X-API-KEY = %q", got)
		}
		io.WriteString(w, sampleExport)
	}))
	defer srv.Close()

	c := New(srv.URL, "magento-key", quietLogger())
	pos, complete, err := c.FetchPurchaseOrders(context.Background())
	if err != nil {
		t.Fatalf("FetchPurchaseOrders: %v", err)
	}
	if len(pos) != 1 || !complete["PO-2002"] {
		t.Errorf("pos = %d, complete = %v", len(pos), complete)
	}
}

func TestFetchPurchaseOrders_Throttled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "magento-key", quietLogger())
	_, _, err := c.FetchPurchaseOrders(context.Background())
	if !core.IsThrottled(err) {
		t.Fatalf("err = %v, want throttled upstream error", err)
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
