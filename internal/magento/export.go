// Package magento downloads and parses the back-office bulk purchase order
// export, a CSV with one row per purchase order line.
package magento

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"warehouse-ops/internal/core"
)

const (
	statusWaiting  = "waiting_for_supplier"
	statusComplete = "complete"
)

// Client fetches the bulk export. Safe for concurrent use.
type Client struct {
	exportURL string
	apiKey    string
	http      *http.Client
	log       *logrus.Logger
}

// New builds a Client for the given export endpoint.
func New(exportURL, apiKey string, log *logrus.Logger) *Client {
	return &Client{
		exportURL: exportURL,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 60 * time.Second},
		log:       log,
	}
}

// FetchPurchaseOrders downloads the export and folds its rows into purchase
// orders. It returns the orders still waiting on their supplier plus the set
// of PO numbers the export marks complete. Rows with any other status, and
// rows with no PO number, are ignored.
func (c *Client) FetchPurchaseOrders(ctx context.Context) ([]core.PurchaseOrder, map[string]bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.exportURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &core.UpstreamError{System: "magento", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, nil, &core.UpstreamError{
			System: "magento", Status: resp.StatusCode,
			Err: fmt.Errorf("%s", body),
		}
	}

	pos, complete, err := parseExport(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	c.log.WithFields(logrus.Fields{
		"awaiting": len(pos),
		"complete": len(complete),
	}).Info("magento export parsed")
	return pos, complete, nil
}

// parseExport folds the line-per-row CSV into purchase orders. The first row
// seen for a PO supplies the header fields; every waiting row appends a line.
func parseExport(r io.Reader) ([]core.PurchaseOrder, map[string]bool, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, &core.ParseError{Source: "magento", Err: fmt.Errorf("read header: %w", err)}
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	field := func(record []string, names ...string) string {
		for _, n := range names {
			if i, ok := col[n]; ok && i < len(record) && record[i] != "" {
				return record[i]
			}
		}
		return ""
	}

	byNumber := map[string]*core.PurchaseOrder{}
	var order []string
	complete := map[string]bool{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, &core.ParseError{Source: "magento", Err: err}
		}

		poNum := field(record, "purchase_order_number")
		if poNum == "" {
			continue
		}
		switch field(record, "purchase_order_status") {
		case statusComplete:
			complete[poNum] = true
		case statusWaiting:
			po, ok := byNumber[poNum]
			if !ok {
				po = &core.PurchaseOrder{
					PONumber:   poNum,
					Status:     core.POStatusAwaitingSupplier,
					VendorName: field(record, "supplier_name"),
					PODate:     normalizeDate(field(record, "purchase_order_date")),
					Source:     core.SourceMagento,
				}
				byNumber[poNum] = po
				order = append(order, poNum)
			}
			po.Lines = append(po.Lines, core.POLine{
				SKU:             field(record, "product_sku", "purchase_order_product_sku"),
				ProductName:     field(record, "product_name"),
				UPC:             field(record, "upc", "product_upc"),
				GoflowOrdered:   parseQty(field(record, "purchase_order_product_goflow_qty")),
				GoflowDelivered: parseQty(field(record, "purchase_order_product_delivered_goflow_qty")),
				FBAOrdered:      parseQty(field(record, "purchase_order_product_fba_qty")),
				FBADelivered:    parseQty(field(record, "purchase_order_product_delivered_fba_qty")),
			})
		}
	}

	out := make([]core.PurchaseOrder, 0, len(order))
	for _, n := range order {
		out = append(out, *byNumber[n])
	}
	return out, complete, nil
}

// parseQty reads an export quantity cell. Cells arrive in the export's
// decimal notation ("12.0000"); anything unparseable counts as zero.
func parseQty(s string) int64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.IntPart()
}

// normalizeDate renders an export date as MM-DD-YYYY. Unparseable input
// passes through untouched.
func normalizeDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("01-02-2006")
		}
	}
	return s
}
