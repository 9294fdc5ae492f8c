package goflow

import (
	"context"
	"time"

	"warehouse-ops/internal/core"
)

type poPage struct {
	Data []poDTO `json:"data"`
	Next string  `json:"next"`
}

type poDTO struct {
	PurchaseOrderNumber string      `json:"purchase_order_number"`
	Status              string      `json:"status"`
	Date                string      `json:"date"`
	Vendor              *vendorDTO  `json:"vendor"`
	Lines               []poLineDTO `json:"lines"`
	Meta                *poMetaDTO  `json:"meta"`
}

type vendorDTO struct {
	Name string `json:"name"`
}

type poLineDTO struct {
	ID   string `json:"id"`
	Item struct {
		ItemNumber string `json:"item_number"`
		Name       string `json:"name"`
		UPC        string `json:"upc"`
	} `json:"item"`
	Quantity struct {
		Amount int64 `json:"amount"`
	} `json:"quantity"`
	UnitsReceived int64 `json:"units_received"`
}

type poMetaDTO struct {
	Created struct {
		By struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
		} `json:"by"`
	} `json:"created"`
}

// FetchOpenPurchaseOrders pulls every purchase order still awaiting receipt,
// following pagination until the API stops returning a next URL. Orders
// created by the admin account are operator scratch entries and are skipped.
func (c *Client) FetchOpenPurchaseOrders(ctx context.Context) ([]core.PurchaseOrder, error) {
	url := c.opts.BaseURL + "/purchasing/purchase-orders?filters[status]=awaiting_receipt"
	var out []core.PurchaseOrder
	for url != "" {
		var page poPage
		if err := c.getJSON(ctx, url, &page); err != nil {
			return nil, err
		}
		for _, dto := range page.Data {
			if dto.Meta != nil && dto.Meta.Created.By.User.Username == "admin" {
				c.log.WithField("po", dto.PurchaseOrderNumber).Debug("skipping admin-created purchase order")
				continue
			}
			out = append(out, mapPurchaseOrder(dto))
		}
		url = page.Next
	}
	return out, nil
}

func mapPurchaseOrder(dto poDTO) core.PurchaseOrder {
	po := core.PurchaseOrder{
		PONumber: dto.PurchaseOrderNumber,
		Status:   core.POStatusOpen,
		PODate:   normalizeDate(dto.Date),
		Source:   core.SourceGoflow,
	}
	if dto.Vendor != nil {
		po.VendorName = dto.Vendor.Name
	}
	for _, l := range dto.Lines {
		po.Lines = append(po.Lines, core.POLine{
			LineID:      l.ID,
			ItemNumber:  l.Item.ItemNumber,
			ProductName: l.Item.Name,
			UPC:         l.Item.UPC,
			Ordered:     l.Quantity.Amount,
			Received:    l.UnitsReceived,
		})
	}
	return po
}

// normalizeDate renders an upstream timestamp as MM-DD-YYYY, the display
// format every surface shows purchase order dates in. Unparseable input
// passes through untouched.
func normalizeDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("01-02-2006")
		}
	}
	return s
}
