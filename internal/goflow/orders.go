package goflow

import (
	"context"
	"net/url"
	"strings"
	"time"

	"warehouse-ops/internal/core"
)

type orderPage struct {
	Data []orderDTO `json:"data"`
	Next string     `json:"next"`
}

type orderDTO struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	Store       *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"store"`
	ShipDates struct {
		LatestShip string `json:"latest_ship"`
	} `json:"ship_dates"`
	Shipment *struct {
		ShippedAt string `json:"shipped_at"`
		Carrier   string `json:"carrier"`
		Boxes     []struct {
			TrackingNumber string `json:"tracking_number"`
		} `json:"boxes"`
	} `json:"shipment"`
	Lines []orderLineDTO `json:"lines"`
}

type orderLineDTO struct {
	Product struct {
		ID         string `json:"id"`
		ItemNumber string `json:"item_number"`
	} `json:"product"`
	Quantity struct {
		Amount int64 `json:"amount"`
	} `json:"quantity"`
}

// FetchOpenOrders pulls every unshipped, uncanceled sales order for the
// configured stores.
func (c *Client) FetchOpenOrders(ctx context.Context) ([]core.SalesOrder, error) {
	var filters []string
	filters = append(filters,
		"filters[status:not]=shipped",
		"filters[status:not]=canceled")
	for _, store := range c.opts.StoreIDs {
		filters = append(filters, "filters[store.id]="+url.QueryEscape(store))
	}
	next := c.opts.BaseURL + "/orders?" + strings.Join(filters, "&")

	var out []core.SalesOrder
	for next != "" {
		var page orderPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, dto := range page.Data {
			out = append(out, mapSalesOrder(dto))
		}
		next = page.Next
	}
	return out, nil
}

func mapSalesOrder(dto orderDTO) core.SalesOrder {
	o := core.SalesOrder{
		OrderNumber: dto.OrderNumber,
		Status:      dto.Status,
	}
	if raw := dto.ShipDates.LatestShip; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			o.LatestShip = &t
		}
	}
	for _, l := range dto.Lines {
		o.Lines = append(o.Lines, core.SalesOrderLine{
			ProductID:  l.Product.ID,
			ItemNumber: l.Product.ItemNumber,
			Quantity:   l.Quantity.Amount,
		})
	}
	return o
}

// FetchShippedOrdersSince pulls shipped orders from newest to oldest, shipped
// on or after since. An empty since fetches the full shipped history.
func (c *Client) FetchShippedOrdersSince(ctx context.Context, since string) ([]core.ShippedOrder, error) {
	next := c.opts.BaseURL + "/orders?filters[status]=shipped"
	if since != "" {
		next += "&filters[date:gte]=" + url.QueryEscape(since)
	}

	var out []core.ShippedOrder
	for next != "" {
		var page orderPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, dto := range page.Data {
			out = append(out, mapShippedOrder(dto))
		}
		next = page.Next
	}
	return out, nil
}

func mapShippedOrder(dto orderDTO) core.ShippedOrder {
	o := core.ShippedOrder{
		GoflowID:    dto.ID,
		OrderNumber: dto.OrderNumber,
		Status:      dto.Status,
	}
	if dto.Store != nil {
		if dto.Store.ID != "" {
			id := dto.Store.ID
			o.StoreID = &id
		}
		if dto.Store.Name != "" {
			name := dto.Store.Name
			o.StoreName = &name
		}
	}
	if dto.Shipment != nil {
		if at := formatShippedAt(dto.Shipment.ShippedAt); at != "" {
			o.ShippedAt = &at
		}
		if dto.Shipment.Carrier != "" {
			carrier := dto.Shipment.Carrier
			o.Carrier = &carrier
		}
		if len(dto.Shipment.Boxes) > 0 && dto.Shipment.Boxes[0].TrackingNumber != "" {
			tn := dto.Shipment.Boxes[0].TrackingNumber
			o.TrackingNumber = &tn
		}
	}
	return o
}

// formatShippedAt converts the upstream UTC timestamp to warehouse local
// time in the plain format the listing surfaces show.
func formatShippedAt(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
