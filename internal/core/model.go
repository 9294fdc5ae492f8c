package core

import "time"

// POStatus is the folded status vocabulary shared by both upstream systems.
// Source-specific statuses (awaiting_receipt, waiting_for_supplier) are
// mapped onto this set at ingest time.
type POStatus string

const (
	POStatusOpen             POStatus = "open"
	POStatusAwaitingSupplier POStatus = "awaiting-supplier"
	POStatusPaid             POStatus = "paid"
	POStatusComplete         POStatus = "complete"
)

// Source identifies which upstream system produced a purchase order record.
type Source string

const (
	SourceGoflow  Source = "goflow"
	SourceMagento Source = "magento"
)

// PurchaseOrder is the canonical merged purchase order record.
// ETA, DeliveryMethod and SupplierPONumber are operator-entered and are
// never overwritten by a sync run.
type PurchaseOrder struct {
	ID                int
	PONumber          string
	Status            POStatus
	VendorName        string
	PODate            string // MM-DD-YYYY, no time component
	ETA               *string
	DeliveryMethod    *string
	SupplierPONumber  *string
	Source            Source
	StatusLastUpdated *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Lines             []POLine
}

// POLine is one canonical purchase order line. Exactly one of the two
// quantity conventions is populated, depending on the source:
//   - System A lines carry LineID, ItemNumber, Ordered and Received;
//   - System B rows carry SKU and the per-channel goflow/fba quantities.
type POLine struct {
	ID       int
	Position int

	LineID      string // native System A line identity; empty for CSV rows
	SKU         string
	ItemNumber  string
	ProductName string
	UPC         string

	Ordered  int64
	Received int64

	GoflowOrdered   int64
	GoflowDelivered int64
	FBAOrdered      int64
	FBADelivered    int64
}

// MatchesItem reports whether this line refers to the given sales-order
// item number, whichever identity field the source populated.
func (l POLine) MatchesItem(itemNumber string) bool {
	if itemNumber == "" {
		return false
	}
	return l.SKU == itemNumber || l.ItemNumber == itemNumber
}

// DeliveryStatus is the lifecycle state of a delivery group.
type DeliveryStatus string

const (
	DeliveryStatusOpen     DeliveryStatus = "open"
	DeliveryStatusComplete DeliveryStatus = "complete"
)

// Delivery groups purchase orders expected to physically arrive together:
// same vendor, same expected-arrival date.
type Delivery struct {
	ID           int
	VendorName   string
	ETA          string
	PONumbers    []string
	PalletAmount string
	BoxAmount    string
	Status       DeliveryStatus
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// LateOrderReport is an immutable reconciliation snapshot. Only the most
// recent report is current; a new run replaces the stored one wholesale.
type LateOrderReport struct {
	ID         int
	ReportDate time.Time
	CutoffDate time.Time
	Summary    ReportSummary
	Items      []ItemAvailability
}

// ReportSummary carries the aggregate counters of one reconciliation run.
type ReportSummary struct {
	TotalDueOrders int   `json:"total_due_orders_amount"`
	TotalItemsDue  int   `json:"total_items_due"`
	TotalUnitsDue  int64 `json:"total_units_due"`
	ItemsWithStock int   `json:"total_on_hand"`
	TotalAwaiting  int64 `json:"total_awaiting"`
	ItemsShort     int   `json:"total_items_short"`
}

// ItemAvailability is the per-item reconciliation line of a report:
// how many units customers need by the cutoff versus what is on hand
// or still awaited from open purchase orders.
type ItemAvailability struct {
	ItemNumber     string
	ProductID      string
	UnitsDue       int64
	OnHand         int64
	AwaitingGoflow int64
	AwaitingFBA    int64
	// Per-PO breakdown of the awaiting quantities, for traceability.
	AwaitingGoflowByPO map[string]int64
	AwaitingFBAByPO    map[string]int64
}

// Short reports whether committed demand exceeds on-hand plus awaiting supply.
func (ia ItemAvailability) Short() bool {
	return ia.OnHand+ia.AwaitingGoflow+ia.AwaitingFBA < ia.UnitsDue
}

// SalesOrder is the slice of a System A sales order the report generator needs.
type SalesOrder struct {
	OrderNumber string
	Status      string
	LatestShip  *time.Time
	Lines       []SalesOrderLine
}

// SalesOrderLine is one line of a System A sales order.
type SalesOrderLine struct {
	ProductID  string
	ItemNumber string
	Quantity   int64
}

// InventoryRow is one row of the wholesale-replaced inventory snapshot.
type InventoryRow struct {
	ProductID         string `json:"product_id"`
	ProductItemNumber string `json:"product_item_number"`
	WarehouseName     string `json:"warehouse_name"`
	ProductName       string `json:"product_name"`
	OnHand            int64  `json:"on_hand"`
	Available         int64  `json:"available"`
	OnPurchaseOrder   int64  `json:"on_purchase_order"`
}

// ShippedOrder is the filtered shipped-order record mirrored from System A.
type ShippedOrder struct {
	GoflowID       string
	OrderNumber    string
	Status         string
	StoreID        *string
	StoreName      *string
	ShippedAt      *string // local warehouse time, "2006-01-02 15:04:05"
	TrackingNumber *string
	Carrier        *string
}

// MergeStats summarizes one merge-and-store pass.
type MergeStats struct {
	Upserted int
	Pruned   int
	Failed   int
}
