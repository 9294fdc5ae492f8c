package core

import "strings"

// Variant is the schema shape a purchase order record was produced in.
// The three shapes accumulated historically as the upstream systems changed
// how "units still owed" is recorded; classifying once here keeps every
// downstream consumer variant-agnostic.
type Variant string

const (
	// NativeOutstanding: System A lines with a native line identity.
	// Awaiting = ordered - received, all on the goflow channel.
	NativeOutstanding Variant = "native_outstanding"
	// LegacyCombined: legacy PO numbers carrying the combined "-GF" marker.
	// Both channels' shortfalls are summed into the goflow bucket.
	LegacyCombined Variant = "legacy_combined"
	// LegacySplit: remaining legacy records tracking the goflow and fba
	// channels independently.
	LegacySplit Variant = "legacy_split"
)

const combinedMarker = "-GF"

// ClassifyVariant determines how a purchase order's line quantities must be
// interpreted. First match wins: native line identity, then the combined
// naming convention, then split.
func ClassifyVariant(po PurchaseOrder) Variant {
	if len(po.Lines) > 0 && po.Lines[0].LineID != "" {
		return NativeOutstanding
	}
	n := po.PONumber
	if strings.HasSuffix(n, combinedMarker) ||
		(strings.Contains(n, "PO-") && strings.Contains(n, combinedMarker)) {
		return LegacyCombined
	}
	return LegacySplit
}

// Awaiting is the per-channel count of units still owed on a line.
type Awaiting struct {
	Goflow int64 `json:"goflow"`
	FBA    int64 `json:"fba"`
}

// Total returns the awaiting units across both channels.
func (a Awaiting) Total() int64 { return a.Goflow + a.FBA }

// AwaitingQuantity computes the units still owed on one line of a purchase
// order, split by fulfillment channel according to the PO's schema variant.
// A negative shortfall on one channel never reduces the other.
func AwaitingQuantity(po PurchaseOrder, line POLine) Awaiting {
	switch ClassifyVariant(po) {
	case NativeOutstanding:
		return Awaiting{Goflow: clampNonNegative(line.Ordered - line.Received)}
	case LegacyCombined:
		total := clampNonNegative(line.GoflowOrdered-line.GoflowDelivered) +
			clampNonNegative(line.FBAOrdered-line.FBADelivered)
		return Awaiting{Goflow: total}
	default:
		return Awaiting{
			Goflow: clampNonNegative(line.GoflowOrdered - line.GoflowDelivered),
			FBA:    clampNonNegative(line.FBAOrdered - line.FBADelivered),
		}
	}
}

func clampNonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
