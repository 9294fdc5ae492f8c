package core

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// MergeService reconciles the two upstream PO feeds against the store.
type MergeService interface {
	// MergeAndStore prunes POs that System B reports complete, deduplicates
	// the combined feeds by PO number (System A first, first occurrence
	// wins), copies forward operator-owned fields from stored records, and
	// upserts the result. Per-PO write failures are logged and counted but
	// never abort the pass; the pass is idempotent.
	MergeAndStore(ctx context.Context, aPOs, bPOs []PurchaseOrder, bComplete map[string]bool) (MergeStats, error)
}

type mergeService struct {
	store POStore
	log   *logrus.Logger
}

// NewMergeService constructs a MergeService over the given PO store.
func NewMergeService(store POStore, log *logrus.Logger) MergeService {
	return &mergeService{store: store, log: log}
}

func (m *mergeService) MergeAndStore(ctx context.Context, aPOs, bPOs []PurchaseOrder, bComplete map[string]bool) (MergeStats, error) {
	var stats MergeStats

	stored, err := m.store.ListAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("load stored purchase orders: %w", err)
	}
	storedByNumber := make(map[string]PurchaseOrder, len(stored))
	for _, po := range stored {
		storedByNumber[po.PONumber] = po
	}

	// System B is authoritative for completion: anything it reports complete
	// leaves the store, even if System A still lists it.
	var pruneList []string
	for _, po := range stored {
		if bComplete[po.PONumber] {
			pruneList = append(pruneList, po.PONumber)
		}
	}
	if len(pruneList) > 0 {
		pruned, err := m.store.DeleteByNumbers(ctx, pruneList)
		if err != nil {
			return stats, fmt.Errorf("prune completed purchase orders: %w", err)
		}
		stats.Pruned = pruned
		m.log.WithField("count", pruned).Info("removed purchase orders completed upstream")
	}

	merged := DedupPurchaseOrders(aPOs, bPOs)

	for _, po := range merged {
		if bComplete[po.PONumber] {
			// Completed upstream; never re-insert what we just pruned.
			continue
		}
		if existing, ok := storedByNumber[po.PONumber]; ok {
			preserveLocalFields(&po, existing)
		}
		if err := m.store.Upsert(ctx, po); err != nil {
			stats.Failed++
			m.log.WithError(err).WithField("po_number", po.PONumber).
				Error("failed to upsert purchase order")
			continue
		}
		stats.Upserted++
	}

	m.log.WithFields(logrus.Fields{
		"upserted": stats.Upserted,
		"pruned":   stats.Pruned,
		"failed":   stats.Failed,
	}).Info("purchase order merge pass finished")
	return stats, nil
}

// DedupPurchaseOrders combines both feeds keyed by PO number. System A is
// iterated before System B, and within a feed the first occurrence wins,
// so on a shared number System A's record is kept.
func DedupPurchaseOrders(aPOs, bPOs []PurchaseOrder) []PurchaseOrder {
	seen := make(map[string]bool, len(aPOs)+len(bPOs))
	merged := make([]PurchaseOrder, 0, len(aPOs)+len(bPOs))
	for _, po := range append(append([]PurchaseOrder{}, aPOs...), bPOs...) {
		if po.PONumber == "" || seen[po.PONumber] {
			continue
		}
		seen[po.PONumber] = true
		merged = append(merged, po)
	}
	return merged
}

// preserveLocalFields copies operator-entered fields from the stored record
// onto the incoming one so a sync never erases operator input.
func preserveLocalFields(incoming *PurchaseOrder, stored PurchaseOrder) {
	if stored.DeliveryMethod != nil {
		incoming.DeliveryMethod = stored.DeliveryMethod
	}
	if stored.SupplierPONumber != nil {
		incoming.SupplierPONumber = stored.SupplierPONumber
	}
	if stored.ETA != nil {
		incoming.ETA = stored.ETA
	}
}
