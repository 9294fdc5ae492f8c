package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryService coordinates receiving: purchase orders sharing a vendor and
// an expected-arrival date are grouped into one logical delivery.
type DeliveryService interface {
	// OnETASet adds poNumber to the open delivery for (vendorName, eta),
	// creating it with empty pallet/box amounts on first use. Adding an
	// already-present number is a no-op.
	OnETASet(ctx context.Context, vendorName, eta, poNumber string) error
	// OnETACleared removes poNumber from the matching delivery and deletes
	// the delivery once its PO set is empty.
	OnETACleared(ctx context.Context, vendorName, eta, poNumber string) error
	// MarkComplete sets every named PO to complete and completes every
	// delivery containing any of them. Completed deliveries are retained.
	MarkComplete(ctx context.Context, poNumbers []string) (int, error)
	// SetAmounts updates operator-entered pallet/box counts. Empty strings
	// leave the stored value untouched.
	SetAmounts(ctx context.Context, vendorName, eta, palletAmount, boxAmount string) error
	// ListOpen returns all non-complete deliveries.
	ListOpen(ctx context.Context) ([]Delivery, error)
}

type deliveryService struct {
	pool *pgxpool.Pool
	pos  POStore
}

// NewDeliveryService constructs a DeliveryService backed by PostgreSQL.
func NewDeliveryService(pool *pgxpool.Pool, pos POStore) DeliveryService {
	return &deliveryService{pool: pool, pos: pos}
}

func (s *deliveryService) OnETASet(ctx context.Context, vendorName, eta, poNumber string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deliveries (vendor_name, eta, po_numbers, status)
		VALUES ($1, $2, ARRAY[$3], 'open')
		ON CONFLICT (vendor_name, eta) WHERE status <> 'complete'
		DO UPDATE SET po_numbers = (
			SELECT ARRAY(SELECT DISTINCT n FROM unnest(deliveries.po_numbers || $3) AS n)
		)`,
		vendorName, eta, poNumber)
	if err != nil {
		return fmt.Errorf("upsert delivery group %s/%s: %w", vendorName, eta, err)
	}
	return nil
}

func (s *deliveryService) OnETACleared(ctx context.Context, vendorName, eta, poNumber string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delivery update: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE deliveries
		SET po_numbers = array_remove(po_numbers, $3)
		WHERE vendor_name = $1 AND eta = $2 AND status <> 'complete'`,
		vendorName, eta, poNumber); err != nil {
		return fmt.Errorf("remove PO %s from delivery group: %w", poNumber, err)
	}

	// Prune groups left with no purchase orders.
	if _, err := tx.Exec(ctx, `
		DELETE FROM deliveries
		WHERE vendor_name = $1 AND eta = $2 AND status <> 'complete'
		  AND cardinality(po_numbers) = 0`,
		vendorName, eta); err != nil {
		return fmt.Errorf("prune empty delivery group: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *deliveryService) MarkComplete(ctx context.Context, poNumbers []string) (int, error) {
	if len(poNumbers) == 0 {
		return 0, nil
	}
	matched, err := s.pos.MarkComplete(ctx, poNumbers)
	if err != nil {
		return 0, err
	}
	if _, err := s.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'complete', completed_at = NOW()
		WHERE po_numbers && $1`,
		poNumbers); err != nil {
		return matched, fmt.Errorf("complete delivery groups: %w", err)
	}
	return matched, nil
}

func (s *deliveryService) SetAmounts(ctx context.Context, vendorName, eta, palletAmount, boxAmount string) error {
	set := "pallet_amount = pallet_amount"
	args := []any{vendorName, eta}
	if palletAmount != "" {
		args = append(args, palletAmount)
		set = fmt.Sprintf("pallet_amount = $%d", len(args))
	}
	if boxAmount != "" {
		args = append(args, boxAmount)
		set += fmt.Sprintf(", box_amount = $%d", len(args))
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE deliveries SET "+set+" WHERE vendor_name = $1 AND eta = $2", args...)
	if err != nil {
		return fmt.Errorf("update delivery amounts %s/%s: %w", vendorName, eta, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "delivery", Key: vendorName + "/" + eta}
	}
	return nil
}

func (s *deliveryService) ListOpen(ctx context.Context) ([]Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, vendor_name, eta, po_numbers, pallet_amount, box_amount,
		       status, completed_at, created_at
		FROM deliveries
		WHERE status <> 'complete'
		ORDER BY eta, vendor_name`)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.VendorName, &d.ETA, &d.PONumbers,
			&d.PalletAmount, &d.BoxAmount, &d.Status, &d.CompletedAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FindDelivery returns one delivery by its open-group key, or NotFoundError.
// Used by tests and the web adapter; not part of the hot path.
func FindDelivery(ctx context.Context, pool *pgxpool.Pool, vendorName, eta string) (*Delivery, error) {
	var d Delivery
	err := pool.QueryRow(ctx, `
		SELECT id, vendor_name, eta, po_numbers, pallet_amount, box_amount,
		       status, completed_at, created_at
		FROM deliveries
		WHERE vendor_name = $1 AND eta = $2 AND status <> 'complete'`,
		vendorName, eta,
	).Scan(&d.ID, &d.VendorName, &d.ETA, &d.PONumbers,
		&d.PalletAmount, &d.BoxAmount, &d.Status, &d.CompletedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "delivery", Key: vendorName + "/" + eta}
		}
		return nil, fmt.Errorf("find delivery %s/%s: %w", vendorName, eta, err)
	}
	return &d, nil
}
