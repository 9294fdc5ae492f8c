package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// OrderFilter narrows the shipped-order listing.
type OrderFilter struct {
	Search string // matches order number or tracking number, case-insensitive
	Status string
	Limit  int
	Offset int
}

// OrderStore persists the shipped-order mirror.
type OrderStore interface {
	// UpsertAll inserts or refreshes orders by their upstream id.
	UpsertAll(ctx context.Context, orders []ShippedOrder) (int, error)
	// List returns matching orders, newest shipped first, plus the total count.
	List(ctx context.Context, filter OrderFilter) ([]ShippedOrder, int, error)
}

type orderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore constructs an OrderStore backed by PostgreSQL.
func NewOrderStore(pool *pgxpool.Pool) OrderStore {
	return &orderStore{pool: pool}
}

func (s *orderStore) UpsertAll(ctx context.Context, orders []ShippedOrder) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, o := range orders {
		batch.Queue(`
			INSERT INTO orders
				(goflow_id, order_number, status, store_id, store_name,
				 shipped_at, tracking_number, carrier)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (goflow_id) DO UPDATE SET
				order_number      = EXCLUDED.order_number,
				status            = EXCLUDED.status,
				store_id          = EXCLUDED.store_id,
				store_name        = EXCLUDED.store_name,
				shipped_at        = EXCLUDED.shipped_at,
				tracking_number   = EXCLUDED.tracking_number,
				carrier           = EXCLUDED.carrier,
				status_updated_at = NOW()`,
			o.GoflowID, o.OrderNumber, o.Status, o.StoreID, o.StoreName,
			o.ShippedAt, o.TrackingNumber, o.Carrier)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("upsert orders: %w", err)
	}
	return len(orders), nil
}

func (s *orderStore) List(ctx context.Context, filter OrderFilter) ([]ShippedOrder, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(LOWER(order_number) LIKE $%d OR LOWER(COALESCE(tracking_number, '')) LIKE $%d)", n, n))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT goflow_id, order_number, status, store_id, store_name,
		       shipped_at, tracking_number, carrier
		FROM orders
		WHERE %s
		ORDER BY shipped_at DESC NULLS LAST, id DESC
		LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ShippedOrder
	for rows.Next() {
		var o ShippedOrder
		if err := rows.Scan(&o.GoflowID, &o.OrderNumber, &o.Status, &o.StoreID,
			&o.StoreName, &o.ShippedAt, &o.TrackingNumber, &o.Carrier); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// SyncWatermark is the stored high-water mark of one incremental sync.
type SyncWatermark struct {
	LastOrderDate string // "2006-01-02 15:04:05", warehouse local time
	LastOrderID   string
}

// SyncStateStore persists per-job sync watermarks.
type SyncStateStore interface {
	Get(ctx context.Context, key string) (SyncWatermark, error)
	Set(ctx context.Context, key string, w SyncWatermark) error
}

type syncStateStore struct {
	pool *pgxpool.Pool
}

// NewSyncStateStore constructs a SyncStateStore backed by PostgreSQL.
func NewSyncStateStore(pool *pgxpool.Pool) SyncStateStore {
	return &syncStateStore{pool: pool}
}

func (s *syncStateStore) Get(ctx context.Context, key string) (SyncWatermark, error) {
	var w SyncWatermark
	var date, id *string
	err := s.pool.QueryRow(ctx,
		"SELECT last_order_date, last_order_id FROM sync_state WHERE key = $1",
		key).Scan(&date, &id)
	if err == pgx.ErrNoRows {
		return SyncWatermark{}, nil
	}
	if err != nil {
		return SyncWatermark{}, err
	}
	if date != nil {
		w.LastOrderDate = *date
	}
	if id != nil {
		w.LastOrderID = *id
	}
	return w, nil
}

func (s *syncStateStore) Set(ctx context.Context, key string, w SyncWatermark) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (key, last_order_date, last_order_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			last_order_date = EXCLUDED.last_order_date,
			last_order_id   = EXCLUDED.last_order_id,
			updated_at      = NOW()`,
		key, w.LastOrderDate, w.LastOrderID)
	return err
}

// ShippedOrderFetcher pulls shipped orders from the native system, newest
// first, shipped on or after since (empty since means the fetcher's default
// lookback).
type ShippedOrderFetcher interface {
	FetchShippedOrdersSince(ctx context.Context, since string) ([]ShippedOrder, error)
}

const shippedOrdersWatermarkKey = "shipped_orders"

// OrderSyncService incrementally mirrors shipped orders. Each run resumes
// from the stored watermark and stops at the newest order the previous run
// already saw.
type OrderSyncService struct {
	fetcher ShippedOrderFetcher
	orders  OrderStore
	state   SyncStateStore
	runLog  RunLogStore
	log     *logrus.Logger
}

// NewOrderSyncService wires the shipped-order sync.
func NewOrderSyncService(fetcher ShippedOrderFetcher, orders OrderStore,
	state SyncStateStore, runLog RunLogStore, log *logrus.Logger) *OrderSyncService {
	return &OrderSyncService{fetcher: fetcher, orders: orders, state: state, runLog: runLog, log: log}
}

// Run executes one incremental pass and returns the number of orders stored.
func (s *OrderSyncService) Run(ctx context.Context) (int, error) {
	mark, err := s.state.Get(ctx, shippedOrdersWatermarkKey)
	if err != nil {
		return 0, fmt.Errorf("load sync watermark: %w", err)
	}

	fetched, err := s.fetcher.FetchShippedOrdersSince(ctx, mark.LastOrderDate)
	if err != nil {
		if IsThrottled(err) {
			s.log.Warn("upstream throttled, order sync skipped")
			logRun(ctx, s.runLog, s.log, "warn", "order sync skipped: upstream throttled", nil)
			return 0, nil
		}
		logRun(ctx, s.runLog, s.log, "error", "order sync failed", map[string]any{"error": err.Error()})
		return 0, err
	}

	// Orders arrive newest first; everything at or past the previously seen
	// newest id was already mirrored.
	fresh := fetched
	if mark.LastOrderID != "" {
		for i, o := range fetched {
			if o.GoflowID == mark.LastOrderID {
				fresh = fetched[:i]
				break
			}
		}
	}

	stored, err := s.orders.UpsertAll(ctx, fresh)
	if err != nil {
		logRun(ctx, s.runLog, s.log, "error", "order sync failed", map[string]any{"error": err.Error()})
		return 0, err
	}

	if len(fresh) > 0 {
		newest := fresh[0]
		next := SyncWatermark{LastOrderID: newest.GoflowID, LastOrderDate: mark.LastOrderDate}
		if newest.ShippedAt != nil {
			next.LastOrderDate = *newest.ShippedAt
		}
		if err := s.state.Set(ctx, shippedOrdersWatermarkKey, next); err != nil {
			return stored, fmt.Errorf("advance sync watermark: %w", err)
		}
	}

	s.log.WithField("stored", stored).Info("order sync completed")
	logRun(ctx, s.runLog, s.log, "info", "order sync completed", map[string]any{"stored": stored})
	return stored, nil
}
