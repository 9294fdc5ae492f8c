package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportStore owns late-order report snapshots. The single-current-report
// model replaces the whole collection inside one transaction, so a failed
// run never leaves a half-written report visible.
type ReportStore interface {
	// Replace discards every stored report and inserts this one atomically.
	Replace(ctx context.Context, report *LateOrderReport) error
	// Latest returns the most recent report with its items, or NotFoundError.
	Latest(ctx context.Context) (*LateOrderReport, error)
	// LatestDate returns the report_date of the most recent report;
	// the zero time when none is stored.
	LatestDate(ctx context.Context) (time.Time, error)
}

type reportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore constructs a ReportStore backed by PostgreSQL.
func NewReportStore(pool *pgxpool.Pool) ReportStore {
	return &reportStore{pool: pool}
}

func (s *reportStore) Replace(ctx context.Context, report *LateOrderReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin report replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM late_orders_reports"); err != nil {
		return fmt.Errorf("clear previous reports: %w", err)
	}

	var reportID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO late_orders_reports
		            (report_date, cutoff_date, total_due_orders, total_items_due,
		             total_units_due, items_with_stock, total_awaiting, items_short)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		report.ReportDate, report.CutoffDate,
		report.Summary.TotalDueOrders, report.Summary.TotalItemsDue,
		report.Summary.TotalUnitsDue, report.Summary.ItemsWithStock,
		report.Summary.TotalAwaiting, report.Summary.ItemsShort,
	).Scan(&reportID); err != nil {
		return fmt.Errorf("insert report header: %w", err)
	}

	for _, item := range report.Items {
		goflowDetail, err := json.Marshal(detailOrEmpty(item.AwaitingGoflowByPO))
		if err != nil {
			return fmt.Errorf("encode goflow detail for %s: %w", item.ItemNumber, err)
		}
		fbaDetail, err := json.Marshal(detailOrEmpty(item.AwaitingFBAByPO))
		if err != nil {
			return fmt.Errorf("encode fba detail for %s: %w", item.ItemNumber, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO late_orders_report_items
			            (report_id, item_number, product_id, units_due, on_hand,
			             awaiting_goflow, awaiting_fba,
			             awaiting_goflow_detail, awaiting_fba_detail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			reportID, item.ItemNumber, item.ProductID, item.UnitsDue, item.OnHand,
			item.AwaitingGoflow, item.AwaitingFBA, goflowDetail, fbaDetail,
		); err != nil {
			return fmt.Errorf("insert report item %s: %w", item.ItemNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	report.ID = reportID
	return nil
}

func (s *reportStore) Latest(ctx context.Context) (*LateOrderReport, error) {
	r := &LateOrderReport{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, report_date, cutoff_date, total_due_orders, total_items_due,
		       total_units_due, items_with_stock, total_awaiting, items_short
		FROM late_orders_reports
		ORDER BY report_date DESC, id DESC
		LIMIT 1`,
	).Scan(&r.ID, &r.ReportDate, &r.CutoffDate,
		&r.Summary.TotalDueOrders, &r.Summary.TotalItemsDue,
		&r.Summary.TotalUnitsDue, &r.Summary.ItemsWithStock,
		&r.Summary.TotalAwaiting, &r.Summary.ItemsShort)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "late orders report", Key: "latest"}
		}
		return nil, fmt.Errorf("load latest report: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT item_number, product_id, units_due, on_hand,
		       awaiting_goflow, awaiting_fba,
		       awaiting_goflow_detail, awaiting_fba_detail
		FROM late_orders_report_items
		WHERE report_id = $1
		ORDER BY id`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("load report items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item ItemAvailability
		var goflowDetail, fbaDetail []byte
		if err := rows.Scan(&item.ItemNumber, &item.ProductID, &item.UnitsDue,
			&item.OnHand, &item.AwaitingGoflow, &item.AwaitingFBA,
			&goflowDetail, &fbaDetail); err != nil {
			return nil, fmt.Errorf("scan report item: %w", err)
		}
		_ = json.Unmarshal(goflowDetail, &item.AwaitingGoflowByPO)
		_ = json.Unmarshal(fbaDetail, &item.AwaitingFBAByPO)
		r.Items = append(r.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load report items: %w", err)
	}
	return r, nil
}

func (s *reportStore) LatestDate(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT report_date FROM late_orders_reports ORDER BY report_date DESC LIMIT 1",
	).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("load latest report date: %w", err)
	}
	return ts, nil
}

func detailOrEmpty(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}
