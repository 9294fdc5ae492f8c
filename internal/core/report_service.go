package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// OrderFetcher pulls the currently-open sales orders from System A.
type OrderFetcher interface {
	FetchOpenOrders(ctx context.Context) ([]SalesOrder, error)
}

// AvailabilityFetcher looks up current on-hand stock for one product at the
// operational warehouse. Absence of a stock record means zero, not an error.
type AvailabilityFetcher interface {
	OnHand(ctx context.Context, productID string) (int64, error)
}

// Clock abstracts time for the report generator so tests can run without
// real delays.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SystemClock is the production Clock.
var SystemClock Clock = realClock{}

// ReportConfig tunes the report generation loop. Lookups run through a
// bounded work queue; production keeps Concurrency at 1 with a fixed
// inter-call delay to respect upstream throttling.
type ReportConfig struct {
	ItemDelay   time.Duration
	Concurrency int
	Timezone    *time.Location // operational timezone for the cutoff date
	Clock       Clock
}

func (c ReportConfig) withDefaults() ReportConfig {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Timezone == nil {
		c.Timezone = operationalTZ()
	}
	if c.Clock == nil {
		c.Clock = SystemClock
	}
	return c
}

func operationalTZ() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReportService builds the late-order reconciliation report.
type ReportService interface {
	// Generate runs one full reconciliation pass as of now and replaces the
	// stored report with the result.
	Generate(ctx context.Context, now time.Time) (*LateOrderReport, error)
}

type reportService struct {
	orders  OrderFetcher
	avail   AvailabilityFetcher
	pos     POStore
	reports ReportStore
	cfg     ReportConfig
	log     *logrus.Logger
}

// NewReportService wires the report generator. orders and avail are the
// System A fetchers; pos supplies the awaiting side of the reconciliation.
func NewReportService(orders OrderFetcher, avail AvailabilityFetcher, pos POStore,
	reports ReportStore, cfg ReportConfig, log *logrus.Logger) ReportService {
	return &reportService{
		orders: orders, avail: avail, pos: pos, reports: reports,
		cfg: cfg.withDefaults(), log: log,
	}
}

// itemDemand is the aggregated committed quantity for one distinct item.
type itemDemand struct {
	productID  string
	itemNumber string
	quantity   int64
}

func (s *reportService) Generate(ctx context.Context, now time.Time) (*LateOrderReport, error) {
	orders, err := s.orders.FetchOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}

	cutoff := BusinessDayCutoff(now, s.cfg.Timezone)
	var dueOrders []SalesOrder
	for _, o := range orders {
		if o.LatestShip != nil && !o.LatestShip.After(cutoff) {
			dueOrders = append(dueOrders, o)
		}
	}

	demands := aggregateItemDemand(dueOrders)
	var totalUnits int64
	for _, d := range demands {
		totalUnits += d.quantity
	}
	s.log.WithFields(logrus.Fields{
		"due_orders": len(dueOrders),
		"items_due":  len(demands),
		"units_due":  totalUnits,
	}).Info("late-order demand aggregated")

	purchaseOrders, err := s.pos.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load purchase orders: %w", err)
	}

	items := make([]ItemAvailability, len(demands))
	queue := make(chan int)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < s.cfg.Concurrency; w++ {
		g.Go(func() error {
			for idx := range queue {
				item, err := s.reconcileItem(gctx, demands[idx], purchaseOrders)
				if err != nil {
					return err
				}
				mu.Lock()
				items[idx] = item
				mu.Unlock()
				if err := s.cfg.Clock.Sleep(gctx, s.cfg.ItemDelay); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(queue)
		for i := range demands {
			select {
			case queue <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &LateOrderReport{
		ReportDate: s.cfg.Clock.Now(),
		CutoffDate: cutoff,
		Items:      items,
		Summary: ReportSummary{
			TotalDueOrders: len(dueOrders),
			TotalItemsDue:  len(demands),
			TotalUnitsDue:  totalUnits,
		},
	}
	for _, item := range items {
		if item.OnHand > 0 {
			report.Summary.ItemsWithStock++
		}
		report.Summary.TotalAwaiting += item.AwaitingGoflow + item.AwaitingFBA
		if item.Short() {
			report.Summary.ItemsShort++
		}
	}

	if err := s.reports.Replace(ctx, report); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"items_short":    report.Summary.ItemsShort,
		"total_awaiting": report.Summary.TotalAwaiting,
	}).Info("late orders report stored")
	return report, nil
}

// reconcileItem joins one item's committed demand against live on-hand stock
// and the awaiting quantities across every stored purchase order.
func (s *reportService) reconcileItem(ctx context.Context, d itemDemand, pos []PurchaseOrder) (ItemAvailability, error) {
	onHand, err := s.avail.OnHand(ctx, d.productID)
	if err != nil {
		return ItemAvailability{}, fmt.Errorf("on-hand lookup for %s: %w", d.itemNumber, err)
	}

	item := ItemAvailability{
		ItemNumber: d.itemNumber,
		ProductID:  d.productID,
		UnitsDue:   d.quantity,
		OnHand:     onHand,
	}
	for _, po := range pos {
		for _, line := range po.Lines {
			if !line.MatchesItem(d.itemNumber) {
				continue
			}
			awaiting := AwaitingQuantity(po, line)
			item.AwaitingGoflow += awaiting.Goflow
			item.AwaitingFBA += awaiting.FBA
			if awaiting.Goflow > 0 {
				if item.AwaitingGoflowByPO == nil {
					item.AwaitingGoflowByPO = map[string]int64{}
				}
				item.AwaitingGoflowByPO[po.PONumber] += awaiting.Goflow
			}
			if awaiting.FBA > 0 {
				if item.AwaitingFBAByPO == nil {
					item.AwaitingFBAByPO = map[string]int64{}
				}
				item.AwaitingFBAByPO[po.PONumber] += awaiting.FBA
			}
		}
	}
	return item, nil
}

// aggregateItemDemand sums line quantities per distinct product across the
// due orders, preserving first-appearance order.
func aggregateItemDemand(orders []SalesOrder) []itemDemand {
	index := map[string]int{}
	var out []itemDemand
	for _, o := range orders {
		for _, line := range o.Lines {
			if line.ProductID == "" && line.ItemNumber == "" {
				continue
			}
			key := line.ProductID
			if key == "" {
				key = line.ItemNumber
			}
			i, ok := index[key]
			if !ok {
				i = len(out)
				index[key] = i
				out = append(out, itemDemand{productID: line.ProductID, itemNumber: line.ItemNumber})
			}
			out[i].quantity += line.Quantity
		}
	}
	return out
}

// BusinessDayCutoff returns the end of the current business day: the last
// millisecond of now's calendar date in the operational timezone, expressed
// as an absolute UTC instant.
func BusinessDayCutoff(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 23, 59, 59, 999_000_000, time.UTC)
}
