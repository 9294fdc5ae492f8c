package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// GoflowPOFetcher pulls open purchase orders from the native system.
type GoflowPOFetcher interface {
	FetchOpenPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error)
}

// MagentoPOFetcher pulls the legacy export: purchase orders still awaiting
// their supplier, plus the set of PO numbers the export marks complete.
type MagentoPOFetcher interface {
	FetchPurchaseOrders(ctx context.Context) ([]PurchaseOrder, map[string]bool, error)
}

// JobRunnerConfig carries the cooldown windows between successive runs.
type JobRunnerConfig struct {
	POSyncCooldown time.Duration
	ReportCooldown time.Duration
	Clock          Clock
}

// JobRunner serializes the two long-running jobs: the purchase order sync and
// the late orders report. Each job runs at most once at a time and honors a
// cooldown between runs.
type JobRunner struct {
	goflow  GoflowPOFetcher
	magento MagentoPOFetcher
	merge   MergeService
	report  ReportService
	reports ReportStore
	runLog  RunLogStore
	cfg     JobRunnerConfig
	log     *logrus.Logger

	mu            sync.Mutex
	poSyncRunning bool
	lastPOSync    time.Time
	reportRunning bool
}

// NewJobRunner wires the job orchestrator.
func NewJobRunner(goflow GoflowPOFetcher, magento MagentoPOFetcher, merge MergeService,
	report ReportService, reports ReportStore, runLog RunLogStore,
	cfg JobRunnerConfig, log *logrus.Logger) *JobRunner {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	return &JobRunner{
		goflow: goflow, magento: magento, merge: merge,
		report: report, reports: reports, runLog: runLog,
		cfg: cfg, log: log,
	}
}

// RunPOSync fetches both upstreams concurrently and merges the results into
// the store. A failure in one source degrades that source to an empty result
// rather than aborting the run; a throttled upstream ends the run quietly.
func (r *JobRunner) RunPOSync(ctx context.Context) (MergeStats, error) {
	now := r.cfg.Clock.Now()
	r.mu.Lock()
	if r.poSyncRunning {
		r.mu.Unlock()
		return MergeStats{}, &PreconditionError{Reason: "purchase order sync already running"}
	}
	if since := now.Sub(r.lastPOSync); !r.lastPOSync.IsZero() && since < r.cfg.POSyncCooldown {
		retry := r.cfg.POSyncCooldown - since
		r.mu.Unlock()
		return MergeStats{}, &PreconditionError{
			Reason:     "purchase order sync ran recently",
			RetryAfter: retry,
		}
	}
	r.poSyncRunning = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.poSyncRunning = false
		r.mu.Unlock()
	}()

	var (
		goflowPOs  []PurchaseOrder
		magentoPOs []PurchaseOrder
		bComplete  map[string]bool
		goflowErr  error
		magentoErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		goflowPOs, goflowErr = r.goflow.FetchOpenPurchaseOrders(gctx)
		return nil
	})
	g.Go(func() error {
		magentoPOs, bComplete, magentoErr = r.magento.FetchPurchaseOrders(gctx)
		return nil
	})
	_ = g.Wait()

	if IsThrottled(goflowErr) || IsThrottled(magentoErr) {
		r.log.Warn("upstream throttled, purchase order sync skipped")
		logRun(ctx, r.runLog, r.log, "warn", "purchase order sync skipped: upstream throttled", nil)
		return MergeStats{}, nil
	}
	if goflowErr != nil && magentoErr != nil {
		err := fmt.Errorf("both upstreams failed: goflow: %v; magento: %v", goflowErr, magentoErr)
		logRun(ctx, r.runLog, r.log, "error", "purchase order sync failed", map[string]any{
			"goflow_error":  goflowErr.Error(),
			"magento_error": magentoErr.Error(),
		})
		return MergeStats{}, err
	}
	if goflowErr != nil {
		r.log.WithError(goflowErr).Error("goflow fetch failed, continuing with magento only")
		goflowPOs = nil
	}
	if magentoErr != nil {
		r.log.WithError(magentoErr).Error("magento fetch failed, continuing with goflow only")
		magentoPOs, bComplete = nil, nil
	}

	stats, err := r.merge.MergeAndStore(ctx, goflowPOs, magentoPOs, bComplete)
	if err != nil {
		logRun(ctx, r.runLog, r.log, "error", "purchase order sync failed", map[string]any{
			"error": err.Error(),
		})
		return stats, err
	}

	r.mu.Lock()
	r.lastPOSync = r.cfg.Clock.Now()
	r.mu.Unlock()

	meta := map[string]any{
		"upserted": stats.Upserted,
		"pruned":   stats.Pruned,
		"failed":   stats.Failed,
	}
	level := "info"
	if goflowErr != nil || magentoErr != nil {
		level = "warn"
		if goflowErr != nil {
			meta["goflow_error"] = goflowErr.Error()
		}
		if magentoErr != nil {
			meta["magento_error"] = magentoErr.Error()
		}
	}
	logRun(ctx, r.runLog, r.log, level, "purchase order sync completed", meta)
	return stats, nil
}

// RunLateOrderReport generates the late orders report synchronously.
func (r *JobRunner) RunLateOrderReport(ctx context.Context, now time.Time) (*LateOrderReport, error) {
	if err := r.beginReport(ctx, now); err != nil {
		return nil, err
	}
	defer r.endReport()
	return r.generateReport(ctx, now)
}

// StartLateOrderReport checks the running guard and cooldown, then launches
// the report in the background. It returns immediately after the checks pass;
// the eventual outcome lands in the run log.
func (r *JobRunner) StartLateOrderReport(ctx context.Context, now time.Time) error {
	if err := r.beginReport(ctx, now); err != nil {
		return err
	}
	go func() {
		defer r.endReport()
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := r.generateReport(runCtx, now); err != nil {
			r.log.WithError(err).Error("background report run failed")
		}
	}()
	return nil
}

// IsReportRunning reports whether a report generation is in flight.
func (r *JobRunner) IsReportRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reportRunning
}

func (r *JobRunner) beginReport(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reportRunning {
		return &PreconditionError{Reason: "report generation already in progress"}
	}
	last, err := r.reports.LatestDate(ctx)
	if err != nil {
		return fmt.Errorf("check last report date: %w", err)
	}
	if !last.IsZero() {
		if since := now.Sub(last); since < r.cfg.ReportCooldown {
			return &PreconditionError{
				Reason:     "report generated recently",
				RetryAfter: r.cfg.ReportCooldown - since,
			}
		}
	}
	r.reportRunning = true
	return nil
}

func (r *JobRunner) endReport() {
	r.mu.Lock()
	r.reportRunning = false
	r.mu.Unlock()
}

func (r *JobRunner) generateReport(ctx context.Context, now time.Time) (*LateOrderReport, error) {
	report, err := r.report.Generate(ctx, now)
	if err != nil {
		if IsThrottled(err) {
			r.log.Warn("upstream throttled, report run skipped")
			logRun(ctx, r.runLog, r.log, "warn", "late orders report skipped: upstream throttled", nil)
			return nil, nil
		}
		logRun(ctx, r.runLog, r.log, "error", "late orders report failed", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}
	logRun(ctx, r.runLog, r.log, "info", "late orders report completed", map[string]any{
		"items_due":      report.Summary.TotalItemsDue,
		"items_short":    report.Summary.ItemsShort,
		"total_awaiting": report.Summary.TotalAwaiting,
	})
	return report, nil
}
