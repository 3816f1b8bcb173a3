package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/data/repos"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/observability"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
	"github.com/enersystems/es-inventory-hub/internal/recon"
)

// ReconcileService drives one full cross-vendor reconciliation for a date:
// variance reset, snapshot load, classification, manual-fix verification and
// retention sweeps.
type ReconcileService interface {
	RunDaily(ctx context.Context, date time.Time) (*RunSummary, error)
}

type RunSummary struct {
	Date       string `json:"date"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`

	NinjaCount        int `json:"ninja_count"`
	ThreatLockerCount int `json:"threatlocker_count"`

	Matcher *recon.RunReport    `json:"matcher,omitempty"`
	Verify  *recon.VerifyReport `json:"verify,omitempty"`

	SweptStale      int64 `json:"swept_stale"`
	PurgedSnapshots int64 `json:"purged_snapshots"`

	DurationSeconds float64 `json:"duration_seconds"`
}

type reconcileService struct {
	db        *gorm.DB
	log       *logger.Logger
	policy    recon.Policy
	vendors   repos.VendorRepo
	ledger    repos.ExceptionRepo
	snapshots repos.DeviceSnapshotRepo
	matcher   *recon.Matcher
	lifecycle *recon.Lifecycle
	excSvc    ExceptionService
	snapSvc   SnapshotService
}

func NewReconcileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy recon.Policy,
	vendors repos.VendorRepo,
	snapshots repos.DeviceSnapshotRepo,
	ledger repos.ExceptionRepo,
	excSvc ExceptionService,
	snapSvc SnapshotService,
) ReconcileService {
	serviceLog := baseLog.With("service", "ReconcileService")
	return &reconcileService{
		db:        db,
		log:       serviceLog,
		policy:    policy,
		vendors:   vendors,
		ledger:    ledger,
		snapshots: snapshots,
		matcher:   recon.NewMatcher(baseLog, ledger),
		lifecycle: recon.NewLifecycle(baseLog, policy, ledger),
		excSvc:    excSvc,
		snapSvc:   snapSvc,
	}
}

func (rs *reconcileService) RunDaily(ctx context.Context, date time.Time) (*RunSummary, error) {
	date = types.DateOnly(date)
	start := time.Now()
	summary := &RunSummary{Date: date.Format("2006-01-02")}
	metrics := observability.Current()
	metrics.IncCollectionRun(false)

	rs.log.Info("Reconciliation run starting", "date", summary.Date)

	ninja, err := rs.vendors.GetByName(ctx, nil, types.VendorNinja)
	if err != nil {
		return rs.fail(summary, metrics, fmt.Errorf("resolve vendor %s: %w", types.VendorNinja, err))
	}
	tl, err := rs.vendors.GetByName(ctx, nil, types.VendorThreatLocker)
	if err != nil {
		return rs.fail(summary, metrics, fmt.Errorf("resolve vendor %s: %w", types.VendorThreatLocker, err))
	}
	if ninja == nil || tl == nil {
		// One-sided data means every cross-vendor check would fire for the
		// wrong reason. Leave the ledger untouched.
		summary.Skipped = true
		summary.SkipReason = "missing vendor registration"
		rs.log.Warn("Reconciliation skipped", "reason", summary.SkipReason,
			"ninja_present", ninja != nil, "threatlocker_present", tl != nil)
		return summary, nil
	}

	captured, err := runStage(metrics, "capture_reset", func() ([]*types.Exception, error) {
		return rs.lifecycle.CaptureAndReset(ctx, nil, date)
	})
	if err != nil {
		return rs.fail(summary, metrics, err)
	}

	set, err := runStage(metrics, "load_snapshots", func() (*recon.SnapshotSet, error) {
		return recon.LoadSnapshots(ctx, rs.db, rs.snapshots, ninja, tl, date, rs.policy)
	})
	if err != nil {
		return rs.fail(summary, metrics, err)
	}
	summary.NinjaCount = len(set.Ninja)
	summary.ThreatLockerCount = len(set.ThreatLocker)

	if len(set.Ninja) == 0 || len(set.ThreatLocker) == 0 {
		summary.Skipped = true
		summary.SkipReason = "missing snapshot data for one or both vendors"
		rs.log.Warn("Reconciliation skipped", "reason", summary.SkipReason,
			"ninja_rows", len(set.Ninja), "threatlocker_rows", len(set.ThreatLocker))
		return summary, nil
	}

	report, err := runStage(metrics, "classify", func() (*recon.RunReport, error) {
		return rs.matcher.Run(ctx, nil, set)
	})
	if err != nil {
		return rs.fail(summary, metrics, err)
	}
	summary.Matcher = report
	for excType, n := range report.Counts {
		metrics.AddExceptionsFound(excType, n)
	}
	rs.reportDataQuality(ctx, summary.Date, report.DataQuality)

	verify, err := runStage(metrics, "verify_fixes", func() (*recon.VerifyReport, error) {
		return rs.lifecycle.VerifyManualFixes(ctx, nil, set, captured)
	})
	if err != nil {
		return rs.fail(summary, metrics, err)
	}
	summary.Verify = verify

	cutoff := date.AddDate(0, 0, -rs.policy.RetentionDays)
	swept, err := runStage(metrics, "sweep", func() (int64, error) {
		return rs.ledger.SweepStale(ctx, nil, cutoff)
	})
	if err != nil {
		return rs.fail(summary, metrics, err)
	}
	summary.SweptStale = swept

	purged, err := rs.snapSvc.PurgeOld(ctx, nil, cutoff)
	if err != nil {
		return rs.fail(summary, metrics, err)
	}
	summary.PurgedSnapshots = purged

	rs.excSvc.InvalidateCaches(ctx)

	summary.DurationSeconds = time.Since(start).Seconds()
	rs.log.Info("Reconciliation run complete",
		"date", summary.Date,
		"ninja_rows", summary.NinjaCount,
		"threatlocker_rows", summary.ThreatLockerCount,
		"exceptions", report.Counts,
		"verified", verify.Verified,
		"stale", verify.Stale,
		"swept_stale", swept,
		"purged_snapshots", purged,
		"duration_seconds", summary.DurationSeconds,
	)
	return summary, nil
}

func (rs *reconcileService) fail(summary *RunSummary, metrics *observability.Metrics, err error) (*RunSummary, error) {
	metrics.IncCollectionRun(true)
	rs.log.Error("Reconciliation run failed", "date", summary.Date, "error", err)
	return nil, err
}

// runStage runs one run phase under a duration metric.
func runStage[T any](metrics *observability.Metrics, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveCollectionStage(name, status, time.Since(start))
	return out, err
}

func (rs *reconcileService) reportDataQuality(ctx context.Context, date string, dq recon.DataQualityReport) {
	issues := map[string]int{}
	if dq.TLContaminatedCount > 0 {
		issues[recon.DQContaminatedHostname] = dq.TLContaminatedCount
	}
	if dq.TLEmptyHostnames > 0 {
		issues[recon.DQEmptyHostname] = issues[recon.DQEmptyHostname] + dq.TLEmptyHostnames
	}
	if dq.NinjaEmptyHostnames > 0 {
		issues[recon.DQEmptyHostname] = issues[recon.DQEmptyHostname] + dq.NinjaEmptyHostnames
	}
	if len(issues) == 0 {
		return
	}
	samples := make([]string, 0, 3)
	for _, w := range dq.Warnings {
		if len(samples) == 3 {
			break
		}
		if w.RawHostname != "" {
			samples = append(samples, w.RawHostname)
		}
	}
	observability.ReportDataQuality(ctx, rs.log, "reconcile", issues, samples, map[string]any{"date": date})
}
