package recon

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/data/repos"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

// Lifecycle manages the variance state machine around a collection run:
//
//	active -> manually_fixed            (operator)
//	manually_fixed -> collector_verified (verification: cause absent)
//	manually_fixed -> stale              (verification: cause present)
//	manually_fixed/stale -> active       (pre-collection reset)
type Lifecycle struct {
	log    *logger.Logger
	policy Policy
	ledger repos.ExceptionRepo
}

func NewLifecycle(baseLog *logger.Logger, policy Policy, ledger repos.ExceptionRepo) *Lifecycle {
	return &Lifecycle{
		log:    baseLog.With("component", "Lifecycle"),
		policy: policy,
		ledger: ledger,
	}
}

// CaptureAndReset snapshots the rows currently asserted manually_fixed for
// the date, then flips manually_fixed and stale rows back to active so the
// upcoming classification pass starts from a clean slate. The captured rows
// feed post-collection verification.
func (lc *Lifecycle) CaptureAndReset(ctx context.Context, tx *gorm.DB, date time.Time) ([]*types.Exception, error) {
	captured, err := lc.ledger.GetManuallyFixed(ctx, tx, date)
	if err != nil {
		return nil, fmt.Errorf("capture manually fixed for %s: %w", date.Format("2006-01-02"), err)
	}
	reset, err := lc.ledger.ResetVarianceForDate(ctx, tx, date)
	if err != nil {
		return nil, fmt.Errorf("reset variance for %s: %w", date.Format("2006-01-02"), err)
	}
	lc.log.Info("Pre-collection variance reset",
		"date", date.Format("2006-01-02"),
		"manually_fixed_captured", len(captured),
		"rows_reset", reset,
	)
	return captured, nil
}

type VerifyReport struct {
	Verified        int `json:"verified"`
	Stale           int `json:"stale"`
	AssumedVerified int `json:"assumed_verified"`
}

// VerifyManualFixes re-checks each previously manually-fixed row against the
// fresh snapshot data the matcher just classified. A fix whose underlying
// cause is gone becomes collector_verified; one whose cause persists becomes
// stale on the regenerated row. Unknown exception types follow the
// configured UnknownTypePolicy rather than blocking the run.
func (lc *Lifecycle) VerifyManualFixes(ctx context.Context, tx *gorm.DB, set *SnapshotSet, captured []*types.Exception) (*VerifyReport, error) {
	report := &VerifyReport{}
	for _, row := range captured {
		effective, known := lc.fixEffective(set, row)
		if !known {
			switch lc.policy.UnknownTypePolicy {
			case MarkStale:
				effective = false
			default:
				effective = true
				report.AssumedVerified++
			}
			lc.log.Warn("Unknown exception type during fix verification",
				"type", row.Type,
				"hostname", row.Hostname,
				"policy", string(lc.policy.UnknownTypePolicy),
			)
		}

		fresh, err := lc.ledger.FindByTypeHostnameDate(ctx, tx, row.Type, row.Hostname, set.Date)
		if err != nil {
			return nil, fmt.Errorf("lookup regenerated %s/%s: %w", row.Type, row.Hostname, err)
		}

		if effective {
			report.Verified++
			if fresh != nil {
				if err := lc.ledger.ApplyVerification(ctx, tx, fresh.ID, types.VarianceCollectorVerified, true, row); err != nil {
					return nil, err
				}
				continue
			}
			// The cause is gone, so regeneration dropped the row. Re-insert
			// the operator's assertion as verified so the fix stays visible
			// (and auditable) in today's ledger.
			verified := *row
			verified.VarianceStatus = types.VarianceCollectorVerified
			verified.Resolved = true
			if err := lc.ledger.Insert(ctx, tx, []*types.Exception{&verified}); err != nil {
				return nil, fmt.Errorf("reinsert verified %s/%s: %w", row.Type, row.Hostname, err)
			}
			continue
		}

		report.Stale++
		if fresh == nil {
			// Cause present per the check but no regenerated row; the
			// snapshot moved between classification and verification. Log
			// and move on rather than inventing a row.
			lc.log.Warn("Stale manual fix has no regenerated exception row",
				"type", row.Type, "hostname", row.Hostname)
			continue
		}
		if err := lc.ledger.ApplyVerification(ctx, tx, fresh.ID, types.VarianceStale, false, row); err != nil {
			return nil, err
		}
	}

	if len(captured) > 0 {
		lc.log.Info("Manual fix verification complete",
			"date", set.Date.Format("2006-01-02"),
			"verified", report.Verified,
			"stale", report.Stale,
			"assumed_verified", report.AssumedVerified,
		)
	}
	return report, nil
}

// fixEffective runs the type-specific effectiveness check. The second return
// is false for types with no check.
func (lc *Lifecycle) fixEffective(set *SnapshotSet, row *types.Exception) (bool, bool) {
	key := set.Policy.CanonicalKey(row.Hostname, set.Policy.ThreatLocker)
	switch row.Type {
	case types.TypeMissingNinja:
		return len(set.NinjaByKey(key)) > 0, true
	case types.TypeDuplicateTL:
		return len(set.TLByKey(key)) <= 1, true
	case types.TypeSiteMismatch:
		return pairResolved(set, key, pairSite), true
	case types.TypeSpareMismatch:
		return pairResolved(set, key, pairSpare), true
	case types.TypeDisplayNameMismatch:
		return pairResolved(set, key, pairDisplay), true
	default:
		return false, false
	}
}

// pairResolved reports whether a shared-key pair no longer lands in the given
// category. A device absent from either vendor has no pair left to conflict.
func pairResolved(set *SnapshotSet, key, category string) bool {
	ninja, tl := set.NinjaByKey(key), set.TLByKey(key)
	if len(ninja) == 0 || len(tl) == 0 {
		return true
	}
	return pairCategory(set, ninja[0], tl[0]) != category
}
