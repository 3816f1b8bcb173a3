package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/data/repos"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/observability"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

type SnapshotService interface {
	// IngestBatch upserts one collector's rows for a vendor and date.
	// Re-running a collector for the same date updates in place.
	IngestBatch(ctx context.Context, tx *gorm.DB, vendorName string, date time.Time, rows []SnapshotInput) (int, error)
	CountsForDate(ctx context.Context, tx *gorm.DB, date time.Time) (map[string]int64, error)
	PurgeOld(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type SnapshotInput struct {
	Hostname         string `json:"hostname"`
	DisplayName      string `json:"display_name"`
	OrganizationName string `json:"organization_name"`
	SiteName         string `json:"site_name"`
	DeviceType       string `json:"device_type"`
	BillingStatus    string `json:"billing_status"`
}

type snapshotService struct {
	db        *gorm.DB
	log       *logger.Logger
	vendors   repos.VendorRepo
	snapshots repos.DeviceSnapshotRepo
}

func NewSnapshotService(
	db *gorm.DB,
	baseLog *logger.Logger,
	vendors repos.VendorRepo,
	snapshots repos.DeviceSnapshotRepo,
) SnapshotService {
	return &snapshotService{
		db:        db,
		log:       baseLog.With("service", "SnapshotService"),
		vendors:   vendors,
		snapshots: snapshots,
	}
}

func (ss *snapshotService) IngestBatch(ctx context.Context, tx *gorm.DB, vendorName string, date time.Time, rows []SnapshotInput) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	vendorName = strings.TrimSpace(vendorName)
	if vendorName == "" {
		return 0, fmt.Errorf("vendor name required")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	vendor, err := ss.vendors.EnsureByName(ctx, transaction, vendorName)
	if err != nil {
		return 0, fmt.Errorf("ensure vendor %s: %w", vendorName, err)
	}

	date = types.DateOnly(date)
	snapshots := make([]*types.DeviceSnapshot, 0, len(rows))
	skipped := 0
	for _, in := range rows {
		hostname := strings.TrimSpace(in.Hostname)
		if hostname == "" {
			skipped++
			continue
		}
		snapshots = append(snapshots, &types.DeviceSnapshot{
			ID:               uuid.New(),
			VendorID:         vendor.ID,
			SnapshotDate:     date,
			Hostname:         hostname,
			DisplayName:      strings.TrimSpace(in.DisplayName),
			OrganizationName: strings.TrimSpace(in.OrganizationName),
			SiteName:         strings.TrimSpace(in.SiteName),
			DeviceType:       strings.TrimSpace(in.DeviceType),
			BillingStatus:    strings.ToLower(strings.TrimSpace(in.BillingStatus)),
		})
	}
	if skipped > 0 {
		observability.ReportDataQuality(ctx, ss.log, "ingest",
			map[string]int{"empty_hostname": skipped},
			nil,
			map[string]any{"vendor": vendorName, "date": date.Format("2006-01-02")},
		)
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	n, err := ss.snapshots.UpsertBatch(ctx, transaction, snapshots)
	if err != nil {
		ss.log.Error("IngestBatch failed", "vendor", vendorName, "error", err)
		return 0, fmt.Errorf("upsert %s snapshots: %w", vendorName, err)
	}
	observability.Current().AddSnapshotRows(vendorName, n)
	ss.log.Info("Snapshot batch ingested",
		"vendor", vendorName,
		"date", date.Format("2006-01-02"),
		"rows", n,
		"skipped_empty", skipped,
	)
	return n, nil
}

func (ss *snapshotService) CountsForDate(ctx context.Context, tx *gorm.DB, date time.Time) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	vendors, err := ss.vendors.List(ctx, transaction)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	counts := make(map[string]int64, len(vendors))
	for _, vendor := range vendors {
		n, err := ss.snapshots.CountByVendorAndDate(ctx, transaction, vendor.ID, date)
		if err != nil {
			return nil, fmt.Errorf("count %s snapshots: %w", vendor.Name, err)
		}
		counts[vendor.Name] = n
	}
	return counts, nil
}

func (ss *snapshotService) PurgeOld(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	n, err := ss.snapshots.DeleteOlderThan(ctx, transaction, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	if n > 0 {
		ss.log.Info("Old snapshots purged", "cutoff", cutoff.Format("2006-01-02"), "rows", n)
	}
	return n, nil
}
