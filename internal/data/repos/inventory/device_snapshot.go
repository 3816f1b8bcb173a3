package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

type DeviceSnapshotRepo interface {
	UpsertBatch(ctx context.Context, tx *gorm.DB, rows []*types.DeviceSnapshot) (int, error)
	GetByVendorAndDate(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, date time.Time) ([]*types.DeviceSnapshot, error)
	CountByVendorAndDate(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, date time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deviceSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeviceSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) DeviceSnapshotRepo {
	return &deviceSnapshotRepo{db: db, log: baseLog.With("repo", "DeviceSnapshotRepo")}
}

// UpsertBatch writes a collector's rows for one day. Conflicts on
// (vendor_id, snapshot_date, hostname) overwrite in place so re-running a
// day's collection is safe.
func (dr *deviceSnapshotRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, rows []*types.DeviceSnapshot) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		row.SnapshotDate = types.DateOnly(row.SnapshotDate)
	}
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "vendor_id"},
				{Name: "snapshot_date"},
				{Name: "hostname"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name",
				"organization_name",
				"site_name",
				"device_type",
				"billing_status",
				"updated_at",
			}),
		}).
		Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (dr *deviceSnapshotRepo) GetByVendorAndDate(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, date time.Time) ([]*types.DeviceSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var out []*types.DeviceSnapshot
	if vendorID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("vendor_id = ? AND snapshot_date = ?", vendorID, types.DateOnly(date)).
		Order("hostname ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (dr *deviceSnapshotRepo) CountByVendorAndDate(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, date time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if vendorID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.DeviceSnapshot{}).
		Where("vendor_id = ? AND snapshot_date = ?", vendorID, types.DateOnly(date)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (dr *deviceSnapshotRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	res := transaction.WithContext(ctx).
		Where("snapshot_date < ?", types.DateOnly(cutoff)).
		Delete(&types.DeviceSnapshot{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
