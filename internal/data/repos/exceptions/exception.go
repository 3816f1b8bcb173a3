package exceptions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

// MarkFixedOutcome discriminates mutation results for callers that retry:
// dashboards re-asserting a fix must see already_resolved, never an error.
type MarkFixedOutcome string

const (
	OutcomeUpdated         MarkFixedOutcome = "updated"
	OutcomeAlreadyResolved MarkFixedOutcome = "already_resolved"
	OutcomeNotFound        MarkFixedOutcome = "not_found"
)

// BulkAction names accepted by BulkUpdate.
const (
	BulkMarkManuallyFixed = "mark_manually_fixed"
	BulkResolve           = "resolve"
	BulkResetStatus       = "reset_status"
)

type QueryFilter struct {
	Type           string
	Resolved       *bool
	VarianceStatus string
	Hostname       string
	DateFrom       *time.Time
	DateTo         *time.Time
	Page           int
	PageSize       int
}

type StatusCount struct {
	VarianceStatus string `json:"variance_status"`
	Type           string `json:"type"`
	Count          int64  `json:"count"`
}

type ExceptionRepo interface {
	Insert(ctx context.Context, tx *gorm.DB, rows []*types.Exception) error
	// ReplaceForDate clears the (type, date) partition and inserts the fresh
	// rows as one transaction. A reader never observes the partition empty or
	// half-written.
	ReplaceForDate(ctx context.Context, tx *gorm.DB, excType string, date time.Time, rows []*types.Exception) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Exception, error)
	FindByTypeHostnameDate(ctx context.Context, tx *gorm.DB, excType, hostname string, date time.Time) (*types.Exception, error)
	GetManuallyFixed(ctx context.Context, tx *gorm.DB, date time.Time) ([]*types.Exception, error)
	ResetVarianceForDate(ctx context.Context, tx *gorm.DB, date time.Time) (int64, error)
	Resolve(ctx context.Context, tx *gorm.DB, id uuid.UUID, resolvedBy string) (MarkFixedOutcome, error)
	MarkManuallyFixedByID(ctx context.Context, tx *gorm.DB, id uuid.UUID, updatedBy, updateType, oldValue, newValue string) (MarkFixedOutcome, error)
	MarkManuallyFixedByHostname(ctx context.Context, tx *gorm.DB, excType, hostname string, date time.Time, updatedBy, updateType, oldValue, newValue string) (MarkFixedOutcome, error)
	SetVarianceStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, resolved bool) error
	// ApplyVerification sets a verification outcome on a regenerated row and
	// carries the operator's manual-fix audit fields over from the captured
	// pre-reset row.
	ApplyVerification(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, resolved bool, audit *types.Exception) error
	BulkUpdate(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, action, actor string) (int64, error)
	Query(ctx context.Context, tx *gorm.DB, filter QueryFilter) ([]*types.Exception, int64, error)
	StatusSummary(ctx context.Context, tx *gorm.DB, since time.Time) ([]StatusCount, error)
	RecentManualUpdates(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Exception, error)
	SweepStale(ctx context.Context, tx *gorm.DB, olderThan time.Time) (int64, error)
}

type exceptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExceptionRepo(db *gorm.DB, baseLog *logger.Logger) ExceptionRepo {
	return &exceptionRepo{db: db, log: baseLog.With("repo", "ExceptionRepo")}
}

func (er *exceptionRepo) Insert(ctx context.Context, tx *gorm.DB, rows []*types.Exception) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		row.DateFound = types.DateOnly(row.DateFound)
		if row.VarianceStatus == "" {
			row.VarianceStatus = types.VarianceActive
		}
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (er *exceptionRepo) ReplaceForDate(ctx context.Context, tx *gorm.DB, excType string, date time.Time, rows []*types.Exception) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	date = types.DateOnly(date)
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.
			Where("type = ? AND date_found = ?", excType, date).
			Delete(&types.Exception{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			row.Type = excType
			row.DateFound = date
			if row.VarianceStatus == "" {
				row.VarianceStatus = types.VarianceActive
			}
		}
		return txx.Create(&rows).Error
	})
}

func (er *exceptionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Exception, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var out []*types.Exception
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (er *exceptionRepo) FindByTypeHostnameDate(ctx context.Context, tx *gorm.DB, excType, hostname string, date time.Time) (*types.Exception, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	hostname = strings.TrimSpace(strings.ToLower(hostname))
	if excType == "" || hostname == "" {
		return nil, nil
	}
	var row types.Exception
	err := transaction.WithContext(ctx).
		Where("type = ? AND LOWER(hostname) = ? AND date_found = ?", excType, hostname, types.DateOnly(date)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (er *exceptionRepo) GetManuallyFixed(ctx context.Context, tx *gorm.DB, date time.Time) ([]*types.Exception, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var out []*types.Exception
	if err := transaction.WithContext(ctx).
		Where("date_found = ? AND variance_status = ?", types.DateOnly(date), types.VarianceManuallyFixed).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ResetVarianceForDate flips manually_fixed and stale rows back to active so
// the upcoming classification pass starts from a clean slate. Rows resolved
// explicitly by an operator keep their resolved flag.
func (er *exceptionRepo) ResetVarianceForDate(ctx context.Context, tx *gorm.DB, date time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	now := time.Now().UTC()
	res := transaction.WithContext(ctx).
		Model(&types.Exception{}).
		Where("date_found = ? AND variance_status IN ?", types.DateOnly(date),
			[]string{types.VarianceManuallyFixed, types.VarianceStale}).
		Updates(map[string]interface{}{
			"variance_status": types.VarianceActive,
			"resolved":        gorm.Expr("CASE WHEN resolved_by <> '' THEN resolved ELSE false END"),
			"updated_at":      now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (er *exceptionRepo) Resolve(ctx context.Context, tx *gorm.DB, id uuid.UUID, resolvedBy string) (MarkFixedOutcome, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if id == uuid.Nil {
		return OutcomeNotFound, nil
	}
	var row types.Exception
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if row.Resolved {
		return OutcomeAlreadyResolved, nil
	}
	now := time.Now().UTC()
	uErr := transaction.WithContext(ctx).
		Model(&types.Exception{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved":      true,
			"resolved_by":   resolvedBy,
			"resolved_date": now,
			"updated_at":    now,
		}).Error
	if uErr != nil {
		return "", uErr
	}
	return OutcomeUpdated, nil
}

func (er *exceptionRepo) MarkManuallyFixedByID(ctx context.Context, tx *gorm.DB, id uuid.UUID, updatedBy, updateType, oldValue, newValue string) (MarkFixedOutcome, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if id == uuid.Nil {
		return OutcomeNotFound, nil
	}
	var row types.Exception
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", err
	}
	return er.applyManualFix(ctx, transaction, &row, updatedBy, updateType, oldValue, newValue)
}

func (er *exceptionRepo) MarkManuallyFixedByHostname(ctx context.Context, tx *gorm.DB, excType, hostname string, date time.Time, updatedBy, updateType, oldValue, newValue string) (MarkFixedOutcome, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	row, err := er.FindByTypeHostnameDate(ctx, transaction, excType, hostname, date)
	if err != nil {
		return "", err
	}
	if row == nil {
		return OutcomeNotFound, nil
	}
	return er.applyManualFix(ctx, transaction, row, updatedBy, updateType, oldValue, newValue)
}

func (er *exceptionRepo) applyManualFix(ctx context.Context, transaction *gorm.DB, row *types.Exception, updatedBy, updateType, oldValue, newValue string) (MarkFixedOutcome, error) {
	if row.Resolved && (row.VarianceStatus == types.VarianceManuallyFixed || row.VarianceStatus == types.VarianceCollectorVerified) {
		return OutcomeAlreadyResolved, nil
	}
	now := time.Now().UTC()
	err := transaction.WithContext(ctx).
		Model(&types.Exception{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"resolved":            true,
			"variance_status":     types.VarianceManuallyFixed,
			"manually_updated_by": updatedBy,
			"manually_updated_at": now,
			"update_type":         updateType,
			"old_value":           oldValue,
			"new_value":           newValue,
			"updated_at":          now,
		}).Error
	if err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

func (er *exceptionRepo) SetVarianceStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, resolved bool) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.Exception{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"variance_status": status,
			"resolved":        resolved,
			"updated_at":      now,
		}).Error
}

func (er *exceptionRepo) ApplyVerification(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, resolved bool, audit *types.Exception) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"variance_status": status,
		"resolved":        resolved,
		"updated_at":      now,
	}
	if audit != nil {
		updates["manually_updated_by"] = audit.ManuallyUpdatedBy
		updates["manually_updated_at"] = audit.ManuallyUpdatedAt
		updates["update_type"] = audit.UpdateType
		updates["old_value"] = audit.OldValue
		updates["new_value"] = audit.NewValue
	}
	return transaction.WithContext(ctx).
		Model(&types.Exception{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (er *exceptionRepo) BulkUpdate(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, action, actor string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	var updates map[string]interface{}
	switch action {
	case BulkMarkManuallyFixed:
		updates = map[string]interface{}{
			"resolved":            true,
			"variance_status":     types.VarianceManuallyFixed,
			"manually_updated_by": actor,
			"manually_updated_at": now,
			"update_type":         "bulk_mark_fixed",
			"updated_at":          now,
		}
	case BulkResolve:
		updates = map[string]interface{}{
			"resolved":      true,
			"resolved_by":   actor,
			"resolved_date": now,
			"updated_at":    now,
		}
	case BulkResetStatus:
		updates = map[string]interface{}{
			"resolved":        false,
			"variance_status": types.VarianceActive,
			"updated_at":      now,
		}
	default:
		return 0, errors.New("unknown bulk action: " + action)
	}
	res := transaction.WithContext(ctx).
		Model(&types.Exception{}).
		Where("id IN ?", ids).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (er *exceptionRepo) Query(ctx context.Context, tx *gorm.DB, filter QueryFilter) ([]*types.Exception, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}

	q := transaction.WithContext(ctx).Model(&types.Exception{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Resolved != nil {
		q = q.Where("resolved = ?", *filter.Resolved)
	}
	if filter.VarianceStatus != "" {
		q = q.Where("variance_status = ?", filter.VarianceStatus)
	}
	if filter.Hostname != "" {
		q = q.Where("LOWER(hostname) = ?", strings.ToLower(strings.TrimSpace(filter.Hostname)))
	}
	if filter.DateFrom != nil {
		q = q.Where("date_found >= ?", types.DateOnly(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		q = q.Where("date_found <= ?", types.DateOnly(*filter.DateTo))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 500 {
		pageSize = 100
	}

	var rows []*types.Exception
	err := q.
		Order("date_found DESC, type ASC, hostname ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (er *exceptionRepo) StatusSummary(ctx context.Context, tx *gorm.DB, since time.Time) ([]StatusCount, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var out []StatusCount
	err := transaction.WithContext(ctx).
		Model(&types.Exception{}).
		Select("variance_status, type, COUNT(*) AS count").
		Where("date_found >= ?", types.DateOnly(since)).
		Group("variance_status, type").
		Order("variance_status ASC, type ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (er *exceptionRepo) RecentManualUpdates(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Exception, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var out []*types.Exception
	err := transaction.WithContext(ctx).
		Where("manually_updated_at IS NOT NULL").
		Order("manually_updated_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SweepStale hard-deletes stale, unresolved rows older than the cutoff. This
// and partition regeneration are the only paths that destroy ledger rows.
func (er *exceptionRepo) SweepStale(ctx context.Context, tx *gorm.DB, olderThan time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	res := transaction.WithContext(ctx).
		Where("variance_status = ? AND resolved = ? AND date_found < ?",
			types.VarianceStale, false, types.DateOnly(olderThan)).
		Delete(&types.Exception{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
