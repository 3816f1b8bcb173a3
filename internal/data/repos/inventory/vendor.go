package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

const pgUniqueViolation = "23505"

type VendorRepo interface {
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Vendor, error)
	EnsureByName(ctx context.Context, tx *gorm.DB, name string) (*types.Vendor, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Vendor, error)
}

type vendorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVendorRepo(db *gorm.DB, baseLog *logger.Logger) VendorRepo {
	return &vendorRepo{db: db, log: baseLog.With("repo", "VendorRepo")}
}

// GetByName returns nil, nil when the vendor is absent. A deployment with
// only one vendor's collector wired up is a degraded state, not an error.
func (vr *vendorRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Vendor, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var vendor types.Vendor
	err := transaction.WithContext(ctx).
		Where("name = ?", name).
		First(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (vr *vendorRepo) EnsureByName(ctx context.Context, tx *gorm.DB, name string) (*types.Vendor, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	existing, err := vr.GetByName(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	vendor := &types.Vendor{
		Name: strings.TrimSpace(name),
		Slug: strings.ToLower(strings.TrimSpace(name)),
	}
	if err := transaction.WithContext(ctx).Create(vendor).Error; err != nil {
		// A concurrent seed may have won the insert race.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return vr.GetByName(ctx, tx, name)
		}
		return nil, err
	}
	return vendor, nil
}

func (vr *vendorRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Vendor, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var out []*types.Vendor
	if err := transaction.WithContext(ctx).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
