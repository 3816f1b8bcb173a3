package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
)

func SeedVendor(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Vendor {
	tb.Helper()
	v := &types.Vendor{
		ID:   uuid.New(),
		Name: name,
		Slug: strings.ToLower(name),
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed vendor: %v", err)
	}
	return v
}

func SeedSnapshot(tb testing.TB, ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, date time.Time, hostname, org, site string) *types.DeviceSnapshot {
	tb.Helper()
	s := &types.DeviceSnapshot{
		ID:               uuid.New(),
		VendorID:         vendorID,
		SnapshotDate:     types.DateOnly(date),
		Hostname:         hostname,
		DisplayName:      hostname,
		OrganizationName: org,
		SiteName:         site,
		DeviceType:       "workstation",
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed snapshot: %v", err)
	}
	return s
}

func SeedException(tb testing.TB, ctx context.Context, tx *gorm.DB, excType, hostname string, date time.Time) *types.Exception {
	tb.Helper()
	e := &types.Exception{
		ID:             uuid.New(),
		DateFound:      types.DateOnly(date),
		Type:           excType,
		Hostname:       hostname,
		Details:        datatypes.JSON([]byte("{}")),
		VarianceStatus: types.VarianceActive,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed exception: %v", err)
	}
	return e
}
