package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/data/repos/testutil"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
)

func newTestTx(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.Tx(t, testutil.DB(t))
}

func TestUpsertBatchOverwritesOnConflict(t *testing.T) {
	tx := newTestTx(t)
	repo := NewDeviceSnapshotRepo(tx, testutil.Logger(t))
	ctx := context.Background()
	today := types.DateOnly(time.Now())

	vendor := testutil.SeedVendor(t, ctx, tx, types.VendorNinja)

	first := &types.DeviceSnapshot{
		ID:               uuid.New(),
		VendorID:         vendor.ID,
		SnapshotDate:     today,
		Hostname:         "ws-upsert-01",
		DisplayName:      "WS-UPSERT-01",
		OrganizationName: "Acme Corp",
		SiteName:         "Main Office",
		DeviceType:       "workstation",
		BillingStatus:    "billable",
	}
	if _, err := repo.UpsertBatch(ctx, tx, []*types.DeviceSnapshot{first}); err != nil {
		t.Fatalf("first UpsertBatch: %v", err)
	}

	// Same (vendor, date, hostname) key with changed attributes.
	second := &types.DeviceSnapshot{
		ID:               uuid.New(),
		VendorID:         vendor.ID,
		SnapshotDate:     today,
		Hostname:         "ws-upsert-01",
		DisplayName:      "WS-UPSERT-01",
		OrganizationName: "Acme Corp",
		SiteName:         "Branch Office",
		DeviceType:       "workstation",
		BillingStatus:    "spare",
	}
	if _, err := repo.UpsertBatch(ctx, tx, []*types.DeviceSnapshot{second}); err != nil {
		t.Fatalf("second UpsertBatch: %v", err)
	}

	rows, err := repo.GetByVendorAndDate(ctx, tx, vendor.ID, today)
	if err != nil {
		t.Fatalf("GetByVendorAndDate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("row count after conflicting upsert = %d, want 1", len(rows))
	}
	if rows[0].SiteName != "Branch Office" || rows[0].BillingStatus != "spare" {
		t.Fatalf("conflict did not overwrite attributes: %+v", rows[0])
	}
}

func TestUpsertBatchNormalizesSnapshotDate(t *testing.T) {
	tx := newTestTx(t)
	repo := NewDeviceSnapshotRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	vendor := testutil.SeedVendor(t, ctx, tx, types.VendorThreatLocker)
	stamp := time.Date(2026, 8, 31, 14, 45, 9, 0, time.UTC)

	row := &types.DeviceSnapshot{
		ID:           uuid.New(),
		VendorID:     vendor.ID,
		SnapshotDate: stamp,
		Hostname:     "ws-date-01",
	}
	if _, err := repo.UpsertBatch(ctx, tx, []*types.DeviceSnapshot{row}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	count, err := repo.CountByVendorAndDate(ctx, tx, vendor.ID, types.DateOnly(stamp))
	if err != nil {
		t.Fatalf("CountByVendorAndDate: %v", err)
	}
	if count != 1 {
		t.Fatalf("count by truncated date = %d, want 1", count)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	tx := newTestTx(t)
	repo := NewDeviceSnapshotRepo(tx, testutil.Logger(t))
	ctx := context.Background()
	today := types.DateOnly(time.Now())
	old := today.AddDate(0, 0, -70)

	vendor := testutil.SeedVendor(t, ctx, tx, types.VendorNinja)
	testutil.SeedSnapshot(t, ctx, tx, vendor.ID, old, "ws-ret-old", "Acme Corp", "Main Office")
	testutil.SeedSnapshot(t, ctx, tx, vendor.ID, today, "ws-ret-new", "Acme Corp", "Main Office")

	deleted, err := repo.DeleteOlderThan(ctx, tx, today.AddDate(0, 0, -60))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	count, err := repo.CountByVendorAndDate(ctx, tx, vendor.ID, today)
	if err != nil || count != 1 {
		t.Fatalf("recent snapshot lost: count=%d err=%v", count, err)
	}
}

func TestVendorEnsureByName(t *testing.T) {
	tx := newTestTx(t)
	repo := NewVendorRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	created, err := repo.EnsureByName(ctx, tx, types.VendorNinja)
	if err != nil {
		t.Fatalf("EnsureByName create: %v", err)
	}
	if created == nil || created.Slug != "ninja" {
		t.Fatalf("created vendor = %+v, want slug ninja", created)
	}

	again, err := repo.EnsureByName(ctx, tx, types.VendorNinja)
	if err != nil {
		t.Fatalf("EnsureByName existing: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("EnsureByName returned a second row: %s vs %s", again.ID, created.ID)
	}

	missing, err := repo.GetByName(ctx, tx, "Datto")
	if err != nil {
		t.Fatalf("GetByName absent vendor: %v", err)
	}
	if missing != nil {
		t.Fatalf("absent vendor returned %+v, want nil", missing)
	}

	vendors, err := repo.List(ctx, tx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(vendors) != 1 {
		t.Fatalf("vendor list length = %d, want 1", len(vendors))
	}
}
