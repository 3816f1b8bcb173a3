package db

import (
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Vendor reference data
		&types.Vendor{},

		// Per-vendor, per-day device rows written by collectors
		&types.DeviceSnapshot{},

		// Cross-vendor discrepancy ledger
		&types.Exception{},
	)
}
