package inventory

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Canonical vendor names used by the matcher. The reference table may carry
// more vendors, but only these two participate in cross-vendor passes.
const (
	VendorNinja        = "Ninja"
	VendorThreatLocker = "ThreatLocker"
)

type Vendor struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Slug      string         `gorm:"column:slug;not null;index" json:"slug"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Vendor) TableName() string { return "vendor" }
