package exceptions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Exception types. One ledger partition exists per (type, date_found).
const (
	TypeMissingNinja        = "missing_ninja"
	TypeDuplicateTL         = "duplicate_tl"
	TypeSiteMismatch        = "site_mismatch"
	TypeSpareMismatch       = "spare_mismatch"
	TypeDisplayNameMismatch = "display_name_mismatch"
)

func AllTypes() []string {
	return []string{
		TypeMissingNinja,
		TypeDuplicateTL,
		TypeSiteMismatch,
		TypeSpareMismatch,
		TypeDisplayNameMismatch,
	}
}

// Variance statuses. Transitions are one-directional within a run and reset
// to active at the start of the next collection cycle for the same date.
const (
	VarianceActive            = "active"
	VarianceManuallyFixed     = "manually_fixed"
	VarianceCollectorVerified = "collector_verified"
	VarianceStale             = "stale"
)

type Exception struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DateFound      time.Time      `gorm:"type:date;not null;index:idx_exception_type_date,priority:2;index" json:"date_found"`
	Type           string         `gorm:"column:type;not null;index:idx_exception_type_date,priority:1" json:"type"`
	Hostname       string         `gorm:"column:hostname;not null;index" json:"hostname"`
	Details        datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
	Resolved       bool           `gorm:"column:resolved;not null;default:false;index" json:"resolved"`
	ResolvedBy     string         `gorm:"column:resolved_by" json:"resolved_by,omitempty"`
	ResolvedDate   *time.Time     `gorm:"column:resolved_date" json:"resolved_date,omitempty"`
	VarianceStatus string         `gorm:"column:variance_status;not null;default:active;index" json:"variance_status"`

	ManuallyUpdatedBy string     `gorm:"column:manually_updated_by" json:"manually_updated_by,omitempty"`
	ManuallyUpdatedAt *time.Time `gorm:"column:manually_updated_at;index" json:"manually_updated_at,omitempty"`
	UpdateType        string     `gorm:"column:update_type" json:"update_type,omitempty"`
	OldValue          string     `gorm:"column:old_value" json:"old_value,omitempty"`
	NewValue          string     `gorm:"column:new_value" json:"new_value,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Exception) TableName() string { return "exception" }
