package inventory

import (
	"time"

	"github.com/google/uuid"
)

// DeviceSnapshot is one vendor's view of one device on one calendar date.
// Rows are immutable once a day's collection commits; re-running the same
// day's collector upserts in place on (vendor_id, snapshot_date, hostname).
type DeviceSnapshot struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VendorID         uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_snapshot_vendor_date_hostname,priority:1" json:"vendor_id"`
	SnapshotDate     time.Time `gorm:"type:date;not null;index;uniqueIndex:ux_snapshot_vendor_date_hostname,priority:2" json:"snapshot_date"`
	Hostname         string    `gorm:"column:hostname;not null;uniqueIndex:ux_snapshot_vendor_date_hostname,priority:3" json:"hostname"`
	DisplayName      string    `gorm:"column:display_name" json:"display_name,omitempty"`
	OrganizationName string    `gorm:"column:organization_name;index" json:"organization_name,omitempty"`
	SiteName         string    `gorm:"column:site_name" json:"site_name,omitempty"`
	DeviceType       string    `gorm:"column:device_type" json:"device_type,omitempty"`
	BillingStatus    string    `gorm:"column:billing_status;index" json:"billing_status,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DeviceSnapshot) TableName() string { return "device_snapshot" }

// DateOnly truncates a timestamp to its UTC calendar date. Snapshot and
// exception rows are keyed on dates, never instants.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
