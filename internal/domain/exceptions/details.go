package exceptions

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Per-type detail payloads. Key names are load-bearing: the dashboard reads
// them straight out of the jsonb column, so renames break existing consumers.

type MissingNinjaDetails struct {
	TLOrgName  string `json:"tl_org_name"`
	TLSiteName string `json:"tl_site_name,omitempty"`
	// Populated only when the stored hostname carried the contamination
	// separator; data_quality_issue makes the upstream field-mapping bug
	// visible to operators without suppressing the exception.
	RawHostname      string `json:"raw_hostname,omitempty"`
	CleanHostname    string `json:"clean_hostname,omitempty"`
	DataQualityIssue bool   `json:"data_quality_issue,omitempty"`
}

type DuplicateTLDetails struct {
	DuplicateHostnames []string `json:"duplicate_hostnames"`
	Sites              []string `json:"sites"`
	Organizations      []string `json:"organizations"`
	PrimaryOrgName     string   `json:"primary_org_name,omitempty"`
}

type SiteMismatchDetails struct {
	NinjaSiteName string `json:"ninja_site_name"`
	TLSiteName    string `json:"tl_site_name"`
	NinjaOrgName  string `json:"ninja_org_name,omitempty"`
	TLOrgName     string `json:"tl_org_name,omitempty"`
}

type SpareMismatchDetails struct {
	NinjaBillingStatus string `json:"ninja_billing_status"`
	NinjaOrgName       string `json:"ninja_org_name,omitempty"`
	TLOrgName          string `json:"tl_org_name,omitempty"`
	TLSiteName         string `json:"tl_site_name,omitempty"`
}

type DisplayNameMismatchDetails struct {
	NinjaDisplayName string `json:"ninja_display_name"`
	TLDisplayName    string `json:"tl_display_name"`
	NinjaOrgName     string `json:"ninja_org_name,omitempty"`
	TLOrgName        string `json:"tl_org_name,omitempty"`
}

// MarshalDetails renders a typed detail payload into the jsonb column value.
func MarshalDetails(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
