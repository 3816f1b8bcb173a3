package recon

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
)

// UnknownTypePolicy controls what post-collection verification does with an
// exception type it has no effectiveness check for. The legacy behavior is
// optimistic; it is kept as the default but named so product review can flip it.
type UnknownTypePolicy string

const (
	AssumeVerified UnknownTypePolicy = "assume_verified"
	MarkStale      UnknownTypePolicy = "mark_stale"
)

type VendorPolicy struct {
	Name string `yaml:"name"`
	// ContaminationSeparator is the artifact separator seen when the wrong
	// upstream field was captured ("|" for ThreatLocker). Empty means the
	// vendor's hostnames are never pipe-contaminated.
	ContaminationSeparator string `yaml:"contamination_separator"`
}

// Policy is the reconciliation configuration, loaded once at startup and
// passed by value. No module-level state.
type Policy struct {
	// CanonicalLength is the NetBIOS truncation width imposed by the RMM
	// vendor; both sides truncate to it for joins to be meaningful.
	CanonicalLength int `yaml:"canonical_length"`

	Ninja        VendorPolicy `yaml:"ninja"`
	ThreatLocker VendorPolicy `yaml:"threatlocker"`

	// SpareBillingStatus is the Ninja billing status that flags a device as a
	// non-billable spare.
	SpareBillingStatus string `yaml:"spare_billing_status"`

	UnknownTypePolicy UnknownTypePolicy `yaml:"unknown_type_policy"`

	// RetentionDays bounds the sweep of stale, unresolved exceptions.
	RetentionDays int `yaml:"retention_days"`

	// SummaryWindowDays is the trailing window for the dashboard status summary.
	SummaryWindowDays int `yaml:"summary_window_days"`
}

func DefaultPolicy() Policy {
	return Policy{
		CanonicalLength:    15,
		Ninja:              VendorPolicy{Name: types.VendorNinja},
		ThreatLocker:       VendorPolicy{Name: types.VendorThreatLocker, ContaminationSeparator: "|"},
		SpareBillingStatus: "spare",
		UnknownTypePolicy:  AssumeVerified,
		RetentionDays:      90,
		SummaryWindowDays:  30,
	}
}

// LoadPolicy reads a YAML policy file over the defaults. An empty path means
// defaults only.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read reconcile policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse reconcile policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid reconcile policy %s: %w", path, err)
	}
	return policy, nil
}

func (p Policy) Validate() error {
	if p.CanonicalLength < 1 {
		return fmt.Errorf("canonical_length must be positive, got %d", p.CanonicalLength)
	}
	if strings.TrimSpace(p.Ninja.Name) == "" || strings.TrimSpace(p.ThreatLocker.Name) == "" {
		return fmt.Errorf("both vendor names are required")
	}
	switch p.UnknownTypePolicy {
	case AssumeVerified, MarkStale:
	default:
		return fmt.Errorf("unknown_type_policy must be %q or %q, got %q", AssumeVerified, MarkStale, p.UnknownTypePolicy)
	}
	if p.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be positive, got %d", p.RetentionDays)
	}
	return nil
}
