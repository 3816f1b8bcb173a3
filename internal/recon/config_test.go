package recon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicyDefaultsOnEmptyPath(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if policy.CanonicalLength != 15 {
		t.Fatalf("CanonicalLength = %d, want 15", policy.CanonicalLength)
	}
	if policy.ThreatLocker.ContaminationSeparator != "|" {
		t.Fatalf("ThreatLocker separator = %q, want |", policy.ThreatLocker.ContaminationSeparator)
	}
	if policy.UnknownTypePolicy != AssumeVerified {
		t.Fatalf("UnknownTypePolicy = %q, want %q", policy.UnknownTypePolicy, AssumeVerified)
	}
}

func TestLoadPolicyOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	raw := []byte(
		"retention_days: 30\n" +
			"unknown_type_policy: mark_stale\n" +
			"spare_billing_status: inventory\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if policy.RetentionDays != 30 {
		t.Fatalf("RetentionDays = %d, want 30", policy.RetentionDays)
	}
	if policy.UnknownTypePolicy != MarkStale {
		t.Fatalf("UnknownTypePolicy = %q, want %q", policy.UnknownTypePolicy, MarkStale)
	}
	if policy.SpareBillingStatus != "inventory" {
		t.Fatalf("SpareBillingStatus = %q, want inventory", policy.SpareBillingStatus)
	}
	// Untouched keys keep their defaults.
	if policy.CanonicalLength != 15 || policy.Ninja.Name == "" {
		t.Fatalf("defaults lost on partial override: %+v", policy)
	}
}

func TestLoadPolicyErrors(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}

	cases := []struct {
		name string
		yaml string
	}{
		{"zero canonical length", "canonical_length: 0\n"},
		{"bad unknown type policy", "unknown_type_policy: guess\n"},
		{"zero retention", "retention_days: 0\n"},
		{"not yaml", "{{{\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o600); err != nil {
				t.Fatalf("write policy file: %v", err)
			}
			if _, err := LoadPolicy(path); err == nil {
				t.Fatal("invalid policy accepted")
			}
		})
	}
}
