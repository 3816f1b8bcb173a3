package recon

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
)

var testDate = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func snap(hostname, display, org, site, billing string) *types.DeviceSnapshot {
	return &types.DeviceSnapshot{
		ID:               uuid.New(),
		SnapshotDate:     testDate,
		Hostname:         hostname,
		DisplayName:      display,
		OrganizationName: org,
		SiteName:         site,
		BillingStatus:    billing,
	}
}

func testSet(t *testing.T, ninja, tl []*types.DeviceSnapshot) *SnapshotSet {
	t.Helper()
	return NewSnapshotSet(testDate, DefaultPolicy(), ninja, tl)
}

func TestClassifyMissingNinja(t *testing.T) {
	set := testSet(t,
		[]*types.DeviceSnapshot{snap("chi-other.domain.local", "", "X", "S1", "")},
		[]*types.DeviceSnapshot{snap("chi-server01", "chi-server01", "X", "S1", "")},
	)

	out, err := ClassifyMissingNinja(set)
	if err != nil {
		t.Fatalf("ClassifyMissingNinja: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 exception, got %d", len(out))
	}
	exc := out[0]
	if exc.Type != types.TypeMissingNinja || exc.Hostname != "chi-server01" {
		t.Fatalf("unexpected exception: type=%s hostname=%s", exc.Type, exc.Hostname)
	}
	var details types.MissingNinjaDetails
	if err := json.Unmarshal(exc.Details, &details); err != nil {
		t.Fatalf("unmarshal details: %v", err)
	}
	if details.TLOrgName != "X" {
		t.Fatalf("tl_org_name = %q, want X", details.TLOrgName)
	}
	if details.DataQualityIssue {
		t.Fatal("clean hostname should not carry data_quality_issue")
	}
}

func TestClassifyMissingNinjaContaminated(t *testing.T) {
	set := testSet(t,
		nil,
		[]*types.DeviceSnapshot{snap("CHI-4YHKJL3|Keith Oneil", "", "Acme", "HQ", "")},
	)

	out, err := ClassifyMissingNinja(set)
	if err != nil {
		t.Fatalf("ClassifyMissingNinja: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 exception, got %d", len(out))
	}
	if out[0].Hostname != "chi-4yhkjl3" {
		t.Fatalf("ledger hostname must be the clean value, got %q", out[0].Hostname)
	}
	var details types.MissingNinjaDetails
	if err := json.Unmarshal(out[0].Details, &details); err != nil {
		t.Fatalf("unmarshal details: %v", err)
	}
	if !details.DataQualityIssue {
		t.Fatal("expected data_quality_issue flag")
	}
	if details.RawHostname != "CHI-4YHKJL3|Keith Oneil" || details.CleanHostname != "chi-4yhkjl3" {
		t.Fatalf("raw/clean mismatch: %q / %q", details.RawHostname, details.CleanHostname)
	}
}

func TestClassifyMissingNinjaMatchedDeviceNotFlagged(t *testing.T) {
	set := testSet(t,
		[]*types.DeviceSnapshot{snap("chi-server01.domain.local", "", "X", "S1", "")},
		[]*types.DeviceSnapshot{snap("CHI-SERVER01", "", "X", "S1", "")},
	)
	out, err := ClassifyMissingNinja(set)
	if err != nil {
		t.Fatalf("ClassifyMissingNinja: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("matched device flagged: %+v", out[0])
	}
}

func TestClassifyMissingNinjaEmptyKeysNeverJoin(t *testing.T) {
	// A blank Ninja hostname must not "match" a blank ThreatLocker hostname.
	set := testSet(t,
		[]*types.DeviceSnapshot{snap("", "", "X", "S1", "")},
		[]*types.DeviceSnapshot{snap("", "", "Y", "S2", "")},
	)
	out, err := ClassifyMissingNinja(set)
	if err != nil {
		t.Fatalf("ClassifyMissingNinja: %v", err)
	}
	// Blank-hostname rows are unmatchable and land in the data-quality
	// report instead of the ledger.
	if len(out) != 0 {
		t.Fatalf("blank hostnames must not be classified, got %d", len(out))
	}
}

func TestClassifyDuplicateTL(t *testing.T) {
	set := testSet(t, nil, []*types.DeviceSnapshot{
		snap("dup-host.corp.a", "", "", "Site1", ""),
		snap("dup-host.corp.b", "", "Acme", "Site2", ""),
		snap("unique-host", "", "Acme", "Site1", ""),
	})

	out, err := ClassifyDuplicateTL(set)
	if err != nil {
		t.Fatalf("ClassifyDuplicateTL: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 duplicate group, got %d", len(out))
	}
	exc := out[0]
	if exc.Hostname != "dup-host" {
		t.Fatalf("group keyed on %q, want dup-host", exc.Hostname)
	}
	var details types.DuplicateTLDetails
	if err := json.Unmarshal(exc.Details, &details); err != nil {
		t.Fatalf("unmarshal details: %v", err)
	}
	if len(details.DuplicateHostnames) != 2 {
		t.Fatalf("expected both duplicates listed, got %v", details.DuplicateHostnames)
	}
	// Primary organization is the first non-empty org encountered.
	if details.PrimaryOrgName != "Acme" {
		t.Fatalf("primary_org_name = %q, want Acme", details.PrimaryOrgName)
	}
}

func TestClassifySiteMismatch(t *testing.T) {
	set := testSet(t,
		[]*types.DeviceSnapshot{
			snap("host-a", "host-a", "X", "Chicago", "active"),
			snap("host-b", "host-b", "X", "Dallas", "active"),
		},
		[]*types.DeviceSnapshot{
			snap("host-a", "host-a", "X", "Chicago", ""),
			snap("host-b", "host-b", "X", "Austin", ""),
		},
	)

	out, err := ClassifySiteMismatch(set)
	if err != nil {
		t.Fatalf("ClassifySiteMismatch: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 site mismatch, got %d", len(out))
	}
	var details types.SiteMismatchDetails
	if err := json.Unmarshal(out[0].Details, &details); err != nil {
		t.Fatalf("unmarshal details: %v", err)
	}
	if details.NinjaSiteName != "Dallas" || details.TLSiteName != "Austin" {
		t.Fatalf("sites = %q / %q", details.NinjaSiteName, details.TLSiteName)
	}
}

func TestClassifySiteMismatchIgnoresCaseAndWhitespace(t *testing.T) {
	set := testSet(t,
		[]*types.DeviceSnapshot{
			snap("host-a", "host-a", "X", "Chicago", "active"),
		},
		[]*types.DeviceSnapshot{
			snap("host-a", "host-a", "X", " CHICAGO ", ""),
		},
	)

	out, err := ClassifySiteMismatch(set)
	if err != nil {
		t.Fatalf("ClassifySiteMismatch: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("case-only site difference flagged: %d exceptions", len(out))
	}
}

func TestClassifySpareMismatch(t *testing.T) {
	set := testSet(t,
		[]*types.DeviceSnapshot{
			snap("spare-box", "spare-box", "X", "HQ", "Spare"),
			snap("billed-box", "billed-box", "X", "HQ", "active"),
		},
		[]*types.DeviceSnapshot{
			snap("spare-box", "spare-box", "X", "HQ", ""),
			snap("billed-box", "billed-box", "X", "HQ", ""),
		},
	)

	out, err := ClassifySpareMismatch(set)
	if err != nil {
		t.Fatalf("ClassifySpareMismatch: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 spare mismatch, got %d", len(out))
	}
	if out[0].Hostname != "spare-box" {
		t.Fatalf("hostname = %q", out[0].Hostname)
	}
}

func TestClassifyDisplayNameMismatch(t *testing.T) {
	tests := []struct {
		name         string
		ninjaDisplay string
		tlDisplay    string
		tlHostname   string
		wantFlagged  bool
	}{
		{"true conflict", "Front Desk PC", "Reception PC", "host-x", true},
		{"same name different case", "front desk pc", "Front Desk PC", "host-x", false},
		{"same name extra whitespace", "Front  Desk PC", "Front Desk PC ", "host-x", false},
		// ThreatLocker's default when no custom name is set: display equals
		// its own hostname. A blank Ninja name then means nobody named it
		// anywhere, not a conflict.
		{"tl default name exclusion", "", "host-x", "host-x", false},
		{"blank ninja but custom tl name", "", "Custom Name", "host-x", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set := testSet(t,
				[]*types.DeviceSnapshot{snap("host-x", tc.ninjaDisplay, "X", "HQ", "active")},
				[]*types.DeviceSnapshot{snap(tc.tlHostname, tc.tlDisplay, "X", "HQ", "")},
			)
			out, err := ClassifyDisplayNameMismatch(set)
			if err != nil {
				t.Fatalf("ClassifyDisplayNameMismatch: %v", err)
			}
			if got := len(out) == 1; got != tc.wantFlagged {
				t.Fatalf("flagged=%v, want %v (got %d exceptions)", got, tc.wantFlagged, len(out))
			}
		})
	}
}

func TestPairClassificationIsExclusive(t *testing.T) {
	// One device that trips every pair rule at once: sites differ, Ninja
	// bills it as spare, display names conflict. It must land in exactly one
	// category.
	set := testSet(t,
		[]*types.DeviceSnapshot{snap("host-y", "Ninja Name", "X", "Chicago", "spare")},
		[]*types.DeviceSnapshot{snap("host-y", "TL Name", "X", "Dallas", "")},
	)

	site, err := ClassifySiteMismatch(set)
	if err != nil {
		t.Fatal(err)
	}
	spare, err := ClassifySpareMismatch(set)
	if err != nil {
		t.Fatal(err)
	}
	display, err := ClassifyDisplayNameMismatch(set)
	if err != nil {
		t.Fatal(err)
	}

	total := len(site) + len(spare) + len(display)
	if total != 1 {
		t.Fatalf("pair classified into %d categories, want exactly 1", total)
	}
	if len(site) != 1 {
		t.Fatal("site mismatch takes precedence over spare and display")
	}
}

func TestClassificationIsDeterministic(t *testing.T) {
	ninja := []*types.DeviceSnapshot{
		snap("host-a", "A", "X", "S1", "active"),
		snap("host-b", "B", "X", "S1", "spare"),
	}
	tl := []*types.DeviceSnapshot{
		snap("host-a", "A2", "X", "S2", ""),
		snap("host-b", "B", "X", "S1", ""),
		snap("host-c", "C", "Y", "S3", ""),
		snap("host-c.other", "C", "Y", "S4", ""),
	}

	run := func() string {
		set := testSet(t, ninja, tl)
		var all []*types.Exception
		for _, classify := range []func(*SnapshotSet) ([]*types.Exception, error){
			ClassifyMissingNinja, ClassifyDuplicateTL, ClassifySiteMismatch,
			ClassifySpareMismatch, ClassifyDisplayNameMismatch,
		} {
			rows, err := classify(set)
			if err != nil {
				t.Fatal(err)
			}
			all = append(all, rows...)
		}
		var b []byte
		for _, exc := range all {
			b = append(b, exc.Type...)
			b = append(b, '|')
			b = append(b, exc.Hostname...)
			b = append(b, '|')
			b = append(b, exc.Details...)
			b = append(b, '\n')
		}
		return string(b)
	}

	first := run()
	for i := 0; i < 5; i++ {
		if again := run(); again != first {
			t.Fatalf("classification not deterministic:\n%s\nvs\n%s", first, again)
		}
	}
}
