package recon

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/data/repos"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

// Matcher derives the complete exception set for one date from a loaded
// snapshot pair and replaces the ledger partitions. Each type's
// clear-then-insert is a single transaction, so dashboard readers never see
// an empty or half-written partition.
type Matcher struct {
	log    *logger.Logger
	ledger repos.ExceptionRepo
}

func NewMatcher(baseLog *logger.Logger, ledger repos.ExceptionRepo) *Matcher {
	return &Matcher{log: baseLog.With("component", "Matcher"), ledger: ledger}
}

type RunReport struct {
	Date        string            `json:"date"`
	Counts      map[string]int    `json:"counts"`
	DataQuality DataQualityReport `json:"data_quality"`
}

// Run executes the five classification passes and commits each partition.
// Passes are commutative: the resulting ledger state does not depend on
// commit order, only the transaction boundaries do.
func (m *Matcher) Run(ctx context.Context, tx *gorm.DB, set *SnapshotSet) (*RunReport, error) {
	report := &RunReport{
		Date:   set.Date.Format("2006-01-02"),
		Counts: map[string]int{},
	}

	report.DataQuality = InspectDataQuality(set)
	if report.DataQuality.TLContaminatedCount > 0 || report.DataQuality.NinjaEmptyHostnames > 0 || report.DataQuality.TLEmptyHostnames > 0 {
		m.log.Warn("Snapshot data quality issues detected; classification continues",
			"date", report.Date,
			"tl_contaminated", report.DataQuality.TLContaminatedCount,
			"tl_empty_hostnames", report.DataQuality.TLEmptyHostnames,
			"ninja_empty_hostnames", report.DataQuality.NinjaEmptyHostnames,
		)
	}

	passes := []struct {
		excType  string
		classify func(*SnapshotSet) ([]*types.Exception, error)
	}{
		{types.TypeMissingNinja, ClassifyMissingNinja},
		{types.TypeDuplicateTL, ClassifyDuplicateTL},
		{types.TypeSiteMismatch, ClassifySiteMismatch},
		{types.TypeSpareMismatch, ClassifySpareMismatch},
		{types.TypeDisplayNameMismatch, ClassifyDisplayNameMismatch},
	}

	for _, pass := range passes {
		rows, err := pass.classify(set)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", pass.excType, err)
		}
		if err := m.ledger.ReplaceForDate(ctx, tx, pass.excType, set.Date, rows); err != nil {
			return nil, fmt.Errorf("replace %s partition for %s: %w", pass.excType, report.Date, err)
		}
		report.Counts[pass.excType] = len(rows)
		m.log.Info("Classification pass committed", "type", pass.excType, "date", report.Date, "exceptions", len(rows))
	}

	return report, nil
}

// ClassifyMissingNinja flags every ThreatLocker row whose canonical key has
// no Ninja row on the same date. Contaminated hostnames stay flagged and
// carry the data-quality context in the details payload.
func ClassifyMissingNinja(set *SnapshotSet) ([]*types.Exception, error) {
	tlRows := sortedByHostname(set.ThreatLocker)
	var out []*types.Exception
	for _, row := range tlRows {
		key := set.Policy.CanonicalKey(row.Hostname, set.Policy.ThreatLocker)
		if key == "" {
			continue
		}
		if len(set.NinjaByKey(key)) > 0 {
			continue
		}
		clean := CleanHostname(row.Hostname, set.Policy.ThreatLocker)
		details := types.MissingNinjaDetails{
			TLOrgName:  row.OrganizationName,
			TLSiteName: row.SiteName,
		}
		if IsContaminated(row.Hostname, set.Policy.ThreatLocker) {
			details.RawHostname = row.Hostname
			details.CleanHostname = clean
			details.DataQualityIssue = true
		}
		exc, err := newException(set, types.TypeMissingNinja, clean, details)
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, nil
}

// ClassifyDuplicateTL groups ThreatLocker rows by canonical key and emits one
// exception per group with more than one member, keyed on the group's first
// clean hostname.
func ClassifyDuplicateTL(set *SnapshotSet) ([]*types.Exception, error) {
	var out []*types.Exception
	for _, key := range set.TLKeys() {
		group := set.TLByKey(key)
		if len(group) < 2 {
			continue
		}
		details := types.DuplicateTLDetails{}
		for _, row := range group {
			details.DuplicateHostnames = append(details.DuplicateHostnames, CleanHostname(row.Hostname, set.Policy.ThreatLocker))
			details.Sites = append(details.Sites, row.SiteName)
			details.Organizations = append(details.Organizations, row.OrganizationName)
			if details.PrimaryOrgName == "" && strings.TrimSpace(row.OrganizationName) != "" {
				details.PrimaryOrgName = row.OrganizationName
			}
		}
		exc, err := newException(set, types.TypeDuplicateTL, details.DuplicateHostnames[0], details)
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, nil
}

// Pair categories. A key present in both vendors lands in exactly one of
// {unchanged, site, spare, display}; the checks apply in that order so a
// single device never produces two pair-mismatch exceptions.
const (
	pairUnchanged = ""
	pairSite      = types.TypeSiteMismatch
	pairSpare     = types.TypeSpareMismatch
	pairDisplay   = types.TypeDisplayNameMismatch
)

func pairCategory(set *SnapshotSet, ninja, tl *types.DeviceSnapshot) string {
	if !strings.EqualFold(strings.TrimSpace(ninja.SiteName), strings.TrimSpace(tl.SiteName)) {
		return pairSite
	}
	if strings.EqualFold(strings.TrimSpace(ninja.BillingStatus), set.Policy.SpareBillingStatus) {
		return pairSpare
	}
	if displayNamesConflict(ninja, tl) {
		return pairDisplay
	}
	return pairUnchanged
}

// displayNamesConflict compares display names case- and whitespace-
// insensitively, excluding ThreatLocker's default "no custom name" shape:
// a blank Ninja display name paired with a ThreatLocker display name equal
// to its own hostname is not a real conflict.
func displayNamesConflict(ninja, tl *types.DeviceSnapshot) bool {
	ninjaName := normalizeDisplay(ninja.DisplayName)
	tlName := normalizeDisplay(tl.DisplayName)
	if ninjaName == tlName {
		return false
	}
	if ninjaName == "" && tlName == normalizeDisplay(tl.Hostname) {
		return false
	}
	return true
}

func normalizeDisplay(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ClassifySiteMismatch emits one exception per shared canonical key whose
// resolved site differs between vendors.
func ClassifySiteMismatch(set *SnapshotSet) ([]*types.Exception, error) {
	var out []*types.Exception
	for _, key := range set.SharedKeys() {
		ninja, tl := set.NinjaByKey(key)[0], set.TLByKey(key)[0]
		if pairCategory(set, ninja, tl) != pairSite {
			continue
		}
		details := types.SiteMismatchDetails{
			NinjaSiteName: ninja.SiteName,
			TLSiteName:    tl.SiteName,
			NinjaOrgName:  ninja.OrganizationName,
			TLOrgName:     tl.OrganizationName,
		}
		exc, err := newException(set, types.TypeSiteMismatch, CleanHostname(tl.Hostname, set.Policy.ThreatLocker), details)
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, nil
}

// ClassifySpareMismatch flags shared devices the RMM vendor bills as spares.
// Billing status is authoritative only from Ninja; ThreatLocker has no spare
// concept, so its record is the cleanup candidate.
func ClassifySpareMismatch(set *SnapshotSet) ([]*types.Exception, error) {
	var out []*types.Exception
	for _, key := range set.SharedKeys() {
		ninja, tl := set.NinjaByKey(key)[0], set.TLByKey(key)[0]
		if pairCategory(set, ninja, tl) != pairSpare {
			continue
		}
		details := types.SpareMismatchDetails{
			NinjaBillingStatus: ninja.BillingStatus,
			NinjaOrgName:       ninja.OrganizationName,
			TLOrgName:          tl.OrganizationName,
			TLSiteName:         tl.SiteName,
		}
		exc, err := newException(set, types.TypeSpareMismatch, CleanHostname(tl.Hostname, set.Policy.ThreatLocker), details)
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, nil
}

// ClassifyDisplayNameMismatch emits one exception per shared canonical key
// whose display names genuinely conflict.
func ClassifyDisplayNameMismatch(set *SnapshotSet) ([]*types.Exception, error) {
	var out []*types.Exception
	for _, key := range set.SharedKeys() {
		ninja, tl := set.NinjaByKey(key)[0], set.TLByKey(key)[0]
		if pairCategory(set, ninja, tl) != pairDisplay {
			continue
		}
		details := types.DisplayNameMismatchDetails{
			NinjaDisplayName: ninja.DisplayName,
			TLDisplayName:    tl.DisplayName,
			NinjaOrgName:     ninja.OrganizationName,
			TLOrgName:        tl.OrganizationName,
		}
		exc, err := newException(set, types.TypeDisplayNameMismatch, CleanHostname(tl.Hostname, set.Policy.ThreatLocker), details)
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, nil
}

func newException(set *SnapshotSet, excType, hostname string, details any) (*types.Exception, error) {
	raw, err := types.MarshalDetails(details)
	if err != nil {
		return nil, fmt.Errorf("marshal %s details for %s: %w", excType, hostname, err)
	}
	return &types.Exception{
		DateFound:      set.Date,
		Type:           excType,
		Hostname:       hostname,
		Details:        raw,
		VarianceStatus: types.VarianceActive,
	}, nil
}

func sortedByHostname(rows []*types.DeviceSnapshot) []*types.DeviceSnapshot {
	out := make([]*types.DeviceSnapshot, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}
