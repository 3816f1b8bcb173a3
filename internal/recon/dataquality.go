package recon

import "strings"

// Data-quality warning kinds. These are operator signals that upstream
// collection needs re-running; they never block classification.
const (
	DQContaminatedHostname = "contaminated_hostname"
	DQEmptyHostname        = "empty_hostname"
)

type DataQualityWarning struct {
	Vendor        string `json:"vendor"`
	Kind          string `json:"kind"`
	RawHostname   string `json:"raw_hostname,omitempty"`
	CleanHostname string `json:"clean_hostname,omitempty"`
}

type DataQualityReport struct {
	Warnings []DataQualityWarning `json:"warnings"`

	TLContaminatedCount int `json:"tl_contaminated_count"`
	TLEmptyHostnames    int `json:"tl_empty_hostnames"`
	NinjaEmptyHostnames int `json:"ninja_empty_hostnames"`
}

// InspectDataQuality runs the pre-classification side checks over a loaded
// snapshot set: ThreatLocker rows still carrying the contamination separator
// and rows on either side with blank hostnames.
func InspectDataQuality(set *SnapshotSet) DataQualityReport {
	var report DataQualityReport

	for _, row := range set.ThreatLocker {
		if strings.TrimSpace(row.Hostname) == "" {
			report.TLEmptyHostnames++
			report.Warnings = append(report.Warnings, DataQualityWarning{
				Vendor: set.Policy.ThreatLocker.Name,
				Kind:   DQEmptyHostname,
			})
			continue
		}
		if IsContaminated(row.Hostname, set.Policy.ThreatLocker) {
			report.TLContaminatedCount++
			report.Warnings = append(report.Warnings, DataQualityWarning{
				Vendor:        set.Policy.ThreatLocker.Name,
				Kind:          DQContaminatedHostname,
				RawHostname:   row.Hostname,
				CleanHostname: CleanHostname(row.Hostname, set.Policy.ThreatLocker),
			})
		}
	}

	for _, row := range set.Ninja {
		if strings.TrimSpace(row.Hostname) == "" {
			report.NinjaEmptyHostnames++
			report.Warnings = append(report.Warnings, DataQualityWarning{
				Vendor: set.Policy.Ninja.Name,
				Kind:   DQEmptyHostname,
			})
		}
	}

	return report
}
