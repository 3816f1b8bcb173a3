package recon

import (
	"strings"
	"unicode/utf8"
)

// CanonicalKey derives the cross-vendor join key from a raw vendor hostname:
// strip the vendor's contamination separator if it has one, take the first
// DNS label, lowercase, truncate to the canonical length. An empty input
// yields an empty key; empty keys are unmatchable and must never join.
func (p Policy) CanonicalKey(raw string, vendor VendorPolicy) string {
	key := CleanHostname(raw, vendor)
	if utf8.RuneCountInString(key) > p.CanonicalLength {
		runes := []rune(key)
		key = string(runes[:p.CanonicalLength])
	}
	return key
}

// CleanHostname is the untruncated form of the canonical key: the raw value
// with contamination and domain suffix removed, lowercased. It is what the
// ledger stores as the representative hostname — never the contaminated raw.
func CleanHostname(raw string, vendor VendorPolicy) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if vendor.ContaminationSeparator != "" {
		s = strings.TrimSpace(strings.Split(s, vendor.ContaminationSeparator)[0])
	}
	s = strings.TrimSpace(strings.Split(s, ".")[0])
	return strings.ToLower(s)
}

// IsContaminated reports whether the raw hostname still carries the vendor's
// contamination separator, a known upstream field-mapping bug.
func IsContaminated(raw string, vendor VendorPolicy) bool {
	if vendor.ContaminationSeparator == "" {
		return false
	}
	return strings.Contains(raw, vendor.ContaminationSeparator)
}
