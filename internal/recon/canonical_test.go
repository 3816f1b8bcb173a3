package recon

import (
	"testing"
	"unicode/utf8"
)

func TestCanonicalKey(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name   string
		raw    string
		vendor VendorPolicy
		want   string
	}{
		{
			name:   "tl contaminated hostname",
			raw:    "CHI-4YHKJL3|Keith Oneil",
			vendor: policy.ThreatLocker,
			want:   "chi-4yhkjl3",
		},
		{
			name:   "ninja fqdn",
			raw:    "chi-4yhkjl3.domain.local",
			vendor: policy.Ninja,
			want:   "chi-4yhkjl3",
		},
		{
			name:   "uppercase ninja short name",
			raw:    "CHI-SERVER01",
			vendor: policy.Ninja,
			want:   "chi-server01",
		},
		{
			name:   "truncated to netbios length",
			raw:    "very-long-hostname-over-15-chars.corp.example.com",
			vendor: policy.Ninja,
			want:   "very-long-hostn",
		},
		{
			// 15th char is multibyte; truncation must count runes, not bytes.
			name:   "multibyte rune at truncation boundary",
			raw:    "AAAAAAAAAAAAAAÜZZ",
			vendor: policy.Ninja,
			want:   "aaaaaaaaaaaaaaü",
		},
		{
			name:   "pipe not split for ninja",
			raw:    "abc|def",
			vendor: policy.Ninja,
			want:   "abc|def",
		},
		{
			name:   "empty",
			raw:    "",
			vendor: policy.ThreatLocker,
			want:   "",
		},
		{
			name:   "whitespace only",
			raw:    "   ",
			vendor: policy.Ninja,
			want:   "",
		},
		{
			name:   "contamination with fqdn",
			raw:    "SRV-01.corp.local|Jane Doe",
			vendor: policy.ThreatLocker,
			want:   "srv-01",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := policy.CanonicalKey(tc.raw, tc.vendor)
			if got != tc.want {
				t.Fatalf("CanonicalKey(%q) = %q, want %q", tc.raw, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("CanonicalKey(%q) produced invalid UTF-8: %q", tc.raw, got)
			}
			// Pure: repeated calls agree.
			if again := policy.CanonicalKey(tc.raw, tc.vendor); again != got {
				t.Fatalf("CanonicalKey(%q) not deterministic: %q then %q", tc.raw, got, again)
			}
		})
	}
}

func TestCanonicalKeyCrossVendorAgreement(t *testing.T) {
	policy := DefaultPolicy()
	tl := policy.CanonicalKey("CHI-4YHKJL3|Keith Oneil", policy.ThreatLocker)
	ninja := policy.CanonicalKey("chi-4yhkjl3.domain.local", policy.Ninja)
	if tl != ninja || tl != "chi-4yhkjl3" {
		t.Fatalf("keys disagree: tl=%q ninja=%q", tl, ninja)
	}
}

func TestIsContaminated(t *testing.T) {
	policy := DefaultPolicy()
	if !IsContaminated("CHI-4YHKJL3|Keith Oneil", policy.ThreatLocker) {
		t.Fatal("expected contaminated")
	}
	if IsContaminated("chi-4yhkjl3", policy.ThreatLocker) {
		t.Fatal("expected clean")
	}
	// Ninja has no separator configured; pipes are literal.
	if IsContaminated("abc|def", policy.Ninja) {
		t.Fatal("ninja hostnames are never treated as contaminated")
	}
}
