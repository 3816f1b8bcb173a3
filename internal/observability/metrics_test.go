package observability

import (
	"strings"
	"testing"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
)

func TestSetLedgerDepthZeroesAndSamples(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "true")
	m := Init(nil)
	if m == nil {
		t.Fatal("Init returned nil with metrics enabled")
	}

	m.SetLedgerDepth([]LedgerDepthRow{
		{Type: types.TypeMissingNinja, VarianceStatus: types.VarianceActive, Count: 3},
	})

	var b strings.Builder
	if err := m.ledgerDepth.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()

	if !strings.Contains(out, `invhub_ledger_depth{type="missing_ninja",status="active"} 3.0`) {
		t.Fatalf("sampled combination missing from exposition:\n%s", out)
	}
	// Every other type/status combination is pre-zeroed.
	if !strings.Contains(out, `invhub_ledger_depth{type="duplicate_tl",status="stale"} 0.0`) {
		t.Fatalf("unzeroed combination missing from exposition:\n%s", out)
	}

	// A combination that empties out between samples drops back to zero.
	m.SetLedgerDepth(nil)
	b.Reset()
	if err := m.ledgerDepth.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !strings.Contains(b.String(), `invhub_ledger_depth{type="missing_ninja",status="active"} 0.0`) {
		t.Fatalf("stale gauge not zeroed:\n%s", b.String())
	}
}
