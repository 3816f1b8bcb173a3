package recon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/data/repos/exceptions"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

// memLedger is an in-memory ExceptionRepo for exercising the lifecycle state
// machine without a database.
type memLedger struct {
	rows map[uuid.UUID]*types.Exception
}

func newMemLedger() *memLedger {
	return &memLedger{rows: map[uuid.UUID]*types.Exception{}}
}

func (m *memLedger) Insert(_ context.Context, _ *gorm.DB, rows []*types.Exception) error {
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		cp := *row
		m.rows[cp.ID] = &cp
	}
	return nil
}

func (m *memLedger) ReplaceForDate(_ context.Context, _ *gorm.DB, excType string, date time.Time, rows []*types.Exception) error {
	date = types.DateOnly(date)
	for id, row := range m.rows {
		if row.Type == excType && row.DateFound.Equal(date) {
			delete(m.rows, id)
		}
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		cp := *row
		cp.Type = excType
		cp.DateFound = date
		m.rows[cp.ID] = &cp
	}
	return nil
}

func (m *memLedger) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Exception, error) {
	var out []*types.Exception
	for _, id := range ids {
		if row, ok := m.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memLedger) FindByTypeHostnameDate(_ context.Context, _ *gorm.DB, excType, hostname string, date time.Time) (*types.Exception, error) {
	date = types.DateOnly(date)
	for _, row := range m.rows {
		if row.Type == excType && strings.EqualFold(row.Hostname, hostname) && row.DateFound.Equal(date) {
			return row, nil
		}
	}
	return nil, nil
}

func (m *memLedger) GetManuallyFixed(_ context.Context, _ *gorm.DB, date time.Time) ([]*types.Exception, error) {
	date = types.DateOnly(date)
	var out []*types.Exception
	for _, row := range m.rows {
		if row.DateFound.Equal(date) && row.VarianceStatus == types.VarianceManuallyFixed {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLedger) ResetVarianceForDate(_ context.Context, _ *gorm.DB, date time.Time) (int64, error) {
	date = types.DateOnly(date)
	var n int64
	for _, row := range m.rows {
		if row.DateFound.Equal(date) &&
			(row.VarianceStatus == types.VarianceManuallyFixed || row.VarianceStatus == types.VarianceStale) {
			row.VarianceStatus = types.VarianceActive
			if row.ResolvedBy == "" {
				row.Resolved = false
			}
			n++
		}
	}
	return n, nil
}

func (m *memLedger) Resolve(_ context.Context, _ *gorm.DB, id uuid.UUID, resolvedBy string) (exceptions.MarkFixedOutcome, error) {
	row, ok := m.rows[id]
	if !ok {
		return exceptions.OutcomeNotFound, nil
	}
	if row.Resolved {
		return exceptions.OutcomeAlreadyResolved, nil
	}
	now := time.Now().UTC()
	row.Resolved = true
	row.ResolvedBy = resolvedBy
	row.ResolvedDate = &now
	return exceptions.OutcomeUpdated, nil
}

func (m *memLedger) MarkManuallyFixedByID(_ context.Context, _ *gorm.DB, id uuid.UUID, updatedBy, updateType, oldValue, newValue string) (exceptions.MarkFixedOutcome, error) {
	row, ok := m.rows[id]
	if !ok {
		return exceptions.OutcomeNotFound, nil
	}
	return m.applyManualFix(row, updatedBy, updateType, oldValue, newValue), nil
}

func (m *memLedger) MarkManuallyFixedByHostname(ctx context.Context, tx *gorm.DB, excType, hostname string, date time.Time, updatedBy, updateType, oldValue, newValue string) (exceptions.MarkFixedOutcome, error) {
	row, err := m.FindByTypeHostnameDate(ctx, tx, excType, hostname, date)
	if err != nil {
		return "", err
	}
	if row == nil {
		return exceptions.OutcomeNotFound, nil
	}
	return m.applyManualFix(row, updatedBy, updateType, oldValue, newValue), nil
}

func (m *memLedger) applyManualFix(row *types.Exception, updatedBy, updateType, oldValue, newValue string) exceptions.MarkFixedOutcome {
	if row.Resolved && (row.VarianceStatus == types.VarianceManuallyFixed || row.VarianceStatus == types.VarianceCollectorVerified) {
		return exceptions.OutcomeAlreadyResolved
	}
	now := time.Now().UTC()
	row.Resolved = true
	row.VarianceStatus = types.VarianceManuallyFixed
	row.ManuallyUpdatedBy = updatedBy
	row.ManuallyUpdatedAt = &now
	row.UpdateType = updateType
	row.OldValue = oldValue
	row.NewValue = newValue
	return exceptions.OutcomeUpdated
}

func (m *memLedger) SetVarianceStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status string, resolved bool) error {
	if row, ok := m.rows[id]; ok {
		row.VarianceStatus = status
		row.Resolved = resolved
	}
	return nil
}

func (m *memLedger) ApplyVerification(_ context.Context, _ *gorm.DB, id uuid.UUID, status string, resolved bool, audit *types.Exception) error {
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.VarianceStatus = status
	row.Resolved = resolved
	if audit != nil {
		row.ManuallyUpdatedBy = audit.ManuallyUpdatedBy
		row.ManuallyUpdatedAt = audit.ManuallyUpdatedAt
		row.UpdateType = audit.UpdateType
		row.OldValue = audit.OldValue
		row.NewValue = audit.NewValue
	}
	return nil
}

func (m *memLedger) BulkUpdate(_ context.Context, _ *gorm.DB, ids []uuid.UUID, action, actor string) (int64, error) {
	var n int64
	for _, id := range ids {
		row, ok := m.rows[id]
		if !ok {
			continue
		}
		switch action {
		case exceptions.BulkMarkManuallyFixed:
			m.applyManualFix(row, actor, "bulk_mark_fixed", "", "")
		case exceptions.BulkResolve:
			now := time.Now().UTC()
			row.Resolved = true
			row.ResolvedBy = actor
			row.ResolvedDate = &now
		case exceptions.BulkResetStatus:
			row.Resolved = false
			row.VarianceStatus = types.VarianceActive
		}
		n++
	}
	return n, nil
}

func (m *memLedger) Query(_ context.Context, _ *gorm.DB, _ exceptions.QueryFilter) ([]*types.Exception, int64, error) {
	var out []*types.Exception
	for _, row := range m.rows {
		out = append(out, row)
	}
	return out, int64(len(out)), nil
}

func (m *memLedger) StatusSummary(_ context.Context, _ *gorm.DB, _ time.Time) ([]exceptions.StatusCount, error) {
	return nil, nil
}

func (m *memLedger) RecentManualUpdates(_ context.Context, _ *gorm.DB, _ int) ([]*types.Exception, error) {
	return nil, nil
}

func (m *memLedger) SweepStale(_ context.Context, _ *gorm.DB, olderThan time.Time) (int64, error) {
	cutoff := types.DateOnly(olderThan)
	var n int64
	for id, row := range m.rows {
		if row.VarianceStatus == types.VarianceStale && !row.Resolved && row.DateFound.Before(cutoff) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func seedMissingNinja(t *testing.T, ledger *memLedger, hostname string) *types.Exception {
	t.Helper()
	exc := &types.Exception{
		ID:             uuid.New(),
		DateFound:      testDate,
		Type:           types.TypeMissingNinja,
		Hostname:       hostname,
		Details:        datatypes.JSON([]byte(`{"tl_org_name":"X"}`)),
		VarianceStatus: types.VarianceActive,
	}
	if err := ledger.Insert(context.Background(), nil, []*types.Exception{exc}); err != nil {
		t.Fatal(err)
	}
	return exc
}

// Round trip: active -> manually_fixed -> (cause gone) -> collector_verified.
func TestLifecycleVerifiedWhenCauseAbsent(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	policy := DefaultPolicy()
	lc := NewLifecycle(testLogger(t), policy, ledger)
	matcher := NewMatcher(testLogger(t), ledger)

	exc := seedMissingNinja(t, ledger, "chi-server01")
	if out, err := ledger.MarkManuallyFixedByID(ctx, nil, exc.ID, "ops@example.com", "added_to_ninja", "", "chi-server01"); err != nil || out != exceptions.OutcomeUpdated {
		t.Fatalf("mark fixed: %v %v", out, err)
	}

	captured, err := lc.CaptureAndReset(ctx, nil, testDate)
	if err != nil {
		t.Fatalf("CaptureAndReset: %v", err)
	}
	if len(captured) != 1 {
		t.Fatalf("captured %d rows, want 1", len(captured))
	}

	// Fresh snapshots: the device now exists in Ninja, so the cause is gone.
	set := NewSnapshotSet(testDate, policy,
		[]*types.DeviceSnapshot{snap("chi-server01.domain.local", "", "X", "S1", "active")},
		[]*types.DeviceSnapshot{snap("chi-server01", "", "X", "S1", "")},
	)
	if _, err := matcher.Run(ctx, nil, set); err != nil {
		t.Fatalf("matcher run: %v", err)
	}

	report, err := lc.VerifyManualFixes(ctx, nil, set, captured)
	if err != nil {
		t.Fatalf("VerifyManualFixes: %v", err)
	}
	if report.Verified != 1 || report.Stale != 0 {
		t.Fatalf("report = %+v", report)
	}

	row, err := ledger.FindByTypeHostnameDate(ctx, nil, types.TypeMissingNinja, "chi-server01", testDate)
	if err != nil || row == nil {
		t.Fatalf("verified row missing: %v", err)
	}
	if row.VarianceStatus != types.VarianceCollectorVerified || !row.Resolved {
		t.Fatalf("row = status %s resolved %v", row.VarianceStatus, row.Resolved)
	}
	if row.ManuallyUpdatedBy != "ops@example.com" {
		t.Fatalf("audit lost: %q", row.ManuallyUpdatedBy)
	}
}

// Round trip: active -> manually_fixed -> (cause persists) -> stale -> active.
func TestLifecycleStaleWhenCausePersists(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	policy := DefaultPolicy()
	lc := NewLifecycle(testLogger(t), policy, ledger)
	matcher := NewMatcher(testLogger(t), ledger)

	exc := seedMissingNinja(t, ledger, "chi-server01")
	if _, err := ledger.MarkManuallyFixedByID(ctx, nil, exc.ID, "ops@example.com", "added_to_ninja", "", ""); err != nil {
		t.Fatal(err)
	}

	captured, err := lc.CaptureAndReset(ctx, nil, testDate)
	if err != nil {
		t.Fatal(err)
	}

	// Fresh snapshots: still no Ninja row, the fix did not take.
	set := NewSnapshotSet(testDate, policy,
		nil,
		[]*types.DeviceSnapshot{snap("chi-server01", "", "X", "S1", "")},
	)
	if _, err := matcher.Run(ctx, nil, set); err != nil {
		t.Fatal(err)
	}

	report, err := lc.VerifyManualFixes(ctx, nil, set, captured)
	if err != nil {
		t.Fatal(err)
	}
	if report.Stale != 1 || report.Verified != 0 {
		t.Fatalf("report = %+v", report)
	}

	row, err := ledger.FindByTypeHostnameDate(ctx, nil, types.TypeMissingNinja, "chi-server01", testDate)
	if err != nil || row == nil {
		t.Fatalf("stale row missing: %v", err)
	}
	if row.VarianceStatus != types.VarianceStale || row.Resolved {
		t.Fatalf("row = status %s resolved %v", row.VarianceStatus, row.Resolved)
	}

	// Next cycle's reset returns the stale row to active.
	if _, err := lc.CaptureAndReset(ctx, nil, testDate); err != nil {
		t.Fatal(err)
	}
	row, _ = ledger.FindByTypeHostnameDate(ctx, nil, types.TypeMissingNinja, "chi-server01", testDate)
	if row.VarianceStatus != types.VarianceActive {
		t.Fatalf("after reset status = %s, want active", row.VarianceStatus)
	}
}

func TestLifecycleUnknownTypePolicy(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		policy     UnknownTypePolicy
		wantStatus string
	}{
		{AssumeVerified, types.VarianceCollectorVerified},
		{MarkStale, types.VarianceStale},
	} {
		ledger := newMemLedger()
		policy := DefaultPolicy()
		policy.UnknownTypePolicy = tc.policy
		lc := NewLifecycle(testLogger(t), policy, ledger)

		exc := &types.Exception{
			ID:             uuid.New(),
			DateFound:      testDate,
			Type:           "legacy_unknown_check",
			Hostname:       "host-z",
			Details:        datatypes.JSON([]byte(`{}`)),
			VarianceStatus: types.VarianceManuallyFixed,
			Resolved:       true,
		}
		if err := ledger.Insert(ctx, nil, []*types.Exception{exc}); err != nil {
			t.Fatal(err)
		}

		captured, err := lc.CaptureAndReset(ctx, nil, testDate)
		if err != nil {
			t.Fatal(err)
		}
		set := NewSnapshotSet(testDate, policy, nil, nil)
		if _, err := lc.VerifyManualFixes(ctx, nil, set, captured); err != nil {
			t.Fatal(err)
		}

		row, _ := ledger.FindByTypeHostnameDate(ctx, nil, "legacy_unknown_check", "host-z", testDate)
		if row == nil {
			t.Fatalf("policy %s: row disappeared", tc.policy)
		}
		if row.VarianceStatus != tc.wantStatus {
			t.Fatalf("policy %s: status = %s, want %s", tc.policy, row.VarianceStatus, tc.wantStatus)
		}
	}
}

// Regenerating twice from the same snapshots leaves an identical
// (type, hostname, details) set.
func TestMatcherIdempotentRegeneration(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	matcher := NewMatcher(testLogger(t), ledger)

	set := NewSnapshotSet(testDate, DefaultPolicy(),
		[]*types.DeviceSnapshot{snap("host-a", "A", "X", "S1", "spare")},
		[]*types.DeviceSnapshot{
			snap("host-a", "A", "X", "S1", ""),
			snap("host-b", "", "Y", "S2", ""),
			snap("host-b.dup", "", "Y", "S2", ""),
		},
	)

	fingerprint := func() map[string]int {
		out := map[string]int{}
		rows, _, err := ledger.Query(ctx, nil, exceptions.QueryFilter{})
		if err != nil {
			t.Fatal(err)
		}
		for _, row := range rows {
			out[row.Type+"|"+row.Hostname+"|"+string(row.Details)]++
		}
		return out
	}

	if _, err := matcher.Run(ctx, nil, set); err != nil {
		t.Fatal(err)
	}
	first := fingerprint()
	if len(first) == 0 {
		t.Fatal("expected exceptions from first run")
	}

	if _, err := matcher.Run(ctx, nil, set); err != nil {
		t.Fatal(err)
	}
	second := fingerprint()

	if len(first) != len(second) {
		t.Fatalf("set size changed: %d vs %d", len(first), len(second))
	}
	for key, n := range first {
		if second[key] != n {
			t.Fatalf("set differs at %q: %d vs %d", key, n, second[key])
		}
	}
}
