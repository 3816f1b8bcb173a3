package recon

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/data/repos"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
)

// SnapshotSet is both vendors' device rows for one date, indexed by canonical
// key. Row slices under a key are sorted by hostname so classification output
// is deterministic across runs.
type SnapshotSet struct {
	Date   time.Time
	Policy Policy

	Ninja        []*types.DeviceSnapshot
	ThreatLocker []*types.DeviceSnapshot

	ninjaByKey map[string][]*types.DeviceSnapshot
	tlByKey    map[string][]*types.DeviceSnapshot
}

// LoadSnapshots fetches both vendors' rows for the date in parallel and
// indexes them. Vendors must already be resolved; callers handle the
// absent-vendor degradation before loading.
func LoadSnapshots(ctx context.Context, db *gorm.DB, snapshots repos.DeviceSnapshotRepo, ninja, threatLocker *types.Vendor, date time.Time, policy Policy) (*SnapshotSet, error) {
	set := &SnapshotSet{
		Date:   types.DateOnly(date),
		Policy: policy,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := snapshots.GetByVendorAndDate(gctx, db, ninja.ID, date)
		if err != nil {
			return err
		}
		set.Ninja = rows
		return nil
	})
	g.Go(func() error {
		rows, err := snapshots.GetByVendorAndDate(gctx, db, threatLocker.ID, date)
		if err != nil {
			return err
		}
		set.ThreatLocker = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set.index()
	return set, nil
}

// NewSnapshotSet builds a set from in-memory rows. Used by tests and by the
// verifier when rows are already loaded.
func NewSnapshotSet(date time.Time, policy Policy, ninja, threatLocker []*types.DeviceSnapshot) *SnapshotSet {
	set := &SnapshotSet{
		Date:         types.DateOnly(date),
		Policy:       policy,
		Ninja:        ninja,
		ThreatLocker: threatLocker,
	}
	set.index()
	return set
}

func (s *SnapshotSet) index() {
	s.ninjaByKey = indexByKey(s.Ninja, s.Policy, s.Policy.Ninja)
	s.tlByKey = indexByKey(s.ThreatLocker, s.Policy, s.Policy.ThreatLocker)
}

func indexByKey(rows []*types.DeviceSnapshot, policy Policy, vendor VendorPolicy) map[string][]*types.DeviceSnapshot {
	out := make(map[string][]*types.DeviceSnapshot, len(rows))
	for _, row := range rows {
		key := policy.CanonicalKey(row.Hostname, vendor)
		if key == "" {
			// Empty keys are unmatchable; two blank hostnames are not the
			// same device.
			continue
		}
		out[key] = append(out[key], row)
	}
	for key := range out {
		group := out[key]
		sort.Slice(group, func(i, j int) bool { return group[i].Hostname < group[j].Hostname })
	}
	return out
}

// NinjaByKey returns the indexed Ninja rows for a canonical key.
func (s *SnapshotSet) NinjaByKey(key string) []*types.DeviceSnapshot { return s.ninjaByKey[key] }

// TLByKey returns the indexed ThreatLocker rows for a canonical key.
func (s *SnapshotSet) TLByKey(key string) []*types.DeviceSnapshot { return s.tlByKey[key] }

// SharedKeys returns the canonical keys present in both vendors, sorted.
func (s *SnapshotSet) SharedKeys() []string {
	keys := make([]string, 0, len(s.tlByKey))
	for key := range s.tlByKey {
		if _, ok := s.ninjaByKey[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// TLKeys returns all ThreatLocker canonical keys, sorted.
func (s *SnapshotSet) TLKeys() []string {
	keys := make([]string, 0, len(s.tlByKey))
	for key := range s.tlByKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
