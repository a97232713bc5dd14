// Package shardconfig implements the authoritative routing table mapping
// (element class, operation kind, hash) to the shard-group endpoint(s)
// that own it.
//
// Shaped after a shard-ID-to-node map held under a sync.RWMutex and
// atomically replaced on rebalance, generalized here from "shard ID ->
// single node" to "hash range segment -> one-or-more replica endpoints
// per (class, kind)", and from mod-based sharding to explicit sorted
// hash-range segments.
package shardconfig

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"

	"github.com/dreamware/authzd/internal/domain"
)

// EndpointDescriptor names one shard-group endpoint and the stable,
// human-readable description that must appear verbatim in wrapped error
// messages and metrics.
type EndpointDescriptor struct {
	Endpoint    string
	Description string
}

// Segment is one hash-range partition of a single (class, kind) routing
// table. HashRangeStart is inclusive; the range extends to the next
// segment's HashRangeStart (exclusive), or to +∞ for the last segment in
// the partition. Event segments carry exactly one Endpoints entry; Query
// segments may carry several (read replicas).
type Segment struct {
	Class          domain.ElementClass
	Kind           domain.OperationKind
	HashRangeStart int32
	Endpoints      []EndpointDescriptor
}

type classKindKey struct {
	class domain.ElementClass
	kind  domain.OperationKind
}

// Set is an immutable routing table: one sorted, gap-free, overlap-free
// list of Segments per (class, kind). Construct with New, which validates
// the partition invariant; never build a Set by hand outside this
// package.
type Set struct {
	byClassKind map[classKindKey][]Segment
}

// New validates segments and builds an immutable Set. Validation failures
// return an error and no Set; callers performing a configuration refresh
// must leave the previously active Set in place when this returns an
// error.
func New(segments []Segment) (*Set, error) {
	grouped := make(map[classKindKey][]Segment)
	for _, seg := range segments {
		if !seg.Class.Valid() {
			return nil, fmt.Errorf("shardconfig: invalid element class %q", seg.Class)
		}
		if !seg.Kind.Valid() {
			return nil, fmt.Errorf("shardconfig: invalid operation kind %q", seg.Kind)
		}
		key := classKindKey{seg.Class, seg.Kind}
		grouped[key] = append(grouped[key], seg)
	}

	for key, segs := range grouped {
		sort.Slice(segs, func(i, j int) bool { return segs[i].HashRangeStart < segs[j].HashRangeStart })
		if err := validatePartition(key, segs); err != nil {
			return nil, err
		}
		grouped[key] = segs
	}

	return &Set{byClassKind: grouped}, nil
}

// validatePartition enforces the partition invariants for one
// (class, kind) group: no gaps, no overlaps, exactly one endpoint for
// Event segments, at least one endpoint for Query segments.
func validatePartition(key classKindKey, segs []Segment) error {
	if len(segs) == 0 {
		return nil
	}
	seen := make(map[int32]struct{}, len(segs))
	for i, seg := range segs {
		if _, dup := seen[seg.HashRangeStart]; dup {
			return fmt.Errorf("shardconfig: duplicate hashRangeStart %d for %s/%s", seg.HashRangeStart, key.class, key.kind)
		}
		seen[seg.HashRangeStart] = struct{}{}

		if len(seg.Endpoints) == 0 {
			return fmt.Errorf("shardconfig: segment %d of %s/%s has no endpoints", seg.HashRangeStart, key.class, key.kind)
		}
		if key.kind == domain.Event && len(seg.Endpoints) != 1 {
			return fmt.Errorf("shardconfig: event segment %d of %s/%s must have exactly one endpoint, got %d", seg.HashRangeStart, key.class, key.kind, len(seg.Endpoints))
		}
		_ = i
	}

	// The first segment must start at (or before) math.MinInt32 so the
	// partition covers the full domain from the left.
	if segs[0].HashRangeStart != minInt32 {
		return fmt.Errorf("shardconfig: %s/%s partition has a gap before its first segment (starts at %d, want %d)", key.class, key.kind, segs[0].HashRangeStart, minInt32)
	}
	return nil
}

const minInt32 = -1 << 31

// LookupSegment returns the Segment whose range covers hash for
// (class, kind), using a binary search over the sorted range starts.
// Lookup does not perform I/O and never blocks; the only failure mode is
// an unconfigured (class, kind) pair.
func (s *Set) LookupSegment(class domain.ElementClass, kind domain.OperationKind, hash int32) (Segment, error) {
	segs, ok := s.byClassKind[classKindKey{class, kind}]
	if !ok || len(segs) == 0 {
		return Segment{}, fmt.Errorf("shardconfig: no segments configured for %s/%s", class, kind)
	}

	// Find the last segment whose HashRangeStart is <= hash.
	idx, found := slices.BinarySearchFunc(segs, hash, func(seg Segment, target int32) int {
		switch {
		case seg.HashRangeStart < target:
			return -1
		case seg.HashRangeStart > target:
			return 1
		default:
			return 0
		}
	})
	if !found {
		// idx is the insertion point; the owning segment is the one before it.
		idx--
	}
	if idx < 0 {
		idx = 0
	}
	return segs[idx], nil
}

// AllSegments returns every segment configured for (class, kind), in
// ascending HashRangeStart order. Used by fan-out operations that must
// visit every shard of a class regardless of key.
func (s *Set) AllSegments(class domain.ElementClass, kind domain.OperationKind) []Segment {
	segs := s.byClassKind[classKindKey{class, kind}]
	out := make([]Segment, len(segs))
	copy(out, segs)
	return out
}

// AllEndpoints enumerates the distinct endpoints configured for
// (class, kind) across every segment. Order is stable within a given
// Set but otherwise unspecified.
func (s *Set) AllEndpoints(class domain.ElementClass, kind domain.OperationKind) []EndpointDescriptor {
	segs := s.byClassKind[classKindKey{class, kind}]
	seen := make(map[string]struct{})
	var out []EndpointDescriptor
	for _, seg := range segs {
		for _, ep := range seg.Endpoints {
			if _, dup := seen[ep.Endpoint]; dup {
				continue
			}
			seen[ep.Endpoint] = struct{}{}
			out = append(out, ep)
		}
	}
	return out
}

// Snapshot returns s itself: Set is immutable once constructed, so a
// snapshot is just a reference to the current value held by whoever owns
// the active configuration (see internal/shardmgr.Manager). The method
// exists to make snapshot semantics explicit at call sites.
func (s *Set) Snapshot() *Set { return s }
