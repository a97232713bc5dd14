// Package domain defines the closed element-class and operation-kind
// vocabulary shared by every routing, fan-out, and traversal component in
// authzd. Nothing in this package performs I/O; it exists so that the rest
// of the codebase can refer to "User", "Group", "Event", "Query" etc. as
// typed constants instead of bare strings.
package domain

import "fmt"

// ElementClass is one of the four data classes sharded across the cluster.
// The set is closed: routing, validation, and traversal code switch
// exhaustively over these values and treat any other value as a caller
// error.
type ElementClass string

const (
	// User identifies the shard set that owns user records and
	// user-keyed mappings (user->group, user->component, user->entity).
	User ElementClass = "User"

	// Group identifies the shard set that owns group records and
	// group-keyed mappings.
	Group ElementClass = "Group"

	// GroupToGroupMapping identifies the shard set that owns directed
	// group->group edges. These shards are consulted only during
	// group-closure traversal, never for single-key lookups.
	GroupToGroupMapping ElementClass = "GroupToGroupMapping"

	// Entity identifies entity types and entities themselves. Unlike the
	// other three classes, Entity is never independently sharded: there
	// is no hash(entityType) or hash(entity) to route by. Entity events
	// and queries are instead fanned out across every User and Group
	// shard, since entity-type membership and user-/group-to-entity
	// edges are themselves stored keyed by the owning user or group.
	// GetClient-style single-key routing never accepts this class.
	Entity ElementClass = "Entity"
)

// Valid reports whether c is one of the four closed element classes.
func (c ElementClass) Valid() bool {
	switch c {
	case User, Group, GroupToGroupMapping, Entity:
		return true
	default:
		return false
	}
}

func (c ElementClass) String() string { return string(c) }

// OperationKind distinguishes state-mutating events from read-only
// queries. At most one Event shard covers a given key; a Query range may
// have many replica endpoints.
type OperationKind string

const (
	// Event operations mutate shard state. Every Event range has exactly
	// one endpoint.
	Event OperationKind = "Event"

	// Query operations are read-only and may be served by any replica
	// in the owning range.
	Query OperationKind = "Query"
)

// Valid reports whether k is Event or Query.
func (k OperationKind) Valid() bool {
	switch k {
	case Event, Query:
		return true
	default:
		return false
	}
}

func (k OperationKind) String() string { return string(k) }

// ErrInvalidElementClass is returned when a caller names an element class
// outside the closed set, or names one that is structurally inapplicable
// to the operation (e.g. Entity passed to a single-key GetClient lookup).
type ErrInvalidElementClass struct {
	Class ElementClass
	Why   string
}

func (e *ErrInvalidElementClass) Error() string {
	if e.Why != "" {
		return fmt.Sprintf("domain: invalid element class %q: %s", e.Class, e.Why)
	}
	return fmt.Sprintf("domain: invalid element class %q", e.Class)
}
