// Package shardclient implements a transport-agnostic RPC client exposing
// the full event/query surface of one shard-group node, plus the one
// concrete HTTP+JSON transport used in this repository.
//
// Built around the same shape as a PostJSON/GetJSON helper wrapping a
// shared *http.Client with a fixed timeout and context-based
// cancellation, generalized from plain node storage operations
// (Get/Put/Delete) to the full authorization wire surface below.
package shardclient

import "context"

// Client is the full RPC surface a shard-group node exposes. Every method
// takes a context for cancellation/timeout propagation. Identifiers are
// plain strings throughout: the element type parameters a caller might
// imagine (TUser, TGroup, TComponent, TAccess) collapse to string at this
// boundary because the wire format is textual.
//
// Instances are never constructed directly by callers; they are created
// and owned exclusively by internal/shardmgr.Manager and are always
// retrieved alongside the stable ShardDescription that names their
// endpoint.
type Client interface {
	// Health reports whether the shard node is reachable and accepting
	// requests. Not part of the authorization surface itself; the
	// Manager's lifecycle tracking does not call it.
	Health(ctx context.Context) error

	// --- User ---

	AddUser(ctx context.Context, user string) error
	RemoveUser(ctx context.Context, user string) error
	ContainsUser(ctx context.Context, user string) (bool, error)
	GetUserToGroupMappings(ctx context.Context, user string, includeIndirect bool) ([]string, error)

	// GetUsers returns every user known to this shard, for the union
	// lookup the Coordinator and Router fan out across every User shard.
	GetUsers(ctx context.Context) ([]string, error)

	// --- Group ---

	AddGroup(ctx context.Context, group string) error
	RemoveGroup(ctx context.Context, group string) error
	ContainsGroup(ctx context.Context, group string) (bool, error)
	GetGroupToGroupMappings(ctx context.Context, groups []string, includeIndirect bool) ([]string, error)
	GetGroupToGroupReverseMappings(ctx context.Context, groups []string) ([]string, error)

	// GetGroups returns every group known to this shard.
	GetGroups(ctx context.Context) ([]string, error)

	// GetGroupToUserMappings returns every user directly mapped to any
	// of groups, the reverse of GetUserToGroupMappings.
	GetGroupToUserMappings(ctx context.Context, groups []string) ([]string, error)

	// --- User/Group mappings ---

	AddUserToGroupMapping(ctx context.Context, user, group string) error
	RemoveUserToGroupMapping(ctx context.Context, user, group string) error
	AddGroupToGroupMapping(ctx context.Context, fromGroup, toGroup string) error
	RemoveGroupToGroupMapping(ctx context.Context, fromGroup, toGroup string) error

	// --- Application component access ---

	AddUserToApplicationComponentAndAccessLevel(ctx context.Context, user, component, accessLevel string) error
	RemoveUserToApplicationComponentAndAccessLevel(ctx context.Context, user, component, accessLevel string) error
	AddGroupToApplicationComponentAndAccessLevel(ctx context.Context, group, component, accessLevel string) error
	RemoveGroupToApplicationComponentAndAccessLevel(ctx context.Context, group, component, accessLevel string) error
	GetApplicationComponentAndAccessLevelToUserMappings(ctx context.Context, component, accessLevel string, includeIndirect bool) ([]string, error)
	GetApplicationComponentAndAccessLevelToGroupMappings(ctx context.Context, component, accessLevel string) ([]string, error)

	// --- Entity types and entities ---

	AddEntityType(ctx context.Context, entityType string) error
	RemoveEntityType(ctx context.Context, entityType string) error
	ContainsEntityType(ctx context.Context, entityType string) (bool, error)
	AddEntity(ctx context.Context, entityType, entity string) error
	RemoveEntity(ctx context.Context, entityType, entity string) error
	ContainsEntity(ctx context.Context, entityType, entity string) (bool, error)
	GetEntities(ctx context.Context, entityType string) ([]string, error)

	// --- Entity mappings ---

	AddUserToEntityMapping(ctx context.Context, user, entityType, entity string) error
	RemoveUserToEntityMapping(ctx context.Context, user, entityType, entity string) error
	AddGroupToEntityMapping(ctx context.Context, group, entityType, entity string) error
	RemoveGroupToEntityMapping(ctx context.Context, group, entityType, entity string) error
	// GetUserToEntityMappings returns the entities mapped to user,
	// optionally restricted to entityType (empty string means "all
	// types").
	GetUserToEntityMappings(ctx context.Context, user, entityType string) ([]EntityRef, error)
	GetGroupToEntityMappings(ctx context.Context, group, entityType string) ([]EntityRef, error)
	GetEntityToUserMappings(ctx context.Context, entityType, entity string, includeIndirect bool) ([]string, error)
	GetEntityToGroupMappings(ctx context.Context, entityType, entity string) ([]string, error)

	// --- Group-rooted authorization predicates (used by both the
	// Coordinator's traversal step 3 and the Query Router directly) ---

	HasAccessToApplicationComponent(ctx context.Context, groups []string, component, accessLevel string) (bool, error)
	HasAccessToEntity(ctx context.Context, groups []string, entityType, entity string) (bool, error)
	GetApplicationComponentsAccessibleByGroups(ctx context.Context, groups []string) ([]ComponentAccess, error)
	GetEntitiesAccessibleByGroups(ctx context.Context, groups []string, entityType string) ([]EntityRef, error)

	// --- User-rooted direct authorization predicates (a traversal's own
	// direct-grant phase, independent of group closure) ---

	HasDirectAccessToApplicationComponent(ctx context.Context, user, component, accessLevel string) (bool, error)
	HasDirectAccessToEntity(ctx context.Context, user, entityType, entity string) (bool, error)
	GetDirectApplicationComponentAccess(ctx context.Context, user string) ([]ComponentAccess, error)
	GetDirectEntityAccess(ctx context.Context, user, entityType string) ([]EntityRef, error)
}

// EntityRef identifies one (entityType, entity) pair on the wire.
type EntityRef struct {
	EntityType string `json:"entityType"`
	Entity     string `json:"entity"`
}

// ComponentAccess identifies one (component, accessLevel) pair on the
// wire.
type ComponentAccess struct {
	Component   string `json:"component"`
	AccessLevel string `json:"accessLevel"`
}
