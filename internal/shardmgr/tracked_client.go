package shardmgr

import (
	"context"
	"sync/atomic"

	"github.com/dreamware/authzd/internal/shardclient"
)

// trackedClient wraps a shardclient.Client so that every call increments
// the owning entry's in-flight refcount for its duration, an
// atomic-counter-around-delegated-calls idiom. Draining watches this
// refcount to decide when an endpoint removed from configuration is safe
// to dispose.
type trackedClient struct {
	entry *entry
	inner shardclient.Client
}

func trackErr(e *entry, fn func() error) error {
	atomic.AddInt64(&e.inFlight, 1)
	defer atomic.AddInt64(&e.inFlight, -1)
	return fn()
}

func trackVal[T any](e *entry, fn func() (T, error)) (T, error) {
	atomic.AddInt64(&e.inFlight, 1)
	defer atomic.AddInt64(&e.inFlight, -1)
	return fn()
}

func (t *trackedClient) Health(ctx context.Context) error {
	return trackErr(t.entry, func() error { return t.inner.Health(ctx) })
}

func (t *trackedClient) AddUser(ctx context.Context, user string) error {
	return trackErr(t.entry, func() error { return t.inner.AddUser(ctx, user) })
}

func (t *trackedClient) RemoveUser(ctx context.Context, user string) error {
	return trackErr(t.entry, func() error { return t.inner.RemoveUser(ctx, user) })
}

func (t *trackedClient) ContainsUser(ctx context.Context, user string) (bool, error) {
	return trackVal(t.entry, func() (bool, error) { return t.inner.ContainsUser(ctx, user) })
}

func (t *trackedClient) GetUserToGroupMappings(ctx context.Context, user string, includeIndirect bool) ([]string, error) {
	return trackVal(t.entry, func() ([]string, error) { return t.inner.GetUserToGroupMappings(ctx, user, includeIndirect) })
}

func (t *trackedClient) AddGroup(ctx context.Context, group string) error {
	return trackErr(t.entry, func() error { return t.inner.AddGroup(ctx, group) })
}

func (t *trackedClient) RemoveGroup(ctx context.Context, group string) error {
	return trackErr(t.entry, func() error { return t.inner.RemoveGroup(ctx, group) })
}

func (t *trackedClient) ContainsGroup(ctx context.Context, group string) (bool, error) {
	return trackVal(t.entry, func() (bool, error) { return t.inner.ContainsGroup(ctx, group) })
}

func (t *trackedClient) GetGroupToGroupMappings(ctx context.Context, groups []string, includeIndirect bool) ([]string, error) {
	return trackVal(t.entry, func() ([]string, error) { return t.inner.GetGroupToGroupMappings(ctx, groups, includeIndirect) })
}

func (t *trackedClient) GetGroupToGroupReverseMappings(ctx context.Context, groups []string) ([]string, error) {
	return trackVal(t.entry, func() ([]string, error) { return t.inner.GetGroupToGroupReverseMappings(ctx, groups) })
}

func (t *trackedClient) AddUserToGroupMapping(ctx context.Context, user, group string) error {
	return trackErr(t.entry, func() error { return t.inner.AddUserToGroupMapping(ctx, user, group) })
}

func (t *trackedClient) RemoveUserToGroupMapping(ctx context.Context, user, group string) error {
	return trackErr(t.entry, func() error { return t.inner.RemoveUserToGroupMapping(ctx, user, group) })
}

func (t *trackedClient) AddGroupToGroupMapping(ctx context.Context, fromGroup, toGroup string) error {
	return trackErr(t.entry, func() error { return t.inner.AddGroupToGroupMapping(ctx, fromGroup, toGroup) })
}

func (t *trackedClient) RemoveGroupToGroupMapping(ctx context.Context, fromGroup, toGroup string) error {
	return trackErr(t.entry, func() error { return t.inner.RemoveGroupToGroupMapping(ctx, fromGroup, toGroup) })
}

func (t *trackedClient) AddUserToApplicationComponentAndAccessLevel(ctx context.Context, user, component, accessLevel string) error {
	return trackErr(t.entry, func() error {
		return t.inner.AddUserToApplicationComponentAndAccessLevel(ctx, user, component, accessLevel)
	})
}

func (t *trackedClient) RemoveUserToApplicationComponentAndAccessLevel(ctx context.Context, user, component, accessLevel string) error {
	return trackErr(t.entry, func() error {
		return t.inner.RemoveUserToApplicationComponentAndAccessLevel(ctx, user, component, accessLevel)
	})
}

func (t *trackedClient) AddGroupToApplicationComponentAndAccessLevel(ctx context.Context, group, component, accessLevel string) error {
	return trackErr(t.entry, func() error {
		return t.inner.AddGroupToApplicationComponentAndAccessLevel(ctx, group, component, accessLevel)
	})
}

func (t *trackedClient) RemoveGroupToApplicationComponentAndAccessLevel(ctx context.Context, group, component, accessLevel string) error {
	return trackErr(t.entry, func() error {
		return t.inner.RemoveGroupToApplicationComponentAndAccessLevel(ctx, group, component, accessLevel)
	})
}

func (t *trackedClient) GetApplicationComponentAndAccessLevelToUserMappings(ctx context.Context, component, accessLevel string, includeIndirect bool) ([]string, error) {
	return trackVal(t.entry, func() ([]string, error) {
		return t.inner.GetApplicationComponentAndAccessLevelToUserMappings(ctx, component, accessLevel, includeIndirect)
	})
}

func (t *trackedClient) GetApplicationComponentAndAccessLevelToGroupMappings(ctx context.Context, component, accessLevel string) ([]string, error) {
	return trackVal(t.entry, func() ([]string, error) {
		return t.inner.GetApplicationComponentAndAccessLevelToGroupMappings(ctx, component, accessLevel)
	})
}

func (t *trackedClient) AddEntityType(ctx context.Context, entityType string) error {
	return trackErr(t.entry, func() error { return t.inner.AddEntityType(ctx, entityType) })
}

func (t *trackedClient) RemoveEntityType(ctx context.Context, entityType string) error {
	return trackErr(t.entry, func() error { return t.inner.RemoveEntityType(ctx, entityType) })
}

func (t *trackedClient) ContainsEntityType(ctx context.Context, entityType string) (bool, error) {
	return trackVal(t.entry, func() (bool, error) { return t.inner.ContainsEntityType(ctx, entityType) })
}

func (t *trackedClient) AddEntity(ctx context.Context, entityType, entity string) error {
	return trackErr(t.entry, func() error { return t.inner.AddEntity(ctx, entityType, entity) })
}

func (t *trackedClient) RemoveEntity(ctx context.Context, entityType, entity string) error {
	return trackErr(t.entry, func() error { return t.inner.RemoveEntity(ctx, entityType, entity) })
}

func (t *trackedClient) ContainsEntity(ctx context.Context, entityType, entity string) (bool, error) {
	return trackVal(t.entry, func() (bool, error) { return t.inner.ContainsEntity(ctx, entityType, entity) })
}

func (t *trackedClient) GetEntities(ctx context.Context, entityType string) ([]string, error) {
	return trackVal(t.entry, func() ([]string, error) { return t.inner.GetEntities(ctx, entityType) })
}

func (t *trackedClient) AddUserToEntityMapping(ctx context.Context, user, entityType, entity string) error {
	return trackErr(t.entry, func() error { return t.inner.AddUserToEntityMapping(ctx, user, entityType, entity) })
}

func (t *trackedClient) RemoveUserToEntityMapping(ctx context.Context, user, entityType, entity string) error {
	return trackErr(t.entry, func() error { return t.inner.RemoveUserToEntityMapping(ctx, user, entityType, entity) })
}

func (t *trackedClient) AddGroupToEntityMapping(ctx context.Context, group, entityType, entity string) error {
	return trackErr(t.entry, func() error { return t.inner.AddGroupToEntityMapping(ctx, group, entityType, entity) })
}

func (t *trackedClient) RemoveGroupToEntityMapping(ctx context.Context, group, entityType, entity string) error {
	return trackErr(t.entry, func() error { return t.inner.RemoveGroupToEntityMapping(ctx, group, entityType, entity) })
}

func (t *trackedClient) GetUserToEntityMappings(ctx context.Context, user, entityType string) ([]shardclient.EntityRef, error) {
	return trackVal(t.entry, func() ([]shardclient.EntityRef, error) { return t.inner.GetUserToEntityMappings(ctx, user, entityType) })
}

func (t *trackedClient) GetGroupToEntityMappings(ctx context.Context, group, entityType string) ([]shardclient.EntityRef, error) {
	return trackVal(t.entry, func() ([]shardclient.EntityRef, error) { return t.inner.GetGroupToEntityMappings(ctx, group, entityType) })
}

func (t *trackedClient) GetEntityToUserMappings(ctx context.Context, entityType, entity string, includeIndirect bool) ([]string, error) {
	return trackVal(t.entry, func() ([]string, error) {
		return t.inner.GetEntityToUserMappings(ctx, entityType, entity, includeIndirect)
	})
}

func (t *trackedClient) GetEntityToGroupMappings(ctx context.Context, entityType, entity string) ([]string, error) {
	return trackVal(t.entry, func() ([]string, error) { return t.inner.GetEntityToGroupMappings(ctx, entityType, entity) })
}

func (t *trackedClient) HasAccessToApplicationComponent(ctx context.Context, groups []string, component, accessLevel string) (bool, error) {
	return trackVal(t.entry, func() (bool, error) {
		return t.inner.HasAccessToApplicationComponent(ctx, groups, component, accessLevel)
	})
}

func (t *trackedClient) HasAccessToEntity(ctx context.Context, groups []string, entityType, entity string) (bool, error) {
	return trackVal(t.entry, func() (bool, error) { return t.inner.HasAccessToEntity(ctx, groups, entityType, entity) })
}

func (t *trackedClient) GetApplicationComponentsAccessibleByGroups(ctx context.Context, groups []string) ([]shardclient.ComponentAccess, error) {
	return trackVal(t.entry, func() ([]shardclient.ComponentAccess, error) {
		return t.inner.GetApplicationComponentsAccessibleByGroups(ctx, groups)
	})
}

func (t *trackedClient) GetEntitiesAccessibleByGroups(ctx context.Context, groups []string, entityType string) ([]shardclient.EntityRef, error) {
	return trackVal(t.entry, func() ([]shardclient.EntityRef, error) {
		return t.inner.GetEntitiesAccessibleByGroups(ctx, groups, entityType)
	})
}

var _ shardclient.Client = (*trackedClient)(nil)
