package shardclient

import (
	"context"
	"sync"
)

// Fake is an in-memory Client used by tests across
// internal/shardmgr, internal/coordinator, and internal/router, so those
// packages can exercise real fan-out/traversal logic without a network.
// A mutex-guarded map-of-maps standing in for a real backend, covering
// the full authorization surface rather than a single key/value store.
type Fake struct {
	mu sync.Mutex

	Description string

	users      map[string]bool
	groups     map[string]bool
	entityType map[string]bool
	entities   map[string]map[string]bool // entityType -> entity -> present

	userToGroup  map[string]map[string]bool
	groupToGroup map[string]map[string]bool

	userComponentAccess  map[string]map[ComponentAccess]bool
	groupComponentAccess map[string]map[ComponentAccess]bool

	userEntity  map[string]map[EntityRef]bool
	groupEntity map[string]map[EntityRef]bool

	// FailNext, when non-nil, is returned (and cleared) by the next call
	// to any method, letting tests inject a single transient failure.
	FailNext error

	// Unhealthy makes Health always fail.
	Unhealthy bool
}

// NewFake returns an empty fake shard client described by description.
func NewFake(description string) *Fake {
	return &Fake{
		Description:          description,
		users:                map[string]bool{},
		groups:               map[string]bool{},
		entityType:           map[string]bool{},
		entities:             map[string]map[string]bool{},
		userToGroup:          map[string]map[string]bool{},
		groupToGroup:         map[string]map[string]bool{},
		userComponentAccess:  map[string]map[ComponentAccess]bool{},
		groupComponentAccess: map[string]map[ComponentAccess]bool{},
		userEntity:           map[string]map[EntityRef]bool{},
		groupEntity:          map[string]map[EntityRef]bool{},
	}
}

func (f *Fake) takeFailure() error {
	err := f.FailNext
	f.FailNext = nil
	return err
}

func (f *Fake) Health(ctx context.Context) error {
	if f.Unhealthy {
		return &NotFoundError{Path: "/v1/health"}
	}
	return nil
}

func (f *Fake) AddUser(ctx context.Context, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.users[user] = true
	return nil
}

func (f *Fake) RemoveUser(ctx context.Context, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.users, user)
	delete(f.userToGroup, user)
	return nil
}

func (f *Fake) ContainsUser(ctx context.Context, user string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	return f.users[user], nil
}

func (f *Fake) GetUserToGroupMappings(ctx context.Context, user string, includeIndirect bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	return keysOf(f.userToGroup[user]), nil
}

func (f *Fake) GetUsers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	return keysOf(f.users), nil
}

func (f *Fake) AddGroup(ctx context.Context, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.groups[group] = true
	return nil
}

func (f *Fake) RemoveGroup(ctx context.Context, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.groups, group)
	delete(f.groupToGroup, group)
	for _, set := range f.userToGroup {
		delete(set, group)
	}
	for _, set := range f.groupToGroup {
		delete(set, group)
	}
	return nil
}

func (f *Fake) ContainsGroup(ctx context.Context, group string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	return f.groups[group], nil
}

func (f *Fake) GetGroupToGroupMappings(ctx context.Context, groups []string, includeIndirect bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, g := range groups {
		for to := range f.groupToGroup[g] {
			seen[to] = true
		}
	}
	return keysOf(seen), nil
}

func (f *Fake) GetGroupToGroupReverseMappings(ctx context.Context, groups []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	target := map[string]bool{}
	for _, g := range groups {
		target[g] = true
	}
	seen := map[string]bool{}
	for from, tos := range f.groupToGroup {
		for to := range tos {
			if target[to] {
				seen[from] = true
			}
		}
	}
	return keysOf(seen), nil
}

func (f *Fake) GetGroups(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	return keysOf(f.groups), nil
}

func (f *Fake) GetGroupToUserMappings(ctx context.Context, groups []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	target := map[string]bool{}
	for _, g := range groups {
		target[g] = true
	}
	seen := map[string]bool{}
	for user, gset := range f.userToGroup {
		for g := range gset {
			if target[g] {
				seen[user] = true
				break
			}
		}
	}
	return keysOf(seen), nil
}

func (f *Fake) AddUserToGroupMapping(ctx context.Context, user, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if f.userToGroup[user] == nil {
		f.userToGroup[user] = map[string]bool{}
	}
	f.userToGroup[user][group] = true
	return nil
}

func (f *Fake) RemoveUserToGroupMapping(ctx context.Context, user, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.userToGroup[user], group)
	return nil
}

func (f *Fake) AddGroupToGroupMapping(ctx context.Context, fromGroup, toGroup string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if f.groupToGroup[fromGroup] == nil {
		f.groupToGroup[fromGroup] = map[string]bool{}
	}
	f.groupToGroup[fromGroup][toGroup] = true
	return nil
}

func (f *Fake) RemoveGroupToGroupMapping(ctx context.Context, fromGroup, toGroup string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.groupToGroup[fromGroup], toGroup)
	return nil
}

func (f *Fake) AddUserToApplicationComponentAndAccessLevel(ctx context.Context, user, component, accessLevel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if f.userComponentAccess[user] == nil {
		f.userComponentAccess[user] = map[ComponentAccess]bool{}
	}
	f.userComponentAccess[user][ComponentAccess{component, accessLevel}] = true
	return nil
}

func (f *Fake) RemoveUserToApplicationComponentAndAccessLevel(ctx context.Context, user, component, accessLevel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.userComponentAccess[user], ComponentAccess{component, accessLevel})
	return nil
}

func (f *Fake) AddGroupToApplicationComponentAndAccessLevel(ctx context.Context, group, component, accessLevel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if f.groupComponentAccess[group] == nil {
		f.groupComponentAccess[group] = map[ComponentAccess]bool{}
	}
	f.groupComponentAccess[group][ComponentAccess{component, accessLevel}] = true
	return nil
}

func (f *Fake) RemoveGroupToApplicationComponentAndAccessLevel(ctx context.Context, group, component, accessLevel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.groupComponentAccess[group], ComponentAccess{component, accessLevel})
	return nil
}

func (f *Fake) GetApplicationComponentAndAccessLevelToUserMappings(ctx context.Context, component, accessLevel string, includeIndirect bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	ca := ComponentAccess{component, accessLevel}
	var out []string
	for user, set := range f.userComponentAccess {
		if set[ca] {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *Fake) GetApplicationComponentAndAccessLevelToGroupMappings(ctx context.Context, component, accessLevel string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	ca := ComponentAccess{component, accessLevel}
	var out []string
	for group, set := range f.groupComponentAccess {
		if set[ca] {
			out = append(out, group)
		}
	}
	return out, nil
}

func (f *Fake) AddEntityType(ctx context.Context, entityType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.entityType[entityType] = true
	if f.entities[entityType] == nil {
		f.entities[entityType] = map[string]bool{}
	}
	return nil
}

func (f *Fake) RemoveEntityType(ctx context.Context, entityType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.entityType, entityType)
	delete(f.entities, entityType)
	return nil
}

func (f *Fake) ContainsEntityType(ctx context.Context, entityType string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	return f.entityType[entityType], nil
}

func (f *Fake) AddEntity(ctx context.Context, entityType, entity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if f.entities[entityType] == nil {
		f.entities[entityType] = map[string]bool{}
	}
	f.entities[entityType][entity] = true
	return nil
}

func (f *Fake) RemoveEntity(ctx context.Context, entityType, entity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.entities[entityType], entity)
	return nil
}

func (f *Fake) ContainsEntity(ctx context.Context, entityType, entity string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	if _, ok := f.entities[entityType]; !ok {
		return false, &NotFoundError{Path: entityType}
	}
	return f.entities[entityType][entity], nil
}

func (f *Fake) GetEntities(ctx context.Context, entityType string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	return keysOf(f.entities[entityType]), nil
}

func (f *Fake) AddUserToEntityMapping(ctx context.Context, user, entityType, entity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if f.userEntity[user] == nil {
		f.userEntity[user] = map[EntityRef]bool{}
	}
	f.userEntity[user][EntityRef{entityType, entity}] = true
	return nil
}

func (f *Fake) RemoveUserToEntityMapping(ctx context.Context, user, entityType, entity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.userEntity[user], EntityRef{entityType, entity})
	return nil
}

func (f *Fake) AddGroupToEntityMapping(ctx context.Context, group, entityType, entity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if f.groupEntity[group] == nil {
		f.groupEntity[group] = map[EntityRef]bool{}
	}
	f.groupEntity[group][EntityRef{entityType, entity}] = true
	return nil
}

func (f *Fake) RemoveGroupToEntityMapping(ctx context.Context, group, entityType, entity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.groupEntity[group], EntityRef{entityType, entity})
	return nil
}

func (f *Fake) GetUserToEntityMappings(ctx context.Context, user, entityType string) ([]EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	var out []EntityRef
	for ref := range f.userEntity[user] {
		if entityType == "" || ref.EntityType == entityType {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (f *Fake) GetGroupToEntityMappings(ctx context.Context, group, entityType string) ([]EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	var out []EntityRef
	for ref := range f.groupEntity[group] {
		if entityType == "" || ref.EntityType == entityType {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (f *Fake) GetEntityToUserMappings(ctx context.Context, entityType, entity string, includeIndirect bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	ref := EntityRef{entityType, entity}
	var out []string
	for user, refs := range f.userEntity {
		if refs[ref] {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *Fake) GetEntityToGroupMappings(ctx context.Context, entityType, entity string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	ref := EntityRef{entityType, entity}
	var out []string
	for group, refs := range f.groupEntity {
		if refs[ref] {
			out = append(out, group)
		}
	}
	return out, nil
}

func (f *Fake) HasAccessToApplicationComponent(ctx context.Context, groups []string, component, accessLevel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	ca := ComponentAccess{component, accessLevel}
	for _, g := range groups {
		if f.groupComponentAccess[g][ca] {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) HasAccessToEntity(ctx context.Context, groups []string, entityType, entity string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	ref := EntityRef{entityType, entity}
	for _, g := range groups {
		if f.groupEntity[g][ref] {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) GetApplicationComponentsAccessibleByGroups(ctx context.Context, groups []string) ([]ComponentAccess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	seen := map[ComponentAccess]bool{}
	for _, g := range groups {
		for ca := range f.groupComponentAccess[g] {
			seen[ca] = true
		}
	}
	out := make([]ComponentAccess, 0, len(seen))
	for ca := range seen {
		out = append(out, ca)
	}
	return out, nil
}

func (f *Fake) GetEntitiesAccessibleByGroups(ctx context.Context, groups []string, entityType string) ([]EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	seen := map[EntityRef]bool{}
	for _, g := range groups {
		for ref := range f.groupEntity[g] {
			if entityType == "" || ref.EntityType == entityType {
				seen[ref] = true
			}
		}
	}
	out := make([]EntityRef, 0, len(seen))
	for ref := range seen {
		out = append(out, ref)
	}
	return out, nil
}

func (f *Fake) HasDirectAccessToApplicationComponent(ctx context.Context, user, component, accessLevel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	return f.userComponentAccess[user][ComponentAccess{component, accessLevel}], nil
}

func (f *Fake) HasDirectAccessToEntity(ctx context.Context, user, entityType, entity string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	return f.userEntity[user][EntityRef{entityType, entity}], nil
}

func (f *Fake) GetDirectApplicationComponentAccess(ctx context.Context, user string) ([]ComponentAccess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]ComponentAccess, 0, len(f.userComponentAccess[user]))
	for ca := range f.userComponentAccess[user] {
		out = append(out, ca)
	}
	return out, nil
}

func (f *Fake) GetDirectEntityAccess(ctx context.Context, user, entityType string) ([]EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	var out []EntityRef
	for ref := range f.userEntity[user] {
		if entityType == "" || ref.EntityType == entityType {
			out = append(out, ref)
		}
	}
	return out, nil
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

var _ Client = (*Fake)(nil)
