// Package accessmanager implements the in-memory authorization store
// backing the reference shard-group node (cmd/shardnode). It is the
// server-side half of the wire surface internal/shardclient.Client
// defines: every operation a Client method can send over the wire has a
// matching method here that actually holds the data.
//
// An RWMutex-guarded store wrapped with atomic operation counters,
// generalized from a single key/value namespace to the full set/edge
// structures authorization data requires.
package accessmanager

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dreamware/authzd/internal/shardclient"
)

// OperationStats counts event (mutating) and query (read) calls served.
type OperationStats struct {
	Events  uint64
	Queries uint64
}

// ErrNotFound is returned by queries against an entity type that was
// never registered. internal/shardnodeserver answers such a request
// with HTTP 404, which shardclient.HTTPClient reports as
// *shardclient.NotFoundError.
var ErrNotFound = fmt.Errorf("accessmanager: not found")

// Manager is the authoritative data store for one shard-group node. A
// single Manager instance serves every class's partition the node has
// been configured to own; it does not itself know which hash ranges
// route to it — that is cmd/shardnode's and the Shard Configuration
// Set's concern.
type Manager struct {
	mu sync.RWMutex

	events  uint64
	queries uint64

	users      map[string]bool
	groups     map[string]bool
	entityType map[string]bool
	entities   map[string]map[string]bool

	userToGroup  map[string]map[string]bool
	groupToGroup map[string]map[string]bool

	userComponentAccess  map[string]map[shardclient.ComponentAccess]bool
	groupComponentAccess map[string]map[shardclient.ComponentAccess]bool

	userEntity  map[string]map[shardclient.EntityRef]bool
	groupEntity map[string]map[shardclient.EntityRef]bool
}

// New returns an empty Manager ready to serve requests.
func New() *Manager {
	return &Manager{
		users:                map[string]bool{},
		groups:               map[string]bool{},
		entityType:           map[string]bool{},
		entities:             map[string]map[string]bool{},
		userToGroup:          map[string]map[string]bool{},
		groupToGroup:         map[string]map[string]bool{},
		userComponentAccess:  map[string]map[shardclient.ComponentAccess]bool{},
		groupComponentAccess: map[string]map[shardclient.ComponentAccess]bool{},
		userEntity:           map[string]map[shardclient.EntityRef]bool{},
		groupEntity:          map[string]map[shardclient.EntityRef]bool{},
	}
}

// Stats returns a snapshot of operation counts served so far.
func (m *Manager) Stats() OperationStats {
	return OperationStats{
		Events:  atomic.LoadUint64(&m.events),
		Queries: atomic.LoadUint64(&m.queries),
	}
}

func (m *Manager) event(fn func()) {
	atomic.AddUint64(&m.events, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

func query[T any](m *Manager, fn func() T) T {
	atomic.AddUint64(&m.queries, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn()
}

// --- User ---

func (m *Manager) AddUser(user string) { m.event(func() { m.users[user] = true }) }

func (m *Manager) RemoveUser(user string) {
	m.event(func() {
		delete(m.users, user)
		delete(m.userToGroup, user)
	})
}

func (m *Manager) ContainsUser(user string) bool {
	return query(m, func() bool { return m.users[user] })
}

func (m *Manager) GetUserToGroupMappings(user string) []string {
	return query(m, func() []string { return keys(m.userToGroup[user]) })
}

// --- Group ---

func (m *Manager) AddGroup(group string) { m.event(func() { m.groups[group] = true }) }
func (m *Manager) RemoveGroup(group string) {
	m.event(func() {
		delete(m.groups, group)
		delete(m.groupToGroup, group)
		for _, set := range m.userToGroup {
			delete(set, group)
		}
		for _, set := range m.groupToGroup {
			delete(set, group)
		}
	})
}

func (m *Manager) ContainsGroup(group string) bool {
	return query(m, func() bool { return m.groups[group] })
}

func (m *Manager) GetGroupToGroupMappings(groups []string) []string {
	return query(m, func() []string {
		seen := map[string]bool{}
		for _, g := range groups {
			for to := range m.groupToGroup[g] {
				seen[to] = true
			}
		}
		return keys(seen)
	})
}

func (m *Manager) GetGroupToGroupReverseMappings(groups []string) []string {
	return query(m, func() []string {
		target := map[string]bool{}
		for _, g := range groups {
			target[g] = true
		}
		seen := map[string]bool{}
		for from, tos := range m.groupToGroup {
			for to := range tos {
				if target[to] {
					seen[from] = true
				}
			}
		}
		return keys(seen)
	})
}

// --- User/Group mappings ---

func (m *Manager) AddUserToGroupMapping(user, group string) {
	m.event(func() {
		if m.userToGroup[user] == nil {
			m.userToGroup[user] = map[string]bool{}
		}
		m.userToGroup[user][group] = true
	})
}

func (m *Manager) RemoveUserToGroupMapping(user, group string) {
	m.event(func() { delete(m.userToGroup[user], group) })
}

func (m *Manager) AddGroupToGroupMapping(fromGroup, toGroup string) {
	m.event(func() {
		if m.groupToGroup[fromGroup] == nil {
			m.groupToGroup[fromGroup] = map[string]bool{}
		}
		m.groupToGroup[fromGroup][toGroup] = true
	})
}

func (m *Manager) RemoveGroupToGroupMapping(fromGroup, toGroup string) {
	m.event(func() { delete(m.groupToGroup[fromGroup], toGroup) })
}

// --- Application component access ---

func (m *Manager) AddUserToApplicationComponentAndAccessLevel(user, component, accessLevel string) {
	m.event(func() {
		if m.userComponentAccess[user] == nil {
			m.userComponentAccess[user] = map[shardclient.ComponentAccess]bool{}
		}
		m.userComponentAccess[user][shardclient.ComponentAccess{Component: component, AccessLevel: accessLevel}] = true
	})
}

func (m *Manager) RemoveUserToApplicationComponentAndAccessLevel(user, component, accessLevel string) {
	m.event(func() {
		delete(m.userComponentAccess[user], shardclient.ComponentAccess{Component: component, AccessLevel: accessLevel})
	})
}

func (m *Manager) AddGroupToApplicationComponentAndAccessLevel(group, component, accessLevel string) {
	m.event(func() {
		if m.groupComponentAccess[group] == nil {
			m.groupComponentAccess[group] = map[shardclient.ComponentAccess]bool{}
		}
		m.groupComponentAccess[group][shardclient.ComponentAccess{Component: component, AccessLevel: accessLevel}] = true
	})
}

func (m *Manager) RemoveGroupToApplicationComponentAndAccessLevel(group, component, accessLevel string) {
	m.event(func() {
		delete(m.groupComponentAccess[group], shardclient.ComponentAccess{Component: component, AccessLevel: accessLevel})
	})
}

func (m *Manager) GetApplicationComponentAndAccessLevelToUserMappings(component, accessLevel string) []string {
	return query(m, func() []string {
		ca := shardclient.ComponentAccess{Component: component, AccessLevel: accessLevel}
		var out []string
		for user, set := range m.userComponentAccess {
			if set[ca] {
				out = append(out, user)
			}
		}
		return out
	})
}

func (m *Manager) GetApplicationComponentAndAccessLevelToGroupMappings(component, accessLevel string) []string {
	return query(m, func() []string {
		ca := shardclient.ComponentAccess{Component: component, AccessLevel: accessLevel}
		var out []string
		for group, set := range m.groupComponentAccess {
			if set[ca] {
				out = append(out, group)
			}
		}
		return out
	})
}

// --- Entity types and entities ---

func (m *Manager) AddEntityType(entityType string) {
	m.event(func() {
		m.entityType[entityType] = true
		if m.entities[entityType] == nil {
			m.entities[entityType] = map[string]bool{}
		}
	})
}

func (m *Manager) RemoveEntityType(entityType string) {
	m.event(func() {
		delete(m.entityType, entityType)
		delete(m.entities, entityType)
	})
}

func (m *Manager) ContainsEntityType(entityType string) bool {
	return query(m, func() bool { return m.entityType[entityType] })
}

func (m *Manager) AddEntity(entityType, entity string) {
	m.event(func() {
		if m.entities[entityType] == nil {
			m.entities[entityType] = map[string]bool{}
		}
		m.entities[entityType][entity] = true
	})
}

func (m *Manager) RemoveEntity(entityType, entity string) {
	m.event(func() { delete(m.entities[entityType], entity) })
}

func (m *Manager) ContainsEntity(entityType, entity string) (bool, error) {
	atomic.AddUint64(&m.queries, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.entities[entityType]; !ok {
		return false, ErrNotFound
	}
	return m.entities[entityType][entity], nil
}

func (m *Manager) GetEntities(entityType string) []string {
	return query(m, func() []string { return keys(m.entities[entityType]) })
}

// --- Entity mappings ---

func (m *Manager) AddUserToEntityMapping(user, entityType, entity string) {
	m.event(func() {
		if m.userEntity[user] == nil {
			m.userEntity[user] = map[shardclient.EntityRef]bool{}
		}
		m.userEntity[user][shardclient.EntityRef{EntityType: entityType, Entity: entity}] = true
	})
}

func (m *Manager) RemoveUserToEntityMapping(user, entityType, entity string) {
	m.event(func() { delete(m.userEntity[user], shardclient.EntityRef{EntityType: entityType, Entity: entity}) })
}

func (m *Manager) AddGroupToEntityMapping(group, entityType, entity string) {
	m.event(func() {
		if m.groupEntity[group] == nil {
			m.groupEntity[group] = map[shardclient.EntityRef]bool{}
		}
		m.groupEntity[group][shardclient.EntityRef{EntityType: entityType, Entity: entity}] = true
	})
}

func (m *Manager) RemoveGroupToEntityMapping(group, entityType, entity string) {
	m.event(func() { delete(m.groupEntity[group], shardclient.EntityRef{EntityType: entityType, Entity: entity}) })
}

func (m *Manager) GetUserToEntityMappings(user, entityType string) []shardclient.EntityRef {
	return query(m, func() []shardclient.EntityRef {
		var out []shardclient.EntityRef
		for ref := range m.userEntity[user] {
			if entityType == "" || ref.EntityType == entityType {
				out = append(out, ref)
			}
		}
		return out
	})
}

func (m *Manager) GetGroupToEntityMappings(group, entityType string) []shardclient.EntityRef {
	return query(m, func() []shardclient.EntityRef {
		var out []shardclient.EntityRef
		for ref := range m.groupEntity[group] {
			if entityType == "" || ref.EntityType == entityType {
				out = append(out, ref)
			}
		}
		return out
	})
}

func (m *Manager) GetEntityToUserMappings(entityType, entity string) []string {
	return query(m, func() []string {
		ref := shardclient.EntityRef{EntityType: entityType, Entity: entity}
		var out []string
		for user, refs := range m.userEntity {
			if refs[ref] {
				out = append(out, user)
			}
		}
		return out
	})
}

func (m *Manager) GetEntityToGroupMappings(entityType, entity string) []string {
	return query(m, func() []string {
		ref := shardclient.EntityRef{EntityType: entityType, Entity: entity}
		var out []string
		for group, refs := range m.groupEntity {
			if refs[ref] {
				out = append(out, group)
			}
		}
		return out
	})
}

// --- Group-rooted authorization predicates ---

func (m *Manager) HasAccessToApplicationComponent(groups []string, component, accessLevel string) bool {
	return query(m, func() bool {
		ca := shardclient.ComponentAccess{Component: component, AccessLevel: accessLevel}
		for _, g := range groups {
			if m.groupComponentAccess[g][ca] {
				return true
			}
		}
		return false
	})
}

func (m *Manager) HasAccessToEntity(groups []string, entityType, entity string) bool {
	return query(m, func() bool {
		ref := shardclient.EntityRef{EntityType: entityType, Entity: entity}
		for _, g := range groups {
			if m.groupEntity[g][ref] {
				return true
			}
		}
		return false
	})
}

func (m *Manager) GetApplicationComponentsAccessibleByGroups(groups []string) []shardclient.ComponentAccess {
	return query(m, func() []shardclient.ComponentAccess {
		seen := map[shardclient.ComponentAccess]bool{}
		for _, g := range groups {
			for ca := range m.groupComponentAccess[g] {
				seen[ca] = true
			}
		}
		out := make([]shardclient.ComponentAccess, 0, len(seen))
		for ca := range seen {
			out = append(out, ca)
		}
		return out
	})
}

func (m *Manager) GetEntitiesAccessibleByGroups(groups []string, entityType string) []shardclient.EntityRef {
	return query(m, func() []shardclient.EntityRef {
		seen := map[shardclient.EntityRef]bool{}
		for _, g := range groups {
			for ref := range m.groupEntity[g] {
				if entityType == "" || ref.EntityType == entityType {
					seen[ref] = true
				}
			}
		}
		out := make([]shardclient.EntityRef, 0, len(seen))
		for ref := range seen {
			out = append(out, ref)
		}
		return out
	})
}

// --- Union lookups ---

// GetUsers returns every user known to this node.
func (m *Manager) GetUsers() []string {
	return query(m, func() []string { return keys(m.users) })
}

// GetGroups returns every group known to this node.
func (m *Manager) GetGroups() []string {
	return query(m, func() []string { return keys(m.groups) })
}

// GetGroupToUserMappings returns every user directly mapped to any of
// groups, the reverse of GetUserToGroupMappings.
func (m *Manager) GetGroupToUserMappings(groups []string) []string {
	return query(m, func() []string {
		target := map[string]bool{}
		for _, g := range groups {
			target[g] = true
		}
		seen := map[string]bool{}
		for user, gset := range m.userToGroup {
			for g := range gset {
				if target[g] {
					seen[user] = true
					break
				}
			}
		}
		return keys(seen)
	})
}

// --- User-rooted direct authorization predicates ---
//
// These mirror the group-rooted predicates above but answer for the
// user's own direct grants, never walking group membership: a
// traversal's first phase consults both a user's direct grants and its
// group closure, and the two contribute independently.

func (m *Manager) HasDirectAccessToApplicationComponent(user, component, accessLevel string) bool {
	return query(m, func() bool {
		return m.userComponentAccess[user][shardclient.ComponentAccess{Component: component, AccessLevel: accessLevel}]
	})
}

func (m *Manager) HasDirectAccessToEntity(user, entityType, entity string) bool {
	return query(m, func() bool {
		return m.userEntity[user][shardclient.EntityRef{EntityType: entityType, Entity: entity}]
	})
}

func (m *Manager) GetDirectApplicationComponentAccess(user string) []shardclient.ComponentAccess {
	return query(m, func() []shardclient.ComponentAccess {
		out := make([]shardclient.ComponentAccess, 0, len(m.userComponentAccess[user]))
		for ca := range m.userComponentAccess[user] {
			out = append(out, ca)
		}
		return out
	})
}

func (m *Manager) GetDirectEntityAccess(user, entityType string) []shardclient.EntityRef {
	return query(m, func() []shardclient.EntityRef {
		var out []shardclient.EntityRef
		for ref := range m.userEntity[user] {
			if entityType == "" || ref.EntityType == entityType {
				out = append(out, ref)
			}
		}
		return out
	})
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
