package coordinator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/fanout"
	"github.com/dreamware/authzd/internal/hashgen"
	"github.com/dreamware/authzd/internal/metrics"
	"github.com/dreamware/authzd/internal/shardclient"
	"github.com/dreamware/authzd/internal/shardmgr"
)

// Coordinator is the application-facing entry point for every
// authorization event and query. It resolves the owning shard(s) for an
// operation via internal/shardmgr, dispatches through internal/fanout,
// records metrics through internal/metrics, and performs the
// multi-phase group-traversal algorithm user-rooted access queries
// require.
type Coordinator struct {
	mgr *shardmgr.Manager
	rec *metrics.Recorder
	log zerolog.Logger
}

// New builds a Coordinator over mgr, recording metrics through rec and
// logging through log.
func New(mgr *shardmgr.Manager, rec *metrics.Recorder, log zerolog.Logger) *Coordinator {
	return &Coordinator{mgr: mgr, rec: rec, log: log.With().Str("component", "coordinator").Logger()}
}

// singleShardEvent dispatches one Event-class operation to the single
// shard owning hash, wraps classification/metrics uniformly, and returns
// its error, if any.
func (c *Coordinator) singleShardEvent(ctx context.Context, op string, class domain.ElementClass, hash int32, action string, fn func(shardclient.Client) error) error {
	c.rec.Count(op)
	im := c.rec.Interval(op)

	pair, err := c.mgr.ClientFor(class, domain.Event, hash)
	if err != nil {
		im.Cancel()
		return err
	}

	task := fanout.NewVoidTask(pair.Description, func(ctx context.Context) error { return fn(pair.Client) })
	err = fanout.AwaitTaskCompletion(ctx, []fanout.Task[fanout.Void]{task}, fanout.Options[fanout.Void]{
		ExceptionEventDescription: action,
		Interval:                  im,
	})
	if err != nil {
		return err
	}
	im.End()
	return nil
}

func singleShardQuery[T any](c *Coordinator, ctx context.Context, op string, class domain.ElementClass, hash int32, action string, fn func(shardclient.Client) (T, error)) (T, error) {
	c.rec.Count(op)
	im := c.rec.Interval(op)

	pair, err := c.mgr.ClientForQuery(class, domain.Query, hash)
	if err != nil {
		im.Cancel()
		var zero T
		return zero, err
	}

	var result T
	task := fanout.NewTask(pair.Description, func(ctx context.Context) (T, error) { return fn(pair.Client) })
	err = fanout.AwaitTaskCompletion(ctx, []fanout.Task[T]{task}, fanout.Options[T]{
		OnResult:                  func(v T) { result = v },
		ExceptionEventDescription: action,
		Interval:                  im,
	})
	if err != nil {
		var zero T
		return zero, err
	}
	im.End()
	return result, nil
}

// broadcastStrings fans out fn to every shard configured for
// (classes, kind), deduped across class boundaries, unions the returned
// string slices, and treats shardclient.NotFoundError as an empty
// contribution rather than a failure (a shard with nothing to report is
// not an error condition).
func broadcastStrings(c *Coordinator, ctx context.Context, op string, classes []domain.ElementClass, action string, fn func(shardclient.Client) ([]string, error)) ([]string, error) {
	c.rec.Count(op)
	im := c.rec.Interval(op)

	pairs := c.mgr.AllClientsForClasses(classes, domain.Query)
	tasks := make([]fanout.Task[[]string], 0, len(pairs))
	for _, p := range pairs {
		p := p
		tasks = append(tasks, fanout.NewTask(p.Description, func(ctx context.Context) ([]string, error) { return fn(p.Client) }))
	}

	var union []string
	seen := map[string]bool{}
	err := fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[[]string]{
		OnResult: func(values []string) {
			for _, v := range values {
				if !seen[v] {
					seen[v] = true
					union = append(union, v)
				}
			}
		},
		IgnoreError:               fanout.MatchAny(shardclient.ErrNotFound),
		ExceptionEventDescription: action,
		Interval:                  im,
	})
	if err != nil {
		return nil, err
	}
	im.End()
	return union, nil
}

// allClassEvent dispatches fn to every Event shard across classes,
// deduped by endpoint. Used for write-routing patterns that are not
// scoped to the single hash-owning shard of one class, but instead must
// reach every shard holding a copy of the affected state. When op is
// empty, no metrics are recorded: the caller is an inner step of a
// larger operation that already accounts for its own metrics (e.g. the
// per-entity loop inside RemoveEntityType).
func allClassEvent(c *Coordinator, ctx context.Context, op string, classes []domain.ElementClass, action string, fn func(shardclient.Client) error) error {
	var im *metrics.IntervalMetric
	if op != "" {
		c.rec.Count(op)
		im = c.rec.Interval(op)
	}

	pairs := c.mgr.AllClientsForClasses(classes, domain.Event)
	tasks := make([]fanout.Task[fanout.Void], 0, len(pairs))
	for _, p := range pairs {
		p := p
		tasks = append(tasks, fanout.NewVoidTask(p.Description, func(ctx context.Context) error { return fn(p.Client) }))
	}

	opts := fanout.Options[fanout.Void]{ExceptionEventDescription: action}
	if im != nil {
		opts.Interval = im
	}
	if err := fanout.AwaitTaskCompletion(ctx, tasks, opts); err != nil {
		return err
	}
	if im != nil {
		im.End()
	}
	return nil
}

// existsAcrossClasses fans fn out across every Query shard of classes,
// deduped by endpoint, and reports true as soon as one shard confirms
// existence, short-circuiting the remaining shards. A shard reporting
// shardclient.ErrNotFound contributes false rather than failing the
// whole check.
func existsAcrossClasses(c *Coordinator, ctx context.Context, op string, classes []domain.ElementClass, action string, fn func(shardclient.Client) (bool, error)) (bool, error) {
	c.rec.Count(op)
	im := c.rec.Interval(op)

	pairs := c.mgr.AllClientsForClasses(classes, domain.Query)
	tasks := make([]fanout.Task[bool], 0, len(pairs))
	for _, p := range pairs {
		p := p
		tasks = append(tasks, fanout.NewTask(p.Description, func(ctx context.Context) (bool, error) { return fn(p.Client) }))
	}

	found := false
	err := fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[bool]{
		OnResult:                  func(v bool) { found = v },
		ContinuePredicate:         func(v bool) bool { return !v },
		IgnoreError:               fanout.MatchAny(shardclient.ErrNotFound),
		ExceptionEventDescription: action,
		Interval:                  im,
	})
	if err != nil {
		return false, err
	}
	im.End()
	return found, nil
}

// groupAndAllG2G dispatches fn to the single Group shard owning group's
// hash and to every GroupToGroupMapping shard, deduped by description. A
// physical node configured under either class holds the same flat
// per-node store, so dispatching the identical event to a
// GroupToGroupMapping-only endpoint still registers the group there,
// which group-closure traversal depends on.
func (c *Coordinator) groupAndAllG2G(ctx context.Context, op, group, action string, fn func(shardclient.Client) error) error {
	c.rec.Count(op)
	im := c.rec.Interval(op)

	groupPair, err := c.mgr.ClientFor(domain.Group, domain.Event, hashgen.GroupHash(group))
	if err != nil {
		im.Cancel()
		return err
	}

	pairs := []shardmgr.ClientDescPair{groupPair}
	seen := map[string]bool{groupPair.Description: true}
	for _, p := range c.mgr.AllClients(domain.GroupToGroupMapping, domain.Event) {
		if seen[p.Description] {
			continue
		}
		seen[p.Description] = true
		pairs = append(pairs, p)
	}

	tasks := make([]fanout.Task[fanout.Void], 0, len(pairs))
	for _, p := range pairs {
		p := p
		tasks = append(tasks, fanout.NewVoidTask(p.Description, func(ctx context.Context) error { return fn(p.Client) }))
	}
	err = fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[fanout.Void]{
		ExceptionEventDescription: action,
		Interval:                  im,
	})
	if err != nil {
		return err
	}
	im.End()
	return nil
}

// --- User ---

func (c *Coordinator) AddUser(ctx context.Context, user string) error {
	return c.singleShardEvent(ctx, "AddUser", domain.User, hashgen.UserHash(user), "add user to", func(cl shardclient.Client) error {
		return cl.AddUser(ctx, user)
	})
}

// RemoveUser fans out to every User Event shard rather than only the
// shard owning hashgen.UserHash(user): per-shard RemoveUser is a safe
// no-op wherever the user isn't present, and this is the fan-out
// RemoveUser's write-routing pattern calls for.
func (c *Coordinator) RemoveUser(ctx context.Context, user string) error {
	return allClassEvent(c, ctx, "RemoveUser", []domain.ElementClass{domain.User}, "remove user from", func(cl shardclient.Client) error {
		return cl.RemoveUser(ctx, user)
	})
}

func (c *Coordinator) ContainsUser(ctx context.Context, user string) (bool, error) {
	return singleShardQuery(c, ctx, "ContainsUser", domain.User, hashgen.UserHash(user), "check user existence on", func(cl shardclient.Client) (bool, error) {
		return cl.ContainsUser(ctx, user)
	})
}

func (c *Coordinator) GetUserToGroupMappings(ctx context.Context, user string, includeIndirect bool) ([]string, error) {
	direct, err := singleShardQuery(c, ctx, "GetUserToGroupMappings", domain.User, hashgen.UserHash(user), "retrieve group mappings for user from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetUserToGroupMappings(ctx, user, false)
	})
	if err != nil || !includeIndirect {
		return direct, err
	}
	closure, _, err := c.closeGroupMemberships(ctx, "GetUserToGroupMappings", direct)
	return closure, err
}

// GetUsers unions the user catalog across every User shard.
func (c *Coordinator) GetUsers(ctx context.Context) ([]string, error) {
	return broadcastStrings(c, ctx, "GetUsers", []domain.ElementClass{domain.User}, "retrieve users from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetUsers(ctx)
	})
}

// --- Group ---

// AddGroup dispatches to the Group shard owning group's hash and to
// every GroupToGroupMapping shard, so the group is visible wherever
// group-to-group closure traversal might look it up.
func (c *Coordinator) AddGroup(ctx context.Context, group string) error {
	return c.groupAndAllG2G(ctx, "AddGroup", group, "add group to", func(cl shardclient.Client) error {
		return cl.AddGroup(ctx, group)
	})
}

// RemoveGroup fans out across every User, Group, and GroupToGroupMapping
// Event shard: a group can be referenced from user-to-group mappings,
// its own Group-class record, and group-to-group edges, all of which
// must stop naming it.
func (c *Coordinator) RemoveGroup(ctx context.Context, group string) error {
	return allClassEvent(c, ctx, "RemoveGroup", []domain.ElementClass{domain.User, domain.Group, domain.GroupToGroupMapping}, "remove group from", func(cl shardclient.Client) error {
		return cl.RemoveGroup(ctx, group)
	})
}

func (c *Coordinator) ContainsGroup(ctx context.Context, group string) (bool, error) {
	return singleShardQuery(c, ctx, "ContainsGroup", domain.Group, hashgen.GroupHash(group), "check group existence on", func(cl shardclient.Client) (bool, error) {
		return cl.ContainsGroup(ctx, group)
	})
}

// GetGroups unions the group catalog across every Group shard.
func (c *Coordinator) GetGroups(ctx context.Context) ([]string, error) {
	return broadcastStrings(c, ctx, "GetGroups", []domain.ElementClass{domain.Group}, "retrieve groups from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetGroups(ctx)
	})
}

// GetGroupToUserMappings is the reverse of GetUserToGroupMappings: the
// user->group edges it walks are stored keyed by the owning user, never
// by group, so there is no single shard to ask. Unions across every
// User shard instead.
func (c *Coordinator) GetGroupToUserMappings(ctx context.Context, groups []string) ([]string, error) {
	return broadcastStrings(c, ctx, "GetGroupToUserMappings", []domain.ElementClass{domain.User}, "retrieve users mapped to groups from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetGroupToUserMappings(ctx, groups)
	})
}

// --- User/Group mappings ---

func (c *Coordinator) AddUserToGroupMapping(ctx context.Context, user, group string) error {
	return c.singleShardEvent(ctx, "AddUserToGroupMapping", domain.User, hashgen.UserHash(user), "add user-to-group mapping to", func(cl shardclient.Client) error {
		return cl.AddUserToGroupMapping(ctx, user, group)
	})
}

func (c *Coordinator) RemoveUserToGroupMapping(ctx context.Context, user, group string) error {
	return c.singleShardEvent(ctx, "RemoveUserToGroupMapping", domain.User, hashgen.UserHash(user), "remove user-to-group mapping from", func(cl shardclient.Client) error {
		return cl.RemoveUserToGroupMapping(ctx, user, group)
	})
}

func (c *Coordinator) AddGroupToGroupMapping(ctx context.Context, fromGroup, toGroup string) error {
	return c.singleShardEvent(ctx, "AddGroupToGroupMapping", domain.GroupToGroupMapping, hashgen.GroupHash(fromGroup), "add group-to-group mapping to", func(cl shardclient.Client) error {
		return cl.AddGroupToGroupMapping(ctx, fromGroup, toGroup)
	})
}

func (c *Coordinator) RemoveGroupToGroupMapping(ctx context.Context, fromGroup, toGroup string) error {
	return c.singleShardEvent(ctx, "RemoveGroupToGroupMapping", domain.GroupToGroupMapping, hashgen.GroupHash(fromGroup), "remove group-to-group mapping from", func(cl shardclient.Client) error {
		return cl.RemoveGroupToGroupMapping(ctx, fromGroup, toGroup)
	})
}

// --- Application component access ---

func (c *Coordinator) AddUserToApplicationComponentAndAccessLevel(ctx context.Context, user, component, accessLevel string) error {
	return c.singleShardEvent(ctx, "AddUserToApplicationComponentAndAccessLevel", domain.User, hashgen.UserHash(user), "add user component access to", func(cl shardclient.Client) error {
		return cl.AddUserToApplicationComponentAndAccessLevel(ctx, user, component, accessLevel)
	})
}

func (c *Coordinator) RemoveUserToApplicationComponentAndAccessLevel(ctx context.Context, user, component, accessLevel string) error {
	return c.singleShardEvent(ctx, "RemoveUserToApplicationComponentAndAccessLevel", domain.User, hashgen.UserHash(user), "remove user component access from", func(cl shardclient.Client) error {
		return cl.RemoveUserToApplicationComponentAndAccessLevel(ctx, user, component, accessLevel)
	})
}

func (c *Coordinator) AddGroupToApplicationComponentAndAccessLevel(ctx context.Context, group, component, accessLevel string) error {
	return c.singleShardEvent(ctx, "AddGroupToApplicationComponentAndAccessLevel", domain.Group, hashgen.GroupHash(group), "add group component access to", func(cl shardclient.Client) error {
		return cl.AddGroupToApplicationComponentAndAccessLevel(ctx, group, component, accessLevel)
	})
}

func (c *Coordinator) RemoveGroupToApplicationComponentAndAccessLevel(ctx context.Context, group, component, accessLevel string) error {
	return c.singleShardEvent(ctx, "RemoveGroupToApplicationComponentAndAccessLevel", domain.Group, hashgen.GroupHash(group), "remove group component access from", func(cl shardclient.Client) error {
		return cl.RemoveGroupToApplicationComponentAndAccessLevel(ctx, group, component, accessLevel)
	})
}

func (c *Coordinator) GetApplicationComponentAndAccessLevelToUserMappings(ctx context.Context, component, accessLevel string, includeIndirect bool) ([]string, error) {
	return broadcastStrings(c, ctx, "GetApplicationComponentAndAccessLevelToUserMappings", []domain.ElementClass{domain.User}, "retrieve users for component access from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetApplicationComponentAndAccessLevelToUserMappings(ctx, component, accessLevel, includeIndirect)
	})
}

func (c *Coordinator) GetApplicationComponentAndAccessLevelToGroupMappings(ctx context.Context, component, accessLevel string) ([]string, error) {
	return broadcastStrings(c, ctx, "GetApplicationComponentAndAccessLevelToGroupMappings", []domain.ElementClass{domain.Group}, "retrieve groups for component access from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetApplicationComponentAndAccessLevelToGroupMappings(ctx, component, accessLevel)
	})
}

// --- Entity types and entities ---
//
// Entity is never independently sharded: there is no hash(entityType) or
// hash(entity) to route a single-key lookup by. Every entity-class
// operation instead fans out across every User and Group Event/Query
// shard, relying on each physical node's flat per-node store to hold the
// same entity-type catalog and entity set regardless of which class
// path an event arrived under.

var entityHolderClasses = []domain.ElementClass{domain.User, domain.Group}

func (c *Coordinator) AddEntityType(ctx context.Context, entityType string) error {
	return allClassEvent(c, ctx, "AddEntityType", entityHolderClasses, "add entity type to", func(cl shardclient.Client) error {
		return cl.AddEntityType(ctx, entityType)
	})
}

// RemoveEntityType first removes every known entity of entityType (so no
// shard is left holding a reference to a type that no longer exists),
// then removes the type itself from every shard.
func (c *Coordinator) RemoveEntityType(ctx context.Context, entityType string) error {
	if err := c.removeEntitiesOfType(ctx, entityType, false); err != nil {
		return err
	}
	return allClassEvent(c, ctx, "RemoveEntityType", entityHolderClasses, "remove entity type from", func(cl shardclient.Client) error {
		return cl.RemoveEntityType(ctx, entityType)
	})
}

func (c *Coordinator) ContainsEntityType(ctx context.Context, entityType string) (bool, error) {
	return existsAcrossClasses(c, ctx, "ContainsEntityType", entityHolderClasses, "check entity type existence on", func(cl shardclient.Client) (bool, error) {
		return cl.ContainsEntityType(ctx, entityType)
	})
}

func (c *Coordinator) AddEntity(ctx context.Context, entityType, entity string) error {
	return allClassEvent(c, ctx, "AddEntity", entityHolderClasses, "add entity to", func(cl shardclient.Client) error {
		return cl.AddEntity(ctx, entityType, entity)
	})
}

func (c *Coordinator) RemoveEntity(ctx context.Context, entityType, entity string) error {
	return c.removeEntity(ctx, entityType, entity, true)
}

// removeEntity removes one entity of entityType from every shard that
// might hold it. emitMetrics is false when called from
// removeEntitiesOfType's per-entity cleanup loop, so that loop doesn't
// double-count metrics already attributed to the enclosing
// RemoveEntityType call.
func (c *Coordinator) removeEntity(ctx context.Context, entityType, entity string, emitMetrics bool) error {
	op := "RemoveEntity"
	if !emitMetrics {
		op = ""
	}
	return allClassEvent(c, ctx, op, entityHolderClasses, "remove entity from", func(cl shardclient.Client) error {
		return cl.RemoveEntity(ctx, entityType, entity)
	})
}

// removeEntitiesOfType removes every entity currently registered under
// entityType, in preparation for RemoveEntityType deleting the type
// itself.
func (c *Coordinator) removeEntitiesOfType(ctx context.Context, entityType string, emitMetrics bool) error {
	entities, err := c.GetEntities(ctx, entityType)
	if err != nil {
		return err
	}
	for _, entity := range entities {
		if err := c.removeEntity(ctx, entityType, entity, emitMetrics); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) ContainsEntity(ctx context.Context, entityType, entity string) (bool, error) {
	return existsAcrossClasses(c, ctx, "ContainsEntity", entityHolderClasses, "check entity existence on", func(cl shardclient.Client) (bool, error) {
		return cl.ContainsEntity(ctx, entityType, entity)
	})
}

func (c *Coordinator) GetEntities(ctx context.Context, entityType string) ([]string, error) {
	return broadcastStrings(c, ctx, "GetEntities", entityHolderClasses, "retrieve entities for type from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetEntities(ctx, entityType)
	})
}

// --- Entity mappings ---

func (c *Coordinator) AddUserToEntityMapping(ctx context.Context, user, entityType, entity string) error {
	return c.singleShardEvent(ctx, "AddUserToEntityMapping", domain.User, hashgen.UserHash(user), "add user-to-entity mapping to", func(cl shardclient.Client) error {
		return cl.AddUserToEntityMapping(ctx, user, entityType, entity)
	})
}

func (c *Coordinator) RemoveUserToEntityMapping(ctx context.Context, user, entityType, entity string) error {
	return c.singleShardEvent(ctx, "RemoveUserToEntityMapping", domain.User, hashgen.UserHash(user), "remove user-to-entity mapping from", func(cl shardclient.Client) error {
		return cl.RemoveUserToEntityMapping(ctx, user, entityType, entity)
	})
}

func (c *Coordinator) AddGroupToEntityMapping(ctx context.Context, group, entityType, entity string) error {
	return c.singleShardEvent(ctx, "AddGroupToEntityMapping", domain.Group, hashgen.GroupHash(group), "add group-to-entity mapping to", func(cl shardclient.Client) error {
		return cl.AddGroupToEntityMapping(ctx, group, entityType, entity)
	})
}

func (c *Coordinator) RemoveGroupToEntityMapping(ctx context.Context, group, entityType, entity string) error {
	return c.singleShardEvent(ctx, "RemoveGroupToEntityMapping", domain.Group, hashgen.GroupHash(group), "remove group-to-entity mapping from", func(cl shardclient.Client) error {
		return cl.RemoveGroupToEntityMapping(ctx, group, entityType, entity)
	})
}

func (c *Coordinator) GetUserToEntityMappings(ctx context.Context, user, entityType string) ([]shardclient.EntityRef, error) {
	return singleShardQuery(c, ctx, "GetUserToEntityMappings", domain.User, hashgen.UserHash(user), "retrieve entity mappings for user from", func(cl shardclient.Client) ([]shardclient.EntityRef, error) {
		return cl.GetUserToEntityMappings(ctx, user, entityType)
	})
}

func (c *Coordinator) GetGroupToEntityMappings(ctx context.Context, group, entityType string) ([]shardclient.EntityRef, error) {
	return singleShardQuery(c, ctx, "GetGroupToEntityMappings", domain.Group, hashgen.GroupHash(group), "retrieve entity mappings for group from", func(cl shardclient.Client) ([]shardclient.EntityRef, error) {
		return cl.GetGroupToEntityMappings(ctx, group, entityType)
	})
}

// GetEntityToUserMappings and GetEntityToGroupMappings are reverse
// lookups: the forward edges they walk (user->entity, group->entity)
// are stored keyed by the owning user or group, never by entityType, so
// there is no single shard to ask. Both union across every shard of the
// owning class instead.
func (c *Coordinator) GetEntityToUserMappings(ctx context.Context, entityType, entity string, includeIndirect bool) ([]string, error) {
	return broadcastStrings(c, ctx, "GetEntityToUserMappings", []domain.ElementClass{domain.User}, "retrieve users mapped to entity from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetEntityToUserMappings(ctx, entityType, entity, includeIndirect)
	})
}

func (c *Coordinator) GetEntityToGroupMappings(ctx context.Context, entityType, entity string) ([]string, error) {
	return broadcastStrings(c, ctx, "GetEntityToGroupMappings", []domain.ElementClass{domain.Group}, "retrieve groups mapped to entity from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetEntityToGroupMappings(ctx, entityType, entity)
	})
}

// ErrUnexpected wraps an error with the name of the operation it came
// from. No Coordinator method returns it: unclassified shard failures
// surface as *fanout.ShardCallError.
type ErrUnexpected struct{ Op string; Err error }

func (e *ErrUnexpected) Error() string { return fmt.Sprintf("coordinator: %s: %v", e.Op, e.Err) }
func (e *ErrUnexpected) Unwrap() error { return e.Err }
