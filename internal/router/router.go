// Package router implements a group-facing subset of the Operation
// Coordinator's read surface for callers that already
// hold a resolved group set and want it evaluated against application
// component or entity access directly, without paying for the
// GroupToGroupMapping closure traversal internal/coordinator performs
// for user-rooted queries.
//
// Shares internal/shardmgr.Manager and internal/fanout with
// internal/coordinator; this package is the thin routing/fan-out layer
// with the traversal step removed, grounded on the same
// fan-out-then-short-circuit shape as coordinator.queryGroupsForAccess.
package router

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/fanout"
	"github.com/dreamware/authzd/internal/hashgen"
	"github.com/dreamware/authzd/internal/metrics"
	"github.com/dreamware/authzd/internal/shardclient"
	"github.com/dreamware/authzd/internal/shardmgr"
)

// Router is the entry point for group-rooted queries whose caller
// supplies an already-resolved group set.
type Router struct {
	mgr *shardmgr.Manager
	rec *metrics.Recorder
	log zerolog.Logger
}

// New builds a Router over mgr, recording metrics through rec.
func New(mgr *shardmgr.Manager, rec *metrics.Recorder, log zerolog.Logger) *Router {
	return &Router{mgr: mgr, rec: rec, log: log.With().Str("component", "router").Logger()}
}

func partitionByHash(values []string, hashFn func(string) int32) map[int32][]string {
	out := map[int32][]string{}
	for _, v := range values {
		h := hashFn(v)
		out[h] = append(out[h], v)
	}
	return out
}

// HasAccessToApplicationComponent queries every Group shard owning one of
// groups for access to (component, accessLevel), stopping at the first
// shard that grants it.
func (r *Router) HasAccessToApplicationComponent(ctx context.Context, groups []string, component, accessLevel string) (bool, error) {
	return r.queryGroupsForAccess(ctx, "RouterHasAccessToApplicationComponent", "check application component access on", groups, func(cl shardclient.Client, groupsOnShard []string) (bool, error) {
		return cl.HasAccessToApplicationComponent(ctx, groupsOnShard, component, accessLevel)
	})
}

// HasAccessToEntity mirrors HasAccessToApplicationComponent for entities.
func (r *Router) HasAccessToEntity(ctx context.Context, groups []string, entityType, entity string) (bool, error) {
	return r.queryGroupsForAccess(ctx, "RouterHasAccessToEntity", "check entity access on", groups, func(cl shardclient.Client, groupsOnShard []string) (bool, error) {
		return cl.HasAccessToEntity(ctx, groupsOnShard, entityType, entity)
	})
}

func (r *Router) queryGroupsForAccess(ctx context.Context, op, action string, groups []string, fn func(shardclient.Client, []string) (bool, error)) (bool, error) {
	if len(groups) == 0 {
		return false, nil
	}
	byShard := partitionByHash(groups, hashgen.GroupHash)

	tasks := make([]fanout.Task[bool], 0, len(byShard))
	for hash, groupsOnShard := range byShard {
		pair, err := r.mgr.ClientForQuery(domain.Group, domain.Query, hash)
		if err != nil {
			return false, err
		}
		groupsOnShard := groupsOnShard
		tasks = append(tasks, fanout.NewTask(pair.Description, func(ctx context.Context) (bool, error) {
			return fn(pair.Client, groupsOnShard)
		}))
	}

	r.rec.Count(op)
	im := r.rec.Interval(op)

	granted := false
	err := fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[bool]{
		OnResult:                  func(v bool) { granted = v },
		ContinuePredicate:         func(v bool) bool { return !v },
		ExceptionEventDescription: action,
		Interval:                  im,
	})
	if err != nil {
		return false, err
	}
	im.End()
	return granted, nil
}

// GetApplicationComponentsAccessibleByGroups unions the component access
// visible from any shard owning one of groups.
func (r *Router) GetApplicationComponentsAccessibleByGroups(ctx context.Context, groups []string) ([]shardclient.ComponentAccess, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	byShard := partitionByHash(groups, hashgen.GroupHash)

	tasks := make([]fanout.Task[[]shardclient.ComponentAccess], 0, len(byShard))
	for hash, groupsOnShard := range byShard {
		pair, err := r.mgr.ClientForQuery(domain.Group, domain.Query, hash)
		if err != nil {
			return nil, err
		}
		groupsOnShard := groupsOnShard
		tasks = append(tasks, fanout.NewTask(pair.Description, func(ctx context.Context) ([]shardclient.ComponentAccess, error) {
			return pair.Client.GetApplicationComponentsAccessibleByGroups(ctx, groupsOnShard)
		}))
	}

	r.rec.Count("RouterGetApplicationComponentsAccessibleByGroups")
	im := r.rec.Interval("RouterGetApplicationComponentsAccessibleByGroups")

	seen := map[shardclient.ComponentAccess]bool{}
	var union []shardclient.ComponentAccess
	err := fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[[]shardclient.ComponentAccess]{
		OnResult: func(v []shardclient.ComponentAccess) {
			for _, ca := range v {
				if !seen[ca] {
					seen[ca] = true
					union = append(union, ca)
				}
			}
		},
		ExceptionEventDescription: "retrieve accessible components from",
		Interval:                  im,
	})
	if err != nil {
		return nil, err
	}
	im.End()
	return union, nil
}

// GetEntitiesAccessibleByGroups unions the entities of entityType
// accessible from any shard owning one of groups.
func (r *Router) GetEntitiesAccessibleByGroups(ctx context.Context, groups []string, entityType string) ([]shardclient.EntityRef, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	byShard := partitionByHash(groups, hashgen.GroupHash)

	tasks := make([]fanout.Task[[]shardclient.EntityRef], 0, len(byShard))
	for hash, groupsOnShard := range byShard {
		pair, err := r.mgr.ClientForQuery(domain.Group, domain.Query, hash)
		if err != nil {
			return nil, err
		}
		groupsOnShard := groupsOnShard
		tasks = append(tasks, fanout.NewTask(pair.Description, func(ctx context.Context) ([]shardclient.EntityRef, error) {
			return pair.Client.GetEntitiesAccessibleByGroups(ctx, groupsOnShard, entityType)
		}))
	}

	r.rec.Count("RouterGetEntitiesAccessibleByGroups")
	im := r.rec.Interval("RouterGetEntitiesAccessibleByGroups")

	seen := map[shardclient.EntityRef]bool{}
	var union []shardclient.EntityRef
	err := fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[[]shardclient.EntityRef]{
		OnResult: func(v []shardclient.EntityRef) {
			for _, ref := range v {
				if !seen[ref] {
					seen[ref] = true
					union = append(union, ref)
				}
			}
		},
		ExceptionEventDescription: "retrieve accessible entities from",
		Interval:                  im,
	})
	if err != nil {
		return nil, err
	}
	im.End()
	return union, nil
}

// broadcastStrings fans fn out across every shard configured for class,
// unions the returned string slices, and treats shardclient.ErrNotFound
// as an empty contribution rather than a failure.
func (r *Router) broadcastStrings(ctx context.Context, op string, class domain.ElementClass, action string, fn func(shardclient.Client) ([]string, error)) ([]string, error) {
	r.rec.Count(op)
	im := r.rec.Interval(op)

	pairs := r.mgr.AllClients(class, domain.Query)
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

// GetUsers unions the user catalog across every User shard.
func (r *Router) GetUsers(ctx context.Context) ([]string, error) {
	return r.broadcastStrings(ctx, "RouterGetUsers", domain.User, "retrieve users from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetUsers(ctx)
	})
}

// GetGroups unions the group catalog across every Group shard.
func (r *Router) GetGroups(ctx context.Context) ([]string, error) {
	return r.broadcastStrings(ctx, "RouterGetGroups", domain.Group, "retrieve groups from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetGroups(ctx)
	})
}

// GetGroupToUserMappings is the reverse of a user-to-group lookup: the
// edges it walks are stored keyed by the owning user, never by group,
// so there is no single shard to ask. Unions across every User shard
// instead.
func (r *Router) GetGroupToUserMappings(ctx context.Context, groups []string) ([]string, error) {
	return r.broadcastStrings(ctx, "RouterGetGroupToUserMappings", domain.User, "retrieve users mapped to groups from", func(cl shardclient.Client) ([]string, error) {
		return cl.GetGroupToUserMappings(ctx, groups)
	})
}

// ContainsGroup checks group existence on the single Group shard owning
// its hash.
func (r *Router) ContainsGroup(ctx context.Context, group string) (bool, error) {
	pair, err := r.mgr.ClientForQuery(domain.Group, domain.Query, hashgen.GroupHash(group))
	if err != nil {
		return false, err
	}
	r.rec.Count("RouterContainsGroup")
	im := r.rec.Interval("RouterContainsGroup")
	task := fanout.NewTask(pair.Description, func(ctx context.Context) (bool, error) { return pair.Client.ContainsGroup(ctx, group) })
	var result bool
	err = fanout.AwaitTaskCompletion(ctx, []fanout.Task[bool]{task}, fanout.Options[bool]{
		OnResult:                  func(v bool) { result = v },
		ExceptionEventDescription: "check group existence on",
		Interval:                  im,
	})
	if err != nil {
		return false, err
	}
	im.End()
	return result, nil
}
