package coordinator

import (
	"context"

	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/fanout"
	"github.com/dreamware/authzd/internal/hashgen"
	"github.com/dreamware/authzd/internal/metrics"
	"github.com/dreamware/authzd/internal/shardclient"
)

// closeGroupMemberships expands direct into the full transitive closure
// of group-to-group memberships: a user who is a direct member of group
// A, where A is itself a member of B, is treated as having access
// through B too, however many hops away B is.
//
// The frontier is partitioned by each group's hash value (one task per
// distinct hash, so groups on the same shard with different hashes get
// separate tasks) and fanned out one round at a time; rounds stop once
// a round contributes no group not already visited. Returns the full
// closed set (direct memberships included) and the number of fan-out
// tasks issued, summed over every round, for the groupShardsQueried
// amount metric; a shard queried in several rounds or by several tasks
// is counted each time.
func (c *Coordinator) closeGroupMemberships(ctx context.Context, op string, direct []string) ([]string, int, error) {
	visited := map[string]bool{}
	for _, g := range direct {
		visited[g] = true
	}
	frontier := append([]string(nil), direct...)
	shardsQueried := 0
	groupsMapped := 0

	for len(frontier) > 0 {
		byShard := partitionByHash(frontier, hashgen.GroupHash)

		var pairs []shardPartition
		for hash, groups := range byShard {
			pairs = append(pairs, shardPartition{hash: hash, groups: groups})
		}

		next, queried, err := c.queryGroupShards(ctx, op, pairs)
		if err != nil {
			return nil, shardsQueried, err
		}
		shardsQueried += queried

		var fresh []string
		for _, g := range next {
			groupsMapped++
			if !visited[g] {
				visited[g] = true
				fresh = append(fresh, g)
			}
		}
		frontier = fresh
	}

	c.rec.Amount(op, metrics.AmountGroupShardsQueried, float64(shardsQueried))
	c.rec.Amount(op, metrics.AmountGroupsMappedToGroups, float64(groupsMapped))

	out := make([]string, 0, len(visited))
	for g := range visited {
		out = append(out, g)
	}
	return out, shardsQueried, nil
}

type shardPartition struct {
	hash   int32
	groups []string
}

// queryGroupShards fans out one round of GetGroupToGroupMappings calls,
// one task per partition (distinct group hash), and unions the results.
func (c *Coordinator) queryGroupShards(ctx context.Context, op string, partitions []shardPartition) ([]string, int, error) {
	tasks := make([]fanout.Task[[]string], 0, len(partitions))
	for _, part := range partitions {
		pair, err := c.mgr.ClientForQuery(domain.GroupToGroupMapping, domain.Query, part.hash)
		if err != nil {
			return nil, 0, err
		}
		groups := part.groups
		tasks = append(tasks, fanout.NewTask(pair.Description, func(ctx context.Context) ([]string, error) {
			return pair.Client.GetGroupToGroupMappings(ctx, groups, false)
		}))
	}

	var union []string
	err := fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[[]string]{
		OnResult:                  func(v []string) { union = append(union, v...) },
		ExceptionEventDescription: "expand group-to-group mappings from",
	})
	if err != nil {
		return nil, 0, err
	}
	return union, len(tasks), nil
}

// partitionByHash groups values by the exact hash hashFn assigns them,
// so one fan-out task is issued per distinct hash value. Values with
// different hashes land in different partitions even when one shard
// owns both.
func partitionByHash(values []string, hashFn func(string) int32) map[int32][]string {
	out := map[int32][]string{}
	for _, v := range values {
		h := hashFn(v)
		out[h] = append(out[h], v)
	}
	return out
}

// queryGroupsForAccess fans out a group-rooted access predicate across
// every Group shard owning one of groups, short-circuiting (via
// fanout.Options.ContinuePredicate) as soon as one shard reports access
// granted.
func (c *Coordinator) queryGroupsForAccess(ctx context.Context, op, action string, groups []string, fn func(shardclient.Client, []string) (bool, error)) (bool, error) {
	byShard := partitionByHash(groups, hashgen.GroupHash)

	tasks := make([]fanout.Task[bool], 0, len(byShard))
	for hash, groupsOnShard := range byShard {
		pair, err := c.mgr.ClientForQuery(domain.Group, domain.Query, hash)
		if err != nil {
			return false, err
		}
		groupsOnShard := groupsOnShard
		tasks = append(tasks, fanout.NewTask(pair.Description, func(ctx context.Context) (bool, error) {
			return fn(pair.Client, groupsOnShard)
		}))
	}

	c.rec.Count(op)
	im := c.rec.Interval(op)

	granted := false
	err := fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[bool]{
		OnResult:                  func(v bool) { granted = v },
		ContinuePredicate:         func(v bool) bool { return !v }, // stop on first true
		ExceptionEventDescription: action,
		Interval:                  im,
	})
	if err != nil {
		return false, err
	}
	im.End()
	return granted, nil
}

// directAndGroups bundles a user's own direct-grant result together
// with its direct group mappings, so both can be fetched from the
// user's owning shard in one round trip instead of two.
type directAndGroups struct {
	direct bool
	groups []string
}

// HasAccessToApplicationComponent first checks user's own direct
// component access, then — if not already granted — resolves user's
// full group closure and queries every Group shard owning one of those
// groups, stopping at the first shard that grants it.
func (c *Coordinator) HasAccessToApplicationComponent(ctx context.Context, user, component, accessLevel string) (bool, error) {
	dg, err := singleShardQuery(c, ctx, "HasAccessToApplicationComponent", domain.User, hashgen.UserHash(user), "retrieve direct access and group mappings for user from", func(cl shardclient.Client) (directAndGroups, error) {
		direct, err := cl.HasDirectAccessToApplicationComponent(ctx, user, component, accessLevel)
		if err != nil {
			return directAndGroups{}, err
		}
		groups, err := cl.GetUserToGroupMappings(ctx, user, false)
		if err != nil {
			return directAndGroups{}, err
		}
		return directAndGroups{direct: direct, groups: groups}, nil
	})
	if err != nil {
		return false, err
	}
	if dg.direct {
		return true, nil
	}
	groups, _, err := c.closeGroupMemberships(ctx, "HasAccessToApplicationComponent", dg.groups)
	if err != nil {
		return false, err
	}
	if len(groups) == 0 {
		return false, nil
	}
	return c.queryGroupsForAccess(ctx, "HasAccessToApplicationComponent", "check application component access on", groups, func(cl shardclient.Client, groupsOnShard []string) (bool, error) {
		return cl.HasAccessToApplicationComponent(ctx, groupsOnShard, component, accessLevel)
	})
}

// HasAccessToEntity mirrors HasAccessToApplicationComponent for
// entity-rooted access.
func (c *Coordinator) HasAccessToEntity(ctx context.Context, user, entityType, entity string) (bool, error) {
	dg, err := singleShardQuery(c, ctx, "HasAccessToEntity", domain.User, hashgen.UserHash(user), "retrieve direct access and group mappings for user from", func(cl shardclient.Client) (directAndGroups, error) {
		direct, err := cl.HasDirectAccessToEntity(ctx, user, entityType, entity)
		if err != nil {
			return directAndGroups{}, err
		}
		groups, err := cl.GetUserToGroupMappings(ctx, user, false)
		if err != nil {
			return directAndGroups{}, err
		}
		return directAndGroups{direct: direct, groups: groups}, nil
	})
	if err != nil {
		return false, err
	}
	if dg.direct {
		return true, nil
	}
	groups, _, err := c.closeGroupMemberships(ctx, "HasAccessToEntity", dg.groups)
	if err != nil {
		return false, err
	}
	if len(groups) == 0 {
		return false, nil
	}
	return c.queryGroupsForAccess(ctx, "HasAccessToEntity", "check entity access on", groups, func(cl shardclient.Client, groupsOnShard []string) (bool, error) {
		return cl.HasAccessToEntity(ctx, groupsOnShard, entityType, entity)
	})
}

// directComponentsAndGroups bundles a user's own direct component
// grants together with its direct group mappings, fetched from the
// user's owning shard in one round trip.
type directComponentsAndGroups struct {
	direct []shardclient.ComponentAccess
	groups []string
}

// GetApplicationComponentsAccessibleByUser unions user's own direct
// component grants with every accessible (component, accessLevel) pair
// visible from user's full group closure.
func (c *Coordinator) GetApplicationComponentsAccessibleByUser(ctx context.Context, user string) ([]shardclient.ComponentAccess, error) {
	dg, err := singleShardQuery(c, ctx, "GetApplicationComponentsAccessibleByUser", domain.User, hashgen.UserHash(user), "retrieve direct access and group mappings for user from", func(cl shardclient.Client) (directComponentsAndGroups, error) {
		direct, err := cl.GetDirectApplicationComponentAccess(ctx, user)
		if err != nil {
			return directComponentsAndGroups{}, err
		}
		groups, err := cl.GetUserToGroupMappings(ctx, user, false)
		if err != nil {
			return directComponentsAndGroups{}, err
		}
		return directComponentsAndGroups{direct: direct, groups: groups}, nil
	})
	if err != nil {
		return nil, err
	}

	seen := map[shardclient.ComponentAccess]bool{}
	var union []shardclient.ComponentAccess
	for _, ca := range dg.direct {
		if !seen[ca] {
			seen[ca] = true
			union = append(union, ca)
		}
	}

	groups, _, err := c.closeGroupMemberships(ctx, "GetApplicationComponentsAccessibleByUser", dg.groups)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return union, nil
	}

	byShard := partitionByHash(groups, hashgen.GroupHash)
	tasks := make([]fanout.Task[[]shardclient.ComponentAccess], 0, len(byShard))
	for hash, groupsOnShard := range byShard {
		pair, err := c.mgr.ClientForQuery(domain.Group, domain.Query, hash)
		if err != nil {
			return nil, err
		}
		groupsOnShard := groupsOnShard
		tasks = append(tasks, fanout.NewTask(pair.Description, func(ctx context.Context) ([]shardclient.ComponentAccess, error) {
			return pair.Client.GetApplicationComponentsAccessibleByGroups(ctx, groupsOnShard)
		}))
	}

	err = fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[[]shardclient.ComponentAccess]{
		OnResult: func(v []shardclient.ComponentAccess) {
			for _, ca := range v {
				if !seen[ca] {
					seen[ca] = true
					union = append(union, ca)
				}
			}
		},
		ExceptionEventDescription: "retrieve accessible components from",
	})
	if err != nil {
		return nil, err
	}
	return union, nil
}

// directEntitiesAndGroups bundles a user's own direct entity grants
// (of entityType) together with its direct group mappings, fetched
// from the user's owning shard in one round trip.
type directEntitiesAndGroups struct {
	direct []shardclient.EntityRef
	groups []string
}

// GetEntitiesAccessibleByUser mirrors
// GetApplicationComponentsAccessibleByUser for entities of entityType.
func (c *Coordinator) GetEntitiesAccessibleByUser(ctx context.Context, user, entityType string) ([]shardclient.EntityRef, error) {
	dg, err := singleShardQuery(c, ctx, "GetEntitiesAccessibleByUser", domain.User, hashgen.UserHash(user), "retrieve direct access and group mappings for user from", func(cl shardclient.Client) (directEntitiesAndGroups, error) {
		direct, err := cl.GetDirectEntityAccess(ctx, user, entityType)
		if err != nil {
			return directEntitiesAndGroups{}, err
		}
		groups, err := cl.GetUserToGroupMappings(ctx, user, false)
		if err != nil {
			return directEntitiesAndGroups{}, err
		}
		return directEntitiesAndGroups{direct: direct, groups: groups}, nil
	})
	if err != nil {
		return nil, err
	}

	seen := map[shardclient.EntityRef]bool{}
	var union []shardclient.EntityRef
	for _, ref := range dg.direct {
		if !seen[ref] {
			seen[ref] = true
			union = append(union, ref)
		}
	}

	groups, _, err := c.closeGroupMemberships(ctx, "GetEntitiesAccessibleByUser", dg.groups)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return union, nil
	}

	byShard := partitionByHash(groups, hashgen.GroupHash)
	tasks := make([]fanout.Task[[]shardclient.EntityRef], 0, len(byShard))
	for hash, groupsOnShard := range byShard {
		pair, err := c.mgr.ClientForQuery(domain.Group, domain.Query, hash)
		if err != nil {
			return nil, err
		}
		groupsOnShard := groupsOnShard
		tasks = append(tasks, fanout.NewTask(pair.Description, func(ctx context.Context) ([]shardclient.EntityRef, error) {
			return pair.Client.GetEntitiesAccessibleByGroups(ctx, groupsOnShard, entityType)
		}))
	}

	err = fanout.AwaitTaskCompletion(ctx, tasks, fanout.Options[[]shardclient.EntityRef]{
		OnResult: func(v []shardclient.EntityRef) {
			for _, ref := range v {
				if !seen[ref] {
					seen[ref] = true
					union = append(union, ref)
				}
			}
		},
		ExceptionEventDescription: "retrieve accessible entities from",
	})
	if err != nil {
		return nil, err
	}
	return union, nil
}
