package router

import (
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/hashgen"
	"github.com/dreamware/authzd/internal/metrics"
	"github.com/dreamware/authzd/internal/shardclient"
	"github.com/dreamware/authzd/internal/shardconfig"
	"github.com/dreamware/authzd/internal/shardmgr"
)

const minInt32 = -1 << 31

func twoShardFixture(t *testing.T) (*Router, *shardclient.Fake, *shardclient.Fake) {
	t.Helper()
	fakeA := shardclient.NewFake("group-shard-a")
	fakeB := shardclient.NewFake("group-shard-b")

	set, err := shardconfig.New([]shardconfig.Segment{
		{Class: domain.Group, Kind: domain.Query, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "fake://a", Description: "group-shard-a"}}},
		{Class: domain.Group, Kind: domain.Query, HashRangeStart: 0, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "fake://b", Description: "group-shard-b"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	mgr := shardmgr.NewManager(set, func(endpoint, description string) shardclient.Client {
		if endpoint == "fake://a" {
			return fakeA
		}
		return fakeB
	})
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	return New(mgr, rec, zerolog.New(io.Discard)), fakeA, fakeB
}

func TestHasAccessToApplicationComponentQueriesAllOwningShards(t *testing.T) {
	r, fakeA, fakeB := twoShardFixture(t)
	ctx := context.Background()

	group := "finance-admins"
	owner := fakeA
	if hashgen.GroupHash(group) >= 0 {
		owner = fakeB
	}
	_ = owner.AddGroupToApplicationComponentAndAccessLevel(ctx, group, "billing", "admin")

	granted, err := r.HasAccessToApplicationComponent(ctx, []string{group, "some-other-group"}, "billing", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if !granted {
		t.Fatal("expected access granted from whichever shard the group landed on")
	}
}

func TestGetEntitiesAccessibleByGroupsUnionsAcrossShards(t *testing.T) {
	r, fakeA, fakeB := twoShardFixture(t)
	ctx := context.Background()

	_ = fakeA.AddEntityType(ctx, "document")
	_ = fakeB.AddEntityType(ctx, "document")
	// "g20" hashes below zero (shard A) and "g2" at or above zero (shard B).
	_ = fakeA.AddGroupToEntityMapping(ctx, "g20", "document", "doc-a")
	_ = fakeB.AddGroupToEntityMapping(ctx, "g2", "document", "doc-b")

	refs, err := r.GetEntitiesAccessibleByGroups(ctx, []string{"g20", "g2"}, "document")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 distinct entity refs across both shards, got %d: %v", len(refs), refs)
	}
}

// userAndGroupFixture configures both User and Group classes across two
// distinct fake shards, for the union-lookup methods that fan out across
// a whole class rather than a single group-hash-owning shard.
func userAndGroupFixture(t *testing.T) (*Router, *shardclient.Fake, *shardclient.Fake) {
	t.Helper()
	fakeA := shardclient.NewFake("shard-a")
	fakeB := shardclient.NewFake("shard-b")

	var segments []shardconfig.Segment
	for _, class := range []domain.ElementClass{domain.User, domain.Group} {
		segments = append(segments,
			shardconfig.Segment{Class: class, Kind: domain.Query, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "fake://a", Description: "shard-a"}}},
			shardconfig.Segment{Class: class, Kind: domain.Query, HashRangeStart: 0, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "fake://b", Description: "shard-b"}}},
		)
	}
	set, err := shardconfig.New(segments)
	if err != nil {
		t.Fatal(err)
	}
	mgr := shardmgr.NewManager(set, func(endpoint, description string) shardclient.Client {
		if endpoint == "fake://a" {
			return fakeA
		}
		return fakeB
	})
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	return New(mgr, rec, zerolog.New(io.Discard)), fakeA, fakeB
}

func TestRouterGetUsersUnionsAcrossShards(t *testing.T) {
	r, fakeA, fakeB := userAndGroupFixture(t)
	ctx := context.Background()

	_ = fakeA.AddUser(ctx, "alice")
	_ = fakeB.AddUser(ctx, "bob")

	users, err := r.GetUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, u := range users {
		seen[u] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Fatalf("expected alice and bob from both shards, got %v", users)
	}
}

func TestRouterGetGroupsUnionsAcrossShards(t *testing.T) {
	r, fakeA, fakeB := userAndGroupFixture(t)
	ctx := context.Background()

	_ = fakeA.AddGroup(ctx, "engineers")
	_ = fakeB.AddGroup(ctx, "support")

	groups, err := r.GetGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, g := range groups {
		seen[g] = true
	}
	if !seen["engineers"] || !seen["support"] {
		t.Fatalf("expected engineers and support from both shards, got %v", groups)
	}
}

func TestRouterGetGroupToUserMappingsUnionsAcrossShards(t *testing.T) {
	r, fakeA, fakeB := userAndGroupFixture(t)
	ctx := context.Background()

	_ = fakeA.AddUserToGroupMapping(ctx, "alice", "engineers")
	_ = fakeB.AddUserToGroupMapping(ctx, "bob", "engineers")

	users, err := r.GetGroupToUserMappings(ctx, []string{"engineers"})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, u := range users {
		seen[u] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Fatalf("expected alice and bob mapped to engineers across both shards, got %v", users)
	}
}

func TestContainsGroupEmptyReturnsFalseWithoutError(t *testing.T) {
	r, _, _ := twoShardFixture(t)
	ok, err := r.ContainsGroup(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected false for a group nobody added")
	}
}
