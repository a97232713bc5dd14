package coordinator

import (
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/metrics"
	"github.com/dreamware/authzd/internal/shardclient"
	"github.com/dreamware/authzd/internal/shardconfig"
	"github.com/dreamware/authzd/internal/shardmgr"
)

const minInt32 = -1 << 31

// singleShardFixture builds a Coordinator backed by one fake shard node
// serving every class, useful for scenarios that don't need to exercise
// cross-shard partitioning.
func singleShardFixture(t *testing.T) (*Coordinator, *shardclient.Fake) {
	t.Helper()
	fake := shardclient.NewFake("only-shard")
	segs := []shardconfig.Segment{}
	for _, class := range []domain.ElementClass{domain.User, domain.Group, domain.GroupToGroupMapping} {
		for _, kind := range []domain.OperationKind{domain.Event, domain.Query} {
			segs = append(segs, shardconfig.Segment{
				Class: class, Kind: kind, HashRangeStart: minInt32,
				Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "fake://only", Description: "only-shard"}},
			})
		}
	}
	set, err := shardconfig.New(segs)
	if err != nil {
		t.Fatal(err)
	}
	mgr := shardmgr.NewManager(set, func(endpoint, description string) shardclient.Client { return fake })
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	return New(mgr, rec, zerolog.New(io.Discard)), fake
}

func TestAddUserThenContainsUser(t *testing.T) {
	c, _ := singleShardFixture(t)
	ctx := context.Background()

	if err := c.AddUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	ok, err := c.ContainsUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected alice to exist after AddUser")
	}
}

// TestGroupClosureTraversal exercises the full multi-hop closure: alice
// is a direct member of A, A maps to B, B maps to C. HasAccessToEntity
// should see access granted via C, several hops removed from alice's
// direct membership.
func TestGroupClosureTraversal(t *testing.T) {
	c, fake := singleShardFixture(t)
	ctx := context.Background()

	if err := c.AddUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddUserToGroupMapping(ctx, "alice", "A"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddGroupToGroupMapping(ctx, "A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddGroupToGroupMapping(ctx, "B", "C"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddEntityType(ctx, "document"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddEntity(ctx, "document", "doc-1"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddGroupToEntityMapping(ctx, "C", "document", "doc-1"); err != nil {
		t.Fatal(err)
	}

	granted, err := c.HasAccessToEntity(ctx, "alice", "document", "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if !granted {
		t.Fatal("expected access to doc-1 via multi-hop closure alice->A->B->C")
	}

	notGranted, err := c.HasAccessToEntity(ctx, "alice", "document", "doc-2")
	if err != nil {
		t.Fatal(err)
	}
	if notGranted {
		t.Fatal("expected no access to an entity no group in the closure is mapped to")
	}

	_ = fake
}

// TestUnclassifiedFailureWrapsAsShardCallError verifies an unclassified
// shard failure surfaces as a *ShardCallError naming the failing shard's
// configured description.
func TestUnclassifiedFailureWrapsAsShardCallError(t *testing.T) {
	c, fake := singleShardFixture(t)
	fake.FailNext = io.ErrUnexpectedEOF

	err := c.AddUser(context.Background(), "bob")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "Failed to add user to shard with configuration 'only-shard'."
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

// TestDirectAccessContributesWithoutGroupMembership verifies a user's own
// direct component/entity grant is honored even when the user belongs to
// no group at all.
func TestDirectAccessContributesWithoutGroupMembership(t *testing.T) {
	c, _ := singleShardFixture(t)
	ctx := context.Background()

	_ = c.AddUser(ctx, "alice")
	if err := c.AddUserToApplicationComponentAndAccessLevel(ctx, "alice", "billing", "read"); err != nil {
		t.Fatal(err)
	}
	_ = c.AddEntityType(ctx, "document")
	_ = c.AddEntity(ctx, "document", "doc-1")
	if err := c.AddUserToEntityMapping(ctx, "alice", "document", "doc-1"); err != nil {
		t.Fatal(err)
	}

	granted, err := c.HasAccessToApplicationComponent(ctx, "alice", "billing", "read")
	if err != nil {
		t.Fatal(err)
	}
	if !granted {
		t.Fatal("expected direct component access to be granted absent any group membership")
	}

	entityGranted, err := c.HasAccessToEntity(ctx, "alice", "document", "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if !entityGranted {
		t.Fatal("expected direct entity access to be granted absent any group membership")
	}

	components, err := c.GetApplicationComponentsAccessibleByUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(components) != 1 || components[0].Component != "billing" {
		t.Fatalf("expected [billing/read] from direct grant alone, got %v", components)
	}

	entities, err := c.GetEntitiesAccessibleByUser(ctx, "alice", "document")
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 1 || entities[0].Entity != "doc-1" {
		t.Fatalf("expected [document/doc-1] from direct grant alone, got %v", entities)
	}
}

// TestDirectAndGroupAccessUnion verifies a user with both a direct grant
// and an indirect (group-rooted) grant sees both contribute to the
// accessible set, not just whichever is checked first.
func TestDirectAndGroupAccessUnion(t *testing.T) {
	c, _ := singleShardFixture(t)
	ctx := context.Background()

	_ = c.AddUser(ctx, "alice")
	_ = c.AddUserToApplicationComponentAndAccessLevel(ctx, "alice", "billing", "read")
	_ = c.AddGroup(ctx, "engineers")
	_ = c.AddUserToGroupMapping(ctx, "alice", "engineers")
	_ = c.AddGroupToApplicationComponentAndAccessLevel(ctx, "engineers", "deploy", "write")

	components, err := c.GetApplicationComponentsAccessibleByUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, ca := range components {
		seen[ca.Component] = true
	}
	if !seen["billing"] || !seen["deploy"] {
		t.Fatalf("expected both direct (billing) and group-rooted (deploy) access, got %v", components)
	}
}

// TestUnionLookups exercises GetUsers, GetGroups, and
// GetGroupToUserMappings.
func TestUnionLookups(t *testing.T) {
	c, _ := singleShardFixture(t)
	ctx := context.Background()

	_ = c.AddUser(ctx, "alice")
	_ = c.AddUser(ctx, "bob")
	_ = c.AddGroup(ctx, "engineers")
	_ = c.AddGroup(ctx, "support")
	_ = c.AddUserToGroupMapping(ctx, "alice", "engineers")
	_ = c.AddUserToGroupMapping(ctx, "bob", "support")

	users, err := c.GetUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seenUsers := map[string]bool{}
	for _, u := range users {
		seenUsers[u] = true
	}
	if !seenUsers["alice"] || !seenUsers["bob"] {
		t.Fatalf("expected GetUsers to include alice and bob, got %v", users)
	}

	groups, err := c.GetGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seenGroups := map[string]bool{}
	for _, g := range groups {
		seenGroups[g] = true
	}
	if !seenGroups["engineers"] || !seenGroups["support"] {
		t.Fatalf("expected GetGroups to include engineers and support, got %v", groups)
	}

	mapped, err := c.GetGroupToUserMappings(ctx, []string{"engineers"})
	if err != nil {
		t.Fatal(err)
	}
	if len(mapped) != 1 || mapped[0] != "alice" {
		t.Fatalf("expected GetGroupToUserMappings([engineers]) == [alice], got %v", mapped)
	}
}

func TestGetUserToGroupMappingsIncludeIndirectUsesClosure(t *testing.T) {
	c, _ := singleShardFixture(t)
	ctx := context.Background()

	_ = c.AddUser(ctx, "alice")
	_ = c.AddUserToGroupMapping(ctx, "alice", "A")
	_ = c.AddGroupToGroupMapping(ctx, "A", "B")

	direct, err := c.GetUserToGroupMappings(ctx, "alice", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(direct) != 1 || direct[0] != "A" {
		t.Fatalf("expected direct mapping [A], got %v", direct)
	}

	all, err := c.GetUserToGroupMappings(ctx, "alice", true)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, g := range all {
		seen[g] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Fatalf("expected closure to include A and B, got %v", all)
	}
}
