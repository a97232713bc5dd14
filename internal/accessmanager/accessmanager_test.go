package accessmanager

import "testing"

func TestAddUserContainsUserRemoveUser(t *testing.T) {
	m := New()
	if m.ContainsUser("alice") {
		t.Fatal("expected alice absent initially")
	}
	m.AddUser("alice")
	if !m.ContainsUser("alice") {
		t.Fatal("expected alice present after AddUser")
	}
	m.RemoveUser("alice")
	if m.ContainsUser("alice") {
		t.Fatal("expected alice absent after RemoveUser")
	}
}

func TestContainsEntityUnknownTypeReturnsNotFound(t *testing.T) {
	m := New()
	_, err := m.ContainsEntity("document", "doc-1")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unregistered entity type, got %v", err)
	}
}

func TestGroupToGroupMappingsAndReverse(t *testing.T) {
	m := New()
	m.AddGroupToGroupMapping("A", "B")
	if got := m.GetGroupToGroupMappings([]string{"A"}); len(got) != 1 || got[0] != "B" {
		t.Fatalf("expected [B], got %v", got)
	}
	if got := m.GetGroupToGroupReverseMappings([]string{"B"}); len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected [A], got %v", got)
	}
}

func TestStatsCountsEventsAndQueriesSeparately(t *testing.T) {
	m := New()
	m.AddUser("alice")
	m.ContainsUser("alice")
	m.ContainsUser("bob")

	stats := m.Stats()
	if stats.Events != 1 {
		t.Fatalf("expected 1 event, got %d", stats.Events)
	}
	if stats.Queries != 2 {
		t.Fatalf("expected 2 queries, got %d", stats.Queries)
	}
}

func TestHasAccessToApplicationComponentAcrossMultipleGroups(t *testing.T) {
	m := New()
	m.AddGroupToApplicationComponentAndAccessLevel("admins", "billing", "write")
	if !m.HasAccessToApplicationComponent([]string{"viewers", "admins"}, "billing", "write") {
		t.Fatal("expected access granted via admins group")
	}
	if m.HasAccessToApplicationComponent([]string{"viewers"}, "billing", "write") {
		t.Fatal("expected no access without the granting group")
	}
}
