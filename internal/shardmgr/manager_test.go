package shardmgr

import (
	"context"
	"testing"
	"time"

	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/shardclient"
	"github.com/dreamware/authzd/internal/shardconfig"
)

const minInt32 = -1 << 31

func fakeFactory() (Factory, map[string]*shardclient.Fake) {
	built := map[string]*shardclient.Fake{}
	factory := func(endpoint, description string) shardclient.Client {
		f := shardclient.NewFake(description)
		built[endpoint] = f
		return f
	}
	return factory, built
}

func TestClientForReturnsSameClientForStableHash(t *testing.T) {
	set, err := shardconfig.New([]shardconfig.Segment{
		{Class: domain.User, Kind: domain.Event, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "http://a", Description: "A"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	factory, built := fakeFactory()
	mgr := NewManager(set, factory)

	first, err := mgr.ClientFor(domain.User, domain.Event, 42)
	if err != nil {
		t.Fatal(err)
	}
	second, err := mgr.ClientFor(domain.User, domain.Event, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if first.Description != "A" || second.Description != "A" {
		t.Fatalf("expected both hashes to route to A, got %q and %q", first.Description, second.Description)
	}
	if len(built) != 1 {
		t.Fatalf("expected factory invoked exactly once for one endpoint, got %d", len(built))
	}
}

func TestClientForQueryRoundRobinsAcrossReplicas(t *testing.T) {
	set, err := shardconfig.New([]shardconfig.Segment{
		{Class: domain.Group, Kind: domain.Query, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{
			{Endpoint: "http://a", Description: "A"},
			{Endpoint: "http://b", Description: "B"},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	factory, _ := fakeFactory()
	mgr := NewManager(set, factory)

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		pair, err := mgr.ClientForQuery(domain.Group, domain.Query, 7)
		if err != nil {
			t.Fatal(err)
		}
		seen[pair.Description]++
	}
	if seen["A"] != 2 || seen["B"] != 2 {
		t.Fatalf("expected round-robin to alternate evenly, got %v", seen)
	}
}

func TestRefreshConfigurationDrainsRemovedEndpointOnlyAfterInFlightCallsFinish(t *testing.T) {
	oldSet, err := shardconfig.New([]shardconfig.Segment{
		{Class: domain.User, Kind: domain.Event, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "http://old", Description: "Old"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	newSet, err := shardconfig.New([]shardconfig.Segment{
		{Class: domain.User, Kind: domain.Event, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "http://new", Description: "New"}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	factory, _ := fakeFactory()
	mgr := NewManager(oldSet, factory)
	mgr.drainPoll = time.Millisecond

	pair, err := mgr.ClientFor(domain.User, domain.Event, 1)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Simulate a call in flight on the about-to-be-removed endpoint by
	// holding its tracked-client refcount up directly through the entry.
	tc := pair.Client.(*trackedClient)
	tc.entry.inFlight = 1

	mgr.RefreshConfiguration(ctx, newSet)

	if got := mgr.StateOf("http://old"); got != Draining {
		t.Fatalf("expected old endpoint Draining while in-flight, got %s", got)
	}

	time.Sleep(5 * time.Millisecond)
	if got := mgr.StateOf("http://old"); got != Draining {
		t.Fatalf("expected old endpoint to remain Draining with in-flight calls outstanding, got %s", got)
	}

	tc.entry.inFlight = 0
	time.Sleep(20 * time.Millisecond)
	if got := mgr.StateOf("http://old"); got != Unseen {
		t.Fatalf("expected old endpoint disposed (and thus Unseen, having been removed from the map) once drained, got %s", got)
	}
}

func TestAllClientsDedupesByEndpoint(t *testing.T) {
	set, err := shardconfig.New([]shardconfig.Segment{
		{Class: domain.Group, Kind: domain.Event, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "http://a", Description: "A"}}},
		{Class: domain.Group, Kind: domain.Event, HashRangeStart: 0, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "http://b", Description: "B"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	factory, _ := fakeFactory()
	mgr := NewManager(set, factory)

	pairs := mgr.AllClients(domain.Group, domain.Event)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 distinct endpoints, got %d", len(pairs))
	}
}

func TestClientForRejectsEntityClass(t *testing.T) {
	set, err := shardconfig.New([]shardconfig.Segment{
		{Class: domain.User, Kind: domain.Event, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "http://a", Description: "A"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	factory, _ := fakeFactory()
	mgr := NewManager(set, factory)

	if _, err := mgr.ClientFor(domain.Entity, domain.Event, 0); err == nil {
		t.Fatal("expected ClientFor(domain.Entity, ...) to be rejected")
	}
	if _, err := mgr.ClientForQuery(domain.Entity, domain.Query, 0); err == nil {
		t.Fatal("expected ClientForQuery(domain.Entity, ...) to be rejected")
	}
}

func TestSetDrainPollIntervalOverridesDefault(t *testing.T) {
	set, err := shardconfig.New([]shardconfig.Segment{
		{Class: domain.User, Kind: domain.Event, HashRangeStart: minInt32, Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "http://a", Description: "A"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	factory, _ := fakeFactory()
	mgr := NewManager(set, factory)
	mgr.SetDrainPollInterval(time.Millisecond)

	if mgr.drainPoll != time.Millisecond {
		t.Fatalf("expected drainPoll to be overridden to 1ms, got %v", mgr.drainPoll)
	}
}
