// Package shardmgr implements the owner of every shardclient.Client,
// keyed by endpoint, built lazily from a shardconfig.Set snapshot, and
// carried through a lifecycle state machine (Unseen -> Active ->
// Draining -> Disposed) as configuration is refreshed out from under
// in-flight traffic.
//
// Shaped after a guarded map of per-node state polled on an interval
// with an onUnhealthy-style callback, generalized here to track client
// lifecycle instead of health, plus atomic in-flight refcounting so an
// endpoint is only disposed once its last caller has returned.
package shardmgr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/shardclient"
	"github.com/dreamware/authzd/internal/shardconfig"
)

// State is a client's position in the Unseen -> Active -> Draining ->
// Disposed lifecycle.
type State int32

const (
	Unseen State = iota
	Active
	Draining
	Disposed
)

func (s State) String() string {
	switch s {
	case Unseen:
		return "Unseen"
	case Active:
		return "Active"
	case Draining:
		return "Draining"
	case Disposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// Factory builds the concrete client for one endpoint. Production code
// passes a factory wrapping shardclient.NewHTTPClient; tests pass a factory returning
// shardclient.Fake instances.
type Factory func(endpoint, description string) shardclient.Client

// ClientDescPair pairs a client with the stable shard description it
// reports errors and metrics under.
type ClientDescPair struct {
	Client      shardclient.Client
	Description string
}

type entry struct {
	client      shardclient.Client
	description string
	state       int32 // atomic State
	inFlight    int64 // atomic refcount, see tracked_client.go
	replicaSeq  uint64
}

// Manager owns the live client set for one configuration snapshot and
// transitions clients through their lifecycle as RefreshConfiguration
// replaces that snapshot.
type Manager struct {
	mu        sync.RWMutex
	set       *shardconfig.Set
	factory   Factory
	clients   map[string]*entry // keyed by endpoint
	drainPoll time.Duration
}

// NewManager builds a Manager over the given initial configuration. The
// factory is called at most once per distinct endpoint, on first use.
func NewManager(set *shardconfig.Set, factory Factory) *Manager {
	return &Manager{
		set:       set,
		factory:   factory,
		clients:   make(map[string]*entry),
		drainPoll: 50 * time.Millisecond,
	}
}

// SetDrainPollInterval overrides how often a draining client's in-flight
// count is polled before disposal. Intended to be called once, before
// the Manager serves any traffic.
func (m *Manager) SetDrainPollInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainPoll = d
}

func (m *Manager) entryFor(endpoint, description string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.clients[endpoint]; ok {
		return e
	}
	e := &entry{
		client:      m.factory(endpoint, description),
		description: description,
		state:       int32(Active),
	}
	m.clients[endpoint] = e
	return e
}

func trackedFor(e *entry) shardclient.Client {
	return &trackedClient{entry: e, inner: e.client}
}

// ClientFor resolves the single endpoint an Event-class operation routes
// to for hash. Event segments are validated at configuration-load time
// to carry exactly one endpoint, so there is never a replica choice to
// make here.
func (m *Manager) ClientFor(class domain.ElementClass, kind domain.OperationKind, hash int32) (ClientDescPair, error) {
	if class == domain.Entity {
		return ClientDescPair{}, &domain.ErrInvalidElementClass{Class: class, Why: "Entity is never independently sharded; route via the owning User/Group shards instead of GetClient"}
	}

	m.mu.RLock()
	set := m.set
	m.mu.RUnlock()

	seg, err := set.LookupSegment(class, kind, hash)
	if err != nil {
		return ClientDescPair{}, err
	}
	ep := seg.Endpoints[0]
	e := m.entryFor(ep.Endpoint, ep.Description)
	return ClientDescPair{Client: trackedFor(e), Description: e.description}, nil
}

// ClientForQuery resolves one endpoint for a Query-class operation at
// hash, applying round-robin selection across the segment's replica set.
// Replica-selection policy lives entirely in the Manager and is not
// externally observable.
func (m *Manager) ClientForQuery(class domain.ElementClass, kind domain.OperationKind, hash int32) (ClientDescPair, error) {
	if class == domain.Entity {
		return ClientDescPair{}, &domain.ErrInvalidElementClass{Class: class, Why: "Entity is never independently sharded; route via the owning User/Group shards instead of GetClient"}
	}

	m.mu.RLock()
	set := m.set
	m.mu.RUnlock()

	seg, err := set.LookupSegment(class, kind, hash)
	if err != nil {
		return ClientDescPair{}, err
	}
	if len(seg.Endpoints) == 1 {
		e := m.entryFor(seg.Endpoints[0].Endpoint, seg.Endpoints[0].Description)
		return ClientDescPair{Client: trackedFor(e), Description: e.description}, nil
	}

	// Round-robin across replicas using a counter on the first replica's
	// entry: all replicas of one segment share selection state so that
	// repeated calls spread evenly regardless of which replica happens to
	// be looked up first.
	anchor := m.entryFor(seg.Endpoints[0].Endpoint, seg.Endpoints[0].Description)
	idx := atomic.AddUint64(&anchor.replicaSeq, 1) - 1
	chosen := seg.Endpoints[idx%uint64(len(seg.Endpoints))]
	e := m.entryFor(chosen.Endpoint, chosen.Description)
	return ClientDescPair{Client: trackedFor(e), Description: e.description}, nil
}

// AllClients returns one client per distinct endpoint configured for
// (class, kind), for operations that fan out to every shard of that
// class (e.g. adding a group on every GroupToGroupMapping Event shard).
func (m *Manager) AllClients(class domain.ElementClass, kind domain.OperationKind) []ClientDescPair {
	m.mu.RLock()
	set := m.set
	m.mu.RUnlock()

	endpoints := set.AllEndpoints(class, kind)
	pairs := make([]ClientDescPair, 0, len(endpoints))
	for _, ep := range endpoints {
		e := m.entryFor(ep.Endpoint, ep.Description)
		pairs = append(pairs, ClientDescPair{Client: trackedFor(e), Description: e.description})
	}
	return pairs
}

// AllClientsForClasses returns one client per distinct endpoint configured
// for (kind) across every class in classes, deduped across class
// boundaries as well as within a single class. Used for write-routing
// patterns that fan the same event out to more than one class's shards
// (e.g. RemoveGroup across every User, Group and GroupToGroupMapping
// shard, or an entity operation across every User and Group shard),
// where two classes configured
// onto the same physical node must not be called twice.
func (m *Manager) AllClientsForClasses(classes []domain.ElementClass, kind domain.OperationKind) []ClientDescPair {
	m.mu.RLock()
	set := m.set
	m.mu.RUnlock()

	seenEndpoint := map[string]bool{}
	var pairs []ClientDescPair
	for _, class := range classes {
		for _, ep := range set.AllEndpoints(class, kind) {
			if seenEndpoint[ep.Endpoint] {
				continue
			}
			seenEndpoint[ep.Endpoint] = true
			e := m.entryFor(ep.Endpoint, ep.Description)
			pairs = append(pairs, ClientDescPair{Client: trackedFor(e), Description: e.description})
		}
	}
	return pairs
}

// RefreshConfiguration atomically swaps the active configuration
// snapshot. Any endpoint present in the old snapshot but absent from
// newSet transitions Active -> Draining and is disposed once its
// in-flight call count reaches zero; endpoints present in both keep
// their existing client and Active state untouched.
func (m *Manager) RefreshConfiguration(ctx context.Context, newSet *shardconfig.Set) {
	m.mu.Lock()
	old := m.set
	m.set = newSet
	m.mu.Unlock()

	if old == nil {
		return
	}

	stillPresent := map[string]bool{}
	for _, class := range []domain.ElementClass{domain.User, domain.Group, domain.GroupToGroupMapping} {
		for _, kind := range []domain.OperationKind{domain.Event, domain.Query} {
			for _, ep := range newSet.AllEndpoints(class, kind) {
				stillPresent[ep.Endpoint] = true
			}
		}
	}

	m.mu.Lock()
	var draining []*entry
	for endpoint, e := range m.clients {
		if stillPresent[endpoint] {
			continue
		}
		if atomic.CompareAndSwapInt32(&e.state, int32(Active), int32(Draining)) {
			draining = append(draining, e)
		}
	}
	m.mu.Unlock()

	for _, e := range draining {
		go m.watchDrain(ctx, e)
	}
}

func (m *Manager) watchDrain(ctx context.Context, e *entry) {
	ticker := time.NewTicker(m.drainPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt64(&e.inFlight) == 0 {
				atomic.StoreInt32(&e.state, int32(Disposed))
				m.mu.Lock()
				for endpoint, candidate := range m.clients {
					if candidate == e {
						delete(m.clients, endpoint)
						break
					}
				}
				m.mu.Unlock()
				return
			}
		}
	}
}

// StateOf reports the current lifecycle state of the client registered
// for endpoint, or Unseen if no client has ever been created for it.
func (m *Manager) StateOf(endpoint string) State {
	m.mu.RLock()
	e, ok := m.clients[endpoint]
	m.mu.RUnlock()
	if !ok {
		return Unseen
	}
	return State(atomic.LoadInt32(&e.state))
}

// ErrNoSuchEndpoint is returned when an operation references an endpoint
// the Manager has never seen.
type ErrNoSuchEndpoint struct{ Endpoint string }

func (e *ErrNoSuchEndpoint) Error() string {
	return fmt.Sprintf("shardmgr: no client registered for endpoint %q", e.Endpoint)
}
