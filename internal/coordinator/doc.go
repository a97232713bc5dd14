// Package coordinator implements the entry point for user-rooted events
// and queries, responsible for
// routing each element class/kind pair to the shard owning its hash,
// fanning Entity-class and broadcast-style operations out across every
// relevant shard, and expanding GroupToGroupMapping edges into the full
// transitive closure an authorization query needs.
//
// # Architecture
//
//	┌──────────────────────────────────────────┐
//	│              Coordinator                   │
//	├──────────────────────────────────────────┤
//	│  operation_coordinator.go                 │
//	│    - single-shard event/query dispatch    │
//	│    - entity-class broadcast fan-out       │
//	│  traversal.go                              │
//	│    - group-to-group closure (BFS rounds)  │
//	│    - user-rooted access predicates        │
//	│  health_monitor.go                        │
//	│    - periodic /health polling per endpoint│
//	└──────────────────────────────────────────┘
//
// Every operation goes through internal/shardmgr.Manager to resolve a
// shard's Client and internal/fanout to dispatch one or more concurrent
// calls, recording internal/metrics along the way.
package coordinator
