// Package hashgen implements a deterministic, stable mapping from an
// element identifier to a 32-bit signed integer hash: a pure, total
// function with no error modes. Implementations are interchangeable as
// long as every Coordinator and Router sharing a cluster uses the same
// one.
//
// Built on hash/fnv's FNV-1a, the same algorithm used elsewhere in this
// codebase for key-ownership hashing, generalized from "hash mod
// numShards" to "hash as a signed int32 used directly as a hash-range
// coordinate".
package hashgen

import "hash/fnv"

// Hash returns a deterministic, process- and restart-stable signed 32-bit
// hash of s. It is the single hashing primitive behind every named
// generator in this package; User and Group are free to share an
// algorithm as long as the choice is uniform across the cluster, which it
// is here.
func Hash(s string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s)) // hash.Hash.Write never returns an error
	return int32(h.Sum32())
}

// UserHash hashes a user identifier for routing against User-class shard
// ranges.
func UserHash(userID string) int32 {
	return Hash(userID)
}

// GroupHash hashes a group identifier for routing against Group-class or
// GroupToGroupMapping-class shard ranges.
func GroupHash(groupID string) int32 {
	return Hash(groupID)
}
