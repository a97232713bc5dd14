package shardconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/authzd/internal/domain"
)

// rawEntry mirrors one line of the shard configuration payload:
// {class, kind, hashRangeStart, endpointUri, description}. Multiple
// entries sharing (class, kind, hashRangeStart) are replicas of the same
// Query segment.
type rawEntry struct {
	Class          domain.ElementClass  `yaml:"class"`
	Kind           domain.OperationKind `yaml:"kind"`
	HashRangeStart int32                `yaml:"hashRangeStart"`
	EndpointURI    string               `yaml:"endpointUri"`
	Description    string               `yaml:"description"`
}

type rawPayload struct {
	Segments []rawEntry `yaml:"segments"`
}

// LoadFile reads a shard configuration payload from a YAML file and
// builds a validated Set. Structured config rather than a handful of
// getenv scalars, since the routing table is nested data.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shardconfig: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a validated Set from a YAML-encoded shard configuration
// payload. Entries sharing (class, kind, hashRangeStart) are merged into
// one Segment with one Endpoints entry per distinct endpointUri.
func Parse(yamlData []byte) (*Set, error) {
	var payload rawPayload
	if err := yaml.Unmarshal(yamlData, &payload); err != nil {
		return nil, fmt.Errorf("shardconfig: parsing yaml: %w", err)
	}
	return FromEntries(payload.Segments)
}

// FromEntries merges a flat list of (class, kind, hashRangeStart,
// endpointUri, description) rows into Segments and builds a validated
// Set. Exported so tests and programmatic callers can build a Set
// without going through YAML.
func FromEntries(entries []rawEntry) (*Set, error) {
	type key struct {
		class domain.ElementClass
		kind  domain.OperationKind
		start int32
	}
	order := make([]key, 0)
	byKey := make(map[key][]EndpointDescriptor)

	for _, e := range entries {
		k := key{e.Class, e.Kind, e.HashRangeStart}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], EndpointDescriptor{Endpoint: e.EndpointURI, Description: e.Description})
	}

	segments := make([]Segment, 0, len(order))
	for _, k := range order {
		segments = append(segments, Segment{
			Class:          k.class,
			Kind:           k.kind,
			HashRangeStart: k.start,
			Endpoints:      byKey[k],
		})
	}

	return New(segments)
}

// Entry is the exported name for rawEntry, for callers that build a
// payload programmatically instead of parsing YAML from disk. The
// refresh-configuration admin endpoint does not use it; it reloads the
// file through LoadFile.
type Entry = rawEntry
