// Package schema carries the identity and key comparators a fragment stream
// is produced under. The full column/type system lives outside this module;
// readers and consumers only ever need the comparators and the identity.
package schema

import (
	"bytes"

	"github.com/oklog/ulid/v2"
)

type Schema struct {
	ID   ulid.ULID
	Name string
}

// New creates a schema with a fresh identity. Two schemas created from the
// same name are still distinct instances and must not be mixed.
func New(name string) *Schema {
	return &Schema{
		ID:   ulid.Make(),
		Name: name,
	}
}

// ComparePartitionKeys orders partition keys in ring order.
func (s *Schema) ComparePartitionKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}

// CompareClusteringKeys orders clustering keys within a partition.
func (s *Schema) CompareClusteringKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}

func (s *Schema) Equal(other *Schema) bool {
	return other != nil && s.ID == other.ID
}
