// Package mutstream implements the flat fragment stream protocol: a
// partition's rows and tombstones represented as one strictly ordered
// sequence of fragments, the adapters converting between the flat and the
// nested per-partition representation, and the fold engine that consumes a
// stream under consumer-driven early termination.
//
// The canonical order over a sequence is: partition keys in ascending ring
// order, and within each partition a PartitionStart, an optional StaticRow,
// body fragments in strictly increasing clustering order, then an
// EndOfPartition.
package mutstream

import (
	"context"

	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
)

// Forwarding selects at construction whether a reader supports FastForward.
type Forwarding bool

const (
	ForwardingDisabled Forwarding = false
	ForwardingEnabled  Forwarding = true
)

// FragmentReader is the pull side of the flat fragment protocol. Any data
// source (in-memory partitions, stored segments, caches) supplies data by
// implementing it; any scan operator consumes through it.
//
// A reader is driven by exactly one logical consumer; concurrent calls are
// undefined. Dropping a reader before exhaustion is always legal.
type FragmentReader interface {
	// Schema returns the schema the fragment sequence is produced under.
	Schema() *schema.Schema

	// Next returns the next fragment in canonical order, or None at end of
	// stream. End of stream is idempotent: further calls keep returning
	// None. A non-nil error ends the stream; the fault is reported once.
	Next(ctx context.Context) (mo.Option[types.Fragment], error)

	// FastForward restricts body fragment production within the current
	// partition to r and repositions production at the start of r.
	// Fragments already returned are not retracted. Legal only on a reader
	// constructed with ForwardingEnabled, and only between fragment pulls
	// of an open partition.
	FastForward(r ClusteringRange) error
}
