package types

import (
	"bytes"
	"fmt"

	"github.com/samber/mo"
)

type Kind byte

const (
	KindPartitionStart Kind = iota
	KindStaticRow
	KindClusteringRow
	KindRangeTombstone
	KindEndOfPartition
)

// String returns the kind as a string
func (k Kind) String() string {
	switch k {
	case KindPartitionStart:
		return "PartitionStart"
	case KindStaticRow:
		return "StaticRow"
	case KindClusteringRow:
		return "ClusteringRow"
	case KindRangeTombstone:
		return "RangeTombstone"
	case KindEndOfPartition:
		return "EndOfPartition"
	default:
		return "Unknown"
	}
}

// Cell is a single named value inside a row. Cell comparison semantics
// beyond structural equality belong to the caller.
type Cell struct {
	Name      string
	Value     []byte
	Timestamp int64
}

// RowMarker records the write that made a clustering row live,
// independently of its cells.
type RowMarker struct {
	Timestamp int64
}

// PartitionStart opens a partition. Every fragment until the matching
// EndOfPartition belongs to Key.
type PartitionStart struct {
	Key       []byte
	Tombstone mo.Option[Tombstone]
}

// StaticRow holds the partition's static cells. At most one per partition,
// positioned immediately after PartitionStart.
type StaticRow struct {
	Cells []Cell
}

// ClusteringRow is one row at a clustering position within the partition.
type ClusteringRow struct {
	Key    []byte
	Marker RowMarker
	Cells  []Cell
}

// RangeTombstone deletes the clustering range [Start, End).
// Its position in the fragment sequence is Start.
type RangeTombstone struct {
	Start     []byte
	End       []byte
	Tombstone Tombstone
}

// Fragment is one unit of the flat fragment sequence. It is a closed union:
// exactly the payload field matching Kind is set, all others are nil.
// EndOfPartition carries no payload.
type Fragment struct {
	Kind           Kind
	PartitionStart *PartitionStart
	StaticRow      *StaticRow
	ClusteringRow  *ClusteringRow
	RangeTombstone *RangeTombstone
}

func NewPartitionStart(key []byte, tombstone mo.Option[Tombstone]) Fragment {
	return Fragment{
		Kind:           KindPartitionStart,
		PartitionStart: &PartitionStart{Key: key, Tombstone: tombstone},
	}
}

func NewStaticRow(cells ...Cell) Fragment {
	return Fragment{
		Kind:      KindStaticRow,
		StaticRow: &StaticRow{Cells: cells},
	}
}

func NewClusteringRow(key []byte, marker RowMarker, cells ...Cell) Fragment {
	return Fragment{
		Kind:          KindClusteringRow,
		ClusteringRow: &ClusteringRow{Key: key, Marker: marker, Cells: cells},
	}
}

func NewRangeTombstone(start []byte, end []byte, tombstone Tombstone) Fragment {
	return Fragment{
		Kind:           KindRangeTombstone,
		RangeTombstone: &RangeTombstone{Start: start, End: end, Tombstone: tombstone},
	}
}

func NewEndOfPartition() Fragment {
	return Fragment{Kind: KindEndOfPartition}
}

func (f Fragment) IsPartitionStart() bool { return f.Kind == KindPartitionStart }
func (f Fragment) IsStaticRow() bool      { return f.Kind == KindStaticRow }
func (f Fragment) IsClusteringRow() bool  { return f.Kind == KindClusteringRow }
func (f Fragment) IsRangeTombstone() bool { return f.Kind == KindRangeTombstone }
func (f Fragment) IsEndOfPartition() bool { return f.Kind == KindEndOfPartition }

// IsBody reports whether the fragment carries partition body data, as opposed
// to opening or closing a partition.
func (f Fragment) IsBody() bool {
	return f.Kind == KindStaticRow || f.Kind == KindClusteringRow || f.Kind == KindRangeTombstone
}

// ClusteringKey returns the fragment's position in clustering order.
// Only clustering rows and range tombstones have one; a range tombstone is
// positioned at its start bound.
func (f Fragment) ClusteringKey() mo.Option[[]byte] {
	switch f.Kind {
	case KindClusteringRow:
		return mo.Some(f.ClusteringRow.Key)
	case KindRangeTombstone:
		return mo.Some(f.RangeTombstone.Start)
	default:
		return mo.None[[]byte]()
	}
}

// Equal reports structural equality of two fragments produced under the
// same schema.
func (f Fragment) Equal(other Fragment) bool {
	if f.Kind != other.Kind {
		return false
	}
	switch f.Kind {
	case KindPartitionStart:
		return bytes.Equal(f.PartitionStart.Key, other.PartitionStart.Key) &&
			tombstoneOptEqual(f.PartitionStart.Tombstone, other.PartitionStart.Tombstone)
	case KindStaticRow:
		return cellsEqual(f.StaticRow.Cells, other.StaticRow.Cells)
	case KindClusteringRow:
		return bytes.Equal(f.ClusteringRow.Key, other.ClusteringRow.Key) &&
			f.ClusteringRow.Marker == other.ClusteringRow.Marker &&
			cellsEqual(f.ClusteringRow.Cells, other.ClusteringRow.Cells)
	case KindRangeTombstone:
		return bytes.Equal(f.RangeTombstone.Start, other.RangeTombstone.Start) &&
			bytes.Equal(f.RangeTombstone.End, other.RangeTombstone.End) &&
			f.RangeTombstone.Tombstone.Equal(other.RangeTombstone.Tombstone)
	case KindEndOfPartition:
		return true
	default:
		return false
	}
}

// String returns a short human-readable form, useful in test failures.
func (f Fragment) String() string {
	switch f.Kind {
	case KindPartitionStart:
		return fmt.Sprintf("PartitionStart(%q, tombstone=%v)",
			f.PartitionStart.Key, f.PartitionStart.Tombstone.IsPresent())
	case KindStaticRow:
		return fmt.Sprintf("StaticRow(%d cells)", len(f.StaticRow.Cells))
	case KindClusteringRow:
		return fmt.Sprintf("ClusteringRow(%q, %d cells)",
			f.ClusteringRow.Key, len(f.ClusteringRow.Cells))
	case KindRangeTombstone:
		return fmt.Sprintf("RangeTombstone(%q, %q)",
			f.RangeTombstone.Start, f.RangeTombstone.End)
	case KindEndOfPartition:
		return "EndOfPartition"
	default:
		return "Unknown"
	}
}

func cellsEqual(a, b []Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Timestamp != b[i].Timestamp ||
			!bytes.Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

func tombstoneOptEqual(a, b mo.Option[Tombstone]) bool {
	if a.IsPresent() != b.IsPresent() {
		return false
	}
	if a.IsAbsent() {
		return true
	}
	return a.MustGet().Equal(b.MustGet())
}
