package mutstream

import (
	"bytes"
	"context"
	"sort"

	"github.com/huandu/skiplist"
	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
)

// ------------------------------------------------
// Partition
// ------------------------------------------------

// Partition is a fully materialized partition: a key, an optional
// partition-level tombstone, an optional static row, clustering rows kept
// sorted in a skip list, and range tombstones. Build one with the chainable
// setters, then fragment it through FromPartitions or Stream.
type Partition struct {
	key       []byte
	tombstone mo.Option[types.Tombstone]
	static    mo.Option[types.StaticRow]

	// rows maps clustering key ([]byte) to types.ClusteringRow
	rows   *skiplist.SkipList
	ranges []types.RangeTombstone
}

func NewPartition(key []byte) *Partition {
	return &Partition{
		key:  key,
		rows: skiplist.New(skiplist.Bytes),
	}
}

func (p *Partition) SetTombstone(t types.Tombstone) *Partition {
	p.tombstone = mo.Some(t)
	return p
}

func (p *Partition) SetStaticRow(cells ...types.Cell) *Partition {
	p.static = mo.Some(types.StaticRow{Cells: cells})
	return p
}

// AddRow adds a clustering row. Adding the same clustering key twice
// replaces the earlier row.
func (p *Partition) AddRow(key []byte, marker types.RowMarker, cells ...types.Cell) *Partition {
	p.rows.Set(key, types.ClusteringRow{Key: key, Marker: marker, Cells: cells})
	return p
}

// AddRangeTombstone deletes the clustering range [start, end).
func (p *Partition) AddRangeTombstone(start, end []byte, t types.Tombstone) *Partition {
	p.ranges = append(p.ranges, types.RangeTombstone{Start: start, End: end, Tombstone: t})
	return p
}

func (p *Partition) Key() []byte {
	return p.key
}

func (p *Partition) Tombstone() mo.Option[types.Tombstone] {
	return p.tombstone
}

func (p *Partition) StaticRow() mo.Option[types.StaticRow] {
	return p.static
}

// Rows returns the clustering rows in clustering order.
func (p *Partition) Rows() []types.ClusteringRow {
	rows := make([]types.ClusteringRow, 0, p.rows.Len())
	for elem := p.rows.Front(); elem != nil; elem = elem.Next() {
		rows = append(rows, elem.Value.(types.ClusteringRow))
	}
	return rows
}

// RangeTombstones returns the range tombstones sorted by start bound.
func (p *Partition) RangeTombstones() []types.RangeTombstone {
	ranges := make([]types.RangeTombstone, len(p.ranges))
	copy(ranges, p.ranges)
	sort.SliceStable(ranges, func(i, j int) bool {
		return bytes.Compare(ranges[i].Start, ranges[j].Start) < 0
	})
	return ranges
}

// BodyFragments returns the partition's body in canonical order: the static
// row first if present, then rows and range tombstones merged by clustering
// position, a range tombstone sorting before a row at the same position.
func (p *Partition) BodyFragments(s *schema.Schema) []types.Fragment {
	out := make([]types.Fragment, 0, p.rows.Len()+len(p.ranges)+1)
	if static, ok := p.static.Get(); ok {
		out = append(out, types.Fragment{Kind: types.KindStaticRow, StaticRow: &static})
	}
	return append(out, p.clusteredFragments(s, FullRange())...)
}

// clusteredFragments merges rows and range tombstones within the window.
// The static row is positionally before any clustering data and is handled
// by the caller.
func (p *Partition) clusteredFragments(s *schema.Schema, window ClusteringRange) []types.Fragment {
	rows := p.Rows()
	ranges := p.RangeTombstones()

	out := make([]types.Fragment, 0, len(rows)+len(ranges))
	i, j := 0, 0
	for i < len(rows) || j < len(ranges) {
		takeRange := j < len(ranges)
		if i < len(rows) && j < len(ranges) {
			// Range tombstone first on a position tie.
			takeRange = s.CompareClusteringKeys(ranges[j].Start, rows[i].Key) <= 0
		}
		if takeRange {
			rt := ranges[j]
			j++
			if window.Overlaps(s, rt.Start, rt.End) {
				out = append(out, types.NewRangeTombstone(rt.Start, rt.End, rt.Tombstone))
			}
			continue
		}
		row := rows[i]
		i++
		if window.Contains(s, row.Key) {
			out = append(out, types.NewClusteringRow(row.Key, row.Marker, row.Cells...))
		}
	}
	return out
}

// ------------------------------------------------
// partitionStream
// ------------------------------------------------

// Stream returns the partition's body as a lazy per-partition sub-sequence,
// suitable for feeding Flatten.
func (p *Partition) Stream(s *schema.Schema) PartitionFragments {
	return &partitionStream{partition: p, schema: s}
}

type partitionStream struct {
	partition *Partition
	schema    *schema.Schema
	body      []types.Fragment
	loaded    bool
	index     int
}

func (ps *partitionStream) Key() []byte {
	return ps.partition.key
}

func (ps *partitionStream) Tombstone() mo.Option[types.Tombstone] {
	return ps.partition.tombstone
}

func (ps *partitionStream) Next(ctx context.Context) (mo.Option[types.Fragment], error) {
	if err := ctx.Err(); err != nil {
		return mo.None[types.Fragment](), err
	}
	if !ps.loaded {
		ps.body = ps.partition.BodyFragments(ps.schema)
		ps.loaded = true
	}
	if ps.index >= len(ps.body) {
		return mo.None[types.Fragment](), nil
	}
	f := ps.body[ps.index]
	ps.index++
	return mo.Some(f), nil
}
