package mutstream_test

import (
	"context"
	"time"

	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
	"github.com/mutstream/mutstream-go/mutstream"
)

func testSchema() *schema.Schema {
	return schema.New("test")
}

func cell(name, value string, ts int64) types.Cell {
	return types.Cell{Name: name, Value: []byte(value), Timestamp: ts}
}

func tomb(ts int64) types.Tombstone {
	return types.Tombstone{Timestamp: ts, DeletedAt: time.Unix(ts, 0).UTC()}
}

func marker(ts int64) types.RowMarker {
	return types.RowMarker{Timestamp: ts}
}

// twoPartitions is the A < B fixture used by the conversion and consume
// tests: A has a static row, two clustering rows and a range tombstone,
// B is covered by a partition tombstone and has two clustering rows.
func twoPartitions() []*mutstream.Partition {
	return []*mutstream.Partition{
		mutstream.NewPartition([]byte("aaaa")).
			SetStaticRow(cell("meta", "static-a", 1)).
			AddRow([]byte("ck1"), marker(2), cell("v", "a1", 2)).
			AddRow([]byte("ck3"), marker(3), cell("v", "a3", 3)).
			AddRangeTombstone([]byte("ck4"), []byte("ck9"), tomb(4)),
		mutstream.NewPartition([]byte("bbbb")).
			SetTombstone(tomb(5)).
			AddRow([]byte("ck1"), marker(6), cell("v", "b1", 6)).
			AddRow([]byte("ck2"), marker(7), cell("v", "b2", 7)),
	}
}

// sliceReader is a hand-rolled FragmentReader over a fixed fragment list,
// used to feed the adapters malformed sequences a well-behaved producer
// would never emit.
type sliceReader struct {
	schema    *schema.Schema
	fragments []types.Fragment
	index     int
}

func (r *sliceReader) Schema() *schema.Schema {
	return r.schema
}

func (r *sliceReader) Next(context.Context) (mo.Option[types.Fragment], error) {
	if r.index >= len(r.fragments) {
		return mo.None[types.Fragment](), nil
	}
	f := r.fragments[r.index]
	r.index++
	return mo.Some(f), nil
}

func (r *sliceReader) FastForward(mutstream.ClusteringRange) error {
	return mutstream.ErrNotForwarding
}
