package mutstream

import (
	"context"

	"github.com/gammazero/deque"
	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
)

// FromPartitions builds a FragmentReader over fully materialized partitions,
// fragmenting each one deterministically in canonical order. Partitions must
// be given in ascending, unique partition key order; a violation surfaces as
// a corruption error on the offending pull. This is the ground-truth reader
// the conversion and consume tests are written against.
func FromPartitions(s *schema.Schema, partitions []*Partition, fwd Forwarding) FragmentReader {
	return &partitionsReader{
		schema:     s,
		partitions: partitions,
		forwarding: bool(fwd),
		window:     FullRange(),
		pending:    deque.New[types.Fragment](),
	}
}

type partitionsReader struct {
	schema     *schema.Schema
	partitions []*Partition
	pending    *deque.Deque[types.Fragment]
	index      int
	lastKey    []byte
	window     ClusteringRange
	forwarding bool
	open       bool
	done       bool
}

func (r *partitionsReader) Schema() *schema.Schema {
	return r.schema
}

func (r *partitionsReader) Next(ctx context.Context) (mo.Option[types.Fragment], error) {
	if err := ctx.Err(); err != nil {
		return mo.None[types.Fragment](), err
	}
	if r.done {
		return mo.None[types.Fragment](), nil
	}

	if !r.open {
		if r.index >= len(r.partitions) {
			r.done = true
			return mo.None[types.Fragment](), nil
		}
		p := r.partitions[r.index]
		if r.lastKey != nil && r.schema.ComparePartitionKeys(p.Key(), r.lastKey) <= 0 {
			r.done = true
			return mo.None[types.Fragment](), types.Corruptf(types.KindOutOfOrderPartition,
				"partition key %q does not sort above %q", p.Key(), r.lastKey)
		}
		r.lastKey = p.Key()
		r.open = true
		r.window = FullRange()
		r.loadPending(p)
		return mo.Some(types.NewPartitionStart(p.Key(), p.Tombstone())), nil
	}

	if r.pending.Len() > 0 {
		return mo.Some(r.pending.PopFront()), nil
	}
	r.open = false
	r.index++
	return mo.Some(types.NewEndOfPartition()), nil
}

func (r *partitionsReader) FastForward(rg ClusteringRange) error {
	if !r.forwarding {
		return ErrNotForwarding
	}
	if !r.open {
		return ErrInvalidFastForward
	}
	r.window = rg

	// The static row is positioned before any clustering data; if it has
	// not been produced yet it survives the repositioning.
	staticPending := r.pending.Len() > 0 && r.pending.Front().IsStaticRow()
	var static types.Fragment
	if staticPending {
		static = r.pending.Front()
	}

	r.pending.Clear()
	if staticPending {
		r.pending.PushBack(static)
	}
	for _, f := range r.partitions[r.index].clusteredFragments(r.schema, rg) {
		r.pending.PushBack(f)
	}
	return nil
}

func (r *partitionsReader) loadPending(p *Partition) {
	r.pending.Clear()
	if static, ok := p.StaticRow().Get(); ok {
		r.pending.PushBack(types.Fragment{Kind: types.KindStaticRow, StaticRow: &static})
	}
	for _, f := range p.clusteredFragments(r.schema, r.window) {
		r.pending.PushBack(f)
	}
}
