package mutstream

import (
	"context"

	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
)

// Unflatten converts a flat reader into the nested representation: fragments
// between a PartitionStart and its matching EndOfPartition become one lazy
// sub-sequence, with the partition tombstone carried on it. Requesting the
// next partition before the current sub-sequence is exhausted drains the
// remainder through the real EndOfPartition first.
func Unflatten(flat FragmentReader) NestedReader {
	return &unflattenReader{flat: flat}
}

type unflattenReader struct {
	flat FragmentReader
	cur  *flatPartition
	done bool
}

func (r *unflattenReader) Schema() *schema.Schema {
	return r.flat.Schema()
}

func (r *unflattenReader) NextPartition(ctx context.Context) (mo.Option[PartitionFragments], error) {
	if r.done {
		return mo.None[PartitionFragments](), nil
	}

	// Skip whatever is left of the current partition; the flat reader's
	// position is authoritative.
	if r.cur != nil {
		for !r.cur.exhausted {
			if _, err := r.cur.Next(ctx); err != nil {
				r.done = true
				return mo.None[PartitionFragments](), err
			}
		}
		r.cur = nil
	}

	opt, err := r.flat.Next(ctx)
	if err != nil {
		r.done = true
		return mo.None[PartitionFragments](), err
	}
	f, ok := opt.Get()
	if !ok {
		r.done = true
		return mo.None[PartitionFragments](), nil
	}
	if !f.IsPartitionStart() {
		r.done = true
		return mo.None[PartitionFragments](), types.Corruptf(types.KindMissingPartitionStart,
			"expected PartitionStart, got %s", f.Kind)
	}

	r.cur = &flatPartition{
		flat:      r.flat,
		key:       f.PartitionStart.Key,
		tombstone: f.PartitionStart.Tombstone,
	}
	return mo.Some[PartitionFragments](r.cur), nil
}

// flatPartition is one partition's body lifted out of the flat sequence.
type flatPartition struct {
	flat      FragmentReader
	key       []byte
	tombstone mo.Option[types.Tombstone]
	exhausted bool
}

func (p *flatPartition) Key() []byte {
	return p.key
}

func (p *flatPartition) Tombstone() mo.Option[types.Tombstone] {
	return p.tombstone
}

func (p *flatPartition) Next(ctx context.Context) (mo.Option[types.Fragment], error) {
	if p.exhausted {
		return mo.None[types.Fragment](), nil
	}
	opt, err := p.flat.Next(ctx)
	if err != nil {
		p.exhausted = true
		return mo.None[types.Fragment](), err
	}
	f, ok := opt.Get()
	if !ok {
		p.exhausted = true
		return mo.None[types.Fragment](), types.Corruptf(types.KindTruncatedPartition,
			"stream ended inside partition %q", p.key)
	}
	switch f.Kind {
	case types.KindEndOfPartition:
		p.exhausted = true
		return mo.None[types.Fragment](), nil
	case types.KindPartitionStart:
		p.exhausted = true
		return mo.None[types.Fragment](), types.Corruptf(types.KindDuplicatePartitionStart,
			"PartitionStart inside partition %q", p.key)
	default:
		return mo.Some(f), nil
	}
}
