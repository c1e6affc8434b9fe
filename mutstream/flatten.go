package mutstream

import (
	"context"

	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
)

// NestedReader is the nested per-partition representation of the same data a
// FragmentReader produces flat: partitions in ascending ring order, each one
// a lazy sub-sequence of its body fragments.
type NestedReader interface {
	Schema() *schema.Schema

	// NextPartition returns the next partition's sub-sequence, or None at
	// end of stream. Advancing abandons the previous sub-sequence.
	NextPartition(ctx context.Context) (mo.Option[PartitionFragments], error)
}

// PartitionFragments is one partition's lazy body sub-sequence. Next yields
// only body fragments (static row, clustering rows, range tombstones); the
// partition key and tombstone ride on the sub-sequence itself.
type PartitionFragments interface {
	Key() []byte
	Tombstone() mo.Option[types.Tombstone]
	Next(ctx context.Context) (mo.Option[types.Fragment], error)
}

// Flatten converts a nested reader into a flat one: for each partition it
// emits PartitionStart, the body sub-sequence in order, then EndOfPartition.
// It streams, holding no more than the current partition's sub-sequence, and
// verifies the ordering and structural invariants of the upstream data;
// violations fail the pull with a corruption error.
//
// The returned reader is not in forwarding mode: the nested contract offers
// no repositioning, and honoring FastForward would require buffering whole
// partitions.
func Flatten(nested NestedReader) FragmentReader {
	return &flattenReader{nested: nested}
}

type flattenReader struct {
	nested NestedReader
	cur    PartitionFragments

	lastPartitionKey  []byte
	lastClusteringKey []byte
	lastWasRow        bool
	sawBody           bool
	done              bool
}

func (r *flattenReader) Schema() *schema.Schema {
	return r.nested.Schema()
}

func (r *flattenReader) FastForward(ClusteringRange) error {
	return ErrNotForwarding
}

func (r *flattenReader) Next(ctx context.Context) (mo.Option[types.Fragment], error) {
	if r.done {
		return mo.None[types.Fragment](), nil
	}

	if r.cur == nil {
		opt, err := r.nested.NextPartition(ctx)
		if err != nil {
			return r.fail(err)
		}
		p, ok := opt.Get()
		if !ok {
			r.done = true
			return mo.None[types.Fragment](), nil
		}
		s := r.nested.Schema()
		if r.lastPartitionKey != nil && s.ComparePartitionKeys(p.Key(), r.lastPartitionKey) <= 0 {
			return r.fail(types.Corruptf(types.KindOutOfOrderPartition,
				"partition key %q does not sort above %q", p.Key(), r.lastPartitionKey))
		}
		r.lastPartitionKey = p.Key()
		r.lastClusteringKey = nil
		r.lastWasRow = false
		r.sawBody = false
		r.cur = p
		return mo.Some(types.NewPartitionStart(p.Key(), p.Tombstone())), nil
	}

	opt, err := r.cur.Next(ctx)
	if err != nil {
		return r.fail(err)
	}
	f, ok := opt.Get()
	if !ok {
		r.cur = nil
		return mo.Some(types.NewEndOfPartition()), nil
	}
	if err := r.validateBody(f); err != nil {
		return r.fail(err)
	}
	return mo.Some(f), nil
}

// validateBody enforces the per-partition structure: at most one static row,
// positioned first, then clustering data in strictly increasing order. A
// range tombstone may share its start position with a row, but sorts before
// it.
func (r *flattenReader) validateBody(f types.Fragment) error {
	if !f.IsBody() {
		return types.Corruptf(types.KindDuplicatePartitionStart,
			"nested sub-sequence produced %s", f.Kind)
	}
	if f.IsStaticRow() {
		if r.sawBody {
			return types.Corruptf(types.KindMisplacedStaticRow,
				"static row after other body fragments")
		}
		r.sawBody = true
		return nil
	}

	s := r.nested.Schema()
	key := f.ClusteringKey().MustGet()
	if r.lastClusteringKey != nil {
		c := s.CompareClusteringKeys(key, r.lastClusteringKey)
		// A position tie is legal only behind a range tombstone, which
		// sorts before anything else at its start bound.
		if c < 0 || (c == 0 && r.lastWasRow) {
			return types.Corruptf(types.KindOutOfOrderClustering,
				"clustering position %q does not advance past %q", key, r.lastClusteringKey)
		}
	}
	r.lastClusteringKey = key
	r.lastWasRow = f.IsClusteringRow()
	r.sawBody = true
	return nil
}

func (r *flattenReader) fail(err error) (mo.Option[types.Fragment], error) {
	r.done = true
	return mo.None[types.Fragment](), err
}
