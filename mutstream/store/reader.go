package store

import (
	"context"

	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/segment"
	"github.com/mutstream/mutstream-go/mutstream"
)

// segmentNested adapts a streaming segment decoder to the nested reader
// contract, so Flatten can produce the flat sequence one partition at a
// time without materializing the whole segment.
type segmentNested struct {
	schema *schema.Schema
	dec    *segment.Decoder
}

func (n *segmentNested) Schema() *schema.Schema {
	return n.schema
}

func (n *segmentNested) NextPartition(ctx context.Context) (mo.Option[mutstream.PartitionFragments], error) {
	if err := ctx.Err(); err != nil {
		return mo.None[mutstream.PartitionFragments](), err
	}
	opt, err := n.dec.NextPartition()
	if err != nil {
		return mo.None[mutstream.PartitionFragments](), err
	}
	p, ok := opt.Get()
	if !ok {
		return mo.None[mutstream.PartitionFragments](), nil
	}
	return mo.Some(p.Stream(n.schema)), nil
}
