package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/thanos-io/objstore"

	"github.com/mutstream/mutstream-go/internal/compress"
	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
	"github.com/mutstream/mutstream-go/mutstream"
	"github.com/mutstream/mutstream-go/mutstream/store"
)

// rowCounter folds a fragment stream into per-partition row counts.
type rowCounter struct {
	counts map[string]int
	cur    string
}

func (c *rowCounter) ConsumeNewPartition(key []byte) {
	c.cur = string(key)
}

func (c *rowCounter) ConsumePartitionTombstone(types.Tombstone) {}

func (c *rowCounter) ConsumeStaticRow(types.StaticRow) mutstream.Signal {
	return mutstream.SignalContinue
}

func (c *rowCounter) ConsumeClusteringRow(types.ClusteringRow) mutstream.Signal {
	c.counts[c.cur]++
	return mutstream.SignalContinue
}

func (c *rowCounter) ConsumeRangeTombstone(types.RangeTombstone) mutstream.Signal {
	return mutstream.SignalContinue
}

func (c *rowCounter) ConsumeEndOfPartition() mutstream.Signal {
	return mutstream.SignalContinue
}

func (c *rowCounter) ConsumeEndOfStream() map[string]int {
	return c.counts
}

func main() {
	ctx := context.Background()
	sch := schema.New("demo")

	now := time.Now().UnixMicro()
	partitions := []*mutstream.Partition{
		mutstream.NewPartition([]byte("alpha")).
			SetStaticRow(types.Cell{Name: "owner", Value: []byte("ops"), Timestamp: now}).
			AddRow([]byte("a1"), types.RowMarker{Timestamp: now},
				types.Cell{Name: "v", Value: []byte("1"), Timestamp: now}).
			AddRow([]byte("a2"), types.RowMarker{Timestamp: now},
				types.Cell{Name: "v", Value: []byte("2"), Timestamp: now}),
		mutstream.NewPartition([]byte("beta")).
			AddRow([]byte("b1"), types.RowMarker{Timestamp: now},
				types.Cell{Name: "v", Value: []byte("3"), Timestamp: now}),
	}

	segments, err := store.NewSegmentStore(store.Config{
		Bucket: objstore.NewInMemBucket(),
		Codec:  compress.CodecSnappy,
	})
	if err != nil {
		slog.Error("unable to create segment store", "error", err)
		os.Exit(1)
	}

	id, err := segments.WriteSegment(ctx, sch, partitions)
	if err != nil {
		slog.Error("unable to write segment", "error", err)
		os.Exit(1)
	}

	reader, err := segments.OpenReader(ctx, sch, id, mutstream.ForwardingDisabled)
	if err != nil {
		slog.Error("unable to open segment", "error", err)
		os.Exit(1)
	}

	counts, err := mutstream.Consume[map[string]int](ctx, reader, &rowCounter{counts: map[string]int{}})
	if err != nil {
		slog.Error("fold failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("Segment:", id)
	for key, count := range counts {
		fmt.Printf("Partition %s: %d rows\n", key, count)
	}
}
