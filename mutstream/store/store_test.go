package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/oklog/ulid/v2"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	assert2 "github.com/mutstream/mutstream-go/internal/assert"
	"github.com/mutstream/mutstream-go/internal/compress"
	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
	"github.com/mutstream/mutstream-go/mutstream"
	"github.com/mutstream/mutstream-go/mutstream/store"
)

func tomb(ts int64) types.Tombstone {
	return types.Tombstone{Timestamp: ts, DeletedAt: time.Unix(ts, 0).UTC()}
}

func storePartitions() []*mutstream.Partition {
	return []*mutstream.Partition{
		mutstream.NewPartition([]byte("aaaa")).
			SetStaticRow(types.Cell{Name: "meta", Value: []byte("s"), Timestamp: 1}).
			AddRow([]byte("ck1"), types.RowMarker{Timestamp: 2},
				types.Cell{Name: "v", Value: []byte("a1"), Timestamp: 2}).
			AddRangeTombstone([]byte("ck4"), []byte("ck9"), tomb(3)),
		mutstream.NewPartition([]byte("bbbb")).
			SetTombstone(tomb(4)).
			AddRow([]byte("ck1"), types.RowMarker{Timestamp: 5},
				types.Cell{Name: "v", Value: []byte("b1"), Timestamp: 5}),
	}
}

func newTestStore(t *testing.T, bucket objstore.Bucket) *store.SegmentStore {
	t.Helper()
	s, err := store.NewSegmentStore(store.Config{
		Bucket: bucket,
		Codec:  compress.CodecSnappy,
	})
	require.NoError(t, err)
	return s
}

func TestStoreRequiresBucket(t *testing.T) {
	_, err := store.NewSegmentStore(store.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bucket is required")
}

func TestWriteOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	sch := schema.New("store")
	s := newTestStore(t, objstore.NewInMemBucket())

	id, err := s.WriteSegment(ctx, sch, storePartitions())
	require.NoError(t, err)

	want := assert2.Drain(t, mutstream.FromPartitions(sch, storePartitions(), mutstream.ForwardingDisabled))

	for _, fwd := range []mutstream.Forwarding{mutstream.ForwardingDisabled, mutstream.ForwardingEnabled} {
		r, err := s.OpenReader(ctx, sch, id, fwd)
		require.NoError(t, err)
		assert.Equal(t, sch, r.Schema())

		got := assert2.Drain(t, r)
		require.Equal(t, len(want), len(got))
		for i := range want {
			assert.True(t, want[i].Equal(got[i]),
				"fragment %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestOpenReaderForwardingModes(t *testing.T) {
	ctx := context.Background()
	sch := schema.New("store")
	s := newTestStore(t, objstore.NewInMemBucket())

	id, err := s.WriteSegment(ctx, sch, storePartitions())
	require.NoError(t, err)

	flat, err := s.OpenReader(ctx, sch, id, mutstream.ForwardingDisabled)
	require.NoError(t, err)
	assert.ErrorIs(t, flat.FastForward(mutstream.FullRange()), mutstream.ErrNotForwarding)

	fwd, err := s.OpenReader(ctx, sch, id, mutstream.ForwardingEnabled)
	require.NoError(t, err)
	assert2.NextFragment(t, fwd, types.NewPartitionStart([]byte("aaaa"), mo.None[types.Tombstone]()))
	require.NoError(t, fwd.FastForward(mutstream.RangeFrom([]byte("ck1"))))
}

func TestReadPartitions(t *testing.T) {
	ctx := context.Background()
	sch := schema.New("store")
	s := newTestStore(t, objstore.NewInMemBucket())

	id, err := s.WriteSegment(ctx, sch, storePartitions())
	require.NoError(t, err)

	partitions, err := s.ReadPartitions(ctx, sch, id)
	require.NoError(t, err)
	require.Len(t, partitions, 2)
	assert.Equal(t, []byte("aaaa"), partitions[0].Key())
	assert.Equal(t, []byte("bbbb"), partitions[1].Key())
}

func TestOpenReaderSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, objstore.NewInMemBucket())

	written := schema.New("store")
	id, err := s.WriteSegment(ctx, written, storePartitions())
	require.NoError(t, err)

	other := schema.New("other")
	_, err = s.OpenReader(ctx, other, id, mutstream.ForwardingDisabled)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mutstream.ErrSchemaMismatch))

	var details *mutstream.SchemaMismatchError
	require.True(t, errors.As(err, &details))
	assert.Equal(t, other.ID, details.Want)
	assert.Equal(t, written.ID, details.Got)
}

func TestOpenReaderMissingSegment(t *testing.T) {
	ctx := context.Background()
	sch := schema.New("store")
	s := newTestStore(t, objstore.NewInMemBucket())

	_, err := s.OpenReader(ctx, sch, ulid.Make(), mutstream.ForwardingDisabled)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mutstream.ErrStorage))

	var details *mutstream.StorageError
	require.True(t, errors.As(err, &details))
	assert.Contains(t, details.Path, ".seg")
}

func TestOpenReaderServedFromCache(t *testing.T) {
	ctx := context.Background()
	sch := schema.New("store")
	bucket := objstore.NewInMemBucket()
	s := newTestStore(t, bucket)

	id, err := s.WriteSegment(ctx, sch, storePartitions())
	require.NoError(t, err)

	// remove the object; the write populated the cache so the open
	// never touches the bucket
	require.NoError(t, bucket.Delete(ctx, "segments/"+id.String()+".seg"))

	r, err := s.OpenReader(ctx, sch, id, mutstream.ForwardingDisabled)
	require.NoError(t, err)
	fragments := assert2.Drain(t, r)
	assert.NotEmpty(t, fragments)
}

func TestWriteSegmentDeterministicID(t *testing.T) {
	fixed := ulid.MustParse("01HQXW2P9V1B2C3D4E5F6G7H8J")
	patches := gomonkey.ApplyFunc(ulid.Make, func() ulid.ULID {
		return fixed
	})
	defer patches.Reset()

	ctx := context.Background()
	sch := schema.New("store")
	bucket := objstore.NewInMemBucket()
	s := newTestStore(t, bucket)

	id, err := s.WriteSegment(ctx, sch, storePartitions())
	require.NoError(t, err)
	assert.Equal(t, fixed, id)

	exists, err := bucket.Exists(ctx, "segments/"+fixed.String()+".seg")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWriteSegmentRejectsOutOfOrderInput(t *testing.T) {
	ctx := context.Background()
	sch := schema.New("store")
	s := newTestStore(t, objstore.NewInMemBucket())

	partitions := []*mutstream.Partition{
		mutstream.NewPartition([]byte("bbbb")),
		mutstream.NewPartition([]byte("aaaa")),
	}
	_, err := s.WriteSegment(ctx, sch, partitions)
	assert.True(t, errors.Is(err, mutstream.ErrCorruption))
}
