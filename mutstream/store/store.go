// Package store persists segments of ordered partitions in an object store
// bucket and opens FragmentReaders over them. It is the storage-side proof
// of the producer contract: bucket failures surface as storage errors,
// damaged segments as corruption, and wrong schemas as schema mismatches.
package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path"

	"github.com/kapetan-io/tackle/set"
	"github.com/maypok86/otter"
	"github.com/oklog/ulid/v2"
	"github.com/thanos-io/objstore"

	"github.com/mutstream/mutstream-go/internal/compress"
	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/segment"
	"github.com/mutstream/mutstream-go/internal/types"
	"github.com/mutstream/mutstream-go/mutstream"
)

type Config struct {
	// Bucket holds the segment objects. Required.
	Bucket objstore.Bucket

	// RootPath prefixes every segment object. Defaults to "segments".
	RootPath string

	// Codec compresses segment payloads. Defaults to CodecNone.
	Codec compress.Codec

	// CacheEntries bounds the raw segment byte cache. Defaults to 1000.
	CacheEntries int

	Log *slog.Logger
}

// SegmentStore writes and opens segments. Raw segment bytes are cached so
// repeated opens of a hot segment skip the bucket.
type SegmentStore struct {
	conf  Config
	cache otter.Cache[string, []byte]
}

func NewSegmentStore(conf Config) (*SegmentStore, error) {
	set.Default(&conf.RootPath, "segments")
	set.Default(&conf.CacheEntries, 1000)
	set.Default(&conf.Log, slog.Default())
	if conf.Bucket == nil {
		return nil, errors.New("Config.Bucket is required")
	}

	cache, err := otter.MustBuilder[string, []byte](conf.CacheEntries).Build()
	if err != nil {
		return nil, err
	}
	return &SegmentStore{conf: conf, cache: cache}, nil
}

// WriteSegment encodes the partitions, which must be in ascending partition
// key order, and uploads them as a new segment. Upload failures are wrapped
// as storage errors and not retried; retry policy belongs to the caller.
func (s *SegmentStore) WriteSegment(
	ctx context.Context,
	sch *schema.Schema,
	partitions []*mutstream.Partition,
) (ulid.ULID, error) {
	id := ulid.Make()
	data, err := segment.Encode(sch, partitions, s.conf.Codec)
	if err != nil {
		return ulid.ULID{}, err
	}

	segmentPath := s.segmentPath(id)
	if err := s.conf.Bucket.Upload(ctx, segmentPath, bytes.NewReader(data)); err != nil {
		return ulid.ULID{}, &types.StorageError{Path: segmentPath, Err: err}
	}
	s.cache.Set(segmentPath, data)

	s.conf.Log.Info("segment written", "path", segmentPath,
		"partitions", len(partitions), "bytes", len(data))
	return id, nil
}

// OpenReader opens a FragmentReader over the segment's partitions. The
// segment must have been written under sch. Non-forwarding readers decode
// partitions lazily as the stream is pulled; forwarding readers materialize
// the segment so FastForward can reposition.
func (s *SegmentStore) OpenReader(
	ctx context.Context,
	sch *schema.Schema,
	id ulid.ULID,
	fwd mutstream.Forwarding,
) (mutstream.FragmentReader, error) {
	dec, err := s.openDecoder(ctx, sch, id)
	if err != nil {
		return nil, err
	}

	if fwd == mutstream.ForwardingEnabled {
		partitions, err := drainDecoder(dec)
		if err != nil {
			return nil, err
		}
		return mutstream.FromPartitions(sch, partitions, fwd), nil
	}
	return mutstream.Flatten(&segmentNested{schema: sch, dec: dec}), nil
}

// ReadPartitions materializes every partition in the segment.
func (s *SegmentStore) ReadPartitions(
	ctx context.Context,
	sch *schema.Schema,
	id ulid.ULID,
) ([]*mutstream.Partition, error) {
	dec, err := s.openDecoder(ctx, sch, id)
	if err != nil {
		return nil, err
	}
	return drainDecoder(dec)
}

func (s *SegmentStore) openDecoder(ctx context.Context, sch *schema.Schema, id ulid.ULID) (*segment.Decoder, error) {
	data, err := s.readSegment(ctx, s.segmentPath(id))
	if err != nil {
		return nil, err
	}
	dec, err := segment.NewDecoder(data)
	if err != nil {
		return nil, err
	}
	if dec.SchemaID() != sch.ID {
		return nil, &types.SchemaMismatchError{Want: sch.ID, Got: dec.SchemaID()}
	}
	return dec, nil
}

func (s *SegmentStore) readSegment(ctx context.Context, segmentPath string) ([]byte, error) {
	if data, ok := s.cache.Get(segmentPath); ok {
		s.conf.Log.Debug("segment cache hit", "path", segmentPath)
		return data, nil
	}

	rc, err := s.conf.Bucket.Get(ctx, segmentPath)
	if err != nil {
		return nil, &types.StorageError{Path: segmentPath, Err: err}
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &types.StorageError{Path: segmentPath, Err: err}
	}
	s.cache.Set(segmentPath, data)
	return data, nil
}

func (s *SegmentStore) segmentPath(id ulid.ULID) string {
	return path.Join(s.conf.RootPath, id.String()+".seg")
}

func drainDecoder(dec *segment.Decoder) ([]*mutstream.Partition, error) {
	var partitions []*mutstream.Partition
	for {
		opt, err := dec.NextPartition()
		if err != nil {
			return nil, err
		}
		p, ok := opt.Get()
		if !ok {
			return partitions, nil
		}
		partitions = append(partitions, p)
	}
}
