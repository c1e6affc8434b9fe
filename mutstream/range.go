package mutstream

import (
	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/schema"
)

// ClusteringRange bounds body fragment production within one partition.
// Start is inclusive, End is exclusive; an absent bound is unbounded.
type ClusteringRange struct {
	Start mo.Option[[]byte]
	End   mo.Option[[]byte]
}

// FullRange covers every clustering position.
func FullRange() ClusteringRange {
	return ClusteringRange{}
}

func NewRange(start, end []byte) ClusteringRange {
	return ClusteringRange{Start: mo.Some(start), End: mo.Some(end)}
}

func RangeFrom(start []byte) ClusteringRange {
	return ClusteringRange{Start: mo.Some(start)}
}

func RangeTo(end []byte) ClusteringRange {
	return ClusteringRange{End: mo.Some(end)}
}

func (r ClusteringRange) IsFull() bool {
	return r.Start.IsAbsent() && r.End.IsAbsent()
}

// Contains reports whether the clustering key falls within the range.
func (r ClusteringRange) Contains(s *schema.Schema, key []byte) bool {
	if start, ok := r.Start.Get(); ok && s.CompareClusteringKeys(key, start) < 0 {
		return false
	}
	if end, ok := r.End.Get(); ok && s.CompareClusteringKeys(key, end) >= 0 {
		return false
	}
	return true
}

// Overlaps reports whether the clustering range [start, end) intersects
// this range. Used to decide whether a range tombstone is produced; bounds
// are not clipped, trimming belongs to the caller.
func (r ClusteringRange) Overlaps(s *schema.Schema, start, end []byte) bool {
	if rs, ok := r.Start.Get(); ok && s.CompareClusteringKeys(end, rs) <= 0 {
		return false
	}
	if re, ok := r.End.Get(); ok && s.CompareClusteringKeys(start, re) >= 0 {
		return false
	}
	return true
}
