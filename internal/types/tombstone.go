package types

import "time"

// Tombstone is a deletion marker. Timestamp orders it against writes;
// DeletedAt is the wall-clock time the deletion was issued.
type Tombstone struct {
	Timestamp int64
	DeletedAt time.Time
}

// Supersedes reports whether this tombstone shadows a write at the
// given timestamp.
func (t Tombstone) Supersedes(writeTimestamp int64) bool {
	return t.Timestamp >= writeTimestamp
}

// Equal compares by timestamp and deletion instant, so a tombstone read
// back from storage equals the one written.
func (t Tombstone) Equal(other Tombstone) bool {
	return t.Timestamp == other.Timestamp && t.DeletedAt.Equal(other.DeletedAt)
}
