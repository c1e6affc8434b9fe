// Package segment implements the stored form of an ordered run of
// partitions: a small header, a compressed payload of partition records and
// a checksum. It is the minimal persistence layer the storage-backed
// fragment readers sit on.
package segment

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/mo"

	"github.com/mutstream/mutstream-go/internal/compress"
	"github.com/mutstream/mutstream-go/internal/schema"
	"github.com/mutstream/mutstream-go/internal/types"
	"github.com/mutstream/mutstream-go/mutstream"
)

// Encode encodes partitions into a segment using the following format
//
// +--------------------------------------------------+
// |               Segment                            |
// +--------------------------------------------------+
// |  Magic (4 bytes)                                 |
// |  Version (1 byte)                                |
// |  Codec (1 byte)                                  |
// |  Schema ID (16 bytes)                            |
// |  Checksum of compressed payload (4 bytes)        |
// |  +--------------------------------------------+  |
// |  |  Compressed payload                        |  |
// |  |  +--------------------------------------+  |  |
// |  |  | Partition count (4 bytes)            |  |  |
// |  |  | Partition records (see partition.go) |  |  |
// |  |  +--------------------------------------+  |  |
// |  +--------------------------------------------+  |
// +--------------------------------------------------+
const (
	magic   uint32 = 0x4652_4753 // "FRGS"
	version byte   = 1

	headerSize = 4 + 1 + 1 + 16 + 4
)

// Encode serializes the partitions, which must already be in ascending
// partition key order, into a segment carrying the schema identity.
func Encode(s *schema.Schema, partitions []*mutstream.Partition, codec compress.Codec) ([]byte, error) {
	payload := binary.BigEndian.AppendUint32(nil, uint32(len(partitions)))
	var lastKey []byte
	for _, p := range partitions {
		if lastKey != nil && s.ComparePartitionKeys(p.Key(), lastKey) <= 0 {
			return nil, types.Corruptf(types.KindOutOfOrderPartition,
				"partition key %q does not sort above %q", p.Key(), lastKey)
		}
		lastKey = p.Key()
		payload = appendPartition(payload, p)
	}

	compressed, err := compress.Encode(payload, codec)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+len(compressed))
	out = binary.BigEndian.AppendUint32(out, magic)
	out = append(out, version, codec.ToByte())
	out = append(out, s.ID[:]...)
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(compressed))
	out = append(out, compressed...)
	return out, nil
}

// Decoder reads a segment's partitions one at a time, in stored order.
type Decoder struct {
	schemaID  ulid.ULID
	buf       []byte
	off       int
	remaining uint32
}

// NewDecoder validates the segment header and checksum and prepares a
// streaming decoder over its partitions.
func NewDecoder(data []byte) (*Decoder, error) {
	if len(data) < headerSize {
		return nil, types.Corruptf(types.KindBadMagic,
			"segment of %d bytes is shorter than the header", len(data))
	}
	if binary.BigEndian.Uint32(data) != magic {
		return nil, types.Corruptf(types.KindBadMagic,
			"bad segment magic %x", data[:4])
	}
	if data[4] != version {
		return nil, types.Corruptf(types.KindBadMagic,
			"unsupported segment version %d", data[4])
	}
	codec, err := compress.CodecFromByte(data[5])
	if err != nil {
		return nil, types.Corruptf(types.KindBadMagic,
			"unknown segment codec %d", data[5])
	}

	var schemaID ulid.ULID
	copy(schemaID[:], data[6:22])

	compressed := data[headerSize:]
	if binary.BigEndian.Uint32(data[22:]) != crc32.ChecksumIEEE(compressed) {
		return nil, types.Corruptf(types.KindBadChecksum,
			"segment checksum mismatch")
	}

	payload, err := compress.Decode(compressed, codec)
	if err != nil {
		return nil, types.Corruptf(types.KindBadChecksum,
			"segment payload does not decompress: %s", err)
	}
	if len(payload) < 4 {
		return nil, errTruncated()
	}

	return &Decoder{
		schemaID:  schemaID,
		buf:       payload,
		off:       4,
		remaining: binary.BigEndian.Uint32(payload),
	}, nil
}

// SchemaID returns the identity of the schema the segment was written under.
func (d *Decoder) SchemaID() ulid.ULID {
	return d.schemaID
}

// NextPartition decodes the next partition, or returns None once the
// segment is exhausted.
func (d *Decoder) NextPartition() (mo.Option[*mutstream.Partition], error) {
	if d.remaining == 0 {
		return mo.None[*mutstream.Partition](), nil
	}
	d.remaining--
	p, err := d.readPartition()
	if err != nil {
		d.remaining = 0
		return mo.None[*mutstream.Partition](), err
	}
	return mo.Some(p), nil
}

func errTruncated() error {
	return types.Corruptf(types.KindTruncatedPartition, "segment payload truncated")
}

// ------------------------------------------------
// Partition record encoding
// ------------------------------------------------

type partitionFlags uint8

const (
	flagHasTombstone partitionFlags = 1 << iota
	flagHasStatic
)

// A partition record is encoded as
//
//	| uint16 keyLen | key | uint8 flags |
//	| tombstone (16 bytes, when flagHasTombstone) |
//	| cells (when flagHasStatic) |
//	| uint32 rowCount | rows |
//	| uint32 rangeCount | range tombstones |
//
// rows are | uint16 keyLen | key | int64 markerTimestamp | cells |,
// range tombstones are | uint16 startLen | start | uint16 endLen | end |
// tombstone |, cells are | uint16 count | per cell: uint16 nameLen | name |
// uint32 valueLen | value | int64 timestamp |, and a tombstone is
// | int64 timestamp | int64 deletedAt unix nanoseconds |.
func appendPartition(buf []byte, p *mutstream.Partition) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Key())))
	buf = append(buf, p.Key()...)

	var flags partitionFlags
	if p.Tombstone().IsPresent() {
		flags |= flagHasTombstone
	}
	if p.StaticRow().IsPresent() {
		flags |= flagHasStatic
	}
	buf = append(buf, byte(flags))

	if t, ok := p.Tombstone().Get(); ok {
		buf = appendTombstone(buf, t)
	}
	if static, ok := p.StaticRow().Get(); ok {
		buf = appendCells(buf, static.Cells)
	}

	rows := p.Rows()
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(rows)))
	for _, row := range rows {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(row.Key)))
		buf = append(buf, row.Key...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(row.Marker.Timestamp))
		buf = appendCells(buf, row.Cells)
	}

	ranges := p.RangeTombstones()
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(ranges)))
	for _, rt := range ranges {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(rt.Start)))
		buf = append(buf, rt.Start...)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(rt.End)))
		buf = append(buf, rt.End...)
		buf = appendTombstone(buf, rt.Tombstone)
	}
	return buf
}

func appendTombstone(buf []byte, t types.Tombstone) []byte {
	buf = binary.BigEndian.AppendUint64(buf, uint64(t.Timestamp))
	buf = binary.BigEndian.AppendUint64(buf, uint64(t.DeletedAt.UnixNano()))
	return buf
}

func appendCells(buf []byte, cells []types.Cell) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(cells)))
	for _, c := range cells {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Name)))
		buf = append(buf, c.Name...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Value)))
		buf = append(buf, c.Value...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(c.Timestamp))
	}
	return buf
}

func (d *Decoder) readPartition() (*mutstream.Partition, error) {
	key, err := d.readBytes16()
	if err != nil {
		return nil, err
	}
	flagByte, err := d.readByte()
	if err != nil {
		return nil, err
	}
	flags := partitionFlags(flagByte)

	p := mutstream.NewPartition(key)
	if flags&flagHasTombstone != 0 {
		t, err := d.readTombstone()
		if err != nil {
			return nil, err
		}
		p.SetTombstone(t)
	}
	if flags&flagHasStatic != 0 {
		cells, err := d.readCells()
		if err != nil {
			return nil, err
		}
		p.SetStaticRow(cells...)
	}

	rowCount, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < rowCount; i++ {
		rowKey, err := d.readBytes16()
		if err != nil {
			return nil, err
		}
		markerTS, err := d.readUint64()
		if err != nil {
			return nil, err
		}
		cells, err := d.readCells()
		if err != nil {
			return nil, err
		}
		p.AddRow(rowKey, types.RowMarker{Timestamp: int64(markerTS)}, cells...)
	}

	rangeCount, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < rangeCount; i++ {
		start, err := d.readBytes16()
		if err != nil {
			return nil, err
		}
		end, err := d.readBytes16()
		if err != nil {
			return nil, err
		}
		t, err := d.readTombstone()
		if err != nil {
			return nil, err
		}
		p.AddRangeTombstone(start, end, t)
	}
	return p, nil
}

func (d *Decoder) readTombstone() (types.Tombstone, error) {
	ts, err := d.readUint64()
	if err != nil {
		return types.Tombstone{}, err
	}
	deletedAt, err := d.readUint64()
	if err != nil {
		return types.Tombstone{}, err
	}
	return types.Tombstone{
		Timestamp: int64(ts),
		DeletedAt: time.Unix(0, int64(deletedAt)).UTC(),
	}, nil
}

func (d *Decoder) readCells() ([]types.Cell, error) {
	count, err := d.readUint16()
	if err != nil {
		return nil, err
	}
	cells := make([]types.Cell, 0, count)
	for i := uint16(0); i < count; i++ {
		name, err := d.readBytes16()
		if err != nil {
			return nil, err
		}
		value, err := d.readBytes32()
		if err != nil {
			return nil, err
		}
		ts, err := d.readUint64()
		if err != nil {
			return nil, err
		}
		cells = append(cells, types.Cell{
			Name:      string(name),
			Value:     value,
			Timestamp: int64(ts),
		})
	}
	return cells, nil
}

func (d *Decoder) readByte() (byte, error) {
	if d.off+1 > len(d.buf) {
		return 0, errTruncated()
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *Decoder) readUint16() (uint16, error) {
	if d.off+2 > len(d.buf) {
		return 0, errTruncated()
	}
	v := binary.BigEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

func (d *Decoder) readUint32() (uint32, error) {
	if d.off+4 > len(d.buf) {
		return 0, errTruncated()
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *Decoder) readUint64() (uint64, error) {
	if d.off+8 > len(d.buf) {
		return 0, errTruncated()
	}
	v := binary.BigEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

func (d *Decoder) readBytes16() ([]byte, error) {
	n, err := d.readUint16()
	if err != nil {
		return nil, err
	}
	return d.read(int(n))
}

func (d *Decoder) readBytes32() ([]byte, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	return d.read(int(n))
}

func (d *Decoder) read(n int) ([]byte, error) {
	if d.off+n > len(d.buf) {
		return nil, errTruncated()
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+n])
	d.off += n
	return out, nil
}
