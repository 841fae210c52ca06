// Package wire frames cache entry envelopes for storage. A frame carries the
// entry's bookkeeping (write time, TTL, access stats, declared dependency
// keys) around the caller's payload. Payloads at or above CompressThreshold
// are s2-compressed; the flag byte records whether the inverse transform is
// needed on read. Decoding is strict: trailing bytes, truncation and length
// overruns are all rejected as corruption.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/klauspost/compress/s2"
)

// CompressThreshold is the payload size, in bytes, at which compression
// kicks in.
const CompressThreshold = 1 << 10

// Limits on the dependency section of a frame; both lengths travel as u16.
// Callers validate against these before encoding. Encode panics on
// violation: a frame that silently drops or truncates a dependency edge
// would break cascading invalidation.
const (
	MaxDeps      = 0xFFFF
	MaxDepKeyLen = 0xFFFF
)

const version byte = 1

const flagCompressed byte = 1 << 0

var (
	ErrCorrupt = errors.New("rulecache: corrupt entry")
	magic4     = [...]byte{'R', 'C', 'E', '1'}
)

// Envelope is the decoded form of a stored entry.
type Envelope struct {
	WrittenAt      int64 // unix nanoseconds
	LastAccessedAt int64 // unix nanoseconds
	TTLSeconds     uint32
	AccessCount    uint32
	DependsOn      []string
	Payload        []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames e. The second return is the stored payload length after the
// size transform, for compression-ratio accounting.
//
// Frame: magic(4) | ver(1) | flags(1) | writtenAt(i64 be) | lastAccess(i64 be) |
// ttl(u32 be) | accessCount(u32 be) | ndeps(u16 be) |
// { depLen(u16 be) | dep }* | vlen(u32 be) | payload
func Encode(e Envelope) ([]byte, int) {
	payload := e.Payload
	var flags byte
	if len(payload) >= CompressThreshold {
		if c := s2.Encode(nil, payload); len(c) < len(payload) {
			payload = c
			flags |= flagCompressed
		}
	}

	total := 4 + 1 + 1 + 8 + 8 + 4 + 4 + 2
	for _, d := range e.DependsOn {
		total += 2 + len(d)
	}
	total += 4 + len(payload)

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(flags)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.WrittenAt))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.LastAccessedAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], e.TTLSeconds)
	buf.Write(u4[:])
	binary.BigEndian.PutUint32(u4[:], e.AccessCount)
	buf.Write(u4[:])

	if len(e.DependsOn) > MaxDeps {
		panic("rulecache: too many dependency keys in envelope")
	}
	binary.BigEndian.PutUint16(u2[:], uint16(len(e.DependsOn)))
	buf.Write(u2[:])
	for _, d := range e.DependsOn {
		if l := len(d); l == 0 || l > MaxDepKeyLen {
			panic("rulecache: invalid dependency key length in envelope")
		}
		binary.BigEndian.PutUint16(u2[:], uint16(len(d)))
		buf.Write(u2[:])
		buf.WriteString(d)
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])
	buf.Write(payload)

	return buf.Bytes(), len(payload)
}

// Decode parses a frame and reverses the size transform when the compressed
// flag is set. The returned Payload is freshly allocated when decompression
// runs and a sub-slice of b otherwise.
func Decode(b []byte) (Envelope, error) {
	const hdr = 4 + 1 + 1 + 8 + 8 + 4 + 4 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return Envelope{}, ErrCorrupt
	}
	flags := b[5]
	off := 6

	var e Envelope
	e.WrittenAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	e.LastAccessedAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	e.TTLSeconds = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	e.AccessCount = binary.BigEndian.Uint32(b[off : off+4])
	off += 4

	ndeps := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if ndeps > 0 {
		e.DependsOn = make([]string, 0, ndeps)
	}
	for i := 0; i < ndeps; i++ {
		if off+2 > len(b) {
			return Envelope{}, ErrCorrupt
		}
		dlen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if dlen <= 0 || dlen > len(b)-off {
			return Envelope{}, ErrCorrupt
		}
		e.DependsOn = append(e.DependsOn, string(b[off:off+dlen]))
		off += dlen
	}

	if off+4 > len(b) {
		return Envelope{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // reject truncation and trailing bytes
		return Envelope{}, ErrCorrupt
	}
	payload := b[off : off+vlen]

	if flags&flagCompressed != 0 {
		raw, err := s2.Decode(nil, payload)
		if err != nil {
			return Envelope{}, ErrCorrupt
		}
		payload = raw
	}
	e.Payload = payload
	return e, nil
}
