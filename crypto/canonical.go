package crypto

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
)

// Encoder builds the canonical byte representation that every hashed or
// signed artifact in DOIN is defined against: big-endian integers, explicit
// length prefixes on variable-length fields, and keys sorted before
// encoding any map. No caller should hash a struct by any other route.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Uint64 appends v as 8 big-endian bytes.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

// Int64 appends v as 8 big-endian bytes (two's complement).
func (e *Encoder) Int64(v int64) *Encoder {
	return e.Uint64(uint64(v))
}

// Float64 appends v's IEEE-754 bit pattern as 8 big-endian bytes.
func (e *Encoder) Float64(v float64) *Encoder {
	return e.Uint64(math.Float64bits(v))
}

// Bool appends a single 0x00/0x01 byte.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
	return e
}

// Bytes appends a 4-byte big-endian length prefix followed by b, so that two
// adjacent variable-length fields can never be confused for each other.
func (e *Encoder) Bytes(b []byte) *Encoder {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	e.buf.Write(lenBuf[:])
	e.buf.Write(b)
	return e
}

// String is Bytes over the UTF-8 encoding of s.
func (e *Encoder) String(s string) *Encoder {
	return e.Bytes([]byte(s))
}

// StringSlice encodes a count followed by each element via String, in the
// given order. Callers that need order-independence must sort first.
func (e *Encoder) StringSlice(ss []string) *Encoder {
	e.Uint64(uint64(len(ss)))
	for _, s := range ss {
		e.String(s)
	}
	return e
}

// Uint64Map encodes a string->uint64 map with keys sorted lexicographically,
// so that two maps with identical contents always canonicalize identically
// regardless of Go's randomized map iteration order.
func (e *Encoder) Uint64Map(m map[string]uint64) *Encoder {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.Uint64(uint64(len(keys)))
	for _, k := range keys {
		e.String(k)
		e.Uint64(m[k])
	}
	return e
}

// Finish returns the accumulated canonical bytes.
func (e *Encoder) Finish() []byte {
	return e.buf.Bytes()
}
