// Package wasmbin provides a minimal decoder and encoder for the
// WebAssembly binary format, scoped to exactly what the cost
// instrumentation pass (see internal/cost) needs to read and rewrite:
// the type, import, function, global, export, memory, table and code
// sections. It is not a general-purpose WASM toolkit.
package wasmbin

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Magic and Version are the first eight bytes of every WASM binary module.
var (
	Magic   = [4]byte{0x00, 0x61, 0x73, 0x6d}
	Version = [4]byte{0x01, 0x00, 0x00, 0x00}
)

// reader walks a byte slice, tracking position, for one decode pass.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) eof() bool {
	return r.pos >= len(r.buf)
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("wasmbin: unexpected end of input at offset %d", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("wasmbin: unexpected end of input reading %d bytes at offset %d", n, r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// u32 reads an unsigned LEB128-encoded 32-bit value.
func (r *reader) u32() (uint32, error) {
	v, _, err := r.uleb(32)
	return uint32(v), err
}

// u64 reads an unsigned LEB128-encoded 64-bit value.
func (r *reader) u64() (uint64, error) {
	v, _, err := r.uleb(64)
	return v, err
}

// uleb decodes an unsigned LEB128 value up to maxBits wide, also returning
// the number of bytes consumed.
func (r *reader) uleb(maxBits int) (uint64, int, error) {
	var result uint64
	var shift uint
	n := 0
	for {
		b, err := r.byte()
		if err != nil {
			return 0, n, err
		}
		n++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, n, fmt.Errorf("wasmbin: LEB128 value too long")
		}
	}
	if uint(maxBits) < 64 {
		result &= (uint64(1) << uint(maxBits)) - 1
	}
	return result, n, nil
}

// i32 reads a signed LEB128-encoded 32-bit value (used for i32.const).
func (r *reader) i32() (int32, error) {
	v, err := r.sleb(32)
	return int32(v), err
}

// i64 reads a signed LEB128-encoded 64-bit value (used for i64.const).
func (r *reader) i64() (int64, error) {
	return r.sleb(64)
}

func (r *reader) sleb(size int) (int64, error) {
	var result int64
	var shift uint
	var b byte
	for {
		nb, err := r.byte()
		if err != nil {
			return 0, err
		}
		b = nb
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < uint(size) && (b&0x40) != 0 {
		result |= -1 << shift
	}
	return result, nil
}

func (r *reader) f32() (float32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) f64() (float64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// writer accumulates encoded bytes for one encode pass.
type writer struct {
	buf []byte
}

func (w *writer) byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// putU32 appends an unsigned LEB128 encoding of v.
func putU32(w *writer, v uint32) {
	putU64(w, uint64(v))
}

// putU64 appends an unsigned LEB128 encoding of v.
func putU64(w *writer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.byte(b)
		if v == 0 {
			return
		}
	}
}

// putI64 appends a signed LEB128 encoding of v.
func putI64(w *writer, v int64) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.byte(b)
	}
}

// putI32 appends a signed LEB128 encoding of v.
func putI32(w *writer, v int32) {
	putI64(w, int64(v))
}

// uleb128Size returns the number of bytes putU64 would emit for v.
func uleb128Size(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
