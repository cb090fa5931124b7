// Package wire implements the canonical byte layout shared by every
// transaction and block header. Writing and reading are exact inverses of
// each other: any value serialized by a Writer reads back identically
// through a Reader, and any structurally invalid input fails with a
// classified error instead of a panic. All integers are fixed width big
// endian so the produced bytes are bit identical across nodes.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/meridianchain/meridian/foundation/ledger/errs"
)

// MaxAlloc limits the size of any length prefixed field to keep a malformed
// input from forcing a huge allocation during decoding.
const MaxAlloc = 150 * 1024

// =============================================================================

// Writer accumulates the canonical byte form of a value.
type Writer struct {
	buf []byte
}

// NewWriter constructs a Writer with a small preallocated buffer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteU8 appends a single byte.
func (w *Writer) WriteU8(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBool appends a boolean as a single 0 or 1 byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

// WriteBytes appends raw bytes with no length prefix.
func (w *Writer) WriteBytes(data []byte) {
	w.buf = append(w.buf, data...)
}

// WriteUint16 appends a fixed width big endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// WriteUint64 appends a fixed width big endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// WriteInt64 appends a fixed width big endian int64.
func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

// WriteSized appends a uint16 length prefix followed by the bytes.
func (w *Writer) WriteSized(data []byte) {
	w.WriteUint16(uint16(len(data)))
	w.WriteBytes(data)
}

// =============================================================================

// Reader walks a byte slice produced by a Writer. The first structural
// failure latches and every later read returns zero values, so call sites
// can decode a full layout and check Err once at the end.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader constructs a Reader over the specified bytes.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err reports the first structural failure encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Pos reports how many bytes have been consumed so far.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int {
	if r.err != nil {
		return 0
	}
	return len(r.data) - r.pos
}

// Abort latches a structural error raised by a caller that found the bytes
// well formed but semantically invalid, such as an unknown marker byte.
func (r *Reader) Abort(err error) {
	r.fail(err)
}

// fail records the first error and poisons all later reads.
func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// take consumes n bytes or fails on truncated input.
func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.pos < n {
		r.fail(errs.NewGeneric("truncated input: need %d bytes at offset %d, have %d", n, r.pos, len(r.data)-r.pos))
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// ReadU8 consumes a single byte.
func (r *Reader) ReadU8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadBool consumes a single byte and requires it to be 0 or 1.
func (r *Reader) ReadBool() bool {
	b := r.ReadU8()
	if r.err == nil && b > 1 {
		r.fail(errs.NewGeneric("invalid boolean marker 0x%x at offset %d", b, r.pos-1))
	}
	return b == 1
}

// ReadBytes consumes exactly n raw bytes and returns a copy.
func (r *Reader) ReadBytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// ReadUint16 consumes a fixed width big endian uint16.
func (r *Reader) ReadUint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// ReadUint64 consumes a fixed width big endian uint64.
func (r *Reader) ReadUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// ReadInt64 consumes a fixed width big endian int64.
func (r *Reader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

// ReadSized consumes a uint16 length prefix followed by that many bytes.
func (r *Reader) ReadSized() []byte {
	n := int(r.ReadUint16())
	if r.err != nil {
		return nil
	}
	if n > MaxAlloc {
		r.fail(&errs.TooBigArray{Message: "length prefix exceeds allocation limit"})
		return nil
	}
	return r.ReadBytes(n)
}

// Close requires the input to be fully consumed. A trailing byte means the
// value was produced by a different layout and must be rejected.
func (r *Reader) Close() error {
	if r.err != nil {
		return r.err
	}
	if r.pos != len(r.data) {
		return errs.NewGeneric("oversized input: %d trailing bytes after offset %d", len(r.data)-r.pos, r.pos)
	}
	return nil
}

// =============================================================================

// AddWouldOverflow reports whether a + b overflows the int64 range. Both
// values are expected to be non negative.
func AddWouldOverflow(a int64, b int64) bool {
	return a > math.MaxInt64-b
}
