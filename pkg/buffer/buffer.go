// Package buffer provides a fixed-capacity byte region with a filled prefix,
// reused across the lifetime of a connection so records, frames, and
// response chunks can be assembled without per-message allocation.
package buffer

import (
	"io"

	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// Buffer is a byte region of fixed capacity C holding a filled prefix of
// length L <= C. It is not safe for concurrent use — it is owned by exactly
// one TlsStream or response assembler at a time.
type Buffer struct {
	data []byte // len(data) == capacity, always
	l    int    // filled length
}

// New allocates a Buffer with the given fixed capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the current filled length.
func (b *Buffer) Len() int { return b.l }

// Reset sets the filled length back to zero without reallocating.
func (b *Buffer) Reset() { b.l = 0 }

// Bytes returns the filled prefix. The returned slice aliases the buffer's
// backing array and is only valid until the next mutating call.
func (b *Buffer) Bytes() []byte { return b.data[:b.l] }

// At returns the byte at the given index into the filled prefix. It panics
// on an out-of-range index, mirroring the unchecked indexing style used
// at fixed parse offsets where the caller has already validated Len().
func (b *Buffer) At(i int) byte { return b.data[i] }

// Slice returns a sub-slice [lo:hi) of the filled prefix, aliasing the
// backing array.
func (b *Buffer) Slice(lo, hi int) []byte { return b.data[lo:hi] }

// Push appends p to the filled prefix, growing the backing array only if p
// does not fit within the remaining capacity. This is the one path that may
// allocate; steady-state record/frame assembly never exercises it because
// capacity is sized up front for the protocol's largest unit.
func (b *Buffer) Push(p []byte) {
	need := b.l + len(p)
	if need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data[:b.l])
		b.data = grown
	}
	copy(b.data[b.l:need], p)
	b.l = need
}

// ReadUpTo reads at most limit bytes from r into the remaining capacity
// after the filled prefix, advancing Len() by the number of bytes read.
// limit must not exceed Cap()-Len(). A read returning zero bytes with a nil
// error is reported as PeerClosedConnection, matching the common treatment
// of a zero-length read as peer closure rather than a retryable condition.
func (b *Buffer) ReadUpTo(r io.Reader, limit int) (int, error) {
	if limit <= 0 || b.l+limit > len(b.data) {
		return 0, errors.NewInvariantError("buffer.ReadUpTo: limit exceeds remaining capacity")
	}
	n, err := r.Read(b.data[b.l : b.l+limit])
	if n == 0 && err == nil {
		return 0, errors.NewPeerClosedError("read", nil)
	}
	b.l += n
	if err != nil {
		if err == io.EOF {
			return n, errors.NewPeerClosedError("read", io.EOF)
		}
		return n, errors.NewIOError("reading into buffer", err)
	}
	return n, nil
}

// CopyWithin shifts the byte range [lo:hi) down to start at dest, then
// recomputes the filled length from the shifted tail. Used to discard a
// consumed prefix (e.g. a fully-parsed record) without reallocating the
// backing array.
func (b *Buffer) CopyWithin(lo, hi, dest int) {
	n := copy(b.data[dest:], b.data[lo:hi])
	tailStart := dest + n
	tail := b.l - hi
	copy(b.data[tailStart:tailStart+tail], b.data[hi:b.l])
	b.l = tailStart + tail
}

// Discard drops the first n bytes of the filled prefix, shifting the
// remainder down to offset zero. Equivalent to CopyWithin(n, Len(), 0).
func (b *Buffer) Discard(n int) {
	if n <= 0 {
		return
	}
	if n >= b.l {
		b.l = 0
		return
	}
	b.CopyWithin(n, b.l, 0)
}

// Remaining returns the unused capacity after the filled prefix.
func (b *Buffer) Remaining() int { return len(b.data) - b.l }
