package buffer

import (
	"bytes"
	"io"
	"testing"
)

func TestPushAndReset(t *testing.T) {
	b := New(16)
	b.Push([]byte("hello"))
	if b.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", b.Len())
	}
	if !bytes.Equal(b.Bytes(), []byte("hello")) {
		t.Fatalf("Bytes() = %q", b.Bytes())
	}
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", b.Len())
	}
}

func TestPushGrowsWhenOverCapacity(t *testing.T) {
	b := New(4)
	b.Push([]byte("abcdefgh"))
	if b.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", b.Len())
	}
	if b.Cap() < 8 {
		t.Fatalf("Cap() = %d, want >= 8", b.Cap())
	}
}

func TestReadUpToPeerClosed(t *testing.T) {
	b := New(16)
	_, err := b.ReadUpTo(bytes.NewReader(nil), 4)
	if err == nil {
		t.Fatal("expected error on zero-byte read")
	}
}

func TestReadUpToEOF(t *testing.T) {
	b := New(16)
	r := io.LimitReader(bytes.NewReader([]byte("ab")), 2)
	n, err := b.ReadUpTo(r, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 || b.Len() != 2 {
		t.Fatalf("n=%d len=%d, want 2/2", n, b.Len())
	}
}

func TestCopyWithinDropsConsumedPrefix(t *testing.T) {
	b := New(16)
	b.Push([]byte("RECORD1MESSAGE2"))
	// Pretend the first 7 bytes (a consumed record) should be dropped.
	b.CopyWithin(7, b.Len(), 0)
	if !bytes.Equal(b.Bytes(), []byte("MESSAGE2")) {
		t.Fatalf("Bytes() = %q, want MESSAGE2", b.Bytes())
	}
}

func TestDiscard(t *testing.T) {
	b := New(16)
	b.Push([]byte("0123456789"))
	b.Discard(4)
	if !bytes.Equal(b.Bytes(), []byte("456789")) {
		t.Fatalf("Bytes() = %q", b.Bytes())
	}
	b.Discard(100)
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", b.Len())
	}
}
