package tlsrecord

import (
	"bytes"
	"testing"
)

func TestParseSerializeRoundTrip(t *testing.T) {
	raw := []byte{TypeHandshake, 0x03, 0x03, 0x00, 0x04, 0xAA, 0xBB, 0xCC, 0xDD}
	rec, n, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if !bytes.Equal(rec.Serialize(), raw) {
		t.Fatalf("Serialize() = % x, want % x", rec.Serialize(), raw)
	}
}

func TestParseInvalidHeadSize(t *testing.T) {
	_, _, err := Parse([]byte{0x16, 0x03})
	if err == nil {
		t.Fatal("expected error for short header")
	}
}

func TestParseBodyNotEnough(t *testing.T) {
	_, _, err := Parse([]byte{TypeHandshake, 0x03, 0x03, 0x00, 0x10, 0x01, 0x02})
	if err == nil {
		t.Fatal("expected error for short body")
	}
}

func TestSplitHandshakeMessages(t *testing.T) {
	m1 := BuildHandshakeMessage(HSServerHello, []byte("hello"))
	m2 := BuildHandshakeMessage(HSCertificate, []byte("cert-bytes"))
	payload := append(append([]byte{}, m1...), m2...)

	msgs, err := SplitHandshakeMessages(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Type != HSServerHello || string(msgs[0].Body) != "hello" {
		t.Fatalf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Type != HSCertificate || string(msgs[1].Body) != "cert-bytes" {
		t.Fatalf("msgs[1] = %+v", msgs[1])
	}
}
