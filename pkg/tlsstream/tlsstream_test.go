package tlsstream

import (
	"bytes"
	"net"
	"testing"

	"github.com/corvaxnet/rawhttp/pkg/buffer"
	"github.com/corvaxnet/rawhttp/pkg/constants"
	"github.com/corvaxnet/rawhttp/pkg/tlscipher"
	"github.com/corvaxnet/rawhttp/pkg/tlssuite"
	"github.com/corvaxnet/rawhttp/pkg/transport"
)

// pairedStreams builds two Stream values wired to opposite ends of a
// net.Pipe with cross-matched AEAD ciphers, as if a handshake had already
// completed, so Read/Write framing can be exercised without re-running the
// full ECDHE exchange (covered separately in pkg/tlsconn and pkg/tlscipher).
func pairedStreams(t *testing.T) (a, b *Stream) {
	t.Helper()
	suite, err := tlssuite.ByCode(0xC02F)
	if err != nil {
		t.Fatal(err)
	}
	keyAB := bytes.Repeat([]byte{0x10}, suite.KeyLen)
	ivAB := bytes.Repeat([]byte{0x20}, suite.FixIVLen)
	keyBA := bytes.Repeat([]byte{0x30}, suite.KeyLen)
	ivBA := bytes.Repeat([]byte{0x40}, suite.FixIVLen)

	connA, connB := net.Pipe()

	explicitAB := bytes.Repeat([]byte{0x50}, suite.ExplicitLen)
	explicitBA := bytes.Repeat([]byte{0x60}, suite.ExplicitLen)

	writeAB, _ := tlscipher.New(suite, keyAB, ivAB, explicitAB)
	readAB, _ := tlscipher.New(suite, keyAB, ivAB, nil)
	writeBA, _ := tlscipher.New(suite, keyBA, ivBA, explicitBA)
	readBA, _ := tlscipher.New(suite, keyBA, ivBA, nil)

	a = &Stream{
		conn:          connA,
		mode:          transport.Blocking{},
		readBuf:       buffer.New(constants.TLSRecordBufferCapacity),
		writeCipher:   writeAB,
		readCipher:    readBA,
		recordVersion: 0x0303,
	}
	b = &Stream{
		conn:          connB,
		mode:          transport.Blocking{},
		readBuf:       buffer.New(constants.TLSRecordBufferCapacity),
		writeCipher:   writeBA,
		readCipher:    readAB,
		recordVersion: 0x0303,
	}
	return a, b
}

func TestStreamWriteReadRoundTrip(t *testing.T) {
	a, b := pairedStreams(t)
	defer a.conn.(net.Conn).Close()
	defer b.conn.(net.Conn).Close()

	msg := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	errCh := make(chan error, 1)
	go func() {
		_, err := a.Write(msg)
		errCh <- err
	}()

	got := make([]byte, 256)
	n, err := b.Read(got)
	if err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:n], msg) {
		t.Fatalf("got %q, want %q", got[:n], msg)
	}
}

func TestStreamCloseSendsCloseNotify(t *testing.T) {
	a, b := pairedStreams(t)
	defer a.conn.(net.Conn).Close()
	defer b.conn.(net.Conn).Close()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Close() }()

	buf := make([]byte, 16)
	_, err := b.Read(buf)
	if err == nil {
		t.Fatal("expected io.EOF on peer close_notify")
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if !b.closed {
		t.Fatal("receiving close_notify should mark the stream closed")
	}
}

func TestParseServerHelloExtensionsALPNAndEMS(t *testing.T) {
	hs := &handshakeSession{}
	var ext []byte
	alpnData := []byte{0x00, 0x03, 0x02, 'h', '2'}
	ext = append(ext, 0x00, 0x10)
	ext = append(ext, byte(len(alpnData)>>8), byte(len(alpnData)))
	ext = append(ext, alpnData...)
	ext = append(ext, 0x00, 0x17, 0x00, 0x00) // extended_master_secret, empty data

	hs.parseServerHelloExtensions(ext)
	if hs.negotiatedALPN != "h2" {
		t.Fatalf("negotiatedALPN = %q, want h2", hs.negotiatedALPN)
	}
	if !hs.useEMS {
		t.Fatal("expected useEMS to be set")
	}
}
