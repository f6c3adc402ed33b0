package h2frame

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/net/http2"
)

func TestSendPrefaceWritesClientPrefaceAndSettings(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	if err := c.SendPreface(DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n") {
		t.Fatal("expected client preface first on the wire")
	}
	buf.Next(len("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"))
	f, err := http2.NewFramer(nil, &buf).ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.(*http2.SettingsFrame); !ok {
		t.Fatalf("got %T after the preface, want *http2.SettingsFrame", f)
	}
}

func TestWriteDataBelowMaxPayloadIsOneFrame(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	payload := bytes.Repeat([]byte{0xAB}, 100)
	if err := c.WriteData(1, payload, true); err != nil {
		t.Fatal(err)
	}

	fr := http2.NewFramer(nil, &buf)
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	df, ok := f.(*http2.DataFrame)
	if !ok {
		t.Fatalf("got %T, want *http2.DataFrame", f)
	}
	if !bytes.Equal(df.Data(), payload) {
		t.Fatal("data frame payload mismatch")
	}
	if !df.StreamEnded() {
		t.Fatal("expected END_STREAM on the single data frame")
	}
}

func TestHeaderAggregatorJoinsHeadersAndContinuation(t *testing.T) {
	var buf bytes.Buffer
	framer := http2.NewFramer(&buf, nil)
	if err := framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      1,
		BlockFragment: []byte("part-one-"),
		EndHeaders:    false,
		EndStream:     false,
	}); err != nil {
		t.Fatal(err)
	}
	if err := framer.WriteContinuation(1, true, []byte("part-two")); err != nil {
		t.Fatal(err)
	}

	reader := http2.NewFramer(nil, &buf)
	var agg HeaderAggregator
	for {
		f, err := reader.ReadFrame()
		if err != nil {
			t.Fatal(err)
		}
		complete, err := agg.Feed(f)
		if err != nil {
			t.Fatal(err)
		}
		if complete {
			break
		}
	}
	if got := string(agg.Block()); got != "part-one-part-two" {
		t.Fatalf("aggregated block = %q", got)
	}
}

func TestHeaderAggregatorRejectsUnexpectedFrame(t *testing.T) {
	var buf bytes.Buffer
	framer := http2.NewFramer(&buf, nil)
	if err := framer.WriteData(1, false, []byte("x")); err != nil {
		t.Fatal(err)
	}
	reader := http2.NewFramer(nil, &buf)
	f, err := reader.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	var agg HeaderAggregator
	if _, err := agg.Feed(f); err == nil {
		t.Fatal("expected error feeding a non-HEADERS/CONTINUATION frame")
	}
}
