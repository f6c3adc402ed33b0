package respassembler

import (
	"bytes"
	"compress/gzip"
	"strconv"
	"testing"

	"github.com/corvaxnet/rawhttp/pkg/hpackcodec"
)

func TestDecodeChunkedJoinsChunks(t *testing.T) {
	body := []byte("5\r\nhello\r\n5\r\nworld\r\n0\r\n\r\n")
	got, err := DecodeChunked(body)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "helloworld" {
		t.Fatalf("got %q", got)
	}
}

func TestH1CompleteContentLength(t *testing.T) {
	incomplete := []byte("HTTP/1.1 200 OK\r\ncontent-length: 5\r\n\r\nhel")
	if H1Complete(incomplete) {
		t.Fatal("expected incomplete")
	}
	complete := []byte("HTTP/1.1 200 OK\r\ncontent-length: 5\r\n\r\nhello")
	if !H1Complete(complete) {
		t.Fatal("expected complete")
	}
}

func TestH1CompleteChunked(t *testing.T) {
	incomplete := []byte("HTTP/1.1 200 OK\r\ntransfer-encoding: chunked\r\n\r\n5\r\nhello\r\n")
	if H1Complete(incomplete) {
		t.Fatal("expected incomplete, missing terminal chunk")
	}
	complete := []byte("HTTP/1.1 200 OK\r\ntransfer-encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n")
	if !H1Complete(complete) {
		t.Fatal("expected complete")
	}
}

func TestParseH1ChunkedGzipScenario(t *testing.T) {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	w.Write([]byte("helloworld"))
	w.Close()

	var chunked bytes.Buffer
	payload := gz.Bytes()
	chunked.WriteString(strconv.FormatInt(int64(len(payload)), 16))
	chunked.WriteString("\r\n")
	chunked.Write(payload)
	chunked.WriteString("\r\n0\r\n\r\n")

	raw := "HTTP/1.1 200 OK\r\ntransfer-encoding: chunked\r\ncontent-encoding: gzip\r\n\r\n" + chunked.String()
	resp, err := ParseH1([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got, err := resp.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "helloworld" {
		t.Fatalf("decoded body = %q", got)
	}
}

func TestParseH2StatusAndBody(t *testing.T) {
	enc := hpackcodec.NewEncoder()
	block, err := enc.Encode([][2]string{
		{":status", "200"},
		{"content-type", "text/plain"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ParseH2(block, []byte("ok"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct, ok := resp.Header("content-type"); !ok || ct != "text/plain" {
		t.Fatalf("content-type = %q, %v", ct, ok)
	}
	if string(resp.Raw()) != "ok" {
		t.Fatalf("raw body = %q", resp.Raw())
	}
}

func TestBytesViewIdempotent(t *testing.T) {
	resp := &Response{rawBody: []byte("plain body")}
	first, err := resp.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	second, err := resp.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) || string(first) != "plain body" {
		t.Fatalf("Bytes() not idempotent: %q vs %q", first, second)
	}
}
