package client

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/respassembler"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	return New(Config{})
}

func TestSetURLSameHostKeepsConnection(t *testing.T) {
	c := newTestController(t)
	if err := c.SetURL("http://example.com/a"); err != nil {
		t.Fatal(err)
	}
	c.connected = true
	c.SetText("hello")

	if err := c.SetURL("http://example.com/b?x=1"); err != nil {
		t.Fatal(err)
	}
	if !c.connected {
		t.Fatal("expected connection to survive a same-origin SetURL")
	}
	if c.body.kind != bodyKindText {
		t.Fatal("expected body to survive a same-origin SetURL")
	}
	if got, _ := c.headers.Get("host"); got != "example.com" {
		t.Fatalf("host header = %q", got)
	}
}

func TestSetURLHostChangeResetsBodyAndConnection(t *testing.T) {
	c := newTestController(t)
	if err := c.SetURL("http://example.com/a"); err != nil {
		t.Fatal(err)
	}
	c.connected = true
	c.SetText("hello")

	if err := c.SetURL("http://other.example.org/a"); err != nil {
		t.Fatal(err)
	}
	if c.connected {
		t.Fatal("expected a host change to drop the connection")
	}
	if c.body.kind != bodyKindNone {
		t.Fatal("expected a host change to clear the body")
	}
}

func TestPathAndQueryPreservesOrder(t *testing.T) {
	c := newTestController(t)
	if err := c.SetURL("http://example.com/search"); err != nil {
		t.Fatal(err)
	}
	c.AddParam("q", "go lang")
	c.AddParam("page", "2")

	want := "/search?q=go+lang&page=2"
	if got := c.pathAndQuery(); got != want {
		t.Fatalf("pathAndQuery() = %q, want %q", got, want)
	}
}

func TestBuildRequestH1IncludesContentLengthAndType(t *testing.T) {
	c := newTestController(t)
	if err := c.SetURL("http://example.com/submit"); err != nil {
		t.Fatal(err)
	}
	c.SetText("body")

	req, err := c.buildRequestH1("POST")
	if err != nil {
		t.Fatal(err)
	}
	s := string(req)
	if !strings.HasPrefix(s, "POST /submit HTTP/1.1\r\n") {
		t.Fatalf("request line wrong: %q", s)
	}
	if !strings.Contains(s, "Content-Length: 4\r\n") {
		t.Fatalf("missing content-length: %q", s)
	}
	if !strings.Contains(s, "Content-Type: text/plain; charset=utf-8\r\n") {
		t.Fatalf("missing content-type: %q", s)
	}
	if !strings.HasSuffix(s, "\r\n\r\nbody") {
		t.Fatalf("missing body: %q", s)
	}
}

// fakeOrigin serves one HTTP/1.1 response over a net.Pipe connection,
// standing in for a real TLS/TCP endpoint so Send's connection-handling
// logic can be exercised without a network.
func fakeOrigin(t *testing.T, response string) (serverSide net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		buf := make([]byte, 4096)
		n, _ := server.Read(buf)
		_ = n
		server.Write([]byte(response))
		server.Close()
	}()
	return client
}

func wireConnected(c *Controller, conn net.Conn) {
	c.rawConn = conn
	c.rw = conn
	c.negotiatedALPN = "http/1.1"
	c.connected = true
}

func TestSendRoundTripOverPipe(t *testing.T) {
	c := newTestController(t)
	if err := c.SetURL("http://example.com/ping"); err != nil {
		t.Fatal(err)
	}
	conn := fakeOrigin(t, "HTTP/1.1 200 OK\r\nset-cookie: sid=abc123\r\ncontent-length: 2\r\n\r\nok")
	wireConnected(c, conn)

	resp, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got, err := resp.String(); err != nil || got != "ok" {
		t.Fatalf("body = %q, err = %v", got, err)
	}
	if _, ok := c.jar.Get("sid"); !ok {
		t.Fatal("expected set-cookie response to populate the jar")
	}
}

func TestSendCheckReturnsStatusError(t *testing.T) {
	c := newTestController(t)
	if err := c.SetURL("http://example.com/missing"); err != nil {
		t.Fatal(err)
	}
	conn := fakeOrigin(t, "HTTP/1.1 404 Not Found\r\ncontent-length: 0\r\n\r\n")
	wireConnected(c, conn)

	_, err := c.SendCheck(context.Background(), "GET")
	if err == nil {
		t.Fatal("expected a status error")
	}
	var se *errors.Error
	if as, ok := err.(*errors.Error); ok {
		se = as
	}
	if se == nil || se.Type != errors.ErrorTypeStatus {
		t.Fatalf("expected a status error, got %v", err)
	}
}

func TestAfterSuccessAdvancesH2StreamID(t *testing.T) {
	c := newTestController(t)
	c.negotiatedALPN = "h2"
	c.streamID = 1
	c.afterSuccess(&respassembler.Response{})
	if c.streamID != 3 {
		t.Fatalf("streamID = %d, want 3", c.streamID)
	}
}
