package transport

import (
	"net"
	"testing"
)

func TestSocks5TunnelHandshakeBytes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		done <- socks5Tunnel(Blocking{}, client, "example.com", 443, &ProxyConfig{Kind: ProxySOCKS5, Addr: "proxy:1080"})
	}()

	greeting := make([]byte, 3)
	if _, err := readFull(server, greeting); err != nil {
		t.Fatal(err)
	}
	if greeting[0] != 0x05 || greeting[1] != 0x01 || greeting[2] != 0x00 {
		t.Fatalf("unexpected greeting: % x", greeting)
	}
	if _, err := server.Write([]byte{0x05, 0x00}); err != nil {
		t.Fatal(err)
	}

	head := make([]byte, 5+len("example.com"))
	if _, err := readFull(server, head); err != nil {
		t.Fatal(err)
	}
	if head[0] != 0x05 || head[1] != 0x01 || head[3] != 0x03 || head[4] != byte(len("example.com")) {
		t.Fatalf("unexpected connect request head: % x", head)
	}
	portBytes := make([]byte, 2)
	if _, err := readFull(server, portBytes); err != nil {
		t.Fatal(err)
	}
	if portBytes[0] != 443>>8 || portBytes[1] != 443&0xff {
		t.Fatalf("unexpected port bytes: % x", portBytes)
	}

	reply := []byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	if _, err := server.Write(reply); err != nil {
		t.Fatal(err)
	}

	if err := <-done; err != nil {
		t.Fatalf("socks5Tunnel returned error: %v", err)
	}
}

func TestSocks5TunnelRejectsNonSuccessReply(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		done <- socks5Tunnel(Blocking{}, client, "example.com", 443, &ProxyConfig{Kind: ProxySOCKS5, Addr: "proxy:1080"})
	}()

	greeting := make([]byte, 3)
	readFull(server, greeting)
	server.Write([]byte{0x05, 0x00})

	head := make([]byte, 5+len("example.com")+2)
	readFull(server, head)

	// general failure; written from a goroutine because the client stops
	// reading after the 4-byte reply head and net.Pipe writes are synchronous.
	go server.Write([]byte{0x05, 0x01, 0x00, 0x01, 0, 0, 0, 0, 0, 0})

	if err := <-done; err == nil {
		t.Fatal("expected error on socks5 failure reply")
	}
}

func TestBasicAuthEncoding(t *testing.T) {
	got := basicAuth("user", "pass")
	if got != "dXNlcjpwYXNz" {
		t.Fatalf("basicAuth = %q, want dXNlcjpwYXNz", got)
	}
}
