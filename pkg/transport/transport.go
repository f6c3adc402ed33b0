package transport

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"

	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// ProxyKind selects the proxy tunneling protocol, if any.
type ProxyKind int

const (
	ProxyNone ProxyKind = iota
	ProxyHTTPConnect
	ProxySOCKS5
)

// ProxyConfig describes an optional upstream proxy the dialer tunnels
// through before handing back a connected socket to the target host.
type ProxyConfig struct {
	Kind     ProxyKind
	Addr     string // proxy's own host:port
	Username string
	Password string
}

// Dial connects to target (host:port), optionally tunneling through proxy,
// and returns a plaintext net.Conn ready for the TLS or HTTP/1.1 plaintext
// layer above it.
func Dial(ctx context.Context, mode IOMode, target string, proxy *ProxyConfig) (net.Conn, error) {
	mode.Suspend()

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return nil, errors.NewConnectionError(target, 0, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, errors.NewConnectionError(host, 0, err)
	}

	if proxy == nil || proxy.Kind == ProxyNone {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", target)
		if err != nil {
			return nil, errors.NewConnectionError(host, port, err)
		}
		return conn, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxy.Addr)
	if err != nil {
		return nil, errors.NewProxyError("dial", proxy.Addr, err)
	}

	switch proxy.Kind {
	case ProxyHTTPConnect:
		if err := connectTunnel(mode, conn, host, port, proxy); err != nil {
			conn.Close()
			return nil, err
		}
	case ProxySOCKS5:
		if err := socks5Tunnel(mode, conn, host, port, proxy); err != nil {
			conn.Close()
			return nil, err
		}
	default:
		conn.Close()
		return nil, errors.NewInvariantError("unknown proxy kind")
	}
	return conn, nil
}

// connectTunnel issues an HTTP CONNECT request over conn and reads the
// proxy's status line and header block, mirroring what a browser's proxy
// path does on the wire.
func connectTunnel(mode IOMode, conn net.Conn, host string, port int, proxy *ProxyConfig) error {
	mode.Suspend()
	req := fmt.Sprintf("CONNECT %s:%d HTTP/1.1\r\nHost: %s:%d\r\n", host, port, host, port)
	if proxy.Username != "" {
		req += "Proxy-Authorization: Basic " + basicAuth(proxy.Username, proxy.Password) + "\r\n"
	}
	req += "\r\n"

	if _, err := conn.Write([]byte(req)); err != nil {
		return errors.NewProxyError("connect-write", proxy.Addr, err)
	}

	mode.Suspend()
	r := bufio.NewReader(conn)
	statusLine, err := r.ReadString('\n')
	if err != nil {
		return errors.NewProxyError("connect-read-status", proxy.Addr, err)
	}
	if len(statusLine) < 12 || statusLine[9] != '2' {
		return errors.NewStatusError(0, statusLine)
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return errors.NewProxyError("connect-read-headers", proxy.Addr, err)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}
	return nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

// socks5Tunnel implements the standard SOCKS5 byte sequence:
// greeting, method selection, and a CONNECT request carrying the target as
// a domain name (atyp 0x03) rather than a resolved IP, so DNS resolution
// happens at the proxy and the target host string is preserved for SNI.
func socks5Tunnel(mode IOMode, conn net.Conn, host string, port int, proxy *ProxyConfig) error {
	mode.Suspend()
	greeting := []byte{0x05, 0x01, 0x00} // version 5, 1 method, no-auth
	if _, err := conn.Write(greeting); err != nil {
		return errors.NewProxyError("socks5-greeting", proxy.Addr, err)
	}

	mode.Suspend()
	reply := make([]byte, 2)
	if _, err := readFull(conn, reply); err != nil {
		return errors.NewProxyError("socks5-greeting-reply", proxy.Addr, err)
	}
	if reply[0] != 0x05 || reply[1] != 0x00 {
		return errors.NewProxyError("socks5-greeting-reply", proxy.Addr,
			fmt.Errorf("unexpected method selection %#v", reply))
	}

	if len(host) > 255 {
		return errors.NewValidationError("socks5 target host name too long")
	}
	req := make([]byte, 0, 7+len(host))
	req = append(req, 0x05, 0x01, 0x00, 0x03, byte(len(host)))
	req = append(req, host...)
	req = append(req, byte(port>>8), byte(port))

	mode.Suspend()
	if _, err := conn.Write(req); err != nil {
		return errors.NewProxyError("socks5-connect", proxy.Addr, err)
	}

	mode.Suspend()
	head := make([]byte, 4)
	if _, err := readFull(conn, head); err != nil {
		return errors.NewProxyError("socks5-connect-reply", proxy.Addr, err)
	}
	if head[1] != 0x00 {
		return errors.NewProxyError("socks5-connect-reply", proxy.Addr,
			fmt.Errorf("socks5 connect failed, reply code %#x", head[1]))
	}

	var addrLen int
	switch head[3] {
	case 0x01:
		addrLen = 4
	case 0x03:
		lenByte := make([]byte, 1)
		if _, err := readFull(conn, lenByte); err != nil {
			return errors.NewProxyError("socks5-connect-reply", proxy.Addr, err)
		}
		addrLen = int(lenByte[0])
	case 0x04:
		addrLen = 16
	default:
		return errors.NewProxyError("socks5-connect-reply", proxy.Addr,
			fmt.Errorf("unknown socks5 address type %#x", head[3]))
	}
	rest := make([]byte, addrLen+2)
	if _, err := readFull(conn, rest); err != nil {
		return errors.NewProxyError("socks5-connect-reply", proxy.Addr, err)
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		if m == 0 && err == nil {
			return n, errors.NewPeerClosedError("socks5-read", nil)
		}
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
