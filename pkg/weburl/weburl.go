// Package weburl implements the engine's own URL type: scheme, host:port,
// path, and an order-preserving query-parameter list.
// It is deliberately separate from net/url because parameter order and
// in-place update-by-name are load-bearing for browser-fingerprint fidelity,
// not incidental.
package weburl

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// DefaultPorts maps a scheme to the port implied when none is given.
var DefaultPorts = map[string]int{
	"http":   80,
	"https":  443,
	"ws":     80,
	"wss":    443,
	"socks5": 1080,
	"trojan": 443,
}

// Addr is a resolved host and port pair.
type Addr struct {
	Host string
	Port int // 0 means "apply protocol default"
}

// Param is one ordered (name, value) query parameter. Values are stored
// decoded; percent-encoding happens only at emission time.
type Param struct {
	Name  string
	Value string
}

// Uri is the path plus an ordered list of query parameters.
type Uri struct {
	Path   string
	Params []Param
}

// Url is the engine's parsed request target.
type Url struct {
	Protocol string
	Addr     Addr
	Uri      Uri
}

// Parse parses "<scheme>://<host>[:<port>][<path>][?<k=v(&k=v)*>]".
// A missing path becomes "/"; a missing port is recorded as 0 (apply the
// protocol default at emission/connect time).
func Parse(raw string) (*Url, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.NewCurrentlyError("invalid URL: " + err.Error())
	}
	if u.Scheme == "" {
		return nil, errors.NewCurrentlyError("URL missing scheme: " + raw)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss", "socks5", "trojan":
	default:
		return nil, errors.NewCurrentlyError("unsupported URL scheme: " + u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, errors.NewCurrentlyError("URL missing host: " + raw)
	}

	port := 0
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 65535 {
			return nil, errors.NewCurrentlyError("invalid URL port: " + p)
		}
		port = n
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	params, err := parseQuery(u.RawQuery)
	if err != nil {
		return nil, err
	}

	return &Url{
		Protocol: u.Scheme,
		Addr:     Addr{Host: host, Port: port},
		Uri:      Uri{Path: path, Params: params},
	}, nil
}

func parseQuery(raw string) ([]Param, error) {
	if raw == "" {
		return nil, nil
	}
	var params []Param
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		name, err := url.QueryUnescape(kv[0])
		if err != nil {
			return nil, errors.NewCurrentlyError("invalid query parameter name: " + kv[0])
		}
		value := ""
		if len(kv) == 2 {
			value, err = url.QueryUnescape(kv[1])
			if err != nil {
				return nil, errors.NewCurrentlyError("invalid query parameter value: " + kv[1])
			}
		}
		params = append(params, Param{Name: name, Value: value})
	}
	return params, nil
}

// ResolvedPort returns Addr.Port, or the scheme's default when Port is zero.
func (u *Url) ResolvedPort() int {
	if u.Addr.Port != 0 {
		return u.Addr.Port
	}
	return DefaultPorts[u.Protocol]
}

// SetParam inserts name=value, updating an existing entry in place or
// appending a new one, preserving insertion order either way.
func (u *Url) SetParam(name, value string) {
	for i := range u.Uri.Params {
		if u.Uri.Params[i].Name == name {
			u.Uri.Params[i].Value = value
			return
		}
	}
	u.Uri.Params = append(u.Uri.Params, Param{Name: name, Value: value})
}

// RemoveParam deletes the named parameter, returning its prior value and
// whether it was present.
func (u *Url) RemoveParam(name string) (prior string, existed bool) {
	for i := range u.Uri.Params {
		if u.Uri.Params[i].Name == name {
			prior = u.Uri.Params[i].Value
			u.Uri.Params = append(u.Uri.Params[:i], u.Uri.Params[i+1:]...)
			return prior, true
		}
	}
	return "", false
}

// Param returns the value for name and whether it exists.
func (u *Url) Param(name string) (string, bool) {
	for _, p := range u.Uri.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// String emits the canonical form: the port is elided when it equals the
// scheme default (or is unset), and the '?' is elided when there are no
// parameters.
func (u *Url) String() string {
	var b strings.Builder
	b.WriteString(u.Protocol)
	b.WriteString("://")
	b.WriteString(u.Addr.Host)
	if u.Addr.Port != 0 && u.Addr.Port != DefaultPorts[u.Protocol] {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.Addr.Port))
	}
	path := u.Uri.Path
	if path == "" {
		path = "/"
	}
	b.WriteString(path)
	if len(u.Uri.Params) > 0 {
		b.WriteByte('?')
		for i, p := range u.Uri.Params {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(p.Name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(p.Value))
		}
	}
	return b.String()
}

// HostHeader returns the value to send as the Host header / :authority
// pseudo-header: host, plus ":port" when the port is explicit and
// non-default.
func (u *Url) HostHeader() string {
	if u.Addr.Port != 0 && u.Addr.Port != DefaultPorts[u.Protocol] {
		return u.Addr.Host + ":" + strconv.Itoa(u.Addr.Port)
	}
	return u.Addr.Host
}

// IsTLS reports whether the scheme implies a TLS connection.
func (u *Url) IsTLS() bool {
	switch u.Protocol {
	case "https", "wss", "trojan":
		return true
	default:
		return false
	}
}
