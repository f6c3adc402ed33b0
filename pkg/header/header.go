// Package header implements the ordered header list a browser-imitating client needs:
// insertion preserves a fixed browser-observed order for the initial set of
// well-known names, later inserts append, and the HTTP/2 field list leaves
// out the connection, host and content-length headers.
package header

import (
	"strconv"
	"strings"
)

// H1Order is the exact header order an imitated browser emits on HTTP/1.1,
// before any request-specific header is appended past it.
var H1Order = []string{
	"accept", "accept-encoding", "accept-language", "cache-control",
	"connection", "cookie", "host", "pragma", "referer",
	"sec-fetch-dest", "sec-fetch-mode", "sec-fetch-site", "sec-fetch-user",
	"upgrade-insecure-requests", "user-agent", "sec-ch-ua",
	"sec-ch-ua-mobile", "sec-ch-ua-platform", "content-length",
}

// Value is one header's sum-typed value ("HeaderValue"):
// strings, booleans, and numbers render distinctly, Cookies joins with
// "; ", and ContentType is a plain passthrough kept as its own kind only
// so callers can express intent clearly.
type Value struct {
	kind    valueKind
	str     string
	boolean bool
	number  int64
	cookies []string
}

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindNumber
	kindContentType
	kindCookies
)

func String(s string) Value      { return Value{kind: kindString, str: s} }
func Bool(b bool) Value          { return Value{kind: kindBool, boolean: b} }
func Number(n int64) Value       { return Value{kind: kindNumber, number: n} }
func ContentType(s string) Value { return Value{kind: kindContentType, str: s} }
func Cookies(vals []string) Value {
	return Value{kind: kindCookies, cookies: append([]string(nil), vals...)}
}

// Render returns the header value as it appears on the wire, or ok=false if
// the entry serializes to nothing and must be dropped (the emission
// rule: drop empty-serializing entries).
func (v Value) Render() (s string, ok bool) {
	switch v.kind {
	case kindString, kindContentType:
		return v.str, v.str != ""
	case kindBool:
		if !v.boolean {
			return "", false
		}
		return "1", true
	case kindNumber:
		return strconv.FormatInt(v.number, 10), true
	case kindCookies:
		if len(v.cookies) == 0 {
			return "", false
		}
		return strings.Join(v.cookies, "; "), true
	}
	return "", false
}

// entry is one name/value pair in insertion order.
type entry struct {
	name  string
	value Value
}

// List is an ordered header collection: insert-by-name updates the
// existing slot in place, otherwise appends.
type List struct {
	entries []entry
	index   map[string]int
}

// NewList returns a List pre-seeded with H1Order's names in order, each
// holding an empty (and therefore non-emitting) value — matching the
// "initial order preserved" contract without requiring every name be set.
func NewList() *List {
	l := &List{index: make(map[string]int, len(H1Order))}
	for _, name := range H1Order {
		l.entries = append(l.entries, entry{name: name, value: String("")})
		l.index[name] = len(l.entries) - 1
	}
	return l
}

// Set inserts or updates name's value in place, preserving its original
// position if it already exists.
func (l *List) Set(name string, v Value) {
	name = strings.ToLower(name)
	if i, ok := l.index[name]; ok {
		l.entries[i].value = v
		return
	}
	l.entries = append(l.entries, entry{name: name, value: v})
	l.index[name] = len(l.entries) - 1
}

// Remove deletes name and returns its prior rendered value, if any.
func (l *List) Remove(name string) (string, bool) {
	name = strings.ToLower(name)
	i, ok := l.index[name]
	if !ok {
		return "", false
	}
	prior, hadValue := l.entries[i].value.Render()
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	delete(l.index, name)
	for n, idx := range l.index {
		if idx > i {
			l.index[n] = idx - 1
		}
	}
	return prior, hadValue
}

// Get returns name's current rendered value.
func (l *List) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	i, ok := l.index[name]
	if !ok {
		return "", false
	}
	return l.entries[i].value.Render()
}

// RenderH1 emits "Name: value\r\n" lines in insertion order, dropping
// entries whose value serializes to nothing.
func (l *List) RenderH1() string {
	var b strings.Builder
	for _, e := range l.entries {
		rendered, ok := e.value.Render()
		if !ok {
			continue
		}
		b.WriteString(canonicalH1Name(e.name))
		b.WriteString(": ")
		b.WriteString(rendered)
		b.WriteString("\r\n")
	}
	return b.String()
}

// H2Fields returns the (name, value) pairs to hand to the HPACK encoder,
// in order, with :method/:authority/:scheme/:path pseudo-headers first
// dropping connection/host/content-length, and splitting a
// Cookies value into one HPACK field per cookie as real browsers do.
func (l *List) H2Fields(method, authority, scheme, path string) [][2]string {
	fields := [][2]string{
		{":method", method},
		{":authority", authority},
		{":scheme", scheme},
		{":path", path},
	}
	for _, e := range l.entries {
		if e.name == "host" || e.name == "connection" || e.name == "content-length" {
			continue
		}
		if e.value.kind == kindCookies {
			for _, c := range e.value.cookies {
				if c != "" {
					fields = append(fields, [2]string{"cookie", c})
				}
			}
			continue
		}
		rendered, ok := e.value.Render()
		if !ok {
			continue
		}
		fields = append(fields, [2]string{e.name, rendered})
	}
	return fields
}

func canonicalH1Name(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}
