// Package cookiejar implements the engine's cookie jar: parsing of request
// and response cookie headers and merge-by-name updates. Domain and path
// scoping is intentionally not enforced — domain and path are stored but
// every cookie in the jar applies to every request on the controller. A
// production rewrite should implement proper RFC 6265 domain/path scoping;
// this is a documented conformance gap.
package cookiejar

import (
	"strconv"
	"strings"
)

// Cookie is one entry in the jar.
type Cookie struct {
	Name     string
	Value    string
	Age      int // seconds; -1 means "session cookie, no Max-Age"
	Domain   string
	Path     string
	Expires  string
	SameSite string
	HTTPOnly bool
	Secure   bool
	// ICPSP marks a cookie carrying an "icpsp" attribute, a vendor-specific
	// internal flag some targets set on first-party session cookies.
	ICPSP bool
}

// RequestForm renders the cookie the way it appears in a request's Cookie
// header: "name=value".
func (c Cookie) RequestForm() string {
	return c.Name + "=" + c.Value
}

// ResponseForm renders the cookie the way a Set-Cookie response header
// would, with attributes separated by "; ".
func (c Cookie) ResponseForm() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Expires != "" {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires)
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String()
}

// Jar holds cookies merged by name: a new cookie with a matching name
// replaces the existing entry.
type Jar struct {
	byName map[string]Cookie
	order  []string // insertion order, for deterministic emission
}

// New returns an empty Jar.
func New() *Jar {
	return &Jar{byName: make(map[string]Cookie)}
}

// Set inserts or replaces a cookie by name.
func (j *Jar) Set(c Cookie) {
	if _, exists := j.byName[c.Name]; !exists {
		j.order = append(j.order, c.Name)
	}
	j.byName[c.Name] = c
}

// Get returns the cookie for name, if present.
func (j *Jar) Get(name string) (Cookie, bool) {
	c, ok := j.byName[name]
	return c, ok
}

// All returns the jar's cookies in insertion order.
func (j *Jar) All() []Cookie {
	out := make([]Cookie, 0, len(j.order))
	for _, name := range j.order {
		out = append(out, j.byName[name])
	}
	return out
}

// RequestHeader renders the jar's cookies as a single Cookie request header
// value: "a=1; b=2".
func (j *Jar) RequestHeader() string {
	cookies := j.All()
	parts := make([]string, len(cookies))
	for i, c := range cookies {
		parts[i] = c.RequestForm()
	}
	return strings.Join(parts, "; ")
}

// ParseRequestHeader parses a request-form Cookie header ("a=1; b=2") and
// merges each pair into the jar by name.
func (j *Jar) ParseRequestHeader(header string) {
	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		j.Set(Cookie{Name: strings.TrimSpace(name), Value: value, Age: -1})
	}
}

// ParseSetCookie parses one Set-Cookie response header value into a Cookie,
// reporting false when the value has no "name=value" pair. It does not
// touch any jar; MergeSetCookies does the merge by name.
func ParseSetCookie(header string) (Cookie, bool) {
	parts := strings.Split(header, ";")
	if len(parts) == 0 {
		return Cookie{}, false
	}
	name, value, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if !ok {
		return Cookie{}, false
	}
	c := Cookie{Name: strings.TrimSpace(name), Value: value, Age: -1}
	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		key, val, _ := strings.Cut(attr, "=")
		switch strings.ToLower(key) {
		case "domain":
			c.Domain = val
		case "path":
			c.Path = val
		case "expires":
			c.Expires = val
		case "max-age":
			if n, err := strconv.Atoi(val); err == nil {
				c.Age = n
			}
		case "samesite":
			c.SameSite = val
		case "secure":
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		case "icpsp":
			c.ICPSP = true
		}
	}
	return c, true
}

// MergeSetCookies parses each Set-Cookie header value in headers and merges
// the resulting cookies into the jar by name.
func (j *Jar) MergeSetCookies(headers []string) {
	for _, h := range headers {
		if c, ok := ParseSetCookie(h); ok {
			j.Set(c)
		}
	}
}
