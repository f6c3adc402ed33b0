// Package client implements the request controller: the
// single stateful object callers drive through set_url/set_headers_json/
// insert_header/set_data-family/set_proxy/set_alpn/set_fingerprint/
// set_timeout and the get/post/put/delete/head/options/trace verbs, wiring
// together weburl, header, cookiejar, fingerprint, tlsstream, h2frame,
// hpackcodec, and respassembler into one request cycle.
package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/corvaxnet/rawhttp/pkg/cookiejar"
	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/fingerprint"
	"github.com/corvaxnet/rawhttp/pkg/h2frame"
	"github.com/corvaxnet/rawhttp/pkg/header"
	"github.com/corvaxnet/rawhttp/pkg/hpackcodec"
	"github.com/corvaxnet/rawhttp/pkg/respassembler"
	"github.com/corvaxnet/rawhttp/pkg/timeoutpolicy"
	"github.com/corvaxnet/rawhttp/pkg/timing"
	"github.com/corvaxnet/rawhttp/pkg/tlsconn"
	"github.com/corvaxnet/rawhttp/pkg/tlsstream"
	"github.com/corvaxnet/rawhttp/pkg/transport"
	"github.com/corvaxnet/rawhttp/pkg/weburl"
)

// Config carries the construction-time settings that rarely change across
// a controller's lifetime; everything else (url, headers, body, proxy,
// ALPN, fingerprint, timeouts) is mutated at runtime through the operations
// below, matching a mutable-controller shape.
type Config struct {
	// Mode selects the blocking or cooperative suspension discipline every
	// socket operation goes through. Defaults to transport.Blocking{}.
	Mode transport.IOMode
	// Policy holds the connect/handle timeout and retry budgets. Defaults
	// to timeoutpolicy.Default().
	Policy timeoutpolicy.Policy
}

// Controller is the engine's request controller: one target URL, one
// ordered header list, one body, one cookie jar, and at most one live
// connection (plaintext, TLS/HTTP-1.1, or TLS/HTTP-2) at a time.
type Controller struct {
	mode   transport.IOMode
	policy timeoutpolicy.Policy

	url     *weburl.Url
	headers *header.List
	body    body
	jar     *cookiejar.Jar

	proxy          *transport.ProxyConfig
	alpnPreference []string
	templateBytes  []byte
	groups         []tlsconn.NamedGroup

	rawConn        net.Conn
	tlsStream      *tlsstream.Stream
	rw             rwStream
	negotiatedALPN string
	connected      bool

	h2       *h2frame.Conn
	hpackEnc *hpackcodec.Encoder
	hpackDec *hpackcodec.Decoder
	streamID uint32
}

// rwStream is the minimal surface Send needs regardless of whether the
// transport is plaintext or an established TLS stream.
type rwStream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// New returns a Controller ready for SetURL.
func New(cfg Config) *Controller {
	mode := cfg.Mode
	if mode == nil {
		mode = transport.Blocking{}
	}
	policy := cfg.Policy
	if (policy == timeoutpolicy.Policy{}) {
		policy = timeoutpolicy.Default()
	}
	return &Controller{
		mode:    mode,
		policy:  policy,
		headers: header.NewList(),
		jar:     cookiejar.New(),
	}
}

// SetURL points the controller at a new target. A host change clears the
// current body, updates the Host header, and drops the
// live connection so the next call reconnects; an unchanged host keeps the
// TLS session and negotiated ALPN.
func (c *Controller) SetURL(raw string) error {
	u, err := weburl.Parse(raw)
	if err != nil {
		return err
	}
	hostChanged := c.url == nil || !sameOrigin(c.url, u)
	c.url = u
	c.headers.Set("host", header.String(u.HostHeader()))
	if hostChanged {
		c.body.clear()
		c.disconnect()
	}
	return nil
}

func sameOrigin(a, b *weburl.Url) bool {
	return a.Protocol == b.Protocol && a.Addr.Host == b.Addr.Host && a.ResolvedPort() == b.ResolvedPort()
}

// SetProxy installs (or clears, if cfg is nil) the upstream proxy the
// controller tunnels through. Changing it invalidates the live connection.
func (c *Controller) SetProxy(cfg *transport.ProxyConfig) {
	c.proxy = cfg
	c.disconnect()
}

// SetALPN sets the ALPN protocol preference offered during the next TLS
// handshake, in order. Changing it invalidates the live connection.
func (c *Controller) SetALPN(protocols []string) {
	c.alpnPreference = append([]string(nil), protocols...)
	c.disconnect()
}

// SetFingerprint installs a raw ClientHello template (record header +
// handshake header + body) the next TLS handshake mutates in place.
// Changing it invalidates the live connection.
func (c *Controller) SetFingerprint(raw []byte) {
	c.templateBytes = append([]byte(nil), raw...)
	c.disconnect()
}

// SetFingerprintJA3 builds a synthetic ClientHello template from a
// canonical JA3 string and installs it the same way
// SetFingerprint does.
func (c *Controller) SetFingerprintJA3(ja3 string) error {
	tpl, err := fingerprint.FromJA3(ja3)
	if err != nil {
		return err
	}
	c.templateBytes = tpl.Bytes()
	c.disconnect()
	return nil
}

// SetGroups sets the named groups the TLS handshake accepts in the server's
// key exchange; the ClientHello template itself is not rewritten. Changing
// it invalidates the live connection.
func (c *Controller) SetGroups(groups []tlsconn.NamedGroup) {
	c.groups = append([]tlsconn.NamedGroup(nil), groups...)
	c.disconnect()
}

// SetTimeout replaces the connect/handle timeout and retry policy.
func (c *Controller) SetTimeout(policy timeoutpolicy.Policy) {
	c.policy = policy
}

// disconnect closes any live connection and resets per-connection state
// (HPACK tables, stream id counter, negotiated ALPN).
func (c *Controller) disconnect() {
	if c.tlsStream != nil {
		c.tlsStream.Close()
	}
	if c.rawConn != nil {
		c.rawConn.Close()
	}
	c.tlsStream = nil
	c.rawConn = nil
	c.rw = nil
	c.h2 = nil
	c.hpackEnc = nil
	c.hpackDec = nil
	c.connected = false
	c.negotiatedALPN = ""
	c.streamID = 0
}

func (c *Controller) ensureConnected(ctx context.Context, timer *timing.Timer) error {
	if c.connected {
		return nil
	}
	if c.url == nil {
		return errors.NewValidationError("request url not set")
	}
	attempt := c.policy.NewConnectAttempt()
	for {
		err := c.connectOnce(ctx, attempt.Budget(), timer)
		if err == nil {
			c.connected = true
			return nil
		}
		c.disconnect()
		if !attempt.Fail(err) {
			return attempt.Exhausted()
		}
	}
}

func (c *Controller) connectOnce(ctx context.Context, budget time.Duration, timer *timing.Timer) error {
	dialCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	target := net.JoinHostPort(c.url.Addr.Host, strconv.Itoa(c.url.ResolvedPort()))

	timer.StartTCP()
	conn, err := transport.Dial(dialCtx, c.mode, target, c.proxy)
	timer.EndTCP()
	if err != nil {
		return err
	}
	c.rawConn = conn

	if c.url.IsTLS() {
		if len(c.templateBytes) == 0 {
			conn.Close()
			return errors.NewValidationError("tls fingerprint template not set; call SetFingerprint or SetFingerprintJA3")
		}
		tpl := fingerprint.NewTemplate(c.templateBytes)
		if len(c.alpnPreference) > 0 {
			if err := tpl.SetALPN(c.alpnPreference); err != nil {
				conn.Close()
				return err
			}
		}
		groups := c.groups
		if len(groups) == 0 {
			groups = []tlsconn.NamedGroup{tlsconn.GroupX25519, tlsconn.GroupSecp256r1}
		}

		timer.StartTLS()
		stream, err := tlsstream.Handshake(conn, c.mode, tlsstream.Config{
			ServerName: c.url.Addr.Host,
			Template:   tpl,
			Groups:     groups,
		})
		timer.EndTLS()
		if err != nil {
			conn.Close()
			return err
		}
		c.tlsStream = stream
		c.rw = stream
		c.negotiatedALPN = stream.NegotiatedALPN()
	} else {
		c.rw = conn
		c.negotiatedALPN = "http/1.1"
	}

	if c.negotiatedALPN == "h2" {
		h2c := h2frame.New(c.rw)
		if err := h2c.SendPreface(h2frame.DefaultSettings()); err != nil {
			conn.Close()
			return err
		}
		c.h2 = h2c
		c.hpackEnc = hpackcodec.NewEncoder()
		c.hpackDec = hpackcodec.NewDecoder()
		c.streamID = 1
	}
	return nil
}

// Send drives one full request cycle: ensure connected,
// build and send the request for the negotiated ALPN, read until the
// response is complete (retrying under the handle timeout, reconnecting
// once on a peer-closed error), merge response cookies into the jar, and
// advance the HTTP/2 stream id.
func (c *Controller) Send(ctx context.Context, method string) (*respassembler.Response, error) {
	if c.url == nil {
		return nil, errors.NewValidationError("request url not set")
	}
	timer := timing.NewTimer()
	if err := c.ensureConnected(ctx, timer); err != nil {
		return nil, err
	}

	attempt := c.policy.NewHandleAttempt()
	reconnectedOnce := false
	for {
		resp, err := c.sendOnce(method, attempt.Budget(), timer)
		if err == nil {
			resp.NegotiatedALPN = c.negotiatedALPN
			resp.Timing = timer.GetMetrics()
			if addr, ok := c.rawConn.RemoteAddr().(*net.TCPAddr); ok {
				resp.ConnectedIP = addr.IP.String()
				resp.ConnectedPort = addr.Port
			}
			c.afterSuccess(resp)
			return resp, nil
		}
		if errors.IsPeerClosed(err) && !reconnectedOnce {
			reconnectedOnce = true
			c.disconnect()
			if err2 := c.ensureConnected(ctx, timer); err2 != nil {
				return nil, err2
			}
			continue
		}
		if !attempt.Fail(err) {
			return nil, attempt.Exhausted()
		}
	}
}

func (c *Controller) sendOnce(method string, budget time.Duration, timer *timing.Timer) (*respassembler.Response, error) {
	if err := c.rawConn.SetDeadline(time.Now().Add(budget)); err != nil {
		return nil, errors.NewIOError("setting handle deadline", err)
	}
	defer c.rawConn.SetDeadline(time.Time{})

	c.applyCookieHeader()

	var resp *respassembler.Response
	var err error
	if c.negotiatedALPN == "h2" {
		resp, err = c.sendOnceH2(method, timer)
	} else {
		resp, err = c.sendOnceH1(method, timer)
	}
	if err != nil {
		if errors.IsTimeoutError(err) {
			return nil, errors.NewTimeoutError("handle", budget)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Controller) applyCookieHeader() {
	cookies := c.jar.All()
	if len(cookies) == 0 {
		return
	}
	crumbs := make([]string, len(cookies))
	for i, ck := range cookies {
		crumbs[i] = ck.RequestForm()
	}
	c.headers.Set("cookie", header.Cookies(crumbs))
}

func (c *Controller) afterSuccess(resp *respassembler.Response) {
	var setCookies []string
	for _, h := range resp.Headers {
		if strings.EqualFold(h.Name, "set-cookie") {
			setCookies = append(setCookies, h.Value)
		}
	}
	c.jar.MergeSetCookies(setCookies)
	if c.negotiatedALPN == "h2" {
		c.streamID += 2
	}
}

// Get, Post, Put, Delete, Head, Options, and Trace each drive one request
// cycle for their verb using the controller's current URL/headers/body.
func (c *Controller) Get(ctx context.Context) (*respassembler.Response, error) {
	return c.Send(ctx, "GET")
}
func (c *Controller) Post(ctx context.Context) (*respassembler.Response, error) {
	return c.Send(ctx, "POST")
}
func (c *Controller) Put(ctx context.Context) (*respassembler.Response, error) {
	return c.Send(ctx, "PUT")
}
func (c *Controller) Delete(ctx context.Context) (*respassembler.Response, error) {
	return c.Send(ctx, "DELETE")
}
func (c *Controller) Head(ctx context.Context) (*respassembler.Response, error) {
	return c.Send(ctx, "HEAD")
}
func (c *Controller) Options(ctx context.Context) (*respassembler.Response, error) {
	return c.Send(ctx, "OPTIONS")
}
func (c *Controller) Trace(ctx context.Context) (*respassembler.Response, error) {
	return c.Send(ctx, "TRACE")
}

// SendCheck drives one request cycle for method and turns a response
// status in [400, 600) into a Status error.
func (c *Controller) SendCheck(ctx context.Context, method string) (*respassembler.Response, error) {
	resp, err := c.Send(ctx, method)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 600 {
		return resp, errors.NewStatusError(resp.StatusCode, resp.StatusLine)
	}
	return resp, nil
}

// SendCheckJSON drives one request cycle for method, decodes the response
// body as a flat JSON object, and succeeds only if body[key] equals want.
// On mismatch it checks errorKeys in order and, if one is present in the
// body, folds its value into the returned error.
func (c *Controller) SendCheckJSON(ctx context.Context, method, key, want string, errorKeys []string) (*respassembler.Response, map[string]any, error) {
	resp, err := c.Send(ctx, method)
	if err != nil {
		return nil, nil, err
	}
	var parsed map[string]any
	if err := resp.JSON(&parsed); err != nil {
		return resp, nil, err
	}
	if got, ok := parsed[key]; ok && fmt.Sprint(got) == want {
		return resp, parsed, nil
	}
	for _, ek := range errorKeys {
		if v, ok := parsed[ek]; ok {
			return resp, parsed, errors.NewCurrentlyError(fmt.Sprintf("%s: %v", ek, v))
		}
	}
	return resp, parsed, errors.NewCurrentlyError(fmt.Sprintf("expected %s=%s, got %v", key, want, parsed[key]))
}
