// Package rawhttp provides a low-level HTTP client library for Go that
// speaks TLS and HTTP/1.1/HTTP/2 at the wire level, imitating a specific
// browser's ClientHello, header ordering, and framing instead of Go's own
// net/http stack.
package rawhttp

import (
	"github.com/corvaxnet/rawhttp/pkg/client"
	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/respassembler"
	"github.com/corvaxnet/rawhttp/pkg/timeoutpolicy"
	"github.com/corvaxnet/rawhttp/pkg/timing"
	"github.com/corvaxnet/rawhttp/pkg/tlsconn"
	"github.com/corvaxnet/rawhttp/pkg/transport"
)

// Version is the current version of the rawhttp library.
const Version = "3.0.0"

// GetVersion returns the current version of the library.
func GetVersion() string { return Version }

// Re-export the controller's public surface so callers only need to import
// this package.
type (
	// Config controls a Controller's IO mode and timeout policy.
	Config = client.Config

	// Controller is the request controller: one URL, one header list, one
	// body, one cookie jar, and at most one live connection.
	Controller = client.Controller

	// Response is a fully-assembled HTTP response.
	Response = respassembler.Response

	// File describes one multipart file field for SetFiles/AddFile.
	File = client.File

	// FormField is one name/value pair for SetData's form-urlencoded body.
	FormField = client.FormField

	// ProxyConfig describes an upstream proxy hop.
	ProxyConfig = transport.ProxyConfig

	// TimeoutPolicy holds the connect/handle timeout and retry budgets.
	TimeoutPolicy = timeoutpolicy.Policy

	// Metrics captures per-phase connection timing for a request.
	Metrics = timing.Metrics

	// NamedGroup identifies a TLS key-exchange curve.
	NamedGroup = tlsconn.NamedGroup

	// Error is the library's structured error type.
	Error = errors.Error
)

// Re-export error type constants for convenience.
const (
	ErrorTypeDNS        = errors.ErrorTypeDNS
	ErrorTypeConnection = errors.ErrorTypeConnection
	ErrorTypeTLS        = errors.ErrorTypeTLS
	ErrorTypeTimeout    = errors.ErrorTypeTimeout
	ErrorTypeProtocol   = errors.ErrorTypeProtocol
	ErrorTypeIO         = errors.ErrorTypeIO
	ErrorTypeValidation = errors.ErrorTypeValidation
	ErrorTypeProxy      = errors.ErrorTypeProxy
	ErrorTypePeerClosed = errors.ErrorTypePeerClosed
	ErrorTypeStatus     = errors.ErrorTypeStatus
)

// Named groups offered during the TLS key exchange.
const (
	GroupX25519    = tlsconn.GroupX25519
	GroupSecp256r1 = tlsconn.GroupSecp256r1
)

// New returns a Controller ready for SetURL, SetFingerprint, and the
// get/post/... verbs.
func New(cfg Config) *Controller {
	return client.New(cfg)
}

// DefaultTimeoutPolicy returns the policy a Controller uses until
// SetTimeout overrides it.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return timeoutpolicy.Default()
}

// IsTimeoutError reports whether err is a timeout: a Timeout-typed *Error, a
// net.Error whose Timeout() is true, or (possibly wrapped)
// context.DeadlineExceeded.
func IsTimeoutError(err error) bool { return errors.IsTimeoutError(err) }

// IsPeerClosed reports whether err is (or wraps) a peer-closed-connection
// error (socket EOF, TLS close_notify, or HTTP/2 GOAWAY).
func IsPeerClosed(err error) bool { return errors.IsPeerClosed(err) }

// IsTemporaryError reports whether err is transient and worth retrying.
func IsTemporaryError(err error) bool { return errors.IsTemporaryError(err) }

// GetErrorType returns the error's category, or "" if err isn't one of the
// library's structured errors.
func GetErrorType(err error) string { return string(errors.GetErrorType(err)) }
