// Package constants defines magic numbers and default values used throughout go-rawhttp
package constants

import "time"

// Connection timeouts and limits
const (
	DefaultIdleTimeout    = 90 * time.Second
	DefaultConnTimeout    = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultPingInterval   = 15 * time.Second
	MaxConnectionIdleTime = 5 * time.Minute
	HealthCheckInterval   = 30 * time.Second
	CleanupInterval       = 30 * time.Second
)

// HTTP/2 limits
const (
	MaxTotalStreams       = 10000
	SettingsAckTimeout    = 10 * time.Second
	DefaultHpackTableSize = 4096

	// H2InitialHeaderTableSize is the header_table_size SETTINGS value the
	// client advertises on connect.
	H2InitialHeaderTableSize = 65535
	// H2InitialWindowSize is the initial_window_size SETTINGS value.
	H2InitialWindowSize = 6291456
	// H2MaxHeaderListSize is the max_header_list_size SETTINGS value.
	H2MaxHeaderListSize = 242144
	// H2EnablePush is the enable_push SETTINGS value; clients never accept
	// server push.
	H2EnablePush = 0
	// H2ConnectionWindowIncrement is the WINDOW_UPDATE increment sent on
	// stream 0 immediately after the client's SETTINGS frame (0x00EF0001).
	H2ConnectionWindowIncrement = 0x00EF0001
	// H2MaxDataFramePayload is the largest payload a single DATA frame may
	// carry before the writer must split it (16 MiB - 1).
	H2MaxDataFramePayload = 16*1024*1024 - 1
	// H2ClientPreface is the literal bytes the client must send before any
	// frame on a freshly-negotiated h2 connection.
	H2ClientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"
)

// HTTP limits
const (
	MaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB
)

// Buffer limits
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024   // 4MB
	MaxRawBufferSize    = 100 * 1024 * 1024 // 100MB cap for raw buffer

	// TLSRecordBufferCapacity is the default capacity for the shared record
	// buffer: the 2^14 plaintext record limit plus the 5-byte record header
	// plus AEAD explicit-nonce/tag overhead.
	TLSRecordBufferCapacity = 16413
	// HTTPBodyBufferCapacity is the default capacity used for HTTP/1.1 and
	// HTTP/2 response assembly buffers.
	HTTPBodyBufferCapacity = 64 * 1024
	// MaxTLSPlaintextRecord is the largest plaintext payload a single TLS
	// record may carry on the wire (2^14 bytes, RFC 5246 §6.2.1).
	MaxTLSPlaintextRecord = 16384
)

// Multipart upload boundary used by BodyKind.Files when the caller does not
// override it. Fixed length matches a long-observed browser fingerprint.
const DefaultMultipartBoundary = "----RawHTTPBoundary7MA4YWxkTrZu0gW"
