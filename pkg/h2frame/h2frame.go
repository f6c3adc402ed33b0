// Package h2frame implements the HTTP/2 frame layer on top of
// golang.org/x/net/http2's Framer: the client preface, the SETTINGS and
// WINDOW_UPDATE handshake, HEADERS send, HEADERS+CONTINUATION aggregation
// on receive, and DATA frame splitting at the 16MiB-1 payload limit.
package h2frame

import (
	"io"

	"golang.org/x/net/http2"

	"github.com/corvaxnet/rawhttp/pkg/constants"
	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// Conn wraps an http2.Framer with the preface and window-increment
// conventions this engine's imitated browsers use.
type Conn struct {
	framer *http2.Framer
	rw     io.ReadWriter
}

// New wraps rw's frame layer. The caller is responsible for having already
// completed the TLS handshake and ALPN negotiation down to "h2".
func New(rw io.ReadWriter) *Conn {
	framer := http2.NewFramer(rw, rw)
	framer.MaxHeaderListSize = constants.H2MaxHeaderListSize
	return &Conn{framer: framer, rw: rw}
}

// SendPreface writes the fixed client connection preface, then a SETTINGS
// frame and a connection-level WINDOW_UPDATE, matching the imitated browser's
// handshake order.
func (c *Conn) SendPreface(settings []http2.Setting) error {
	if _, err := io.WriteString(c.rw, constants.H2ClientPreface); err != nil {
		return errors.NewIOError("writing http/2 client preface", err)
	}
	if err := c.framer.WriteSettings(settings...); err != nil {
		return errors.NewIOError("writing initial settings frame", err)
	}
	if err := c.framer.WriteWindowUpdate(0, constants.H2ConnectionWindowIncrement); err != nil {
		return errors.NewIOError("writing initial window update", err)
	}
	return nil
}

// DefaultSettings mirrors the SETTINGS values named for
// fingerprint fidelity.
func DefaultSettings() []http2.Setting {
	return []http2.Setting{
		{ID: http2.SettingHeaderTableSize, Val: constants.H2InitialHeaderTableSize},
		{ID: http2.SettingEnablePush, Val: constants.H2EnablePush},
		{ID: http2.SettingInitialWindowSize, Val: constants.H2InitialWindowSize},
		{ID: http2.SettingMaxHeaderListSize, Val: constants.H2MaxHeaderListSize},
	}
}

// WriteHeaders sends a single HEADERS frame carrying a pre-encoded HPACK
// block, with END_HEADERS and, if endStream, END_STREAM set. The block is
// never split into CONTINUATION frames.
func (c *Conn) WriteHeaders(streamID uint32, headerBlock []byte, endStream bool) error {
	return c.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: headerBlock,
		EndHeaders:    true,
		EndStream:     endStream,
	})
}

// WriteData splits payload into chunks no larger than
// constants.H2MaxDataFramePayload and writes one DATA frame per chunk, the
// last one carrying END_STREAM if endStream is set.
func (c *Conn) WriteData(streamID uint32, payload []byte, endStream bool) error {
	if len(payload) == 0 {
		return c.framer.WriteData(streamID, endStream, nil)
	}
	for offset := 0; offset < len(payload); offset += constants.H2MaxDataFramePayload {
		end := offset + constants.H2MaxDataFramePayload
		if end > len(payload) {
			end = len(payload)
		}
		last := end == len(payload)
		if err := c.framer.WriteData(streamID, last && endStream, payload[offset:end]); err != nil {
			return errors.NewIOError("writing data frame", err)
		}
	}
	return nil
}

// ReadFrame reads the next frame from the connection.
func (c *Conn) ReadFrame() (http2.Frame, error) {
	f, err := c.framer.ReadFrame()
	if err != nil {
		return nil, errors.NewIOError("reading http/2 frame", err)
	}
	return f, nil
}

// WriteSettingsAck acknowledges a peer SETTINGS frame.
func (c *Conn) WriteSettingsAck() error {
	return c.framer.WriteSettingsAck()
}

// WriteWindowUpdate sends a WINDOW_UPDATE for the given stream (0 = connection).
func (c *Conn) WriteWindowUpdate(streamID, increment uint32) error {
	return c.framer.WriteWindowUpdate(streamID, increment)
}

// HeaderAggregator accumulates a HEADERS frame plus any CONTINUATION
// frames into one HPACK input block, per the H2 response assembly
// rule.
type HeaderAggregator struct {
	block     []byte
	streamID  uint32
	endStream bool
	done      bool
}

// Feed appends one HEADERS or CONTINUATION frame's fragment. It returns
// true once END_HEADERS has been seen and the block is complete.
func (a *HeaderAggregator) Feed(f http2.Frame) (complete bool, err error) {
	switch fr := f.(type) {
	case *http2.HeadersFrame:
		a.streamID = fr.StreamID
		a.endStream = fr.StreamEnded()
		a.block = append(a.block, fr.HeaderBlockFragment()...)
		a.done = fr.HeadersEnded()
	case *http2.ContinuationFrame:
		a.block = append(a.block, fr.HeaderBlockFragment()...)
		a.done = fr.HeadersEnded()
	default:
		return false, errors.NewProtocolError("expected HEADERS or CONTINUATION frame", nil)
	}
	return a.done, nil
}

// Block returns the fully-aggregated HPACK input once Feed reports complete.
func (a *HeaderAggregator) Block() []byte { return a.block }

// StreamEnded reports whether the terminal HEADERS frame carried END_STREAM.
func (a *HeaderAggregator) StreamEnded() bool { return a.endStream }
