// Package hpackcodec wraps golang.org/x/net/http2/hpack's encoder and
// decoder: byte-identical output is not required since HPACK framing
// decisions are inherently non-deterministic. This package's own logic is
// the cookie-splitting-on-encode behavior browsers exhibit and the
// dynamic-table-size-update interaction with the wrapped codec.
package hpackcodec

import (
	"bytes"
	"strings"

	"golang.org/x/net/http2/hpack"

	"github.com/corvaxnet/rawhttp/pkg/constants"
	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// Encoder wraps an hpack.Encoder, splitting a single "cookie" field
// carrying "; "-joined crumbs into one HPACK field per crumb, matching how
// real browsers emit cookies on HTTP/2.
type Encoder struct {
	buf *bytes.Buffer
	enc *hpack.Encoder
}

// NewEncoder returns an Encoder with the dynamic table sized to the
// connection's initial SETTINGS_HEADER_TABLE_SIZE.
func NewEncoder() *Encoder {
	buf := &bytes.Buffer{}
	enc := hpack.NewEncoder(buf)
	enc.SetMaxDynamicTableSize(constants.H2InitialHeaderTableSize)
	return &Encoder{buf: buf, enc: enc}
}

// SetMaxDynamicTableSize applies a dynamic-table-size-update on the next
// encode, honoring a peer's SETTINGS_HEADER_TABLE_SIZE change.
func (e *Encoder) SetMaxDynamicTableSize(v uint32) {
	e.enc.SetMaxDynamicTableSize(v)
}

// Encode writes fields (name, value pairs in caller-determined order) into
// one HPACK block, splitting any "cookie" field on "; " into individual
// crumbs first.
func (e *Encoder) Encode(fields [][2]string) ([]byte, error) {
	e.buf.Reset()
	for _, f := range fields {
		if strings.EqualFold(f[0], "cookie") {
			for _, crumb := range strings.Split(f[1], "; ") {
				if crumb == "" {
					continue
				}
				if err := e.enc.WriteField(hpack.HeaderField{Name: "cookie", Value: crumb}); err != nil {
					return nil, errors.NewProtocolError("hpack encode failed", err)
				}
			}
			continue
		}
		if err := e.enc.WriteField(hpack.HeaderField{Name: strings.ToLower(f[0]), Value: f[1]}); err != nil {
			return nil, errors.NewProtocolError("hpack encode failed", err)
		}
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	return out, nil
}

// Decoder wraps an hpack.Decoder. Cookie crumbs arrive as separate "cookie"
// fields on the wire and are returned as separate fields, one per crumb,
// mirroring the encode side's splitting.
type Decoder struct {
	dec *hpack.Decoder
}

// NewDecoder returns a Decoder with the dynamic table sized to the
// connection's initial SETTINGS_HEADER_TABLE_SIZE. The table-size-update
// policy is permissive: honored when a peer sends one, with no
// aggressive name-only matching heuristics layered on top.
func NewDecoder() *Decoder {
	return &Decoder{dec: hpack.NewDecoder(constants.H2InitialHeaderTableSize, nil)}
}

// SetMaxDynamicTableSize applies a dynamic-table-size-update for decoding.
func (d *Decoder) SetMaxDynamicTableSize(v uint32) {
	d.dec.SetMaxDynamicTableSize(v)
}

// Field is one decoded header, one entry per wire-level HPACK field (a
// split "cookie" crumb decodes to its own Field, not a rejoined value).
type Field struct {
	Name  string
	Value string
}

// Decode parses a complete HPACK block (already aggregated across
// HEADERS+CONTINUATION by pkg/h2frame) into fields, preserving each decoded
// header — including a split "cookie" field — as its own entry in wire
// order.
func (d *Decoder) Decode(block []byte) ([]Field, error) {
	raw, err := d.dec.DecodeFull(block)
	if err != nil {
		return nil, errors.NewProtocolError("hpack decode failed", err)
	}

	fields := make([]Field, 0, len(raw))
	for _, hf := range raw {
		fields = append(fields, Field{Name: hf.Name, Value: hf.Value})
	}
	return fields, nil
}
