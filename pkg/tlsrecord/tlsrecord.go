// Package tlsrecord implements TLS 1.2 record-layer framing: the 5-byte
// record header, the handshake sub-message header nested inside a handshake
// record's payload, and the record-type constants the engine understands.
package tlsrecord

import (
	"encoding/binary"

	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// Content types recognized on the wire.
const (
	TypeChangeCipherSpec byte = 0x14
	TypeAlert            byte = 0x15
	TypeHandshake        byte = 0x16
	TypeApplicationData  byte = 0x17
)

// HeaderLen is the fixed size of a TLS record header.
const HeaderLen = 5

// Handshake sub-message types the client parses or emits.
const (
	HSHelloRequest       byte = 0
	HSClientHello        byte = 1
	HSServerHello        byte = 2
	HSCertificate        byte = 11
	HSServerKeyExchange  byte = 12
	HSServerHelloDone    byte = 14
	HSClientKeyExchange  byte = 16
	HSFinished           byte = 20
)

// Header is the parsed 5-byte record header.
type Header struct {
	Type    byte
	Version uint16
	Length  uint16
}

// Record is a fully-framed TLS record: its header plus the raw payload
// bytes. For a handshake record received before the first ChangeCipherSpec,
// Payload holds one or more concatenated handshake sub-messages; after the
// peer's ChangeCipherSpec, every record's Payload is an opaque encrypted
// blob and must not be interpreted as sub-messages.
type Record struct {
	Header  Header
	Payload []byte
}

// ParseHeader reads a record header from the front of buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, errors.NewInvalidHeadSizeError("tls record header", HeaderLen, len(buf))
	}
	return Header{
		Type:    buf[0],
		Version: binary.BigEndian.Uint16(buf[1:3]),
		Length:  binary.BigEndian.Uint16(buf[3:5]),
	}, nil
}

// Parse attempts to parse one full record (header + payload) from the front
// of buf. It returns the record and the number of bytes consumed. An
// incomplete header reports InvalidHeadSize; an incomplete body reports a
// Currently error ("record body not enough"), so the caller
// can distinguish "need more header bytes" from "need more body bytes" when
// deciding how much more to read.
func Parse(buf []byte) (*Record, int, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	total := HeaderLen + int(hdr.Length)
	if len(buf) < total {
		return nil, 0, errors.NewCurrentlyError("record body not enough")
	}
	return &Record{Header: hdr, Payload: buf[HeaderLen:total]}, total, nil
}

// Serialize renders a record's header and payload back to wire bytes. The
// header's Length is recomputed from len(Payload), so a Record round-tripped
// through Parse then Serialize without payload mutation reproduces the
// original bytes exactly.
func (r *Record) Serialize() []byte {
	out := make([]byte, HeaderLen+len(r.Payload))
	out[0] = r.Header.Type
	binary.BigEndian.PutUint16(out[1:3], r.Header.Version)
	binary.BigEndian.PutUint16(out[3:5], uint16(len(r.Payload)))
	copy(out[HeaderLen:], r.Payload)
	return out
}

// HandshakeMessage is one sub-message found inside a handshake record's
// payload: a 1-byte type and a 3-byte (uint24) length prefix, called out
// explicitly because it does not match any fixed-width Go integer.
type HandshakeMessage struct {
	Type byte
	Body []byte
	// Raw holds the type+length+body bytes exactly as they must be fed into
	// the transcript hash ("the raw handshake sub-message bytes,
	// without the 5-byte record header").
	Raw []byte
}

// SplitHandshakeMessages iterates the handshake sub-messages packed into a
// single handshake record's payload ("a single record's payload
// MAY contain multiple handshake sub-messages").
func SplitHandshakeMessages(payload []byte) ([]HandshakeMessage, error) {
	var msgs []HandshakeMessage
	pos := 0
	for pos < len(payload) {
		if pos+4 > len(payload) {
			return nil, errors.NewInvalidHeadSizeError("handshake sub-message header", 4, len(payload)-pos)
		}
		msgType := payload[pos]
		length := uint24(payload[pos+1 : pos+4])
		end := pos + 4 + int(length)
		if end > len(payload) {
			return nil, errors.NewCurrentlyError("handshake sub-message body not enough")
		}
		msgs = append(msgs, HandshakeMessage{
			Type: msgType,
			Body: payload[pos+4 : end],
			Raw:  payload[pos:end],
		})
		pos = end
	}
	return msgs, nil
}

// BuildHandshakeMessage renders a handshake sub-message's type+length+body
// prefix.
func BuildHandshakeMessage(msgType byte, body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0] = msgType
	putUint24(out[1:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
