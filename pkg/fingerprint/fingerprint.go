// Package fingerprint implements ClientHello templating: the
// three stored byte templates (client_hello, client_key_exchange,
// change_cipher_spec) are each a well-formed TLS record, and this package
// mutates the ClientHello in place — overwriting random, session id, and
// SNI, toggling h2 in ALPN, and stripping TLS 1.3 from supported_versions —
// while keeping every length prefix (record, handshake, extensions block,
// per-extension) consistent after each edit.
package fingerprint

import (
	"encoding/binary"

	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// Extension type codes the mutator needs to locate.
const (
	extServerName       uint16 = 0x0000
	extSupportedVersion uint16 = 0x002b
	extALPN             uint16 = 0x0010
)

const versionTLS13 uint16 = 0x0304

// Template wraps one ClientHello record's raw bytes and exposes the
// mutations a browser-imitating handshake requires. The record bytes are mutable; every method
// re-derives offsets from the current bytes rather than caching them, since
// a resize invalidates any offset at or after the edit.
type Template struct {
	buf []byte
}

// NewTemplate wraps raw ClientHello record bytes (record header + handshake
// header + body) for mutation.
func NewTemplate(raw []byte) *Template {
	t := &Template{buf: append([]byte(nil), raw...)}
	return t
}

// Bytes returns the current (possibly mutated) record bytes.
func (t *Template) Bytes() []byte { return t.buf }

// layout locates the fixed-width prefix fields and the extensions block of
// a ClientHello record.
type layout struct {
	recordLenOff int // 2 bytes
	hsLenOff     int // 3 bytes (uint24)
	randomOff    int // 32 bytes
	sessIDLenOff int
	sessIDOff    int
	sessIDLen    int
	extsLenOff   int // 2 bytes, offset of the extensions-block length field
	extsStart    int
	extsEnd      int
}

func (t *Template) layout() (layout, error) {
	b := t.buf
	if len(b) < 9 {
		return layout{}, errors.NewInvalidHeadSizeError("client hello template", 9, len(b))
	}
	pos := 9 // record header(5) + handshake header(4)
	pos += 2 // client_version
	randomOff := pos
	pos += 32
	if pos >= len(b) {
		return layout{}, errors.NewCurrentlyError("client hello template truncated at session id")
	}
	sessIDLenOff := pos
	sessIDLen := int(b[pos])
	pos++
	sessIDOff := pos
	pos += sessIDLen

	if pos+2 > len(b) {
		return layout{}, errors.NewCurrentlyError("client hello template truncated at cipher suites")
	}
	csLen := int(binary.BigEndian.Uint16(b[pos : pos+2]))
	pos += 2 + csLen

	if pos+1 > len(b) {
		return layout{}, errors.NewCurrentlyError("client hello template truncated at compression methods")
	}
	compLen := int(b[pos])
	pos += 1 + compLen

	l := layout{
		recordLenOff: 3,
		hsLenOff:     6,
		randomOff:    randomOff,
		sessIDLenOff: sessIDLenOff,
		sessIDOff:    sessIDOff,
		sessIDLen:    sessIDLen,
	}

	if pos+2 > len(b) {
		// No extensions block present at all.
		return l, nil
	}
	l.extsLenOff = pos
	extLen := int(binary.BigEndian.Uint16(b[pos : pos+2]))
	l.extsStart = pos + 2
	l.extsEnd = l.extsStart + extLen
	if l.extsEnd > len(b) {
		return layout{}, errors.NewCurrentlyError("client hello template truncated in extensions")
	}
	return l, nil
}

// findExtension returns the byte range of one extension's data (excluding
// its own 4-byte type+length header) within the extensions block.
func findExtension(b []byte, extsStart, extsEnd int, want uint16) (dataOff, dataLen int, ok bool) {
	pos := extsStart
	for pos+4 <= extsEnd {
		typ := binary.BigEndian.Uint16(b[pos : pos+2])
		length := int(binary.BigEndian.Uint16(b[pos+2 : pos+4]))
		dataStart := pos + 4
		if typ == want {
			return dataStart, length, true
		}
		pos = dataStart + length
	}
	return 0, 0, false
}

// SetRandom overwrites the 32-byte client_random field in place.
func (t *Template) SetRandom(random [32]byte) error {
	l, err := t.layout()
	if err != nil {
		return err
	}
	copy(t.buf[l.randomOff:l.randomOff+32], random[:])
	return nil
}

// SetSessionID overwrites the session id field in place. The template's
// stored session id slot must already be 32 bytes, matching the fixed-size
// id captured browser fingerprints use for session-resumption camouflage.
func (t *Template) SetSessionID(id [32]byte) error {
	l, err := t.layout()
	if err != nil {
		return err
	}
	if l.sessIDLen != 32 {
		return errors.NewCurrentlyError("template session id slot is not 32 bytes")
	}
	copy(t.buf[l.sessIDOff:l.sessIDOff+32], id[:])
	return nil
}

// addDelta propagates a byte-count delta into the record length, handshake
// length, and extensions-block length fields after a resize, editing buf in
// place. Offsets before the edit point never shift, so these
// three fixed offsets remain valid regardless of where in the extensions
// block the edit happened.
func addDelta(buf []byte, l layout, delta int) {
	binary.BigEndian.PutUint16(buf[l.recordLenOff:l.recordLenOff+2],
		uint16(int(binary.BigEndian.Uint16(buf[l.recordLenOff:l.recordLenOff+2]))+delta))

	hsLen := uint24(buf[l.hsLenOff : l.hsLenOff+3])
	putUint24(buf[l.hsLenOff:l.hsLenOff+3], uint32(int(hsLen)+delta))

	if l.extsLenOff > 0 {
		binary.BigEndian.PutUint16(buf[l.extsLenOff:l.extsLenOff+2],
			uint16(int(binary.BigEndian.Uint16(buf[l.extsLenOff:l.extsLenOff+2]))+delta))
	}
}

func uint24(b []byte) uint32 { return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]) }
func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// replaceExtensionData splices newData in place of the extension's current
// data, updates that extension's own 2-byte length field, and propagates
// the size delta to every enclosing length prefix.
func (t *Template) replaceExtensionData(extType uint16, newData []byte) error {
	l, err := t.layout()
	if err != nil {
		return err
	}
	dataOff, dataLen, ok := findExtension(t.buf, l.extsStart, l.extsEnd, extType)
	if !ok {
		return errors.NewCurrentlyError("extension not present in template")
	}
	delta := len(newData) - dataLen

	next := make([]byte, 0, len(t.buf)+delta)
	next = append(next, t.buf[:dataOff]...)
	next = append(next, newData...)
	next = append(next, t.buf[dataOff+dataLen:]...)
	t.buf = next

	binary.BigEndian.PutUint16(t.buf[dataOff-2:dataOff], uint16(len(newData)))
	addDelta(t.buf, l, delta)
	return nil
}

// SetSNI overwrites the host name carried in the server_name extension.
func (t *Template) SetSNI(host string) error {
	nameLen := len(host)
	data := make([]byte, 2+1+2+nameLen)
	binary.BigEndian.PutUint16(data[0:2], uint16(1+2+nameLen)) // server_name_list length
	data[2] = 0x00                                             // name_type: host_name
	binary.BigEndian.PutUint16(data[3:5], uint16(nameLen))
	copy(data[5:], host)
	return t.replaceExtensionData(extServerName, data)
}

// SetALPN rewrites the ALPN extension's protocol list to exactly protocols,
// in order. Used both to add and to remove "h2".
func (t *Template) SetALPN(protocols []string) error {
	size := 2
	for _, p := range protocols {
		size += 1 + len(p)
	}
	data := make([]byte, size)
	binary.BigEndian.PutUint16(data[0:2], uint16(size-2))
	pos := 2
	for _, p := range protocols {
		data[pos] = byte(len(p))
		pos++
		copy(data[pos:], p)
		pos += len(p)
	}
	return t.replaceExtensionData(extALPN, data)
}

// ALPNProtocols returns the current ALPN extension's protocol list.
func (t *Template) ALPNProtocols() ([]string, error) {
	l, err := t.layout()
	if err != nil {
		return nil, err
	}
	dataOff, dataLen, ok := findExtension(t.buf, l.extsStart, l.extsEnd, extALPN)
	if !ok {
		return nil, nil
	}
	data := t.buf[dataOff : dataOff+dataLen]
	var protos []string
	pos := 2 // skip list length
	for pos < len(data) {
		n := int(data[pos])
		pos++
		protos = append(protos, string(data[pos:pos+n]))
		pos += n
	}
	return protos, nil
}

// ToggleALPNH2 adds "h2" to the ALPN list (at the front, matching browser
// preference order) when add is true, or removes it when add is false.
func (t *Template) ToggleALPNH2(add bool) error {
	protos, err := t.ALPNProtocols()
	if err != nil {
		return err
	}
	filtered := protos[:0:0]
	for _, p := range protos {
		if p != "h2" {
			filtered = append(filtered, p)
		}
	}
	if add {
		filtered = append([]string{"h2"}, filtered...)
	}
	return t.SetALPN(filtered)
}

// RemoveTLS13 strips TLS 1.3 (0x0304) from the supported_versions extension,
// since the custom TLS engine implements TLS 1.2 only.
func (t *Template) RemoveTLS13() error {
	l, err := t.layout()
	if err != nil {
		return err
	}
	dataOff, dataLen, ok := findExtension(t.buf, l.extsStart, l.extsEnd, extSupportedVersion)
	if !ok {
		return nil // nothing to strip
	}
	data := t.buf[dataOff : dataOff+dataLen]
	var kept []byte
	for i := 1; i+2 <= len(data); i += 2 {
		v := binary.BigEndian.Uint16(data[i : i+2])
		if v != versionTLS13 {
			kept = append(kept, data[i], data[i+1])
		}
	}
	newData := make([]byte, 1+len(kept))
	newData[0] = byte(len(kept))
	copy(newData[1:], kept)
	return t.replaceExtensionData(extSupportedVersion, newData)
}
