package fingerprint

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/tlsrecord"
)

// extension types the JA3 builder knows how to fill with real content; any
// other extension type named in the JA3 string is emitted as an empty
// placeholder, since JA3 itself only records extension *presence*, not
// per-extension content.
const (
	extSupportedGroups uint16 = 0x000a
	extECPointFormats  uint16 = 0x000b
)

// FromJA3 builds a synthetic, well-formed ClientHello record from the
// canonical JA3 string "V,Cs,Es,Gs,Fs": TLS version, cipher
// suites, extension types, named groups, and EC point formats, each a
// dash-separated list of decimal values except V.
func FromJA3(ja3 string) (*Template, error) {
	fields := strings.Split(ja3, ",")
	if len(fields) != 5 {
		return nil, errors.NewCurrentlyError("ja3 string must have 5 comma-separated fields")
	}
	version, err := parseUint16(fields[0])
	if err != nil {
		return nil, errors.NewCurrentlyError("ja3: invalid version: " + fields[0])
	}
	ciphers, err := parseUint16List(fields[1])
	if err != nil {
		return nil, errors.NewCurrentlyError("ja3: invalid cipher list: " + fields[1])
	}
	extTypes, err := parseUint16List(fields[2])
	if err != nil {
		return nil, errors.NewCurrentlyError("ja3: invalid extension list: " + fields[2])
	}
	groups, err := parseUint16List(fields[3])
	if err != nil {
		return nil, errors.NewCurrentlyError("ja3: invalid elliptic curve list: " + fields[3])
	}
	pointFormats, err := parseUint8List(fields[4])
	if err != nil {
		return nil, errors.NewCurrentlyError("ja3: invalid ec point format list: " + fields[4])
	}

	body := buildClientHelloBody(version, ciphers, extTypes, groups, pointFormats)
	hsMsg := tlsrecord.BuildHandshakeMessage(tlsrecord.HSClientHello, body)
	rec := &tlsrecord.Record{
		Header:  tlsrecord.Header{Type: tlsrecord.TypeHandshake, Version: 0x0301, Length: uint16(len(hsMsg))},
		Payload: hsMsg,
	}
	return NewTemplate(rec.Serialize()), nil
}

func buildClientHelloBody(version uint16, ciphers, extTypes, groups []uint16, pointFormats []byte) []byte {
	var b []byte
	b = appendUint16(b, version)
	b = append(b, make([]byte, 32)...) // random, filled in later by SetRandom
	b = append(b, 32)                  // session id length
	b = append(b, make([]byte, 32)...) // session id, filled in later

	b = appendUint16(b, uint16(len(ciphers)*2))
	for _, c := range ciphers {
		b = appendUint16(b, c)
	}

	b = append(b, 1, 0x00) // compression methods: length 1, null

	exts := buildExtensions(extTypes, groups, pointFormats)
	b = appendUint16(b, uint16(len(exts)))
	b = append(b, exts...)
	return b
}

func buildExtensions(extTypes, groups []uint16, pointFormats []byte) []byte {
	var out []byte
	for _, typ := range extTypes {
		var data []byte
		switch typ {
		case extSupportedGroups:
			data = appendUint16(nil, uint16(len(groups)*2))
			for _, g := range groups {
				data = appendUint16(data, g)
			}
		case extECPointFormats:
			data = append([]byte{byte(len(pointFormats))}, pointFormats...)
		case extServerName:
			data = []byte{} // filled in later by SetSNI
		case extALPN:
			data = appendUint16(nil, 0) // empty list, filled in later by SetALPN
		default:
			data = []byte{}
		}
		out = appendUint16(out, typ)
		out = appendUint16(out, uint16(len(data)))
		out = append(out, data...)
	}
	return out
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func parseUint16(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	return uint16(n), err
}

func parseUint16List(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	out := make([]uint16, len(parts))
	for i, p := range parts {
		n, err := parseUint16(p)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseUint8List(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	out := make([]byte, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(n)
	}
	return out, nil
}
