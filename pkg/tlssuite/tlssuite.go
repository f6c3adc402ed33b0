// Package tlssuite maps a negotiated TLS 1.2 cipher suite code to its AEAD
// parameters, transcript/PRF hash, and a PRF instance, following the naming
// rule TLS 1.2 cipher negotiation describes: the suite set is closed and
// modeled as a small tagged variant rather than an open-ended plugin
// interface.
package tlssuite

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strings"

	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// AEADKind identifies which AEAD construction a suite uses.
type AEADKind int

const (
	AEADUnknown AEADKind = iota
	AEADAES128GCM
	AEADAES256GCM
	AEADChaCha20Poly1305
)

// HashKind identifies the suite's PRF/transcript hash.
type HashKind int

const (
	HashSHA256 HashKind = iota
	HashSHA384
)

// Suite carries the AEAD and hash parameters implied by a suite's name, per
// an observed browser selection rule: the presence of
// "AES_128_GCM", "AES_256_GCM", or "CHACHA20_POLY1305" in the suite's IANA
// name picks the AEAD; the presence of "SHA384" picks SHA-384, else SHA-256.
type Suite struct {
	Code        uint16
	Name        string
	AEAD        AEADKind
	KeyLen      int
	FixIVLen    int
	ExplicitLen int
	TagLen      int
	Hash        HashKind
}

// registry lists the ECDHE+AEAD suite codes the engine negotiates, matching
// the set ClientHello templates typically advertise. Unknown codes received
// from a peer are rejected rather than guessed at.
var registry = map[uint16]string{
	0xC02B: "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	0xC02C: "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	0xC02F: "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	0xC030: "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	0xCCA8: "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
	0xCCA9: "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
}

// ByCode resolves a cipher suite code to its AEAD/hash parameters.
func ByCode(code uint16) (Suite, error) {
	name, ok := registry[code]
	if !ok {
		return Suite{}, errors.NewCurrentlyError("unsupported cipher suite")
	}
	return fromName(code, name)
}

func fromName(code uint16, name string) (Suite, error) {
	s := Suite{Code: code, Name: name, TagLen: 16}

	switch {
	case strings.Contains(name, "AES_128_GCM"):
		s.AEAD = AEADAES128GCM
		s.KeyLen, s.FixIVLen, s.ExplicitLen = 16, 4, 8
	case strings.Contains(name, "AES_256_GCM"):
		s.AEAD = AEADAES256GCM
		s.KeyLen, s.FixIVLen, s.ExplicitLen = 32, 4, 8
	case strings.Contains(name, "CHACHA20_POLY1305"):
		s.AEAD = AEADChaCha20Poly1305
		s.KeyLen, s.FixIVLen, s.ExplicitLen = 32, 12, 0
	default:
		return Suite{}, errors.NewCurrentlyError("cipher suite has no recognized AEAD: " + name)
	}

	if strings.Contains(name, "SHA384") {
		s.Hash = HashSHA384
	} else {
		s.Hash = HashSHA256
	}
	return s, nil
}

// HashLen returns the digest length of the suite's transcript/PRF hash.
func (s Suite) HashLen() int {
	if s.Hash == HashSHA384 {
		return sha512.Size384
	}
	return sha256.Size
}

// NewHash returns a fresh hash.Hash instance for transcript hashing.
func (s Suite) NewHash() hash.Hash {
	if s.Hash == HashSHA384 {
		return sha512.New384()
	}
	return sha256.New()
}

// PRF implements the TLS 1.2 pseudo-random function:
//
//	A0 = seed
//	Ai = HMAC(secret, A(i-1))
//	out = HMAC(secret, A1||seed) || HMAC(secret, A2||seed) || ...
//
// truncated to length bytes.
func (s Suite) PRF(secret, label, seed []byte, length int) []byte {
	newMAC := func() hash.Hash {
		if s.Hash == HashSHA384 {
			return hmac.New(sha512.New384, secret)
		}
		return hmac.New(sha256.New, secret)
	}

	labelSeed := append(append([]byte(nil), label...), seed...)

	a := labelSeed
	out := make([]byte, 0, length)
	for len(out) < length {
		mac := newMAC()
		mac.Write(a)
		a = mac.Sum(nil)

		mac2 := newMAC()
		mac2.Write(a)
		mac2.Write(labelSeed)
		out = append(out, mac2.Sum(nil)...)
	}
	return out[:length]
}
