// Package tlscipher implements per-record AEAD seal/open for the TLS 1.2
// engine: sequence-number-derived nonces, TLS1.2-style AAD, and the two
// wire layouts an AEAD record distinguishes (AES-GCM's explicit nonce prefix vs.
// ChaCha20-Poly1305's fully-derived nonce).
package tlscipher

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/tlssuite"
)

// Cipher seals or opens records for one direction (read or write) of one
// connection. Its sequence number advances exactly once per successfully
// sealed or opened record and never on failure.
type Cipher struct {
	suite    tlssuite.Suite
	aead     cipher.AEAD
	fixIV    []byte // fix_iv_len bytes
	explicit []byte // key-block-derived explicit-nonce baseline; write side only
	seq      uint64
}

// New constructs a Cipher from the suite-derived key and fixed IV. explicit
// is the key-block-derived explicit-nonce baseline for this direction
// (tlsconn.KeyBlock.ClientWriteExplicit for the write side, nil for the
// read side, which takes its explicit nonce off the wire per record instead).
func New(suite tlssuite.Suite, key, fixIV, explicit []byte) (*Cipher, error) {
	var aead cipher.AEAD
	var err error
	switch suite.AEAD {
	case tlssuite.AEADAES128GCM, tlssuite.AEADAES256GCM:
		block, aerr := aes.NewCipher(key)
		if aerr != nil {
			return nil, errors.NewTLSError("", 0, aerr)
		}
		aead, err = cipher.NewGCM(block)
	case tlssuite.AEADChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, errors.NewInvariantError("tlscipher.New: suite has no recognized AEAD")
	}
	if err != nil {
		return nil, errors.NewTLSError("", 0, err)
	}
	return &Cipher{
		suite:    suite,
		aead:     aead,
		fixIV:    append([]byte(nil), fixIV...),
		explicit: append([]byte(nil), explicit...),
	}, nil
}

// Seq returns the cipher's current sequence number.
func (c *Cipher) Seq() uint64 { return c.seq }

func aad(seq uint64, contentType byte, version uint16, plaintextLen int) []byte {
	out := make([]byte, 13)
	binary.BigEndian.PutUint64(out[0:8], seq)
	out[8] = contentType
	binary.BigEndian.PutUint16(out[9:11], version)
	binary.BigEndian.PutUint16(out[11:13], uint16(plaintextLen))
	return out
}

// nonce derives the AEAD nonce for the current sequence number and, for
// AES-GCM, the explicit 8-byte value written into the record payload prefix.
func (c *Cipher) nonce() (nonce, explicit []byte) {
	var seqBE [8]byte
	binary.BigEndian.PutUint64(seqBE[:], c.seq)

	if c.suite.ExplicitLen > 0 {
		// AES-GCM: nonce = fix_iv(4, unmodified) || explicit(8). explicit
		// is the key-block-derived baseline XORed with the sequence
		// number; fix_iv itself never participates in the XOR.
		explicit = make([]byte, 8)
		for i := 0; i < 8; i++ {
			if i < len(c.explicit) {
				explicit[i] = c.explicit[i] ^ seqBE[i]
			} else {
				explicit[i] = seqBE[i]
			}
		}
		nonce = append(append([]byte(nil), c.fixIV...), explicit...)
		return nonce, explicit
	}

	// ChaCha20-Poly1305: nonce = fix_iv(12) XOR (0^4 || seq_be(8)); no
	// explicit bytes travel on the wire.
	nonce = append([]byte(nil), c.fixIV...)
	for i := 0; i < 8; i++ {
		nonce[4+i] ^= seqBE[i]
	}
	return nonce, nil
}

// Seal encrypts plaintext for one record of the given content type and
// record-layer version, returning the bytes to place in the record payload
// (explicit nonce prefix, if any, followed by ciphertext||tag). The sequence
// number advances only on success.
func (c *Cipher) Seal(contentType byte, version uint16, plaintext []byte) ([]byte, error) {
	nonce, explicit := c.nonce()
	a := aad(c.seq, contentType, version, len(plaintext))
	sealed := c.aead.Seal(nil, nonce, plaintext, a)
	c.seq++

	if explicit != nil {
		out := make([]byte, 0, len(explicit)+len(sealed))
		out = append(out, explicit...)
		out = append(out, sealed...)
		return out, nil
	}
	return sealed, nil
}

// Open decrypts one record's payload. payload is the full on-wire bytes
// (explicit nonce prefix, if any, followed by ciphertext||tag). The AAD
// length is derived as the plaintext length after removing the explicit
// prefix and the tag, on both directions.
func (c *Cipher) Open(contentType byte, version uint16, payload []byte) ([]byte, error) {
	explicitLen := c.suite.ExplicitLen
	if len(payload) < explicitLen+c.suite.TagLen {
		return nil, errors.NewInvalidHeadSizeError("aead record payload", explicitLen+c.suite.TagLen, len(payload))
	}

	var nonce []byte
	if explicitLen > 0 {
		explicit := payload[:explicitLen]
		nonce = append(append([]byte(nil), c.fixIV...), explicit...)
	} else {
		var seqBE [8]byte
		binary.BigEndian.PutUint64(seqBE[:], c.seq)
		nonce = append([]byte(nil), c.fixIV...)
		for i := 0; i < 8; i++ {
			nonce[4+i] ^= seqBE[i]
		}
	}

	ciphertext := payload[explicitLen:]
	plaintextLen := len(ciphertext) - c.suite.TagLen
	a := aad(c.seq, contentType, version, plaintextLen)

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, a)
	if err != nil {
		return nil, errors.NewTLSError("", 0, err)
	}
	c.seq++
	return plaintext, nil
}
