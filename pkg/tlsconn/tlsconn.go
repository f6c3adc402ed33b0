// Package tlsconn implements the cryptographic half of the TLS 1.2 ECDHE
// handshake: transcript hashing with pre-suite-selection
// queuing, ECDHE key agreement over X25519 and P-256, master-secret and
// key-block derivation, and Finished message construction/verification.
// The state machine that drives these primitives over a live connection
// lives in pkg/tlsstream.
package tlsconn

import (
	"crypto/ecdh"
	"crypto/rand"
	"hash"

	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/tlssuite"
)

// NamedGroup identifies an ECDHE curve by its TLS named-group code.
type NamedGroup uint16

const (
	GroupSecp256r1 NamedGroup = 0x0017
	GroupX25519    NamedGroup = 0x001d
)

func (g NamedGroup) curve() (ecdh.Curve, error) {
	switch g {
	case GroupX25519:
		return ecdh.X25519(), nil
	case GroupSecp256r1:
		return ecdh.P256(), nil
	default:
		return nil, errors.NewCurrentlyError("unsupported named group for ECDHE")
	}
}

// KeyShare is one side's ephemeral ECDHE keypair for a single handshake.
type KeyShare struct {
	group NamedGroup
	priv  *ecdh.PrivateKey
}

// GenerateKeyShare creates a fresh ephemeral keypair on the given curve,
// drawn from crypto/rand.
func GenerateKeyShare(group NamedGroup) (*KeyShare, error) {
	curve, err := group.curve()
	if err != nil {
		return nil, err
	}
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.NewTLSError("", 0, err)
	}
	return &KeyShare{group: group, priv: priv}, nil
}

// Public returns the wire encoding of this key share's public point: the raw
// x-coordinate for X25519 and the uncompressed SEC1 point for P-256.
func (k *KeyShare) Public() []byte {
	return k.priv.PublicKey().Bytes()
}

// SharedSecret computes the ECDH shared secret against a peer's public key
// bytes as received in ServerKeyExchange.
func (k *KeyShare) SharedSecret(peerPublic []byte) ([]byte, error) {
	curve, err := k.group.curve()
	if err != nil {
		return nil, err
	}
	peer, err := curve.NewPublicKey(peerPublic)
	if err != nil {
		return nil, errors.NewTLSError("", 0, err)
	}
	secret, err := k.priv.ECDH(peer)
	if err != nil {
		return nil, errors.NewTLSError("", 0, err)
	}
	return secret, nil
}

// Transcript accumulates the raw handshake sub-message bytes (record header
// stripped) that feed the PRF and Finished hashes. Before ServerHello
// selects a cipher suite the hash algorithm is unknown, so bytes are queued;
// SelectHash flushes the queue into the real hasher exactly once.
type Transcript struct {
	queued []byte
	h      hash.Hash
}

// NewTranscript returns an empty, pre-selection transcript.
func NewTranscript() *Transcript { return &Transcript{} }

// Write feeds one handshake sub-message's raw bytes into the transcript.
func (t *Transcript) Write(b []byte) {
	if t.h != nil {
		t.h.Write(b)
		return
	}
	t.queued = append(t.queued, b...)
}

// SelectHash installs the suite's transcript hash, flushing any bytes
// queued before the suite was known. It is a no-op if already selected.
func (t *Transcript) SelectHash(h hash.Hash) {
	if t.h != nil {
		return
	}
	t.h = h
	if len(t.queued) > 0 {
		t.h.Write(t.queued)
		t.queued = nil
	}
}

// Sum returns the current running hash without mutating the transcript.
func (t *Transcript) Sum() []byte {
	if t.h == nil {
		return nil
	}
	// hash.Hash.Sum appends to its argument rather than consuming state, so
	// this reads the running digest without disturbing later writes.
	return t.h.Sum(nil)
}

// MasterSecretInput carries the fields needed to derive a TLS 1.2 master
// secret, covering both the plain and extended-master-secret variants.
type MasterSecretInput struct {
	Suite                         tlssuite.Suite
	SharedSecret                  []byte
	ClientRandom                  []byte
	ServerRandom                  []byte
	UseExtendedMaster             bool
	TranscriptAtClientKeyExchange []byte // only needed when UseExtendedMaster
}

// DeriveMasterSecret implements the TLS 1.2 master-secret derivation rule.
func DeriveMasterSecret(in MasterSecretInput) []byte {
	if in.UseExtendedMaster {
		return in.Suite.PRF(in.SharedSecret, []byte("extended master secret"), in.TranscriptAtClientKeyExchange, 48)
	}
	seed := append(append([]byte(nil), in.ClientRandom...), in.ServerRandom...)
	return in.Suite.PRF(in.SharedSecret, []byte("master secret"), seed, 48)
}

// KeyBlock holds the per-direction key material split from the TLS 1.2 key
// expansion PRF output.
type KeyBlock struct {
	ClientWriteKey []byte
	ServerWriteKey []byte
	ClientWriteIV  []byte
	ServerWriteIV  []byte
	// ClientWriteExplicit is the trailing explicit-nonce baseline an AEAD
	// suite reserves past the two write keys and two fixed IVs. It is the
	// value the client's write-direction cipher XORs with the record
	// sequence number to produce each record's explicit nonce prefix — not
	// a discardable tail.
	ClientWriteExplicit []byte
	// ServerWriteExplicit stays empty: the key_block layout reserves only
	// one explicit-nonce baseline, consumed by the client's write
	// direction. The read direction's explicit nonce is taken directly off
	// the wire per record (see tlscipher.Cipher.Open), so no baseline is
	// derived for it here.
	ServerWriteExplicit []byte
}

// DeriveKeyBlock implements the TLS 1.2 key_block derivation and split,
// including the trailing explicit-nonce baseline AEAD suites reserve
// (total = 2*key_len + 2*fix_iv_len + explicit_len).
func DeriveKeyBlock(suite tlssuite.Suite, masterSecret, serverRandom, clientRandom []byte) KeyBlock {
	total := 2*suite.KeyLen + 2*suite.FixIVLen + suite.ExplicitLen
	seed := append(append([]byte(nil), serverRandom...), clientRandom...)
	block := suite.PRF(masterSecret, []byte("key expansion"), seed, total)

	pos := 0
	take := func(n int) []byte {
		b := block[pos : pos+n]
		pos += n
		return b
	}
	return KeyBlock{
		ClientWriteKey:      take(suite.KeyLen),
		ServerWriteKey:      take(suite.KeyLen),
		ClientWriteIV:       take(suite.FixIVLen),
		ServerWriteIV:       take(suite.FixIVLen),
		ClientWriteExplicit: take(suite.ExplicitLen),
	}
}

// FinishedVerifyData computes the 12-byte verify_data for either direction's
// Finished message: label is "client finished" or
// "server finished".
func FinishedVerifyData(suite tlssuite.Suite, masterSecret []byte, label string, transcriptHash []byte) []byte {
	return suite.PRF(masterSecret, []byte(label), transcriptHash, 12)
}

// BuildFinishedBody wraps verify_data in the Finished handshake
// sub-message's body (handshake type and length are added by the caller via
// tlsrecord.BuildHandshakeMessage).
func BuildFinishedBody(verifyData []byte) []byte {
	return append([]byte(nil), verifyData...)
}
