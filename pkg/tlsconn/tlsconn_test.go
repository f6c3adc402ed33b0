package tlsconn

import (
	"bytes"
	"testing"

	"github.com/corvaxnet/rawhttp/pkg/tlssuite"
)

func TestECDHESharedSecretAgreesX25519(t *testing.T) {
	client, err := GenerateKeyShare(GroupX25519)
	if err != nil {
		t.Fatal(err)
	}
	server, err := GenerateKeyShare(GroupX25519)
	if err != nil {
		t.Fatal(err)
	}

	clientSecret, err := client.SharedSecret(server.Public())
	if err != nil {
		t.Fatal(err)
	}
	serverSecret, err := server.SharedSecret(client.Public())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(clientSecret, serverSecret) {
		t.Fatal("ECDHE shared secrets disagree")
	}
	if len(clientSecret) != 32 {
		t.Fatalf("x25519 shared secret len = %d, want 32", len(clientSecret))
	}
}

func TestECDHESharedSecretAgreesP256(t *testing.T) {
	client, err := GenerateKeyShare(GroupSecp256r1)
	if err != nil {
		t.Fatal(err)
	}
	server, err := GenerateKeyShare(GroupSecp256r1)
	if err != nil {
		t.Fatal(err)
	}
	clientSecret, _ := client.SharedSecret(server.Public())
	serverSecret, _ := server.SharedSecret(client.Public())
	if !bytes.Equal(clientSecret, serverSecret) {
		t.Fatal("ECDHE shared secrets disagree")
	}
}

func TestTranscriptQueuesUntilHashSelected(t *testing.T) {
	tr := NewTranscript()
	tr.Write([]byte("client-hello-bytes"))
	tr.Write([]byte("server-hello-bytes"))

	if tr.Sum() != nil {
		t.Fatal("Sum should be nil before a hash is selected")
	}

	direct := tlssuite.Suite{}
	h := direct.NewHash() // zero-value suite defaults to SHA-256
	tr.SelectHash(h)

	sum := tr.Sum()
	if len(sum) != 32 {
		t.Fatalf("sum len = %d, want 32 (sha256)", len(sum))
	}

	// Writing more after selection must extend the same running hash.
	tr.Write([]byte("client-key-exchange-bytes"))
	sum2 := tr.Sum()
	if bytes.Equal(sum, sum2) {
		t.Fatal("transcript hash did not advance after post-selection write")
	}
}

func TestDeriveMasterSecretDeterministicAndLength(t *testing.T) {
	suite, err := tlssuite.ByCode(0xC02F)
	if err != nil {
		t.Fatal(err)
	}
	in := MasterSecretInput{
		Suite:        suite,
		SharedSecret: bytes.Repeat([]byte{0x01}, 32),
		ClientRandom: bytes.Repeat([]byte{0x02}, 32),
		ServerRandom: bytes.Repeat([]byte{0x03}, 32),
	}
	ms1 := DeriveMasterSecret(in)
	ms2 := DeriveMasterSecret(in)
	if len(ms1) != 48 {
		t.Fatalf("master secret len = %d, want 48", len(ms1))
	}
	if !bytes.Equal(ms1, ms2) {
		t.Fatal("master secret derivation is not deterministic")
	}

	in.UseExtendedMaster = true
	in.TranscriptAtClientKeyExchange = bytes.Repeat([]byte{0x04}, 32)
	emsSecret := DeriveMasterSecret(in)
	if bytes.Equal(emsSecret, ms1) {
		t.Fatal("extended-master-secret derivation should differ from the plain variant")
	}
}

func TestDeriveKeyBlockSplitsToRequestedLengths(t *testing.T) {
	suite, err := tlssuite.ByCode(0xC02F) // AES-128-GCM: KeyLen=16, FixIVLen=4
	if err != nil {
		t.Fatal(err)
	}
	masterSecret := bytes.Repeat([]byte{0x05}, 48)
	kb := DeriveKeyBlock(suite, masterSecret, bytes.Repeat([]byte{0x06}, 32), bytes.Repeat([]byte{0x07}, 32))

	if len(kb.ClientWriteKey) != suite.KeyLen || len(kb.ServerWriteKey) != suite.KeyLen {
		t.Fatalf("write key lengths = %d/%d, want %d", len(kb.ClientWriteKey), len(kb.ServerWriteKey), suite.KeyLen)
	}
	if len(kb.ClientWriteIV) != suite.FixIVLen || len(kb.ServerWriteIV) != suite.FixIVLen {
		t.Fatalf("write iv lengths = %d/%d, want %d", len(kb.ClientWriteIV), len(kb.ServerWriteIV), suite.FixIVLen)
	}
	if bytes.Equal(kb.ClientWriteKey, kb.ServerWriteKey) {
		t.Fatal("client and server write keys must differ")
	}
	if len(kb.ClientWriteExplicit) != suite.ExplicitLen {
		t.Fatalf("client write explicit length = %d, want %d", len(kb.ClientWriteExplicit), suite.ExplicitLen)
	}
	if len(kb.ServerWriteExplicit) != 0 {
		t.Fatalf("server write explicit should be empty, got %d bytes", len(kb.ServerWriteExplicit))
	}
}

func TestFinishedVerifyDataDiffersByLabel(t *testing.T) {
	suite, _ := tlssuite.ByCode(0xC02F)
	masterSecret := bytes.Repeat([]byte{0x08}, 48)
	transcriptHash := bytes.Repeat([]byte{0x09}, 32)

	client := FinishedVerifyData(suite, masterSecret, "client finished", transcriptHash)
	server := FinishedVerifyData(suite, masterSecret, "server finished", transcriptHash)
	if len(client) != 12 || len(server) != 12 {
		t.Fatalf("verify_data lengths = %d/%d, want 12", len(client), len(server))
	}
	if bytes.Equal(client, server) {
		t.Fatal("client and server verify_data must differ")
	}
}
