package tlssuite

import "testing"

func TestByCodeClassifiesAEADAndHash(t *testing.T) {
	cases := []struct {
		code     uint16
		wantAEAD AEADKind
		wantHash HashKind
		wantKey  int
	}{
		{0xC02F, AEADAES128GCM, HashSHA256, 16},
		{0xC030, AEADAES256GCM, HashSHA384, 32},
		{0xCCA8, AEADChaCha20Poly1305, HashSHA256, 32},
	}
	for _, c := range cases {
		s, err := ByCode(c.code)
		if err != nil {
			t.Fatalf("ByCode(%#x): %v", c.code, err)
		}
		if s.AEAD != c.wantAEAD || s.Hash != c.wantHash || s.KeyLen != c.wantKey {
			t.Fatalf("ByCode(%#x) = %+v, want AEAD=%v Hash=%v Key=%d", c.code, s, c.wantAEAD, c.wantHash, c.wantKey)
		}
	}
}

func TestByCodeUnknown(t *testing.T) {
	if _, err := ByCode(0xFFFF); err == nil {
		t.Fatal("expected error for unknown suite")
	}
}

func TestPRFDeterministicAndLengthExact(t *testing.T) {
	s, _ := ByCode(0xC02F)
	secret := []byte("secret")
	seed := []byte("seed-bytes")
	out1 := s.PRF(secret, []byte("label"), seed, 48)
	out2 := s.PRF(secret, []byte("label"), seed, 48)
	if len(out1) != 48 {
		t.Fatalf("len = %d, want 48", len(out1))
	}
	if string(out1) != string(out2) {
		t.Fatal("PRF is not deterministic for identical inputs")
	}
}
