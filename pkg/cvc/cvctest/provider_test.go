package cvctest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/adamscao/cvca/pkg/cvc"
)

func TestDeriveAndValidate(t *testing.T) {
	var p Provider
	for _, n := range []int{32, 48, 64} {
		priv := bytes.Repeat([]byte{0x5A}, n)
		pub, err := p.DerivePublicKey(priv)
		if err != nil {
			t.Fatal(err)
		}
		if len(pub) != 2*n {
			t.Fatalf("public key length %d, want %d", len(pub), 2*n)
		}
		if err := p.ValidatePublicKey(pub); err != nil {
			t.Errorf("derived key invalid: %v", err)
		}
		if err := p.ValidateKeyPair(priv, pub); err != nil {
			t.Errorf("derived pair invalid: %v", err)
		}

		// Any corrupted byte must break the checksum.
		for i := range pub {
			bad := bytes.Clone(pub)
			bad[i] ^= 0x01
			if err := p.ValidatePublicKey(bad); !errors.Is(err, cvc.ErrBadPublicKey) {
				t.Fatalf("corrupted byte %d accepted", i)
			}
		}

		other := bytes.Repeat([]byte{0x5B}, n)
		if err := p.ValidateKeyPair(other, pub); !errors.Is(err, cvc.ErrBadKeyPair) {
			t.Error("foreign private key accepted")
		}
	}
	if _, err := p.DerivePublicKey(make([]byte, 31)); !errors.Is(err, cvc.ErrBadInput) {
		t.Error("odd private key length accepted")
	}
	if err := p.ValidatePublicKey(make([]byte, 63)); !errors.Is(err, cvc.ErrBadPublicKey) {
		t.Error("odd public key length accepted")
	}
}

func TestHashLengths(t *testing.T) {
	var p Provider
	for lvl, want := range map[cvc.Level]int{
		cvc.Level128: 32,
		cvc.Level192: 48,
		cvc.Level256: 64,
	} {
		d, err := p.Hash(lvl, []byte("data"))
		if err != nil {
			t.Fatal(err)
		}
		if len(d) != want {
			t.Errorf("%v digest length %d, want %d", lvl, len(d), want)
		}
	}
}

func TestSignVerify(t *testing.T) {
	var p Provider
	for _, lvl := range []cvc.Level{cvc.Level128, cvc.Level192, cvc.Level256} {
		priv := bytes.Repeat([]byte{0x5C}, lvl.PrivateKeyLen())
		pub, err := p.DerivePublicKey(priv)
		if err != nil {
			t.Fatal(err)
		}
		digest, err := p.Hash(lvl, []byte("message"))
		if err != nil {
			t.Fatal(err)
		}

		det, err := p.Sign(lvl, digest, priv, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(det) != lvl.SignatureLen() {
			t.Fatalf("signature length %d, want %d", len(det), lvl.SignatureLen())
		}
		if err := p.Verify(lvl, digest, det, pub); err != nil {
			t.Errorf("deterministic signature rejected: %v", err)
		}

		// The probabilistic variant must verify the same way.
		nonce := bytes.Repeat([]byte{0x01}, lvl.PrivateKeyLen())
		prob, err := p.Sign(lvl, digest, priv, nonce)
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Verify(lvl, digest, prob, pub); err != nil {
			t.Errorf("probabilistic signature rejected: %v", err)
		}

		bad := bytes.Clone(det)
		bad[0] ^= 0x01
		if err := p.Verify(lvl, digest, bad, pub); !errors.Is(err, ErrSignature) {
			t.Error("flipped signature accepted")
		}
		otherDigest, _ := p.Hash(lvl, []byte("other"))
		if err := p.Verify(lvl, otherDigest, det, pub); !errors.Is(err, ErrSignature) {
			t.Error("signature accepted over a different digest")
		}
	}
}

func TestSignRejectsBadArguments(t *testing.T) {
	var p Provider
	digest, _ := p.Hash(cvc.Level128, []byte("x"))
	priv := make([]byte, 32)
	if _, err := p.Sign(cvc.Level128, digest, make([]byte, 48), nil); !errors.Is(err, cvc.ErrBadInput) {
		t.Error("private key of the wrong level accepted")
	}
	if _, err := p.Sign(cvc.Level128, digest[:16], priv, nil); !errors.Is(err, cvc.ErrBadInput) {
		t.Error("short digest accepted")
	}
	if _, err := p.Sign(cvc.Level128, digest, priv, make([]byte, 16)); !errors.Is(err, cvc.ErrBadInput) {
		t.Error("short nonce accepted")
	}
}
