// Package cvctest provides a deterministic stand-in crypto provider for
// exercising the certificate machinery in tests and development setups.
//
// It is NOT a cryptographic implementation: public keys and signatures are
// SHA-2 stretches of their inputs, chosen only so that corrupting any byte of
// a key or signature makes validation fail. Never deploy it against real
// material.
package cvctest

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"errors"

	"github.com/adamscao/cvca/pkg/cvc"
)

// ErrSignature reports a signature that does not verify.
var ErrSignature = errors.New("cvctest: signature mismatch")

// Provider implements cvc.Provider with deterministic SHA-2 constructions.
// The zero value is ready to use.
type Provider struct{}

var _ cvc.Provider = Provider{}

// stretch expands (label, seed) into n pseudorandom bytes by counter-mode
// SHA-256.
func stretch(label string, seed []byte, n int) []byte {
	out := make([]byte, 0, n+sha256.Size)
	var ctr [4]byte
	for len(out) < n {
		h := sha256.New()
		h.Write([]byte(label))
		h.Write(ctr[:])
		h.Write(seed)
		out = h.Sum(out)
		for i := len(ctr) - 1; i >= 0; i-- {
			ctr[i]++
			if ctr[i] != 0 {
				break
			}
		}
	}
	return out[:n]
}

// checksum is the structural-validity tag carried in the last bytes of a
// public key, so that ValidatePublicKey can reject corrupted keys without
// knowing the private key.
func checksum(body []byte) []byte {
	sum := sha256.Sum256(body)
	return sum[:4]
}

// DerivePublicKey stretches priv into a public key of twice its length,
// ending in a 4-byte checksum.
func (Provider) DerivePublicKey(priv []byte) ([]byte, error) {
	lvl, err := cvc.LevelByPrivateKeyLen(len(priv))
	if err != nil {
		return nil, err
	}
	body := stretch("pub", priv, lvl.PublicKeyLen()-4)
	return append(body, checksum(body)...), nil
}

// ValidatePublicKey checks the key's length and trailing checksum.
func (Provider) ValidatePublicKey(pub []byte) error {
	if _, err := cvc.LevelByPublicKeyLen(len(pub)); err != nil {
		return err
	}
	body, tag := pub[:len(pub)-4], pub[len(pub)-4:]
	if !hmac.Equal(tag, checksum(body)) {
		return cvc.ErrBadPublicKey
	}
	return nil
}

// ValidateKeyPair re-derives the public key from priv and compares.
func (p Provider) ValidateKeyPair(priv, pub []byte) error {
	want, err := p.DerivePublicKey(priv)
	if err != nil {
		return err
	}
	if len(pub) != len(want) || !hmac.Equal(pub, want) {
		return cvc.ErrBadKeyPair
	}
	return nil
}

// Hash digests data with a SHA-2 function of the level's digest length.
func (Provider) Hash(level cvc.Level, data []byte) ([]byte, error) {
	switch level.HashLen() {
	case sha256.Size:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case sha512.Size384:
		sum := sha512.Sum384(data)
		return sum[:], nil
	case sha512.Size:
		sum := sha512.Sum512(data)
		return sum[:], nil
	}
	return nil, cvc.ErrBadInput
}

// Sign produces a deterministic signature over the digest. The nonce is
// ignored, so the probabilistic and deterministic variants coincide and
// Verify can recompute the signature from the public key alone.
func (p Provider) Sign(level cvc.Level, digest, priv, nonce []byte) ([]byte, error) {
	if len(priv) != level.PrivateKeyLen() || len(digest) != level.HashLen() {
		return nil, cvc.ErrBadInput
	}
	if nonce != nil && len(nonce) != level.PrivateKeyLen() {
		return nil, cvc.ErrBadInput
	}
	pub, err := p.DerivePublicKey(priv)
	if err != nil {
		return nil, err
	}
	return stretch("sig", append(append([]byte{}, digest...), pub...), level.SignatureLen()), nil
}

// Verify recomputes the deterministic signature and compares.
func (Provider) Verify(level cvc.Level, digest, sig, pub []byte) error {
	if len(digest) != level.HashLen() || len(pub) != level.PublicKeyLen() {
		return cvc.ErrBadInput
	}
	want := stretch("sig", append(append([]byte{}, digest...), pub...), level.SignatureLen())
	if len(sig) != len(want) || !hmac.Equal(sig, want) {
		return ErrSignature
	}
	return nil
}
