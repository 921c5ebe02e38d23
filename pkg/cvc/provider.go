package cvc

import "crypto/rand"

// Provider supplies the signature suite behind the profile. The package
// never inspects key material beyond its length; everything algebraic is the
// provider's business. Implementations must size their outputs by the level
// table: digests of Level.HashLen bytes, signatures of Level.SignatureLen
// bytes, public keys of Level.PublicKeyLen bytes.
type Provider interface {
	// DerivePublicKey computes the public key of a private key.
	DerivePublicKey(priv []byte) ([]byte, error)

	// ValidatePublicKey checks that a public key is algebraically valid.
	ValidatePublicKey(pub []byte) error

	// ValidateKeyPair checks that priv and pub form a key pair.
	ValidateKeyPair(priv, pub []byte) error

	// Hash digests data with the level's hash algorithm.
	Hash(level Level, data []byte) ([]byte, error)

	// Sign signs a digest. A nonce of the level's private key length selects
	// probabilistic signing; a nil nonce selects the deterministic variant.
	// Verifiers accept either.
	Sign(level Level, digest, priv, nonce []byte) ([]byte, error)

	// Verify checks a signature over a digest against a public key.
	Verify(level Level, digest, sig, pub []byte) error
}

// RandomSource feeds probabilistic signing. Draw may block; the package
// imposes no timeout, so callers needing bounded latency must supply a
// pre-bounded source.
type RandomSource interface {
	Available() bool
	Draw(n int) ([]byte, error)
}

// SystemRandom is a RandomSource over the operating system's CSPRNG.
type SystemRandom struct{}

// Available always reports true: crypto/rand does not expose readiness.
func (SystemRandom) Available() bool { return true }

// Draw reads n random bytes.
func (SystemRandom) Draw(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
