package cvc

import "errors"

// Error kinds of the package. Every operation fails fast with the first
// violated condition; provider errors (signature verification in particular)
// are surfaced unchanged.
var (
	// ErrBadInput reports a violated argument contract: nil records,
	// unsupported private key lengths, mis-sized buffers.
	ErrBadInput = errors.New("cvc: bad input")

	// ErrBadFormat reports a malformed or truncated certificate encoding.
	ErrBadFormat = errors.New("cvc: bad certificate format")

	// ErrBadName reports an authority or holder name with an invalid length
	// or character set, or a broken authority/holder chain linkage.
	ErrBadName = errors.New("cvc: bad name")

	// ErrBadDate reports an invalid or misordered calendar date.
	ErrBadDate = errors.New("cvc: bad date")

	// ErrBadPublicKey reports a public key of unsupported length or one that
	// fails the provider's algebraic validation.
	ErrBadPublicKey = errors.New("cvc: bad public key")

	// ErrBadKeyPair reports a private key that does not match a public key.
	ErrBadKeyPair = errors.New("cvc: bad key pair")
)
