// Package cvc implements the CV-certificate profile of STB 34.101.79:
// a compact DER-encoded certificate binding a holder name to a public key,
// countersigned by an issuing authority. The cryptographic primitives are
// supplied by a Provider; the package owns the wire format, the validity
// rules and two-certificate chain checking.
package cvc

import "bytes"

// Name and buffer limits fixed by the profile.
const (
	MinNameLen      = 8
	MaxNameLen      = 12
	MaxPublicKeyLen = 128
	MaxSignatureLen = 96
)

// Date is a calendar date as six decimal digits, one per byte: YY MM DD.
// Years count from 2000; the profile starts at 2019.
type Date [6]byte

// MakeDate builds a Date from a calendar date. The year must be in
// [2019, 2099].
func MakeDate(year, month, day int) (Date, error) {
	if year < 2000 || year > 2099 {
		return Date{}, ErrBadDate
	}
	y, m := year-2000, month
	d := Date{byte(y / 10), byte(y % 10), byte(m / 10), byte(m % 10), byte(day / 10), byte(day % 10)}
	if month < 0 || month > 12 || day < 0 || day > 31 || !d.Valid() {
		return Date{}, ErrBadDate
	}
	return d, nil
}

// ParseDate parses a "YYMMDD" digit string.
func ParseDate(s string) (Date, error) {
	var d Date
	if len(s) != len(d) {
		return Date{}, ErrBadDate
	}
	for i := 0; i < len(d); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Date{}, ErrBadDate
		}
		d[i] = s[i] - '0'
	}
	if !d.Valid() {
		return Date{}, ErrBadDate
	}
	return d, nil
}

// Valid reports whether d is a well-formed calendar date of the profile:
// every byte a decimal digit, year at least 19 (the profile was introduced
// in 2019), month 1..12 and a day that exists in that month. Leap years
// follow the profile's year%4 rule, which is exact for 2019–2099.
func (d Date) Valid() bool {
	for _, b := range d {
		if b > 9 {
			return false
		}
	}
	y := 10*int(d[0]) + int(d[1])
	m := 10*int(d[2]) + int(d[3])
	dd := 10*int(d[4]) + int(d[5])
	return y >= 19 &&
		1 <= m && m <= 12 &&
		1 <= dd && dd <= 31 &&
		!(dd == 31 && (m == 4 || m == 6 || m == 9 || m == 11)) &&
		!(m == 2 && (dd > 29 || dd == 29 && y%4 != 0))
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String renders d as "YYMMDD".
func (d Date) String() string {
	var b [6]byte
	for i, v := range d {
		if v > 9 {
			v = 9
		}
		b[i] = '0' + v
	}
	return string(b[:])
}

// dateLeq reports a <= b in calendar order. Digit-per-byte dates compare
// lexicographically.
func dateLeq(a, b Date) bool {
	return bytes.Compare(a[:], b[:]) <= 0
}

// Certificate is the in-memory form of a CV certificate: either a draft
// being prepared for signing or the result of decoding. The byte arrays are
// sized for the largest security level; the length fields say how much of
// each is in use. An all-zero access-rights field means the field is absent
// from the encoding — the profile makes the two indistinguishable on purpose.
type Certificate struct {
	Authority string // issuing authority name, 8–12 printable characters
	Holder    string // subject name, 8–12 printable characters

	PubKey    [MaxPublicKeyLen]byte
	PubKeyLen int

	HATEID   [5]byte // eId access rights, zero when absent
	HATESign [2]byte // eSign access rights, zero when absent

	From  Date
	Until Date

	Sig    [MaxSignatureLen]byte
	SigLen int
}

// PublicKey returns the in-use public key bytes, or nil when none is set.
func (c *Certificate) PublicKey() []byte {
	if c.PubKeyLen <= 0 || c.PubKeyLen > MaxPublicKeyLen {
		return nil
	}
	return c.PubKey[:c.PubKeyLen]
}

// SetPublicKey stores a public key of one of the three supported lengths.
func (c *Certificate) SetPublicKey(pub []byte) error {
	if _, err := LevelByPublicKeyLen(len(pub)); err != nil {
		return err
	}
	c.PubKey = [MaxPublicKeyLen]byte{}
	copy(c.PubKey[:], pub)
	c.PubKeyLen = len(pub)
	return nil
}

// Signature returns the in-use signature bytes, or nil when none is set.
func (c *Certificate) Signature() []byte {
	if c.SigLen <= 0 || c.SigLen > MaxSignatureLen {
		return nil
	}
	return c.Sig[:c.SigLen]
}

// NameValid reports whether s is a valid authority/holder name: 8 to 12
// printable characters.
func NameValid(s string) bool {
	if len(s) < MinNameLen || len(s) > MaxNameLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isPrintable(s[i]) {
			return false
		}
	}
	return true
}

// isPrintable reports membership in the ASN.1 PrintableString alphabet.
func isPrintable(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case ' ', '\'', '(', ')', '+', ',', '-', '.', '/', ':', '=', '?':
		return true
	}
	return false
}
