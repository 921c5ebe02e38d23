package cvc

// Wire layout of a CV certificate:
//
//	SEQ[APPLICATION 33] CVCertificate
//	  SEQ[APPLICATION 78] CertificateBody
//	    SIZE[APPLICATION 41](0)               -- version
//	    PSTR[APPLICATION 2](SIZE(8..12))      -- authority
//	    SEQ[APPLICATION 73] PubKey
//	      OID(bign-pubkey)
//	      BITS(SIZE(512|768|1024))            -- pubkey
//	    PSTR[APPLICATION 32](SIZE(8..12))     -- holder
//	    SEQ[APPLICATION 76] CertHAT OPTIONAL
//	      OID(id-eIdAccess)
//	      OCT(SIZE(5))                        -- hat_eid
//	    OCT[APPLICATION 37](SIZE(6))          -- from
//	    OCT[APPLICATION 36](SIZE(6))          -- until
//	    SEQ[APPLICATION 5] CVExt OPTIONAL
//	      SEQ[APPLICATION 19] DDT
//	        OID(id-eSignAccess)
//	        OCT(SIZE(2))                      -- hat_esign
//	  OCT[APPLICATION 55](SIZE(48|72|96))     -- sig

const (
	tagCVCert    = 0x7F21
	tagCertBody  = 0x7F4E
	tagVersion   = 0x5F29
	tagAuthority = 0x42
	tagPubKey    = 0x7F49
	tagHolder    = 0x5F20
	tagHAT       = 0x7F4C
	tagFrom      = 0x5F25
	tagUntil     = 0x5F24
	tagExt       = 0x65
	tagDDT       = 0x73
	tagSig       = 0x5F37
)

const (
	oidPubKey      = "1.2.112.0.2.0.34.101.45.2.1"
	oidEIDAccess   = "1.2.112.0.2.0.34.101.79.6.1"
	oidESignAccess = "1.2.112.0.2.0.34.101.79.6.2"
)

// Codec encodes, decodes, checks and issues CV certificates over a crypto
// provider. A Codec is stateless and safe for concurrent use as long as the
// provider and random source are.
type Codec struct {
	prov Provider
	rand RandomSource
}

// Option configures a Codec.
type Option func(*Codec)

// WithRandom supplies a randomness source for probabilistic signing. Without
// one, signing is deterministic.
func WithRandom(r RandomSource) Option {
	return func(c *Codec) { c.rand = r }
}

// New creates a Codec over the given provider.
func New(prov Provider, opts ...Option) *Codec {
	c := &Codec{prov: prov}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check verifies the self-consistency of a certificate record: names, dates
// and the public key. It returns the first violated condition.
func (cd *Codec) Check(c *Certificate) error {
	if c == nil {
		return ErrBadInput
	}
	if !NameValid(c.Authority) || !NameValid(c.Holder) {
		return ErrBadName
	}
	if !c.From.Valid() || !c.Until.Valid() || !dateLeq(c.From, c.Until) {
		return ErrBadDate
	}
	if _, err := LevelByPublicKeyLen(c.PubKeyLen); err != nil {
		return err
	}
	return cd.prov.ValidatePublicKey(c.PublicKey())
}

// CheckChain verifies c against its issuer: Check(c) must pass, c's
// authority must equal the issuer's holder, and c's start date must fall
// inside the issuer's validity window. The end date is deliberately not
// bounded by the issuer's window.
func (cd *Codec) CheckChain(c, issuer *Certificate) error {
	if err := cd.Check(c); err != nil {
		return err
	}
	if issuer == nil {
		return ErrBadInput
	}
	if c.Authority != issuer.Holder {
		return ErrBadName
	}
	if !issuer.From.Valid() || !issuer.Until.Valid() ||
		!dateLeq(issuer.From, c.From) || !dateLeq(c.From, issuer.Until) {
		return ErrBadDate
	}
	return nil
}

// bodyEncode emits the certificate body starting at off and returns the byte
// count. The record must already have passed Check; with a nil dst it only
// measures.
func bodyEncode(dst []byte, off int, c *Certificate) int {
	var certBody, pubKey, certHAT, cvExt, ddt encAnchor
	n := off
	n += encSeqStart(&certBody, dst, n, tagCertBody)
	n += encSize(dst, n, tagVersion, 0)
	n += encPString(dst, n, tagAuthority, c.Authority)
	n += encSeqStart(&pubKey, dst, n, tagPubKey)
	n += encOID(dst, n, oidPubKey)
	n += encBit(dst, n, c.PubKey[:c.PubKeyLen])
	n += encSeqStop(dst, n, &pubKey)
	n += encPString(dst, n, tagHolder, c.Holder)
	if c.HATEID != ([5]byte{}) {
		n += encSeqStart(&certHAT, dst, n, tagHAT)
		n += encOID(dst, n, oidEIDAccess)
		n += encOct(dst, n, tagOctetString, c.HATEID[:])
		n += encSeqStop(dst, n, &certHAT)
	}
	n += encOct(dst, n, tagFrom, c.From[:])
	n += encOct(dst, n, tagUntil, c.Until[:])
	if c.HATESign != ([2]byte{}) {
		n += encSeqStart(&cvExt, dst, n, tagExt)
		n += encSeqStart(&ddt, dst, n, tagDDT)
		n += encOID(dst, n, oidESignAccess)
		n += encOct(dst, n, tagOctetString, c.HATESign[:])
		n += encSeqStop(dst, n, &ddt)
		n += encSeqStop(dst, n, &cvExt)
	}
	n += encSeqStop(dst, n, &certBody)
	return n - off
}

// bodyDecode parses a certificate body from the start of data into c,
// zeroing c first. It returns the exact number of bytes consumed, or ok
// false on any structural violation, leaving no mixture of old and new
// fields behind.
func bodyDecode(c *Certificate, data []byte) (int, bool) {
	*c = Certificate{}
	var certBody, pubKey, certHAT, cvExt, ddt decAnchor
	n := 0
	hdr, ok := decSeqStart(&certBody, data, tagCertBody)
	if !ok {
		return 0, false
	}
	n += hdr
	bodyStart := n
	t, ok := decSizeEq(data[n:], tagVersion, 0)
	if !ok {
		return 0, false
	}
	n += t
	// Name length bounds are enforced during parsing, before any semantic
	// check runs.
	s, t, ok := decPString(data[n:], tagAuthority)
	if !ok || len(s) < MinNameLen || len(s) > MaxNameLen {
		return 0, false
	}
	c.Authority = s
	n += t
	hdr, ok = decSeqStart(&pubKey, data[n:], tagPubKey)
	if !ok {
		return 0, false
	}
	n += hdr
	pkStart := n
	t, ok = decOID(data[n:], oidPubKey)
	if !ok {
		return 0, false
	}
	n += t
	key, bits, t, ok := decBit(data[n:])
	if !ok || (bits != 512 && bits != 768 && bits != 1024) {
		return 0, false
	}
	c.PubKeyLen = bits / 8
	copy(c.PubKey[:], key)
	n += t
	if !decSeqStop(&pubKey, n-pkStart) {
		return 0, false
	}
	s, t, ok = decPString(data[n:], tagHolder)
	if !ok || len(s) < MinNameLen || len(s) > MaxNameLen {
		return 0, false
	}
	c.Holder = s
	n += t
	if peekTag(data[n:], tagHAT) {
		hdr, ok = decSeqStart(&certHAT, data[n:], tagHAT)
		if !ok {
			return 0, false
		}
		n += hdr
		hatStart := n
		t, ok = decOID(data[n:], oidEIDAccess)
		if !ok {
			return 0, false
		}
		n += t
		v, t, ok := decOctExact(data[n:], tagOctetString, len(c.HATEID))
		if !ok {
			return 0, false
		}
		copy(c.HATEID[:], v)
		n += t
		if !decSeqStop(&certHAT, n-hatStart) {
			return 0, false
		}
	}
	v, t, ok := decOctExact(data[n:], tagFrom, len(c.From))
	if !ok {
		return 0, false
	}
	copy(c.From[:], v)
	n += t
	v, t, ok = decOctExact(data[n:], tagUntil, len(c.Until))
	if !ok {
		return 0, false
	}
	copy(c.Until[:], v)
	n += t
	if peekTag(data[n:], tagExt) {
		hdr, ok = decSeqStart(&cvExt, data[n:], tagExt)
		if !ok {
			return 0, false
		}
		n += hdr
		extStart := n
		hdr, ok = decSeqStart(&ddt, data[n:], tagDDT)
		if !ok {
			return 0, false
		}
		n += hdr
		ddtStart := n
		t, ok = decOID(data[n:], oidESignAccess)
		if !ok {
			return 0, false
		}
		n += t
		v, t, ok = decOctExact(data[n:], tagOctetString, len(c.HATESign))
		if !ok {
			return 0, false
		}
		copy(c.HATESign[:], v)
		n += t
		if !decSeqStop(&ddt, n-ddtStart) {
			return 0, false
		}
		if !decSeqStop(&cvExt, n-extStart) {
			return 0, false
		}
	}
	if !decSeqStop(&certBody, n-bodyStart) {
		return 0, false
	}
	return n, true
}

// encodeEnvelope emits the full certificate. In the write phase the body is
// signed in place: the signature is computed over the exact body bytes
// already sitting in dst before the signature field is appended. The measure
// phase (nil dst) runs the same path without touching the provider.
func (cd *Codec) encodeEnvelope(dst []byte, c *Certificate, priv []byte, lvl Level) (int, error) {
	var cvCert encAnchor
	n := encSeqStart(&cvCert, dst, 0, tagCVCert)
	bodyStart := n
	bodyLen := bodyEncode(dst, n, c)
	n += bodyLen
	if dst != nil {
		digest, err := cd.prov.Hash(lvl, dst[bodyStart:bodyStart+bodyLen])
		if err != nil {
			return 0, err
		}
		var nonce []byte
		if cd.rand != nil && cd.rand.Available() {
			nonce, err = cd.rand.Draw(lvl.PrivateKeyLen())
			if err != nil {
				return 0, err
			}
		}
		sig, err := cd.prov.Sign(lvl, digest, priv, nonce)
		if err != nil {
			return 0, err
		}
		if len(sig) != lvl.SignatureLen() {
			return 0, ErrBadInput
		}
		c.Sig = [MaxSignatureLen]byte{}
		copy(c.Sig[:], sig)
	}
	c.SigLen = lvl.SignatureLen()
	n += encOct(dst, n, tagSig, c.Sig[:c.SigLen])
	n += encSeqStop(dst, n, &cvCert)
	return n, nil
}

// Encode serializes and signs a certificate record with the issuer's private
// key. When the record carries no public key, one is derived from priv (the
// self-signed case); the record's signature fields are filled in as a side
// effect.
func (cd *Codec) Encode(c *Certificate, priv []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrBadInput
	}
	lvl, err := LevelByPrivateKeyLen(len(priv))
	if err != nil {
		return nil, err
	}
	if c.PubKeyLen == 0 {
		pub, err := cd.prov.DerivePublicKey(priv)
		if err != nil {
			return nil, err
		}
		if err := c.SetPublicKey(pub); err != nil {
			return nil, err
		}
	}
	if err := cd.Check(c); err != nil {
		return nil, err
	}
	size, err := cd.encodeEnvelope(nil, c, priv, lvl)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	n, err := cd.encodeEnvelope(out, c, priv, lvl)
	if err != nil {
		return nil, err
	}
	if n != size {
		panic("cvc: encode phases disagree")
	}
	return out, nil
}

// Decode parses der into c, zeroing c first. With a non-nil pub the
// signature length is fixed by the key length and the signature is verified
// over the decoded body bytes; any failure is fail-closed. With a nil pub
// the signature length is found by trial decode and no verification runs.
// Either way the record itself must pass Check.
func (cd *Codec) Decode(c *Certificate, der, pub []byte) error {
	if c == nil {
		return ErrBadInput
	}
	var lvl Level
	if len(pub) != 0 {
		var err error
		lvl, err = LevelByPublicKeyLen(len(pub))
		if err != nil {
			return err
		}
	}
	*c = Certificate{}
	var cvCert decAnchor
	hdr, ok := decSeqStart(&cvCert, der, tagCVCert)
	if !ok {
		return ErrBadFormat
	}
	n := hdr
	contentStart := n
	bodyLen, ok := bodyDecode(c, der[n:])
	if !ok {
		return ErrBadFormat
	}
	body := der[n : n+bodyLen]
	n += bodyLen
	sigLen := 0
	if len(pub) != 0 {
		sigLen = lvl.SignatureLen()
	} else {
		for _, l := range levels {
			if _, _, ok := decOctExact(der[n:], tagSig, l.sigLen); ok {
				sigLen = l.sigLen
				break
			}
		}
		if sigLen == 0 {
			return ErrBadFormat
		}
	}
	sig, t, ok := decOctExact(der[n:], tagSig, sigLen)
	if !ok {
		return ErrBadFormat
	}
	copy(c.Sig[:], sig)
	c.SigLen = sigLen
	n += t
	if !decSeqStop(&cvCert, n-contentStart) {
		return ErrBadFormat
	}
	if n != len(der) {
		return ErrBadFormat
	}
	if len(pub) != 0 {
		if err := cd.prov.ValidatePublicKey(pub); err != nil {
			return err
		}
		digest, err := cd.prov.Hash(lvl, body)
		if err != nil {
			return err
		}
		if err := cd.prov.Verify(lvl, digest, c.Signature(), pub); err != nil {
			return err
		}
	}
	return cd.Check(c)
}

// Issue produces a freshly signed certificate for draft from an encoded
// issuer certificate and the issuer's private key: the issuer certificate is
// decoded, the key pair validated, the chain checked, and the draft encoded
// and signed. The first failing step aborts the call.
func (cd *Codec) Issue(draft *Certificate, issuerCert, issuerPriv []byte) ([]byte, error) {
	if draft == nil {
		return nil, ErrBadInput
	}
	issuer := new(Certificate)
	if err := cd.Decode(issuer, issuerCert, nil); err != nil {
		return nil, err
	}
	if err := cd.prov.ValidateKeyPair(issuerPriv, issuer.PublicKey()); err != nil {
		return nil, err
	}
	if err := cd.CheckChain(draft, issuer); err != nil {
		return nil, err
	}
	return cd.Encode(draft, issuerPriv)
}
