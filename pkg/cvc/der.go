package cvc

// Restricted DER codec for the CV-certificate profile: definite minimal
// lengths only, application-class tags of at most two bytes, no indefinite
// form. Encoders run in two phases sharing the same code path: with a nil
// destination they only count bytes, with a real destination they write.
// Decoders report (consumed, ok) and never touch the destination on failure;
// the exported API translates the ok sentinel into typed errors.

// tagSize returns the number of bytes the tag occupies on the wire.
func tagSize(tag uint32) int {
	if tag > 0xFF {
		return 2
	}
	return 1
}

// lenSize returns the number of bytes needed for a definite length field.
func lenSize(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x100:
		return 2
	default:
		return 3
	}
}

func encTag(dst []byte, off int, tag uint32) int {
	if dst != nil {
		if tag > 0xFF {
			dst[off] = byte(tag >> 8)
			dst[off+1] = byte(tag)
		} else {
			dst[off] = byte(tag)
		}
	}
	return tagSize(tag)
}

func encLen(dst []byte, off, n int) int {
	if dst != nil {
		switch {
		case n < 0x80:
			dst[off] = byte(n)
		case n < 0x100:
			dst[off] = 0x81
			dst[off+1] = byte(n)
		default:
			dst[off] = 0x82
			dst[off+1] = byte(n >> 8)
			dst[off+2] = byte(n)
		}
	}
	return lenSize(n)
}

// encTLV emits a complete primitive field.
func encTLV(dst []byte, off int, tag uint32, val []byte) int {
	n := encTag(dst, off, tag)
	n += encLen(dst, off+n, len(val))
	if dst != nil {
		copy(dst[off+n:], val)
	}
	return n + len(val)
}

// encAnchor remembers where a constructed field's header was reserved so the
// matching stop call can back-patch the length.
type encAnchor struct {
	off int // offset of the tag
	hdr int // reserved header bytes: tag + 1-byte length placeholder
}

// encSeqStart reserves the header of a constructed field. The content length
// is unknown here; one length byte is reserved and encSeqStop grows it when
// the content turns out to need the long form.
func encSeqStart(a *encAnchor, dst []byte, off int, tag uint32) int {
	a.off = off
	a.hdr = tagSize(tag) + 1
	n := encTag(dst, off, tag)
	if dst != nil {
		dst[off+n] = 0
	}
	return n + 1
}

// encSeqStop back-patches the header reserved by encSeqStart. When the final
// length field needs more than the reserved byte, the content is shifted
// forward; both phases return the same byte count, so sizes always agree.
func encSeqStop(dst []byte, off int, a *encAnchor) int {
	content := off - a.off - a.hdr
	extra := lenSize(content) - 1
	if dst != nil {
		if extra > 0 {
			copy(dst[a.off+a.hdr+extra:off+extra], dst[a.off+a.hdr:off])
		}
		encLen(dst, a.off+a.hdr-1, content)
	}
	return extra
}

// decTL parses the tag and length at the start of data. It insists on the
// expected tag and on minimally-encoded lengths, and checks that the value
// fits inside data.
func decTL(data []byte, tag uint32) (hdr, vlen int, ok bool) {
	ts := tagSize(tag)
	if len(data) < ts+1 {
		return 0, 0, false
	}
	if ts == 2 {
		if data[0] != byte(tag>>8) || data[1] != byte(tag) {
			return 0, 0, false
		}
	} else if data[0] != byte(tag) {
		return 0, 0, false
	}
	b := data[ts]
	switch {
	case b < 0x80:
		hdr, vlen = ts+1, int(b)
	case b == 0x81:
		if len(data) < ts+2 || data[ts+1] < 0x80 {
			return 0, 0, false
		}
		hdr, vlen = ts+2, int(data[ts+1])
	case b == 0x82:
		if len(data) < ts+3 {
			return 0, 0, false
		}
		vlen = int(data[ts+1])<<8 | int(data[ts+2])
		if vlen < 0x100 {
			return 0, 0, false
		}
		hdr = ts + 3
	default:
		return 0, 0, false
	}
	if vlen > len(data)-hdr {
		return 0, 0, false
	}
	return hdr, vlen, true
}

// peekTag reports whether data starts with the given tag, without consuming
// anything. Optional-field presence is decided only this way.
func peekTag(data []byte, tag uint32) bool {
	ts := tagSize(tag)
	if len(data) < ts {
		return false
	}
	if ts == 2 {
		return data[0] == byte(tag>>8) && data[1] == byte(tag)
	}
	return data[0] == byte(tag)
}

func decTLV(data []byte, tag uint32) (val []byte, n int, ok bool) {
	hdr, vlen, ok := decTL(data, tag)
	if !ok {
		return nil, 0, false
	}
	return data[hdr : hdr+vlen], hdr + vlen, true
}

// decAnchor carries the declared content length of a constructed field from
// its start to the matching stop check.
type decAnchor struct {
	clen int
}

func decSeqStart(a *decAnchor, data []byte, tag uint32) (int, bool) {
	hdr, vlen, ok := decTL(data, tag)
	if !ok {
		return 0, false
	}
	a.clen = vlen
	return hdr, true
}

// decSeqStop verifies that the children consumed exactly the declared
// content length.
func decSeqStop(a *decAnchor, consumed int) bool {
	return consumed == a.clen
}

// encSize emits a non-negative INTEGER under the given tag.
func encSize(dst []byte, off int, tag uint32, v uint) int {
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte(v)
		v >>= 8
	}
	if i == len(buf) {
		i--
		buf[i] = 0
	}
	if buf[i] >= 0x80 {
		i--
		buf[i] = 0
	}
	return encTLV(dst, off, tag, buf[i:])
}

// decSizeEq consumes an INTEGER field and requires it to hold exactly the
// expected value.
func decSizeEq(data []byte, tag uint32, v uint) (int, bool) {
	want := make([]byte, encSize(nil, 0, tag, v))
	encSize(want, 0, tag, v)
	if len(data) < len(want) {
		return 0, false
	}
	for i, b := range want {
		if data[i] != b {
			return 0, false
		}
	}
	return len(want), true
}

// encPString emits a PrintableString under the given tag.
func encPString(dst []byte, off int, tag uint32, s string) int {
	n := encTag(dst, off, tag)
	n += encLen(dst, off+n, len(s))
	if dst != nil {
		copy(dst[off+n:], s)
	}
	return n + len(s)
}

// decPString consumes a PrintableString, rejecting any non-printable byte.
func decPString(data []byte, tag uint32) (string, int, bool) {
	val, n, ok := decTLV(data, tag)
	if !ok {
		return "", 0, false
	}
	for _, b := range val {
		if !isPrintable(b) {
			return "", 0, false
		}
	}
	return string(val), n, true
}

const tagOID = 0x06

// encOID emits an OBJECT IDENTIFIER given in dotted form. The OID literals
// used by the profile are compile-time constants, so a malformed string is a
// programming error and panics.
func encOID(dst []byte, off int, oid string) int {
	der := mustOID(oid)
	return encTLV(dst, off, tagOID, der)
}

// decOID consumes an OBJECT IDENTIFIER and requires it to equal oid.
func decOID(data []byte, oid string) (int, bool) {
	want := mustOID(oid)
	val, n, ok := decTLV(data, tagOID)
	if !ok || len(val) != len(want) {
		return 0, false
	}
	for i, b := range want {
		if val[i] != b {
			return 0, false
		}
	}
	return n, true
}

// mustOID converts a dotted OID to its DER content bytes.
func mustOID(oid string) []byte {
	var arcs []uint64
	var v uint64
	seen := false
	for i := 0; i <= len(oid); i++ {
		if i == len(oid) || oid[i] == '.' {
			if !seen {
				panic("cvc: malformed OID " + oid)
			}
			arcs = append(arcs, v)
			v, seen = 0, false
			continue
		}
		c := oid[i]
		if c < '0' || c > '9' {
			panic("cvc: malformed OID " + oid)
		}
		v = v*10 + uint64(c-'0')
		seen = true
	}
	if len(arcs) < 2 || arcs[0] > 2 || (arcs[0] < 2 && arcs[1] >= 40) {
		panic("cvc: malformed OID " + oid)
	}
	out := base128(nil, arcs[0]*40+arcs[1])
	for _, a := range arcs[2:] {
		out = base128(out, a)
	}
	return out
}

func base128(dst []byte, v uint64) []byte {
	var tmp [10]byte
	i := len(tmp)
	i--
	tmp[i] = byte(v & 0x7F)
	v >>= 7
	for v > 0 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
		v >>= 7
	}
	return append(dst, tmp[i:]...)
}

const tagBitString = 0x03

// encBit emits a BIT STRING with no unused bits.
func encBit(dst []byte, off int, val []byte) int {
	n := encTag(dst, off, tagBitString)
	n += encLen(dst, off+n, len(val)+1)
	if dst != nil {
		dst[off+n] = 0
		copy(dst[off+n+1:], val)
	}
	return n + 1 + len(val)
}

// decBit consumes a BIT STRING and returns its value bytes and bit count.
func decBit(data []byte) (val []byte, bits, n int, ok bool) {
	v, n, ok := decTLV(data, tagBitString)
	if !ok || len(v) < 1 || v[0] != 0 {
		return nil, 0, 0, false
	}
	return v[1:], 8 * (len(v) - 1), n, true
}

const tagOctetString = 0x04

// encOct emits an OCTET STRING under the given tag.
func encOct(dst []byte, off int, tag uint32, val []byte) int {
	return encTLV(dst, off, tag, val)
}

// decOctExact consumes an OCTET STRING of exactly the given size.
func decOctExact(data []byte, tag uint32, size int) ([]byte, int, bool) {
	val, n, ok := decTLV(data, tag)
	if !ok || len(val) != size {
		return nil, 0, false
	}
	return val, n, true
}
