package cvc_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/adamscao/cvca/pkg/cvc"
	"github.com/adamscao/cvca/pkg/cvc/cvctest"
)

func testKey(fill byte, n int) []byte {
	priv := make([]byte, n)
	for i := range priv {
		priv[i] = fill
	}
	return priv
}

func mustDate(t *testing.T, s string) cvc.Date {
	t.Helper()
	d, err := cvc.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newRoot(t *testing.T, priv []byte) *cvc.Certificate {
	t.Helper()
	return &cvc.Certificate{
		Authority: "TESTROOTCA",
		Holder:    "TESTROOTCA",
		HATEID:    [5]byte{0x88, 0x77, 0x66, 0x55, 0x44},
		HATESign:  [2]byte{0x33, 0x22},
		From:      mustDate(t, "200101"),
		Until:     mustDate(t, "401231"),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cd := cvc.New(cvctest.Provider{})
	for _, privLen := range []int{32, 48, 64} {
		priv := testKey(0x11, privLen)
		src := newRoot(t, priv)
		der, err := cd.Encode(src, priv)
		if err != nil {
			t.Fatalf("Encode(%d): %v", privLen, err)
		}
		if src.PubKeyLen != 2*privLen {
			t.Errorf("derived public key length %d, want %d", src.PubKeyLen, 2*privLen)
		}
		if src.SigLen != privLen+privLen/2 {
			t.Errorf("signature length %d, want %d", src.SigLen, privLen+privLen/2)
		}

		var got cvc.Certificate
		if err := cd.Decode(&got, der, src.PublicKey()); err != nil {
			t.Fatalf("Decode(%d): %v", privLen, err)
		}
		if got != *src {
			t.Errorf("round trip mismatch at private key length %d", privLen)
		}
	}
}

func TestDecodeWithoutKeySkipsVerification(t *testing.T) {
	cd := cvc.New(cvctest.Provider{})
	for _, privLen := range []int{32, 48, 64} {
		priv := testKey(0x22, privLen)
		src := newRoot(t, priv)
		der, err := cd.Encode(src, priv)
		if err != nil {
			t.Fatal(err)
		}
		// The signature length must be recovered by trial even though no
		// verification key is supplied.
		var got cvc.Certificate
		if err := cd.Decode(&got, der, nil); err != nil {
			t.Fatalf("Decode without key (%d): %v", privLen, err)
		}
		if got.SigLen != privLen+privLen/2 {
			t.Errorf("recovered signature length %d, want %d", got.SigLen, privLen+privLen/2)
		}

		// A flipped signature byte still decodes without a key.
		bad := bytes.Clone(der)
		bad[len(bad)-1] ^= 0x01
		if err := cd.Decode(&got, bad, nil); err != nil {
			t.Errorf("keyless decode rejected flipped signature: %v", err)
		}
		if err := cd.Decode(&got, bad, src.PublicKey()); err == nil {
			t.Error("keyed decode accepted flipped signature")
		}
	}
}

func TestDecodeAbsentOptionalFields(t *testing.T) {
	cd := cvc.New(cvctest.Provider{})
	priv := testKey(0x33, 32)
	src := newRoot(t, priv)
	src.HATEID = [5]byte{}
	src.HATESign = [2]byte{}
	der, err := cd.Encode(src, priv)
	if err != nil {
		t.Fatal(err)
	}
	var got cvc.Certificate
	if err := cd.Decode(&got, der, src.PublicKey()); err != nil {
		t.Fatal(err)
	}
	if got.HATEID != ([5]byte{}) || got.HATESign != ([2]byte{}) {
		t.Error("absent access-rights fields decoded nonzero")
	}

	// The shorter encoding must really omit the optional fields.
	full, err := cd.Encode(newRoot(t, priv), priv)
	if err != nil {
		t.Fatal(err)
	}
	if len(der) >= len(full) {
		t.Errorf("optional-free encoding not shorter: %d vs %d", len(der), len(full))
	}
}

func TestDecodeCorruptionSweep(t *testing.T) {
	cd := cvc.New(cvctest.Provider{})
	priv := testKey(0x44, 32)
	src := newRoot(t, priv)
	der, err := cd.Encode(src, priv)
	if err != nil {
		t.Fatal(err)
	}
	pub := src.PublicKey()

	var got cvc.Certificate
	for i := range der {
		for _, mask := range []byte{0x01, 0x80} {
			bad := bytes.Clone(der)
			bad[i] ^= mask
			if err := cd.Decode(&got, bad, pub); err == nil {
				t.Fatalf("accepted certificate with byte %d flipped by %#x", i, mask)
			}
		}
	}
	for cut := 1; cut <= len(der); cut++ {
		if err := cd.Decode(&got, der[:len(der)-cut], pub); err == nil {
			t.Fatalf("accepted certificate truncated by %d bytes", cut)
		}
	}
	if err := cd.Decode(&got, append(bytes.Clone(der), 0x00), pub); !errors.Is(err, cvc.ErrBadFormat) {
		t.Errorf("trailing byte: got %v, want ErrBadFormat", err)
	}
	if err := cd.Decode(&got, nil, pub); !errors.Is(err, cvc.ErrBadFormat) {
		t.Errorf("empty input: got %v, want ErrBadFormat", err)
	}
}

func TestDecodeZeroesStaleRecord(t *testing.T) {
	cd := cvc.New(cvctest.Provider{})
	priv := testKey(0x55, 32)
	der, err := cd.Encode(newRoot(t, priv), priv)
	if err != nil {
		t.Fatal(err)
	}
	stale := cvc.Certificate{Authority: "STALEVALUE", Holder: "STALEVALUE"}
	if err := cd.Decode(&stale, der[:10], nil); err == nil {
		t.Fatal("truncated input accepted")
	}
	if stale.Authority != "" || stale.Holder != "" {
		t.Error("failed decode left stale fields behind")
	}
}

func TestEncodeValidation(t *testing.T) {
	cd := cvc.New(cvctest.Provider{})
	priv := testKey(0x66, 32)
	tests := []struct {
		name    string
		mutate  func(t *testing.T, c *cvc.Certificate)
		priv    []byte
		wantErr error
	}{
		{
			name:    "unsupported private key length",
			mutate:  func(t *testing.T, c *cvc.Certificate) {},
			priv:    testKey(0x66, 33),
			wantErr: cvc.ErrBadInput,
		},
		{
			name:    "short holder name",
			mutate:  func(t *testing.T, c *cvc.Certificate) { c.Holder = "SHORT" },
			priv:    priv,
			wantErr: cvc.ErrBadName,
		},
		{
			name:    "non-printable authority",
			mutate:  func(t *testing.T, c *cvc.Certificate) { c.Authority = "BAD*NAME" },
			priv:    priv,
			wantErr: cvc.ErrBadName,
		},
		{
			name: "from after until",
			mutate: func(t *testing.T, c *cvc.Certificate) {
				c.From = mustDate(t, "300101")
				c.Until = mustDate(t, "250101")
			},
			priv:    priv,
			wantErr: cvc.ErrBadDate,
		},
		{
			name:    "invalid from date",
			mutate:  func(t *testing.T, c *cvc.Certificate) { c.From = cvc.Date{9, 9, 9, 9, 9, 9} },
			priv:    priv,
			wantErr: cvc.ErrBadDate,
		},
		{
			name: "corrupted pre-set public key",
			mutate: func(t *testing.T, c *cvc.Certificate) {
				pub, err := cvctest.Provider{}.DerivePublicKey(priv)
				if err != nil {
					t.Fatal(err)
				}
				pub[0] ^= 0xFF
				if err := c.SetPublicKey(pub); err != nil {
					t.Fatal(err)
				}
			},
			priv:    priv,
			wantErr: cvc.ErrBadPublicKey,
		},
		{
			name:    "nil record",
			mutate:  nil,
			priv:    priv,
			wantErr: cvc.ErrBadInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c *cvc.Certificate
			if tt.mutate != nil {
				c = newRoot(t, tt.priv)
				tt.mutate(t, c)
			}
			if _, err := cd.Encode(c, tt.priv); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeCrossLevelSubjectKey(t *testing.T) {
	// A 128-bit-level issuer may sign a 256-bit-level subject key: the
	// signature length follows the signing key, the public key length the
	// subject key.
	cd := cvc.New(cvctest.Provider{})
	issuerPriv := testKey(0x77, 32)
	subjectPub, err := cvctest.Provider{}.DerivePublicKey(testKey(0x78, 64))
	if err != nil {
		t.Fatal(err)
	}
	c := newRoot(t, issuerPriv)
	if err := c.SetPublicKey(subjectPub); err != nil {
		t.Fatal(err)
	}
	der, err := cd.Encode(c, issuerPriv)
	if err != nil {
		t.Fatalf("cross-level encode: %v", err)
	}
	if c.PubKeyLen != 128 || c.SigLen != 48 {
		t.Errorf("pub=%d sig=%d, want 128/48", c.PubKeyLen, c.SigLen)
	}
	var got cvc.Certificate
	if err := cd.Decode(&got, der, nil); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SigLen != 48 {
		t.Errorf("recovered signature length %d, want 48", got.SigLen)
	}
}

func TestProbabilisticSigningUsesRandom(t *testing.T) {
	drawn := 0
	cd := cvc.New(cvctest.Provider{}, cvc.WithRandom(countingRandom{&drawn}))
	priv := testKey(0x88, 48)
	src := newRoot(t, priv)
	der, err := cd.Encode(src, priv)
	if err != nil {
		t.Fatal(err)
	}
	if drawn != 1 {
		t.Errorf("random source drawn %d times, want 1", drawn)
	}
	var got cvc.Certificate
	if err := cd.Decode(&got, der, src.PublicKey()); err != nil {
		t.Errorf("probabilistically signed certificate rejected: %v", err)
	}
}

type countingRandom struct{ n *int }

func (countingRandom) Available() bool { return true }

func (r countingRandom) Draw(n int) ([]byte, error) {
	*r.n++
	return make([]byte, n), nil
}

func TestCheckChain(t *testing.T) {
	prov := cvctest.Provider{}
	cd := cvc.New(prov)
	issuerPriv := testKey(0x99, 48)
	issuer := newRoot(t, issuerPriv)
	issuer.From = mustDate(t, "220101")
	issuer.Until = mustDate(t, "301231")
	if _, err := cd.Encode(issuer, issuerPriv); err != nil {
		t.Fatal(err)
	}

	newDraft := func(t *testing.T) *cvc.Certificate {
		holderPub, err := prov.DerivePublicKey(testKey(0x9A, 32))
		if err != nil {
			t.Fatal(err)
		}
		c := &cvc.Certificate{
			Authority: issuer.Holder,
			Holder:    "TESTDEVICE01",
			From:      mustDate(t, "250101"),
			Until:     mustDate(t, "270101"),
		}
		if err := c.SetPublicKey(holderPub); err != nil {
			t.Fatal(err)
		}
		return c
	}

	if err := cd.CheckChain(newDraft(t), issuer); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}

	// The subject's end date may lie beyond the issuer's window.
	long := newDraft(t)
	long.Until = mustDate(t, "501231")
	if err := cd.CheckChain(long, issuer); err != nil {
		t.Errorf("end date beyond issuer window rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(t *testing.T, c *cvc.Certificate)
		wantErr error
	}{
		{
			name:    "authority does not match issuer holder",
			mutate:  func(t *testing.T, c *cvc.Certificate) { c.Authority = "OTHERAUTH1" },
			wantErr: cvc.ErrBadName,
		},
		{
			name:    "starts before issuer window",
			mutate:  func(t *testing.T, c *cvc.Certificate) { c.From = mustDate(t, "211231") },
			wantErr: cvc.ErrBadDate,
		},
		{
			name: "starts after issuer window",
			mutate: func(t *testing.T, c *cvc.Certificate) {
				c.From = mustDate(t, "310101")
				c.Until = mustDate(t, "320101")
			},
			wantErr: cvc.ErrBadDate,
		},
		{
			name:    "no public key",
			mutate:  func(t *testing.T, c *cvc.Certificate) { c.PubKeyLen = 0 },
			wantErr: cvc.ErrBadPublicKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newDraft(t)
			tt.mutate(t, c)
			if err := cd.CheckChain(c, issuer); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := cd.CheckChain(newDraft(t), nil); !errors.Is(err, cvc.ErrBadInput) {
		t.Error("nil issuer accepted")
	}
}

func TestIssueAndVerifyChain(t *testing.T) {
	prov := cvctest.Provider{}
	cd := cvc.New(prov)
	issuerPriv := testKey(0xAA, 64)
	issuer := newRoot(t, issuerPriv)
	issuerDER, err := cd.Encode(issuer, issuerPriv)
	if err != nil {
		t.Fatal(err)
	}

	holderPriv := testKey(0xAB, 32)
	holderPub, err := prov.DerivePublicKey(holderPriv)
	if err != nil {
		t.Fatal(err)
	}
	draft := &cvc.Certificate{
		Authority: issuer.Holder,
		Holder:    "TESTDEVICE01",
		HATEID:    [5]byte{0x01},
		From:      mustDate(t, "250601"),
		Until:     mustDate(t, "280601"),
	}
	if err := draft.SetPublicKey(holderPub); err != nil {
		t.Fatal(err)
	}

	der, err := cd.Issue(draft, issuerDER, issuerPriv)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	var got cvc.Certificate
	if err := cd.Decode(&got, der, issuer.PublicKey()); err != nil {
		t.Fatalf("issued certificate does not verify against the issuer key: %v", err)
	}
	if got.Holder != draft.Holder || !bytes.Equal(got.PublicKey(), holderPub) {
		t.Error("issued certificate does not carry the draft's identity")
	}
	// Signature length follows the issuer's 64-byte key even though the
	// subject key is 128-bit level.
	if got.SigLen != 96 {
		t.Errorf("signature length %d, want 96", got.SigLen)
	}

	t.Run("wrong issuer key", func(t *testing.T) {
		bad := *draft
		if _, err := cd.Issue(&bad, issuerDER, testKey(0xAC, 64)); !errors.Is(err, cvc.ErrBadKeyPair) {
			t.Errorf("got %v, want ErrBadKeyPair", err)
		}
	})
	t.Run("broken chain", func(t *testing.T) {
		bad := *draft
		bad.Authority = "OTHERAUTH1"
		if _, err := cd.Issue(&bad, issuerDER, issuerPriv); !errors.Is(err, cvc.ErrBadName) {
			t.Errorf("got %v, want ErrBadName", err)
		}
	})
	t.Run("malformed issuer certificate", func(t *testing.T) {
		bad := *draft
		if _, err := cd.Issue(&bad, issuerDER[:20], issuerPriv); !errors.Is(err, cvc.ErrBadFormat) {
			t.Errorf("got %v, want ErrBadFormat", err)
		}
	})
	t.Run("nil draft", func(t *testing.T) {
		if _, err := cd.Issue(nil, issuerDER, issuerPriv); !errors.Is(err, cvc.ErrBadInput) {
			t.Errorf("got %v, want ErrBadInput", err)
		}
	})
}

func TestLevelTable(t *testing.T) {
	for _, tt := range []struct {
		priv, pub, sig, hash int
		name                 string
	}{
		{32, 64, 48, 32, "belt-hash"},
		{48, 96, 72, 48, "wide-hash/192"},
		{64, 128, 96, 64, "wide-hash/256"},
	} {
		lvl, err := cvc.LevelByPrivateKeyLen(tt.priv)
		if err != nil {
			t.Fatal(err)
		}
		if lvl.PublicKeyLen() != tt.pub || lvl.SignatureLen() != tt.sig ||
			lvl.HashLen() != tt.hash || lvl.HashName() != tt.name {
			t.Errorf("level for %d-byte keys: %d/%d/%d %q", tt.priv,
				lvl.PublicKeyLen(), lvl.SignatureLen(), lvl.HashLen(), lvl.HashName())
		}
	}
	for _, n := range []int{0, 16, 33, 128} {
		if _, err := cvc.LevelByPrivateKeyLen(n); !errors.Is(err, cvc.ErrBadInput) {
			t.Errorf("private key length %d accepted", n)
		}
	}
	for _, n := range []int{0, 32, 65, 129} {
		if _, err := cvc.LevelByPublicKeyLen(n); !errors.Is(err, cvc.ErrBadPublicKey) {
			t.Errorf("public key length %d accepted", n)
		}
	}
}
