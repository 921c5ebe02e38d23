package ca

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adamscao/cvca/internal/config"
	"github.com/adamscao/cvca/pkg/cvc"
)

// Authority is the issuing side of the CA: it owns the private key, the
// self-signed root CV certificate and the codec used to issue and verify
// subject certificates.
type Authority struct {
	name    string
	level   cvc.Level
	priv    []byte
	codec   *cvc.Codec
	root    cvc.Certificate
	rootDER []byte
}

// LoadOrCreate loads the authority's key and root certificate from the
// configured paths, generating and persisting both on first start.
func LoadOrCreate(cfg config.AuthorityConfig, rootValidity time.Duration) (*Authority, error) {
	prov, err := NewProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	level, err := levelFromBits(cfg.Level)
	if err != nil {
		return nil, err
	}

	a := &Authority{
		name:  cfg.Name,
		level: level,
		codec: cvc.New(prov, cvc.WithRandom(cvc.SystemRandom{})),
	}

	certPath := rootCertPath(cfg.PrivateKeyPath)
	if _, err := os.Stat(cfg.PrivateKeyPath); err == nil {
		if err := a.load(cfg.PrivateKeyPath, certPath); err != nil {
			return nil, err
		}
		return a, nil
	}

	if err := a.create(cfg.PrivateKeyPath, certPath, rootValidity); err != nil {
		return nil, err
	}
	return a, nil
}

// rootCertPath derives the root certificate path from the private key path
func rootCertPath(privPath string) string {
	ext := filepath.Ext(privPath)
	return strings.TrimSuffix(privPath, ext) + ".crt"
}

// load reads a hex-encoded private key and the root certificate, verifying
// that they still belong together
func (a *Authority) load(privPath, certPath string) error {
	privHex, err := os.ReadFile(privPath)
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	priv, err := hex.DecodeString(strings.TrimSpace(string(privHex)))
	if err != nil {
		return fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(priv) != a.level.PrivateKeyLen() {
		return fmt.Errorf("private key is %d bytes, authority level wants %d",
			len(priv), a.level.PrivateKeyLen())
	}

	der, err := os.ReadFile(certPath)
	if err != nil {
		return fmt.Errorf("failed to read root certificate: %w", err)
	}
	if err := a.codec.Decode(&a.root, der, nil); err != nil {
		return fmt.Errorf("failed to decode root certificate: %w", err)
	}
	if a.root.Holder != a.name {
		return fmt.Errorf("root certificate holder %q does not match authority name %q",
			a.root.Holder, a.name)
	}
	// Self-signed: the certificate must verify against its own key, and that
	// key must match the private key on disk.
	var check cvc.Certificate
	if err := a.codec.Decode(&check, der, a.root.PublicKey()); err != nil {
		return fmt.Errorf("root certificate does not verify: %w", err)
	}

	a.priv = priv
	a.rootDER = der
	return nil
}

// create generates a fresh private key, issues the self-signed root and
// persists both
func (a *Authority) create(privPath, certPath string, validity time.Duration) error {
	rnd := cvc.SystemRandom{}
	priv, err := rnd.Draw(a.level.PrivateKeyLen())
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	now := time.Now()
	from, err := dateOf(now)
	if err != nil {
		return err
	}
	until, err := dateOf(now.Add(validity))
	if err != nil {
		return err
	}

	root := cvc.Certificate{
		Authority: a.name,
		Holder:    a.name,
		From:      from,
		Until:     until,
	}
	// The public key is derived from priv inside Encode; self-signed roots
	// carry their own signing key.
	der, err := a.codec.Encode(&root, priv)
	if err != nil {
		return fmt.Errorf("failed to issue root certificate: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(privPath), 0755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(priv)+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(certPath, der, 0644); err != nil {
		return fmt.Errorf("failed to write root certificate: %w", err)
	}

	a.priv = priv
	a.root = root
	a.rootDER = der
	return nil
}

// Name returns the authority's CV-certificate name
func (a *Authority) Name() string { return a.name }

// Level returns the authority's security level
func (a *Authority) Level() cvc.Level { return a.level }

// Root returns the decoded self-signed root certificate
func (a *Authority) Root() *cvc.Certificate {
	root := a.root
	return &root
}

// RootDER returns the encoded self-signed root certificate
func (a *Authority) RootDER() []byte { return a.rootDER }

// Issue signs a draft certificate with the authority's key. The draft must
// carry the subject's public key and chain correctly off the root.
func (a *Authority) Issue(draft *cvc.Certificate) ([]byte, error) {
	return a.codec.Issue(draft, a.rootDER, a.priv)
}

// Verify decodes der, checks its signature against the authority's key and
// its chain against the root, and returns the decoded certificate.
func (a *Authority) Verify(der []byte) (*cvc.Certificate, error) {
	c := new(cvc.Certificate)
	if err := a.codec.Decode(c, der, a.root.PublicKey()); err != nil {
		return nil, err
	}
	if err := a.codec.CheckChain(c, &a.root); err != nil {
		return nil, err
	}
	return c, nil
}

// Codec exposes the authority's codec for operations that only need
// decoding, such as certificate inspection.
func (a *Authority) Codec() *cvc.Codec { return a.codec }

// levelFromBits maps the configured bit strength to a level
func levelFromBits(bits int) (cvc.Level, error) {
	switch bits {
	case 128:
		return cvc.Level128, nil
	case 192:
		return cvc.Level192, nil
	case 256:
		return cvc.Level256, nil
	}
	return 0, fmt.Errorf("unsupported security level: %d", bits)
}

// dateOf converts a wall-clock time to a certificate date
func dateOf(t time.Time) (cvc.Date, error) {
	d, err := cvc.MakeDate(t.Year(), int(t.Month()), t.Day())
	if err != nil {
		return cvc.Date{}, fmt.Errorf("time %v is outside the certificate date range: %w", t, err)
	}
	return d, nil
}
