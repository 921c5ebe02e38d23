package policy

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adamscao/cvca/internal/config"
	"github.com/adamscao/cvca/internal/db"
	"github.com/adamscao/cvca/internal/db/repository"
	"github.com/adamscao/cvca/internal/models"
)

func testValidator(t *testing.T) (*Validator, *repository.CertRepository, *repository.UserRepository) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	cfg := &config.Config{
		Policy: config.PolicyConfig{
			DefaultValidity: "90d",
			MaxValidity:     "365d",
			MaxCertsPerDay:  10,
		},
	}
	certRepo := repository.NewCertRepository(database.DB)
	return NewValidator(cfg, certRepo), certRepo, repository.NewUserRepository(database.DB)
}

func TestValidateIssueRequest(t *testing.T) {
	v, certRepo, userRepo := testValidator(t)

	user := &models.User{
		Username:       "alice",
		PasswordHash:   "hash",
		TOTPSecret:     "secret",
		Enabled:        true,
		MaxCertsPerDay: 2,
	}
	if err := userRepo.Create(user); err != nil {
		t.Fatal(err)
	}

	// A well-formed request grants the requested validity
	validity, err := v.ValidateIssueRequest(user, "TESTDEVICE01", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("ValidateIssueRequest: %v", err)
	}
	if validity != 30*24*time.Hour {
		t.Errorf("granted validity %v", validity)
	}

	// Zero requested validity falls back to the default
	validity, err = v.ValidateIssueRequest(user, "TESTDEVICE01", 0)
	if err != nil {
		t.Fatal(err)
	}
	if validity != 90*24*time.Hour {
		t.Errorf("default validity %v", validity)
	}

	// Requests beyond the maximum are capped, not rejected
	validity, err = v.ValidateIssueRequest(user, "TESTDEVICE01", 1000*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if validity != 365*24*time.Hour {
		t.Errorf("capped validity %v", validity)
	}

	// Malformed holder names are rejected before any issuance
	for _, holder := range []string{"", "SHORT", "WAYTOOLONGNAME", "BAD\x01NAME1"} {
		if _, err := v.ValidateIssueRequest(user, holder, 0); err == nil {
			t.Errorf("holder %q accepted", holder)
		}
	}

	// Disabled accounts cannot issue
	user.Enabled = false
	if _, err := v.ValidateIssueRequest(user, "TESTDEVICE01", 0); err == nil {
		t.Error("disabled user allowed to issue")
	}
	user.Enabled = true

	// Exhaust the per-user daily limit
	for i := 0; i < 2; i++ {
		rec := &models.CertificateRecord{
			UserID:       user.ID,
			SerialNumber: uint64(i + 1),
			Holder:       "TESTDEVICE01",
			Authority:    "TESTROOTCA",
			Level:        128,
			PublicKeyFP:  "SHA256:abc",
			CertDER:      "7f21aa",
			ValidFrom:    "250101",
			ValidTo:      "260101",
		}
		if err := certRepo.Create(rec); err != nil {
			t.Fatal(err)
		}
	}
	_, err = v.ValidateIssueRequest(user, "TESTDEVICE01", 0)
	if err == nil {
		t.Fatal("issuance above the daily limit allowed")
	}
	if !strings.Contains(err.Error(), "daily certificate limit") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRenewRequest(t *testing.T) {
	v, _, userRepo := testValidator(t)

	user := &models.User{
		Username:     "alice",
		PasswordHash: "hash",
		TOTPSecret:   "secret",
		Enabled:      true,
	}
	if err := userRepo.Create(user); err != nil {
		t.Fatal(err)
	}

	token := &models.RenewToken{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}

	validity, err := v.ValidateRenewRequest(user, token)
	if err != nil {
		t.Fatalf("ValidateRenewRequest: %v", err)
	}
	if validity != 90*24*time.Hour {
		t.Errorf("renewal validity %v", validity)
	}

	// Token bound to a different user
	foreign := &models.RenewToken{UserID: user.ID + 1, ExpiresAt: time.Now().Add(24 * time.Hour)}
	if _, err := v.ValidateRenewRequest(user, foreign); err == nil {
		t.Error("foreign token accepted")
	}

	// Expired token
	expired := &models.RenewToken{UserID: user.ID, ExpiresAt: time.Now().Add(-time.Hour)}
	if _, err := v.ValidateRenewRequest(user, expired); err == nil {
		t.Error("expired token accepted")
	}
}
