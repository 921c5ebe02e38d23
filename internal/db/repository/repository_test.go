package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/adamscao/cvca/internal/db"
	"github.com/adamscao/cvca/internal/models"
)

func testDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return database
}

func testUser(t *testing.T, repo *UserRepository) *models.User {
	t.Helper()
	user := &models.User{
		Username:       "alice",
		PasswordHash:   "hash",
		TOTPSecret:     "secret",
		Enabled:        true,
		MaxCertsPerDay: 3,
	}
	if err := repo.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	database := testDB(t)
	repo := NewUserRepository(database.DB)
	user := testUser(t, repo)

	got, err := repo.GetByUsername("alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != user.ID || !got.Enabled || got.MaxCertsPerDay != 3 {
		t.Errorf("got %+v", got)
	}

	got.Enabled = false
	if err := repo.Update(got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.GetByID(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("update not persisted")
	}

	if _, err := repo.GetByUsername("nobody"); err == nil {
		t.Error("missing user found")
	}

	users, err := repo.List()
	if err != nil || len(users) != 1 {
		t.Errorf("List: %v, %d users", err, len(users))
	}
}

func TestCertRepository(t *testing.T) {
	database := testDB(t)
	userRepo := NewUserRepository(database.DB)
	user := testUser(t, userRepo)
	repo := NewCertRepository(database.DB)

	serial, err := repo.GetNextSerialNumber()
	if err != nil {
		t.Fatal(err)
	}
	if serial != 1 {
		t.Errorf("first serial %d", serial)
	}

	cert := &models.CertificateRecord{
		UserID:       user.ID,
		SerialNumber: serial,
		Holder:       "TESTDEVICE01",
		Authority:    "TESTROOTCA",
		Level:        128,
		PublicKeyFP:  "SHA256:abc",
		CertDER:      "7f21aa",
		ValidFrom:    "250101",
		ValidTo:      "260101",
		ClientIP:     "127.0.0.1",
	}
	if err := repo.Create(cert); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetBySerialNumber(serial)
	if err != nil {
		t.Fatalf("GetBySerialNumber: %v", err)
	}
	if got.Holder != "TESTDEVICE01" || got.CertDER != "7f21aa" {
		t.Errorf("got %+v", got)
	}

	got, err = repo.GetLatestByFingerprint("SHA256:abc")
	if err != nil {
		t.Fatalf("GetLatestByFingerprint: %v", err)
	}
	if got.SerialNumber != serial {
		t.Errorf("fingerprint lookup returned serial %d", got.SerialNumber)
	}
	if _, err := repo.GetLatestByFingerprint("SHA256:zzz"); err == nil {
		t.Error("missing fingerprint found")
	}

	count, err := repo.GetUserCertCountToday(user.ID)
	if err != nil || count != 1 {
		t.Errorf("count today: %v, %d", err, count)
	}

	next, err := repo.GetNextSerialNumber()
	if err != nil || next != serial+1 {
		t.Errorf("next serial: %v, %d", err, next)
	}

	expiring, err := repo.ListExpiringBefore("270101")
	if err != nil || len(expiring) != 1 {
		t.Errorf("expiring: %v, %d", err, len(expiring))
	}
	expiring, err = repo.ListExpiringBefore("250601")
	if err != nil || len(expiring) != 0 {
		t.Errorf("not-yet-expiring: %v, %d", err, len(expiring))
	}
}

func TestTokenRepository(t *testing.T) {
	database := testDB(t)
	userRepo := NewUserRepository(database.DB)
	user := testUser(t, userRepo)
	repo := NewTokenRepository(database.DB)

	token := &models.RenewToken{
		UserID:      user.ID,
		TokenHash:   "tokenhash",
		PublicKeyFP: "SHA256:abc",
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}
	if err := repo.Create(token); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.ValidateToken("tokenhash", "SHA256:abc")
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("token user %d", got.UserID)
	}

	// Wrong fingerprint must not validate
	if _, err := repo.ValidateToken("tokenhash", "SHA256:zzz"); err == nil {
		t.Error("token validated with a foreign fingerprint")
	}

	if err := repo.UpdateLastUsed(got.ID); err != nil {
		t.Fatalf("UpdateLastUsed: %v", err)
	}
	got, err = repo.GetByTokenHash("tokenhash")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastUsedAt == nil {
		t.Error("last_used_at not set")
	}

	// An expired token must not validate
	expired := &models.RenewToken{
		UserID:      user.ID,
		TokenHash:   "expiredhash",
		PublicKeyFP: "SHA256:abc",
		ExpiresAt:   time.Now().Add(-48 * time.Hour),
	}
	if err := repo.Create(expired); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ValidateToken("expiredhash", "SHA256:abc"); err == nil {
		t.Error("expired token validated")
	}
}

func TestTerminalRepository(t *testing.T) {
	database := testDB(t)
	repo := NewTerminalRepository(database.DB)

	term := &models.Terminal{
		Name:        "TESTGATE0001",
		Location:    "lobby",
		EIDAccess:   "8877665544",
		RootTrusted: true,
	}
	if err := repo.Create(term); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByName("TESTGATE0001")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if !got.RootTrusted || got.Location != "lobby" {
		t.Errorf("got %+v", got)
	}

	// UpdateOrCreate with the same name must update, not duplicate
	term2 := &models.Terminal{Name: "TESTGATE0001", Location: "entrance", RootTrusted: false}
	if err := repo.UpdateOrCreate(term2); err != nil {
		t.Fatalf("UpdateOrCreate: %v", err)
	}
	terms, err := repo.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 1 {
		t.Fatalf("expected 1 terminal, got %d", len(terms))
	}
	if terms[0].Location != "entrance" || terms[0].RootTrusted {
		t.Errorf("update not applied: %+v", terms[0])
	}
}

func TestAuditRepository(t *testing.T) {
	database := testDB(t)
	repo := NewAuditRepository(database.DB)

	entries := []*models.AuditLog{
		{Action: models.ActionCertIssue, Username: "alice", ClientIP: "127.0.0.1", Success: true},
		{Action: models.ActionAuthFailed, Username: "mallory", ClientIP: "10.0.0.9", Success: false, ErrorMsg: "bad password"},
		{Action: models.ActionCertVerify, ClientIP: "127.0.0.1", Success: true},
	}
	for _, e := range entries {
		if err := repo.Create(e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	logs, err := repo.List("", "", 10)
	if err != nil || len(logs) != 3 {
		t.Fatalf("List all: %v, %d", err, len(logs))
	}

	logs, err = repo.List("alice", "", 10)
	if err != nil || len(logs) != 1 || logs[0].Action != models.ActionCertIssue {
		t.Errorf("List by user: %v, %d", err, len(logs))
	}

	failed, err := repo.ListFailedAuth(time.Now().Add(-time.Hour), 10)
	if err != nil || len(failed) != 1 || failed[0].Username != "mallory" {
		t.Errorf("ListFailedAuth: %v, %d", err, len(failed))
	}

	count, err := repo.CountByAction(models.ActionCertVerify, time.Now().Add(-time.Hour))
	if err != nil || count != 1 {
		t.Errorf("CountByAction: %v, %d", err, count)
	}
}
