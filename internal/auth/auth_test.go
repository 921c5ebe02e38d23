package auth

import "testing"

func TestRenewTokenRoundTrip(t *testing.T) {
	token, err := GenerateRenewToken()
	if err != nil {
		t.Fatalf("GenerateRenewToken: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	hash := HashToken(token)
	if !VerifyToken(token, hash) {
		t.Error("token does not verify against its own hash")
	}
	if VerifyToken(token+"x", hash) {
		t.Error("modified token verified")
	}

	other, err := GenerateRenewToken()
	if err != nil {
		t.Fatal(err)
	}
	if other == token {
		t.Error("two generated tokens are identical")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("password does not verify against its own hash")
	}
	if VerifyPassword("wrong password", hash) {
		t.Error("wrong password verified")
	}
}

func TestTOTPSecretAndQRURL(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("GenerateTOTPSecret: %v", err)
	}
	if secret == "" {
		t.Fatal("empty secret")
	}

	url := GenerateQRCodeURL(secret, "alice", "")
	if url == "" {
		t.Fatal("empty QR URL")
	}

	// A clearly wrong code must not validate
	ok, err := ValidateTOTP(secret, "000000")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("bogus TOTP code validated")
	}
}
