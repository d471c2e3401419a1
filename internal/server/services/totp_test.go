package services

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

const testSecret = "JBSWY3DPEHPK3PXP"

func TestCheckTOTP_Window(t *testing.T) {
	// Aligned to a 30s step boundary
	at := time.Unix(1_700_000_010, 0)
	code, err := totp.GenerateCode(testSecret, at)
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}

	if !CheckTOTP(code, testSecret, at) {
		t.Error("Expected code valid at its own step")
	}
	if !CheckTOTP(code, testSecret, at.Add(30*time.Second)) {
		t.Error("Expected code valid one step later")
	}
	if !CheckTOTP(code, testSecret, at.Add(-30*time.Second)) {
		t.Error("Expected code valid one step earlier")
	}
	if CheckTOTP(code, testSecret, at.Add(60*time.Second)) {
		t.Error("Expected code rejected two steps later")
	}
	if CheckTOTP(code, testSecret, at.Add(-60*time.Second)) {
		t.Error("Expected code rejected two steps earlier")
	}
}

func TestCheckTOTP_RejectsEmpty(t *testing.T) {
	if CheckTOTP("", testSecret, time.Now()) {
		t.Error("Expected empty code rejected")
	}
	if CheckTOTP("123456", "", time.Now()) {
		t.Error("Expected empty secret rejected")
	}
}

func TestGenerateTOTPSecret(t *testing.T) {
	secret, url, err := GenerateTOTPSecret("Laptop")
	if err != nil {
		t.Fatalf("GenerateTOTPSecret failed: %v", err)
	}
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("Generated secret is not usable: %v", err)
	}
	if !CheckTOTP(code, secret, time.Now()) {
		t.Error("Expected generated secret to validate")
	}
	if !strings.Contains(url, "Laptop") {
		t.Errorf("Expected account name in URL: %s", url)
	}
}
