package utils

import (
	"strings"
	"testing"
)

func TestOTPAuthURL(t *testing.T) {
	u := OTPAuthURL("Pixel 8", "JBSWY3DPEHPK3PXP")

	if !strings.HasPrefix(u, "otpauth://totp/Sentinel:Pixel%208?") {
		t.Errorf("Unexpected URL prefix: %s", u)
	}
	if !strings.Contains(u, "secret=JBSWY3DPEHPK3PXP") || !strings.Contains(u, "issuer=Sentinel") {
		t.Errorf("Missing parameters: %s", u)
	}
}

func TestPairingURIRoundTrip(t *testing.T) {
	s := PairingURI("dev a", "123456")
	if s != "sentinel://pair?deviceId=dev+a&code=123456" {
		t.Fatalf("unexpected pairing string %s", s)
	}

	id, code, err := ParsePairingURI(s)
	if err != nil {
		t.Fatalf("ParsePairingURI failed: %v", err)
	}
	if id != "dev a" || code != "123456" {
		t.Fatalf("got id=%q code=%q", id, code)
	}
}

func TestParsePairingURIRejects(t *testing.T) {
	for _, s := range []string{
		"https://pair?deviceId=a&code=1",
		"sentinel://other?deviceId=a&code=1",
		"sentinel://pair?deviceId=a",
		"::not a url",
	} {
		if _, _, err := ParsePairingURI(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}
