package utils

import (
	"fmt"
	"net/url"
)

const OTPIssuer = "Sentinel"

// OTPAuthURL builds the provisioning URL authenticator apps scan for an
// existing secret (SHA1, 6 digits, 30s).
func OTPAuthURL(accountName, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", OTPIssuer)
	v.Set("period", "30")
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + OTPIssuer + ":" + accountName,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// PairingURI is the sentinel:// string a device scans to pick up its code
func PairingURI(deviceID, code string) string {
	return fmt.Sprintf("sentinel://pair?deviceId=%s&code=%s", url.QueryEscape(deviceID), code)
}

// ParsePairingURI is the inverse of PairingURI
func ParsePairingURI(s string) (deviceID, code string, err error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", "", fmt.Errorf("invalid pairing string: %w", err)
	}
	if u.Scheme != "sentinel" || u.Host != "pair" {
		return "", "", fmt.Errorf("not a sentinel pairing string")
	}

	q := u.Query()
	deviceID, code = q.Get("deviceId"), q.Get("code")
	if deviceID == "" || code == "" {
		return "", "", fmt.Errorf("pairing string is missing deviceId or code")
	}
	return deviceID, code, nil
}
