package services

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/kamikazebr/sentinel/pkg/utils"
)

const totpIssuer = utils.OTPIssuer

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// CheckTOTP reports whether code is valid for secret at the given instant,
// tolerating one 30s step of drift either way.
func CheckTOTP(code, secret string, at time.Time) bool {
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, totpOpts)
	if err != nil {
		return false
	}
	return ok
}

// GenerateTOTPSecret returns a new base32 secret and its otpauth URL
func GenerateTOTPSecret(accountName string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}
