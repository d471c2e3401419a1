package wireguard

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

func GenerateKeyPair() (privateKey, publicKey string, err error) {
	var privateKeyBytes [32]byte
	if _, err := rand.Read(privateKeyBytes[:]); err != nil {
		return "", "", fmt.Errorf("failed to generate private key: %w", err)
	}

	// Clamp private key for Curve25519
	privateKeyBytes[0] &= 248
	privateKeyBytes[31] &= 127
	privateKeyBytes[31] |= 64

	privateKey = base64.StdEncoding.EncodeToString(privateKeyBytes[:])
	publicKey, err = PublicKeyFromPrivate(privateKey)
	if err != nil {
		return "", "", err
	}
	return privateKey, publicKey, nil
}

// PublicKeyFromPrivate derives the base64 public key for a stored private key
func PublicKeyFromPrivate(privateKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil || len(raw) != curve25519.ScalarSize {
		return "", fmt.Errorf("invalid private key")
	}

	pub, err := curve25519.X25519(raw, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("failed to derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}
