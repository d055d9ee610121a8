package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashClientSecret hashes a client's plain text secret using bcrypt, for
// storage in AuthConfig.Clients. Rejects secrets longer than 72 bytes
// (bcrypt's maximum).
func HashClientSecret(secret string) (string, error) {
	if len(secret) > 72 {
		return "", fmt.Errorf("client secret exceeds maximum length of 72 bytes")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// VerifyClientSecret compares a client's plain text secret, presented to
// POST /auth/token, against its stored bcrypt hash.
func VerifyClientSecret(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
