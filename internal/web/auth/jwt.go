package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService issues and validates bearer tokens for API clients calling
// the compile endpoint. A client authenticates once against POST
// /auth/token with its client ID and secret (checked via VerifyClientSecret
// against the hash in AuthConfig.Clients) and is handed a short-lived token
// to present on subsequent requests.
type AuthService struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewAuthService creates an AuthService signing tokens with secretKey and
// a lifetime of tokenTTL.
func NewAuthService(secretKey string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		secretKey: secretKey,
		tokenTTL:  tokenTTL,
	}
}

// GenerateToken issues a token for clientID whose "schemas" claim lists the
// given schema names. Nothing in sieve reads that claim back.
func (s *AuthService) GenerateToken(clientID string, schemas []string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"client_id": clientID,
		"schemas":   schemas,
		"exp":       now.Add(s.tokenTTL).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

// ValidateToken validates a token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verify exact signing method to prevent algorithm confusion attacks.
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ClientID extracts the client_id claim from validated claims.
func ClientID(claims jwt.MapClaims) string {
	id, _ := claims["client_id"].(string)
	return id
}
