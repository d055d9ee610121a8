package middleware

import (
	"net/http"
	"strings"

	"github.com/sievelang/sieve/internal/web/auth"
)

// AuthConfig holds configuration for authentication middleware.
type AuthConfig struct {
	// AuthService validates bearer tokens.
	AuthService *auth.AuthService
	// SkipPaths lists request paths that bypass authentication (e.g. the
	// token exchange endpoint).
	SkipPaths []string
}

// Auth creates an authentication middleware with the given auth service.
func Auth(authService *auth.AuthService) Middleware {
	return AuthWithConfig(AuthConfig{
		AuthService: authService,
		SkipPaths:   []string{},
	})
}

// AuthWithConfig creates an authentication middleware with custom
// configuration. On success it attaches the authenticated client ID to the
// request context via auth.SetClientID.
func AuthWithConfig(config AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skipPath := range config.SkipPaths {
				if r.URL.Path == skipPath {
					next.ServeHTTP(w, r)
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}

			claims, err := config.AuthService.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			clientID := auth.ClientID(claims)
			if clientID == "" {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			ctx := auth.SetClientID(r.Context(), clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
