package auth

import "context"

type contextKey int

const clientIDKey contextKey = iota

// GetClientID retrieves the authenticated API client ID from ctx, or ""
// if the request carries no client identity (anonymous/local CLI use).
func GetClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}

// SetClientID returns a copy of ctx carrying clientID.
func SetClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}
