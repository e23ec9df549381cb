package auth

import "context"

type contextKey struct{}

var userIDContextKey = contextKey{}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the user resolved by the auth middleware, or the
// guest user when the request never went through it.
func UserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDContextKey).(string); ok && userID != "" {
		return userID
	}
	return GuestUserID
}
