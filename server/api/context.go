package api

import "context"

type contextKey int

const ctxKeyUserID contextKey = 0

// WithUserID returns a context carrying the authenticated user's id.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, id)
}

// UserID returns the authenticated user's id, or 0 outside an authenticated request.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxKeyUserID).(int64)
	return id
}
