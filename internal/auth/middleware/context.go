package auth

import "context"

type ctxKey string

const ctxKeyUser ctxKey = "user_id"

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKeyUser, id)
}

// UserIDFromContext returns 0 when the request carries no verified identity.
func UserIDFromContext(ctx context.Context) int64 {
	if v := ctx.Value(ctxKeyUser); v != nil {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
