// internal/reqctx/reqctx.go
package reqctx

import "context"

type key int

const (
	keyRequestID key = iota
	keyAccountEmail
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok
}

// WithAccountEmail кладёт email аутентифицированного администратора.
func WithAccountEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, keyAccountEmail, email)
}

func GetAccountEmail(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyAccountEmail).(string)
	return v, ok
}
