package middleware

import (
	"context"

	"github.com/vendkiosk/kiosk-backend/pkg/enums"
)

type contextKey string

const (
	ctxOperator contextKey = "operator"
	ctxRole     contextKey = "admin_role"
)

func OperatorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperator).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.AdminRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.AdminRole); ok {
		return v
	}
	return ""
}

// WithAdmin seeds the context the way AdminAuth does; handler tests use it to
// skip token minting.
func WithAdmin(ctx context.Context, operator string, role enums.AdminRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxOperator, operator)
	return context.WithValue(ctx, ctxRole, role)
}
