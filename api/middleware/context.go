package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgauth "github.com/davidorduna/agromarket-backend/pkg/auth"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

type contextKey string

const (
	ctxCustomerID contextKey = "customer_id"
	ctxRole       contextKey = "actor_role"
)

func CustomerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCustomerID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the authenticated identity into the context.
func WithActor(ctx context.Context, customerID string, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxCustomerID, customerID)
	return context.WithValue(ctx, ctxRole, role)
}

// ActorFromContext rebuilds the authenticated actor seeded by the Auth
// middleware.
func ActorFromContext(ctx context.Context) (pkgauth.Actor, error) {
	customerID, err := uuid.Parse(CustomerIDFromContext(ctx))
	if err != nil {
		return pkgauth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authenticated identity")
	}
	role, err := enums.ParseUserRole(RoleFromContext(ctx))
	if err != nil {
		return pkgauth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor role")
	}
	return pkgauth.Actor{CustomerID: customerID, Role: role}, nil
}
