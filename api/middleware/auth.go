package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/davidorduna/agromarket-backend/api/responses"
	pkgauth "github.com/davidorduna/agromarket-backend/pkg/auth"
	"github.com/davidorduna/agromarket-backend/pkg/config"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
	"github.com/davidorduna/agromarket-backend/pkg/logger"
)

// SessionChecker reports whether the token's session is still live. A nil
// checker skips revocation checks entirely.
type SessionChecker interface {
	HasSession(ctx context.Context, jti string) (bool, error)
}

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, sessions SessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if sessions != nil {
				if claims.ID == "" {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
					return
				}
				ok, err := sessions.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked"))
					return
				}
			}

			ctx := WithActor(r.Context(), claims.CustomerID.String(), string(claims.Role))
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, claims.CustomerID.String())
				ctx = logg.WithActorRole(ctx, string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
