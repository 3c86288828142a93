package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gestorpj/fiscal-engine-go/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const (
	companyIDKey  contextKey = "companyID"
	privilegedKey contextKey = "privileged"
)

// JWTAuthMiddleware validates Bearer tokens and injects the company scope
// into context. Every /v1 data route runs behind it.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Formato de token inválido")
				return
			}

			claims, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), companyIDKey, claims.Sub)
			ctx = context.WithValue(ctx, privilegedKey, claims.Privileged)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrivileged guards maintenance endpoints: the token must carry the
// privileged claim.
func RequirePrivileged(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !PrivilegedFromContext(r.Context()) {
				logger.Warn("privileged endpoint denied",
					zap.String("path", r.URL.Path),
					zap.String("company_id", CompanyIDFromContext(r.Context())),
				)
				writeError(w, http.StatusForbidden, "Operação restrita")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CompanyIDFromContext extracts the authenticated company ID from context.
func CompanyIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(companyIDKey).(string)
	return v
}

// PrivilegedFromContext reports whether the token carried the privileged claim.
func PrivilegedFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(privilegedKey).(bool)
	return v
}
