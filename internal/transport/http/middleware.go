package http

import (
	"context"
	"net/http"

	"trip-monitor/internal/auth"
)

type contextKey string

const (
	driverClaimsKey   contextKey = "driverClaims"
	operatorClaimsKey contextKey = "operatorClaims"
)

type AuthMiddleware struct {
	auth *auth.Service
}

func NewAuthMiddleware(a *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

// WrapDriver requires a valid driver token and stores the claims on the
// request context.
func (m *AuthMiddleware) WrapDriver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := m.auth.ParseDriverToken(token)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ping invalid: no driver id found")
			return
		}
		ctx := context.WithValue(r.Context(), driverClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WrapOperator requires a valid monitor-operations token.
func (m *AuthMiddleware) WrapOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := m.auth.ParseOperatorToken(token)
		if err != nil {
			writeError(w, http.StatusForbidden, "not entitled to monitoring")
			return
		}
		ctx := context.WithValue(r.Context(), operatorClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func driverFromContext(ctx context.Context) *auth.DriverClaims {
	claims, _ := ctx.Value(driverClaimsKey).(*auth.DriverClaims)
	return claims
}

func operatorFromContext(ctx context.Context) *auth.OperatorClaims {
	claims, _ := ctx.Value(operatorClaimsKey).(*auth.OperatorClaims)
	return claims
}
