package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goAuthz/claims"
)

// TokenValidator is satisfied by *goAuthz.Engine.
type TokenValidator interface {
	ValidateToken(accessToken string) (claims.Principal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by [Authenticate].
func PrincipalFromContext(ctx context.Context) (claims.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(claims.Principal)
	return p, ok
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p claims.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Authenticate rejects requests without a valid bearer access token with 401.
func Authenticate(engine TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			p, err := engine.ValidateToken(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
