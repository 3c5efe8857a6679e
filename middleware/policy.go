package middleware

import (
	"context"
	"errors"
	"net/http"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/claims"
	"github.com/MrEthical07/goAuthz/policy"
)

// PolicyAuthorizer is satisfied by *goAuthz.Engine.
type PolicyAuthorizer interface {
	AuthorizePrincipal(ctx context.Context, principal claims.Principal, policyName string, resource *policy.Resource) error
}

// ResourceResolver loads the resource a request addresses. Returning nil and
// no error means the resource does not exist.
type ResourceResolver func(r *http.Request) (*policy.Resource, error)

// RequirePolicy enforces policyName for the principal placed in the context by
// [Authenticate]. Requests without a principal get 401, denials 403.
func RequirePolicy(engine PolicyAuthorizer, policyName string) func(http.Handler) http.Handler {
	return RequireResourcePolicy(engine, policyName, nil)
}

// RequireResourcePolicy is [RequirePolicy] with a resource from resolve.
// Unknown resources get 404.
func RequireResourcePolicy(engine PolicyAuthorizer, policyName string, resolve ResourceResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if engine == nil || !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			var res *policy.Resource
			if resolve != nil {
				var err error
				res, err = resolve(r)
				if err != nil {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				if res == nil {
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
			}

			if err := engine.AuthorizePrincipal(r.Context(), p, policyName, res); err != nil {
				http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, goAuthz.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, goAuthz.ErrToken):
		return http.StatusUnauthorized
	case errors.Is(err, goAuthz.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
