package goAuthz

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goAuthz/claims"
	"github.com/MrEthical07/goAuthz/policy"
)

// Authorize validates accessToken and evaluates the named policy against its
// claims and resource. On success it returns the principal carried by the
// token. A rejected token is [ErrToken]; a denial is [ErrAuthorizationDenied].
func (e *Engine) Authorize(ctx context.Context, accessToken, policyName string, resource *policy.Resource) (claims.Principal, error) {
	if !e.ready() {
		return claims.Principal{}, ErrEngineNotReady
	}
	principal, err := e.ValidateToken(accessToken)
	if err != nil {
		return claims.Principal{}, err
	}
	if err := e.AuthorizePrincipal(ctx, principal, policyName, resource); err != nil {
		return claims.Principal{}, err
	}
	return principal, nil
}

// AuthorizePrincipal evaluates the named policy for an already authenticated
// principal.
func (e *Engine) AuthorizePrincipal(ctx context.Context, principal claims.Principal, policyName string, resource *policy.Resource) error {
	if e == nil || e.policies == nil || e.evaluator == nil {
		return ErrEngineNotReady
	}
	p, err := e.policies.Get(policyName)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownPolicy, policyName)
	}
	decision := e.EvaluatePolicy(ctx, p, policy.AuthorizationContext{Principal: principal, Resource: resource})
	if !decision.Allowed() {
		return ErrAuthorizationDenied
	}
	return nil
}

// AuthorizeResource is [Engine.Authorize] with the resource loaded from the
// configured [ResourceStore]. A resource that does not exist is denied.
func (e *Engine) AuthorizeResource(ctx context.Context, accessToken, policyName, resourceID string) (claims.Principal, error) {
	if !e.ready() {
		return claims.Principal{}, ErrEngineNotReady
	}
	if e.resources == nil {
		return claims.Principal{}, fmt.Errorf("%w: no resource store", ErrEngineNotReady)
	}
	principal, err := e.ValidateToken(accessToken)
	if err != nil {
		return claims.Principal{}, err
	}
	res, err := e.resources.FindResource(ctx, resourceID)
	if err != nil {
		return claims.Principal{}, e.backendErr(ctx, "find resource", err)
	}
	if res == nil {
		e.metricInc(MetricPolicyDeny)
		e.emitAudit(ctx, auditEventPolicyDenied, false, principal.ID(), "resource_not_found", func() map[string]string {
			return map[string]string{"policy": policyName, "resource_id": resourceID}
		})
		return claims.Principal{}, ErrAuthorizationDenied
	}
	if err := e.AuthorizePrincipal(ctx, principal, policyName, res); err != nil {
		return claims.Principal{}, err
	}
	return principal, nil
}

// EvaluatePolicy decides p for actx. It never fails; every unresolvable input
// is a denial.
func (e *Engine) EvaluatePolicy(ctx context.Context, p policy.Policy, actx policy.AuthorizationContext) policy.Decision {
	if e == nil || e.evaluator == nil {
		return policy.Deny
	}

	start := time.Now()
	decision := e.evaluator.Evaluate(ctx, p, actx)
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricPolicyLatency, time.Since(start))
	}

	if decision.Allowed() {
		e.metricInc(MetricPolicyAllow)
		return decision
	}
	e.metricInc(MetricPolicyDeny)
	e.emitAudit(ctx, auditEventPolicyDenied, false, actx.Principal.ID(), "denied", func() map[string]string {
		return map[string]string{"policy": p.Name()}
	})
	return decision
}
