package goAuthz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/claims"
	"github.com/MrEthical07/goAuthz/permission"
	"github.com/MrEthical07/goAuthz/policy"
)

func authorizeEnv(t *testing.T, grants *permission.Grants, opts ...func(*goAuthz.Builder)) *testEnv {
	t.Helper()
	opts = append(opts, func(b *goAuthz.Builder) {
		b.WithPermissionSource(grants)
		b.WithPolicies(
			policy.MustRoles("admins", "Admin"),
			policy.MustRequirements("owners", policy.ResourceOwnership{}),
			policy.MustRequirements("doc-readers", policy.Permission{Name: "documents:read"}),
		)
	})
	return newTestEnv(t, func(cfg *goAuthz.Config) {
		cfg.Policy.Definitions = []policy.Definition{
			{
				Name: "adult-engineers",
				Requirements: []policy.RequirementDefinition{
					{Kind: "minimum_age", Years: 18},
					{Kind: "department", Name: "engineering"},
				},
			},
			{
				Name: "weekday-hours",
				Requirements: []policy.RequirementDefinition{
					{Kind: "time_window", Start: "09:00", End: "17:00", Days: []string{"Mon", "Tue", "Wed", "Thu", "Fri"}},
				},
			},
		}
	}, opts...)
}

func TestAuthorizeNamedPolicies(t *testing.T) {
	env := authorizeEnv(t, permission.NewGrants(nil))
	id := env.register(t, "alice")
	access := env.login(t, "alice").AccessToken
	ctx := context.Background()

	p, err := env.engine.Authorize(ctx, access, "adult-engineers", nil)
	if err != nil {
		t.Fatalf("adult-engineers: %v", err)
	}
	if p.ID() != id {
		t.Fatalf("expected principal %s, got %s", id, p.ID())
	}
	if _, err := env.engine.Authorize(ctx, access, "weekday-hours", nil); err != nil {
		t.Fatalf("weekday-hours at 10:00 Monday: %v", err)
	}
	if _, err := env.engine.Authorize(ctx, access, "admins", nil); !errors.Is(err, goAuthz.ErrAuthorizationDenied) {
		t.Fatalf("admins: expected ErrAuthorizationDenied, got %v", err)
	}

	env.clock.Advance(8 * time.Hour)
	access = env.login(t, "alice").AccessToken
	if _, err := env.engine.Authorize(ctx, access, "weekday-hours", nil); !errors.Is(err, goAuthz.ErrAuthorizationDenied) {
		t.Fatalf("weekday-hours at 18:00: expected ErrAuthorizationDenied, got %v", err)
	}
}

func TestAuthorizeErrors(t *testing.T) {
	env := authorizeEnv(t, permission.NewGrants(nil))
	env.register(t, "alice")
	access := env.login(t, "alice").AccessToken
	ctx := context.Background()

	_, err := env.engine.Authorize(ctx, access, "nope", nil)
	if !errors.Is(err, goAuthz.ErrUnknownPolicy) || !errors.Is(err, goAuthz.ErrValidation) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
	if _, err := env.engine.Authorize(ctx, "bad.token.value", "admins", nil); !errors.Is(err, goAuthz.ErrToken) {
		t.Fatalf("expected ErrToken, got %v", err)
	}

	env.clock.Advance(time.Hour + time.Second)
	if _, err := env.engine.Authorize(ctx, access, "adult-engineers", nil); !errors.Is(err, goAuthz.ErrToken) {
		t.Fatalf("expired access token: expected ErrToken, got %v", err)
	}
}

func TestAuthorizeResourceOwnership(t *testing.T) {
	env := authorizeEnv(t, permission.NewGrants(nil))
	id := env.register(t, "alice")
	access := env.login(t, "alice").AccessToken
	ctx := context.Background()

	env.store.PutResource(policy.Resource{ID: "mine", OwnerID: id})
	env.store.PutResource(policy.Resource{ID: "theirs", OwnerID: "someone-else"})

	if _, err := env.engine.AuthorizeResource(ctx, access, "owners", "mine"); err != nil {
		t.Fatalf("own resource: %v", err)
	}
	if _, err := env.engine.AuthorizeResource(ctx, access, "owners", "theirs"); !errors.Is(err, goAuthz.ErrAuthorizationDenied) {
		t.Fatalf("foreign resource: expected ErrAuthorizationDenied, got %v", err)
	}
	if _, err := env.engine.AuthorizeResource(ctx, access, "owners", "missing"); !errors.Is(err, goAuthz.ErrAuthorizationDenied) {
		t.Fatalf("missing resource: expected ErrAuthorizationDenied, got %v", err)
	}
	if _, err := env.engine.Authorize(ctx, access, "owners", nil); !errors.Is(err, goAuthz.ErrAuthorizationDenied) {
		t.Fatalf("nil resource: expected ErrAuthorizationDenied, got %v", err)
	}
}

func TestAuthorizePermissionGrantsAreLive(t *testing.T) {
	grants := permission.NewGrants(nil)
	env := authorizeEnv(t, grants)
	env.register(t, "alice")
	access := env.login(t, "alice").AccessToken
	ctx := context.Background()

	if _, err := env.engine.Authorize(ctx, access, "doc-readers", nil); !errors.Is(err, goAuthz.ErrAuthorizationDenied) {
		t.Fatalf("before grant: expected ErrAuthorizationDenied, got %v", err)
	}
	if err := grants.Grant("User", "documents:read"); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if _, err := env.engine.Authorize(ctx, access, "doc-readers", nil); err != nil {
		t.Fatalf("after grant: %v", err)
	}
	grants.Revoke("User", "documents:read")
	if _, err := env.engine.Authorize(ctx, access, "doc-readers", nil); !errors.Is(err, goAuthz.ErrAuthorizationDenied) {
		t.Fatalf("after revoke: expected ErrAuthorizationDenied, got %v", err)
	}
}

func TestAccessTokenRolesAreSnapshots(t *testing.T) {
	env := authorizeEnv(t, permission.NewGrants(nil))
	id := env.register(t, "alice")
	access := env.login(t, "alice").AccessToken
	ctx := context.Background()

	if err := env.store.SetRoles(id, "Admin"); err != nil {
		t.Fatalf("SetRoles failed: %v", err)
	}
	if _, err := env.engine.Authorize(ctx, access, "admins", nil); !errors.Is(err, goAuthz.ErrAuthorizationDenied) {
		t.Fatalf("old token must keep old roles, got %v", err)
	}
	fresh := env.login(t, "alice").AccessToken
	if _, err := env.engine.Authorize(ctx, fresh, "admins", nil); err != nil {
		t.Fatalf("new token must carry new roles: %v", err)
	}
}

func TestEvaluatePolicyMetricsAndAudit(t *testing.T) {
	sink := goAuthz.NewChannelSink(32)
	env := authorizeEnv(t, permission.NewGrants(nil), func(b *goAuthz.Builder) {
		b.WithMetricsEnabled(true)
		b.WithLatencyHistograms(true)
		b.WithAuditSink(sink)
	})
	ctx := context.Background()

	principal := claims.New("u1", "User")
	admins := policy.MustRoles("admins", "Admin")
	users := policy.MustRoles("users", "User")

	if d := env.engine.EvaluatePolicy(ctx, users, policy.AuthorizationContext{Principal: principal}); !d.Allowed() {
		t.Fatal("expected allow")
	}
	if d := env.engine.EvaluatePolicy(ctx, admins, policy.AuthorizationContext{Principal: principal}); d.Allowed() {
		t.Fatal("expected deny")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[goAuthz.MetricPolicyAllow] != 1 || snap.Counters[goAuthz.MetricPolicyDeny] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
	var total uint64
	for _, n := range snap.Histograms[goAuthz.MetricPolicyLatency] {
		total += n
	}
	if total != 2 {
		t.Fatalf("expected 2 latency observations, got %d", total)
	}

	select {
	case ev := <-sink.Events():
		if ev.EventType != "policy_denied" || ev.UserID != "u1" || ev.Metadata["policy"] != "admins" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("policy_denied event not delivered")
	}
}

func TestIssueAccessTokenFacade(t *testing.T) {
	env := newTestEnv(t, nil)

	var extra claims.Principal
	extra.Add("scope", "reports")
	tok, err := env.engine.IssueAccessToken("svc-1", []string{"Service"}, extra)
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}
	p, err := env.engine.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if p.ID() != "svc-1" || !p.HasRole("Service") || !p.Has("scope", "reports") {
		t.Fatalf("unexpected principal %v", p.ToMap())
	}

	var reserved claims.Principal
	reserved.Add("exp", "0")
	if _, err := env.engine.IssueAccessToken("svc-1", nil, reserved); !errors.Is(err, goAuthz.ErrValidation) {
		t.Fatalf("expected ErrValidation for reserved claim, got %v", err)
	}
}
