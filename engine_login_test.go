package goAuthz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/claims"
	"github.com/MrEthical07/goAuthz/totp"
)

func TestLoginIssuesTokensWithClaimSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.register(t, "alice")

	res := env.login(t, "alice")
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}
	if res.TwoFactorRequired || res.TempToken != "" {
		t.Fatal("did not expect a second-factor challenge")
	}
	if want := env.clock.Now().Add(time.Hour); !res.AccessExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, res.AccessExpiresAt)
	}

	p, err := env.engine.ValidateToken(res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if p.ID() != id || !p.HasRole("User") {
		t.Fatalf("unexpected principal %v", p.ToMap())
	}
	if v, _ := p.First(claims.Department); v != "Engineering" {
		t.Fatalf("expected department claim, got %q", v)
	}

	u, _ := env.store.FindByID(context.Background(), id)
	if !u.LastLoginAt.Equal(env.clock.Now()) {
		t.Fatalf("expected last login update, got %v", u.LastLoginAt)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.register(t, "alice")
	env.register(t, "carol")
	if err := env.store.SetActive(id, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	cases := []struct {
		name, username, password string
	}{
		{"wrong password", "carol", "wrong-password-123"},
		{"unknown user", "mallory", testPassword},
		{"inactive user", "alice", testPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := env.engine.Login(context.Background(), tc.username, tc.password)
			if !errors.Is(err, goAuthz.ErrAuthentication) {
				t.Fatalf("expected ErrAuthentication, got %v", err)
			}
			if err.Error() != goAuthz.ErrAuthentication.Error() {
				t.Fatalf("error text leaks detail: %q", err.Error())
			}
			if res.AccessToken != "" || res.RefreshToken != "" || res.TempToken != "" {
				t.Fatal("nothing may be issued on failure")
			}
		})
	}
}

func TestLoginThrottleLocksAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t, func(cfg *goAuthz.Config) {
		cfg.Security.MaxLoginAttempts = 3
	})
	env.register(t, "alice")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, "alice", "wrong-password-123"); !errors.Is(err, goAuthz.ErrAuthentication) {
			t.Fatalf("attempt %d: expected ErrAuthentication, got %v", i, err)
		}
	}

	if _, err := env.engine.Login(ctx, "ALICE", testPassword); !errors.Is(err, goAuthz.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}

	env.redis.FastForward(16 * time.Minute)
	env.login(t, "alice")
}

func TestLoginSuccessResetsThrottle(t *testing.T) {
	env := newTestEnv(t, func(cfg *goAuthz.Config) {
		cfg.Security.MaxLoginAttempts = 2
	})
	env.register(t, "alice")
	ctx := context.Background()

	_, _ = env.engine.Login(ctx, "alice", "wrong-password-123")
	env.login(t, "alice")
	_, _ = env.engine.Login(ctx, "alice", "wrong-password-123")
	env.login(t, "alice")
}

func enableTwoFactor(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	enr, err := env.engine.Enable2FA(context.Background(), userID)
	if err != nil {
		t.Fatalf("Enable2FA failed: %v", err)
	}
	return enr.Secret
}

func currentCode(t *testing.T, env *testEnv, secret string) string {
	t.Helper()
	code, err := totp.Code(secret, env.clock.Now())
	if err != nil {
		t.Fatalf("totp.Code failed: %v", err)
	}
	return code
}

func TestLoginWithTwoFactorReturnsOnlyTempToken(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.register(t, "alice")
	secret := enableTwoFactor(t, env, id)

	res := env.login(t, "alice")
	if !res.TwoFactorRequired || res.TempToken == "" {
		t.Fatal("expected second-factor challenge")
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatal("no session tokens before the second factor")
	}
	if _, err := env.engine.ValidateToken(res.TempToken); !errors.Is(err, goAuthz.ErrToken) {
		t.Fatalf("temp token must not validate as access token, got %v", err)
	}

	out, err := env.engine.Verify2FA(context.Background(), res.TempToken, currentCode(t, env, secret))
	if err != nil {
		t.Fatalf("Verify2FA failed: %v", err)
	}
	p, err := env.engine.ValidateToken(out.AccessToken)
	if err != nil || p.ID() != id {
		t.Fatalf("unexpected access token: id=%q err=%v", p.ID(), err)
	}
	if out.RefreshToken == "" {
		t.Fatal("expected refresh token")
	}
}

func TestVerify2FARejections(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.register(t, "alice")
	secret := enableTwoFactor(t, env, id)
	env.register(t, "bob")
	ctx := context.Background()

	temp := env.login(t, "alice").TempToken
	plain := env.login(t, "bob")

	if _, err := env.engine.Verify2FA(ctx, temp, "000000x"); !errors.Is(err, goAuthz.ErrAuthentication) {
		t.Fatalf("malformed code: expected ErrAuthentication, got %v", err)
	}
	if _, err := env.engine.Verify2FA(ctx, plain.AccessToken, currentCode(t, env, secret)); !errors.Is(err, goAuthz.ErrAuthentication) {
		t.Fatalf("access token as temp token: expected ErrAuthentication, got %v", err)
	}
	if _, err := env.engine.Verify2FA(ctx, "garbage", currentCode(t, env, secret)); !errors.Is(err, goAuthz.ErrAuthentication) {
		t.Fatalf("garbage temp token: expected ErrAuthentication, got %v", err)
	}

	env.clock.Advance(6 * time.Minute)
	if _, err := env.engine.Verify2FA(ctx, temp, currentCode(t, env, secret)); !errors.Is(err, goAuthz.ErrAuthentication) {
		t.Fatalf("expired temp token: expected ErrAuthentication, got %v", err)
	}
}

func TestVerify2FARejectsReplayedCode(t *testing.T) {
	env := newTestEnv(t, nil, func(b *goAuthz.Builder) { b.WithMetricsEnabled(true) })
	id := env.register(t, "alice")
	secret := enableTwoFactor(t, env, id)
	ctx := context.Background()

	code := currentCode(t, env, secret)
	if _, err := env.engine.Verify2FA(ctx, env.login(t, "alice").TempToken, code); err != nil {
		t.Fatalf("first Verify2FA failed: %v", err)
	}
	if _, err := env.engine.Verify2FA(ctx, env.login(t, "alice").TempToken, code); !errors.Is(err, goAuthz.ErrAuthentication) {
		t.Fatalf("replayed code: expected ErrAuthentication, got %v", err)
	}

	env.clock.Advance(30 * time.Second)
	if _, err := env.engine.Verify2FA(ctx, env.login(t, "alice").TempToken, currentCode(t, env, secret)); err != nil {
		t.Fatalf("next step Verify2FA failed: %v", err)
	}

	if got := env.engine.MetricsSnapshot().Counters[goAuthz.MetricTOTPReplay]; got != 1 {
		t.Fatalf("expected one replay, got %d", got)
	}
}

func TestVerify2FAWithoutReplayProtectionAcceptsSameStep(t *testing.T) {
	env := newTestEnv(t, func(cfg *goAuthz.Config) {
		cfg.TOTP.EnforceReplayProtection = false
	})
	id := env.register(t, "alice")
	secret := enableTwoFactor(t, env, id)
	ctx := context.Background()

	code := currentCode(t, env, secret)
	for i := 0; i < 2; i++ {
		if _, err := env.engine.Verify2FA(ctx, env.login(t, "alice").TempToken, code); err != nil {
			t.Fatalf("attempt %d: Verify2FA failed: %v", i, err)
		}
	}
}

func TestVerify2FAThrottle(t *testing.T) {
	env := newTestEnv(t, func(cfg *goAuthz.Config) {
		cfg.Security.MaxTOTPAttempts = 2
	})
	id := env.register(t, "alice")
	secret := enableTwoFactor(t, env, id)
	ctx := context.Background()
	temp := env.login(t, "alice").TempToken

	wrong := "000000"
	if wrong == currentCode(t, env, secret) {
		wrong = "111111"
	}
	for i := 0; i < 2; i++ {
		if _, err := env.engine.Verify2FA(ctx, temp, wrong); !errors.Is(err, goAuthz.ErrAuthentication) {
			t.Fatalf("attempt %d: expected ErrAuthentication, got %v", i, err)
		}
	}
	if _, err := env.engine.Verify2FA(ctx, temp, currentCode(t, env, secret)); !errors.Is(err, goAuthz.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

func TestLoginAuditCarriesClientIP(t *testing.T) {
	sink := goAuthz.NewChannelSink(16)
	env := newTestEnv(t, nil, func(b *goAuthz.Builder) { b.WithAuditSink(sink) })
	id := env.register(t, "alice")

	ctx := goAuthz.WithClientIP(context.Background(), "203.0.113.7")
	if _, err := env.engine.Login(ctx, "alice", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType != "login_success" {
				continue
			}
			if ev.UserID != id || ev.IP != "203.0.113.7" || !ev.Success {
				t.Fatalf("unexpected event %+v", ev)
			}
			if !ev.Timestamp.Equal(env.clock.Now()) {
				t.Fatalf("event stamped %v, want engine clock %v", ev.Timestamp, env.clock.Now())
			}
			return
		case <-deadline:
			t.Fatal("login_success event not delivered")
		}
	}
}
