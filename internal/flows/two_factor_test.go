package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

func twoFactorDeps(user User, th *countingThrottle) (TwoFactorDeps, *int) {
	issued := 0
	used := map[string]int64{}
	deps := TwoFactorDeps{
		Throttle: ThrottlePolicy{Throttle: th, MaxAttempts: 2, Cooldown: time.Minute},
		ParseTemp: func(token string) (string, error) {
			if token != "temp-"+user.ID {
				return "", errors.New("bad token")
			}
			return user.ID, nil
		},
		FindUser: func(_ context.Context, id string) (User, error) {
			if id != user.ID {
				return User{}, errNotFound
			}
			return user, nil
		},
		UserNotFound: errNotFound,
		MatchCode: func(secret, code string, _ time.Time) (int64, bool) {
			if code == "123456" {
				return 42, true
			}
			return 0, false
		},
		AcceptStep: func(_ context.Context, userID string, step int64) (bool, error) {
			if last, ok := used[userID]; ok && step <= last {
				return false, nil
			}
			used[userID] = step
			return true, nil
		},
		ReleaseStep: func(_ context.Context, userID string, step int64) error {
			if used[userID] == step {
				used[userID] = step - 1
			}
			return nil
		},
		IssueTokens: func(_ context.Context, u User) (Tokens, error) {
			issued++
			return Tokens{AccessToken: "access-" + u.ID, RefreshToken: "refresh-" + u.ID}, nil
		},
	}
	return deps, &issued
}

var enrolled = User{ID: "u1", Active: true, TwoFactorEnabled: true, TOTPSecret: "SECRET"}

func TestRunVerifyTwoFactorSuccess(t *testing.T) {
	deps, issued := twoFactorDeps(enrolled, newCountingThrottle())

	res := RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps)
	if res.Failure != TwoFactorFailureNone || res.Step != 42 {
		t.Fatalf("unexpected result %+v", res)
	}
	if *issued != 1 || res.Tokens.AccessToken != "access-u1" {
		t.Fatalf("expected tokens, got %+v", res.Tokens)
	}
}

func TestRunVerifyTwoFactorReplayRejected(t *testing.T) {
	deps, issued := twoFactorDeps(enrolled, newCountingThrottle())

	if res := RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps); res.Failure != TwoFactorFailureNone {
		t.Fatalf("first use failed: %v", res.Failure)
	}
	res := RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps)
	if res.Failure != TwoFactorFailureReplay {
		t.Fatalf("expected replay, got %v", res.Failure)
	}
	if *issued != 1 {
		t.Fatal("replayed code must not issue tokens")
	}
}

func TestRunVerifyTwoFactorReplayDisabled(t *testing.T) {
	deps, issued := twoFactorDeps(enrolled, newCountingThrottle())
	deps.AcceptStep = nil

	RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps)
	RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps)
	if *issued != 2 {
		t.Fatalf("expected both verifications to issue, got %d", *issued)
	}
}

func TestRunVerifyTwoFactorFailures(t *testing.T) {
	tests := []struct {
		name  string
		user  User
		token string
		code  string
		want  TwoFactorFailure
	}{
		{name: "bad temp token", user: enrolled, token: "access-u1", code: "123456", want: TwoFactorFailureTempToken},
		{name: "not enrolled", user: User{ID: "u1", Active: true}, token: "temp-u1", code: "123456", want: TwoFactorFailureNotEnrolled},
		{name: "enabled without secret", user: User{ID: "u1", Active: true, TwoFactorEnabled: true}, token: "temp-u1", code: "123456", want: TwoFactorFailureNotEnrolled},
		{name: "inactive", user: User{ID: "u1", TwoFactorEnabled: true, TOTPSecret: "S"}, token: "temp-u1", code: "123456", want: TwoFactorFailureInactive},
		{name: "wrong code", user: enrolled, token: "temp-u1", code: "000000", want: TwoFactorFailureCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, issued := twoFactorDeps(tt.user, newCountingThrottle())
			res := RunVerifyTwoFactor(context.Background(), tt.token, tt.code, deps)
			if res.Failure != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, res.Failure)
			}
			if *issued != 0 {
				t.Fatal("tokens issued on failure")
			}
		})
	}
}

func TestRunVerifyTwoFactorThrottle(t *testing.T) {
	th := newCountingThrottle()
	deps, issued := twoFactorDeps(enrolled, th)

	RunVerifyTwoFactor(context.Background(), "temp-u1", "000000", deps)
	RunVerifyTwoFactor(context.Background(), "temp-u1", "000000", deps)
	res := RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps)
	if res.Failure != TwoFactorFailureThrottled {
		t.Fatalf("expected throttled, got %v", res.Failure)
	}
	if *issued != 0 {
		t.Fatal("tokens issued while throttled")
	}
}

func TestRunVerifyTwoFactorReplayBackendFails(t *testing.T) {
	deps, issued := twoFactorDeps(enrolled, newCountingThrottle())
	deps.AcceptStep = func(context.Context, string, int64) (bool, error) {
		return false, errors.New("redis down")
	}

	res := RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps)
	if res.Failure != TwoFactorFailureBackend {
		t.Fatalf("expected backend failure, got %v", res.Failure)
	}
	if *issued != 0 {
		t.Fatal("tokens issued without replay bookkeeping")
	}
}

func TestRunVerifyTwoFactorIssueFailureReleasesStep(t *testing.T) {
	deps, issued := twoFactorDeps(enrolled, newCountingThrottle())
	issue := deps.IssueTokens
	deps.IssueTokens = func(context.Context, User) (Tokens, error) {
		return Tokens{}, errors.New("refresh store down")
	}

	res := RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps)
	if res.Failure != TwoFactorFailureIssue {
		t.Fatalf("expected issue failure, got %v", res.Failure)
	}

	deps.IssueTokens = issue
	res = RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps)
	if res.Failure != TwoFactorFailureNone {
		t.Fatalf("retry with the same code must succeed, got %v", res.Failure)
	}
	if *issued != 1 {
		t.Fatalf("expected one issuance, got %d", *issued)
	}
	if res := RunVerifyTwoFactor(context.Background(), "temp-u1", "123456", deps); res.Failure != TwoFactorFailureReplay {
		t.Fatalf("code must be spent after a successful retry, got %v", res.Failure)
	}
}
