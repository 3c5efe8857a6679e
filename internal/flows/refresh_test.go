package flows

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthz/refresh"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type refreshFixture struct {
	store *refresh.RedisStore
	now   time.Time
	users map[string]User
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return &refreshFixture{
		store: refresh.NewRedisStore(rdb, "flows"),
		now:   time.UnixMilli(time.Now().UnixMilli()),
		users: map[string]User{"u1": {ID: "u1", Active: true}},
	}
}

func (f *refreshFixture) seed(t *testing.T, userID string) string {
	t.Helper()
	token, hash, err := refresh.NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	rec := refresh.Record{TokenHash: hash, UserID: userID, IssuedAt: f.now, ExpiresAt: f.now.Add(time.Hour)}
	if err := f.store.Save(context.Background(), rec, f.now); err != nil {
		t.Fatalf("save: %v", err)
	}
	return token
}

func (f *refreshFixture) deps() RefreshDeps {
	return RefreshDeps{
		Store: f.store,
		FindUser: func(_ context.Context, id string) (User, error) {
			u, ok := f.users[id]
			if !ok {
				return User{}, errNotFound
			}
			return u, nil
		},
		UserNotFound: errNotFound,
		IssueAccess: func(u User) (string, time.Time, error) {
			return "access-" + u.ID, f.now.Add(time.Hour), nil
		},
		TTL: 24 * time.Hour,
		Now: func() time.Time { return f.now },
	}
}

func TestRunRefreshRotates(t *testing.T) {
	f := newRefreshFixture(t)
	token := f.seed(t, "u1")

	res := RunRefresh(context.Background(), token, f.deps())
	if res.Failure != RefreshFailureNone {
		t.Fatalf("unexpected failure %v (%v)", res.Failure, res.Err)
	}
	if res.Tokens.AccessToken != "access-u1" || res.Tokens.RefreshToken == "" || res.Tokens.RefreshToken == token {
		t.Fatalf("unexpected tokens %+v", res.Tokens)
	}

	oldHash, _ := refresh.HashToken(token)
	old, err := f.store.Get(context.Background(), oldHash)
	if err != nil || !old.Revoked || old.RevokedReason != refresh.ReasonRefreshed {
		t.Fatalf("old token not revoked: %+v err=%v", old, err)
	}

	if again := RunRefresh(context.Background(), token, f.deps()); again.Failure != RefreshFailureReuse {
		t.Fatalf("expected reuse on second presentation, got %v", again.Failure)
	}
	if next := RunRefresh(context.Background(), res.Tokens.RefreshToken, f.deps()); next.Failure != RefreshFailureNone {
		t.Fatalf("replacement must be usable, got %v", next.Failure)
	}
}

func TestRunRefreshFailures(t *testing.T) {
	f := newRefreshFixture(t)
	f.users["u2"] = User{ID: "u2", Active: false}

	unknown, _, _ := refresh.NewToken()
	inactive := f.seed(t, "u2")
	orphan := f.seed(t, "gone")
	expiring := f.seed(t, "u1")

	tests := []struct {
		name  string
		token string
		now   time.Time
		want  RefreshFailure
	}{
		{name: "malformed", token: "not-a-token", now: f.now, want: RefreshFailureMalformed},
		{name: "unknown", token: unknown, now: f.now, want: RefreshFailureNotFound},
		{name: "inactive user", token: inactive, now: f.now, want: RefreshFailureInactive},
		{name: "deleted user", token: orphan, now: f.now, want: RefreshFailureUnknownUser},
		{name: "expired", token: expiring, now: f.now.Add(time.Hour), want: RefreshFailureExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := f.deps()
			now := tt.now
			deps.Now = func() time.Time { return now }
			res := RunRefresh(context.Background(), tt.token, deps)
			if res.Failure != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, res.Failure)
			}
			if res.Tokens.RefreshToken != "" {
				t.Fatal("tokens issued on failure")
			}
		})
	}
}

func TestRunRefreshIssueFailureLeavesTokenUsable(t *testing.T) {
	f := newRefreshFixture(t)
	token := f.seed(t, "u1")

	deps := f.deps()
	deps.IssueAccess = func(User) (string, time.Time, error) { return "", time.Time{}, errors.New("signer down") }
	if res := RunRefresh(context.Background(), token, deps); res.Failure != RefreshFailureIssue {
		t.Fatalf("expected issue failure, got %v", res.Failure)
	}

	if res := RunRefresh(context.Background(), token, f.deps()); res.Failure != RefreshFailureNone {
		t.Fatalf("token must survive a signing failure, got %v", res.Failure)
	}
}

func TestRunRefreshCanceledContextStillRotates(t *testing.T) {
	f := newRefreshFixture(t)
	token := f.seed(t, "u1")

	deps := f.deps()
	ctx, cancel := context.WithCancel(context.Background())
	issue := deps.IssueAccess
	deps.IssueAccess = func(u User) (string, time.Time, error) {
		cancel()
		return issue(u)
	}

	res := RunRefresh(ctx, token, deps)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("rotation must not observe caller cancellation, got %v (%v)", res.Failure, res.Err)
	}
}

func TestRunRefreshReuseRevokesFamily(t *testing.T) {
	f := newRefreshFixture(t)
	token := f.seed(t, "u1")
	deps := f.deps()
	deps.RevokeFamilyOnReuse = true

	first := RunRefresh(context.Background(), token, deps)
	if first.Failure != RefreshFailureNone {
		t.Fatalf("rotate: %v", first.Failure)
	}

	reuse := RunRefresh(context.Background(), token, deps)
	if reuse.Failure != RefreshFailureReuse || reuse.FamilyRevoked != 1 {
		t.Fatalf("expected family revocation, got %+v", reuse)
	}
	if res := RunRefresh(context.Background(), first.Tokens.RefreshToken, deps); res.Failure != RefreshFailureReuse {
		t.Fatalf("descendant must be revoked, got %v", res.Failure)
	}
}

func TestRunRefreshRaceSingleWinner(t *testing.T) {
	f := newRefreshFixture(t)
	token := f.seed(t, "u1")
	deps := f.deps()

	const workers = 16
	var wins, reuse atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch RunRefresh(context.Background(), token, deps).Failure {
			case RefreshFailureNone:
				wins.Add(1)
			case RefreshFailureReuse:
				reuse.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 || reuse.Load() != workers-1 {
		t.Fatalf("expected 1 winner and %d losers, got %d/%d", workers-1, wins.Load(), reuse.Load())
	}
}
