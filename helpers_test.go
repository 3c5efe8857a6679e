package goAuthz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/store/memory"
)

const testPassword = "correct-horse-battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	// A Monday.
	return &testClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *goAuthz.Engine
	store  *memory.Store
	clock  *testClock
	redis  *miniredis.Miniredis
}

func testConfig(clock *testClock) goAuthz.Config {
	cfg := goAuthz.DefaultConfig()
	cfg.JWT.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Policy.Location = time.UTC
	cfg.Now = clock.Now
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*goAuthz.Config), opts ...func(*goAuthz.Builder)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	clock := newTestClock()
	cfg := testConfig(clock)
	if mutate != nil {
		mutate(&cfg)
	}

	store := memory.New()
	b := goAuthz.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithResourceStore(store)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEnv{engine: engine, store: store, clock: clock, redis: mr}
}

func (env *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	id, err := env.engine.Register(context.Background(), goAuthz.RegisterRequest{
		Username:    username,
		Email:       username + "@example.com",
		Password:    testPassword,
		Department:  "Engineering",
		DateOfBirth: "1990-04-15",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return id
}

func (env *testEnv) login(t *testing.T, username string) goAuthz.LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", username, err)
	}
	return res
}
