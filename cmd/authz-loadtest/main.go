// Command authz-loadtest drives the refresh-token store and the policy
// evaluator under concurrency. It reports per-phase latency percentiles and
// fails when a contended rotation produces more than one winner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goAuthz/claims"
	"github.com/MrEthical07/goAuthz/permission"
	"github.com/MrEthical07/goAuthz/policy"
	"github.com/MrEthical07/goAuthz/refresh"
)

type tokenSlot struct {
	userID string
	hash   string
	mu     sync.Mutex
}

func main() {
	var (
		tokens      = flag.Int("tokens", 10000, "number of refresh tokens to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (rotate + evaluate)")
		races       = flag.Int("races", 200, "contended rotations, each raced by every worker")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "authz-lt", "refresh key prefix")
	)
	flag.Parse()

	if *tokens <= 0 || *concurrency <= 0 || *ops <= 0 || *races < 0 {
		fmt.Fprintln(os.Stderr, "tokens, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := refresh.NewRedisStore(client, *prefix)

	slots := make([]tokenSlot, *tokens)
	fmt.Printf("seeding %d refresh tokens...\n", *tokens)
	startSeed := time.Now()
	for i := range slots {
		userID := fmt.Sprintf("user-%d", i%1000)
		hash, err := seed(ctx, store, userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
		slots[i].userID = userID
		slots[i].hash = hash
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	rotateStats := runRotatePhase(ctx, store, slots, *ops, *concurrency)
	raceStats, violations := runRacePhase(ctx, store, *races, *concurrency)
	evalStats := runEvaluatePhase(ctx, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("rotate", rotateStats)
	printStats("race", raceStats)
	printStats("evaluate", evalStats)

	if violations > 0 {
		fmt.Fprintf(os.Stderr, "single-use violated in %d contended rotations\n", violations)
		os.Exit(1)
	}
}

func seed(ctx context.Context, store refresh.Store, userID string) (string, error) {
	_, hash, err := refresh.NewToken()
	if err != nil {
		return "", err
	}
	now := time.Now()
	rec := refresh.Record{
		TokenHash: hash,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	return hash, store.Save(ctx, rec, now)
}

func rotate(ctx context.Context, store refresh.Store, userID, oldHash string) (string, error) {
	_, next, err := refresh.NewToken()
	if err != nil {
		return "", err
	}
	now := time.Now()
	rec := refresh.Record{
		TokenHash: next,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	return next, store.Rotate(ctx, oldHash, rec, refresh.ReasonRefreshed, now)
}

func runRotatePhase(ctx context.Context, store refresh.Store, slots []tokenSlot, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				slot := &slots[r.Intn(len(slots))]

				slot.mu.Lock()
				t0 := time.Now()
				next, err := rotate(ctx, store, slot.userID, slot.hash)
				d := time.Since(t0)
				if err == nil {
					slot.hash = next
				} else {
					atomic.AddInt64(&failures, 1)
				}
				slot.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runRacePhase rotates one fresh token from every worker at once, rounds
// times. Losers must see refresh.ErrRevoked; the returned count is the number
// of rounds that did not have exactly one winner.
func runRacePhase(ctx context.Context, store refresh.Store, rounds, concurrency int) (phaseStats, int) {
	var (
		latencies  = make([]time.Duration, 0, rounds*concurrency)
		failures   int64
		violations int
		mu         sync.Mutex
	)

	start := time.Now()
	for round := 0; round < rounds; round++ {
		userID := fmt.Sprintf("race-%d", round)
		hash, err := seed(ctx, store, userID)
		if err != nil {
			atomic.AddInt64(&failures, 1)
			continue
		}

		var (
			wg      sync.WaitGroup
			winners int64
			gate    = make(chan struct{})
		)
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				_, err := rotate(ctx, store, userID, hash)
				d := time.Since(t0)
				switch {
				case err == nil:
					atomic.AddInt64(&winners, 1)
				case errors.Is(err, refresh.ErrRevoked):
				default:
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		close(gate)
		wg.Wait()

		if winners != 1 {
			violations++
		}
	}
	return computeStats(time.Since(start), latencies, failures), violations
}

func runEvaluatePhase(ctx context.Context, ops, concurrency int) phaseStats {
	grants := permission.NewGrants(nil)
	_ = grants.Grant("User", "documents:read")
	eval := policy.NewEvaluator(grants)
	p := policy.MustRequirements("load",
		policy.MinimumAge{Years: 18},
		policy.Department{Name: "engineering"},
		policy.Permission{Name: "documents:read"},
		policy.ResourceOwnership{},
	)

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			principal := claims.New(fmt.Sprintf("user-%d", worker), "User")
			principal.Add(claims.Department, "Engineering")
			principal.Add(claims.DateOfBirth, "1990-04-15")
			actx := policy.AuthorizationContext{
				Principal: principal,
				Resource:  &policy.Resource{ID: "doc", OwnerID: principal.ID()},
			}
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				d := eval.Evaluate(ctx, p, actx)
				dur := time.Since(t0)
				if !d.Allowed() {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, dur)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
