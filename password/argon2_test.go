package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	hasher := newHasher(t, fastConfig())

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail: ok=%v err=%v", ok, err)
	}

	again, _ := hasher.Hash("P@ssw0rd-Ascii")
	if again == hash {
		t.Fatal("expected distinct salts per hash")
	}
}

func TestVerifyAcceptsPaddedEncoding(t *testing.T) {
	hasher := newHasher(t, fastConfig())
	hash, err := hasher.Hash("padded-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	parts := strings.Split(hash, "$")
	parts[4] += "=="
	ok, err := hasher.Verify("padded-password", strings.Join(parts, "$"))
	if err != nil || !ok {
		t.Fatalf("expected padded salt to verify: ok=%v err=%v", ok, err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := newHasher(t, fastConfig())
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	needsUpgrade, err := newHasher(t, stronger).NeedsUpgrade(hash)
	if err != nil || !needsUpgrade {
		t.Fatalf("expected upgrade for weaker parameters: %v %v", needsUpgrade, err)
	}

	needsUpgrade, err = oldHasher.NeedsUpgrade(hash)
	if err != nil || needsUpgrade {
		t.Fatalf("expected no upgrade for current parameters: %v %v", needsUpgrade, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := newHasher(t, fastConfig())
	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cases := map[string]string{
		"not phc":       "not-a-phc-hash",
		"wrong version": strings.Replace(hash, "$v=19$", "$v=18$", 1),
		"wrong algo":    strings.Replace(hash, "$argon2id$", "$argon2i$", 1),
		"low memory":    strings.Replace(hash, "m=8192", "m=1024", 1),
		"extra param":   strings.Replace(hash, "p=1", "p=1,x=2", 1),
	}
	for name, encoded := range cases {
		if _, err := hasher.Verify("version-test", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: expected ErrMalformedHash, got %v", name, err)
		}
	}
}

func TestLengthPolicy(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 64
	hasher := newHasher(t, cfg)

	for _, pwd := range []string{"", "short", strings.Repeat("a", 65)} {
		if _, err := hasher.Hash(pwd); !errors.Is(err, ErrPolicy) {
			t.Fatalf("len %d: expected ErrPolicy, got %v", len(pwd), err)
		}
	}

	exact := strings.Repeat("b", 64)
	hash, err := hasher.Hash(exact)
	if err != nil {
		t.Fatalf("expected max-length password to be accepted: %v", err)
	}
	if _, err := hasher.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected over-long verify to fail fast, got %v", err)
	}
}

func TestDefaultBoundsApplied(t *testing.T) {
	hasher := newHasher(t, fastConfig())
	if err := hasher.Check(strings.Repeat("d", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatalf("expected password > %d bytes to be rejected", DefaultMaxPasswordBytes)
	}
	if err := hasher.Check(strings.Repeat("e", DefaultMinPasswordBytes)); err != nil {
		t.Fatalf("expected %d-byte password to pass: %v", DefaultMinPasswordBytes, err)
	}
}

func TestInvalidConfig(t *testing.T) {
	bad := fastConfig()
	bad.Memory = 1024
	if _, err := NewArgon2(bad); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}
	bad = fastConfig()
	bad.MinPasswordBytes = 20
	bad.MaxPasswordBytes = 10
	if _, err := NewArgon2(bad); err == nil {
		t.Fatal("expected inverted bounds to be rejected")
	}
}

func TestVerifyDummyDoesNotPanic(t *testing.T) {
	hasher := newHasher(t, fastConfig())
	hasher.VerifyDummy("anything-at-all")
	hasher.VerifyDummy(strings.Repeat("z", DefaultMaxPasswordBytes+1))
}
