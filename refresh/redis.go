package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRevoked  int64 = 2
	rotateStatusRotated  int64 = 3
	rotateStatusCorrupt  int64 = 4
)

// extendUserSet keeps the per-user index alive at least as long as its
// longest-lived member. It is shared by the save and rotate scripts.
const extendUserSet = `
local function extend_user_set(key, ttl)
  local current = redis.call("PTTL", key)
  if current < ttl then
    redis.call("PEXPIRE", key, ttl)
  end
end
`

const saveRecordScript = extendUserSet + `
local ttl = tonumber(ARGV[5])
redis.call("HSET", KEYS[1], "uid", ARGV[1], "iat", ARGV[2], "exp", ARGV[3], "revoked", "0", "reason", "", "replaced_by", "")
redis.call("PEXPIRE", KEYS[1], ttl)
redis.call("SADD", KEYS[2], ARGV[4])
extend_user_set(KEYS[2], ttl)
return 1
`

var saveRecordLua = redis.NewScript(saveRecordScript)

const rotateRecordScript = extendUserSet + `
local old_key = KEYS[1]
local next_key = KEYS[2]
local user_key = KEYS[3]
local now_ms = tonumber(ARGV[1])
local reason = ARGV[2]
local next_hash = ARGV[3]
local next_uid = ARGV[4]
local next_iat = ARGV[5]
local next_exp = ARGV[6]
local next_ttl = tonumber(ARGV[7])

local fields = redis.call("HMGET", old_key, "uid", "exp", "revoked")
if not fields[1] then
  return 0
end

local exp = tonumber(fields[2])
if not exp then
  return 4
end
if fields[3] == "1" then
  return 2
end
if exp <= now_ms then
  return 1
end
if fields[1] ~= next_uid then
  return 4
end

redis.call("HSET", old_key, "revoked", "1", "reason", reason, "replaced_by", next_hash)
redis.call("HSET", next_key, "uid", next_uid, "iat", next_iat, "exp", next_exp, "revoked", "0", "reason", "", "replaced_by", "")
redis.call("PEXPIRE", next_key, next_ttl)
redis.call("SADD", user_key, next_hash)
extend_user_set(user_key, next_ttl)
return 3
`

var rotateRecordLua = redis.NewScript(rotateRecordScript)

// revokeRecordScript returns 0 when missing, 1 when already revoked, 2 when
// this call revoked the record.
const revokeRecordScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 1
end
redis.call("HSET", KEYS[1], "revoked", "1", "reason", ARGV[1])
return 2
`

var revokeRecordLua = redis.NewScript(revokeRecordScript)

// RedisStore keeps refresh records as Redis hashes with a per-user index set.
// Revoked records stay readable until their natural expiry so reuse can be
// told apart from an unknown token.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store writing keys under prefix. An empty prefix
// defaults to "goauthz".
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "goauthz"
	}
	return &RedisStore{redis: rdb, prefix: prefix}
}

func (s *RedisStore) key(hash string) string {
	return s.prefix + ":rt:" + hash
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":ru:" + userID
}

// Save inserts rec. Records already past expiry at now are rejected.
func (s *RedisStore) Save(ctx context.Context, rec Record, now time.Time) error {
	if rec.TokenHash == "" || rec.UserID == "" {
		return errors.New("refresh record requires hash and user id")
	}
	ttl := rec.ExpiresAt.Sub(now).Milliseconds()
	if ttl <= 0 {
		return ErrExpired
	}

	err := saveRecordLua.Run(ctx, s.redis,
		[]string{s.key(rec.TokenHash), s.userKey(rec.UserID)},
		rec.UserID,
		rec.IssuedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		rec.TokenHash,
		ttl,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get loads the record stored for hash.
func (s *RedisStore) Get(ctx context.Context, hash string) (Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(hash)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return decodeRecord(hash, fields)
}

// Rotate revokes oldHash and inserts next in a single script execution. The
// replacement must belong to the same user as the record it replaces.
func (s *RedisStore) Rotate(ctx context.Context, oldHash string, next Record, reason string, now time.Time) error {
	ttl := next.ExpiresAt.Sub(now).Milliseconds()
	if ttl <= 0 {
		return ErrExpired
	}

	status, err := rotateRecordLua.Run(ctx, s.redis,
		[]string{s.key(oldHash), s.key(next.TokenHash), s.userKey(next.UserID)},
		now.UnixMilli(),
		reason,
		next.TokenHash,
		next.UserID,
		next.IssuedAt.UnixMilli(),
		next.ExpiresAt.UnixMilli(),
		ttl,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusExpired:
		return ErrExpired
	case rotateStatusRevoked:
		return ErrRevoked
	case rotateStatusCorrupt:
		return ErrCorrupt
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrCorrupt, status)
	}
}

// Revoke marks hash revoked with reason.
func (s *RedisStore) Revoke(ctx context.Context, hash, reason string) (bool, error) {
	status, err := revokeRecordLua.Run(ctx, s.redis, []string{s.key(hash)}, reason).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return status == 2, nil
}

// RevokeAllForUser revokes every record indexed under userID. Records added
// while it runs may be missed.
func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID, reason string) (int, error) {
	hashes, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	revoked := 0
	stale := make([]interface{}, 0)
	for _, hash := range hashes {
		status, err := revokeRecordLua.Run(ctx, s.redis, []string{s.key(hash)}, reason).Int64()
		if err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		switch status {
		case 0:
			stale = append(stale, hash)
		case 2:
			revoked++
		}
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return revoked, nil
}

func decodeRecord(hash string, fields map[string]string) (Record, error) {
	uid := fields["uid"]
	iat, errIat := strconv.ParseInt(fields["iat"], 10, 64)
	exp, errExp := strconv.ParseInt(fields["exp"], 10, 64)
	if uid == "" || errIat != nil || errExp != nil {
		return Record{}, ErrCorrupt
	}
	return Record{
		TokenHash:     hash,
		UserID:        uid,
		IssuedAt:      time.UnixMilli(iat),
		ExpiresAt:     time.UnixMilli(exp),
		Revoked:       fields["revoked"] == "1",
		RevokedReason: fields["reason"],
		ReplacedBy:    fields["replaced_by"],
	}, nil
}

var _ Store = (*RedisStore)(nil)
