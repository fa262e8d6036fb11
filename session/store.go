package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every failure reported by the backing store.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when no live record exists for a token.
var ErrNotFound = errors.New("session not found")

// ErrInvalidTTL is returned when a write is attempted with a non-positive TTL.
var ErrInvalidTTL = errors.New("session ttl must be > 0")

// DefaultSweepBatchSize bounds the number of expiration-index entries a
// single sweep script handles.
const DefaultSweepBatchSize = 500

const listSuffix = "t:list"

const putScript = `
for i = 5, #ARGV, 2 do
  redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call("HSET", KEYS[1], "uid", ARGV[2], "exp", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[2] .. ":" .. ARGV[1])
return 1
`

var putLua = redis.NewScript(putScript)

const renewScript = `
local fields = redis.call("HMGET", KEYS[1], "uid", "exp")
if not fields[1] or fields[1] ~= ARGV[2] then
  return 0
end
if tonumber(fields[2] or "0") <= tonumber(ARGV[5]) then
  return 0
end
redis.call("HSET", KEYS[1], "exp", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[2] .. ":" .. ARGV[1])
return 1
`

var renewLua = redis.NewScript(renewScript)

const removeScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[2] .. ":" .. ARGV[1])
return existed
`

var removeLua = redis.NewScript(removeScript)

const removeUserScript = `
local tokens = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, token in ipairs(tokens) do
  removed = removed + redis.call("DEL", ARGV[2] .. token)
  redis.call("ZREM", KEYS[2], ARGV[1] .. ":" .. token)
end
redis.call("DEL", KEYS[1])
return removed
`

var removeUserLua = redis.NewScript(removeUserScript)

// Entries are "<uid>:<token>"; tokens never contain ':' so the owner is
// everything before the last separator.
const sweepScript = `
local entries = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[4]))
for _, entry in ipairs(entries) do
  local uid, token = string.match(entry, "^(.*):([^:]*)$")
  if token then
    redis.call("DEL", ARGV[2] .. token)
    redis.call("SREM", ARGV[3] .. uid, token)
  end
  redis.call("ZREM", KEYS[1], entry)
end
return #entries
`

var sweepLua = redis.NewScript(sweepScript)

// Store is the Redis-backed session repository. It owns three structures
// under one key prefix:
//
//	<prefix>t:<token>  hash of the session record, expiring with the session
//	<prefix>u:<uid>    set of the user's tokens
//	<prefix>t:list     sorted set of "<uid>:<token>" scored by expiration (ms)
//
// Every write that touches more than one structure runs as a single Lua
// script. Scripts derive some keys at run time, so the store targets a
// single Redis node (or a cluster with the whole prefix in one hash slot).
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	sweepBatch int
	now        func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
// sweepBatch <= 0 selects [DefaultSweepBatchSize].
func NewStore(redis redis.UniversalClient, prefix string, sweepBatch int) *Store {
	if sweepBatch <= 0 {
		sweepBatch = DefaultSweepBatchSize
	}
	return &Store{
		redis:      redis,
		prefix:     prefix,
		sweepBatch: sweepBatch,
		now:        time.Now,
	}
}

// Prefix returns the key namespace of the store.
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) tokenPrefix() string {
	return s.prefix + "t:"
}

func (s *Store) userPrefix() string {
	return s.prefix + "u:"
}

func (s *Store) key(token string) string {
	return s.tokenPrefix() + token
}

func (s *Store) userKey(uid string) string {
	return s.userPrefix() + uid
}

func (s *Store) listKey() string {
	return s.prefix + listSuffix
}

// Put writes a new record, indexes it under its user, and schedules it in
// the expiration index, all in one script.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Put(ctx context.Context, token, uid string, props map[string]string, ttl time.Duration) (*Record, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	exp := s.now().Add(ttl).UnixMilli()
	expStr := strconv.FormatInt(exp, 10)

	args := make([]interface{}, 0, 4+len(props)*2)
	args = append(args, token, uid, expStr, ttl.Milliseconds())
	fields := make(map[string]string, len(props)+2)
	for k, v := range props {
		if k == FieldUID || k == FieldExp {
			continue
		}
		args = append(args, k, v)
		fields[k] = v
	}
	fields[FieldUID] = uid
	fields[FieldExp] = expStr

	keys := []string{s.key(token), s.userKey(uid), s.listKey()}
	if err := putLua.Run(ctx, s.redis, keys, args...).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return &Record{Token: token, UID: uid, ExpiresAt: exp, Props: fields}, nil
}

// Read returns the live record for token, or [ErrNotFound] if it was
// deleted, evicted by Redis, or has passed its expiration.
//
//	Performance: 1 Redis HGETALL.
func (s *Store) Read(ctx context.Context, token string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, ok := recordFromHash(token, fields)
	if !ok || rec.ExpiresAt <= s.now().UnixMilli() {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Renew moves the record's expiration to now+ttl, resetting both the record
// TTL and its expiration-index score. The window is reset, not extended.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Renew(ctx context.Context, token, uid string, ttl time.Duration) (*Record, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	now := s.now()
	exp := now.Add(ttl).UnixMilli()
	keys := []string{s.key(token), s.userKey(uid), s.listKey()}

	renewed, err := renewLua.Run(ctx, s.redis, keys,
		token,
		uid,
		strconv.FormatInt(exp, 10),
		ttl.Milliseconds(),
		now.UnixMilli(),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if renewed == 0 {
		return nil, ErrNotFound
	}

	return s.Read(ctx, token)
}

// Remove deletes the record and both index entries. It is idempotent and
// reports whether a record was actually deleted.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Remove(ctx context.Context, token, uid string) (bool, error) {
	keys := []string{s.key(token), s.userKey(uid), s.listKey()}

	existed, err := removeLua.Run(ctx, s.redis, keys, token, uid).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return existed == 1, nil
}

// ListByUser returns the live records indexed under uid. Members whose
// record has already gone are skipped. Order is unspecified.
//
//	Performance: 1 SMEMBERS + 1 pipelined round-trip of HGETALLs.
func (s *Store) ListByUser(ctx context.Context, uid string) ([]*Record, error) {
	tokens, err := s.redis.SMembers(ctx, s.userKey(uid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(tokens) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(tokens))
	for i, token := range tokens {
		cmds[i] = pipe.HGetAll(ctx, s.key(token))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	nowMillis := s.now().UnixMilli()
	records := make([]*Record, 0, len(tokens))
	for i, cmd := range cmds {
		fields, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		rec, ok := recordFromHash(tokens[i], fields)
		if !ok || rec.ExpiresAt <= nowMillis {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// RemoveUser deletes every record indexed under uid, their expiration-index
// entries, and the user index itself. It returns the number of records
// deleted.
//
//	Performance: 1 Lua EVALSHA, O(sessions of uid).
func (s *Store) RemoveUser(ctx context.Context, uid string) (int, error) {
	keys := []string{s.userKey(uid), s.listKey()}

	removed, err := removeUserLua.Run(ctx, s.redis, keys, uid, s.tokenPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(removed), nil
}

// SweepExpired reconciles every expiration-index entry scored at or before
// before: the record (if still present) is deleted, the token leaves its
// owner's index, and the entry itself is removed. Work is done in atomic
// batches of the configured size. It returns the number of entries swept.
//
// Safe to run concurrently with live traffic: renewed sessions have already
// been rescored past before, and removing absent entries is a no-op.
func (s *Store) SweepExpired(ctx context.Context, before time.Time) (int, error) {
	keys := []string{s.listKey()}
	beforeMillis := before.UnixMilli()

	total := 0
	for {
		n, err := sweepLua.Run(ctx, s.redis, keys,
			beforeMillis,
			s.tokenPrefix(),
			s.userPrefix(),
			s.sweepBatch,
		).Int64()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		total += int(n)
		if int(n) < s.sweepBatch {
			return total, nil
		}
	}
}

// WipeAll deletes the store's records, user indexes and expiration index
// and returns the number of session records removed. Only keys under
// "<prefix>t:" and "<prefix>u:" are touched, so a prefix that is itself a
// prefix of unrelated keys cannot reach them. This is an admin-only O(n)
// SCAN and is not atomic; it must not be used for steady-state expiration.
func (s *Store) WipeAll(ctx context.Context) (int, error) {
	listKey := s.listKey()
	records := 0

	for _, pattern := range []string{s.tokenPrefix() + "*", s.userPrefix() + "*"} {
		var cursor uint64
		for {
			keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
			if err != nil {
				return records, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}

			if len(keys) > 0 {
				pipe := s.redis.Pipeline()
				cmds := make([]*redis.IntCmd, len(keys))
				for i, key := range keys {
					cmds[i] = pipe.Del(ctx, key)
				}
				if _, err := pipe.Exec(ctx); err != nil {
					return records, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
				}
				for i, cmd := range cmds {
					if cmd.Val() == 1 && keys[i] != listKey && strings.HasPrefix(keys[i], s.tokenPrefix()) {
						records++
					}
				}
			}

			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return records, nil
}

// CountActive returns the number of expiration-index entries. Entries that
// have lapsed but were not swept yet are included.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	n, err := s.redis.ZCard(ctx, s.listKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
