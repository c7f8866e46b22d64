package codestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "swarm"
	defaultTTL    = 24 * time.Hour

	codesKeyFmt = "%s:room_codes"
	lockKeyFmt  = "%s:room_codes:lock"
)

var ErrNilClient = errors.New("redis client is required")

// RedisCodeStore reserves room codes in a Redis sorted set scored by expiry,
// so that several server instances never hand out the same code. Every
// reservation runs under a redsync mutex.
type RedisCodeStore struct {
	client *redis.Client
	locker *redsync.Redsync
	key    string
	lock   string
	ttl    time.Duration
	now    func() time.Time
}

// Options configures a RedisCodeStore.
type Options struct {
	Prefix string        // key prefix, "swarm" when empty
	TTL    time.Duration // lifetime of a reservation, 24h when <= 0
}

// NewRedisCodeStore creates a RedisCodeStore on top of client.
func NewRedisCodeStore(client *redis.Client, opts *Options) (*RedisCodeStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}

	pool := goredis.NewPool(client)
	return &RedisCodeStore{
		client: client,
		locker: redsync.New(pool),
		key:    fmt.Sprintf(codesKeyFmt, opts.Prefix),
		lock:   fmt.Sprintf(lockKeyFmt, opts.Prefix),
		ttl:    opts.TTL,
		now:    time.Now,
	}, nil
}

// Reserve claims code. Expired reservations are purged first; it returns
// false when a live reservation holds the code.
func (s *RedisCodeStore) Reserve(ctx context.Context, code string) (bool, error) {
	mutex := s.locker.NewMutex(s.lock)
	if err := mutex.LockContext(ctx); err != nil {
		return false, fmt.Errorf("locking room codes: %w", err)
	}
	defer func() {
		_, _ = mutex.UnlockContext(ctx)
	}()

	now := s.now()
	cutoff := strconv.FormatInt(now.UnixMilli(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", cutoff).Err(); err != nil {
		return false, err
	}

	err := s.client.ZScore(ctx, s.key, code).Err()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, redis.Nil) {
		return false, err
	}

	expiry := float64(now.Add(s.ttl).UnixMilli())
	if err := s.client.ZAdd(ctx, s.key, redis.Z{Score: expiry, Member: code}).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Release frees code.
func (s *RedisCodeStore) Release(ctx context.Context, code string) error {
	return s.client.ZRem(ctx, s.key, code).Err()
}

// Refresh pushes the expiry of codes still held by live rooms one TTL ahead.
// Codes that are no longer reserved are left alone.
func (s *RedisCodeStore) Refresh(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}

	expiry := float64(s.now().Add(s.ttl).UnixMilli())
	members := make([]redis.Z, 0, len(codes))
	for _, code := range codes {
		members = append(members, redis.Z{Score: expiry, Member: code})
	}
	return s.client.ZAddXX(ctx, s.key, members...).Err()
}
