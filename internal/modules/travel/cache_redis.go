package travel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const legKeyPrefix = "travel:leg:%s:%s|%s"

// RedisCacheStore shares cached legs between API instances. Keys expire in
// Redis after ttl as well, so stale entries do not accumulate.
type RedisCacheStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCacheStore(client *redis.Client, ttl time.Duration) *RedisCacheStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCacheStore{redis: client, ttl: ttl}
}

func (s *RedisCacheStore) Get(ctx context.Context, key LegKey) (Entry, bool, error) {
	val, err := s.redis.Get(ctx, redisLegKey(key)).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e, err := decodeEntry(val)
	if err != nil {
		return Entry{}, false, fmt.Errorf("decode cached leg: %w", err)
	}
	return e, true, nil
}

func (s *RedisCacheStore) Put(ctx context.Context, key LegKey, e Entry) error {
	return s.redis.Set(ctx, redisLegKey(key), encodeEntry(e), s.ttl).Err()
}

func redisLegKey(k LegKey) string {
	return fmt.Sprintf(legKeyPrefix, k.Mode, k.Origin, k.Destination)
}

// Entries are stored as "<minutes>:<unix seconds>".
func encodeEntry(e Entry) string {
	return strconv.Itoa(e.Minutes) + ":" + strconv.FormatInt(e.StoredAt.Unix(), 10)
}

func decodeEntry(v string) (Entry, error) {
	minStr, tsStr, ok := strings.Cut(v, ":")
	if !ok {
		return Entry{}, fmt.Errorf("malformed entry %q", v)
	}
	minutes, err := strconv.Atoi(minStr)
	if err != nil {
		return Entry{}, fmt.Errorf("minutes: %w", err)
	}
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("timestamp: %w", err)
	}
	return Entry{Minutes: minutes, StoredAt: time.Unix(ts, 0)}, nil
}
