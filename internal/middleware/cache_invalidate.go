package middleware

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// InvalidateCache drops every cached response under the configured
// prefix. Session and receipt views follow a load-once discipline:
// they are only refreshed when a completed write changes what they
// would show, so write handlers call this after a successful commit
// instead of relying on TTL expiry or polling.
func InvalidateCache(ctx context.Context, rdb *redis.Client, prefix string) {
	if rdb == nil {
		return
	}
	if prefix == "" {
		prefix = "cache"
	}
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, prefix+":*", 100).Result()
		if err != nil {
			return // cache is best-effort; stale entries expire via TTL
		}
		if len(keys) > 0 {
			_ = rdb.Del(ctx, keys...).Err()
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
