package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cash book cache keys: cashbook:<tenant>:g<generation>:<from>:<to>:<mode>
// The generation counter lives outside the tenant pattern so a pattern delete keeps it.
const (
	CashBookKeyFmt     = "cashbook:%d:g%d:%s:%s:%s"
	CashBookPatternFmt = "cashbook:%d:*"
	CashBookGenKeyFmt  = "cashbook:gen:%d"
	DefaultCashBookTTL = time.Minute
	// Purchase invoices are written by another system and never invalidate
	MaxCashBookTTL     = 2 * time.Minute
)

var client *redis.Client

// Options configures the Redis connection
type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Init initializes the Redis connection. On failure the client stays nil and every cache
// call degrades to a miss.
func Init(opts Options) error {
	if opts.Host == "" {
		opts.Host = "redis"
	}
	if opts.Port == 0 {
		opts.Port = 6379
	}

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		client = nil
		return err
	}
	return nil
}

// SetClient replaces the client
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

// Close closes the client if one is open
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil {
		return
	}
	client.Set(ctx, key, data, ttl)
}

// InvalidatePattern removes all keys matching a glob pattern
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

// CashBookKey is the cache key of one aggregation request at a given tenant generation
func CashBookKey(tenantID int, generation int64, from, to time.Time, mode string) string {
	if mode == "" {
		mode = "ALL"
	}
	return fmt.Sprintf(CashBookKeyFmt, tenantID, generation, from.Format(time.RFC3339), to.Format(time.RFC3339), mode)
}

// CashBookGeneration returns the tenant's invalidation counter, 0 when unset or unreachable
func CashBookGeneration(ctx context.Context, tenantID int) int64 {
	if client == nil {
		return 0
	}
	raw, err := client.Get(ctx, fmt.Sprintf(CashBookGenKeyFmt, tenantID)).Result()
	if err != nil {
		return 0
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

// InvalidateCashBook bumps the tenant generation and clears every cached cash book of the tenant.
// An aggregation that read the old generation stores under a key no reader asks for again.
// Called when: invoice create/update/payment/refund, payout, manual entry
func InvalidateCashBook(ctx context.Context, tenantID int) {
	if client == nil {
		return
	}
	client.Incr(ctx, fmt.Sprintf(CashBookGenKeyFmt, tenantID))
	InvalidatePattern(ctx, fmt.Sprintf(CashBookPatternFmt, tenantID))
}

// IsHealthy returns true if Redis connection is working
func IsHealthy(ctx context.Context) bool {
	if client == nil {
		return false
	}
	return client.Ping(ctx).Err() == nil
}
