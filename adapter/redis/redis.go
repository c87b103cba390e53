// Package redis allocates primary keys from Redis counters,
// so several processes writing the same tables hand out unique identifiers.
// The KeyAllocator can be plugged into any driver through its Keys field.
package redis

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	"go.llib.dev/aggregate/pkg/errorkit"
	"go.llib.dev/aggregate/pkg/logger"
	"go.llib.dev/aggregate/pkg/logging"
	"go.llib.dev/aggregate/port/store"
)

const ErrInvalidCount errorkit.Error = "redis: invalid key count"

type Config struct {
	URL       string `env:"AGGREGATE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix string `env:"AGGREGATE_REDIS_KEY_PREFIX" envDefault:"aggregate:seq:"`
}

// LoadConfig reads the Config from the environment.
func LoadConfig() (Config, error) {
	return env.ParseAs[Config]()
}

// Connect creates a KeyAllocator with a new client for the configured Redis.
func Connect(c Config) (*KeyAllocator, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, err
	}
	return &KeyAllocator{Client: redis.NewClient(opts), KeyPrefix: c.KeyPrefix}, nil
}

// KeyAllocator hands out int64 keys from a Redis counter per table.
type KeyAllocator struct {
	Client redis.UniversalClient
	// KeyPrefix [optional] is prepended to the table name to form the counter's key.
	//
	// Default: "aggregate:seq:"
	KeyPrefix string
}

var _ store.KeyAllocator = (*KeyAllocator)(nil)

func (ka *KeyAllocator) PrimaryKeys(ctx context.Context, table string, n int) ([]store.ID, error) {
	if n < 0 {
		return nil, ErrInvalidCount.F("%d", n)
	}
	if table == "" {
		return nil, store.ErrInvalidTable
	}
	if n == 0 {
		return []store.ID{}, nil
	}
	last, err := ka.Client.IncrBy(ctx, ka.key(table), int64(n)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]store.ID, 0, n)
	for id := last - int64(n) + 1; id <= last; id++ {
		ids = append(ids, id)
	}
	logger.Debug(ctx, "primary keys allocated",
		logging.Field("table", table),
		logging.Field("count", n),
		logging.Field("last", last))
	return ids, nil
}

func (ka *KeyAllocator) Close() error {
	return ka.Client.Close()
}

func (ka *KeyAllocator) key(table string) string {
	prefix := ka.KeyPrefix
	if prefix == "" {
		prefix = "aggregate:seq:"
	}
	return prefix + table
}
