package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Shared es el segundo nivel opcional del resolver: un cache compartido
// entre procesos (redis) con el JSON del signer. El nivel in-process sigue
// siendo el autoritativo; este nivel sólo evita fetches repetidos en una
// flota.
type Shared interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// RedisConfig configura el nivel compartido redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type redisShared struct {
	client *redis.Client
	prefix string
}

// NewRedis crea el nivel compartido redis y verifica la conexión.
func NewRedis(cfg RedisConfig) (Shared, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("resolve: redis ping failed: %w", err)
	}

	return &redisShared{client: rdb, prefix: cfg.Prefix}, nil
}

func (r *redisShared) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *redisShared) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *redisShared) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisShared) Close() error {
	return r.client.Close()
}
