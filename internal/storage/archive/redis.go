package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStorage implements Storage on Redis string keys.
type RedisStorage struct {
	client *goredis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisStorage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStorage{
		client: client,
		prefix: strings.TrimSuffix(cfg.Prefix, ":"),
	}, nil
}

func (r *RedisStorage) key(path string) string {
	if r.prefix == "" {
		return path
	}
	return r.prefix + ":" + path
}

func (r *RedisStorage) Write(ctx context.Context, path string, data []byte) error {
	return r.client.Set(ctx, r.key(path), data, 0).Err()
}

func (r *RedisStorage) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(path)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

func (r *RedisStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	iter := r.client.Scan(ctx, 0, escapeGlob(r.key(prefix))+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if r.prefix != "" {
			k = strings.TrimPrefix(k, r.prefix+":")
		}
		paths = append(paths, k)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *RedisStorage) Delete(ctx context.Context, path string) error {
	return r.client.Del(ctx, r.key(path)).Err()
}

func (r *RedisStorage) Exists(ctx context.Context, path string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(path)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the connection pool.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

// escapeGlob quotes the SCAN MATCH metacharacters.
func escapeGlob(s string) string {
	return strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`).Replace(s)
}
