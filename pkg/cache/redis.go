package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sis-api/pkg/config"
)

const keyPrefix = "sis"

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Key builds a namespaced cache key, e.g. Key("org-1", "levels") => "sis:org-1:levels".
// Empty parts become "_" so patterns stay aligned.
func Key(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, keyPrefix)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			part = "_"
		}
		segments = append(segments, part)
	}
	return strings.Join(segments, ":")
}
