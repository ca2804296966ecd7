package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RevocationCache — минимальный контракт кэша отметок отзыва.
// Кэш опционален: сервис работает и без него, ходя напрямую в хранилище.
type RevocationCache interface {
	// Get возвращает отметку отзыва пользователя и признак её наличия в кэше.
	Get(ctx context.Context, userID uuid.UUID) (time.Time, bool, error)
	// Set сохраняет отметку с TTL (обычно expiresAt-now).
	Set(ctx context.Context, userID uuid.UUID, revokedAt time.Time, ttl time.Duration) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:rev:".
func NewRedisCache(redisURL, prefix string) (RevocationCache, error) {
	if prefix == "" {
		prefix = "auth:rev:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(userID uuid.UUID) string { return c.prefix + userID.String() }

// Храним unix-секунды момента отзыва; TTL ключа равен остаточному сроку
// жизни самого свежего отозванного refresh-токена.
func (c *redisCache) Get(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, false, nil
		}

		return time.Time{}, false, err
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}

	return time.Unix(unix, 0).UTC(), true, nil
}

func (c *redisCache) Set(ctx context.Context, userID uuid.UUID, revokedAt time.Time, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(userID), strconv.FormatInt(revokedAt.Unix(), 10), ttl).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
