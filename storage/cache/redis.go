package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/student"
)

const (
	keyPrefix = "black:student-uid:"
	missValue = "-" // marks a uid known to have no student
)

// Redis is a student.Cache shared between instances.
type Redis struct {
	client redis.UniversalClient
}

var _ student.Cache = (*Redis)(nil) // interface compliance check

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// NewRedisClient connects to conf.RedisAddr and checks the connection.
func NewRedisClient(ctx context.Context, conf core.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func (c *Redis) Get(ctx context.Context, uid string) (string, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+uid).Result()
	switch {
	case err == redis.Nil:
		return "", false, nil
	case err != nil:
		return "", false, errors.Wrap(err, "redis get")
	case val == missValue:
		return "", true, nil
	}
	return val, true, nil
}

func (c *Redis) Set(ctx context.Context, uid, studentID string, ttl time.Duration) error {
	val := studentID
	if val == "" {
		val = missValue
	}
	return errors.Wrap(c.client.Set(ctx, keyPrefix+uid, val, ttl).Err(), "redis set")
}

func (c *Redis) Delete(ctx context.Context, uid string) error {
	return errors.Wrap(c.client.Del(ctx, keyPrefix+uid).Err(), "redis del")
}
