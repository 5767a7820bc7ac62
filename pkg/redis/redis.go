package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrCacheMiss = errors.New("cache miss")

type IRedis interface {
	SetAsset(ctx context.Context, key string, payload []byte, expiration time.Duration) error
	GetAsset(ctx context.Context, key string) ([]byte, error)
	Close() error
}

type redisClient struct {
	client *redis.Client
	prefix string
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	prefix := os.Getenv("REDIS_KEY_PREFIX")
	if prefix == "" {
		prefix = "tryon:asset:"
	}

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client, prefix: prefix}
}

func (r *redisClient) key(k string) string {
	return r.prefix + k
}

func (r *redisClient) SetAsset(ctx context.Context, key string, payload []byte, expiration time.Duration) error {
	logrus.Debug(fmt.Sprintf("Caching asset calibration for %s with expiration %v", key, expiration))
	err := r.client.Set(ctx, r.key(key), payload, expiration).Err()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error caching asset calibration for %s: %v", key, err))
		return err
	}
	return nil
}

func (r *redisClient) GetAsset(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Asset calibration not cached for %s", key))
		return nil, ErrCacheMiss
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting asset calibration for %s: %v", key, err))
		return nil, err
	}
	logrus.Debug(fmt.Sprintf("Asset calibration cache hit for %s", key))
	return val, nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
