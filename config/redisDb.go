package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	rdb     *redis.Client
	locker  *redislock.Client
	redisMu sync.Mutex
)

var errNoRedis = errors.New("REDIS_ADDRESS not set")

func GetRedisLock() *redislock.Client {
	redisMu.Lock()
	defer redisMu.Unlock()
	return locker
}

// RedisConfigured reports whether a shared run lock should be used at all.
func RedisConfigured() bool {
	return strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != ""
}

// ConnectRedisWithRetry connects and sets the global Redis client + lock client.
// Unlike a server deployment the operator tool gives up after REDIS_CONNECT_ATTEMPTS tries.
func ConnectRedisWithRetry(ctx context.Context) error {
	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
	if redisAddr == "" {
		return errNoRedis
	}
	maxAttempts := IntFromEnv("REDIS_CONNECT_ATTEMPTS", 3)
	logger := GetLogger()

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0, // use default DB
			PoolSize: 4,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			redisMu.Lock()
			rdb = client
			locker = redislock.New(client)
			redisMu.Unlock()
			logger.WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr}).Info("connected to redis")
			return nil
		}
		_ = client.Close()
		if attempt >= maxAttempts {
			return err
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		logger.WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr, "retry_in": sleep.String()}).Warn("failed to connect redis: " + err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func CloseRedis() {
	redisMu.Lock()
	defer redisMu.Unlock()
	if rdb != nil {
		_ = rdb.Close()
	}
	rdb = nil
	locker = nil
}
