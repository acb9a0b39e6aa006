package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

// Guard admits at most one fulfillment run at a time.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalGuard is the in-process guard.
type LocalGuard struct {
	busy atomic.Bool
}

func (g *LocalGuard) Acquire(_ context.Context, _ string) (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, utils.ErrRunInFlight
	}
	var once sync.Once
	return func() { once.Do(func() { g.busy.Store(false) }) }, nil
}

// RedisGuard additionally holds a Redis lock so a second instance pointed at the same
// work directory cannot start a run. The lock TTL is refreshed until release.
type RedisGuard struct {
	Locker *redislock.Client
	TTL    time.Duration

	local LocalGuard
}

func redisLockKey(key string) string {
	return "lock:fulfillment:" + key
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	releaseLocal, err := g.local.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	lock, err := g.Locker.Obtain(ctx, redisLockKey(key), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		releaseLocal()
		return nil, utils.ErrRunInFlight
	}
	if err != nil {
		releaseLocal()
		return nil, err
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := lock.Refresh(context.Background(), ttl, nil); err != nil {
					logger.WithFields(logrus.Fields{"key": lock.Key()}).Warn("failed to refresh run lock: " + err.Error())
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.WithFields(logrus.Fields{"key": lock.Key()}).Warn("failed to release run lock: " + err.Error())
			}
			releaseLocal()
		})
	}, nil
}

// NewGuardFromEnv returns a RedisGuard when REDIS_ADDRESS is set and reachable, else a LocalGuard.
func NewGuardFromEnv(ctx context.Context) Guard {
	if !config.RedisConfigured() {
		return &LocalGuard{}
	}
	if err := config.ConnectRedisWithRetry(ctx); err != nil {
		logger.WithFields(logrus.Fields{"field": "guard"}).Warn("redis unavailable; using in-process run guard: " + err.Error())
		return &LocalGuard{}
	}
	ttl := time.Duration(config.IntFromEnv("RUN_LOCK_TTL_SEC", 30)) * time.Second
	return &RedisGuard{Locker: config.GetRedisLock(), TTL: ttl}
}
