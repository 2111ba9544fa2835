package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SweepLock keeps concurrent reconciliation sweeps in different processes from
// overlapping
type SweepLock interface {
	// Acquire returns acquired=false when another holder has the lock. release
	// must be called when acquired is true.
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

const sweepLockKey = "fantasygolf:reconcile:lock"

// Deletes the key only while it still holds our token
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisSweepLock is a SETNX lock with an expiry so a crashed holder cannot
// block sweeps forever
type RedisSweepLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  func() string
}

// NewRedisSweepLock creates a sweep lock on client. ttl should exceed the
// longest expected sweep.
func NewRedisSweepLock(client *redis.Client, ttl time.Duration) *RedisSweepLock {
	return &RedisSweepLock{
		client: client,
		key:    sweepLockKey,
		ttl:    ttl,
		token:  uuid.NewString,
	}
}

func (l *RedisSweepLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := l.token()

	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err(); err != nil {
			log.WithError(err).Warn("Failed to release sweep lock, it will expire")
		}
	}
	return release, true, nil
}
