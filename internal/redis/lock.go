package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore hands out short-lived advisory locks.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// Lock is a held lock. Release it with LockStore.Release.
type Lock struct {
	Key   string
	Token string
}

// AcquireDriverLock attempts to lock a driver while they are being assigned.
// The boolean is false if the lock is already held.
func (s *LockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (*Lock, bool, error) {
	return s.acquire(ctx, fmt.Sprintf("lock:driver:%s", driverID), ttl)
}

// AcquireRideLock attempts to lock a ride while it is being dispatched.
func (s *LockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (*Lock, bool, error) {
	return s.acquire(ctx, fmt.Sprintf("lock:ride:%s", rideID), ttl)
}

func (s *LockStore) acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{Key: key, Token: token}, true, nil
}

// Release frees lock if it is still owned by the caller.
func (s *LockStore) Release(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	return releaseScript.Run(ctx, s.client, []string{lock.Key}, lock.Token).Err()
}
