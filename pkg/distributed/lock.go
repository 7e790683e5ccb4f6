package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockNotHeld = errors.New("lock was not held by this instance")

// unlockScript deletes the key only when it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only when the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Lock is a single-use Redis lock (SET NX PX with a random token). While
// held it is renewed at half its TTL.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration

	stopOnce  sync.Once
	stopRenew chan struct{}
	renewDone chan struct{}
}

func newLock(client redis.UniversalClient, key string, ttl time.Duration) *Lock {
	return &Lock{
		client:    client,
		key:       key,
		token:     newToken(),
		ttl:       ttl,
		stopRenew: make(chan struct{}),
		renewDone: make(chan struct{}),
	}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// TryLock attempts to take the lock without waiting.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil || !acquired {
		close(l.renewDone)
		if err != nil {
			return false, fmt.Errorf("failed to try lock %s: %w", l.key, err)
		}
		return false, nil
	}

	go l.renew()
	return true, nil
}

// Unlock releases the lock. Calling it more than once is safe.
func (l *Lock) Unlock(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopRenew) })
	<-l.renewDone

	released, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.key, err)
	}
	if released == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *Lock) renew() {
	defer close(l.renewDone)

	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
			ok, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || ok == 0 {
				return
			}
		case <-l.stopRenew:
			return
		}
	}
}

// LockManager hands out namespaced locks.
type LockManager struct {
	client redis.UniversalClient
	prefix string
}

func NewLockManager(client redis.UniversalClient, prefix string) *LockManager {
	return &LockManager{
		client: client,
		prefix: prefix,
	}
}

func (lm *LockManager) NewLock(key string, ttl time.Duration) *Lock {
	return newLock(lm.client, lm.prefix+key, ttl)
}

// RunExclusive runs fn only if the lock for key can be taken right now.
// It reports whether fn ran.
func (lm *LockManager) RunExclusive(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	lock := lm.NewLock(key, ttl)
	acquired, err := lock.TryLock(ctx)
	if err != nil || !acquired {
		return false, err
	}

	runErr := fn(ctx)
	if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, ErrLockNotHeld) {
		return true, errors.Join(runErr, err)
	}
	return true, runErr
}
