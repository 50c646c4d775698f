package valkey

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

// releaseScript deletes the lock only while it still holds our token, so a run
// that outlived its TTL cannot release a lock taken over by another process.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock TTL only while it still holds our token.
var renewScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Acquire takes the cross-process lock for job. It returns domain.ErrJobRunning
// when another holder owns it. The TTL is extended every ttl/3 until release,
// so it only bounds how long a crashed holder blocks others.
func (c *Cache) Acquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context) error, error) {
	key := c.prefix + "lock:" + job
	token := uuid.NewString()

	err := c.client.Do(ctx, c.client.B().Set().Key(key).Value(token).Nx().Px(ttl).Build()).Error()
	if valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("%s: %w", job, domain.ErrJobRunning)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", job, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go c.renew(key, token, ttl, stop, done)

	var once sync.Once
	release := func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		<-done
		if err := releaseScript.Exec(ctx, c.client, []string{key}, []string{token}).Error(); err != nil {
			return fmt.Errorf("release lock %s: %w", job, err)
		}
		return nil
	}
	return release, nil
}

func (c *Cache) renew(key, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ms := strconv.FormatInt(ttl.Milliseconds(), 10)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := renewScript.Exec(ctx, c.client, []string{key}, []string{token, ms}).AsInt64()
		cancel()
		switch {
		case err != nil:
			slog.Warn("renew job lock", "key", key, "error", err)
		case n == 0:
			slog.Warn("job lock lost before release", "key", key)
			return
		}
	}
}
