package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/langrun/pkg/adapters/redis"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:resource1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:resource1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := setup(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()
	key := "shared-resource"

	unlock1, err := locker1.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = unlock2(ctx) }()
	assert.True(t, mr.Exists("test:lock:shared-resource"))
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock2, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	// The first holder's lock expired; releasing it must not free the second holder's lock.
	require.NoError(t, unlock1(ctx))
	assert.True(t, mr.Exists("test:lock:k"))
	require.NoError(t, unlock2(ctx))
	assert.False(t, mr.Exists("test:lock:k"))
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "long", 200*time.Millisecond)
	require.NoError(t, err)

	// Each step outlives a renewal tick, then advances the clock by most of the TTL.
	for i := range 4 {
		time.Sleep(100 * time.Millisecond)
		mr.FastForward(150 * time.Millisecond)
		require.True(t, mr.Exists("test:lock:long"), "lock expired at step %d", i)
	}

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:long"))
}

func TestSessionManagers_LongRunKeepsTheLock(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	newManager := func() *session.Manager {
		return session.NewManager(store,
			session.WithLocker(redis.NewLocker(client, "test:")),
			session.WithLockTTL(200*time.Millisecond),
		)
	}
	first, second := newManager(), newManager()
	ctx := context.Background()

	started := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		_, err := first.Update(ctx, "chat", "flow", func(_ context.Context, s *domain.Session) error {
			close(started)
			for range 4 {
				time.Sleep(100 * time.Millisecond)
				mr.FastForward(150 * time.Millisecond)
			}
			s.Append(domain.Exchange{RunID: "r1", Input: "first"})
			return nil
		})
		firstDone <- err
	}()

	<-started
	_, err := second.Update(ctx, "chat", "flow", func(_ context.Context, s *domain.Session) error {
		s.Append(domain.Exchange{RunID: "r2", Input: "second"})
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, <-firstDone)

	sess, err := store.Load(ctx, "chat")
	require.NoError(t, err)
	require.Len(t, sess.Exchanges, 2)
	assert.Equal(t, "first", sess.Exchanges[0].Input)
	assert.Equal(t, "second", sess.Exchanges[1].Input)
}
