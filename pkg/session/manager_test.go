package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/aretw0/langrun/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.Session
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Session)
	}
	s.data[sessionID] = sess.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.data[sessionID]; ok {
		return sess.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_UpdateSerialisesWriters(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	writers := 10
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := manager.Update(ctx, id, "flow-1", func(_ context.Context, s *domain.Session) error {
				s.Append(domain.Exchange{RunID: fmt.Sprintf("run-%d", n), Input: "message"})
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Exchanges, writers, "lost updates mean the lock did not serialise writers")
	assert.Equal(t, "flow-1", sess.FlowID)
}

func TestManager_UpdateDoesNotSaveOnError(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := manager.Update(ctx, "s1", "flow", func(context.Context, *domain.Session) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = manager.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type recordingLocker struct {
	mu    sync.Mutex
	keys  []string
	ttls  []time.Duration
	fails bool
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fails {
		return nil, errors.New("lock busy")
	}
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, ttl)
	return func(context.Context) error { return nil }, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(5*time.Second))

	require.NoError(t, manager.Save(context.Background(), "s1", domain.NewSession("s1", "f")))
	assert.Equal(t, []string{"s1"}, locker.keys)
	assert.Equal(t, []time.Duration{5 * time.Second}, locker.ttls)

	locker.fails = true
	err := manager.Save(context.Background(), "s1", domain.NewSession("s1", "f"))
	assert.ErrorContains(t, err, "distributed lock")
}
