package services

import (
	"context"
	"sync"
	"time"
)

// LocalTriggerLock is an in-process TriggerLock for single replica
// deployments.
type LocalTriggerLock struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewLocalTriggerLock() *LocalTriggerLock {
	return &LocalTriggerLock{keys: make(map[string]time.Time), now: time.Now}
}

func (l *LocalTriggerLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.keys[key] = now.Add(ttl)
	return true, nil
}

func (l *LocalTriggerLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	return nil
}
