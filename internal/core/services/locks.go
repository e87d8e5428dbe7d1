package services

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"asset-lifecycle-service/internal/core/domain"
)

// kindLocks serializes backup and restore work per (asset, file kind).
// Entries are reference counted and dropped once nobody holds or waits on them.
type kindLocks struct {
	mu sync.Mutex
	m  map[string]*kindLock
}

type kindLock struct {
	mu   sync.Mutex
	refs int
}

func newKindLocks() *kindLocks {
	return &kindLocks{m: make(map[string]*kindLock)}
}

func (l *kindLocks) lock(assetID uuid.UUID, kind domain.FileKind) func() {
	key := fmt.Sprintf("%s/%s", assetID, kind)

	l.mu.Lock()
	entry, ok := l.m[key]
	if !ok {
		entry = &kindLock{}
		l.m[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}

func (l *kindLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
