package orchestrator

import (
	"sync"

	"github.com/truongvando/ezstream-sub000/internal/models"
)

// keyedMutex provides one mutex per key, created on demand and freed when no
// goroutine holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[models.ULID]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[models.ULID]*keyedLock)}
}

// Lock acquires the mutex for the key, blocking until it is available.
func (k *keyedMutex) Lock(key models.ULID) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the mutex for the key.
func (k *keyedMutex) Unlock(key models.ULID) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("unlock of unheld keyed mutex")
	}
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}
