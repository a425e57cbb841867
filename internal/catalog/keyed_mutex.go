package catalog

import (
	"slices"
	"sync"

	"github.com/pbtracker/pbtracker-server/internal/domain"
)

// KeyedMutex serializes work per key: category keys for submissions, runner
// codes for their cached views. Different keys never block each other, and
// entries are dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*refLock)}
}

// Lock acquires every key in keys and returns a func releasing them.
// Keys are deduplicated and taken in sorted order so two callers locking
// overlapping sets cannot deadlock.
func (km *KeyedMutex) Lock(keys ...domain.CategoryKey) (unlock func()) {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
	}
	return km.LockNames(names...)
}

// LockNames is Lock for plain string keys.
func (km *KeyedMutex) LockNames(names ...string) (unlock func()) {
	names = slices.Clone(names)
	slices.Sort(names)
	names = slices.Compact(names)

	held := make([]*refLock, 0, len(names))
	for _, name := range names {
		l := km.acquire(name)
		l.mu.Lock()
		held = append(held, l)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				km.release(names[i])
			}
		})
	}
}

func (km *KeyedMutex) acquire(name string) *refLock {
	km.mu.Lock()
	defer km.mu.Unlock()

	l, ok := km.locks[name]
	if !ok {
		l = &refLock{}
		km.locks[name] = l
	}
	l.refs++
	return l
}

func (km *KeyedMutex) release(name string) {
	km.mu.Lock()
	defer km.mu.Unlock()

	l := km.locks[name]
	l.refs--
	if l.refs == 0 {
		delete(km.locks, name)
	}
}

// Len returns the number of keys currently held or awaited.
func (km *KeyedMutex) Len() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.locks)
}
