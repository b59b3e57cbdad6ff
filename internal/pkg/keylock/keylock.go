// Package keylock provides per-key mutual exclusion. Locks are created on
// demand and released when no goroutine holds or waits for them, so the
// memory footprint follows the number of keys in flight rather than the
// number of keys ever seen.
package keylock

import (
	"hash/fnv"
	"sync"
)

const shardCount = 64

type entry struct {
	mu   sync.Mutex
	refs int
}

type shard struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// Locker hands out per-key mutexes. The zero value is not usable; use New.
type Locker struct {
	shards [shardCount]shard
}

// New returns an empty Locker.
func New() *Locker {
	l := &Locker{}
	for i := range l.shards {
		l.shards[i].locks = make(map[string]*entry)
	}
	return l
}

// Lock blocks until key is held by the caller and returns the function that
// releases it.
func (l *Locker) Lock(key string) (unlock func()) {
	s := l.shard(key)
	s.mu.Lock()
	e, ok := s.locks[key]
	if !ok {
		e = &entry{}
		s.locks[key] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		s.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// Len returns the number of keys currently locked or awaited.
func (l *Locker) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}

func (l *Locker) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}
