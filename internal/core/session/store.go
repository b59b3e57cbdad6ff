// Package session keeps the index of active click sessions. The index is
// partitioned by user id; every multi-step operation on a user's session
// (track, end, conversion update, timeout sweep) runs under that user's lock
// obtained from Store.Lock.
package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
	"clickflow/internal/metrics"
	"clickflow/internal/pkg/keylock"
)

const shardCount = 32

type entry struct {
	session domain.ClickSession
	links   map[string]struct{}
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Store is the in-memory active-session index keyed by user id.
type Store struct {
	locks   *keylock.Locker
	shards  [shardCount]shard
	timeout time.Duration
}

// NewStore returns an empty index whose sessions expire after timeout of
// inactivity.
func NewStore(timeout time.Duration) *Store {
	s := &Store{locks: keylock.New(), timeout: timeout}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*entry)
	}
	return s
}

// Timeout returns the inactivity timeout.
func (s *Store) Timeout() time.Duration { return s.timeout }

// Lock acquires the per-user lock and returns its release function.
func (s *Store) Lock(userID string) func() {
	return s.locks.Lock(userID)
}

// Active returns a copy of the user's indexed session.
func (s *Store) Active(userID string) (domain.ClickSession, bool) {
	sh := s.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[userID]
	if !ok {
		return domain.ClickSession{}, false
	}
	return e.session, true
}

// Put indexes sess as the user's active session, replacing any previous
// one.
func (s *Store) Put(sess domain.ClickSession) {
	sh := s.shard(sess.UserID)
	sh.mu.Lock()
	_, existed := sh.entries[sess.UserID]
	sh.entries[sess.UserID] = &entry{session: sess, links: make(map[string]struct{})}
	sh.mu.Unlock()
	if !existed {
		metrics.SessionsActive.Inc()
	}
}

// RecordClick bumps the click counters of the user's session and returns
// the updated copy.
func (s *Store) RecordClick(userID, link string, at time.Time) (domain.ClickSession, bool) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[userID]
	if !ok {
		return domain.ClickSession{}, false
	}
	e.session.ClickCount++
	if _, seen := e.links[link]; !seen {
		e.links[link] = struct{}{}
		e.session.UniqueLinksClicked++
	}
	if at.After(e.session.LastActivityAt) {
		e.session.LastActivityAt = at
	}
	return e.session, true
}

// AddConversion adds conversion aggregates to the user's session when it is
// still the one identified by sessionID.
func (s *Store) AddConversion(userID, sessionID string, revenue, commission float64) bool {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[userID]
	if !ok || e.session.SessionID != sessionID {
		return false
	}
	e.session.ConversionCount++
	e.session.TotalRevenue += revenue
	e.session.TotalCommission += commission
	return true
}

// Evict removes the user's session from the index.
func (s *Store) Evict(userID string) {
	sh := s.shard(userID)
	sh.mu.Lock()
	_, ok := sh.entries[userID]
	delete(sh.entries, userID)
	sh.mu.Unlock()
	if ok {
		metrics.SessionsActive.Dec()
	}
}

// Users returns the ids of all indexed users.
func (s *Store) Users() []string {
	var out []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for u := range sh.entries {
			out = append(out, u)
		}
		sh.mu.RUnlock()
	}
	return out
}

// ExpiredUsers returns the ids of users whose session timed out at now.
func (s *Store) ExpiredUsers(now time.Time) []string {
	var out []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for u, e := range sh.entries {
			if e.session.Expired(now, s.timeout) {
				out = append(out, u)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// Len returns the number of indexed sessions.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Close ends the user's session at the given instant, persists the final
// aggregates and evicts it. It returns nil when no session is indexed. The
// caller must hold the user's lock. On persistence failure the session stays
// indexed.
func (s *Store) Close(ctx context.Context, repo port.SessionRepository, userID string, at time.Time) (*domain.ClickSession, error) {
	sess, ok := s.Active(userID)
	if !ok {
		return nil, nil
	}
	// conversion aggregates are incremented in storage independently;
	// UpdateSession leaves them untouched.
	sess.End(at)
	if err := repo.UpdateSession(ctx, &sess); err != nil {
		return nil, fmt.Errorf("persist ended session %s: %w", sess.SessionID, err)
	}
	s.Evict(userID)
	return &sess, nil
}

func (s *Store) shard(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.shards[h.Sum32()%shardCount]
}
