package cache

import (
	"sync"
	"time"

	"github.com/leadstack/leadsync/internal/model"
)

// Key identifies a cache entry.
type Key struct {
	Type model.EntityType
	ID   string
}

// LeadKey builds the cache key for a lead.
func LeadKey(id string) Key { return Key{Type: model.EntityLead, ID: id} }

// AgentKey builds the cache key for an agent.
func AgentKey(id string) Key { return Key{Type: model.EntityAgent, ID: id} }

// JobKey builds the cache key for a job.
func JobKey(id string) Key { return Key{Type: model.EntityJob, ID: id} }

// QuotaKey builds the cache key for a quota.
func QuotaKey(id string) Key { return Key{Type: model.EntityQuota, ID: id} }

// Origin records who wrote an entry last.
type Origin int

const (
	OriginServer Origin = iota
	OriginOptimistic
)

func (o Origin) String() string {
	if o == OriginOptimistic {
		return "optimistic"
	}
	return "server"
}

// Entry is one cached entity.
type Entry struct {
	Key       Key
	Value     any // model.Lead, model.Agent, model.Job, or model.Quota
	UpdatedAt time.Time
	Origin    Origin

	// Placeholder marks an entry materialized from an event that
	// referenced an unknown key. The refresher replaces it with a
	// full fetch.
	Placeholder bool
}

// store is the thread-safe entry map. Writes happen only through the
// Synchronizer.
type store struct {
	mu      sync.RWMutex
	entries map[Key]*Entry

	// Fetch generation per key. A fetch captures the generation when
	// issued; a stale response (generation has moved on) is discarded
	// on arrival.
	fetchGen map[Key]uint64

	// Deletion timestamps, so a replayed create cannot resurrect a
	// deleted entity. Pruned by the refresher.
	tombstones map[Key]time.Time
}

func newStore() *store {
	return &store{
		entries:    make(map[Key]*Entry),
		fetchGen:   make(map[Key]uint64),
		tombstones: make(map[Key]time.Time),
	}
}

// get returns a copy of the entry.
func (s *store) get(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// setLocked installs an entry. Caller holds the write lock.
func (s *store) setLocked(e Entry) {
	copied := e
	s.entries[e.Key] = &copied
}

// deleteLocked removes an entry and records the tombstone.
func (s *store) deleteLocked(key Key, at time.Time) {
	delete(s.entries, key)
	if prev, ok := s.tombstones[key]; !ok || at.After(prev) {
		s.tombstones[key] = at
	}
}

// deletedAfterLocked reports whether key was deleted at or after ts.
func (s *store) deletedAfterLocked(key Key, ts time.Time) bool {
	at, ok := s.tombstones[key]
	return ok && !ts.After(at)
}

// bumpFetch invalidates in-flight fetches for key and returns the new
// generation.
func (s *store) bumpFetch(key Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchGen[key]++
	return s.fetchGen[key]
}

// fetchCurrent reports whether gen is still the newest fetch for key.
func (s *store) fetchCurrentLocked(key Key, gen uint64) bool {
	return s.fetchGen[key] == gen
}

// pruneTombstones drops tombstones older than maxAge.
func (s *store) pruneTombstones(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for key, at := range s.tombstones {
		if at.Before(cutoff) {
			delete(s.tombstones, key)
		}
	}
}

// placeholders returns the keys of all placeholder entries.
func (s *store) placeholders() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []Key
	for key, e := range s.entries {
		if e.Placeholder {
			keys = append(keys, key)
		}
	}
	return keys
}

// counts returns entry counts per entity type.
func (s *store) counts() map[model.EntityType]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.EntityType]int)
	for key := range s.entries {
		out[key.Type]++
	}
	return out
}

// cloneLead deep-copies the enrichment map so readers can never alias
// cached state.
func cloneLead(l model.Lead) model.Lead {
	if l.Enrichment != nil {
		m := make(map[string]any, len(l.Enrichment))
		for k, v := range l.Enrichment {
			m[k] = v
		}
		l.Enrichment = m
	}
	return l
}
