package matchmaking

import (
	"sync"

	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
)

// Store holds one waiting pool per queue key. Pools are fully
// independent: each carries its own mutex, so mutations on distinct
// keys proceed in parallel while all mutations on one key serialize.
type Store struct {
	mu    sync.RWMutex
	pools map[domain.QueueKey]*pool
}

// pool is one queue's ordered collection of waiting entries. All
// access to entries happens with mu held.
type pool struct {
	mu      sync.Mutex
	entries []*domain.QueueEntry
}

// NewStore creates an empty queue store
func NewStore() *Store {
	return &Store{
		pools: make(map[domain.QueueKey]*pool),
	}
}

// pool returns the pool for a key, creating it when create is set.
// Returns nil when the pool does not exist and create is false.
func (s *Store) pool(key domain.QueueKey, create bool) *pool {
	s.mu.RLock()
	p, ok := s.pools[key]
	s.mu.RUnlock()
	if ok || !create {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pools[key]; ok {
		return p
	}
	p = &pool{}
	s.pools[key] = p
	return p
}

// Keys returns a snapshot of all queue keys with a pool
func (s *Store) Keys() []domain.QueueKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]domain.QueueKey, 0, len(s.pools))
	for key := range s.pools {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of entries waiting under a key
func (s *Store) Len(key domain.QueueKey) int {
	p := s.pool(key, false)
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// indexOfLocked returns the position of a player's entry, or -1.
// Caller holds p.mu.
func (p *pool) indexOfLocked(playerID string) int {
	for i, e := range p.entries {
		if e.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// removeLocked removes a player's entry if present, preserving the
// order of the remaining entries. Caller holds p.mu.
func (p *pool) removeLocked(playerID string) bool {
	i := p.indexOfLocked(playerID)
	if i < 0 {
		return false
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	return true
}

// removePairLocked removes the entries at two positions in one step,
// so a selected pair leaves the queue atomically. Caller holds p.mu.
func (p *pool) removePairLocked(i, j int) {
	if i > j {
		i, j = j, i
	}
	p.entries = append(p.entries[:j], p.entries[j+1:]...)
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
}
