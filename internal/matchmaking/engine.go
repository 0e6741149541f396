package matchmaking

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/LukeAtkinz/dashdice-sub004/internal/config"
	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
)

// Notifier receives queue lifecycle events for push delivery. Calls
// are made outside any queue lock and must not block.
type Notifier interface {
	QueueUpdated(key domain.QueueKey, length int)
	MatchFound(key domain.QueueKey, pair []*domain.QueueEntry)
}

// Engine is the matchmaking orchestrator: it owns the queue store and
// exposes the join/leave/find-match/status/cleanup operations. All
// operations are safe for concurrent use; each one is a short
// critical section under the target queue's lock.
type Engine struct {
	store    *Store
	cfg      *config.MatchmakingConfig
	filters  []CandidateFilter
	logger   *slog.Logger
	notifier Notifier
	now      func() time.Time
}

// NewEngine creates a new matchmaking engine
func NewEngine(cfg *config.MatchmakingConfig, logger *slog.Logger) *Engine {
	return &Engine{
		store:   NewStore(),
		cfg:     cfg,
		filters: defaultFilters(cfg),
		logger:  logger,
		now:     time.Now,
	}
}

// SetNotifier attaches a push notifier for queue and match events
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Join adds a player to the queue for a game mode and session type
// and returns the entry id. Joining again under the same key replaces
// the previous entry and resets its wait clock; that is an expected
// rejoin, not an error.
func (e *Engine) Join(req domain.JoinRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	req.ApplyDefaults(e.cfg.MaxQueueTime)

	key := req.Key()
	now := e.now()
	entry := &domain.QueueEntry{
		ID:          fmt.Sprintf("%s-%d", req.PlayerID, now.UnixMilli()),
		PlayerID:    req.PlayerID,
		Player:      req.Player,
		Key:         key,
		SkillRating: req.SkillRating,
		JoinedAt:    now,
		Preferences: req.Preferences,
		Priority:    initialPriority(&req, e.cfg),
	}

	p := e.store.pool(key, true)
	p.mu.Lock()
	replaced := p.removeLocked(req.PlayerID)
	p.entries = append(p.entries, entry)
	length := len(p.entries)
	p.mu.Unlock()

	e.notifyQueue(key, length)
	e.logger.Debug("player joined queue",
		"player_id", req.PlayerID,
		"queue_key", key.String(),
		"rejoin", replaced,
		"queue_length", length,
	)

	return entry.ID, nil
}

// Leave removes a player's entry if present. A missing entry is a
// normal outcome and reported through the return value.
func (e *Engine) Leave(playerID, gameMode string, sessionType domain.SessionType) bool {
	key := domain.QueueKey{GameMode: gameMode, SessionType: sessionType}
	p := e.store.pool(key, false)
	if p == nil {
		return false
	}

	p.mu.Lock()
	found := p.removeLocked(playerID)
	length := len(p.entries)
	p.mu.Unlock()

	if found {
		e.notifyQueue(key, length)
		e.logger.Debug("player left queue",
			"player_id", playerID,
			"queue_key", key.String(),
			"queue_length", length,
		)
	}
	return found
}

// FindMatch searches the player's queue for the best compatible
// opponent. On success it returns the pair, both entries already
// removed from the queue in the same critical section; an empty
// result means no match yet, and callers are expected to poll.
func (e *Engine) FindMatch(playerID, gameMode string, sessionType domain.SessionType) []*domain.QueueEntry {
	key := domain.QueueKey{GameMode: gameMode, SessionType: sessionType}
	p := e.store.pool(key, false)
	if p == nil {
		return nil
	}

	pair, length := e.findPair(p, playerID)
	if pair == nil {
		return nil
	}

	e.notifyMatch(key, pair)
	e.notifyQueue(key, length)
	e.logger.Info("match found",
		"queue_key", key.String(),
		"player1", pair[0].PlayerID,
		"player2", pair[1].PlayerID,
		"wait1_ms", pair[0].WaitTimeMs,
		"wait2_ms", pair[1].WaitTimeMs,
	)
	return pair
}

// findPair runs the selection pass under the pool lock: refresh
// priorities, filter candidates, score and remove the winning pair.
// Two concurrent calls can never both take the same entry because the
// scan and the pair removal share one lock hold.
func (e *Engine) findPair(p *pool, playerID string) ([]*domain.QueueEntry, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) < 2 {
		return nil, 0
	}
	idx := p.indexOfLocked(playerID)
	if idx < 0 {
		return nil, 0
	}

	refreshPrioritiesLocked(p.entries, e.now(), e.cfg)

	searcher := p.entries[idx]
	best := -1
	bestScore := 0.0
	for i, candidate := range p.entries {
		if i == idx {
			continue
		}
		if !e.compatible(searcher, candidate) {
			continue
		}
		// Strict inequality keeps the first-seen candidate on ties
		if score := matchScore(searcher, candidate); best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 {
		return nil, 0
	}

	pair := []*domain.QueueEntry{searcher, p.entries[best]}
	p.removePairLocked(idx, best)
	return pair, len(p.entries)
}

// compatible runs the candidate filter chain
func (e *Engine) compatible(searcher, candidate *domain.QueueEntry) bool {
	for _, filter := range e.filters {
		if !filter(searcher, candidate) {
			return false
		}
	}
	return true
}

// QueueStatus reports a player's view of their queue. The second
// return value is false when the player has no live entry under the
// key.
func (e *Engine) QueueStatus(playerID, gameMode string, sessionType domain.SessionType) (*domain.QueueStatus, bool) {
	key := domain.QueueKey{GameMode: gameMode, SessionType: sessionType}
	p := e.store.pool(key, false)
	if p == nil {
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOfLocked(playerID)
	if idx < 0 {
		return nil, false
	}
	return buildStatusLocked(p.entries, idx+1, key, e.cfg), true
}

// Cleanup evicts every entry that has waited longer than its
// effective timeout: the entry's own max wait preference, capped by
// the global max queue time. Eviction is not a match; evicted entries
// simply disappear from the queue. Returns the number evicted.
func (e *Engine) Cleanup() int {
	now := e.now()
	capMs := e.cfg.MaxQueueTime.Milliseconds()
	evicted := 0

	for _, key := range e.store.Keys() {
		p := e.store.pool(key, false)
		if p == nil {
			continue
		}

		p.mu.Lock()
		kept := p.entries[:0]
		var expired []*domain.QueueEntry
		for _, entry := range p.entries {
			timeout := entry.Preferences.MaxWaitTimeMs
			if timeout <= 0 || timeout > capMs {
				timeout = capMs
			}
			if now.Sub(entry.JoinedAt).Milliseconds() > timeout {
				expired = append(expired, entry)
			} else {
				kept = append(kept, entry)
			}
		}
		p.entries = kept
		length := len(p.entries)
		p.mu.Unlock()

		if len(expired) == 0 {
			continue
		}
		evicted += len(expired)
		e.notifyQueue(key, length)
		for _, entry := range expired {
			e.logger.Debug("evicted expired entry",
				"player_id", entry.PlayerID,
				"queue_key", key.String(),
				"waited_ms", now.Sub(entry.JoinedAt).Milliseconds(),
			)
		}
	}
	return evicted
}

// QueueLengths returns the current length of every known queue
func (e *Engine) QueueLengths() map[string]int {
	lengths := make(map[string]int)
	for _, key := range e.store.Keys() {
		lengths[key.String()] = e.store.Len(key)
	}
	return lengths
}

func (e *Engine) notifyQueue(key domain.QueueKey, length int) {
	if e.notifier != nil {
		e.notifier.QueueUpdated(key, length)
	}
}

func (e *Engine) notifyMatch(key domain.QueueKey, pair []*domain.QueueEntry) {
	if e.notifier != nil {
		e.notifier.MatchFound(key, pair)
	}
}
