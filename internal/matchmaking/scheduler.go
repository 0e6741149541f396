package matchmaking

import (
	"time"

	"github.com/LukeAtkinz/dashdice-sub004/internal/config"
	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
)

// initialPriority computes a new entry's starting priority: a flat
// base, a ranked-session bonus and a boost for players with few rated
// games behind their rating.
func initialPriority(req *domain.JoinRequest, cfg *config.MatchmakingConfig) int {
	priority := cfg.BasePriority
	if req.SessionType == domain.SessionTypeRanked {
		priority += cfg.RankedPriorityBonus
	}
	if req.SkillRating != nil && req.SkillRating.GamesPlayed < cfg.NewPlayerGameThreshold {
		priority += cfg.NewPlayerPriorityBonus
	}
	return priority
}

// refreshPrioritiesLocked recomputes wait time and priority for every
// entry in a pool. Each full boost interval waited adds a fixed
// amount, credited once: BoostIntervals tracks how many intervals
// have already been paid out, so a refresh only applies the delta.
// Priority and wait time never decrease while an entry stays queued.
// Caller holds the pool lock; cost is O(queue length).
func refreshPrioritiesLocked(entries []*domain.QueueEntry, now time.Time, cfg *config.MatchmakingConfig) {
	for _, e := range entries {
		wait := now.Sub(e.JoinedAt)
		if wait < 0 {
			wait = 0
		}
		e.WaitTimeMs = wait.Milliseconds()

		intervals := int(wait / cfg.PriorityBoostInterval)
		if intervals > e.BoostIntervals {
			e.Priority += (intervals - e.BoostIntervals) * cfg.PriorityBoostAmount
			e.BoostIntervals = intervals
		}
	}
}
