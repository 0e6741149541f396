package matchmaking

import (
	"math"

	"github.com/LukeAtkinz/dashdice-sub004/internal/config"
	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
)

// buildStatusLocked assembles the player-facing queue status. Position
// is the 1-based index in insertion order; unrated entries count as
// the default rating in the average. Caller holds the pool lock.
func buildStatusLocked(entries []*domain.QueueEntry, position int, key domain.QueueKey, cfg *config.MatchmakingConfig) *domain.QueueStatus {
	length := len(entries)

	ratingSum := 0
	for _, e := range entries {
		if e.SkillRating != nil {
			ratingSum += e.SkillRating.Rating
		} else {
			ratingSum += cfg.DefaultSkillRating
		}
	}

	avgSkill := 0.0
	if length > 0 {
		avgSkill = float64(ratingSum) / float64(length)
	}

	return &domain.QueueStatus{
		GameMode:          key.GameMode,
		SessionType:       key.SessionType,
		QueueLength:       length,
		Position:          position,
		AverageSkillLevel: avgSkill,
		EstimatedWaitMs:   estimateWaitMs(position, length),
	}
}

// estimateWaitMs is a coarse time-to-match guess: a 30s floor plus 5s
// per position ahead, scaled up once the queue is deeper than ten
// entries.
func estimateWaitMs(position, queueLength int) int64 {
	loadFactor := math.Max(1, float64(queueLength)/10)
	return int64(math.Round((30000 + float64(position)*5000) * loadFactor))
}
