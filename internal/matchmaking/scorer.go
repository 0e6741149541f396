package matchmaking

import (
	"github.com/LukeAtkinz/dashdice-sub004/internal/config"
	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
)

// CandidateFilter reports whether a candidate is an acceptable
// opponent for the searching entry. Filters run in order and all must
// pass. Region, cross-platform, speed and recent-opponent preferences
// are not filtered yet; new checks slot in here without touching the
// scoring formula.
type CandidateFilter func(searcher, candidate *domain.QueueEntry) bool

// defaultFilters returns the filter chain applied by the engine
func defaultFilters(cfg *config.MatchmakingConfig) []CandidateFilter {
	return []CandidateFilter{
		differentPlayer,
		skillWindow(cfg),
	}
}

// differentPlayer rejects a player being matched against themselves
func differentPlayer(searcher, candidate *domain.QueueEntry) bool {
	return searcher.PlayerID != candidate.PlayerID
}

// skillWindow rejects candidates whose rating falls outside the
// searcher's current tolerance. When either side has no rating, skill
// is not gating.
func skillWindow(cfg *config.MatchmakingConfig) CandidateFilter {
	return func(searcher, candidate *domain.QueueEntry) bool {
		if searcher.SkillRating == nil || candidate.SkillRating == nil {
			return true
		}
		diff := searcher.SkillRating.Rating - candidate.SkillRating.Rating
		if diff < 0 {
			diff = -diff
		}
		return diff <= toleranceFor(searcher.Preferences.SkillTolerance, searcher.WaitTimeMs, cfg)
	}
}

// toleranceFor computes the maximum allowed rating difference for a
// searcher: a base from the preference tier, widened by one point per
// second waited up to a cap. A strict searcher therefore never
// accepts a wider window than base + cap.
func toleranceFor(pref domain.SkillTolerance, waitMs int64, cfg *config.MatchmakingConfig) int {
	var base int
	switch pref {
	case domain.ToleranceStrict:
		base = cfg.StrictTolerance
	case domain.ToleranceLoose:
		base = cfg.LooseTolerance
	default:
		base = cfg.BalancedTolerance
	}

	widen := int(waitMs/1000) * cfg.ToleranceWidenPerSec
	if widen > cfg.ToleranceWidenCap {
		widen = cfg.ToleranceWidenCap
	}
	return base + widen
}

// matchScore rates the quality of a compatible pair. Smaller rating
// gaps, longer shared waits and higher priorities all push the score
// up; the skill penalty is zero when either side lacks a rating.
func matchScore(a, b *domain.QueueEntry) float64 {
	score := 100.0

	if a.SkillRating != nil && b.SkillRating != nil {
		diff := float64(a.SkillRating.Rating - b.SkillRating.Rating)
		if diff < 0 {
			diff = -diff
		}
		score -= diff / 10
	}

	sharedWaitSec := float64(a.WaitTimeMs+b.WaitTimeMs) / 2 / 1000
	if sharedWaitSec > 50 {
		sharedWaitSec = 50
	}
	score += sharedWaitSec

	score += float64(a.Priority+b.Priority) / 20

	return score
}
