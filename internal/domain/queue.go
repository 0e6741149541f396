package domain

import (
	"time"
)

// SessionType represents the kind of session a player is searching for
type SessionType string

const (
	SessionTypeQuick      SessionType = "quick"
	SessionTypeRanked     SessionType = "ranked"
	SessionTypeTournament SessionType = "tournament"
	SessionTypeCustom     SessionType = "custom"
)

// Valid reports whether the session type is one of the known values
func (s SessionType) Valid() bool {
	switch s {
	case SessionTypeQuick, SessionTypeRanked, SessionTypeTournament, SessionTypeCustom:
		return true
	}
	return false
}

// SkillTolerance represents how wide a skill window a player accepts
type SkillTolerance string

const (
	ToleranceStrict   SkillTolerance = "strict"
	ToleranceBalanced SkillTolerance = "balanced"
	ToleranceLoose    SkillTolerance = "loose"
)

// QueueKey identifies one independent waiting pool
type QueueKey struct {
	GameMode    string      `json:"game_mode"`
	SessionType SessionType `json:"session_type"`
}

// String returns the canonical form used for subscriptions and logging
func (k QueueKey) String() string {
	return k.GameMode + ":" + string(k.SessionType)
}

// PlayerSnapshot is a copy of display-relevant player data captured at
// join time; it is not re-fetched while the entry is queued
type PlayerSnapshot struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	DiceSkin    string `json:"dice_skin,omitempty"`
}

// SkillRating holds a player's rating and how many rated games back it
type SkillRating struct {
	Rating      int `json:"rating"`
	GamesPlayed int `json:"games_played"`
}

// SearchPreferences are the per-search knobs a player supplies on join.
// Region, cross-platform, game speed and recent-opponent preferences
// are carried on the entry but not yet enforced during candidate
// filtering.
type SearchPreferences struct {
	MaxWaitTimeMs        int64          `json:"max_wait_time_ms"`
	SkillTolerance       SkillTolerance `json:"skill_tolerance"`
	RegionPreference     string         `json:"region_preference,omitempty"`
	AllowCrossPlatform   bool           `json:"allow_cross_platform,omitempty"`
	PreferredGameSpeed   string         `json:"preferred_game_speed,omitempty"`
	AvoidRecentOpponents bool           `json:"avoid_recent_opponents,omitempty"`
}

// QueueEntry represents one player's active search within a queue
type QueueEntry struct {
	ID          string            `json:"id"`
	PlayerID    string            `json:"player_id"`
	Player      PlayerSnapshot    `json:"player"`
	Key         QueueKey          `json:"queue_key"`
	SkillRating *SkillRating      `json:"skill_rating,omitempty"`
	JoinedAt    time.Time         `json:"joined_at"`
	WaitTimeMs  int64             `json:"wait_time_ms"`
	Preferences SearchPreferences `json:"preferences"`
	Priority    int               `json:"priority"`

	// BoostIntervals is the number of full priority-boost intervals
	// already credited to Priority, so repeated refreshes never apply
	// the same interval twice.
	BoostIntervals int `json:"-"`
}

// JoinRequest represents a request to start searching for a game
type JoinRequest struct {
	PlayerID    string            `json:"player_id"`
	Player      PlayerSnapshot    `json:"player"`
	GameMode    string            `json:"game_mode"`
	SessionType SessionType       `json:"session_type"`
	SkillRating *SkillRating      `json:"skill_rating,omitempty"`
	Preferences SearchPreferences `json:"preferences"`
}

// Validate checks the request before any queue mutation
func (r *JoinRequest) Validate() error {
	if r.PlayerID == "" {
		return ErrMissingPlayerID
	}
	if r.GameMode == "" {
		return ErrInvalidRequest
	}
	if !r.SessionType.Valid() {
		return ErrUnknownSessionType
	}
	if r.Preferences.MaxWaitTimeMs < 0 {
		return ErrInvalidWaitTime
	}
	return nil
}

// ApplyDefaults fills in optional preference fields
func (r *JoinRequest) ApplyDefaults(maxQueueTime time.Duration) {
	if r.Preferences.MaxWaitTimeMs == 0 {
		r.Preferences.MaxWaitTimeMs = maxQueueTime.Milliseconds()
	}
	if r.Preferences.SkillTolerance == "" {
		r.Preferences.SkillTolerance = ToleranceBalanced
	}
}

// Key returns the queue key the request targets
func (r *JoinRequest) Key() QueueKey {
	return QueueKey{GameMode: r.GameMode, SessionType: r.SessionType}
}

// QueueStatus is the player-facing view of a queue. Position reflects
// insertion order, not selection likelihood; selection is driven by
// priority and match score.
type QueueStatus struct {
	GameMode          string      `json:"game_mode"`
	SessionType       SessionType `json:"session_type"`
	QueueLength       int         `json:"queue_length"`
	Position          int         `json:"position"`
	AverageSkillLevel float64     `json:"average_skill_level"`
	EstimatedWaitMs   int64       `json:"estimated_wait_time_ms"`
}
