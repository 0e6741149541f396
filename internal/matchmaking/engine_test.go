package matchmaking

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEngine() (*Engine, *fakeClock) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(testMatchmakingConfig(), logger)
	clock := &fakeClock{t: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)}
	engine.now = clock.Now
	return engine, clock
}

func joinReq(playerID string, sessionType domain.SessionType, rating int, tolerance domain.SkillTolerance) domain.JoinRequest {
	req := domain.JoinRequest{
		PlayerID:    playerID,
		Player:      domain.PlayerSnapshot{DisplayName: playerID},
		GameMode:    "classic",
		SessionType: sessionType,
		Preferences: domain.SearchPreferences{SkillTolerance: tolerance},
	}
	if rating > 0 {
		req.SkillRating = &domain.SkillRating{Rating: rating, GamesPlayed: 50}
	}
	return req
}

func TestJoinValidation(t *testing.T) {
	engine, _ := newTestEngine()

	tests := []struct {
		name     string
		mutate   func(*domain.JoinRequest)
		expected error
	}{
		{
			name:     "missing player id",
			mutate:   func(r *domain.JoinRequest) { r.PlayerID = "" },
			expected: domain.ErrMissingPlayerID,
		},
		{
			name:     "missing game mode",
			mutate:   func(r *domain.JoinRequest) { r.GameMode = "" },
			expected: domain.ErrInvalidRequest,
		},
		{
			name:     "unknown session type",
			mutate:   func(r *domain.JoinRequest) { r.SessionType = "speedrun" },
			expected: domain.ErrUnknownSessionType,
		},
		{
			name:     "negative max wait",
			mutate:   func(r *domain.JoinRequest) { r.Preferences.MaxWaitTimeMs = -1 },
			expected: domain.ErrInvalidWaitTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := joinReq("p1", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced)
			tt.mutate(&req)
			_, err := engine.Join(req)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestJoinIdempotent(t *testing.T) {
	engine, clock := newTestEngine()

	id1, err := engine.Join(joinReq("p1", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	id2, err := engine.Join(joinReq("p1", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	key := domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick}
	assert.Equal(t, 1, engine.store.Len(key))

	// The surviving entry carries the second join's timestamp
	p := engine.store.pool(key, false)
	require.NotNil(t, p)
	p.mu.Lock()
	require.Len(t, p.entries, 1)
	assert.Equal(t, clock.Now(), p.entries[0].JoinedAt)
	p.mu.Unlock()
}

func TestJoinSeparateKeysAreIndependent(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.Join(joinReq("p1", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("p1", domain.SessionTypeRanked, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	assert.Equal(t, 1, engine.store.Len(domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick}))
	assert.Equal(t, 1, engine.store.Len(domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeRanked}))
}

func TestLeave(t *testing.T) {
	engine, _ := newTestEngine()

	assert.False(t, engine.Leave("p1", "classic", domain.SessionTypeQuick))

	_, err := engine.Join(joinReq("p1", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	assert.True(t, engine.Leave("p1", "classic", domain.SessionTypeQuick))
	assert.False(t, engine.Leave("p1", "classic", domain.SessionTypeQuick))
}

func TestFindMatchCompatiblePair(t *testing.T) {
	// Scenario: X (1200, balanced) and Y (1250, balanced) should match
	// immediately, diff 50 within the balanced window of 100
	engine, _ := newTestEngine()

	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("Y", domain.SessionTypeQuick, 1250, domain.ToleranceBalanced))
	require.NoError(t, err)

	pair := engine.FindMatch("X", "classic", domain.SessionTypeQuick)
	require.Len(t, pair, 2)
	assert.Equal(t, "X", pair[0].PlayerID)
	assert.Equal(t, "Y", pair[1].PlayerID)

	// Both entries are gone from the queue
	assert.Equal(t, 0, engine.store.Len(domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick}))
}

func TestFindMatchStrictNeverWidensEnough(t *testing.T) {
	// Scenario: 1200 vs 1500 under strict tolerance stays unmatched
	// even after a minute, max strict window 150 < diff 300
	engine, clock := newTestEngine()

	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceStrict))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("Y", domain.SessionTypeQuick, 1500, domain.ToleranceStrict))
	require.NoError(t, err)

	assert.Empty(t, engine.FindMatch("X", "classic", domain.SessionTypeQuick))

	clock.Advance(60 * time.Second)
	assert.Empty(t, engine.FindMatch("X", "classic", domain.SessionTypeQuick))

	// Neither entry was consumed by the failed passes
	assert.Equal(t, 2, engine.store.Len(domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick}))
}

func TestFindMatchLoneEntry(t *testing.T) {
	engine, clock := newTestEngine()

	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	assert.Empty(t, engine.FindMatch("X", "classic", domain.SessionTypeQuick))
	clock.Advance(10 * time.Minute)
	assert.Empty(t, engine.FindMatch("X", "classic", domain.SessionTypeQuick))
}

func TestFindMatchRequiresLiveEntry(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.Join(joinReq("A", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("B", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	// C never joined this queue
	assert.Empty(t, engine.FindMatch("C", "classic", domain.SessionTypeQuick))
	assert.Empty(t, engine.FindMatch("A", "classic", domain.SessionTypeRanked))
}

func TestFindMatchPicksClosestRating(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("far", domain.SessionTypeQuick, 1290, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("near", domain.SessionTypeQuick, 1210, domain.ToleranceBalanced))
	require.NoError(t, err)

	pair := engine.FindMatch("X", "classic", domain.SessionTypeQuick)
	require.Len(t, pair, 2)
	assert.Equal(t, "near", pair[1].PlayerID)

	// The losing candidate stays queued
	assert.Equal(t, 1, engine.store.Len(domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick}))
}

func TestFindMatchTieBreaksOnIterationOrder(t *testing.T) {
	engine, _ := newTestEngine()

	// Unrated entries with identical priorities score identically, so
	// the first-joined candidate must win
	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 0, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("first", domain.SessionTypeQuick, 0, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("second", domain.SessionTypeQuick, 0, domain.ToleranceBalanced))
	require.NoError(t, err)

	pair := engine.FindMatch("X", "classic", domain.SessionTypeQuick)
	require.Len(t, pair, 2)
	assert.Equal(t, "first", pair[1].PlayerID)
}

func TestFindMatchNeverPairsSamePlayerTwice(t *testing.T) {
	engine, _ := newTestEngine()

	const players = 64
	for i := 0; i < players; i++ {
		_, err := engine.Join(joinReq(fmt.Sprintf("p%d", i), domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
		require.NoError(t, err)
	}

	// Every player polls concurrently; each entry may be handed out
	// at most once across all returned pairs
	results := make(chan []*domain.QueueEntry, players)
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			results <- engine.FindMatch(id, "classic", domain.SessionTypeQuick)
		}(fmt.Sprintf("p%d", i))
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for pair := range results {
		if len(pair) == 0 {
			continue
		}
		require.Len(t, pair, 2)
		require.NotEqual(t, pair[0].PlayerID, pair[1].PlayerID)
		for _, entry := range pair {
			assert.False(t, seen[entry.PlayerID], "player %s matched twice", entry.PlayerID)
			seen[entry.PlayerID] = true
		}
	}

	// Matched and still-queued entries account for everyone exactly once
	remaining := engine.store.Len(domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick})
	assert.Equal(t, players, len(seen)+remaining)
}

func TestQueueStatus(t *testing.T) {
	engine, _ := newTestEngine()

	_, found := engine.QueueStatus("X", "classic", domain.SessionTypeQuick)
	assert.False(t, found)

	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("Y", domain.SessionTypeQuick, 0, domain.ToleranceBalanced))
	require.NoError(t, err)

	status, found := engine.QueueStatus("Y", "classic", domain.SessionTypeQuick)
	require.True(t, found)
	assert.Equal(t, "classic", status.GameMode)
	assert.Equal(t, domain.SessionTypeQuick, status.SessionType)
	assert.Equal(t, 2, status.QueueLength)
	assert.Equal(t, 2, status.Position)
	// Unrated Y counts as the 1200 default
	assert.InDelta(t, 1200.0, status.AverageSkillLevel, 0.001)
	// (30000 + 2*5000) * max(1, 2/10)
	assert.Equal(t, int64(40000), status.EstimatedWaitMs)
}

func TestQueueStatusEstimateScalesWithDepth(t *testing.T) {
	engine, _ := newTestEngine()

	for i := 0; i < 20; i++ {
		_, err := engine.Join(joinReq(fmt.Sprintf("p%d", i), domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
		require.NoError(t, err)
	}

	status, found := engine.QueueStatus("p0", "classic", domain.SessionTypeQuick)
	require.True(t, found)
	assert.Equal(t, 20, status.QueueLength)
	assert.Equal(t, 1, status.Position)
	// (30000 + 1*5000) * max(1, 20/10)
	assert.Equal(t, int64(70000), status.EstimatedWaitMs)
}

func TestCleanupEvictionLowerBound(t *testing.T) {
	engine, clock := newTestEngine()

	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	// Exactly at the cap: not yet expired
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 0, engine.Cleanup())
	assert.Equal(t, 1, engine.store.Len(domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick}))

	// One second past the cap: evicted
	clock.Advance(time.Second)
	assert.Equal(t, 1, engine.Cleanup())
	assert.Equal(t, 0, engine.store.Len(domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick}))
}

func TestCleanupHonorsPerEntryMaxWait(t *testing.T) {
	engine, clock := newTestEngine()

	impatient := joinReq("impatient", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced)
	impatient.Preferences.MaxWaitTimeMs = 60000
	_, err := engine.Join(impatient)
	require.NoError(t, err)

	// Asking for longer than the global cap still evicts at the cap
	patient := joinReq("patient", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced)
	patient.Preferences.MaxWaitTimeMs = 60 * 60 * 1000
	_, err = engine.Join(patient)
	require.NoError(t, err)

	clock.Advance(61 * time.Second)
	assert.Equal(t, 1, engine.Cleanup())

	key := domain.QueueKey{GameMode: "classic", SessionType: domain.SessionTypeQuick}
	assert.Equal(t, 1, engine.store.Len(key))
	_, found := engine.QueueStatus("patient", "classic", domain.SessionTypeQuick)
	assert.True(t, found)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, engine.Cleanup())
	assert.Equal(t, 0, engine.store.Len(key))
}

func TestCleanupRemovesExpiredFromStatus(t *testing.T) {
	// Scenario: a defaulted entry swept past the 5-minute cap no
	// longer appears in queue status
	engine, clock := newTestEngine()

	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	clock.Advance(301 * time.Second)
	engine.Cleanup()

	_, found := engine.QueueStatus("X", "classic", domain.SessionTypeQuick)
	assert.False(t, found)
}

func TestQueueLengths(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.Join(joinReq("a", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("b", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("c", domain.SessionTypeRanked, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	lengths := engine.QueueLengths()
	assert.Equal(t, 2, lengths["classic:quick"])
	assert.Equal(t, 1, lengths["classic:ranked"])
}

func TestPriorityBoostAffectsSelection(t *testing.T) {
	engine, clock := newTestEngine()

	// Two candidates equidistant from the searcher; the one that has
	// waited through more boost intervals carries higher priority and
	// wins the score comparison
	_, err := engine.Join(joinReq("old", domain.SessionTypeQuick, 1250, domain.ToleranceBalanced))
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = engine.Join(joinReq("new", domain.SessionTypeQuick, 1150, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)

	pair := engine.FindMatch("X", "classic", domain.SessionTypeQuick)
	require.Len(t, pair, 2)
	assert.Equal(t, "old", pair[1].PlayerID)
	assert.Greater(t, pair[1].Priority, 100)
}

type recordingNotifier struct {
	mu      sync.Mutex
	queues  []int
	matches int
}

func (n *recordingNotifier) QueueUpdated(key domain.QueueKey, length int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queues = append(n.queues, length)
}

func (n *recordingNotifier) MatchFound(key domain.QueueKey, pair []*domain.QueueEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matches++
}

func TestNotifierReceivesEvents(t *testing.T) {
	engine, _ := newTestEngine()
	notifier := &recordingNotifier{}
	engine.SetNotifier(notifier)

	_, err := engine.Join(joinReq("X", domain.SessionTypeQuick, 1200, domain.ToleranceBalanced))
	require.NoError(t, err)
	_, err = engine.Join(joinReq("Y", domain.SessionTypeQuick, 1250, domain.ToleranceBalanced))
	require.NoError(t, err)

	pair := engine.FindMatch("X", "classic", domain.SessionTypeQuick)
	require.Len(t, pair, 2)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, 1, notifier.matches)
	// Two joins and the post-match drain each reported a length
	assert.Equal(t, []int{1, 2, 0}, notifier.queues)
}
