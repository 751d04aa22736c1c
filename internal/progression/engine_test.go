package progression

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelbot/internal/models"
)

// memStore is an in-memory Store mirroring the live table semantics:
// records keyed by (guild, user, season), current season derived as the
// guild's maximum.
type memStore struct {
	mu          sync.Mutex
	records     map[string]models.ProgressionRecord
	archive     map[string]models.ProgressionRecord
	failArchive bool
	upserts     int
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]models.ProgressionRecord),
		archive: make(map[string]models.ProgressionRecord),
	}
}

func recKey(guildID, userID string, season int) string {
	return fmt.Sprintf("%s:%s:%d", guildID, userID, season)
}

func (m *memStore) currentSeason(guildID string) int {
	season := 1
	for _, rec := range m.records {
		if rec.GuildID == guildID && rec.Season > season {
			season = rec.Season
		}
	}
	return season
}

func (m *memStore) GetCurrentRecord(guildID, userID string) (*models.ProgressionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[recKey(guildID, userID, m.currentSeason(guildID))]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memStore) UpsertRecord(rec models.ProgressionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.records[recKey(rec.GuildID, rec.UserID, rec.Season)] = rec
	return nil
}

func (m *memStore) GetCurrentSeason(guildID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentSeason(guildID), nil
}

func (m *memStore) ArchiveSeason(guildID string, season int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failArchive {
		return errors.New("archive failed")
	}
	for _, rec := range m.records {
		if rec.GuildID == guildID {
			archived := rec
			archived.Season = season
			m.archive[recKey(guildID, rec.UserID, season)] = archived
		}
	}
	return nil
}

func (m *memStore) ResetSeason(guildID string, newSeason int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.records {
		if rec.GuildID != guildID {
			continue
		}
		delete(m.records, key)
		rec.XP = 0
		rec.Level = 0
		rec.Season = newSeason
		m.records[recKey(guildID, rec.UserID, newSeason)] = rec
	}
	return nil
}

func TestApplyXPBelowThreshold(t *testing.T) {
	store := newMemStore()
	engine := New(store)

	rec, leveledUp, err := engine.ApplyXP("g1", "u1", 40)
	require.NoError(t, err)
	assert.False(t, leveledUp)
	assert.Equal(t, 40, rec.XP)
	assert.Equal(t, 0, rec.Level)
	assert.Equal(t, 1, rec.Season)

	rec, leveledUp, err = engine.ApplyXP("g1", "u1", 30)
	require.NoError(t, err)
	assert.False(t, leveledUp)
	assert.Equal(t, 70, rec.XP)
	assert.Equal(t, 0, rec.Level)
}

func TestApplyXPLevelUp(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "u1", XP: 90, Level: 2, Season: 1,
	}))
	engine := New(store)

	rec, leveledUp, err := engine.ApplyXP("g1", "u1", 15)
	require.NoError(t, err)
	assert.True(t, leveledUp)
	assert.Equal(t, 3, rec.Level)
	assert.Equal(t, 5, rec.XP)
}

func TestApplyXPSingleIncrementPerCall(t *testing.T) {
	// A delta crossing two thresholds still grants exactly one level; the
	// remainder stays as XP above the threshold until the next award.
	store := newMemStore()
	engine := New(store)

	rec, leveledUp, err := engine.ApplyXP("g1", "u1", 250)
	require.NoError(t, err)
	assert.True(t, leveledUp)
	assert.Equal(t, 1, rec.Level)
	assert.Equal(t, 150, rec.XP)
}

func TestApplyXPStartsAtCurrentSeason(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "other", XP: 10, Level: 1, Season: 3,
	}))
	engine := New(store)

	rec, _, err := engine.ApplyXP("g1", "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Season)
	assert.Equal(t, 5, rec.XP)
}

func TestApplyXPIgnoresPriorSeasons(t *testing.T) {
	// A record left in season 1 must not leak into season 2 progression.
	store := newMemStore()
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "u1", XP: 50, Level: 4, Season: 1,
	}))
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "other", XP: 0, Level: 0, Season: 2,
	}))
	engine := New(store)

	rec, leveledUp, err := engine.ApplyXP("g1", "u1", 10)
	require.NoError(t, err)
	assert.False(t, leveledUp)
	assert.Equal(t, 2, rec.Season)
	assert.Equal(t, 10, rec.XP)
	assert.Equal(t, 0, rec.Level)
}

func TestApplyXPConcurrentSameUser(t *testing.T) {
	store := newMemStore()
	engine := New(store)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := engine.ApplyXP("g1", "u1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.GetCurrentRecord("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Level)
	assert.Equal(t, 0, rec.XP)
}

func TestSetLevelPreservesXP(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "u1", XP: 42, Level: 1, Season: 1,
	}))
	engine := New(store)

	require.NoError(t, engine.SetLevel("g1", "u1", 7))

	rec, err := store.GetCurrentRecord("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 7, rec.Level)
	assert.Equal(t, 42, rec.XP)
}

func TestSetLevelCreatesRecord(t *testing.T) {
	store := newMemStore()
	engine := New(store)

	require.NoError(t, engine.SetLevel("g1", "u1", 5))

	rec, err := store.GetCurrentRecord("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 5, rec.Level)
	assert.Equal(t, 0, rec.XP)
}

func TestSetXPRejectsOutOfRange(t *testing.T) {
	store := newMemStore()
	engine := New(store)

	err := engine.SetXP("g1", "u1", 150)
	assert.ErrorIs(t, err, ErrXPOutOfRange)

	err = engine.SetXP("g1", "u1", -1)
	assert.ErrorIs(t, err, ErrXPOutOfRange)

	// Nothing was written.
	assert.Equal(t, 0, store.upserts)
}

func TestSetXPRecomputesLevel(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "u1", XP: 10, Level: 6, Season: 1,
	}))
	engine := New(store)

	require.NoError(t, engine.SetXP("g1", "u1", 0))

	rec, err := store.GetCurrentRecord("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.XP)
	// level = xp / LevelUpXP, always 0 for the permitted range.
	assert.Equal(t, 0, rec.Level)

	require.NoError(t, engine.SetXP("g1", "u1", 99))
	rec, err = store.GetCurrentRecord("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 99, rec.XP)
	assert.Equal(t, 0, rec.Level)
}

func TestStartNewSeason(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "u1", XP: 30, Level: 5, Season: 2,
	}))
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "u2", XP: 80, Level: 3, Season: 2,
	}))
	engine := New(store)

	next, err := engine.StartNewSeason("g1")
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	// Archive holds the frozen season-2 standings.
	archived, ok := store.archive[recKey("g1", "u1", 2)]
	require.True(t, ok)
	assert.Equal(t, 30, archived.XP)
	assert.Equal(t, 5, archived.Level)

	archived, ok = store.archive[recKey("g1", "u2", 2)]
	require.True(t, ok)
	assert.Equal(t, 80, archived.XP)
	assert.Equal(t, 3, archived.Level)

	// Live records are reset to season 3 with zero progress.
	for _, userID := range []string{"u1", "u2"} {
		rec, err := store.GetCurrentRecord("g1", userID)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, 3, rec.Season)
		assert.Equal(t, 0, rec.XP)
		assert.Equal(t, 0, rec.Level)
	}
}

func TestStartNewSeasonArchiveFailureAbortsReset(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.UpsertRecord(models.ProgressionRecord{
		GuildID: "g1", UserID: "u1", XP: 30, Level: 5, Season: 2,
	}))
	store.failArchive = true
	engine := New(store)

	_, err := engine.StartNewSeason("g1")
	require.Error(t, err)

	// The prior season's data is intact and unarchived.
	assert.Empty(t, store.archive)
	rec, err := store.GetCurrentRecord("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.Season)
	assert.Equal(t, 30, rec.XP)
	assert.Equal(t, 5, rec.Level)
}

func TestStartNewSeasonEmptyGuild(t *testing.T) {
	store := newMemStore()
	engine := New(store)

	next, err := engine.StartNewSeason("g1")
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}
