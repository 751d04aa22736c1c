// Package progression implements the XP and leveling rules: XP deltas,
// level-up thresholds, administrative overrides, and season rollover.
package progression

import (
	"errors"
	"sync"

	"levelbot/internal/models"
)

const (
	// LevelUpXP is the XP threshold crossed to gain one level.
	LevelUpXP = 100

	// XPPerMinute is the voice accrual rate.
	XPPerMinute = 2
)

// ErrXPOutOfRange is returned by SetXP for values outside [0, 99].
var ErrXPOutOfRange = errors.New("xp must be between 0 and 99")

// Store is the persistence the engine operates on. The engine keeps no
// durable state of its own: records are fetched immediately before use and
// written immediately after.
type Store interface {
	GetCurrentRecord(guildID, userID string) (*models.ProgressionRecord, error)
	UpsertRecord(rec models.ProgressionRecord) error
	GetCurrentSeason(guildID string) (int, error)
	ArchiveSeason(guildID string, season int) error
	ResetSeason(guildID string, newSeason int) error
}

// Engine applies progression rules over records fetched from a Store.
type Engine struct {
	store Store
	locks keyedLocks
}

// New creates a new engine over the given store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// ApplyXP adds delta XP to the user's current-season record, creating the
// record if absent, and reports whether a level-up occurred. A single call
// increments the level at most once: a delta crossing two thresholds still
// yields one level, with the full remainder kept as XP. This is a
// deliberate carry-over from the bot's original rules, not a catch-up loop.
func (e *Engine) ApplyXP(guildID, userID string, delta int) (models.ProgressionRecord, bool, error) {
	unlock := e.locks.lock(guildID + ":" + userID)
	defer unlock()

	season, err := e.store.GetCurrentSeason(guildID)
	if err != nil {
		return models.ProgressionRecord{}, false, err
	}

	rec, err := e.store.GetCurrentRecord(guildID, userID)
	if err != nil {
		return models.ProgressionRecord{}, false, err
	}
	if rec == nil {
		rec = &models.ProgressionRecord{GuildID: guildID, UserID: userID, Season: season}
	}

	rec.XP += delta
	leveledUp := false
	if rec.XP >= LevelUpXP {
		rec.Level++
		rec.XP -= LevelUpXP
		leveledUp = true
	}

	if err := e.store.UpsertRecord(*rec); err != nil {
		return models.ProgressionRecord{}, false, err
	}
	return *rec, leveledUp, nil
}

// SetLevel overrides a user's level, preserving their XP when a record
// already exists and starting from 0 XP otherwise.
func (e *Engine) SetLevel(guildID, userID string, level int) error {
	unlock := e.locks.lock(guildID + ":" + userID)
	defer unlock()

	season, err := e.store.GetCurrentSeason(guildID)
	if err != nil {
		return err
	}

	rec, err := e.store.GetCurrentRecord(guildID, userID)
	if err != nil {
		return err
	}

	xp := 0
	if rec != nil {
		xp = rec.XP
	}

	return e.store.UpsertRecord(models.ProgressionRecord{
		GuildID: guildID,
		UserID:  userID,
		XP:      xp,
		Level:   level,
		Season:  season,
	})
}

// SetXP overrides a user's XP. Values outside [0, 99] are rejected before
// any state is touched. The level is recomputed as xp / LevelUpXP, which
// for the permitted range is always 0; this mirrors the original admin
// command rather than the independently stored level used elsewhere.
func (e *Engine) SetXP(guildID, userID string, xp int) error {
	if xp < 0 || xp > 99 {
		return ErrXPOutOfRange
	}

	unlock := e.locks.lock(guildID + ":" + userID)
	defer unlock()

	season, err := e.store.GetCurrentSeason(guildID)
	if err != nil {
		return err
	}

	return e.store.UpsertRecord(models.ProgressionRecord{
		GuildID: guildID,
		UserID:  userID,
		XP:      xp,
		Level:   xp / LevelUpXP,
		Season:  season,
	})
}

// StartNewSeason archives the guild's current standings, then resets every
// live record to the next season with zero progress. Archival must succeed
// before the reset runs; on archive failure the prior season stays intact.
func (e *Engine) StartNewSeason(guildID string) (int, error) {
	current, err := e.store.GetCurrentSeason(guildID)
	if err != nil {
		return 0, err
	}

	if err := e.store.ArchiveSeason(guildID, current); err != nil {
		return 0, err
	}

	next := current + 1
	if err := e.store.ResetSeason(guildID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// keyedLocks serializes the fetch-compute-write cycle per (guild, user) so
// concurrent chat and voice awards for the same user cannot lose updates.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
