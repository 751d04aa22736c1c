// Package voice tracks open voice sessions and periodically converts
// connected time into XP.
package voice

import (
	"context"
	"log"
	"time"

	"levelbot/internal/models"
	"levelbot/internal/progression"
)

// SessionStore persists the open voice sessions.
type SessionStore interface {
	OpenSession(userID, guildID string, joinedAt time.Time) error
	CloseSession(userID, guildID string) error
	ListSessions() ([]models.VoiceSession, error)
	TouchSession(userID, guildID string, joinedAt time.Time) error
}

// Notifier receives level-up events raised during voice accrual.
type Notifier interface {
	NotifyLevelUp(guildID, userID string, level int)
}

// Tracker maintains the currently-connected markers per (user, guild) and
// converts elapsed time into XP on a fixed tick.
type Tracker struct {
	store    SessionStore
	engine   *progression.Engine
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

// NewTracker creates a tracker ticking once per minute.
func NewTracker(store SessionStore, engine *progression.Engine, notifier Notifier) *Tracker {
	return &Tracker{
		store:    store,
		engine:   engine,
		notifier: notifier,
		interval: time.Minute,
		now:      time.Now,
	}
}

// HandleJoin opens a session at the current time, replacing any stale
// session for that key.
func (t *Tracker) HandleJoin(userID, guildID string) error {
	return t.store.OpenSession(userID, guildID, t.now())
}

// HandleLeave closes the session. Leaving without an open session is a
// no-op.
func (t *Tracker) HandleLeave(userID, guildID string) error {
	return t.store.CloseSession(userID, guildID)
}

// Run ticks at the accrual interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick awards XP for the whole minutes elapsed on every open session, then
// advances each session's window to now. The window resets even when a
// sub-minute remainder gets discarded; those leftover seconds are dropped
// each cycle, matching the bot's long-standing accrual behavior.
func (t *Tracker) tick() {
	sessions, err := t.store.ListSessions()
	if err != nil {
		log.Printf("Error listing voice sessions: %v", err)
		return
	}

	for _, session := range sessions {
		now := t.now()
		minutes := int(now.Sub(session.JoinedAt).Minutes())

		if gained := minutes * progression.XPPerMinute; gained > 0 {
			rec, leveledUp, err := t.engine.ApplyXP(session.GuildID, session.UserID, gained)
			if err != nil {
				// Leave the window untouched so the minutes are not lost.
				log.Printf("Error applying voice XP for %s: %v", session.UserID, err)
				continue
			}
			if leveledUp && t.notifier != nil {
				t.notifier.NotifyLevelUp(session.GuildID, session.UserID, rec.Level)
			}
		}

		if err := t.store.TouchSession(session.UserID, session.GuildID, now); err != nil {
			log.Printf("Error touching voice session for %s: %v", session.UserID, err)
		}
	}
}
