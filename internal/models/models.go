package models

import "time"

// ProgressionRecord represents a user's standing in a guild for one season.
// At rest XP stays below the level-up threshold; Level is stored
// independently once computed.
type ProgressionRecord struct {
	GuildID string
	UserID  string
	XP      int
	Level   int
	Season  int
}

// VoiceSession marks a user as currently connected to a voice channel.
// JoinedAt is a rolling accrual window: it is advanced every time elapsed
// time gets converted into XP, not kept at the original join time.
type VoiceSession struct {
	UserID   string
	GuildID  string
	JoinedAt time.Time
}

// LeaderboardEntry represents one row of the current-season top list.
type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Level  int    `json:"level"`
	XP     int    `json:"xp"`
}
