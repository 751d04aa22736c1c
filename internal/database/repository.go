package database

import (
	"database/sql"
	"fmt"
	"time"

	"levelbot/internal/models"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// GetCurrentRecord fetches the user's record at the guild's current
// (maximum) season. Returns nil when the user has not earned XP this
// season epoch.
func (r *Repository) GetCurrentRecord(guildID, userID string) (*models.ProgressionRecord, error) {
	var rec models.ProgressionRecord
	err := r.db.conn.QueryRow(`
		SELECT guild_id, user_id, xp, level, season FROM users
		WHERE guild_id = $1 AND user_id = $2
		  AND season = (SELECT MAX(season) FROM users WHERE guild_id = $1)`,
		guildID, userID).Scan(&rec.GuildID, &rec.UserID, &rec.XP, &rec.Level, &rec.Season)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

// UpsertRecord creates or replaces the record keyed by (guild, user, season).
func (r *Repository) UpsertRecord(rec models.ProgressionRecord) error {
	_, err := r.db.conn.Exec(`
		INSERT INTO users (guild_id, user_id, xp, level, season)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id, user_id, season) DO UPDATE SET xp = EXCLUDED.xp, level = EXCLUDED.level`,
		rec.GuildID, rec.UserID, rec.XP, rec.Level, rec.Season)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// GetLeaderboard returns the guild's current-season top 10, ordered by
// level then xp descending.
func (r *Repository) GetLeaderboard(guildID string) ([]models.LeaderboardEntry, error) {
	rows, err := r.db.conn.Query(`
		SELECT user_id, level, xp FROM users
		WHERE guild_id = $1 AND season = (SELECT MAX(season) FROM users WHERE guild_id = $1)
		ORDER BY level DESC, xp DESC LIMIT 10`,
		guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Level, &entry.XP); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// GetRank returns the user's 1-based position in the guild's full
// current-season ranking, or 0 when the user has no record.
func (r *Repository) GetRank(guildID, userID string) (int, error) {
	var rank int
	err := r.db.conn.QueryRow(`
		SELECT rank FROM (
			SELECT user_id, ROW_NUMBER() OVER (ORDER BY level DESC, xp DESC) AS rank
			FROM users
			WHERE guild_id = $1 AND season = (SELECT MAX(season) FROM users WHERE guild_id = $1)
		) ranked
		WHERE user_id = $2`,
		guildID, userID).Scan(&rank)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rank: %w", err)
	}
	return rank, nil
}

// GetCurrentSeason returns the guild's maximum season, or 1 if the guild
// has no records yet.
func (r *Repository) GetCurrentSeason(guildID string) (int, error) {
	var season int
	err := r.db.conn.QueryRow(
		"SELECT COALESCE(MAX(season), 1) FROM users WHERE guild_id = $1",
		guildID).Scan(&season)
	if err != nil {
		return 0, fmt.Errorf("failed to get current season: %w", err)
	}
	return season, nil
}

// ArchiveSeason copies every live record of the guild into the archive
// table, tagged with the given season. Must complete before any reset.
func (r *Repository) ArchiveSeason(guildID string, season int) error {
	_, err := r.db.conn.Exec(`
		INSERT INTO user_archive (guild_id, user_id, xp, level, season)
		SELECT guild_id, user_id, xp, level, $2 FROM users WHERE guild_id = $1`,
		guildID, season)
	if err != nil {
		return fmt.Errorf("failed to archive season: %w", err)
	}
	return nil
}

// ResetSeason zeroes every record of the guild and moves it to newSeason.
// The prior season's standings survive only in the archive.
func (r *Repository) ResetSeason(guildID string, newSeason int) error {
	_, err := r.db.conn.Exec(
		"UPDATE users SET xp = 0, level = 0, season = $2 WHERE guild_id = $1",
		guildID, newSeason)
	if err != nil {
		return fmt.Errorf("failed to reset season: %w", err)
	}
	return nil
}

// OpenSession creates or replaces the voice session for (user, guild).
func (r *Repository) OpenSession(userID, guildID string, joinedAt time.Time) error {
	_, err := r.db.conn.Exec(`
		INSERT INTO voice_activity (user_id, guild_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, guild_id) DO UPDATE SET joined_at = EXCLUDED.joined_at`,
		userID, guildID, joinedAt)
	if err != nil {
		return fmt.Errorf("failed to open voice session: %w", err)
	}
	return nil
}

// CloseSession deletes the voice session if present. Absence is not an
// error.
func (r *Repository) CloseSession(userID, guildID string) error {
	_, err := r.db.conn.Exec(
		"DELETE FROM voice_activity WHERE user_id = $1 AND guild_id = $2",
		userID, guildID)
	if err != nil {
		return fmt.Errorf("failed to close voice session: %w", err)
	}
	return nil
}

// ListSessions returns every open voice session.
func (r *Repository) ListSessions() ([]models.VoiceSession, error) {
	rows, err := r.db.conn.Query("SELECT user_id, guild_id, joined_at FROM voice_activity")
	if err != nil {
		return nil, fmt.Errorf("failed to list voice sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.VoiceSession
	for rows.Next() {
		var session models.VoiceSession
		if err := rows.Scan(&session.UserID, &session.GuildID, &session.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan voice session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// TouchSession advances the session's accrual window to joinedAt.
func (r *Repository) TouchSession(userID, guildID string, joinedAt time.Time) error {
	_, err := r.db.conn.Exec(
		"UPDATE voice_activity SET joined_at = $3 WHERE user_id = $1 AND guild_id = $2",
		userID, guildID, joinedAt)
	if err != nil {
		return fmt.Errorf("failed to touch voice session: %w", err)
	}
	return nil
}
