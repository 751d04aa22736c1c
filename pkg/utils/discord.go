package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatUserMention formats a user ID as a Discord mention
func FormatUserMention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// FormatLevelUp builds the level-up announcement for the notification
// channel.
func FormatLevelUp(userID string, level int) string {
	return fmt.Sprintf("%s reached level %d! Congratulations!", FormatUserMention(userID), level)
}

// FormatLeaderboardEntry formats a leaderboard line with rank medal,
// username, level and xp.
func FormatLeaderboardEntry(rank int, username string, level, xp int) string {
	medal := ""
	switch rank {
	case 1:
		medal = "🥇"
	case 2:
		medal = "🥈"
	case 3:
		medal = "🥉"
	default:
		medal = fmt.Sprintf("**%d.**", rank)
	}

	return fmt.Sprintf("%s **%s**: Level %d (XP: %d)", medal, username, level, xp)
}

// ProgressBar renders a 20-slot bar of filled/empty glyphs for progress
// toward max. Out-of-range values are clamped.
func ProgressBar(current, max int) string {
	progress := float64(current) / float64(max)
	progress = math.Min(math.Max(progress, 0), 1)

	const barLength = 20
	filled := int(math.Round(barLength * progress))

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barLength-filled) + "]"
}
