// Package cache provides an optional Redis read cache for leaderboard
// pages. A nil *Leaderboard is valid and disables caching entirely, so a
// bare Postgres deployment keeps working without Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"levelbot/internal/models"
)

// TTL keeps cached pages short-lived so rankings stay near-live even when
// a write bypasses invalidation.
const TTL = 30 * time.Second

// Leaderboard caches the top-10 page per (guild, season).
type Leaderboard struct {
	client *redis.Client
}

// NewLeaderboard connects to Redis at addr. An empty addr yields a nil
// cache, which every method treats as a miss or no-op.
func NewLeaderboard(addr string) (*Leaderboard, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &Leaderboard{client: client}, nil
}

func key(guildID string, season int) string {
	return fmt.Sprintf("leaderboard:%s:%d", guildID, season)
}

// GetTop returns the cached page, or (nil, nil) on a miss.
func (l *Leaderboard) GetTop(ctx context.Context, guildID string, season int) ([]models.LeaderboardEntry, error) {
	if l == nil {
		return nil, nil
	}

	data, err := l.client.Get(ctx, key(guildID, season)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cached leaderboard: %w", err)
	}
	return entries, nil
}

// SetTop stores the page under the cache TTL.
func (l *Leaderboard) SetTop(ctx context.Context, guildID string, season int, entries []models.LeaderboardEntry) error {
	if l == nil {
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	return l.client.Set(ctx, key(guildID, season), data, TTL).Err()
}

// Invalidate drops the cached page after an administrative write.
func (l *Leaderboard) Invalidate(ctx context.Context, guildID string, season int) error {
	if l == nil {
		return nil
	}
	return l.client.Del(ctx, key(guildID, season)).Err()
}

// Close releases the Redis connection.
func (l *Leaderboard) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}
