package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardTTL bounds how long a period board outlives its period.
const LeaderboardTTL = 40 * 24 * time.Hour

// AllTimeKey is the board that never rolls over.
const AllTimeKey = PrefixLeaderboard + "all_time"

type Entry struct {
	Rank   int64
	UserID string
	Score  int64
}

type Leaderboard struct {
	cache *Cache
}

func NewLeaderboard(c *Cache) *Leaderboard {
	return &Leaderboard{cache: c}
}

// WeeklyKey returns the board of the UTC ISO week containing t.
func WeeklyKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%sweekly:%d-W%02d", PrefixLeaderboard, year, week)
}

// MonthlyKey returns the board of the UTC calendar month containing t.
func MonthlyKey(t time.Time) string {
	return fmt.Sprintf("%smonthly:%s", PrefixLeaderboard, t.UTC().Format("2006-01"))
}

// IncrBy adds delta to the member's score and refreshes the expiry of period boards.
func (l *Leaderboard) IncrBy(ctx context.Context, board, userID string, delta int64) error {
	pipe := l.cache.client.TxPipeline()
	pipe.ZIncrBy(ctx, board, float64(delta), userID)
	if board != AllTimeKey {
		pipe.Expire(ctx, board, LeaderboardTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment leaderboard %s: %w", board, err)
	}
	return nil
}

// Replace swaps the board contents for scores atomically.
func (l *Leaderboard) Replace(ctx context.Context, board string, scores map[string]int64) error {
	pipe := l.cache.client.TxPipeline()
	pipe.Del(ctx, board)
	if len(scores) > 0 {
		members := make([]redis.Z, 0, len(scores))
		for id, score := range scores {
			members = append(members, redis.Z{Score: float64(score), Member: id})
		}
		pipe.ZAdd(ctx, board, members...)
		if board != AllTimeKey {
			pipe.Expire(ctx, board, LeaderboardTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace leaderboard %s: %w", board, err)
	}
	return nil
}

// Top returns the n best members ranked from 1. Equal scores are ordered by member ascending,
// so the tie group straddling position n is fetched whole before cutting.
func (l *Leaderboard) Top(ctx context.Context, board string, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	head, err := l.cache.client.ZRevRangeWithScores(ctx, board, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard %s: %w", board, err)
	}
	if len(head) == 0 {
		return []Entry{}, nil
	}
	floor := head[len(head)-1].Score
	seen := make(map[string]bool, len(head))
	members := make([]redis.Z, 0, len(head))
	for _, z := range head {
		if z.Score > floor {
			members = append(members, z)
			seen[z.Member.(string)] = true
		}
	}
	ties, err := l.cache.client.ZRangeByScoreWithScores(ctx, board, &redis.ZRangeBy{
		Min: strconv.FormatFloat(floor, 'f', -1, 64),
		Max: strconv.FormatFloat(floor, 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard ties %s: %w", board, err)
	}
	for _, z := range ties {
		if !seen[z.Member.(string)] {
			members = append(members, z)
		}
	}
	sortMembers(members)
	if len(members) > n {
		members = members[:n]
	}
	entries := make([]Entry, len(members))
	for i, z := range members {
		entries[i] = Entry{Rank: int64(i + 1), UserID: z.Member.(string), Score: int64(z.Score)}
	}
	return entries, nil
}

// Rank returns the member's 1-based position under the same ordering as Top.
// A member that is not on the board yields ErrCacheMiss.
func (l *Leaderboard) Rank(ctx context.Context, board, userID string) (*Entry, error) {
	score, err := l.cache.client.ZScore(ctx, board, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read score: %w", err)
	}
	s := strconv.FormatFloat(score, 'f', -1, 64)
	above, err := l.cache.client.ZCount(ctx, board, "("+s, "+inf").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count leaderboard: %w", err)
	}
	ties, err := l.cache.client.ZRangeByScore(ctx, board, &redis.ZRangeBy{Min: s, Max: s}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard ties: %w", err)
	}
	sort.Strings(ties)
	before := sort.SearchStrings(ties, userID)
	return &Entry{Rank: above + int64(before) + 1, UserID: userID, Score: int64(score)}, nil
}

func sortMembers(members []redis.Z) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member.(string) < members[j].Member.(string)
	})
}
