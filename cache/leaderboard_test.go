package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodKeys(t *testing.T) {
	tests := []struct {
		name    string
		at      time.Time
		weekly  string
		monthly string
	}{
		{
			name:    "mid year",
			at:      time.Date(2024, time.June, 12, 10, 0, 0, 0, time.UTC),
			weekly:  "leaderboard:weekly:2024-W24",
			monthly: "leaderboard:monthly:2024-06",
		},
		{
			name:    "iso year differs from calendar year",
			at:      time.Date(2021, time.January, 2, 0, 0, 0, 0, time.UTC),
			weekly:  "leaderboard:weekly:2020-W53",
			monthly: "leaderboard:monthly:2021-01",
		},
		{
			name:    "keys follow utc not the local zone",
			at:      time.Date(2026, time.November, 2, 3, 0, 0, 0, time.FixedZone("WIB", 7*60*60)),
			weekly:  "leaderboard:weekly:2026-W44",
			monthly: "leaderboard:monthly:2026-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.weekly, WeeklyKey(tt.at))
			assert.Equal(t, tt.monthly, MonthlyKey(tt.at))
		})
	}
}

func TestLeaderboardTopBreaksTiesByUserID(t *testing.T) {
	c, _ := newTestCache(t)
	lb := NewLeaderboard(c)
	ctx := context.Background()
	board := WeeklyKey(time.Now())

	require.NoError(t, lb.Replace(ctx, board, map[string]int64{
		"d": 50,
		"c": 80,
		"a": 80,
		"b": 80,
		"e": 10,
	}))

	top, err := lb.Top(ctx, board, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, Entry{Rank: 1, UserID: "a", Score: 80}, top[0])
	assert.Equal(t, Entry{Rank: 2, UserID: "b", Score: 80}, top[1])
	assert.Equal(t, Entry{Rank: 3, UserID: "c", Score: 80}, top[2])

	top, err = lb.Top(ctx, board, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{top[0].UserID, top[1].UserID})

	all, err := lb.Top(ctx, board, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "e", all[4].UserID)
}

func TestLeaderboardIncrAndRank(t *testing.T) {
	c, mr := newTestCache(t)
	lb := NewLeaderboard(c)
	ctx := context.Background()
	board := MonthlyKey(time.Now())

	require.NoError(t, lb.IncrBy(ctx, board, "u2", 30))
	require.NoError(t, lb.IncrBy(ctx, board, "u1", 30))
	require.NoError(t, lb.IncrBy(ctx, board, "u3", 10))
	require.NoError(t, lb.IncrBy(ctx, board, "u3", 5))

	assert.Greater(t, mr.TTL(board), time.Duration(0))

	rank, err := lb.Rank(ctx, board, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank.Rank)
	assert.Equal(t, int64(30), rank.Score)

	rank, err = lb.Rank(ctx, board, "u3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rank.Rank)
	assert.Equal(t, int64(15), rank.Score)

	_, err = lb.Rank(ctx, board, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLeaderboardEmpty(t *testing.T) {
	c, _ := newTestCache(t)
	lb := NewLeaderboard(c)

	top, err := lb.Top(context.Background(), AllTimeKey, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}
