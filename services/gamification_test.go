package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/cache"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

func TestLevelThreshold(t *testing.T) {
	assert.Equal(t, 282, LevelThreshold(1))
	assert.Equal(t, 519, LevelThreshold(2))
	assert.Equal(t, 800, LevelThreshold(3))
}

func TestWayangCharacter(t *testing.T) {
	tests := map[int]string{
		0:  "Semar",
		1:  "Semar",
		3:  "Gareng",
		6:  "Petruk",
		7:  "Bagong",
		12: "Arjuna",
		15: "Bima",
		40: "Yudhistira",
	}
	for level, want := range tests {
		assert.Equal(t, want, WayangCharacter(level), "level %d", level)
	}
}

func TestApplyXPCarriesAcrossLevels(t *testing.T) {
	level := &models.UserLevel{CurrentLevel: 1}

	leveled := applyXP(level, 900)

	assert.True(t, leveled)
	assert.Equal(t, 3, level.CurrentLevel)
	assert.Equal(t, 99, level.ExperiencePoints)
	assert.Equal(t, 900, level.TotalPointsEarned)
	assert.Equal(t, 900, level.PointsBalance)
	assert.Equal(t, "Gareng", level.WayangCharacter)
}

func TestApplyXPBelowThreshold(t *testing.T) {
	level := &models.UserLevel{CurrentLevel: 1, ExperiencePoints: 200, PointsBalance: 10}
	assert.False(t, applyXP(level, 50))
	assert.Equal(t, 1, level.CurrentLevel)
	assert.Equal(t, 250, level.ExperiencePoints)
	assert.Equal(t, 60, level.PointsBalance)
}

func TestNextStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	day := func(offset int) *time.Time {
		d := today.AddDate(0, 0, offset).Add(-10 * time.Hour)
		return &d
	}

	streak, updated := nextStreak(nil, today, 0)
	assert.Equal(t, 1, streak)
	assert.True(t, updated)

	streak, updated = nextStreak(day(0), today, 4)
	assert.Equal(t, 4, streak)
	assert.False(t, updated)

	streak, updated = nextStreak(day(-1), today, 4)
	assert.Equal(t, 5, streak)
	assert.True(t, updated)

	streak, updated = nextStreak(day(-3), today, 4)
	assert.Equal(t, 1, streak)
	assert.True(t, updated)
}

func TestStreakBonus(t *testing.T) {
	assert.Equal(t, 70, streakBonus(7))
	assert.Equal(t, 0, streakBonus(8))
	assert.Equal(t, 300, streakBonus(30))
	assert.Equal(t, 1000, streakBonus(100))
}

func TestPeriodStart(t *testing.T) {
	sunday := time.Date(2026, 10, 18, 20, 30, 0, 0, time.UTC)

	since, board, err := periodStart(PeriodWeekly, sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), since)
	assert.Equal(t, cache.WeeklyKey(sunday), board)

	since, board, err = periodStart(PeriodMonthly, sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), since)
	assert.Equal(t, cache.MonthlyKey(sunday), board)

	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	since, _, err = periodStart(PeriodWeekly, monday)
	require.NoError(t, err)
	assert.Equal(t, monday, since)

	_, _, err = periodStart("yearly", sunday)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPeriodBoardsMatchReads(t *testing.T) {
	// Monday 03:00 in Jakarta is still Sunday in UTC.
	wib := time.FixedZone("WIB", 7*60*60)
	at := time.Date(2026, 11, 2, 3, 0, 0, 0, wib)

	boards := periodBoards(at)
	_, weekly, err := periodStart(PeriodWeekly, at)
	require.NoError(t, err)
	_, monthly, err := periodStart(PeriodMonthly, at)
	require.NoError(t, err)

	assert.Equal(t, []string{weekly, monthly, cache.AllTimeKey}, boards)
	assert.Equal(t, "leaderboard:weekly:2026-W44", weekly)
	assert.Equal(t, "leaderboard:monthly:2026-10", monthly)
}

func TestRankTotals(t *testing.T) {
	entries := rankTotals([]repository.PointsTotal{
		{UserID: "carol", Score: 50},
		{UserID: "bob", Score: 120},
		{UserID: "alice", Score: 50},
	})

	assert.Equal(t, []cache.Entry{
		{Rank: 1, UserID: "bob", Score: 120},
		{Rank: 2, UserID: "alice", Score: 50},
		{Rank: 3, UserID: "carol", Score: 50},
	}, entries)
	assert.Empty(t, rankTotals(nil))
}

func TestDisplayName(t *testing.T) {
	name := "budi"
	assert.Equal(t, "budi", displayName(&models.User{Username: &name, Email: "b@x.id"}))
	assert.Equal(t, "Budi Santoso", displayName(&models.User{FullName: "Budi Santoso", Email: "b@x.id"}))
	assert.Equal(t, "b@x.id", displayName(&models.User{Email: "b@x.id"}))
}

func TestSpendOn(t *testing.T) {
	tests := []struct {
		name    string
		level   models.UserLevel
		reward  models.Reward
		wantErr error
		wantMsg string
		balance int
		stock   int
	}{
		{
			name:    "insufficient points",
			level:   models.UserLevel{CurrentLevel: 5, PointsBalance: 40, TotalPointsEarned: 400},
			reward:  models.Reward{PointCost: 50},
			wantErr: ErrInsufficientPoints,
			balance: 40,
		},
		{
			name:    "level too low",
			level:   models.UserLevel{CurrentLevel: 2, PointsBalance: 500, TotalPointsEarned: 500},
			reward:  models.Reward{PointCost: 50, LevelRequirement: 4},
			wantMsg: "Requires level 4",
			balance: 500,
		},
		{
			name:    "out of stock",
			level:   models.UserLevel{CurrentLevel: 5, PointsBalance: 500, TotalPointsEarned: 500},
			reward:  models.Reward{PointCost: 50, IsLimited: true, StockRemaining: 0},
			wantErr: ErrOutOfStock,
			balance: 500,
		},
		{
			name:    "limited reward decrements stock",
			level:   models.UserLevel{CurrentLevel: 5, PointsBalance: 500, TotalPointsEarned: 500},
			reward:  models.Reward{PointCost: 120, IsLimited: true, StockRemaining: 3},
			balance: 380,
			stock:   2,
		},
		{
			name:    "unlimited reward keeps stock",
			level:   models.UserLevel{CurrentLevel: 1, PointsBalance: 50, TotalPointsEarned: 900},
			reward:  models.Reward{PointCost: 50},
			balance: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, reward := tt.level, tt.reward
			err := spendOn(&level, &reward)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantMsg != "":
				var validation *ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, tt.wantMsg, validation.Message)
			default:
				require.NoError(t, err)
			}
			assert.Equal(t, tt.balance, level.PointsBalance)
			assert.Equal(t, tt.stock, reward.StockRemaining)
			assert.Equal(t, tt.level.TotalPointsEarned, level.TotalPointsEarned)
		})
	}
}

func TestJoinParticipation(t *testing.T) {
	now := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)
	earlier := now.Add(-72 * time.Hour)
	challenge := &models.Challenge{ID: "c1", MaximumParticipants: 2}

	tests := []struct {
		name     string
		existing *models.ChallengeParticipation
		active   int64
		wantErr  error
	}{
		{name: "new participant", active: 1},
		{name: "full challenge", active: 2, wantErr: ErrChallengeFull},
		{
			name:     "already active",
			existing: &models.ChallengeParticipation{ChallengeID: "c1", UserID: "u1", IsActive: true},
			active:   1,
			wantErr:  ErrAlreadyParticipating,
		},
		{
			name:     "rejoin reactivates row",
			existing: &models.ChallengeParticipation{ID: "p1", ChallengeID: "c1", UserID: "u1", ContributionScore: 30, JoinedAt: earlier},
			active:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := joinParticipation(challenge, tt.existing, "u1", tt.active, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.True(t, p.IsActive)
			assert.Equal(t, now, p.JoinedAt)
			assert.Equal(t, "c1", p.ChallengeID)
			assert.Equal(t, "u1", p.UserID)
			if tt.existing != nil {
				assert.Same(t, tt.existing, p)
				assert.Equal(t, "p1", p.ID)
				assert.Equal(t, 30, p.ContributionScore)
			}
		})
	}
}

func TestJoinParticipationUnlimited(t *testing.T) {
	p, err := joinParticipation(&models.Challenge{ID: "c1"}, nil, "u1", 500, time.Now())
	require.NoError(t, err)
	assert.True(t, p.IsActive)
}

func TestSettleContributionPaysOnce(t *testing.T) {
	now := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)
	challenge := &models.Challenge{ID: "c1", GoalTarget: 100, RewardPoints: 50}
	participants := []models.ChallengeParticipation{
		{UserID: "u1", ContributionScore: 40, IsActive: true},
		{UserID: "u2", ContributionScore: 30, IsActive: true},
	}

	result, completed := settleContribution(challenge, participants, now)
	assert.False(t, completed)
	assert.False(t, result.ChallengeCompleted)
	assert.Equal(t, 70, result.ChallengeProgress)
	assert.Equal(t, 100, result.ChallengeGoal)
	assert.Nil(t, challenge.CompletedAt)

	participants[0].ContributionScore = 75
	result, completed = settleContribution(challenge, participants, now)
	assert.True(t, completed)
	assert.True(t, result.ChallengeCompleted)
	assert.Equal(t, 105, result.ChallengeProgress)
	require.NotNil(t, challenge.CompletedAt)
	assert.Equal(t, now, *challenge.CompletedAt)
	for _, p := range participants {
		assert.True(t, p.Completed)
		require.NotNil(t, p.CompletedAt)
	}

	participants[1].ContributionScore = 60
	result, completed = settleContribution(challenge, participants, now.Add(time.Hour))
	assert.False(t, completed)
	assert.True(t, result.ChallengeCompleted)
	assert.Equal(t, 135, result.ChallengeProgress)
	assert.Equal(t, now, *challenge.CompletedAt)
}

func TestLeaderboardFallsBackToDatabase(t *testing.T) {
	repo, mock := newMockRepo(t)
	svc := NewGamificationService(repo, nil)

	mock.ExpectQuery(`SELECT user_id, SUM\(amount\) AS score FROM "points_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "score"}).
			AddRow("u2", 120).
			AddRow("u1", 120).
			AddRow("u3", 40))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username"}).
			AddRow("u1", "sari@example.com", "sari").
			AddRow("u2", "budi@example.com", "budi").
			AddRow("u3", "dewi@example.com", nil))
	mock.ExpectQuery(`SELECT \* FROM "user_levels"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "wayang_character"}).
			AddRow("u1", "Arjuna"))

	entries, err := svc.Leaderboard(context.Background(), PeriodWeekly, time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, LeaderboardEntry{Rank: 1, UserID: "u1", Username: "sari", Score: 120, WayangCharacter: "Arjuna"}, entries[0])
	assert.Equal(t, LeaderboardEntry{Rank: 2, UserID: "u2", Username: "budi", Score: 120, WayangCharacter: WayangCharacter(1)}, entries[1])
	assert.Equal(t, "dewi@example.com", entries[2].Username)
	assert.Equal(t, int64(3), entries[2].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}
