package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/models"
)

func TestCreateSessionRequestValidate(t *testing.T) {
	assert.NoError(t, CreateSessionRequest{SessionType: "conversation"}.validate())

	var ve *ValidationError
	assert.ErrorAs(t, CreateSessionRequest{SessionType: "karaoke"}.validate(), &ve)
	assert.ErrorAs(t, CreateSessionRequest{SessionType: "grammar", DifficultyLevel: ptr(11)}.validate(), &ve)
	assert.ErrorAs(t, CreateSessionRequest{SessionType: "grammar", DifficultyLevel: ptr(0)}.validate(), &ve)
}

func TestSessionPatchApply(t *testing.T) {
	session := &models.PracticeSession{FluencyScore: 40}
	require.NoError(t, SessionPatch{ScenarioTitle: ptr("At the warung"), GrammarScore: ptr(77.5)}.apply(session))
	assert.Equal(t, "At the warung", session.ScenarioTitle)
	assert.Equal(t, 77.5, session.GrammarScore)
	assert.Equal(t, 40.0, session.FluencyScore)

	var ve *ValidationError
	assert.ErrorAs(t, SessionPatch{OverallScore: ptr(101.0)}.apply(session), &ve)
	assert.Equal(t, 0.0, session.OverallScore)
}

func TestCompleteSession(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 10, 0, 0, time.UTC)
	started := now.Add(-10 * time.Minute)
	session := &models.PracticeSession{
		SessionStatus:      models.SessionStatusInProgress,
		StartedAt:          &started,
		PronunciationScore: 70,
		GrammarScore:       80,
	}

	require.NoError(t, completeSession(session, now))
	assert.Equal(t, models.SessionStatusCompleted, session.SessionStatus)
	assert.Equal(t, 600, session.DurationSeconds)
	assert.Equal(t, 75.0, session.OverallScore)
	require.NotNil(t, session.CompletedAt)
	assert.Equal(t, now, *session.CompletedAt)

	assert.ErrorIs(t, completeSession(session, now), ErrSessionCompleted)
}

func TestCompleteSessionFallsBackToCreatedAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 30, 0, time.UTC)
	session := &models.PracticeSession{
		SessionStatus: models.SessionStatusInitiated,
		CreatedAt:     now.Add(-30 * time.Second),
		OverallScore:  64,
	}

	require.NoError(t, completeSession(session, now))
	assert.Equal(t, 30, session.DurationSeconds)
	assert.Equal(t, 64.0, session.OverallScore, "an explicit overall score is kept")
}

func TestImprovementTrend(t *testing.T) {
	assert.Equal(t, Trend{Direction: "stable"}, improvementTrend(nil))
	assert.Equal(t, Trend{Direction: "stable"}, improvementTrend([]float64{70}))
	assert.Equal(t, Trend{Percentage: 2.9, Direction: "stable"}, improvementTrend([]float64{70, 72}))
	assert.Equal(t, Trend{Percentage: -25, Direction: "down"}, improvementTrend([]float64{80, 60}))
	assert.Equal(t, Trend{Direction: "stable"}, improvementTrend([]float64{0, 50}))
}

func TestBuildStatistics(t *testing.T) {
	sessions := []models.PracticeSession{
		{SessionType: "conversation", SessionStatus: models.SessionStatusCompleted, OverallScore: 80, PronunciationScore: 90, DurationSeconds: 600},
		{SessionType: "grammar", SessionStatus: models.SessionStatusInProgress, DurationSeconds: 100},
		{SessionType: "conversation", SessionStatus: models.SessionStatusCompleted, OverallScore: 60, PronunciationScore: 70, DurationSeconds: 300},
	}

	stats := buildStatistics(sessions)

	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 2, stats.CompletedSessions)
	assert.Equal(t, 1000, stats.TotalPracticeTime)
	assert.Equal(t, map[string]int{"conversation": 2, "grammar": 1}, stats.SessionsByType)
	assert.Equal(t, 70.0, stats.AverageScores.Overall)
	assert.Equal(t, 80.0, stats.AverageScores.Pronunciation)
	assert.Equal(t, Trend{Percentage: 33.3, Direction: "up"}, stats.ImprovementTrend)
	assert.Len(t, stats.RecentSessions, 3)
}

func TestBuildStatisticsEmpty(t *testing.T) {
	stats := buildStatistics(nil)
	assert.Zero(t, stats.TotalSessions)
	assert.Empty(t, stats.RecentSessions)
	assert.Equal(t, "stable", stats.ImprovementTrend.Direction)
}
