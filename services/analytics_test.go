package services

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/cache"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

func newTestRedis(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewFromClient(client)
}

func TestFoldUserAnalytics(t *testing.T) {
	ua := &models.UserAnalytics{TotalSessionsCompleted: 1, TotalPracticeMinutes: 10}
	sa := &models.SessionAnalytics{DurationSeconds: 300}
	recent := []models.SessionAnalytics{
		{PronunciationScore: 80, OverallScore: 60, WordsPerMinute: 100},
		{PronunciationScore: 70, OverallScore: 90, WordsPerMinute: 111},
	}

	foldUserAnalytics(ua, sa, recent)

	assert.Equal(t, 2, ua.TotalSessionsCompleted)
	assert.Equal(t, 15, ua.TotalPracticeMinutes)
	assert.Equal(t, 7.5, ua.AverageSessionDuration)
	assert.Equal(t, 75.0, ua.PronunciationScore)
	assert.Equal(t, 75.0, ua.OverallProficiencyScore)
	assert.Equal(t, 105.5, ua.AverageWordsPerMinute)
}

func TestFoldUserAnalyticsWithoutHistoryKeepsScores(t *testing.T) {
	ua := &models.UserAnalytics{PronunciationScore: 55}
	foldUserAnalytics(ua, &models.SessionAnalytics{DurationSeconds: 120}, nil)

	assert.Equal(t, 1, ua.TotalSessionsCompleted)
	assert.Equal(t, 2, ua.TotalPracticeMinutes)
	assert.Equal(t, 55.0, ua.PronunciationScore)
}

func TestFoldProgress(t *testing.T) {
	lp := &models.LearningProgress{DailyGoalMinutes: 30, PracticeTimeMinutes: 20}
	sa := &models.SessionAnalytics{DurationSeconds: 600, TotalWords: 42}
	day := &repository.SkillAverages{Pronunciation: 70.456, Grammar: 61}

	foldProgress(lp, sa, day)

	assert.Equal(t, 30, lp.PracticeTimeMinutes)
	assert.Equal(t, 1, lp.SessionsCount)
	assert.Equal(t, 42, lp.WordsPracticed)
	assert.Equal(t, 70.46, lp.PronunciationAverage)
	assert.Equal(t, 61.0, lp.GrammarAverage)
	assert.True(t, lp.GoalAchieved)
}

func TestFoldProgressBelowGoal(t *testing.T) {
	lp := &models.LearningProgress{DailyGoalMinutes: 30}
	foldProgress(lp, &models.SessionAnalytics{DurationSeconds: 300}, nil)
	assert.Equal(t, 5, lp.PracticeTimeMinutes)
	assert.False(t, lp.GoalAchieved)
}

func TestSessionAnalyticsFrom(t *testing.T) {
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	session := &models.PracticeSession{
		ID:                 "s1",
		UserID:             "u1",
		SessionType:        "conversation",
		DifficultyLevel:    3,
		StartedAt:          &started,
		DurationSeconds:    120,
		PronunciationScore: 72,
		OverallScore:       68,
		Transcript:         "Hello world, hello again.",
	}
	feedback := []models.SessionFeedback{
		{FeedbackType: "pronunciation"},
		{FeedbackType: "pronunciation"},
		{FeedbackType: "grammar"},
		{FeedbackType: "general"},
	}

	sa := sessionAnalyticsFrom(session, feedback)

	assert.Equal(t, "u1", sa.UserID)
	assert.Equal(t, "s1", sa.SessionID)
	assert.Equal(t, started, sa.StartTime)
	assert.Equal(t, 4, sa.TotalWords)
	assert.Equal(t, 3, sa.UniqueWords)
	assert.Equal(t, 2.0, sa.WordsPerMinute)
	assert.Equal(t, 2, sa.PronunciationErrors)
	assert.Equal(t, 1, sa.GrammarErrors)
	assert.Equal(t, map[string]any{"pronunciation": 2, "grammar": 1, "general": 1}, sa.CommonErrors)
	assert.True(t, sa.IsCompleted)
	assert.Equal(t, 100.0, sa.CompletionPercentage)
}

func TestErrorPatternsFrom(t *testing.T) {
	long := strings.Repeat("a", 250)
	feedback := []models.SessionFeedback{
		{FeedbackType: "pronunciation", Severity: "major", Message: " th sound ", Suggestion: "think"},
		{FeedbackType: "general", Severity: "info", Message: "Nice pacing"},
		{FeedbackType: "grammar", Severity: "minor", Message: "  "},
		{FeedbackType: "vocabulary", Severity: "unknown", Message: long},
	}

	patterns := errorPatternsFrom("u1", feedback)
	require.Len(t, patterns, 2)

	assert.Equal(t, "th sound", patterns[0].Pattern)
	assert.Equal(t, 4, patterns[0].SeverityLevel)
	assert.InDelta(t, 0.8, patterns[0].ImpactOnCommunication, 1e-9)
	assert.Equal(t, []string{"think"}, patterns[0].CorrectForms)

	assert.Len(t, patterns[1].Pattern, maxPatternLength)
	assert.Equal(t, 3, patterns[1].SeverityLevel)
	assert.Empty(t, patterns[1].CorrectForms)
	assert.Equal(t, "u1", patterns[1].UserID)
}

func TestErrorPatternsFromMultibyte(t *testing.T) {
	message := strings.Repeat("a", maxPatternLength-1) + "’salah’ ucapan"
	patterns := errorPatternsFrom("u1", []models.SessionFeedback{
		{FeedbackType: "grammar", Severity: "moderate", Message: message},
	})
	require.Len(t, patterns, 1)

	got := patterns[0].Pattern
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxPatternLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "a’"))
}

func TestPerformanceLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "Excellent"},
		{90, "Excellent"},
		{75, "Good"},
		{60, "Satisfactory"},
		{45, "Needs Improvement"},
		{44.9, "Poor"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, performanceLevel(tt.score), "score %v", tt.score)
	}
}

func TestTipsFor(t *testing.T) {
	assert.Len(t, tipsFor("grammar", 40), 3)
	assert.Len(t, tipsFor("grammar", 65), 2)
	assert.Len(t, tipsFor("grammar", 85), 1)
	assert.Empty(t, tipsFor("listening", 10))
}

func TestDetailedFeedback(t *testing.T) {
	fb := detailedFeedback(models.SessionAnalytics{
		PronunciationScore: 80,
		FluencyScore:       45,
		VocabularyScore:    60,
		GrammarScore:       72,
		CoherenceScore:     30,
		OverallScore:       57,
	})

	assert.Equal(t, "Needs Improvement", fb.OverallPerformance)
	assert.Equal(t, []string{"pronunciation", "grammar"}, fb.Strengths)
	assert.Equal(t, []string{"fluency", "coherence"}, fb.ImprovementsNeeded)
	require.Contains(t, fb.SpecificFeedback, "coherence")
	assert.Equal(t, "Poor", fb.SpecificFeedback["coherence"].Level)
	assert.Len(t, fb.SpecificFeedback["coherence"].Tips, 3)
}

func TestHistorySummary(t *testing.T) {
	summary := historySummary([]models.SessionAnalytics{
		{DurationSeconds: 600, OverallScore: 70},
		{DurationSeconds: 1200, OverallScore: 80},
	})
	assert.Equal(t, HistorySummary{TotalSessions: 2, TotalTimeMinutes: 30, AverageScore: 75, AverageDurationMinutes: 15}, summary)

	assert.Equal(t, HistorySummary{}, historySummary(nil))
}

func TestWeeklySummary(t *testing.T) {
	summary := weeklySummary([]models.LearningProgress{
		{PracticeTimeMinutes: 20, SessionsCount: 1, WordsPracticed: 100, GoalAchieved: true, PronunciationAverage: 70},
		{PracticeTimeMinutes: 40, SessionsCount: 2, WordsPracticed: 200, PronunciationAverage: 80},
	})

	assert.Equal(t, 60, summary.TotalPracticeTime)
	assert.Equal(t, 3, summary.TotalSessions)
	assert.Equal(t, 300, summary.TotalWordsPracticed)
	assert.Equal(t, 50.0, summary.GoalAchievementRate)
	assert.Equal(t, 75.0, summary.AverageScores.Pronunciation)
}

func TestFocusPatterns(t *testing.T) {
	p := func(id string) models.ErrorPattern { return models.ErrorPattern{ID: id} }
	got := focusPatterns(
		[]models.ErrorPattern{p("a"), p("b")},
		[]models.ErrorPattern{p("b"), p("c"), p("d"), p("e"), p("f")},
	)

	var ids []string
	for _, g := range got {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestPatternRecommendations(t *testing.T) {
	recs := patternRecommendations([]models.ErrorPattern{
		{ErrorType: "pronunciation", ExampleErrors: []string{"tink", "dis", "very", "wery"}},
		{ErrorType: "fluency", Pattern: "long pauses"},
		{ErrorType: "grammar", Pattern: "past tense"},
		{ErrorType: "vocabulary", Pattern: "travel"},
		{ErrorType: "grammar", Pattern: "articles"},
	})

	assert.Equal(t, []string{
		"Practice pronunciation of: tink, dis, very",
		"Review grammar rule: past tense",
		"Expand vocabulary related to: travel",
	}, recs)
	assert.Empty(t, patternRecommendations(nil))
}

func TestValidateAssessment(t *testing.T) {
	a := &models.SkillAssessment{ProficiencyLevel: "b2", OverallScore: 70}
	require.NoError(t, validateAssessment(a))
	assert.Equal(t, "periodic", a.AssessmentType)
	assert.Equal(t, "B2", a.ProficiencyLevel)

	tests := []struct {
		name string
		a    models.SkillAssessment
	}{
		{"unknown type", models.SkillAssessment{AssessmentType: "weekly"}},
		{"unknown level", models.SkillAssessment{ProficiencyLevel: "D1"}},
		{"score above range", models.SkillAssessment{GrammarScore: 101}},
		{"negative score", models.SkillAssessment{OverallScore: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssessment(&tt.a)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestApplyAssessment(t *testing.T) {
	now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	ua := &models.UserAnalytics{CreatedAt: now.AddDate(0, 0, -14)}

	applyAssessment(ua, &models.SkillAssessment{OverallScore: 60, GrammarScore: 55}, now)
	require.NotNil(t, ua.InitialProficiencyScore)
	assert.Equal(t, 60.0, *ua.InitialProficiencyScore)
	assert.Equal(t, 55.0, ua.GrammarScore)
	assert.Equal(t, 0.0, ua.ImprovementRate)

	applyAssessment(ua, &models.SkillAssessment{OverallScore: 70}, now)
	assert.Equal(t, 60.0, *ua.InitialProficiencyScore)
	assert.Equal(t, 70.0, ua.OverallProficiencyScore)
	assert.Equal(t, 5.0, ua.ImprovementRate)
}

func TestApplyAssessmentNeedsAWeek(t *testing.T) {
	now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	initial := 40.0
	ua := &models.UserAnalytics{CreatedAt: now.AddDate(0, 0, -3), InitialProficiencyScore: &initial}

	applyAssessment(ua, &models.SkillAssessment{OverallScore: 80}, now)
	assert.Equal(t, 0.0, ua.ImprovementRate)
}

func TestProgressSummary(t *testing.T) {
	ua := &models.UserAnalytics{CurrentStreakDays: 4, ImprovementRate: 1.5, AchievementsEarned: 2}
	weekly := []models.LearningProgress{
		{PracticeTimeMinutes: 20, SessionsCount: 1, PronunciationAverage: 60, FluencyAverage: 60, VocabularyAverage: 60, GrammarAverage: 60, CoherenceAverage: 60},
		{PracticeTimeMinutes: 35, SessionsCount: 2, PronunciationAverage: 80, FluencyAverage: 80, VocabularyAverage: 80, GrammarAverage: 80, CoherenceAverage: 80},
	}
	recent := []models.SessionAnalytics{
		{PronunciationScore: 90, FluencyScore: 50, VocabularyScore: 70, GrammarScore: 40, CoherenceScore: 80},
	}

	ps := progressSummary(ua, weekly, recent)

	assert.Equal(t, "weekly", ps.Period)
	assert.Equal(t, 55, ps.TotalPracticeTime)
	assert.Equal(t, 3, ps.TotalSessions)
	assert.Equal(t, 70.0, ps.AverageScore)
	assert.Equal(t, 4, ps.StreakDays)
	assert.Equal(t, []string{"pronunciation", "coherence"}, ps.TopSkills)
	assert.Equal(t, []string{"fluency", "grammar"}, ps.AreasToImprove)
}

func TestProgressSummaryWithoutSessions(t *testing.T) {
	ps := progressSummary(&models.UserAnalytics{}, nil, nil)
	assert.Empty(t, ps.TopSkills)
	assert.Empty(t, ps.AreasToImprove)
	assert.Equal(t, 0.0, ps.AverageScore)
}

func TestInvalidateDashboard(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	svc := NewAnalyticsService(nil, c)

	require.NoError(t, c.SetJSON(ctx, dashboardKey("u1"), map[string]int{"x": 1}, time.Minute))
	svc.InvalidateDashboard(ctx, "u1")

	var got map[string]int
	assert.ErrorIs(t, c.GetJSON(ctx, dashboardKey("u1"), &got), cache.ErrCacheMiss)

	// Without Redis it is a no-op.
	NewAnalyticsService(nil, nil).InvalidateDashboard(ctx, "u1")
}
