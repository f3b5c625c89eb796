package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/models"
)

func TestProfilePatchApply(t *testing.T) {
	profile := models.NewUserProfile("u1")
	err := ProfilePatch{
		Province:           ptr("Jawa Barat"),
		CurrentProficiency: ptr("intermediate"),
		DailyPracticeGoal:  ptr(30),
	}.apply(profile)
	require.NoError(t, err)

	assert.Equal(t, "Jawa Barat", profile.Province)
	assert.Equal(t, "intermediate", profile.CurrentProficiency)
	assert.Equal(t, 30, profile.DailyPracticeGoal)
	assert.Equal(t, "en", profile.TargetLanguage)
}

func TestProfilePatchRejects(t *testing.T) {
	tests := []struct {
		name  string
		patch ProfilePatch
	}{
		{"unknown proficiency", ProfilePatch{CurrentProficiency: ptr("fluent")}},
		{"goal too small", ProfilePatch{DailyPracticeGoal: ptr(4)}},
		{"goal too large", ProfilePatch{DailyPracticeGoal: ptr(121)}},
		{"session too long", ProfilePatch{PreferredSessionDuration: ptr(61)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := models.NewUserProfile("u1")
			before := *profile

			var ve *ValidationError
			assert.ErrorAs(t, tt.patch.apply(profile), &ve)
			assert.Equal(t, before, *profile)
		})
	}
}

func TestValidatePreference(t *testing.T) {
	pref := &models.LearningPreference{
		VisualLearning:            5,
		AuditoryLearning:          1,
		KinestheticLearning:       10,
		DifficultyAdaptationSpeed: 0.5,
	}
	require.NoError(t, validatePreference(pref))
	assert.Equal(t, "friendly", pref.AIPersonality)
	assert.NotNil(t, pref.PreferredScenarios)

	bad := *pref
	bad.AuditoryLearning = 11
	var ve *ValidationError
	assert.ErrorAs(t, validatePreference(&bad), &ve)

	bad = *pref
	bad.DifficultyAdaptationSpeed = 0.05
	assert.ErrorAs(t, validatePreference(&bad), &ve)
}

func TestPublicUser(t *testing.T) {
	u := &models.User{ID: "u1", Email: "sari@example.com", FullName: "Sari Dewi", Password: "hash"}
	pub := publicUser(u)
	assert.Equal(t, "u1", pub.ID)
	assert.Equal(t, "Sari Dewi", pub.Username)

	u.Username = ptr("sari")
	assert.Equal(t, "sari", publicUser(u).Username)
}

func TestUpdateProfileStreakSameDay(t *testing.T) {
	repo, mock := newMockRepo(t)
	today := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	last := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "user_profiles"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "streak_days", "longest_streak", "last_practice_date"}).
			AddRow("p1", "u1", 4, 9, last),
	)

	result, err := updateProfileStreak(context.Background(), repo, "u1", today)
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, 4, result.StreakDays)
	assert.Equal(t, 9, result.LongestStreak)
	assert.NoError(t, mock.ExpectationsWereMet())
}
