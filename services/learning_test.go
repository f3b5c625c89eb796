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

func TestRecommend(t *testing.T) {
	rec, err := Recommend(RecommendRequest{LearningGoal: "Business meetings", CurrentLevel: "a1", TargetLevel: "b1", HoursPerWeek: 10})
	require.NoError(t, err)
	assert.Equal(t, "business", rec.PathType)
	assert.Equal(t, 20, rec.EstimatedDurationWeeks)
	assert.Equal(t, []string{"vocabulary", "fluency", "cultural"}, rec.FocusAreas)
	assert.Equal(t, "B1 vocabulary practice", rec.SuggestedModules[0])
}

func TestRecommendClampsDuration(t *testing.T) {
	rec, err := Recommend(RecommendRequest{CurrentLevel: "A2", TargetLevel: "C1", HoursPerWeek: 5})
	require.NoError(t, err)
	assert.Equal(t, 52, rec.EstimatedDurationWeeks)
	assert.Equal(t, "general", rec.PathType)

	rec, err = Recommend(RecommendRequest{CurrentLevel: "B2", TargetLevel: "A1", HoursPerWeek: 50})
	require.NoError(t, err)
	assert.Equal(t, 4, rec.EstimatedDurationWeeks)
}

func TestRecommendRejects(t *testing.T) {
	var ve *ValidationError
	_, err := Recommend(RecommendRequest{CurrentLevel: "A1", TargetLevel: "B1"})
	assert.ErrorAs(t, err, &ve)
	_, err = Recommend(RecommendRequest{CurrentLevel: "A1", TargetLevel: "Z9", HoursPerWeek: 3})
	assert.ErrorAs(t, err, &ve)
}

func TestFocusAreasAndPathType(t *testing.T) {
	tests := []struct {
		goal     string
		pathType string
		first    string
	}{
		{"Academic writing", "academic", "grammar"},
		{"travel to London", "travel", "pronunciation"},
		{"IELTS exam", "exam_prep", "grammar"},
		{"Daily conversation", "conversational", "pronunciation"},
		{"", "general", "pronunciation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.pathType, pathTypeFor(tt.goal), tt.goal)
		assert.Equal(t, tt.first, focusAreasFor(tt.goal)[0], tt.goal)
	}
}

func TestValidatePathDefaults(t *testing.T) {
	p := &models.LearningPath{Name: "My path"}
	require.NoError(t, validatePath(p))
	assert.Equal(t, "general", p.PathType)
	assert.Equal(t, "A1", p.CurrentLevel)
	assert.Equal(t, "B1", p.TargetLevel)
	assert.Equal(t, 12, p.EstimatedDurationWeeks)
	assert.NotNil(t, p.FocusAreas)
}

func TestValidatePathRejects(t *testing.T) {
	tests := []struct {
		name string
		path models.LearningPath
	}{
		{"blank name", models.LearningPath{Name: "  "}},
		{"unknown type", models.LearningPath{Name: "p", PathType: "cooking"}},
		{"bad level", models.LearningPath{Name: "p", TargetLevel: "D2"}},
		{"too long", models.LearningPath{Name: "p", EstimatedDurationWeeks: 60}},
		{"bad progress", models.LearningPath{Name: "p", ProgressPercentage: 120}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			assert.ErrorAs(t, validatePath(&tt.path), &ve)
		})
	}
}

func TestNewModule(t *testing.T) {
	m := newModule("B1 grammar practice", "grammar", 2)
	assert.Equal(t, 2, m.OrderIndex)
	assert.Equal(t, 70.0, m.MinPassingScore)
	assert.Equal(t, 3, m.MaxAttempts)
	assert.True(t, m.IsLocked)
}

func TestApplyAttempt(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	module := &models.LearningModule{MinPassingScore: 70, MaxAttempts: 3}
	progress := &models.UserModuleProgress{}

	assert.False(t, applyAttempt(progress, module, 55, now))
	assert.Equal(t, models.ModuleStatusInProgress, progress.Status)
	assert.False(t, applyAttempt(progress, module, 65, now))
	assert.Equal(t, 65.0, progress.BestScore)

	assert.True(t, applyAttempt(progress, module, 70, now))
	assert.Equal(t, models.ModuleStatusCompleted, progress.Status)
	assert.Equal(t, 3, progress.Attempts)
	assert.Equal(t, &now, progress.CompletedAt)
}

func TestApplyAttemptFailsAfterMaxAttempts(t *testing.T) {
	module := &models.LearningModule{MinPassingScore: 70, MaxAttempts: 3}
	progress := &models.UserModuleProgress{Attempts: 2, BestScore: 68}

	assert.False(t, applyAttempt(progress, module, 40, time.Now()))
	assert.Equal(t, models.ModuleStatusFailed, progress.Status)
	assert.Equal(t, 68.0, progress.BestScore)
	assert.Equal(t, 40.0, progress.LastScore)
	assert.Nil(t, progress.CompletedAt)
}

func expectModuleLookup(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM "learning_modules" JOIN learning_paths`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "path_id", "title", "order_index", "min_passing_score", "max_attempts", "is_locked"}).
			AddRow("m1", "p1", "Greetings", 0, 70.0, 3, false),
	)
	mock.ExpectQuery(`FROM "module_activities"`).WillReturnRows(sqlmock.NewRows([]string{"id", "module_id"}))
}

func progressRows(status string, attempts int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "module_id", "status", "attempts", "best_score"}).
		AddRow("mp1", "u1", "m1", status, attempts, 80.0)
}

func TestCompleteModuleLocksProgress(t *testing.T) {
	repo, mock := newMockRepo(t)
	svc := NewLearningService(repo, NewGamificationService(repo, nil))

	expectModuleLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "user_module_progresses"`).WillReturnRows(progressRows(models.ModuleStatusCompleted, 1))
	mock.ExpectQuery(`FROM "user_module_progresses" .* FOR UPDATE`).WillReturnRows(progressRows(models.ModuleStatusCompleted, 1))
	mock.ExpectExec(`UPDATE "user_module_progresses"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM "learning_paths"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "name", "progress_percentage"}).AddRow("p1", "u1", "Travel", 100.0),
	)
	mock.ExpectQuery(`FROM "learning_modules"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "path_id", "order_index"}).AddRow("m1", "p1", 0),
	)
	mock.ExpectCommit()

	// A repeat completion re-reads the locked row and pays nothing.
	result, err := svc.CompleteModule(context.Background(), "u1", "m1", 90)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, models.ModuleStatusCompleted, result.Status)
	assert.Equal(t, 100.0, result.Progress)
	assert.Nil(t, result.NextModuleID)
	assert.Empty(t, result.MilestonesAwarded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteModuleAfterMaxAttempts(t *testing.T) {
	repo, mock := newMockRepo(t)
	svc := NewLearningService(repo, NewGamificationService(repo, nil))

	expectModuleLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "user_module_progresses"`).WillReturnRows(progressRows(models.ModuleStatusFailed, 3))
	mock.ExpectQuery(`FROM "user_module_progresses" .* FOR UPDATE`).WillReturnRows(progressRows(models.ModuleStatusFailed, 3))
	mock.ExpectRollback()

	_, err := svc.CompleteModule(context.Background(), "u1", "m1", 95)
	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
