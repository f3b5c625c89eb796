package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicevibe/backend/models"
	"gorm.io/gorm"
)

// AnalyticsRepository persists progress rollups, error patterns and assessments.
type AnalyticsRepository struct {
	db *gorm.DB
}

// SkillAverages holds mean skill scores.
type SkillAverages struct {
	Pronunciation float64 `json:"pronunciation"`
	Fluency       float64 `json:"fluency"`
	Vocabulary    float64 `json:"vocabulary"`
	Grammar       float64 `json:"grammar"`
	Coherence     float64 `json:"coherence"`
	Overall       float64 `json:"overall"`
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Transaction runs fn against a repository bound to one database transaction.
func (r *AnalyticsRepository) Transaction(ctx context.Context, fn func(tx *AnalyticsRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AnalyticsRepository{db: tx})
	})
}

// GetOrCreateUserAnalytics returns the user's analytics row, creating an empty one first.
func (r *AnalyticsRepository) GetOrCreateUserAnalytics(ctx context.Context, userID string) (*models.UserAnalytics, error) {
	ua := &models.UserAnalytics{UserID: userID}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).FirstOrCreate(ua).Error; err != nil {
		slog.Error("Failed to get user analytics", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get user analytics: %w", err)
	}
	return ua, nil
}

func (r *AnalyticsRepository) SaveUserAnalytics(ctx context.Context, ua *models.UserAnalytics) error {
	if err := r.db.WithContext(ctx).Save(ua).Error; err != nil {
		slog.Error("Failed to save user analytics", "error", err, "user_id", ua.UserID)
		return fmt.Errorf("failed to save user analytics: %w", err)
	}
	return nil
}

// GlobalSkillAverages averages skill scores over every user with analytics.
func (r *AnalyticsRepository) GlobalSkillAverages(ctx context.Context) (*SkillAverages, error) {
	var avg SkillAverages
	err := r.db.WithContext(ctx).Model(&models.UserAnalytics{}).
		Select(`COALESCE(AVG(pronunciation_score), 0) AS pronunciation,
			COALESCE(AVG(fluency_score), 0) AS fluency,
			COALESCE(AVG(vocabulary_score), 0) AS vocabulary,
			COALESCE(AVG(grammar_score), 0) AS grammar,
			COALESCE(AVG(coherence_score), 0) AS coherence,
			COALESCE(AVG(overall_proficiency_score), 0) AS overall`).
		Scan(&avg).Error
	if err != nil {
		slog.Error("Failed to get global skill averages", "error", err)
		return nil, fmt.Errorf("failed to get global skill averages: %w", err)
	}
	return &avg, nil
}

// CreateSessionAnalytics saves a session analytics row. A repeated session id is ignored.
func (r *AnalyticsRepository) CreateSessionAnalytics(ctx context.Context, sa *models.SessionAnalytics) error {
	if err := r.db.WithContext(ctx).Create(sa).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		slog.Error("Failed to save session analytics", "error", err, "user_id", sa.UserID)
		return fmt.Errorf("failed to save session analytics: %w", err)
	}
	slog.Info("Session analytics saved", "session_analytics_id", sa.ID, "user_id", sa.UserID)
	return nil
}

// ListSessionAnalytics returns the user's session analytics newest first.
func (r *AnalyticsRepository) ListSessionAnalytics(ctx context.Context, userID string, since *time.Time, sessionType string, limit int) ([]models.SessionAnalytics, error) {
	var rows []models.SessionAnalytics
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if since != nil {
		q = q.Where("start_time >= ?", *since)
	}
	if sessionType != "" {
		q = q.Where("session_type = ?", sessionType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("start_time DESC").Find(&rows).Error; err != nil {
		slog.Error("Failed to list session analytics", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to list session analytics: %w", err)
	}
	return rows, nil
}

func (r *AnalyticsRepository) GetSessionAnalytics(ctx context.Context, id, userID string) (*models.SessionAnalytics, error) {
	var sa models.SessionAnalytics
	err := r.db.WithContext(ctx).Where("(id = ? OR session_id = ?) AND user_id = ?", id, id, userID).First(&sa).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get session analytics", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get session analytics: %w", err)
	}
	return &sa, nil
}

// GetOrCreateDailyProgress returns the progress row for the user's day.
func (r *AnalyticsRepository) GetOrCreateDailyProgress(ctx context.Context, userID string, day time.Time) (*models.LearningProgress, error) {
	year, week := day.ISOWeek()
	lp := &models.LearningProgress{
		UserID:           userID,
		Date:             day,
		WeekNumber:       week,
		Month:            int(day.Month()),
		Year:             year,
		DailyGoalMinutes: 30,
	}
	if err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, day.Format("2006-01-02")).FirstOrCreate(lp).Error; err != nil {
		slog.Error("Failed to get daily progress", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get daily progress: %w", err)
	}
	return lp, nil
}

func (r *AnalyticsRepository) SaveProgress(ctx context.Context, lp *models.LearningProgress) error {
	if err := r.db.WithContext(ctx).Save(lp).Error; err != nil {
		slog.Error("Failed to save learning progress", "error", err, "user_id", lp.UserID)
		return fmt.Errorf("failed to save learning progress: %w", err)
	}
	return nil
}

// ListProgress returns progress rows on or after from, ordered by date.
func (r *AnalyticsRepository) ListProgress(ctx context.Context, userID string, from time.Time) ([]models.LearningProgress, error) {
	var rows []models.LearningProgress
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ?", userID, from.Format("2006-01-02")).
		Order("date").
		Find(&rows).Error; err != nil {
		slog.Error("Failed to list learning progress", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to list learning progress: %w", err)
	}
	return rows, nil
}

// DaySkillAverages averages the scores of the user's sessions that started on day.
func (r *AnalyticsRepository) DaySkillAverages(ctx context.Context, userID string, day time.Time) (*SkillAverages, error) {
	var avg SkillAverages
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	err := r.db.WithContext(ctx).Model(&models.SessionAnalytics{}).
		Select(`COALESCE(AVG(pronunciation_score), 0) AS pronunciation,
			COALESCE(AVG(fluency_score), 0) AS fluency,
			COALESCE(AVG(vocabulary_score), 0) AS vocabulary,
			COALESCE(AVG(grammar_score), 0) AS grammar,
			COALESCE(AVG(coherence_score), 0) AS coherence,
			COALESCE(AVG(overall_score), 0) AS overall`).
		Where("user_id = ? AND start_time >= ? AND start_time < ?", userID, start, start.AddDate(0, 0, 1)).
		Scan(&avg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get day skill averages: %w", err)
	}
	return &avg, nil
}

// Error patterns
func (r *AnalyticsRepository) ListErrorPatterns(ctx context.Context, userID, errorType string, unresolvedOnly bool, limit int) ([]models.ErrorPattern, error) {
	var patterns []models.ErrorPattern
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if errorType != "" {
		q = q.Where("error_type = ?", errorType)
	}
	if unresolvedOnly {
		q = q.Where("is_resolved = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("occurrence_count DESC, last_occurrence DESC").Find(&patterns).Error; err != nil {
		slog.Error("Failed to list error patterns", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to list error patterns: %w", err)
	}
	return patterns, nil
}

// HighImpactPatterns returns unresolved patterns with impact >= 0.5 and severity >= 3.
func (r *AnalyticsRepository) HighImpactPatterns(ctx context.Context, userID string, limit int) ([]models.ErrorPattern, error) {
	var patterns []models.ErrorPattern
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_resolved = ? AND impact_on_communication >= ? AND severity_level >= ?", userID, false, 0.5, 3).
		Order("occurrence_count DESC").
		Limit(limit).
		Find(&patterns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get high impact patterns: %w", err)
	}
	return patterns, nil
}

func (r *AnalyticsRepository) GetErrorPattern(ctx context.Context, id, userID string) (*models.ErrorPattern, error) {
	var p models.ErrorPattern
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get error pattern: %w", err)
	}
	return &p, nil
}

func (r *AnalyticsRepository) SaveErrorPattern(ctx context.Context, p *models.ErrorPattern) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		slog.Error("Failed to save error pattern", "error", err, "pattern_id", p.ID)
		return fmt.Errorf("failed to save error pattern: %w", err)
	}
	return nil
}

// RecordErrorPattern bumps an existing (type, pattern) row or inserts a new one.
func (r *AnalyticsRepository) RecordErrorPattern(ctx context.Context, p *models.ErrorPattern) error {
	var existing models.ErrorPattern
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND error_type = ? AND error_pattern = ?", p.UserID, p.ErrorType, p.Pattern).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.LastOccurrence = time.Now()
		return r.SaveErrorPattern(ctx, p)
	}
	if err != nil {
		return fmt.Errorf("failed to look up error pattern: %w", err)
	}
	existing.OccurrenceCount++
	existing.LastOccurrence = time.Now()
	existing.IsResolved = false
	existing.ResolvedDate = nil
	existing.ExampleErrors = appendCapped(existing.ExampleErrors, p.ExampleErrors, 10)
	existing.CorrectForms = appendCapped(existing.CorrectForms, p.CorrectForms, 10)
	return r.SaveErrorPattern(ctx, &existing)
}

func appendCapped(dst, src []string, max int) []string {
	dst = append(dst, src...)
	if len(dst) > max {
		dst = dst[len(dst)-max:]
	}
	return dst
}

func (r *AnalyticsRepository) CountErrorPatterns(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ErrorPattern{}).Where("user_id = ? AND is_resolved = ?", userID, false).Count(&count).Error
	return count, err
}

// Assessments
func (r *AnalyticsRepository) ListAssessments(ctx context.Context, userID string, limit int) ([]models.SkillAssessment, error) {
	var rows []models.SkillAssessment
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("assessment_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		slog.Error("Failed to list assessments", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return rows, nil
}

func (r *AnalyticsRepository) LatestAssessment(ctx context.Context, userID string) (*models.SkillAssessment, error) {
	var a models.SkillAssessment
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("assessment_date DESC").First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest assessment: %w", err)
	}
	return &a, nil
}

func (r *AnalyticsRepository) CreateAssessment(ctx context.Context, a *models.SkillAssessment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		slog.Error("Failed to create assessment", "error", err, "user_id", a.UserID)
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

// Chat mode usage
func (r *AnalyticsRepository) CreateChatModeUsage(ctx context.Context, u *models.ChatModeUsage) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create chat mode usage: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) GetChatModeUsage(ctx context.Context, id, userID string) (*models.ChatModeUsage, error) {
	var u models.ChatModeUsage
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chat mode usage: %w", err)
	}
	return &u, nil
}

func (r *AnalyticsRepository) SaveChatModeUsage(ctx context.Context, u *models.ChatModeUsage) error {
	if err := r.db.WithContext(ctx).Save(u).Error; err != nil {
		return fmt.Errorf("failed to save chat mode usage: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) ListChatModeUsage(ctx context.Context, userID string, limit int) ([]models.ChatModeUsage, error) {
	var rows []models.ChatModeUsage
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list chat mode usage: %w", err)
	}
	return rows, nil
}
