package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/voicevibe/backend/models"
	"gorm.io/gorm"
)

type ScenarioFilter struct {
	ContextType   string
	Formality     string
	Difficulty    int
	MaxDifficulty int
}

func (r *GORMRepository) GetCulturalProfileByUser(ctx context.Context, userID string) (*models.CulturalProfile, error) {
	var profile models.CulturalProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get cultural profile", "error", err, "user_id", userID)
		return nil, err
	}
	return &profile, nil
}

func (r *GORMRepository) GetCulturalProfile(ctx context.Context, id, userID string) (*models.CulturalProfile, error) {
	var profile models.CulturalProfile
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get cultural profile", "error", err, "profile_id", id)
		return nil, err
	}
	return &profile, nil
}

func (r *GORMRepository) CreateCulturalProfile(ctx context.Context, profile *models.CulturalProfile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		slog.Error("Failed to create cultural profile", "error", err, "user_id", profile.UserID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) SaveCulturalProfile(ctx context.Context, profile *models.CulturalProfile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		slog.Error("Failed to save cultural profile", "error", err, "profile_id", profile.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) ListScenarios(ctx context.Context, f ScenarioFilter) ([]models.CulturalScenario, error) {
	var scenarios []models.CulturalScenario
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if f.ContextType != "" {
		q = q.Where("context_type = ?", f.ContextType)
	}
	if f.Formality != "" {
		q = q.Where("formality_level = ?", f.Formality)
	}
	if f.Difficulty > 0 {
		q = q.Where("difficulty_level = ?", f.Difficulty)
	}
	if f.MaxDifficulty > 0 {
		q = q.Where("difficulty_level <= ?", f.MaxDifficulty)
	}
	if err := q.Order("difficulty_level, context_type").Find(&scenarios).Error; err != nil {
		slog.Error("Failed to list cultural scenarios", "error", err)
		return nil, err
	}
	return scenarios, nil
}

func (r *GORMRepository) GetScenario(ctx context.Context, id string) (*models.CulturalScenario, error) {
	var scenario models.CulturalScenario
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&scenario).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &scenario, nil
}

// ListFeedbackTemplates filters active templates by type and, when level > 0, by level range.
func (r *GORMRepository) ListFeedbackTemplates(ctx context.Context, feedbackType string, level int) ([]models.CulturalFeedbackTemplate, error) {
	var templates []models.CulturalFeedbackTemplate
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if feedbackType != "" {
		q = q.Where("feedback_type = ?", feedbackType)
	}
	if level > 0 {
		q = q.Where("min_level <= ? AND max_level >= ?", level, level)
	}
	if err := q.Find(&templates).Error; err != nil {
		slog.Error("Failed to list feedback templates", "error", err)
		return nil, err
	}
	return templates, nil
}

func (r *GORMRepository) ListLanguageMappings(ctx context.Context, interferenceType string, difficulty int, minFrequency float64, limit int) ([]models.IndonesianEnglishMapping, error) {
	var mappings []models.IndonesianEnglishMapping
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if interferenceType != "" {
		q = q.Where("interference_type = ?", interferenceType)
	}
	if difficulty > 0 {
		q = q.Where("difficulty_level = ?", difficulty)
	}
	if minFrequency > 0 {
		q = q.Where("frequency_score >= ?", minFrequency)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("frequency_score DESC, difficulty_level").Find(&mappings).Error; err != nil {
		slog.Error("Failed to list language mappings", "error", err)
		return nil, err
	}
	return mappings, nil
}

func (r *GORMRepository) GetAdaptationPreference(ctx context.Context, userID string) (*models.CulturalAdaptationPreference, error) {
	var pref models.CulturalAdaptationPreference
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get adaptation preference", "error", err, "user_id", userID)
		return nil, err
	}
	return &pref, nil
}

func (r *GORMRepository) SaveAdaptationPreference(ctx context.Context, pref *models.CulturalAdaptationPreference) error {
	if err := r.db.WithContext(ctx).Save(pref).Error; err != nil {
		slog.Error("Failed to save adaptation preference", "error", err, "user_id", pref.UserID)
		return translate(err)
	}
	return nil
}
