package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/voicevibe/backend/models"
	"gorm.io/gorm"
)

func (r *GORMRepository) ListPaths(ctx context.Context, userID string) ([]models.LearningPath, error) {
	var paths []models.LearningPath
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&paths).Error; err != nil {
		slog.Error("Failed to list learning paths", "error", err, "user_id", userID)
		return nil, err
	}
	return paths, nil
}

// CreatePath inserts the path and any inline modules.
func (r *GORMRepository) CreatePath(ctx context.Context, path *models.LearningPath) error {
	if err := r.db.WithContext(ctx).Create(path).Error; err != nil {
		slog.Error("Failed to create learning path", "error", err, "user_id", path.UserID)
		return translate(err)
	}
	slog.Info("Learning path created", "path_id", path.ID, "user_id", path.UserID, "modules", len(path.Modules))
	return nil
}

func (r *GORMRepository) GetPath(ctx context.Context, id, userID string) (*models.LearningPath, error) {
	var path models.LearningPath
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("order_index") }).
		First(&path).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get learning path", "error", err, "path_id", id)
		return nil, err
	}
	return &path, nil
}

func (r *GORMRepository) GetActivePath(ctx context.Context, userID string) (*models.LearningPath, error) {
	var path models.LearningPath
	if err := r.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).First(&path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get active learning path", "error", err, "user_id", userID)
		return nil, err
	}
	return &path, nil
}

func (r *GORMRepository) SavePath(ctx context.Context, path *models.LearningPath) error {
	if err := r.db.WithContext(ctx).Omit("Modules").Save(path).Error; err != nil {
		slog.Error("Failed to save learning path", "error", err, "path_id", path.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeletePath(ctx context.Context, id, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.LearningPath{})
	if result.Error != nil {
		slog.Error("Failed to delete learning path", "error", result.Error, "path_id", id)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ActivatePath makes path the only active path of its owner and unlocks its first module.
func (r *GORMRepository) ActivatePath(ctx context.Context, path *models.LearningPath) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		db := tx.db.WithContext(ctx)
		if err := db.Model(&models.LearningPath{}).
			Where("user_id = ? AND id <> ?", path.UserID, path.ID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		path.IsActive = true
		path.CurrentModuleIndex = 0
		if err := db.Model(path).Updates(map[string]any{"is_active": true, "current_module_index": 0}).Error; err != nil {
			return err
		}
		return db.Model(&models.LearningModule{}).
			Where("path_id = ? AND order_index = ?", path.ID, 0).
			Update("is_locked", false).Error
	})
}

func (r *GORMRepository) ListModules(ctx context.Context, pathID string) ([]models.LearningModule, error) {
	var modules []models.LearningModule
	if err := r.db.WithContext(ctx).Where("path_id = ?", pathID).Order("order_index").Find(&modules).Error; err != nil {
		slog.Error("Failed to list modules", "error", err, "path_id", pathID)
		return nil, err
	}
	return modules, nil
}

// GetModuleForUser returns a module only when its path belongs to userID.
func (r *GORMRepository) GetModuleForUser(ctx context.Context, id, userID string) (*models.LearningModule, error) {
	var module models.LearningModule
	err := r.db.WithContext(ctx).
		Joins("JOIN learning_paths ON learning_paths.id = learning_modules.path_id AND learning_paths.deleted_at IS NULL").
		Where("learning_modules.id = ? AND learning_paths.user_id = ?", id, userID).
		Preload("Activities", func(db *gorm.DB) *gorm.DB { return db.Order("order_index") }).
		First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get module", "error", err, "module_id", id)
		return nil, err
	}
	return &module, nil
}

func (r *GORMRepository) GetModuleByOrder(ctx context.Context, pathID string, order int) (*models.LearningModule, error) {
	var module models.LearningModule
	if err := r.db.WithContext(ctx).Where("path_id = ? AND order_index = ?", pathID, order).First(&module).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &module, nil
}

func (r *GORMRepository) UnlockModule(ctx context.Context, moduleID string) error {
	return r.db.WithContext(ctx).Model(&models.LearningModule{}).Where("id = ?", moduleID).Update("is_locked", false).Error
}

func (r *GORMRepository) GetOrCreateModuleProgress(ctx context.Context, userID, moduleID string) (*models.UserModuleProgress, error) {
	progress := &models.UserModuleProgress{UserID: userID, ModuleID: moduleID, Status: models.ModuleStatusNotStarted}
	err := r.db.WithContext(ctx).Where("user_id = ? AND module_id = ?", userID, moduleID).FirstOrCreate(progress).Error
	if err != nil {
		slog.Error("Failed to get module progress", "error", err, "module_id", moduleID)
		return nil, err
	}
	return progress, nil
}

// LockModuleProgress returns the progress row locked for update, creating it first when missing.
func (r *GORMRepository) LockModuleProgress(ctx context.Context, userID, moduleID string) (*models.UserModuleProgress, error) {
	if _, err := r.GetOrCreateModuleProgress(ctx, userID, moduleID); err != nil {
		return nil, err
	}
	var progress models.UserModuleProgress
	err := r.db.WithContext(ctx).Clauses(forUpdate()).Where("user_id = ? AND module_id = ?", userID, moduleID).First(&progress).Error
	if err != nil {
		slog.Error("Failed to lock module progress", "error", err, "module_id", moduleID)
		return nil, err
	}
	return &progress, nil
}

func (r *GORMRepository) SaveModuleProgress(ctx context.Context, progress *models.UserModuleProgress) error {
	if err := r.db.WithContext(ctx).Save(progress).Error; err != nil {
		slog.Error("Failed to save module progress", "error", err, "module_id", progress.ModuleID)
		return err
	}
	return nil
}

// CountCompletedModules counts completed modules of the user. An empty pathID counts across all paths.
func (r *GORMRepository) CountCompletedModules(ctx context.Context, userID, pathID string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.UserModuleProgress{}).
		Where("user_module_progresses.user_id = ? AND user_module_progresses.status = ?", userID, models.ModuleStatusCompleted)
	if pathID != "" {
		q = q.Joins("JOIN learning_modules ON learning_modules.id = user_module_progresses.module_id").
			Where("learning_modules.path_id = ?", pathID)
	}
	err := q.Count(&count).Error
	return count, err
}

func (r *GORMRepository) CountUserModules(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LearningModule{}).
		Joins("JOIN learning_paths ON learning_paths.id = learning_modules.path_id AND learning_paths.deleted_at IS NULL").
		Where("learning_paths.user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *GORMRepository) AverageModuleScore(ctx context.Context, userID string) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).Model(&models.UserModuleProgress{}).
		Select("AVG(best_score)").
		Where("user_id = ? AND status = ?", userID, models.ModuleStatusCompleted).
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}

func (r *GORMRepository) ListMilestones(ctx context.Context, milestoneType string) ([]models.Milestone, error) {
	var milestones []models.Milestone
	q := r.db.WithContext(ctx).Order("threshold")
	if milestoneType != "" {
		q = q.Where("milestone_type = ?", milestoneType)
	}
	if err := q.Find(&milestones).Error; err != nil {
		slog.Error("Failed to list milestones", "error", err)
		return nil, err
	}
	return milestones, nil
}

func (r *GORMRepository) ListUserMilestones(ctx context.Context, userID string) ([]models.UserMilestone, error) {
	var milestones []models.UserMilestone
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Preload("Milestone").Order("achieved_at DESC").Find(&milestones).Error; err != nil {
		slog.Error("Failed to list user milestones", "error", err, "user_id", userID)
		return nil, err
	}
	return milestones, nil
}

// AwardMilestone records the milestone once. It reports whether it was newly achieved.
func (r *GORMRepository) AwardMilestone(ctx context.Context, um *models.UserMilestone) (bool, error) {
	result := r.db.WithContext(ctx).Where("user_id = ? AND milestone_id = ?", um.UserID, um.MilestoneID).FirstOrCreate(um)
	if result.Error != nil {
		slog.Error("Failed to award milestone", "error", result.Error, "user_id", um.UserID)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GORMRepository) ListActivities(ctx context.Context, moduleID string) ([]models.ModuleActivity, error) {
	var activities []models.ModuleActivity
	if err := r.db.WithContext(ctx).Where("module_id = ?", moduleID).Order("order_index").Find(&activities).Error; err != nil {
		slog.Error("Failed to list activities", "error", err, "module_id", moduleID)
		return nil, err
	}
	return activities, nil
}

func (r *GORMRepository) GetActivityForUser(ctx context.Context, id, userID string) (*models.ModuleActivity, error) {
	var activity models.ModuleActivity
	err := r.db.WithContext(ctx).
		Joins("JOIN learning_modules ON learning_modules.id = module_activities.module_id").
		Joins("JOIN learning_paths ON learning_paths.id = learning_modules.path_id AND learning_paths.deleted_at IS NULL").
		Where("module_activities.id = ? AND learning_paths.user_id = ?", id, userID).
		First(&activity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get activity", "error", err, "activity_id", id)
		return nil, err
	}
	return &activity, nil
}

func (r *GORMRepository) CreateActivityAttempt(ctx context.Context, attempt *models.ActivityAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		slog.Error("Failed to create activity attempt", "error", err, "activity_id", attempt.ActivityID)
		return err
	}
	return nil
}
