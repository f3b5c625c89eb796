package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/voicevibe/backend/models"
	"gorm.io/gorm"
)

// GetOrCreateProfile returns the user's profile, inserting the defaults on first access.
func (r *GORMRepository) GetOrCreateProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile := models.NewUserProfile(userID)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).FirstOrCreate(profile).Error; err != nil {
		slog.Error("Failed to get or create profile", "error", err, "user_id", userID)
		return nil, err
	}
	return profile, nil
}

func (r *GORMRepository) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		slog.Error("Failed to save profile", "error", err, "user_id", profile.UserID)
		return err
	}
	return nil
}

func (r *GORMRepository) AddPracticeMinutes(ctx context.Context, userID string, minutes int) (int, error) {
	profile, err := r.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).Model(profile).
		Update("total_practice_time", gorm.Expr("total_practice_time + ?", minutes)).Error; err != nil {
		slog.Error("Failed to add practice time", "error", err, "user_id", userID)
		return 0, err
	}
	return profile.TotalPracticeTime + minutes, nil
}

func (r *GORMRepository) GetOrCreatePreference(ctx context.Context, userID string) (*models.LearningPreference, error) {
	pref := models.NewLearningPreference(userID)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).FirstOrCreate(pref).Error; err != nil {
		slog.Error("Failed to get or create learning preference", "error", err, "user_id", userID)
		return nil, err
	}
	return pref, nil
}

func (r *GORMRepository) SavePreference(ctx context.Context, pref *models.LearningPreference) error {
	if err := r.db.WithContext(ctx).Save(pref).Error; err != nil {
		slog.Error("Failed to save learning preference", "error", err, "user_id", pref.UserID)
		return err
	}
	return nil
}

// ToggleFollow creates the follow edge or removes it when present. It reports the resulting state.
func (r *GORMRepository) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	following := false
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		var existing models.Follow
		err := tx.db.WithContext(ctx).
			Where("follower_id = ? AND following_id = ?", followerID, followingID).
			First(&existing).Error
		if err == nil {
			return tx.db.WithContext(ctx).Delete(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		following = true
		return tx.db.WithContext(ctx).Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error
	})
	if err != nil {
		slog.Error("Failed to toggle follow", "error", err, "follower_id", followerID, "following_id", followingID)
		return false, translate(err)
	}
	return following, nil
}

func (r *GORMRepository) ListFollowers(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", userID).
		Order("follows.created_at DESC").
		Find(&users).Error
	if err != nil {
		slog.Error("Failed to list followers", "error", err, "user_id", userID)
		return nil, err
	}
	return users, nil
}

func (r *GORMRepository) ListFollowing(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at DESC").
		Find(&users).Error
	if err != nil {
		slog.Error("Failed to list following", "error", err, "user_id", userID)
		return nil, err
	}
	return users, nil
}

// FollowCounts returns (followers, following) for a user.
func (r *GORMRepository) FollowCounts(ctx context.Context, userID string) (int64, int64, error) {
	var followers, following int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("following_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&following).Error; err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

func (r *GORMRepository) ListAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	var achievements []models.UserAchievement
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("earned_at DESC").Find(&achievements).Error; err != nil {
		slog.Error("Failed to list achievements", "error", err, "user_id", userID)
		return nil, err
	}
	return achievements, nil
}

func (r *GORMRepository) GetAchievement(ctx context.Context, id, userID string) (*models.UserAchievement, error) {
	var achievement models.UserAchievement
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&achievement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get achievement", "error", err, "achievement_id", id)
		return nil, err
	}
	return &achievement, nil
}

// AwardAchievement inserts the achievement once per (user, type). It reports whether a row was created.
func (r *GORMRepository) AwardAchievement(ctx context.Context, achievement *models.UserAchievement) (bool, error) {
	result := r.db.WithContext(ctx).Where("user_id = ? AND achievement_type = ?", achievement.UserID, achievement.AchievementType).
		FirstOrCreate(achievement)
	if result.Error != nil {
		slog.Error("Failed to award achievement", "error", result.Error, "user_id", achievement.UserID)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GORMRepository) CountAchievements(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserAchievement{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
