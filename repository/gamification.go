package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voicevibe/backend/models"
	"gorm.io/gorm"
)

// PointsTotal is a user's points earned over a period.
type PointsTotal struct {
	UserID string
	Score  int64
}

func (r *GORMRepository) GetOrCreateUserLevel(ctx context.Context, userID string) (*models.UserLevel, bool, error) {
	level := &models.UserLevel{UserID: userID, CurrentLevel: 1, WayangCharacter: "Semar"}
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).FirstOrCreate(level)
	if result.Error != nil {
		slog.Error("Failed to get or create user level", "error", result.Error, "user_id", userID)
		return nil, false, result.Error
	}
	return level, result.RowsAffected > 0, nil
}

// LockUserLevel loads the level row with FOR UPDATE. It must run inside Transaction.
func (r *GORMRepository) LockUserLevel(ctx context.Context, userID string) (*models.UserLevel, error) {
	if _, _, err := r.GetOrCreateUserLevel(ctx, userID); err != nil {
		return nil, err
	}
	var level models.UserLevel
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).Where("user_id = ?", userID).First(&level).Error; err != nil {
		slog.Error("Failed to lock user level", "error", err, "user_id", userID)
		return nil, err
	}
	return &level, nil
}

func (r *GORMRepository) SaveUserLevel(ctx context.Context, level *models.UserLevel) error {
	if err := r.db.WithContext(ctx).Save(level).Error; err != nil {
		slog.Error("Failed to save user level", "error", err, "user_id", level.UserID)
		return err
	}
	return nil
}

func (r *GORMRepository) CreatePointsTransaction(ctx context.Context, txn *models.PointsTransaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		slog.Error("Failed to record points transaction", "error", err, "user_id", txn.UserID)
		return err
	}
	return nil
}

func (r *GORMRepository) ListPointsTransactions(ctx context.Context, userID string, limit int) ([]models.PointsTransaction, error) {
	var txns []models.PointsTransaction
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&txns).Error; err != nil {
		slog.Error("Failed to list points transactions", "error", err, "user_id", userID)
		return nil, err
	}
	return txns, nil
}

// SumPointsSince ranks users by positive points earned since the given time.
func (r *GORMRepository) SumPointsSince(ctx context.Context, since time.Time, limit int) ([]PointsTotal, error) {
	var totals []PointsTotal
	q := r.db.WithContext(ctx).Model(&models.PointsTransaction{}).
		Select("user_id, SUM(amount) AS score").
		Where("created_at >= ? AND amount > 0", since).
		Group("user_id").
		Order("score DESC, user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&totals).Error; err != nil {
		slog.Error("Failed to sum points", "error", err)
		return nil, err
	}
	return totals, nil
}

func (r *GORMRepository) GetUserLevels(ctx context.Context, userIDs []string) ([]models.UserLevel, error) {
	var levels []models.UserLevel
	if len(userIDs) == 0 {
		return levels, nil
	}
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&levels).Error
	return levels, err
}

// Badges
func (r *GORMRepository) ListBadges(ctx context.Context, category, pattern string) ([]models.Badge, error) {
	var badges []models.Badge
	q := r.db.WithContext(ctx).Order("category, tier")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if pattern != "" {
		q = q.Where("batik_pattern = ?", pattern)
	}
	if err := q.Find(&badges).Error; err != nil {
		slog.Error("Failed to list badges", "error", err)
		return nil, err
	}
	return badges, nil
}

func (r *GORMRepository) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&badge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &badge, nil
}

// BadgesReached returns badges of requirementType whose requirement is at most value.
func (r *GORMRepository) BadgesReached(ctx context.Context, requirementType string, value int) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.WithContext(ctx).
		Where("requirement_type = ? AND requirement_value <= ?", requirementType, value).
		Find(&badges).Error
	return badges, err
}

func (r *GORMRepository) AwardBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	ub := &models.UserBadge{UserID: userID, BadgeID: badgeID, EarnedAt: time.Now()}
	result := r.db.WithContext(ctx).Where("user_id = ? AND badge_id = ?", userID, badgeID).FirstOrCreate(ub)
	if result.Error != nil {
		slog.Error("Failed to award badge", "error", result.Error, "user_id", userID, "badge_id", badgeID)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GORMRepository) ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Preload("Badge").Order("earned_at DESC").Find(&badges).Error; err != nil {
		slog.Error("Failed to list user badges", "error", err, "user_id", userID)
		return nil, err
	}
	return badges, nil
}

func (r *GORMRepository) CountUserBadges(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBadge{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Challenges
func (r *GORMRepository) ListActiveChallenges(ctx context.Context, now time.Time) ([]models.Challenge, error) {
	var challenges []models.Challenge
	if err := r.db.WithContext(ctx).Where("is_active = ? AND end_date >= ?", true, now).Order("end_date").Find(&challenges).Error; err != nil {
		slog.Error("Failed to list challenges", "error", err)
		return nil, err
	}
	return challenges, nil
}

func (r *GORMRepository) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

func (r *GORMRepository) LockChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).Where("id = ?", id).First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

func (r *GORMRepository) SaveChallenge(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Save(challenge).Error
}

func (r *GORMRepository) GetParticipation(ctx context.Context, challengeID, userID string) (*models.ChallengeParticipation, error) {
	var p models.ChallengeParticipation
	if err := r.db.WithContext(ctx).Where("challenge_id = ? AND user_id = ?", challengeID, userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *GORMRepository) SaveParticipation(ctx context.Context, p *models.ChallengeParticipation) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		slog.Error("Failed to save participation", "error", err, "challenge_id", p.ChallengeID, "user_id", p.UserID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) ListActiveParticipants(ctx context.Context, challengeID string) ([]models.ChallengeParticipation, error) {
	var ps []models.ChallengeParticipation
	err := r.db.WithContext(ctx).Where("challenge_id = ? AND is_active = ?", challengeID, true).Find(&ps).Error
	return ps, err
}

func (r *GORMRepository) CountActiveParticipants(ctx context.Context, challengeID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChallengeParticipation{}).
		Where("challenge_id = ? AND is_active = ?", challengeID, true).Count(&count).Error
	return count, err
}

// Quests
func (r *GORMRepository) ListDailyQuests(ctx context.Context, day time.Time) ([]models.DailyQuest, error) {
	var quests []models.DailyQuest
	err := r.db.WithContext(ctx).
		Where("quest_date = ? AND is_active = ? AND is_template = ?", day.Format("2006-01-02"), true, false).
		Order("created_at").Find(&quests).Error
	if err != nil {
		slog.Error("Failed to list daily quests", "error", err)
		return nil, err
	}
	return quests, nil
}

func (r *GORMRepository) GetQuest(ctx context.Context, id string) (*models.DailyQuest, error) {
	var quest models.DailyQuest
	if err := r.db.WithContext(ctx).Where("id = ? AND is_template = ?", id, false).First(&quest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quest, nil
}

func (r *GORMRepository) GetUserQuest(ctx context.Context, userID, questID string) (*models.UserQuest, error) {
	var uq models.UserQuest
	if err := r.db.WithContext(ctx).Where("user_id = ? AND quest_id = ?", userID, questID).First(&uq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &uq, nil
}

func (r *GORMRepository) ListUserQuests(ctx context.Context, userID string, questIDs []string) ([]models.UserQuest, error) {
	var uqs []models.UserQuest
	if len(questIDs) == 0 {
		return uqs, nil
	}
	err := r.db.WithContext(ctx).Where("user_id = ? AND quest_id IN ?", userID, questIDs).Find(&uqs).Error
	return uqs, err
}

func (r *GORMRepository) SaveUserQuest(ctx context.Context, uq *models.UserQuest) error {
	if err := r.db.WithContext(ctx).Omit("Quest").Save(uq).Error; err != nil {
		slog.Error("Failed to save user quest", "error", err, "user_id", uq.UserID, "quest_id", uq.QuestID)
		return translate(err)
	}
	return nil
}

// OpenQuestsOfType returns today's started, incomplete quests of questType for the user.
func (r *GORMRepository) OpenQuestsOfType(ctx context.Context, userID, questType string, day time.Time) ([]models.UserQuest, error) {
	var uqs []models.UserQuest
	err := r.db.WithContext(ctx).
		Joins("JOIN daily_quests ON daily_quests.id = user_quests.quest_id").
		Where("user_quests.user_id = ? AND user_quests.is_completed = ? AND daily_quests.quest_type = ? AND daily_quests.quest_date = ?",
			userID, false, questType, day.Format("2006-01-02")).
		Preload("Quest").
		Find(&uqs).Error
	return uqs, err
}

// RotateDailyQuests deactivates past quests and instantiates today's from the templates.
func (r *GORMRepository) RotateDailyQuests(ctx context.Context, day time.Time) (int, error) {
	created := 0
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		db := tx.db.WithContext(ctx)
		date := day.Format("2006-01-02")
		if err := db.Model(&models.DailyQuest{}).
			Where("is_template = ? AND quest_date < ?", false, date).
			Update("is_active", false).Error; err != nil {
			return err
		}
		var existing int64
		if err := db.Model(&models.DailyQuest{}).Where("is_template = ? AND quest_date = ?", false, date).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		var templates []models.DailyQuest
		if err := db.Where("is_template = ?", true).Find(&templates).Error; err != nil {
			return err
		}
		for _, t := range templates {
			q := models.DailyQuest{
				Title:            t.Title,
				Description:      t.Description,
				QuestType:        t.QuestType,
				TargetValue:      t.TargetValue,
				ExperiencePoints: t.ExperiencePoints,
				QuestDate:        day,
				IsActive:         true,
			}
			if err := db.Create(&q).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to rotate daily quests", "error", err)
	}
	return created, err
}

// Rewards
func (r *GORMRepository) ListRewards(ctx context.Context) ([]models.Reward, error) {
	var rewards []models.Reward
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("point_cost").Find(&rewards).Error; err != nil {
		slog.Error("Failed to list rewards", "error", err)
		return nil, err
	}
	return rewards, nil
}

func (r *GORMRepository) LockReward(ctx context.Context, id string) (*models.Reward, error) {
	var reward models.Reward
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).Where("id = ? AND is_active = ?", id, true).First(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reward, nil
}

func (r *GORMRepository) SaveReward(ctx context.Context, reward *models.Reward) error {
	return r.db.WithContext(ctx).Save(reward).Error
}

func (r *GORMRepository) CreateUserReward(ctx context.Context, ur *models.UserReward) error {
	if err := r.db.WithContext(ctx).Omit("Reward").Create(ur).Error; err != nil {
		slog.Error("Failed to create user reward", "error", err, "user_id", ur.UserID)
		return err
	}
	return nil
}

func (r *GORMRepository) ListUserRewards(ctx context.Context, userID string) ([]models.UserReward, error) {
	var rewards []models.UserReward
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Preload("Reward").Order("created_at DESC").Find(&rewards).Error; err != nil {
		slog.Error("Failed to list user rewards", "error", err, "user_id", userID)
		return nil, err
	}
	return rewards, nil
}

// EquipReward equips one owned reward and unequips the others of the same type.
func (r *GORMRepository) EquipReward(ctx context.Context, userRewardID, userID string) (*models.UserReward, error) {
	var equipped models.UserReward
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		db := tx.db.WithContext(ctx)
		if err := db.Where("id = ? AND user_id = ?", userRewardID, userID).Preload("Reward").First(&equipped).Error; err != nil {
			return err
		}
		if equipped.Reward == nil {
			return gorm.ErrRecordNotFound
		}
		sameType := db.Model(&models.Reward{}).Select("id").Where("reward_type = ?", equipped.Reward.RewardType)
		if err := db.Model(&models.UserReward{}).
			Where("user_id = ? AND reward_id IN (?)", userID, sameType).
			Updates(map[string]any{"is_active": false, "equipped_at": nil}).Error; err != nil {
			return err
		}
		now := time.Now()
		equipped.IsActive = true
		equipped.EquippedAt = &now
		return db.Model(&equipped).Updates(map[string]any{"is_active": true, "equipped_at": now}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to equip reward", "error", err, "user_reward_id", userRewardID)
		return nil, err
	}
	return &equipped, nil
}
