package models

import (
	"time"
)

type UserLevel struct {
	ID                string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID            string     `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	CurrentLevel      int        `gorm:"default:1" json:"current_level"`
	ExperiencePoints  int        `gorm:"default:0" json:"experience_points"`
	TotalPointsEarned int        `gorm:"default:0" json:"total_points_earned"`
	PointsBalance     int        `gorm:"default:0" json:"points_balance"` // spendable in the reward shop
	WayangCharacter   string     `gorm:"size:30;default:'Semar'" json:"wayang_character"`
	StreakDays        int        `gorm:"default:0" json:"streak_days"`
	LongestStreak     int        `gorm:"default:0" json:"longest_streak"`
	LastActivityDate  *time.Time `gorm:"type:date" json:"last_activity_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

const (
	RequirementLevel    = "level"
	RequirementStreak   = "streak"
	RequirementSessions = "sessions"
)

type Badge struct {
	ID               string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Code             string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	Category         string    `gorm:"size:20;index" json:"category"`
	BatikPattern     string    `gorm:"size:20" json:"batik_pattern"`
	Tier             int       `gorm:"default:1" json:"tier"`
	PointsValue      int       `gorm:"default:50" json:"points_value"`
	RequirementType  string    `gorm:"size:30" json:"requirement_type"`
	RequirementValue int       `json:"requirement_value"`
	CreatedAt        time.Time `json:"created_at"`
}

type UserBadge struct {
	ID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge" json:"user_id"`
	BadgeID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`

	Badge *Badge `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

// Challenge is a community (gotong royong) goal shared by its participants.
type Challenge struct {
	ID                  string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Title               string     `gorm:"size:200;not null" json:"title"`
	Description         string     `gorm:"type:text" json:"description"`
	GoalTarget          int        `gorm:"not null" json:"goal_target"`
	RewardPoints        int        `gorm:"default:100" json:"reward_points"`
	MaximumParticipants int        `gorm:"default:50" json:"maximum_participants"`
	StartDate           time.Time  `json:"start_date"`
	EndDate             time.Time  `gorm:"index" json:"end_date"`
	IsActive            bool       `json:"is_active"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type ChallengeParticipation struct {
	ID                string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ChallengeID       string     `gorm:"type:uuid;not null;uniqueIndex:idx_challenge_user" json:"challenge_id"`
	UserID            string     `gorm:"type:uuid;not null;uniqueIndex:idx_challenge_user" json:"user_id"`
	ContributionScore int        `json:"contribution_score"`
	IsActive          bool       `json:"is_active"`
	Completed         bool       `json:"completed"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	JoinedAt          time.Time  `json:"joined_at"`
}

type PointsTransaction struct {
	ID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index:idx_points_user_created" json:"user_id"`
	Amount      int       `gorm:"not null" json:"amount"`
	Source      string    `gorm:"size:50" json:"source"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"index:idx_points_user_created" json:"created_at"`
}

const (
	QuestCompleteSessions = "complete_sessions"
	QuestPracticeMinutes  = "practice_minutes"
	QuestEarnPoints       = "earn_points"
)

type DailyQuest struct {
	ID               string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Title            string    `gorm:"size:200;not null" json:"title"`
	Description      string    `gorm:"type:text" json:"description"`
	QuestType        string    `gorm:"size:30" json:"quest_type"`
	TargetValue      int       `gorm:"default:1" json:"target_value"`
	ExperiencePoints int       `gorm:"default:25" json:"experience_points"`
	QuestDate        time.Time `gorm:"type:date;index" json:"quest_date"`
	IsTemplate       bool      `json:"-"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

type UserQuest struct {
	ID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;uniqueIndex:idx_user_quest" json:"user_id"`
	QuestID         string     `gorm:"type:uuid;not null;uniqueIndex:idx_user_quest" json:"quest_id"`
	CurrentProgress int        `json:"current_progress"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	PointsEarned    int        `json:"points_earned"`
	CreatedAt       time.Time  `json:"created_at"`

	Quest *DailyQuest `gorm:"foreignKey:QuestID" json:"quest,omitempty"`
}

type Reward struct {
	ID               string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	RewardType       string    `gorm:"size:30" json:"reward_type"`
	PointCost        int       `gorm:"not null" json:"point_cost"`
	LevelRequirement int       `gorm:"default:1" json:"level_requirement"`
	IsLimited        bool      `json:"is_limited"`
	StockRemaining   int       `json:"stock_remaining"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

type UserReward struct {
	ID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	RewardID        string     `gorm:"type:uuid;not null" json:"reward_id"`
	AcquisitionType string     `gorm:"size:20;default:'purchase'" json:"acquisition_type"`
	IsActive        bool       `json:"is_active"`
	EquippedAt      *time.Time `json:"equipped_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	Reward *Reward `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
}
