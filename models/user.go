package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Username  *string        `gorm:"uniqueIndex;size:150" json:"username,omitempty"`
	Password  string         `gorm:"size:255" json:"-"` // bcrypt hash
	FullName  string         `gorm:"size:255" json:"full_name,omitempty"`
	AvatarURL string         `gorm:"size:500" json:"avatar_url,omitempty"`
	Role      string         `gorm:"default:'user'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Profile *UserProfile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// RefreshToken stores only the sha256 of the opaque token handed to the client.
type RefreshToken struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type PasswordResetToken struct {
	ID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserProfile carries the learner settings and the Hofstede defaults for Indonesia.
type UserProfile struct {
	ID                       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID                   string     `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Gender                   string     `gorm:"size:20" json:"gender,omitempty"`
	Province                 string     `gorm:"size:100" json:"province,omitempty"`
	NativeLanguage           string     `gorm:"size:10;default:'id'" json:"native_language"`
	TargetLanguage           string     `gorm:"size:10;default:'en'" json:"target_language"`
	CurrentProficiency       string     `gorm:"size:30;default:'beginner'" json:"current_proficiency"`
	LearningGoal             string     `gorm:"type:text" json:"learning_goal,omitempty"`
	DailyPracticeGoal        int        `gorm:"default:15" json:"daily_practice_goal"`
	PreferredSessionDuration int        `gorm:"default:10" json:"preferred_session_duration"`
	PowerDistance            int        `gorm:"default:78" json:"power_distance_preference"`
	Individualism            int        `gorm:"default:14" json:"individualism_preference"`
	Masculinity              int        `gorm:"default:46" json:"masculinity_preference"`
	UncertaintyAvoidance     int        `gorm:"default:48" json:"uncertainty_avoidance_preference"`
	LongTermOrientation      int        `gorm:"default:62" json:"long_term_orientation_preference"`
	TotalPracticeTime        int        `gorm:"default:0" json:"total_practice_time"` // minutes
	StreakDays               int        `gorm:"default:0" json:"streak_days"`
	LongestStreak            int        `gorm:"default:0" json:"longest_streak"`
	LastPracticeDate         *time.Time `gorm:"type:date" json:"last_practice_date,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// NewUserProfile returns a profile populated with the platform defaults.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:                   userID,
		NativeLanguage:           "id",
		TargetLanguage:           "en",
		CurrentProficiency:       "beginner",
		DailyPracticeGoal:        15,
		PreferredSessionDuration: 10,
		PowerDistance:            78,
		Individualism:            14,
		Masculinity:              46,
		UncertaintyAvoidance:     48,
		LongTermOrientation:      62,
	}
}

type LearningPreference struct {
	ID                        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID                    string    `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	PreferredScenarios        []string  `gorm:"type:jsonb;serializer:json" json:"preferred_scenarios"`
	VisualLearning            int       `gorm:"default:5" json:"visual_learning"`
	AuditoryLearning          int       `gorm:"default:5" json:"auditory_learning"`
	KinestheticLearning       int       `gorm:"default:5" json:"kinesthetic_learning"`
	AIPersonality             string    `gorm:"size:30;default:'friendly'" json:"ai_personality"`
	DifficultyAdaptationSpeed float64   `gorm:"default:0.5" json:"difficulty_adaptation_speed"`
	ImmediateCorrection       bool      `gorm:"default:true" json:"immediate_correction"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

func NewLearningPreference(userID string) *LearningPreference {
	return &LearningPreference{
		UserID:                    userID,
		PreferredScenarios:        []string{},
		VisualLearning:            5,
		AuditoryLearning:          5,
		KinestheticLearning:       5,
		AIPersonality:             "friendly",
		DifficultyAdaptationSpeed: 0.5,
		ImmediateCorrection:       true,
	}
}

type UserAchievement struct {
	ID              string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementType string    `gorm:"size:50;not null;uniqueIndex:idx_user_achievement" json:"achievement_type"`
	Title           string    `gorm:"size:200" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	EarnedAt        time.Time `json:"earned_at"`
}

type Follow struct {
	ID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FollowerID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair" json:"follower_id"`
	FollowingID string    `gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}
