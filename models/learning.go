package models

import (
	"time"

	"gorm.io/gorm"
)

// CEFRLevels is ordered from lowest to highest proficiency.
var CEFRLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

const (
	ModuleStatusNotStarted = "not_started"
	ModuleStatusInProgress = "in_progress"
	ModuleStatusCompleted  = "completed"
	ModuleStatusFailed     = "failed"
)

type LearningPath struct {
	ID                     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID                 string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Name                   string         `gorm:"size:200;not null" json:"name"`
	Description            string         `gorm:"type:text" json:"description"`
	PathType               string         `gorm:"size:30;default:'general'" json:"path_type"`
	CurrentLevel           string         `gorm:"size:2;default:'A1'" json:"current_level"`
	TargetLevel            string         `gorm:"size:2;default:'B1'" json:"target_level"`
	EstimatedDurationWeeks int            `gorm:"default:12" json:"estimated_duration_weeks"`
	ProgressPercentage     float64        `gorm:"default:0" json:"progress_percentage"`
	CurrentModuleIndex     int            `gorm:"default:0" json:"current_module_index"`
	FocusAreas             []string       `gorm:"type:jsonb;serializer:json" json:"focus_areas"`
	IsActive               bool           `json:"is_active"`
	CompletedAt            *time.Time     `json:"completed_at,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`

	Modules []LearningModule `gorm:"foreignKey:PathID" json:"modules,omitempty"`
}

type LearningModule struct {
	ID               string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PathID           string    `gorm:"type:uuid;not null;uniqueIndex:idx_path_order" json:"path_id"`
	Title            string    `gorm:"size:200;not null" json:"title"`
	Description      string    `gorm:"type:text" json:"description"`
	ModuleType       string    `gorm:"size:30" json:"module_type"`
	OrderIndex       int       `gorm:"not null;uniqueIndex:idx_path_order" json:"order_index"`
	MinPassingScore  float64   `gorm:"default:70" json:"min_passing_score"`
	MaxAttempts      int       `gorm:"default:3" json:"max_attempts"`
	IsLocked         bool      `json:"is_locked"`
	EstimatedMinutes int       `gorm:"default:15" json:"estimated_minutes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Activities []ModuleActivity `gorm:"foreignKey:ModuleID" json:"activities,omitempty"`
}

type ModuleActivity struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ModuleID     string         `gorm:"type:uuid;not null;index" json:"module_id"`
	Title        string         `gorm:"size:200;not null" json:"title"`
	ActivityType string         `gorm:"size:30" json:"activity_type"`
	OrderIndex   int            `json:"order_index"`
	Content      map[string]any `gorm:"type:jsonb;serializer:json" json:"content"`
	Points       int            `gorm:"default:10" json:"points"`
	CreatedAt    time.Time      `json:"created_at"`
}

type UserModuleProgress struct {
	ID          string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string     `gorm:"type:uuid;not null;uniqueIndex:idx_user_module" json:"user_id"`
	ModuleID    string     `gorm:"type:uuid;not null;uniqueIndex:idx_user_module" json:"module_id"`
	Status      string     `gorm:"size:20;default:'not_started'" json:"status"`
	Attempts    int        `json:"attempts"`
	BestScore   float64    `json:"best_score"`
	LastScore   float64    `json:"last_score"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ActivityAttempt struct {
	ID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	ActivityID  string    `gorm:"type:uuid;not null;index" json:"activity_id"`
	Score       float64   `json:"score"`
	Response    string    `gorm:"type:text" json:"response"`
	SubmittedAt time.Time `json:"submitted_at"`
}

const (
	MilestonePathCompleted    = "path_completed"
	MilestoneModulesCompleted = "modules_completed"
	MilestoneScoreReached     = "score_reached"
)

type Milestone struct {
	ID            string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Code          string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Title         string    `gorm:"size:200" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	MilestoneType string    `gorm:"size:30" json:"milestone_type"`
	Threshold     int       `json:"threshold"`
	Points        int       `json:"points"`
	CreatedAt     time.Time `json:"created_at"`
}

type UserMilestone struct {
	ID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_milestone" json:"user_id"`
	MilestoneID string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_milestone" json:"milestone_id"`
	AchievedAt  time.Time `json:"achieved_at"`

	Milestone *Milestone `gorm:"foreignKey:MilestoneID" json:"milestone,omitempty"`
}
