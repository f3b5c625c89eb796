package models

import (
	"time"
)

type UserAnalytics struct {
	ID                      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID                  string     `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	TotalPracticeMinutes    int        `json:"total_practice_time_minutes"`
	TotalSessionsCompleted  int        `json:"total_sessions_completed"`
	AverageSessionDuration  float64    `json:"average_session_duration"`
	CurrentStreakDays       int        `json:"current_streak_days"`
	LongestStreakDays       int        `json:"longest_streak_days"`
	LastPracticeDate        *time.Time `gorm:"type:date" json:"last_practice_date,omitempty"`
	PronunciationScore      float64    `json:"pronunciation_score"`
	FluencyScore            float64    `json:"fluency_score"`
	VocabularyScore         float64    `json:"vocabulary_score"`
	GrammarScore            float64    `json:"grammar_score"`
	CoherenceScore          float64    `json:"coherence_score"`
	OverallProficiencyScore float64    `json:"overall_proficiency_score"`
	InitialProficiencyScore *float64   `json:"initial_proficiency_score,omitempty"`
	ImprovementRate         float64    `json:"improvement_rate"`
	AverageWordsPerMinute   float64    `json:"average_words_per_minute"`
	ScenariosCompleted      int        `json:"scenarios_completed"`
	AchievementsEarned      int        `json:"achievements_earned"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

type SessionAnalytics struct {
	ID                   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID               string         `gorm:"type:uuid;not null;index:idx_session_analytics_user" json:"user_id"`
	SessionID            string         `gorm:"type:uuid;uniqueIndex" json:"session_id"`
	SessionType          string         `gorm:"size:30" json:"session_type"`
	DifficultyLevel      int            `json:"difficulty_level"`
	StartTime            time.Time      `gorm:"index:idx_session_analytics_user" json:"start_time"`
	EndTime              *time.Time     `json:"end_time,omitempty"`
	DurationSeconds      int            `json:"duration_seconds"`
	SpeakingTimeSeconds  int            `json:"speaking_time_seconds"`
	PronunciationScore   float64        `json:"pronunciation_score"`
	FluencyScore         float64        `json:"fluency_score"`
	VocabularyScore      float64        `json:"vocabulary_score"`
	GrammarScore         float64        `json:"grammar_score"`
	CoherenceScore       float64        `json:"coherence_score"`
	OverallScore         float64        `json:"overall_score"`
	TotalWords           int            `json:"total_words"`
	UniqueWords          int            `json:"unique_words"`
	WordsPerMinute       float64        `json:"words_per_minute"`
	PronunciationErrors  int            `json:"pronunciation_errors"`
	GrammarErrors        int            `json:"grammar_errors"`
	CommonErrors         map[string]any `gorm:"type:jsonb;serializer:json" json:"common_errors"`
	IsCompleted          bool           `json:"is_completed"`
	CompletionPercentage float64        `json:"completion_percentage"`
	CreatedAt            time.Time      `json:"created_at"`
}

// LearningProgress is the per-day rollup of practice for one user.
type LearningProgress struct {
	ID                   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID               string    `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_date" json:"user_id"`
	Date                 time.Time `gorm:"type:date;not null;uniqueIndex:idx_progress_user_date" json:"date"`
	WeekNumber           int       `json:"week_number"`
	Month                int       `json:"month"`
	Year                 int       `json:"year"`
	PracticeTimeMinutes  int       `json:"practice_time_minutes"`
	SessionsCount        int       `json:"sessions_count"`
	WordsPracticed       int       `json:"words_practiced"`
	PronunciationAverage float64   `json:"pronunciation_avg"`
	FluencyAverage       float64   `json:"fluency_avg"`
	VocabularyAverage    float64   `json:"vocabulary_avg"`
	GrammarAverage       float64   `json:"grammar_avg"`
	CoherenceAverage     float64   `json:"coherence_avg"`
	DailyGoalMinutes     int       `gorm:"default:30" json:"daily_goal_minutes"`
	GoalAchieved         bool      `json:"goal_achieved"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type ErrorPattern struct {
	ID                    string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID                string     `gorm:"type:uuid;not null;index" json:"user_id"`
	ErrorType             string     `gorm:"size:20" json:"error_type"`
	Pattern               string     `gorm:"column:error_pattern;size:200" json:"error_pattern"`
	Description           string     `gorm:"type:text" json:"description"`
	ExampleErrors         []string   `gorm:"type:jsonb;serializer:json" json:"example_errors"`
	CorrectForms          []string   `gorm:"type:jsonb;serializer:json" json:"correct_forms"`
	OccurrenceCount       int        `gorm:"default:1" json:"occurrence_count"`
	LastOccurrence        time.Time  `json:"last_occurrence"`
	SeverityLevel         int        `gorm:"default:3" json:"severity_level"`
	ImpactOnCommunication float64    `gorm:"default:0.5" json:"impact_on_communication"`
	IsResolved            bool       `json:"is_resolved"`
	ResolvedDate          *time.Time `json:"resolved_date,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

type SkillAssessment struct {
	ID                  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID              string    `gorm:"type:uuid;not null;index" json:"user_id"`
	AssessmentType      string    `gorm:"size:20" json:"assessment_type"`
	AssessmentDate      time.Time `gorm:"index" json:"assessment_date"`
	PronunciationScore  float64   `json:"pronunciation_score"`
	FluencyScore        float64   `json:"fluency_score"`
	VocabularyScore     float64   `json:"vocabulary_score"`
	GrammarScore        float64   `json:"grammar_score"`
	CoherenceScore      float64   `json:"coherence_score"`
	ListeningScore      float64   `json:"listening_score"`
	OverallScore        float64   `json:"overall_score"`
	ProficiencyLevel    string    `gorm:"size:2" json:"proficiency_level"`
	Strengths           []string  `gorm:"type:jsonb;serializer:json" json:"strengths"`
	Weaknesses          []string  `gorm:"type:jsonb;serializer:json" json:"weaknesses"`
	Recommendations     []string  `gorm:"type:jsonb;serializer:json" json:"recommendations"`
	ImprovementFromLast *float64  `json:"improvement_from_last,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type ChatModeUsage struct {
	ID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Mode            string     `gorm:"size:10" json:"mode"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	MessageCount    int        `json:"message_count"`
	IsActive        bool       `json:"is_active"`
}
