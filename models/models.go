package models

import "time"

// Database schema overview:
//  1. users, refresh_tokens, password_reset_tokens: accounts and credentials
//  2. user_profiles, learning_preferences, user_achievements, follows: learner profile and social graph
//  3. learning_paths, learning_modules, module_activities, user_module_progresses: curriculum
//  4. practice_sessions, audio_recordings, session_feedbacks, real_time_transcripts: speaking practice
//  5. user_levels, badges, challenges, daily_quests, rewards and their join tables: gamification
//  6. cultural_profiles, cultural_scenarios, cultural_feedback_templates, indonesian_english_mappings
//  7. user_analytics, session_analytics, learning_progresses, error_patterns, skill_assessments

// SeedMarker records that a named seed set has been applied.
type SeedMarker struct {
	Name      string `gorm:"primaryKey;size:100"`
	CreatedAt time.Time
}

// All returns every model handled by AutoMigrate.
func All() []any {
	return []any{
		&User{}, &RefreshToken{}, &PasswordResetToken{},
		&UserProfile{}, &LearningPreference{}, &UserAchievement{}, &Follow{},
		&LearningPath{}, &LearningModule{}, &ModuleActivity{}, &UserModuleProgress{},
		&ActivityAttempt{}, &Milestone{}, &UserMilestone{},
		&PracticeSession{}, &AudioRecording{}, &SessionFeedback{}, &RealTimeTranscript{},
		&UserLevel{}, &Badge{}, &UserBadge{}, &Challenge{}, &ChallengeParticipation{},
		&PointsTransaction{}, &DailyQuest{}, &UserQuest{}, &Reward{}, &UserReward{},
		&CulturalProfile{}, &CulturalScenario{}, &CulturalFeedbackTemplate{},
		&IndonesianEnglishMapping{}, &CulturalAdaptationPreference{},
		&UserAnalytics{}, &SessionAnalytics{}, &LearningProgress{}, &ErrorPattern{},
		&SkillAssessment{}, &ChatModeUsage{},
		&SeedMarker{},
	}
}
