package models

import (
	"time"
)

// CulturalProfile stores Hofstede indices calibrated for an individual learner.
type CulturalProfile struct {
	ID                      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID                  string    `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Region                  string    `gorm:"size:30;default:'other'" json:"region"`
	UrbanRural              string    `gorm:"size:10;default:'urban'" json:"urban_rural"`
	AgeGroup                string    `gorm:"size:10" json:"age_group,omitempty"`
	EducationLevel          string    `gorm:"size:30" json:"education_level,omitempty"`
	ProfessionCategory      string    `gorm:"size:50" json:"profession_category,omitempty"`
	PowerDistance           int       `gorm:"default:78" json:"power_distance"`
	Individualism           int       `gorm:"default:14" json:"individualism"`
	Masculinity             int       `gorm:"default:46" json:"masculinity"`
	UncertaintyAvoidance    int       `gorm:"default:48" json:"uncertainty_avoidance"`
	LongTermOrientation     int       `gorm:"default:62" json:"long_term_orientation"`
	Indulgence              int       `gorm:"default:38" json:"indulgence"`
	PrimaryLanguage         string    `gorm:"size:20;default:'indonesian'" json:"primary_language"`
	RegionalLanguage        string    `gorm:"size:30" json:"regional_language,omitempty"`
	EnglishExposureLevel    string    `gorm:"size:20;default:'minimal'" json:"english_exposure_level"`
	PrefersIndirectFeedback bool      `json:"prefers_indirect_feedback"`
	PrefersGroupActivities  bool      `json:"prefers_group_activities"`
	ReligiousConsiderations bool      `json:"religious_considerations"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// NewCulturalProfile returns a profile seeded with the national Hofstede averages.
func NewCulturalProfile(userID string) *CulturalProfile {
	return &CulturalProfile{
		UserID:                  userID,
		Region:                  "other",
		UrbanRural:              "urban",
		PowerDistance:           78,
		Individualism:           14,
		Masculinity:             46,
		UncertaintyAvoidance:    48,
		LongTermOrientation:     62,
		Indulgence:              38,
		PrimaryLanguage:         "indonesian",
		EnglishExposureLevel:    "minimal",
		PrefersIndirectFeedback: true,
		PrefersGroupActivities:  true,
	}
}

type CulturalScenario struct {
	ID                    string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Title                 string         `gorm:"size:200;not null" json:"title"`
	TitleIndonesian       string         `gorm:"size:200" json:"title_indonesian"`
	Description           string         `gorm:"type:text" json:"description"`
	DescriptionIndonesian string         `gorm:"type:text" json:"description_indonesian"`
	ContextType           string         `gorm:"size:30;index" json:"context_type"`
	FormalityLevel        string         `gorm:"size:20;default:'neutral'" json:"formality_level"`
	InvolvesHierarchy     bool           `json:"involves_hierarchy"`
	InvolvesGroupDynamics bool           `json:"involves_group_dynamics"`
	InvolvesFaceSaving    bool           `json:"involves_face_saving"`
	InvolvesReligious     bool           `json:"involves_religious_elements"`
	RelevantRegions       []string       `gorm:"type:jsonb;serializer:json" json:"relevant_regions"`
	ExamplePhrases        []string       `gorm:"type:jsonb;serializer:json" json:"example_phrases"`
	CulturalNotes         map[string]any `gorm:"type:jsonb;serializer:json" json:"cultural_notes"`
	DifficultyLevel       int            `gorm:"default:1" json:"difficulty_level"`
	IsActive              bool           `json:"is_active"`
	CreatedAt             time.Time      `json:"created_at"`
}

type CulturalFeedbackTemplate struct {
	ID                    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FeedbackType          string    `gorm:"size:20;index" json:"feedback_type"`
	TemplateEnglish       string    `gorm:"type:text" json:"template_english"`
	TemplateIndonesian    string    `gorm:"type:text" json:"template_indonesian"`
	TemplateMixed         string    `gorm:"type:text" json:"template_mixed"`
	IsIndirect            bool      `json:"is_indirect"`
	IncludesEncouragement bool      `json:"includes_encouragement"`
	MinLevel              int       `gorm:"default:1" json:"min_level"`
	MaxLevel              int       `gorm:"default:10" json:"max_level"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
}

// IndonesianEnglishMapping records a known L1 interference pattern.
type IndonesianEnglishMapping struct {
	ID                    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	IndonesianPattern     string    `gorm:"size:200" json:"indonesian_pattern"`
	EnglishEquivalent     string    `gorm:"size:200" json:"english_equivalent"`
	InterferenceType      string    `gorm:"size:20;index" json:"interference_type"`
	CommonError           string    `gorm:"size:200" json:"common_error"`
	CorrectForm           string    `gorm:"size:200" json:"correct_form"`
	Explanation           string    `gorm:"type:text" json:"explanation"`
	ExplanationIndonesian string    `gorm:"type:text" json:"explanation_indonesian"`
	DifficultyLevel       int       `gorm:"default:1" json:"difficulty_level"`
	FrequencyScore        float64   `gorm:"default:0.5" json:"frequency_score"`
	TeachingTips          []string  `gorm:"type:jsonb;serializer:json" json:"teaching_tips"`
	PracticeExercises     []string  `gorm:"type:jsonb;serializer:json" json:"practice_exercises"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
}

type CulturalAdaptationPreference struct {
	ID                  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID              string    `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	UseBilingualSupport bool      `json:"use_bilingual_support"`
	UseLocalExamples    bool      `json:"use_local_examples"`
	ReligiousNeutral    bool      `json:"religious_neutral"`
	FeedbackLanguage    string    `gorm:"size:20;default:'mixed'" json:"feedback_language"`
	FeedbackFormality   string    `gorm:"size:20;default:'polite'" json:"feedback_formality"`
	ShowAchievements    bool      `json:"show_achievements"`
	EnableCompetition   bool      `json:"enable_competition"`
	VisualLearner       float64   `gorm:"default:0.5" json:"visual_learner"`
	AuditoryLearner     float64   `gorm:"default:0.5" json:"auditory_learner"`
	KinestheticLearner  float64   `gorm:"default:0.5" json:"kinesthetic_learner"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
