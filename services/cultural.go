package services

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/voicevibe/backend/cache"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

const (
	scenarioCacheTTL     = 10 * time.Minute
	recommendedScenarios = 5
	commonErrorFrequency = 0.7
)

var (
	regions = []string{"jakarta", "west_java", "central_java", "east_java", "bali", "sumatra", "sulawesi", "kalimantan", "papua", "other"}

	exposureLevels    = []string{"none", "minimal", "moderate", "frequent", "daily"}
	feedbackLanguages = []string{"english", "indonesian", "mixed", "adaptive"}
	feedbackTypes     = []string{"encouragement", "correction", "suggestion", "praise", "cultural_note"}
)

type RegionalInsight struct {
	PowerDistance      int    `json:"power_distance"`
	Individualism      int    `json:"individualism"`
	EnglishExposure    string `json:"english_exposure"`
	LearningPreference string `json:"learning_preference"`
}

var regionalInsights = map[string]RegionalInsight{
	"jakarta":   {PowerDistance: 75, Individualism: 20, EnglishExposure: "moderate", LearningPreference: "hybrid"},
	"bali":      {PowerDistance: 70, Individualism: 15, EnglishExposure: "frequent", LearningPreference: "group"},
	"west_java": {PowerDistance: 80, Individualism: 12, EnglishExposure: "minimal", LearningPreference: "hierarchical"},
}

func regionalInsight(region string) RegionalInsight {
	if insight, ok := regionalInsights[region]; ok {
		return insight
	}
	return regionalInsights["jakarta"]
}

// CulturalService adapts content to a learner's cultural profile.
type CulturalService struct {
	repo  *repository.GORMRepository
	cache *cache.Cache
}

func NewCulturalService(repo *repository.GORMRepository, c *cache.Cache) *CulturalService {
	return &CulturalService{repo: repo, cache: c}
}

// CulturalProfilePatch carries the editable profile fields; nil fields are left alone.
type CulturalProfilePatch struct {
	Region                  *string `json:"region"`
	UrbanRural              *string `json:"urban_rural"`
	AgeGroup                *string `json:"age_group"`
	EducationLevel          *string `json:"education_level"`
	ProfessionCategory      *string `json:"profession_category"`
	PowerDistance           *int    `json:"power_distance"`
	Individualism           *int    `json:"individualism"`
	Masculinity             *int    `json:"masculinity"`
	UncertaintyAvoidance    *int    `json:"uncertainty_avoidance"`
	LongTermOrientation     *int    `json:"long_term_orientation"`
	Indulgence              *int    `json:"indulgence"`
	PrimaryLanguage         *string `json:"primary_language"`
	RegionalLanguage        *string `json:"regional_language"`
	EnglishExposureLevel    *string `json:"english_exposure_level"`
	PrefersIndirectFeedback *bool   `json:"prefers_indirect_feedback"`
	PrefersGroupActivities  *bool   `json:"prefers_group_activities"`
	ReligiousConsiderations *bool   `json:"religious_considerations"`
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (p CulturalProfilePatch) apply(profile *models.CulturalProfile) error {
	if p.Region != nil && !slices.Contains(regions, *p.Region) {
		return invalid("Invalid region: %s", *p.Region)
	}
	if p.UrbanRural != nil && *p.UrbanRural != "urban" && *p.UrbanRural != "rural" {
		return invalid("urban_rural must be urban or rural")
	}
	if p.EnglishExposureLevel != nil && !slices.Contains(exposureLevels, *p.EnglishExposureLevel) {
		return invalid("Invalid english_exposure_level: %s", *p.EnglishExposureLevel)
	}
	for _, v := range []*int{p.PowerDistance, p.Individualism, p.Masculinity, p.UncertaintyAvoidance, p.LongTermOrientation, p.Indulgence} {
		if v != nil && (*v < 0 || *v > 100) {
			return invalid("Cultural indices must be between 0 and 100")
		}
	}
	setIf(&profile.Region, p.Region)
	setIf(&profile.UrbanRural, p.UrbanRural)
	setIf(&profile.AgeGroup, p.AgeGroup)
	setIf(&profile.EducationLevel, p.EducationLevel)
	setIf(&profile.ProfessionCategory, p.ProfessionCategory)
	setIf(&profile.PowerDistance, p.PowerDistance)
	setIf(&profile.Individualism, p.Individualism)
	setIf(&profile.Masculinity, p.Masculinity)
	setIf(&profile.UncertaintyAvoidance, p.UncertaintyAvoidance)
	setIf(&profile.LongTermOrientation, p.LongTermOrientation)
	setIf(&profile.Indulgence, p.Indulgence)
	setIf(&profile.PrimaryLanguage, p.PrimaryLanguage)
	setIf(&profile.RegionalLanguage, p.RegionalLanguage)
	setIf(&profile.EnglishExposureLevel, p.EnglishExposureLevel)
	setIf(&profile.PrefersIndirectFeedback, p.PrefersIndirectFeedback)
	setIf(&profile.PrefersGroupActivities, p.PrefersGroupActivities)
	setIf(&profile.ReligiousConsiderations, p.ReligiousConsiderations)
	return nil
}

func (s *CulturalService) CreateProfile(ctx context.Context, userID string, p CulturalProfilePatch) (*models.CulturalProfile, error) {
	profile := models.NewCulturalProfile(userID)
	if err := p.apply(profile); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCulturalProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.invalidateScenarios(ctx, userID)
	return profile, nil
}

func (s *CulturalService) UpdateProfile(ctx context.Context, profile *models.CulturalProfile, p CulturalProfilePatch) error {
	if err := p.apply(profile); err != nil {
		return err
	}
	if err := s.repo.SaveCulturalProfile(ctx, profile); err != nil {
		return err
	}
	s.invalidateScenarios(ctx, profile.UserID)
	return nil
}

type CalibrationResponses struct {
	PrefersHierarchy   bool `json:"prefers_hierarchy"`
	ValuesGroupSuccess bool `json:"values_group_success"`
	PrefersCompetition bool `json:"prefers_competition"`
	LikesStructure     bool `json:"likes_structure"`
	PlansLongTerm      bool `json:"plans_long_term"`
	ValuesFreedom      bool `json:"values_freedom"`
}

func nudge(index *int, apply bool, delta int) {
	if apply {
		*index = int(clamp(float64(*index+delta), 0, 100))
	}
}

// calibrate shifts the Hofstede indices by 10 points for each affirmed statement.
func calibrate(profile *models.CulturalProfile, r CalibrationResponses) {
	nudge(&profile.PowerDistance, r.PrefersHierarchy, 10)
	nudge(&profile.Individualism, r.ValuesGroupSuccess, -10)
	nudge(&profile.Masculinity, r.PrefersCompetition, 10)
	nudge(&profile.UncertaintyAvoidance, r.LikesStructure, 10)
	nudge(&profile.LongTermOrientation, r.PlansLongTerm, 10)
	nudge(&profile.Indulgence, r.ValuesFreedom, 10)
}

func (s *CulturalService) Calibrate(ctx context.Context, profile *models.CulturalProfile, r CalibrationResponses) error {
	calibrate(profile, r)
	return s.repo.SaveCulturalProfile(ctx, profile)
}

// maxDifficultyFor caps scenario difficulty by English exposure. Zero means no cap.
func maxDifficultyFor(exposure string) int {
	switch exposure {
	case "none", "minimal":
		return 2
	case "moderate":
		return 3
	}
	return 0
}

// pickRecommended keeps scenarios for the region and takes the first of each context type.
func pickRecommended(scenarios []models.CulturalScenario, region string) []models.CulturalScenario {
	seen := map[string]bool{}
	out := []models.CulturalScenario{}
	for _, sc := range scenarios {
		if len(sc.RelevantRegions) > 0 && !slices.Contains(sc.RelevantRegions, region) {
			continue
		}
		if seen[sc.ContextType] {
			continue
		}
		seen[sc.ContextType] = true
		out = append(out, sc)
		if len(out) == recommendedScenarios {
			break
		}
	}
	return out
}

func scenariosKey(userID string) string {
	return cache.PrefixScenarios + userID
}

func (s *CulturalService) invalidateScenarios(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, scenariosKey(userID)); err != nil {
		slog.Warn("Failed to invalidate scenario cache", "user_id", userID, "error", err)
	}
}

// Recommended returns up to five scenarios suited to the learner, cached per user.
func (s *CulturalService) Recommended(ctx context.Context, userID string) ([]models.CulturalScenario, error) {
	if s.cache != nil {
		var cached []models.CulturalScenario
		err := s.cache.GetJSON(ctx, scenariosKey(userID), &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("Scenario cache read failed", "user_id", userID, "error", err)
		}
	}

	profile, err := s.repo.GetCulturalProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var result []models.CulturalScenario
	if profile == nil {
		scenarios, err := s.repo.ListScenarios(ctx, repository.ScenarioFilter{MaxDifficulty: 2})
		if err != nil {
			return nil, err
		}
		result = scenarios[:min(recommendedScenarios, len(scenarios))]
	} else {
		scenarios, err := s.repo.ListScenarios(ctx, repository.ScenarioFilter{MaxDifficulty: maxDifficultyFor(profile.EnglishExposureLevel)})
		if err != nil {
			return nil, err
		}
		result = pickRecommended(scenarios, profile.Region)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, scenariosKey(userID), result, scenarioCacheTTL); err != nil {
			slog.Warn("Scenario cache write failed", "user_id", userID, "error", err)
		}
	}
	return result, nil
}

type ScenarioTips struct {
	ScenarioID             string         `json:"scenario_id"`
	CulturalConsiderations []string       `json:"cultural_considerations"`
	LanguageTips           []string       `json:"language_tips"`
	BehavioralGuidelines   []string       `json:"behavioral_guidelines"`
	CulturalNotes          map[string]any `json:"cultural_notes"`
}

func scenarioTips(sc *models.CulturalScenario) ScenarioTips {
	tips := ScenarioTips{
		ScenarioID:             sc.ID,
		CulturalConsiderations: []string{},
		LanguageTips:           []string{},
		BehavioralGuidelines:   []string{},
		CulturalNotes:          sc.CulturalNotes,
	}
	if sc.InvolvesHierarchy {
		tips.CulturalConsiderations = append(tips.CulturalConsiderations, "Remember to show respect to authority figures using appropriate titles")
	}
	if sc.InvolvesFaceSaving {
		tips.CulturalConsiderations = append(tips.CulturalConsiderations, "Avoid direct criticism; use indirect language to maintain harmony")
		tips.LanguageTips = append(tips.LanguageTips, "Pay attention to implied meanings and non-verbal cues")
	}
	if sc.InvolvesGroupDynamics {
		tips.BehavioralGuidelines = append(tips.BehavioralGuidelines, "Prioritize group consensus over individual opinions")
	}
	if sc.InvolvesReligious {
		tips.BehavioralGuidelines = append(tips.BehavioralGuidelines, "Be mindful of prayer times and religious customs")
	}
	switch sc.ContextType {
	case "formal_business":
		tips.LanguageTips = append(tips.LanguageTips, "Use formal pronouns and business vocabulary")
	case "marketplace":
		tips.BehavioralGuidelines = append(tips.BehavioralGuidelines, "Bargaining is expected and part of the culture")
	case "academic":
		tips.LanguageTips = append(tips.LanguageTips, "Address lecturers with their academic title")
	}
	if tips.CulturalNotes == nil {
		tips.CulturalNotes = map[string]any{}
	}
	return tips
}

func (s *CulturalService) userLevel(ctx context.Context, userID string) int {
	level, _, err := s.repo.GetOrCreateUserLevel(ctx, userID)
	if err != nil || level == nil {
		return 1
	}
	return level.CurrentLevel
}

// ListTemplates returns active templates of feedbackType that fit the user's level.
func (s *CulturalService) ListTemplates(ctx context.Context, userID, feedbackType string) ([]models.CulturalFeedbackTemplate, error) {
	return s.repo.ListFeedbackTemplates(ctx, feedbackType, s.userLevel(ctx, userID))
}

type GenerateFeedbackRequest struct {
	FeedbackType     string  `json:"feedback_type"`
	UserLevel        int     `json:"user_level"`
	PerformanceScore float64 `json:"performance_score"`
}

func (r GenerateFeedbackRequest) validate() error {
	if !slices.Contains(feedbackTypes, r.FeedbackType) {
		return invalid("Invalid feedback_type: %s", r.FeedbackType)
	}
	if r.UserLevel < 1 {
		return invalid("user_level must be at least 1")
	}
	if r.PerformanceScore < 0 || r.PerformanceScore > 100 {
		return invalid("performance_score must be between 0 and 100")
	}
	return nil
}

type GeneratedFeedback struct {
	Feedback              string `json:"feedback"`
	TemplateID            string `json:"template_id"`
	Language              string `json:"language"`
	UsesIndirectLanguage  bool   `json:"uses_indirect_language"`
	IncludesEncouragement bool   `json:"includes_encouragement"`
}

// templateVariant picks the template text for a feedback language. Adaptive switches to
// English once the learner scores 70 or more.
func templateVariant(t models.CulturalFeedbackTemplate, language string, score float64) (string, string) {
	switch language {
	case "english":
		return t.TemplateEnglish, language
	case "indonesian":
		return t.TemplateIndonesian, language
	case "adaptive":
		if score >= 70 {
			return t.TemplateEnglish, "english"
		}
	}
	return t.TemplateMixed, "mixed"
}

func fillTemplate(text string, score float64, level int) string {
	return strings.NewReplacer(
		"{score}", strconv.FormatFloat(score, 'f', -1, 64),
		"{level}", strconv.Itoa(level),
		"{improvement}", strconv.FormatFloat(100-score, 'f', -1, 64),
	).Replace(text)
}

func (s *CulturalService) GenerateFeedback(ctx context.Context, userID string, req GenerateFeedbackRequest) (*GeneratedFeedback, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	templates, err := s.repo.ListFeedbackTemplates(ctx, req.FeedbackType, req.UserLevel)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, ErrNotFound
	}
	t := templates[rand.IntN(len(templates))]

	language := "mixed"
	pref, err := s.repo.GetAdaptationPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref != nil && pref.FeedbackLanguage != "" {
		language = pref.FeedbackLanguage
	}
	text, used := templateVariant(t, language, req.PerformanceScore)
	return &GeneratedFeedback{
		Feedback:              fillTemplate(text, req.PerformanceScore, req.UserLevel),
		TemplateID:            t.ID,
		Language:              used,
		UsesIndirectLanguage:  t.IsIndirect,
		IncludesEncouragement: t.IncludesEncouragement,
	}, nil
}

type InterferenceMatch struct {
	Pattern     string `json:"pattern"`
	Error       string `json:"error"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
	Type        string `json:"type"`
}

func findInterference(text string, mappings []models.IndonesianEnglishMapping) []InterferenceMatch {
	lower := strings.ToLower(text)
	found := []InterferenceMatch{}
	for _, m := range mappings {
		if m.CommonError == "" || !strings.Contains(lower, strings.ToLower(m.CommonError)) {
			continue
		}
		found = append(found, InterferenceMatch{
			Pattern:     m.IndonesianPattern,
			Error:       m.CommonError,
			Correction:  m.CorrectForm,
			Explanation: m.Explanation,
			Type:        m.InterferenceType,
		})
	}
	return found
}

func (s *CulturalService) CheckInterference(ctx context.Context, text string) ([]InterferenceMatch, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("Text is required")
	}
	mappings, err := s.repo.ListLanguageMappings(ctx, "", 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return findInterference(text, mappings), nil
}

// PreferencePatch carries the editable adaptation preferences.
type PreferencePatch struct {
	UseBilingualSupport *bool    `json:"use_bilingual_support"`
	UseLocalExamples    *bool    `json:"use_local_examples"`
	ReligiousNeutral    *bool    `json:"religious_neutral"`
	FeedbackLanguage    *string  `json:"feedback_language"`
	FeedbackFormality   *string  `json:"feedback_formality"`
	ShowAchievements    *bool    `json:"show_achievements"`
	EnableCompetition   *bool    `json:"enable_competition"`
	VisualLearner       *float64 `json:"visual_learner"`
	AuditoryLearner     *float64 `json:"auditory_learner"`
	KinestheticLearner  *float64 `json:"kinesthetic_learner"`
}

func (p PreferencePatch) apply(pref *models.CulturalAdaptationPreference) error {
	if p.FeedbackLanguage != nil && !slices.Contains(feedbackLanguages, *p.FeedbackLanguage) {
		return invalid("Invalid feedback_language: %s", *p.FeedbackLanguage)
	}
	for _, v := range []*float64{p.VisualLearner, p.AuditoryLearner, p.KinestheticLearner} {
		if v != nil && (*v < 0 || *v > 1) {
			return invalid("Learner scores must be between 0 and 1")
		}
	}
	setIf(&pref.UseBilingualSupport, p.UseBilingualSupport)
	setIf(&pref.UseLocalExamples, p.UseLocalExamples)
	setIf(&pref.ReligiousNeutral, p.ReligiousNeutral)
	setIf(&pref.FeedbackLanguage, p.FeedbackLanguage)
	setIf(&pref.FeedbackFormality, p.FeedbackFormality)
	setIf(&pref.ShowAchievements, p.ShowAchievements)
	setIf(&pref.EnableCompetition, p.EnableCompetition)
	setIf(&pref.VisualLearner, p.VisualLearner)
	setIf(&pref.AuditoryLearner, p.AuditoryLearner)
	setIf(&pref.KinestheticLearner, p.KinestheticLearner)
	return nil
}

func newAdaptationPreference(userID string) *models.CulturalAdaptationPreference {
	return &models.CulturalAdaptationPreference{
		UserID:              userID,
		UseBilingualSupport: true,
		UseLocalExamples:    true,
		FeedbackLanguage:    "mixed",
		FeedbackFormality:   "polite",
		ShowAchievements:    true,
		VisualLearner:       0.5,
		AuditoryLearner:     0.5,
		KinestheticLearner:  0.5,
	}
}

func (s *CulturalService) UpdatePreferences(ctx context.Context, userID string, p PreferencePatch) (*models.CulturalAdaptationPreference, error) {
	pref, err := s.repo.GetAdaptationPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = newAdaptationPreference(userID)
	}
	if err := p.apply(pref); err != nil {
		return nil, err
	}
	if err := s.repo.SaveAdaptationPreference(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

type LearningStyleRequest struct {
	Visual      *float64 `json:"visual"`
	Auditory    *float64 `json:"auditory"`
	Kinesthetic *float64 `json:"kinesthetic"`
}

// normalizeStyle fills defaults and scales the three scores to sum to 1.
func normalizeStyle(req LearningStyleRequest) (visual, auditory, kinesthetic float64, err error) {
	visual, auditory, kinesthetic = 0.33, 0.33, 0.34
	setIf(&visual, req.Visual)
	setIf(&auditory, req.Auditory)
	setIf(&kinesthetic, req.Kinesthetic)
	if visual < 0 || auditory < 0 || kinesthetic < 0 {
		return 0, 0, 0, invalid("Learning style scores must not be negative")
	}
	if total := visual + auditory + kinesthetic; total > 0 {
		visual, auditory, kinesthetic = visual/total, auditory/total, kinesthetic/total
	}
	return visual, auditory, kinesthetic, nil
}

func (s *CulturalService) UpdateLearningStyle(ctx context.Context, userID string, req LearningStyleRequest) (*models.CulturalAdaptationPreference, error) {
	visual, auditory, kinesthetic, err := normalizeStyle(req)
	if err != nil {
		return nil, err
	}
	return s.UpdatePreferences(ctx, userID, PreferencePatch{
		VisualLearner:      &visual,
		AuditoryLearner:    &auditory,
		KinestheticLearner: &kinesthetic,
	})
}
