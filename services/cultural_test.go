package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/models"
)

func ptr[T any](v T) *T { return &v }

func TestRegionalInsight(t *testing.T) {
	assert.Equal(t, 70, regionalInsight("bali").PowerDistance)
	assert.Equal(t, "hierarchical", regionalInsight("west_java").LearningPreference)
	assert.Equal(t, regionalInsights["jakarta"], regionalInsight("papua"))
}

func TestCulturalProfilePatchApply(t *testing.T) {
	profile := models.NewCulturalProfile("u1")
	err := CulturalProfilePatch{
		Region:               ptr("bali"),
		PowerDistance:        ptr(55),
		EnglishExposureLevel: ptr("daily"),
	}.apply(profile)
	require.NoError(t, err)

	assert.Equal(t, "bali", profile.Region)
	assert.Equal(t, 55, profile.PowerDistance)
	assert.Equal(t, "daily", profile.EnglishExposureLevel)
	assert.Equal(t, 14, profile.Individualism, "untouched fields keep their value")
}

func TestCulturalProfilePatchRejects(t *testing.T) {
	tests := []struct {
		name  string
		patch CulturalProfilePatch
	}{
		{"unknown region", CulturalProfilePatch{Region: ptr("atlantis")}},
		{"bad urban_rural", CulturalProfilePatch{UrbanRural: ptr("suburban")}},
		{"bad exposure", CulturalProfilePatch{EnglishExposureLevel: ptr("sometimes")}},
		{"index above 100", CulturalProfilePatch{Masculinity: ptr(101)}},
		{"negative index", CulturalProfilePatch{Indulgence: ptr(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := models.NewCulturalProfile("u1")
			before := *profile

			var ve *ValidationError
			assert.ErrorAs(t, tt.patch.apply(profile), &ve)
			assert.Equal(t, before, *profile)
		})
	}
}

func TestCalibrate(t *testing.T) {
	profile := &models.CulturalProfile{
		PowerDistance:        95,
		Individualism:        5,
		Masculinity:          40,
		UncertaintyAvoidance: 50,
		LongTermOrientation:  60,
		Indulgence:           30,
	}
	calibrate(profile, CalibrationResponses{
		PrefersHierarchy:   true,
		ValuesGroupSuccess: true,
		LikesStructure:     true,
	})

	assert.Equal(t, 100, profile.PowerDistance)
	assert.Equal(t, 0, profile.Individualism)
	assert.Equal(t, 40, profile.Masculinity)
	assert.Equal(t, 60, profile.UncertaintyAvoidance)
	assert.Equal(t, 60, profile.LongTermOrientation)
	assert.Equal(t, 30, profile.Indulgence)
}

func TestMaxDifficultyFor(t *testing.T) {
	assert.Equal(t, 2, maxDifficultyFor("none"))
	assert.Equal(t, 2, maxDifficultyFor("minimal"))
	assert.Equal(t, 3, maxDifficultyFor("moderate"))
	assert.Equal(t, 0, maxDifficultyFor("daily"))
}

func TestPickRecommended(t *testing.T) {
	sc := func(id, context string, regions ...string) models.CulturalScenario {
		return models.CulturalScenario{ID: id, ContextType: context, RelevantRegions: regions}
	}
	scenarios := []models.CulturalScenario{
		sc("1", "family"),
		sc("2", "family"),
		sc("3", "marketplace", "bali"),
		sc("4", "academic", "jakarta"),
		sc("5", "religious"),
		sc("6", "social"),
		sc("7", "healthcare"),
		sc("8", "formal_business"),
	}

	var ids []string
	for _, s := range pickRecommended(scenarios, "jakarta") {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"1", "4", "5", "6", "7"}, ids)

	assert.Empty(t, pickRecommended(nil, "bali"))
	assert.NotNil(t, pickRecommended(nil, "bali"))
}

func TestScenarioTips(t *testing.T) {
	tips := scenarioTips(&models.CulturalScenario{
		ID:                 "s1",
		ContextType:        "marketplace",
		InvolvesHierarchy:  true,
		InvolvesFaceSaving: true,
	})

	assert.Equal(t, "s1", tips.ScenarioID)
	assert.Len(t, tips.CulturalConsiderations, 2)
	assert.Equal(t, []string{"Pay attention to implied meanings and non-verbal cues"}, tips.LanguageTips)
	assert.Equal(t, []string{"Bargaining is expected and part of the culture"}, tips.BehavioralGuidelines)
	assert.NotNil(t, tips.CulturalNotes)
}

func TestScenarioTipsPlain(t *testing.T) {
	tips := scenarioTips(&models.CulturalScenario{ID: "s2", ContextType: "family"})
	assert.Empty(t, tips.CulturalConsiderations)
	assert.Empty(t, tips.LanguageTips)
	assert.Empty(t, tips.BehavioralGuidelines)
	assert.Equal(t, map[string]any{}, tips.CulturalNotes)
}

func TestTemplateVariant(t *testing.T) {
	tmpl := models.CulturalFeedbackTemplate{
		TemplateEnglish:    "en",
		TemplateIndonesian: "id",
		TemplateMixed:      "mix",
	}
	tests := []struct {
		language string
		score    float64
		text     string
		used     string
	}{
		{"english", 10, "en", "english"},
		{"indonesian", 90, "id", "indonesian"},
		{"adaptive", 70, "en", "english"},
		{"adaptive", 69.9, "mix", "mixed"},
		{"mixed", 99, "mix", "mixed"},
		{"", 50, "mix", "mixed"},
	}
	for _, tt := range tests {
		text, used := templateVariant(tmpl, tt.language, tt.score)
		assert.Equal(t, tt.text, text, "%s/%v", tt.language, tt.score)
		assert.Equal(t, tt.used, used, "%s/%v", tt.language, tt.score)
	}
}

func TestFillTemplate(t *testing.T) {
	got := fillTemplate("Score {score} at level {level}, {improvement} to go", 72.5, 3)
	assert.Equal(t, "Score 72.5 at level 3, 27.5 to go", got)
	assert.Equal(t, "no placeholders", fillTemplate("no placeholders", 50, 1))
}

func TestGenerateFeedbackRequestValidate(t *testing.T) {
	assert.NoError(t, GenerateFeedbackRequest{FeedbackType: "praise", UserLevel: 1, PerformanceScore: 80}.validate())

	var ve *ValidationError
	assert.ErrorAs(t, GenerateFeedbackRequest{FeedbackType: "rant", UserLevel: 1}.validate(), &ve)
	assert.ErrorAs(t, GenerateFeedbackRequest{FeedbackType: "praise", UserLevel: 0}.validate(), &ve)
	assert.ErrorAs(t, GenerateFeedbackRequest{FeedbackType: "praise", UserLevel: 2, PerformanceScore: 120}.validate(), &ve)
}

func TestFindInterference(t *testing.T) {
	mappings := []models.IndonesianEnglishMapping{
		{IndonesianPattern: "Saya sudah makan", CommonError: "I already eat", CorrectForm: "I have already eaten", InterferenceType: "grammar"},
		{IndonesianPattern: "th", CommonError: "tink", CorrectForm: "think", InterferenceType: "pronunciation"},
		{IndonesianPattern: "empty", CommonError: ""},
	}

	found := findInterference("Yesterday I ALREADY EAT rice, I tink so", mappings)
	require.Len(t, found, 2)
	assert.Equal(t, "I have already eaten", found[0].Correction)
	assert.Equal(t, "pronunciation", found[1].Type)

	none := findInterference("Everything is correct", mappings)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestPreferencePatchApply(t *testing.T) {
	pref := newAdaptationPreference("u1")
	require.NoError(t, PreferencePatch{FeedbackLanguage: ptr("adaptive"), VisualLearner: ptr(0.8)}.apply(pref))
	assert.Equal(t, "adaptive", pref.FeedbackLanguage)
	assert.Equal(t, 0.8, pref.VisualLearner)
	assert.Equal(t, "polite", pref.FeedbackFormality)

	var ve *ValidationError
	assert.ErrorAs(t, PreferencePatch{FeedbackLanguage: ptr("klingon")}.apply(pref), &ve)
	assert.ErrorAs(t, PreferencePatch{AuditoryLearner: ptr(1.5)}.apply(pref), &ve)
}

func TestNormalizeStyle(t *testing.T) {
	v, a, k, err := normalizeStyle(LearningStyleRequest{})
	require.NoError(t, err)
	assert.InDelta(t, 0.33, v, 1e-9)
	assert.InDelta(t, 0.33, a, 1e-9)
	assert.InDelta(t, 0.34, k, 1e-9)

	v, a, k, err = normalizeStyle(LearningStyleRequest{Visual: ptr(2.0), Auditory: ptr(1.0), Kinesthetic: ptr(1.0)})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)
	assert.InDelta(t, 0.25, a, 1e-9)
	assert.InDelta(t, 0.25, k, 1e-9)

	v, a, k, err = normalizeStyle(LearningStyleRequest{Visual: ptr(0.0), Auditory: ptr(0.0), Kinesthetic: ptr(0.0)})
	require.NoError(t, err)
	assert.Zero(t, v+a+k)

	_, _, _, err = normalizeStyle(LearningStyleRequest{Auditory: ptr(-0.1)})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
