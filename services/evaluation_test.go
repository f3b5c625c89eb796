package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/models"
)

func TestParseEvaluation(t *testing.T) {
	raw := "```json\n" + `{"score": 82.46, "issues": ["Dropped final s"], "suggestions": [{"suggestion": "Stress the plural"}, "  "], "details": {"stressed": 1}}` + "\n```"
	ev := parseEvaluation(raw)

	assert.Equal(t, 82.5, ev.Score)
	assert.Equal(t, []string{"Dropped final s"}, ev.Issues)
	assert.Equal(t, []string{"Stress the plural"}, ev.Suggestions)
	assert.Equal(t, map[string]any{"stressed": 1.0}, ev.Details)
	assert.Nil(t, ev.CulturalNotes)
}

func TestParseEvaluationCoercesScore(t *testing.T) {
	assert.Equal(t, 75.0, parseEvaluation(`{"score": "75"}`).Score)
	assert.Equal(t, 100.0, parseEvaluation(`{"score": 130}`).Score)
	assert.Equal(t, 0.0, parseEvaluation(`{"score": -4}`).Score)

	ev := parseEvaluation(`{"score": 60, "cultural_notes": ["Use Bapak for older men"]}`)
	assert.Equal(t, []string{"Use Bapak for older men"}, ev.CulturalNotes)
	assert.Empty(t, ev.Issues)
	assert.NotNil(t, ev.Issues)
}

func TestParseEvaluationFallback(t *testing.T) {
	for _, raw := range []string{
		"I could not evaluate this",
		`{"issues": []}`,
		`[1, 2, 3]`,
		`{"score": "high"}`,
		"",
	} {
		assert.Equal(t, fallbackEvaluation(), parseEvaluation(raw), "raw %q", raw)
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
}

func TestWordsPerMinute(t *testing.T) {
	assert.Equal(t, 120, wordsPerMinute("one two three four five six", 3))
	assert.Equal(t, 0, wordsPerMinute("one two", 0))
	assert.Equal(t, 0, wordsPerMinute("", 10))
}

func TestEvaluationInputNormalize(t *testing.T) {
	in := EvaluationInput{Transcription: "  I go to market yesterday  "}
	require.NoError(t, in.normalize())
	assert.Equal(t, "I go to market yesterday", in.Transcription)
	assert.Equal(t, "General conversation", in.Scenario)
	assert.Equal(t, "intermediate", in.UserLevel)

	empty := EvaluationInput{Transcription: "   "}
	var ve *ValidationError
	assert.ErrorAs(t, empty.normalize(), &ve)
}

func TestSkillPrompt(t *testing.T) {
	in := EvaluationInput{Transcription: "I already eat", Duration: 12, Scenario: "Ordering food", UserLevel: "beginner"}

	for _, skill := range append(coreSkills, SkillCultural) {
		prompt, err := skillPrompt(skill, in)
		require.NoError(t, err, skill)
		assert.Contains(t, prompt, "I already eat")
		assert.Contains(t, prompt, evaluationContract)
	}

	prompt, err := skillPrompt(SkillFluency, in)
	require.NoError(t, err)
	assert.Contains(t, prompt, "12 seconds")

	_, err = skillPrompt("listening", in)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func skillEval(score float64, suggestions ...string) *SkillEvaluation {
	return &SkillEvaluation{Score: score, Issues: []string{}, Suggestions: suggestions}
}

func TestComprehensiveFeedback(t *testing.T) {
	e := &SpeechEvaluation{
		Pronunciation: skillEval(85),
		Grammar:       skillEval(60, "Use the past tense for yesterday"),
		Fluency:       skillEval(72, "Slow down a little"),
		Vocabulary:    skillEval(90),
	}
	pref := &models.LearningPreference{ImmediateCorrection: true, VisualLearning: 8}

	fb := comprehensiveFeedback(e, pref)

	assert.Equal(t, 76.8, fb.OverallScore)
	assert.Equal(t, 60.0, fb.GrammarScore)
	assert.Equal(t, []string{"Strong pronunciation", "Strong vocabulary"}, fb.Strengths)
	assert.Equal(t, []string{"Use the past tense for yesterday"}, fb.AreasForImprovement)
	assert.Equal(t, []string{
		"Use the past tense for yesterday",
		"Slow down a little",
		"Practice with immediate error correction exercises",
		"Use visual aids and diagrams for grammar patterns",
	}, fb.PersonalizedRecommendations)
	assert.Equal(t, "Focus on improving grammar in your next session", fb.NextPracticeFocus)
	assert.Equal(t, "Good job! Keep practicing to reach the next level!", fb.MotivationalMessage)
	assert.Nil(t, fb.CulturalScore)
}

func TestComprehensiveFeedbackDefaults(t *testing.T) {
	e := &SpeechEvaluation{
		Pronunciation: skillEval(70),
		Grammar:       skillEval(70),
		Fluency:       skillEval(70),
		Vocabulary:    skillEval(70),
		Cultural:      skillEval(40, "Address your host as Bapak"),
	}

	fb := comprehensiveFeedback(e, nil)

	assert.Equal(t, 64.0, fb.OverallScore)
	assert.Equal(t, []string{"Consistent effort across all areas"}, fb.Strengths)
	assert.Equal(t, []string{"Continue practicing regularly"}, fb.AreasForImprovement)
	assert.Equal(t, []string{}, fb.PersonalizedRecommendations)
	assert.Equal(t, "Focus on improving pronunciation in your next session", fb.NextPracticeFocus)
	require.NotNil(t, fb.CulturalScore)
	assert.Equal(t, 40.0, *fb.CulturalScore)
	assert.Equal(t, []string{"Address your host as Bapak"}, fb.CulturalInsights)
}

func TestFeedbackSeverity(t *testing.T) {
	assert.Equal(t, "info", feedbackSeverity(80))
	assert.Equal(t, "minor", feedbackSeverity(70))
	assert.Equal(t, "moderate", feedbackSeverity(55))
	assert.Equal(t, "major", feedbackSeverity(54.9))
}

func TestMotivationalMessage(t *testing.T) {
	assert.Contains(t, motivationalMessage(90), "Excellent")
	assert.Contains(t, motivationalMessage(60), "improving")
	assert.Contains(t, motivationalMessage(10), "Keep going")
}

func TestFeedbackRows(t *testing.T) {
	e := &SpeechEvaluation{
		Pronunciation: skillEval(90),
		Grammar: &SkillEvaluation{
			Score:       60,
			Issues:      []string{"Missing article"},
			Suggestions: []string{"Say a book", "Check plural forms"},
		},
		Fluency:    skillEval(75),
		Vocabulary: skillEval(80),
		Cultural:   skillEval(85, "Good use of Bapak"),
	}

	rows := feedbackRows("s1", e)
	require.Len(t, rows, 3)

	assert.Equal(t, "grammar", rows[0].FeedbackType)
	assert.Equal(t, "Missing article", rows[0].Message)
	assert.Equal(t, "moderate", rows[0].Severity)
	assert.Equal(t, "Grammar feedback", rows[1].Message)
	assert.Equal(t, "Check plural forms", rows[1].Suggestion)
	assert.Equal(t, "cultural", rows[2].FeedbackType)
	assert.Equal(t, "info", rows[2].Severity)
	assert.Equal(t, "s1", rows[2].SessionID)
}

func TestAnalyzeProgress(t *testing.T) {
	session := func(pron, gram, flu, vocab, overall float64) models.PracticeSession {
		return models.PracticeSession{PronunciationScore: pron, GrammarScore: gram, FluencyScore: flu, VocabularyScore: vocab, OverallScore: overall}
	}
	a := analyzeProgress([]models.PracticeSession{
		session(60, 85, 80, 70, 50),
		session(60, 85, 80, 70, 50),
		session(70, 85, 70, 72, 60),
		session(70, 85, 70, 72, 60),
	})

	assert.Equal(t, 4, a.SessionsAnalyzed)
	assert.Equal(t, SkillTrend{Average: 65, Change: 10, Trend: "improving"}, a.SkillTrends[SkillPronunciation])
	assert.Equal(t, "stable", a.SkillTrends[SkillGrammar].Trend)
	assert.Equal(t, "declining", a.SkillTrends[SkillFluency].Trend)
	assert.Equal(t, "stable", a.SkillTrends[SkillVocabulary].Trend)
	assert.Equal(t, 20.0, a.OverallImprovement)
	assert.Equal(t, []string{SkillGrammar}, a.Strengths)
	assert.Equal(t, []string{SkillPronunciation}, a.FocusAreas)
	assert.Len(t, a.Recommendations, 2)
}

func TestAnalyzeProgressSingleSession(t *testing.T) {
	a := analyzeProgress([]models.PracticeSession{{PronunciationScore: 75, GrammarScore: 75, FluencyScore: 75, VocabularyScore: 75, OverallScore: 75}})
	for _, trend := range a.SkillTrends {
		assert.Equal(t, "stable", trend.Trend)
	}
	assert.Equal(t, 0.0, a.OverallImprovement)
	assert.Equal(t, []string{"Try more challenging scenarios to keep improving"}, a.Recommendations)
}

func TestEvaluateWithoutAI(t *testing.T) {
	svc := NewEvaluationService(nil, nil)

	_, err := svc.Evaluate(context.Background(), "u1", EvaluationInput{Transcription: "Hello"})
	assert.ErrorIs(t, err, ErrAIUnavailable)

	_, err = svc.Evaluate(context.Background(), "u1", EvaluationInput{})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.EvaluateOne(context.Background(), SkillGrammar, EvaluationInput{Transcription: "Hello"})
	assert.ErrorIs(t, err, ErrAIUnavailable)
}

func TestToMap(t *testing.T) {
	m := toMap(&ComprehensiveFeedback{OverallScore: 70, Strengths: []string{"x"}})
	assert.Equal(t, 70.0, m["overall_score"])
	assert.Equal(t, []any{"x"}, m["strengths"])
	assert.NotContains(t, m, "cultural_score")
}
