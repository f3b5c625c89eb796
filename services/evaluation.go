package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
	"golang.org/x/sync/errgroup"
)

const (
	SkillPronunciation = "pronunciation"
	SkillGrammar       = "grammar"
	SkillFluency       = "fluency"
	SkillVocabulary    = "vocabulary"
	SkillCultural      = "cultural"

	fallbackScore = 50
)

var coreSkills = []string{SkillPronunciation, SkillGrammar, SkillFluency, SkillVocabulary}

const evaluatorInstruction = "You are a patient English speaking coach for Indonesian learners. " +
	"Be specific and encouraging, and keep every suggestion to one sentence."

const evaluationContract = `Respond with JSON only, shaped as {"score": <number 0-100>, "issues": [<string>], "suggestions": [<string>], "details": {}}.`

type EvaluationInput struct {
	Transcription string  `json:"transcription"`
	Duration      float64 `json:"duration"`
	Scenario      string  `json:"scenario"`
	UserLevel     string  `json:"user_level"`
	Context       string  `json:"context"`
	SessionID     string  `json:"session_id"`
}

func (in *EvaluationInput) normalize() error {
	in.Transcription = strings.TrimSpace(in.Transcription)
	if in.Transcription == "" {
		return invalid("Transcription is required")
	}
	if in.Scenario == "" {
		in.Scenario = "General conversation"
	}
	if in.UserLevel == "" {
		in.UserLevel = "intermediate"
	}
	return nil
}

type SkillEvaluation struct {
	Score          float64        `json:"score"`
	Issues         []string       `json:"issues"`
	Suggestions    []string       `json:"suggestions"`
	Details        map[string]any `json:"details"`
	CulturalNotes  []string       `json:"cultural_notes,omitempty"`
	WordsPerMinute *int           `json:"words_per_minute,omitempty"`
}

func fallbackEvaluation() SkillEvaluation {
	return SkillEvaluation{
		Score:       fallbackScore,
		Issues:      []string{},
		Suggestions: []string{},
		Details:     map[string]any{},
	}
}

func skillPrompt(skill string, in EvaluationInput) (string, error) {
	var b strings.Builder
	switch skill {
	case SkillPronunciation:
		fmt.Fprintf(&b, "Analyse the likely pronunciation problems in this transcribed speech from a %s learner.\n\nText: %s\n\n", in.UserLevel, in.Transcription)
		b.WriteString("Look for errors typical of Indonesian speakers, word stress, intonation and the phonemes that need practice.")
	case SkillGrammar:
		ctx := in.Context
		if ctx == "" {
			ctx = "General conversation"
		}
		fmt.Fprintf(&b, "Analyse the grammar in this transcribed speech from a %s learner.\n\nText: %s\nContext: %s\n\n", in.UserLevel, in.Transcription, ctx)
		b.WriteString("List errors with corrections, sentence structure problems, tense consistency and subject-verb agreement.")
	case SkillFluency:
		fmt.Fprintf(&b, "Judge the fluency of this transcribed speech from a %s learner, spoken over %.0f seconds.\n\nText: %s\n\n", in.UserLevel, in.Duration, in.Transcription)
		b.WriteString("Consider hesitations, repetitions, self-corrections and how smoothly ideas connect.")
	case SkillVocabulary:
		fmt.Fprintf(&b, "Analyse the vocabulary in this transcribed speech from a %s learner.\n\nText: %s\nTopic: %s\n\n", in.UserLevel, in.Transcription, in.Scenario)
		b.WriteString("Evaluate range and variety, word choice, collocations and topic vocabulary.")
	case SkillCultural:
		fmt.Fprintf(&b, "Analyse the cultural appropriateness of this speech from an Indonesian speaker.\n\nText: %s\nScenario: %s\n\n", in.Transcription, in.Scenario)
		b.WriteString("Consider formality, politeness strategies and cultural sensitivity. Also return a cultural_notes array of short observations.")
	default:
		return "", invalid("Unknown skill: %s", skill)
	}
	b.WriteString("\n\n")
	b.WriteString(evaluationContract)
	return b.String(), nil
}

// parseEvaluation reads a model reply. Anything without a numeric score becomes the fallback evaluation.
func parseEvaluation(raw string) SkillEvaluation {
	raw = stripCodeFence(raw)
	if !gjson.Valid(raw) {
		return fallbackEvaluation()
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return fallbackEvaluation()
	}
	scoreField := doc.Get("score")
	if !scoreField.Exists() {
		return fallbackEvaluation()
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(scoreField.String()), 64)
	if err != nil {
		return fallbackEvaluation()
	}

	eval := SkillEvaluation{
		Score:         round(clamp(score, 0, 100), 1),
		Issues:        stringList(doc.Get("issues")),
		Suggestions:   stringList(doc.Get("suggestions")),
		Details:       map[string]any{},
		CulturalNotes: stringList(doc.Get("cultural_notes")),
	}
	if d := doc.Get("details"); d.IsObject() {
		if m, ok := d.Value().(map[string]any); ok {
			eval.Details = m
		}
	}
	if len(eval.CulturalNotes) == 0 {
		eval.CulturalNotes = nil
	}
	return eval
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

// stringList flattens a JSON array of strings or objects carrying a text field.
func stringList(res gjson.Result) []string {
	out := []string{}
	if !res.IsArray() {
		return out
	}
	for _, item := range res.Array() {
		var s string
		switch {
		case item.Type == gjson.String:
			s = item.String()
		case item.IsObject():
			for _, key := range []string{"suggestion", "text", "message", "description", "issue"} {
				if v := item.Get(key); v.Exists() {
					s = v.String()
					break
				}
			}
		default:
			s = item.Raw
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func wordsPerMinute(text string, duration float64) int {
	if duration <= 0 {
		return 0
	}
	return int(float64(len(strings.Fields(text))) / duration * 60)
}

type SpeechEvaluation struct {
	Pronunciation         *SkillEvaluation       `json:"pronunciation"`
	Grammar               *SkillEvaluation       `json:"grammar"`
	Fluency               *SkillEvaluation       `json:"fluency"`
	Vocabulary            *SkillEvaluation       `json:"vocabulary"`
	Cultural              *SkillEvaluation       `json:"cultural,omitempty"`
	ComprehensiveFeedback *ComprehensiveFeedback `json:"comprehensive_feedback"`
}

func (e *SpeechEvaluation) core() []*SkillEvaluation {
	return []*SkillEvaluation{e.Pronunciation, e.Grammar, e.Fluency, e.Vocabulary}
}

func (e *SpeechEvaluation) set(skill string, eval *SkillEvaluation) {
	switch skill {
	case SkillPronunciation:
		e.Pronunciation = eval
	case SkillGrammar:
		e.Grammar = eval
	case SkillFluency:
		e.Fluency = eval
	case SkillVocabulary:
		e.Vocabulary = eval
	case SkillCultural:
		e.Cultural = eval
	}
}

type ComprehensiveFeedback struct {
	OverallScore                float64  `json:"overall_score"`
	PronunciationScore          float64  `json:"pronunciation_score"`
	GrammarScore                float64  `json:"grammar_score"`
	FluencyScore                float64  `json:"fluency_score"`
	VocabularyScore             float64  `json:"vocabulary_score"`
	Strengths                   []string `json:"strengths"`
	AreasForImprovement         []string `json:"areas_for_improvement"`
	PersonalizedRecommendations []string `json:"personalized_recommendations"`
	NextPracticeFocus           string   `json:"next_practice_focus"`
	MotivationalMessage         string   `json:"motivational_message"`
	CulturalScore               *float64 `json:"cultural_score,omitempty"`
	CulturalInsights            []string `json:"cultural_insights,omitempty"`
}

// comprehensiveFeedback composes the summary for a full evaluation. pref may be nil.
func comprehensiveFeedback(e *SpeechEvaluation, pref *models.LearningPreference) *ComprehensiveFeedback {
	core := e.core()
	scores := make([]float64, len(core))
	for i, ev := range core {
		scores[i] = ev.Score
	}
	all := scores
	if e.Cultural != nil {
		all = append(all[:len(all):len(all)], e.Cultural.Score)
	}
	overall := round(mean(all...), 1)

	fb := &ComprehensiveFeedback{
		OverallScore:        overall,
		PronunciationScore:  scores[0],
		GrammarScore:        scores[1],
		FluencyScore:        scores[2],
		VocabularyScore:     scores[3],
		Strengths:           []string{},
		AreasForImprovement: []string{},
		NextPracticeFocus:   fmt.Sprintf("Focus on improving %s in your next session", coreSkills[lowestIndex(scores)]),
		MotivationalMessage: motivationalMessage(overall),
	}

	for i, s := range scores {
		if s >= 80 {
			fb.Strengths = append(fb.Strengths, "Strong "+coreSkills[i])
		}
	}
	if len(fb.Strengths) == 0 {
		fb.Strengths = []string{"Consistent effort across all areas"}
	}

	var recs []string
	for _, ev := range core {
		if len(ev.Suggestions) == 0 {
			continue
		}
		if ev.Score < 70 && len(fb.AreasForImprovement) < 3 {
			fb.AreasForImprovement = append(fb.AreasForImprovement, ev.Suggestions[0])
		}
		recs = append(recs, ev.Suggestions[0])
	}
	if len(fb.AreasForImprovement) == 0 {
		fb.AreasForImprovement = []string{"Continue practicing regularly"}
	}
	if pref != nil {
		if pref.ImmediateCorrection {
			recs = append(recs, "Practice with immediate error correction exercises")
		}
		if pref.VisualLearning >= 7 {
			recs = append(recs, "Use visual aids and diagrams for grammar patterns")
		}
	}
	fb.PersonalizedRecommendations = recs[:min(5, len(recs))]
	if fb.PersonalizedRecommendations == nil {
		fb.PersonalizedRecommendations = []string{}
	}

	if e.Cultural != nil {
		score := e.Cultural.Score
		fb.CulturalScore = &score
		fb.CulturalInsights = e.Cultural.CulturalNotes
		if len(fb.CulturalInsights) == 0 {
			fb.CulturalInsights = e.Cultural.Suggestions
		}
	}
	return fb
}

// lowestIndex returns the index of the minimum, the first one on ties.
func lowestIndex(scores []float64) int {
	idx := 0
	for i, s := range scores {
		if s < scores[idx] {
			idx = i
		}
	}
	return idx
}

func motivationalMessage(score float64) string {
	switch {
	case score >= 85:
		return "Excellent work! You're making great progress!"
	case score >= 70:
		return "Good job! Keep practicing to reach the next level!"
	case score >= 55:
		return "You're improving! Stay consistent with your practice."
	}
	return "Keep going! Every practice session brings you closer to your goals."
}

func feedbackSeverity(score float64) string {
	switch {
	case score >= 80:
		return "info"
	case score >= 70:
		return "minor"
	case score >= 55:
		return "moderate"
	}
	return "major"
}

type EvaluationService struct {
	gemini *GeminiService
	repo   *repository.GORMRepository
}

func NewEvaluationService(gemini *GeminiService, repo *repository.GORMRepository) *EvaluationService {
	return &EvaluationService{gemini: gemini, repo: repo}
}

// Evaluate runs every skill evaluation concurrently. A provider failure on one
// skill degrades that skill to the fallback evaluation.
func (s *EvaluationService) Evaluate(ctx context.Context, userID string, in EvaluationInput) (*SpeechEvaluation, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if !s.gemini.Available() {
		return nil, ErrAIUnavailable
	}
	var session *models.PracticeSession
	if in.SessionID != "" {
		var err error
		session, err = s.repo.GetSession(ctx, in.SessionID, userID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrNotFound
		}
	}

	result := &SpeechEvaluation{}
	evals := make([]*SkillEvaluation, len(coreSkills)+1)
	skills := append(coreSkills[:len(coreSkills):len(coreSkills)], SkillCultural)
	g, gctx := errgroup.WithContext(ctx)
	for i, skill := range skills {
		g.Go(func() error {
			ev, err := s.gemini.EvaluateSkill(gctx, skill, in)
			if errors.Is(err, ErrAIProvider) {
				slog.Warn("Skill evaluation failed, using fallback", "skill", skill, "error", err)
				fb := fallbackEvaluation()
				ev, err = &fb, nil
			}
			evals[i] = ev
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, skill := range skills {
		result.set(skill, evals[i])
	}

	pref, err := s.repo.GetOrCreatePreference(ctx, userID)
	if err != nil {
		slog.Warn("Evaluating without learning preferences", "user_id", userID, "error", err)
		pref = nil
	}
	result.ComprehensiveFeedback = comprehensiveFeedback(result, pref)

	if session != nil {
		if err := s.recordOnSession(ctx, session, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// EvaluateOne runs a single skill evaluation.
func (s *EvaluationService) EvaluateOne(ctx context.Context, skill string, in EvaluationInput) (*SkillEvaluation, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	return s.gemini.EvaluateSkill(ctx, skill, in)
}

// recordOnSession writes scores into the session and stores one feedback row per suggestion.
func (s *EvaluationService) recordOnSession(ctx context.Context, session *models.PracticeSession, result *SpeechEvaluation) error {
	fb := result.ComprehensiveFeedback
	session.PronunciationScore = fb.PronunciationScore
	session.GrammarScore = fb.GrammarScore
	session.FluencyScore = fb.FluencyScore
	session.VocabularyScore = fb.VocabularyScore
	session.OverallScore = fb.OverallScore
	session.AIFeedback = toMap(fb)

	rows := feedbackRows(session.ID, result)
	return s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		if err := tx.SaveSession(ctx, session); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateFeedback(ctx, rows)
	})
}

func feedbackRows(sessionID string, result *SpeechEvaluation) []models.SessionFeedback {
	var rows []models.SessionFeedback
	add := func(skill string, ev *SkillEvaluation) {
		if ev == nil {
			return
		}
		for i, suggestion := range ev.Suggestions {
			message := fmt.Sprintf("%s feedback", strings.ToUpper(skill[:1])+skill[1:])
			if i < len(ev.Issues) {
				message = ev.Issues[i]
			}
			rows = append(rows, models.SessionFeedback{
				SessionID:    sessionID,
				FeedbackType: skill,
				Severity:     feedbackSeverity(ev.Score),
				Message:      message,
				Suggestion:   suggestion,
			})
		}
	}
	for i, ev := range result.core() {
		add(coreSkills[i], ev)
	}
	add(SkillCultural, result.Cultural)
	return rows
}

func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

type SkillTrend struct {
	Average float64 `json:"average"`
	Change  float64 `json:"change"`
	Trend   string  `json:"trend"`
}

type ProgressAnalysis struct {
	SessionsAnalyzed   int                   `json:"sessions_analyzed"`
	OverallImprovement float64               `json:"overall_improvement"`
	SkillTrends        map[string]SkillTrend `json:"skill_trends"`
	Strengths          []string              `json:"strengths"`
	FocusAreas         []string              `json:"focus_areas"`
	Recommendations    []string              `json:"recommendations"`
}

func sessionSkillScore(s models.PracticeSession, skill string) float64 {
	switch skill {
	case SkillPronunciation:
		return s.PronunciationScore
	case SkillGrammar:
		return s.GrammarScore
	case SkillFluency:
		return s.FluencyScore
	case SkillVocabulary:
		return s.VocabularyScore
	}
	return s.OverallScore
}

// halves splits values into the first and second half means.
func halves(values []float64) (float64, float64) {
	if len(values) < 2 {
		v := mean(values...)
		return v, v
	}
	half := len(values) / 2
	return mean(values[:half]...), mean(values[half:]...)
}

// analyzeProgress compares the first and second half of sessions given oldest first.
func analyzeProgress(sessions []models.PracticeSession) *ProgressAnalysis {
	a := &ProgressAnalysis{
		SessionsAnalyzed: len(sessions),
		SkillTrends:      make(map[string]SkillTrend, len(coreSkills)),
		Strengths:        []string{},
		FocusAreas:       []string{},
		Recommendations:  []string{},
	}
	series := func(skill string) []float64 {
		out := make([]float64, len(sessions))
		for i, s := range sessions {
			out[i] = sessionSkillScore(s, skill)
		}
		return out
	}

	var declining []string
	for _, skill := range coreSkills {
		values := series(skill)
		first, second := halves(values)
		change := second - first
		trend := "stable"
		switch {
		case change > 2:
			trend = "improving"
		case change < -2:
			trend = "declining"
			declining = append(declining, skill)
		}
		avg := mean(values...)
		a.SkillTrends[skill] = SkillTrend{Average: round(avg, 1), Change: round(change, 1), Trend: trend}
		switch {
		case avg >= 80:
			a.Strengths = append(a.Strengths, skill)
		case avg < 70:
			a.FocusAreas = append(a.FocusAreas, skill)
		}
	}

	first, second := halves(series("overall"))
	if first > 0 {
		a.OverallImprovement = round((second-first)/max(first, 1)*100, 1)
	}

	for _, skill := range a.FocusAreas {
		a.Recommendations = append(a.Recommendations, fmt.Sprintf("Schedule focused %s practice at least three times a week", skill))
	}
	for _, skill := range declining {
		a.Recommendations = append(a.Recommendations, fmt.Sprintf("Review your recent %s feedback, your scores have dipped", skill))
	}
	if len(a.Recommendations) == 0 {
		a.Recommendations = append(a.Recommendations, "Try more challenging scenarios to keep improving")
	}
	return a
}

func (s *EvaluationService) AnalyzeProgress(ctx context.Context, userID string, sessionIDs []string) (*ProgressAnalysis, error) {
	if len(sessionIDs) == 0 {
		return nil, invalid("session_ids is required")
	}
	sessions, err := s.repo.ListCompletedSessionsByIDs(ctx, userID, sessionIDs)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return analyzeProgress(sessions), nil
}
