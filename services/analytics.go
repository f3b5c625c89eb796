package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voicevibe/backend/cache"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

const (
	dashboardTTL       = 60 * time.Second
	recentAnalytics    = 10
	maxPatternLength   = 200
	dashboardSessions  = 5
	dashboardPatterns  = 5
	focusPatternLimit  = 5
	focusRecommendsMax = 3
)

var analyticsSkills = []string{"pronunciation", "fluency", "vocabulary", "grammar", "coherence"}

var improvementTips = map[string][]string{
	"pronunciation": {"Practice minimal pairs", "Record yourself and compare with native speakers", "Focus on problematic sounds"},
	"fluency":       {"Practice speaking without pausing", "Use filler phrases appropriately", "Read aloud daily"},
	"vocabulary":    {"Learn new words in context", "Use vocabulary in sentences", "Practice word families"},
	"grammar":       {"Review grammar rules", "Practice sentence structures", "Focus on common errors"},
	"coherence":     {"Use linking words", "Organize thoughts before speaking", "Practice structured responses"},
}

// AnalyticsService folds practice results into per-user rollups.
type AnalyticsService struct {
	repo  *repository.AnalyticsRepository
	cache *cache.Cache
}

// NewAnalyticsService builds the service. c may be nil when Redis is not configured.
func NewAnalyticsService(repo *repository.AnalyticsRepository, c *cache.Cache) *AnalyticsService {
	return &AnalyticsService{repo: repo, cache: c}
}

func analyticsScores(sa models.SessionAnalytics) map[string]float64 {
	return map[string]float64{
		"pronunciation": sa.PronunciationScore,
		"fluency":       sa.FluencyScore,
		"vocabulary":    sa.VocabularyScore,
		"grammar":       sa.GrammarScore,
		"coherence":     sa.CoherenceScore,
	}
}

// foldUserAnalytics adds one session to the totals. recent holds the latest session analytics, newest first.
func foldUserAnalytics(ua *models.UserAnalytics, sa *models.SessionAnalytics, recent []models.SessionAnalytics) {
	ua.TotalSessionsCompleted++
	ua.TotalPracticeMinutes += sa.DurationSeconds / 60
	ua.AverageSessionDuration = round(float64(ua.TotalPracticeMinutes)/float64(ua.TotalSessionsCompleted), 2)
	if len(recent) == 0 {
		return
	}
	var pron, flu, vocab, gram, coh, overall, wpm []float64
	for _, r := range recent {
		pron = append(pron, r.PronunciationScore)
		flu = append(flu, r.FluencyScore)
		vocab = append(vocab, r.VocabularyScore)
		gram = append(gram, r.GrammarScore)
		coh = append(coh, r.CoherenceScore)
		overall = append(overall, r.OverallScore)
		wpm = append(wpm, r.WordsPerMinute)
	}
	ua.PronunciationScore = round(mean(pron...), 2)
	ua.FluencyScore = round(mean(flu...), 2)
	ua.VocabularyScore = round(mean(vocab...), 2)
	ua.GrammarScore = round(mean(gram...), 2)
	ua.CoherenceScore = round(mean(coh...), 2)
	ua.OverallProficiencyScore = round(mean(overall...), 2)
	ua.AverageWordsPerMinute = round(mean(wpm...), 1)
}

// foldProgress adds one session to the day row. day holds the averages of that day's sessions.
func foldProgress(lp *models.LearningProgress, sa *models.SessionAnalytics, day *repository.SkillAverages) {
	lp.PracticeTimeMinutes += sa.DurationSeconds / 60
	lp.SessionsCount++
	lp.WordsPracticed += sa.TotalWords
	if day != nil {
		lp.PronunciationAverage = round(day.Pronunciation, 2)
		lp.FluencyAverage = round(day.Fluency, 2)
		lp.VocabularyAverage = round(day.Vocabulary, 2)
		lp.GrammarAverage = round(day.Grammar, 2)
		lp.CoherenceAverage = round(day.Coherence, 2)
	}
	if lp.PracticeTimeMinutes >= lp.DailyGoalMinutes {
		lp.GoalAchieved = true
	}
}

// RecordSession stores a session analytics row and folds it into the user and day rollups.
func (s *AnalyticsService) RecordSession(ctx context.Context, sa *models.SessionAnalytics) error {
	if sa.StartTime.IsZero() {
		sa.StartTime = time.Now()
	}
	err := s.repo.Transaction(ctx, func(tx *repository.AnalyticsRepository) error {
		if err := tx.CreateSessionAnalytics(ctx, sa); err != nil {
			return err
		}
		ua, err := tx.GetOrCreateUserAnalytics(ctx, sa.UserID)
		if err != nil {
			return err
		}
		recent, err := tx.ListSessionAnalytics(ctx, sa.UserID, nil, "", recentAnalytics)
		if err != nil {
			return err
		}
		foldUserAnalytics(ua, sa, recent)
		if err := tx.SaveUserAnalytics(ctx, ua); err != nil {
			return err
		}

		day := dateOf(sa.StartTime)
		lp, err := tx.GetOrCreateDailyProgress(ctx, sa.UserID, day)
		if err != nil {
			return err
		}
		avg, err := tx.DaySkillAverages(ctx, sa.UserID, day)
		if err != nil {
			return err
		}
		foldProgress(lp, sa, avg)
		return tx.SaveProgress(ctx, lp)
	})
	if err != nil {
		return err
	}
	s.InvalidateDashboard(ctx, sa.UserID)
	return nil
}

// sessionAnalyticsFrom derives analytics for a completed practice session.
func sessionAnalyticsFrom(session *models.PracticeSession, feedback []models.SessionFeedback) *models.SessionAnalytics {
	words := strings.Fields(strings.ToLower(session.Transcript))
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.Trim(w, ".,!?;:\"'"); w != "" {
			unique[w] = struct{}{}
		}
	}
	sa := &models.SessionAnalytics{
		UserID:               session.UserID,
		SessionID:            session.ID,
		SessionType:          session.SessionType,
		DifficultyLevel:      session.DifficultyLevel,
		EndTime:              session.CompletedAt,
		DurationSeconds:      session.DurationSeconds,
		SpeakingTimeSeconds:  session.DurationSeconds,
		PronunciationScore:   session.PronunciationScore,
		FluencyScore:         session.FluencyScore,
		VocabularyScore:      session.VocabularyScore,
		GrammarScore:         session.GrammarScore,
		OverallScore:         session.OverallScore,
		TotalWords:           len(words),
		UniqueWords:          len(unique),
		WordsPerMinute:       float64(wordsPerMinute(session.Transcript, float64(session.DurationSeconds))),
		CommonErrors:         map[string]any{},
		IsCompleted:          true,
		CompletionPercentage: 100,
	}
	if session.StartedAt != nil {
		sa.StartTime = *session.StartedAt
	} else {
		sa.StartTime = session.CreatedAt
	}
	counts := map[string]any{}
	for _, f := range feedback {
		switch f.FeedbackType {
		case SkillPronunciation:
			sa.PronunciationErrors++
		case SkillGrammar:
			sa.GrammarErrors++
		}
		if n, ok := counts[f.FeedbackType].(int); ok {
			counts[f.FeedbackType] = n + 1
		} else {
			counts[f.FeedbackType] = 1
		}
	}
	sa.CommonErrors = counts
	return sa
}

var severityLevels = map[string]int{"info": 1, "minor": 2, "moderate": 3, "major": 4}

// errorPatternsFrom turns session feedback into error patterns. General and cultural notes are skipped.
func errorPatternsFrom(userID string, feedback []models.SessionFeedback) []*models.ErrorPattern {
	var out []*models.ErrorPattern
	for _, f := range feedback {
		if !slices.Contains(analyticsSkills, f.FeedbackType) {
			continue
		}
		pattern := strings.TrimSpace(f.Message)
		if pattern == "" {
			continue
		}
		if utf8.RuneCountInString(pattern) > maxPatternLength {
			pattern = string([]rune(pattern)[:maxPatternLength])
		}
		severity := severityLevels[f.Severity]
		if severity == 0 {
			severity = 3
		}
		p := &models.ErrorPattern{
			UserID:                userID,
			ErrorType:             f.FeedbackType,
			Pattern:               pattern,
			Description:           f.Suggestion,
			ExampleErrors:         []string{pattern},
			CorrectForms:          []string{},
			OccurrenceCount:       1,
			SeverityLevel:         severity,
			ImpactOnCommunication: float64(severity) / 5,
		}
		if f.Suggestion != "" {
			p.CorrectForms = []string{f.Suggestion}
		}
		out = append(out, p)
	}
	return out
}

// RecordErrorPatterns upserts patterns found in a session's feedback.
func (s *AnalyticsService) RecordErrorPatterns(ctx context.Context, userID string, feedback []models.SessionFeedback) int {
	recorded := 0
	for _, p := range errorPatternsFrom(userID, feedback) {
		if err := s.repo.RecordErrorPattern(ctx, p); err != nil {
			slog.Warn("Failed to record error pattern", "user_id", userID, "error", err)
			continue
		}
		recorded++
	}
	return recorded
}

// UpdateStreak applies the daily streak rule to the analytics row.
func (s *AnalyticsService) UpdateStreak(ctx context.Context, userID string, today time.Time) (*models.UserAnalytics, bool, error) {
	ua, err := s.repo.GetOrCreateUserAnalytics(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	streak, updated := nextStreak(ua.LastPracticeDate, today, ua.CurrentStreakDays)
	if !updated {
		return ua, false, nil
	}
	day := dateOf(today)
	ua.CurrentStreakDays = streak
	ua.LongestStreakDays = max(ua.LongestStreakDays, streak)
	ua.LastPracticeDate = &day
	if err := s.repo.SaveUserAnalytics(ctx, ua); err != nil {
		return nil, false, err
	}
	s.InvalidateDashboard(ctx, userID)
	return ua, true, nil
}

func performanceLevel(score float64) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 75:
		return "Good"
	case score >= 60:
		return "Satisfactory"
	case score >= 45:
		return "Needs Improvement"
	}
	return "Poor"
}

func tipsFor(skill string, score float64) []string {
	tips := improvementTips[skill]
	n := 1
	switch {
	case score < 50:
		n = 3
	case score < 70:
		n = 2
	}
	return tips[:min(n, len(tips))]
}

type SkillFeedback struct {
	Score float64  `json:"score"`
	Level string   `json:"level"`
	Tips  []string `json:"tips"`
}

type DetailedFeedback struct {
	OverallPerformance string                   `json:"overall_performance"`
	Strengths          []string                 `json:"strengths"`
	ImprovementsNeeded []string                 `json:"improvements_needed"`
	SpecificFeedback   map[string]SkillFeedback `json:"specific_feedback"`
}

func detailedFeedback(sa models.SessionAnalytics) *DetailedFeedback {
	fb := &DetailedFeedback{
		OverallPerformance: performanceLevel(sa.OverallScore),
		Strengths:          []string{},
		ImprovementsNeeded: []string{},
		SpecificFeedback:   make(map[string]SkillFeedback, len(analyticsSkills)),
	}
	scores := analyticsScores(sa)
	for _, skill := range analyticsSkills {
		score := scores[skill]
		switch {
		case score >= 70:
			fb.Strengths = append(fb.Strengths, skill)
		case score < 50:
			fb.ImprovementsNeeded = append(fb.ImprovementsNeeded, skill)
		}
		fb.SpecificFeedback[skill] = SkillFeedback{Score: score, Level: performanceLevel(score), Tips: tipsFor(skill, score)}
	}
	return fb
}

type HistorySummary struct {
	TotalSessions          int     `json:"total_sessions"`
	TotalTimeMinutes       float64 `json:"total_time_minutes"`
	AverageScore           float64 `json:"average_score"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
}

func historySummary(rows []models.SessionAnalytics) HistorySummary {
	var total int
	var scores, durations []float64
	for _, r := range rows {
		total += r.DurationSeconds
		scores = append(scores, r.OverallScore)
		durations = append(durations, float64(r.DurationSeconds))
	}
	return HistorySummary{
		TotalSessions:          len(rows),
		TotalTimeMinutes:       round(float64(total)/60, 2),
		AverageScore:           round(mean(scores...), 2),
		AverageDurationMinutes: round(mean(durations...)/60, 2),
	}
}

type SkillScores struct {
	Pronunciation float64 `json:"pronunciation"`
	Fluency       float64 `json:"fluency"`
	Vocabulary    float64 `json:"vocabulary"`
	Grammar       float64 `json:"grammar"`
	Coherence     float64 `json:"coherence"`
}

type WeeklySummary struct {
	TotalPracticeTime   int         `json:"total_practice_time"`
	TotalSessions       int         `json:"total_sessions"`
	TotalWordsPracticed int         `json:"total_words_practiced"`
	GoalAchievementRate float64     `json:"goal_achievement_rate"`
	AverageScores       SkillScores `json:"average_scores"`
}

func weeklySummary(rows []models.LearningProgress) WeeklySummary {
	var ws WeeklySummary
	var pron, flu, vocab, gram, coh []float64
	achieved := 0
	for _, r := range rows {
		ws.TotalPracticeTime += r.PracticeTimeMinutes
		ws.TotalSessions += r.SessionsCount
		ws.TotalWordsPracticed += r.WordsPracticed
		if r.GoalAchieved {
			achieved++
		}
		pron = append(pron, r.PronunciationAverage)
		flu = append(flu, r.FluencyAverage)
		vocab = append(vocab, r.VocabularyAverage)
		gram = append(gram, r.GrammarAverage)
		coh = append(coh, r.CoherenceAverage)
	}
	if len(rows) > 0 {
		ws.GoalAchievementRate = round(float64(achieved)/float64(len(rows))*100, 2)
	}
	ws.AverageScores = SkillScores{
		Pronunciation: round(mean(pron...), 2),
		Fluency:       round(mean(flu...), 2),
		Vocabulary:    round(mean(vocab...), 2),
		Grammar:       round(mean(gram...), 2),
		Coherence:     round(mean(coh...), 2),
	}
	return ws
}

// SetDailyGoal sets today's practice goal in minutes.
func (s *AnalyticsService) SetDailyGoal(ctx context.Context, userID string, minutes int, today time.Time) (*models.LearningProgress, error) {
	if minutes < 5 || minutes > 180 {
		return nil, invalid("Goal must be between 5 and 180 minutes")
	}
	lp, err := s.repo.GetOrCreateDailyProgress(ctx, userID, dateOf(today))
	if err != nil {
		return nil, err
	}
	lp.DailyGoalMinutes = minutes
	lp.GoalAchieved = lp.PracticeTimeMinutes >= minutes
	if err := s.repo.SaveProgress(ctx, lp); err != nil {
		return nil, err
	}
	return lp, nil
}

// focusPatterns merges high-impact and frequent patterns, keeping the first occurrence of each.
func focusPatterns(highImpact, frequent []models.ErrorPattern) []models.ErrorPattern {
	seen := map[string]bool{}
	var out []models.ErrorPattern
	for _, p := range append(highImpact, frequent...) {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
		if len(out) == focusPatternLimit {
			break
		}
	}
	return out
}

func patternRecommendations(patterns []models.ErrorPattern) []string {
	recs := []string{}
	for _, p := range patterns {
		switch p.ErrorType {
		case "pronunciation":
			examples := p.ExampleErrors[:min(3, len(p.ExampleErrors))]
			recs = append(recs, "Practice pronunciation of: "+strings.Join(examples, ", "))
		case "grammar":
			recs = append(recs, "Review grammar rule: "+p.Pattern)
		case "vocabulary":
			recs = append(recs, "Expand vocabulary related to: "+p.Pattern)
		}
	}
	return recs[:min(focusRecommendsMax, len(recs))]
}

func (s *AnalyticsService) FocusAreas(ctx context.Context, userID string) ([]models.ErrorPattern, []string, error) {
	high, err := s.repo.HighImpactPatterns(ctx, userID, focusPatternLimit)
	if err != nil {
		return nil, nil, err
	}
	frequent, err := s.repo.ListErrorPatterns(ctx, userID, "", true, focusPatternLimit)
	if err != nil {
		return nil, nil, err
	}
	focus := focusPatterns(high, frequent)
	if focus == nil {
		focus = []models.ErrorPattern{}
	}
	return focus, patternRecommendations(focus), nil
}

func (s *AnalyticsService) ResolvePattern(ctx context.Context, userID, id string, now time.Time) (*models.ErrorPattern, error) {
	p, err := s.repo.GetErrorPattern(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	p.IsResolved = true
	p.ResolvedDate = &now
	if err := s.repo.SaveErrorPattern(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

var (
	assessmentTypes = []string{"initial", "periodic", "milestone", "self"}
	cefrLevels      = []string{"A1", "A2", "B1", "B2", "C1", "C2"}
)

func validateAssessment(a *models.SkillAssessment) error {
	if a.AssessmentType == "" {
		a.AssessmentType = "periodic"
	}
	if !slices.Contains(assessmentTypes, a.AssessmentType) {
		return invalid("Invalid assessment type: %s", a.AssessmentType)
	}
	a.ProficiencyLevel = strings.ToUpper(a.ProficiencyLevel)
	if a.ProficiencyLevel != "" && !slices.Contains(cefrLevels, a.ProficiencyLevel) {
		return invalid("Invalid proficiency level: %s", a.ProficiencyLevel)
	}
	for _, v := range []float64{a.PronunciationScore, a.FluencyScore, a.VocabularyScore, a.GrammarScore, a.CoherenceScore, a.ListeningScore, a.OverallScore} {
		if v < 0 || v > 100 {
			return invalid("Scores must be between 0 and 100")
		}
	}
	return nil
}

// applyAssessment copies an assessment into the analytics row and recomputes improvement_rate.
func applyAssessment(ua *models.UserAnalytics, a *models.SkillAssessment, now time.Time) {
	if ua.InitialProficiencyScore == nil {
		initial := a.OverallScore
		ua.InitialProficiencyScore = &initial
	}
	ua.OverallProficiencyScore = a.OverallScore
	ua.PronunciationScore = a.PronunciationScore
	ua.FluencyScore = a.FluencyScore
	ua.VocabularyScore = a.VocabularyScore
	ua.GrammarScore = a.GrammarScore
	ua.CoherenceScore = a.CoherenceScore

	ua.ImprovementRate = 0
	created := ua.CreatedAt
	if created.IsZero() {
		created = now
	}
	days := now.Sub(created).Hours() / 24
	if days >= 7 {
		ua.ImprovementRate = round((ua.OverallProficiencyScore-*ua.InitialProficiencyScore)/(days/7), 2)
	}
}

func (s *AnalyticsService) RecordAssessment(ctx context.Context, userID string, a *models.SkillAssessment, now time.Time) error {
	if err := validateAssessment(a); err != nil {
		return err
	}
	a.UserID = userID
	if a.AssessmentDate.IsZero() {
		a.AssessmentDate = now
	}
	prev, err := s.repo.LatestAssessment(ctx, userID)
	if err != nil {
		return err
	}
	if prev != nil && prev.OverallScore > 0 {
		pct := round((a.OverallScore-prev.OverallScore)/prev.OverallScore*100, 2)
		a.ImprovementFromLast = &pct
	}
	err = s.repo.Transaction(ctx, func(tx *repository.AnalyticsRepository) error {
		if err := tx.CreateAssessment(ctx, a); err != nil {
			return err
		}
		ua, err := tx.GetOrCreateUserAnalytics(ctx, userID)
		if err != nil {
			return err
		}
		applyAssessment(ua, a, now)
		return tx.SaveUserAnalytics(ctx, ua)
	})
	if err != nil {
		return err
	}
	s.InvalidateDashboard(ctx, userID)
	return nil
}

type ProgressSummary struct {
	Period             string   `json:"period"`
	TotalPracticeTime  int      `json:"total_practice_time"`
	TotalSessions      int      `json:"total_sessions"`
	AverageScore       float64  `json:"average_score"`
	ImprovementRate    float64  `json:"improvement_rate"`
	StreakDays         int      `json:"streak_days"`
	AchievementsEarned int      `json:"achievements_earned"`
	TopSkills          []string `json:"top_skills"`
	AreasToImprove     []string `json:"areas_to_improve"`
}

func progressSummary(ua *models.UserAnalytics, weekly []models.LearningProgress, recent []models.SessionAnalytics) ProgressSummary {
	ps := ProgressSummary{
		Period:             "weekly",
		ImprovementRate:    ua.ImprovementRate,
		StreakDays:         ua.CurrentStreakDays,
		AchievementsEarned: ua.AchievementsEarned,
		TopSkills:          []string{},
		AreasToImprove:     []string{},
	}
	var daily []float64
	for _, d := range weekly {
		ps.TotalPracticeTime += d.PracticeTimeMinutes
		ps.TotalSessions += d.SessionsCount
		daily = append(daily, mean(d.PronunciationAverage, d.FluencyAverage, d.VocabularyAverage, d.GrammarAverage, d.CoherenceAverage))
	}
	ps.AverageScore = round(mean(daily...), 2)

	if len(recent) > 0 {
		avgs := make(map[string]float64, len(analyticsSkills))
		for _, sa := range recent {
			for skill, v := range analyticsScores(sa) {
				avgs[skill] += v / float64(len(recent))
			}
		}
		ranked := slices.Clone(analyticsSkills)
		sort.SliceStable(ranked, func(i, j int) bool { return avgs[ranked[i]] > avgs[ranked[j]] })
		ps.TopSkills = ranked[:2]
		ps.AreasToImprove = ranked[len(ranked)-2:]
	}
	return ps
}

type Dashboard struct {
	UserAnalytics       *models.UserAnalytics     `json:"user_analytics"`
	RecentSessions      []models.SessionAnalytics `json:"recent_sessions"`
	WeeklyProgress      []models.LearningProgress `json:"weekly_progress"`
	ActiveErrorPatterns []models.ErrorPattern     `json:"active_error_patterns"`
	LatestAssessment    *models.SkillAssessment   `json:"latest_assessment"`
	ProgressSummary     ProgressSummary           `json:"progress_summary"`
}

func dashboardKey(userID string) string {
	return cache.PrefixDashboard + userID
}

// Dashboard assembles the analytics overview, served from Redis for a minute when available.
func (s *AnalyticsService) Dashboard(ctx context.Context, userID string, now time.Time) (*Dashboard, error) {
	if s.cache != nil {
		var cached Dashboard
		err := s.cache.GetJSON(ctx, dashboardKey(userID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("Dashboard cache read failed", "user_id", userID, "error", err)
		}
	}

	ua, err := s.repo.GetOrCreateUserAnalytics(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.ListSessionAnalytics(ctx, userID, nil, "", dashboardSessions)
	if err != nil {
		return nil, err
	}
	weekly, err := s.repo.ListProgress(ctx, userID, dateOf(now).AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	patterns, err := s.repo.ListErrorPatterns(ctx, userID, "", true, dashboardPatterns)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestAssessment(ctx, userID)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		UserAnalytics:       ua,
		RecentSessions:      recent,
		WeeklyProgress:      weekly,
		ActiveErrorPatterns: patterns,
		LatestAssessment:    latest,
		ProgressSummary:     progressSummary(ua, weekly, recent),
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, dashboardKey(userID), d, dashboardTTL); err != nil {
			slog.Warn("Dashboard cache write failed", "user_id", userID, "error", err)
		}
	}
	return d, nil
}

func (s *AnalyticsService) InvalidateDashboard(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardKey(userID)); err != nil {
		slog.Warn("Failed to invalidate dashboard", "user_id", userID, "error", err)
	}
}

type ChatModeRequest struct {
	Mode         string `json:"mode"`
	MessageCount int    `json:"message_count"`
}

var chatModes = []string{"text", "voice", "live"}

func (s *AnalyticsService) StartChatMode(ctx context.Context, userID, mode string, now time.Time) (*models.ChatModeUsage, error) {
	if !slices.Contains(chatModes, mode) {
		return nil, invalid("Invalid mode: %s", mode)
	}
	u := &models.ChatModeUsage{UserID: userID, Mode: mode, StartedAt: now, IsActive: true}
	if err := s.repo.CreateChatModeUsage(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AnalyticsService) EndChatMode(ctx context.Context, userID, id string, messages int, now time.Time) (*models.ChatModeUsage, error) {
	u, err := s.repo.GetChatModeUsage(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if !u.IsActive {
		return u, nil
	}
	u.EndedAt = &now
	u.DurationSeconds = max(0, int(now.Sub(u.StartedAt).Seconds()))
	u.MessageCount = max(0, messages)
	u.IsActive = false
	if err := s.repo.SaveChatModeUsage(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
