package services

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

type AnalyticsEndpoints struct {
	service *AnalyticsService
	repo    *repository.AnalyticsRepository
}

func NewAnalyticsEndpoints(service *AnalyticsService, repo *repository.AnalyticsRepository) *AnalyticsEndpoints {
	return &AnalyticsEndpoints{service: service, repo: repo}
}

func (e *AnalyticsEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/dashboard", e.DashboardHandler)

		r.Get("/user-analytics/me", e.UserAnalyticsHandler)
		r.Post("/user-analytics/update-streak", e.UpdateStreakHandler)
		r.Get("/user-analytics/progress-chart", e.ProgressChartHandler)
		r.Get("/user-analytics/skill-comparison", e.SkillComparisonHandler)

		r.Get("/sessions", e.ListSessionsHandler)
		r.Post("/sessions", e.RecordSessionHandler)
		r.Get("/sessions/history", e.SessionHistoryHandler)
		r.Get("/sessions/{id}/detailed-feedback", e.DetailedFeedbackHandler)

		r.Get("/progress", e.ListProgressHandler)
		r.Get("/progress/weekly-summary", e.WeeklySummaryHandler)
		r.Post("/progress/daily-goal", e.DailyGoalHandler)

		r.Get("/error-patterns", e.ListErrorPatternsHandler)
		r.Get("/error-patterns/common", e.CommonErrorsHandler)
		r.Get("/error-patterns/focus", e.FocusAreasHandler)
		r.Post("/error-patterns/{id}/resolve", e.ResolvePatternHandler)

		r.Get("/assessments", e.ListAssessmentsHandler)
		r.Post("/assessments", e.CreateAssessmentHandler)
		r.Get("/assessments/latest", e.LatestAssessmentHandler)
		r.Get("/assessments/timeline", e.AssessmentTimelineHandler)

		r.Get("/chat-mode-usage", e.ListChatModeHandler)
		r.Post("/chat-mode-usage/start", e.StartChatModeHandler)
		r.Post("/chat-mode-usage/{id}/end", e.EndChatModeHandler)
	})
}

func (e *AnalyticsEndpoints) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	d, err := e.service.Dashboard(r.Context(), user.ID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (e *AnalyticsEndpoints) UserAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	ua, err := e.repo.GetOrCreateUserAnalytics(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ua)
}

func (e *AnalyticsEndpoints) UpdateStreakHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	ua, updated, err := e.service.UpdateStreak(r.Context(), user.ID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !updated {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":        "Already practiced today",
			"current_streak": ua.CurrentStreakDays,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Streak updated",
		"current_streak": ua.CurrentStreakDays,
		"longest_streak": ua.LongestStreakDays,
	})
}

func (e *AnalyticsEndpoints) ProgressChartHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	days := queryInt(r, "days", 30)
	rows, err := e.repo.ListProgress(r.Context(), user.ID, dateOf(time.Now()).AddDate(0, 0, -days))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": fmt.Sprintf("%d days", days), "data": rows})
}

func (e *AnalyticsEndpoints) SkillComparisonHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	ua, err := e.repo.GetOrCreateUserAnalytics(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	avg, err := e.repo.GlobalSkillAverages(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_scores": SkillScores{
			Pronunciation: ua.PronunciationScore,
			Fluency:       ua.FluencyScore,
			Vocabulary:    ua.VocabularyScore,
			Grammar:       ua.GrammarScore,
			Coherence:     ua.CoherenceScore,
		},
		"average_scores": SkillScores{
			Pronunciation: round(avg.Pronunciation, 2),
			Fluency:       round(avg.Fluency, 2),
			Vocabulary:    round(avg.Vocabulary, 2),
			Grammar:       round(avg.Grammar, 2),
			Coherence:     round(avg.Coherence, 2),
		},
	})
}

func (e *AnalyticsEndpoints) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	rows, err := e.repo.ListSessionAnalytics(r.Context(), user.ID, nil, r.URL.Query().Get("type"), queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (e *AnalyticsEndpoints) RecordSessionHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var sa models.SessionAnalytics
	if !decodeJSON(r, &sa) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if sa.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if sa.DurationSeconds < 0 {
		writeError(w, http.StatusBadRequest, "duration_seconds must not be negative")
		return
	}
	sa.ID = ""
	sa.UserID = user.ID
	if err := e.service.RecordSession(r.Context(), &sa); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sa)
}

func (e *AnalyticsEndpoints) SessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	since := time.Now().AddDate(0, 0, -queryInt(r, "days", 7))
	rows, err := e.repo.ListSessionAnalytics(r.Context(), user.ID, &since, r.URL.Query().Get("type"), 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sessions := rows[:min(20, len(rows))]
	writeJSON(w, http.StatusOK, map[string]any{"summary": historySummary(rows), "sessions": sessions})
}

func (e *AnalyticsEndpoints) DetailedFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	sa, err := e.repo.GetSessionAnalytics(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if sa == nil {
		writeError(w, http.StatusNotFound, "Session analytics not found")
		return
	}
	writeJSON(w, http.StatusOK, detailedFeedback(*sa))
}

func (e *AnalyticsEndpoints) ListProgressHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	rows, err := e.repo.ListProgress(r.Context(), user.ID, dateOf(time.Now()).AddDate(0, 0, -queryInt(r, "days", 30)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (e *AnalyticsEndpoints) WeeklySummaryHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	rows, err := e.repo.ListProgress(r.Context(), user.ID, dateOf(time.Now()).AddDate(0, 0, -7))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":         "Last 7 days",
		"summary":        weeklySummary(rows),
		"daily_progress": rows,
	})
}

func (e *AnalyticsEndpoints) DailyGoalHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req struct {
		GoalMinutes int `json:"goal_minutes"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	lp, err := e.service.SetDailyGoal(r.Context(), user.ID, req.GoalMinutes, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Daily goal updated", "goal_minutes": lp.DailyGoalMinutes})
}

func (e *AnalyticsEndpoints) ListErrorPatternsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	patterns, err := e.repo.ListErrorPatterns(r.Context(), user.ID, r.URL.Query().Get("type"), true, 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (e *AnalyticsEndpoints) CommonErrorsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	top, err := e.repo.ListErrorPatterns(r.Context(), user.ID, "", true, 10)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, err := e.repo.CountErrorPatterns(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_patterns": total, "top_errors": top})
}

func (e *AnalyticsEndpoints) FocusAreasHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	focus, recs, err := e.service.FocusAreas(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"focus_areas": focus, "recommendations": recs})
}

func (e *AnalyticsEndpoints) ResolvePatternHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	p, err := e.service.ResolvePattern(r.Context(), user.ID, chi.URLParam(r, "id"), time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Error pattern marked as resolved", "pattern": p})
}

func (e *AnalyticsEndpoints) ListAssessmentsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	rows, err := e.repo.ListAssessments(r.Context(), user.ID, queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (e *AnalyticsEndpoints) CreateAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var a models.SkillAssessment
	if !decodeJSON(r, &a) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	a.ID = ""
	if err := e.service.RecordAssessment(r.Context(), user.ID, &a, time.Now()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (e *AnalyticsEndpoints) LatestAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	a, err := e.repo.LatestAssessment(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "No assessments found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type TimelineEntry struct {
	Date             time.Time `json:"date"`
	Type             string    `json:"type"`
	OverallScore     float64   `json:"overall_score"`
	ProficiencyLevel string    `json:"proficiency_level"`
	Improvement      *float64  `json:"improvement"`
}

func (e *AnalyticsEndpoints) AssessmentTimelineHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	rows, err := e.repo.ListAssessments(r.Context(), user.ID, 10)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	timeline := make([]TimelineEntry, 0, len(rows))
	for _, a := range rows {
		timeline = append(timeline, TimelineEntry{
			Date:             a.AssessmentDate,
			Type:             a.AssessmentType,
			OverallScore:     a.OverallScore,
			ProficiencyLevel: a.ProficiencyLevel,
			Improvement:      a.ImprovementFromLast,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeline": timeline, "total_assessments": len(timeline)})
}

func (e *AnalyticsEndpoints) ListChatModeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	rows, err := e.repo.ListChatModeUsage(r.Context(), user.ID, queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (e *AnalyticsEndpoints) StartChatModeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req ChatModeRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := e.service.StartChatMode(r.Context(), user.ID, req.Mode, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (e *AnalyticsEndpoints) EndChatModeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req ChatModeRequest
	if r.ContentLength != 0 && !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := e.service.EndChatMode(r.Context(), user.ID, chi.URLParam(r, "id"), req.MessageCount, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
