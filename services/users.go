package services

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

var proficiencyLevels = map[string]bool{
	"beginner":           true,
	"elementary":         true,
	"intermediate":       true,
	"upper_intermediate": true,
	"advanced":           true,
	"proficient":         true,
}

type UserEndpoints struct {
	repo *repository.GORMRepository
}

func NewUserEndpoints(repo *repository.GORMRepository) *UserEndpoints {
	return &UserEndpoints{repo: repo}
}

type ProfilePatch struct {
	Gender                   *string `json:"gender"`
	Province                 *string `json:"province"`
	NativeLanguage           *string `json:"native_language"`
	TargetLanguage           *string `json:"target_language"`
	CurrentProficiency       *string `json:"current_proficiency"`
	LearningGoal             *string `json:"learning_goal"`
	DailyPracticeGoal        *int    `json:"daily_practice_goal"`
	PreferredSessionDuration *int    `json:"preferred_session_duration"`
}

// apply validates the patch and copies the set fields onto profile.
func (p ProfilePatch) apply(profile *models.UserProfile) error {
	if p.CurrentProficiency != nil && !proficiencyLevels[*p.CurrentProficiency] {
		return invalid("Invalid proficiency level: %s", *p.CurrentProficiency)
	}
	if p.DailyPracticeGoal != nil && (*p.DailyPracticeGoal < 5 || *p.DailyPracticeGoal > 120) {
		return invalid("daily_practice_goal must be between 5 and 120")
	}
	if p.PreferredSessionDuration != nil && (*p.PreferredSessionDuration < 5 || *p.PreferredSessionDuration > 60) {
		return invalid("preferred_session_duration must be between 5 and 60")
	}

	if p.Gender != nil {
		profile.Gender = *p.Gender
	}
	if p.Province != nil {
		profile.Province = *p.Province
	}
	if p.NativeLanguage != nil {
		profile.NativeLanguage = *p.NativeLanguage
	}
	if p.TargetLanguage != nil {
		profile.TargetLanguage = *p.TargetLanguage
	}
	if p.CurrentProficiency != nil {
		profile.CurrentProficiency = *p.CurrentProficiency
	}
	if p.LearningGoal != nil {
		profile.LearningGoal = *p.LearningGoal
	}
	if p.DailyPracticeGoal != nil {
		profile.DailyPracticeGoal = *p.DailyPracticeGoal
	}
	if p.PreferredSessionDuration != nil {
		profile.PreferredSessionDuration = *p.PreferredSessionDuration
	}
	return nil
}

func validatePreference(p *models.LearningPreference) error {
	for name, v := range map[string]int{
		"visual_learning":      p.VisualLearning,
		"auditory_learning":    p.AuditoryLearning,
		"kinesthetic_learning": p.KinestheticLearning,
	} {
		if v < 1 || v > 10 {
			return invalid("%s must be between 1 and 10", name)
		}
	}
	if p.DifficultyAdaptationSpeed < 0.1 || p.DifficultyAdaptationSpeed > 1.0 {
		return invalid("difficulty_adaptation_speed must be between 0.1 and 1.0")
	}
	if p.AIPersonality == "" {
		p.AIPersonality = "friendly"
	}
	if p.PreferredScenarios == nil {
		p.PreferredScenarios = []string{}
	}
	return nil
}

type PublicUser struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	FullName           string `json:"full_name"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	CurrentProficiency string `json:"current_proficiency,omitempty"`
	StreakDays         int    `json:"streak_days"`
	Level              int    `json:"level,omitempty"`
	WayangCharacter    string `json:"wayang_character,omitempty"`
	FollowersCount     int64  `json:"followers_count"`
	FollowingCount     int64  `json:"following_count"`
}

func publicUser(u *models.User) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  displayName(u),
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}

func (e *UserEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/profile", e.GetProfileHandler)
		r.Patch("/profile", e.UpdateProfileHandler)
		r.Get("/preferences", e.GetPreferencesHandler)
		r.Put("/preferences", e.UpdatePreferencesHandler)
		r.Post("/follow/{id}", e.FollowHandler)
		r.Get("/followers", e.FollowersHandler)
		r.Get("/followers/{id}", e.FollowersHandler)
		r.Get("/following", e.FollowingHandler)
		r.Get("/following/{id}", e.FollowingHandler)
		r.Get("/achievements", e.AchievementsHandler)
		r.Get("/achievements/{id}", e.AchievementHandler)
		r.Get("/stats", e.StatsHandler)
		r.Post("/streak/update", e.StreakHandler)
		r.Post("/practice-time/add", e.PracticeTimeHandler)
		r.Get("/{id}", e.PublicProfileHandler)
	})
}

func (e *UserEndpoints) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	profile, err := e.repo.GetOrCreateProfile(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (e *UserEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var patch ProfilePatch
	if !decodeJSON(r, &patch) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	profile, err := e.repo.GetOrCreateProfile(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := patch.apply(profile); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := e.repo.SaveProfile(r.Context(), profile); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (e *UserEndpoints) GetPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	pref, err := e.repo.GetOrCreatePreference(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (e *UserEndpoints) UpdatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	current, err := e.repo.GetOrCreatePreference(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pref := *current
	if !decodeJSON(r, &pref) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	pref.ID = current.ID
	pref.UserID = user.ID
	pref.CreatedAt = current.CreatedAt
	if err := validatePreference(&pref); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := e.repo.SavePreference(r.Context(), &pref); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (e *UserEndpoints) FollowHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	targetID := chi.URLParam(r, "id")
	if targetID == user.ID {
		writeError(w, http.StatusBadRequest, "You cannot follow yourself")
		return
	}
	target, err := e.repo.GetUserByID(r.Context(), targetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	following, err := e.repo.ToggleFollow(r.Context(), user.ID, targetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"following": following})
}

func (e *UserEndpoints) FollowersHandler(w http.ResponseWriter, r *http.Request) {
	e.listFollows(w, r, e.repo.ListFollowers)
}

func (e *UserEndpoints) FollowingHandler(w http.ResponseWriter, r *http.Request) {
	e.listFollows(w, r, e.repo.ListFollowing)
}

func (e *UserEndpoints) listFollows(w http.ResponseWriter, r *http.Request, list func(context.Context, string) ([]models.User, error)) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	userID := chi.URLParam(r, "id")
	if userID == "" {
		userID = user.ID
	}
	users, err := list(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]PublicUser, len(users))
	for i := range users {
		views[i] = publicUser(&users[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views, "count": len(views)})
}

func (e *UserEndpoints) PublicProfileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target, err := e.repo.GetUserByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	view := publicUser(target)
	profile, err := e.repo.GetOrCreateProfile(ctx, target.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	view.CurrentProficiency = profile.CurrentProficiency
	view.StreakDays = profile.StreakDays
	level, _, err := e.repo.GetOrCreateUserLevel(ctx, target.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	view.Level = level.CurrentLevel
	view.WayangCharacter = level.WayangCharacter
	if view.FollowersCount, view.FollowingCount, err = e.repo.FollowCounts(ctx, target.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (e *UserEndpoints) AchievementsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	achievements, err := e.repo.ListAchievements(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": achievements, "count": len(achievements)})
}

func (e *UserEndpoints) AchievementHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	achievement, err := e.repo.GetAchievement(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if achievement == nil {
		writeError(w, http.StatusNotFound, "Achievement not found")
		return
	}
	writeJSON(w, http.StatusOK, achievement)
}

func (e *UserEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	ctx := r.Context()
	profile, err := e.repo.GetOrCreateProfile(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	completed, avg, err := e.repo.SessionTotals(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	level, _, err := e.repo.GetOrCreateUserLevel(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	badges, err := e.repo.CountUserBadges(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	achievements, err := e.repo.CountAchievements(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_practice_time": profile.TotalPracticeTime,
		"streak_days":         profile.StreakDays,
		"longest_streak":      profile.LongestStreak,
		"sessions_completed":  completed,
		"average_score":       round(avg, 1),
		"level":               level.CurrentLevel,
		"experience_points":   level.ExperiencePoints,
		"badges_count":        badges,
		"achievements_count":  achievements,
	})
}

// updateProfileStreak applies the daily streak rule to the profile's practice dates.
func updateProfileStreak(ctx context.Context, repo *repository.GORMRepository, userID string, today time.Time) (*StreakResult, error) {
	profile, err := repo.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	streak, updated := nextStreak(profile.LastPracticeDate, today, profile.StreakDays)
	if updated {
		day := dateOf(today)
		profile.StreakDays = streak
		profile.LongestStreak = max(profile.LongestStreak, streak)
		profile.LastPracticeDate = &day
		if err := repo.SaveProfile(ctx, profile); err != nil {
			return nil, err
		}
	}
	return &StreakResult{StreakDays: profile.StreakDays, LongestStreak: profile.LongestStreak, Updated: updated}, nil
}

func (e *UserEndpoints) StreakHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	result, err := updateProfileStreak(r.Context(), e.repo, user.ID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"streak_days":    result.StreakDays,
		"longest_streak": result.LongestStreak,
		"updated":        result.Updated,
	})
}

func (e *UserEndpoints) PracticeTimeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}
	total, err := e.repo.AddPracticeMinutes(r.Context(), user.ID, req.Minutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_practice_time": total})
}
