package services

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voicevibe/backend/repository"
)

type GamificationEndpoints struct {
	service *GamificationService
	repo    *repository.GORMRepository
}

func NewGamificationEndpoints(service *GamificationService, repo *repository.GORMRepository) *GamificationEndpoints {
	return &GamificationEndpoints{service: service, repo: repo}
}

type pointsRequest struct {
	Points      int    `json:"points"`
	Source      string `json:"source"`
	Description string `json:"description"`
}

func (e *GamificationEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/gamification", func(r chi.Router) {
		r.Get("/user-levels/me", e.MyLevelHandler)
		r.Post("/user-levels/add-experience", e.AddExperienceHandler)
		r.Post("/user-levels/update-streak", e.UpdateStreakHandler)

		r.Get("/badges", e.ListBadgesHandler)
		r.Get("/badges/{id}", e.GetBadgeHandler)
		r.Get("/user-badges", e.UserBadgesHandler)
		r.Get("/user-badges/showcase", e.ShowcaseHandler)

		r.Get("/challenges", e.ListChallengesHandler)
		r.Get("/challenges/{id}", e.GetChallengeHandler)
		r.Post("/challenges/{id}/join", e.JoinChallengeHandler)
		r.Post("/challenges/{id}/leave", e.LeaveChallengeHandler)
		r.Post("/challenges/{id}/contribute", e.ContributeHandler)

		r.Get("/leaderboards/me", e.MyRankHandler)
		r.Get("/leaderboards/{period}", e.LeaderboardHandler)

		r.Get("/daily-quests", e.DailyQuestsHandler)
		r.Post("/daily-quests/{id}/start", e.StartQuestHandler)
		r.Post("/daily-quests/{id}/update-progress", e.QuestProgressHandler)

		r.Get("/reward-shop", e.RewardShopHandler)
		r.Post("/reward-shop/{id}/purchase", e.PurchaseHandler)
		r.Get("/user-rewards", e.UserRewardsHandler)
		r.Post("/user-rewards/{id}/equip", e.EquipHandler)

		r.Get("/points-history", e.PointsHistoryHandler)
	})
}

func (e *GamificationEndpoints) MyLevelHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	level, created, err := e.repo.GetOrCreateUserLevel(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"level":                level,
		"next_level_threshold": LevelThreshold(level.CurrentLevel),
	})
}

func (e *GamificationEndpoints) AddExperienceHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req pointsRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}
	result, err := e.service.AddXP(r.Context(), user.ID, req.Points, req.Source, req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *GamificationEndpoints) UpdateStreakHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	result, err := e.service.UpdateStreak(r.Context(), user.ID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *GamificationEndpoints) ListBadgesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	badges, err := e.repo.ListBadges(r.Context(), q.Get("category"), q.Get("batik_pattern"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": badges, "count": len(badges)})
}

func (e *GamificationEndpoints) GetBadgeHandler(w http.ResponseWriter, r *http.Request) {
	badge, err := e.repo.GetBadge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if badge == nil {
		writeError(w, http.StatusNotFound, "Badge not found")
		return
	}
	writeJSON(w, http.StatusOK, badge)
}

func (e *GamificationEndpoints) UserBadgesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	badges, err := e.repo.ListUserBadges(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": badges, "count": len(badges)})
}

func (e *GamificationEndpoints) ShowcaseHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	badges, err := e.service.Showcase(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": badges})
}

func (e *GamificationEndpoints) ListChallengesHandler(w http.ResponseWriter, r *http.Request) {
	challenges, err := e.repo.ListActiveChallenges(r.Context(), time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": challenges, "count": len(challenges)})
}

func (e *GamificationEndpoints) GetChallengeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	challenge, err := e.repo.GetChallenge(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if challenge == nil {
		writeError(w, http.StatusNotFound, "Challenge not found")
		return
	}
	participants, err := e.repo.ListActiveParticipants(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	progress := 0
	for _, p := range participants {
		progress += p.ContributionScore
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"challenge":          challenge,
		"participants_count": len(participants),
		"progress":           progress,
	})
}

func (e *GamificationEndpoints) JoinChallengeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	p, err := e.service.JoinChallenge(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (e *GamificationEndpoints) LeaveChallengeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	if err := e.service.LeaveChallenge(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Left challenge"})
}

func (e *GamificationEndpoints) ContributeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req pointsRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result, err := e.service.Contribute(r.Context(), user.ID, chi.URLParam(r, "id"), req.Points)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *GamificationEndpoints) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	entries, err := e.service.Leaderboard(r.Context(), period, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": period, "entries": entries})
}

func (e *GamificationEndpoints) MyRankHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = PeriodWeekly
	}
	entry, err := e.service.LeaderboardRank(r.Context(), user.ID, period, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": period, "rank": entry.Rank, "score": entry.Score})
}

func (e *GamificationEndpoints) DailyQuestsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	quests, err := e.service.DailyQuests(r.Context(), user.ID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quests": quests, "count": len(quests)})
}

func (e *GamificationEndpoints) StartQuestHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	uq, created, err := e.service.StartQuest(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, uq)
}

func (e *GamificationEndpoints) QuestProgressHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req struct {
		Increment int `json:"increment"`
	}
	// An empty body means increment by one.
	_ = decodeJSON(r, &req)
	uq, err := e.service.UpdateQuestProgress(r.Context(), user.ID, chi.URLParam(r, "id"), req.Increment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uq)
}

func (e *GamificationEndpoints) RewardShopHandler(w http.ResponseWriter, r *http.Request) {
	rewards, err := e.repo.ListRewards(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": rewards, "count": len(rewards)})
}

func (e *GamificationEndpoints) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	owned, err := e.service.Purchase(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, owned)
}

func (e *GamificationEndpoints) UserRewardsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	rewards, err := e.repo.ListUserRewards(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": rewards, "count": len(rewards)})
}

func (e *GamificationEndpoints) EquipHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	equipped, err := e.repo.EquipReward(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if equipped == nil {
		writeError(w, http.StatusNotFound, "Reward not found")
		return
	}
	writeJSON(w, http.StatusOK, equipped)
}

func (e *GamificationEndpoints) PointsHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	txns, err := e.repo.ListPointsTransactions(r.Context(), user.ID, queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns, "count": len(txns)})
}
