package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

type LearningEndpoints struct {
	service *LearningService
	repo    *repository.GORMRepository
}

func NewLearningEndpoints(service *LearningService, repo *repository.GORMRepository) *LearningEndpoints {
	return &LearningEndpoints{service: service, repo: repo}
}

type CreatePathRequest struct {
	Name                   string   `json:"name"`
	Description            string   `json:"description"`
	PathType               string   `json:"path_type"`
	CurrentLevel           string   `json:"current_level"`
	TargetLevel            string   `json:"target_level"`
	EstimatedDurationWeeks int      `json:"estimated_duration_weeks"`
	FocusAreas             []string `json:"focus_areas"`
	Modules                []struct {
		Title            string `json:"title"`
		Description      string `json:"description"`
		ModuleType       string `json:"module_type"`
		EstimatedMinutes int    `json:"estimated_minutes"`
	} `json:"modules"`
}

type PathPatch struct {
	Name                   *string  `json:"name"`
	Description            *string  `json:"description"`
	PathType               *string  `json:"path_type"`
	CurrentLevel           *string  `json:"current_level"`
	TargetLevel            *string  `json:"target_level"`
	EstimatedDurationWeeks *int     `json:"estimated_duration_weeks"`
	ProgressPercentage     *float64 `json:"progress_percentage"`
	FocusAreas             []string `json:"focus_areas"`
}

func (e *LearningEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/learning", func(r chi.Router) {
		r.Get("/paths", e.ListPathsHandler)
		r.Post("/paths", e.CreatePathHandler)
		r.Post("/paths/recommend", e.RecommendHandler)
		r.Get("/paths/{id}", e.GetPathHandler)
		r.Patch("/paths/{id}", e.UpdatePathHandler)
		r.Delete("/paths/{id}", e.DeletePathHandler)
		r.Post("/paths/{id}/activate", e.ActivatePathHandler)
		r.Get("/paths/{id}/modules", e.ListModulesHandler)

		r.Get("/modules/{id}", e.GetModuleHandler)
		r.Post("/modules/{id}/start", e.StartModuleHandler)
		r.Post("/modules/{id}/complete", e.CompleteModuleHandler)

		r.Get("/activities", e.ListActivitiesHandler)
		r.Post("/activities/{id}/submit", e.SubmitActivityHandler)

		r.Get("/progress", e.ProgressHandler)
		r.Get("/milestones", e.MilestonesHandler)
		r.Get("/achievements", e.AchievementsHandler)
	})
}

func (e *LearningEndpoints) ListPathsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	paths, err := e.repo.ListPaths(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paths": paths, "count": len(paths)})
}

func (e *LearningEndpoints) CreatePathHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req CreatePathRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	path := &models.LearningPath{
		UserID:                 user.ID,
		Name:                   req.Name,
		Description:            req.Description,
		PathType:               req.PathType,
		CurrentLevel:           req.CurrentLevel,
		TargetLevel:            req.TargetLevel,
		EstimatedDurationWeeks: req.EstimatedDurationWeeks,
		FocusAreas:             req.FocusAreas,
	}
	if err := validatePath(path); err != nil {
		writeServiceError(w, err)
		return
	}
	for i, m := range req.Modules {
		if m.Title == "" {
			writeError(w, http.StatusBadRequest, "Module title is required")
			return
		}
		module := newModule(m.Title, m.ModuleType, i)
		module.Description = m.Description
		if m.EstimatedMinutes > 0 {
			module.EstimatedMinutes = m.EstimatedMinutes
		}
		path.Modules = append(path.Modules, module)
	}
	if err := e.repo.CreatePath(r.Context(), path); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, path)
}

func (e *LearningEndpoints) RecommendHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req RecommendRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec, err := Recommend(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !req.Create {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	path, err := e.service.CreateRecommendedPath(r.Context(), user.ID, req, rec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, path)
}

func (e *LearningEndpoints) ownPath(w http.ResponseWriter, r *http.Request) *models.LearningPath {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	path, err := e.repo.GetPath(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return nil
	}
	if path == nil {
		writeError(w, http.StatusNotFound, "Learning path not found")
	}
	return path
}

func (e *LearningEndpoints) GetPathHandler(w http.ResponseWriter, r *http.Request) {
	if path := e.ownPath(w, r); path != nil {
		writeJSON(w, http.StatusOK, path)
	}
}

func (e *LearningEndpoints) UpdatePathHandler(w http.ResponseWriter, r *http.Request) {
	path := e.ownPath(w, r)
	if path == nil {
		return
	}
	var patch PathPatch
	if !decodeJSON(r, &patch) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.Name != nil {
		path.Name = *patch.Name
	}
	if patch.Description != nil {
		path.Description = *patch.Description
	}
	if patch.PathType != nil {
		path.PathType = *patch.PathType
	}
	if patch.CurrentLevel != nil {
		path.CurrentLevel = *patch.CurrentLevel
	}
	if patch.TargetLevel != nil {
		path.TargetLevel = *patch.TargetLevel
	}
	if patch.EstimatedDurationWeeks != nil {
		path.EstimatedDurationWeeks = *patch.EstimatedDurationWeeks
	}
	if patch.ProgressPercentage != nil {
		path.ProgressPercentage = *patch.ProgressPercentage
	}
	if patch.FocusAreas != nil {
		path.FocusAreas = patch.FocusAreas
	}
	if err := validatePath(path); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := e.repo.SavePath(r.Context(), path); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

func (e *LearningEndpoints) DeletePathHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	deleted, err := e.repo.DeletePath(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Learning path not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *LearningEndpoints) ActivatePathHandler(w http.ResponseWriter, r *http.Request) {
	path := e.ownPath(w, r)
	if path == nil {
		return
	}
	if err := e.repo.ActivatePath(r.Context(), path); err != nil {
		writeServiceError(w, err)
		return
	}
	if len(path.Modules) > 0 && path.Modules[0].OrderIndex == 0 {
		path.Modules[0].IsLocked = false
	}
	writeJSON(w, http.StatusOK, path)
}

func (e *LearningEndpoints) ListModulesHandler(w http.ResponseWriter, r *http.Request) {
	path := e.ownPath(w, r)
	if path == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": path.Modules, "count": len(path.Modules)})
}

func (e *LearningEndpoints) GetModuleHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	module, err := e.repo.GetModuleForUser(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if module == nil {
		writeError(w, http.StatusNotFound, "Module not found")
		return
	}
	writeJSON(w, http.StatusOK, module)
}

func (e *LearningEndpoints) StartModuleHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	progress, err := e.service.StartModule(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (e *LearningEndpoints) CompleteModuleHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req struct {
		Score *float64 `json:"score"`
	}
	if !decodeJSON(r, &req) || req.Score == nil {
		writeError(w, http.StatusBadRequest, "score is required")
		return
	}
	result, err := e.service.CompleteModule(r.Context(), user.ID, chi.URLParam(r, "id"), *req.Score)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *LearningEndpoints) ListActivitiesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	moduleID := r.URL.Query().Get("module_id")
	if moduleID == "" {
		writeError(w, http.StatusBadRequest, "module_id is required")
		return
	}
	module, err := e.repo.GetModuleForUser(r.Context(), moduleID, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if module == nil {
		writeError(w, http.StatusNotFound, "Module not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": module.Activities, "count": len(module.Activities)})
}

func (e *LearningEndpoints) SubmitActivityHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req struct {
		Score    float64 `json:"score"`
		Response string  `json:"response"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	attempt, earned, err := e.service.SubmitActivity(r.Context(), user.ID, chi.URLParam(r, "id"), req.Score, req.Response)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"attempt": attempt, "points_earned": earned})
}

func (e *LearningEndpoints) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	summary, err := e.service.Summary(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (e *LearningEndpoints) MilestonesHandler(w http.ResponseWriter, r *http.Request) {
	milestones, err := e.repo.ListMilestones(r.Context(), "")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"milestones": milestones, "count": len(milestones)})
}

func (e *LearningEndpoints) AchievementsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	milestones, err := e.repo.ListUserMilestones(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": milestones, "count": len(milestones)})
}
