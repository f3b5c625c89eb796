package services

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

type CulturalEndpoints struct {
	service *CulturalService
	repo    *repository.GORMRepository
}

func NewCulturalEndpoints(service *CulturalService, repo *repository.GORMRepository) *CulturalEndpoints {
	return &CulturalEndpoints{service: service, repo: repo}
}

func (e *CulturalEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/cultural", func(r chi.Router) {
		r.Get("/profiles", e.ListProfilesHandler)
		r.Post("/profiles", e.CreateProfileHandler)
		r.Get("/profiles/me", e.MyProfileHandler)
		r.Get("/profiles/regional-insights", e.RegionalInsightsHandler)
		r.Get("/profiles/{id}", e.GetProfileHandler)
		r.Patch("/profiles/{id}", e.UpdateProfileHandler)
		r.Post("/profiles/{id}/calibrate", e.CalibrateHandler)

		r.Get("/scenarios", e.ListScenariosHandler)
		r.Get("/scenarios/recommended", e.RecommendedHandler)
		r.Get("/scenarios/{id}", e.GetScenarioHandler)
		r.Get("/scenarios/{id}/tips", e.TipsHandler)

		r.Get("/feedback-templates", e.ListTemplatesHandler)
		r.Post("/feedback-templates/generate", e.GenerateFeedbackHandler)

		r.Get("/language-mappings", e.ListMappingsHandler)
		r.Get("/language-mappings/common-errors", e.CommonErrorsHandler)
		r.Post("/language-mappings/check-interference", e.CheckInterferenceHandler)

		r.Get("/preferences/me", e.MyPreferencesHandler)
		r.Put("/preferences/me", e.UpdatePreferencesHandler)
		r.Post("/preferences/learning-style", e.LearningStyleHandler)
	})
}

func (e *CulturalEndpoints) ListProfilesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	profile, err := e.repo.GetCulturalProfileByUser(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	profiles := []*models.CulturalProfile{}
	if profile != nil {
		profiles = append(profiles, profile)
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles, "count": len(profiles)})
}

func (e *CulturalEndpoints) CreateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var patch CulturalProfilePatch
	if !decodeJSON(r, &patch) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	profile, err := e.service.CreateProfile(r.Context(), user.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (e *CulturalEndpoints) MyProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	profile, err := e.repo.GetCulturalProfileByUser(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "Cultural profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ownProfile loads the caller's profile by path id, writing 404 when it belongs to someone else.
func (e *CulturalEndpoints) ownProfile(w http.ResponseWriter, r *http.Request) *models.CulturalProfile {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	profile, err := e.repo.GetCulturalProfile(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return nil
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "Cultural profile not found")
		return nil
	}
	return profile
}

func (e *CulturalEndpoints) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	if profile := e.ownProfile(w, r); profile != nil {
		writeJSON(w, http.StatusOK, profile)
	}
}

func (e *CulturalEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile := e.ownProfile(w, r)
	if profile == nil {
		return
	}
	var patch CulturalProfilePatch
	if !decodeJSON(r, &patch) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := e.service.UpdateProfile(r.Context(), profile, patch); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (e *CulturalEndpoints) CalibrateHandler(w http.ResponseWriter, r *http.Request) {
	profile := e.ownProfile(w, r)
	if profile == nil {
		return
	}
	var req struct {
		Responses CalibrationResponses `json:"responses"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := e.service.Calibrate(r.Context(), profile, req.Responses); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cultural profile calibrated",
		"profile": profile,
	})
}

func (e *CulturalEndpoints) RegionalInsightsHandler(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	writeJSON(w, http.StatusOK, map[string]any{
		"region":   region,
		"insights": regionalInsight(region),
	})
}

func (e *CulturalEndpoints) ListScenariosHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ScenarioFilter{
		ContextType: q.Get("context_type"),
		Formality:   q.Get("formality"),
		Difficulty:  queryInt(r, "difficulty", 0),
	}
	scenarios, err := e.repo.ListScenarios(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

func (e *CulturalEndpoints) RecommendedHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	scenarios, err := e.service.Recommended(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

func (e *CulturalEndpoints) scenario(w http.ResponseWriter, r *http.Request) *models.CulturalScenario {
	sc, err := e.repo.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return nil
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "Scenario not found")
		return nil
	}
	return sc
}

func (e *CulturalEndpoints) GetScenarioHandler(w http.ResponseWriter, r *http.Request) {
	if sc := e.scenario(w, r); sc != nil {
		writeJSON(w, http.StatusOK, sc)
	}
}

func (e *CulturalEndpoints) TipsHandler(w http.ResponseWriter, r *http.Request) {
	if sc := e.scenario(w, r); sc != nil {
		writeJSON(w, http.StatusOK, scenarioTips(sc))
	}
}

func (e *CulturalEndpoints) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	templates, err := e.service.ListTemplates(r.Context(), user.ID, r.URL.Query().Get("feedback_type"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates, "count": len(templates)})
}

func (e *CulturalEndpoints) GenerateFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req GenerateFeedbackRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	feedback, err := e.service.GenerateFeedback(r.Context(), user.ID, req)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "No appropriate feedback template found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

func (e *CulturalEndpoints) ListMappingsHandler(w http.ResponseWriter, r *http.Request) {
	mappings, err := e.repo.ListLanguageMappings(r.Context(), r.URL.Query().Get("type"), queryInt(r, "difficulty", 0), 0, 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings, "count": len(mappings)})
}

func (e *CulturalEndpoints) CommonErrorsHandler(w http.ResponseWriter, r *http.Request) {
	mappings, err := e.repo.ListLanguageMappings(r.Context(), "", 0, commonErrorFrequency, 10)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"common_errors": mappings, "count": len(mappings)})
}

func (e *CulturalEndpoints) CheckInterferenceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	found, err := e.service.CheckInterference(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":           req.Text,
		"patterns_found": found,
		"count":          len(found),
	})
}

func (e *CulturalEndpoints) MyPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	pref, err := e.repo.GetAdaptationPreference(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if pref == nil {
		writeError(w, http.StatusNotFound, "Preferences not found")
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (e *CulturalEndpoints) UpdatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var patch PreferencePatch
	if !decodeJSON(r, &patch) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	pref, err := e.service.UpdatePreferences(r.Context(), user.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (e *CulturalEndpoints) LearningStyleHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req LearningStyleRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	pref, err := e.service.UpdateLearningStyle(r.Context(), user.ID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Learning style updated",
		"learning_style": map[string]float64{
			"visual":      round(pref.VisualLearner, 2),
			"auditory":    round(pref.AuditoryLearner, 2),
			"kinesthetic": round(pref.KinestheticLearner, 2),
		},
	})
}
