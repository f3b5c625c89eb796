package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

const (
	moduleXP       = 50
	activityPassAt = 70
)

var pathTypes = map[string]bool{
	"conversational": true,
	"business":       true,
	"academic":       true,
	"travel":         true,
	"exam_prep":      true,
	"general":        true,
}

type LearningService struct {
	repo         *repository.GORMRepository
	gamification *GamificationService
}

func NewLearningService(repo *repository.GORMRepository, gamification *GamificationService) *LearningService {
	return &LearningService{repo: repo, gamification: gamification}
}

type RecommendRequest struct {
	LearningGoal string  `json:"learning_goal"`
	CurrentLevel string  `json:"current_level"`
	TargetLevel  string  `json:"target_level"`
	HoursPerWeek float64 `json:"hours_per_week"`
	Create       bool    `json:"create"`
}

type PathRecommendation struct {
	PathType               string   `json:"path_type"`
	EstimatedDurationWeeks int      `json:"estimated_duration_weeks"`
	FocusAreas             []string `json:"focus_areas"`
	SuggestedModules       []string `json:"suggested_modules"`
}

type ModuleResult struct {
	Passed            bool     `json:"passed"`
	Status            string   `json:"status"`
	Progress          float64  `json:"progress"`
	NextModuleID      *string  `json:"next_module_id,omitempty"`
	MilestonesAwarded []string `json:"milestones_awarded"`
}

func cefrIndex(level string) int {
	return slices.Index(models.CEFRLevels, strings.ToUpper(level))
}

func focusAreasFor(goal string) []string {
	goal = strings.ToLower(goal)
	switch {
	case strings.Contains(goal, "business"):
		return []string{"vocabulary", "fluency", "cultural"}
	case strings.Contains(goal, "academic"):
		return []string{"grammar", "vocabulary", "fluency"}
	case strings.Contains(goal, "travel"):
		return []string{"pronunciation", "fluency", "cultural"}
	case strings.Contains(goal, "exam"):
		return []string{"grammar", "vocabulary", "listening"}
	}
	return []string{"pronunciation", "grammar", "fluency"}
}

func pathTypeFor(goal string) string {
	goal = strings.ToLower(goal)
	switch {
	case strings.Contains(goal, "business"):
		return "business"
	case strings.Contains(goal, "academic"):
		return "academic"
	case strings.Contains(goal, "travel"):
		return "travel"
	case strings.Contains(goal, "exam"):
		return "exam_prep"
	case strings.Contains(goal, "conversation"):
		return "conversational"
	}
	return "general"
}

// Recommend sizes a path from the CEFR gap and weekly study hours.
func Recommend(req RecommendRequest) (*PathRecommendation, error) {
	if req.HoursPerWeek <= 0 {
		return nil, invalid("hours_per_week must be positive")
	}
	current, target := cefrIndex(req.CurrentLevel), cefrIndex(req.TargetLevel)
	if current < 0 || target < 0 {
		return nil, invalid("Levels must be one of %s", strings.Join(models.CEFRLevels, ", "))
	}
	diff := max(1, target-current)
	weeks := min(52, max(4, int(float64(diff)*100/req.HoursPerWeek)))

	focus := focusAreasFor(req.LearningGoal)
	suggested := make([]string, len(focus))
	for i, area := range focus {
		suggested[i] = fmt.Sprintf("%s %s practice", strings.ToUpper(req.TargetLevel), area)
	}
	return &PathRecommendation{
		PathType:               pathTypeFor(req.LearningGoal),
		EstimatedDurationWeeks: weeks,
		FocusAreas:             focus,
		SuggestedModules:       suggested,
	}, nil
}

// CreateRecommendedPath persists rec as a path with one module per focus area.
func (s *LearningService) CreateRecommendedPath(ctx context.Context, userID string, req RecommendRequest, rec *PathRecommendation) (*models.LearningPath, error) {
	path := &models.LearningPath{
		UserID:                 userID,
		Name:                   fmt.Sprintf("%s path to %s", strings.ToUpper(rec.PathType[:1])+rec.PathType[1:], strings.ToUpper(req.TargetLevel)),
		Description:            req.LearningGoal,
		PathType:               rec.PathType,
		CurrentLevel:           strings.ToUpper(req.CurrentLevel),
		TargetLevel:            strings.ToUpper(req.TargetLevel),
		EstimatedDurationWeeks: rec.EstimatedDurationWeeks,
		FocusAreas:             rec.FocusAreas,
	}
	for i, area := range rec.FocusAreas {
		path.Modules = append(path.Modules, newModule(rec.SuggestedModules[i], area, i))
	}
	if err := s.repo.CreatePath(ctx, path); err != nil {
		return nil, err
	}
	return path, nil
}

func newModule(title, moduleType string, order int) models.LearningModule {
	return models.LearningModule{
		Title:            title,
		ModuleType:       moduleType,
		OrderIndex:       order,
		MinPassingScore:  70,
		MaxAttempts:      3,
		IsLocked:         true,
		EstimatedMinutes: 15,
	}
}

// validatePath checks the user-editable fields of a path.
func validatePath(p *models.LearningPath) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name is required")
	}
	if p.PathType == "" {
		p.PathType = "general"
	}
	if !pathTypes[p.PathType] {
		return invalid("Invalid path type: %s", p.PathType)
	}
	if p.CurrentLevel == "" {
		p.CurrentLevel = "A1"
	}
	if p.TargetLevel == "" {
		p.TargetLevel = "B1"
	}
	if cefrIndex(p.CurrentLevel) < 0 || cefrIndex(p.TargetLevel) < 0 {
		return invalid("Levels must be one of %s", strings.Join(models.CEFRLevels, ", "))
	}
	if p.EstimatedDurationWeeks == 0 {
		p.EstimatedDurationWeeks = 12
	}
	if p.EstimatedDurationWeeks < 1 || p.EstimatedDurationWeeks > 52 {
		return invalid("estimated_duration_weeks must be between 1 and 52")
	}
	if p.ProgressPercentage < 0 || p.ProgressPercentage > 100 {
		return invalid("progress_percentage must be between 0 and 100")
	}
	if p.FocusAreas == nil {
		p.FocusAreas = []string{}
	}
	return nil
}

func (s *LearningService) StartModule(ctx context.Context, userID, moduleID string) (*models.UserModuleProgress, error) {
	module, err := s.repo.GetModuleForUser(ctx, moduleID, userID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, ErrNotFound
	}
	if module.IsLocked {
		return nil, ErrModuleLocked
	}
	progress, err := s.repo.GetOrCreateModuleProgress(ctx, userID, moduleID)
	if err != nil {
		return nil, err
	}
	if progress.Status == models.ModuleStatusFailed && progress.Attempts >= module.MaxAttempts {
		return nil, ErrMaxAttempts
	}
	if progress.Status != models.ModuleStatusCompleted {
		progress.Status = models.ModuleStatusInProgress
	}
	if progress.StartedAt == nil {
		now := time.Now()
		progress.StartedAt = &now
	}
	if err := s.repo.SaveModuleProgress(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// applyAttempt records a scored attempt and reports whether it passed.
func applyAttempt(progress *models.UserModuleProgress, module *models.LearningModule, score float64, now time.Time) bool {
	progress.Attempts++
	progress.LastScore = score
	progress.BestScore = max(progress.BestScore, score)
	if score >= module.MinPassingScore {
		progress.Status = models.ModuleStatusCompleted
		progress.CompletedAt = &now
		return true
	}
	if progress.Attempts >= module.MaxAttempts {
		progress.Status = models.ModuleStatusFailed
	} else {
		progress.Status = models.ModuleStatusInProgress
	}
	return false
}

func (s *LearningService) CompleteModule(ctx context.Context, userID, moduleID string, score float64) (*ModuleResult, error) {
	if score < 0 || score > 100 {
		return nil, invalid("score must be between 0 and 100")
	}
	module, err := s.repo.GetModuleForUser(ctx, moduleID, userID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, ErrNotFound
	}
	if module.IsLocked {
		return nil, ErrModuleLocked
	}
	var result *ModuleResult
	firstCompletion, pathDone := false, false
	err = s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		progress, err := tx.LockModuleProgress(ctx, userID, moduleID)
		if err != nil {
			return err
		}
		if progress.Status == models.ModuleStatusFailed && progress.Attempts >= module.MaxAttempts {
			return ErrMaxAttempts
		}

		alreadyDone := progress.Status == models.ModuleStatusCompleted
		passed := applyAttempt(progress, module, score, time.Now())
		if alreadyDone {
			progress.Status = models.ModuleStatusCompleted
		}
		if err := tx.SaveModuleProgress(ctx, progress); err != nil {
			return err
		}

		path, err := tx.GetPath(ctx, module.PathID, userID)
		if err != nil {
			return err
		}
		if path == nil {
			return ErrNotFound
		}
		result = &ModuleResult{Passed: passed, Status: progress.Status, Progress: path.ProgressPercentage, MilestonesAwarded: []string{}}
		if !passed || alreadyDone {
			return nil
		}
		firstCompletion = true

		next, err := tx.GetModuleByOrder(ctx, path.ID, module.OrderIndex+1)
		if err != nil {
			return err
		}
		if next != nil {
			if err := tx.UnlockModule(ctx, next.ID); err != nil {
				return err
			}
			path.CurrentModuleIndex = next.OrderIndex
			result.NextModuleID = &next.ID
		}

		completed, err := tx.CountCompletedModules(ctx, userID, path.ID)
		if err != nil {
			return err
		}
		if total := len(path.Modules); total > 0 {
			path.ProgressPercentage = round(float64(completed)/float64(total)*100, 1)
		}
		pathDone = int(completed) >= len(path.Modules)
		if pathDone && path.CompletedAt == nil {
			now := time.Now()
			path.CompletedAt = &now
		}
		if err := tx.SavePath(ctx, path); err != nil {
			return err
		}
		result.Progress = path.ProgressPercentage
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Rewards are paid only by the request that moved the locked row to completed.
	if !firstCompletion {
		return result, nil
	}

	if _, err := s.gamification.AddXP(ctx, userID, moduleXP, "module", module.Title); err != nil {
		slog.Error("Failed to award module XP", "error", err, "module_id", moduleID)
	}

	if pathDone {
		result.MilestonesAwarded = append(result.MilestonesAwarded, s.awardMilestones(ctx, userID, models.MilestonePathCompleted, 0)...)
	}
	all, err := s.repo.CountCompletedModules(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	result.MilestonesAwarded = append(result.MilestonesAwarded, s.awardMilestones(ctx, userID, models.MilestoneModulesCompleted, int(all))...)
	return result, nil
}

// awardMilestones grants milestones of milestoneType whose threshold is reached by value.
func (s *LearningService) awardMilestones(ctx context.Context, userID, milestoneType string, value int) []string {
	milestones, err := s.repo.ListMilestones(ctx, milestoneType)
	if err != nil {
		return nil
	}
	var awarded []string
	for _, m := range milestones {
		if m.Threshold > value {
			continue
		}
		created, err := s.repo.AwardMilestone(ctx, &models.UserMilestone{UserID: userID, MilestoneID: m.ID, AchievedAt: time.Now()})
		if err != nil || !created {
			continue
		}
		awarded = append(awarded, m.Code)
		slog.Info("Milestone achieved", "user_id", userID, "milestone", m.Code)
		if m.Points > 0 {
			if _, err := s.gamification.AddXP(ctx, userID, m.Points, "milestone", m.Title); err != nil {
				slog.Error("Failed to award milestone XP", "error", err, "milestone", m.Code)
			}
		}
	}
	return awarded
}

func (s *LearningService) SubmitActivity(ctx context.Context, userID, activityID string, score float64, response string) (*models.ActivityAttempt, int, error) {
	if score < 0 || score > 100 {
		return nil, 0, invalid("score must be between 0 and 100")
	}
	activity, err := s.repo.GetActivityForUser(ctx, activityID, userID)
	if err != nil {
		return nil, 0, err
	}
	if activity == nil {
		return nil, 0, ErrNotFound
	}
	attempt := &models.ActivityAttempt{
		UserID:      userID,
		ActivityID:  activityID,
		Score:       score,
		Response:    response,
		SubmittedAt: time.Now(),
	}
	if err := s.repo.CreateActivityAttempt(ctx, attempt); err != nil {
		return nil, 0, err
	}
	earned := 0
	if score >= activityPassAt && activity.Points > 0 {
		if _, err := s.gamification.AddXP(ctx, userID, activity.Points, "activity", activity.Title); err != nil {
			return nil, 0, err
		}
		earned = activity.Points
	}
	return attempt, earned, nil
}

type LearningSummary struct {
	ActivePath       *models.LearningPath `json:"active_path"`
	PathsCount       int                  `json:"paths_count"`
	ModulesCompleted int64                `json:"modules_completed"`
	ModulesTotal     int64                `json:"modules_total"`
	AverageScore     float64              `json:"average_score"`
	MilestonesCount  int                  `json:"milestones_count"`
}

func (s *LearningService) Summary(ctx context.Context, userID string) (*LearningSummary, error) {
	var summary LearningSummary
	var err error
	if summary.ActivePath, err = s.repo.GetActivePath(ctx, userID); err != nil {
		return nil, err
	}
	paths, err := s.repo.ListPaths(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary.PathsCount = len(paths)
	if summary.ModulesCompleted, err = s.repo.CountCompletedModules(ctx, userID, ""); err != nil {
		return nil, err
	}
	if summary.ModulesTotal, err = s.repo.CountUserModules(ctx, userID); err != nil {
		return nil, err
	}
	avg, err := s.repo.AverageModuleScore(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary.AverageScore = round(avg, 1)
	milestones, err := s.repo.ListUserMilestones(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary.MilestonesCount = len(milestones)
	return &summary, nil
}
