package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
	"github.com/voicevibe/backend/tasks"
)

// Enqueuer hands work to the background queue. *tasks.Queue satisfies it.
type Enqueuer interface {
	EnqueueType(ctx context.Context, taskType string, payload any)
}

type SessionCompletedPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type RecordingPayload struct {
	RecordingID string `json:"recording_id"`
	SessionID   string `json:"session_id"`
}

type PasswordResetPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

const staleSessionAge = 30 * time.Minute

// Jobs holds the handlers for queued tasks and scheduled maintenance.
type Jobs struct {
	repo         *repository.GORMRepository
	analytics    *AnalyticsService
	gamification *GamificationService
	gemini       *GeminiService
	frontendURL  string
}

func NewJobs(repo *repository.GORMRepository, analytics *AnalyticsService, gamification *GamificationService, gemini *GeminiService, frontendURL string) *Jobs {
	return &Jobs{
		repo:         repo,
		analytics:    analytics,
		gamification: gamification,
		gemini:       gemini,
		frontendURL:  frontendURL,
	}
}

// Register binds every task type to its handler.
func (j *Jobs) Register(q *tasks.Queue) {
	q.Register(tasks.TypeSessionCompleted, j.SessionCompleted)
	q.Register(tasks.TypeRecordingTranscribe, j.TranscribeRecording)
	q.Register(tasks.TypePasswordResetEmail, j.PasswordResetEmail)
	q.Register(tasks.TypeLeaderboardSync, j.LeaderboardSync)
}

// Schedule adds the periodic maintenance jobs.
func (j *Jobs) Schedule(s *tasks.Scheduler) error {
	jobs := []struct {
		spec, name string
		job        tasks.Job
	}{
		{tasks.SpecStaleSessions, "stale_sessions", j.SweepStaleSessions},
		{tasks.SpecLeaderboard, "leaderboard_rebuild", j.RebuildLeaderboards},
		{tasks.SpecQuestRotation, "quest_rotation", j.RotateQuests},
		{tasks.SpecTokenCleanup, "token_cleanup", j.CleanupTokens},
	}
	for _, job := range jobs {
		if err := s.Add(job.spec, job.name, job.job); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}
	return nil
}

// sessionXP is the experience awarded for finishing a session.
func sessionXP(overall float64) int {
	return 20 + int(overall/10)*5
}

// SessionCompleted runs the post-session bookkeeping. The analytics row doubles as the
// idempotency marker, so a redelivered task stops once it finds one.
func (j *Jobs) SessionCompleted(ctx context.Context, task tasks.Task) error {
	var p SessionCompletedPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	session, err := j.repo.GetSessionByID(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if session == nil || session.SessionStatus != models.SessionStatusCompleted {
		slog.Warn("Skipping completion task", "session_id", p.SessionID)
		return nil
	}
	userID := session.UserID

	feedback, err := j.repo.ListFeedback(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := j.analytics.RecordSession(ctx, sessionAnalyticsFrom(session, feedback)); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			slog.Info("Session already processed", "session_id", session.ID)
			return nil
		}
		return err
	}
	j.analytics.RecordErrorPatterns(ctx, userID, feedback)

	now := time.Now()
	if _, _, err := j.analytics.UpdateStreak(ctx, userID, now); err != nil {
		slog.Error("Failed to update analytics streak", "user_id", userID, "error", err)
	}
	if _, err := updateProfileStreak(ctx, j.repo, userID, now); err != nil {
		slog.Error("Failed to update profile streak", "user_id", userID, "error", err)
	}
	if _, err := j.gamification.UpdateStreak(ctx, userID, now); err != nil {
		slog.Error("Failed to update level streak", "user_id", userID, "error", err)
	}

	minutes := session.DurationSeconds / 60
	if minutes > 0 {
		if _, err := j.repo.AddPracticeMinutes(ctx, userID, minutes); err != nil {
			slog.Error("Failed to add practice minutes", "user_id", userID, "error", err)
		}
	}
	// AddXP also bumps the Redis leaderboards.
	xp := sessionXP(session.OverallScore)
	if _, err := j.gamification.AddXP(ctx, userID, xp, "session", "Practice session completed"); err != nil {
		slog.Error("Failed to award session XP", "user_id", userID, "error", err)
	}
	j.gamification.AdvanceQuests(ctx, userID, models.QuestCompleteSessions, 1)
	if minutes > 0 {
		j.gamification.AdvanceQuests(ctx, userID, models.QuestPracticeMinutes, minutes)
	}

	slog.Info("Session completion processed", "session_id", session.ID, "user_id", userID, "xp", xp, "minutes", minutes)
	return nil
}

// TranscribeRecording transcribes an uploaded recording and appends the text to its session.
func (j *Jobs) TranscribeRecording(ctx context.Context, task tasks.Task) error {
	var p RecordingPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	rec, err := j.repo.GetRecording(ctx, p.RecordingID)
	if err != nil {
		return err
	}
	if rec == nil {
		slog.Warn("Recording not found", "recording_id", p.RecordingID)
		return nil
	}
	if !j.gemini.Available() {
		return j.failRecording(ctx, rec, ErrAIUnavailable)
	}

	rec.ProcessingStatus = models.RecordingProcessing
	if err := j.repo.SaveRecording(ctx, rec); err != nil {
		return err
	}
	data, err := os.ReadFile(rec.FilePath)
	if err != nil {
		return j.failRecording(ctx, rec, err)
	}
	audio, mimeType, err := prepareAudio(ctx, data, rec.Format)
	if err != nil {
		return j.failRecording(ctx, rec, err)
	}
	text, err := j.gemini.Transcribe(ctx, audio, mimeType, "en")
	if err != nil {
		return j.failRecording(ctx, rec, err)
	}

	rec.ProcessingStatus = models.RecordingAnalyzed
	rec.Transcription = text
	rec.ErrorMessage = ""
	if err := j.repo.SaveRecording(ctx, rec); err != nil {
		return err
	}
	if text != "" {
		if err := j.repo.AppendTranscript(ctx, rec.SessionID, text); err != nil {
			return err
		}
	}
	slog.Info("Recording transcribed", "recording_id", rec.ID, "session_id", rec.SessionID, "chars", len(text))
	return nil
}

// failRecording stores the failure on the recording. The task is not retried.
func (j *Jobs) failRecording(ctx context.Context, rec *models.AudioRecording, cause error) error {
	slog.Error("Recording transcription failed", "recording_id", rec.ID, "error", cause)
	rec.ProcessingStatus = models.RecordingError
	rec.ErrorMessage = cause.Error()
	return j.repo.SaveRecording(ctx, rec)
}

func (j *Jobs) resetLink(token string) string {
	return j.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
}

// PasswordResetEmail logs the reset link in place of sending mail.
func (j *Jobs) PasswordResetEmail(ctx context.Context, task tasks.Task) error {
	var p PasswordResetPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	slog.Info("Password reset requested", "user_id", p.UserID, "email", p.Email, "link", j.resetLink(p.Token))
	return nil
}

func (j *Jobs) LeaderboardSync(ctx context.Context, task tasks.Task) error {
	return j.gamification.RebuildLeaderboards(ctx, time.Now())
}

func (j *Jobs) SweepStaleSessions(ctx context.Context) error {
	n, err := j.repo.MarkStaleSessions(ctx, time.Now().Add(-staleSessionAge))
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("Stale sessions marked as error", "count", n)
	}
	return nil
}

func (j *Jobs) RebuildLeaderboards(ctx context.Context) error {
	return j.gamification.RebuildLeaderboards(ctx, time.Now())
}

func (j *Jobs) RotateQuests(ctx context.Context) error {
	n, err := j.repo.RotateDailyQuests(ctx, dateOf(time.Now()))
	if err != nil {
		return err
	}
	slog.Info("Daily quests rotated", "created", n)
	return nil
}

func (j *Jobs) CleanupTokens(ctx context.Context) error {
	n, err := j.repo.DeleteExpiredTokens(ctx, time.Now())
	if err != nil {
		return err
	}
	slog.Info("Expired tokens removed", "count", n)
	return nil
}
