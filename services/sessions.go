package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
	"github.com/voicevibe/backend/tasks"
)

const (
	maxRecordingBytes = 25 << 20
	recentSessions    = 5
)

type SessionService struct {
	repo     *repository.GORMRepository
	tasks    Enqueuer
	mediaDir string
}

func NewSessionService(repo *repository.GORMRepository, queue Enqueuer, mediaDir string) *SessionService {
	return &SessionService{repo: repo, tasks: queue, mediaDir: mediaDir}
}

type CreateSessionRequest struct {
	SessionType     string  `json:"session_type"`
	ScenarioID      *string `json:"scenario_id"`
	DifficultyLevel *int    `json:"difficulty_level"`
}

type SessionPatch struct {
	ScenarioTitle      *string  `json:"scenario_title"`
	ScenarioContext    *string  `json:"scenario_context"`
	PronunciationScore *float64 `json:"pronunciation_score"`
	FluencyScore       *float64 `json:"fluency_score"`
	GrammarScore       *float64 `json:"grammar_score"`
	VocabularyScore    *float64 `json:"vocabulary_score"`
	OverallScore       *float64 `json:"overall_score"`
}

type ScoreAverages struct {
	Overall       float64 `json:"overall"`
	Pronunciation float64 `json:"pronunciation"`
	Fluency       float64 `json:"fluency"`
	Grammar       float64 `json:"grammar"`
	Vocabulary    float64 `json:"vocabulary"`
}

type Trend struct {
	Percentage float64 `json:"percentage"`
	Direction  string  `json:"direction"`
}

type SessionStatistics struct {
	TotalSessions     int                      `json:"total_sessions"`
	CompletedSessions int                      `json:"completed_sessions"`
	TotalPracticeTime int                      `json:"total_practice_time"`
	AverageScores     ScoreAverages            `json:"average_scores"`
	SessionsByType    map[string]int           `json:"sessions_by_type"`
	RecentSessions    []models.PracticeSession `json:"recent_sessions"`
	ImprovementTrend  Trend                    `json:"improvement_trend"`
}

func (req CreateSessionRequest) validate() error {
	if !slices.Contains(models.SessionTypes, req.SessionType) {
		return invalid("Invalid session type: %s", req.SessionType)
	}
	if req.DifficultyLevel != nil && (*req.DifficultyLevel < 1 || *req.DifficultyLevel > 10) {
		return invalid("difficulty_level must be between 1 and 10")
	}
	return nil
}

// Create opens a session. started sessions go straight to in_progress.
func (s *SessionService) Create(ctx context.Context, userID string, req CreateSessionRequest, started bool) (*models.PracticeSession, error) {
	if req.SessionType == "" {
		req.SessionType = "free_practice"
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	session := &models.PracticeSession{
		UserID:          userID,
		SessionType:     req.SessionType,
		SessionStatus:   models.SessionStatusInitiated,
		DifficultyLevel: 5,
	}
	if req.DifficultyLevel != nil {
		session.DifficultyLevel = *req.DifficultyLevel
	}
	if req.ScenarioID != nil && *req.ScenarioID != "" {
		scenario, err := s.repo.GetScenario(ctx, *req.ScenarioID)
		if err != nil {
			return nil, err
		}
		if scenario == nil {
			return nil, invalid("Unknown scenario: %s", *req.ScenarioID)
		}
		session.ScenarioID = &scenario.ID
		session.ScenarioTitle = scenario.Title
		session.ScenarioContext = scenario.Description
	}
	if started {
		now := time.Now()
		session.SessionStatus = models.SessionStatusInProgress
		session.StartedAt = &now
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (p SessionPatch) apply(session *models.PracticeSession) error {
	for _, v := range []*float64{p.PronunciationScore, p.FluencyScore, p.GrammarScore, p.VocabularyScore, p.OverallScore} {
		if v != nil && (*v < 0 || *v > 100) {
			return invalid("Scores must be between 0 and 100")
		}
	}
	if p.ScenarioTitle != nil {
		session.ScenarioTitle = *p.ScenarioTitle
	}
	if p.ScenarioContext != nil {
		session.ScenarioContext = *p.ScenarioContext
	}
	if p.PronunciationScore != nil {
		session.PronunciationScore = *p.PronunciationScore
	}
	if p.FluencyScore != nil {
		session.FluencyScore = *p.FluencyScore
	}
	if p.GrammarScore != nil {
		session.GrammarScore = *p.GrammarScore
	}
	if p.VocabularyScore != nil {
		session.VocabularyScore = *p.VocabularyScore
	}
	if p.OverallScore != nil {
		session.OverallScore = *p.OverallScore
	}
	return nil
}

// completeSession closes the session at now. A missing overall score becomes
// the mean of the sub-scores that were set.
func completeSession(session *models.PracticeSession, now time.Time) error {
	if session.SessionStatus == models.SessionStatusCompleted {
		return ErrSessionCompleted
	}
	session.SessionStatus = models.SessionStatusCompleted
	session.CompletedAt = &now
	if session.StartedAt == nil {
		session.StartedAt = &session.CreatedAt
	}
	session.DurationSeconds = max(0, int(now.Sub(*session.StartedAt).Seconds()))
	if session.OverallScore == 0 {
		var set []float64
		for _, v := range []float64{session.PronunciationScore, session.FluencyScore, session.GrammarScore, session.VocabularyScore} {
			if v > 0 {
				set = append(set, v)
			}
		}
		session.OverallScore = round(mean(set...), 1)
	}
	return nil
}

// End completes the session and queues the post-session bookkeeping.
func (s *SessionService) End(ctx context.Context, session *models.PracticeSession) error {
	if err := completeSession(session, time.Now()); err != nil {
		return err
	}
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return err
	}
	slog.Info("Practice session completed", "session_id", session.ID, "user_id", session.UserID, "duration_seconds", session.DurationSeconds)
	s.tasks.EnqueueType(ctx, tasks.TypeSessionCompleted, SessionCompletedPayload{SessionID: session.ID, UserID: session.UserID})
	return nil
}

// improvementTrend compares the mean of the first half of scores with the second half.
func improvementTrend(scores []float64) Trend {
	if len(scores) < 2 {
		return Trend{Direction: "stable"}
	}
	half := len(scores) / 2
	first, second := mean(scores[:half]...), mean(scores[half:]...)
	pct := 0.0
	if first > 0 {
		pct = (second - first) / max(first, 1) * 100
	}
	direction := "stable"
	switch {
	case pct > 5:
		direction = "up"
	case pct < -5:
		direction = "down"
	}
	return Trend{Percentage: round(pct, 1), Direction: direction}
}

// buildStatistics aggregates sessions listed newest first.
func buildStatistics(sessions []models.PracticeSession) *SessionStatistics {
	stats := &SessionStatistics{
		TotalSessions:  len(sessions),
		SessionsByType: map[string]int{},
		RecentSessions: sessions[:min(recentSessions, len(sessions))],
	}
	var overall, pron, flu, gram, vocab []float64
	for _, sess := range sessions {
		stats.SessionsByType[sess.SessionType]++
		stats.TotalPracticeTime += sess.DurationSeconds
		if sess.SessionStatus != models.SessionStatusCompleted {
			continue
		}
		stats.CompletedSessions++
		overall = append(overall, sess.OverallScore)
		pron = append(pron, sess.PronunciationScore)
		flu = append(flu, sess.FluencyScore)
		gram = append(gram, sess.GrammarScore)
		vocab = append(vocab, sess.VocabularyScore)
	}
	stats.AverageScores = ScoreAverages{
		Overall:       round(mean(overall...), 1),
		Pronunciation: round(mean(pron...), 1),
		Fluency:       round(mean(flu...), 1),
		Grammar:       round(mean(gram...), 1),
		Vocabulary:    round(mean(vocab...), 1),
	}
	// chronological order for the trend
	chrono := slices.Clone(overall)
	slices.Reverse(chrono)
	stats.ImprovementTrend = improvementTrend(chrono)
	return stats
}

func (s *SessionService) Statistics(ctx context.Context, userID string, days int) (*SessionStatistics, error) {
	if days < 1 || days > 365 {
		return nil, invalid("days must be between 1 and 365")
	}
	since := time.Now().AddDate(0, 0, -days)
	sessions, err := s.repo.ListSessions(ctx, userID, repository.SessionFilter{Since: &since})
	if err != nil {
		return nil, err
	}
	return buildStatistics(sessions), nil
}

// SaveRecording stores an uploaded audio file and queues its transcription.
func (s *SessionService) SaveRecording(ctx context.Context, session *models.PracticeSession, src io.Reader, ext string) (*models.AudioRecording, error) {
	seq, err := s.repo.NextRecordingSequence(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		ext = ".webm"
	}
	dir := filepath.Join(s.mediaDir, "recordings", session.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%03d-%s%s", seq, uuid.NewString()[:8], ext))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}
	written, err := io.Copy(f, io.LimitReader(src, maxRecordingBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write recording: %w", err)
	}
	if written > maxRecordingBytes {
		os.Remove(path)
		return nil, invalid("Audio file exceeds 25 MB")
	}

	rec := &models.AudioRecording{
		SessionID:        session.ID,
		SequenceNumber:   seq,
		FilePath:         path,
		Format:           ext[1:],
		SampleRate:       16000,
		FileSize:         written,
		ProcessingStatus: models.RecordingUploaded,
	}
	if err := s.repo.CreateRecording(ctx, rec); err != nil {
		os.Remove(path)
		return nil, err
	}
	s.tasks.EnqueueType(ctx, tasks.TypeRecordingTranscribe, RecordingPayload{RecordingID: rec.ID, SessionID: session.ID})
	return rec, nil
}
