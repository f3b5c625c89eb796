package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voicevibe/backend/models"
	"gorm.io/gorm"
)

type SessionFilter struct {
	Status string
	Type   string
	Since  *time.Time
	Limit  int
}

func (r *GORMRepository) CreateSession(ctx context.Context, session *models.PracticeSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		slog.Error("Failed to create practice session", "error", err, "user_id", session.UserID)
		return err
	}
	slog.Info("Practice session created", "session_id", session.ID, "user_id", session.UserID)
	return nil
}

func (r *GORMRepository) ListSessions(ctx context.Context, userID string, f SessionFilter) ([]models.PracticeSession, error) {
	var sessions []models.PracticeSession
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("session_status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("session_type = ?", f.Type)
	}
	if f.Since != nil {
		q = q.Where("started_at >= ?", *f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Order("created_at DESC").Find(&sessions).Error; err != nil {
		slog.Error("Failed to list practice sessions", "error", err, "user_id", userID)
		return nil, err
	}
	return sessions, nil
}

// GetSessionWithDetails loads a session owned by userID with recordings and feedback.
func (r *GORMRepository) GetSessionWithDetails(ctx context.Context, id, userID string) (*models.PracticeSession, error) {
	var session models.PracticeSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Preload("Recordings", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number") }).
		Preload("Feedback", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get practice session", "error", err, "session_id", id, "user_id", userID)
		return nil, err
	}
	return &session, nil
}

func (r *GORMRepository) GetSession(ctx context.Context, id, userID string) (*models.PracticeSession, error) {
	var session models.PracticeSession
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get practice session", "error", err, "session_id", id, "user_id", userID)
		return nil, err
	}
	return &session, nil
}

// GetSessionByID gets a practice session by ID without user check
func (r *GORMRepository) GetSessionByID(ctx context.Context, id string) (*models.PracticeSession, error) {
	var session models.PracticeSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get practice session", "error", err, "session_id", id)
		return nil, err
	}
	return &session, nil
}

func (r *GORMRepository) SaveSession(ctx context.Context, session *models.PracticeSession) error {
	if err := r.db.WithContext(ctx).Omit("Recordings", "Feedback").Save(session).Error; err != nil {
		slog.Error("Failed to save practice session", "error", err, "session_id", session.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteSession(ctx context.Context, id, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.PracticeSession{})
	if result.Error != nil {
		slog.Error("Failed to delete practice session", "error", result.Error, "session_id", id)
		return false, result.Error
	}
	slog.Info("Practice session deleted", "session_id", id, "user_id", userID)
	return result.RowsAffected > 0, nil
}

// AppendTranscript appends text to the running session transcript.
func (r *GORMRepository) AppendTranscript(ctx context.Context, sessionID, text string) error {
	err := r.db.WithContext(ctx).Model(&models.PracticeSession{}).Where("id = ?", sessionID).
		Update("transcript", gorm.Expr("TRIM(COALESCE(transcript, '') || ' ' || ?)", text)).Error
	if err != nil {
		slog.Error("Failed to append transcript", "error", err, "session_id", sessionID)
	}
	return err
}

// TouchSession bumps updated_at so an active stream is not swept as stale.
func (r *GORMRepository) TouchSession(ctx context.Context, sessionID string) error {
	err := r.db.WithContext(ctx).Model(&models.PracticeSession{}).Where("id = ?", sessionID).
		UpdateColumn("updated_at", time.Now()).Error
	if err != nil {
		slog.Error("Failed to touch practice session", "error", err, "session_id", sessionID)
	}
	return err
}

// MarkStaleSessions moves in-progress sessions untouched since before into the error state.
func (r *GORMRepository) MarkStaleSessions(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.PracticeSession{}).
		Where("session_status = ? AND updated_at < ?", models.SessionStatusInProgress, before).
		Update("session_status", models.SessionStatusError)
	if result.Error != nil {
		slog.Error("Failed to mark stale sessions", "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListCompletedSessionsByIDs returns the user's completed sessions among ids, oldest first.
func (r *GORMRepository) ListCompletedSessionsByIDs(ctx context.Context, userID string, ids []string) ([]models.PracticeSession, error) {
	var sessions []models.PracticeSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ? AND session_status = ?", userID, ids, models.SessionStatusCompleted).
		Order("completed_at").
		Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to list sessions by ids", "error", err, "user_id", userID)
		return nil, err
	}
	return sessions, nil
}

// SessionTotals returns the completed-session count and mean overall score of a user.
func (r *GORMRepository) SessionTotals(ctx context.Context, userID string) (int64, float64, error) {
	var row struct {
		Count int64
		Avg   *float64
	}
	err := r.db.WithContext(ctx).Model(&models.PracticeSession{}).
		Select("COUNT(*) AS count, AVG(overall_score) AS avg").
		Where("user_id = ? AND session_status = ?", userID, models.SessionStatusCompleted).
		Scan(&row).Error
	if err != nil {
		slog.Error("Failed to get session totals", "error", err, "user_id", userID)
		return 0, 0, err
	}
	if row.Avg == nil {
		return row.Count, 0, nil
	}
	return row.Count, *row.Avg, nil
}

// Recordings
func (r *GORMRepository) ListRecordings(ctx context.Context, sessionID string) ([]models.AudioRecording, error) {
	var recordings []models.AudioRecording
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("sequence_number").Find(&recordings).Error; err != nil {
		slog.Error("Failed to list recordings", "error", err, "session_id", sessionID)
		return nil, err
	}
	return recordings, nil
}

func (r *GORMRepository) NextRecordingSequence(ctx context.Context, sessionID string) (int, error) {
	var last *int
	err := r.db.WithContext(ctx).Model(&models.AudioRecording{}).
		Select("MAX(sequence_number)").Where("session_id = ?", sessionID).Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 1, nil
	}
	return *last + 1, nil
}

func (r *GORMRepository) CreateRecording(ctx context.Context, rec *models.AudioRecording) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		slog.Error("Failed to create recording", "error", err, "session_id", rec.SessionID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) GetRecording(ctx context.Context, id string) (*models.AudioRecording, error) {
	var rec models.AudioRecording
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *GORMRepository) SaveRecording(ctx context.Context, rec *models.AudioRecording) error {
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		slog.Error("Failed to save recording", "error", err, "recording_id", rec.ID)
		return err
	}
	return nil
}

// Feedback and transcripts
func (r *GORMRepository) ListFeedback(ctx context.Context, sessionID string) ([]models.SessionFeedback, error) {
	var feedback []models.SessionFeedback
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at").Find(&feedback).Error; err != nil {
		slog.Error("Failed to list session feedback", "error", err, "session_id", sessionID)
		return nil, err
	}
	return feedback, nil
}

func (r *GORMRepository) CreateFeedback(ctx context.Context, feedback []models.SessionFeedback) error {
	if len(feedback) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&feedback).Error; err != nil {
		slog.Error("Failed to create session feedback", "error", err, "count", len(feedback))
		return err
	}
	return nil
}

func (r *GORMRepository) CreateTranscript(ctx context.Context, t *models.RealTimeTranscript) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		slog.Error("Failed to save transcript chunk", "error", err, "session_id", t.SessionID, "chunk_index", t.ChunkIndex)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) ListTranscripts(ctx context.Context, sessionID string) ([]models.RealTimeTranscript, error) {
	var transcripts []models.RealTimeTranscript
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("chunk_index").Find(&transcripts).Error; err != nil {
		return nil, err
	}
	return transcripts, nil
}
