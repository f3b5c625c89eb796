package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SessionStatusInitiated  = "initiated"
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
	SessionStatusCancelled  = "cancelled"
	SessionStatusError      = "error"
)

// SessionTypes lists the accepted practice session types.
var SessionTypes = []string{"free_practice", "scenario_based", "pronunciation", "conversation", "vocabulary", "grammar"}

// PracticeSession is a single speaking session of a learner.
type PracticeSession struct {
	ID                 string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID             string         `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionType        string         `gorm:"size:30;not null;default:'free_practice'" json:"session_type"`
	SessionStatus      string         `gorm:"size:20;not null;default:'initiated';index" json:"session_status"`
	ScenarioID         *string        `gorm:"type:uuid" json:"scenario_id,omitempty"`
	ScenarioTitle      string         `gorm:"size:200" json:"scenario_title,omitempty"`
	ScenarioContext    string         `gorm:"type:text" json:"scenario_context,omitempty"`
	DifficultyLevel    int            `gorm:"default:5" json:"difficulty_level"`
	StartedAt          *time.Time     `gorm:"index" json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds    int            `json:"duration_seconds"`
	PronunciationScore float64        `json:"pronunciation_score"`
	FluencyScore       float64        `json:"fluency_score"`
	GrammarScore       float64        `json:"grammar_score"`
	VocabularyScore    float64        `json:"vocabulary_score"`
	OverallScore       float64        `json:"overall_score"`
	AIFeedback         map[string]any `gorm:"type:jsonb;serializer:json" json:"ai_feedback,omitempty"`
	Transcript         string         `gorm:"type:text" json:"transcript,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	Recordings []AudioRecording  `gorm:"foreignKey:SessionID" json:"recordings,omitempty"`
	Feedback   []SessionFeedback `gorm:"foreignKey:SessionID" json:"feedback,omitempty"`
}

const (
	RecordingUploading  = "uploading"
	RecordingUploaded   = "uploaded"
	RecordingProcessing = "processing"
	RecordingAnalyzed   = "analyzed"
	RecordingError      = "error"
)

type AudioRecording struct {
	ID               string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_session_sequence" json:"session_id"`
	SequenceNumber   int       `gorm:"not null;uniqueIndex:idx_session_sequence" json:"sequence_number"`
	FilePath         string    `gorm:"size:500" json:"file_path"`
	Format           string    `gorm:"size:10;default:'webm'" json:"format"`
	SampleRate       int       `gorm:"default:16000" json:"sample_rate"`
	DurationSeconds  float64   `json:"duration_seconds"`
	FileSize         int64     `json:"file_size"`
	ProcessingStatus string    `gorm:"size:20;default:'uploading'" json:"processing_status"`
	Transcription    string    `gorm:"type:text" json:"transcription,omitempty"`
	ErrorMessage     string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type SessionFeedback struct {
	ID               string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID        string    `gorm:"type:uuid;not null;index" json:"session_id"`
	FeedbackType     string    `gorm:"size:20" json:"feedback_type"`
	Severity         string    `gorm:"size:20;default:'info'" json:"severity"`
	Message          string    `gorm:"type:text" json:"message"`
	Suggestion       string    `gorm:"type:text" json:"suggestion,omitempty"`
	TimestampSeconds float64   `json:"timestamp_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

type RealTimeTranscript struct {
	ID         string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_session_chunk" json:"session_id"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:idx_session_chunk" json:"chunk_index"`
	Text       string    `gorm:"type:text" json:"text"`
	IsFinal    bool      `json:"is_final"`
	StartTime  float64   `json:"start_time"`
	EndTime    float64   `json:"end_time"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}
