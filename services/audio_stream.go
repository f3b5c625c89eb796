package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voicevibe/backend/metrics"
	"github.com/voicevibe/backend/models"
)

// One second of 16 kHz, 16-bit mono PCM.
const streamChunkBytes = 32000

const staticEncouragement = "Keep going! You're doing great. Try to speak in full sentences."

type eventSender interface {
	SendJSON(v any)
}

type transcriptStore interface {
	CreateTranscript(ctx context.Context, t *models.RealTimeTranscript) error
	AppendTranscript(ctx context.Context, sessionID, text string) error
	TouchSession(ctx context.Context, sessionID string) error
}

type streamChunk struct {
	index int
	data  []byte
	final bool
}

// StreamMessage is an inbound text frame.
type StreamMessage struct {
	Type      string `json:"type"`
	Audio     string `json:"audio"`
	AudioData string `json:"audio_data"`
}

// AudioStream buffers one connection's PCM audio and transcribes it in fixed-size
// chunks, one at a time and in order.
type AudioStream struct {
	sessionID string
	send      eventSender
	store     transcriptStore

	transcribe func(ctx context.Context, wav []byte) (string, error)
	feedback   func(ctx context.Context, transcript string) (string, error)

	// mu guards the buffer side. It may be held while blocked on chunks, so the
	// worker only takes resultMu.
	mu         sync.Mutex
	buffer     []byte
	nextChunk  int
	firstChunk int
	chunks     chan streamChunk
	wg         sync.WaitGroup
	closed     bool

	resultMu   sync.Mutex
	processed  int
	transcript []string
}

// NewAudioStream starts the transcription worker. startChunk continues the numbering
// of chunks already stored for the session.
func NewAudioStream(sessionID string, send eventSender, store transcriptStore, gemini *GeminiService, startChunk int) *AudioStream {
	s := &AudioStream{
		sessionID:  sessionID,
		send:       send,
		store:      store,
		nextChunk:  startChunk,
		firstChunk: startChunk,
	}
	if gemini.Available() {
		s.transcribe = func(ctx context.Context, wav []byte) (string, error) {
			return gemini.Transcribe(ctx, wav, "audio/wav", "en")
		}
		s.feedback = gemini.QuickFeedback
	}
	s.start()
	return s
}

func (s *AudioStream) start() {
	s.chunks = make(chan streamChunk, 64)
	s.closed = false
	s.wg.Add(1)
	go s.work(s.chunks)
}

func (s *AudioStream) work(chunks <-chan streamChunk) {
	defer s.wg.Done()
	for c := range chunks {
		s.process(c)
	}
}

// Append adds audio to the buffer and queues every full chunk.
func (s *AudioStream) Append(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buffer = append(s.buffer, data...)
	for len(s.buffer) >= streamChunkBytes {
		chunk := make([]byte, streamChunkBytes)
		copy(chunk, s.buffer[:streamChunkBytes])
		s.buffer = s.buffer[streamChunkBytes:]
		s.queue(chunk, false)
	}
}

// queue must be called with mu held.
func (s *AudioStream) queue(data []byte, final bool) {
	s.chunks <- streamChunk{index: s.nextChunk, data: data, final: final}
	s.nextChunk++
}

// Flush queues the remaining buffer as the final chunk and waits for every chunk to finish.
func (s *AudioStream) Flush() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.buffer) > 0 {
		s.queue(s.buffer, true)
		s.buffer = nil
	}
	s.closed = true
	close(s.chunks)
	s.mu.Unlock()
	s.wg.Wait()
}

// Restart drops any buffered audio and reopens the stream.
func (s *AudioStream) Restart() {
	s.mu.Lock()
	s.buffer = nil
	s.mu.Unlock()
	s.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstChunk = s.nextChunk
	s.start()
}

// TotalChunks is the number of chunks queued since the stream (re)started.
func (s *AudioStream) TotalChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextChunk - s.firstChunk
}

func (s *AudioStream) NextChunk() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextChunk
}

func (s *AudioStream) Transcript() string {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	return strings.Join(s.transcript, " ")
}

func (s *AudioStream) Processed() int {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	return s.processed
}

func (s *AudioStream) process(c streamChunk) {
	ctx := context.Background()
	// A live stream keeps its session out of the stale sweep even when chunks fail.
	if err := s.store.TouchSession(ctx, s.sessionID); err != nil {
		slog.Warn("Failed to touch streaming session", "session_id", s.sessionID, "error", err)
	}
	if s.transcribe == nil {
		metrics.RecordAudioChunk(false)
		s.sendError("Transcription unavailable: " + ErrAIUnavailable.Error())
		return
	}
	text, err := s.transcribe(ctx, pcmToWAV(c.data, streamSampleRate))
	metrics.RecordAudioChunk(err == nil)
	if err != nil {
		slog.Error("Chunk transcription failed", "session_id", s.sessionID, "chunk_index", c.index, "error", err)
		s.sendError(fmt.Sprintf("Transcription failed for chunk %d", c.index))
		return
	}

	seconds := float64(len(c.data)) / (streamSampleRate * 2)
	confidence := transcriptConfidence(text)
	rec := &models.RealTimeTranscript{
		SessionID:  s.sessionID,
		ChunkIndex: c.index,
		Text:       text,
		IsFinal:    c.final,
		StartTime:  float64(c.index),
		EndTime:    float64(c.index) + seconds,
		Confidence: confidence,
	}
	if err := s.store.CreateTranscript(ctx, rec); err != nil {
		slog.Error("Failed to store transcript chunk", "session_id", s.sessionID, "chunk_index", c.index, "error", err)
	}
	if text != "" {
		if err := s.store.AppendTranscript(ctx, s.sessionID, text); err != nil {
			slog.Error("Failed to append transcript", "session_id", s.sessionID, "error", err)
		}
	}

	s.resultMu.Lock()
	s.processed++
	if text != "" {
		s.transcript = append(s.transcript, text)
	}
	s.resultMu.Unlock()

	s.send.SendJSON(map[string]any{
		"type":        "transcription",
		"chunk_index": c.index,
		"text":        text,
		"is_final":    c.final,
		"confidence":  confidence,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *AudioStream) sendError(msg string) {
	s.send.SendJSON(map[string]any{"type": "error", "message": msg})
}

// IntermediateFeedback comments on the transcript so far.
func (s *AudioStream) IntermediateFeedback(ctx context.Context) map[string]any {
	transcript := s.Transcript()
	feedback := staticEncouragement
	if s.feedback != nil && transcript != "" {
		text, err := s.feedback(ctx, transcript)
		if err != nil {
			slog.Warn("Quick feedback failed", "session_id", s.sessionID, "error", err)
		} else if text != "" {
			feedback = text
		}
	}
	return map[string]any{
		"type":             "intermediate_feedback",
		"session_id":       s.sessionID,
		"chunks_processed": s.Processed(),
		"transcript":       transcript,
		"feedback":         feedback,
	}
}

// decodeStreamAudio reads base64 audio from either field, accepting data URLs.
func decodeStreamAudio(msg StreamMessage) ([]byte, error) {
	encoded := msg.Audio
	if encoded == "" {
		encoded = msg.AudioData
	}
	if encoded == "" {
		return nil, invalid("Audio data is required")
	}
	if i := strings.Index(encoded, ";base64,"); i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, invalid("Audio must be base64 encoded")
	}
	return data, nil
}

func parseStreamMessage(data []byte) (StreamMessage, error) {
	var msg StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, invalid("Invalid JSON message")
	}
	return msg, nil
}

// Inbound event names, dotted and legacy.
const (
	eventStart    = "session.start"
	eventAudio    = "session.audio"
	eventEnd      = "session.end"
	eventFeedback = "session.feedback"
	eventPing     = "ping"
)

var eventAliases = map[string]string{
	"audio_chunk":  eventAudio,
	"end_stream":   eventEnd,
	"get_feedback": eventFeedback,
}

func canonicalEvent(t string) string {
	if c, ok := eventAliases[t]; ok {
		return c
	}
	return t
}
