package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	elevenLabsURL   = "https://api.elevenlabs.io/v1/text-to-speech/"
	elevenLabsModel = "eleven_turbo_v2"
)

// ElevenLabsService speaks tutor prompts. A nil *ElevenLabsService reports ErrAIUnavailable.
type ElevenLabsService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   *AudioCache
}

type ElevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func NewElevenLabsService(apiKey string, cache *AudioCache) *ElevenLabsService {
	if apiKey == "" {
		slog.Warn("ELEVENLABS_API_KEY not set, spoken prompts disabled")
		return nil
	}
	return &ElevenLabsService{
		apiKey:  apiKey,
		baseURL: elevenLabsURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		cache: cache,
	}
}

func (e *ElevenLabsService) Available() bool {
	return e != nil && e.apiKey != ""
}

// Speak returns MP3 audio for text in the given voice, served from the phrase cache when possible.
func (e *ElevenLabsService) Speak(ctx context.Context, text, voiceID string) ([]byte, error) {
	if !e.Available() {
		return nil, ErrAIUnavailable
	}
	if voiceID == "" {
		voiceID = defaultVoice
	}
	generate := func() (io.ReadCloser, error) {
		return e.TextToSpeech(ctx, text, voiceID)
	}
	if e.cache == nil {
		body, err := generate()
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return io.ReadAll(body)
	}
	return e.cache.GetOrGenerate(ctx, text, voiceID, generate)
}

func (e *ElevenLabsService) TextToSpeech(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	request := ElevenLabsRequest{
		Text:    text,
		ModelID: elevenLabsModel,
		VoiceSettings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+voiceID, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: elevenlabs: %v", ErrAIProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		slog.Error("ElevenLabs request failed", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: elevenlabs status %d", ErrAIProvider, resp.StatusCode)
	}

	slog.Info("Generated audio from ElevenLabs", "text_length", len(text), "voice_id", voiceID)
	return resp.Body, nil
}
