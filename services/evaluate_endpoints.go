package services

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/voicevibe/backend/repository"
)

// EvaluateEndpoints serves LLM-backed evaluation. Every route costs a provider call and is rate limited.
type EvaluateEndpoints struct {
	service *EvaluationService
	gemini  *GeminiService
	tts     *ElevenLabsService
	repo    *repository.GORMRepository
	limiter *RateLimiter
}

func NewEvaluateEndpoints(service *EvaluationService, gemini *GeminiService, tts *ElevenLabsService, repo *repository.GORMRepository, limiter *RateLimiter) *EvaluateEndpoints {
	return &EvaluateEndpoints{service: service, gemini: gemini, tts: tts, repo: repo, limiter: limiter}
}

func (e *EvaluateEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/evaluate", func(r chi.Router) {
		if e.limiter != nil {
			r.Use(e.limiter.Handler)
		}
		r.Post("/live/token", e.LiveTokenHandler)
		r.Post("/transcribe", e.TranscribeHandler)
		r.Post("/evaluate", e.EvaluateHandler)
		r.Post("/evaluate/pronunciation", e.skillHandler(SkillPronunciation))
		r.Post("/evaluate/grammar", e.skillHandler(SkillGrammar))
		r.Post("/prompt/generate", e.GeneratePromptHandler)
		r.Post("/progress/analyze", e.AnalyzeProgressHandler)
	})
}

func (e *EvaluateEndpoints) LiveTokenHandler(w http.ResponseWriter, r *http.Request) {
	if currentUser(w, r) == nil {
		return
	}
	if !e.gemini.Available() {
		writeServiceError(w, ErrAIUnavailable)
		return
	}
	var req LiveTokenRequest
	if r.ContentLength != 0 && !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	token, err := e.gemini.CreateLiveToken(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

type TranscribeRequest struct {
	Audio     string `json:"audio"`
	AudioData string `json:"audio_data"`
	Language  string `json:"language"`
	MIMEType  string `json:"mime_type"`
}

type TranscribeResponse struct {
	Transcription string  `json:"transcription"`
	Language      string  `json:"language"`
	Confidence    float64 `json:"confidence"`
}

// transcriptConfidence is fixed because Gemini returns no word confidences.
func transcriptConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.9
}

// readAudio accepts a multipart "audio" file or a JSON body with base64 audio.
func readAudio(r *http.Request) (data []byte, format, language string, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("audio")
		if ferr != nil {
			return nil, "", "", invalid("Audio data is required")
		}
		defer file.Close()
		data, err = io.ReadAll(io.LimitReader(file, maxRecordingBytes+1))
		if err != nil {
			return nil, "", "", err
		}
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
		language = r.FormValue("language")
	} else {
		var req TranscribeRequest
		if !decodeJSON(r, &req) {
			return nil, "", "", invalid("Invalid request body")
		}
		encoded := req.Audio
		if encoded == "" {
			encoded = req.AudioData
		}
		if encoded == "" {
			return nil, "", "", invalid("Audio data is required")
		}
		if i := strings.Index(encoded, ";base64,"); i >= 0 {
			encoded = encoded[i+len(";base64,"):]
		}
		data, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", "", invalid("Audio must be base64 encoded")
		}
		format = "wav"
		if req.MIMEType != "" {
			format = strings.TrimPrefix(strings.ToLower(req.MIMEType), "audio/")
			format, _, _ = strings.Cut(format, ";")
		}
		language = req.Language
	}
	if len(data) == 0 {
		return nil, "", "", invalid("Audio data is required")
	}
	if len(data) > maxRecordingBytes {
		return nil, "", "", invalid("Audio file exceeds 25 MB")
	}
	if language == "" {
		language = "en"
	}
	return data, format, language, nil
}

func (e *EvaluateEndpoints) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	if currentUser(w, r) == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxRecordingBytes)
	data, format, language, err := readAudio(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !e.gemini.Available() {
		writeServiceError(w, ErrAIUnavailable)
		return
	}
	audio, mimeType, err := prepareAudio(r.Context(), data, format)
	if err != nil {
		slog.Error("Failed to prepare audio", "format", format, "error", err)
		writeError(w, http.StatusBadRequest, "Unsupported audio format")
		return
	}
	text, err := e.gemini.Transcribe(r.Context(), audio, mimeType, language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TranscribeResponse{
		Transcription: text,
		Language:      language,
		Confidence:    transcriptConfidence(text),
	})
}

func (e *EvaluateEndpoints) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var in EvaluationInput
	if !decodeJSON(r, &in) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result, err := e.service.Evaluate(r.Context(), user.ID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "evaluation": result})
}

func (e *EvaluateEndpoints) skillHandler(skill string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if currentUser(w, r) == nil {
			return
		}
		var in EvaluationInput
		if !decodeJSON(r, &in) {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		eval, err := e.service.EvaluateOne(r.Context(), skill, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "evaluation": eval})
	}
}

type GeneratePromptRequest struct {
	PromptType string         `json:"prompt_type"`
	Parameters map[string]any `json:"parameters"`
	Speak      bool           `json:"speak"`
}

type GeneratePromptResponse struct {
	Success    bool           `json:"success"`
	PromptType string         `json:"prompt_type"`
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters"`
	Audio      string         `json:"audio,omitempty"`
	VoiceID    string         `json:"voice_id,omitempty"`
}

func (e *EvaluateEndpoints) GeneratePromptHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req GeneratePromptRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PromptType == "" {
		writeError(w, http.StatusBadRequest, "prompt_type is required")
		return
	}
	prompt, err := RenderPrompt(req.PromptType, req.Parameters)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := GeneratePromptResponse{
		Success:    true,
		PromptType: req.PromptType,
		Prompt:     prompt,
		Parameters: req.Parameters,
	}
	if req.Speak && e.tts.Available() {
		personality := ""
		if pref, err := e.repo.GetOrCreatePreference(r.Context(), user.ID); err == nil {
			personality = pref.AIPersonality
		}
		voice := PickTutorVoice(personality, user.ID)
		audio, err := e.tts.Speak(r.Context(), promptIntro(prompt), voice)
		if err != nil {
			// the prompt is still useful without audio
			slog.Warn("Failed to speak prompt", "user_id", user.ID, "error", err)
		} else {
			resp.Audio = base64.StdEncoding.EncodeToString(audio)
			resp.VoiceID = voice
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *EvaluateEndpoints) AnalyzeProgressHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req struct {
		SessionIDs []string `json:"session_ids"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	analysis, err := e.service.AnalyzeProgress(r.Context(), user.ID, req.SessionIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "progress_analysis": analysis})
}
