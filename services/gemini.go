package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/voicevibe/backend/metrics"

	"google.golang.org/genai"
)

const (
	transcribeTimeout = 15 * time.Second
	evaluateTimeout   = 30 * time.Second

	liveTokenTTL        = 30 * time.Minute
	liveSessionDeadline = time.Minute
	liveAPIVersion      = "v1alpha"

	streamSampleRate = 16000
)

// GeminiService wraps the genai client. A nil *GeminiService is valid and reports ErrAIUnavailable.
type GeminiService struct {
	client    *genai.Client
	model     string
	liveModel string
}

func NewGeminiService(cfg AIConfig) *GeminiService {
	if cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, AI evaluation disabled")
		return nil
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil
	}
	return &GeminiService{client: client, model: cfg.GeminiModel, liveModel: cfg.GeminiLiveModel}
}

func (g *GeminiService) Available() bool {
	return g != nil && g.client != nil
}

// generate runs one GenerateContent call and records it under op.
func (g *GeminiService) generate(ctx context.Context, op string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	if !g.Available() {
		return "", ErrAIUnavailable
	}
	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	metrics.RecordLLMCall(op, time.Since(start), err)
	if err != nil {
		slog.Error("Gemini request failed", "operation", op, "error", err)
		return "", fmt.Errorf("%w: %s: %v", ErrAIProvider, op, err)
	}
	return result.Text(), nil
}

// Transcribe returns the words spoken in audio.
func (g *GeminiService) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if len(audio) == 0 {
		return "", invalid("audio is empty")
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	if language == "" {
		language = "en"
	}
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	prompt := fmt.Sprintf("Transcribe this speech verbatim. The speaker is practising language %q. "+
		"Return only the spoken words without commentary or timestamps. Return an empty response when nothing is said.", language)
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(audio, mimeType),
	}
	text, err := g.generate(ctx, "transcribe", []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	slog.Debug("Audio transcribed", "size", len(audio), "mime_type", mimeType, "transcript_length", len(text))
	return text, nil
}

// EvaluateSkill asks for a JSON evaluation of one skill. A reply that cannot be parsed yields the fallback evaluation.
func (g *GeminiService) EvaluateSkill(ctx context.Context, skill string, in EvaluationInput) (*SkillEvaluation, error) {
	prompt, err := skillPrompt(skill, in)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, evaluateTimeout)
	defer cancel()

	raw, err := g.generate(ctx, "evaluate_"+skill, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.2),
		SystemInstruction: genai.NewContentFromText(evaluatorInstruction, genai.RoleUser),
	})
	if err != nil {
		return nil, err
	}
	eval := parseEvaluation(raw)
	if skill == SkillFluency {
		wpm := wordsPerMinute(in.Transcription, in.Duration)
		eval.WordsPerMinute = &wpm
	}
	return &eval, nil
}

// QuickFeedback returns one or two encouraging sentences about a partial transcript.
func (g *GeminiService) QuickFeedback(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()
	prompt := "In at most two short sentences, give encouraging feedback with one concrete tip on this learner speech:\n\n" + transcript
	text, err := g.generate(ctx, "quick_feedback", genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(evaluatorInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GenerateText runs a free-form prompt.
func (g *GeminiService) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, evaluateTimeout)
	defer cancel()
	return g.generate(ctx, "generate", genai.Text(prompt), nil)
}

type LiveTokenRequest struct {
	Model                string   `json:"model"`
	ResponseModalities   []string `json:"response_modalities"`
	SystemInstruction    string   `json:"system_instruction"`
	LockAdditionalFields []string `json:"lock_additional_fields"`
}

type LiveToken struct {
	Token              string    `json:"token"`
	ExpiresAt          time.Time `json:"expires_at"`
	Model              string    `json:"model"`
	ResponseModalities []string  `json:"response_modalities"`
	LockedFields       []string  `json:"locked_fields"`
}

var liveModalities = []string{string(genai.ModalityText), string(genai.ModalityAudio)}

// CreateLiveToken mints an ephemeral token for a client-side Gemini Live connection.
func (g *GeminiService) CreateLiveToken(ctx context.Context, req LiveTokenRequest) (*LiveToken, error) {
	if !g.Available() {
		return nil, ErrAIUnavailable
	}
	model := req.Model
	if model == "" {
		model = g.liveModel
	}
	modalities := []genai.Modality{genai.ModalityText}
	if len(req.ResponseModalities) > 0 {
		modalities = modalities[:0]
		for _, m := range req.ResponseModalities {
			m = strings.ToUpper(strings.TrimSpace(m))
			if !slices.Contains(liveModalities, m) {
				return nil, invalid("Unsupported response modality: %s", m)
			}
			modalities = append(modalities, genai.Modality(m))
		}
	}
	liveConfig := &genai.LiveConnectConfig{ResponseModalities: modalities}
	if req.SystemInstruction != "" {
		liveConfig.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	now := time.Now().UTC()
	expires := now.Add(liveTokenTTL)
	start := time.Now()
	token, err := g.client.AuthTokens.Create(ctx, &genai.CreateAuthTokenConfig{
		HTTPOptions:          &genai.HTTPOptions{APIVersion: liveAPIVersion},
		ExpireTime:           expires,
		NewSessionExpireTime: now.Add(liveSessionDeadline),
		Uses:                 genai.Ptr[int32](1),
		LiveConnectConstraints: &genai.LiveConnectConstraints{
			Model:  model,
			Config: liveConfig,
		},
		LockAdditionalFields: req.LockAdditionalFields,
	})
	metrics.RecordLLMCall("live_token", time.Since(start), err)
	if err != nil {
		slog.Error("Failed to create live auth token", "model", model, "error", err)
		return nil, fmt.Errorf("%w: live token: %v", ErrAIProvider, err)
	}

	names := make([]string, len(modalities))
	for i, m := range modalities {
		names[i] = string(m)
	}
	locked := req.LockAdditionalFields
	if locked == nil {
		locked = []string{}
	}
	return &LiveToken{
		Token:              token.Name,
		ExpiresAt:          expires,
		Model:              model,
		ResponseModalities: names,
		LockedFields:       locked,
	}, nil
}

// pcmToWAV prefixes raw 16-bit mono PCM with a RIFF header.
func pcmToWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// audioMIMEType maps an upload extension to a MIME type Gemini accepts.
func audioMIMEType(format string) (string, bool) {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "wav":
		return "audio/wav", true
	case "mp3":
		return "audio/mp3", true
	case "ogg":
		return "audio/ogg", true
	case "flac":
		return "audio/flac", true
	case "aac":
		return "audio/aac", true
	}
	return "", false
}

// convertToWAV transcodes audio Gemini cannot read (webm, m4a) to 16 kHz mono WAV with ffmpeg.
func convertToWAV(ctx context.Context, data []byte, format string) ([]byte, error) {
	inputFile, err := os.CreateTemp("", "input-*."+strings.TrimPrefix(format, "."))
	if err != nil {
		return nil, fmt.Errorf("failed to create input temp file: %w", err)
	}
	defer os.Remove(inputFile.Name())
	defer inputFile.Close()

	outputFile, err := os.CreateTemp("", "output-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create output temp file: %w", err)
	}
	defer os.Remove(outputFile.Name())
	outputFile.Close()

	if _, err := inputFile.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	inputFile.Close()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputFile.Name(),
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(streamSampleRate),
		"-ac", "1",
		"-y",
		outputFile.Name(),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		slog.Debug("ffmpeg output", "output", string(out))
		return nil, fmt.Errorf("ffmpeg conversion failed: %w", err)
	}

	wavData, err := os.ReadFile(outputFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read converted WAV file: %w", err)
	}
	slog.Info("Audio conversion completed", "format", format, "input_size", len(data), "wav_size", len(wavData))
	return wavData, nil
}

// prepareAudio returns audio bytes and MIME type ready for Transcribe.
func prepareAudio(ctx context.Context, data []byte, format string) ([]byte, string, error) {
	if mime, ok := audioMIMEType(format); ok {
		return data, mime, nil
	}
	wav, err := convertToWAV(ctx, data, format)
	if err != nil {
		return nil, "", err
	}
	return wav, "audio/wav", nil
}
