package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"
)

// Longer texts are unlikely to repeat and are not cached.
const maxCachedPhrase = 200

// AudioCache keeps synthesized phrases on disk keyed by text and voice.
type AudioCache struct {
	cacheDir string
	mutex    sync.RWMutex
}

func NewAudioCache(cacheDir string) *AudioCache {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		slog.Error("Failed to create cache directory", "dir", cacheDir, "error", err)
	}
	return &AudioCache{cacheDir: cacheDir}
}

func (ac *AudioCache) cacheKey(text, voiceID string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", text, voiceID)))
	return hex.EncodeToString(hash[:])
}

func (ac *AudioCache) cachePath(key string) string {
	return filepath.Join(ac.cacheDir, key+".mp3")
}

func (ac *AudioCache) Cacheable(text string) bool {
	return text != "" && utf8.RuneCountInString(text) <= maxCachedPhrase
}

func (ac *AudioCache) Get(ctx context.Context, text, voiceID string) ([]byte, bool) {
	if !ac.Cacheable(text) {
		return nil, false
	}
	ac.mutex.RLock()
	defer ac.mutex.RUnlock()

	path := ac.cachePath(ac.cacheKey(text, voiceID))
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to read cached audio", "path", path, "error", err)
		}
		return nil, false
	}
	slog.Debug("TTS cache hit", "voice_id", voiceID)
	return data, true
}

func (ac *AudioCache) Set(ctx context.Context, text, voiceID string, audioData []byte) error {
	if !ac.Cacheable(text) {
		return nil
	}
	ac.mutex.Lock()
	defer ac.mutex.Unlock()

	path := ac.cachePath(ac.cacheKey(text, voiceID))
	if err := os.WriteFile(path, audioData, 0o644); err != nil {
		slog.Error("Failed to write audio to cache", "path", path, "error", err)
		return err
	}
	slog.Debug("Cached phrase audio", "voice_id", voiceID, "size", len(audioData))
	return nil
}

// GetOrGenerate returns cached audio or calls generator and caches its output.
func (ac *AudioCache) GetOrGenerate(ctx context.Context, text, voiceID string, generator func() (io.ReadCloser, error)) ([]byte, error) {
	if data, found := ac.Get(ctx, text, voiceID); found {
		return data, nil
	}

	audioReader, err := generator()
	if err != nil {
		return nil, fmt.Errorf("failed to generate audio: %w", err)
	}
	defer audioReader.Close()

	audioData, err := io.ReadAll(audioReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if err := ac.Set(ctx, text, voiceID, audioData); err != nil {
		slog.Warn("Failed to cache audio", "error", err)
	}
	return audioData, nil
}

// Stats returns the number of cached files and their total size.
func (ac *AudioCache) Stats() (int, int64, error) {
	ac.mutex.RLock()
	defer ac.mutex.RUnlock()

	entries, err := os.ReadDir(ac.cacheDir)
	if err != nil {
		return 0, 0, err
	}
	var totalSize int64
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp3" {
			continue
		}
		count++
		if info, err := entry.Info(); err == nil {
			totalSize += info.Size()
		}
	}
	return count, totalSize, nil
}
