package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioCacheRoundTrip(t *testing.T) {
	ac := NewAudioCache(t.TempDir())
	ctx := context.Background()

	_, ok := ac.Get(ctx, "Good morning", "voice-a")
	assert.False(t, ok)

	require.NoError(t, ac.Set(ctx, "Good morning", "voice-a", []byte("mp3")))
	data, ok := ac.Get(ctx, "Good morning", "voice-a")
	require.True(t, ok)
	assert.Equal(t, []byte("mp3"), data)

	_, ok = ac.Get(ctx, "Good morning", "voice-b")
	assert.False(t, ok, "voices are cached separately")

	files, size, err := ac.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, int64(3), size)
}

func TestAudioCacheSkipsLongPhrases(t *testing.T) {
	ac := NewAudioCache(t.TempDir())
	long := strings.Repeat("é", maxCachedPhrase+1)

	assert.True(t, ac.Cacheable(strings.Repeat("é", maxCachedPhrase)))
	assert.False(t, ac.Cacheable(long))
	assert.False(t, ac.Cacheable(""))

	require.NoError(t, ac.Set(context.Background(), long, "v", []byte("x")))
	files, _, err := ac.Stats()
	require.NoError(t, err)
	assert.Zero(t, files)
}

func TestAudioCacheGetOrGenerate(t *testing.T) {
	ac := NewAudioCache(t.TempDir())
	ctx := context.Background()
	calls := 0
	gen := func() (io.ReadCloser, error) {
		calls++
		return io.NopCloser(strings.NewReader("audio")), nil
	}

	for range 2 {
		data, err := ac.GetOrGenerate(ctx, "Terima kasih", "v", gen)
		require.NoError(t, err)
		assert.Equal(t, []byte("audio"), data)
	}
	assert.Equal(t, 1, calls)

	_, err := ac.GetOrGenerate(ctx, "Other phrase", "v", func() (io.ReadCloser, error) {
		return nil, errors.New("quota exceeded")
	})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestPickTutorVoice(t *testing.T) {
	v := PickTutorVoice("professional", "User-1")
	assert.Contains(t, tutorVoices["professional"], v)
	assert.Equal(t, v, PickTutorVoice("PROFESSIONAL", "user-1"), "stable across case")

	assert.Contains(t, tutorVoices["friendly"], PickTutorVoice("sarcastic", "u2"))
}
