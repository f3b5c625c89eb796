package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/models"
)

type recordingSender struct {
	mu     sync.Mutex
	events []map[string]any
}

func (r *recordingSender) SendJSON(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, v.(map[string]any))
}

func (r *recordingSender) ofType(t string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []map[string]any
	for _, e := range r.events {
		if e["type"] == t {
			out = append(out, e)
		}
	}
	return out
}

type memoryTranscripts struct {
	mu       sync.Mutex
	rows     []models.RealTimeTranscript
	appended []string
	touches  int
}

func (m *memoryTranscripts) CreateTranscript(ctx context.Context, t *models.RealTimeTranscript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *t)
	return nil
}

func (m *memoryTranscripts) AppendTranscript(ctx context.Context, sessionID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, text)
	return nil
}

func (m *memoryTranscripts) TouchSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	return nil
}

func newTestStream(startChunk int, transcribe func(ctx context.Context, wav []byte) (string, error)) (*AudioStream, *recordingSender, *memoryTranscripts) {
	sender := &recordingSender{}
	store := &memoryTranscripts{}
	s := &AudioStream{
		sessionID:  "s1",
		send:       sender,
		store:      store,
		transcribe: transcribe,
		nextChunk:  startChunk,
		firstChunk: startChunk,
	}
	s.start()
	return s, sender, store
}

func TestAudioStreamChunksInOrder(t *testing.T) {
	var sizes []int
	calls := 0
	s, sender, store := newTestStream(3, func(ctx context.Context, wav []byte) (string, error) {
		calls++
		sizes = append(sizes, len(wav))
		return fmt.Sprintf("part%d", calls), nil
	})

	s.Append(make([]byte, 40000))
	s.Append(make([]byte, 30000))
	assert.Equal(t, 2, s.TotalChunks())

	s.Flush()
	assert.Equal(t, 3, s.TotalChunks())
	assert.Equal(t, 6, s.NextChunk())
	assert.Equal(t, 3, s.Processed())
	assert.Equal(t, "part1 part2 part3", s.Transcript())
	assert.Equal(t, []int{44 + streamChunkBytes, 44 + streamChunkBytes, 44 + 6000}, sizes)

	events := sender.ofType("transcription")
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, 3+i, e["chunk_index"])
		assert.Equal(t, 0.9, e["confidence"])
	}
	assert.Equal(t, false, events[1]["is_final"])
	assert.Equal(t, true, events[2]["is_final"])

	require.Len(t, store.rows, 3)
	assert.Equal(t, 3.0, store.rows[0].StartTime)
	assert.Equal(t, 4.0, store.rows[0].EndTime)
	assert.Equal(t, []string{"part1", "part2", "part3"}, store.appended)
}

func TestAudioStreamWithoutTranscriber(t *testing.T) {
	s, sender, store := newTestStream(0, nil)

	s.Append(make([]byte, streamChunkBytes*2))
	s.Flush()

	assert.Len(t, sender.ofType("error"), 2)
	assert.Empty(t, sender.ofType("transcription"))
	assert.Equal(t, 0, s.Processed())
	assert.Empty(t, store.rows)
	assert.Equal(t, 2, store.touches)
}

func TestAudioStreamFailedChunkKeepsItsIndex(t *testing.T) {
	calls := 0
	s, sender, store := newTestStream(0, func(ctx context.Context, wav []byte) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("upstream timeout")
		}
		return "ok", nil
	})

	s.Append(make([]byte, streamChunkBytes*3))
	s.Flush()

	errs := sender.ofType("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "Transcription failed for chunk 1", errs[0]["message"])

	events := sender.ofType("transcription")
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0]["chunk_index"])
	assert.Equal(t, 2, events[1]["chunk_index"])
	assert.Equal(t, 3, store.touches)
}

func TestAudioStreamEmptyTextIsNotAppended(t *testing.T) {
	s, sender, store := newTestStream(0, func(ctx context.Context, wav []byte) (string, error) {
		return "", nil
	})
	s.Append(make([]byte, 100))
	s.Flush()

	require.Len(t, sender.ofType("transcription"), 1)
	assert.Equal(t, 0.0, sender.ofType("transcription")[0]["confidence"])
	assert.Len(t, store.rows, 1)
	assert.Empty(t, store.appended)
	assert.Equal(t, "", s.Transcript())
}

func TestAudioStreamRestartDropsBuffer(t *testing.T) {
	s, sender, _ := newTestStream(0, func(ctx context.Context, wav []byte) (string, error) {
		return "x", nil
	})
	s.Append(make([]byte, streamChunkBytes+10))
	s.Restart()
	assert.Equal(t, 0, s.TotalChunks())
	assert.Equal(t, 1, s.NextChunk())

	s.Append(make([]byte, streamChunkBytes))
	s.Flush()

	events := sender.ofType("transcription")
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[1]["chunk_index"])
	assert.Equal(t, 1, s.TotalChunks())
}

func TestAudioStreamAppendAfterFlushIsIgnored(t *testing.T) {
	s, sender, _ := newTestStream(0, func(ctx context.Context, wav []byte) (string, error) {
		return "x", nil
	})
	s.Flush()
	s.Append(make([]byte, streamChunkBytes))
	s.Flush()
	assert.Empty(t, sender.ofType("transcription"))
}

func TestIntermediateFeedback(t *testing.T) {
	s, _, _ := newTestStream(0, func(ctx context.Context, wav []byte) (string, error) {
		return "hello there", nil
	})
	s.Append(make([]byte, 10))
	s.Flush()

	fb := s.IntermediateFeedback(context.Background())
	assert.Equal(t, "intermediate_feedback", fb["type"])
	assert.Equal(t, staticEncouragement, fb["feedback"])
	assert.Equal(t, 1, fb["chunks_processed"])
	assert.Equal(t, "hello there", fb["transcript"])

	s.feedback = func(ctx context.Context, transcript string) (string, error) {
		return "Nice greeting.", nil
	}
	assert.Equal(t, "Nice greeting.", s.IntermediateFeedback(context.Background())["feedback"])

	s.feedback = func(ctx context.Context, transcript string) (string, error) {
		return "", errors.New("quota")
	}
	assert.Equal(t, staticEncouragement, s.IntermediateFeedback(context.Background())["feedback"])
}

func TestDecodeStreamAudio(t *testing.T) {
	data, err := decodeStreamAudio(StreamMessage{Audio: "aGVsbG8="})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = decodeStreamAudio(StreamMessage{AudioData: "data:audio/pcm;base64,aGVsbG8="})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	var ve *ValidationError
	_, err = decodeStreamAudio(StreamMessage{})
	assert.ErrorAs(t, err, &ve)
	_, err = decodeStreamAudio(StreamMessage{Audio: "!!not base64"})
	assert.ErrorAs(t, err, &ve)
}

func TestParseStreamMessage(t *testing.T) {
	msg, err := parseStreamMessage([]byte(`{"type":"audio_chunk","audio":"AAA="}`))
	require.NoError(t, err)
	assert.Equal(t, "audio_chunk", msg.Type)
	assert.Equal(t, "AAA=", msg.Audio)

	_, err = parseStreamMessage([]byte("not json"))
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCanonicalEvent(t *testing.T) {
	assert.Equal(t, eventAudio, canonicalEvent("audio_chunk"))
	assert.Equal(t, eventEnd, canonicalEvent("end_stream"))
	assert.Equal(t, eventFeedback, canonicalEvent("get_feedback"))
	assert.Equal(t, eventStart, canonicalEvent("session.start"))
	assert.Equal(t, "unknown", canonicalEvent("unknown"))
}

func TestPCMToWAV(t *testing.T) {
	pcm := make([]byte, 320)
	wav := pcmToWAV(pcm, streamSampleRate)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, uint32(streamSampleRate), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}
