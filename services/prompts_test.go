package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptTypes(t *testing.T) {
	types := PromptTypes()
	assert.Len(t, types, 8)
	assert.IsNonDecreasing(t, types)
	assert.Contains(t, types, PromptCulturalScenario)
}

func TestRenderPromptDefaults(t *testing.T) {
	out, err := RenderPrompt(PromptComprehensive, map[string]any{"transcription": "I am agree with you"})
	require.NoError(t, err)
	assert.Contains(t, out, "TRANSCRIPTION: I am agree with you")
	assert.Contains(t, out, "SCENARIO: General conversation")
	assert.Contains(t, out, "from a intermediate student")
}

func TestRenderPromptEmptyValuesKeepDefaults(t *testing.T) {
	out, err := RenderPrompt(PromptPragmatic, map[string]any{"relationship": "", "scenario": nil})
	require.NoError(t, err)
	assert.Contains(t, out, "RELATIONSHIP: peer")
	assert.Contains(t, out, "SCENARIO: General conversation")
}

func TestRenderPromptJoinsLists(t *testing.T) {
	out, err := RenderPrompt(PromptPhonetic, map[string]any{"focus_sounds": []any{"th", "v"}})
	require.NoError(t, err)
	assert.Contains(t, out, "FOCUS: th, v")

	out, err = RenderPrompt(PromptScenarioAdaptation, map[string]any{"interests": []string{"football", "cooking"}})
	require.NoError(t, err)
	assert.Contains(t, out, "INTERESTS: football, cooking")

	out, err = RenderPrompt(PromptScenarioAdaptation, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "INTERESTS: general topics")
}

func TestRenderPromptUnknownType(t *testing.T) {
	_, err := RenderPrompt("haiku", nil)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPromptIntro(t *testing.T) {
	out, err := RenderPrompt(PromptPhonetic, nil)
	require.NoError(t, err)
	assert.Equal(t, "You are a phonetics coach for Indonesian learners of English.", promptIntro(out))

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, promptIntro(string(long)), 200)
}
