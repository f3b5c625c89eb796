package services

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"
)

const (
	PromptComprehensive      = "comprehensive"
	PromptPhonetic           = "phonetic"
	PromptPragmatic          = "pragmatic"
	PromptSequential         = "sequential"
	PromptErrorCorrection    = "error_correction"
	PromptScenarioAdaptation = "scenario_adaptation"
	PromptMotivational       = "motivational"
	PromptCulturalScenario   = "cultural_scenario"
)

type promptTemplate struct {
	tmpl     *template.Template
	defaults map[string]any
}

var promptFuncs = template.FuncMap{
	"join": func(v any) string {
		switch list := v.(type) {
		case []string:
			return strings.Join(list, ", ")
		case []any:
			parts := make([]string, len(list))
			for i, p := range list {
				parts[i] = fmt.Sprint(p)
			}
			return strings.Join(parts, ", ")
		case nil:
			return ""
		}
		return fmt.Sprint(v)
	},
}

func mustPrompt(text string, defaults map[string]any) promptTemplate {
	return promptTemplate{
		tmpl:     template.Must(template.New("").Funcs(promptFuncs).Parse(strings.TrimSpace(text))),
		defaults: defaults,
	}
}

var prompts = map[string]promptTemplate{
	PromptComprehensive: mustPrompt(`
You are an English teacher who specialises in {{.cultural_context}} learners.
Evaluate this transcribed speech from a {{.user_level}} student.

TRANSCRIPTION: {{.transcription}}
SCENARIO: {{.scenario}}

Return JSON with the keys pronunciation, grammar, fluency, vocabulary and cultural_appropriateness.
Each key holds {"score": 0-100, "issues": [], "suggestions": []}.
Watch for the usual {{.cultural_context}} learner difficulties: th and v sounds, consonant clusters,
articles, present perfect against simple past, and register.`,
		map[string]any{"transcription": "", "scenario": "General conversation", "user_level": "intermediate", "cultural_context": "Indonesian"}),

	PromptPhonetic: mustPrompt(`
You are a phonetics coach for Indonesian learners of English.

TEXT: {{.transcription}}
LEVEL: {{.user_level}}
FOCUS: {{join .focus_sounds}}

List mispronounced phonemes in IPA, word stress errors, intonation and rhythm problems,
and minimal pairs to practise. Check /θ/ and /ð/ realised as /t/ and /d/, /v/ realised as /f/ or /p/,
simplified final clusters and vowel length. Answer in JSON.`,
		map[string]any{"transcription": "", "user_level": "intermediate", "focus_sounds": "all sounds"}),

	PromptPragmatic: mustPrompt(`
Judge the pragmatic fit of this speech from a {{.cultural_context}} speaker.

SPEECH: {{.transcription}}
SCENARIO: {{.scenario}}
RELATIONSHIP: {{.relationship}}

Cover speech acts, politeness and face, register and formality, and turn-taking.
Relate your notes to the Hofstede profile: power distance 78, individualism 14,
uncertainty avoidance 48. Give concrete examples and culturally careful suggestions.`,
		map[string]any{"transcription": "", "scenario": "General conversation", "relationship": "peer", "cultural_context": "Indonesian"}),

	PromptSequential: mustPrompt(`
Assess the coherence of this speech in context.

CURRENT: {{.transcription}}
PREVIOUS CONTEXT: {{.previous_context}}

Look at discourse markers, reference and cohesion, given and new information,
overall structure and relevance to what came before. Point to specific improvements.`,
		map[string]any{"transcription": "", "previous_context": "No previous context"}),

	PromptErrorCorrection: mustPrompt(`
You correct {{.error_type}} errors for {{.user_level}} learners.

TEXT: {{.transcription}}

For every {{.error_type}} error give the correction, a short explanation pitched at {{.user_level}},
a rule to remember and one practice exercise. Keep the tone encouraging. Answer in JSON.`,
		map[string]any{"transcription": "", "error_type": "grammar", "user_level": "intermediate"}),

	PromptScenarioAdaptation: mustPrompt(`
Adapt this speaking scenario for a {{.user_level}} learner from a {{.cultural_background}} background.

BASE SCENARIO: {{.base_scenario}}
INTERESTS: {{join .interests}}

Describe the context and roles, the communication goals, key phrases,
cultural considerations and how success is judged.`,
		map[string]any{"base_scenario": "", "user_level": "intermediate", "cultural_background": "Indonesian", "interests": "general topics"}),

	PromptMotivational: mustPrompt(`
Write motivating feedback for a learner.

PERFORMANCE: {{.performance}}
GOALS: {{.goals}}
LEARNING STYLE: {{.learning_style}}

Name specific strengths, frame weaknesses as next steps, and give three concrete things to practise.
Favour group achievement and face-saving wording. Tie the advice to the learner's goals.`,
		map[string]any{"performance": "", "goals": "improve English speaking", "learning_style": "general"}),

	PromptCulturalScenario: mustPrompt(`
Create an English speaking scenario for Indonesian students and professionals.

TYPE: {{.scenario_type}}
FORMALITY: {{.formality_level}}
CULTURAL ELEMENTS: {{join .cultural_elements}}

Include a description, roles and relationships, key phrases, cultural tips,
a path from easy to harder variants, and evaluation criteria.`,
		map[string]any{"scenario_type": "daily_life", "formality_level": "neutral", "cultural_elements": "Indonesian cultural context"}),
}

// PromptTypes lists the supported template names in a stable order.
func PromptTypes() []string {
	return slices.Sorted(maps.Keys(prompts))
}

// RenderPrompt fills the named template. Parameters missing from params take the template defaults.
func RenderPrompt(promptType string, params map[string]any) (string, error) {
	p, ok := prompts[promptType]
	if !ok {
		return "", invalid("Unknown prompt type: %q", promptType)
	}
	data := maps.Clone(p.defaults)
	for k, v := range params {
		if v != nil && v != "" {
			data[k] = v
		}
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", promptType, err)
	}
	return b.String(), nil
}

// promptIntro returns the first line of a rendered prompt, used as the spoken intro.
func promptIntro(rendered string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(rendered), "\n")
	if len(line) > 200 {
		line = line[:200]
	}
	return strings.TrimSpace(line)
}
