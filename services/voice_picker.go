package services

import (
	"crypto/sha1"
	"encoding/binary"
	"strings"
)

const defaultVoice = "EXAVITQu4vr4xnSDxMaL" // Rachel

// Stock ElevenLabs voices grouped by tutor personality.
var tutorVoices = map[string][]string{
	"friendly": {
		"EXAVITQu4vr4xnSDxMaL", // Rachel
		"AZnzlk1XvdvUeBnXmlld", // Bella
		"TxGEqnHWrfWFTfGW9XjX", // Antoni
	},
	"professional": {
		"21m00Tcm4TlvDq8ikWAM", // Domi
		"pNInz6obpgDQGcFmaJgB", // Adam
		"VR6AewLTigWG4xSOukaG", // Josh
	},
	"encouraging": {
		"ErXwobaYiN019PkySvjV", // Elli
		"MF3mGyEYCl7XYWbV9V6O", // Dorothy
		"bVMeCyTHy58xNoL34h3p", // Clyde
	},
}

// PickTutorVoice returns a stable voice for a learner, drawn from the pool of their preferred tutor personality.
func PickTutorVoice(personality, userID string) string {
	pool, ok := tutorVoices[strings.ToLower(personality)]
	if !ok {
		pool = tutorVoices["friendly"]
	}
	if len(pool) == 0 {
		return defaultVoice
	}
	h := sha1.New()
	h.Write([]byte(strings.ToLower(userID)))
	sum := h.Sum(nil)
	idx := binary.BigEndian.Uint16(sum) % uint16(len(pool))
	return pool[idx]
}
