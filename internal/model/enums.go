package model

import (
	"sort"
	"strings"
)

// Voice is a short selector for an edge-tts neural voice.
type Voice string

const (
	VoiceJenny Voice = "jenny"
	VoiceGuy   Voice = "guy"
	VoiceAria  Voice = "aria"
	VoiceDavis Voice = "davis"
	VoiceJane  Voice = "jane"
)

// DefaultVoice is used when a request names no voice or an unknown one.
const DefaultVoice = VoiceJenny

// Voices maps educational-friendly selectors to edge-tts voice names.
var Voices = map[Voice]string{
	VoiceJenny: "en-US-JennyNeural", // clear, friendly female
	VoiceGuy:   "en-US-GuyNeural",   // clear male
	VoiceAria:  "en-US-AriaNeural",  // warm female
	VoiceDavis: "en-US-DavisNeural", // professional male
	VoiceJane:  "en-US-JaneNeural",  // calm female
}

// ResolveVoice normalizes a requested selector. Full neural names are accepted too.
// Absent or unrecognized selectors resolve to fallback.
func ResolveVoice(requested string, fallback Voice) Voice {
	key := Voice(strings.ToLower(strings.TrimSpace(requested)))
	if _, ok := Voices[key]; ok {
		return key
	}
	for v, name := range Voices {
		if strings.EqualFold(name, strings.TrimSpace(requested)) {
			return v
		}
	}
	if _, ok := Voices[fallback]; ok {
		return fallback
	}
	return DefaultVoice
}

// VoiceName returns the edge-tts voice for a selector, falling back to the default voice.
func VoiceName(v Voice) string {
	if name, ok := Voices[v]; ok {
		return name
	}
	return Voices[DefaultVoice]
}

// VoiceKeys lists the known selectors in stable order.
func VoiceKeys() []Voice {
	keys := make([]Voice, 0, len(Voices))
	for v := range Voices {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Gender is the best-effort classification of an uploaded presenter face.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// SuggestVoice picks a default voice for a presenter. Only a male classification
// changes the suggestion; female and unknown both get the default voice.
func SuggestVoice(g Gender) Voice {
	if g == GenderMale {
		return VoiceGuy
	}
	return DefaultVoice
}
