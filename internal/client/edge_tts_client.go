package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/edutalk/api/internal/config"
	"github.com/edutalk/api/internal/model"
	"github.com/rs/zerolog/log"
)

// EdgeTTSClient synthesizes narration by running the edge-tts command line tool.
type EdgeTTSClient struct {
	runner       CommandRunner
	binary       string
	defaultVoice model.Voice
}

// NewEdgeTTSClient creates a new edge-tts client
func NewEdgeTTSClient(cfg *config.TTSConfig, runner CommandRunner) *EdgeTTSClient {
	return &EdgeTTSClient{
		runner:       runner,
		binary:       cfg.Binary,
		defaultVoice: model.ResolveVoice(cfg.DefaultVoice, model.DefaultVoice),
	}
}

// Synthesize speaks text with the given voice and returns the path of the audio file
// written under outputDir.
func (c *EdgeTTSClient) Synthesize(ctx context.Context, text string, voice model.Voice, outputDir string) (string, error) {
	cleaned := CleanScriptForSpeech(text)
	if cleaned == "" {
		return "", errors.New("nothing to synthesize")
	}
	if _, ok := model.Voices[voice]; !ok {
		voice = c.defaultVoice
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio dir: %w", err)
	}

	textFile, err := os.CreateTemp(outputDir, "script-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	defer os.Remove(textFile.Name())
	if _, err := textFile.WriteString(cleaned); err != nil {
		textFile.Close()
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	if err := textFile.Close(); err != nil {
		return "", fmt.Errorf("failed to write script file: %w", err)
	}

	// Write under a unique name first; identical scripts map to the same final name.
	partial, err := os.CreateTemp(outputDir, "speech-*.part.mp3")
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	partial.Close()
	defer os.Remove(partial.Name())

	log.Debug().Str("voice", string(voice)).Int("chars", len(cleaned)).Msg("generating speech")

	_, err = c.runner.Run(ctx, "", c.binary,
		"--voice", model.VoiceName(voice),
		"--file", textFile.Name(),
		"--write-media", partial.Name(),
	)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(partial.Name())
	if err != nil || info.Size() == 0 {
		return "", errors.New("edge-tts produced no audio")
	}

	outputPath := filepath.Join(outputDir, AudioFileName(voice, cleaned))
	if err := os.Rename(partial.Name(), outputPath); err != nil {
		return "", fmt.Errorf("failed to store audio: %w", err)
	}

	return outputPath, nil
}

// IsConfigured reports whether the edge-tts binary can be found
func (c *EdgeTTSClient) IsConfigured() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// AudioFileName derives a stable file name from the voice and the spoken text.
func AudioFileName(voice model.Voice, text string) string {
	sum := md5.Sum([]byte(string(voice) + "|" + text))
	return fmt.Sprintf("educational_speech_%s.mp3", hex.EncodeToString(sum[:])[:8])
}

var spokenAbbreviations = []struct {
	pattern *regexp.Regexp
	spoken  string
}{
	{regexp.MustCompile(`\bAI\b`), "A I"},
	{regexp.MustCompile(`\bML\b`), "M L"},
	{regexp.MustCompile(`\bGPU\b`), "G P U"},
	{regexp.MustCompile(`\bCPU\b`), "C P U"},
	{regexp.MustCompile(`\bAPI\b`), "A P I"},
	{regexp.MustCompile(`\bURL\b`), "U R L"},
	{regexp.MustCompile(`\bHTML\b`), "H T M L"},
	{regexp.MustCompile(`\bCSS\b`), "C S S"},
}

// CleanScriptForSpeech collapses whitespace and spells out abbreviations that
// speech engines tend to mispronounce.
func CleanScriptForSpeech(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	for _, abbr := range spokenAbbreviations {
		cleaned = abbr.pattern.ReplaceAllString(cleaned, abbr.spoken)
	}
	return cleaned
}
