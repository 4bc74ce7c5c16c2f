package service

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/edutalk/api/internal/config"
	"github.com/rs/zerolog/log"
)

//go:embed prompts/educational_prompt.txt
var defaultPrompt string

// ChatCompleter is the LLM transport used for script writing.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
}

// ScriptService writes narration scripts with an LLM
type ScriptService struct {
	llm             ChatCompleter
	prompt          string
	audience        string
	durationSeconds int
}

// NewScriptService creates a script service. A prompt_file, when set, replaces the
// built-in prompt; it may use the {topic}, {audience} and {duration_seconds} placeholders.
func NewScriptService(llm ChatCompleter, cfg *config.LLMConfig) (*ScriptService, error) {
	prompt := defaultPrompt
	if cfg.PromptFile != "" {
		data, err := os.ReadFile(cfg.PromptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file: %w", err)
		}
		prompt = string(data)
	}

	return &ScriptService{
		llm:             llm,
		prompt:          prompt,
		audience:        cfg.Audience,
		durationSeconds: cfg.DurationSeconds,
	}, nil
}

// Generate writes a script for topic. Zero duration or empty audience use the
// configured defaults.
func (s *ScriptService) Generate(ctx context.Context, topic string, durationSeconds int, audience string) (string, error) {
	if durationSeconds <= 0 {
		durationSeconds = s.durationSeconds
	}
	if audience == "" {
		audience = s.audience
	}

	// Use mock script if client is not configured
	if s.llm == nil || !s.llm.IsConfigured() {
		log.Warn().Str("topic", topic).Msg("llm not configured, using mock script")
		return mockScript(topic), nil
	}

	response, err := s.llm.ChatCompletion(ctx, "", s.renderPrompt(topic, durationSeconds, audience))
	if err != nil {
		return "", fmt.Errorf("AI generation failed: %w", err)
	}

	script := strings.TrimSpace(response)
	if script == "" {
		return "", fmt.Errorf("AI returned an empty script")
	}
	return script, nil
}

// GenerateDefault writes a script using the configured duration and audience.
func (s *ScriptService) GenerateDefault(ctx context.Context, topic string) (string, error) {
	return s.Generate(ctx, topic, 0, "")
}

func (s *ScriptService) renderPrompt(topic string, durationSeconds int, audience string) string {
	return strings.NewReplacer(
		"{topic}", topic,
		"{audience}", audience,
		"{duration_seconds}", strconv.Itoa(durationSeconds),
	).Replace(s.prompt)
}

// Mock implementation for development/testing
func mockScript(topic string) string {
	return fmt.Sprintf("Have you ever wondered how %[1]s works? Let's take a closer look. "+
		"At its heart, %[1]s is about a few simple ideas that build on each other. "+
		"Once you see how they connect, the whole picture makes sense. "+
		"So remember: %[1]s is easier to understand than it looks.", topic)
}
