package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edutalk/api/internal/config"
	"github.com/rs/zerolog/log"
)

// LipSyncClient animates a presenter image with an audio track by running a
// Wav2Lip or SadTalker checkout as a subprocess.
type LipSyncClient struct {
	runner     CommandRunner
	engine     string
	python     string
	repoPath   string
	checkpoint string
}

// NewLipSyncClient creates a new lip-sync client
func NewLipSyncClient(cfg *config.VideoConfig, runner CommandRunner) *LipSyncClient {
	return &LipSyncClient{
		runner:     runner,
		engine:     cfg.Engine,
		python:     cfg.Python,
		repoPath:   cfg.RepoPath,
		checkpoint: cfg.Checkpoint,
	}
}

// Engine returns the configured animation engine.
func (c *LipSyncClient) Engine() string {
	return c.engine
}

// IsConfigured reports whether the engine checkout and its checkpoint exist
func (c *LipSyncClient) IsConfigured() bool {
	if info, err := os.Stat(c.repoPath); err != nil || !info.IsDir() {
		return false
	}
	_, err := os.Stat(filepath.Join(c.repoPath, c.checkpoint))
	return err == nil
}

// Animate renders a talking-head video into outputDir and returns its path.
func (c *LipSyncClient) Animate(ctx context.Context, audioPath, imagePath, outputDir string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("%s not available at %s", c.engine, c.repoPath)
	}

	// The engine runs with the checkout as its working directory.
	audioAbs, err := filepath.Abs(audioPath)
	if err != nil {
		return "", err
	}
	imageAbs, err := filepath.Abs(imagePath)
	if err != nil {
		return "", err
	}
	outAbs, err := filepath.Abs(outputDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outAbs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	log.Info().
		Str("engine", c.engine).
		Str("audio", filepath.Base(audioAbs)).
		Str("image", filepath.Base(imageAbs)).
		Msg("animating presenter")

	switch c.engine {
	case config.EngineSadTalker:
		return c.runSadTalker(ctx, audioAbs, imageAbs, outAbs)
	default:
		return c.runWav2Lip(ctx, audioAbs, imageAbs, outAbs)
	}
}

func (c *LipSyncClient) runWav2Lip(ctx context.Context, audio, image, outDir string) (string, error) {
	// inference.py writes intermediate frames to temp/ inside the checkout.
	if err := os.MkdirAll(filepath.Join(c.repoPath, "temp"), 0o755); err != nil {
		return "", fmt.Errorf("failed to create wav2lip temp dir: %w", err)
	}

	outfile := filepath.Join(outDir, "result.mp4")
	_, err := c.runner.Run(ctx, c.repoPath, c.python, "inference.py",
		"--checkpoint_path", c.checkpoint,
		"--face", image,
		"--audio", audio,
		"--outfile", outfile,
	)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(outfile); err != nil || info.Size() == 0 {
		return "", errors.New("wav2lip produced no video")
	}
	return outfile, nil
}

func (c *LipSyncClient) runSadTalker(ctx context.Context, audio, image, outDir string) (string, error) {
	_, err := c.runner.Run(ctx, c.repoPath, c.python, "inference.py",
		"--driven_audio", audio,
		"--source_image", image,
		"--result_dir", outDir,
		"--still",
		"--preprocess", "full",
	)
	if err != nil {
		return "", err
	}

	// SadTalker names its output after the run timestamp.
	video, err := newestFile(outDir, "*.mp4")
	if err != nil {
		return "", errors.New("sadtalker produced no video")
	}
	return video, nil
}

func newestFile(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}

	var newest string
	var newestInfo os.FileInfo
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
			newest, newestInfo = m, info
		}
	}
	if newest == "" {
		return "", os.ErrNotExist
	}
	return newest, nil
}
