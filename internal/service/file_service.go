package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edutalk/api/internal/config"
	"github.com/edutalk/api/internal/model"
)

// File categories served over HTTP.
const (
	CategoryVideo     = "video"
	CategoryAudio     = "audio"
	CategoryPresenter = "presenter"
)

// FileService resolves downloadable files inside the storage directories
type FileService struct {
	dirs map[string]string
}

// NewFileService creates a file service over the configured storage directories.
func NewFileService(cfg *config.StorageConfig) *FileService {
	return &FileService{
		dirs: map[string]string{
			CategoryVideo:     cfg.VideoDir,
			CategoryAudio:     cfg.AudioDir,
			CategoryPresenter: cfg.PresenterDir,
		},
	}
}

// Resolve returns the path of an existing regular file in the category directory.
func (s *FileService) Resolve(category, filename string) (string, error) {
	dir, ok := s.dirs[category]
	if !ok {
		return "", fmt.Errorf("unknown category %q: %w", category, model.ErrNotFound)
	}

	path, err := ResolveInDir(dir, filename)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s %q: %w", category, filename, model.ErrNotFound)
	}
	return path, nil
}

// ResolveInDir joins a bare file name onto dir, rejecting anything that could
// escape it.
func ResolveInDir(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") ||
		filepath.Base(name) != name {
		return "", model.InvalidRequest("Invalid file name")
	}

	base, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	path := filepath.Join(base, name)
	if !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", model.InvalidRequest("Invalid file name")
	}
	return path, nil
}
