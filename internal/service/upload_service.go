package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edutalk/api/internal/client"
	"github.com/edutalk/api/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var allowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// FaceClassifier guesses the gender of an uploaded presenter.
type FaceClassifier interface {
	Classify(ctx context.Context, filename string, image io.Reader) (*client.FaceClassification, error)
	IsConfigured() bool
}

// UploadService stores presenter images
type UploadService struct {
	presenterDir string
	classifier   FaceClassifier
}

// NewUploadService creates a new upload service. classifier may be nil.
func NewUploadService(presenterDir string, classifier FaceClassifier) *UploadService {
	return &UploadService{
		presenterDir: presenterDir,
		classifier:   classifier,
	}
}

// SavePresenter stores an uploaded image under a unique name and suggests a voice.
func (s *UploadService) SavePresenter(ctx context.Context, originalName string, file io.Reader) (*model.UploadPresenterResponse, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedImageExtensions[ext] {
		return nil, model.InvalidRequest("Invalid file type. Allowed: png, jpg, jpeg, webp")
	}

	if err := os.MkdirAll(s.presenterDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create presenter dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:8], SanitizeFilename(originalName))
	path := filepath.Join(s.presenterDir, filename)

	tmp, err := os.CreateTemp(s.presenterDir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, file)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if written == 0 {
		return nil, model.InvalidRequest("Uploaded file is empty")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	gender := s.classify(ctx, path)
	log.Info().
		Str("filename", filename).
		Int64("bytes", written).
		Str("gender", string(gender)).
		Msg("presenter uploaded")

	return &model.UploadPresenterResponse{
		Success:        true,
		Filename:       filename,
		SuggestedVoice: model.SuggestVoice(gender),
		Gender:         gender,
	}, nil
}

// classify never fails the upload; any problem means an unknown gender.
func (s *UploadService) classify(ctx context.Context, path string) model.Gender {
	if s.classifier == nil || !s.classifier.IsConfigured() {
		return model.GenderUnknown
	}

	f, err := os.Open(path)
	if err != nil {
		return model.GenderUnknown
	}
	defer f.Close()

	res, err := s.classifier.Classify(ctx, filepath.Base(path), f)
	if err != nil {
		log.Warn().Err(err).Str("filename", filepath.Base(path)).Msg("face classification failed")
		return model.GenderUnknown
	}
	return res.Gender
}

// SanitizeFilename reduces a client-supplied name to a safe base name made of
// letters, digits, dots, dashes and underscores.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	ext := filepath.Ext(out)
	if !allowedImageExtensions[strings.ToLower(ext)] || strings.TrimSuffix(out, ext) == "" {
		out = "presenter" + strings.ToLower(filepath.Ext(name))
	}
	return out
}
