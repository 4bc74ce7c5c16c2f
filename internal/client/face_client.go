package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/edutalk/api/internal/config"
	"github.com/edutalk/api/internal/model"
)

// FaceClient calls the external face classification service.
type FaceClient struct {
	httpClient *http.Client
	baseURL    string
}

// FaceClassification is the classifier's answer for one image.
type FaceClassification struct {
	Gender     model.Gender `json:"gender"`
	Confidence float64      `json:"confidence"`
}

// NewFaceClient creates a new face classification client
func NewFaceClient(cfg *config.FaceConfig) *FaceClient {
	return &FaceClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.ServiceURL, "/"),
	}
}

// Classify uploads an image and returns the detected presenter gender.
func (c *FaceClient) Classify(ctx context.Context, filename string, image io.Reader) (*FaceClassification, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("face service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result FaceClassification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	switch result.Gender {
	case model.GenderMale, model.GenderFemale:
	default:
		result.Gender = model.GenderUnknown
	}
	return &result, nil
}

// IsConfigured returns true if a classification service URL is set
func (c *FaceClient) IsConfigured() bool {
	return c.baseURL != ""
}
