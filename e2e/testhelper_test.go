package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/edutalk/api/internal/client"
	"github.com/edutalk/api/internal/config"
	"github.com/edutalk/api/internal/handler"
	"github.com/edutalk/api/internal/middleware"
	"github.com/edutalk/api/internal/model"
	"github.com/edutalk/api/internal/server"
	"github.com/edutalk/api/internal/service"
	"github.com/edutalk/api/internal/store"
	ws "github.com/edutalk/api/internal/websocket"
	"github.com/edutalk/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

// fakeSpeech writes a fixed-size mp3 instead of calling edge-tts.
type fakeSpeech struct{}

func (fakeSpeech) Synthesize(_ context.Context, text string, voice model.Voice, outputDir string) (string, error) {
	path := filepath.Join(outputDir, client.AudioFileName(voice, text))
	return path, os.WriteFile(path, bytes.Repeat([]byte{0xff}, 4096), 0o644)
}

// fakeVideo writes a placeholder mp4 instead of running the lip-sync model.
type fakeVideo struct {
	release chan struct{} // when set, Animate waits for it
}

func (f fakeVideo) Animate(ctx context.Context, _, _, outputDir string) (string, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, "result.mp4")
	return path, os.WriteFile(path, []byte("fake mp4 data"), 0o644)
}

type appOptions struct {
	auth      bool
	workers   int
	queueSize int
	video     fakeVideo
}

// testApp holds all components needed for testing
type testApp struct {
	app *fiber.App
	cfg *config.Config

	// startWorkers launches the pool. Tests that need queued jobs to stay
	// queued leave it unstarted.
	startWorkers func()
}

// setupApp builds the same app as main.go on the in-memory job backend with
// unconfigured external clients and fake speech and video stages.
func setupApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	if opts.workers == 0 {
		opts.workers = 1
	}
	if opts.queueSize == 0 {
		opts.queueSize = 8
	}

	root := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test", LogLevel: "error", BodyLimitMB: 20},
		Auth:   config.AuthConfig{Enabled: opts.auth, JWTSecret: testJWTSecret},
		// Use very high rate limits so tests don't get blocked
		RateLimit: config.RateLimitConfig{GeneratePerHour: 10000, UploadPerHour: 10000, ScriptPerMin: 10000},
		LLM:       config.LLMConfig{Audience: "high school", DurationSeconds: 50}, // no API key → mock script
		TTS:       config.TTSConfig{Binary: "edge-tts", DefaultVoice: "jenny"},
		Storage: config.StorageConfig{
			PresenterDir: filepath.Join(root, "presenters"),
			AudioDir:     filepath.Join(root, "outputs"),
			VideoDir:     filepath.Join(root, "videos"),
			WorkDir:      filepath.Join(root, "tmp"),
		},
		Jobs: config.JobsConfig{
			Backend:        config.BackendMemory,
			Workers:        opts.workers,
			QueueSize:      opts.queueSize,
			MaxRetained:    100,
			Retention:      time.Hour,
			ScriptTimeout:  5 * time.Second,
			SpeechTimeout:  5 * time.Second,
			VideoTimeout:   5 * time.Second,
			MinScriptChars: 50,
			MinAudioBytes:  1024,
		},
	}
	for _, dir := range []string{cfg.Storage.PresenterDir, cfg.Storage.AudioDir, cfg.Storage.VideoDir, cfg.Storage.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := ws.NewHub()
	go hub.Run(ctx)

	scriptService, err := service.NewScriptService(client.NewLLMClient(&cfg.LLM), &cfg.LLM)
	if err != nil {
		t.Fatalf("failed to create script service: %v", err)
	}

	jobs := store.NewMemoryStore(cfg.Jobs.MaxRetained, cfg.Jobs.Retention)
	pool := worker.NewPool(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	videoService := service.NewVideoService(jobs, pool, cfg.Storage.PresenterDir, cfg.TTS.DefaultVoice)
	videoWorker := worker.NewVideoWorker(videoService, worker.Stages{
		Script: scriptService,
		Speech: fakeSpeech{},
		Video:  opts.video,
	}, nil, hub, cfg.Storage, cfg.Jobs)

	app := server.NewApp(server.Dependencies{
		Config:  cfg,
		Videos:  videoService,
		Scripts: scriptService,
		Uploads: service.NewUploadService(cfg.Storage.PresenterDir, nil),
		Files:   service.NewFileService(&cfg.Storage),
		Hub:     hub,
		Checks: map[string]handler.ServiceCheck{
			"llm":   func() bool { return false },
			"tts":   func() bool { return true },
			"video": func() bool { return true },
		},
	})

	ta := &testApp{app: app, cfg: cfg}
	ta.startWorkers = func() {
		pool.Start(ctx, videoWorker.Run)
		t.Cleanup(func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = pool.Stop(stopCtx)
		})
	}
	return ta
}

// generateToken creates an HMAC JWT for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.NewAuthMiddleware(testJWTSecret).GenerateToken("test-user-123", "test@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// uploadRequest builds a multipart/form-data request carrying one file field.
func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(data)
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/upload-presenter", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// writePresenter places an image straight into the presenter directory.
func (ta *testApp) writePresenter(t *testing.T, name string) {
	t.Helper()
	path := filepath.Join(ta.cfg.Storage.PresenterDir, name)
	if err := os.WriteFile(path, []byte("\x89PNG fake image"), 0o644); err != nil {
		t.Fatalf("failed to write presenter: %v", err)
	}
}

// submit posts a generation request and returns the decoded body.
func (ta *testApp) submit(t *testing.T, topic, presenter string) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"topic": topic, "presenter_image": presenter})
	resp, err := doRequest(ta.app, http.MethodPost, "/generate-video", string(body), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp, parseJSON(t, resp)
}

// getJSON performs a GET and decodes the body, failing on a non-200 status.
func (ta *testApp) getJSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	resp, err := doRequest(ta.app, http.MethodGet, path, "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	return parseJSON(t, resp)
}

// waitForStatus polls /check-status until the job reaches want.
func (ta *testApp) waitForStatus(t *testing.T, jobID string, want model.JobStatus) map[string]interface{} {
	t.Helper()
	return ta.waitFor(t, jobID, func(body map[string]interface{}) bool {
		return body["status"] == string(want)
	})
}

// waitFor polls /check-status until done accepts the body or the deadline passes.
func (ta *testApp) waitFor(t *testing.T, jobID string, done func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := doRequest(ta.app, http.MethodGet, "/check-status/"+jobID, "", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body := parseJSON(t, resp)
		if done(body) {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not reach the expected state, last body: %v", jobID, body)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
