package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edutalk/api/internal/config"
	"github.com/edutalk/api/internal/model"
	"github.com/edutalk/api/internal/service"
	"github.com/edutalk/api/internal/store"
	"github.com/stretchr/testify/require"
)

const testScript = "Photosynthesis is how plants turn sunlight, water and carbon dioxide into sugar and oxygen."

type fakeScript struct {
	calls   atomic.Int32
	text    string
	err     error
	release chan struct{} // when set, Generate waits for it
}

func (f *fakeScript) Generate(ctx context.Context, topic string, _ int, _ string) (string, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	time.Sleep(5 * time.Millisecond)
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return testScript, nil
}

type fakeSpeech struct {
	calls atomic.Int32
	size  int
	err   error
	panic bool
}

func (f *fakeSpeech) Synthesize(_ context.Context, _ string, voice model.Voice, outputDir string) (string, error) {
	f.calls.Add(1)
	if f.panic {
		panic("speech engine crashed")
	}
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	size := f.size
	if size == 0 {
		size = 4096
	}
	path := filepath.Join(outputDir, "speech_"+string(voice)+".mp3")
	return path, os.WriteFile(path, []byte(strings.Repeat("a", size)), 0o644)
}

type fakeVideo struct {
	calls atomic.Int32
	// mode: "" writes a video, "missing" returns a path that does not exist,
	// "block" waits for ctx, "ignore" waits for unblock regardless of ctx.
	mode    string
	unblock chan struct{}
}

func (f *fakeVideo) Animate(ctx context.Context, _, imagePath, outputDir string) (string, error) {
	f.calls.Add(1)
	if _, err := os.Stat(imagePath); err != nil {
		return "", err
	}
	switch f.mode {
	case "missing":
		return filepath.Join(outputDir, "result.mp4"), nil
	case "block":
		<-ctx.Done()
		return "", ctx.Err()
	case "ignore":
		<-f.unblock
		return "", errors.New("too late")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, "result.mp4")
	return path, os.WriteFile(path, []byte("mp4-bytes"), 0o644)
}

type fakeMirror struct {
	err  error
	keys []string
}

func (f *fakeMirror) Upload(_ context.Context, key string, _ io.Reader, _ string) (string, error) {
	return f.UploadFile(context.Background(), key, "", "")
}

func (f *fakeMirror) UploadFile(_ context.Context, key, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeMirror) Delete(context.Context, string) error { return nil }

func (f *fakeMirror) GetPublicURL(key string) string { return "https://cdn.example.com/" + key }

type event struct {
	kind    string
	status  model.JobStatus
	message string
	code    string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) BroadcastProgress(_ string, status model.JobStatus, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: "progress", status: status, message: message})
}

func (n *recordingNotifier) BroadcastComplete(_ string, result *model.JobStatusResponse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: "complete", status: result.Status, message: result.Message})
}

func (n *recordingNotifier) BroadcastError(_ string, code, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: "error", code: code, message: message})
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		if e.kind == "progress" {
			out = append(out, e.message)
		}
	}
	return out
}

// completionFailingStore refuses to record completed jobs.
type completionFailingStore struct {
	store.JobStore
}

func (s completionFailingStore) Update(ctx context.Context, id string, fn func(*model.Job) error) (*model.Job, error) {
	return s.JobStore.Update(ctx, id, func(job *model.Job) error {
		if err := fn(job); err != nil {
			return err
		}
		if job.Status == model.JobStatusComplete {
			return errors.New("store unavailable")
		}
		return nil
	})
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, string) error { return nil }

type harness struct {
	videos   *service.VideoService
	worker   *VideoWorker
	storage  config.StorageConfig
	notifier *recordingNotifier
}

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		Workers:        2,
		QueueSize:      4,
		MaxRetained:    100,
		Retention:      time.Hour,
		ScriptTimeout:  2 * time.Second,
		SpeechTimeout:  2 * time.Second,
		VideoTimeout:   2 * time.Second,
		MinScriptChars: 50,
		MinAudioBytes:  1024,
	}
}

func newHarness(t *testing.T, stages Stages, mirror *fakeMirror, jobs config.JobsConfig) *harness {
	t.Helper()
	return newHarnessWithStore(t, stages, mirror, jobs, store.NewMemoryStore(jobs.MaxRetained, jobs.Retention))
}

func newHarnessWithStore(t *testing.T, stages Stages, mirror *fakeMirror, jobs config.JobsConfig, jobStore store.JobStore) *harness {
	t.Helper()
	root := t.TempDir()
	storage := config.StorageConfig{
		PresenterDir: filepath.Join(root, "presenters"),
		AudioDir:     filepath.Join(root, "audio"),
		VideoDir:     filepath.Join(root, "videos"),
		WorkDir:      filepath.Join(root, "work"),
	}
	require.NoError(t, os.MkdirAll(storage.PresenterDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storage.PresenterDir, "face.png"), []byte("png"), 0o644))

	videos := service.NewVideoService(jobStore, nopDispatcher{}, storage.PresenterDir, "jenny")
	notifier := &recordingNotifier{}

	w := NewVideoWorker(videos, stages, nil, notifier, storage, jobs)
	if mirror != nil {
		w.mirror = mirror
	}

	return &harness{videos: videos, worker: w, storage: storage, notifier: notifier}
}

func (h *harness) submit(t *testing.T) string {
	t.Helper()
	job, err := h.videos.Submit(context.Background(), &model.GenerateVideoRequest{
		Topic:          "Photosynthesis",
		Voice:          "guy",
		PresenterImage: "face.png",
	})
	require.NoError(t, err)
	return job.ID
}

func (h *harness) job(t *testing.T, id string) *model.Job {
	t.Helper()
	job, err := h.videos.Status(context.Background(), id)
	require.NoError(t, err)
	return job
}
