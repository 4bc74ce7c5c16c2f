package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/edutalk/api/internal/model"
)

func TestGenerateVideo_CompletesJob(t *testing.T) {
	ta := setupApp(t, appOptions{})
	ta.startWorkers()
	ta.writePresenter(t, "face.png")

	resp, body := ta.submit(t, "Photosynthesis", "face.png")
	assertStatus(t, resp, http.StatusAccepted)
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected 'job_id' in response")
	}

	status := ta.waitForStatus(t, jobID, model.JobStatusComplete)

	result, _ := status["result"].(string)
	if !strings.HasSuffix(result, ".mp4") {
		t.Errorf("expected an .mp4 result, got %q", result)
	}
	if status["message"] != model.MessageComplete {
		t.Errorf("expected message %q, got %v", model.MessageComplete, status["message"])
	}
	elapsed, ok := status["elapsed_time"].(float64)
	if !ok || elapsed <= 0 {
		t.Errorf("expected positive elapsed_time, got %v", status["elapsed_time"])
	}
	if _, err := os.Stat(filepath.Join(ta.cfg.Storage.VideoDir, filepath.Base(result))); err != nil {
		t.Errorf("expected video on disk: %v", err)
	}

	// the rendered video is served back over HTTP
	resp, err := doRequest(ta.app, http.MethodGet, result, "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if got := readBody(t, resp); got != "fake mp4 data" {
		t.Errorf("unexpected video body %q", got)
	}
}

func TestGenerateVideo_MissingPresenter(t *testing.T) {
	ta := setupApp(t, appOptions{})
	ta.startWorkers()

	resp, body := ta.submit(t, "Photosynthesis", "nobody.png")
	assertStatus(t, resp, http.StatusBadRequest)
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
	if body["error"] != "Presenter image not found" {
		t.Errorf("unexpected error %v", body["error"])
	}

	health, err := doRequest(ta.app, http.MethodGet, "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if total := parseJSON(t, health)["total_jobs"]; total != float64(0) {
		t.Errorf("expected no job to be created, total_jobs=%v", total)
	}
}

func TestGenerateVideo_Validation(t *testing.T) {
	ta := setupApp(t, appOptions{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing topic", `{"presenter_image":"face.png"}`, "Please enter a topic"},
		{"blank topic", `{"topic":"   ","presenter_image":"face.png"}`, "Please enter a topic"},
		{"missing presenter", `{"topic":"Photosynthesis"}`, "Presenter image not found"},
		{"path traversal", `{"topic":"Photosynthesis","presenter_image":"../secret.png"}`, "Presenter image not found"},
		{"invalid json", `{"topic":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doRequest(ta.app, http.MethodPost, "/generate-video", tt.body, nil)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
			body := parseJSON(t, resp)
			if body["error"] != tt.want {
				t.Errorf("expected error %q, got %v", tt.want, body["error"])
			}
		})
	}
}

func TestGenerateVideo_UnrecognizedVoiceFallsBack(t *testing.T) {
	ta := setupApp(t, appOptions{})
	ta.writePresenter(t, "face.png")

	voices := []string{strings.Repeat("x", 65), "robot", "en-US-Nobody"}
	for _, voice := range voices {
		body, _ := json.Marshal(map[string]string{"topic": "Photosynthesis", "presenter_image": "face.png", "voice": voice})
		resp, err := doRequest(ta.app, http.MethodPost, "/generate-video", string(body), nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusAccepted)
		if got := parseJSON(t, resp); got["job_id"] == nil {
			t.Errorf("expected 'job_id' for voice %q, got %v", voice, got)
		}
	}
}

func TestCheckStatus_RepeatedPollsMatch(t *testing.T) {
	release := make(chan struct{})
	ta := setupApp(t, appOptions{video: fakeVideo{release: release}})
	ta.startWorkers()
	ta.writePresenter(t, "face.png")

	_, body := ta.submit(t, "Photosynthesis", "face.png")
	jobID, _ := body["job_id"].(string)

	pollTwice := func() {
		t.Helper()
		healthBefore := ta.getJSON(t, "/health")
		first := ta.getJSON(t, "/check-status/"+jobID)
		second := ta.getJSON(t, "/check-status/"+jobID)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("expected identical snapshots, got %v and %v", first, second)
		}
		if healthAfter := ta.getJSON(t, "/health"); !reflect.DeepEqual(healthBefore, healthAfter) {
			t.Errorf("polling changed the job table: %v then %v", healthBefore, healthAfter)
		}
	}

	// blocked mid-stage
	ta.waitFor(t, jobID, func(body map[string]interface{}) bool {
		return body["message"] == model.MessageVideo
	})
	pollTwice()

	close(release)
	ta.waitForStatus(t, jobID, model.JobStatusComplete)
	pollTwice()
}

func TestGenerateVideo_QueueFull(t *testing.T) {
	// workers never start, so the single queue slot stays occupied
	ta := setupApp(t, appOptions{queueSize: 1})
	ta.writePresenter(t, "face.png")

	resp, body := ta.submit(t, "Photosynthesis", "face.png")
	assertStatus(t, resp, http.StatusAccepted)
	queuedID, _ := body["job_id"].(string)

	resp, body = ta.submit(t, "Gravity", "face.png")
	assertStatus(t, resp, http.StatusServiceUnavailable)
	if body["code"] != "QUEUE_FULL" {
		t.Errorf("expected code QUEUE_FULL, got %v", body["code"])
	}

	status := ta.waitForStatus(t, queuedID, model.JobStatusQueued)
	if status["message"] != model.MessageQueued {
		t.Errorf("expected message %q, got %v", model.MessageQueued, status["message"])
	}
}

func TestCheckStatus_UnknownJob(t *testing.T) {
	ta := setupApp(t, appOptions{})

	resp, err := doRequest(ta.app, http.MethodGet, "/check-status/does-not-exist", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
	body := parseJSON(t, resp)
	if body["status"] != "error" {
		t.Errorf("expected status 'error', got %v", body["status"])
	}
	if body["result"] != "Job ID not found" {
		t.Errorf("expected result 'Job ID not found', got %v", body["result"])
	}
}

func TestCheckStatus_ReportsProcessing(t *testing.T) {
	release := make(chan struct{})
	ta := setupApp(t, appOptions{video: fakeVideo{release: release}})
	ta.startWorkers()
	ta.writePresenter(t, "face.png")

	_, body := ta.submit(t, "Photosynthesis", "face.png")
	jobID, _ := body["job_id"].(string)

	status := ta.waitFor(t, jobID, func(body map[string]interface{}) bool {
		return body["message"] == model.MessageVideo
	})
	if status["status"] != string(model.JobStatusProcessing) {
		t.Errorf("expected status processing, got %v", status["status"])
	}
	if _, ok := status["result"]; ok {
		t.Errorf("expected no result while processing, got %v", status["result"])
	}

	close(release)
	ta.waitForStatus(t, jobID, model.JobStatusComplete)
}

func TestGenerateVideo_RequiresTokenWhenAuthEnabled(t *testing.T) {
	ta := setupApp(t, appOptions{auth: true})
	ta.startWorkers()
	ta.writePresenter(t, "face.png")

	resp, err := doRequest(ta.app, http.MethodPost, "/generate-video", `{"topic":"Photosynthesis","presenter_image":"face.png"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)

	resp, err = doRequest(ta.app, http.MethodPost, "/generate-video", `{"topic":"Photosynthesis","presenter_image":"face.png"}`, map[string]string{
		"Authorization": "Bearer " + generateToken(t),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
}
