package handler

import (
	"context"
	"encoding/json"

	"github.com/edutalk/api/internal/model"
	"github.com/edutalk/api/internal/service"
	ws "github.com/edutalk/api/internal/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type WebSocketHandler struct {
	videos *service.VideoService
	hub    *ws.Hub
}

func NewWebSocketHandler(videos *service.VideoService, hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{videos: videos, hub: hub}
}

// Upgrade rejects plain HTTP requests on WebSocket routes
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Jobs handles GET /ws/jobs/:jobId
func (h *WebSocketHandler) Jobs() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		h.hub.HandleConnection(c, jobID, h.snapshot(jobID))
	})
}

// snapshot renders the current job state so late subscribers start in sync.
func (h *WebSocketHandler) snapshot(jobID string) []byte {
	job, err := h.videos.Status(context.Background(), jobID)
	if err != nil {
		data, _ := json.Marshal(model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: jobID,
			Error: model.WSError{Code: "NOT_FOUND", Message: "Job ID not found"},
		})
		return data
	}

	var msg interface{}
	switch job.Status {
	case model.JobStatusComplete:
		msg = model.WSCompleteMessage{Type: model.WSMessageTypeComplete, JobID: jobID, Result: model.NewJobStatusResponse(job)}
	case model.JobStatusError:
		msg = model.WSErrorMessage{Type: model.WSMessageTypeError, JobID: jobID, Error: model.WSError{Code: job.ErrorCode, Message: job.Result}}
	default:
		msg = model.WSProgressMessage{Type: model.WSMessageTypeProgress, JobID: jobID, Status: job.Status, Message: job.Message}
	}
	data, _ := json.Marshal(msg)
	return data
}
