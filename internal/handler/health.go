package handler

import (
	"time"

	"github.com/edutalk/api/internal/model"
	"github.com/edutalk/api/internal/service"
	"github.com/edutalk/api/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ServiceCheck reports whether a collaborator is usable.
type ServiceCheck func() bool

type HealthHandler struct {
	videos       *service.VideoService
	checks       map[string]ServiceCheck
	defaultVoice model.Voice
}

func NewHealthHandler(videos *service.VideoService, checks map[string]ServiceCheck, defaultVoice string) *HealthHandler {
	return &HealthHandler{
		videos:       videos,
		checks:       checks,
		defaultVoice: model.ResolveVoice(defaultVoice, model.DefaultVoice),
	}
}

// Health handles GET /health
// @Summary      Health check
// @Tags         System
// @Produce      json
// @Success      200 {object} model.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	stats, err := h.videos.Stats(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("failed to read job stats")
		return response.ServiceError(c, "Job store unavailable")
	}

	services := make(map[string]bool, len(h.checks))
	for name, check := range h.checks {
		services[name] = check()
	}

	return response.OK(c, model.HealthResponse{
		Status:     "healthy",
		ActiveJobs: stats.Active,
		TotalJobs:  stats.Total,
		Services:   services,
	})
}

// Voices handles GET /voices
func (h *HealthHandler) Voices(c *fiber.Ctx) error {
	keys := model.VoiceKeys()
	voices := make([]model.VoiceInfo, 0, len(keys))
	for _, key := range keys {
		voices = append(voices, model.VoiceInfo{Key: key, Name: model.VoiceName(key)})
	}

	return response.OK(c, model.VoicesResponse{
		Default: h.defaultVoice,
		Voices:  voices,
	})
}

// Index handles GET /
func (h *HealthHandler) Index(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"timestamp": time.Now().Unix(),
	})
}
