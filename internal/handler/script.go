package handler

import (
	"strings"

	"github.com/edutalk/api/internal/model"
	"github.com/edutalk/api/internal/service"
	"github.com/edutalk/api/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type ScriptHandler struct {
	service   *service.ScriptService
	validator *validator.Validate
}

func NewScriptHandler(svc *service.ScriptService, v *validator.Validate) *ScriptHandler {
	return &ScriptHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /generate-script
// @Summary      Generate a script
// @Description  Write a narration script for a topic without rendering a video
// @Tags         Script
// @Accept       json
// @Produce      json
// @Param        request body model.GenerateScriptRequest true "Script request"
// @Success      200 {object} model.GenerateScriptResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Router       /generate-script [post]
func (h *ScriptHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateScriptRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body")
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, validationMessage(err))
	}

	script, err := h.service.GenerateDefault(c.UserContext(), req.Topic)
	if err != nil {
		log.Error().Err(err).Str("topic", req.Topic).Msg("script generation failed")
		return response.FromError(c, model.NewStageError(model.StageScript, model.ErrScript, err))
	}

	return response.OK(c, model.GenerateScriptResponse{
		Success: true,
		Script:  script,
		Topic:   req.Topic,
	})
}
