package handler

import (
	"errors"

	"github.com/edutalk/api/internal/model"
	"github.com/edutalk/api/internal/service"
	"github.com/edutalk/api/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type VideoHandler struct {
	service   *service.VideoService
	validator *validator.Validate
}

func NewVideoHandler(svc *service.VideoService, v *validator.Validate) *VideoHandler {
	return &VideoHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /generate-video
// @Summary      Start video generation
// @Description  Queue a talking-head video for a topic and an uploaded presenter image
// @Tags         Video
// @Accept       json
// @Produce      json
// @Param        request body model.GenerateVideoRequest true "Video request"
// @Success      202 {object} model.GenerateVideoResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Router       /generate-video [post]
func (h *VideoHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body")
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, validationMessage(err))
	}

	job, err := h.service.Submit(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Accepted(c, model.GenerateVideoResponse{
		Success: true,
		JobID:   job.ID,
		Status:  job.Status,
	})
}

// Status handles GET /check-status/:jobId
// @Summary      Get job status
// @Description  Poll the status, progress message and result of a job
// @Tags         Video
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobStatusResponse
// @Failure      404 {object} model.JobNotFoundResponse
// @Router       /check-status/{jobId} [get]
func (h *VideoHandler) Status(c *fiber.Ctx) error {
	job, err := h.service.Status(c.UserContext(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(model.JobNotFoundResponse{
				Status: model.JobStatusError,
				Result: "Job ID not found",
			})
		}
		return response.FromError(c, err)
	}

	return response.OK(c, model.NewJobStatusResponse(job))
}
