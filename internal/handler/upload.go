package handler

import (
	"github.com/edutalk/api/internal/service"
	"github.com/edutalk/api/pkg/response"
	"github.com/gofiber/fiber/v2"
)

const maxUploadSize = 16 * 1024 * 1024 // 16MB

type UploadHandler struct {
	service *service.UploadService
}

func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Presenter handles POST /upload-presenter
// @Summary      Upload presenter image
// @Description  Store a face image and suggest a narration voice for it
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Image (PNG, JPG, JPEG, WEBP; max 16MB)"
// @Success      201 {object} model.UploadPresenterResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Router       /upload-presenter [post]
func (h *UploadHandler) Presenter(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "No file uploaded")
	}
	if file.Filename == "" {
		return response.ValidationError(c, "No file selected")
	}
	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 16MB limit")
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}
	defer f.Close()

	result, err := h.service.SavePresenter(c.UserContext(), file.Filename, f)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, result)
}
