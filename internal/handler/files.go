package handler

import (
	"github.com/edutalk/api/internal/service"
	"github.com/edutalk/api/pkg/response"
	"github.com/gofiber/fiber/v2"
)

type FileHandler struct {
	service *service.FileService
}

func NewFileHandler(svc *service.FileService) *FileHandler {
	return &FileHandler{service: svc}
}

// Serve returns a handler for GET /<category>/:filename
func (h *FileHandler) Serve(category string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path, err := h.service.Resolve(category, c.Params("filename"))
		if err != nil {
			return response.FromError(c, err)
		}
		return c.SendFile(path)
	}
}
