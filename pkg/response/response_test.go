package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/edutalk/api/internal/model"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"request error", model.InvalidRequest("Please enter a topic"), fiber.StatusBadRequest, CodeValidationError, "Please enter a topic"},
		{"wrapped request error", fmt.Errorf("submit: %w", model.InvalidRequest("Presenter image not found")), fiber.StatusBadRequest, CodeValidationError, "Presenter image not found"},
		{"bare invalid request", model.ErrInvalidRequest, fiber.StatusBadRequest, CodeValidationError, "Invalid request"},
		{"not found", fmt.Errorf("job x: %w", model.ErrNotFound), fiber.StatusNotFound, CodeNotFound, "Not found"},
		{"queue full", model.ErrQueueFull, fiber.StatusServiceUnavailable, CodeQueueFull, "Server is busy, please try again shortly"},
		{"script stage", model.NewStageError(model.StageScript, model.ErrScript, errors.New("401")), fiber.StatusBadGateway, model.CodeScriptError, "Script generation failed"},
		{"anything else", errors.New("disk on fire"), fiber.StatusInternalServerError, CodeServiceError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Error)
		})
	}
}
