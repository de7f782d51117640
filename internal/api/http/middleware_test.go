package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	return app
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeErrorEnvelope(t *testing.T, body io.Reader) errorEnvelope {
	t.Helper()
	var envelope errorEnvelope
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope
}

func TestErrorHandlingMiddleware(t *testing.T) {
	t.Run("renders domain errors in the standard envelope", func(t *testing.T) {
		app := newTestApp(t)
		app.Get("/boom", func(c *fiber.Ctx) error {
			return errorutil.NewValidationError("subject is required", map[string]any{"subject": "required"})
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		envelope := decodeErrorEnvelope(t, resp.Body)
		assert.Equal(t, "VALIDATION_FAILED", envelope.Error.Code)
		assert.Equal(t, "subject is required", envelope.Error.Message)
		assert.Equal(t, "required", envelope.Error.Details["subject"])
	})

	t.Run("translates fiber routing errors", func(t *testing.T) {
		app := newTestApp(t)

		resp, err := app.Test(httptest.NewRequest("GET", "/no-such-route", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

		envelope := decodeErrorEnvelope(t, resp.Body)
		assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
	})

	t.Run("recovers panics as internal errors", func(t *testing.T) {
		app := newTestApp(t)
		app.Get("/panic", func(c *fiber.Ctx) error {
			panic("nope")
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

		envelope := decodeErrorEnvelope(t, resp.Body)
		assert.Equal(t, "INTERNAL_ERROR", envelope.Error.Code)
	})

	t.Run("unknown errors are masked as internal", func(t *testing.T) {
		app := newTestApp(t)
		app.Get("/opaque", func(c *fiber.Ctx) error {
			return io.ErrUnexpectedEOF
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/opaque", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

		envelope := decodeErrorEnvelope(t, resp.Body)
		assert.Equal(t, "INTERNAL_ERROR", envelope.Error.Code)
		assert.Equal(t, "internal server error", envelope.Error.Message)
	})

	t.Run("successful responses pass through untouched", func(t *testing.T) {
		app := newTestApp(t)
		app.Get("/ok", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"data": "fine"})
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
