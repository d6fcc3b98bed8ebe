package server

import (
	"errors"
	"time"

	"courtyard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+param))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseBefore extracts the optional RFC 3339 "before" pagination cursor.
// On a malformed cursor it writes a 400 JSON response and returns
// errResponseWritten.
func (s *Server) parseBefore(c *fiber.Ctx) (*time.Time, error) {
	raw := c.Query("before")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid before cursor, expected RFC 3339 timestamp"))
		return nil, errResponseWritten
	}
	return &t, nil
}

// actorID returns the verified actor identity set by ActorRequired.
func actorID(c *fiber.Ctx) uint {
	return c.Locals("actorID").(uint)
}

func actorName(c *fiber.Ctx) string {
	name, _ := c.Locals("actorName").(string)
	return name
}

func actorRole(c *fiber.Ctx) models.Role {
	role, _ := c.Locals("actorRole").(models.Role)
	return role
}

// errorStatus maps the application error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnsupportedType:
		return fiber.StatusUnsupportedMediaType
	case models.CodeTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeStorageUnavailable:
		return fiber.StatusServiceUnavailable
	case models.CodeTransient:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondServiceError writes the mapped status for a service-layer error.
func respondServiceError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, errorStatus(err), err)
}
