package server

import (
	"io"

	"courtyard/internal/models"
	"courtyard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadAttachment handles POST /api/attachments. The file arrives as a
// multipart form field named "file"; its Content-Type header drives type
// validation.
func (s *Server) UploadAttachment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Multipart field \"file\" is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}

	att, err := s.attachmentSvc.Upload(ctx, service.UploadInput{
		ActorID:  userID,
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get(fiber.HeaderContentType),
		Data:     data,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(att)
}

// GetAttachment handles GET /api/attachments/:id
func (s *Server) GetAttachment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	attID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	att, err := s.attachmentSvc.Get(ctx, attID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(att)
}
