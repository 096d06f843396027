package handler

import (
	"errors"
	"mime"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"patientdocs/internal/model"
	"patientdocs/internal/service"
)

// TotalCountHeader carries the number of stored documents on list responses.
const TotalCountHeader = "X-Total-Count"

type uploadResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// contentDisposition suggests name verbatim; non-ASCII names are sent as RFC 2231 filename*.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// logFor returns the request-scoped logger installed by middleware.Logger.
func logFor(c *fiber.Ctx) *zerolog.Logger {
	return zerolog.Ctx(c.UserContext())
}

// parseID accepts positive integer ids only.
func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListDocuments returns every document, newest first.
//
// @Summary  List documents
// @Tags     documents
// @Produce  json
// @Param    limit  query int false "page size, 0 for all"
// @Param    offset query int false "rows to skip"
// @Success  200 {array}  model.Document
// @Header   200 {integer} X-Total-Count "number of stored documents"
// @Failure  400 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "0"))
		if err != nil || limit < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", msgInvalidLimit)
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil || offset < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", msgInvalidOffset)
		}

		res, err := docSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			logFor(c).Error().Err(err).Msg("list documents failed")
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}

		items := res.Items
		if items == nil {
			items = []model.Document{}
		}
		c.Set(TotalCountHeader, strconv.Itoa(res.Total))
		return c.JSON(items)
	}
}

// UploadDocument stores a PDF sent as multipart/form-data under the field "file".
//
// @Summary  Upload a PDF
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    file formData file true "PDF document"
// @Success  201 {object} uploadResponse
// @Failure  400 {object} errorPayload
// @Failure  413 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /documents/upload [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", msgInvalidPDF)
		}

		f, err := fh.Open()
		if err != nil {
			logFor(c).Error().Err(err).Msg("open multipart file failed")
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", msgInvalidPDF)
		}
		defer f.Close()

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename, fh.Header.Get(fiber.HeaderContentType), fh.Size)
		if err != nil {
			if errors.Is(err, service.ErrValidation) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILE", msgInvalidPDF)
			}
			logFor(c).Error().Err(err).Str("original_name", fh.Filename).Msg("upload failed")
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}

		logFor(c).Info().
			Int64("document_id", doc.ID).
			Int64("file_size", doc.FileSize).
			Msg("document uploaded")
		return c.Status(fiber.StatusCreated).JSON(uploadResponse{ID: doc.ID, Message: msgUploaded})
	}
}

// DownloadDocument streams the stored PDF back under its original name.
//
// @Summary  Download a PDF
// @Tags     documents
// @Produce  application/pdf
// @Param    id path int true "document id"
// @Success  200 {file} binary
// @Failure  404 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /documents/{id} [get]
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", msgFileNotFound)
		}

		dl, err := docSvc.Open(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", msgFileNotFound)
			}
			logFor(c).Error().Err(err).Int64("document_id", id).Msg("download failed")
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}

		c.Set(fiber.HeaderContentDisposition, contentDisposition(dl.Document.OriginalName))
		c.Set(fiber.HeaderContentType, dl.ContentType)

		size := -1
		if dl.Size > 0 {
			size = int(dl.Size)
		}
		// fasthttp closes the body once it has been written.
		return c.SendStream(dl.Body, size)
	}
}

// DeleteDocument removes the stored PDF and then its record.
//
// @Summary  Delete a document
// @Tags     documents
// @Produce  json
// @Param    id path int true "document id"
// @Success  200 {object} messageResponse
// @Failure  404 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", msgFileNotFound)
		}

		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", msgFileNotFound)
			}
			logFor(c).Error().Err(err).Int64("document_id", id).Msg("delete failed")
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}

		logFor(c).Info().Int64("document_id", id).Msg("document deleted")
		return c.JSON(messageResponse{Message: msgDeleted})
	}
}
