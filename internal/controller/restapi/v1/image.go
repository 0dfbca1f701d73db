package v1

import (
	"errors"
	"net/http"

	"github.com/avolkhin/image-moderation/internal/controller/restapi/v1/response"
	"github.com/avolkhin/image-moderation/internal/entity"
	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

type metadataPayload struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type statusPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// @Summary Upload an image
// @Description Stores the file and publishes an upload event. Validation
// @Description happens downstream: an unsupported file type is accepted
// @Description here but never becomes a record, and the stored object is
// @Description removed once processing gives up on it.
// @Tags image
// @Accept mpfd
// @Produce json
// @Param file formData file true "image file"
// @Success 202 {object} response.Accepted
// @Failure 400 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /image/upload [post]
func (r *V1) upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "missing file")
	}
	if fileHeader.Filename == "" {
		return errorResponse(ctx, http.StatusBadRequest, "file has no name")
	}

	file, err := fileHeader.Open()
	if err != nil {
		r.l.Error(err, "restapi - v1 - upload - fileHeader.Open")

		return errorResponse(ctx, http.StatusBadRequest, "unreadable file")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")

	err = r.objects.Upload(ctx.UserContext(), r.bucket, fileHeader.Filename, file, contentType, fileHeader.Size)
	if err != nil {
		r.l.Error(err, "restapi - v1 - upload - r.objects.Upload")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	env, err := routing.NewUploadEnvelope(entity.UploadEvent{
		Bucket:      r.bucket,
		Key:         fileHeader.Filename,
		ContentType: contentType,
	})
	if err != nil {
		r.l.Error(err, "restapi - v1 - upload - routing.NewUploadEnvelope")

		return errorResponse(ctx, http.StatusInternalServerError, "publishing problems")
	}

	if err = r.pub.Publish(ctx.UserContext(), env); err != nil {
		r.l.Error(err, "restapi - v1 - upload - r.pub.Publish")

		return errorResponse(ctx, http.StatusInternalServerError, "publishing problems")
	}

	return ctx.Status(http.StatusAccepted).JSON(response.Accepted{
		ID:     fileHeader.Filename,
		Bucket: r.bucket,
		Status: "queued",
	})
}

// @Summary Attach metadata to an image
// @Description Publishes a metadata envelope; the field name travels as the
// @Description metadata_type attribute so subscriptions can filter on it.
// @Tags image
// @Accept json
// @Produce json
// @Param id path string true "image id"
// @Param request body metadataRequest true "metadata field"
// @Success 202 {object} response.Accepted
// @Failure 400 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /image/{id}/metadata [post]
func (r *V1) attachMetadata(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	var body metadataRequest
	if err := ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}
	if body.Type == "" || body.Value == "" {
		return errorResponse(ctx, http.StatusBadRequest, "type and value are required")
	}

	env, err := routing.NewEnvelope(
		metadataPayload{ID: id, Value: body.Value},
		map[string]string{routing.AttrMetadataType: body.Type},
	)
	if err != nil {
		r.l.Error(err, "restapi - v1 - attachMetadata - routing.NewEnvelope")

		return errorResponse(ctx, http.StatusInternalServerError, "publishing problems")
	}

	if err = r.pub.Publish(ctx.UserContext(), env); err != nil {
		r.l.Error(err, "restapi - v1 - attachMetadata - r.pub.Publish")

		return errorResponse(ctx, http.StatusInternalServerError, "publishing problems")
	}

	return ctx.Status(http.StatusAccepted).JSON(response.Accepted{ID: id, Status: "queued"})
}

// @Summary Set the moderation status of an image
// @Tags image
// @Accept json
// @Produce json
// @Param id path string true "image id"
// @Param request body statusRequest true "moderation decision"
// @Success 202 {object} response.Accepted
// @Failure 400 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /image/{id}/status [post]
func (r *V1) updateStatus(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	var body statusRequest
	if err := ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}
	if !entity.ReviewStatus(body.Status).Valid() {
		return errorResponse(ctx, http.StatusBadRequest, "unknown status")
	}

	env, err := routing.NewEnvelope(
		statusPayload{ID: id, Status: body.Status, Reason: body.Reason},
		map[string]string{routing.AttrMessageType: routing.MessageTypeStatusUpdate},
	)
	if err != nil {
		r.l.Error(err, "restapi - v1 - updateStatus - routing.NewEnvelope")

		return errorResponse(ctx, http.StatusInternalServerError, "publishing problems")
	}

	if err = r.pub.Publish(ctx.UserContext(), env); err != nil {
		r.l.Error(err, "restapi - v1 - updateStatus - r.pub.Publish")

		return errorResponse(ctx, http.StatusInternalServerError, "publishing problems")
	}

	return ctx.Status(http.StatusAccepted).JSON(response.Accepted{ID: id, Status: "queued"})
}

// @Summary Get an image record
// @Tags image
// @Produce json
// @Param id path string true "image id"
// @Success 200 {object} response.Record
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /image/{id} [get]
func (r *V1) getRecord(ctx *fiber.Ctx) error {
	record, err := r.rec.GetRecord(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "record not found")
		}

		r.l.Error(err, "restapi - v1 - getRecord - r.rec.GetRecord")

		return errorResponse(ctx, http.StatusInternalServerError, "database problems")
	}

	return ctx.Status(http.StatusOK).JSON(response.Record{
		ID:         record.ID,
		Status:     string(record.Status),
		Reason:     record.Reason,
		Email:      record.Email,
		Attributes: record.Attributes,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	})
}

// @Summary Download the stored object
// @Tags image
// @Produce octet-stream
// @Param id path string true "image id"
// @Success 200 {file} binary
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /image/{id}/object [get]
func (r *V1) downloadObject(ctx *fiber.Ctx) error {
	body, err := r.objects.Download(ctx.UserContext(), r.bucket, ctx.Params("id"))
	if err != nil {
		r.l.Error(err, "restapi - v1 - downloadObject - r.objects.Download")

		return errorResponse(ctx, http.StatusNotFound, "object not found")
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)

	return ctx.Status(http.StatusOK).SendStream(body)
}
