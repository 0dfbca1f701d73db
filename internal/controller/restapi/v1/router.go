package v1

import (
	"github.com/avolkhin/image-moderation/internal/infrastructure"
	"github.com/avolkhin/image-moderation/internal/repo"
	"github.com/avolkhin/image-moderation/internal/usecase"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewImageRoutes(
	apiV1Group fiber.Router,
	rec usecase.RecordUseCase,
	objects repo.ObjectRepo,
	pub infrastructure.EnvelopePublisher,
	bucket string,
	l logger.Interface,
) {
	r := &V1{rec: rec, objects: objects, pub: pub, bucket: bucket, l: l}

	imageGroup := apiV1Group.Group("/image")
	{
		imageGroup.Post("/upload", r.upload)
		imageGroup.Post("/:id/metadata", r.attachMetadata)
		imageGroup.Post("/:id/status", r.updateStatus)
		imageGroup.Get("/:id", r.getRecord)
		imageGroup.Get("/:id/object", r.downloadObject)
	}
}
