package restapi

import (
	"github.com/avolkhin/image-moderation/config"
	v1 "github.com/avolkhin/image-moderation/internal/controller/restapi/v1"
	"github.com/avolkhin/image-moderation/internal/infrastructure"
	"github.com/avolkhin/image-moderation/internal/repo"
	"github.com/avolkhin/image-moderation/internal/usecase"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// @title Image moderation pipeline
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	rec usecase.RecordUseCase,
	objects repo.ObjectRepo,
	pub infrastructure.EnvelopePublisher,
	l logger.Interface,
) {
	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewImageRoutes(apiV1Group, rec, objects, pub, cfg.S3.Bucket, l)
	}
}
