package v1

import (
	"github.com/avolkhin/image-moderation/internal/infrastructure"
	"github.com/avolkhin/image-moderation/internal/repo"
	"github.com/avolkhin/image-moderation/internal/usecase"
	"github.com/avolkhin/image-moderation/pkg/logger"
)

// V1 is the publish surface: writes go out as envelopes on the bus, only
// reads hit the record store directly.
type V1 struct {
	rec     usecase.RecordUseCase
	objects repo.ObjectRepo
	pub     infrastructure.EnvelopePublisher
	bucket  string
	l       logger.Interface
}
