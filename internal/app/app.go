// Package app configures and runs application.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/avolkhin/image-moderation/config"
	buscontroller "github.com/avolkhin/image-moderation/internal/controller/kafka"
	"github.com/avolkhin/image-moderation/internal/controller/restapi"
	"github.com/avolkhin/image-moderation/internal/controller/worker"
	"github.com/avolkhin/image-moderation/internal/controller/worker/changerelay"
	infrakafka "github.com/avolkhin/image-moderation/internal/infrastructure/kafka"
	"github.com/avolkhin/image-moderation/internal/queue"
	"github.com/avolkhin/image-moderation/internal/repo/persistent"
	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/internal/usecase/notify"
	"github.com/avolkhin/image-moderation/internal/usecase/quarantine"
	"github.com/avolkhin/image-moderation/internal/usecase/record"
	"github.com/avolkhin/image-moderation/pkg/httpserver"
	"github.com/avolkhin/image-moderation/pkg/kafka/consumer"
	"github.com/avolkhin/image-moderation/pkg/kafka/producer"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/avolkhin/image-moderation/pkg/mailer"
	"github.com/avolkhin/image-moderation/pkg/postgres"
	"github.com/avolkhin/image-moderation/pkg/s3client"
)

const (
	_uploadQueue   = "upload-queue"
	_uploadDLQ     = "upload-dlq"
	_uploadParking = "upload-dlq-parked"
	_metadataQueue = "metadata-queue"
	_metadataDLQ   = "metadata-dlq"
	_statusQueue   = "status-queue"
	_statusDLQ     = "status-dlq"
)

// Run creates objects via constructors.
func Run(cfg *config.Config) {
	l := logger.New(cfg.Log.Level)

	// Repositories
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(err, "app - Run - postgres.New")
	}
	defer pg.Close()

	s3LoadCtx, s3LoadCancel := context.WithTimeout(context.Background(), cfg.S3.CfgLoadTimeout)
	defer s3LoadCancel()

	s3c, err := s3client.New(s3LoadCtx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		l.Fatal(err, "app - Run - s3client.New")
	}

	recordRepo := persistent.NewRecordRepo(pg)
	changeRepo := persistent.NewChangeRepo(pg)
	objectRepo := persistent.NewObjectRepo(s3c)

	// Bus transport
	kafkaProducer, err := producer.New(context.Background(), cfg.Kafka.Brokers)
	if err != nil {
		l.Fatal(err, "app - Run - producer.New")
	}

	kafkaConsumer, err := consumer.New(context.Background(), cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic)
	if err != nil {
		l.Fatal(err, "app - Run - consumer.New")
	}

	publisher := infrakafka.NewEnvelopePublisher(kafkaProducer, cfg.Kafka.Topic)
	envConsumer := infrakafka.NewEnvelopeConsumer(kafkaConsumer)

	// Consumer queues
	uploadQ, uploadDLQ, metadataQ, statusQ := buildQueues(cfg, pg, l)

	// Fan-out subscriptions
	router := routing.NewRouter(l)

	err = router.Subscribe("upload-sub", routing.NewFilter(routing.Exists(routing.AttrSuffix)), uploadQ)
	if err != nil {
		l.Fatal(err, "app - Run - router.Subscribe - upload-sub")
	}

	err = router.Subscribe(
		"metadata-sub",
		routing.NewFilter(routing.AnyOf(routing.AttrMetadataType, "Caption", "Date", "name", "email")),
		metadataQ,
	)
	if err != nil {
		l.Fatal(err, "app - Run - router.Subscribe - metadata-sub")
	}

	err = router.Subscribe(
		"status-sub",
		routing.NewFilter(routing.AnyOf(routing.AttrMessageType, routing.MessageTypeStatusUpdate)),
		statusQ,
	)
	if err != nil {
		l.Fatal(err, "app - Run - router.Subscribe - status-sub")
	}

	// Use cases
	recordUseCase := record.New(recordRepo, changeRepo, pg, l)
	quarantineUseCase := quarantine.New(objectRepo, l)

	smtp := mailer.New(cfg.Mailer.Host, cfg.Mailer.Port, cfg.Mailer.From,
		mailer.Auth(cfg.Mailer.Username, cfg.Mailer.Password),
	)
	notifyUseCase := notify.New(smtp, l)

	// Bus controller
	bus := buscontroller.New(router, envConsumer, l,
		cfg.Bus.CommitTimeout,
		cfg.Bus.DispatchTimeout,
		cfg.Consumers.Workers,
	)

	err = bus.Start(context.Background())
	if err != nil {
		l.Fatal(err, "app - Run - bus.Start")
	}

	// Queue consumers
	harnesses := []*worker.Harness{
		worker.New("ingest-recorder", uploadQ, worker.IngestHandler(recordUseCase), l,
			cfg.Consumers.Workers, cfg.Consumers.PollInterval, cfg.Consumers.HandleTimeout, false),
		worker.New("metadata-attacher", metadataQ, worker.MetadataHandler(recordUseCase), l,
			cfg.Consumers.Workers, cfg.Consumers.PollInterval, cfg.Consumers.HandleTimeout, true),
		worker.New("status-updater", statusQ, worker.StatusHandler(recordUseCase), l,
			cfg.Consumers.Workers, cfg.Consumers.PollInterval, cfg.Consumers.HandleTimeout, true),
		worker.New("quarantine-remover", uploadDLQ, worker.QuarantineHandler(quarantineUseCase), l,
			cfg.Consumers.Workers, cfg.Consumers.PollInterval, cfg.Consumers.HandleTimeout, true),
	}

	for _, h := range harnesses {
		if err = h.Start(context.Background()); err != nil {
			l.Fatal(err, "app - Run - harness.Start")
		}
	}

	// Change feed relay
	relay := changerelay.New(changeRepo, notifyUseCase, l,
		cfg.ChangeRelay.PollInterval,
		cfg.ChangeRelay.CleanupInterval,
		cfg.ChangeRelay.MarkFailedInterval,
		cfg.ChangeRelay.ProcessBatchTimeout,
		cfg.ChangeRelay.BatchSize,
		cfg.ChangeRelay.MaxRetries,
	)

	err = relay.Start(context.Background())
	if err != nil {
		l.Fatal(err, "app - Run - relay.Start")
	}

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, cfg, recordUseCase, objectRepo, publisher, l)

	httpServer.Start()

	// Waiting signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(err, "app - Run - httpServer.Notify")
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(err, "app - Run - httpServer.Shutdown")
	}

	// Stop taking new envelopes first, then drain the consumers, then the
	// relay, so in-flight work lands before the pool closes.
	busCtx, busCancel := context.WithTimeout(context.Background(), cfg.Bus.ShutdownTimeout)
	if err = bus.Shutdown(busCtx); err != nil {
		l.Error(err, "app - Run - bus.Shutdown")
	}
	busCancel()

	for _, h := range harnesses {
		hCtx, hCancel := context.WithTimeout(context.Background(), cfg.Consumers.ShutdownTimeout)
		if err = h.Shutdown(hCtx); err != nil {
			l.Error(err, "app - Run - harness.Shutdown")
		}
		hCancel()
	}

	relayCtx, relayCancel := context.WithTimeout(context.Background(), cfg.ChangeRelay.ShutdownTimeout)
	if err = relay.Shutdown(relayCtx); err != nil {
		l.Error(err, "app - Run - relay.Shutdown")
	}
	relayCancel()

	if err = publisher.Close(); err != nil {
		l.Error(err, "app - Run - publisher.Close")
	}
}

// buildQueues wires the per-consumer queues for the configured driver. The
// postgres driver leases with a visibility timeout and redrives exhausted
// deliveries by queue name; the memory driver chains dead-letter instances
// directly and is meant for development.
func buildQueues(cfg *config.Config, pg *postgres.Postgres, l logger.Interface) (uploadQ, uploadDLQ, metadataQ, statusQ queue.Queue) {
	vis := cfg.Queue.VisibilityTimeout
	maxReceive := cfg.Queue.MaxReceiveCount

	switch cfg.Queue.Driver {
	case "memory":
		dlq := queue.NewMemory(vis, maxReceive, nil)

		return queue.NewMemory(vis, maxReceive, dlq),
			dlq,
			queue.NewMemory(vis, maxReceive, queue.NewMemory(vis, maxReceive, nil)),
			queue.NewMemory(vis, maxReceive, queue.NewMemory(vis, maxReceive, nil))
	case "postgres":
	default:
		l.Warn("unknown queue driver %q, falling back to postgres", cfg.Queue.Driver)
	}

	return persistent.NewQueueRepo(pg, _uploadQueue, _uploadDLQ, vis, maxReceive),
		persistent.NewQueueRepo(pg, _uploadDLQ, _uploadParking, vis, maxReceive),
		persistent.NewQueueRepo(pg, _metadataQueue, _metadataDLQ, vis, maxReceive),
		persistent.NewQueueRepo(pg, _statusQueue, _statusDLQ, vis, maxReceive)
}
