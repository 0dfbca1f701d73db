package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP        HTTP
		Log         Log
		PG          PG
		S3          S3
		Kafka       Kafka
		Bus         Bus
		Queue       Queue
		Consumers   Consumers
		ChangeRelay ChangeRelay
		Mailer      Mailer
		Swagger     Swagger
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT,required"`
		AccessKey      string        `env:"S3_ACCESS_KEY,required"`
		SecretKey      string        `env:"S3_SECRET_KEY,required"`
		Bucket         string        `env:"S3_BUCKET,required"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS,required"`
		GroupID string   `env:"KAFKA_GROUP_ID,required"`
		Topic   string   `env:"KAFKA_TOPIC,required"`
	}

	// Bus controls the controller that drains the kafka topic into the router.
	Bus struct {
		CommitTimeout   time.Duration `env:"BUS_COMMIT_TIMEOUT" envDefault:"2s"`
		DispatchTimeout time.Duration `env:"BUS_DISPATCH_TIMEOUT" envDefault:"10s"`
		ShutdownTimeout time.Duration `env:"BUS_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	Queue struct {
		Driver            string        `env:"QUEUE_DRIVER" envDefault:"postgres"` // postgres | memory
		VisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" envDefault:"30s"`
		MaxReceiveCount   int           `env:"QUEUE_MAX_RECEIVE_COUNT" envDefault:"3"`
	}

	Consumers struct {
		Workers         int           `env:"CONSUMER_WORKERS" envDefault:"4"`
		PollInterval    time.Duration `env:"CONSUMER_POLL_INTERVAL" envDefault:"500ms"`
		HandleTimeout   time.Duration `env:"CONSUMER_HANDLE_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout time.Duration `env:"CONSUMER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	ChangeRelay struct {
		PollInterval        time.Duration `env:"CHANGE_RELAY_POLL_INTERVAL" envDefault:"2s"`
		MarkFailedInterval  time.Duration `env:"CHANGE_RELAY_MARK_FAILED_INTERVAL" envDefault:"2m"`
		CleanupInterval     time.Duration `env:"CHANGE_RELAY_CLEANUP_INTERVAL" envDefault:"24h"`
		ProcessBatchTimeout time.Duration `env:"CHANGE_RELAY_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout     time.Duration `env:"CHANGE_RELAY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"CHANGE_RELAY_BATCH_SIZE" envDefault:"100"`
		MaxRetries          int           `env:"CHANGE_RELAY_MAX_RETRIES" envDefault:"3"`
	}

	Mailer struct {
		Host     string `env:"SMTP_HOST,required"`
		Port     string `env:"SMTP_PORT" envDefault:"587"`
		From     string `env:"SMTP_FROM,required"`
		Username string `env:"SMTP_USERNAME"`
		Password string `env:"SMTP_PASSWORD"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}
