// Gray Logic Ingest - batched time-series write service
//
// This is the main entry point for the Gray Logic Ingest application.
// It subscribes to telemetry on the MQTT broker, batches points in memory
// and writes them to a time-series server over HTTP line protocol, the
// InfluxDB v2 API, or a downstream MQTT topic or NATS subject.
//
// Batches the server rejects for good are kept in a local SQLite dead-letter
// store and can be inspected and replayed through the admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nerrad567/gray-logic-ingest/internal/api"
	"github.com/nerrad567/gray-logic-ingest/internal/batch"
	"github.com/nerrad567/gray-logic-ingest/internal/classify"
	"github.com/nerrad567/gray-logic-ingest/internal/deadletter"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/nats"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/tsdb"
	"github.com/nerrad567/gray-logic-ingest/internal/ingest"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
	"github.com/nerrad567/gray-logic-ingest/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Ingest",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Secrets (tokens, broker passwords) may live in a local .env file
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	components := make(map[string]api.HealthChecker)

	// Dead-letter store (optional)
	var deadLetters deadletter.Repository
	if cfg.Database.Enabled {
		db, openErr := database.Open(cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		deadLetters = deadletter.NewSQLiteRepository(db.DB)
		components["database"] = db
	} else {
		log.Info("dead-letter store disabled")
	}

	// MQTT broker (needed for ingest and the mqtt transport)
	var mqttClient *mqtt.Client
	if cfg.UsesMQTT() {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		components["mqtt"] = mqttClient
	}

	transport, closeTransport, err := openTransport(ctx, cfg, mqttClient, log)
	if err != nil {
		return fmt.Errorf("opening %s transport: %w", cfg.Transport.Type, err)
	}
	defer func() {
		log.Info("closing transport", "type", cfg.Transport.Type)
		if closeErr := closeTransport(); closeErr != nil {
			log.Error("error closing transport", "error", closeErr)
		}
	}()
	if checker, ok := transport.(api.HealthChecker); ok {
		components["transport"] = checker
	}
	log.Info("transport ready", "type", cfg.Transport.Type)

	consistency, err := point.ParseConsistency(cfg.Batch.Consistency)
	if err != nil {
		return fmt.Errorf("parsing batch consistency: %w", err)
	}
	precision, err := point.ParsePrecision(cfg.Destination.Precision)
	if err != nil {
		return fmt.Errorf("parsing destination precision: %w", err)
	}

	writer := batch.New(transport,
		batch.WithDatabase(cfg.Destination.Database),
		batch.WithRetentionPolicy(cfg.Destination.RetentionPolicy),
		batch.WithConsistency(consistency),
		batch.WithLogger(log.Component("batch")),
	)

	if cfg.Batch.Enabled {
		hook := logFailureHook(log)
		if deadLetters != nil {
			hook = deadletter.Hook(deadLetters, log.Component("deadletter"))
		}
		if enableErr := writer.EnableBatching(batchConfig(cfg.Batch, consistency, hook)); enableErr != nil {
			return fmt.Errorf("enabling batching: %w", enableErr)
		}
		defer func() {
			log.Info("draining write pipeline")
			if disableErr := writer.DisableBatching(); disableErr != nil && !errors.Is(disableErr, batch.ErrBatchingDisabled) {
				log.Error("error disabling batching", "error", disableErr)
			}
		}()
		log.Info("batching enabled",
			"action_threshold", cfg.Batch.ActionThreshold,
			"flush_interval", cfg.Batch.FlushInterval(),
			"retry_buffer_capacity", cfg.Batch.RetryBufferCapacity,
		)
	} else {
		log.Info("batching disabled, writes are synchronous")
	}

	// MQTT ingest subscription
	if cfg.Ingest.Enabled {
		handler, handlerErr := ingest.NewHandler(writer, cfg.Ingest.ContentType, precision, consistency, log.Component("ingest"))
		if handlerErr != nil {
			return fmt.Errorf("creating ingest handler: %w", handlerErr)
		}
		topic := mqtt.Topics{}.AllIngest()
		if subErr := mqttClient.Subscribe(topic, mqttClient.QoS(), handler.Handle); subErr != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, subErr)
		}
		defer func() {
			log.Info("unsubscribing from ingest topics")
			if unsubErr := mqttClient.Unsubscribe(topic); unsubErr != nil {
				log.Warn("error unsubscribing", "topic", topic, "error", unsubErr)
			}
		}()
		log.Info("ingest subscribed", "topic", topic, "content_type", cfg.Ingest.ContentType)
	} else {
		log.Info("MQTT ingest disabled")
	}

	// Admin API
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			Logger:      log.Component("api"),
			Writer:      writer,
			DeadLetters: deadLetters,
			Components:  components,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("admin API disabled")
	}

	if err := healthCheck(ctx, components); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Ingest subscription
	// 3. Write pipeline drain (final flush)
	// 4. Transport
	// 5. MQTT
	// 6. Database

	log.Info("Gray Logic Ingest stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openTransport builds the batch transport named by transport.type.
//
// Parameters:
//   - ctx: Context for the initial connection check
//   - cfg: Application configuration
//   - mqttClient: Connected broker client (required for the mqtt transport)
//   - log: Logger for transport connection events
//
// Returns:
//   - batch.Transport: Ready transport
//   - func() error: Releases the transport's resources
//   - error: Connection failure or unknown transport type
func openTransport(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (batch.Transport, func() error, error) {
	switch cfg.Transport.Type {
	case config.TransportHTTP:
		client, err := tsdb.Connect(ctx, cfg.Transport.HTTP)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil

	case config.TransportInfluxDB:
		client, err := influxdb.Connect(cfg.Transport.InfluxDB)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil

	case config.TransportMQTT:
		if mqttClient == nil {
			return nil, nil, errors.New("mqtt transport requires a broker connection")
		}
		t := mqtt.NewTransport(mqttClient, cfg.Transport.MQTT.TopicPrefix, mqttClient.QoS())
		return t, func() error { return nil }, nil

	case config.TransportNATS:
		client, err := nats.Connect(cfg.Transport.NATS)
		if err != nil {
			return nil, nil, err
		}
		client.SetLogger(log.Component("nats"))
		return client, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport type %q", cfg.Transport.Type)
	}
}

// batchConfig converts the YAML batch section into a pipeline Config.
func batchConfig(cfg config.BatchConfig, consistency point.Consistency, hook batch.FailureHook) batch.Config {
	return batch.Config{
		ActionThreshold:     cfg.ActionThreshold,
		FlushInterval:       cfg.FlushInterval(),
		JitterWindow:        cfg.JitterWindow(),
		RetryBufferCapacity: cfg.RetryBufferCapacity,
		RetryInterval:       cfg.RetryInterval(),
		MaxAttempts:         cfg.MaxAttempts,
		Consistency:         consistency,
		FailureHook:         hook,
	}
}

// logFailureHook reports dropped batches when no dead-letter store is configured.
func logFailureHook(log *logging.Logger) batch.FailureHook {
	return func(b *point.Batch, outcome classify.Outcome) {
		log.Error("batch dropped",
			"destination", b.Destination().String(),
			"points", b.Len(),
			"kind", outcome.Kind.String(),
			"error", outcome.Message,
		)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - components: Named components to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, components map[string]api.HealthChecker) error {
	for name, c := range components {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
