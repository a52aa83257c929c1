package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport types accepted in transport.type.
const (
	TransportHTTP     = "http"
	TransportInfluxDB = "influxdb"
	TransportMQTT     = "mqtt"
	TransportNATS     = "nats"
)

// Ingest payload content types.
const (
	ContentTypeJSON         = "json"
	ContentTypeLineProtocol = "line_protocol"
)

// Config is the root configuration structure for Gray Logic Ingest.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Database    DatabaseConfig    `yaml:"database"`
	Batch       BatchConfig       `yaml:"batch"`
	Destination DestinationConfig `yaml:"destination"`
	Transport   TransportConfig   `yaml:"transport"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Ingest      IngestConfig      `yaml:"ingest"`
	API         APIConfig         `yaml:"api"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite settings for the dead-letter store.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// BatchConfig contains write pipeline settings. Durations are milliseconds.
type BatchConfig struct {
	// Enabled starts the writer in batching mode. When false every write is
	// sent synchronously.
	Enabled bool `yaml:"enabled"`

	ActionThreshold     int    `yaml:"action_threshold"`
	FlushIntervalMS     int    `yaml:"flush_interval_ms"`
	JitterWindowMS      int    `yaml:"jitter_window_ms"`
	RetryBufferCapacity int    `yaml:"retry_buffer_capacity"`
	RetryIntervalMS     int    `yaml:"retry_interval_ms"`
	MaxAttempts         int    `yaml:"max_attempts"`
	Consistency         string `yaml:"consistency"`
}

// DestinationConfig is the default write target.
type DestinationConfig struct {
	Database        string `yaml:"database"`
	RetentionPolicy string `yaml:"retention_policy"`
	Precision       string `yaml:"precision"`
}

// TransportConfig selects and configures the server transport.
type TransportConfig struct {
	Type     string                  `yaml:"type"`
	HTTP     HTTPTransportConfig     `yaml:"http"`
	InfluxDB InfluxDBTransportConfig `yaml:"influxdb"`
	MQTT     MQTTTransportConfig     `yaml:"mqtt"`
	NATS     NATSTransportConfig     `yaml:"nats"`
}

// HTTPTransportConfig configures the line-protocol HTTP transport.
type HTTPTransportConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Timeout  int    `yaml:"timeout"` // seconds
	// MaxLineBytes splits long lines; 0 disables the limit.
	MaxLineBytes int `yaml:"max_line_bytes"`
}

// InfluxDBTransportConfig configures the influxdb-client-go transport.
type InfluxDBTransportConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Timeout int    `yaml:"timeout"` // seconds
	GZip    bool   `yaml:"gzip"`
}

// MQTTTransportConfig configures publishing batches over MQTT.
type MQTTTransportConfig struct {
	TopicPrefix string `yaml:"topic_prefix"`
}

// NATSTransportConfig configures publishing batches to a NATS server.
type NATSTransportConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Name          string `yaml:"name"`
	Token         string `yaml:"token"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Timeout       int    `yaml:"timeout"` // seconds
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// IngestConfig controls the MQTT telemetry bridge.
type IngestConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ContentType string `yaml:"content_type"`
}

// APIConfig contains admin HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_INGEST_SECTION_KEY
// For example: GRAYLOGIC_INGEST_TRANSPORT_TYPE, GRAYLOGIC_INGEST_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/graylogic-ingest.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Batch: BatchConfig{
			Enabled:             true,
			ActionThreshold:     1000,
			FlushIntervalMS:     1000,
			RetryBufferCapacity: 50,
			Consistency:         "one",
		},
		Destination: DestinationConfig{
			Database:  "graylogic",
			Precision: "ns",
		},
		Transport: TransportConfig{
			Type: TransportHTTP,
			HTTP: HTTPTransportConfig{
				URL:     "http://localhost:8086",
				Timeout: 5,
			},
			InfluxDB: InfluxDBTransportConfig{
				URL:     "http://localhost:8086",
				Timeout: 5,
			},
			MQTT: MQTTTransportConfig{
				TopicPrefix: "graylogic/tsdb/write",
			},
			NATS: NATSTransportConfig{
				URL:           "nats://localhost:4222",
				SubjectPrefix: "graylogic.tsdb.write",
				Name:          "graylogic-ingest",
				Timeout:       5,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-ingest",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Ingest: IngestConfig{
			Enabled:     true,
			ContentType: ContentTypeJSON,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_INGEST_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Logging
	if v := os.Getenv("GRAYLOGIC_INGEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_INGEST_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Batch
	if v, ok := envInt("GRAYLOGIC_INGEST_BATCH_ACTION_THRESHOLD"); ok {
		cfg.Batch.ActionThreshold = v
	}
	if v, ok := envInt("GRAYLOGIC_INGEST_BATCH_FLUSH_INTERVAL_MS"); ok {
		cfg.Batch.FlushIntervalMS = v
	}

	// Destination
	if v := os.Getenv("GRAYLOGIC_INGEST_DATABASE"); v != "" {
		cfg.Destination.Database = v
	}
	if v := os.Getenv("GRAYLOGIC_INGEST_RETENTION_POLICY"); v != "" {
		cfg.Destination.RetentionPolicy = v
	}

	// Transport
	if v := os.Getenv("GRAYLOGIC_INGEST_TRANSPORT_TYPE"); v != "" {
		cfg.Transport.Type = v
	}
	if v := os.Getenv("GRAYLOGIC_INGEST_HTTP_URL"); v != "" {
		cfg.Transport.HTTP.URL = v
	}
	if v := os.Getenv("GRAYLOGIC_INGEST_HTTP_PASSWORD"); v != "" {
		cfg.Transport.HTTP.Password = v
	}
	if v := os.Getenv("GRAYLOGIC_INGEST_INFLUXDB_URL"); v != "" {
		cfg.Transport.InfluxDB.URL = v
	}
	if v := os.Getenv("GRAYLOGIC_INGEST_INFLUXDB_TOKEN"); v != "" {
		cfg.Transport.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_INGEST_NATS_URL"); v != "" {
		cfg.Transport.NATS.URL = v
	}
	if v := os.Getenv("GRAYLOGIC_INGEST_NATS_TOKEN"); v != "" {
		cfg.Transport.NATS.Token = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_INGEST_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_INGEST_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_INGEST_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_INGEST_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("GRAYLOGIC_INGEST_API_PORT"); ok {
		cfg.API.Port = v
	}
}

// envInt reads an integer environment variable. Unparseable values are ignored.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.enabled is true")
	}

	// Batch validation
	if c.Batch.ActionThreshold < 0 {
		errs = append(errs, "batch.action_threshold must not be negative")
	}
	if c.Batch.FlushIntervalMS < 0 || c.Batch.JitterWindowMS < 0 || c.Batch.RetryIntervalMS < 0 {
		errs = append(errs, "batch intervals must not be negative")
	}
	if c.Batch.RetryBufferCapacity < 0 {
		errs = append(errs, "batch.retry_buffer_capacity must not be negative")
	}
	if c.Batch.MaxAttempts < 0 {
		errs = append(errs, "batch.max_attempts must not be negative")
	}
	switch strings.ToLower(c.Batch.Consistency) {
	case "", "all", "any", "one", "quorum":
	default:
		errs = append(errs, "batch.consistency must be one of all, any, one, quorum")
	}

	// Destination validation
	if c.Destination.Database == "" {
		errs = append(errs, "destination.database is required")
	}
	switch c.Destination.Precision {
	case "", "n", "ns", "u", "us", "µs", "ms", "s", "m", "h":
	default:
		errs = append(errs, "destination.precision must be one of ns, u, ms, s, m, h")
	}

	// Transport validation
	switch c.Transport.Type {
	case TransportHTTP:
		if c.Transport.HTTP.URL == "" {
			errs = append(errs, "transport.http.url is required")
		}
	case TransportInfluxDB:
		if c.Transport.InfluxDB.URL == "" {
			errs = append(errs, "transport.influxdb.url is required")
		}
	case TransportMQTT:
		if c.Transport.MQTT.TopicPrefix == "" {
			errs = append(errs, "transport.mqtt.topic_prefix is required")
		}
	case TransportNATS:
		if c.Transport.NATS.URL == "" {
			errs = append(errs, "transport.nats.url is required")
		}
		if c.Transport.NATS.SubjectPrefix == "" {
			errs = append(errs, "transport.nats.subject_prefix is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("transport.type must be %s, %s, %s or %s", TransportHTTP, TransportInfluxDB, TransportMQTT, TransportNATS))
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Ingest validation
	if c.Ingest.Enabled {
		switch c.Ingest.ContentType {
		case ContentTypeJSON, ContentTypeLineProtocol:
		default:
			errs = append(errs, "ingest.content_type must be json or line_protocol")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// UsesMQTT reports whether any component needs a broker connection.
func (c *Config) UsesMQTT() bool {
	return c.Ingest.Enabled || c.Transport.Type == TransportMQTT
}

// FlushInterval returns batch.flush_interval_ms as a Duration.
func (b BatchConfig) FlushInterval() time.Duration {
	return time.Duration(b.FlushIntervalMS) * time.Millisecond
}

// JitterWindow returns batch.jitter_window_ms as a Duration.
func (b BatchConfig) JitterWindow() time.Duration {
	return time.Duration(b.JitterWindowMS) * time.Millisecond
}

// RetryInterval returns batch.retry_interval_ms as a Duration.
func (b BatchConfig) RetryInterval() time.Duration {
	return time.Duration(b.RetryIntervalMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
