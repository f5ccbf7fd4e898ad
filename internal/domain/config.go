package domain

// Config holds the complete Gavel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Adjudication thresholds shared by the claim rules and the decision
	// engine. Single source — the engine never hardcodes its own copy.
	Thresholds Thresholds `json:"thresholds"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Ledger     LedgerConfig     `json:"ledger"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// Thresholds are the adjudication decision points.
type Thresholds struct {
	// MaxClaimAmount is the policy limit; anything above is rejected.
	MaxClaimAmount float64 `json:"maxClaimAmount"`

	// AutoApproveAmount is the ceiling for automatic approval.
	AutoApproveAmount float64 `json:"autoApproveAmount"`

	// AutoApproveConfidence is the confidence floor for automatic approval.
	AutoApproveConfidence float64 `json:"autoApproveConfidence"`

	// MaxServiceAgeDays bounds how old a service date may be.
	MaxServiceAgeDays int `json:"maxServiceAgeDays"`

	// MinDocumentationScore is the floor below which a claim is sent back
	// for more information.
	MinDocumentationScore float64 `json:"minDocumentationScore"`
}

// DefaultThresholds returns the standard adjudication thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxClaimAmount:        100_000, // $100k policy limit
		AutoApproveAmount:     1_000,   // $1k
		AutoApproveConfidence: 0.8,
		MaxServiceAgeDays:     365, // 1 year
		MinDocumentationScore: 0.5,
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp
	Endpoint     string `json:"endpoint"`
}

// DefaultConfig returns a single-node configuration: SQLite storage, an
// in-memory duplicate ledger, and an in-process channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Thresholds: DefaultThresholds(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./gavel.db",
		},
		Ledger: LedgerConfig{
			Type: "memory",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "gavel",
		},
	}
}

// ProductionConfig returns a multi-node configuration: PostgreSQL storage,
// a Redis-backed duplicate ledger shared across nodes, and NATS events.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "gavel",
	}
	cfg.Ledger = LedgerConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
