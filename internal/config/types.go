package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Detection  DetectionConfig  `yaml:"detection" mapstructure:"detection"`
	Redaction  RedactionConfig  `yaml:"redaction" mapstructure:"redaction"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Docs       DocsConfig       `yaml:"docs" mapstructure:"docs"`
	Usage      UsageConfig      `yaml:"usage" mapstructure:"usage"`
	Transcript TranscriptConfig `yaml:"transcript" mapstructure:"transcript"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Events     EventsConfig     `yaml:"events" mapstructure:"events"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DetectionConfig configures the sensitive-data inspection layer.
// Offsets reported by every inspector are codepoint (rune) positions.
type DetectionConfig struct {
	// Mode selects the inspector implementation: "pattern" (in-process
	// rules) or "remote" (external detection service).
	Mode         string   `yaml:"mode" mapstructure:"mode"`
	Endpoint     string   `yaml:"endpoint" mapstructure:"endpoint"`
	Jurisdiction string   `yaml:"jurisdiction" mapstructure:"jurisdiction"`
	InfoTypes    []string `yaml:"info_types" mapstructure:"info_types"`
	// MinLikelihood filters findings below the given ordinal likelihood.
	MinLikelihood string `yaml:"min_likelihood" mapstructure:"min_likelihood"`
	// MaxFindings caps findings per inspection request; 0 means unlimited.
	// When the cap is hit the inspector reports a truncated result.
	MaxFindings int `yaml:"max_findings" mapstructure:"max_findings"`
	// MaxChunkSize is the largest text (in codepoints) sent to the
	// inspector in one call. Larger documents are split by the redactor.
	MaxChunkSize int           `yaml:"max_chunk_size" mapstructure:"max_chunk_size"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RedactionConfig configures pseudonym synthesis.
type RedactionConfig struct {
	Locale string `yaml:"locale" mapstructure:"locale"`
	// Seed fixes the synthetic-value generator; 0 seeds from entropy.
	Seed uint64 `yaml:"seed" mapstructure:"seed"`
}

// GenerationConfig configures the generative-language backend and the
// region-failover loop. Regions are tried strictly in the listed order.
type GenerationConfig struct {
	Model           string   `yaml:"model" mapstructure:"model"`
	Temperature     float32  `yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens int      `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	Regions         []string `yaml:"regions" mapstructure:"regions"`
	// Endpoints maps a region name to the backend base URL serving it.
	Endpoints      map[string]string `yaml:"endpoints" mapstructure:"endpoints"`
	APIKey         string            `yaml:"api_key" mapstructure:"api_key"`
	AttemptTimeout time.Duration     `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`
	OverallTimeout time.Duration     `yaml:"overall_timeout" mapstructure:"overall_timeout"`
}

// SearchConfig configures the conversational-search backend.
type SearchConfig struct {
	Endpoint           string        `yaml:"endpoint" mapstructure:"endpoint"`
	DatastoreID        string        `yaml:"datastore_id" mapstructure:"datastore_id"`
	DatastoreLocation  string        `yaml:"datastore_location" mapstructure:"datastore_location"`
	SummaryResultCount int           `yaml:"summary_result_count" mapstructure:"summary_result_count"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DocsConfig maps provided-document keys to files on disk. Each key
// selects a locally curated document that chats can be pinned to.
type DocsConfig struct {
	Dir   string            `yaml:"dir" mapstructure:"dir"`
	Files map[string]string `yaml:"files" mapstructure:"files"`
}

// UsageConfig contains the usage-metrics database configuration
type UsageConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// TranscriptConfig contains the conversation-archive configuration
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket"`
	Project string `yaml:"project" mapstructure:"project"`
}

// CacheConfig contains the inspection-result cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// EventsConfig contains the live event-stream configuration
type EventsConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// RateLimitConfig contains per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8003,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Detection: DetectionConfig{
			Mode:          "pattern",
			Jurisdiction:  "europe-west3",
			InfoTypes:     []string{"STREET_ADDRESS", "FIRST_NAME", "LAST_NAME", "PHONE_NUMBER"},
			MinLikelihood: "LIKELY",
			MaxFindings:   0,
			MaxChunkSize:  400000,
			Timeout:       15 * time.Second,
		},
		Redaction: RedactionConfig{
			Locale: "de",
		},
		Generation: GenerationConfig{
			Model:           "gemini-1.5-pro-002",
			Temperature:     1.0,
			MaxOutputTokens: 2048,
			// EU only: Frankfurt, Netherlands, Belgium, Paris
			Regions:        []string{"europe-west3", "europe-west4", "europe-west1", "europe-west9"},
			AttemptTimeout: 60 * time.Second,
			OverallTimeout: 4 * time.Minute,
		},
		Search: SearchConfig{
			DatastoreLocation:  "eu",
			SummaryResultCount: 3,
			Timeout:            30 * time.Second,
		},
		Docs: DocsConfig{
			Dir: "./local_files",
			Files: map[string]string{
				"fragenkatalog":   "fragenkatalog.txt",
				"strategiepapier": "strategiepapier.txt",
			},
		},
		Usage: UsageConfig{
			Enabled:         false,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     time.Hour,
			KeyPrefix:      "weltwissen:inspect:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Events: EventsConfig{
			Enabled: true,
			Path:    "/ws",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}
}
