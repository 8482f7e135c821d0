package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultMaxTextLength caps input size in characters.
const DefaultMaxTextLength = 100000

// Config holds ukredact configuration.
type Config struct {
	Server           ServerConfig        `yaml:"server"`
	NER              NERConfig           `yaml:"ner"`
	Patterns         PatternsConfig      `yaml:"patterns"`
	Anonymization    AnonymizationConfig `yaml:"anonymization"`
	ConflictStrategy string              `yaml:"conflict_strategy" validate:"omitempty,oneof=score priority"`
	Limits           LimitsConfig        `yaml:"limits"`
	Logging          LoggingConfig       `yaml:"logging"`
	Telemetry        TelemetryConfig     `yaml:"telemetry"`
	Audit            AuditConfig         `yaml:"audit"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NERConfig selects and tunes the statistical detector.
type NERConfig struct {
	Backend  string          `yaml:"backend" validate:"omitempty,oneof=onnx remote disabled"`
	ONNX     ONNXConfig      `yaml:"onnx"`
	Remote   RemoteNERConfig `yaml:"remote"`
	Entities map[string]bool `yaml:"entities"` // false switches a class off
}

type ONNXConfig struct {
	ModelDir     string `yaml:"model_dir"`
	SeqLen       int    `yaml:"seq_len" validate:"gte=0"`
	PoolSize     int    `yaml:"pool_size" validate:"gte=0"`
	IntraThreads int    `yaml:"intra_threads" validate:"gte=0"`
	InterThreads int    `yaml:"inter_threads" validate:"gte=0"`
}

type RemoteNERConfig struct {
	URL                  string        `yaml:"url"`
	Timeout              time.Duration `yaml:"timeout"`
	AllowPrivateNetworks bool          `yaml:"allow_private_networks"`
}

// PatternsConfig tunes the rule-based detector.
type PatternsConfig struct {
	Entities           map[string]bool `yaml:"entities"`
	ContextEnhancement *bool           `yaml:"context_enhancement"`
	Custom             []CustomPattern `yaml:"custom" validate:"dive"`
}

// CustomPattern is an extra regular-expression rule.
type CustomPattern struct {
	Name     string   `yaml:"name"`
	Entity   string   `yaml:"entity" validate:"required"`
	Regex    string   `yaml:"regex" validate:"required"`
	Score    float64  `yaml:"score" validate:"gte=0,lte=1"`
	Context  []string `yaml:"context"`
	Language string   `yaml:"language"`
}

type AnonymizationConfig struct {
	Format    string            `yaml:"format"`    // default "[{entity_type}]"
	Overrides map[string]string `yaml:"overrides"` // per entity type replacement
}

type LimitsConfig struct {
	// MaxTextLength in characters; 0 means the default, negative disables the limit.
	MaxTextLength int `yaml:"max_text_length"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"` // grpc | http
	ServiceName string `yaml:"service_name"`
}

// AuditConfig lists where per-request audit events go. Events carry
// counts and timings only.
type AuditConfig struct {
	Sinks           []AuditSinkConfig `yaml:"sinks"`
	QueueSize       int               `yaml:"queue_size" validate:"gte=0"`
	Workers         int               `yaml:"workers" validate:"gte=0"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout"`
}

type AuditSinkConfig struct {
	Type    string            `yaml:"type"` // file_jsonl | webhook
	Path    string            `yaml:"path"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// ContextEnhancementEnabled reports the effective context boost setting.
func (p PatternsConfig) ContextEnhancementEnabled() bool {
	return p.ContextEnhancement == nil || *p.ContextEnhancement
}

// Load reads configuration from a YAML file, then applies .env and
// UKREDACT_* environment overrides.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	// Best-effort: load .env from current directory
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		cfg = defaultConfig()
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 4 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.NER.Backend == "" {
		cfg.NER.Backend = "onnx"
	}
	if cfg.NER.ONNX.SeqLen == 0 {
		cfg.NER.ONNX.SeqLen = 512
	}
	if cfg.NER.Remote.Timeout == 0 {
		cfg.NER.Remote.Timeout = 10 * time.Second
	}

	if cfg.Anonymization.Format == "" {
		cfg.Anonymization.Format = "[{entity_type}]"
	}
	if cfg.ConflictStrategy == "" {
		cfg.ConflictStrategy = "score"
	}
	if cfg.Limits.MaxTextLength == 0 {
		cfg.Limits.MaxTextLength = DefaultMaxTextLength
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ukredact"
	}

	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = 1000
	}
	if cfg.Audit.Workers == 0 {
		cfg.Audit.Workers = 1
	}
}

// applyEnv overrides file values with UKREDACT_* variables.
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("UKREDACT_SERVER_ADDR", &cfg.Server.Addr)
	str("UKREDACT_NER_BACKEND", &cfg.NER.Backend)
	str("UKREDACT_NER_MODEL_DIR", &cfg.NER.ONNX.ModelDir)
	str("UKREDACT_NER_REMOTE_URL", &cfg.NER.Remote.URL)
	str("UKREDACT_CONFLICT_STRATEGY", &cfg.ConflictStrategy)
	str("UKREDACT_ANONYMIZATION_FORMAT", &cfg.Anonymization.Format)
	str("UKREDACT_LOG_LEVEL", &cfg.Logging.Level)
	str("UKREDACT_LOG_FORMAT", &cfg.Logging.Format)
	str("UKREDACT_TELEMETRY_ENDPOINT", &cfg.Telemetry.Endpoint)

	if v := strings.TrimSpace(os.Getenv("UKREDACT_AUDIT_FILE")); v != "" {
		cfg.Audit.Sinks = append(cfg.Audit.Sinks, AuditSinkConfig{Type: "file_jsonl", Path: v})
	}

	if v := strings.TrimSpace(os.Getenv("UKREDACT_MAX_TEXT_LENGTH")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("UKREDACT_MAX_TEXT_LENGTH: %w", err)
		}
		cfg.Limits.MaxTextLength = n
	}
	if v := strings.TrimSpace(os.Getenv("UKREDACT_TELEMETRY_ENABLED")); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("UKREDACT_TELEMETRY_ENABLED: %w", err)
		}
		cfg.Telemetry.Enabled = on
	}
	return nil
}
