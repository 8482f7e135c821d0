package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Default()
	cfg.NER.Backend = "disabled"
	return cfg
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing server addr",
			mutate: func(c *Config) { c.Server.Addr = "" },
			want:   "server.addr",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.NER.Backend = "spacy" },
			want:   "Backend",
		},
		{
			name:   "onnx without model dir",
			mutate: func(c *Config) { c.NER.Backend = "onnx" },
			want:   "model_dir",
		},
		{
			name:   "remote without url",
			mutate: func(c *Config) { c.NER.Backend = "remote" },
			want:   "ner.remote.url",
		},
		{
			name: "remote url invalid",
			mutate: func(c *Config) {
				c.NER.Backend = "remote"
				c.NER.Remote.URL = "::://bad"
			},
			want: "invalid",
		},
		{
			name: "remote url blocked private",
			mutate: func(c *Config) {
				c.NER.Backend = "remote"
				c.NER.Remote.URL = "http://127.0.0.1:8001"
			},
			want: "SSRF",
		},
		{
			name:   "unknown ner class",
			mutate: func(c *Config) { c.NER.Entities = map[string]bool{"NAME": false} },
			want:   "ner.entities",
		},
		{
			name:   "unknown pattern class",
			mutate: func(c *Config) { c.Patterns.Entities = map[string]bool{"SSN": false} },
			want:   "patterns.entities",
		},
		{
			name: "custom pattern bad regex",
			mutate: func(c *Config) {
				c.Patterns.Custom = []CustomPattern{{Entity: "EDRPOU", Regex: "(", Score: 0.5}}
			},
			want: "invalid regex",
		},
		{
			name: "custom pattern score out of range",
			mutate: func(c *Config) {
				c.Patterns.Custom = []CustomPattern{{Entity: "EDRPOU", Regex: `\d{8}`, Score: 2}}
			},
			want: "Score",
		},
		{
			name: "custom pattern language never queried",
			mutate: func(c *Config) {
				c.Patterns.Custom = []CustomPattern{{Entity: "TAX_ID", Regex: `\b\d{10}\b`, Score: 0.8, Language: "uk"}}
			},
			want: "never queried",
		},
		{
			name:   "unknown strategy",
			mutate: func(c *Config) { c.ConflictStrategy = "longest" },
			want:   "ConflictStrategy",
		},
		{
			name:   "blank format",
			mutate: func(c *Config) { c.Anonymization.Format = "  " },
			want:   "anonymization.format",
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
			},
			want: "endpoint",
		},
		{
			name: "audit file sink without path",
			mutate: func(c *Config) {
				c.Audit.Sinks = []AuditSinkConfig{{Type: "file_jsonl"}}
			},
			want: "missing path",
		},
		{
			name: "audit webhook not http",
			mutate: func(c *Config) {
				c.Audit.Sinks = []AuditSinkConfig{{Type: "webhook", URL: "ftp://audit.example.com"}}
			},
			want: "http or https",
		},
		{
			name: "audit unknown sink",
			mutate: func(c *Config) {
				c.Audit.Sinks = []AuditSinkConfig{{Type: "kafka"}}
			},
			want: "unknown type",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "trace" },
			want:   "Level",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			} else if !contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	loopbackOK := validConfig()
	loopbackOK.NER.Backend = "remote"
	loopbackOK.NER.Remote.URL = "http://127.0.0.1:8001"
	loopbackOK.NER.Remote.AllowPrivateNetworks = true
	if err := Validate(loopbackOK); err != nil {
		t.Fatalf("expected loopback allowed when allow_private_networks=true, got %v", err)
	}

	enRule := validConfig()
	enRule.Patterns.Custom = []CustomPattern{{Entity: "TAX_ID", Regex: `\b\d{10}\b`, Score: 0.8, Language: "en"}}
	if err := Validate(enRule); err != nil {
		t.Fatalf("custom rule filed under en should be valid, got %v", err)
	}

	flags := validConfig()
	flags.NER.Entities = map[string]bool{"misc": false}
	flags.Patterns.Entities = map[string]bool{"URL": false}
	if err := Validate(flags); err != nil {
		t.Fatalf("entity flags are case-insensitive, got %v", err)
	}
}

func TestValidateNil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.ConflictStrategy != "score" || cfg.Limits.MaxTextLength != DefaultMaxTextLength {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Anonymization.Format != "[{entity_type}]" {
		t.Fatalf("unexpected format %q", cfg.Anonymization.Format)
	}
	if !cfg.Patterns.ContextEnhancementEnabled() {
		t.Fatalf("context enhancement should default on")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ukredact.yaml")
	body := `
server:
  addr: ":9000"
ner:
  backend: remote
  remote:
    url: http://ner.example.com
    timeout: 3s
  entities:
    MISC: false
patterns:
  context_enhancement: false
  custom:
    - entity: EDRPOU
      regex: '\b\d{8}\b'
      score: 0.6
anonymization:
  format: "<{entity_type}>"
conflict_strategy: priority
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UKREDACT_LOG_LEVEL", "debug")
	t.Setenv("UKREDACT_MAX_TEXT_LENGTH", "-1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.NER.Remote.Timeout != 3*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.NER.Entities["MISC"] || cfg.Patterns.ContextEnhancementEnabled() {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if len(cfg.Patterns.Custom) != 1 || cfg.Patterns.Custom[0].Entity != "EDRPOU" {
		t.Fatalf("custom patterns not loaded: %+v", cfg.Patterns.Custom)
	}
	if cfg.Logging.Level != "debug" || cfg.Limits.MaxTextLength != -1 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("UKREDACT_MAX_TEXT_LENGTH", "lots")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for non-numeric limit")
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}
