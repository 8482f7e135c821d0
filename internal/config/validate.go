package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/straja-ai/ukredact/internal/entities"
	"github.com/straja-ai/ukredact/internal/recognizer/pattern"
	"github.com/straja-ai/ukredact/internal/resolve"
)

// validate is a package-level singleton; building one per call is expensive.
var validate = validator.New()

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := validateNERConfig(cfg.NER); err != nil {
		return err
	}

	if err := validatePatternsConfig(cfg.Patterns); err != nil {
		return err
	}

	if _, err := resolve.Lookup(cfg.ConflictStrategy); err != nil {
		return fmt.Errorf("conflict_strategy: %w", err)
	}

	if strings.TrimSpace(cfg.Anonymization.Format) == "" {
		return errors.New("anonymization.format must not be blank")
	}
	for k := range cfg.Anonymization.Overrides {
		if strings.TrimSpace(k) == "" {
			return errors.New("anonymization.overrides has an empty entity type")
		}
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	if err := validateAuditConfig(cfg.Audit); err != nil {
		return err
	}

	return nil
}

func validateNERConfig(n NERConfig) error {
	switch strings.ToLower(strings.TrimSpace(n.Backend)) {
	case "onnx":
		if strings.TrimSpace(n.ONNX.ModelDir) == "" {
			return errors.New("ner.onnx.model_dir must be set for the onnx backend")
		}
	case "remote":
		if err := validateRemoteURL(n.Remote); err != nil {
			return err
		}
	case "disabled":
	default:
		return fmt.Errorf("ner.backend must be onnx, remote or disabled, got %q", n.Backend)
	}
	if n.Remote.Timeout < 0 {
		return errors.New("ner.remote.timeout must not be negative")
	}
	return validateEntityFlags("ner.entities", entities.NERClasses(), n.Entities)
}

func validateRemoteURL(r RemoteNERConfig) error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("ner.remote.url must be set for the remote backend")
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("ner.remote.url is invalid")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("ner.remote.url must be http or https")
	}
	if err := blockPrivateHost(u.Host, r.AllowPrivateNetworks); err != nil {
		return fmt.Errorf("ner.remote.url blocked: %w", err)
	}
	return nil
}

func validatePatternsConfig(p PatternsConfig) error {
	if err := validateEntityFlags("patterns.entities", entities.PatternClasses(), p.Entities); err != nil {
		return err
	}
	for i, c := range p.Custom {
		if _, err := regexp.Compile(c.Regex); err != nil {
			return fmt.Errorf("patterns.custom[%d] (%s): invalid regex: %w", i, c.Entity, err)
		}
		if c.Language != "" && c.Language != pattern.DefaultLanguage {
			return fmt.Errorf("patterns.custom[%d] (%s): language %q is never queried, use %q or leave it empty", i, c.Entity, c.Language, pattern.DefaultLanguage)
		}
	}
	return nil
}

func validateEntityFlags(field string, classes []entities.Class, flags map[string]bool) error {
	for name := range flags {
		known := false
		for _, c := range classes {
			if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%s: unknown entity class %q", field, name)
		}
	}
	return nil
}

func validateAuditConfig(a AuditConfig) error {
	for i, s := range a.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("audit sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("audit sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("audit sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("audit sink %d (webhook) url must be http or https", i)
			}
			if s.Timeout < 0 {
				return fmt.Errorf("audit sink %d (webhook) timeout must not be negative", i)
			}
		default:
			return fmt.Errorf("audit sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}

func blockPrivateHost(hostport string, allowPrivate bool) error {
	if allowPrivate {
		return nil
	}
	host := hostport
	if strings.Contains(hostport, "]") || strings.Contains(hostport, ":") {
		h, _, err := net.SplitHostPort(hostport)
		if err == nil {
			host = h
		}
	}
	lc := strings.ToLower(strings.TrimSpace(host))
	if lc == "localhost" {
		return errors.New("private network host localhost blocked for SSRF safety")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("private network IP %s blocked for SSRF safety", ip.String())
		}
		return nil
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	privateBlocks := []*net.IPNet{
		{IP: net.ParseIP("127.0.0.0"), Mask: net.CIDRMask(8, 32)},
		{IP: net.ParseIP("10.0.0.0"), Mask: net.CIDRMask(8, 32)},
		{IP: net.ParseIP("172.16.0.0"), Mask: net.CIDRMask(12, 32)},
		{IP: net.ParseIP("192.168.0.0"), Mask: net.CIDRMask(16, 32)},
		{IP: net.ParseIP("169.254.0.0"), Mask: net.CIDRMask(16, 32)},
		{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
		{IP: net.ParseIP("fc00::"), Mask: net.CIDRMask(7, 128)},
		{IP: net.ParseIP("fe80::"), Mask: net.CIDRMask(10, 128)},
	}
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
