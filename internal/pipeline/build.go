package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/straja-ai/ukredact/internal/config"
	"github.com/straja-ai/ukredact/internal/entities"
	"github.com/straja-ai/ukredact/internal/operator"
	"github.com/straja-ai/ukredact/internal/recognizer/ner"
	"github.com/straja-ai/ukredact/internal/recognizer/ner/onnx"
	"github.com/straja-ai/ukredact/internal/recognizer/ner/remote"
	"github.com/straja-ai/ukredact/internal/recognizer/pattern"
	"github.com/straja-ai/ukredact/internal/telemetry"
)

// ModelLoader opens the statistical model for a backend. Tests swap it to
// avoid loading onnxruntime.
type ModelLoader func(cfg config.NERConfig) (ner.Model, func(), error)

// DefaultModelLoader opens the onnx or remote backend named in cfg.
func DefaultModelLoader(cfg config.NERConfig) (ner.Model, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "onnx":
		m, err := onnx.Load(onnx.Config{
			ModelDir:     cfg.ONNX.ModelDir,
			SeqLen:       cfg.ONNX.SeqLen,
			PoolSize:     cfg.ONNX.PoolSize,
			IntraThreads: cfg.ONNX.IntraThreads,
			InterThreads: cfg.ONNX.InterThreads,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("load onnx ner model: %w", err)
		}
		slog.Info("ner model loaded", "backend", "onnx", "file", m.ModelFile())
		return m, m.Close, nil
	case "remote":
		c, err := remote.New(cfg.Remote.URL, cfg.Remote.Timeout)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("ner sidecar configured", "backend", "remote", "timeout", cfg.Remote.Timeout)
		return c, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// Build wires an Analyzer from configuration. The returned close function
// releases the model.
func Build(cfg *config.Config, tel *telemetry.Provider, load ModelLoader) (*Analyzer, func(), error) {
	if load == nil {
		load = DefaultModelLoader
	}
	model, closeModel, err := load(cfg.NER)
	if err != nil {
		return nil, nil, err
	}
	if closeModel == nil {
		closeModel = func() {}
	}

	var nerDetector Detector
	backend := strings.ToLower(strings.TrimSpace(cfg.NER.Backend))
	if model != nil {
		a, err := ner.NewAdapter(model, entities.Enabled(entities.NERClasses(), cfg.NER.Entities))
		if err != nil {
			closeModel()
			return nil, nil, err
		}
		nerDetector = a
	} else {
		backend = "disabled"
	}

	patternDetector, err := buildPatterns(cfg.Patterns)
	if err != nil {
		closeModel()
		return nil, nil, err
	}

	ops, err := operator.NewBuilder(cfg.Anonymization.Format, cfg.Anonymization.Overrides)
	if err != nil {
		closeModel()
		return nil, nil, err
	}

	a, err := New(nerDetector, patternDetector,
		WithStrategy(cfg.ConflictStrategy),
		WithOperators(ops),
		WithMaxTextLength(cfg.Limits.MaxTextLength),
		WithTelemetry(tel),
		WithNERBackend(backend),
	)
	if err != nil {
		closeModel()
		return nil, nil, err
	}
	return a, closeModel, nil
}

func buildPatterns(cfg config.PatternsConfig) (*pattern.Adapter, error) {
	reg, err := pattern.NewDefaultRegistry(pattern.WithContextEnhancement(cfg.ContextEnhancementEnabled()))
	if err != nil {
		return nil, err
	}
	allow := entities.Enabled(entities.PatternClasses(), cfg.Entities)
	custom := make([]pattern.CustomRule, 0, len(cfg.Custom))
	for _, c := range cfg.Custom {
		custom = append(custom, pattern.CustomRule{
			Name:     c.Name,
			Entity:   c.Entity,
			Regex:    c.Regex,
			Score:    c.Score,
			Context:  c.Context,
			Language: c.Language,
		})
		if !slices.Contains(allow, c.Entity) && !entities.Disabled(cfg.Entities, c.Entity) {
			allow = append(allow, c.Entity)
		}
	}
	return pattern.NewAdapter(reg, allow, custom...)
}
