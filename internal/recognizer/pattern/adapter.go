package pattern

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/straja-ai/ukredact/internal/entities"
	"github.com/straja-ai/ukredact/internal/span"
)

// Engine is the detector the adapter drives.
type Engine interface {
	Register(rec Recognizer) error
	Analyze(ctx context.Context, text string, entityTypes []string, language string) ([]Result, error)
}

// CustomRule is a user-supplied rule loaded from configuration.
type CustomRule struct {
	Name     string   `yaml:"name" json:"name"`
	Entity   string   `yaml:"entity" json:"entity" validate:"required"`
	Regex    string   `yaml:"regex" json:"regex" validate:"required"`
	Score    float64  `yaml:"score" json:"score" validate:"gte=0,lte=1"`
	Context  []string `yaml:"context" json:"context,omitempty"`
	Language string   `yaml:"language" json:"language,omitempty"`
}

func (c CustomRule) ruleName() string {
	if c.Name != "" {
		return c.Name
	}
	return "custom_" + strings.ToLower(c.Entity)
}

// Recognizer converts the rule.
func (c CustomRule) Recognizer() Recognizer {
	name := c.ruleName()
	return Recognizer{
		Name:     name,
		Entity:   c.Entity,
		Language: c.Language,
		Patterns: []Pattern{{Name: name, Regex: c.Regex, Score: c.Score}},
		Context:  c.Context,
	}
}

// Adapter queries the engine for an allow-list of entity types under the
// fixed working language and converts results to spans.
type Adapter struct {
	engine  Engine
	allow   []string
	allowed entities.Set
}

// NewAdapter registers the Ukrainian IBAN rule and any custom rules on
// engine. allow nil means every pattern class. Entity types outside the
// built-in classes are accepted so custom rules can introduce their own.
func NewAdapter(engine Engine, allow []string, custom ...CustomRule) (*Adapter, error) {
	if engine == nil {
		return nil, errors.New("pattern engine is nil")
	}
	if allow == nil {
		allow = entities.Enabled(entities.PatternClasses(), nil)
	}
	for _, a := range allow {
		if strings.TrimSpace(a) == "" {
			return nil, errors.New("pattern allow-list contains an empty entity type")
		}
	}
	for _, c := range custom {
		if c.Language != "" && c.Language != DefaultLanguage {
			return nil, fmt.Errorf("custom rule %s: language %q is never queried, use %q or leave it empty", c.ruleName(), c.Language, DefaultLanguage)
		}
	}
	if err := engine.Register(UAIBAN()); err != nil {
		return nil, fmt.Errorf("register ua iban: %w", err)
	}
	for _, c := range custom {
		if err := engine.Register(c.Recognizer()); err != nil {
			return nil, fmt.Errorf("register custom rule %s: %w", c.ruleName(), err)
		}
	}
	return &Adapter{
		engine:  engine,
		allow:   append([]string(nil), allow...),
		allowed: entities.NewSet(allow...),
	}, nil
}

// EntityTypes returns the entity types this adapter requests.
func (a *Adapter) EntityTypes() []string { return append([]string(nil), a.allow...) }

// Spans runs the engine once and returns spans in engine order. Results of
// types outside the allow-list are dropped.
func (a *Adapter) Spans(ctx context.Context, text string) ([]span.Span, error) {
	if len(a.allow) == 0 {
		return nil, nil
	}
	results, err := a.engine.Analyze(ctx, text, a.allow, DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("pattern analyze: %w", err)
	}
	out := make([]span.Span, 0, len(results))
	for _, r := range results {
		if !a.allowed.Has(r.EntityType) {
			slog.Warn("pattern engine returned a type outside the allow-list", "entity_type", r.EntityType)
			continue
		}
		out = append(out, span.Span{
			EntityType: r.EntityType,
			Start:      r.Start,
			End:        r.End,
			Score:      r.Score,
			Source:     span.SourcePattern,
		})
	}
	return out, nil
}
