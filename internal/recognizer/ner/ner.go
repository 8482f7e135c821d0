// Package ner adapts a statistical named-entity model to the span
// pipeline. Backends live in sub-packages: onnx runs a token-classification
// model in-process, remote calls an HTTP sidecar.
package ner

import (
	"context"
	"errors"
	"fmt"

	"github.com/straja-ai/ukredact/internal/entities"
	"github.com/straja-ai/ukredact/internal/span"
)

// DefaultConfidence is used when the model does not report one.
const DefaultConfidence = 1.0

// Entity is one raw model prediction. Offsets are UTF-8 byte offsets.
type Entity struct {
	Label      string
	Start      int
	End        int
	Confidence *float64
}

// Model is a named-entity recognizer. Implementations must be safe for
// concurrent use.
type Model interface {
	Analyze(ctx context.Context, text string) ([]Entity, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, text string) ([]Entity, error)

func (f ModelFunc) Analyze(ctx context.Context, text string) ([]Entity, error) { return f(ctx, text) }

// Adapter keeps only allow-listed labels and converts the rest to spans.
type Adapter struct {
	model Model
	allow entities.Set
}

// NewAdapter wraps model. allow lists the labels to keep; nil keeps the
// full NER allow-list.
func NewAdapter(model Model, allow []string) (*Adapter, error) {
	if model == nil {
		return nil, errors.New("ner model is nil")
	}
	if allow == nil {
		allow = entities.Enabled(entities.NERClasses(), nil)
	}
	full := entities.NewSet(entities.Enabled(entities.NERClasses(), nil)...)
	for _, a := range allow {
		if !full.Has(a) {
			return nil, fmt.Errorf("ner label %q is not a supported class", a)
		}
	}
	return &Adapter{model: model, allow: entities.NewSet(allow...)}, nil
}

// EntityTypes returns the labels this adapter keeps, sorted.
func (a *Adapter) EntityTypes() []string { return a.allow.Names() }

// Spans runs the model once and returns spans in model order.
func (a *Adapter) Spans(ctx context.Context, text string) ([]span.Span, error) {
	if len(a.allow) == 0 {
		return nil, nil
	}
	ents, err := a.model.Analyze(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ner analyze: %w", err)
	}
	out := make([]span.Span, 0, len(ents))
	for _, e := range ents {
		if !a.allow.Has(e.Label) {
			continue
		}
		score := DefaultConfidence
		if e.Confidence != nil {
			score = *e.Confidence
		}
		out = append(out, span.Span{
			EntityType: e.Label,
			Start:      e.Start,
			End:        e.End,
			Score:      score,
			Source:     span.SourceNER,
		})
	}
	return out, nil
}
