// Package operator builds the per-request table that says how each entity
// type is rewritten.
package operator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/straja-ai/ukredact/internal/span"
)

// KindReplace substitutes the covered text with a fixed value.
const KindReplace = "replace"

// Placeholder is expanded to the entity type in a format string.
const Placeholder = "{entity_type}"

// DefaultFormat renders PERS as "[PERS]".
const DefaultFormat = "[" + Placeholder + "]"

// Operator rewrites one entity occurrence.
type Operator struct {
	Kind     string `json:"type"`
	NewValue string `json:"new_value"`
}

// Table maps entity type to its operator.
type Table map[string]Operator

// Builder produces tables. Overrides replace the format for single types.
type Builder struct {
	Format    string
	Overrides map[string]string
}

// NewBuilder validates the formats up front so Build cannot fail.
func NewBuilder(format string, overrides map[string]string) (*Builder, error) {
	if strings.TrimSpace(format) == "" {
		format = DefaultFormat
	}
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	for typ, f := range overrides {
		if err := checkFormat(f); err != nil {
			return nil, fmt.Errorf("format override for %s: %w", typ, err)
		}
	}
	return &Builder{Format: format, Overrides: overrides}, nil
}

func checkFormat(f string) error {
	if f == "" {
		return errors.New("format is empty")
	}
	return nil
}

// Build returns one replace operator for every distinct type present in
// spans. An empty input gives an empty table.
func (b *Builder) Build(spans []span.Span) Table {
	t := make(Table, len(spans))
	for _, s := range spans {
		if _, ok := t[s.EntityType]; ok {
			continue
		}
		t[s.EntityType] = Operator{Kind: KindReplace, NewValue: b.render(s.EntityType)}
	}
	return t
}

func (b *Builder) render(entityType string) string {
	format := b.Format
	if f, ok := b.Overrides[entityType]; ok {
		format = f
	}
	if format == "" {
		format = DefaultFormat
	}
	return strings.ReplaceAll(format, Placeholder, entityType)
}

// Build is a shortcut for the default "[TYPE]" format.
func Build(spans []span.Span) Table {
	return (&Builder{Format: DefaultFormat}).Build(spans)
}
