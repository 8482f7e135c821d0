// Package anonymize rewrites text by replacing resolved spans and renders
// the human-readable findings report.
package anonymize

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/straja-ai/ukredact/internal/operator"
	"github.com/straja-ai/ukredact/internal/span"
)

var (
	// ErrOverlap means the span set was not resolved before redaction.
	ErrOverlap = errors.New("spans overlap")
	// ErrMissingOperator means a span type has no entry in the table.
	ErrMissingOperator = errors.New("no operator for entity type")
	// ErrUnsupportedOperator means the table holds an operator kind other than replace.
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

// Item records where one replacement landed in the output.
type Item struct {
	EntityType  string `json:"entity_type"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	OutputStart int    `json:"output_start"`
	OutputEnd   int    `json:"output_end"`
	Operator    string `json:"operator"`
	Text        string `json:"text"`
}

// Result is the redacted text plus placement of every replacement, in
// position order.
type Result struct {
	Text  string `json:"text"`
	Items []Item `json:"items"`
}

// Anonymize replaces every span with its operator's value. Offsets are
// always taken against the original text. Spans must be pairwise disjoint
// and valid for text; otherwise an error is returned and no output is
// produced.
func Anonymize(text string, spans []span.Span, table operator.Table) (Result, error) {
	if len(spans) == 0 {
		return Result{Text: text}, nil
	}
	ordered := append([]span.Span(nil), spans...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var b strings.Builder
	b.Grow(len(text))
	items := make([]Item, 0, len(ordered))
	cursor := 0
	for i, s := range ordered {
		if err := s.Validate(text); err != nil {
			return Result{}, err
		}
		if i > 0 && s.Start < ordered[i-1].End {
			return Result{}, fmt.Errorf("%w: %s [%d,%d) and %s [%d,%d)", ErrOverlap,
				ordered[i-1].EntityType, ordered[i-1].Start, ordered[i-1].End,
				s.EntityType, s.Start, s.End)
		}
		op, ok := table[s.EntityType]
		if !ok {
			return Result{}, fmt.Errorf("%w %s", ErrMissingOperator, s.EntityType)
		}
		if op.Kind != operator.KindReplace {
			return Result{}, fmt.Errorf("%w %q for %s", ErrUnsupportedOperator, op.Kind, s.EntityType)
		}
		b.WriteString(text[cursor:s.Start])
		outStart := b.Len()
		b.WriteString(op.NewValue)
		items = append(items, Item{
			EntityType:  s.EntityType,
			Start:       s.Start,
			End:         s.End,
			OutputStart: outStart,
			OutputEnd:   b.Len(),
			Operator:    op.Kind,
			Text:        op.NewValue,
		})
		cursor = s.End
	}
	b.WriteString(text[cursor:])
	return Result{Text: b.String(), Items: items}, nil
}
