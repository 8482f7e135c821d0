// Package span defines the annotation type shared by the detectors, the
// conflict resolver and the redaction engine.
package span

import (
	"fmt"
	"log/slog"
	"math"
	"unicode/utf8"
)

// Source names the detector that produced a span. It is informational and
// never takes part in ordering.
type Source string

const (
	SourceNER     Source = "ner"
	SourcePattern Source = "pattern"
)

// Span is a typed half-open byte range [Start, End) into the analyzed text.
type Span struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	Source     Source  `json:"source,omitempty"`
}

// InvalidError reports a span whose offsets do not fit the text.
type InvalidError struct {
	Span   Span
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid span %s [%d,%d): %s", e.Span.EntityType, e.Span.Start, e.Span.End, e.Reason)
}

// Validate checks 0 <= Start < End <= len(text), that both offsets sit on
// UTF-8 rune boundaries and that Score lies in [0, 1].
func (s Span) Validate(text string) error {
	switch {
	case s.Start < 0:
		return &InvalidError{Span: s, Reason: "negative start"}
	case s.End > len(text):
		return &InvalidError{Span: s, Reason: "end beyond text"}
	case s.Start >= s.End:
		return &InvalidError{Span: s, Reason: "empty or inverted range"}
	case !IsRuneBoundary(text, s.Start) || !IsRuneBoundary(text, s.End):
		return &InvalidError{Span: s, Reason: "offset splits a multi-byte character"}
	case math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1:
		return &InvalidError{Span: s, Reason: fmt.Sprintf("score %v outside [0, 1]", s.Score)}
	}
	return nil
}

// Len returns the byte length of the span.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether the two ranges share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return !(s.End <= o.Start || s.Start >= o.End)
}

// Text returns the covered substring. The span must be valid for text.
func (s Span) Text(text string) string {
	return text[s.Start:s.End]
}

// RunePositions converts the byte offsets into character positions, the
// numbering a reader of the text would use.
func (s Span) RunePositions(text string) (int, int) {
	start := utf8.RuneCountInString(text[:s.Start])
	return start, start + utf8.RuneCountInString(text[s.Start:s.End])
}

// IsRuneBoundary reports whether byte offset i starts a rune (or is len(s)).
func IsRuneBoundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return i == 0 || i == len(s)
	}
	return s[i]&0xC0 != 0x80
}

// Sanitize clamps spans to the text and drops those that end up empty,
// misaligned or carry a score outside [0, 1]. Order of the survivors is preserved. It returns the kept
// spans and the number dropped.
func Sanitize(text string, spans []Span) ([]Span, int) {
	if len(spans) == 0 {
		return nil, 0
	}
	out := make([]Span, 0, len(spans))
	dropped := 0
	for _, s := range spans {
		orig := s
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > len(text) {
			s.End = len(text)
		}
		if s.Start != orig.Start || s.End != orig.End {
			slog.Warn("span clamped to text bounds",
				"entity_type", s.EntityType, "source", string(s.Source),
				"start", orig.Start, "end", orig.End, "text_len", len(text))
		}
		if err := s.Validate(text); err != nil {
			slog.Warn("dropping inconsistent span", "source", string(s.Source), "err", err)
			dropped++
			continue
		}
		out = append(out, s)
	}
	return out, dropped
}
