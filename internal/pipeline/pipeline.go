// Package pipeline runs both detectors over a text, resolves their
// overlapping findings and produces the redacted copy and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/straja-ai/ukredact/internal/anonymize"
	"github.com/straja-ai/ukredact/internal/operator"
	"github.com/straja-ai/ukredact/internal/redact"
	"github.com/straja-ai/ukredact/internal/resolve"
	"github.com/straja-ai/ukredact/internal/span"
	"github.com/straja-ai/ukredact/internal/telemetry"
)

// ErrTextTooLong is returned when input exceeds the configured limit.
var ErrTextTooLong = errors.New("text exceeds maximum length")

// Detector names used in errors, logs and metrics.
const (
	DetectorNER     = "ner"
	DetectorPattern = "pattern"
)

// Detector produces spans for one text. Implementations must be safe for
// concurrent use.
type Detector interface {
	Spans(ctx context.Context, text string) ([]span.Span, error)
	EntityTypes() []string
}

// DetectorError wraps a failure of one detector. The request fails as a
// whole; no partial result is produced.
type DetectorError struct {
	Detector string
	Err      error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("%s detector: %v", e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithStrategy selects the conflict resolver by name.
func WithStrategy(name string) Option {
	return func(a *Analyzer) { a.strategy = name }
}

// WithOperators sets the replacement builder.
func WithOperators(b *operator.Builder) Option {
	return func(a *Analyzer) { a.operators = b }
}

// WithMaxTextLength limits input size in characters; n <= 0 disables it.
func WithMaxTextLength(n int) Option {
	return func(a *Analyzer) { a.maxLen = n }
}

// WithTelemetry records spans and metrics.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(a *Analyzer) { a.tel = p }
}

// WithNERBackend names the statistical backend for Info.
func WithNERBackend(name string) Option {
	return func(a *Analyzer) { a.nerBackend = name }
}

// Analyzer is built once at startup and shared across requests.
type Analyzer struct {
	ner        Detector
	patterns   Detector
	strategy   string
	resolver   resolve.Resolver
	operators  *operator.Builder
	maxLen     int
	tel        *telemetry.Provider
	nerBackend string
}

// New builds an analyzer. Either detector may be nil to run without it.
func New(nerDetector, patternDetector Detector, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		ner:      nerDetector,
		patterns: patternDetector,
		strategy: resolve.StrategyScore,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.strategy == "" {
		a.strategy = resolve.StrategyScore
	}
	r, err := resolve.Lookup(a.strategy)
	if err != nil {
		return nil, err
	}
	a.resolver = r
	if a.operators == nil {
		a.operators, err = operator.NewBuilder(operator.DefaultFormat, nil)
		if err != nil {
			return nil, err
		}
	}
	if a.tel == nil {
		a.tel = telemetry.Noop()
	}
	if a.nerBackend == "" {
		a.nerBackend = "disabled"
		if a.ner != nil {
			a.nerBackend = "custom"
		}
	}
	return a, nil
}

// Result is the outcome of one run.
type Result struct {
	OriginalText    string           `json:"original_text"`
	AnonymizedText  string           `json:"anonymized_text"`
	Entities        []span.Span      `json:"entities"` // resolver acceptance order
	Items           []anonymize.Item `json:"items"`
	Dropped         int              `json:"dropped"`
	OverlapsRemoved int              `json:"overlaps_removed"`
	Duration        time.Duration    `json:"duration"`
}

// Report renders the human-readable findings list.
func (r *Result) Report() string {
	if r == nil {
		return ""
	}
	return anonymize.FormatReport(r.OriginalText, r.Entities)
}

// Sorted returns the entities ordered by start offset.
func (r *Result) Sorted() []span.Span {
	out := append([]span.Span(nil), r.Entities...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// AnalyzeAndAnonymize returns the report and the redacted text.
func (a *Analyzer) AnalyzeAndAnonymize(ctx context.Context, text string) (string, string, error) {
	res, err := a.Analyze(ctx, text)
	if err != nil {
		return "", "", err
	}
	return res.Report(), res.AnonymizedText, nil
}

// Analyze runs the statistical detector, then the pattern detector,
// sanitizes and resolves the combined spans and redacts the text.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	ctx, sp := a.tel.Tracer().Start(ctx, "ukredact.analyze")
	defer sp.End()

	res, err := a.analyze(ctx, text)
	dur := time.Since(start)

	outcome := "ok"
	metrics := telemetry.RequestMetrics{Strategy: a.strategy, DurationMs: float64(dur.Microseconds()) / 1000}
	switch {
	case errors.Is(err, ErrTextTooLong):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	default:
		res.Duration = dur
		metrics.OverlapsRemoved = res.OverlapsRemoved
		metrics.EntitiesByType = countByType(res.Entities)
	}
	metrics.Outcome = outcome
	a.tel.RecordRequest(ctx, metrics)

	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, "analyze failed")
		slog.Warn("analyze failed", "err", redact.String(err.Error()), "duration_ms", metrics.DurationMs)
		return nil, err
	}
	sp.SetAttributes(telemetry.SafeAttributes(map[string]interface{}{
		"ukredact.entities":         len(res.Entities),
		"ukredact.entity_types":     typeNames(metrics.EntitiesByType),
		"ukredact.overlaps_removed": res.OverlapsRemoved,
		"ukredact.dropped":          res.Dropped,
		"ukredact.strategy":         a.strategy,
	})...)
	slog.Debug("analyze done",
		"entities", len(res.Entities),
		"overlaps_removed", res.OverlapsRemoved,
		"dropped", res.Dropped,
		"duration_ms", metrics.DurationMs)
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, text string) (*Result, error) {
	if a.maxLen > 0 {
		if n := utf8.RuneCountInString(text); n > a.maxLen {
			return nil, fmt.Errorf("%w: %d characters, limit %d", ErrTextTooLong, n, a.maxLen)
		}
	}
	if text == "" {
		return &Result{}, nil
	}

	nerSpans, err := a.detect(ctx, DetectorNER, a.ner, text)
	if err != nil {
		return nil, err
	}
	patternSpans, err := a.detect(ctx, DetectorPattern, a.patterns, text)
	if err != nil {
		return nil, err
	}

	combined := make([]span.Span, 0, len(nerSpans)+len(patternSpans))
	combined = append(combined, nerSpans...)
	combined = append(combined, patternSpans...)

	clean, dropped := span.Sanitize(text, combined)
	resolved := a.resolver.Resolve(clean)

	table := a.operators.Build(resolved)
	out, err := anonymize.Anonymize(text, resolved, table)
	if err != nil {
		return nil, fmt.Errorf("anonymize: %w", err)
	}
	return &Result{
		OriginalText:    text,
		AnonymizedText:  out.Text,
		Entities:        resolved,
		Items:           out.Items,
		Dropped:         dropped,
		OverlapsRemoved: len(clean) - len(resolved),
	}, nil
}

func (a *Analyzer) detect(ctx context.Context, name string, d Detector, text string) ([]span.Span, error) {
	if d == nil {
		return nil, nil
	}
	ctx, sp := a.tel.Tracer().Start(ctx, "ukredact.detect."+name)
	defer sp.End()

	start := time.Now()
	spans, err := d.Spans(ctx, text)
	a.tel.RecordDetector(ctx, name, float64(time.Since(start).Microseconds())/1000, err != nil)
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, "detector failed")
		return nil, &DetectorError{Detector: name, Err: err}
	}
	sp.SetAttributes(attribute.Int("ukredact.spans", len(spans)))
	return spans, nil
}

func countByType(spans []span.Span) map[string]int {
	out := make(map[string]int, len(spans))
	for _, s := range spans {
		out[s.EntityType]++
	}
	return out
}

func typeNames(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for t := range counts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Info describes the running configuration.
type Info struct {
	NERBackend      string   `json:"ner_backend"`
	NEREntities     []string `json:"ner_entities"`
	PatternEntities []string `json:"pattern_entities"`
	Strategy        string   `json:"conflict_strategy"`
	MaxTextLength   int      `json:"max_text_length"`
	Format          string   `json:"anonymization_format"`
}

// Info reports which detectors and entity types are active.
func (a *Analyzer) Info() Info {
	info := Info{
		NERBackend:    a.nerBackend,
		Strategy:      a.strategy,
		MaxTextLength: a.maxLen,
		Format:        a.operators.Format,
	}
	if a.ner != nil {
		info.NEREntities = a.ner.EntityTypes()
	}
	if a.patterns != nil {
		info.PatternEntities = a.patterns.EntityTypes()
	}
	return info
}
