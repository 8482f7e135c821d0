package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/ukredact/internal/config"
	"github.com/straja-ai/ukredact/internal/operator"
	"github.com/straja-ai/ukredact/internal/recognizer/ner"
	"github.com/straja-ai/ukredact/internal/span"
)

type fakeDetector struct {
	spans []span.Span
	err   error
	types []string
	calls atomic.Int32
}

func (f *fakeDetector) Spans(context.Context, string) ([]span.Span, error) {
	f.calls.Add(1)
	return append([]span.Span(nil), f.spans...), f.err
}

func (f *fakeDetector) EntityTypes() []string { return f.types }

func sp(typ string, start, end int, score float64, src span.Source) span.Span {
	return span.Span{EntityType: typ, Start: start, End: end, Score: score, Source: src}
}

func TestScenarioUAIBAN(t *testing.T) {
	text := "Конт: UA213223130000026007233566001"
	start := strings.Index(text, "UA")
	pat := &fakeDetector{spans: []span.Span{sp("IBAN_CODE", start, len(text), 0.9, span.SourcePattern)}}
	a, err := New(&fakeDetector{}, pat)
	require.NoError(t, err)

	report, redacted, err := a.AnalyzeAndAnonymize(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "Конт: [IBAN_CODE]", redacted)
	assert.Equal(t, "1. IBAN_CODE: 'UA213223130000026007233566001' (позиція 6-35, впевненість 0.90)", report)
}

func TestScenarioStartDominatesScore(t *testing.T) {
	text := "abcdefghijklmnopq"
	nerDet := &fakeDetector{spans: []span.Span{sp("DATE", 0, 10, 0.6, span.SourceNER)}}
	pat := &fakeDetector{spans: []span.Span{sp("DATE_TIME", 5, 15, 0.95, span.SourcePattern)}}
	a, err := New(nerDet, pat)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "DATE", res.Entities[0].EntityType)
	assert.Equal(t, "[DATE]klmnopq", res.AnonymizedText)
	assert.Equal(t, 1, res.OverlapsRemoved)
}

func TestScenarioEmptyText(t *testing.T) {
	nerDet, pat := &fakeDetector{}, &fakeDetector{}
	a, err := New(nerDet, pat)
	require.NoError(t, err)

	report, redacted, err := a.AnalyzeAndAnonymize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", report)
	assert.Equal(t, "", redacted)
}

func TestScenarioExactTieKeepsFirst(t *testing.T) {
	text := "Ivan works"
	nerDet := &fakeDetector{spans: []span.Span{sp("PERS", 0, 4, 0.99, span.SourceNER)}}
	pat := &fakeDetector{spans: []span.Span{sp("ORG", 0, 4, 0.99, span.SourcePattern)}}
	a, err := New(nerDet, pat)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "PERS", res.Entities[0].EntityType)
	assert.Equal(t, "[PERS] works", res.AnonymizedText)
}

func TestNoEntitiesLeavesTextUnchanged(t *testing.T) {
	a, err := New(&fakeDetector{}, &fakeDetector{})
	require.NoError(t, err)
	report, redacted, err := a.AnalyzeAndAnonymize(context.Background(), "Просто текст.")
	require.NoError(t, err)
	assert.Equal(t, "", report)
	assert.Equal(t, "Просто текст.", redacted)
}

func TestDetectorErrorPropagates(t *testing.T) {
	boom := errors.New("model crashed")
	nerDet := &fakeDetector{err: boom}
	pat := &fakeDetector{}
	a, err := New(nerDet, pat)
	require.NoError(t, err)

	_, _, err = a.AnalyzeAndAnonymize(context.Background(), "Іван")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var de *DetectorError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, DetectorNER, de.Detector)
	assert.Zero(t, pat.calls.Load(), "pattern detector must not run after a failure")

	pat.err = boom
	nerDet.err = nil
	_, err = a.Analyze(context.Background(), "Іван")
	require.ErrorAs(t, err, &de)
	assert.Equal(t, DetectorPattern, de.Detector)
}

func TestTextTooLong(t *testing.T) {
	a, err := New(&fakeDetector{}, &fakeDetector{}, WithMaxTextLength(3))
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), "Київ")
	assert.ErrorIs(t, err, ErrTextTooLong)

	_, err = a.Analyze(context.Background(), "Кий")
	assert.NoError(t, err, "limit counts characters, not bytes")
}

func TestInvalidSpansAreDropped(t *testing.T) {
	text := "Іван"
	nerDet := &fakeDetector{spans: []span.Span{
		sp("PERS", 1, 3, 0.9, span.SourceNER),  // splits a character
		sp("PERS", 0, 99, 0.9, span.SourceNER), // clamped to the text
	}}
	a, err := New(nerDet, nil)
	require.NoError(t, err)
	res, err := a.Analyze(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, "[PERS]", res.AnonymizedText)
}

func TestOutOfRangeScoresAreDropped(t *testing.T) {
	text := "Іван Петренко"
	nerDet := &fakeDetector{spans: []span.Span{
		sp("PERS", 0, len("Іван"), 1.7, span.SourceNER),
		sp("PERS", 0, len("Іван"), -0.4, span.SourceNER),
		sp("PERS", 0, len("Іван"), math.NaN(), span.SourceNER),
	}}
	a, err := New(nerDet, nil)
	require.NoError(t, err)
	res, err := a.Analyze(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Dropped)
	assert.Empty(t, res.Entities)
	assert.Equal(t, text, res.AnonymizedText)
	assert.Equal(t, "", res.Report())
}

func TestCustomFormatAndStrategy(t *testing.T) {
	ops, err := operator.NewBuilder("<{entity_type}>", nil)
	require.NoError(t, err)
	text := "Ivan Petrenko"
	nerDet := &fakeDetector{spans: []span.Span{sp("PERS", 0, 13, 0.5, span.SourceNER)}}
	pat := &fakeDetector{spans: []span.Span{sp("CREDIT_CARD", 5, 13, 0.4, span.SourcePattern)}}

	a, err := New(nerDet, pat, WithOperators(ops), WithStrategy("priority"))
	require.NoError(t, err)
	res, err := a.Analyze(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "Ivan <CREDIT_CARD>", res.AnonymizedText)

	_, err = New(nil, nil, WithStrategy("longest"))
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	nerDet := &fakeDetector{types: []string{"PERS"}}
	pat := &fakeDetector{types: []string{"EMAIL_ADDRESS"}}
	a, err := New(nerDet, pat, WithNERBackend("onnx"), WithMaxTextLength(10))
	require.NoError(t, err)
	info := a.Info()
	assert.Equal(t, "onnx", info.NERBackend)
	assert.Equal(t, []string{"PERS"}, info.NEREntities)
	assert.Equal(t, []string{"EMAIL_ADDRESS"}, info.PatternEntities)
	assert.Equal(t, "score", info.Strategy)
	assert.Equal(t, operator.DefaultFormat, info.Format)

	none, err := New(nil, pat)
	require.NoError(t, err)
	assert.Equal(t, "disabled", none.Info().NERBackend)
}

func TestConcurrentAnalyze(t *testing.T) {
	text := "Ivan works"
	nerDet := &fakeDetector{spans: []span.Span{sp("PERS", 0, 4, 0.99, span.SourceNER)}}
	a, err := New(nerDet, &fakeDetector{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, redacted, err := a.AnalyzeAndAnonymize(context.Background(), text)
			assert.NoError(t, err)
			assert.Equal(t, "[PERS] works", redacted)
		}()
	}
	wg.Wait()
}

func TestBuildFromConfig(t *testing.T) {
	text := "Іван Петренко, ivan@ukr.net"
	cfg := config.Default()
	cfg.NER.Backend = "remote"
	cfg.NER.Entities = map[string]bool{"ORG": false}

	closed := false
	loader := func(config.NERConfig) (ner.Model, func(), error) {
		m := ner.ModelFunc(func(context.Context, string) ([]ner.Entity, error) {
			return []ner.Entity{
				{Label: "PERS", Start: 0, End: len("Іван Петренко")},
				{Label: "ORG", Start: 0, End: len("Іван")},
			}, nil
		})
		return m, func() { closed = true }, nil
	}

	a, closeFn, err := Build(cfg, nil, loader)
	require.NoError(t, err)
	_, redacted, err := a.AnalyzeAndAnonymize(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "[PERS], [EMAIL_ADDRESS]", redacted)

	info := a.Info()
	assert.Equal(t, "remote", info.NERBackend)
	assert.NotContains(t, info.NEREntities, "ORG")

	closeFn()
	assert.True(t, closed)
}

func TestBuildDisabledNERWithCustomPattern(t *testing.T) {
	cfg := config.Default()
	cfg.NER.Backend = "disabled"
	cfg.Patterns.Custom = []config.CustomPattern{{Entity: "EDRPOU", Regex: `\b\d{8}\b`, Score: 0.7}}

	a, closeFn, err := Build(cfg, nil, nil)
	require.NoError(t, err)
	defer closeFn()

	_, redacted, err := a.AnalyzeAndAnonymize(context.Background(), "ЄДРПОУ 12345678")
	require.NoError(t, err)
	assert.Equal(t, "ЄДРПОУ [EDRPOU]", redacted)
	assert.Equal(t, "disabled", a.Info().NERBackend)
	assert.Contains(t, a.Info().PatternEntities, "EDRPOU")
}
