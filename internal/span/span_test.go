package span

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	text := "Іван у Києві"
	cases := []struct {
		name    string
		span    Span
		wantErr string
	}{
		{name: "ok cyrillic word", span: Span{EntityType: "PERS", Start: 0, End: len("Іван")}},
		{name: "negative start", span: Span{Start: -1, End: 2}, wantErr: "negative start"},
		{name: "past end", span: Span{Start: 0, End: len(text) + 1}, wantErr: "end beyond text"},
		{name: "empty", span: Span{Start: 3, End: 3}, wantErr: "empty or inverted"},
		{name: "inverted", span: Span{Start: 4, End: 2}, wantErr: "empty or inverted"},
		{name: "mid rune", span: Span{Start: 1, End: 4}, wantErr: "multi-byte"},
		{name: "score one", span: Span{Start: 0, End: 2, Score: 1}},
		{name: "score above one", span: Span{Start: 0, End: 2, Score: 1.7}, wantErr: "outside [0, 1]"},
		{name: "negative score", span: Span{Start: 0, End: 2, Score: -0.4}, wantErr: "outside [0, 1]"},
		{name: "nan score", span: Span{Start: 0, End: 2, Score: math.NaN()}, wantErr: "outside [0, 1]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.span.Validate(text)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var inv *InvalidError
			require.True(t, errors.As(err, &inv))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestOverlaps(t *testing.T) {
	a := Span{Start: 0, End: 5}
	assert.True(t, a.Overlaps(Span{Start: 4, End: 8}))
	assert.True(t, a.Overlaps(Span{Start: 1, End: 2}))
	assert.False(t, a.Overlaps(Span{Start: 5, End: 8}), "touching spans are disjoint")
	assert.False(t, Span{Start: 5, End: 8}.Overlaps(a))
}

func TestRunePositions(t *testing.T) {
	text := "Тарас живе тут"
	s := Span{Start: len("Тарас "), End: len("Тарас живе")}
	start, end := s.RunePositions(text)
	assert.Equal(t, 6, start)
	assert.Equal(t, 10, end)
	assert.Equal(t, "живе", s.Text(text))
}

func TestSanitizeClampsAndDrops(t *testing.T) {
	text := "abc Київ"
	in := []Span{
		{EntityType: "LOC", Start: 4, End: len(text) + 10, Source: SourceNER},
		{EntityType: "MISC", Start: 5, End: 7, Source: SourceNER},
		{EntityType: "URL", Start: 2, End: 2, Source: SourcePattern},
		{EntityType: "ORG", Start: -3, End: 3, Source: SourcePattern},
	}
	out, dropped := Sanitize(text, in)
	require.Len(t, out, 2)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, Span{EntityType: "LOC", Start: 4, End: len(text), Source: SourceNER}, out[0])
	assert.Equal(t, "abc", out[1].Text(text))
}

func TestSanitizeDropsBadScores(t *testing.T) {
	text := "Іван Петренко"
	in := []Span{
		{EntityType: "PERS", Start: 0, End: len("Іван"), Score: 1.7, Source: SourceNER},
		{EntityType: "PERS", Start: 0, End: len("Іван"), Score: -0.4, Source: SourceNER},
		{EntityType: "PERS", Start: 0, End: len("Іван"), Score: math.NaN(), Source: SourceNER},
		{EntityType: "PERS", Start: 0, End: len(text), Score: 0.85, Source: SourceNER},
	}
	out, dropped := Sanitize(text, in)
	assert.Equal(t, 3, dropped)
	require.Len(t, out, 1)
	assert.Equal(t, 0.85, out[0].Score)
}

func TestSanitizeEmpty(t *testing.T) {
	out, dropped := Sanitize("text", nil)
	assert.Nil(t, out)
	assert.Zero(t, dropped)
}
