package resolve

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/ukredact/internal/span"
)

func sp(typ string, start, end int, score float64) span.Span {
	return span.Span{EntityType: typ, Start: start, End: end, Score: score}
}

func TestByScore(t *testing.T) {
	cases := []struct {
		name string
		in   []span.Span
		want []span.Span
	}{
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
		{
			name: "same start higher score wins",
			in:   []span.Span{sp("PERS", 0, 5, 0.85), sp("MISC", 0, 10, 0.95)},
			want: []span.Span{sp("MISC", 0, 10, 0.95)},
		},
		{
			name: "earlier start wins over higher score",
			in:   []span.Span{sp("ORG", 3, 9, 0.99), sp("PERS", 0, 5, 0.5)},
			want: []span.Span{sp("PERS", 0, 5, 0.5)},
		},
		{
			name: "touching spans both kept",
			in:   []span.Span{sp("PERS", 0, 5, 0.9), sp("LOC", 5, 9, 0.9)},
			want: []span.Span{sp("PERS", 0, 5, 0.9), sp("LOC", 5, 9, 0.9)},
		},
		{
			name: "full tie keeps emission order",
			in:   []span.Span{sp("DATE", 10, 20, 0.85), sp("DATE_TIME", 10, 20, 0.85)},
			want: []span.Span{sp("DATE", 10, 20, 0.85)},
		},
		{
			name: "nested lower candidate dropped",
			in:   []span.Span{sp("A", 0, 100, 0.3), sp("B", 10, 12, 0.9), sp("C", 150, 160, 0.4)},
			want: []span.Span{sp("A", 0, 100, 0.3), sp("C", 150, 160, 0.4)},
		},
		{
			name: "discarded span is never retried",
			in:   []span.Span{sp("A", 0, 10, 0.5), sp("B", 5, 15, 0.9), sp("C", 12, 20, 0.9)},
			want: []span.Span{sp("A", 0, 10, 0.5), sp("C", 12, 20, 0.9)},
		},
		{
			name: "acceptance order is start order for score strategy",
			in:   []span.Span{sp("EMAIL_ADDRESS", 40, 60, 1.0), sp("PERS", 0, 12, 0.97), sp("LOC", 20, 25, 0.9)},
			want: []span.Span{sp("PERS", 0, 12, 0.97), sp("LOC", 20, 25, 0.9), sp("EMAIL_ADDRESS", 40, 60, 1.0)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ByScore(tc.in))
		})
	}
}

func TestByScoreDoesNotMutateInput(t *testing.T) {
	in := []span.Span{sp("ORG", 3, 9, 0.99), sp("PERS", 0, 5, 0.5)}
	_ = ByScore(in)
	assert.Equal(t, "ORG", in[0].EntityType)
}

func TestByPriority(t *testing.T) {
	in := []span.Span{
		sp("MISC", 0, 30, 0.99),
		sp("IBAN_CODE", 5, 34, 0.9),
		sp("PERS", 40, 50, 0.8),
		sp("ORG", 40, 60, 0.95),
	}
	got := ByPriority(in)
	require.Len(t, got, 2)
	assert.Equal(t, "IBAN_CODE", got[0].EntityType)
	assert.Equal(t, "PERS", got[1].EntityType)
}

func TestPriorityDefault(t *testing.T) {
	assert.Equal(t, 1, Priority("CREDIT_CARD"))
	assert.Equal(t, defaultPriority, Priority("QUANT"))
}

func TestLookup(t *testing.T) {
	r, err := Lookup("")
	require.NoError(t, err)
	assert.Len(t, r.Resolve([]span.Span{sp("A", 0, 2, 1), sp("B", 1, 3, 1)}), 1)

	_, err = Lookup("Priority")
	require.NoError(t, err)

	_, err = Lookup("longest")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}

func FuzzByScoreNonOverlapping(f *testing.F) {
	f.Add(0, 5, 3, 8, 6, 9, 0.5, 0.9)
	f.Add(0, 10, 0, 10, 10, 20, 1.0, 1.0)
	f.Fuzz(func(t *testing.T, s1, e1, s2, e2, s3, e3 int, a, b float64) {
		if math.IsNaN(a + b) {
			t.Skip()
		}
		in := []span.Span{
			sp("A", s1%64, e1%64, a),
			sp("B", s2%64, e2%64, b),
			sp("C", s3%64, e3%64, a+b),
		}
		valid := in[:0]
		for _, s := range in {
			if s.Start >= 0 && s.Start < s.End {
				valid = append(valid, s)
			}
		}
		out := ByScore(valid)
		for i := range out {
			for j := i + 1; j < len(out); j++ {
				if out[i].Overlaps(out[j]) {
					t.Fatalf("overlap in output: %+v %+v", out[i], out[j])
				}
			}
		}
		ordered := append([]span.Span(nil), valid...)
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Start != ordered[j].Start {
				return ordered[i].Start < ordered[j].Start
			}
			return ordered[i].Score > ordered[j].Score
		})
		var accepted []span.Span
		for _, s := range ordered {
			blocked := false
			for _, acc := range accepted {
				if acc.Overlaps(s) {
					blocked = true
					break
				}
			}
			if !blocked {
				accepted = append(accepted, s)
			}
		}
		if len(accepted) != len(out) {
			t.Fatalf("accepted %d spans, want %d: %+v", len(out), len(accepted), out)
		}
		for i := range out {
			if out[i] != accepted[i] {
				t.Fatalf("span %d: got %+v, want %+v", i, out[i], accepted[i])
			}
		}

		again := ByScore(valid)
		if len(again) != len(out) {
			t.Fatalf("non-deterministic result")
		}
		for i := range out {
			if again[i] != out[i] {
				t.Fatalf("non-deterministic result at %d", i)
			}
		}
	})
}
