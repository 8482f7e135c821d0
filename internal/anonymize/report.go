package anonymize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/straja-ai/ukredact/internal/span"
)

// NoEntitiesMessage is what interactive surfaces print instead of an empty
// report.
const NoEntitiesMessage = "Сутностей не знайдено"

// FormatReport lists the spans in position order, one per line:
//
//  1. PERS: 'Іван Петренко' (позиція 0-13, впевненість 0.97)
//
// Positions are character offsets into text. The input slice is not
// reordered. No spans give an empty string.
func FormatReport(text string, spans []span.Span) string {
	if len(spans) == 0 {
		return ""
	}
	ordered := append([]span.Span(nil), spans...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	lines := make([]string, 0, len(ordered))
	for i, s := range ordered {
		start, end := s.RunePositions(text)
		lines = append(lines, fmt.Sprintf("%d. %s: '%s' (позиція %d-%d, впевненість %.2f)",
			i+1, s.EntityType, s.Text(text), start, end, s.Score))
	}
	return strings.Join(lines, "\n")
}
