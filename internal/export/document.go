package export

import (
	"fmt"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/straja-ai/ukredact/internal/pipeline"
)

// Document is the export view of one result. Positions are character
// offsets.
type Document struct {
	Timestamp      time.Time
	OriginalText   string
	AnonymizedText string
	Entities       []Entity // ordered by start
}

// Entity is one finding.
type Entity struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
}

// NewDocument converts a pipeline result taken at now.
func NewDocument(res *pipeline.Result, now time.Time) *Document {
	d := &Document{Timestamp: now}
	if res == nil {
		return d
	}
	d.OriginalText = res.OriginalText
	d.AnonymizedText = res.AnonymizedText
	for _, s := range res.Sorted() {
		start, end := s.RunePositions(res.OriginalText)
		d.Entities = append(d.Entities, Entity{
			Type:       s.EntityType,
			Text:       s.Text(res.OriginalText),
			Start:      start,
			End:        end,
			Confidence: s.Score,
			Source:     string(s.Source),
		})
	}
	return d
}

// byType groups entities in sorted type order.
func (d *Document) byType() ([]string, map[string][]Entity) {
	groups := make(map[string][]Entity)
	for _, e := range d.Entities {
		groups[e.Type] = append(groups[e.Type], e)
	}
	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, groups
}

// Statistics summarizes a document.
type Statistics struct {
	TotalEntities        int         `json:"total_entities"`
	UniqueTypes          int         `json:"unique_types"`
	AverageConfidence    float64     `json:"average_confidence"`
	OriginalTextLength   int         `json:"original_text_length"`
	AnonymizedTextLength int         `json:"anonymized_text_length"`
	ByType               []TypeCount `json:"by_type"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Statistics computes counts, average confidence and per-type totals.
func (d *Document) Statistics() Statistics {
	types, groups := d.byType()
	st := Statistics{
		TotalEntities:        len(d.Entities),
		UniqueTypes:          len(types),
		OriginalTextLength:   utf8.RuneCountInString(d.OriginalText),
		AnonymizedTextLength: utf8.RuneCountInString(d.AnonymizedText),
		ByType:               make([]TypeCount, 0, len(types)),
	}
	if len(d.Entities) > 0 {
		var sum float64
		for _, e := range d.Entities {
			sum += e.Confidence
		}
		st.AverageConfidence = round3(sum / float64(len(d.Entities)))
	}
	for _, t := range types {
		st.ByType = append(st.ByType, TypeCount{Type: t, Count: len(groups[t])})
	}
	return st
}

// Rows renders the statistics as labelled table rows.
func (s Statistics) Rows() [][2]string {
	rows := [][2]string{
		{"Загальна кількість сутностей", fmt.Sprint(s.TotalEntities)},
		{"Унікальних типів сутностей", fmt.Sprint(s.UniqueTypes)},
		{"Середня впевненість", fmt.Sprintf("%.1f%%", s.AverageConfidence*100)},
		{"Довжина оригінального тексту", fmt.Sprintf("%d символів", s.OriginalTextLength)},
		{"Довжина анонімізованого тексту", fmt.Sprintf("%d символів", s.AnonymizedTextLength)},
	}
	for _, tc := range s.ByType {
		rows = append(rows, [2]string{"  - " + tc.Type, fmt.Sprint(tc.Count)})
	}
	return rows
}

func (d *Document) metadataHeader() string {
	return fmt.Sprintf("Дата обробки: %s\nЗнайдено сутностей: %d\nДовжина оригінального тексту: %d символів\nДовжина анонімізованого тексту: %d символів",
		d.Timestamp.Format("2006-01-02 15:04:05"),
		len(d.Entities),
		utf8.RuneCountInString(d.OriginalText),
		utf8.RuneCountInString(d.AnonymizedText))
}

// describe renders "'text' [позиція s-e, впевненість 95%]".
func describe(e Entity) (quoted, detail string) {
	return fmt.Sprintf("'%s'", e.Text),
		fmt.Sprintf("[позиція %d-%d, впевненість %.0f%%]", e.Start, e.End, e.Confidence*100)
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
