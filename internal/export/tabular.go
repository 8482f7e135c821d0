package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

type entitiesPayload struct {
	Metadata   payloadMetadata `json:"metadata"`
	Entities   []Entity        `json:"entities"`
	Statistics Statistics      `json:"statistics"`
}

type payloadMetadata struct {
	AnalysisTimestamp  string `json:"analysis_timestamp"`
	TotalEntities      int    `json:"total_entities"`
	OriginalTextLength int    `json:"original_text_length"`
}

func entitiesJSON(w io.Writer, d *Document) error {
	st := d.Statistics()
	ents := make([]Entity, len(d.Entities))
	for i, e := range d.Entities {
		e.Confidence = round3(e.Confidence)
		ents[i] = e
	}
	payload := entitiesPayload{
		Metadata: payloadMetadata{
			AnalysisTimestamp:  d.Timestamp.Format(time.RFC3339),
			TotalEntities:      len(d.Entities),
			OriginalTextLength: st.OriginalTextLength,
		},
		Entities:   ents,
		Statistics: st,
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	return nil
}

// csvBOM makes spreadsheet software detect UTF-8.
const csvBOM = "\ufeff"

var csvHeader = []string{"Тип сутності", "Текст", "Початок", "Кінець", "Впевненість (%)"}

func entitiesCSV(w io.Writer, d *Document) error {
	if _, err := io.WriteString(w, csvBOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range d.Entities {
		rec := []string{
			e.Type,
			e.Text,
			strconv.Itoa(e.Start),
			strconv.Itoa(e.End),
			strconv.FormatFloat(e.Confidence*100, 'f', 1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
