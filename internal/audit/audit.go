// Package audit records one metadata-only event per redaction request and
// delivers it asynchronously to configured sinks. Events never carry the
// document text or the matched entity values.
package audit

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/straja-ai/ukredact/internal/pipeline"
	"github.com/straja-ai/ukredact/internal/redact"
)

// EventVersion is bumped when the event shape changes.
const EventVersion = "1"

// Outcome of a request.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// Surfaces a request can come from.
const (
	SurfaceAPI = "api"
	SurfaceCLI = "cli"
)

// Event is one audit record.
type Event struct {
	Version         string         `json:"version"`
	Timestamp       time.Time      `json:"timestamp"`
	RequestID       string         `json:"request_id"`
	Surface         string         `json:"surface"`
	Outcome         string         `json:"outcome"`
	Error           string         `json:"error,omitempty"`
	TextLength      int            `json:"text_length"`
	Entities        int            `json:"entities"`
	EntitiesByType  map[string]int `json:"entities_by_type,omitempty"`
	OverlapsRemoved int            `json:"overlaps_removed"`
	Dropped         int            `json:"dropped"`
	DurationMs      float64        `json:"duration_ms"`
}

// NewEvent summarizes one pipeline run. text is only measured.
func NewEvent(requestID, surface, text string, res *pipeline.Result, err error, took time.Duration) *Event {
	ev := &Event{
		Version:    EventVersion,
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
		Surface:    surface,
		Outcome:    OutcomeOK,
		TextLength: utf8.RuneCountInString(text),
		DurationMs: float64(took.Microseconds()) / 1000,
	}
	if err != nil {
		ev.Outcome = OutcomeError
		if errors.Is(err, pipeline.ErrTextTooLong) {
			ev.Outcome = OutcomeRejected
		}
		ev.Error = redact.String(err.Error())
		return ev
	}
	if res == nil {
		return ev
	}
	ev.Entities = len(res.Entities)
	ev.OverlapsRemoved = res.OverlapsRemoved
	ev.Dropped = res.Dropped
	if len(res.Entities) > 0 {
		ev.EntitiesByType = make(map[string]int)
		for _, s := range res.Entities {
			ev.EntitiesByType[s.EntityType]++
		}
	}
	return ev
}
