// Package export renders redaction results as downloadable documents:
// the redacted text (txt, md, docx), the entity report (json, csv, txt)
// and a full report combining both with statistics.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Format is a file format, named by its extension.
type Format string

const (
	TXT      Format = "txt"
	DOCX     Format = "docx"
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "md"
)

// Kind selects what is exported.
type Kind string

const (
	KindAnonymized Kind = "anonymized"
	KindEntities   Kind = "entities"
	KindFull       Kind = "full"
)

// ErrUnsupported is returned for a kind/format pair with no writer.
var ErrUnsupported = errors.New("unsupported export format")

// DefaultBaseName is used by Filename when base is empty.
const DefaultBaseName = "deidentified"

var supported = map[Kind][]Format{
	KindAnonymized: {TXT, Markdown, DOCX},
	KindEntities:   {JSON, CSV, TXT},
	KindFull:       {TXT, Markdown, DOCX},
}

// ParseFormat accepts an extension with or without the leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case TXT, DOCX, JSON, CSV, Markdown:
		return f, nil
	case "markdown":
		return Markdown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, s)
}

// ParseKind accepts anonymized, entities or full.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := supported[k]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown export kind %q", s)
}

// Formats lists the formats available for kind.
func Formats(kind Kind) []Format {
	return append([]Format(nil), supported[kind]...)
}

// Write renders d as kind in format f. Anonymized text is preceded by the
// metadata header.
func Write(w io.Writer, d *Document, kind Kind, f Format) error {
	switch kind {
	case KindAnonymized:
		return Anonymized(w, d, f, true)
	case KindEntities:
		return EntitiesReport(w, d, f)
	case KindFull:
		return FullReport(w, d, f)
	}
	return fmt.Errorf("unknown export kind %q", kind)
}

// Anonymized writes the redacted text.
func Anonymized(w io.Writer, d *Document, f Format, withMetadata bool) error {
	switch f {
	case TXT:
		return writeString(w, anonymizedTXT(d, withMetadata))
	case Markdown:
		return writeString(w, anonymizedMarkdown(d, withMetadata))
	case DOCX:
		return anonymizedDOCX(d, withMetadata).writeTo(w)
	}
	return fmt.Errorf("%w: anonymized text as %q", ErrUnsupported, f)
}

// EntitiesReport writes the list of findings.
func EntitiesReport(w io.Writer, d *Document, f Format) error {
	switch f {
	case JSON:
		return entitiesJSON(w, d)
	case CSV:
		return entitiesCSV(w, d)
	case TXT:
		return writeString(w, entitiesTXT(d))
	}
	return fmt.Errorf("%w: entity report as %q", ErrUnsupported, f)
}

// FullReport writes metadata, statistics, redacted text and findings.
func FullReport(w io.Writer, d *Document, f Format) error {
	switch f {
	case TXT:
		return writeString(w, fullTXT(d))
	case Markdown:
		return writeString(w, fullMarkdown(d))
	case DOCX:
		return fullDOCX(d).writeTo(w)
	}
	return fmt.Errorf("%w: full report as %q", ErrUnsupported, f)
}

// Filename builds "<base>_<YYYYMMDD_HHMMSS>.<ext>". A zero time omits the
// timestamp.
func Filename(base string, f Format, now time.Time) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseName
	}
	if now.IsZero() {
		return fmt.Sprintf("%s.%s", base, f)
	}
	return fmt.Sprintf("%s_%s.%s", base, now.Format("20060102_150405"), f)
}

// ContentType is the MIME type for f.
func ContentType(f Format) string {
	switch f {
	case JSON:
		return "application/json; charset=utf-8"
	case CSV:
		return "text/csv; charset=utf-8"
	case Markdown:
		return "text/markdown; charset=utf-8"
	case DOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "text/plain; charset=utf-8"
}

func writeString(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}
