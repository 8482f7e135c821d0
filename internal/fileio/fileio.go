// Package fileio turns uploaded documents into plain text for analysis.
// Plain text is decoded as UTF-8 with a Windows-1251 fallback; DOCX
// bodies are read paragraph by paragraph.
package fileio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxFileSize bounds uploads.
const DefaultMaxFileSize = 50 << 20

// Values of File.Encoding and File.Type.
const (
	EncodingUTF8   = "utf-8"
	EncodingCP1251 = "cp1251"
	TypeTXT        = "txt"
	TypeDOCX       = "docx"
)

const utf8BOM = "\ufeff"

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrTooLarge    = errors.New("file too large")
)

// File is the text extracted from one document.
type File struct {
	Text     string
	Name     string
	Type     string
	Encoding string // empty for docx
}

// Chars is the text length in characters.
func (f *File) Chars() int { return utf8.RuneCountInString(f.Text) }

// Reader extracts text with a size limit.
type Reader struct {
	MaxSize int64
}

// NewReader returns a reader with the given limit; max <= 0 uses
// DefaultMaxFileSize.
func NewReader(max int64) *Reader {
	if max <= 0 {
		max = DefaultMaxFileSize
	}
	return &Reader{MaxSize: max}
}

// Supported reports whether name has a readable extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".docx":
		return true
	}
	return false
}

// ReadFile reads the document at path.
func (r *Reader) ReadFile(path string) (*File, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %q (supported: .txt, .docx)", ErrUnsupported, filepath.Ext(path))
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() > r.MaxSize {
		return nil, fmt.Errorf("%w: %.1f MB, limit %.1f MB", ErrTooLarge, mb(st.Size()), mb(r.MaxSize))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.Read(filepath.Base(path), f)
}

// Read extracts text from src; name selects the format by extension.
func (r *Reader) Read(name string, src io.Reader) (*File, error) {
	if !Supported(name) {
		return nil, fmt.Errorf("%w: %q (supported: .txt, .docx)", ErrUnsupported, filepath.Ext(name))
	}
	data, err := io.ReadAll(io.LimitReader(src, r.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > r.MaxSize {
		return nil, fmt.Errorf("%w: limit %.1f MB", ErrTooLarge, mb(r.MaxSize))
	}
	if strings.EqualFold(filepath.Ext(name), ".docx") {
		text, err := docxText(data)
		if err != nil {
			return nil, fmt.Errorf("read docx %s: %w", name, err)
		}
		return &File{Text: norm.NFC.String(text), Name: name, Type: TypeDOCX}, nil
	}
	text, enc, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("read txt %s: %w", name, err)
	}
	return &File{Text: norm.NFC.String(text), Name: name, Type: TypeTXT, Encoding: enc}, nil
}

// decodeText prefers UTF-8 and falls back to Windows-1251, the usual
// encoding of legacy Ukrainian documents.
func decodeText(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), utf8BOM), EncodingUTF8, nil
	}
	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("decode cp1251: %w", err)
	}
	return string(out), EncodingCP1251, nil
}

// Sanitize normalizes line endings, strips trailing whitespace and keeps
// at most one blank line in a row.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func mb(n int64) float64 { return float64(n) / (1 << 20) }
