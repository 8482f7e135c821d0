// Package remote provides an ner.Model that calls an NER sidecar over HTTP.
//
// The sidecar receives {"text": ...} on POST /analyze and answers with
// {"entities": [{"label", "start", "end", "confidence"}]} where start/end
// are character offsets. Unlike a best-effort classifier, any transport or
// status failure is returned to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/straja-ai/ukredact/internal/recognizer/ner"
	"github.com/straja-ai/ukredact/internal/redact"
)

// DefaultTimeout bounds one sidecar call when the caller sets none.
const DefaultTimeout = 10 * time.Second

// ErrStatus wraps non-200 answers from the sidecar.
var ErrStatus = errors.New("ner sidecar returned unexpected status")

// Client calls the sidecar's /analyze endpoint.
type Client struct {
	url  string
	http *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client for the given base URL (e.g. "http://uk-ner:8001").
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ner sidecar url is empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		url:  baseURL + "/analyze",
		http: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Entities []sidecarEntity `json:"entities"`
}

type sidecarEntity struct {
	Label      string   `json:"label"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Analyze sends text to the sidecar. It is safe for concurrent use.
func (c *Client) Analyze(ctx context.Context, text string) ([]ner.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: call sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("ner sidecar: unexpected status", "code", resp.StatusCode, "body", redact.Snippet(string(snippet), 200))
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}

	offsets := ner.NewRuneOffsets(text)
	out := make([]ner.Entity, 0, len(result.Entities))
	for _, e := range result.Entities {
		out = append(out, ner.Entity{
			Label:      e.Label,
			Start:      offsets.Byte(e.Start),
			End:        offsets.Byte(e.End),
			Confidence: e.Confidence,
		})
	}
	return out, nil
}
