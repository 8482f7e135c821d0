package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/straja-ai/ukredact/internal/config"
	"github.com/straja-ai/ukredact/internal/redact"
)

// Sink types accepted in configuration.
const (
	SinkFileJSONL = "file_jsonl"
	SinkWebhook   = "webhook"
)

// Open builds the emitter described by cfg. No sinks yields a nil emitter,
// which discards events. rec may be nil.
func Open(cfg config.AuditConfig, rec Recorder) (*Emitter, error) {
	if len(cfg.Sinks) == 0 {
		return nil, nil
	}
	sinks := make([]Sink, 0, len(cfg.Sinks))
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close(context.Background())
		}
	}
	for i, sc := range cfg.Sinks {
		var (
			s   Sink
			err error
		)
		switch strings.ToLower(strings.TrimSpace(sc.Type)) {
		case SinkFileJSONL:
			s, err = NewFileSink(sc.Path)
		case SinkWebhook:
			s, err = NewWebhookSink(sc.URL, sc.Headers, sc.Timeout)
		default:
			err = fmt.Errorf("unknown type %q", sc.Type)
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("audit sink %d: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	return NewEmitter(EmitterConfig{
		QueueSize:       cfg.QueueSize,
		Workers:         cfg.Workers,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Recorder:        rec,
	}, sinks), nil
}

// FileSink appends events to a JSONL file, one object per line.
type FileSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewFileSink opens path for appending, creating parent directories. The
// file is private to the owner.
func NewFileSink(path string) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &FileSink{path: path, file: f, writer: bufio.NewWriter(f)}, nil
}

func (s *FileSink) Name() string { return SinkFileJSONL + ":" + s.path }

func (s *FileSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("file sink closed")
	}
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return s.writer.Flush()
}

func (s *FileSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.file = nil
	return errors.Join(flushErr, closeErr)
}

// webhookBackoffs are the waits before each retry.
var webhookBackoffs = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}

// WebhookSink POSTs each event as JSON. Non-2xx answers and transport
// errors are retried.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func NewWebhookSink(url string, headers map[string]string, timeout time.Duration) (*WebhookSink, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("webhook url is empty")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	hdr := make(map[string]string, len(headers))
	for k, v := range headers {
		hdr[k] = v
	}
	return &WebhookSink{url: url, headers: hdr, client: &http.Client{Timeout: timeout}}, nil
}

// Name omits query strings, which may carry credentials.
func (s *WebhookSink) Name() string {
	u := s.url
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return SinkWebhook + ":" + u
}

func (s *WebhookSink) Deliver(ctx context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(webhookBackoffs); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(webhookBackoffs[attempt-1])
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		if lastErr = s.post(ctx, payload); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (s *WebhookSink) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("status %d body=%q", resp.StatusCode, redact.Snippet(string(body), 200))
}

func (s *WebhookSink) Close(context.Context) error { return nil }
