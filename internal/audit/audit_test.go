package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/straja-ai/ukredact/internal/config"
	"github.com/straja-ai/ukredact/internal/pipeline"
	"github.com/straja-ai/ukredact/internal/span"
)

func testEvent(id string) *Event {
	return &Event{Version: EventVersion, Timestamp: time.Now(), RequestID: id, Surface: SurfaceAPI, Outcome: OutcomeOK}
}

func TestNewEventCarriesNoText(t *testing.T) {
	text := "Іван, ivan@ukr.net"
	res := &pipeline.Result{
		OriginalText:   text,
		AnonymizedText: "[PERS], [EMAIL_ADDRESS]",
		Entities: []span.Span{
			{EntityType: "PERS", Start: 0, End: len("Іван"), Score: 0.9},
			{EntityType: "EMAIL_ADDRESS", Start: len("Іван, "), End: len(text), Score: 1},
		},
		OverlapsRemoved: 2,
		Dropped:         1,
	}
	ev := NewEvent("req-1", SurfaceCLI, text, res, nil, 1500*time.Microsecond)

	if ev.Outcome != OutcomeOK || ev.Entities != 2 || ev.TextLength != 18 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.EntitiesByType["PERS"] != 1 || ev.EntitiesByType["EMAIL_ADDRESS"] != 1 {
		t.Fatalf("unexpected per-type counts %+v", ev.EntitiesByType)
	}
	if ev.OverlapsRemoved != 2 || ev.Dropped != 1 || ev.DurationMs != 1.5 {
		t.Fatalf("unexpected counters %+v", ev)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "ivan@ukr.net") || strings.Contains(string(data), "Іван") {
		t.Fatalf("event leaks document text: %s", data)
	}
}

func TestNewEventOutcomes(t *testing.T) {
	rejected := NewEvent("r", SurfaceAPI, "x", nil, fmt.Errorf("check: %w", pipeline.ErrTextTooLong), 0)
	if rejected.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", rejected.Outcome)
	}

	failed := NewEvent("r", SurfaceAPI, "x", nil, errors.New("sidecar said ivan@ukr.net is odd"), 0)
	if failed.Outcome != OutcomeError {
		t.Fatalf("expected error, got %s", failed.Outcome)
	}
	if strings.Contains(failed.Error, "ivan@ukr.net") {
		t.Fatalf("error not redacted: %q", failed.Error)
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	if err := sink.Deliver(context.Background(), testEvent("req-1")); err != nil {
		t.Fatalf("deliver 1: %v", err)
	}
	if err := sink.Deliver(context.Background(), testEvent("req-2")); err != nil {
		t.Fatalf("deliver 2: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close sink: %v", err)
	}
	if err := sink.Deliver(context.Background(), testEvent("req-3")); err == nil {
		t.Fatalf("expected deliver after close to fail")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("unmarshal jsonl line: %v", err)
	}
	if decoded.RequestID != "req-1" {
		t.Fatalf("expected request_id req-1, got %s", decoded.RequestID)
	}
}

func TestWebhookSinkRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Audit-Key") != "k" {
			t.Errorf("missing custom header")
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("fail"))
	}))

	sink, err := NewWebhookSink(srv.URL+"?token=secret", map[string]string{"X-Audit-Key": "k"}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	if strings.Contains(sink.Name(), "secret") {
		t.Fatalf("sink name leaks query: %s", sink.Name())
	}
	err = sink.Deliver(context.Background(), testEvent("req-1"))
	if err == nil || !strings.Contains(err.Error(), "status") {
		t.Fatalf("expected status error, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	wait := make(chan struct{})
	sink := &blockingSink{wait: wait}
	rec := &countingRecorder{}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: time.Second, Recorder: rec}, []Sink{sink})

	ev := testEvent("r1")
	em.Emit(context.Background(), ev)
	em.Emit(context.Background(), ev)
	em.Emit(context.Background(), ev)

	dropped := rec.dropped.Load()
	if dropped == 0 {
		t.Fatalf("expected dropped events when queue is full")
	}

	close(wait)
	em.Close(context.Background())
	if got := rec.delivered.Load(); got != 3-dropped {
		t.Fatalf("expected %d deliveries, got %d", 3-dropped, got)
	}

	em.Emit(context.Background(), ev)
	if rec.dropped.Load() != dropped+1 {
		t.Fatalf("emit after close should count as dropped")
	}
}

func TestNilEmitterIsNoop(t *testing.T) {
	var em *Emitter
	em.Emit(context.Background(), testEvent("x"))
	em.Close(context.Background())
}

func TestEmitterCountsFailedDeliveries(t *testing.T) {
	rec := &countingRecorder{}
	em := NewEmitter(EmitterConfig{Recorder: rec}, []Sink{failingSink{}})
	em.Emit(context.Background(), testEvent("r1"))
	em.Emit(context.Background(), testEvent("r2"))
	em.Close(context.Background())

	if got := rec.failed.Load(); got != 2 {
		t.Fatalf("expected 2 failed deliveries, got %d", got)
	}
	if got := rec.delivered.Load(); got != 0 {
		t.Fatalf("expected no successful deliveries, got %d", got)
	}
}

func TestEmitterWebhookIntegration(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
	)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	rec := &countingRecorder{}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 2, ShutdownTimeout: time.Second, Recorder: rec}, []Sink{sink})
	defer em.Close(context.Background())

	for i := 0; i < 5; i++ {
		em.Emit(context.Background(), testEvent(fmt.Sprintf("req-%d", i)))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for webhook events, got %d", n)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if rec.dropped.Load() != 0 {
		t.Fatalf("did not expect dropped events, got %d", rec.dropped.Load())
	}
}

func TestOpenFromConfig(t *testing.T) {
	em, err := Open(config.AuditConfig{}, nil)
	if err != nil || em != nil {
		t.Fatalf("no sinks should give a nil emitter, got %v %v", em, err)
	}

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	em, err = Open(config.AuditConfig{
		Sinks:     []config.AuditSinkConfig{{Type: "file_jsonl", Path: path}},
		QueueSize: 4,
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	em.Emit(context.Background(), testEvent("from-config"))
	em.Close(context.Background())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), "from-config") {
		t.Fatalf("event not written: %s", data)
	}

	if _, err := Open(config.AuditConfig{Sinks: []config.AuditSinkConfig{{Type: "kafka"}}}, nil); err == nil {
		t.Fatalf("expected unknown sink type to fail")
	}
}

type countingRecorder struct {
	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

func (r *countingRecorder) RecordAuditDrop(context.Context) { r.dropped.Add(1) }

func (r *countingRecorder) RecordAuditDelivery(_ context.Context, _ string, failed bool) {
	if failed {
		r.failed.Add(1)
		return
	}
	r.delivered.Add(1)
}

type failingSink struct{}

func (failingSink) Name() string                          { return "failing" }
func (failingSink) Deliver(context.Context, *Event) error { return errors.New("disk full") }
func (failingSink) Close(context.Context) error           { return nil }

type blockingSink struct {
	wait chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(context.Context, *Event) error {
	<-s.wait
	return nil
}

func (s *blockingSink) Close(context.Context) error {
	if s.wait != nil {
		select {
		case <-s.wait:
		default:
			close(s.wait)
		}
	}
	return nil
}

func newTestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: cannot open listener: %v", err)
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
