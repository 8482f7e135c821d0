package onnx

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
)

// TestModelIntegration needs a real export; point UKREDACT_NER_MODEL_DIR at
// a directory with model.onnx, config.json and tokenizer.json.
func TestModelIntegration(t *testing.T) {
	dir := strings.TrimSpace(os.Getenv("UKREDACT_NER_MODEL_DIR"))
	if dir == "" {
		t.Skip("UKREDACT_NER_MODEL_DIR not set")
	}
	m, err := Load(Config{ModelDir: dir, PoolSize: 2})
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	defer m.Close()

	text := "Тарас Шевченко народився в Моринцях."
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ents, err := m.Analyze(context.Background(), text)
			if err != nil {
				t.Errorf("analyze: %v", err)
				return
			}
			for _, e := range ents {
				if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
					t.Errorf("entity out of range: %+v", e)
				}
			}
		}()
	}
	wg.Wait()
}

func TestLoadRequiresDir(t *testing.T) {
	if _, err := Load(Config{}); err == nil {
		t.Fatalf("expected error for empty model dir")
	}
	if _, err := Load(Config{ModelDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for dir without model")
	}
}
