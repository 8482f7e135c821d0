package onnx

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/straja-ai/ukredact/internal/recognizer/ner"
)

func TestEntitiesFromPredictionsBIO(t *testing.T) {
	text := "Іван Петренко працює в Укрпошті"
	preds := []tokenPrediction{
		{Label: "B-PERS", Prob: 0.9, Start: 0, End: len("Іван")},
		{Label: "I-PERS", Prob: 0.7, Start: len("Іван "), End: len("Іван Петренко")},
		{Label: "O", Prob: 0.99, Start: len("Іван Петренко "), End: len("Іван Петренко працює")},
		{Label: "O", Prob: 0.99, Start: len("Іван Петренко працює "), End: len("Іван Петренко працює в")},
		{Label: "B-ORG", Prob: 0.8, Start: len("Іван Петренко працює в "), End: len(text)},
	}
	got := entitiesFromPredictions(preds, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 entities, got %d: %+v", len(got), got)
	}
	if got[0].Label != "PERS" || text[got[0].Start:got[0].End] != "Іван Петренко" {
		t.Fatalf("unexpected first entity %+v", got[0])
	}
	if got[0].Confidence == nil || math.Abs(*got[0].Confidence-0.8) > 1e-9 {
		t.Fatalf("expected mean confidence 0.8, got %v", got[0].Confidence)
	}
	if got[1].Label != "ORG" || text[got[1].Start:got[1].End] != "Укрпошті" {
		t.Fatalf("unexpected second entity %+v", got[1])
	}
}

func TestEntitiesFromPredictionsBILOUAndAliases(t *testing.T) {
	preds := []tokenPrediction{
		{Label: "U-PER", Prob: 1, Start: 0, End: 4},
		{Label: "B-LOC", Prob: 1, Start: 5, End: 9},
		{Label: "L-LOC", Prob: 1, Start: 10, End: 14},
		{Label: "I-LOC", Prob: 1, Start: 15, End: 19},
	}
	got := entitiesFromPredictions(preds, map[string]string{"PER": "PERS"})
	if len(got) != 3 {
		t.Fatalf("expected 3 entities, got %+v", got)
	}
	if got[0].Label != "PERS" {
		t.Fatalf("alias not applied: %+v", got[0])
	}
	if got[1].Start != 5 || got[1].End != 14 {
		t.Fatalf("expected LOC 5-14, got %+v", got[1])
	}
	if got[2].Start != 15 {
		t.Fatalf("I after L must open a new entity, got %+v", got[2])
	}
}

func TestPredictPicksArgmax(t *testing.T) {
	labels := []string{"O", "B-PERS", "I-PERS"}
	logits := []float32{0, 5, 0, 3, 0, 0}
	pieces := []Piece{{ID: 10, Start: 0, End: 2}, {ID: 11, Start: 3, End: 5}}
	preds := predict(logits, len(labels), labels, pieces)
	if len(preds) != 2 || preds[0].Label != "B-PERS" || preds[1].Label != "O" {
		t.Fatalf("unexpected predictions %+v", preds)
	}
	if preds[0].Prob < 0.9 {
		t.Fatalf("expected high probability, got %f", preds[0].Prob)
	}
}

func TestMergeEntities(t *testing.T) {
	c1, c2 := 0.6, 1.0
	in := []ner.Entity{
		{Label: "PERS", Start: 5, End: 10, Confidence: &c1},
		{Label: "PERS", Start: 10, End: 15, Confidence: &c2},
		{Label: "LOC", Start: 20, End: 25},
	}
	out := mergeEntities(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 merged entities, got %d", len(out))
	}
	if out[0].Start != 5 || out[0].End != 15 || math.Abs(*out[0].Confidence-0.8) > 1e-9 {
		t.Fatalf("expected merged span 5-15 @0.8, got %+v", out[0])
	}
}

func TestEncodeWindow(t *testing.T) {
	ids, mask := encodeWindow([]Piece{{ID: 7}, {ID: 8}}, SpecialTokens{CLS: 0, SEP: 2, PAD: 1}, 6)
	wantIDs := []int64{0, 7, 8, 2, 1, 1}
	wantMask := []int64{1, 1, 1, 1, 0, 0}
	for i := range wantIDs {
		if ids[i] != wantIDs[i] || mask[i] != wantMask[i] {
			t.Fatalf("position %d: got id=%d mask=%d", i, ids[i], mask[i])
		}
	}
}

func TestLoadModelMeta(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{"id2label":{"0":"O","1":"B-PERS","2":"I-PERS"},"type_vocab_size":1}`)
	meta, err := loadModelMeta(dir)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if len(meta.Labels) != 3 || meta.Labels[1] != "B-PERS" {
		t.Fatalf("unexpected labels %v", meta.Labels)
	}
	if meta.RequiresTokenType {
		t.Fatalf("type_vocab_size 1 should not need token_type_ids")
	}

	writeFile(t, dir, "label_map.json", `["O","B-LOC"]`)
	meta, err = loadModelMeta(dir)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if len(meta.Labels) != 2 || meta.Labels[1] != "B-LOC" {
		t.Fatalf("label_map.json should win, got %v", meta.Labels)
	}

	if _, err := loadModelMeta(t.TempDir()); err == nil {
		t.Fatalf("expected error without labels")
	}
}

func TestLoadModelSpec(t *testing.T) {
	dir := t.TempDir()
	spec, err := LoadModelSpec(dir)
	if err != nil || spec.MaxTokens != 0 {
		t.Fatalf("missing model.yaml should give zero spec, got %+v %v", spec, err)
	}
	writeFile(t, dir, ModelFile, "onnx: weights/model.onnx\nmax_tokens: 256\nlowercase: true\nlabel_aliases:\n  PER: PERS\n")
	spec, err = LoadModelSpec(dir)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if spec.Onnx != "weights/model.onnx" || spec.MaxTokens != 256 || spec.Lowercase == nil || !*spec.Lowercase || spec.LabelAliases["PER"] != "PERS" {
		t.Fatalf("unexpected spec %+v", spec)
	}
}

func TestResolveModelPathPrefersExplicit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.onnx", "x")
	if got := resolveModelPath(dir, ""); got != filepath.Join(dir, "model.onnx") {
		t.Fatalf("unexpected path %s", got)
	}
	if err := os.MkdirAll(filepath.Join(dir, "q"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "q/custom.onnx", "x")
	if got := resolveModelPath(dir, "q/custom.onnx"); got != filepath.Join(dir, "q", "custom.onnx") {
		t.Fatalf("explicit path should win, got %s", got)
	}
	if got := resolveModelPath(t.TempDir(), ""); got != "" {
		t.Fatalf("expected empty path, got %s", got)
	}
}
