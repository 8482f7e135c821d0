package onnx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestWordPieceTokenizeOffsets(t *testing.T) {
	dir := t.TempDir()
	vocab := strings.Join([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "іван", "петр", "##енко", ",", "київ"}, "\n")
	writeFile(t, dir, "vocab.txt", vocab)

	tok, err := LoadTokenizerFromDir(dir, true)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	text := "Іван Петренко, Київ"
	pieces := tok.Tokenize(text)
	want := []string{"Іван", "Петр", "енко", ",", "Київ"}
	if len(pieces) != len(want) {
		t.Fatalf("expected %d pieces, got %d: %+v", len(want), len(pieces), pieces)
	}
	for i, p := range pieces {
		if got := text[p.Start:p.End]; got != want[i] {
			t.Fatalf("piece %d covers %q, want %q", i, got, want[i])
		}
	}
	if pieces[2].ID != 6 {
		t.Fatalf("expected continuation id 6, got %d", pieces[2].ID)
	}
	sp := tok.Specials()
	if sp.CLS != 2 || sp.SEP != 3 || sp.PAD != 0 {
		t.Fatalf("unexpected specials %+v", sp)
	}
}

func TestWordPieceUnknownWord(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vocab.txt", "[PAD]\n[UNK]\n[CLS]\n[SEP]\nабв\n")
	tok, err := LoadTokenizerFromDir(dir, false)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	pieces := tok.Tokenize("ґґґ")
	if len(pieces) != 1 || pieces[0].ID != 1 {
		t.Fatalf("expected single unk piece, got %+v", pieces)
	}
	if pieces[0].Start != 0 || pieces[0].End != len("ґґґ") {
		t.Fatalf("unk piece should cover the word, got %+v", pieces[0])
	}
}

const unigramJSON = `{
  "model": {
    "type": "Unigram",
    "unk_id": 3,
    "byte_fallback": false,
    "vocab": [
      ["<s>", 0.0], ["<pad>", 0.0], ["</s>", 0.0], ["<unk>", 0.0],
      ["▁", -2.0], ["▁Київ", -1.0], ["▁Петр", -1.5], ["енко", -1.5], ["▁у", -1.0], ["о", -3.0]
    ]
  },
  "post_processor": {"special_tokens": {"<s>": {"ids": [0]}, "</s>": {"ids": [2]}}}
}`

func TestUnigramTokenizeOffsets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tokenizer.json", unigramJSON)
	tok, err := LoadTokenizerFromDir(dir, false)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	if _, ok := tok.(*UnigramTokenizer); !ok {
		t.Fatalf("expected unigram tokenizer, got %T", tok)
	}
	text := "Петренко у  Київ"
	pieces := tok.Tokenize(text)
	var covered []string
	for _, p := range pieces {
		covered = append(covered, text[p.Start:p.End])
	}
	got := strings.Join(covered, "|")
	if got != "Петр|енко|у|Київ" {
		t.Fatalf("unexpected segmentation %q (%+v)", got, pieces)
	}
	sp := tok.Specials()
	if sp.CLS != 0 || sp.SEP != 2 || sp.PAD != 1 {
		t.Fatalf("unexpected specials %+v", sp)
	}
}

func TestUnigramUnknownRuneStaysWhole(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tokenizer.json", unigramJSON)
	tok, err := LoadTokenizerFromDir(dir, false)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	text := "ї"
	for _, p := range tok.Tokenize(text) {
		if p.End > p.Start && text[p.Start:p.End] != "ї" {
			t.Fatalf("piece splits a rune: %+v", p)
		}
	}
}

func TestLoadTokenizerMissing(t *testing.T) {
	if _, err := LoadTokenizerFromDir(t.TempDir(), false); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
