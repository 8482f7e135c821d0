// Package onnx runs a token-classification NER model (for example an
// XLM-RoBERTa export of a Ukrainian 13-class model) through onnxruntime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/straja-ai/ukredact/internal/recognizer/ner"
)

const (
	defaultSeqLen   = 512
	defaultPoolSize = 1
)

// Config selects the model directory and runtime knobs.
type Config struct {
	ModelDir     string
	SeqLen       int
	PoolSize     int
	IntraThreads int
	InterThreads int
}

// Model is an ner.Model backed by a pool of onnxruntime sessions.
type Model struct {
	dir       string
	modelPath string
	tokenizer Tokenizer
	labels    []string
	aliases   map[string]string
	seqLen    int
	sessions  chan *session
	poolSize  int
}

var _ ner.Model = (*Model)(nil)

// Load prepares the tokenizer, labels and session pool for cfg.ModelDir.
func Load(cfg Config) (*Model, error) {
	dir := strings.TrimSpace(cfg.ModelDir)
	if dir == "" {
		return nil, errors.New("model dir is empty")
	}
	spec, err := LoadModelSpec(dir)
	if err != nil {
		return nil, fmt.Errorf("load model spec: %w", err)
	}
	seqLen := cfg.SeqLen
	if spec.MaxTokens > 0 && (seqLen <= 0 || spec.MaxTokens < seqLen) {
		seqLen = spec.MaxTokens
	}
	if seqLen <= 0 {
		seqLen = defaultSeqLen
	}
	if seqLen < 8 {
		return nil, fmt.Errorf("seq_len %d is too small", seqLen)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	modelPath := resolveModelPath(dir, spec.Onnx)
	if modelPath == "" {
		return nil, fmt.Errorf("onnx model not found in %s", dir)
	}
	lower := false
	if spec.Lowercase != nil {
		lower = *spec.Lowercase
	}
	tokenizer, err := LoadTokenizerFromDir(dir, lower)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	meta, err := loadModelMeta(dir)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	if err := initRuntime(dir); err != nil {
		return nil, err
	}
	outputName, outputDims, err := selectOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("output selection: %w", err)
	}

	m := &Model{
		dir:       dir,
		modelPath: modelPath,
		tokenizer: tokenizer,
		labels:    meta.Labels,
		aliases:   spec.LabelAliases,
		seqLen:    seqLen,
		sessions:  make(chan *session, poolSize),
		poolSize:  poolSize,
	}
	for i := 0; i < poolSize; i++ {
		s, err := newSession(sessionParams{
			modelPath:    modelPath,
			seqLen:       seqLen,
			numLabels:    len(meta.Labels),
			outputName:   outputName,
			outputDims:   outputDims,
			intraThreads: cfg.IntraThreads,
			interThreads: cfg.InterThreads,
			tokenType:    meta.RequiresTokenType,
		})
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("create onnx session %d/%d: %w", i+1, poolSize, err)
		}
		m.sessions <- s
	}
	slog.Info("ner model loaded",
		"model", filepath.Base(modelPath), "labels", len(meta.Labels),
		"seq_len", seqLen, "sessions", poolSize)
	return m, nil
}

// ModelFile returns the loaded weights file name.
func (m *Model) ModelFile() string { return filepath.Base(m.modelPath) }

// Analyze tokenizes the whole text, runs it through the model in windows of
// seqLen-2 pieces and decodes the tags into entities with byte offsets.
func (m *Model) Analyze(ctx context.Context, text string) ([]ner.Entity, error) {
	if m == nil || m.sessions == nil {
		return nil, errors.New("ner model not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	pieces := m.tokenizer.Tokenize(text)
	if len(pieces) == 0 {
		return nil, nil
	}

	var s *session
	select {
	case s = <-m.sessions:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { m.sessions <- s }()

	window := m.seqLen - 2
	preds := make([]tokenPrediction, 0, len(pieces))
	for start := 0; start < len(pieces); start += window {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+window, len(pieces))
		chunk := pieces[start:end]
		ids, mask := encodeWindow(chunk, m.tokenizer.Specials(), m.seqLen)
		logits, err := s.run(ids, mask)
		if err != nil {
			return nil, err
		}
		// Skip the leading special token.
		numLabels := len(m.labels)
		if len(logits) < (len(chunk)+1)*numLabels {
			return nil, fmt.Errorf("onnx output too small: %d values for %d tokens", len(logits), len(chunk))
		}
		preds = append(preds, predict(logits[numLabels:], numLabels, m.labels, chunk)...)
	}
	return mergeEntities(entitiesFromPredictions(preds, m.aliases)), nil
}

// Close releases all sessions. The model must not be used afterwards.
func (m *Model) Close() {
	if m == nil || m.sessions == nil {
		return
	}
	for {
		select {
		case s := <-m.sessions:
			s.destroy()
		default:
			return
		}
	}
}

// encodeWindow frames pieces as [CLS] pieces [SEP] and pads to seqLen.
func encodeWindow(pieces []Piece, sp SpecialTokens, seqLen int) ([]int64, []int64) {
	ids := make([]int64, seqLen)
	mask := make([]int64, seqLen)
	pos := 0
	put := func(id int64) {
		if pos < seqLen {
			ids[pos] = id
			mask[pos] = 1
			pos++
		}
	}
	put(max(sp.CLS, 0))
	for _, p := range pieces {
		put(p.ID)
	}
	put(max(sp.SEP, 0))
	for ; pos < seqLen; pos++ {
		ids[pos] = sp.PAD
	}
	return ids, mask
}

// mergeEntities joins same-type entities that touch or overlap, which
// happens when one word is split into pieces tagged B twice.
func mergeEntities(in []ner.Entity) []ner.Entity {
	if len(in) == 0 {
		return nil
	}
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Start == in[j].Start {
			return in[i].End < in[j].End
		}
		return in[i].Start < in[j].Start
	})
	out := make([]ner.Entity, 0, len(in))
	cur := in[0]
	for _, ent := range in[1:] {
		if ent.Start <= cur.End && ent.Label == cur.Label {
			if ent.End > cur.End {
				cur.End = ent.End
			}
			cur.Confidence = meanConfidence(cur.Confidence, ent.Confidence)
			continue
		}
		out = append(out, cur)
		cur = ent
	}
	return append(out, cur)
}

func meanConfidence(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	v := (*a + *b) / 2
	return &v
}
