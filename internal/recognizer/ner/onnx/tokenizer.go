package onnx

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits text into vocabulary pieces that remember which bytes
// of the input they came from.
type Tokenizer interface {
	Tokenize(text string) []Piece
	Specials() SpecialTokens
}

// Piece is one token with its byte range in the source text. Pieces that
// cover no source text (a bare word-boundary marker) have Start == End.
type Piece struct {
	ID    int64
	Start int
	End   int
}

// SpecialTokens are the ids framing every window.
type SpecialTokens struct {
	CLS int64
	SEP int64
	PAD int64
}

type specialTokenMeta struct {
	IDs []int64 `json:"ids"`
}

// WordPieceTokenizer implements a BERT-compatible tokenizer.
type WordPieceTokenizer struct {
	vocab        map[string]int64
	lowerCase    bool
	specials     SpecialTokens
	unkID        int64
	continuation string
}

// UnigramTokenizer implements a SentencePiece unigram tokenizer with
// metaspace pre-tokenization (XLM-RoBERTa style).
type UnigramTokenizer struct {
	vocab        map[string]int64
	scores       []float64
	unkID        int64
	unkScore     float64
	byteFallback bool
	byteTokens   map[byte]int64
	specials     SpecialTokens
	trie         *unigramTrie
}

const metaspace = "▁"

// LoadWordPieceTokenizer builds the tokenizer from vocab.txt.
func LoadWordPieceTokenizer(path string, lowerCase bool) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	return newWordPiece(vocab, lowerCase), nil
}

func newWordPiece(vocab map[string]int64, lowerCase bool) *WordPieceTokenizer {
	return &WordPieceTokenizer{
		vocab:        vocab,
		lowerCase:    lowerCase,
		continuation: "##",
		specials: SpecialTokens{
			CLS: vocab["[CLS]"],
			SEP: vocab["[SEP]"],
			PAD: vocab["[PAD]"],
		},
		unkID: vocab["[UNK]"],
	}
}

// LoadTokenizerFromDir loads a tokenizer from vocab.txt or tokenizer.json.
func LoadTokenizerFromDir(dir string, lowerCase bool) (Tokenizer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("tokenizer dir is empty")
	}
	jsonCandidates := []string{
		filepath.Join(dir, "tokenizer.json"),
		filepath.Join(dir, "tokenizer", "tokenizer.json"),
	}
	for _, path := range jsonCandidates {
		if _, err := os.Stat(path); err == nil {
			return loadTokenizerFromJSON(path, lowerCase)
		}
	}
	candidates := []string{
		filepath.Join(dir, "vocab.txt"),
		filepath.Join(dir, "tokenizer", "vocab.txt"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return LoadWordPieceTokenizer(path, lowerCase)
		}
	}
	return nil, fmt.Errorf("tokenizer assets not found (tokenizer.json or vocab.txt) in %s", dir)
}

func loadTokenizerFromJSON(path string, lowerCase bool) (Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer.json: %w", err)
	}
	var raw struct {
		Model struct {
			Type         string `json:"type"`
			Vocab        any    `json:"vocab"`
			UnkID        *int   `json:"unk_id"`
			ByteFallback bool   `json:"byte_fallback"`
		} `json:"model"`
		PostProcessor struct {
			SpecialTokens map[string]specialTokenMeta `json:"special_tokens"`
		} `json:"post_processor"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tokenizer.json: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(raw.Model.Type), "unigram") {
		tokens, scores, vocabMap := vocabWithScores(raw.Model.Vocab)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("tokenizer.json missing vocab")
		}
		unkID := -1
		if raw.Model.UnkID != nil {
			unkID = *raw.Model.UnkID
		}
		specials := SpecialTokens{
			CLS: pickSpecialID(vocabMap, raw.PostProcessor.SpecialTokens, "<s>", "[CLS]"),
			SEP: pickSpecialID(vocabMap, raw.PostProcessor.SpecialTokens, "</s>", "[SEP]"),
			PAD: pickSpecialID(vocabMap, raw.PostProcessor.SpecialTokens, "<pad>", "[PAD]"),
		}
		return newUnigramTokenizer(tokens, scores, vocabMap, unkID, raw.Model.ByteFallback, specials), nil
	}

	if vocab := vocabFromAny(raw.Model.Vocab); len(vocab) > 0 {
		return newWordPiece(vocab, lowerCase), nil
	}
	return nil, fmt.Errorf("tokenizer.json missing vocab")
}

func vocabWithScores(raw any) ([]string, []float64, map[string]int64) {
	list, ok := raw.([]any)
	if !ok {
		return nil, nil, nil
	}
	tokens := make([]string, len(list))
	scores := make([]float64, len(list))
	vocab := make(map[string]int64, len(list))
	for i, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		token, ok := pair[0].(string)
		if !ok || token == "" {
			continue
		}
		score, ok := asFloat(pair[1])
		if !ok {
			continue
		}
		tokens[i] = token
		scores[i] = score
		vocab[token] = int64(i)
	}
	return tokens, scores, vocab
}

func asFloat(v any) (float64, bool) {
	switch num := v.(type) {
	case float64:
		return num, true
	case int:
		return float64(num), true
	case int64:
		return float64(num), true
	default:
		return 0, false
	}
}

func pickSpecialID(vocab map[string]int64, specials map[string]specialTokenMeta, tokens ...string) int64 {
	for _, token := range tokens {
		if meta, ok := specials[token]; ok && len(meta.IDs) > 0 {
			return meta.IDs[0]
		}
		if id, ok := vocab[token]; ok {
			return id
		}
	}
	return -1
}

func vocabFromAny(raw any) map[string]int64 {
	v, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int64, len(v))
	for k, val := range v {
		if num, ok := asFloat(val); ok {
			out[k] = int64(num)
		}
	}
	return out
}

// Specials returns the framing token ids.
func (t *WordPieceTokenizer) Specials() SpecialTokens { return t.specials }

// Tokenize splits on whitespace and punctuation, then greedily matches the
// longest vocabulary entries inside each word.
func (t *WordPieceTokenizer) Tokenize(text string) []Piece {
	var out []Piece
	for _, w := range splitWordsWithOffsets(text, true) {
		token := w.Text
		if t.lowerCase {
			token = strings.ToLower(token)
		}
		// Lower-casing keeps byte length for Cyrillic and Latin, which is
		// all the offsets below rely on; fall back to whole-word on change.
		if len(token) != len(w.Text) {
			out = append(out, Piece{ID: t.wordID(token), Start: w.Start, End: w.End})
			continue
		}
		for _, p := range t.wordPieceOffsets(token) {
			out = append(out, Piece{ID: p.id, Start: w.Start + p.start, End: w.Start + p.end})
		}
	}
	return out
}

func (t *WordPieceTokenizer) wordID(token string) int64 {
	if id, ok := t.vocab[token]; ok {
		return id
	}
	return t.unkID
}

type wordPieceOffset struct {
	id    int64
	start int
	end   int
}

func (t *WordPieceTokenizer) wordPieceOffsets(token string) []wordPieceOffset {
	if id, ok := t.vocab[token]; ok {
		return []wordPieceOffset{{id: id, start: 0, end: len(token)}}
	}

	var pieces []wordPieceOffset
	start := 0
	for start < len(token) {
		end := len(token)
		matched := false
		for end > start {
			if end < len(token) && !utf8.RuneStart(token[end]) {
				end--
				continue
			}
			sub := token[start:end]
			if start > 0 {
				sub = t.continuation + sub
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, wordPieceOffset{id: id, start: start, end: end})
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			return []wordPieceOffset{{id: t.unkID, start: 0, end: len(token)}}
		}
	}
	return pieces
}

type wordSpan struct {
	Text  string
	Start int
	End   int
}

// splitWordsWithOffsets splits on whitespace. With splitPunct each
// punctuation rune becomes its own word, as BERT's basic tokenizer does.
func splitWordsWithOffsets(text string, splitPunct bool) []wordSpan {
	if text == "" {
		return nil
	}
	var spans []wordSpan
	start := -1
	flush := func(end int) {
		if start >= 0 {
			spans = append(spans, wordSpan{Text: text[start:end], Start: start, End: end})
			start = -1
		}
	}
	for idx, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush(idx)
		case splitPunct && unicode.IsPunct(r):
			flush(idx)
			end := idx + utf8.RuneLen(r)
			spans = append(spans, wordSpan{Text: text[idx:end], Start: idx, End: end})
		default:
			if start < 0 {
				start = idx
			}
		}
	}
	flush(len(text))
	return spans
}

type unigramTrie struct {
	children map[byte]*unigramTrie
	tokenID  int64
	score    float64
}

func newUnigramTokenizer(tokens []string, scores []float64, vocab map[string]int64, unkID int, byteFallback bool, specials SpecialTokens) *UnigramTokenizer {
	t := &UnigramTokenizer{
		vocab:        vocab,
		scores:       scores,
		unkID:        int64(unkID),
		byteFallback: byteFallback,
		specials:     specials,
		trie:         &unigramTrie{children: map[byte]*unigramTrie{}, tokenID: -1},
	}
	if t.specials.PAD < 0 {
		t.specials.PAD = 0
	}
	if t.unkID < 0 {
		t.unkID = 0
	}
	t.byteTokens = t.collectByteTokens()
	// Same penalty as sentencepiece: unknown pieces score well below the
	// worst vocabulary entry.
	minScore := 0.0
	for _, s := range scores {
		minScore = math.Min(minScore, s)
	}
	t.unkScore = minScore - 10
	for id, tok := range tokens {
		if tok == "" {
			continue
		}
		t.insertToken(tok, int64(id))
	}
	return t
}

func (t *UnigramTokenizer) insertToken(token string, id int64) {
	node := t.trie
	for i := 0; i < len(token); i++ {
		b := token[i]
		if node.children == nil {
			node.children = make(map[byte]*unigramTrie)
		}
		child := node.children[b]
		if child == nil {
			child = &unigramTrie{tokenID: -1}
			node.children[b] = child
		}
		node = child
	}
	node.tokenID = id
	if int(id) < len(t.scores) {
		node.score = t.scores[id]
	}
}

func (t *UnigramTokenizer) collectByteTokens() map[byte]int64 {
	out := map[byte]int64{}
	for tok, id := range t.vocab {
		if len(tok) == 6 && strings.HasPrefix(tok, "<0x") && strings.HasSuffix(tok, ">") {
			var b byte
			if n, err := fmt.Sscanf(tok[3:5], "%02X", &b); err == nil && n == 1 {
				out[b] = id
			}
		}
	}
	return out
}

// Specials returns the framing token ids.
func (t *UnigramTokenizer) Specials() SpecialTokens { return t.specials }

// Tokenize runs Viterbi segmentation word by word. Each word is prefixed
// with the metaspace marker; pieces that consist only of the marker map to
// an empty range at the word start.
func (t *UnigramTokenizer) Tokenize(text string) []Piece {
	var out []Piece
	for _, w := range splitWordsWithOffsets(text, false) {
		word := metaspace + w.Text
		for _, seg := range t.segment(word) {
			start := clampInt(seg.start-len(metaspace), 0, len(w.Text))
			end := clampInt(seg.end-len(metaspace), 0, len(w.Text))
			start = snapRuneStart(w.Text, start)
			end = snapRuneEnd(w.Text, end)
			out = append(out, Piece{ID: seg.id, Start: w.Start + start, End: w.Start + end})
		}
	}
	return out
}

type segment struct {
	id         int64
	start, end int
}

func (t *UnigramTokenizer) segment(s string) []segment {
	input := []byte(s)
	n := len(input)
	if n == 0 {
		return nil
	}
	dp := make([]float64, n+1)
	prev := make([]int, n+1)
	prevTok := make([]int64, n+1)
	for i := 1; i <= n; i++ {
		dp[i] = math.Inf(-1)
		prev[i] = -1
	}
	for i := 0; i < n; i++ {
		if math.IsInf(dp[i], -1) {
			continue
		}
		node := t.trie
		matched := false
		for j := i; j < n; j++ {
			node = node.children[input[j]]
			if node == nil {
				break
			}
			if node.tokenID >= 0 {
				matched = true
				if score := dp[i] + node.score; score > dp[j+1] {
					dp[j+1] = score
					prev[j+1] = i
					prevTok[j+1] = node.tokenID
				}
			}
		}
		if matched {
			continue
		}
		if t.byteFallback {
			if id, ok := t.byteTokens[input[i]]; ok {
				if score := dp[i] + t.scoreFor(id); score > dp[i+1] {
					dp[i+1] = score
					prev[i+1] = i
					prevTok[i+1] = id
				}
				continue
			}
		}
		// Unknown character: consume the whole rune as one unk piece.
		_, size := utf8.DecodeRune(input[i:])
		if size <= 0 {
			size = 1
		}
		if score := dp[i] + t.unkScore; score > dp[i+size] {
			dp[i+size] = score
			prev[i+size] = i
			prevTok[i+size] = t.unkID
		}
	}
	if math.IsInf(dp[n], -1) {
		return []segment{{id: t.unkID, start: 0, end: n}}
	}
	var out []segment
	for pos := n; pos > 0; {
		p := prev[pos]
		if p < 0 || p >= pos {
			out = append(out, segment{id: t.unkID, start: pos - 1, end: pos})
			pos--
			continue
		}
		out = append(out, segment{id: prevTok[pos], start: p, end: pos})
		pos = p
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (t *UnigramTokenizer) scoreFor(id int64) float64 {
	if id >= 0 && int(id) < len(t.scores) {
		return t.scores[id]
	}
	return 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func snapRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func snapRuneEnd(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
