package ner

// RuneOffsets maps character positions, as reported by Python-based
// models, onto UTF-8 byte offsets of the same string.
type RuneOffsets struct {
	bytePos []int
}

// NewRuneOffsets indexes text once. Position n (0 <= n <= rune count) maps
// to the byte offset where the n-th character starts.
func NewRuneOffsets(text string) *RuneOffsets {
	pos := make([]int, 0, len(text)+1)
	for i := range text {
		pos = append(pos, i)
	}
	pos = append(pos, len(text))
	return &RuneOffsets{bytePos: pos}
}

// Byte converts a character position. Out-of-range positions are passed
// through as len-relative values so downstream validation can clamp or
// reject them.
func (r *RuneOffsets) Byte(runePos int) int {
	if runePos < 0 {
		return runePos
	}
	if runePos >= len(r.bytePos) {
		last := r.bytePos[len(r.bytePos)-1]
		return last + (runePos - (len(r.bytePos) - 1))
	}
	return r.bytePos[runePos]
}
