package onnx

import (
	"math"
	"strings"

	"github.com/straja-ai/ukredact/internal/recognizer/ner"
)

// tokenPrediction is the winning label of one piece and its probability.
type tokenPrediction struct {
	Label string
	Prob  float64
	Start int
	End   int
}

// predict turns [n][numLabels] logits into per-piece predictions.
func predict(logits []float32, numLabels int, labels []string, pieces []Piece) []tokenPrediction {
	out := make([]tokenPrediction, 0, len(pieces))
	for i, p := range pieces {
		base := i * numLabels
		if base+numLabels > len(logits) {
			break
		}
		probs := softmax(logits[base : base+numLabels])
		best := 0
		for j := 1; j < len(probs); j++ {
			if probs[j] > probs[best] {
				best = j
			}
		}
		lbl := "O"
		if best < len(labels) && labels[best] != "" {
			lbl = labels[best]
		}
		out = append(out, tokenPrediction{Label: lbl, Prob: float64(probs[best]), Start: p.Start, End: p.End})
	}
	return out
}

// entitiesFromPredictions groups BIO/BILOU tagged pieces into entities.
// A piece continues the current entity when it is tagged I or L with the
// same type; B, U, a type change, or an O closes it. Confidence is the mean
// probability of the pieces that make up the entity.
func entitiesFromPredictions(preds []tokenPrediction, aliases map[string]string) []ner.Entity {
	var out []ner.Entity
	var cur *ner.Entity
	var sum float64
	var count int

	closeCur := func() {
		if cur == nil {
			return
		}
		c := sum / float64(count)
		cur.Confidence = &c
		out = append(out, *cur)
		cur = nil
	}

	for _, p := range preds {
		if p.End <= p.Start {
			// marker-only piece: keeps the running entity open
			continue
		}
		prefix, typ := splitLabel(p.Label)
		if a, ok := aliases[typ]; ok {
			typ = a
		}
		if typ == "" || strings.EqualFold(p.Label, "O") {
			closeCur()
			continue
		}
		continues := cur != nil && cur.Label == typ && (prefix == "I" || prefix == "L" || prefix == "")
		if !continues {
			closeCur()
			cur = &ner.Entity{Label: typ, Start: p.Start, End: p.End}
			sum, count = p.Prob, 1
		} else {
			if p.End > cur.End {
				cur.End = p.End
			}
			sum += p.Prob
			count++
		}
		if prefix == "L" || prefix == "U" {
			closeCur()
		}
	}
	closeCur()
	return out
}

func splitLabel(lbl string) (string, string) {
	lbl = strings.TrimSpace(lbl)
	if lbl == "" {
		return "", ""
	}
	parts := strings.SplitN(lbl, "-", 2)
	if len(parts) == 1 {
		return "", lbl
	}
	return strings.ToUpper(parts[0]), parts[1]
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	out := make([]float32, len(logits))
	for i, v := range logits {
		exp := math.Exp(float64(v - maxVal))
		out[i] = float32(exp)
		sum += exp
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
