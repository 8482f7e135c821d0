// Package pattern is a small rule engine for deterministic PII: each
// recognizer is a set of regular expressions with a fixed score, optional
// context keywords that raise the score when they appear just before a
// match, and an optional checksum validator.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Score bounds used by validation and context enhancement.
const (
	MinScore = 0.0
	MaxScore = 1.0
)

// Pattern is one regular expression with the score its matches get.
type Pattern struct {
	Name  string  `yaml:"name" json:"name"`
	Regex string  `yaml:"regex" json:"regex"`
	Score float64 `yaml:"score" json:"score"`
}

// Validator inspects matched text. Valid returns true to promote the match
// to MaxScore, false to drop it; ok=false means no opinion.
type Validator func(match string) (valid bool, ok bool)

// Recognizer detects one entity type.
type Recognizer struct {
	Name     string
	Entity   string
	Language string
	Patterns []Pattern
	Context  []string
	Validate Validator

	compiled []*regexp.Regexp
}

// Result is one match.
type Result struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	Recognizer string  `json:"recognizer"`
}

func (r *Recognizer) compile() error {
	if strings.TrimSpace(r.Entity) == "" {
		return errors.New("recognizer entity is empty")
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("recognizer %s has no patterns", r.Name)
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	r.compiled = make([]*regexp.Regexp, 0, len(r.Patterns))
	for _, p := range r.Patterns {
		if p.Score < MinScore || p.Score > MaxScore {
			return fmt.Errorf("recognizer %s pattern %s: score %.2f outside [0,1]", r.Name, p.Name, p.Score)
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return fmt.Errorf("recognizer %s pattern %s: %w", r.Name, p.Name, err)
		}
		r.compiled = append(r.compiled, re)
	}
	return nil
}

func (r *Recognizer) analyze(text string, enhance bool) []Result {
	var out []Result
	for i, re := range r.compiled {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			score := r.Patterns[i].Score
			if r.Validate != nil {
				if valid, ok := r.Validate(text[loc[0]:loc[1]]); ok {
					if !valid {
						continue
					}
					score = MaxScore
				}
			}
			if enhance && score < MaxScore && hasContext(text, loc[0], loc[1], r.Context) {
				score = enhanceScore(score)
			}
			if score <= MinScore {
				continue
			}
			out = append(out, Result{
				EntityType: r.Entity,
				Start:      loc[0],
				End:        loc[1],
				Score:      score,
				Recognizer: r.Name,
			})
		}
	}
	return out
}
