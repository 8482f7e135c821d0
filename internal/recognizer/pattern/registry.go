package pattern

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrRegistryFrozen is returned by Register after the first Analyze call.
var ErrRegistryFrozen = errors.New("pattern registry is frozen after first use")

// Registry owns a set of recognizers. Recognizers are registered during
// setup; the first Analyze freezes the set so concurrent requests never see
// it change.
type Registry struct {
	mu          sync.RWMutex
	recognizers []*Recognizer
	frozen      bool
	enhance     bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithContextEnhancement toggles the context keyword boost.
func WithContextEnhancement(on bool) Option {
	return func(r *Registry) { r.enhance = on }
}

// NewRegistry returns an empty registry. Context enhancement is on unless
// switched off by an option.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{enhance: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry returns a registry loaded with Predefined.
func NewDefaultRegistry(opts ...Option) (*Registry, error) {
	r := NewRegistry(opts...)
	for _, rec := range Predefined() {
		if err := r.Register(rec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles and adds rec.
func (r *Registry) Register(rec Recognizer) error {
	if err := rec.compile(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	if rec.Name == "" {
		rec.Name = fmt.Sprintf("%sRecognizer%d", rec.Entity, len(r.recognizers))
	}
	r.recognizers = append(r.recognizers, &rec)
	return nil
}

// SupportedEntities lists entity types registered for language, sorted.
func (r *Registry) SupportedEntities(language string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	var out []string
	for _, rec := range r.recognizers {
		if !strings.EqualFold(rec.Language, language) {
			continue
		}
		if _, ok := seen[rec.Entity]; ok {
			continue
		}
		seen[rec.Entity] = struct{}{}
		out = append(out, rec.Entity)
	}
	sort.Strings(out)
	return out
}

// Analyze runs every recognizer filed under language whose entity is in
// entityTypes (all of them when entityTypes is empty). Results come back
// ordered by score descending, then start, then longer first, with
// same-type matches contained in a stronger one removed.
func (r *Registry) Analyze(ctx context.Context, text string, entityTypes []string, language string) ([]Result, error) {
	r.mu.Lock()
	r.frozen = true
	recs := r.recognizers
	enhance := r.enhance
	r.mu.Unlock()

	if text == "" {
		return nil, nil
	}
	want := make(map[string]struct{}, len(entityTypes))
	for _, e := range entityTypes {
		want[e] = struct{}{}
	}

	var results []Result
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strings.EqualFold(rec.Language, language) {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[rec.Entity]; !ok {
				continue
			}
		}
		results = append(results, rec.analyze(text, enhance)...)
	}
	return removeDuplicates(results), nil
}

func removeDuplicates(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End-a.Start > b.End-b.Start
	})
	out := make([]Result, 0, len(results))
	for _, res := range results {
		keep := true
		for _, kept := range out {
			if res.EntityType == kept.EntityType && res.Start >= kept.Start && res.End <= kept.End {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, res)
		}
	}
	return out
}
