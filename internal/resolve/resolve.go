// Package resolve turns an overlapping span sequence into a non-overlapping
// one with a single greedy pass.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/straja-ai/ukredact/internal/entities"
	"github.com/straja-ai/ukredact/internal/span"
)

// Strategy names accepted by Lookup.
const (
	StrategyScore    = "score"
	StrategyPriority = "priority"
)

// ErrUnknownStrategy is returned by Lookup for names it does not know.
var ErrUnknownStrategy = errors.New("unknown conflict strategy")

// Resolver removes overlaps from a span sequence. Input order matters only
// as the final tie-break.
type Resolver interface {
	Resolve(spans []span.Span) []span.Span
}

// Func adapts a plain function to Resolver.
type Func func([]span.Span) []span.Span

func (f Func) Resolve(spans []span.Span) []span.Span { return f(spans) }

// Lookup returns the resolver registered under name. An empty name selects
// the score strategy.
func Lookup(name string) (Resolver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyScore:
		return Func(ByScore), nil
	case StrategyPriority:
		return Func(ByPriority), nil
	default:
		return nil, fmt.Errorf("%w %q (available: %s, %s)", ErrUnknownStrategy, name, StrategyScore, StrategyPriority)
	}
}

// ByScore orders candidates by start ascending then score descending,
// keeping input order on full ties, and accepts each candidate that is
// disjoint from everything accepted so far. The result is in acceptance
// order. Each candidate is checked against every accepted span, not only
// the last one.
func ByScore(spans []span.Span) []span.Span {
	if len(spans) == 0 {
		return nil
	}
	ordered := append([]span.Span(nil), spans...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].Score > ordered[j].Score
	})
	return greedy(ordered)
}

var priorities = map[string]int{
	entities.CreditCard:   1,
	entities.IBANCode:     1,
	entities.EmailAddress: 2,
	entities.PhoneNumber:  2,
	entities.Crypto:       2,
	entities.PERS:         3,
	entities.DOC:          3,
	entities.ORG:          4,
	entities.LOC:          4,
	entities.DATE:         5,
	entities.TIME:         5,
	entities.MISC:         10,
}

const defaultPriority = 100

// Priority returns the rank used by ByPriority; lower wins.
func Priority(entityType string) int {
	if p, ok := priorities[entityType]; ok {
		return p
	}
	return defaultPriority
}

// ByPriority prefers financial and contact identifiers over names, names
// over places, and so on, falling back to score then position.
func ByPriority(spans []span.Span) []span.Span {
	if len(spans) == 0 {
		return nil
	}
	ordered := append([]span.Span(nil), spans...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if pa, pb := Priority(a.EntityType), Priority(b.EntityType); pa != pb {
			return pa < pb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})
	return greedy(ordered)
}

func greedy(ordered []span.Span) []span.Span {
	accepted := make([]span.Span, 0, len(ordered))
	for _, c := range ordered {
		if overlapsAny(c, accepted) {
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}

func overlapsAny(c span.Span, accepted []span.Span) bool {
	for _, e := range accepted {
		if c.Overlaps(e) {
			return true
		}
	}
	return false
}
