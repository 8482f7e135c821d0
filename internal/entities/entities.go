// Package entities holds the entity classes the redactor knows about and
// which detector emits them.
package entities

import (
	"sort"
	"strings"
)

// Class describes one entity type.
type Class struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Detector    string `json:"detector"` // ner | pattern
}

const (
	DetectorNER     = "ner"
	DetectorPattern = "pattern"
)

// NER classes emitted by the statistical model.
const (
	PERS   = "PERS"
	ORG    = "ORG"
	LOC    = "LOC"
	DATE   = "DATE"
	TIME   = "TIME"
	JOB    = "JOB"
	MON    = "MON"
	PCT    = "PCT"
	PERIOD = "PERIOD"
	DOC    = "DOC"
	QUANT  = "QUANT"
	ART    = "ART"
	MISC   = "MISC"
)

// Pattern classes emitted by the deterministic recognizers.
const (
	EmailAddress = "EMAIL_ADDRESS"
	PhoneNumber  = "PHONE_NUMBER"
	CreditCard   = "CREDIT_CARD"
	IBANCode     = "IBAN_CODE"
	IPAddress    = "IP_ADDRESS"
	URL          = "URL"
	Crypto       = "CRYPTO"
	DateTime     = "DATE_TIME"
)

var nerClasses = []Class{
	{PERS, "Імена, прізвища, по-батькові", DetectorNER},
	{ORG, "Назви організацій, компаній", DetectorNER},
	{LOC, "Географічні назви, адреси", DetectorNER},
	{DATE, "Дати (повні та часткові)", DetectorNER},
	{TIME, "Час, часові позначки", DetectorNER},
	{JOB, "Посади, професії", DetectorNER},
	{MON, "Грошові суми, валюти", DetectorNER},
	{PCT, "Відсотки, процентні значення", DetectorNER},
	{PERIOD, "Часові періоди", DetectorNER},
	{DOC, "Номери документів, посвідчень", DetectorNER},
	{QUANT, "Кількісні показники", DetectorNER},
	{ART, "Назви творів, артефактів", DetectorNER},
	{MISC, "Інші іменовані сутності", DetectorNER},
}

var patternClasses = []Class{
	{EmailAddress, "Email адреси", DetectorPattern},
	{PhoneNumber, "Телефонні номери", DetectorPattern},
	{CreditCard, "Номери банківських карток", DetectorPattern},
	{IBANCode, "IBAN коди (UA...)", DetectorPattern},
	{IPAddress, "IP адреси", DetectorPattern},
	{URL, "Веб-посилання, URL", DetectorPattern},
	{Crypto, "Криптовалютні гаманці", DetectorPattern},
	{DateTime, "Дата і час разом", DetectorPattern},
}

// NERClasses returns the NER allow-list in canonical order.
func NERClasses() []Class { return append([]Class(nil), nerClasses...) }

// PatternClasses returns the pattern allow-list in canonical order.
func PatternClasses() []Class { return append([]Class(nil), patternClasses...) }

// Lookup finds a class by name across both detectors.
func Lookup(name string) (Class, bool) {
	for _, c := range nerClasses {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range patternClasses {
		if c.Name == name {
			return c, true
		}
	}
	return Class{}, false
}

// Set is an allow-list of entity type names.
type Set map[string]struct{}

// NewSet builds a set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members sorted.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Enabled returns the names of classes not switched off in flags, in
// canonical order. A class missing from flags is enabled. Keys are matched
// case-insensitively.
func Enabled(classes []Class, flags map[string]bool) []string {
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		if Disabled(flags, c.Name) {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// Disabled reports whether flags switches name off. Keys are matched
// case-insensitively.
func Disabled(flags map[string]bool, name string) bool {
	for k, on := range flags {
		if !on && strings.EqualFold(strings.TrimSpace(k), name) {
			return true
		}
	}
	return false
}
