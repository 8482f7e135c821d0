package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowListsAreComplete(t *testing.T) {
	assert.Len(t, NERClasses(), 13)
	assert.Len(t, PatternClasses(), 8)

	c, ok := Lookup(IBANCode)
	assert.True(t, ok)
	assert.Equal(t, DetectorPattern, c.Detector)

	_, ok = Lookup("NRP")
	assert.False(t, ok)
}

func TestEnabledHonoursFlags(t *testing.T) {
	got := Enabled(NERClasses(), map[string]bool{"job": false, "PERS": true})
	assert.NotContains(t, got, JOB)
	assert.Contains(t, got, PERS)
	assert.Len(t, got, 12)
	assert.Equal(t, PERS, got[0])
}

func TestSet(t *testing.T) {
	s := NewSet(URL, EmailAddress)
	assert.True(t, s.Has(URL))
	assert.False(t, s.Has(PERS))
	assert.Equal(t, []string{EmailAddress, URL}, s.Names())
}

func TestDisabled(t *testing.T) {
	flags := map[string]bool{" edrpou ": false, "URL": true}
	assert.True(t, Disabled(flags, "EDRPOU"))
	assert.False(t, Disabled(flags, URL), "true keeps a class on")
	assert.False(t, Disabled(flags, PERS), "absent classes stay on")
	assert.False(t, Disabled(nil, PERS))
}
