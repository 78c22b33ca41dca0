package countries

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"Russian Federation":   "Russia",
		"Moldova, Republic of": "Moldova",
		"Czech Republic":       "Czechia",
		"Bosnia and Herz.":     "Bosnia and Herzegovina",
		"Republic of Serbia":   "Serbia",
		"  France ":            "France",
		"United  Kingdom":      "United Kingdom",
		"Atlantis":             "Atlantis",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonical(in), in)
	}
	assert.True(t, Same("Czech Republic", "Czechia"))
}

func TestEuropeCatalog(t *testing.T) {
	eu := Europe()
	assert.Equal(t, 51, eu.Len())
	assert.True(t, eu.Contains("Russian Federation"))
	assert.True(t, eu.Contains("Kazakhstan"))
	assert.False(t, eu.Contains("Canada"))

	var nilCat *Catalog
	assert.False(t, nilCat.Contains("France"))
}

func TestRegionAndAdditions(t *testing.T) {
	assert.True(t, InEuropeRegion("Western Europe"))
	assert.True(t, InEuropeRegion("EUROPE"))
	assert.False(t, InEuropeRegion("Russia"))

	assert.True(t, IsAddition("Russian Federation"))
	assert.True(t, IsAddition("Moldova, Republic of"))
	assert.False(t, IsAddition("Poland"))
}

func TestSplitValidate(t *testing.T) {
	for _, s := range DefaultSplits() {
		assert.NoError(t, s.Validate())
	}
	bad := Split{Source: "X", Parts: []Part{{Name: "A", Share: 0.5}, {Name: "B", Share: 0.4}}}
	err := bad.Validate()
	assert.True(t, errors.Is(err, ErrInvalidSplit))
	assert.Error(t, Split{}.Validate())
}
