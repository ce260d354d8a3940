package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestClassify(t *testing.T) {
	c := New()
	tests := []struct {
		path    string
		country string
		city    string
		genre   string
	}{
		{path: "fr.m3u", country: "France"},
		{path: "FR.m3u8", country: "France"},
		{path: "playlists/europe/fr-paris.m3u", country: "France", city: "Paris"},
		{path: "us-new_york.pls", country: "United States", city: "New York"},
		{path: "DE-Berlin.m3u", country: "Germany", city: "Berlin"},
		{path: "united_states.m3u", country: "United States"},
		{path: "United States.m3u", country: "United States"},
		{path: "italian.m3u", country: "Italy"},
		{path: "uk.m3u", country: "United Kingdom"},
		{path: "jazz.m3u", genre: "Jazz"},
		{path: "hip_hop.m3u", genre: "Hip Hop"},
		{path: "Drum_And_Bass.m3u", genre: "Drum And Bass"},
		{path: "80s.m3u", genre: "80s"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := c.Classify(tt.path)
			assert.Equal(t, tt.country, deref(got.Country))
			assert.Equal(t, tt.city, deref(got.City))
			assert.Equal(t, tt.genre, deref(got.Genre))
			assert.False(t, got.Empty())
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	c := New()
	for _, p := range []string{
		"misc.m3u", "xx-somewhere.m3u", "best of.m3u", ".m3u",
		// underscores and spaces never split off a country code
		"no_name.m3u", "it_classics.m3u", "be_bop.m3u", "in the mix.m3u", "fr paris.m3u",
	} {
		got := c.Classify(p)
		assert.True(t, got.Empty(), p)
		assert.Nil(t, got.City, p)
	}
}

func TestClassifyCustomGenres(t *testing.T) {
	c := NewWithGenres([]string{"chiptune"})
	assert.Equal(t, "Chiptune", deref(c.Classify("chiptune.m3u").Genre))
	assert.Nil(t, c.Classify("jazz.m3u").Genre)
}

func TestLookups(t *testing.T) {
	c := New()
	name, ok := c.Country(" DE ")
	require.True(t, ok)
	assert.Equal(t, "Germany", name)
	_, ok = c.Country("zz")
	assert.False(t, ok)

	g, ok := c.Genre("Hip Hop")
	require.True(t, ok)
	assert.Equal(t, "Hip Hop", g)
}

func TestExcluded(t *testing.T) {
	excluded := []string{
		"quarantine/fr.m3u",
		"europe/Quarantine/fr.m3u",
		"---old/jazz.m3u",
		".hidden/jazz.m3u",
		"processed/jazz.m3u",
		"a/_processed/b/jazz.m3u",
		".jazz.m3u",
	}
	for _, p := range excluded {
		assert.True(t, Excluded(p), p)
	}
	included := []string{
		"fr.m3u",
		"./fr.m3u",
		"europe/fr-paris.m3u",
		"genres/jazz.m3u",
		"pre-processed/jazz.m3u",
		"--two/jazz.m3u",
	}
	for _, p := range included {
		assert.False(t, Excluded(p), p)
	}
}

func TestKeyAndDisplay(t *testing.T) {
	assert.Equal(t, "hip-hop", Key("Hip_Hop"))
	assert.Equal(t, Key("hip hop"), Key("HIP-HOP"))
	assert.Equal(t, "united-states", Key("United States"))
	assert.Equal(t, "Hip Hop", Display("hip_hop"))
	assert.Equal(t, "Rio De Janeiro", Display("rio-de-janeiro"))
}
