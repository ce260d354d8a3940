// Package taxonomy derives country, city and genre labels from playlist
// file names using static tables and naming conventions.
package taxonomy

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Classification holds the labels for one playlist file. Any field may be nil.
type Classification struct {
	Country *string
	Genre   *string
	City    *string
}

// Empty reports whether neither a country nor a genre was resolved.
func (c Classification) Empty() bool {
	return c.Country == nil && c.Genre == nil
}

// Classifier maps playlist paths to labels.
type Classifier struct {
	codes  map[string]string // iso code or alias -> country name
	names  map[string]string // key(country name) -> country name
	genres map[string]string // key(genre) -> display name
}

// New returns a Classifier over the built-in country tables and DefaultGenres.
func New() *Classifier {
	return NewWithGenres(DefaultGenres)
}

// NewWithGenres returns a Classifier with a custom genre vocabulary.
func NewWithGenres(genres []string) *Classifier {
	c := &Classifier{
		codes:  make(map[string]string, len(countryCodes)+len(countryAliases)),
		names:  make(map[string]string, len(countryCodes)),
		genres: make(map[string]string, len(genres)),
	}
	for code, name := range countryCodes {
		c.codes[code] = name
		c.names[Key(name)] = name
	}
	for alias, name := range countryAliases {
		c.codes[alias] = name
	}
	for _, g := range genres {
		if k := Key(g); k != "" {
			c.genres[k] = Display(g)
		}
	}
	return c
}

// Classify resolves labels for path. Only the base name is considered:
//  1. the whole stem against country codes, aliases and full country names;
//  2. for hyphenated stems, the part before the first hyphen against country
//     codes, with the remainder as the city;
//  3. the whole stem against the genre vocabulary.
func (c *Classifier) Classify(path string) Classification {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	key := Key(stem)
	if key == "" {
		return Classification{}
	}

	var out Classification
	if name, ok := c.codes[key]; ok {
		out.Country = &name
	} else if name, ok := c.names[key]; ok {
		out.Country = &name
	} else if prefix, rest, ok := strings.Cut(strings.ToLower(stem), "-"); ok {
		// Only a literal hyphen in the file name splits it; underscores and
		// spaces are folded into hyphens by Key and must not count.
		if name, ok := c.Country(prefix); ok {
			out.Country = &name
			if city := Display(rest); city != "" {
				out.City = &city
			}
		}
	}
	if genre, ok := c.genres[key]; ok {
		out.Genre = &genre
	}
	return out
}

// Country returns the display name for an ISO code or alias.
func (c *Classifier) Country(code string) (string, bool) {
	name, ok := c.codes[Key(code)]
	return name, ok
}

// Genre returns the display name for a vocabulary genre.
func (c *Classifier) Genre(name string) (string, bool) {
	g, ok := c.genres[Key(name)]
	return g, ok
}

// Excluded reports whether a path (relative to the source root) lies under an
// exclusion marker: elements starting with "---" or ".", or named
// "quarantine", "processed" or "_processed".
func Excluded(rel string) bool {
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		if elem == "" || elem == "." || elem == ".." {
			continue
		}
		if strings.HasPrefix(elem, "---") || strings.HasPrefix(elem, ".") {
			return true
		}
		switch strings.ToLower(elem) {
		case "quarantine", "processed", "_processed":
			return true
		}
	}
	return false
}

// Key canonicalizes a label for uniqueness comparison: case-folded, with
// underscores, spaces and punctuation collapsed to single hyphens.
func Key(name string) string {
	return slug.Make(strings.ReplaceAll(name, "_", " "))
}

// Display turns a filename-style label into a display name ("hip_hop" -> "Hip Hop").
func Display(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return cases.Title(language.English).String(strings.Join(strings.Fields(name), " "))
}
