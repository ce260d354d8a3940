// Package playlist turns playlist documents (M3U/M3U8, PLS) into ordered
// station entries. Parsing is lenient: malformed entries are skipped and
// invalid byte sequences are replaced, so a document never fails as a whole.
package playlist

import (
	"bytes"
	"iter"
	"path/filepath"
	"strings"
)

// Entry is one station record parsed from a playlist.
type Entry struct {
	Name     string
	URL      string
	LogoHint *string // inline logo attribute, when the playlist carries one
	Line     int     // 1-based line of the URL (M3U) or File key (PLS)
}

// Skip describes an entry the parser dropped.
type Skip struct {
	Line   int
	Reason string
}

// Format is a playlist syntax.
type Format int

const (
	FormatM3U Format = iota
	FormatPLS
)

func (f Format) String() string {
	if f == FormatPLS {
		return "pls"
	}
	return "m3u"
}

// FormatFromPath picks the format by extension, defaulting to M3U.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".pls") {
		return FormatPLS
	}
	return FormatM3U
}

// IsPlaylist reports whether path has a playlist extension.
func IsPlaylist(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u", ".m3u8", ".pls":
		return true
	}
	return false
}

// Detect sniffs the document: a leading "[playlist]" section means PLS,
// anything else falls back to the format implied by path.
func Detect(path string, data []byte) Format {
	for raw := range splitLines(data) {
		line := strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff"))
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "[playlist]") {
			return FormatPLS
		}
		break
	}
	return FormatFromPath(path)
}

// Parse returns the entries of data in document order. The sequence is
// restartable: ranging over it again re-parses data and yields the same entries.
func Parse(data []byte, f Format) iter.Seq[Entry] {
	return ParseWithSkips(data, f, nil)
}

// ParseWithSkips is Parse with a callback for every dropped entry.
func ParseWithSkips(data []byte, f Format, skip func(Skip)) iter.Seq[Entry] {
	if skip == nil {
		skip = func(Skip) {}
	}
	if f == FormatPLS {
		return parsePLS(data, skip)
	}
	return parseM3U(data, skip)
}

// Collect drains a sequence into a slice.
func Collect(seq iter.Seq[Entry]) []Entry {
	var out []Entry
	for e := range seq {
		out = append(out, e)
	}
	return out
}

// lines yields trimmed, UTF-8 sanitized lines with their 1-based numbers.
func lines(data []byte) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		n := 0
		for raw := range splitLines(data) {
			n++
			line := strings.ToValidUTF8(string(raw), "\uFFFD")
			if n == 1 {
				line = strings.TrimPrefix(line, "\ufeff")
			}
			if !yield(n, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// splitLines yields the lines of data without terminators. "\n", "\r\n"
// and a bare "\r" all end a line.
func splitLines(data []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for len(data) > 0 {
			i := bytes.IndexAny(data, "\r\n")
			if i < 0 {
				yield(data)
				return
			}
			line := data[:i]
			next := i + 1
			if data[i] == '\r' && next < len(data) && data[next] == '\n' {
				next++
			}
			data = data[next:]
			if !yield(line) {
				return
			}
		}
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
