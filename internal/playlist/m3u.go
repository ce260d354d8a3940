package playlist

import (
	"iter"
	"regexp"
	"strings"
)

var reAttr = regexp.MustCompile(`([a-zA-Z0-9_-]+)="([^"]*)"`)

// decorativePrefixes are glyphs some playlist generators put in front of the
// station name; the text after " - " is then a description, not the name.
var decorativePrefixes = []string{"▶ ", "â–¶ ", "► ", "♫ "}

func parseM3U(data []byte, skip func(Skip)) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		var marker string
		markerLine := 0
		for n, line := range lines(data) {
			switch {
			case line == "":
				continue
			case hasPrefixFold(line, "#EXTINF"):
				if markerLine != 0 {
					skip(Skip{Line: markerLine, Reason: "marker without URL"})
				}
				marker, markerLine = line, n
			case strings.HasPrefix(line, "#"):
				// #EXTM3U, #EXTVLCOPT, #EXTGRP and plain comments.
				continue
			default:
				if markerLine == 0 {
					skip(Skip{Line: n, Reason: "URL without marker"})
					continue
				}
				e, ok := entryFromMarker(marker, line, n)
				marker, markerLine = "", 0
				if !ok {
					skip(Skip{Line: n, Reason: "no name on marker"})
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
		if markerLine != 0 {
			skip(Skip{Line: markerLine, Reason: "marker without URL"})
		}
	}
}

// entryFromMarker builds an entry from an #EXTINF line and its URL line.
// The name is the text after the last comma once key="value" pairs are removed.
func entryFromMarker(marker, url string, line int) (Entry, bool) {
	attrs := make(map[string]string)
	for _, m := range reAttr.FindAllStringSubmatch(marker, -1) {
		attrs[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
	}
	rest := reAttr.ReplaceAllString(marker, "")

	var name string
	if i := strings.LastIndex(rest, ","); i >= 0 {
		name = cleanName(rest[i+1:])
	}
	if name == "" {
		name = cleanName(attrs["tvg-name"])
	}
	if name == "" {
		return Entry{}, false
	}

	hint := attrs["tvg-logo"]
	if hint == "" {
		hint = attrs["logo"]
	}
	return Entry{Name: name, URL: url, LogoHint: strPtr(hint), Line: line}, true
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range decorativePrefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			s, _, _ = strings.Cut(rest, " - ")
			break
		}
	}
	return strings.TrimSpace(s)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
