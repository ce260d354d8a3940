package playlist

import (
	"iter"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// reShoutcastTitle matches the "(#1 - 12/500) " prefix directory servers add to titles.
var reShoutcastTitle = regexp.MustCompile(`^\(#\d+[^)]*\)\s*`)

type plsEntry struct {
	file     string
	title    string
	fileLine int
	keyLine  int
}

func parsePLS(data []byte, skip func(Skip)) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		byIndex := make(map[int]*plsEntry)
		for n, line := range lines(data) {
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			value = strings.TrimSpace(value)
			var field string
			switch {
			case strings.HasPrefix(key, "file"):
				field = "file"
			case strings.HasPrefix(key, "title"):
				field = "title"
			default:
				continue
			}
			idx, err := strconv.Atoi(strings.TrimPrefix(key, field))
			if err != nil {
				continue
			}
			e := byIndex[idx]
			if e == nil {
				e = &plsEntry{keyLine: n}
				byIndex[idx] = e
			}
			if field == "file" {
				e.file, e.fileLine = value, n
			} else {
				e.title = value
			}
		}

		indexes := make([]int, 0, len(byIndex))
		for idx := range byIndex {
			indexes = append(indexes, idx)
		}
		slices.Sort(indexes)

		for _, idx := range indexes {
			e := byIndex[idx]
			if e.file == "" {
				skip(Skip{Line: e.keyLine, Reason: "title without file"})
				continue
			}
			name := cleanName(reShoutcastTitle.ReplaceAllString(e.title, ""))
			if name == "" {
				name = hostName(e.file)
			}
			if name == "" {
				skip(Skip{Line: e.fileLine, Reason: "no name for file"})
				continue
			}
			if !yield(Entry{Name: name, URL: e.file, Line: e.fileLine}) {
				return
			}
		}
	}
}

func hostName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
