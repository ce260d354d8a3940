// Package pagemeta pulls logo candidates out of an HTML page.
package pagemeta

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Logos holds the raw (possibly relative) logo candidates found on a page.
// Each field keeps the first match in document order.
type Logos struct {
	OGImage  string // <meta property="og:image" content=...>
	IconLink string // <link rel="icon|shortcut icon|apple-touch-icon" href=...>
	LogoImg  string // first <img> whose src or alt mentions "logo"
}

// Extract parses body as HTML and collects logo candidates.
func Extract(body []byte) (Logos, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Logos{}, fmt.Errorf("html.Parse: %w", err)
	}
	var l Logos
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.Data {
		case "meta":
			if l.OGImage != "" {
				continue
			}
			prop := strings.ToLower(attr(n, "property"))
			if prop == "" {
				prop = strings.ToLower(attr(n, "name"))
			}
			if prop == "og:image" || prop == "og:image:url" {
				l.OGImage = strings.TrimSpace(attr(n, "content"))
			}
		case "link":
			if l.IconLink != "" {
				continue
			}
			if isIconRel(attr(n, "rel")) {
				l.IconLink = strings.TrimSpace(attr(n, "href"))
			}
		case "img":
			if l.LogoImg != "" {
				continue
			}
			src := strings.TrimSpace(attr(n, "src"))
			if src == "" {
				continue
			}
			if containsFold(src, "logo") || containsFold(attr(n, "alt"), "logo") {
				l.LogoImg = src
			}
		}
	}
	return l, nil
}

// Best returns the highest-priority candidate resolved against base:
// og:image, then icon link, then logo image.
func (l Logos) Best(base *url.URL) (string, bool) {
	for _, raw := range []string{l.OGImage, l.IconLink, l.LogoImg} {
		if raw == "" {
			continue
		}
		if abs, ok := Resolve(base, raw); ok {
			return abs, true
		}
	}
	return "", false
}

// Resolve makes href absolute against base. Only http(s) results are accepted.
func Resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isIconRel(rel string) bool {
	for _, tok := range strings.Fields(strings.ToLower(rel)) {
		if tok == "icon" || strings.HasPrefix(tok, "apple-touch-icon") {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
