// Package indexsite reads station listings from an online radio index whose
// genre pages list stations as logo + play button, paginated with
// "page-link" anchors.
package indexsite

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/httpfetch"
	"golang.org/x/net/html"
)

// MaxPages bounds how many pages of one genre are read.
const MaxPages = 200

// Entry is one station listed on a genre page.
type Entry struct {
	Name      string
	StreamURL string
	LogoHint  *string
}

// Client pages through genre listings.
type Client struct {
	base    *url.URL
	fetcher httpfetch.Fetcher
	timeout time.Duration
	delay   time.Duration
}

// New returns a Client for the index rooted at baseURL. delay is waited
// between page requests.
func New(baseURL string, f httpfetch.Fetcher, timeout, delay time.Duration) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("index url %q: unsupported scheme", baseURL)
	}
	return &Client{base: base, fetcher: f, timeout: timeout, delay: delay}, nil
}

// GenreURL returns the listing URL for genre.
func (c *Client) GenreURL(genre string) string {
	return c.base.String() + "/genre/" + url.PathEscape(strings.TrimSpace(genre))
}

// Genre returns every station listed under genre, in page order.
func (c *Client) Genre(ctx context.Context, genre string) ([]Entry, error) {
	first := c.GenreURL(genre)
	entries, pages, err := c.page(ctx, first)
	if err != nil {
		return nil, err
	}
	pages = min(pages, MaxPages)
	for i := 2; i <= pages; i++ {
		if err := sleep(ctx, c.delay); err != nil {
			return entries, err
		}
		more, _, err := c.page(ctx, first+"?page="+strconv.Itoa(i))
		if err != nil {
			log.Warn().Err(err).Str("genre", genre).Int("page", i).Msg("index page failed")
			continue
		}
		entries = append(entries, more...)
	}
	return entries, nil
}

func (c *Client) page(ctx context.Context, pageURL string) ([]Entry, int, error) {
	resp, err := httpfetch.GetOK(ctx, c.fetcher, pageURL, c.timeout)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	entries, pages, err := ParsePage(resp.Body, c.base)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	log.Debug().Str("url", pageURL).Int("entries", len(entries)).Msg("index page")
	return entries, pages, nil
}

// ParsePage extracts the station entries and the page count from a genre
// page. Logo hints are resolved against base. Entries missing a name or a
// stream URL are dropped.
func ParsePage(body []byte, base *url.URL) ([]Entry, int, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("html.Parse: %w", err)
	}
	var entries []Entry
	pages := 1
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		switch {
		case n.Data == "a" && hasClass(n, "page-link"):
			if p := pageNumber(attr(n, "href")); p > pages {
				pages = p
			}
		case n.Data == "div" && hasClass(n, "float-right"):
			if e, ok := entryFrom(n, base); ok {
				entries = append(entries, e)
			}
		}
	}
	return entries, pages, nil
}

func entryFrom(div *html.Node, base *url.URL) (Entry, bool) {
	var img, play *html.Node
	for n := range div.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		if img == nil && n.Data == "img" {
			img = n
		}
		if play == nil && n.Data == "a" && attr(n, "onclick") != "" {
			play = n
		}
	}
	if img == nil || play == nil {
		return Entry{}, false
	}
	name := strings.TrimSpace(attr(img, "alt"))
	stream := quoted(attr(play, "onclick"))
	if name == "" || stream == "" {
		return Entry{}, false
	}
	e := Entry{Name: name, StreamURL: stream}
	if src := strings.TrimSpace(attr(img, "src")); src != "" {
		if ref, err := url.Parse(src); err == nil {
			hint := base.ResolveReference(ref).String()
			e.LogoHint = &hint
		}
	}
	return e, true
}

// quoted returns the first single-quoted argument of a JavaScript call.
func quoted(js string) string {
	_, rest, ok := strings.Cut(js, "'")
	if !ok {
		return ""
	}
	val, _, ok := strings.Cut(rest, "'")
	if !ok {
		return ""
	}
	return strings.TrimSpace(val)
}

func pageNumber(href string) int {
	u, err := url.Parse(href)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return 0
	}
	return n
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
