package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/voyagen/radiovault/internal/httpfetch"
	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/pagemeta"
)

// ErrNoLogo is a strategy's non-finding. The waterfall advances on it
// exactly as on a network error.
var ErrNoLogo = errors.New("no logo found")

// Strategy is one step of the waterfall. Resolve returns an absolute logo
// URL or an error; the pipeline bounds each call with Timeout when positive.
type Strategy interface {
	Stage() Stage
	Timeout() time.Duration
	Resolve(ctx context.Context, st *models.Station) (string, error)
}

// Hint accepts the inline playlist logo hint without network validation.
type Hint struct{}

func (Hint) Stage() Stage           { return StageHint }
func (Hint) Timeout() time.Duration { return 0 }

func (Hint) Resolve(_ context.Context, st *models.Station) (string, error) {
	if st.LogoHint == nil || strings.TrimSpace(*st.LogoHint) == "" {
		return "", ErrNoLogo
	}
	return strings.TrimSpace(*st.LogoHint), nil
}

// Lookup asks a domain-keyed logo endpoint (a fmt pattern with one %s for
// the host) and accepts a 200 image response. The stored URL is the final
// URL after redirects.
type Lookup struct {
	Fetcher  httpfetch.Fetcher
	Endpoint string
	Limit    time.Duration
}

func (l *Lookup) Stage() Stage           { return StageAPI }
func (l *Lookup) Timeout() time.Duration { return l.Limit }

func (l *Lookup) Resolve(ctx context.Context, st *models.Station) (string, error) {
	u, ok := streamURL(st.URL)
	if !ok || u.Hostname() == "" {
		return "", ErrNoLogo
	}
	endpoint := fmt.Sprintf(l.Endpoint, u.Hostname())
	resp, err := l.Fetcher.Fetch(ctx, endpoint, l.Limit)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != 200 {
		return "", &httpfetch.StatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	if !strings.HasPrefix(resp.ContentType(), "image/") {
		return "", fmt.Errorf("%s: content type %q: %w", endpoint, resp.ContentType(), ErrNoLogo)
	}
	if resp.URL != "" {
		return resp.URL, nil
	}
	return endpoint, nil
}

// Scrape fetches the station homepage (scheme and host of the stream URL)
// after a politeness delay and picks og:image, then an icon link, then an
// <img> mentioning "logo".
type Scrape struct {
	Fetcher httpfetch.Fetcher
	Limit   time.Duration
	Delay   time.Duration
}

func (s *Scrape) Stage() Stage { return StageScrape }

// Timeout covers the politeness delay plus the page fetch.
func (s *Scrape) Timeout() time.Duration {
	if s.Limit <= 0 {
		return 0
	}
	return s.Delay + s.Limit
}

func (s *Scrape) Resolve(ctx context.Context, st *models.Station) (string, error) {
	u, ok := streamURL(st.URL)
	if !ok {
		return "", ErrNoLogo
	}
	home := u.Scheme + "://" + u.Host
	if err := sleep(ctx, s.Delay); err != nil {
		return "", err
	}
	resp, err := httpfetch.GetOK(ctx, s.Fetcher, home, s.Limit)
	if err != nil {
		return "", err
	}
	logos, err := pagemeta.Extract(resp.Body)
	if err != nil {
		return "", err
	}
	base, err := url.Parse(resp.URL)
	if err != nil || resp.URL == "" {
		base, _ = url.Parse(home)
	}
	if logo, ok := logos.Best(base); ok {
		return logo, nil
	}
	return "", ErrNoLogo
}

// Options configures the default waterfall.
type Options struct {
	LookupEndpoint string
	LookupTimeout  time.Duration
	ScrapeTimeout  time.Duration
	PoliteDelay    time.Duration
}

// DefaultStrategies returns hint, domain lookup and page scrape, in that order.
func DefaultStrategies(f httpfetch.Fetcher, o Options) []Strategy {
	return []Strategy{
		Hint{},
		&Lookup{Fetcher: f, Endpoint: o.LookupEndpoint, Limit: o.LookupTimeout},
		&Scrape{Fetcher: f, Limit: o.ScrapeTimeout, Delay: o.PoliteDelay},
	}
}

// streamURL parses raw and accepts only http(s) URLs with a host.
func streamURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u, true
	}
	return nil, false
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
