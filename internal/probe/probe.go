// Package probe checks whether a stream URL is answering.
package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/metrics"
	"github.com/voyagen/radiovault/internal/models"
)

// BrowserUserAgent is sent by probes; some stream servers refuse unknown clients.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DefaultTimeout bounds a probe from request start to response headers.
const DefaultTimeout = 2 * time.Second

// Result is the outcome of probing one stream URL.
type Result struct {
	URL        string        `json:"url"`
	Status     models.Status `json:"status"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
}

// Prober issues streamed GETs and classifies them as online or offline.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// New returns a Prober. A non-positive timeout means DefaultTimeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{client: &http.Client{}, timeout: timeout}
}

// Probe returns online for a 2xx answer and offline for anything else,
// including errors and timeouts. The body is never read.
func (p *Prober) Probe(ctx context.Context, url string) (res Result) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	res = Result{URL: url, Status: models.StatusOffline}
	defer func() {
		res.Latency = time.Since(start)
		metrics.ProbesTotal.WithLabelValues(string(res.Status)).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("probe: bad url")
		return res
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Icy-MetaData", "0")
	resp, err := p.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("probe failed")
		return res
	}
	resp.Body.Close()
	res.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.Status = models.StatusOnline
	}
	return res
}

// ProbeAsync runs Probe in the background. The channel receives exactly
// one result and is then closed.
func (p *Prober) ProbeAsync(ctx context.Context, url string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- p.Probe(ctx, url)
	}()
	return ch
}
