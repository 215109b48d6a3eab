package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"biteboard/pkg/logx"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0"
	defaultTimeout   = 20 * time.Second
	maxPageBytes     = 8 << 20
)

type FetcherConfig struct {
	Timeout       time.Duration
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RatePerSec    float64
	UserAgent     string
}

// Request is one page download.
type Request struct {
	Provider string
	Method   string
	URL      string
	Form     url.Values
}

// Fetcher downloads and parses menu pages. It is shared by all providers and
// safe for concurrent use; the rate limit applies across providers.
type Fetcher struct {
	cfg     FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewFetcher(cfg FetcherConfig, client *http.Client, log logx.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{}
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 2)
	}
	return &Fetcher{cfg: cfg, client: client, limiter: lim, log: log.With(logx.String("comp", "fetcher"))}
}

// Document downloads req and parses it. The whole call, retries included,
// is bounded by the configured timeout.
func (f *Fetcher) Document(ctx context.Context, req Request) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= f.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt)
			f.log.Warn("retrying menu fetch",
				logx.String("provider", req.Provider),
				logx.Int("attempt", attempt),
				logx.Duration("delay", delay),
				logx.Err(lastErr),
			)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, &FetchError{Provider: req.Provider, URL: req.URL, Err: ctx.Err()}
			case <-t.C:
			}
		}

		doc, retry, err := f.once(ctx, req)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) once(ctx context.Context, req Request) (doc *goquery.Document, retry bool, err error) {
	fail := func(status int, cause error) (*goquery.Document, bool, error) {
		return nil, status == 0 || status >= 500, &FetchError{Provider: req.Provider, URL: req.URL, Status: status, Err: cause}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return fail(0, err)
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if method == http.MethodPost && req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}
	hr, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, false, &FetchError{Provider: req.Provider, URL: req.URL, Err: err}
	}
	hr.Header.Set("User-Agent", f.cfg.UserAgent)
	hr.Header.Set("Accept-Language", "de")
	if body != nil {
		hr.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := f.client.Do(hr)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return fail(resp.StatusCode, nil)
	}

	r, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return fail(0, fmt.Errorf("decode body: %w", err))
	}
	doc, err = goquery.NewDocumentFromReader(r)
	if err != nil {
		return fail(0, fmt.Errorf("parse html: %w", err))
	}
	f.log.Debug("menu page fetched",
		logx.String("provider", req.Provider),
		logx.String("url", req.URL),
		logx.Duration("took", time.Since(start)),
	)
	return doc, false, nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	d := f.cfg.RetryBase << (attempt - 1)
	if d <= 0 || d > f.cfg.RetryMaxDelay {
		return f.cfg.RetryMaxDelay
	}
	return d
}
