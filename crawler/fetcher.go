package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"sitepulse/config"
)

// PageFetchResult is the raw payload of one top-level page fetch.
type PageFetchResult struct {
	SourceURL   string
	RawBody     string
	StatusCode  int
	ContentType string
}

// Fetcher retrieves the complete body of a page. Implementations return
// either the whole body or an error, never a partial payload.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*PageFetchResult, error)
}

var errTooManyRedirects = errors.New("stopped after too many redirects")

type PageFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewPageFetcher(cfg config.CrawlerConfig, logger *zap.Logger) *PageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRedirects := cfg.MaxRedirects
	return &PageFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				MaxConnsPerHost:     cfg.MaxConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
				TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
				ForceAttemptHTTP2:   true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if maxRedirects <= 0 {
					return http.ErrUseLastResponse
				}
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger,
	}
}

// NewFetcherWithBackend creates a page fetcher for the configured backend and
// wraps it so concurrent requests for the same URL share one fetch.
func NewFetcherWithBackend(cfg *config.Settings, logger *zap.Logger) (Fetcher, error) {
	var backend Fetcher
	switch cfg.Crawler.Backend {
	case "", config.BackendHTTP:
		backend = NewPageFetcher(cfg.Crawler, logger)
	case config.BackendColly:
		backend = NewCollyPageFetcher(cfg.Colly, cfg.Crawler.Timeout, logger)
	case config.BackendBrowser:
		backend = NewBrowserFetcher(cfg.Browser, cfg.Crawler, logger)
	default:
		return nil, fmt.Errorf("unknown fetch backend %q", cfg.Crawler.Backend)
	}
	return NewSharedFetcher(backend), nil
}

func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (*PageFetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: pageURL, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	body, err := charset.NewReader(resp.Body, contentType)
	if err != nil {
		f.logger.Debug("charset detection failed, reading raw bytes",
			zap.String("url", pageURL), zap.String("content_type", contentType), zap.Error(err))
		body = resp.Body
	}

	raw, err := readAllLimited(body, f.maxBodyBytes)
	if err != nil {
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	f.logger.Debug("page fetched",
		zap.String("url", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)))

	return &PageFetchResult{
		SourceURL:   pageURL,
		RawBody:     raw,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}, nil
}

// readAllLimited reads r to EOF. A limit of zero or less disables the cap;
// exceeding the cap is an error rather than a truncated body.
func readAllLimited(r io.Reader, limit int64) (string, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed reading response body: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("failed reading response body: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return string(data), nil
}

// unwrapURLError drops the `Get "<url>":` prefix net/http adds, since the
// URL is already carried by NetworkError.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
