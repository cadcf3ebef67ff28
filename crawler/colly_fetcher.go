package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"
	"go.uber.org/zap"

	"sitepulse/config"
)

type CollyPageFetcher struct {
	config  config.CollyConfig
	timeout time.Duration
	logger  *zap.Logger
}

func NewCollyPageFetcher(cfg config.CollyConfig, timeout time.Duration, logger *zap.Logger) *CollyPageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollyPageFetcher{
		config:  cfg,
		timeout: timeout,
		logger:  logger,
	}
}

// newCollector builds a collector per fetch so callbacks never leak between
// concurrent requests.
func (cpf *CollyPageFetcher) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)

	c.UserAgent = cpf.config.UserAgent
	c.DetectCharset = true
	// 4xx/5xx pages still carry markup worth extracting
	c.ParseHTTPErrorResponse = true

	if cpf.config.Delay > 0 || cpf.config.Parallelism > 0 {
		c.Limit(&colly.LimitRule{
			DomainGlob:  cpf.config.DomainGlob,
			Parallelism: cpf.config.Parallelism,
			Delay:       cpf.config.Delay,
			RandomDelay: cpf.config.RandomDelay,
		})
	}

	if cpf.config.DebugMode {
		c.SetDebugger(&debug.LogDebugger{})
	}

	if cpf.timeout > 0 {
		c.SetRequestTimeout(cpf.timeout)
	}

	return c
}

func (cpf *CollyPageFetcher) Fetch(ctx context.Context, pageURL string) (*PageFetchResult, error) {
	c := cpf.newCollector(ctx)

	var result *PageFetchResult
	var fetchError error

	c.OnResponse(func(r *colly.Response) {
		result = &PageFetchResult{
			SourceURL:   pageURL,
			RawBody:     string(r.Body),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchError = err
	})

	if err := c.Visit(pageURL); err != nil && fetchError == nil {
		fetchError = err
	}

	if fetchError != nil {
		cpf.logger.Debug("colly fetch failed", zap.String("url", pageURL), zap.Error(fetchError))
		return nil, &NetworkError{URL: pageURL, Err: fetchError}
	}

	if result == nil {
		return nil, &NetworkError{URL: pageURL, Err: fmt.Errorf("no response received for %s", pageURL)}
	}

	return result, nil
}
