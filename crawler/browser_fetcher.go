package crawler

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"sitepulse/config"
)

// BrowserFetcher renders the page in headless Chrome and returns the DOM
// after scripts ran, for sites whose links are injected client-side.
type BrowserFetcher struct {
	config  config.BrowserConfig
	crawler config.CrawlerConfig
	logger  *zap.Logger
}

func NewBrowserFetcher(cfg config.BrowserConfig, crawlerCfg config.CrawlerConfig, logger *zap.Logger) *BrowserFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserFetcher{
		config:  cfg,
		crawler: crawlerCfg,
		logger:  logger,
	}
}

func (b *BrowserFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(b.crawler.UserAgent),
	)
	if b.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.config.ExecPath))
	}
	return opts
}

func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*PageFetchResult, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	if b.crawler.Timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, b.crawler.Timeout)
		defer cancel()
	}

	var (
		mu          sync.Mutex
		statusCode  int
		contentType string
	)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if statusCode == 0 {
			statusCode = int(resp.Response.Status)
			contentType = resp.Response.MimeType
		}
	})

	var html string
	tasks := chromedp.Tasks{chromedp.Navigate(pageURL)}
	if b.config.WaitTime > 0 {
		tasks = append(tasks, chromedp.Sleep(b.config.WaitTime))
	}
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		b.logger.Debug("browser fetch failed", zap.String("url", pageURL), zap.Error(err))
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	mu.Lock()
	defer mu.Unlock()

	return &PageFetchResult{
		SourceURL:   pageURL,
		RawBody:     html,
		StatusCode:  statusCode,
		ContentType: contentType,
	}, nil
}
