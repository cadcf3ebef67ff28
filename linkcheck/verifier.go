package linkcheck

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sitepulse/config"
	"sitepulse/extract"
	"sitepulse/monitoring"
)

const (
	statusTimeout          = "Request timeout"
	statusConnectionFailed = "Connection failed"
)

// LinkStatus is the outcome of probing one link. HTTPStatus is 0 when no
// response was received.
type LinkStatus struct {
	URL        string        `json:"url"`
	HTTPStatus int           `json:"status"`
	IsBroken   bool          `json:"isBroken"`
	StatusText string        `json:"statusText"`
	Duration   time.Duration `json:"-"`
}

// ProbeObserver receives the outcome and duration of every probe.
type ProbeObserver interface {
	ObserveProbe(outcome string, seconds float64)
}

// Verifier probes links concurrently and reports a LinkStatus per link.
type Verifier struct {
	client   *http.Client
	config   config.LinkCheckConfig
	observer ProbeObserver
	logger   *zap.Logger
}

// NewVerifier creates a verifier. observer may be nil.
func NewVerifier(cfg config.LinkCheckConfig, observer ProbeObserver, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}

	return &Verifier{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			// a redirect is a healthy answer in its own right
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config:   cfg,
		observer: observer,
		logger:   logger,
	}
}

// Check caps discovered to the configured maximum, probes the kept links
// and aggregates the result.
func (v *Verifier) Check(ctx context.Context, discovered []extract.LinkRecord) BrokenLinksSummary {
	checked := Truncate(discovered, v.config.MaxLinks)
	statuses := v.Verify(ctx, checked)
	return Summarize(checked, statuses, len(discovered))
}

// Verify probes every link and returns statuses in input order. It waits for
// all probes to settle; individual failures are reported as broken statuses.
// A panic inside a probe is re-raised once every probe has finished.
func (v *Verifier) Verify(ctx context.Context, links []extract.LinkRecord) []LinkStatus {
	statuses := make([]LinkStatus, len(links))

	var g errgroup.Group
	if v.config.MaxConcurrent > 0 {
		g.SetLimit(v.config.MaxConcurrent)
	}

	var (
		panicOnce  sync.Once
		panicValue interface{}
	)

	for i, link := range links {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() { panicValue = r })
				}
			}()
			statuses[i] = v.Probe(ctx, link.AbsoluteURL)
			return nil
		})
	}
	_ = g.Wait()

	if panicValue != nil {
		panic(panicValue)
	}

	v.logger.Debug("links verified", zap.Int("count", len(links)))
	return statuses
}

// Probe issues one request to linkURL bounded by the configured timeout.
func (v *Verifier) Probe(ctx context.Context, linkURL string) LinkStatus {
	start := time.Now()
	status := v.probe(ctx, linkURL)
	status.Duration = time.Since(start)

	if v.observer != nil {
		v.observer.ObserveProbe(outcome(status), status.Duration.Seconds())
	}
	return status
}

func (v *Verifier) probe(ctx context.Context, linkURL string) LinkStatus {
	if v.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, v.config.Method, linkURL, nil)
	if err != nil {
		return failedStatus(linkURL, err)
	}
	if v.config.UserAgent != "" {
		req.Header.Set("User-Agent", v.config.UserAgent)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return LinkStatus{URL: linkURL, IsBroken: true, StatusText: statusTimeout}
		}
		v.logger.Debug("link probe failed", zap.String("url", linkURL), zap.Error(err))
		return failedStatus(linkURL, err)
	}
	resp.Body.Close()

	return LinkStatus{
		URL:        linkURL,
		HTTPStatus: resp.StatusCode,
		IsBroken:   resp.StatusCode >= 400,
		StatusText: reasonPhrase(resp),
	}
}

func failedStatus(linkURL string, err error) LinkStatus {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}

	message := err.Error()
	if message == "" {
		message = statusConnectionFailed
	}
	return LinkStatus{URL: linkURL, IsBroken: true, StatusText: message}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// reasonPhrase returns the status line text the server sent, falling back to
// the standard text for the code.
func reasonPhrase(resp *http.Response) string {
	phrase := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if phrase == "" {
		phrase = http.StatusText(resp.StatusCode)
	}
	return phrase
}

func outcome(status LinkStatus) string {
	switch {
	case !status.IsBroken:
		return monitoring.OutcomeHealthy
	case status.HTTPStatus != 0:
		return monitoring.OutcomeBroken
	case status.StatusText == statusTimeout:
		return monitoring.OutcomeTimeout
	default:
		return monitoring.OutcomeError
	}
}
